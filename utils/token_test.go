package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJwtRoundTrip(t *testing.T) {
	t.Setenv("API_SECRET", "test-secret")
	t.Setenv("TOKEN_HOUR_LIFESPAN", "2")

	token, jti, exp, err := JwtGenerate(42, "S")
	require.NoError(t, err)
	require.NotEmpty(t, jti)

	claims, err := JwtValidate(token)
	require.NoError(t, err)
	assert.Equal(t, 42, claims.ID)
	assert.Equal(t, "S", claims.Role)
	assert.Equal(t, jti, claims.Id)
	assert.Equal(t, exp.Unix(), claims.ExpiresAt)
}

func TestJwtValidateRejectsOtherSecret(t *testing.T) {
	t.Setenv("API_SECRET", "one")
	token, _, _, err := JwtGenerate(1, "A")
	require.NoError(t, err)

	t.Setenv("API_SECRET", "two")
	_, err = JwtValidate(token)
	assert.Error(t, err)
}
