package utils

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sampleInput struct {
	Name     string `json:"name" binding:"required,max=5"`
	Email    string `json:"email" binding:"omitempty,email"`
	Category string `json:"category" binding:"required,oneof=tithe offering"`
}

func TestValidateStruct(t *testing.T) {
	err := ValidateStruct(sampleInput{Name: "toolong", Email: "nope", Category: "gift"})
	var v *ValidationError
	require.True(t, errors.As(err, &v))
	assert.Equal(t, []string{"must be at most 5 characters"}, v.Fields["name"])
	assert.Equal(t, []string{"must be a valid email address"}, v.Fields["email"])
	assert.Equal(t, []string{"must be one of: tithe, offering"}, v.Fields["category"])

	assert.NoError(t, ValidateStruct(sampleInput{Name: "ok", Category: "tithe"}))
}

func TestValidationFromBindingJsonType(t *testing.T) {
	var in struct {
		Count int `json:"count"`
	}
	err := json.Unmarshal([]byte(`{"count":"abc"}`), &in)
	var v *ValidationError
	require.True(t, errors.As(ValidationFromBinding(err), &v))
	assert.Contains(t, v.Fields, "count")
}

func TestValidationErrorOrNil(t *testing.T) {
	v := &ValidationError{}
	assert.NoError(t, v.OrNil())
	v.Add("amount", "must be greater than 0")
	assert.Error(t, v.OrNil())
	assert.Equal(t, "validation failed: amount: must be greater than 0", v.Error())
}

func TestIsDuplicateKeyError(t *testing.T) {
	assert.True(t, IsDuplicateKeyError(errors.New("UNIQUE constraint failed: members.email")))
	assert.False(t, IsDuplicateKeyError(errors.New("boom")))
	assert.False(t, IsDuplicateKeyError(nil))
}
