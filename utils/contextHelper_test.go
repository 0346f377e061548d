package utils

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContextValuesRoundTrip(t *testing.T) {
	ctx := SetUserIdInContext(context.Background(), 7)
	ctx = SetUsernameInContext(ctx, "deacon")
	ctx = SetRoleIdInContext(ctx, 3)
	ctx = SetCorrelationIdInContext(ctx, "corr-1")

	id, ok := GetUserIdFromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, 7, id)
	name, _ := GetUsernameFromContext(ctx)
	assert.Equal(t, "deacon", name)
	_, ok = GetTokenIdFromContext(ctx)
	assert.False(t, ok)

	// a plain string key with the same spelling does not collide
	type foreign string
	ctx = context.WithValue(ctx, foreign("UserId"), "spoofed")
	id, _ = GetUserIdFromContext(ctx)
	assert.Equal(t, 7, id)
}

func TestSystemContextDropsTheSignedInUser(t *testing.T) {
	ctx := SetUserIdInContext(context.Background(), 7)
	ctx = SetRoleIdInContext(ctx, 3)
	ctx = SetIsAdminInContext(ctx, false)
	ctx = SetCorrelationIdInContext(ctx, "corr-2")

	ctx = SystemContext(ctx)
	id, _ := GetUserIdFromContext(ctx)
	assert.Equal(t, 0, id)
	role, _ := GetRoleIdFromContext(ctx)
	assert.Equal(t, 0, role)
	admin, _ := GetIsAdminFromContext(ctx)
	assert.True(t, admin)
	name, _ := GetUserNameFromContext(ctx)
	assert.Equal(t, "System", name)
	corr, _ := GetCorrelationIdFromContext(ctx)
	assert.Equal(t, "corr-2", corr)
}
