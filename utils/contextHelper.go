package utils

import "context"

// contextKey is unexported so no other package can read or overwrite these values.
type contextKey int

const (
	keyTokenId contextKey = iota
	keyUsername
	keyUserId
	keyUserName
	keyRoleId
	keyCorrelationId
	keyIsAdmin
)

func fromContext[T any](ctx context.Context, key contextKey) (T, bool) {
	v, ok := ctx.Value(key).(T)
	return v, ok
}

func GetTokenIdFromContext(ctx context.Context) (string, bool) {
	return fromContext[string](ctx, keyTokenId)
}

func GetUsernameFromContext(ctx context.Context) (string, bool) {
	return fromContext[string](ctx, keyUsername)
}

func GetUserIdFromContext(ctx context.Context) (int, bool) {
	return fromContext[int](ctx, keyUserId)
}

// GetUserNameFromContext is the display name recorded in history rows.
func GetUserNameFromContext(ctx context.Context) (string, bool) {
	return fromContext[string](ctx, keyUserName)
}

func GetRoleIdFromContext(ctx context.Context) (int, bool) {
	return fromContext[int](ctx, keyRoleId)
}

func GetCorrelationIdFromContext(ctx context.Context) (string, bool) {
	return fromContext[string](ctx, keyCorrelationId)
}

// GetIsAdminFromContext is true for administrators and system work; permission checks are skipped.
func GetIsAdminFromContext(ctx context.Context) (bool, bool) {
	return fromContext[bool](ctx, keyIsAdmin)
}

func SetTokenIdInContext(ctx context.Context, tokenId string) context.Context {
	return context.WithValue(ctx, keyTokenId, tokenId)
}

func SetUsernameInContext(ctx context.Context, username string) context.Context {
	return context.WithValue(ctx, keyUsername, username)
}

func SetUserIdInContext(ctx context.Context, userId int) context.Context {
	return context.WithValue(ctx, keyUserId, userId)
}

func SetUserNameInContext(ctx context.Context, userName string) context.Context {
	return context.WithValue(ctx, keyUserName, userName)
}

func SetRoleIdInContext(ctx context.Context, roleId int) context.Context {
	return context.WithValue(ctx, keyRoleId, roleId)
}

func SetCorrelationIdInContext(ctx context.Context, correlationId string) context.Context {
	return context.WithValue(ctx, keyCorrelationId, correlationId)
}

func SetIsAdminInContext(ctx context.Context, isAdmin bool) context.Context {
	return context.WithValue(ctx, keyIsAdmin, isAdmin)
}

// SystemContext marks work done by jobs and webhooks, which have no signed-in user.
// The correlation id of ctx, if any, is kept.
func SystemContext(ctx context.Context) context.Context {
	ctx = SetUserIdInContext(ctx, 0)
	ctx = SetUserNameInContext(ctx, "System")
	ctx = SetRoleIdInContext(ctx, 0)
	return SetIsAdminInContext(ctx, true)
}
