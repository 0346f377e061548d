package middlewares

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/church_backend/config"
	"github.com/mmdatafocus/church_backend/models"
	"github.com/mmdatafocus/church_backend/utils"
)

type authString string

func abort(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"status": false, "message": message})
}

func bearerToken(header string) (string, bool) {
	const bearer = "Bearer "
	if len(header) <= len(bearer) || !strings.EqualFold(header[:len(bearer)], bearer) {
		return "", false
	}
	return strings.TrimSpace(header[len(bearer):]), true
}

// AuthMiddleware rejects requests without a valid, unrevoked bearer token of an active user.
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.Request.Header.Get("Authorization"))
		if !ok {
			abort(c, http.StatusUnauthorized, "unauthorized")
			return
		}

		claims, err := utils.JwtValidate(token)
		if err != nil {
			abort(c, http.StatusUnauthorized, "unauthorized")
			return
		}
		revoked, err := models.IsTokenRevoked(claims.Id)
		if err != nil {
			config.LogError(config.GetLogger(), "middlewares", "AuthMiddleware", "IsTokenRevoked", claims.Id, err)
		}
		if revoked {
			abort(c, http.StatusUnauthorized, "token has been revoked")
			return
		}

		user, err := models.GetUser(c.Request.Context(), claims.ID)
		if err != nil {
			if errors.Is(err, utils.ErrorRecordNotFound) {
				abort(c, http.StatusUnauthorized, "unauthorized")
				return
			}
			_ = c.Error(err)
			abort(c, http.StatusInternalServerError, err.Error())
			return
		}
		if !user.IsActive {
			abort(c, http.StatusUnauthorized, "user is disabled")
			return
		}

		ctx := context.WithValue(c.Request.Context(), authString("auth"), claims)
		ctx = utils.SetTokenIdInContext(ctx, claims.Id)
		ctx = utils.SetUserIdInContext(ctx, user.ID)
		ctx = utils.SetUsernameInContext(ctx, user.Username)
		ctx = utils.SetUserNameInContext(ctx, user.Name)
		ctx = utils.SetRoleIdInContext(ctx, user.RoleId)
		ctx = utils.SetIsAdminInContext(ctx, user.IsAdmin())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func CtxValue(ctx context.Context) *utils.JwtCustomClaim {
	raw, _ := ctx.Value(authString("auth")).(*utils.JwtCustomClaim)
	return raw
}

// RequirePermission answers 403 unless the user is an admin or their role grants module.action.
func RequirePermission(module string, action string) gin.HandlerFunc {
	permission := module + "." + action
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if isAdmin, _ := utils.GetIsAdminFromContext(ctx); isAdmin {
			c.Next()
			return
		}
		roleId, ok := utils.GetRoleIdFromContext(ctx)
		if !ok || roleId == 0 {
			abort(c, http.StatusForbidden, "forbidden: missing permission "+permission)
			return
		}
		permissions, err := models.GetPermissionsFromRole(ctx, roleId)
		if err != nil {
			if errors.Is(err, utils.ErrorRecordNotFound) {
				abort(c, http.StatusForbidden, "forbidden: missing permission "+permission)
				return
			}
			_ = c.Error(err)
			abort(c, http.StatusInternalServerError, err.Error())
			return
		}
		if !permissions[permission] {
			abort(c, http.StatusForbidden, "forbidden: missing permission "+permission)
			return
		}
		c.Next()
	}
}

// RequireAdmin answers 403 for non-admin users.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if isAdmin, _ := utils.GetIsAdminFromContext(c.Request.Context()); !isAdmin {
			abort(c, http.StatusForbidden, "forbidden: administrators only")
			return
		}
		c.Next()
	}
}
