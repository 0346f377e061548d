package middlewares_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/church_backend/middlewares"
	"github.com/mmdatafocus/church_backend/models"
	"github.com/mmdatafocus/church_backend/testhelper"
	"github.com/mmdatafocus/church_backend/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newUser(t *testing.T, ctx context.Context, username string, role models.UserRole, roleId int) *models.User {
	t.Helper()
	u, err := models.CreateUser(ctx, &models.NewUser{
		Username: username,
		Name:     username,
		Password: "correct-horse",
		IsActive: utils.NewTrue(),
		Role:     role,
		RoleId:   roleId,
	})
	require.NoError(t, err)
	return u
}

func login(t *testing.T, ctx context.Context, username string) string {
	t.Helper()
	info, err := models.Login(ctx, username, "correct-horse")
	require.NoError(t, err)
	return info.Token
}

func router() *gin.Engine {
	r := gin.New()
	r.Use(middlewares.CorrelationMiddleware())
	authed := r.Group("/", middlewares.AuthMiddleware())
	authed.GET("/donations", middlewares.RequirePermission("donations", "read"), func(c *gin.Context) {
		userId, _ := utils.GetUserIdFromContext(c.Request.Context())
		c.JSON(http.StatusOK, gin.H{"user_id": userId})
	})
	authed.POST("/donations", middlewares.RequirePermission("donations", "create"), func(c *gin.Context) {
		c.Status(http.StatusCreated)
	})
	authed.GET("/admin", middlewares.RequireAdmin(), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return r
}

func do(r http.Handler, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthMiddlewareRejectsMissingAndBadTokens(t *testing.T) {
	testhelper.SetupDB(t)
	r := router()

	assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodGet, "/donations", "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodGet, "/donations", "garbage").Code)

	req := httptest.NewRequest(http.MethodGet, "/donations", nil)
	req.Header.Set("Authorization", "Basic abc")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.NotEmpty(t, w.Header().Get(middlewares.CorrelationHeader))
}

func TestAuthMiddlewareHonoursRevocation(t *testing.T) {
	testhelper.SetupDB(t)
	testhelper.SetupRedis(t)
	ctx := testhelper.AdminContext()
	newUser(t, ctx, "pastor", models.UserRoleAdmin, 0)
	token := login(t, ctx, "pastor")
	r := router()

	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/donations", token).Code)

	claims, err := utils.JwtValidate(token)
	require.NoError(t, err)
	require.NoError(t, models.Logout(utils.SetTokenIdInContext(ctx, claims.Id), time.Unix(claims.ExpiresAt, 0)))

	assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodGet, "/donations", token).Code)
}

func TestRequirePermission(t *testing.T) {
	testhelper.SetupDB(t)
	ctx := testhelper.AdminContext()
	role, err := models.CreateRole(ctx, &models.NewRole{
		Name:           "Counter",
		AllowedModules: []*models.NewAllowedModule{{ModuleName: "donations", AllowedActions: "read"}},
	})
	require.NoError(t, err)
	newUser(t, ctx, "usher", models.UserRoleStaff, role.ID)
	newUser(t, ctx, "elder", models.UserRoleAdmin, 0)
	staff := login(t, ctx, "usher")
	admin := login(t, ctx, "elder")
	r := router()

	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/donations", staff).Code)
	assert.Equal(t, http.StatusForbidden, do(r, http.MethodPost, "/donations", staff).Code)
	assert.Equal(t, http.StatusForbidden, do(r, http.MethodGet, "/admin", staff).Code)

	assert.Equal(t, http.StatusCreated, do(r, http.MethodPost, "/donations", admin).Code)
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/admin", admin).Code)
}

func TestRateLimiter(t *testing.T) {
	testhelper.SetupRedis(t)
	limiter := middlewares.NewRateLimiter(nil, 2, time.Minute)
	r := gin.New()
	r.Use(limiter.RateLimitMiddleware)
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	assert.Equal(t, http.StatusNoContent, do(r, http.MethodGet, "/", "").Code)
	assert.Equal(t, http.StatusNoContent, do(r, http.MethodGet, "/", "").Code)
	w := do(r, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "60", w.Header().Get("Retry-After"))
}

func TestHydrateDonationsUsesMemberLoader(t *testing.T) {
	testhelper.SetupDB(t)
	ctx := middlewares.WithLoaders(testhelper.AdminContext(), middlewares.NewLoaders())
	m, err := models.CreateMember(ctx, &models.NewMember{FirstName: "Joanna", LastName: "Chuza"})
	require.NoError(t, err)

	donations := []*models.Donation{
		{ID: 1, MemberId: &m.ID},
		{ID: 2},
		{ID: 3, MemberId: &m.ID},
	}
	require.NoError(t, middlewares.HydrateDonations(ctx, donations))
	assert.Equal(t, "Joanna Chuza", donations[0].MemberName)
	assert.Empty(t, donations[1].MemberName)
	assert.Equal(t, "Joanna Chuza", donations[2].MemberName)

	missing, err := middlewares.GetMember(ctx, m.ID+50)
	require.NoError(t, err)
	assert.Nil(t, missing)
}
