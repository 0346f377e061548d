package controllers

import (
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	mw "github.com/mmdatafocus/church_backend/middlewares"
	"github.com/mmdatafocus/church_backend/models"
	"github.com/mmdatafocus/church_backend/utils"
)

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required"`
}

func Login(c *gin.Context) {
	var req loginRequest
	if !bindJSON(c, &req) {
		return
	}
	info, err := models.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, info)
}

func Logout(c *gin.Context) {
	ctx := c.Request.Context()
	claims := mw.CtxValue(ctx)
	if claims == nil {
		respondError(c, utils.ErrUnauthorized)
		return
	}
	if err := models.Logout(ctx, time.Unix(claims.ExpiresAt, 0)); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, nil)
}

type meResponse struct {
	User        *models.User `json:"user"`
	RoleName    string       `json:"role_name,omitempty"`
	Permissions []string     `json:"permissions"`
}

func Me(c *gin.Context) {
	ctx := c.Request.Context()
	userId, _ := utils.GetUserIdFromContext(ctx)
	user, err := models.GetUser(ctx, userId)
	if err != nil {
		respondError(c, err)
		return
	}
	permissions, err := models.PermissionsForUser(ctx, user)
	if err != nil {
		respondError(c, err)
		return
	}
	sort.Strings(permissions)
	resp := meResponse{User: user, Permissions: permissions}
	if user.RoleId != 0 {
		if role, err := mw.GetRole(ctx, user.RoleId); err == nil && role != nil {
			resp.RoleName = role.Name
		}
	}
	respondOK(c, resp)
}

func ChangePassword(c *gin.Context) {
	var req changePasswordRequest
	if !bindJSON(c, &req) {
		return
	}
	ctx := c.Request.Context()
	userId, _ := utils.GetUserIdFromContext(ctx)
	if err := models.ChangePassword(ctx, userId, req.CurrentPassword, req.NewPassword); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, nil)
}

// ListPermissionCatalogue returns every module and the actions it supports.
func ListPermissionCatalogue(c *gin.Context) {
	respondOK(c, models.ModuleActions)
}

type userResponse struct {
	*models.User
	RoleName string `json:"role_name,omitempty"`
}

func ListUsers(c *gin.Context) {
	var params models.PageParams
	if !bindQuery(c, &params) {
		return
	}
	ctx := c.Request.Context()
	page, err := models.ListUsers(ctx, params)
	if err != nil {
		respondError(c, err)
		return
	}
	names, err := mw.RoleNames(ctx, page.Items)
	if err != nil {
		respondError(c, err)
		return
	}
	items := make([]*userResponse, 0, len(page.Items))
	for _, u := range page.Items {
		items = append(items, &userResponse{User: u, RoleName: names[u.RoleId]})
	}
	respondPage(c, &models.Page[userResponse]{Items: items, Pagination: page.Pagination})
}

func GetUser(c *gin.Context) {
	id, ok := paramId(c, "id")
	if !ok {
		return
	}
	user, err := models.GetUser(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, user)
}

func CreateUser(c *gin.Context) {
	var input models.NewUser
	if !bindJSON(c, &input) {
		return
	}
	user, err := models.CreateUser(c.Request.Context(), &input)
	if err != nil {
		respondError(c, err)
		return
	}
	respondCreated(c, user)
}

func UpdateUser(c *gin.Context) {
	id, ok := paramId(c, "id")
	if !ok {
		return
	}
	var input models.NewUser
	if !bindJSON(c, &input) {
		return
	}
	user, err := models.UpdateUser(c.Request.Context(), id, &input)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, user)
}

func DeleteUser(c *gin.Context) {
	id, ok := paramId(c, "id")
	if !ok {
		return
	}
	if current, _ := utils.GetUserIdFromContext(c.Request.Context()); current == id {
		respondError(c, utils.NewBusinessError("you cannot delete your own account"))
		return
	}
	user, err := models.DeleteUser(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, user)
}

func ListRoles(c *gin.Context) {
	roles, err := models.ListRoles(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, roles)
}

func GetRole(c *gin.Context) {
	id, ok := paramId(c, "id")
	if !ok {
		return
	}
	role, err := models.GetRole(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, role)
}

func CreateRole(c *gin.Context) {
	var input models.NewRole
	if !bindJSON(c, &input) {
		return
	}
	role, err := models.CreateRole(c.Request.Context(), &input)
	if err != nil {
		respondError(c, err)
		return
	}
	respondCreated(c, role)
}

func UpdateRole(c *gin.Context) {
	id, ok := paramId(c, "id")
	if !ok {
		return
	}
	var input models.NewRole
	if !bindJSON(c, &input) {
		return
	}
	role, err := models.UpdateRole(c.Request.Context(), id, &input)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, role)
}

func DeleteRole(c *gin.Context) {
	id, ok := paramId(c, "id")
	if !ok {
		return
	}
	role, err := models.DeleteRole(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, role)
}
