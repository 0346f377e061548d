package models_test

import (
	"testing"

	"github.com/mmdatafocus/church_backend/models"
	"github.com/mmdatafocus/church_backend/testhelper"
	"github.com/mmdatafocus/church_backend/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newUserInput(username string, role models.UserRole, roleId int) *models.NewUser {
	return &models.NewUser{
		Username: username,
		Name:     username,
		Password: "correct-horse",
		IsActive: utils.NewTrue(),
		Role:     role,
		RoleId:   roleId,
	}
}

// signedInAdmin creates the user behind testhelper.AdminContext, so later users are not id 1.
func signedInAdmin(t *testing.T) {
	t.Helper()
	admin, err := models.CreateUser(testhelper.AdminContext(), newUserInput("admin", models.UserRoleAdmin, 0))
	require.NoError(t, err)
	require.Equal(t, 1, admin.ID)
}

func TestUserCrud(t *testing.T) {
	ctx := setup(t)
	testhelper.SetupRedis(t)
	signedInAdmin(t)

	user, err := models.CreateUser(ctx, newUserInput("deacon", models.UserRoleAdmin, 0))
	require.NoError(t, err)
	assert.NotEqual(t, "correct-horse", user.Password)

	_, err = models.CreateUser(ctx, newUserInput("deacon", models.UserRoleAdmin, 0))
	var verr *utils.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "username")

	short := newUserInput("elder", models.UserRoleAdmin, 0)
	short.Password = "abc"
	_, err = models.CreateUser(ctx, short)
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "password")

	staff := newUserInput("steward", models.UserRoleStaff, 0)
	_, err = models.CreateUser(ctx, staff)
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "role_id")

	// an empty password on update keeps the current one
	update := newUserInput("deacon", models.UserRoleAdmin, 0)
	update.Name = "Deacon Stephen"
	update.Password = ""
	updated, err := models.UpdateUser(ctx, user.ID, update)
	require.NoError(t, err)
	assert.Equal(t, "Deacon Stephen", updated.Name)
	_, err = models.Login(ctx, "deacon", "correct-horse")
	require.NoError(t, err)

	disabled := newUserInput("deacon", models.UserRoleAdmin, 0)
	disabled.Password = ""
	disabled.IsActive = utils.NewFalse()
	_, err = models.UpdateUser(ctx, user.ID, disabled)
	require.NoError(t, err)
	_, err = models.Login(ctx, "deacon", "correct-horse")
	var berr *utils.BusinessRuleError
	require.ErrorAs(t, err, &berr)

	page, err := models.ListUsers(ctx, models.PageParams{})
	require.NoError(t, err)
	assert.Len(t, page.Items, 2)

	_, err = models.DeleteUser(ctx, 1)
	require.ErrorAs(t, err, &berr)

	_, err = models.DeleteUser(ctx, user.ID)
	require.NoError(t, err)
	_, err = models.GetUser(ctx, user.ID)
	assert.ErrorIs(t, err, utils.ErrorRecordNotFound)
	_, err = models.Login(ctx, "deacon", "correct-horse")
	assert.ErrorIs(t, err, utils.ErrUnauthorized)
}

func TestRoleCrud(t *testing.T) {
	ctx := setup(t)
	testhelper.SetupRedis(t)
	signedInAdmin(t)

	_, err := models.CreateRole(ctx, &models.NewRole{
		Name:           "Broken",
		AllowedModules: []*models.NewAllowedModule{{ModuleName: "vestments", AllowedActions: "read"}},
	})
	var verr *utils.ValidationError
	require.ErrorAs(t, err, &verr)

	role, err := models.CreateRole(ctx, &models.NewRole{
		Name:           "Treasurer",
		AllowedModules: []*models.NewAllowedModule{{ModuleName: "donations", AllowedActions: "read; Create"}},
	})
	require.NoError(t, err)
	perms, err := models.GetPermissionsFromRole(ctx, role.ID)
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"donations.read": true, "donations.create": true}, perms)

	_, err = models.CreateRole(ctx, &models.NewRole{Name: "Treasurer", AllowedModules: []*models.NewAllowedModule{}})
	require.ErrorAs(t, err, &verr)

	updated, err := models.UpdateRole(ctx, role.ID, &models.NewRole{
		Name:           "Finance",
		AllowedModules: []*models.NewAllowedModule{{ModuleName: "expenses", AllowedActions: "read"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "Finance", updated.Name)
	require.Len(t, updated.RoleModules, 1)
	perms, err = models.GetPermissionsFromRole(ctx, role.ID)
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"expenses.read": true}, perms)

	user, err := models.CreateUser(ctx, newUserInput("bursar", models.UserRoleStaff, role.ID))
	require.NoError(t, err)
	_, err = models.DeleteRole(ctx, role.ID)
	var berr *utils.BusinessRuleError
	require.ErrorAs(t, err, &berr)

	_, err = models.DeleteUser(ctx, user.ID)
	require.NoError(t, err)
	_, err = models.DeleteRole(ctx, role.ID)
	require.NoError(t, err)
	_, err = models.GetRole(ctx, role.ID)
	assert.ErrorIs(t, err, utils.ErrorRecordNotFound)

	roles, err := models.ListRoles(ctx)
	require.NoError(t, err)
	assert.Empty(t, roles)
}
