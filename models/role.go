package models

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/mmdatafocus/church_backend/config"
	"github.com/mmdatafocus/church_backend/utils"
	"gorm.io/gorm"
)

// ModuleActions is the permission catalogue: module name -> actions it supports.
var ModuleActions = map[string][]string{
	"members":             {"read", "create", "update", "delete"},
	"groups":              {"read", "create", "update", "delete"},
	"events":              {"read", "create", "update", "delete"},
	"donations":           {"read", "create", "update", "delete", "export"},
	"campaigns":           {"read", "create", "update", "delete"},
	"projects":            {"read", "create", "update", "delete"},
	"pledges":             {"read", "create", "update", "delete"},
	"recurring_donations": {"read", "create", "update", "delete"},
	"budgets":             {"read", "create", "update", "delete"},
	"expenses":            {"read", "create", "update", "delete"},
	"tax_receipts":        {"read", "create", "update", "delete"},
	"payments":            {"read", "create"},
	"reports":             {"read", "export"},
	"users":               {"read", "create", "update", "delete"},
	"roles":               {"read", "create", "update", "delete"},
	"ledger":              {"read", "update"},
	"history":             {"read"},
}

type Role struct {
	ID          int           `gorm:"primary_key" json:"id"`
	Name        string        `gorm:"size:100;not null;uniqueIndex" json:"name"`
	RoleModules []*RoleModule `gorm:"foreignKey:RoleId" json:"role_modules"`
	CreatedAt   time.Time     `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time     `gorm:"autoUpdateTime" json:"updated_at"`
}

func (r Role) GetId() int {
	return r.ID
}

type RoleModule struct {
	ID             int    `gorm:"primary_key" json:"id"`
	RoleId         int    `gorm:"index;not null" json:"role_id"`
	ModuleName     string `gorm:"size:50;not null" json:"module_name"`
	AllowedActions string `gorm:"size:255;not null" json:"allowed_actions"`
}

type NewRole struct {
	Name           string              `json:"name" binding:"required,max=100"`
	AllowedModules []*NewAllowedModule `json:"allowed_modules" binding:"required,dive"`
}

type NewAllowedModule struct {
	ModuleName     string `json:"module_name" binding:"required"`
	AllowedActions string `json:"allowed_actions" binding:"required"`
}

func extractModuleActions(s string) []string {
	var actions []string
	for _, a := range strings.Split(strings.ToLower(s), ";") {
		if a = strings.TrimSpace(a); a != "" {
			actions = append(actions, a)
		}
	}
	return actions
}

func rolePermissionsKey(roleId int) string {
	return "RolePermissions:" + fmt.Sprint(roleId)
}

// GetPermissionsFromRole returns the set of "module.action" strings granted to a role.
func GetPermissionsFromRole(ctx context.Context, roleId int) (map[string]bool, error) {
	return utils.Remember(rolePermissionsKey(roleId), utils.GetCacheLifespan(), func() (map[string]bool, error) {
		var role Role
		err := config.GetDB().WithContext(ctx).Preload("RoleModules").First(&role, roleId).Error
		if err != nil {
			return nil, utils.ErrorRecordNotFound
		}
		permissions := make(map[string]bool)
		for _, rm := range role.RoleModules {
			valid := ModuleActions[rm.ModuleName]
			for _, action := range extractModuleActions(rm.AllowedActions) {
				if slices.Contains(valid, action) {
					permissions[rm.ModuleName+"."+action] = true
				}
			}
		}
		return permissions, nil
	})
}

func (input *NewRole) validate(ctx context.Context, id int) error {
	if err := utils.ValidateStruct(input); err != nil {
		return err
	}
	v := &utils.ValidationError{}
	for i, am := range input.AllowedModules {
		valid, ok := ModuleActions[am.ModuleName]
		if !ok {
			v.Add(fmt.Sprintf("allowed_modules[%d].module_name", i), "unknown module "+am.ModuleName)
			continue
		}
		for _, action := range extractModuleActions(am.AllowedActions) {
			if !slices.Contains(valid, action) {
				v.Add(fmt.Sprintf("allowed_modules[%d].allowed_actions", i), "unknown action "+action)
			}
		}
	}
	if err := v.OrNil(); err != nil {
		return err
	}
	return utils.ValidateUnique[Role](ctx, "name", input.Name, id)
}

func mapRoleModules(roleId int, input []*NewAllowedModule) []*RoleModule {
	var result []*RoleModule
	for _, am := range input {
		result = append(result, &RoleModule{
			RoleId:         roleId,
			ModuleName:     am.ModuleName,
			AllowedActions: strings.Join(extractModuleActions(am.AllowedActions), ";"),
		})
	}
	return result
}

func CreateRole(ctx context.Context, input *NewRole) (*Role, error) {
	if err := input.validate(ctx, 0); err != nil {
		return nil, err
	}
	role := Role{Name: input.Name}
	err := withTx(ctx, func(tx *gorm.DB) error {
		if err := tx.Create(&role).Error; err != nil {
			return err
		}
		role.RoleModules = mapRoleModules(role.ID, input.AllowedModules)
		if len(role.RoleModules) > 0 {
			return tx.Create(&role.RoleModules).Error
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &role, nil
}

func UpdateRole(ctx context.Context, id int, input *NewRole) (*Role, error) {
	if err := utils.ValidateResourceId[Role](ctx, id); err != nil {
		return nil, err
	}
	if err := input.validate(ctx, id); err != nil {
		return nil, err
	}
	err := withTx(ctx, func(tx *gorm.DB) error {
		if err := tx.Model(&Role{ID: id}).Update("name", input.Name).Error; err != nil {
			return err
		}
		if err := tx.Where("role_id = ?", id).Delete(&RoleModule{}).Error; err != nil {
			return err
		}
		modules := mapRoleModules(id, input.AllowedModules)
		if len(modules) > 0 {
			return tx.Create(&modules).Error
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := config.RemoveRedisKey(rolePermissionsKey(id)); err != nil {
		return nil, err
	}
	return GetRole(ctx, id)
}

func DeleteRole(ctx context.Context, id int) (*Role, error) {
	role, err := GetRole(ctx, id)
	if err != nil {
		return nil, err
	}
	count, err := utils.ResourceCountWhere[User](ctx, "role_id = ?", id)
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, utils.NewBusinessError("role is assigned to %d user(s)", count)
	}
	err = withTx(ctx, func(tx *gorm.DB) error {
		if err := tx.Where("role_id = ?", id).Delete(&RoleModule{}).Error; err != nil {
			return err
		}
		return tx.Delete(&Role{}, id).Error
	})
	if err != nil {
		return nil, err
	}
	if err := config.RemoveRedisKey(rolePermissionsKey(id)); err != nil {
		return nil, err
	}
	return role, nil
}

func GetRole(ctx context.Context, id int) (*Role, error) {
	return utils.FetchModel[Role](ctx, id, "RoleModules")
}

func ListRoles(ctx context.Context) ([]*Role, error) {
	var roles []*Role
	err := config.GetDB().WithContext(ctx).Preload("RoleModules").Order("name").Find(&roles).Error
	return roles, err
}
