package models

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mmdatafocus/church_backend/config"
	"github.com/mmdatafocus/church_backend/utils"
	"gorm.io/gorm"
)

type User struct {
	ID        int       `gorm:"primary_key" json:"id"`
	Username  string    `gorm:"size:100;not null;uniqueIndex" json:"username"`
	Name      string    `gorm:"size:100;not null" json:"name"`
	Email     *string   `gorm:"size:100;uniqueIndex" json:"email"`
	Password  string    `gorm:"size:255;not null" json:"-"`
	IsActive  bool      `gorm:"not null" json:"is_active"`
	RoleId    int       `gorm:"index;not null" json:"role_id"`
	Role      UserRole  `gorm:"size:1;not null" json:"role"`
	MemberId  *int      `gorm:"index" json:"member_id"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (u User) GetId() int {
	return u.ID
}

func (u User) IsAdmin() bool {
	return u.Role == UserRoleAdmin
}

type NewUser struct {
	Username string   `json:"username" binding:"required,max=100"`
	Name     string   `json:"name" binding:"required,max=100"`
	Email    string   `json:"email" binding:"omitempty,email"`
	Password string   `json:"password"`
	IsActive *bool    `json:"is_active" binding:"required"`
	RoleId   int      `json:"role_id"`
	Role     UserRole `json:"role" binding:"required,oneof=A S"`
	MemberId *int     `json:"member_id"`
}

type LoginInfo struct {
	Token       string    `json:"token"`
	ExpiresAt   time.Time `json:"expires_at"`
	User        *User     `json:"user"`
	Permissions []string  `json:"permissions"`
}

/*
caches:
	User:$id
	RevokedToken:$jti
*/

func revokedTokenKey(jti string) string {
	return "RevokedToken:" + jti
}

func IsTokenRevoked(jti string) (bool, error) {
	return config.ExistsRedisKey(revokedTokenKey(jti))
}

var errInvalidLogin = fmt.Errorf("%w: invalid username or password", utils.ErrUnauthorized)

func Login(ctx context.Context, username string, password string) (*LoginInfo, error) {
	var user User
	err := config.GetDB().WithContext(ctx).Where("username = ?", strings.TrimSpace(username)).Take(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errInvalidLogin
		}
		return nil, err
	}
	if err := utils.ComparePassword(user.Password, password); err != nil {
		return nil, errInvalidLogin
	}
	if !user.IsActive {
		return nil, utils.NewBusinessError("user is disabled")
	}

	token, _, expiresAt, err := utils.JwtGenerate(user.ID, string(user.Role))
	if err != nil {
		return nil, err
	}
	permissions, err := PermissionsForUser(ctx, &user)
	if err != nil {
		return nil, err
	}
	return &LoginInfo{
		Token:       token,
		ExpiresAt:   expiresAt,
		User:        &user,
		Permissions: permissions,
	}, nil
}

// PermissionsForUser lists granted permissions; admins get every catalogued one.
func PermissionsForUser(ctx context.Context, user *User) ([]string, error) {
	var result []string
	if user.IsAdmin() {
		for module, actions := range ModuleActions {
			for _, a := range actions {
				result = append(result, module+"."+a)
			}
		}
		return result, nil
	}
	if user.RoleId == 0 {
		return result, nil
	}
	perms, err := GetPermissionsFromRole(ctx, user.RoleId)
	if err != nil {
		return nil, err
	}
	for p := range perms {
		result = append(result, p)
	}
	return result, nil
}

// Logout revokes the token in ctx until it would have expired anyway.
func Logout(ctx context.Context, expiresAt time.Time) error {
	jti, ok := utils.GetTokenIdFromContext(ctx)
	if !ok || jti == "" {
		return utils.ErrUnauthorized
	}
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}
	return config.SetRedisValue(revokedTokenKey(jti), "1", ttl)
}

func (input *NewUser) validate(ctx context.Context, id int) error {
	if err := utils.ValidateStruct(input); err != nil {
		return err
	}
	v := &utils.ValidationError{}
	if id == 0 && len(input.Password) < utils.MinPasswordLength {
		v.Add("password", fmt.Sprintf("must be at least %d characters", utils.MinPasswordLength))
	}
	if id != 0 && input.Password != "" && len(input.Password) < utils.MinPasswordLength {
		v.Add("password", fmt.Sprintf("must be at least %d characters", utils.MinPasswordLength))
	}
	if input.Role == UserRoleStaff && input.RoleId == 0 {
		v.Add("role_id", "is required for staff users")
	}
	if err := utils.ValidateOptionalReference[Role](ctx, v, "role_id", &input.RoleId); err != nil {
		return err
	}
	if err := utils.ValidateOptionalReference[Member](ctx, v, "member_id", input.MemberId); err != nil {
		return err
	}
	if err := v.OrNil(); err != nil {
		return err
	}
	if err := utils.ValidateUnique[User](ctx, "username", input.Username, id); err != nil {
		return err
	}
	if input.Email != "" {
		return utils.ValidateUnique[User](ctx, "email", input.Email, id)
	}
	return nil
}

func CreateUser(ctx context.Context, input *NewUser) (*User, error) {
	if err := input.validate(ctx, 0); err != nil {
		return nil, err
	}
	hashed, err := utils.HashPassword(input.Password)
	if err != nil {
		return nil, err
	}
	user := User{
		Username: strings.TrimSpace(input.Username),
		Name:     input.Name,
		Email:    utils.NilIfEmpty(input.Email),
		Password: string(hashed),
		IsActive: *input.IsActive,
		RoleId:   input.RoleId,
		Role:     input.Role,
		MemberId: input.MemberId,
	}
	if err := config.GetDB().WithContext(ctx).Create(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func UpdateUser(ctx context.Context, id int, input *NewUser) (*User, error) {
	user, err := utils.FetchModel[User](ctx, id)
	if err != nil {
		return nil, err
	}
	if err := input.validate(ctx, id); err != nil {
		return nil, err
	}
	updates := map[string]interface{}{
		"username":  strings.TrimSpace(input.Username),
		"name":      input.Name,
		"email":     utils.NilIfEmpty(input.Email),
		"is_active": *input.IsActive,
		"role_id":   input.RoleId,
		"role":      input.Role,
		"member_id": input.MemberId,
	}
	if input.Password != "" {
		hashed, err := utils.HashPassword(input.Password)
		if err != nil {
			return nil, err
		}
		updates["password"] = string(hashed)
	}
	if err := config.GetDB().WithContext(ctx).Model(user).Updates(updates).Error; err != nil {
		return nil, err
	}
	if err := utils.RemoveRedisItem[User](id); err != nil {
		return nil, err
	}
	return utils.FetchModel[User](ctx, id)
}

func ChangePassword(ctx context.Context, id int, current string, next string) error {
	user, err := utils.FetchModel[User](ctx, id)
	if err != nil {
		return err
	}
	if err := utils.ComparePassword(user.Password, current); err != nil {
		return utils.NewValidationError("current_password", "is incorrect")
	}
	if len(next) < utils.MinPasswordLength {
		return utils.NewValidationError("new_password", fmt.Sprintf("must be at least %d characters", utils.MinPasswordLength))
	}
	hashed, err := utils.HashPassword(next)
	if err != nil {
		return err
	}
	return config.GetDB().WithContext(ctx).Model(user).Update("password", string(hashed)).Error
}

func DeleteUser(ctx context.Context, id int) (*User, error) {
	user, err := utils.FetchModel[User](ctx, id)
	if err != nil {
		return nil, err
	}
	if currentId, _ := utils.GetUserIdFromContext(ctx); currentId == id {
		return nil, utils.NewBusinessError("cannot delete the signed-in user")
	}
	if err := config.GetDB().WithContext(ctx).Delete(user).Error; err != nil {
		return nil, err
	}
	if err := utils.RemoveRedisItem[User](id); err != nil {
		return nil, err
	}
	return user, nil
}

func GetUser(ctx context.Context, id int) (*User, error) {
	return GetResource[User](ctx, id)
}

func ListUsers(ctx context.Context, params PageParams) (*Page[User], error) {
	q := config.GetDB().WithContext(ctx).Model(&User{})
	return Paginate[User](q, params, "username")
}
