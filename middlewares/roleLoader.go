package middlewares

import (
	"context"

	"github.com/graph-gophers/dataloader/v7"
	"github.com/mmdatafocus/church_backend/config"
	"github.com/mmdatafocus/church_backend/models"
)

func getRoles(ctx context.Context, ids []int) []*dataloader.Result[*models.Role] {
	var results []*models.Role
	err := config.GetDB().WithContext(ctx).Where("id IN ?", ids).Find(&results).Error
	if err != nil {
		return handleError[*models.Role](len(ids), err)
	}
	return generateLoaderResults(results, ids)
}

func GetRole(ctx context.Context, id int) (*models.Role, error) {
	loaders := For(ctx)
	return loaders.RoleLoader.Load(ctx, id)()
}

// RoleNames maps role id to name for the users listed.
func RoleNames(ctx context.Context, users []*models.User) (map[int]string, error) {
	var ids []int
	for _, u := range users {
		if u.RoleId != 0 {
			ids = append(ids, u.RoleId)
		}
	}
	out := make(map[int]string, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	roles, errs := For(ctx).RoleLoader.LoadMany(ctx, ids)()
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	for i, r := range roles {
		if r != nil {
			out[ids[i]] = r.Name
		}
	}
	return out, nil
}
