package models

import (
	"context"
	"strings"
	"time"

	"github.com/mmdatafocus/church_backend/config"
	"github.com/mmdatafocus/church_backend/utils"
	"github.com/shopspring/decimal"
)

type Project struct {
	ID            int             `gorm:"primary_key" json:"id"`
	Name          string          `gorm:"size:150;not null;uniqueIndex" json:"name"`
	Description   string          `gorm:"type:text" json:"description"`
	TargetAmount  decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"target_amount"`
	CurrentAmount decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"current_amount"`
	StartDate     time.Time       `gorm:"not null" json:"start_date"`
	EndDate       *time.Time      `json:"end_date"`
	Status        ProjectStatus   `gorm:"size:20;not null;index" json:"status"`
	Version       int             `gorm:"not null;default:0" json:"version"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (p Project) GetId() int {
	return p.ID
}

func (p Project) Progress() Progress {
	return NewProgress(p.TargetAmount, p.CurrentAmount)
}

type NewProject struct {
	Name         string          `json:"name" binding:"required,max=150"`
	Description  string          `json:"description"`
	TargetAmount decimal.Decimal `json:"target_amount"`
	StartDate    time.Time       `json:"start_date" binding:"required"`
	EndDate      *time.Time      `json:"end_date"`
	Status       ProjectStatus   `json:"status" binding:"omitempty,oneof=planning active completed on_hold"`
}

type ProjectFilter struct {
	Status string `form:"status" json:"status"`
	PageParams
}

func (input *NewProject) validate(ctx context.Context, id int) error {
	if err := utils.ValidateStruct(input); err != nil {
		return err
	}
	v := &utils.ValidationError{}
	if !input.TargetAmount.IsPositive() {
		v.Add("target_amount", "must be greater than 0")
	}
	if input.EndDate != nil && input.EndDate.Before(input.StartDate) {
		v.Add("end_date", "must be on or after start_date")
	}
	if err := v.OrNil(); err != nil {
		return err
	}
	if input.Status == "" {
		input.Status = ProjectStatusPlanning
	}
	return utils.ValidateUnique[Project](ctx, "name", strings.TrimSpace(input.Name), id)
}

func CreateProject(ctx context.Context, input *NewProject) (*Project, error) {
	if err := input.validate(ctx, 0); err != nil {
		return nil, err
	}
	project := Project{
		Name:          strings.TrimSpace(input.Name),
		Description:   input.Description,
		TargetAmount:  input.TargetAmount,
		CurrentAmount: decimal.Zero,
		StartDate:     input.StartDate,
		EndDate:       input.EndDate,
		Status:        input.Status,
	}
	if err := config.GetDB().WithContext(ctx).Create(&project).Error; err != nil {
		return nil, err
	}
	if err := utils.RemoveRedisList[Project](); err != nil {
		return nil, err
	}
	return &project, nil
}

func UpdateProject(ctx context.Context, id int, input *NewProject) (*Project, error) {
	project, err := utils.FetchModel[Project](ctx, id)
	if err != nil {
		return nil, err
	}
	if err := input.validate(ctx, id); err != nil {
		return nil, err
	}
	err = config.GetDB().WithContext(ctx).Model(project).Updates(map[string]interface{}{
		"name":          strings.TrimSpace(input.Name),
		"description":   input.Description,
		"target_amount": input.TargetAmount,
		"start_date":    input.StartDate,
		"end_date":      input.EndDate,
		"status":        input.Status,
	}).Error
	if err != nil {
		return nil, err
	}
	if err := utils.RemoveRedisBoth[Project](id); err != nil {
		return nil, err
	}
	return utils.FetchModel[Project](ctx, id)
}

func DeleteProject(ctx context.Context, id int) (*Project, error) {
	project, err := utils.FetchModel[Project](ctx, id)
	if err != nil {
		return nil, err
	}
	if err := refuseWhenReferenced(ctx, "project_id", id, "project"); err != nil {
		return nil, err
	}
	if err := config.GetDB().WithContext(ctx).Delete(project).Error; err != nil {
		return nil, err
	}
	if err := utils.RemoveRedisBoth[Project](id); err != nil {
		return nil, err
	}
	return project, nil
}

func GetProject(ctx context.Context, id int) (*Project, error) {
	return GetResource[Project](ctx, id)
}

func ListProjects(ctx context.Context, filter ProjectFilter) (*Page[Project], error) {
	return utils.RememberList[Project](filter, func() (*Page[Project], error) {
		q := config.GetDB().WithContext(ctx).Model(&Project{})
		if filter.Status != "" {
			q = q.Where("status = ?", filter.Status)
		}
		return Paginate[Project](q, filter.PageParams, "start_date DESC, id DESC")
	})
}
