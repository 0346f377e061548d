package models

import (
	"context"
	"strings"
	"time"

	"github.com/mmdatafocus/church_backend/config"
	"github.com/mmdatafocus/church_backend/utils"
	"github.com/shopspring/decimal"
)

type Campaign struct {
	ID           int             `gorm:"primary_key" json:"id"`
	Name         string          `gorm:"size:150;not null;uniqueIndex" json:"name"`
	Description  string          `gorm:"type:text" json:"description"`
	GoalAmount   decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"goal_amount"`
	RaisedAmount decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"raised_amount"`
	StartDate    time.Time       `gorm:"not null" json:"start_date"`
	EndDate      time.Time       `gorm:"not null" json:"end_date"`
	Status       CampaignStatus  `gorm:"size:20;not null;index" json:"status"`
	Version      int             `gorm:"not null;default:0" json:"version"`
	CreatedAt    time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (c Campaign) GetId() int {
	return c.ID
}

// Progress is the goal tracking view shared by campaigns and projects.
type Progress struct {
	Goal       decimal.Decimal `json:"goal"`
	Raised     decimal.Decimal `json:"raised"`
	Remaining  decimal.Decimal `json:"remaining"`
	Percentage decimal.Decimal `json:"percentage"`
}

func NewProgress(goal, raised decimal.Decimal) Progress {
	remaining := goal.Sub(raised)
	if remaining.IsNegative() {
		remaining = decimal.Zero
	}
	return Progress{
		Goal:       goal,
		Raised:     raised,
		Remaining:  remaining,
		Percentage: utils.Percentage(raised, goal),
	}
}

func (c Campaign) Progress() Progress {
	return NewProgress(c.GoalAmount, c.RaisedAmount)
}

type NewCampaign struct {
	Name        string          `json:"name" binding:"required,max=150"`
	Description string          `json:"description"`
	GoalAmount  decimal.Decimal `json:"goal_amount"`
	StartDate   time.Time       `json:"start_date" binding:"required"`
	EndDate     time.Time       `json:"end_date" binding:"required"`
	Status      CampaignStatus  `json:"status" binding:"omitempty,oneof=draft active completed cancelled"`
}

type CampaignFilter struct {
	Status string `form:"status" json:"status"`
	PageParams
}

func (input *NewCampaign) validate(ctx context.Context, id int) error {
	if err := utils.ValidateStruct(input); err != nil {
		return err
	}
	v := &utils.ValidationError{}
	if !input.GoalAmount.IsPositive() {
		v.Add("goal_amount", "must be greater than 0")
	}
	if input.EndDate.Before(input.StartDate) {
		v.Add("end_date", "must be on or after start_date")
	}
	if err := v.OrNil(); err != nil {
		return err
	}
	if input.Status == "" {
		input.Status = CampaignStatusDraft
	}
	return utils.ValidateUnique[Campaign](ctx, "name", strings.TrimSpace(input.Name), id)
}

func CreateCampaign(ctx context.Context, input *NewCampaign) (*Campaign, error) {
	if err := input.validate(ctx, 0); err != nil {
		return nil, err
	}
	campaign := Campaign{
		Name:         strings.TrimSpace(input.Name),
		Description:  input.Description,
		GoalAmount:   input.GoalAmount,
		RaisedAmount: decimal.Zero,
		StartDate:    input.StartDate,
		EndDate:      input.EndDate,
		Status:       input.Status,
	}
	if err := config.GetDB().WithContext(ctx).Create(&campaign).Error; err != nil {
		return nil, err
	}
	if err := utils.RemoveRedisList[Campaign](); err != nil {
		return nil, err
	}
	return &campaign, nil
}

// UpdateCampaign never touches raised_amount; only the ledger writes it.
func UpdateCampaign(ctx context.Context, id int, input *NewCampaign) (*Campaign, error) {
	campaign, err := utils.FetchModel[Campaign](ctx, id)
	if err != nil {
		return nil, err
	}
	if err := input.validate(ctx, id); err != nil {
		return nil, err
	}
	err = config.GetDB().WithContext(ctx).Model(campaign).Updates(map[string]interface{}{
		"name":        strings.TrimSpace(input.Name),
		"description": input.Description,
		"goal_amount": input.GoalAmount,
		"start_date":  input.StartDate,
		"end_date":    input.EndDate,
		"status":      input.Status,
	}).Error
	if err != nil {
		return nil, err
	}
	if err := utils.RemoveRedisBoth[Campaign](id); err != nil {
		return nil, err
	}
	return utils.FetchModel[Campaign](ctx, id)
}

func DeleteCampaign(ctx context.Context, id int) (*Campaign, error) {
	campaign, err := utils.FetchModel[Campaign](ctx, id)
	if err != nil {
		return nil, err
	}
	if err := refuseWhenReferenced(ctx, "campaign_id", id, "campaign"); err != nil {
		return nil, err
	}
	if err := config.GetDB().WithContext(ctx).Delete(campaign).Error; err != nil {
		return nil, err
	}
	if err := utils.RemoveRedisBoth[Campaign](id); err != nil {
		return nil, err
	}
	return campaign, nil
}

// refuseWhenReferenced blocks deleting a campaign/project that donations, pledges or recurring donations point at.
func refuseWhenReferenced(ctx context.Context, column string, id int, label string) error {
	count, err := utils.ResourceCountWhere[Donation](ctx, column+" = ?", id)
	if err != nil {
		return err
	}
	if count > 0 {
		return utils.NewBusinessError("%s has %d donation(s)", label, count)
	}
	count, err = utils.ResourceCountWhere[Pledge](ctx, column+" = ?", id)
	if err != nil {
		return err
	}
	if count > 0 {
		return utils.NewBusinessError("%s has %d pledge(s)", label, count)
	}
	count, err = utils.ResourceCountWhere[RecurringDonation](ctx, column+" = ?", id)
	if err != nil {
		return err
	}
	if count > 0 {
		return utils.NewBusinessError("%s has %d recurring donation(s)", label, count)
	}
	return nil
}

func GetCampaign(ctx context.Context, id int) (*Campaign, error) {
	return GetResource[Campaign](ctx, id)
}

func ListCampaigns(ctx context.Context, filter CampaignFilter) (*Page[Campaign], error) {
	return utils.RememberList[Campaign](filter, func() (*Page[Campaign], error) {
		q := config.GetDB().WithContext(ctx).Model(&Campaign{})
		if filter.Status != "" {
			q = q.Where("status = ?", filter.Status)
		}
		return Paginate[Campaign](q, filter.PageParams, "start_date DESC, id DESC")
	})
}
