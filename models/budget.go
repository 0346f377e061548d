package models

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mmdatafocus/church_backend/config"
	"github.com/mmdatafocus/church_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Budget struct {
	ID              int             `gorm:"primary_key" json:"id"`
	Name            string          `gorm:"size:150;not null;uniqueIndex:idx_budget_name_year,priority:1" json:"name"`
	Category        string          `gorm:"size:50;not null;index" json:"category"`
	FiscalYear      int             `gorm:"not null;index;uniqueIndex:idx_budget_name_year,priority:2" json:"fiscal_year"`
	PeriodStart     time.Time       `gorm:"not null" json:"period_start"`
	PeriodEnd       time.Time       `gorm:"not null" json:"period_end"`
	AllocatedAmount decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"allocated_amount"`
	SpentAmount     decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"spent_amount"`
	Status          BudgetStatus    `gorm:"size:20;not null;index" json:"status"`
	Notes           string          `gorm:"type:text" json:"notes"`
	Version         int             `gorm:"not null;default:0" json:"version"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (b Budget) GetId() int {
	return b.ID
}

func (b *Budget) AfterCreate(tx *gorm.DB) error {
	return SaveHistoryCreate(tx, b.ID, b, fmt.Sprintf("Created budget %s (%d)", b.Name, b.FiscalYear))
}

func (b *Budget) AfterDelete(tx *gorm.DB) error {
	return SaveHistoryDelete(tx, b.ID, b, fmt.Sprintf("Deleted budget %s (%d)", b.Name, b.FiscalYear))
}

// Utilization is spent/allocated as a percentage.
func (b Budget) Utilization() decimal.Decimal {
	return utils.Percentage(b.SpentAmount, b.AllocatedAmount)
}

// Variance is allocated - spent; positive means under budget.
func (b Budget) Variance() decimal.Decimal {
	return b.AllocatedAmount.Sub(b.SpentAmount)
}

func (b Budget) Remaining() decimal.Decimal {
	return b.AllocatedAmount.Sub(b.SpentAmount)
}

func (b Budget) covers(t time.Time) bool {
	day := utils.StartOfDay(t)
	return !day.Before(utils.StartOfDay(b.PeriodStart)) && !day.After(utils.StartOfDay(b.PeriodEnd))
}

type NewBudget struct {
	Name            string          `json:"name" binding:"required,max=150"`
	Category        string          `json:"category" binding:"required,max=50"`
	FiscalYear      int             `json:"fiscal_year" binding:"required,gte=1900,max=9999"`
	PeriodStart     time.Time       `json:"period_start" binding:"required"`
	PeriodEnd       time.Time       `json:"period_end" binding:"required"`
	AllocatedAmount decimal.Decimal `json:"allocated_amount"`
	Status          BudgetStatus    `json:"status" binding:"omitempty,oneof=draft active closed"`
	Notes           string          `json:"notes"`
}

type BudgetFilter struct {
	Category   string `form:"category" json:"category"`
	FiscalYear int    `form:"fiscal_year" json:"fiscal_year"`
	Status     string `form:"status" json:"status"`
	PageParams
}

func (input *NewBudget) validate(ctx context.Context, id int) error {
	if err := utils.ValidateStruct(input); err != nil {
		return err
	}
	v := &utils.ValidationError{}
	if !input.AllocatedAmount.IsPositive() {
		v.Add("allocated_amount", "must be greater than 0")
	}
	if input.PeriodEnd.Before(input.PeriodStart) {
		v.Add("period_end", "must be on or after period_start")
	}
	if err := v.OrNil(); err != nil {
		return err
	}
	if input.Status == "" {
		input.Status = BudgetStatusDraft
	}
	input.Name = strings.TrimSpace(input.Name)
	var count int64
	var err error
	if id == 0 {
		count, err = utils.ResourceCountWhere[Budget](ctx, "name = ? AND fiscal_year = ?", input.Name, input.FiscalYear)
	} else {
		count, err = utils.ResourceCountWhere[Budget](ctx, "name = ? AND fiscal_year = ? AND NOT id = ?", input.Name, input.FiscalYear, id)
	}
	if err != nil {
		return err
	}
	if count > 0 {
		return utils.NewValidationError("name", "has already been taken for this fiscal year")
	}
	return nil
}

func CreateBudget(ctx context.Context, input *NewBudget) (*Budget, error) {
	if err := input.validate(ctx, 0); err != nil {
		return nil, err
	}
	budget := Budget{
		Name:            input.Name,
		Category:        input.Category,
		FiscalYear:      input.FiscalYear,
		PeriodStart:     input.PeriodStart,
		PeriodEnd:       input.PeriodEnd,
		AllocatedAmount: input.AllocatedAmount,
		SpentAmount:     decimal.Zero,
		Status:          input.Status,
		Notes:           input.Notes,
	}
	if err := config.GetDB().WithContext(ctx).Create(&budget).Error; err != nil {
		return nil, err
	}
	if err := utils.RemoveRedisList[Budget](); err != nil {
		return nil, err
	}
	return &budget, nil
}

// UpdateBudget never touches spent_amount; the period may not shrink past existing expenses.
func UpdateBudget(ctx context.Context, id int, input *NewBudget) (*Budget, error) {
	if err := utils.ValidateResourceId[Budget](ctx, id); err != nil {
		return nil, err
	}
	if err := input.validate(ctx, id); err != nil {
		return nil, err
	}
	outside, err := utils.ResourceCountWhere[Expense](ctx, "budget_id = ? AND (expense_date < ? OR expense_date >= ?)",
		id, utils.StartOfDay(input.PeriodStart), utils.StartOfDay(input.PeriodEnd).AddDate(0, 0, 1))
	if err != nil {
		return nil, err
	}
	if outside > 0 {
		return nil, utils.NewValidationError("period_end", fmt.Sprintf("%d expense(s) fall outside the new period", outside))
	}
	var after Budget
	err = withTx(ctx, func(tx *gorm.DB) error {
		before, err := utils.LockModel[Budget](tx, id)
		if err != nil {
			return err
		}
		err = tx.Model(&Budget{}).Where("id = ?", id).Updates(map[string]interface{}{
			"name":             input.Name,
			"category":         input.Category,
			"fiscal_year":      input.FiscalYear,
			"period_start":     input.PeriodStart,
			"period_end":       input.PeriodEnd,
			"allocated_amount": input.AllocatedAmount,
			"status":           input.Status,
			"notes":            input.Notes,
		}).Error
		if err != nil {
			return err
		}
		if err := tx.First(&after, id).Error; err != nil {
			return err
		}
		return SaveHistoryUpdate(tx, "budgets", id, before, &after, "Updated budget")
	})
	if err != nil {
		return nil, err
	}
	if err := utils.RemoveRedisBoth[Budget](id); err != nil {
		return nil, err
	}
	return &after, nil
}

func DeleteBudget(ctx context.Context, id int) (*Budget, error) {
	budget, err := utils.FetchModel[Budget](ctx, id)
	if err != nil {
		return nil, err
	}
	count, err := utils.ResourceCountWhere[Expense](ctx, "budget_id = ?", id)
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, utils.NewBusinessError("budget has %d expense(s)", count)
	}
	if err := config.GetDB().WithContext(ctx).Delete(budget).Error; err != nil {
		return nil, err
	}
	if err := utils.RemoveRedisBoth[Budget](id); err != nil {
		return nil, err
	}
	return budget, nil
}

func GetBudget(ctx context.Context, id int) (*Budget, error) {
	return GetResource[Budget](ctx, id)
}

func (filter BudgetFilter) apply(q *gorm.DB) *gorm.DB {
	if filter.Category != "" {
		q = q.Where("category = ?", filter.Category)
	}
	if filter.FiscalYear > 0 {
		q = q.Where("fiscal_year = ?", filter.FiscalYear)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	return q
}

func ListBudgets(ctx context.Context, filter BudgetFilter) (*Page[Budget], error) {
	return utils.RememberList[Budget](filter, func() (*Page[Budget], error) {
		q := filter.apply(config.GetDB().WithContext(ctx).Model(&Budget{}))
		return Paginate[Budget](q, filter.PageParams, "fiscal_year DESC, name, id")
	})
}

// AllBudgets returns every budget matching filter, for reports.
func AllBudgets(ctx context.Context, filter BudgetFilter) ([]*Budget, error) {
	var result []*Budget
	err := filter.apply(config.GetDB().WithContext(ctx).Model(&Budget{})).
		Order("category, name, id").
		Find(&result).Error
	return result, err
}
