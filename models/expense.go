package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mmdatafocus/church_backend/config"
	"github.com/mmdatafocus/church_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Expense struct {
	ID            int             `gorm:"primary_key" json:"id"`
	BudgetId      *int            `gorm:"index" json:"budget_id"`
	Category      string          `gorm:"size:50;not null;index" json:"category"`
	Description   string          `gorm:"type:text;not null" json:"description"`
	Amount        decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"amount"`
	ExpenseDate   time.Time       `gorm:"not null;index" json:"expense_date"`
	Vendor        string          `gorm:"size:150" json:"vendor"`
	PaymentMethod PaymentMethod   `gorm:"size:20" json:"payment_method"`
	ReceiptUrl    string          `gorm:"size:500" json:"receipt_url"`
	Status        ExpenseStatus   `gorm:"size:20;not null;index" json:"status"`
	ApprovedBy    *int            `json:"approved_by"`
	ApprovedAt    *time.Time      `json:"approved_at"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (e Expense) GetId() int {
	return e.ID
}

func (e *Expense) AfterCreate(tx *gorm.DB) error {
	return SaveHistoryCreate(tx, e.ID, e, fmt.Sprintf("Created expense of %s", e.Amount.StringFixed(2)))
}

func (e *Expense) AfterDelete(tx *gorm.DB) error {
	return SaveHistoryDelete(tx, e.ID, e, fmt.Sprintf("Deleted expense of %s", e.Amount.StringFixed(2)))
}

type NewExpense struct {
	BudgetId      *int            `json:"budget_id"`
	Category      string          `json:"category" binding:"required,max=50"`
	Description   string          `json:"description" binding:"required"`
	Amount        decimal.Decimal `json:"amount"`
	ExpenseDate   time.Time       `json:"expense_date" binding:"required"`
	Vendor        string          `json:"vendor" binding:"max=150"`
	PaymentMethod PaymentMethod   `json:"payment_method" binding:"omitempty,oneof=cash check card bank_transfer online"`
	ReceiptUrl    string          `json:"receipt_url" binding:"omitempty,max=500"`
}

type ExpenseFilter struct {
	BudgetId int        `form:"budget_id" json:"budget_id"`
	Category string     `form:"category" json:"category"`
	Status   string     `form:"status" json:"status"`
	From     *time.Time `form:"from" time_format:"2006-01-02" json:"from"`
	To       *time.Time `form:"to" time_format:"2006-01-02" json:"to"`
	PageParams
}

// validate checks the expense against its budget: it must exist, be open and cover the date.
func (input *NewExpense) validate(ctx context.Context) error {
	if err := utils.ValidateStruct(input); err != nil {
		return err
	}
	v := &utils.ValidationError{}
	if !input.Amount.IsPositive() {
		v.Add("amount", "must be greater than 0")
	}
	if input.BudgetId != nil && *input.BudgetId != 0 {
		budget, err := utils.FetchModel[Budget](ctx, *input.BudgetId)
		switch {
		case errors.Is(err, utils.ErrorRecordNotFound):
			v.Add("budget_id", "does not exist")
		case err != nil:
			return err
		case budget.Status == BudgetStatusClosed:
			return utils.NewBusinessError("budget %s is closed", budget.Name)
		case !budget.covers(input.ExpenseDate):
			v.Add("expense_date", "must fall within the budget period")
		}
	}
	return v.OrNil()
}

func CreateExpense(ctx context.Context, input *NewExpense) (*Expense, error) {
	if err := input.validate(ctx); err != nil {
		return nil, err
	}
	expense := Expense{
		BudgetId:      zeroAsNil(input.BudgetId),
		Category:      input.Category,
		Description:   input.Description,
		Amount:        input.Amount,
		ExpenseDate:   input.ExpenseDate,
		Vendor:        input.Vendor,
		PaymentMethod: input.PaymentMethod,
		ReceiptUrl:    input.ReceiptUrl,
		Status:        ExpenseStatusPending,
	}
	if err := config.GetDB().WithContext(ctx).Create(&expense).Error; err != nil {
		return nil, err
	}
	if err := utils.RemoveRedisList[Expense](); err != nil {
		return nil, err
	}
	return &expense, nil
}

// UpdateExpense edits an expense; approved or paid ones move their spend between budgets.
func UpdateExpense(ctx context.Context, id int, input *NewExpense) (*Expense, error) {
	if err := utils.ValidateResourceId[Expense](ctx, id); err != nil {
		return nil, err
	}
	if err := input.validate(ctx); err != nil {
		return nil, err
	}
	return mutateExpense(ctx, id, "Updated expense", func(tx *gorm.DB, before *Expense) error {
		return tx.Model(&Expense{}).Where("id = ?", before.ID).Updates(map[string]interface{}{
			"budget_id":      zeroAsNil(input.BudgetId),
			"category":       input.Category,
			"description":    input.Description,
			"amount":         input.Amount,
			"expense_date":   input.ExpenseDate,
			"vendor":         input.Vendor,
			"payment_method": input.PaymentMethod,
			"receipt_url":    input.ReceiptUrl,
		}).Error
	})
}

// mutateExpense locks the row, applies change, then moves ledger spend from before to after.
func mutateExpense(ctx context.Context, id int, description string, change func(tx *gorm.DB, before *Expense) error) (*Expense, error) {
	var after Expense
	var touched LedgerTargets
	err := withTx(ctx, func(tx *gorm.DB) error {
		before, err := utils.LockModel[Expense](tx, id)
		if err != nil {
			return err
		}
		if err := change(tx, before); err != nil {
			return err
		}
		if err := tx.First(&after, id).Error; err != nil {
			return err
		}
		touched, err = ApplyExpenseChange(tx, before, &after)
		if err != nil {
			return err
		}
		return SaveHistoryUpdate(tx, "expenses", id, before, &after, description)
	})
	if err != nil {
		return nil, err
	}
	touched.Invalidate()
	if err := utils.RemoveRedisBoth[Expense](id); err != nil {
		return nil, err
	}
	return &after, nil
}

func transitionExpense(ctx context.Context, id int, from ExpenseStatus, to ExpenseStatus) (*Expense, error) {
	expense, err := utils.FetchModel[Expense](ctx, id)
	if err != nil {
		return nil, err
	}
	if expense.Status != from {
		return nil, utils.NewBusinessError("expense is %s; only %s expenses can become %s", expense.Status, from, to)
	}
	if to == ExpenseStatusApproved && expense.BudgetId != nil {
		budget, err := utils.FetchModel[Budget](ctx, *expense.BudgetId)
		if err != nil {
			return nil, err
		}
		if budget.Status == BudgetStatusClosed {
			return nil, utils.NewBusinessError("budget %s is closed", budget.Name)
		}
	}
	return mutateExpense(ctx, id, fmt.Sprintf("expense %s -> %s", from, to), func(tx *gorm.DB, before *Expense) error {
		if before.Status != from {
			return utils.NewBusinessError("expense is %s; only %s expenses can become %s", before.Status, from, to)
		}
		updates := map[string]interface{}{"status": to}
		if to == ExpenseStatusApproved {
			userId, _ := utils.GetUserIdFromContext(ctx)
			now := time.Now().UTC()
			updates["approved_by"] = zeroAsNil(&userId)
			updates["approved_at"] = &now
		}
		return tx.Model(&Expense{}).Where("id = ?", before.ID).Updates(updates).Error
	})
}

func ApproveExpense(ctx context.Context, id int) (*Expense, error) {
	return transitionExpense(ctx, id, ExpenseStatusPending, ExpenseStatusApproved)
}

func RejectExpense(ctx context.Context, id int) (*Expense, error) {
	return transitionExpense(ctx, id, ExpenseStatusPending, ExpenseStatusRejected)
}

func MarkExpensePaid(ctx context.Context, id int) (*Expense, error) {
	return transitionExpense(ctx, id, ExpenseStatusApproved, ExpenseStatusPaid)
}

func DeleteExpense(ctx context.Context, id int) (*Expense, error) {
	if err := utils.ValidateResourceId[Expense](ctx, id); err != nil {
		return nil, err
	}
	var expense *Expense
	var touched LedgerTargets
	err := withTx(ctx, func(tx *gorm.DB) error {
		var err error
		expense, err = utils.LockModel[Expense](tx, id)
		if err != nil {
			return err
		}
		if err := tx.Delete(expense).Error; err != nil {
			return err
		}
		touched, err = ApplyExpenseChange(tx, expense, nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	touched.Invalidate()
	if err := utils.RemoveRedisBoth[Expense](id); err != nil {
		return nil, err
	}
	return expense, nil
}

// SetExpenseReceipt stores an uploaded receipt and links it to the expense.
func SetExpenseReceipt(ctx context.Context, id int, filename string, data []byte, contentType string) (*Expense, error) {
	expense, err := utils.FetchModel[Expense](ctx, id)
	if err != nil {
		return nil, err
	}
	name := fmt.Sprintf("expenses/%d/%s_%s", id, utils.GenerateUniqueFilename(), sanitizeFilename(filename))
	url, err := utils.StoreObject(ctx, name, data, contentType)
	if err != nil {
		return nil, err
	}
	if err := config.GetDB().WithContext(ctx).Model(expense).Update("receipt_url", url).Error; err != nil {
		return nil, err
	}
	if err := utils.RemoveRedisBoth[Expense](id); err != nil {
		return nil, err
	}
	return utils.FetchModel[Expense](ctx, id)
}

func GetExpense(ctx context.Context, id int) (*Expense, error) {
	return GetResource[Expense](ctx, id)
}

func (filter ExpenseFilter) apply(q *gorm.DB) *gorm.DB {
	if filter.BudgetId > 0 {
		q = q.Where("budget_id = ?", filter.BudgetId)
	}
	if filter.Category != "" {
		q = q.Where("category = ?", filter.Category)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.From != nil {
		q = q.Where("expense_date >= ?", utils.StartOfDay(*filter.From))
	}
	if filter.To != nil {
		q = q.Where("expense_date < ?", utils.StartOfDay(*filter.To).AddDate(0, 0, 1))
	}
	return q
}

func ListExpenses(ctx context.Context, filter ExpenseFilter) (*Page[Expense], error) {
	return utils.RememberList[Expense](filter, func() (*Page[Expense], error) {
		q := filter.apply(config.GetDB().WithContext(ctx).Model(&Expense{}))
		return Paginate[Expense](q, filter.PageParams, "expense_date DESC, id DESC")
	})
}
