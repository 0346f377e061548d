package models_test

import (
	"testing"

	"github.com/mmdatafocus/church_backend/models"
	"github.com/mmdatafocus/church_backend/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func expenseInput(budgetId int, value string) *models.NewExpense {
	return &models.NewExpense{
		BudgetId:      &budgetId,
		Category:      "supplies",
		Description:   "Sunday school crayons",
		Amount:        amount(value),
		ExpenseDate:   day(2025, 2, 10),
		PaymentMethod: models.PaymentMethodCard,
	}
}

func TestExpenseApprovalMovesBudgetSpend(t *testing.T) {
	ctx := setup(t)
	budget := newBudget(t, ctx, "Children", "1000")

	expense, err := models.CreateExpense(ctx, expenseInput(budget.ID, "200"))
	require.NoError(t, err)
	assert.Equal(t, models.ExpenseStatusPending, expense.Status)

	got, err := models.GetBudget(ctx, budget.ID)
	require.NoError(t, err)
	assertAmount(t, "0", got.SpentAmount)

	approved, err := models.ApproveExpense(ctx, expense.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExpenseStatusApproved, approved.Status)
	require.NotNil(t, approved.ApprovedBy)
	assert.Equal(t, 1, *approved.ApprovedBy)
	assert.NotNil(t, approved.ApprovedAt)

	got, err = models.GetBudget(ctx, budget.ID)
	require.NoError(t, err)
	assertAmount(t, "200", got.SpentAmount)
	assertAmount(t, "20", got.Utilization())
	assertAmount(t, "800", got.Variance())

	_, err = models.MarkExpensePaid(ctx, expense.ID)
	require.NoError(t, err)
	got, err = models.GetBudget(ctx, budget.ID)
	require.NoError(t, err)
	assertAmount(t, "200", got.SpentAmount)

	_, err = models.RejectExpense(ctx, expense.ID)
	var berr *utils.BusinessRuleError
	require.ErrorAs(t, err, &berr)

	_, err = models.DeleteExpense(ctx, expense.ID)
	require.NoError(t, err)
	got, err = models.GetBudget(ctx, budget.ID)
	require.NoError(t, err)
	assertAmount(t, "0", got.SpentAmount)
}

func TestRejectedExpenseNeverCounts(t *testing.T) {
	ctx := setup(t)
	budget := newBudget(t, ctx, "Worship", "500")
	expense, err := models.CreateExpense(ctx, expenseInput(budget.ID, "50"))
	require.NoError(t, err)

	_, err = models.RejectExpense(ctx, expense.ID)
	require.NoError(t, err)
	_, err = models.ApproveExpense(ctx, expense.ID)
	var berr *utils.BusinessRuleError
	require.ErrorAs(t, err, &berr)

	got, err := models.GetBudget(ctx, budget.ID)
	require.NoError(t, err)
	assertAmount(t, "0", got.SpentAmount)
}

func TestApprovedExpenseMovesBetweenBudgets(t *testing.T) {
	ctx := setup(t)
	from := newBudget(t, ctx, "Youth", "1000")
	to := newBudget(t, ctx, "Outreach", "1000")
	expense, err := models.CreateExpense(ctx, expenseInput(from.ID, "120"))
	require.NoError(t, err)
	_, err = models.ApproveExpense(ctx, expense.ID)
	require.NoError(t, err)

	_, err = models.UpdateExpense(ctx, expense.ID, expenseInput(to.ID, "150"))
	require.NoError(t, err)

	gotFrom, err := models.GetBudget(ctx, from.ID)
	require.NoError(t, err)
	gotTo, err := models.GetBudget(ctx, to.ID)
	require.NoError(t, err)
	assertAmount(t, "0", gotFrom.SpentAmount)
	assertAmount(t, "150", gotTo.SpentAmount)
}

func TestExpenseOutsideBudgetPeriodIsInvalid(t *testing.T) {
	ctx := setup(t)
	budget := newBudget(t, ctx, "Facilities", "1000")
	input := expenseInput(budget.ID, "10")
	input.ExpenseDate = day(2026, 1, 5)

	_, err := models.CreateExpense(ctx, input)
	var verr *utils.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "expense_date")
}

func TestDeleteBudgetWithExpensesIsRefused(t *testing.T) {
	ctx := setup(t)
	budget := newBudget(t, ctx, "Admin", "300")
	_, err := models.CreateExpense(ctx, expenseInput(budget.ID, "30"))
	require.NoError(t, err)

	_, err = models.DeleteBudget(ctx, budget.ID)
	var berr *utils.BusinessRuleError
	require.ErrorAs(t, err, &berr)

	_, err = models.GetBudget(ctx, budget.ID)
	assert.NoError(t, err)
}

func TestBudgetNameIsUniquePerFiscalYear(t *testing.T) {
	ctx := setup(t)
	newBudget(t, ctx, "Missions", "100")

	_, err := models.CreateBudget(ctx, &models.NewBudget{
		Name:            "Missions",
		Category:        "ministry",
		FiscalYear:      2025,
		PeriodStart:     day(2025, 1, 1),
		PeriodEnd:       day(2025, 12, 31),
		AllocatedAmount: amount("100"),
	})
	var verr *utils.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "name")

	_, err = models.CreateBudget(ctx, &models.NewBudget{
		Name:            "Missions",
		Category:        "ministry",
		FiscalYear:      2026,
		PeriodStart:     day(2026, 1, 1),
		PeriodEnd:       day(2026, 12, 31),
		AllocatedAmount: amount("100"),
	})
	assert.NoError(t, err)
}
