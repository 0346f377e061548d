package reports

import (
	"context"

	"github.com/mmdatafocus/church_backend/models"
	"github.com/mmdatafocus/church_backend/utils"
	"github.com/shopspring/decimal"
)

type BudgetUtilizationRow struct {
	BudgetId       int                 `json:"budget_id"`
	Name           string              `json:"name"`
	Category       string              `json:"category"`
	Status         models.BudgetStatus `json:"status"`
	Allocated      decimal.Decimal     `json:"allocated"`
	Spent          decimal.Decimal     `json:"spent"`
	Remaining      decimal.Decimal     `json:"remaining"`
	UtilizationPct decimal.Decimal     `json:"utilization_percent"`
	OverBudget     bool                `json:"over_budget"`
}

type BudgetUtilizationResponse struct {
	FiscalYear     int                     `json:"fiscal_year"`
	TotalAllocated decimal.Decimal         `json:"total_allocated"`
	TotalSpent     decimal.Decimal         `json:"total_spent"`
	UtilizationPct decimal.Decimal         `json:"utilization_percent"`
	Budgets        []*BudgetUtilizationRow `json:"budgets"`
}

func GetBudgetUtilization(ctx context.Context, fiscalYear int) (*BudgetUtilizationResponse, error) {
	return cached(ctx, "BudgetUtilization", fiscalYear, func(ctx context.Context) (*BudgetUtilizationResponse, error) {
		budgets, err := models.AllBudgets(ctx, models.BudgetFilter{FiscalYear: fiscalYear})
		if err != nil {
			return nil, err
		}
		resp := &BudgetUtilizationResponse{
			FiscalYear:     fiscalYear,
			TotalAllocated: decimal.Zero,
			TotalSpent:     decimal.Zero,
			Budgets:        make([]*BudgetUtilizationRow, 0, len(budgets)),
		}
		for _, b := range budgets {
			resp.TotalAllocated = resp.TotalAllocated.Add(b.AllocatedAmount)
			resp.TotalSpent = resp.TotalSpent.Add(b.SpentAmount)
			resp.Budgets = append(resp.Budgets, &BudgetUtilizationRow{
				BudgetId:       b.ID,
				Name:           b.Name,
				Category:       b.Category,
				Status:         b.Status,
				Allocated:      b.AllocatedAmount,
				Spent:          b.SpentAmount,
				Remaining:      b.Remaining(),
				UtilizationPct: b.Utilization(),
				OverBudget:     b.SpentAmount.GreaterThan(b.AllocatedAmount),
			})
		}
		resp.UtilizationPct = utils.Percentage(resp.TotalSpent, resp.TotalAllocated)
		return resp, nil
	})
}

type BudgetVarianceRow struct {
	Category    string          `json:"category"`
	Allocated   decimal.Decimal `json:"allocated"`
	Spent       decimal.Decimal `json:"spent"`
	Variance    decimal.Decimal `json:"variance"`
	VariancePct decimal.Decimal `json:"variance_percent"`
}

type BudgetVarianceResponse struct {
	FiscalYear int                  `json:"fiscal_year"`
	Variance   decimal.Decimal      `json:"variance"`
	Categories []*BudgetVarianceRow `json:"categories"`
}

// GetBudgetVariance groups budgets by category; a positive variance is money left unspent.
func GetBudgetVariance(ctx context.Context, fiscalYear int) (*BudgetVarianceResponse, error) {
	return cached(ctx, "BudgetVariance", fiscalYear, func(ctx context.Context) (*BudgetVarianceResponse, error) {
		budgets, err := models.AllBudgets(ctx, models.BudgetFilter{FiscalYear: fiscalYear})
		if err != nil {
			return nil, err
		}
		resp := &BudgetVarianceResponse{FiscalYear: fiscalYear, Variance: decimal.Zero}
		index := make(map[string]*BudgetVarianceRow)
		for _, b := range budgets {
			row, ok := index[b.Category]
			if !ok {
				row = &BudgetVarianceRow{Category: b.Category, Allocated: decimal.Zero, Spent: decimal.Zero}
				index[b.Category] = row
				resp.Categories = append(resp.Categories, row)
			}
			row.Allocated = row.Allocated.Add(b.AllocatedAmount)
			row.Spent = row.Spent.Add(b.SpentAmount)
		}
		for _, row := range resp.Categories {
			row.Variance = row.Allocated.Sub(row.Spent)
			row.VariancePct = utils.Percentage(row.Variance, row.Allocated)
			resp.Variance = resp.Variance.Add(row.Variance)
		}
		return resp, nil
	})
}
