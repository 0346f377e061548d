package reports

import (
	"context"
	"time"

	"github.com/mmdatafocus/church_backend/config"
	"github.com/mmdatafocus/church_backend/models"
	"github.com/mmdatafocus/church_backend/utils"
	"github.com/shopspring/decimal"
)

// DateRange is an inclusive range of calendar days.
type DateRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// normalize fills a missing From with Jan 1 of To's year and a missing To with today.
func (r DateRange) normalize() DateRange {
	if r.To.IsZero() {
		r.To = time.Now().UTC()
	}
	if r.From.IsZero() {
		r.From, _ = utils.YearRange(r.To.Year())
	}
	r.From = utils.StartOfDay(r.From)
	r.To = utils.StartOfDay(r.To)
	return r
}

// bounds is [From, To+1 day).
func (r DateRange) bounds() (time.Time, time.Time) {
	return r.From, r.To.AddDate(0, 0, 1)
}

type CategoryTotal struct {
	Category string          `json:"category"`
	Total    decimal.Decimal `json:"total"`
	Count    int64           `json:"count"`
}

type FinancialSummaryResponse struct {
	From                time.Time        `json:"from"`
	To                  time.Time        `json:"to"`
	TotalDonations      decimal.Decimal  `json:"total_donations"`
	DonationCount       int64            `json:"donation_count"`
	TotalExpenses       decimal.Decimal  `json:"total_expenses"`
	ExpenseCount        int64            `json:"expense_count"`
	Net                 decimal.Decimal  `json:"net"`
	DonationsByCategory []*CategoryTotal `json:"donations_by_category"`
	ExpensesByCategory  []*CategoryTotal `json:"expenses_by_category"`
}

func sumTotals(rows []*CategoryTotal) (decimal.Decimal, int64) {
	total := decimal.Zero
	var count int64
	for _, r := range rows {
		total = total.Add(r.Total)
		count += r.Count
	}
	return total, count
}

func donationCategoryTotals(ctx context.Context, r DateRange) ([]*CategoryTotal, error) {
	from, to := r.bounds()
	var rows []*CategoryTotal
	err := config.GetDB().WithContext(ctx).Model(&models.Donation{}).
		Select("category, SUM(amount) AS total, COUNT(*) AS count").
		Where("status = ? AND donation_date >= ? AND donation_date < ?", models.DonationStatusCompleted, from, to).
		Group("category").
		Order("total DESC, category").
		Scan(&rows).Error
	return rows, err
}

func expenseCategoryTotals(ctx context.Context, r DateRange) ([]*CategoryTotal, error) {
	from, to := r.bounds()
	var rows []*CategoryTotal
	err := config.GetDB().WithContext(ctx).Model(&models.Expense{}).
		Select("category, SUM(amount) AS total, COUNT(*) AS count").
		Where("status IN ? AND expense_date >= ? AND expense_date < ?",
			[]models.ExpenseStatus{models.ExpenseStatusApproved, models.ExpenseStatusPaid}, from, to).
		Group("category").
		Order("total DESC, category").
		Scan(&rows).Error
	return rows, err
}

// GetFinancialSummary totals completed donations against approved and paid expenses.
func GetFinancialSummary(ctx context.Context, r DateRange) (*FinancialSummaryResponse, error) {
	r = r.normalize()
	return cached(ctx, "FinancialSummary", r, func(ctx context.Context) (*FinancialSummaryResponse, error) {
		donations, err := donationCategoryTotals(ctx, r)
		if err != nil {
			return nil, err
		}
		expenses, err := expenseCategoryTotals(ctx, r)
		if err != nil {
			return nil, err
		}
		totalDonations, donationCount := sumTotals(donations)
		totalExpenses, expenseCount := sumTotals(expenses)
		return &FinancialSummaryResponse{
			From:                r.From,
			To:                  r.To,
			TotalDonations:      totalDonations,
			DonationCount:       donationCount,
			TotalExpenses:       totalExpenses,
			ExpenseCount:        expenseCount,
			Net:                 totalDonations.Sub(totalExpenses),
			DonationsByCategory: donations,
			ExpensesByCategory:  expenses,
		}, nil
	})
}
