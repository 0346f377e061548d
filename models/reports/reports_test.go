package reports_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/mmdatafocus/church_backend/models"
	"github.com/mmdatafocus/church_backend/models/reports"
	"github.com/mmdatafocus/church_backend/testhelper"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func setup(t *testing.T) context.Context {
	t.Helper()
	testhelper.SetupDB(t)
	return testhelper.AdminContext()
}

func day(year int, month time.Month, d int) time.Time {
	return time.Date(year, month, d, 0, 0, 0, 0, time.UTC)
}

func amount(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertAmount(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, amount(want).Equal(got), "want %s, got %s", want, got.String())
}

func year2025() reports.DateRange {
	return reports.DateRange{From: day(2025, 1, 1), To: day(2025, 12, 31)}
}

func member(t *testing.T, ctx context.Context, first, last string) *models.Member {
	t.Helper()
	m, err := models.CreateMember(ctx, &models.NewMember{FirstName: first, LastName: last, MembershipStatus: models.MembershipStatusMember})
	require.NoError(t, err)
	return m
}

func donate(t *testing.T, ctx context.Context, memberId *int, value string, date time.Time, category models.DonationCategory) *models.Donation {
	t.Helper()
	d, err := models.CreateDonation(ctx, &models.NewDonation{
		MemberId:      memberId,
		Amount:        amount(value),
		DonationDate:  date,
		Category:      category,
		PaymentMethod: models.PaymentMethodCash,
	})
	require.NoError(t, err)
	return d
}

func budget(t *testing.T, ctx context.Context, name, category, allocated string) *models.Budget {
	t.Helper()
	b, err := models.CreateBudget(ctx, &models.NewBudget{
		Name:            name,
		Category:        category,
		FiscalYear:      2025,
		PeriodStart:     day(2025, 1, 1),
		PeriodEnd:       day(2025, 12, 31),
		AllocatedAmount: amount(allocated),
		Status:          models.BudgetStatusActive,
	})
	require.NoError(t, err)
	return b
}

func expense(t *testing.T, ctx context.Context, budgetId int, category, value string, approve bool) *models.Expense {
	t.Helper()
	e, err := models.CreateExpense(ctx, &models.NewExpense{
		BudgetId:    &budgetId,
		Category:    category,
		Description: category + " spend",
		Amount:      amount(value),
		ExpenseDate: day(2025, 3, 10),
	})
	require.NoError(t, err)
	if approve {
		e, err = models.ApproveExpense(ctx, e.ID)
		require.NoError(t, err)
	}
	return e
}

func seedLedger(t *testing.T, ctx context.Context) {
	t.Helper()
	a := member(t, ctx, "Barnabas", "Cyprus")
	b := member(t, ctx, "Silas", "Jerusalem")
	donate(t, ctx, &a.ID, "100", day(2025, 2, 2), models.DonationCategoryTithe)
	donate(t, ctx, &a.ID, "40", day(2025, 2, 9), models.DonationCategoryOffering)
	donate(t, ctx, &b.ID, "60", day(2025, 7, 6), models.DonationCategoryTithe)
	donate(t, ctx, nil, "5", day(2025, 7, 6), models.DonationCategoryOffering)
	donate(t, ctx, &b.ID, "999", day(2024, 12, 31), models.DonationCategoryTithe)

	ministry := budget(t, ctx, "Youth", "ministry", "200")
	facilities := budget(t, ctx, "Roof", "facilities", "100")
	expense(t, ctx, ministry.ID, "ministry", "50", true)
	expense(t, ctx, facilities.ID, "facilities", "120", true)
	expense(t, ctx, facilities.ID, "facilities", "30", false)
}

func TestFinancialSummary(t *testing.T) {
	ctx := setup(t)
	seedLedger(t, ctx)

	summary, err := reports.GetFinancialSummary(ctx, year2025())
	require.NoError(t, err)
	assertAmount(t, "205", summary.TotalDonations)
	assert.Equal(t, int64(4), summary.DonationCount)
	assertAmount(t, "170", summary.TotalExpenses)
	assert.Equal(t, int64(2), summary.ExpenseCount)
	assertAmount(t, "35", summary.Net)

	require.Len(t, summary.DonationsByCategory, 2)
	assert.Equal(t, "tithe", summary.DonationsByCategory[0].Category)
	assertAmount(t, "160", summary.DonationsByCategory[0].Total)
	require.Len(t, summary.ExpensesByCategory, 2)
	assert.Equal(t, "facilities", summary.ExpensesByCategory[0].Category)
}

func TestFinancialSummaryIsCached(t *testing.T) {
	ctx := setup(t)
	testhelper.SetupRedis(t)
	giver := member(t, ctx, "Tabitha", "Joppa")
	donate(t, ctx, &giver.ID, "10", day(2025, 4, 1), models.DonationCategoryOffering)

	first, err := reports.GetFinancialSummary(ctx, year2025())
	require.NoError(t, err)
	assertAmount(t, "10", first.TotalDonations)

	donate(t, ctx, &giver.ID, "15", day(2025, 4, 8), models.DonationCategoryOffering)
	second, err := reports.GetFinancialSummary(ctx, year2025())
	require.NoError(t, err)
	assertAmount(t, "10", second.TotalDonations)

	other, err := reports.GetFinancialSummary(ctx, reports.DateRange{From: day(2025, 4, 1), To: day(2025, 4, 30)})
	require.NoError(t, err)
	assertAmount(t, "25", other.TotalDonations)
}

func TestMonthlyDonationsHasTwelveRows(t *testing.T) {
	ctx := setup(t)
	seedLedger(t, ctx)

	monthly, err := reports.GetMonthlyDonations(ctx, 2025)
	require.NoError(t, err)
	require.Len(t, monthly.Months, 12)
	assertAmount(t, "205", monthly.Total)
	assertAmount(t, "140", monthly.Months[1].Total)
	assert.Equal(t, int64(2), monthly.Months[1].Count)
	assertAmount(t, "65", monthly.Months[6].Total)
	assertAmount(t, "0", monthly.Months[0].Total)
}

func TestTopDonorsExcludesAnonymous(t *testing.T) {
	ctx := setup(t)
	seedLedger(t, ctx)

	donors, err := reports.GetTopDonors(ctx, year2025(), 5)
	require.NoError(t, err)
	require.Len(t, donors, 2)
	assert.Equal(t, "Barnabas Cyprus", donors[0].Name)
	assertAmount(t, "140", donors[0].Total)
	assert.Equal(t, "Silas Jerusalem", donors[1].Name)
	assertAmount(t, "60", donors[1].Total)
}

func TestBudgetUtilizationAndVariance(t *testing.T) {
	ctx := setup(t)
	seedLedger(t, ctx)

	util, err := reports.GetBudgetUtilization(ctx, 2025)
	require.NoError(t, err)
	require.Len(t, util.Budgets, 2)
	assertAmount(t, "300", util.TotalAllocated)
	assertAmount(t, "170", util.TotalSpent)

	var roof *reports.BudgetUtilizationRow
	for _, b := range util.Budgets {
		if b.Name == "Roof" {
			roof = b
		}
	}
	require.NotNil(t, roof)
	assert.True(t, roof.OverBudget)
	assertAmount(t, "120", roof.UtilizationPct)

	variance, err := reports.GetBudgetVariance(ctx, 2025)
	require.NoError(t, err)
	assertAmount(t, "130", variance.Variance)
	for _, c := range variance.Categories {
		switch c.Category {
		case "ministry":
			assertAmount(t, "150", c.Variance)
			assertAmount(t, "75", c.VariancePct)
		case "facilities":
			assertAmount(t, "-20", c.Variance)
		}
	}
}

func TestCampaignProgress(t *testing.T) {
	ctx := setup(t)
	c, err := models.CreateCampaign(ctx, &models.NewCampaign{
		Name:       "Well",
		GoalAmount: amount("200"),
		StartDate:  day(2025, 1, 1),
		EndDate:    day(2025, 12, 31),
		Status:     models.CampaignStatusActive,
	})
	require.NoError(t, err)
	_, err = models.CreateDonation(ctx, &models.NewDonation{
		Amount:        amount("50"),
		DonationDate:  day(2025, 5, 1),
		Category:      models.DonationCategoryMissions,
		PaymentMethod: models.PaymentMethodCard,
		CampaignId:    &c.ID,
	})
	require.NoError(t, err)

	progress, err := reports.GetCampaignProgress(ctx)
	require.NoError(t, err)
	require.Len(t, progress.Campaigns, 1)
	assertAmount(t, "25", progress.Campaigns[0].Percentage)
	assertAmount(t, "150", progress.Campaigns[0].Remaining)
}

func TestMemberEngagementScores(t *testing.T) {
	ctx := setup(t)
	active := member(t, ctx, "Priscilla", "Rome")
	quiet := member(t, ctx, "Aquila", "Rome")
	member(t, ctx, "Nobody", "Home")

	start := time.Now().UTC().Add(time.Hour)
	event, err := models.CreateEvent(ctx, &models.NewEvent{Title: "Vigil", StartAt: start, EndAt: start.Add(time.Hour)})
	require.NoError(t, err)
	_, err = models.CheckIn(ctx, event.ID, active.ID)
	require.NoError(t, err)

	_, err = models.CreateGroup(ctx, &models.NewGroup{Name: "Tentmakers", LeaderMemberId: &active.ID})
	require.NoError(t, err)
	donate(t, ctx, &quiet.ID, "10", time.Now().UTC().AddDate(0, -1, 0), models.DonationCategoryOffering)

	rows, err := reports.GetMemberEngagement(ctx, 10)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, active.ID, rows[0].MemberId)
	assert.Equal(t, int64(7), rows[0].Score)
	assert.Equal(t, quiet.ID, rows[1].MemberId)
	assert.Equal(t, int64(2), rows[1].Score)
}

func TestExportDonationsWorkbook(t *testing.T) {
	ctx := setup(t)
	seedLedger(t, ctx)

	data, err := reports.ExportDonations(ctx, models.DonationFilter{})
	require.NoError(t, err)
	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Donations")
	require.NoError(t, err)
	require.Len(t, rows, 6)
	assert.Equal(t, "Member", rows[0][2])
	assert.Equal(t, "Silas Jerusalem", rows[1][2])
}

func TestExportFinancialSummaryHasTwoSheets(t *testing.T) {
	ctx := setup(t)
	seedLedger(t, ctx)

	data, err := reports.ExportFinancialSummary(ctx, year2025())
	require.NoError(t, err)
	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Summary", "By Category"}, f.GetSheetList())
	rows, err := f.GetRows("By Category")
	require.NoError(t, err)
	assert.Len(t, rows, 5)
}
