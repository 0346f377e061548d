package models_test

import (
	"context"
	"testing"
	"time"

	"github.com/mmdatafocus/church_backend/models"
	"github.com/mmdatafocus/church_backend/testhelper"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
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

func assertAmount(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...interface{}) {
	t.Helper()
	assert.True(t, amount(want).Equal(got), append([]interface{}{"want %s, got %s", want, got.String()}, msgAndArgs...)...)
}

func newMember(t *testing.T, ctx context.Context, first, last, email string) *models.Member {
	t.Helper()
	m, err := models.CreateMember(ctx, &models.NewMember{
		FirstName:        first,
		LastName:         last,
		Email:            email,
		MembershipStatus: models.MembershipStatusMember,
	})
	require.NoError(t, err)
	return m
}

func newCampaign(t *testing.T, ctx context.Context, name string, goal string) *models.Campaign {
	t.Helper()
	c, err := models.CreateCampaign(ctx, &models.NewCampaign{
		Name:       name,
		GoalAmount: amount(goal),
		StartDate:  day(2025, 1, 1),
		EndDate:    day(2025, 12, 31),
		Status:     models.CampaignStatusActive,
	})
	require.NoError(t, err)
	return c
}

func newProject(t *testing.T, ctx context.Context, name string, target string) *models.Project {
	t.Helper()
	p, err := models.CreateProject(ctx, &models.NewProject{
		Name:         name,
		TargetAmount: amount(target),
		StartDate:    day(2025, 1, 1),
		Status:       models.ProjectStatusActive,
	})
	require.NoError(t, err)
	return p
}

func newBudget(t *testing.T, ctx context.Context, name string, allocated string) *models.Budget {
	t.Helper()
	b, err := models.CreateBudget(ctx, &models.NewBudget{
		Name:            name,
		Category:        "ministry",
		FiscalYear:      2025,
		PeriodStart:     day(2025, 1, 1),
		PeriodEnd:       day(2025, 12, 31),
		AllocatedAmount: amount(allocated),
		Status:          models.BudgetStatusActive,
	})
	require.NoError(t, err)
	return b
}

func donationInput(memberId *int, value string, date time.Time) *models.NewDonation {
	return &models.NewDonation{
		MemberId:      memberId,
		Amount:        amount(value),
		DonationDate:  date,
		Category:      models.DonationCategoryTithe,
		PaymentMethod: models.PaymentMethodCash,
	}
}

func intPtr(v int) *int {
	return &v
}
