package models_test

import (
	"context"
	"testing"
	"time"

	"github.com/mmdatafocus/church_backend/config"
	"github.com/mmdatafocus/church_backend/models"
	"github.com/mmdatafocus/church_backend/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRecurring(t *testing.T, ctx context.Context, memberId int, f models.Frequency, start time.Time, end *time.Time) *models.RecurringDonation {
	t.Helper()
	rd, err := models.CreateRecurringDonation(ctx, &models.NewRecurringDonation{
		MemberId:      memberId,
		Amount:        amount("25"),
		Category:      models.DonationCategoryTithe,
		PaymentMethod: models.PaymentMethodBankTransfer,
		Frequency:     f,
		StartDate:     start,
		EndDate:       end,
	})
	require.NoError(t, err)
	return rd
}

func donationCount(t *testing.T, recurringId int) int64 {
	t.Helper()
	var n int64
	require.NoError(t, config.GetDB().Model(&models.Donation{}).Where("recurring_donation_id = ?", recurringId).Count(&n).Error)
	return n
}

func TestNextOccurrenceClampsMonthEnd(t *testing.T) {
	jan31 := day(2025, 1, 31)
	feb := models.NextOccurrence(jan31, models.FrequencyMonthly, 31)
	assert.Equal(t, day(2025, 2, 28), feb)
	assert.Equal(t, day(2025, 3, 31), models.NextOccurrence(feb, models.FrequencyMonthly, 31))
	assert.Equal(t, day(2025, 2, 7), models.NextOccurrence(jan31, models.FrequencyWeekly, 31))
	assert.Equal(t, day(2025, 2, 14), models.NextOccurrence(jan31, models.FrequencyBiweekly, 31))
	assert.Equal(t, day(2025, 4, 30), models.NextOccurrence(jan31, models.FrequencyQuarterly, 31))
	assert.Equal(t, day(2028, 2, 29), models.NextOccurrence(day(2027, 2, 28), models.FrequencyAnnually, 29))
	assert.True(t, models.NextOccurrence(jan31, models.FrequencyOneTime, 31).IsZero())
}

func TestProcessRecurringCatchesUpOnceAndIsIdempotent(t *testing.T) {
	ctx := setup(t)
	member := newMember(t, ctx, "Timothy", "Lystra", "timothy@example.org")
	rd := newRecurring(t, ctx, member.ID, models.FrequencyMonthly, day(2025, 1, 31), nil)

	now := day(2025, 4, 15)
	result, err := models.ProcessDueRecurringDonations(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Processed)
	assert.Equal(t, 3, result.Created)
	assert.Equal(t, int64(3), donationCount(t, rd.ID))

	got, err := models.GetRecurringDonation(ctx, rd.ID)
	require.NoError(t, err)
	assert.Equal(t, day(2025, 4, 30), got.NextRunDate.UTC())
	assert.Equal(t, 3, got.RunsCount)

	result, err = models.ProcessDueRecurringDonations(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Created)
	assert.Equal(t, int64(3), donationCount(t, rd.ID))
}

func TestProcessRecurringCapsCatchUpRuns(t *testing.T) {
	ctx := setup(t)
	member := newMember(t, ctx, "Titus", "Crete", "titus@example.org")
	rd := newRecurring(t, ctx, member.ID, models.FrequencyWeekly, day(2024, 1, 1), nil)

	result, err := models.ProcessDueRecurringDonations(ctx, day(2025, 1, 1))
	require.NoError(t, err)
	assert.Equal(t, models.MaxCatchUpRuns, result.Created)
	assert.Equal(t, int64(models.MaxCatchUpRuns), donationCount(t, rd.ID))
}

func TestProcessRecurringCompletesAfterEndDate(t *testing.T) {
	ctx := setup(t)
	member := newMember(t, ctx, "Priscilla", "Corinth", "priscilla@example.org")
	end := day(2025, 1, 15)
	rd := newRecurring(t, ctx, member.ID, models.FrequencyWeekly, day(2025, 1, 1), &end)

	result, err := models.ProcessDueRecurringDonations(ctx, day(2025, 3, 1))
	require.NoError(t, err)
	assert.Equal(t, 3, result.Created)
	assert.Equal(t, 1, result.Completed)

	got, err := models.GetRecurringDonation(ctx, rd.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RecurringStatusCompleted, got.Status)
}

func TestPausedRecurringIsSkipped(t *testing.T) {
	ctx := setup(t)
	member := newMember(t, ctx, "Aquila", "Pontus", "aquila@example.org")
	rd := newRecurring(t, ctx, member.ID, models.FrequencyMonthly, day(2025, 1, 1), nil)

	_, err := models.SetRecurringStatus(ctx, rd.ID, models.RecurringStatusPaused)
	require.NoError(t, err)
	result, err := models.ProcessDueRecurringDonations(ctx, day(2025, 3, 1))
	require.NoError(t, err)
	assert.Equal(t, 0, result.Processed)

	_, err = models.SetRecurringStatus(ctx, rd.ID, models.RecurringStatusCancelled)
	require.NoError(t, err)
	_, err = models.SetRecurringStatus(ctx, rd.ID, models.RecurringStatusActive)
	var berr *utils.BusinessRuleError
	assert.ErrorAs(t, err, &berr)
}

func TestRecurringStatusTransitions(t *testing.T) {
	ctx := setup(t)
	member := newMember(t, ctx, "Onesimus", "Colossae", "onesimus@example.org")

	cases := []struct {
		name  string
		path  []models.RecurringStatus
		final models.RecurringStatus
		ok    bool
	}{
		{"pause then resume", []models.RecurringStatus{models.RecurringStatusPaused}, models.RecurringStatusActive, true},
		{"pause twice", []models.RecurringStatus{models.RecurringStatusPaused}, models.RecurringStatusPaused, false},
		{"resume an active schedule", nil, models.RecurringStatusActive, false},
		{"reactivate after cancel", []models.RecurringStatus{models.RecurringStatusCancelled}, models.RecurringStatusActive, false},
		{"pause after cancel", []models.RecurringStatus{models.RecurringStatusCancelled}, models.RecurringStatusPaused, false},
		{"cancel while paused", []models.RecurringStatus{models.RecurringStatusPaused}, models.RecurringStatusCancelled, true},
		{"complete by hand", nil, models.RecurringStatusCompleted, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			rd := newRecurring(t, ctx, member.ID, models.FrequencyMonthly, day(2025, 1, 1), nil)
			for _, s := range c.path {
				_, err := models.SetRecurringStatus(ctx, rd.ID, s)
				require.NoError(t, err)
			}
			before, err := models.GetRecurringDonation(ctx, rd.ID)
			require.NoError(t, err)

			got, err := models.SetRecurringStatus(ctx, rd.ID, c.final)
			if c.ok {
				require.NoError(t, err)
				assert.Equal(t, c.final, got.Status)
				return
			}
			var berr *utils.BusinessRuleError
			require.ErrorAs(t, err, &berr)
			after, err := models.GetRecurringDonation(ctx, rd.ID)
			require.NoError(t, err)
			assert.Equal(t, before.Status, after.Status)
		})
	}
}

func TestRecurringToCancelledCampaignFailsWithoutPosting(t *testing.T) {
	ctx := setup(t)
	member := newMember(t, ctx, "Philemon", "Colossae", "philemon@example.org")
	campaign := newCampaign(t, ctx, "Ended appeal", "500")
	rd, err := models.CreateRecurringDonation(ctx, &models.NewRecurringDonation{
		MemberId:      member.ID,
		Amount:        amount("20"),
		Category:      models.DonationCategoryMissions,
		PaymentMethod: models.PaymentMethodCard,
		CampaignId:    &campaign.ID,
		Frequency:     models.FrequencyMonthly,
		StartDate:     day(2025, 2, 1),
	})
	require.NoError(t, err)
	_, err = models.UpdateCampaign(ctx, campaign.ID, &models.NewCampaign{
		Name:       campaign.Name,
		GoalAmount: campaign.GoalAmount,
		StartDate:  campaign.StartDate,
		EndDate:    campaign.EndDate,
		Status:     models.CampaignStatusCancelled,
	})
	require.NoError(t, err)

	result, err := models.ProcessDueRecurringDonations(ctx, day(2025, 3, 15))
	require.NoError(t, err)
	assert.Equal(t, 1, result.Processed)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, 0, result.Created)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "campaign is cancelled")
	assert.Equal(t, int64(0), donationCount(t, rd.ID))

	got, err := models.GetRecurringDonation(ctx, rd.ID)
	require.NoError(t, err)
	assert.Equal(t, day(2025, 2, 1), got.NextRunDate.UTC())
}
