package models_test

import (
	"strconv"
	"testing"

	"github.com/mmdatafocus/church_backend/config"
	"github.com/mmdatafocus/church_backend/models"
	"github.com/mmdatafocus/church_backend/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGatewayPaymentIsIdempotentAndRefundable(t *testing.T) {
	ctx := setup(t)
	member := newMember(t, ctx, "Lydia", "Purple", "lydia@example.org")
	campaign := newCampaign(t, ctx, "Mission trip", "1000")

	gp := models.GatewayPayment{
		Gateway:   models.PaymentGatewayStripe,
		Reference: "pi_123",
		Amount:    amount("42.50"),
		Currency:  "usd",
		Metadata: map[string]string{
			"member_id":   strconv.Itoa(member.ID),
			"campaign_id": strconv.Itoa(campaign.ID),
			"category":    "missions",
		},
	}
	payment, err := models.RecordGatewayPaymentSucceeded(ctx, gp)
	require.NoError(t, err)
	require.NotNil(t, payment.DonationId)
	assert.Equal(t, "USD", payment.Currency)
	assert.Equal(t, models.PaymentStatusSucceeded, payment.Status)

	again, err := models.RecordGatewayPaymentSucceeded(ctx, gp)
	require.NoError(t, err)
	assert.Equal(t, payment.ID, again.ID)

	var donations int64
	require.NoError(t, config.GetDB().Model(&models.Donation{}).Count(&donations).Error)
	assert.Equal(t, int64(1), donations)

	donation, err := models.GetDonation(ctx, *payment.DonationId)
	require.NoError(t, err)
	assert.Equal(t, models.DonationCategoryMissions, donation.Category)
	assert.Equal(t, models.PaymentMethodOnline, donation.PaymentMethod)

	got, err := models.GetCampaign(ctx, campaign.ID)
	require.NoError(t, err)
	assertAmount(t, "42.5", got.RaisedAmount)

	refunded, err := models.RecordGatewayRefund(ctx, models.GatewayPayment{Reference: "pi_123"})
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusRefunded, refunded.Status)

	donation, err = models.GetDonation(ctx, *payment.DonationId)
	require.NoError(t, err)
	assert.Equal(t, models.DonationStatusRefunded, donation.Status)
	got, err = models.GetCampaign(ctx, campaign.ID)
	require.NoError(t, err)
	assertAmount(t, "0", got.RaisedAmount)
}

func TestGatewayPaymentIgnoresUnknownMetadata(t *testing.T) {
	ctx := setup(t)

	payment, err := models.RecordGatewayPaymentSucceeded(ctx, models.GatewayPayment{
		Gateway:   models.PaymentGatewayStripe,
		Reference: "pi_anon",
		Amount:    amount("10"),
		Currency:  "usd",
		Metadata:  map[string]string{"member_id": "9999", "category": "bogus"},
	})
	require.NoError(t, err)
	assert.Nil(t, payment.MemberId)
	assert.Equal(t, models.DonationCategoryOffering, payment.Category)
}

func TestFailedPaymentDoesNotOverwriteSuccess(t *testing.T) {
	ctx := setup(t)
	_, err := models.RecordGatewayPaymentSucceeded(ctx, models.GatewayPayment{
		Gateway: models.PaymentGatewayStripe, Reference: "pi_ok", Amount: amount("5"), Currency: "usd",
	})
	require.NoError(t, err)

	p, err := models.RecordGatewayPaymentFailed(ctx, models.GatewayPayment{Gateway: models.PaymentGatewayStripe, Reference: "pi_ok", Reason: "late"})
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusSucceeded, p.Status)

	p, err = models.RecordGatewayPaymentFailed(ctx, models.GatewayPayment{
		Gateway: models.PaymentGatewayStripe, Reference: "pi_bad", Amount: amount("5"), Currency: "usd", Reason: "card_declined",
	})
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusFailed, p.Status)
	assert.Nil(t, p.DonationId)
}

func TestManualPaymentCreatesDonation(t *testing.T) {
	ctx := setup(t)
	member := newMember(t, ctx, "Gaius", "Host", "gaius@example.org")

	payment, err := models.CreateManualPayment(ctx, &models.NewManualPayment{
		MemberId:      &member.ID,
		Amount:        amount("60"),
		Category:      models.DonationCategoryTithe,
		PaymentMethod: models.PaymentMethodCheck,
		Reference:     "CHK-1001",
	})
	require.NoError(t, err)
	assert.Equal(t, models.PaymentGatewayManual, payment.Gateway)
	require.NotNil(t, payment.DonationId)

	_, err = models.CreateManualPayment(ctx, &models.NewManualPayment{
		MemberId:      &member.ID,
		Amount:        amount("60"),
		Category:      models.DonationCategoryTithe,
		PaymentMethod: models.PaymentMethodCheck,
		Reference:     "CHK-1001",
	})
	assert.Error(t, err)
}

func TestRefundReversesCampaignProjectAndPledge(t *testing.T) {
	ctx := setup(t)
	member := newMember(t, ctx, "Barnabas", "Cyprus", "barnabas@example.org")
	campaign := newCampaign(t, ctx, "Hall", "1000")
	project := newProject(t, ctx, "Kitchen", "800")
	pledge, err := models.CreatePledge(ctx, &models.NewPledge{
		MemberId:  member.ID,
		Amount:    amount("300"),
		Frequency: models.FrequencyOneTime,
		StartDate: day(2025, 1, 1),
		EndDate:   day(2025, 12, 31),
	})
	require.NoError(t, err)

	date := day(2025, 3, 9)
	_, err = models.CreateManualPayment(ctx, &models.NewManualPayment{
		MemberId:      &member.ID,
		Amount:        amount("120"),
		DonationDate:  &date,
		Category:      models.DonationCategoryBuilding,
		PaymentMethod: models.PaymentMethodCheck,
		CampaignId:    &campaign.ID,
		ProjectId:     &project.ID,
		PledgeId:      &pledge.ID,
		Reference:     "CHK-2001",
	})
	require.NoError(t, err)

	gotCampaign, err := models.GetCampaign(ctx, campaign.ID)
	require.NoError(t, err)
	assertAmount(t, "120", gotCampaign.RaisedAmount)
	gotProject, err := models.GetProject(ctx, project.ID)
	require.NoError(t, err)
	assertAmount(t, "120", gotProject.CurrentAmount)
	gotPledge, err := models.GetPledge(ctx, pledge.ID)
	require.NoError(t, err)
	assertAmount(t, "120", gotPledge.FulfilledAmount)

	_, err = models.RecordGatewayRefund(ctx, models.GatewayPayment{Reference: "CHK-2001"})
	require.NoError(t, err)

	gotCampaign, err = models.GetCampaign(ctx, campaign.ID)
	require.NoError(t, err)
	assertAmount(t, "0", gotCampaign.RaisedAmount)
	gotProject, err = models.GetProject(ctx, project.ID)
	require.NoError(t, err)
	assertAmount(t, "0", gotProject.CurrentAmount)
	gotPledge, err = models.GetPledge(ctx, pledge.ID)
	require.NoError(t, err)
	assertAmount(t, "0", gotPledge.FulfilledAmount)

	// a second delivery of the refund changes nothing
	_, err = models.RecordGatewayRefund(ctx, models.GatewayPayment{Reference: "CHK-2001"})
	require.NoError(t, err)
	gotCampaign, err = models.GetCampaign(ctx, campaign.ID)
	require.NoError(t, err)
	assertAmount(t, "0", gotCampaign.RaisedAmount)
}

func TestRefundOfUnknownPaymentIsNotFound(t *testing.T) {
	ctx := setup(t)
	_, err := models.RecordGatewayRefund(ctx, models.GatewayPayment{Reference: "ch_missing"})
	assert.ErrorIs(t, err, utils.ErrorRecordNotFound)
}

func TestGatewayPaymentToCancelledCampaignIsUnassigned(t *testing.T) {
	ctx := setup(t)
	campaign := newCampaign(t, ctx, "Closed appeal", "100")
	_, err := models.UpdateCampaign(ctx, campaign.ID, &models.NewCampaign{
		Name:       campaign.Name,
		GoalAmount: campaign.GoalAmount,
		StartDate:  campaign.StartDate,
		EndDate:    campaign.EndDate,
		Status:     models.CampaignStatusCancelled,
	})
	require.NoError(t, err)

	payment, err := models.RecordGatewayPaymentSucceeded(ctx, models.GatewayPayment{
		Gateway:   models.PaymentGatewayStripe,
		Reference: "pi_closed",
		Amount:    amount("25"),
		Currency:  "usd",
		Metadata:  map[string]string{"campaign_id": strconv.Itoa(campaign.ID)},
	})
	require.NoError(t, err)
	require.NotNil(t, payment.DonationId)

	donation, err := models.GetDonation(ctx, *payment.DonationId)
	require.NoError(t, err)
	assert.Nil(t, donation.CampaignId)
	got, err := models.GetCampaign(ctx, campaign.ID)
	require.NoError(t, err)
	assertAmount(t, "0", got.RaisedAmount)
}
