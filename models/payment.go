package models

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mmdatafocus/church_backend/config"
	"github.com/mmdatafocus/church_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type Payment struct {
	ID               int              `gorm:"primary_key" json:"id"`
	Gateway          PaymentGateway   `gorm:"size:20;not null" json:"gateway"`
	GatewayReference string           `gorm:"size:255;not null;uniqueIndex" json:"gateway_reference"`
	Amount           decimal.Decimal  `gorm:"type:decimal(20,4);not null" json:"amount"`
	Currency         string           `gorm:"size:3;not null" json:"currency"`
	Status           PaymentStatus    `gorm:"size:20;not null;index" json:"status"`
	MemberId         *int             `gorm:"index" json:"member_id"`
	DonationId       *int             `gorm:"index" json:"donation_id"`
	Category         DonationCategory `gorm:"size:20" json:"category"`
	FailureReason    string           `gorm:"type:text" json:"failure_reason"`
	Payload          string           `gorm:"type:text" json:"-"`
	CreatedAt        time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
}

func (p Payment) GetId() int {
	return p.ID
}

// GatewayPayment is a gateway event reduced to what the ledger needs.
type GatewayPayment struct {
	Gateway   PaymentGateway
	Reference string
	Amount    decimal.Decimal
	Currency  string
	Metadata  map[string]string
	Reason    string
	Payload   []byte
}

type NewManualPayment struct {
	MemberId        *int             `json:"member_id"`
	Amount          decimal.Decimal  `json:"amount"`
	Currency        string           `json:"currency" binding:"omitempty,len=3"`
	Category        DonationCategory `json:"category" binding:"required,oneof=tithe offering building missions benevolence other"`
	PaymentMethod   PaymentMethod    `json:"payment_method" binding:"required,oneof=cash check card bank_transfer online"`
	CampaignId      *int             `json:"campaign_id"`
	ProjectId       *int             `json:"project_id"`
	PledgeId        *int             `json:"pledge_id"`
	Reference       string           `json:"reference" binding:"max=255"`
	DonationDate    *time.Time       `json:"donation_date"`
	Notes           string           `json:"notes"`
	IsTaxDeductible *bool            `json:"is_tax_deductible"`
}

type PaymentFilter struct {
	Gateway  string `form:"gateway" json:"gateway"`
	Status   string `form:"status" json:"status"`
	MemberId int    `form:"member_id" json:"member_id"`
	PageParams
}

func findPaymentByReference(db *gorm.DB, reference string) (*Payment, error) {
	var payment Payment
	err := db.Where("gateway_reference = ?", reference).Take(&payment).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// metadataId reads a positive id from gateway metadata and keeps it only when the row exists.
func metadataId[T any](ctx context.Context, metadata map[string]string, key string) *int {
	raw := strings.TrimSpace(metadata[key])
	if raw == "" {
		return nil
	}
	id, err := strconv.Atoi(raw)
	if err != nil || id <= 0 {
		return nil
	}
	if err := utils.ValidateResourceId[T](ctx, id); err != nil {
		config.LogError(config.GetLogger(), "models", "metadataId", key, raw, err)
		return nil
	}
	return &id
}

// metadataCampaignId drops campaigns that were cancelled; the gift is still recorded, unassigned.
func metadataCampaignId(ctx context.Context, metadata map[string]string) *int {
	id := metadataId[Campaign](ctx, metadata, "campaign_id")
	if id == nil {
		return nil
	}
	campaign, err := utils.FetchModel[Campaign](ctx, *id)
	if err != nil || campaign.Status == CampaignStatusCancelled {
		config.GetLogger().WithFields(logrus.Fields{
			"field":       "metadataCampaignId",
			"campaign_id": *id,
		}).Warn("gateway payment names an unusable campaign; recording it unassigned")
		return nil
	}
	return id
}

func metadataCategory(metadata map[string]string) DonationCategory {
	switch c := DonationCategory(strings.ToLower(metadata["category"])); c {
	case DonationCategoryTithe, DonationCategoryOffering, DonationCategoryBuilding,
		DonationCategoryMissions, DonationCategoryBenevolence, DonationCategoryOther:
		return c
	}
	return DonationCategoryOffering
}

// RecordGatewayPaymentSucceeded stores the payment and its completed donation.
// Replays of the same gateway reference return the existing payment.
func RecordGatewayPaymentSucceeded(ctx context.Context, gp GatewayPayment) (*Payment, error) {
	db := config.GetDB().WithContext(ctx)
	existing, err := findPaymentByReference(db, gp.Reference)
	if err != nil {
		return nil, err
	}
	if existing != nil && existing.DonationId != nil {
		return existing, nil
	}

	memberId := metadataId[Member](ctx, gp.Metadata, "member_id")
	projectId := metadataId[Project](ctx, gp.Metadata, "project_id")
	category := metadataCategory(gp.Metadata)
	donationInput := &NewDonation{
		MemberId:        memberId,
		Amount:          gp.Amount,
		DonationDate:    time.Now().UTC(),
		Category:        category,
		PaymentMethod:   PaymentMethodOnline,
		Status:          DonationStatusCompleted,
		CampaignId:      metadataCampaignId(ctx, gp.Metadata),
		ProjectId:       projectId,
		ReferenceNumber: gp.Reference,
		IsTaxDeductible: utils.NewTrue(),
	}
	if err := donationInput.validate(ctx); err != nil {
		return nil, err
	}

	var payment Payment
	var touched LedgerTargets
	err = withTx(ctx, func(tx *gorm.DB) error {
		current, err := findPaymentByReference(tx, gp.Reference)
		if err != nil {
			return err
		}
		if current != nil {
			payment = *current
		} else {
			payment = Payment{Gateway: gp.Gateway, GatewayReference: gp.Reference}
		}
		payment.Amount = gp.Amount
		payment.Currency = strings.ToUpper(gp.Currency)
		payment.Status = PaymentStatusSucceeded
		payment.MemberId = memberId
		payment.Category = category
		payment.Payload = string(gp.Payload)
		if err := tx.Save(&payment).Error; err != nil {
			return err
		}
		if payment.DonationId != nil {
			return nil
		}
		paymentId := payment.ID
		donationInput.PaymentId = &paymentId
		donation, t, err := createDonationTx(tx, donationInput)
		if err != nil {
			return err
		}
		touched = t
		payment.DonationId = &donation.ID
		return tx.Model(&payment).Update("donation_id", donation.ID).Error
	})
	if err != nil {
		if utils.IsDuplicateKeyError(err) {
			// a concurrent delivery of the same event won the insert
			return findPaymentByReference(db, gp.Reference)
		}
		return nil, err
	}
	touched.Invalidate()
	if err := utils.RemoveRedisList[Donation](); err != nil {
		return nil, err
	}
	return &payment, nil
}

func RecordGatewayPaymentFailed(ctx context.Context, gp GatewayPayment) (*Payment, error) {
	db := config.GetDB().WithContext(ctx)
	payment, err := findPaymentByReference(db, gp.Reference)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		payment = &Payment{
			Gateway:          gp.Gateway,
			GatewayReference: gp.Reference,
			Amount:           gp.Amount,
			Currency:         strings.ToUpper(gp.Currency),
			MemberId:         metadataId[Member](ctx, gp.Metadata, "member_id"),
			Category:         metadataCategory(gp.Metadata),
		}
	}
	if payment.Status == PaymentStatusSucceeded || payment.Status == PaymentStatusRefunded {
		return payment, nil
	}
	payment.Status = PaymentStatusFailed
	payment.FailureReason = gp.Reason
	payment.Payload = string(gp.Payload)
	if err := db.Save(payment).Error; err != nil {
		return nil, err
	}
	return payment, nil
}

// RecordGatewayRefund marks the payment refunded and reverses its donation.
func RecordGatewayRefund(ctx context.Context, gp GatewayPayment) (*Payment, error) {
	db := config.GetDB().WithContext(ctx)
	payment, err := findPaymentByReference(db, gp.Reference)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return nil, utils.ErrorRecordNotFound
	}
	if payment.Status == PaymentStatusRefunded {
		return payment, nil
	}
	var touched LedgerTargets
	err = withTx(ctx, func(tx *gorm.DB) error {
		if err := tx.Model(payment).Update("status", PaymentStatusRefunded).Error; err != nil {
			return err
		}
		if payment.DonationId == nil {
			return nil
		}
		touched, err = SetDonationStatus(tx, *payment.DonationId, DonationStatusRefunded)
		return err
	})
	if err != nil {
		return nil, err
	}
	touched.Invalidate()
	if payment.DonationId != nil {
		if err := utils.RemoveRedisBoth[Donation](*payment.DonationId); err != nil {
			return nil, err
		}
	}
	payment.Status = PaymentStatusRefunded
	return payment, nil
}

// CreateManualPayment records money received outside a gateway together with its donation.
func CreateManualPayment(ctx context.Context, input *NewManualPayment) (*Payment, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	date := time.Now().UTC()
	if input.DonationDate != nil {
		date = *input.DonationDate
	}
	donationInput := &NewDonation{
		MemberId:        input.MemberId,
		Amount:          input.Amount,
		DonationDate:    date,
		Category:        input.Category,
		PaymentMethod:   input.PaymentMethod,
		Status:          DonationStatusCompleted,
		CampaignId:      input.CampaignId,
		ProjectId:       input.ProjectId,
		PledgeId:        input.PledgeId,
		ReferenceNumber: input.Reference,
		Notes:           input.Notes,
		IsTaxDeductible: input.IsTaxDeductible,
	}
	if err := donationInput.validate(ctx); err != nil {
		return nil, err
	}
	reference := strings.TrimSpace(input.Reference)
	if reference == "" {
		reference = "manual-" + uuid.NewString()
	} else if err := utils.ValidateUnique[Payment](ctx, "gateway_reference", reference, 0); err != nil {
		return nil, utils.NewValidationError("reference", "has already been recorded")
	}
	currency := strings.ToUpper(input.Currency)
	if currency == "" {
		currency = "USD"
	}

	payment := Payment{
		Gateway:          PaymentGatewayManual,
		GatewayReference: reference,
		Amount:           input.Amount,
		Currency:         currency,
		Status:           PaymentStatusSucceeded,
		MemberId:         zeroAsNil(input.MemberId),
		Category:         input.Category,
	}
	var touched LedgerTargets
	err := withTx(ctx, func(tx *gorm.DB) error {
		if err := tx.Create(&payment).Error; err != nil {
			return err
		}
		donationInput.PaymentId = &payment.ID
		donation, t, err := createDonationTx(tx, donationInput)
		if err != nil {
			return err
		}
		touched = t
		payment.DonationId = &donation.ID
		return tx.Model(&payment).Update("donation_id", donation.ID).Error
	})
	if err != nil {
		return nil, err
	}
	touched.Invalidate()
	if err := utils.RemoveRedisList[Donation](); err != nil {
		return nil, err
	}
	return &payment, nil
}

func GetPayment(ctx context.Context, id int) (*Payment, error) {
	return utils.FetchModel[Payment](ctx, id)
}

func ListPayments(ctx context.Context, filter PaymentFilter) (*Page[Payment], error) {
	q := config.GetDB().WithContext(ctx).Model(&Payment{})
	if filter.Gateway != "" {
		q = q.Where("gateway = ?", filter.Gateway)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.MemberId > 0 {
		q = q.Where("member_id = ?", filter.MemberId)
	}
	return Paginate[Payment](q, filter.PageParams, "created_at DESC, id DESC")
}
