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

type Donation struct {
	ID                  int              `gorm:"primary_key" json:"id"`
	MemberId            *int             `gorm:"index" json:"member_id"`
	Amount              decimal.Decimal  `gorm:"type:decimal(20,4);not null" json:"amount"`
	DonationDate        time.Time        `gorm:"not null;index;uniqueIndex:idx_recurring_period,priority:2" json:"donation_date"`
	Category            DonationCategory `gorm:"size:20;not null;index" json:"category"`
	PaymentMethod       PaymentMethod    `gorm:"size:20;not null" json:"payment_method"`
	Status              DonationStatus   `gorm:"size:20;not null;index" json:"status"`
	CampaignId          *int             `gorm:"index" json:"campaign_id"`
	ProjectId           *int             `gorm:"index" json:"project_id"`
	PledgeId            *int             `gorm:"index" json:"pledge_id"`
	RecurringDonationId *int             `gorm:"uniqueIndex:idx_recurring_period,priority:1" json:"recurring_donation_id"`
	PaymentId           *int             `gorm:"index" json:"payment_id"`
	ReferenceNumber     string           `gorm:"size:100" json:"reference_number"`
	Notes               string           `gorm:"type:text" json:"notes"`
	IsTaxDeductible     bool             `gorm:"not null" json:"is_tax_deductible"`
	MemberName          string           `gorm:"-" json:"member_name,omitempty"`
	CreatedAt           time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt           time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
}

func (d Donation) GetId() int {
	return d.ID
}

func (d *Donation) AfterCreate(tx *gorm.DB) error {
	return SaveHistoryCreate(tx, d.ID, d, fmt.Sprintf("Created donation of %s (%s)", d.Amount.StringFixed(2), d.Status))
}

func (d *Donation) AfterDelete(tx *gorm.DB) error {
	return SaveHistoryDelete(tx, d.ID, d, fmt.Sprintf("Deleted donation of %s", d.Amount.StringFixed(2)))
}

type NewDonation struct {
	MemberId            *int             `json:"member_id"`
	Amount              decimal.Decimal  `json:"amount"`
	DonationDate        time.Time        `json:"donation_date" binding:"required"`
	Category            DonationCategory `json:"category" binding:"required,oneof=tithe offering building missions benevolence other"`
	PaymentMethod       PaymentMethod    `json:"payment_method" binding:"required,oneof=cash check card bank_transfer online"`
	Status              DonationStatus   `json:"status" binding:"omitempty,oneof=pending completed refunded failed"`
	CampaignId          *int             `json:"campaign_id"`
	ProjectId           *int             `json:"project_id"`
	PledgeId            *int             `json:"pledge_id"`
	RecurringDonationId *int             `json:"-"`
	PaymentId           *int             `json:"-"`
	ReferenceNumber     string           `json:"reference_number" binding:"max=100"`
	Notes               string           `json:"notes"`
	IsTaxDeductible     *bool            `json:"is_tax_deductible"`
}

type DonationFilter struct {
	MemberId   int        `form:"member_id" json:"member_id"`
	Category   string     `form:"category" json:"category"`
	Status     string     `form:"status" json:"status"`
	CampaignId int        `form:"campaign_id" json:"campaign_id"`
	ProjectId  int        `form:"project_id" json:"project_id"`
	From       *time.Time `form:"from" time_format:"2006-01-02" json:"from"`
	To         *time.Time `form:"to" time_format:"2006-01-02" json:"to"`
	PageParams
}

// DonationCompletedPayload is the outbox payload of donation.completed.
type DonationCompletedPayload struct {
	DonationId int             `json:"donation_id"`
	MemberId   int             `json:"member_id"`
	Amount     decimal.Decimal `json:"amount"`
}

// validate checks input and references, fills defaults.
func (input *NewDonation) validate(ctx context.Context) error {
	if err := utils.ValidateStruct(input); err != nil {
		return err
	}
	v := &utils.ValidationError{}
	if !input.Amount.IsPositive() {
		v.Add("amount", "must be greater than 0")
	}
	if err := utils.ValidateOptionalReference[Member](ctx, v, "member_id", input.MemberId); err != nil {
		return err
	}
	if err := utils.ValidateOptionalReference[Project](ctx, v, "project_id", input.ProjectId); err != nil {
		return err
	}
	if input.CampaignId != nil && *input.CampaignId != 0 {
		campaign, err := utils.FetchModel[Campaign](ctx, *input.CampaignId)
		switch {
		case errors.Is(err, utils.ErrorRecordNotFound):
			v.Add("campaign_id", "does not exist")
		case err != nil:
			return err
		case campaign.Status == CampaignStatusCancelled:
			v.Add("campaign_id", "campaign is cancelled")
		}
	}
	if input.PledgeId != nil && *input.PledgeId != 0 {
		pledge, err := utils.FetchModel[Pledge](ctx, *input.PledgeId)
		switch {
		case errors.Is(err, utils.ErrorRecordNotFound):
			v.Add("pledge_id", "does not exist")
		case err != nil:
			return err
		case input.MemberId == nil || pledge.MemberId != *input.MemberId:
			v.Add("pledge_id", "must belong to the same member")
		case pledge.Status == PledgeStatusCancelled:
			v.Add("pledge_id", "pledge is cancelled")
		}
	}
	if err := v.OrNil(); err != nil {
		return err
	}
	if input.Status == "" {
		input.Status = DonationStatusCompleted
	}
	if input.IsTaxDeductible == nil {
		input.IsTaxDeductible = utils.NewTrue()
	}
	return nil
}

func zeroAsNil(id *int) *int {
	if id == nil || *id == 0 {
		return nil
	}
	return id
}

func (input *NewDonation) toDonation() Donation {
	return Donation{
		MemberId:            zeroAsNil(input.MemberId),
		Amount:              input.Amount,
		DonationDate:        input.DonationDate,
		Category:            input.Category,
		PaymentMethod:       input.PaymentMethod,
		Status:              input.Status,
		CampaignId:          zeroAsNil(input.CampaignId),
		ProjectId:           zeroAsNil(input.ProjectId),
		PledgeId:            zeroAsNil(input.PledgeId),
		RecurringDonationId: zeroAsNil(input.RecurringDonationId),
		PaymentId:           zeroAsNil(input.PaymentId),
		ReferenceNumber:     input.ReferenceNumber,
		Notes:               input.Notes,
		IsTaxDeductible:     utils.DereferencePtr(input.IsTaxDeductible, true),
	}
}

// createDonationTx inserts a validated donation and applies it to the ledger within tx.
func createDonationTx(tx *gorm.DB, input *NewDonation) (*Donation, LedgerTargets, error) {
	donation := input.toDonation()
	if err := tx.Create(&donation).Error; err != nil {
		return nil, nil, err
	}
	touched, err := ApplyDonationChange(tx, nil, &donation)
	if err != nil {
		return nil, nil, err
	}
	if donation.Status == DonationStatusCompleted {
		if err := publishDonationCompleted(tx, &donation); err != nil {
			return nil, nil, err
		}
	}
	return &donation, touched, nil
}

func publishDonationCompleted(tx *gorm.DB, d *Donation) error {
	if d.MemberId == nil {
		return nil
	}
	return publishEvent(tx, OutboxEventDonationCompleted, "donations", d.ID, DonationCompletedPayload{
		DonationId: d.ID,
		MemberId:   *d.MemberId,
		Amount:     d.Amount,
	})
}

func CreateDonation(ctx context.Context, input *NewDonation) (*Donation, error) {
	if err := input.validate(ctx); err != nil {
		return nil, err
	}
	var donation *Donation
	var touched LedgerTargets
	err := withTx(ctx, func(tx *gorm.DB) error {
		var err error
		donation, touched, err = createDonationTx(tx, input)
		return err
	})
	if err != nil {
		return nil, err
	}
	touched.Invalidate()
	if err := utils.RemoveRedisList[Donation](); err != nil {
		return nil, err
	}
	return donation, nil
}

// UpdateDonation rewrites the donation and moves its ledger contribution within one transaction.
func UpdateDonation(ctx context.Context, id int, input *NewDonation) (*Donation, error) {
	if err := utils.ValidateResourceId[Donation](ctx, id); err != nil {
		return nil, err
	}
	if err := input.validate(ctx); err != nil {
		return nil, err
	}
	var after Donation
	var touched LedgerTargets
	err := withTx(ctx, func(tx *gorm.DB) error {
		before, err := utils.LockModel[Donation](tx, id)
		if err != nil {
			return err
		}
		next := input.toDonation()
		// the link to a recurring schedule or payment is not editable
		next.RecurringDonationId = before.RecurringDonationId
		next.PaymentId = before.PaymentId
		err = tx.Model(&Donation{}).Where("id = ?", id).Select(
			"member_id", "amount", "donation_date", "category", "payment_method", "status",
			"campaign_id", "project_id", "pledge_id", "reference_number", "notes", "is_tax_deductible",
		).Updates(&next).Error
		if err != nil {
			return err
		}
		if err := tx.First(&after, id).Error; err != nil {
			return err
		}
		touched, err = ApplyDonationChange(tx, before, &after)
		if err != nil {
			return err
		}
		if before.Status != DonationStatusCompleted && after.Status == DonationStatusCompleted {
			if err := publishDonationCompleted(tx, &after); err != nil {
				return err
			}
		}
		return SaveHistoryUpdate(tx, "donations", id, before, &after, "Updated donation")
	})
	if err != nil {
		return nil, err
	}
	touched.Invalidate()
	if err := utils.RemoveRedisBoth[Donation](id); err != nil {
		return nil, err
	}
	return &after, nil
}

// SetDonationStatus is used by payment webhooks (refunds, failures).
func SetDonationStatus(tx *gorm.DB, id int, status DonationStatus) (LedgerTargets, error) {
	before, err := utils.LockModel[Donation](tx, id)
	if err != nil {
		return nil, err
	}
	if before.Status == status {
		return nil, nil
	}
	if err := tx.Model(&Donation{}).Where("id = ?", id).Update("status", status).Error; err != nil {
		return nil, err
	}
	after := *before
	after.Status = status
	touched, err := ApplyDonationChange(tx, before, &after)
	if err != nil {
		return nil, err
	}
	if err := SaveHistoryStatus(tx, "donations", id, fmt.Sprintf("donation %s -> %s", before.Status, status)); err != nil {
		return nil, err
	}
	return touched, nil
}

func DeleteDonation(ctx context.Context, id int) (*Donation, error) {
	if err := utils.ValidateResourceId[Donation](ctx, id); err != nil {
		return nil, err
	}
	var donation *Donation
	var touched LedgerTargets
	err := withTx(ctx, func(tx *gorm.DB) error {
		var err error
		donation, err = utils.LockModel[Donation](tx, id)
		if err != nil {
			return err
		}
		if err := tx.Delete(donation).Error; err != nil {
			return err
		}
		touched, err = ApplyDonationChange(tx, donation, nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	touched.Invalidate()
	if err := utils.RemoveRedisBoth[Donation](id); err != nil {
		return nil, err
	}
	return donation, nil
}

func GetDonation(ctx context.Context, id int) (*Donation, error) {
	return GetResource[Donation](ctx, id)
}

func (filter DonationFilter) apply(q *gorm.DB) *gorm.DB {
	if filter.MemberId > 0 {
		q = q.Where("member_id = ?", filter.MemberId)
	}
	if filter.Category != "" {
		q = q.Where("category = ?", filter.Category)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.CampaignId > 0 {
		q = q.Where("campaign_id = ?", filter.CampaignId)
	}
	if filter.ProjectId > 0 {
		q = q.Where("project_id = ?", filter.ProjectId)
	}
	if filter.From != nil {
		q = q.Where("donation_date >= ?", utils.StartOfDay(*filter.From))
	}
	if filter.To != nil {
		q = q.Where("donation_date < ?", utils.StartOfDay(*filter.To).AddDate(0, 0, 1))
	}
	return q
}

func ListDonations(ctx context.Context, filter DonationFilter) (*Page[Donation], error) {
	return utils.RememberList[Donation](filter, func() (*Page[Donation], error) {
		q := filter.apply(config.GetDB().WithContext(ctx).Model(&Donation{}))
		return Paginate[Donation](q, filter.PageParams, "donation_date DESC, id DESC")
	})
}

// AllDonations returns every donation matching filter, for exports.
func AllDonations(ctx context.Context, filter DonationFilter) ([]*Donation, error) {
	var result []*Donation
	err := filter.apply(config.GetDB().WithContext(ctx).Model(&Donation{})).
		Order("donation_date, id").
		Find(&result).Error
	return result, err
}
