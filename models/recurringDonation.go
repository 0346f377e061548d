package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mmdatafocus/church_backend/config"
	"github.com/mmdatafocus/church_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// MaxCatchUpRuns caps how many missed periods one processing run creates per schedule.
const MaxCatchUpRuns = 12

type RecurringDonation struct {
	ID            int              `gorm:"primary_key" json:"id"`
	MemberId      int              `gorm:"not null;index" json:"member_id"`
	Amount        decimal.Decimal  `gorm:"type:decimal(20,4);not null" json:"amount"`
	Category      DonationCategory `gorm:"size:20;not null" json:"category"`
	PaymentMethod PaymentMethod    `gorm:"size:20;not null" json:"payment_method"`
	CampaignId    *int             `gorm:"index" json:"campaign_id"`
	ProjectId     *int             `gorm:"index" json:"project_id"`
	Frequency     Frequency        `gorm:"size:20;not null" json:"frequency"`
	StartDate     time.Time        `gorm:"not null" json:"start_date"`
	EndDate       *time.Time       `json:"end_date"`
	NextRunDate   time.Time        `gorm:"not null;index" json:"next_run_date"`
	LastRunAt     *time.Time       `json:"last_run_at"`
	RunsCount     int              `gorm:"not null" json:"runs_count"`
	Status        RecurringStatus  `gorm:"size:20;not null;index" json:"status"`
	Notes         string           `gorm:"type:text" json:"notes"`
	CreatedAt     time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
}

func (r RecurringDonation) GetId() int {
	return r.ID
}

type NewRecurringDonation struct {
	MemberId      int              `json:"member_id" binding:"required"`
	Amount        decimal.Decimal  `json:"amount"`
	Category      DonationCategory `json:"category" binding:"required,oneof=tithe offering building missions benevolence other"`
	PaymentMethod PaymentMethod    `json:"payment_method" binding:"required,oneof=cash check card bank_transfer online"`
	CampaignId    *int             `json:"campaign_id"`
	ProjectId     *int             `json:"project_id"`
	Frequency     Frequency        `json:"frequency" binding:"required,oneof=weekly biweekly monthly quarterly annually"`
	StartDate     time.Time        `json:"start_date" binding:"required"`
	EndDate       *time.Time       `json:"end_date"`
	Notes         string           `json:"notes"`
}

type RecurringDonationFilter struct {
	MemberId int    `form:"member_id" json:"member_id"`
	Status   string `form:"status" json:"status"`
	PageParams
}

// RecurringRunResult summarizes one processing run.
type RecurringRunResult struct {
	Processed int      `json:"processed"`
	Created   int      `json:"created"`
	Completed int      `json:"completed"`
	Failed    int      `json:"failed"`
	Errors    []string `json:"errors"`
}

func (input *NewRecurringDonation) validate(ctx context.Context) error {
	if err := utils.ValidateStruct(input); err != nil {
		return err
	}
	v := &utils.ValidationError{}
	if !input.Amount.IsPositive() {
		v.Add("amount", "must be greater than 0")
	}
	if input.EndDate != nil && input.EndDate.Before(input.StartDate) {
		v.Add("end_date", "must be on or after start_date")
	}
	memberId := input.MemberId
	if err := utils.ValidateOptionalReference[Member](ctx, v, "member_id", &memberId); err != nil {
		return err
	}
	if err := utils.ValidateOptionalReference[Campaign](ctx, v, "campaign_id", input.CampaignId); err != nil {
		return err
	}
	if err := utils.ValidateOptionalReference[Project](ctx, v, "project_id", input.ProjectId); err != nil {
		return err
	}
	return v.OrNil()
}

func CreateRecurringDonation(ctx context.Context, input *NewRecurringDonation) (*RecurringDonation, error) {
	if err := input.validate(ctx); err != nil {
		return nil, err
	}
	rd := RecurringDonation{
		MemberId:      input.MemberId,
		Amount:        input.Amount,
		Category:      input.Category,
		PaymentMethod: input.PaymentMethod,
		CampaignId:    zeroAsNil(input.CampaignId),
		ProjectId:     zeroAsNil(input.ProjectId),
		Frequency:     input.Frequency,
		StartDate:     input.StartDate,
		EndDate:       input.EndDate,
		NextRunDate:   input.StartDate,
		Status:        RecurringStatusActive,
		Notes:         input.Notes,
	}
	if err := config.GetDB().WithContext(ctx).Create(&rd).Error; err != nil {
		return nil, err
	}
	if err := utils.RemoveRedisList[RecurringDonation](); err != nil {
		return nil, err
	}
	return &rd, nil
}

// UpdateRecurringDonation changes terms; the schedule is re-anchored only when start_date changes
// and nothing has run yet.
func UpdateRecurringDonation(ctx context.Context, id int, input *NewRecurringDonation) (*RecurringDonation, error) {
	rd, err := utils.FetchModel[RecurringDonation](ctx, id)
	if err != nil {
		return nil, err
	}
	if err := input.validate(ctx); err != nil {
		return nil, err
	}
	updates := map[string]interface{}{
		"member_id":      input.MemberId,
		"amount":         input.Amount,
		"category":       input.Category,
		"payment_method": input.PaymentMethod,
		"campaign_id":    zeroAsNil(input.CampaignId),
		"project_id":     zeroAsNil(input.ProjectId),
		"frequency":      input.Frequency,
		"start_date":     input.StartDate,
		"end_date":       input.EndDate,
		"notes":          input.Notes,
	}
	if rd.RunsCount == 0 {
		updates["next_run_date"] = input.StartDate
	}
	if err := config.GetDB().WithContext(ctx).Model(rd).Updates(updates).Error; err != nil {
		return nil, err
	}
	if err := utils.RemoveRedisBoth[RecurringDonation](id); err != nil {
		return nil, err
	}
	return utils.FetchModel[RecurringDonation](ctx, id)
}

var recurringTransitions = map[RecurringStatus][]RecurringStatus{
	RecurringStatusPaused:    {RecurringStatusActive},
	RecurringStatusActive:    {RecurringStatusPaused},
	RecurringStatusCancelled: {RecurringStatusActive, RecurringStatusPaused},
}

// SetRecurringStatus pauses, resumes or cancels a schedule.
func SetRecurringStatus(ctx context.Context, id int, status RecurringStatus) (*RecurringDonation, error) {
	rd, err := utils.FetchModel[RecurringDonation](ctx, id)
	if err != nil {
		return nil, err
	}
	allowed := false
	for _, from := range recurringTransitions[status] {
		if rd.Status == from {
			allowed = true
		}
	}
	if !allowed {
		return nil, utils.NewBusinessError("cannot change recurring donation from %s to %s", rd.Status, status)
	}
	from := rd.Status
	err = withTx(ctx, func(tx *gorm.DB) error {
		if err := tx.Model(&RecurringDonation{}).Where("id = ?", id).Update("status", status).Error; err != nil {
			return err
		}
		return SaveHistoryStatus(tx, "recurring_donations", id, fmt.Sprintf("recurring donation %s -> %s", from, status))
	})
	if err != nil {
		return nil, err
	}
	if err := utils.RemoveRedisBoth[RecurringDonation](id); err != nil {
		return nil, err
	}
	return utils.FetchModel[RecurringDonation](ctx, id)
}

func DeleteRecurringDonation(ctx context.Context, id int) (*RecurringDonation, error) {
	rd, err := utils.FetchModel[RecurringDonation](ctx, id)
	if err != nil {
		return nil, err
	}
	count, err := utils.ResourceCountWhere[Donation](ctx, "recurring_donation_id = ?", id)
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, utils.NewBusinessError("recurring donation has created %d donation(s); cancel it instead", count)
	}
	if err := config.GetDB().WithContext(ctx).Delete(rd).Error; err != nil {
		return nil, err
	}
	if err := utils.RemoveRedisBoth[RecurringDonation](id); err != nil {
		return nil, err
	}
	return rd, nil
}

func GetRecurringDonation(ctx context.Context, id int) (*RecurringDonation, error) {
	return GetResource[RecurringDonation](ctx, id)
}

func ListRecurringDonations(ctx context.Context, filter RecurringDonationFilter) (*Page[RecurringDonation], error) {
	return utils.RememberList[RecurringDonation](filter, func() (*Page[RecurringDonation], error) {
		q := config.GetDB().WithContext(ctx).Model(&RecurringDonation{})
		if filter.MemberId > 0 {
			q = q.Where("member_id = ?", filter.MemberId)
		}
		if filter.Status != "" {
			q = q.Where("status = ?", filter.Status)
		}
		return Paginate[RecurringDonation](q, filter.PageParams, "next_run_date, id")
	})
}

// ProcessDueRecurringDonations creates the donations of every active schedule due by now.
// Each schedule runs in its own transaction; a failure is recorded and the run continues.
func ProcessDueRecurringDonations(ctx context.Context, now time.Time) (*RecurringRunResult, error) {
	var due []*RecurringDonation
	err := config.GetDB().WithContext(ctx).
		Where("status = ? AND next_run_date <= ?", RecurringStatusActive, now).
		Order("next_run_date, id").
		Find(&due).Error
	if err != nil {
		return nil, err
	}
	result := &RecurringRunResult{Errors: []string{}}
	logger := config.GetLogger()
	for _, rd := range due {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		result.Processed++
		created, completed, err := processRecurringDonation(ctx, rd.ID, now)
		if err != nil {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("recurring donation %d: %v", rd.ID, err))
			config.LogError(logger, "models", "ProcessDueRecurringDonations", "processRecurringDonation", rd.ID, err)
			continue
		}
		result.Created += created
		if completed {
			result.Completed++
		}
	}
	logger.WithFields(logrus.Fields{
		"processed": result.Processed,
		"created":   result.Created,
		"completed": result.Completed,
		"failed":    result.Failed,
	}).Info("recurring donations processed")
	return result, nil
}

// donationInput is the donation one run of rd creates on date.
func (rd *RecurringDonation) donationInput(date time.Time) *NewDonation {
	recurringId := rd.ID
	memberId := rd.MemberId
	return &NewDonation{
		MemberId:            &memberId,
		Amount:              rd.Amount,
		DonationDate:        date,
		Category:            rd.Category,
		PaymentMethod:       rd.PaymentMethod,
		Status:              DonationStatusCompleted,
		CampaignId:          rd.CampaignId,
		ProjectId:           rd.ProjectId,
		RecurringDonationId: &recurringId,
		Notes:               fmt.Sprintf("Recurring donation #%d", rd.ID),
		IsTaxDeductible:     utils.NewTrue(),
	}
}

func processRecurringDonation(ctx context.Context, id int, now time.Time) (int, bool, error) {
	var current RecurringDonation
	if err := config.GetDB().WithContext(ctx).First(&current, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, false, nil
		}
		return 0, false, err
	}
	// the same rules as a hand-entered gift; a cancelled campaign stops the schedule from posting
	if err := current.donationInput(current.NextRunDate).validate(ctx); err != nil {
		return 0, false, err
	}

	created := 0
	completed := false
	var touched LedgerTargets
	err := withTx(ctx, func(tx *gorm.DB) error {
		rd, err := utils.LockModel[RecurringDonation](tx, id)
		if err != nil {
			return err
		}
		// another run got here first
		if rd.Status != RecurringStatusActive || rd.NextRunDate.After(now) {
			return nil
		}
		anchor := rd.StartDate.Day()
		next := rd.NextRunDate
		for runs := 0; runs < MaxCatchUpRuns && !next.After(now); runs++ {
			if rd.EndDate != nil && next.After(*rd.EndDate) {
				break
			}
			var exists int64
			err := tx.Model(&Donation{}).
				Where("recurring_donation_id = ? AND donation_date = ?", rd.ID, next).
				Count(&exists).Error
			if err != nil {
				return err
			}
			if exists == 0 {
				_, t, err := createDonationTx(tx, rd.donationInput(next))
				if err != nil {
					return err
				}
				touched = append(touched, t...)
				created++
			}
			next = NextOccurrence(next, rd.Frequency, anchor)
		}
		status := rd.Status
		if rd.EndDate != nil && next.After(*rd.EndDate) {
			status = RecurringStatusCompleted
			completed = true
		}
		return tx.Model(&RecurringDonation{}).Where("id = ?", rd.ID).Updates(map[string]interface{}{
			"next_run_date": next,
			"last_run_at":   now,
			"runs_count":    gorm.Expr("runs_count + ?", created),
			"status":        status,
		}).Error
	})
	if err != nil {
		if errors.Is(err, utils.ErrorRecordNotFound) {
			return 0, false, nil
		}
		return 0, false, err
	}
	touched.Invalidate()
	if err := utils.RemoveRedisBoth[RecurringDonation](id); err != nil {
		config.LogError(config.GetLogger(), "models", "processRecurringDonation", "RemoveRedisBoth", id, err)
	}
	if created > 0 {
		if err := utils.RemoveRedisList[Donation](); err != nil {
			config.LogError(config.GetLogger(), "models", "processRecurringDonation", "RemoveRedisList", id, err)
		}
	}
	return created, completed, nil
}
