package models

import (
	"context"
	"fmt"
	"time"

	"github.com/mmdatafocus/church_backend/config"
	"github.com/mmdatafocus/church_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const pledgeReminderInterval = 7 * 24 * time.Hour

type Pledge struct {
	ID              int             `gorm:"primary_key" json:"id"`
	MemberId        int             `gorm:"not null;index" json:"member_id"`
	CampaignId      *int            `gorm:"index" json:"campaign_id"`
	ProjectId       *int            `gorm:"index" json:"project_id"`
	Amount          decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"amount"`
	FulfilledAmount decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"fulfilled_amount"`
	Frequency       Frequency       `gorm:"size:20;not null" json:"frequency"`
	StartDate       time.Time       `gorm:"not null" json:"start_date"`
	EndDate         time.Time       `gorm:"not null" json:"end_date"`
	Status          PledgeStatus    `gorm:"size:20;not null;index" json:"status"`
	LastReminderAt  *time.Time      `json:"last_reminder_at"`
	Notes           string          `gorm:"type:text" json:"notes"`
	Version         int             `gorm:"not null;default:0" json:"version"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (p Pledge) GetId() int {
	return p.ID
}

func (p *Pledge) AfterCreate(tx *gorm.DB) error {
	return SaveHistoryCreate(tx, p.ID, p, fmt.Sprintf("Created pledge of %s", p.Amount.StringFixed(2)))
}

func (p *Pledge) AfterDelete(tx *gorm.DB) error {
	return SaveHistoryDelete(tx, p.ID, p, fmt.Sprintf("Deleted pledge of %s", p.Amount.StringFixed(2)))
}

// ExpectedToDate is how much should have been given by now:
// amount x elapsed periods / total periods; one_time expects the full amount once started.
func (p Pledge) ExpectedToDate(now time.Time) decimal.Decimal {
	if now.Before(p.StartDate) {
		return decimal.Zero
	}
	if p.Frequency == FrequencyOneTime {
		return p.Amount
	}
	total := occurrencesBetween(p.StartDate, p.EndDate, p.Frequency)
	if total == 0 {
		return p.Amount
	}
	end := now
	if end.After(p.EndDate) {
		end = p.EndDate
	}
	elapsed := occurrencesBetween(p.StartDate, end, p.Frequency)
	return p.Amount.Mul(decimal.NewFromInt(int64(elapsed))).Div(decimal.NewFromInt(int64(total))).Round(2)
}

// Outstanding is amount minus fulfilled, never negative.
func (p Pledge) Outstanding() decimal.Decimal {
	rest := p.Amount.Sub(p.FulfilledAmount)
	if rest.IsNegative() {
		return decimal.Zero
	}
	return rest
}

type NewPledge struct {
	MemberId   int             `json:"member_id" binding:"required"`
	CampaignId *int            `json:"campaign_id"`
	ProjectId  *int            `json:"project_id"`
	Amount     decimal.Decimal `json:"amount"`
	Frequency  Frequency       `json:"frequency" binding:"required,oneof=one_time weekly biweekly monthly quarterly annually"`
	StartDate  time.Time       `json:"start_date" binding:"required"`
	EndDate    time.Time       `json:"end_date" binding:"required"`
	Status     PledgeStatus    `json:"status" binding:"omitempty,oneof=active cancelled"`
	Notes      string          `json:"notes"`
}

type PledgeFilter struct {
	MemberId   int    `form:"member_id" json:"member_id"`
	CampaignId int    `form:"campaign_id" json:"campaign_id"`
	ProjectId  int    `form:"project_id" json:"project_id"`
	Status     string `form:"status" json:"status"`
	PageParams
}

// PledgeReminderPayload is the outbox payload of pledge.reminder.
type PledgeReminderPayload struct {
	PledgeId    int             `json:"pledge_id"`
	MemberId    int             `json:"member_id"`
	Expected    decimal.Decimal `json:"expected"`
	Fulfilled   decimal.Decimal `json:"fulfilled"`
	Outstanding decimal.Decimal `json:"outstanding"`
}

func (input *NewPledge) validate(ctx context.Context) error {
	if err := utils.ValidateStruct(input); err != nil {
		return err
	}
	v := &utils.ValidationError{}
	if !input.Amount.IsPositive() {
		v.Add("amount", "must be greater than 0")
	}
	if input.EndDate.Before(input.StartDate) {
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
	if err := v.OrNil(); err != nil {
		return err
	}
	if input.Status == "" {
		input.Status = PledgeStatusActive
	}
	return nil
}

func CreatePledge(ctx context.Context, input *NewPledge) (*Pledge, error) {
	if err := input.validate(ctx); err != nil {
		return nil, err
	}
	pledge := Pledge{
		MemberId:        input.MemberId,
		CampaignId:      zeroAsNil(input.CampaignId),
		ProjectId:       zeroAsNil(input.ProjectId),
		Amount:          input.Amount,
		FulfilledAmount: decimal.Zero,
		Frequency:       input.Frequency,
		StartDate:       input.StartDate,
		EndDate:         input.EndDate,
		Status:          input.Status,
		Notes:           input.Notes,
	}
	if err := config.GetDB().WithContext(ctx).Create(&pledge).Error; err != nil {
		return nil, err
	}
	if err := utils.RemoveRedisList[Pledge](); err != nil {
		return nil, err
	}
	return &pledge, nil
}

// UpdatePledge keeps fulfilled_amount and re-derives fulfilled/active from the new amount.
func UpdatePledge(ctx context.Context, id int, input *NewPledge) (*Pledge, error) {
	if err := utils.ValidateResourceId[Pledge](ctx, id); err != nil {
		return nil, err
	}
	if err := input.validate(ctx); err != nil {
		return nil, err
	}
	var after Pledge
	err := withTx(ctx, func(tx *gorm.DB) error {
		before, err := utils.LockModel[Pledge](tx, id)
		if err != nil {
			return err
		}
		status := input.Status
		if status == PledgeStatusActive && before.Status != PledgeStatusCancelled {
			// fulfilled and overdue are derived; keep them unless the pledge is re-opened
			status = before.Status
		}
		err = tx.Model(&Pledge{}).Where("id = ?", id).Updates(map[string]interface{}{
			"member_id":   input.MemberId,
			"campaign_id": zeroAsNil(input.CampaignId),
			"project_id":  zeroAsNil(input.ProjectId),
			"amount":      input.Amount,
			"frequency":   input.Frequency,
			"start_date":  input.StartDate,
			"end_date":    input.EndDate,
			"status":      status,
			"notes":       input.Notes,
		}).Error
		if err != nil {
			return err
		}
		if err := syncPledgeStatus(tx, id); err != nil {
			return err
		}
		if err := tx.First(&after, id).Error; err != nil {
			return err
		}
		return SaveHistoryUpdate(tx, "pledges", id, before, &after, "Updated pledge")
	})
	if err != nil {
		return nil, err
	}
	if err := utils.RemoveRedisBoth[Pledge](id); err != nil {
		return nil, err
	}
	return &after, nil
}

func DeletePledge(ctx context.Context, id int) (*Pledge, error) {
	pledge, err := utils.FetchModel[Pledge](ctx, id)
	if err != nil {
		return nil, err
	}
	count, err := utils.ResourceCountWhere[Donation](ctx, "pledge_id = ?", id)
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, utils.NewBusinessError("pledge has %d donation(s); cancel it instead", count)
	}
	if err := config.GetDB().WithContext(ctx).Delete(pledge).Error; err != nil {
		return nil, err
	}
	if err := utils.RemoveRedisBoth[Pledge](id); err != nil {
		return nil, err
	}
	return pledge, nil
}

func GetPledge(ctx context.Context, id int) (*Pledge, error) {
	return GetResource[Pledge](ctx, id)
}

func ListPledges(ctx context.Context, filter PledgeFilter) (*Page[Pledge], error) {
	return utils.RememberList[Pledge](filter, func() (*Page[Pledge], error) {
		q := config.GetDB().WithContext(ctx).Model(&Pledge{})
		if filter.MemberId > 0 {
			q = q.Where("member_id = ?", filter.MemberId)
		}
		if filter.CampaignId > 0 {
			q = q.Where("campaign_id = ?", filter.CampaignId)
		}
		if filter.ProjectId > 0 {
			q = q.Where("project_id = ?", filter.ProjectId)
		}
		if filter.Status != "" {
			q = q.Where("status = ?", filter.Status)
		}
		return Paginate[Pledge](q, filter.PageParams, "start_date DESC, id DESC")
	})
}

// DuePledges are active pledges behind schedule that were not reminded in the last week.
func DuePledges(ctx context.Context, now time.Time) ([]*Pledge, error) {
	var active []*Pledge
	err := config.GetDB().WithContext(ctx).
		Where("status = ? AND start_date <= ?", PledgeStatusActive, now).
		Order("id").
		Find(&active).Error
	if err != nil {
		return nil, err
	}
	cutoff := now.Add(-pledgeReminderInterval)
	due := make([]*Pledge, 0, len(active))
	for _, p := range active {
		if p.LastReminderAt != nil && p.LastReminderAt.After(cutoff) {
			continue
		}
		if p.ExpectedToDate(now).GreaterThan(p.FulfilledAmount) {
			due = append(due, p)
		}
	}
	return due, nil
}

// MarkOverduePledges moves unfulfilled active pledges past their end date to overdue.
func MarkOverduePledges(ctx context.Context, now time.Time) (int, error) {
	var expired []*Pledge
	err := config.GetDB().WithContext(ctx).
		Where("status = ? AND end_date < ?", PledgeStatusActive, now).
		Find(&expired).Error
	if err != nil {
		return 0, err
	}
	marked := 0
	for _, p := range expired {
		if p.FulfilledAmount.GreaterThanOrEqual(p.Amount) {
			continue
		}
		err := withTx(ctx, func(tx *gorm.DB) error {
			if err := tx.Model(p).Update("status", PledgeStatusOverdue).Error; err != nil {
				return err
			}
			return SaveHistoryStatus(tx, "pledges", p.ID, "pledge active -> overdue")
		})
		if err != nil {
			return marked, err
		}
		if err := utils.RemoveRedisBoth[Pledge](p.ID); err != nil {
			config.LogError(config.GetLogger(), "models", "MarkOverduePledges", "RemoveRedisBoth", p.ID, err)
		}
		marked++
	}
	return marked, nil
}

// QueuePledgeReminders enqueues a pledge.reminder for each due pledge and stamps last_reminder_at.
func QueuePledgeReminders(ctx context.Context, now time.Time) (int, error) {
	due, err := DuePledges(ctx, now)
	if err != nil {
		return 0, err
	}
	queued := 0
	for _, p := range due {
		expected := p.ExpectedToDate(now)
		err := withTx(ctx, func(tx *gorm.DB) error {
			if err := tx.Model(p).Update("last_reminder_at", now).Error; err != nil {
				return err
			}
			return publishEvent(tx, OutboxEventPledgeReminder, "pledges", p.ID, PledgeReminderPayload{
				PledgeId:    p.ID,
				MemberId:    p.MemberId,
				Expected:    expected,
				Fulfilled:   p.FulfilledAmount,
				Outstanding: expected.Sub(p.FulfilledAmount),
			})
		})
		if err != nil {
			return queued, err
		}
		if err := utils.RemoveRedisItem[Pledge](p.ID); err != nil {
			config.LogError(config.GetLogger(), "models", "QueuePledgeReminders", "RemoveRedisItem", p.ID, err)
		}
		queued++
	}
	return queued, nil
}
