package models

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mmdatafocus/church_backend/config"
	"github.com/mmdatafocus/church_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type TaxReceipt struct {
	ID            int              `gorm:"primary_key" json:"id"`
	MemberId      int              `gorm:"not null;index:idx_receipt_member_year,priority:1" json:"member_id"`
	TaxYear       int              `gorm:"not null;index:idx_receipt_member_year,priority:2" json:"tax_year"`
	Sequence      int              `gorm:"not null" json:"sequence"`
	ReceiptNumber string           `gorm:"size:30;not null;uniqueIndex" json:"receipt_number"`
	TotalAmount   decimal.Decimal  `gorm:"type:decimal(20,4);not null" json:"total_amount"`
	DonationCount int              `gorm:"not null" json:"donation_count"`
	IssuedAt      time.Time        `gorm:"not null" json:"issued_at"`
	Status        TaxReceiptStatus `gorm:"size:20;not null;index" json:"status"`
	FileUrl       string           `gorm:"size:500" json:"file_url"`
	SentAt        *time.Time       `json:"sent_at"`
	VoidReason    string           `gorm:"type:text" json:"void_reason"`
	VoidedAt      *time.Time       `json:"voided_at"`
	// "<member>:<year>" while the receipt is live, NULL once void; at most one live receipt per member and year
	ActiveSlot    *string          `gorm:"size:40;uniqueIndex" json:"-"`
	CreatedAt     time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
}

func (r TaxReceipt) GetId() int {
	return r.ID
}

// TaxReceiptLine is a donation as it stood when its receipt was issued.
// Receipts render from these lines, so later edits or refunds do not change an issued receipt.
type TaxReceiptLine struct {
	ID           int              `gorm:"primary_key" json:"id"`
	TaxReceiptId int              `gorm:"not null;index" json:"tax_receipt_id"`
	DonationId   int              `gorm:"not null;index" json:"donation_id"`
	DonationDate time.Time        `gorm:"not null" json:"donation_date"`
	Category     DonationCategory `gorm:"size:20;not null" json:"category"`
	Amount       decimal.Decimal  `gorm:"type:decimal(20,4);not null" json:"amount"`
}

func activeReceiptSlot(memberId int, year int) *string {
	slot := fmt.Sprintf("%d:%d", memberId, year)
	return &slot
}

// TaxReceiptSequence holds the last receipt number issued per tax year.
type TaxReceiptSequence struct {
	TaxYear    int `gorm:"primaryKey;autoIncrement:false" json:"tax_year"`
	LastNumber int `gorm:"not null" json:"last_number"`
}

func FormatReceiptNumber(year int, sequence int) string {
	return fmt.Sprintf("TR-%d-%06d", year, sequence)
}

type TaxReceiptFilter struct {
	MemberId int    `form:"member_id" json:"member_id"`
	TaxYear  int    `form:"tax_year" json:"tax_year"`
	Status   string `form:"status" json:"status"`
	PageParams
}

type NewTaxReceipt struct {
	MemberId int `json:"member_id" binding:"required"`
	TaxYear  int `json:"tax_year" binding:"required,gte=1900,max=9999"`
}

// TaxReceiptIssuedPayload is the outbox payload of tax_receipt.issued.
type TaxReceiptIssuedPayload struct {
	TaxReceiptId  int    `json:"tax_receipt_id"`
	MemberId      int    `json:"member_id"`
	ReceiptNumber string `json:"receipt_number"`
}

type AnnualReceiptResult struct {
	TaxYear int      `json:"tax_year"`
	Issued  int      `json:"issued"`
	Failed  int      `json:"failed"`
	Errors  []string `json:"errors"`
}

// qualifyingDonations are the completed, tax-deductible donations of a member in year.
func qualifyingDonations(db *gorm.DB, memberId int, year int) ([]*Donation, error) {
	from, to := utils.YearRange(year)
	var result []*Donation
	err := db.Model(&Donation{}).
		Where("member_id = ? AND status = ? AND is_tax_deductible = ? AND donation_date >= ? AND donation_date < ?",
			memberId, DonationStatusCompleted, true, from, to).
		Order("donation_date, id").
		Find(&result).Error
	return result, err
}

func sumDonations(donations []*Donation) decimal.Decimal {
	total := decimal.Zero
	for _, d := range donations {
		total = total.Add(d.Amount)
	}
	return total
}

// nextReceiptSequence increments the per-year counter under a row lock.
func nextReceiptSequence(tx *gorm.DB, year int) (int, error) {
	var seq TaxReceiptSequence
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("tax_year = ?", year).Take(&seq).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		seq = TaxReceiptSequence{TaxYear: year, LastNumber: 0}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&seq).Error; err != nil {
			return 0, err
		}
		err = tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("tax_year = ?", year).Take(&seq).Error
	}
	if err != nil {
		return 0, err
	}
	seq.LastNumber++
	if err := tx.Model(&seq).Where("tax_year = ?", year).Update("last_number", seq.LastNumber).Error; err != nil {
		return 0, err
	}
	return seq.LastNumber, nil
}

// GenerateTaxReceipt issues the year-end receipt of one member and stores its PDF.
// The duplicate check runs after the year's sequence row is locked, so concurrent calls serialize.
func GenerateTaxReceipt(ctx context.Context, memberId int, year int) (*TaxReceipt, error) {
	member, err := utils.FetchModel[Member](ctx, memberId)
	if err != nil {
		return nil, err
	}

	var receipt TaxReceipt
	var lines []TaxReceiptLine
	err = withTx(ctx, func(tx *gorm.DB) error {
		sequence, err := nextReceiptSequence(tx, year)
		if err != nil {
			return err
		}
		var existing int64
		err = tx.Model(&TaxReceipt{}).
			Where("member_id = ? AND tax_year = ? AND status <> ?", memberId, year, TaxReceiptStatusVoid).
			Count(&existing).Error
		if err != nil {
			return err
		}
		if existing > 0 {
			return utils.NewBusinessError("a tax receipt for %d was already issued to %s", year, member.FullName())
		}
		donations, err := qualifyingDonations(tx, memberId, year)
		if err != nil {
			return err
		}
		total := sumDonations(donations)
		if total.IsZero() {
			return utils.NewBusinessError("%s has no tax-deductible donations in %d", member.FullName(), year)
		}

		receipt = TaxReceipt{
			MemberId:      memberId,
			TaxYear:       year,
			Sequence:      sequence,
			ReceiptNumber: FormatReceiptNumber(year, sequence),
			TotalAmount:   total,
			DonationCount: len(donations),
			IssuedAt:      time.Now().UTC(),
			Status:        TaxReceiptStatusIssued,
			ActiveSlot:    activeReceiptSlot(memberId, year),
		}
		if err := tx.Create(&receipt).Error; err != nil {
			return err
		}
		lines = make([]TaxReceiptLine, 0, len(donations))
		for _, d := range donations {
			lines = append(lines, TaxReceiptLine{
				TaxReceiptId: receipt.ID,
				DonationId:   d.ID,
				DonationDate: d.DonationDate,
				Category:     d.Category,
				Amount:       d.Amount,
			})
		}
		if err := tx.Create(&lines).Error; err != nil {
			return err
		}
		return publishEvent(tx, OutboxEventTaxReceiptIssued, "tax_receipts", receipt.ID, TaxReceiptIssuedPayload{
			TaxReceiptId:  receipt.ID,
			MemberId:      memberId,
			ReceiptNumber: receipt.ReceiptNumber,
		})
	})
	if err != nil {
		return nil, err
	}

	// the PDF can always be re-rendered, so a storage failure does not undo the receipt
	if url, err := storeReceiptPdf(ctx, &receipt, member, lines); err != nil {
		config.LogError(config.GetLogger(), "models", "GenerateTaxReceipt", "storeReceiptPdf", receipt.ID, err)
	} else {
		receipt.FileUrl = url
		err := config.GetDB().WithContext(ctx).Model(&TaxReceipt{}).Where("id = ?", receipt.ID).Update("file_url", url).Error
		if err != nil {
			return nil, err
		}
	}
	if err := utils.RemoveRedisList[TaxReceipt](); err != nil {
		return nil, err
	}
	return &receipt, nil
}

// ListTaxReceiptLines returns the donations a receipt was issued for.
func ListTaxReceiptLines(ctx context.Context, id int) ([]TaxReceiptLine, error) {
	var lines []TaxReceiptLine
	err := config.GetDB().WithContext(ctx).Where("tax_receipt_id = ?", id).Order("donation_date, donation_id").Find(&lines).Error
	return lines, err
}

func receiptDocument(receipt *TaxReceipt, member *Member, lines []TaxReceiptLine) utils.ReceiptDocument {
	docLines := make([]utils.ReceiptLine, 0, len(lines))
	for _, l := range lines {
		category := string(l.Category)
		if category != "" {
			category = strings.ToUpper(category[:1]) + category[1:]
		}
		docLines = append(docLines, utils.ReceiptLine{
			Date:     l.DonationDate,
			Category: category,
			Amount:   l.Amount,
		})
	}
	return utils.ReceiptDocument{
		ChurchName:    config.ChurchName(),
		ChurchAddress: config.ChurchAddress(),
		ChurchTaxId:   config.ChurchTaxId(),
		ReceiptNumber: receipt.ReceiptNumber,
		TaxYear:       receipt.TaxYear,
		IssuedAt:      receipt.IssuedAt,
		DonorName:     member.FullName(),
		DonorAddress:  member.Address,
		Lines:         docLines,
		Total:         receipt.TotalAmount,
		Void:          receipt.Status == TaxReceiptStatusVoid,
	}
}

func storeReceiptPdf(ctx context.Context, receipt *TaxReceipt, member *Member, lines []TaxReceiptLine) (string, error) {
	data, err := utils.RenderReceiptPdf(receiptDocument(receipt, member, lines))
	if err != nil {
		return "", err
	}
	name := fmt.Sprintf("tax-receipts/%d/%s.pdf", receipt.TaxYear, receipt.ReceiptNumber)
	return utils.StoreObject(ctx, name, data, "application/pdf")
}

// RenderTaxReceiptPdf re-renders the PDF of a receipt from the lines captured at issue.
func RenderTaxReceiptPdf(ctx context.Context, id int) ([]byte, *TaxReceipt, error) {
	receipt, err := utils.FetchModel[TaxReceipt](ctx, id)
	if err != nil {
		return nil, nil, err
	}
	member, err := utils.FetchModel[Member](ctx, receipt.MemberId)
	if err != nil {
		return nil, nil, err
	}
	lines, err := ListTaxReceiptLines(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	data, err := utils.RenderReceiptPdf(receiptDocument(receipt, member, lines))
	if err != nil {
		return nil, nil, err
	}
	return data, receipt, nil
}

// SendTaxReceipt emails the PDF to the member and marks the receipt sent.
func SendTaxReceipt(ctx context.Context, id int) (*TaxReceipt, error) {
	data, receipt, err := RenderTaxReceiptPdf(ctx, id)
	if err != nil {
		return nil, err
	}
	if receipt.Status == TaxReceiptStatusVoid {
		return nil, utils.NewBusinessError("tax receipt %s is void", receipt.ReceiptNumber)
	}
	member, err := utils.FetchModel[Member](ctx, receipt.MemberId)
	if err != nil {
		return nil, err
	}
	if member.EmailAddress() == "" {
		return nil, utils.NewBusinessError("%s has no email address", member.FullName())
	}
	err = utils.SendMail(ctx, utils.MailMessage{
		To:      member.EmailAddress(),
		Subject: fmt.Sprintf("%s donation receipt %d", config.ChurchName(), receipt.TaxYear),
		Body: fmt.Sprintf("Dear %s,\n\nThank you for your generosity in %d. Your official donation receipt %s for %s is attached.\n\n%s",
			member.FirstName, receipt.TaxYear, receipt.ReceiptNumber, receipt.TotalAmount.StringFixed(2), config.ChurchName()),
		Attachments: []utils.MailAttachment{{
			Filename: receipt.ReceiptNumber + ".pdf",
			Data:     data,
		}},
	})
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	err = config.GetDB().WithContext(ctx).Model(&TaxReceipt{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":  TaxReceiptStatusSent,
		"sent_at": &now,
	}).Error
	if err != nil {
		return nil, err
	}
	if err := utils.RemoveRedisBoth[TaxReceipt](id); err != nil {
		return nil, err
	}
	return utils.FetchModel[TaxReceipt](ctx, id)
}

func VoidTaxReceipt(ctx context.Context, id int, reason string) (*TaxReceipt, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, utils.NewValidationError("reason", "is required")
	}
	receipt, err := utils.FetchModel[TaxReceipt](ctx, id)
	if err != nil {
		return nil, err
	}
	if receipt.Status == TaxReceiptStatusVoid {
		return nil, utils.NewBusinessError("tax receipt %s is already void", receipt.ReceiptNumber)
	}
	now := time.Now().UTC()
	err = withTx(ctx, func(tx *gorm.DB) error {
		err := tx.Model(&TaxReceipt{}).Where("id = ?", id).Updates(map[string]interface{}{
			"status":      TaxReceiptStatusVoid,
			"void_reason": reason,
			"voided_at":   &now,
			"active_slot": nil,
		}).Error
		if err != nil {
			return err
		}
		return SaveHistoryStatus(tx, "tax_receipts", id, fmt.Sprintf("receipt %s voided: %s", receipt.ReceiptNumber, reason))
	})
	if err != nil {
		return nil, err
	}
	if err := utils.RemoveRedisBoth[TaxReceipt](id); err != nil {
		return nil, err
	}
	return utils.FetchModel[TaxReceipt](ctx, id)
}

// GenerateAnnualTaxReceipts issues receipts for every member with qualifying donations in year
// and no receipt yet. Per-member failures are collected, not fatal.
func GenerateAnnualTaxReceipts(ctx context.Context, year int) (*AnnualReceiptResult, error) {
	from, to := utils.YearRange(year)
	db := config.GetDB().WithContext(ctx)
	receipted := db.Model(&TaxReceipt{}).Select("member_id").Where("tax_year = ? AND status <> ?", year, TaxReceiptStatusVoid)
	var memberIds []int
	err := db.Model(&Donation{}).
		Distinct("member_id").
		Where("member_id IS NOT NULL AND status = ? AND is_tax_deductible = ? AND donation_date >= ? AND donation_date < ?",
			DonationStatusCompleted, true, from, to).
		Where("member_id NOT IN (?)", receipted).
		Order("member_id").
		Pluck("member_id", &memberIds).Error
	if err != nil {
		return nil, err
	}
	result := &AnnualReceiptResult{TaxYear: year, Errors: []string{}}
	for _, id := range memberIds {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		if _, err := GenerateTaxReceipt(ctx, id, year); err != nil {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("member %d: %v", id, err))
			continue
		}
		result.Issued++
	}
	config.GetLogger().WithField("tax_year", year).WithField("issued", result.Issued).WithField("failed", result.Failed).Info("annual tax receipts generated")
	return result, nil
}

func GetTaxReceipt(ctx context.Context, id int) (*TaxReceipt, error) {
	return GetResource[TaxReceipt](ctx, id)
}

func ListTaxReceipts(ctx context.Context, filter TaxReceiptFilter) (*Page[TaxReceipt], error) {
	return utils.RememberList[TaxReceipt](filter, func() (*Page[TaxReceipt], error) {
		q := config.GetDB().WithContext(ctx).Model(&TaxReceipt{})
		if filter.MemberId > 0 {
			q = q.Where("member_id = ?", filter.MemberId)
		}
		if filter.TaxYear > 0 {
			q = q.Where("tax_year = ?", filter.TaxYear)
		}
		if filter.Status != "" {
			q = q.Where("status = ?", filter.Status)
		}
		return Paginate[TaxReceipt](q, filter.PageParams, "tax_year DESC, sequence DESC")
	})
}
