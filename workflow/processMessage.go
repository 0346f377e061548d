package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mmdatafocus/church_backend/config"
	"github.com/mmdatafocus/church_backend/models"
	"github.com/mmdatafocus/church_backend/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ProcessMessage runs the side effect of one outbox event and marks the row processed.
// The event type and payload come from the stored outbox row; msg only names it.
// Unknown ids and rows that were already processed are skipped, so forged or repeated deliveries are harmless.
// Business rule failures (no email address, void receipt) are logged and not retried.
func ProcessMessage(ctx context.Context, logger *logrus.Logger, msg config.PubSubMessage) error {
	fields := logrus.Fields{
		"field":          "ProcessMessage",
		"outbox_id":      msg.ID,
		"correlation_id": msg.CorrelationId,
	}
	if msg.ID <= 0 {
		warn(logger, fields, "outbox event without id skipped")
		return nil
	}
	var rec models.OutboxMessage
	err := config.GetDB().WithContext(ctx).Where("id = ?", msg.ID).Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		warn(logger, fields, "outbox event skipped: no such outbox message")
		return nil
	}
	if err != nil {
		return err
	}
	if rec.IsProcessed {
		return nil
	}

	stored := models.ConvertToPubSubMessage(rec)
	if stored.CorrelationId == "" {
		stored.CorrelationId = msg.CorrelationId
	}
	ctx = utils.SystemContext(ctx)
	if stored.CorrelationId != "" {
		ctx = utils.SetCorrelationIdInContext(ctx, stored.CorrelationId)
	}

	err = dispatch(ctx, stored)
	var berr *utils.BusinessRuleError
	switch {
	case err == nil:
	case errors.As(err, &berr), errors.Is(err, utils.ErrorRecordNotFound):
		warn(logger, logrus.Fields{
			"field":          "ProcessMessage",
			"outbox_id":      stored.ID,
			"event_type":     stored.EventType,
			"reference_type": stored.ReferenceType,
			"reference_id":   stored.ReferenceId,
			"correlation_id": stored.CorrelationId,
		}, "outbox event skipped: "+err.Error())
	default:
		return err
	}
	return models.MarkOutboxProcessed(ctx, stored.ID)
}

func warn(logger *logrus.Logger, fields logrus.Fields, msg string) {
	if logger != nil {
		logger.WithFields(fields).Warn(msg)
	}
}

func dispatch(ctx context.Context, msg config.PubSubMessage) error {
	switch models.OutboxEventType(msg.EventType) {
	case models.OutboxEventDonationCompleted:
		var p models.DonationCompletedPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return utils.NewBusinessError("malformed %s payload: %v", msg.EventType, err)
		}
		return sendDonationThankYou(ctx, p)
	case models.OutboxEventTaxReceiptIssued:
		var p models.TaxReceiptIssuedPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return utils.NewBusinessError("malformed %s payload: %v", msg.EventType, err)
		}
		return sendTaxReceipt(ctx, p)
	case models.OutboxEventPledgeReminder:
		var p models.PledgeReminderPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return utils.NewBusinessError("malformed %s payload: %v", msg.EventType, err)
		}
		return sendPledgeReminder(ctx, p)
	}
	return utils.NewBusinessError("unknown event type %q", msg.EventType)
}

func memberWithEmail(ctx context.Context, id int) (*models.Member, error) {
	member, err := models.GetMember(ctx, id)
	if err != nil {
		return nil, err
	}
	if member.EmailAddress() == "" {
		return nil, utils.NewBusinessError("%s has no email address", member.FullName())
	}
	return member, nil
}

func sendDonationThankYou(ctx context.Context, p models.DonationCompletedPayload) error {
	member, err := memberWithEmail(ctx, p.MemberId)
	if err != nil {
		return err
	}
	church := config.ChurchName()
	return utils.SendMail(ctx, utils.MailMessage{
		To:      member.EmailAddress(),
		Subject: "Thank you for your gift to " + church,
		Body: fmt.Sprintf("Dear %s,\n\nWe received your gift of %s. Thank you for supporting the work of %s.\n\n%s",
			member.FirstName, p.Amount.StringFixed(2), church, church),
	})
}

func sendTaxReceipt(ctx context.Context, p models.TaxReceiptIssuedPayload) error {
	receipt, err := models.GetTaxReceipt(ctx, p.TaxReceiptId)
	if err != nil {
		return err
	}
	if receipt.Status != models.TaxReceiptStatusIssued {
		return nil
	}
	_, err = models.SendTaxReceipt(ctx, p.TaxReceiptId)
	return err
}

func sendPledgeReminder(ctx context.Context, p models.PledgeReminderPayload) error {
	member, err := memberWithEmail(ctx, p.MemberId)
	if err != nil {
		return err
	}
	church := config.ChurchName()
	return utils.SendMail(ctx, utils.MailMessage{
		To:      member.EmailAddress(),
		Subject: "Your pledge to " + church,
		Body: fmt.Sprintf("Dear %s,\n\nThank you for your pledge. So far you have given %s of the %s expected to date, leaving %s outstanding.\n\n%s",
			member.FirstName, p.Fulfilled.StringFixed(2), p.Expected.StringFixed(2), p.Outstanding.StringFixed(2), church),
	})
}
