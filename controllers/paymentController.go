package controllers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/church_backend/config"
	"github.com/mmdatafocus/church_backend/models"
	"github.com/mmdatafocus/church_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"
)

const maxWebhookBytes int64 = 64 * 1024

func ListPayments(c *gin.Context) { list(c, models.ListPayments) }

func CreateManualPayment(c *gin.Context) { create(c, models.CreateManualPayment) }

func GetPayment(c *gin.Context) { getById(c, models.GetPayment) }

var zeroDecimalCurrencies = map[string]bool{
	"bif": true, "clp": true, "djf": true, "gnf": true, "jpy": true, "kmf": true, "krw": true,
	"mga": true, "pyg": true, "rwf": true, "ugx": true, "vnd": true, "vuv": true, "xaf": true,
	"xof": true, "xpf": true,
}

// stripeAmount converts Stripe's minor units to a decimal amount.
func stripeAmount(amount int64, currency stripe.Currency) decimal.Decimal {
	if zeroDecimalCurrencies[strings.ToLower(string(currency))] {
		return decimal.NewFromInt(amount)
	}
	return decimal.New(amount, -2)
}

// StripeWebhook verifies the signature then records payment_intent and refund events.
// Unknown event types and refunds of payments we never recorded are acknowledged and ignored.
func StripeWebhook(c *gin.Context) {
	logger := config.GetLogger()
	secret := os.Getenv("STRIPE_WEBHOOK_SECRET")
	if secret == "" {
		respondFailure(c, http.StatusServiceUnavailable, "stripe webhooks are not configured", nil)
		return
	}
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBytes))
	if err != nil {
		respondFailure(c, http.StatusBadRequest, "unable to read body", nil)
		return
	}
	event, err := webhook.ConstructEventWithOptions(payload, c.GetHeader("Stripe-Signature"), secret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		logger.WithError(err).Warn("stripe webhook rejected")
		respondFailure(c, http.StatusBadRequest, "invalid signature", nil)
		return
	}

	ctx := utils.SystemContext(c.Request.Context())
	var payment *models.Payment
	switch string(event.Type) {
	case "payment_intent.succeeded", "payment_intent.payment_failed":
		var intent stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
			respondFailure(c, http.StatusBadRequest, "malformed payment_intent", nil)
			return
		}
		gp := models.GatewayPayment{
			Gateway:   models.PaymentGatewayStripe,
			Reference: intent.ID,
			Amount:    stripeAmount(intent.Amount, intent.Currency),
			Currency:  string(intent.Currency),
			Metadata:  intent.Metadata,
			Payload:   payload,
		}
		if string(event.Type) == "payment_intent.succeeded" {
			payment, err = models.RecordGatewayPaymentSucceeded(ctx, gp)
		} else {
			if intent.LastPaymentError != nil {
				gp.Reason = intent.LastPaymentError.Msg
			}
			payment, err = models.RecordGatewayPaymentFailed(ctx, gp)
		}
	case "charge.refunded":
		var charge stripe.Charge
		if err := json.Unmarshal(event.Data.Raw, &charge); err != nil {
			respondFailure(c, http.StatusBadRequest, "malformed charge", nil)
			return
		}
		reference := charge.ID
		if charge.PaymentIntent != nil && charge.PaymentIntent.ID != "" {
			reference = charge.PaymentIntent.ID
		}
		payment, err = models.RecordGatewayRefund(ctx, models.GatewayPayment{
			Gateway:   models.PaymentGatewayStripe,
			Reference: reference,
			Amount:    stripeAmount(charge.AmountRefunded, charge.Currency),
			Currency:  string(charge.Currency),
			Payload:   payload,
		})
		if errors.Is(err, utils.ErrorRecordNotFound) {
			// not ours, or its success event never arrived; a 404 would only make Stripe retry
			logger.WithFields(logrus.Fields{
				"field":     "StripeWebhook",
				"event_id":  event.ID,
				"reference": reference,
			}).Warn("refund for unknown payment acknowledged")
			respondOK(c, gin.H{"received": true})
			return
		}
	default:
		logger.WithField("type", event.Type).Debug("stripe event ignored")
		respondOK(c, gin.H{"received": true})
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, payment)
}
