package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/church_backend/config"
	"github.com/mmdatafocus/church_backend/models"
	"github.com/mmdatafocus/church_backend/testhelper"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/idtoken"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(r http.Handler, method, path string, body []byte) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func servePush(r http.Handler, token string, body []byte) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/pubsub", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	r.ServeHTTP(w, req)
	return w
}

func fakePushTokens(t *testing.T) {
	t.Helper()
	prev := validatePushToken
	validatePushToken = func(_ context.Context, token, audience string) (*idtoken.Payload, error) {
		switch token {
		case "signed-by-push":
			return &idtoken.Payload{Audience: audience, Claims: map[string]interface{}{
				"email": "push@church.iam.gserviceaccount.com", "email_verified": true,
			}}, nil
		case "signed-by-other":
			return &idtoken.Payload{Audience: audience, Claims: map[string]interface{}{
				"email": "intruder@example.org", "email_verified": true,
			}}, nil
		}
		return nil, errors.New("idtoken: invalid token")
	}
	t.Cleanup(func() { validatePushToken = prev })
}

func donationOutboxRow(t *testing.T, email string) models.OutboxMessage {
	t.Helper()
	ctx := testhelper.AdminContext()
	member, err := models.CreateMember(ctx, &models.NewMember{FirstName: "Phoebe", LastName: "Cenchreae", Email: email})
	require.NoError(t, err)
	_, err = models.CreateDonation(ctx, &models.NewDonation{
		MemberId:      &member.ID,
		Amount:        decimal.NewFromInt(40),
		DonationDate:  time.Date(2025, 5, 4, 0, 0, 0, 0, time.UTC),
		Category:      models.DonationCategoryTithe,
		PaymentMethod: models.PaymentMethodCash,
	})
	require.NoError(t, err)
	var row models.OutboxMessage
	require.NoError(t, config.GetDB().Take(&row).Error)
	return row
}

func pushBody(t *testing.T, msg config.PubSubMessage) []byte {
	t.Helper()
	data, err := json.Marshal(msg)
	require.NoError(t, err)
	var push pushEnvelope
	push.Message.ID = "push-1"
	push.Message.Data = data
	push.Subscription = "projects/church/subscriptions/outbox"
	body, err := json.Marshal(push)
	require.NoError(t, err)
	return body
}

func TestRouterBeforeDatabaseIsReady(t *testing.T) {
	prev := config.GetDB()
	config.SetDB(nil)
	t.Cleanup(func() { config.SetDB(prev) })

	r := newRouter(config.GetLogger())
	assert.Equal(t, http.StatusNoContent, serve(r, http.MethodGet, "/healthz", nil).Code)
	assert.Equal(t, http.StatusServiceUnavailable, serve(r, http.MethodGet, "/api/v1/members", nil).Code)
}

func TestUnknownRouteIsJSON404(t *testing.T) {
	testhelper.SetupDB(t)
	w := serve(newRouter(config.GetLogger()), http.MethodGet, "/nowhere", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "route not found")
}

func TestPushAcksMalformedDeliveries(t *testing.T) {
	testhelper.SetupDB(t)
	r := newRouter(config.GetLogger())

	assert.Equal(t, http.StatusNoContent, serve(r, http.MethodPost, "/pubsub", []byte("{not json")).Code)
	assert.Equal(t, http.StatusNoContent, serve(r, http.MethodPost, "/pubsub", []byte(`{"message":{"data":"bm9wZQ=="}}`)).Code)
	assert.Equal(t, http.StatusNoContent, serve(r, http.MethodPost, "/pubsub", pushBody(t, config.PubSubMessage{EventType: "donation.completed"})).Code)
}

func TestPushProcessesOutboxEventOnce(t *testing.T) {
	testhelper.SetupDB(t)
	testhelper.SetupRedis(t)
	mailer := testhelper.SetupMailer(t)
	ctx := testhelper.AdminContext()

	member, err := models.CreateMember(ctx, &models.NewMember{FirstName: "Phoebe", LastName: "Cenchreae", Email: "phoebe@example.org"})
	require.NoError(t, err)
	_, err = models.CreateDonation(ctx, &models.NewDonation{
		MemberId:      &member.ID,
		Amount:        decimal.NewFromInt(40),
		DonationDate:  time.Date(2025, 5, 4, 0, 0, 0, 0, time.UTC),
		Category:      models.DonationCategoryTithe,
		PaymentMethod: models.PaymentMethodCash,
	})
	require.NoError(t, err)

	var row models.OutboxMessage
	require.NoError(t, config.GetDB().Take(&row).Error)
	body := pushBody(t, models.ConvertToPubSubMessage(row))

	r := newRouter(config.GetLogger())
	assert.Equal(t, http.StatusNoContent, serve(r, http.MethodPost, "/pubsub", body).Code)
	assert.Equal(t, http.StatusNoContent, serve(r, http.MethodPost, "/pubsub", body).Code)

	sent := mailer.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "phoebe@example.org", sent[0].To)

	require.NoError(t, config.GetDB().Take(&row, row.ID).Error)
	assert.True(t, row.IsProcessed)
}

func TestPushRequiresSignedToken(t *testing.T) {
	testhelper.SetupDB(t)
	mailer := testhelper.SetupMailer(t)
	fakePushTokens(t)
	t.Setenv("PUBSUB_PUSH_AUDIENCE", "https://api.church.example/pubsub")
	t.Setenv("PUBSUB_PUSH_SERVICE_ACCOUNT", "push@church.iam.gserviceaccount.com")

	row := donationOutboxRow(t, "phoebe@example.org")
	body := pushBody(t, models.ConvertToPubSubMessage(row))
	r := newRouter(config.GetLogger())

	assert.Equal(t, http.StatusUnauthorized, servePush(r, "", body).Code)
	assert.Equal(t, http.StatusUnauthorized, servePush(r, "forged", body).Code)
	assert.Equal(t, http.StatusUnauthorized, servePush(r, "signed-by-other", body).Code)
	assert.Empty(t, mailer.Sent())

	assert.Equal(t, http.StatusNoContent, servePush(r, "signed-by-push", body).Code)
	assert.Len(t, mailer.Sent(), 1)
}

func TestPushRefusedInProductionWithoutAudience(t *testing.T) {
	testhelper.SetupDB(t)
	t.Setenv("GO_ENV", "production")
	t.Setenv("PUBSUB_PUSH_AUDIENCE", "")

	r := newRouter(config.GetLogger())
	w := servePush(r, "", pushBody(t, config.PubSubMessage{ID: 1, EventType: "donation.completed"}))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestPushForUnknownOutboxIdRunsNothing(t *testing.T) {
	testhelper.SetupDB(t)
	mailer := testhelper.SetupMailer(t)
	row := donationOutboxRow(t, "phoebe@example.org")

	forged := models.ConvertToPubSubMessage(row)
	forged.ID = row.ID + 100
	r := newRouter(config.GetLogger())
	assert.Equal(t, http.StatusNoContent, serve(r, http.MethodPost, "/pubsub", pushBody(t, forged)).Code)
	assert.Empty(t, mailer.Sent())

	require.NoError(t, config.GetDB().Take(&row, row.ID).Error)
	assert.False(t, row.IsProcessed)
}

func TestPushRunsStoredEventNotBody(t *testing.T) {
	testhelper.SetupDB(t)
	mailer := testhelper.SetupMailer(t)
	row := donationOutboxRow(t, "phoebe@example.org")

	tampered := models.ConvertToPubSubMessage(row)
	tampered.EventType = string(models.OutboxEventPledgeReminder)
	tampered.Payload = []byte(`{"member_id":1,"expected":"999","fulfilled":"0","outstanding":"999"}`)
	r := newRouter(config.GetLogger())
	assert.Equal(t, http.StatusNoContent, serve(r, http.MethodPost, "/pubsub", pushBody(t, tampered)).Code)

	sent := mailer.Sent()
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].Subject, "Thank you")
	assert.Contains(t, sent[0].Body, "40.00")
}

func TestSplitAndTrim(t *testing.T) {
	assert.Equal(t, []string{"https://a.org", "https://b.org"}, splitAndTrim(" https://a.org, ,https://b.org "))
	assert.Empty(t, splitAndTrim(""))
}
