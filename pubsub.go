package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bsm/redislock"
	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/church_backend/config"
	"github.com/mmdatafocus/church_backend/models"
	"github.com/mmdatafocus/church_backend/utils"
	"github.com/mmdatafocus/church_backend/workflow"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/idtoken"
)

// pushEnvelope is the body Pub/Sub push subscriptions deliver.
type pushEnvelope struct {
	Message struct {
		Data []byte `json:"data,omitempty"`
		ID   string `json:"id"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

const maxPushBodyBytes = 1 << 20

// validatePushToken checks a Google-signed OIDC token; replaced in tests.
var validatePushToken = idtoken.Validate

// authenticatePush verifies the bearer token Pub/Sub attaches to push requests.
func authenticatePush(c *gin.Context) error {
	audience := config.PubSubPushAudience()
	if audience == "" {
		if config.IsProduction() {
			return errors.New("PUBSUB_PUSH_AUDIENCE is not configured")
		}
		return nil
	}
	header := c.GetHeader("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || strings.TrimSpace(token) == "" {
		return errors.New("missing bearer token")
	}
	payload, err := validatePushToken(c.Request.Context(), strings.TrimSpace(token), audience)
	if err != nil {
		return err
	}
	if want := config.PubSubPushServiceAccount(); want != "" {
		email, _ := payload.Claims["email"].(string)
		verified, _ := payload.Claims["email_verified"].(bool)
		if !verified || !strings.EqualFold(email, want) {
			return fmt.Errorf("push token issued to %q", email)
		}
	}
	return nil
}

// outboxPubSubHandler runs one published outbox event.
// The push must carry a valid OIDC token when an audience is configured.
// Only the outbox id is taken from the body; the stored row decides what runs.
// Malformed deliveries are acked with 204 so they are not redelivered; processing errors answer 500.
func outboxPubSubHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := config.GetLogger()

		if err := authenticatePush(c); err != nil {
			config.LogError(logger, "main", "outboxPubSubHandler", "authenticatePush", c.ClientIP(), err)
			c.Status(http.StatusUnauthorized)
			return
		}

		body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxPushBodyBytes))
		if err != nil {
			config.LogError(logger, "main", "outboxPubSubHandler", "io.ReadAll", nil, err)
			c.Status(http.StatusNoContent)
			return
		}

		var push pushEnvelope
		if err := json.Unmarshal(body, &push); err != nil {
			config.LogError(logger, "main", "outboxPubSubHandler", "Unmarshal body", string(body), err)
			c.Status(http.StatusNoContent)
			return
		}

		var m config.PubSubMessage
		if err := json.Unmarshal(push.Message.Data, &m); err != nil {
			config.LogError(logger, "main", "outboxPubSubHandler", "Unmarshal pubsub message", string(push.Message.Data), err)
			c.Status(http.StatusNoContent)
			return
		}
		if m.ID <= 0 {
			config.LogError(logger, "main", "outboxPubSubHandler", "Invalid pubsub message", m, fmt.Errorf("id required"))
			c.Status(http.StatusNoContent)
			return
		}

		if m.CorrelationId == "" {
			m.CorrelationId = push.Message.ID
		}
		fields := logrus.Fields{
			"field":          "outboxPubSubHandler",
			"outbox_id":      m.ID,
			"event_type":     m.EventType,
			"reference_type": m.ReferenceType,
			"reference_id":   m.ReferenceId,
			"message_id":     push.Message.ID,
			"correlation_id": m.CorrelationId,
		}

		// The lock only narrows duplicate delivery; ProcessMessage skips processed rows anyway.
		if locker := config.GetRedisLock(); locker != nil {
			lock, err := locker.Obtain(c.Request.Context(), fmt.Sprintf("lock:outbox:%d", m.ID), 30*time.Second, nil)
			switch {
			case errors.Is(err, redislock.ErrNotObtained):
				// another delivery is running it; let Pub/Sub redeliver later
				c.Status(http.StatusConflict)
				return
			case err != nil:
				logger.WithFields(fields).Warn("error obtaining redis lock; proceeding without it: " + err.Error())
			default:
				defer func() {
					if releaseErr := lock.Release(c.Request.Context()); releaseErr != nil {
						logger.WithFields(fields).Warn("failed to release redis lock: " + releaseErr.Error())
					}
				}()
			}
		}

		ctx := utils.SetCorrelationIdInContext(c.Request.Context(), m.CorrelationId)
		if err := workflow.ProcessMessage(ctx, logger, m); err != nil {
			logger.WithFields(fields).Error("pubsub processing failed: " + err.Error())
			if markErr := models.MarkOutboxProcessFailed(ctx, m.ID, err); markErr != nil {
				config.LogError(logger, "main", "outboxPubSubHandler", "MarkOutboxProcessFailed", m.ID, markErr)
			}
			c.Status(http.StatusInternalServerError)
			return
		}
		c.Status(http.StatusNoContent)
	}
}
