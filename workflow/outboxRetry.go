package workflow

import (
	"time"

	"github.com/mmdatafocus/church_backend/config"
)

type retryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

func retryPolicyFromEnv() retryPolicy {
	return retryPolicy{
		MaxAttempts:    config.IntFromEnv("OUTBOX_MAX_ATTEMPTS", 20),
		InitialBackoff: config.DurationSecondsFromEnv("OUTBOX_BASE_BACKOFF_SECONDS", 5*time.Second),
		MaxBackoff:     config.DurationSecondsFromEnv("OUTBOX_MAX_BACKOFF_SECONDS", 10*time.Minute),
	}
}

// backoff doubles from InitialBackoff per attempt, capped at MaxBackoff.
func (p retryPolicy) backoff(attempt int) time.Duration {
	delay := p.InitialBackoff
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= p.MaxBackoff {
			return p.MaxBackoff
		}
	}
	if delay > p.MaxBackoff {
		return p.MaxBackoff
	}
	return delay
}

func (p retryPolicy) exhausted(attempt int) bool {
	return p.MaxAttempts > 0 && attempt >= p.MaxAttempts
}
