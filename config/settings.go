package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

func StringFromEnv(key string, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func IntFromEnv(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func BoolFromEnv(key string, def bool) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch v {
	case "1", "true", "yes", "y":
		return true
	case "0", "false", "no", "n":
		return false
	}
	return def
}

func DurationSecondsFromEnv(key string, def time.Duration) time.Duration {
	n := IntFromEnv(key, -1)
	if n < 0 {
		return def
	}
	return time.Duration(n) * time.Second
}

func IsProduction() bool {
	return strings.EqualFold(StringFromEnv("GO_ENV", ""), "production")
}

// SchedulerEnabled runs the in-process job scheduler.
//
// Set via env:
// - SCHEDULER_ENABLED=true
func SchedulerEnabled() bool {
	return BoolFromEnv("SCHEDULER_ENABLED", false)
}

// OutboxDirectProcessing processes outbox rows in-process instead of publishing to Pub/Sub.
// Defaults to true when PUBSUB_TOPIC is not configured.
func OutboxDirectProcessing() bool {
	return BoolFromEnv("OUTBOX_DIRECT_PROCESSING", StringFromEnv("PUBSUB_TOPIC", "") == "")
}

// PubSubPushAudience is the audience push subscriptions sign their OIDC token for.
// Empty disables push authentication outside production; production refuses every push without it.
//
// Set via env:
// - PUBSUB_PUSH_AUDIENCE=https://api.example.org/pubsub
// - PUBSUB_PUSH_SERVICE_ACCOUNT=push@project.iam.gserviceaccount.com (optional)
func PubSubPushAudience() string {
	return StringFromEnv("PUBSUB_PUSH_AUDIENCE", "")
}

func PubSubPushServiceAccount() string {
	return StringFromEnv("PUBSUB_PUSH_SERVICE_ACCOUNT", "")
}

func ChurchName() string {
	return StringFromEnv("CHURCH_NAME", "Community Church")
}

func ChurchTaxId() string {
	return StringFromEnv("CHURCH_TAX_ID", "")
}

func ChurchAddress() string {
	return StringFromEnv("CHURCH_ADDRESS", "")
}

func DefaultPhoneRegion() string {
	return strings.ToUpper(StringFromEnv("DEFAULT_PHONE_REGION", "US"))
}

func ReportCacheTTL() time.Duration {
	return DurationSecondsFromEnv("REPORT_CACHE_TTL_SECONDS", 5*time.Minute)
}
