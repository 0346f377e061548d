package reports

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/mmdatafocus/church_backend/config"
	"github.com/mmdatafocus/church_backend/utils"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("github.com/mmdatafocus/church_backend/models/reports")

func reportSlowThreshold() time.Duration {
	return time.Duration(config.IntFromEnv("REPORT_SLOW_MS", 500)) * time.Millisecond
}

func logSlowReport(ctx context.Context, name string, started time.Time, params any) {
	d := time.Since(started)
	if d < reportSlowThreshold() {
		return
	}
	cid, _ := utils.GetCorrelationIdFromContext(ctx)
	config.GetLogger().WithFields(logrus.Fields{
		"report":         name,
		"ms":             d.Milliseconds(),
		"correlation_id": cid,
		"params":         params,
	}).Warn("slow report")
}

func reportKey(name string, params any) string {
	b, _ := json.Marshal(params)
	sum := sha1.Sum(b)
	return "Report:" + name + ":" + hex.EncodeToString(sum[:8])
}

// cached runs loader behind the report cache; the key is derived from name and params.
func cached[R any](ctx context.Context, name string, params any, loader func(ctx context.Context) (R, error)) (R, error) {
	ctx, span := tracer.Start(ctx, "reports."+name)
	defer span.End()
	span.SetAttributes(attribute.String("report.name", name))

	return utils.Remember(reportKey(name, params), config.ReportCacheTTL(), func() (R, error) {
		started := time.Now()
		defer logSlowReport(ctx, name, started, params)
		return loader(ctx)
	})
}
