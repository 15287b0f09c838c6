package metrics

import (
	"context"
	"time"
)

// RecordCount records count under metricName.
func RecordCount(ctx context.Context, metricName string, count uint64) {
	if app := appFromContext(ctx); app != nil {
		app.RecordCustomMetric(metricName, float64(count))
	}
}

// RecordDuration records duration under metricName, in milliseconds.
func RecordDuration(ctx context.Context, metricName string, duration time.Duration) {
	if app := appFromContext(ctx); app != nil {
		app.RecordCustomMetric(metricName, float64(duration)/float64(time.Millisecond))
	}
}
