package metrics

import (
	"context"
)

// RecordEvent records a custom event of type eventName with attributes.
func RecordEvent(ctx context.Context, eventName string, attributes map[string]interface{}) {
	if app := appFromContext(ctx); app != nil {
		app.RecordCustomEvent(eventName, attributes)
	}
}
