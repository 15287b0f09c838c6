// Package metrics reports custom metrics, events and traces to New Relic.
// Every function is a no-op when the context carries no New Relic application.
package metrics

import (
	"context"

	"github.com/newrelic/go-agent/v3/newrelic"
)

type newRelicContextKey struct{}

// NewRelicContextKey is the context key holding the *newrelic.Application.
var NewRelicContextKey = newRelicContextKey{}

// WithNewRelicApp returns a context that carries app for metric recording.
func WithNewRelicApp(ctx context.Context, app *newrelic.Application) context.Context {
	if app == nil {
		return ctx
	}
	return context.WithValue(ctx, NewRelicContextKey, app)
}

// appFromContext returns the application set with WithNewRelicApp, or the
// one behind a transaction started by instrumented handlers.
func appFromContext(ctx context.Context) *newrelic.Application {
	if app, ok := ctx.Value(NewRelicContextKey).(*newrelic.Application); ok {
		return app
	}
	if txn := newrelic.FromContext(ctx); txn != nil {
		return txn.Application()
	}
	return nil
}
