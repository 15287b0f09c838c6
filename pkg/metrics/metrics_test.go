package metrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithNewRelicApp_NilApp(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, ctx, WithNewRelicApp(ctx, nil))
	assert.Nil(t, appFromContext(ctx))
}

func TestRecord_NoApp(t *testing.T) {
	ctx := context.Background()

	assert.NotPanics(t, func() {
		RecordCount(ctx, "count", 1)
		RecordDuration(ctx, "duration", time.Second)
		RecordEvent(ctx, "event", map[string]interface{}{"key": "value"})
	})
}

func TestMethodTracer_NoTransaction(t *testing.T) {
	tracer := TraceMethodCall(context.Background(), "metrics", "test")
	require.Nil(t, tracer)

	assert.NotPanics(t, func() {
		tracer.AddAttribute("key", "value")
		tracer.AddAttributes(map[string]interface{}{"a": 1, "b": 2})
		tracer.OnError(errors.New("failed"))
		tracer.End()
	})
}

func TestMethodTracer_Transaction(t *testing.T) {
	app, err := newrelic.NewApplication(
		newrelic.ConfigAppName("soltrust-test"),
		newrelic.ConfigEnabled(false),
	)
	require.NoError(t, err)
	defer app.Shutdown(time.Second)

	txn := app.StartTransaction("test")
	ctx := newrelic.NewContext(context.Background(), txn)

	// The app is found through the transaction when none was set directly.
	assert.NotNil(t, appFromContext(ctx))
	assert.Equal(t, app, appFromContext(WithNewRelicApp(ctx, app)))

	tracer := TraceMethodCall(ctx, "metrics", "test")
	require.NotNil(t, tracer)
	tracer.AddAttribute("key", "value")
	tracer.OnError(errors.New("failed"))
	tracer.End()
	txn.End()
}

func TestNewRelicMessage(t *testing.T) {
	e := logrus.NewEntry(logrus.New())
	e.Message = "hello"
	assert.Equal(t, "hello", newRelicMessage(e))

	e = e.WithFields(logrus.Fields{
		"owner":          "abc",
		"lamports":       10,
		logrus.ErrorKey:  errors.New("boom"),
		"unserializable": make(chan int),
	})
	e.Message = "hello"

	assert.Equal(t, `message="hello", error="boom", data={"lamports":10,"owner":"abc"}`, newRelicMessage(e))
}

func TestLogFormatter_NoApp(t *testing.T) {
	f := NewCustomNewRelicLogFormatter(nil, &logrus.TextFormatter{DisableTimestamp: true})

	e := logrus.NewEntry(logrus.New())
	e.Message = "hello"
	e.Level = logrus.InfoLevel

	out, err := f.Format(e)
	require.NoError(t, err)
	assert.Equal(t, "level=info msg=hello\n", string(out))
}
