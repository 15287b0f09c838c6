// Package config defines dynamic configuration values. Sources such as the
// environment yield raw values, which the wrapper package converts into typed
// values with defaults.
package config

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

var (
	// ErrNoValue indicates no value was set for the config
	ErrNoValue = errors.New("config: no value set")

	// ErrShutdown indicates the use of a Config after calling Shutdown
	ErrShutdown = errors.New("config: shutdown")
)

// Config is a source of raw configuration values.
type Config interface {
	// Get returns the latest value, or ErrNoValue if none is set.
	Get(ctx context.Context) (interface{}, error)

	// Shutdown releases the resources behind the config.
	Shutdown()
}

// Value is a typed configuration value.
type Value[T any] interface {
	// Get returns the latest value, falling back to the last good value when
	// the source fails.
	Get(ctx context.Context) T

	// GetSafe is Get, also returning the source's error.
	GetSafe(ctx context.Context) (T, error)

	Shutdown()
}

type (
	Bool     = Value[bool]
	Bytes    = Value[[]byte]
	Duration = Value[time.Duration]
	Float64  = Value[float64]
	Int64    = Value[int64]
	Uint64   = Value[uint64]
	String   = Value[string]
)
