// Package wrapper converts raw config sources into typed values with
// defaults.
package wrapper

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/code-payments/sol-trust/pkg/config"
)

// ErrUnsupportedConversion indicates the source yielded a type the wrapper
// can't convert.
var ErrUnsupportedConversion = errors.New("config: wrapper conversion from source type not implemented")

// converter turns a raw source value into T. Sources like the environment
// yield []byte, while in memory sources usually hold T itself.
type converter[T any] func(raw interface{}) (T, error)

type value[T any] struct {
	source       config.Config
	defaultValue T
	convert      converter[T]

	mu   sync.RWMutex
	last T
}

func newValue[T any](source config.Config, defaultValue T, convert converter[T]) config.Value[T] {
	return &value[T]{
		source:       source,
		defaultValue: defaultValue,
		convert:      convert,
		last:         defaultValue,
	}
}

// GetSafe returns the source's value, or the default if the source has none.
// When the source fails or yields something unconvertible, the last good
// value is returned along with the error.
func (v *value[T]) GetSafe(ctx context.Context) (T, error) {
	raw, err := v.source.Get(ctx)
	if errors.Is(err, config.ErrNoValue) {
		v.remember(v.defaultValue)
		return v.defaultValue, nil
	} else if err != nil {
		return v.lastValue(), err
	}

	converted, err := v.convert(raw)
	if err != nil {
		return v.lastValue(), err
	}

	v.remember(converted)
	return converted, nil
}

func (v *value[T]) Get(ctx context.Context) T {
	converted, _ := v.GetSafe(ctx)
	return converted
}

func (v *value[T]) Shutdown() {
	v.source.Shutdown()
}

func (v *value[T]) remember(latest T) {
	v.mu.Lock()
	v.last = latest
	v.mu.Unlock()
}

func (v *value[T]) lastValue() T {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.last
}

// parsed builds a converter accepting T as is, or text parsed by parse.
func parsed[T any](parse func(string) (T, error)) converter[T] {
	return func(raw interface{}) (T, error) {
		switch typed := raw.(type) {
		case T:
			return typed, nil
		case []byte:
			return parse(string(typed))
		case string:
			return parse(typed)
		}

		var zero T
		return zero, ErrUnsupportedConversion
	}
}

// NewBytesConfig returns a []byte value over source.
func NewBytesConfig(source config.Config, defaultValue []byte) config.Bytes {
	return newValue(source, defaultValue, func(raw interface{}) ([]byte, error) {
		if typed, ok := raw.([]byte); ok {
			return typed, nil
		}
		return nil, ErrUnsupportedConversion
	})
}

// NewStringConfig returns a string value over source.
func NewStringConfig(source config.Config, defaultValue string) config.String {
	return newValue(source, defaultValue, parsed(func(s string) (string, error) {
		return s, nil
	}))
}

// NewBoolConfig returns a bool value over source.
func NewBoolConfig(source config.Config, defaultValue bool) config.Bool {
	return newValue(source, defaultValue, parsed(strconv.ParseBool))
}

// NewInt64Config returns an int64 value over source. Source ints are accepted.
func NewInt64Config(source config.Config, defaultValue int64) config.Int64 {
	parse := parsed(func(s string) (int64, error) {
		return strconv.ParseInt(s, 10, 64)
	})
	return newValue(source, defaultValue, func(raw interface{}) (int64, error) {
		if typed, ok := raw.(int); ok {
			return int64(typed), nil
		}
		return parse(raw)
	})
}

// NewUint64Config returns a uint64 value over source. Source uints are
// accepted.
func NewUint64Config(source config.Config, defaultValue uint64) config.Uint64 {
	parse := parsed(func(s string) (uint64, error) {
		return strconv.ParseUint(s, 10, 64)
	})
	return newValue(source, defaultValue, func(raw interface{}) (uint64, error) {
		if typed, ok := raw.(uint); ok {
			return uint64(typed), nil
		}
		return parse(raw)
	})
}

// NewFloat64Config returns a float64 value over source.
func NewFloat64Config(source config.Config, defaultValue float64) config.Float64 {
	return newValue(source, defaultValue, parsed(func(s string) (float64, error) {
		return strconv.ParseFloat(s, 64)
	}))
}

// NewDurationConfig returns a time.Duration value over source. Text is parsed
// with time.ParseDuration.
func NewDurationConfig(source config.Config, defaultValue time.Duration) config.Duration {
	return newValue(source, defaultValue, parsed(time.ParseDuration))
}
