package ledger

import (
	"time"

	"github.com/code-payments/sol-trust/pkg/config"
	"github.com/code-payments/sol-trust/pkg/config/env"
	"github.com/code-payments/sol-trust/pkg/config/memory"
	"github.com/code-payments/sol-trust/pkg/config/wrapper"
)

const (
	envConfigPrefix = "LEDGER_"

	LamportsPerSignatureConfigEnvName = envConfigPrefix + "LAMPORTS_PER_SIGNATURE"
	defaultLamportsPerSignature       = 5000

	MaxBlockhashAgeConfigEnvName = envConfigPrefix + "MAX_BLOCKHASH_AGE"
	defaultMaxBlockhashAge       = 150

	SlotIntervalConfigEnvName = envConfigPrefix + "SLOT_INTERVAL"
	defaultSlotInterval       = 400 * time.Millisecond

	LockStripesConfigEnvName = envConfigPrefix + "LOCK_STRIPES"
	defaultLockStripes       = 1024

	StatusCacheSizeConfigEnvName = envConfigPrefix + "STATUS_CACHE_SIZE"
	defaultStatusCacheSize       = 100_000

	FaucetLamportsConfigEnvName = envConfigPrefix + "FAUCET_LAMPORTS"
	defaultFaucetLamports       = 500_000_000 * 1_000_000_000
)

type conf struct {
	lamportsPerSignature config.Uint64
	maxBlockhashAge      config.Uint64
	slotInterval         config.Duration
	lockStripes          config.Uint64
	statusCacheSize      config.Uint64
	faucetLamports       config.Uint64
}

// ConfigProvider defines how config values are pulled
type ConfigProvider func() *conf

// WithEnvConfigs returns configuration pulled from environment variables
func WithEnvConfigs() ConfigProvider {
	return func() *conf {
		return &conf{
			lamportsPerSignature: env.NewUint64Config(LamportsPerSignatureConfigEnvName, defaultLamportsPerSignature),
			maxBlockhashAge:      env.NewUint64Config(MaxBlockhashAgeConfigEnvName, defaultMaxBlockhashAge),
			slotInterval:         env.NewDurationConfig(SlotIntervalConfigEnvName, defaultSlotInterval),
			lockStripes:          env.NewUint64Config(LockStripesConfigEnvName, defaultLockStripes),
			statusCacheSize:      env.NewUint64Config(StatusCacheSizeConfigEnvName, defaultStatusCacheSize),
			faucetLamports:       env.NewUint64Config(FaucetLamportsConfigEnvName, defaultFaucetLamports),
		}
	}
}

// TestOverrides pins config values for tests. Zero values use defaults.
type TestOverrides struct {
	LamportsPerSignature uint64
	MaxBlockhashAge      uint64
}

// WithTestOverrides returns configuration with the provided overrides
func WithTestOverrides(overrides *TestOverrides) ConfigProvider {
	return func() *conf {
		lamportsPerSignature := uint64(defaultLamportsPerSignature)
		if overrides.LamportsPerSignature > 0 {
			lamportsPerSignature = overrides.LamportsPerSignature
		}

		maxBlockhashAge := uint64(defaultMaxBlockhashAge)
		if overrides.MaxBlockhashAge > 0 {
			maxBlockhashAge = overrides.MaxBlockhashAge
		}

		return &conf{
			lamportsPerSignature: wrapper.NewUint64Config(memory.NewConfig(lamportsPerSignature), defaultLamportsPerSignature),
			maxBlockhashAge:      wrapper.NewUint64Config(memory.NewConfig(maxBlockhashAge), defaultMaxBlockhashAge),
			slotInterval:         wrapper.NewDurationConfig(memory.NewConfig(defaultSlotInterval), defaultSlotInterval),
			lockStripes:          wrapper.NewUint64Config(memory.NewConfig(uint64(64)), 64),
			statusCacheSize:      wrapper.NewUint64Config(memory.NewConfig(uint64(1024)), 1024),
			faucetLamports:       wrapper.NewUint64Config(memory.NewConfig(uint64(defaultFaucetLamports)), defaultFaucetLamports),
		}
	}
}
