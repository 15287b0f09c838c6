package rpc

import (
	"github.com/code-payments/sol-trust/pkg/config"
	"github.com/code-payments/sol-trust/pkg/config/env"
	"github.com/code-payments/sol-trust/pkg/config/memory"
	"github.com/code-payments/sol-trust/pkg/config/wrapper"
)

const (
	envConfigPrefix = "RPC_"

	AirdropRateLimitConfigEnvName = envConfigPrefix + "AIRDROP_RATE_LIMIT"
	defaultAirdropRateLimit       = 5.0

	MaxAirdropLamportsConfigEnvName = envConfigPrefix + "MAX_AIRDROP_LAMPORTS"
	defaultMaxAirdropLamports       = 1_000 * 1_000_000_000

	MaxRequestSizeConfigEnvName = envConfigPrefix + "MAX_REQUEST_SIZE"
	defaultMaxRequestSize       = 64 * 1024
)

type conf struct {
	airdropRateLimit   config.Float64
	maxAirdropLamports config.Uint64
	maxRequestSize     config.Uint64
}

// ConfigProvider defines how config values are pulled
type ConfigProvider func() *conf

// WithEnvConfigs returns configuration pulled from environment variables
func WithEnvConfigs() ConfigProvider {
	return func() *conf {
		return &conf{
			airdropRateLimit:   env.NewFloat64Config(AirdropRateLimitConfigEnvName, defaultAirdropRateLimit),
			maxAirdropLamports: env.NewUint64Config(MaxAirdropLamportsConfigEnvName, defaultMaxAirdropLamports),
			maxRequestSize:     env.NewUint64Config(MaxRequestSizeConfigEnvName, defaultMaxRequestSize),
		}
	}
}

type TestOverrides struct {
	AirdropRateLimit   float64
	MaxAirdropLamports uint64
}

// WithTestOverrides returns configuration for tests. Zero values use defaults.
func WithTestOverrides(overrides *TestOverrides) ConfigProvider {
	return func() *conf {
		airdropRateLimit := defaultAirdropRateLimit
		if overrides.AirdropRateLimit > 0 {
			airdropRateLimit = overrides.AirdropRateLimit
		}

		maxAirdropLamports := uint64(defaultMaxAirdropLamports)
		if overrides.MaxAirdropLamports > 0 {
			maxAirdropLamports = overrides.MaxAirdropLamports
		}

		return &conf{
			airdropRateLimit:   wrapper.NewFloat64Config(memory.NewConfig(airdropRateLimit), defaultAirdropRateLimit),
			maxAirdropLamports: wrapper.NewUint64Config(memory.NewConfig(maxAirdropLamports), defaultMaxAirdropLamports),
			maxRequestSize:     wrapper.NewUint64Config(memory.NewConfig(uint64(defaultMaxRequestSize)), defaultMaxRequestSize),
		}
	}
}
