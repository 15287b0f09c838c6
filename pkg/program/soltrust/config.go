package soltrust

import (
	"context"
	"crypto/ed25519"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"

	"github.com/code-payments/sol-trust/pkg/config"
	"github.com/code-payments/sol-trust/pkg/config/env"
	"github.com/code-payments/sol-trust/pkg/config/memory"
	"github.com/code-payments/sol-trust/pkg/config/wrapper"
	"github.com/code-payments/sol-trust/pkg/solana/bankrewards"
	"github.com/code-payments/sol-trust/pkg/solana/soltrust"
)

const (
	ProgramIdConfigEnvName = "SOL_TRUST_PROGRAM_ID"

	RewardsProgramIdConfigEnvName = "BANK_REWARDS_PROGRAM_ID"

	RewardRateBpsConfigEnvName = "SOL_TRUST_REWARD_RATE_BPS"
	defaultRewardRateBps       = 500
)

type conf struct {
	programId        config.String
	rewardsProgramId config.String
	rewardRateBps    config.Uint64
}

// ConfigProvider defines how config values are pulled
type ConfigProvider func() *conf

// WithEnvConfigs returns configuration pulled from environment variables
func WithEnvConfigs() ConfigProvider {
	return func() *conf {
		return &conf{
			programId:        env.NewStringConfig(ProgramIdConfigEnvName, base58.Encode(soltrust.DefaultProgramId)),
			rewardsProgramId: env.NewStringConfig(RewardsProgramIdConfigEnvName, base58.Encode(bankrewards.DefaultProgramId)),
			rewardRateBps:    env.NewUint64Config(RewardRateBpsConfigEnvName, defaultRewardRateBps),
		}
	}
}

type TestOverrides struct {
	ProgramId        ed25519.PublicKey
	RewardsProgramId ed25519.PublicKey
	RewardRateBps    uint64
}

// WithTestOverrides returns configuration for tests. Unset fields use the
// defaults.
func WithTestOverrides(overrides *TestOverrides) ConfigProvider {
	return func() *conf {
		programId := base58.Encode(soltrust.DefaultProgramId)
		if overrides.ProgramId != nil {
			programId = base58.Encode(overrides.ProgramId)
		}

		rewardsProgramId := base58.Encode(bankrewards.DefaultProgramId)
		if overrides.RewardsProgramId != nil {
			rewardsProgramId = base58.Encode(overrides.RewardsProgramId)
		}

		rewardRateBps := uint64(defaultRewardRateBps)
		if overrides.RewardRateBps > 0 {
			rewardRateBps = overrides.RewardRateBps
		}

		return &conf{
			programId:        wrapper.NewStringConfig(memory.NewConfig(programId), programId),
			rewardsProgramId: wrapper.NewStringConfig(memory.NewConfig(rewardsProgramId), rewardsProgramId),
			rewardRateBps:    wrapper.NewUint64Config(memory.NewConfig(rewardRateBps), defaultRewardRateBps),
		}
	}
}

func loadKey(ctx context.Context, value config.String) (ed25519.PublicKey, error) {
	decoded, err := base58.Decode(value.Get(ctx))
	if err != nil {
		return nil, err
	}
	if len(decoded) != ed25519.PublicKeySize {
		return nil, errors.Errorf("invalid key length: %d", len(decoded))
	}
	return decoded, nil
}
