package vault

import (
	"github.com/mr-tron/base58"

	"github.com/code-payments/sol-trust/pkg/config"
	"github.com/code-payments/sol-trust/pkg/config/env"
	"github.com/code-payments/sol-trust/pkg/config/memory"
	"github.com/code-payments/sol-trust/pkg/config/wrapper"
	"github.com/code-payments/sol-trust/pkg/solana/bankrewards"
	"github.com/code-payments/sol-trust/pkg/solana/soltrust"
)

const (
	// Shared with the programs, so a client and node configured from the same
	// environment agree on addresses.
	ProgramIdConfigEnvName        = "SOL_TRUST_PROGRAM_ID"
	RewardsProgramIdConfigEnvName = "BANK_REWARDS_PROGRAM_ID"

	SubmitAttemptsConfigEnvName = "VAULT_CLIENT_SUBMIT_ATTEMPTS"
	defaultSubmitAttempts       = 5
)

type conf struct {
	programId        config.String
	rewardsProgramId config.String
	submitAttempts   config.Uint64
}

// ConfigProvider defines how config values are pulled
type ConfigProvider func() *conf

// WithEnvConfigs returns configuration pulled from environment variables
func WithEnvConfigs() ConfigProvider {
	return func() *conf {
		return &conf{
			programId:        env.NewStringConfig(ProgramIdConfigEnvName, base58.Encode(soltrust.DefaultProgramId)),
			rewardsProgramId: env.NewStringConfig(RewardsProgramIdConfigEnvName, base58.Encode(bankrewards.DefaultProgramId)),
			submitAttempts:   env.NewUint64Config(SubmitAttemptsConfigEnvName, defaultSubmitAttempts),
		}
	}
}

type TestOverrides struct {
	SubmitAttempts uint64
}

// WithTestOverrides returns configuration for tests against the default
// program addresses.
func WithTestOverrides(overrides *TestOverrides) ConfigProvider {
	return func() *conf {
		programId := base58.Encode(soltrust.DefaultProgramId)
		rewardsProgramId := base58.Encode(bankrewards.DefaultProgramId)

		submitAttempts := uint64(defaultSubmitAttempts)
		if overrides.SubmitAttempts > 0 {
			submitAttempts = overrides.SubmitAttempts
		}

		return &conf{
			programId:        wrapper.NewStringConfig(memory.NewConfig(programId), programId),
			rewardsProgramId: wrapper.NewStringConfig(memory.NewConfig(rewardsProgramId), rewardsProgramId),
			submitAttempts:   wrapper.NewUint64Config(memory.NewConfig(submitAttempts), defaultSubmitAttempts),
		}
	}
}
