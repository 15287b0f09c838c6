package bankrewards

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
	ProgramIdConfigEnvName = "BANK_REWARDS_PROGRAM_ID"

	AuthorizedProgramIdConfigEnvName = "BANK_REWARDS_AUTHORIZED_PROGRAM_ID"
)

type conf struct {
	programId           config.String
	authorizedProgramId config.String
}

// ConfigProvider defines how config values are pulled
type ConfigProvider func() *conf

// WithEnvConfigs returns configuration pulled from environment variables
func WithEnvConfigs() ConfigProvider {
	return func() *conf {
		return &conf{
			programId:           env.NewStringConfig(ProgramIdConfigEnvName, base58.Encode(bankrewards.DefaultProgramId)),
			authorizedProgramId: env.NewStringConfig(AuthorizedProgramIdConfigEnvName, base58.Encode(soltrust.DefaultProgramId)),
		}
	}
}

type TestOverrides struct {
	ProgramId           ed25519.PublicKey
	AuthorizedProgramId ed25519.PublicKey
}

// WithTestOverrides returns configuration for tests. Unset fields use the
// defaults.
func WithTestOverrides(overrides *TestOverrides) ConfigProvider {
	return func() *conf {
		programId := base58.Encode(bankrewards.DefaultProgramId)
		if overrides.ProgramId != nil {
			programId = base58.Encode(overrides.ProgramId)
		}

		authorizedProgramId := base58.Encode(soltrust.DefaultProgramId)
		if overrides.AuthorizedProgramId != nil {
			authorizedProgramId = base58.Encode(overrides.AuthorizedProgramId)
		}

		return &conf{
			programId:           wrapper.NewStringConfig(memory.NewConfig(programId), programId),
			authorizedProgramId: wrapper.NewStringConfig(memory.NewConfig(authorizedProgramId), authorizedProgramId),
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
