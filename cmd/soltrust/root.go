package main

import (
	"context"
	"crypto/ed25519"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/code-payments/sol-trust/pkg/solana"
	"github.com/code-payments/sol-trust/pkg/vault"
)

const (
	envPrefix = "SOLTRUST"

	urlFlag     = "url"
	keypairFlag = "keypair"
	formatFlag  = "format"
)

// cli holds the state shared by every command of one invocation.
type cli struct {
	v *viper.Viper
}

func newRootCmd() *cobra.Command {
	c := &cli{v: viper.New()}

	cmd := &cobra.Command{
		Use:           "soltrust",
		Short:         "Time-locked vaults with rewards",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := cmd.PersistentFlags()
	flags.String(urlFlag, string(solana.EndpointLocal), "JSON-RPC endpoint of the node")
	flags.String(keypairFlag, defaultKeypairPath(), "Path to the signing keypair")
	flags.String(formatFlag, formatTable, "Output format: table, json")

	// Flags fall back to SOLTRUST_URL, SOLTRUST_KEYPAIR and SOLTRUST_FORMAT.
	c.v.SetEnvPrefix(envPrefix)
	c.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	c.v.AutomaticEnv()
	for _, name := range []string{urlFlag, keypairFlag, formatFlag} {
		_ = c.v.BindPFlag(name, flags.Lookup(name))
	}

	cmd.AddCommand(
		c.serveCmd(),
		c.keygenCmd(),
		c.addressCmd(),
		c.balanceCmd(),
		c.airdropCmd(),
		c.vaultCmd(),
		c.treasuryCmd(),
	)
	return cmd
}

func defaultKeypairPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "id.json"
	}
	return filepath.Join(home, ".config", "soltrust", "id.json")
}

func (c *cli) printer(cmd *cobra.Command) (*printer, error) {
	return newPrinter(cmd.OutOrStdout(), c.v.GetString(formatFlag))
}

func (c *cli) keypair() (ed25519.PrivateKey, error) {
	return loadKeypair(c.v.GetString(keypairFlag))
}

func (c *cli) client(ctx context.Context) (*vault.Client, error) {
	sc := solana.New(c.v.GetString(urlFlag))

	client, err := vault.NewClient(ctx, sc, vault.WithEnvConfigs())
	if err != nil {
		return nil, errors.Wrap(err, "failed to create vault client")
	}
	return client, nil
}
