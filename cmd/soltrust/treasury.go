package main

import (
	"crypto/ed25519"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/code-payments/sol-trust/pkg/solana"
	"github.com/code-payments/sol-trust/pkg/vault"
)

func (c *cli) treasuryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "treasury",
		Short: "Manage the keypair's rewards treasury",
	}
	cmd.AddCommand(
		c.treasuryInitCmd(),
		c.treasuryFundCmd(),
		c.treasuryShowCmd(),
	)
	return cmd
}

func (c *cli) treasuryInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create a treasury paying rewards to vaults",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.submitCmd(cmd, func(client *vault.Client, admin ed25519.PrivateKey) (solana.Signature, error) {
				return client.InitializeTreasury(cmd.Context(), admin, client.ProgramId())
			})
		},
	}
}

func (c *cli) treasuryFundCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fund",
		Short: "Move lamports into the treasury",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			lamports, _ := cmd.Flags().GetUint64("lamports")
			if lamports == 0 {
				return errors.New("lamports must be positive")
			}

			return c.submitCmd(cmd, func(client *vault.Client, admin ed25519.PrivateKey) (solana.Signature, error) {
				return client.FundTreasury(cmd.Context(), admin, lamports)
			})
		},
	}
	cmd.Flags().Uint64("lamports", 0, "Amount to fund")
	return cmd
}

func (c *cli) treasuryShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [admin]",
		Short: "Show a treasury, defaulting to the keypair's",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var value string
			if len(args) > 0 {
				value = args[0]
			}
			admin, err := c.parseAddress(value)
			if err != nil {
				return err
			}

			client, err := c.client(cmd.Context())
			if err != nil {
				return err
			}
			t, err := client.GetTreasury(cmd.Context(), admin)
			if err != nil {
				return err
			}

			p, err := c.printer(cmd)
			if err != nil {
				return err
			}
			return p.print(
				field{"admin", base58.Encode(admin)},
				field{"state", base58.Encode(t.State)},
				field{"vault", base58.Encode(t.Vault)},
				field{"vault_lamports", t.VaultLamports},
				field{"authorized_program", base58.Encode(t.Record.AuthorizedProgram)},
				field{"total_funded", t.Record.TotalFunded},
				field{"total_paid", t.Record.TotalPaid},
			)
		},
	}
}
