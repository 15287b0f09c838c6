package main

import (
	"crypto/ed25519"
	"time"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/code-payments/sol-trust/pkg/solana"
	"github.com/code-payments/sol-trust/pkg/vault"
)

func (c *cli) vaultCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vault",
		Short: "Manage the keypair's time-locked vault",
	}
	cmd.AddCommand(
		c.vaultInitCmd(),
		c.vaultDepositCmd(),
		c.vaultCloseCmd(),
		c.vaultPrematureCloseCmd(),
		c.vaultShowCmd(),
		c.vaultListCmd(),
	)
	return cmd
}

// submitCmd runs fn with the keypair and a client, then prints the resulting
// signature.
func (c *cli) submitCmd(cmd *cobra.Command, fn func(*vault.Client, ed25519.PrivateKey) (solana.Signature, error)) error {
	key, err := c.keypair()
	if err != nil {
		return err
	}
	client, err := c.client(cmd.Context())
	if err != nil {
		return err
	}

	sig, err := fn(client, key)
	if err != nil {
		return err
	}

	p, err := c.printer(cmd)
	if err != nil {
		return err
	}
	return p.print(field{"signature", sig.String()})
}

func (c *cli) vaultInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Open a vault locked for the given duration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			lockDuration, _ := cmd.Flags().GetDuration("lock-duration")
			if lockDuration <= 0 {
				return errors.New("lock duration must be positive")
			}

			return c.submitCmd(cmd, func(client *vault.Client, owner ed25519.PrivateKey) (solana.Signature, error) {
				return client.Initialize(cmd.Context(), owner, lockDuration)
			})
		},
	}
	cmd.Flags().Duration("lock-duration", 24*time.Hour, "How long deposits stay locked")
	return cmd
}

func (c *cli) vaultDepositCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deposit",
		Short: "Deposit lamports into the vault",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			lamports, _ := cmd.Flags().GetUint64("lamports")
			if lamports == 0 {
				return errors.New("lamports must be positive")
			}

			return c.submitCmd(cmd, func(client *vault.Client, owner ed25519.PrivateKey) (solana.Signature, error) {
				return client.Deposit(cmd.Context(), owner, lamports)
			})
		},
	}
	cmd.Flags().Uint64("lamports", 0, "Amount to deposit")
	return cmd
}

func (c *cli) vaultCloseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "close",
		Short: "Close a matured vault, collecting the balance and reward",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			value, _ := cmd.Flags().GetString("treasury-admin")
			if value == "" {
				return errors.New("treasury admin is required")
			}
			treasuryAdmin, err := c.parseAddress(value)
			if err != nil {
				return err
			}

			return c.submitCmd(cmd, func(client *vault.Client, owner ed25519.PrivateKey) (solana.Signature, error) {
				return client.MatureClose(cmd.Context(), owner, treasuryAdmin)
			})
		},
	}
	cmd.Flags().String("treasury-admin", "", "Admin of the treasury paying the reward")
	return cmd
}

func (c *cli) vaultPrematureCloseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "premature-close",
		Short: "Close a vault before it matures",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			value, _ := cmd.Flags().GetString("admin")
			if value == "" {
				return errors.New("admin is required")
			}
			admin, err := c.parseAddress(value)
			if err != nil {
				return err
			}

			return c.submitCmd(cmd, func(client *vault.Client, owner ed25519.PrivateKey) (solana.Signature, error) {
				return client.PrematureClose(cmd.Context(), owner, admin)
			})
		},
	}
	cmd.Flags().String("admin", "", "Admin wallet receiving the penalty")
	return cmd
}

func (c *cli) vaultShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [owner]",
		Short: "Show a vault, defaulting to the keypair's",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var value string
			if len(args) > 0 {
				value = args[0]
			}
			owner, err := c.parseAddress(value)
			if err != nil {
				return err
			}

			client, err := c.client(cmd.Context())
			if err != nil {
				return err
			}

			var v *vault.Vault
			var ownerBalance uint64

			eg, ctx := errgroup.WithContext(cmd.Context())
			eg.Go(func() error {
				var err error
				v, err = client.GetVault(ctx, owner)
				return err
			})
			eg.Go(func() error {
				var err error
				ownerBalance, err = client.GetBalance(ctx, owner)
				return err
			})
			if err := eg.Wait(); err != nil {
				return err
			}

			p, err := c.printer(cmd)
			if err != nil {
				return err
			}
			return p.print(
				field{"owner", base58.Encode(owner)},
				field{"owner_lamports", ownerBalance},
				field{"state", base58.Encode(v.State)},
				field{"custody", base58.Encode(v.Custody)},
				field{"custody_lamports", v.CustodyLamports},
				field{"status", v.Record.Status.String()},
				field{"balance", v.Record.Balance},
				field{"lock_duration", time.Duration(v.Record.LockDuration) * time.Second},
				field{"unlock_at", time.Unix(v.Record.UnlockAt, 0).UTC().Format(time.RFC3339)},
			)
		},
	}
}

func (c *cli) vaultListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every open vault",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := c.client(cmd.Context())
			if err != nil {
				return err
			}

			vaults, err := client.GetVaults(cmd.Context())
			if err != nil {
				return err
			}

			p, err := c.printer(cmd)
			if err != nil {
				return err
			}

			fields := make([]field, 0, len(vaults))
			for state, record := range vaults {
				fields = append(fields, field{state, record.Balance})
			}
			sortFields(fields)
			return p.print(fields...)
		},
	}
}
