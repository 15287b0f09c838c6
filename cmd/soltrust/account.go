package main

import (
	"strconv"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func (c *cli) balanceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "balance [address]",
		Short: "Print the lamports held by an address, or the keypair",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var value string
			if len(args) > 0 {
				value = args[0]
			}
			address, err := c.parseAddress(value)
			if err != nil {
				return err
			}

			client, err := c.client(cmd.Context())
			if err != nil {
				return err
			}
			balance, err := client.GetBalance(cmd.Context(), address)
			if err != nil {
				return errors.Wrap(err, "failed to get balance")
			}

			p, err := c.printer(cmd)
			if err != nil {
				return err
			}
			return p.print(
				field{"address", base58.Encode(address)},
				field{"lamports", balance},
			)
		},
	}
}

func (c *cli) airdropCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "airdrop <lamports>",
		Short: "Request lamports from the node's faucet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lamports, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return errors.Errorf("invalid lamports: %s", args[0])
			}

			to, _ := cmd.Flags().GetString("to")
			address, err := c.parseAddress(to)
			if err != nil {
				return err
			}

			client, err := c.client(cmd.Context())
			if err != nil {
				return err
			}
			sig, err := client.Airdrop(cmd.Context(), address, lamports)
			if err != nil {
				return err
			}

			p, err := c.printer(cmd)
			if err != nil {
				return err
			}
			return p.print(
				field{"address", base58.Encode(address)},
				field{"signature", sig.String()},
			)
		},
	}
	cmd.Flags().String("to", "", "Recipient address, defaults to the keypair")
	return cmd
}
