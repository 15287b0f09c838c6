package main

import (
	"github.com/spf13/cobra"

	"github.com/code-payments/sol-trust/pkg/app"
	"github.com/code-payments/sol-trust/pkg/node"
)

func (c *cli) serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a node serving the vault and rewards programs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, _ := cmd.Flags().GetString("config")

			config, err := app.LoadConfig(path)
			if err != nil {
				return err
			}
			return app.Run(cmd.Context(), node.New(), config)
		},
	}
	cmd.Flags().String("config", "", "Path to a yaml config file")
	return cmd
}
