package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/relaygraph/toolgraphd/internal/config"
	"github.com/relaygraph/toolgraphd/internal/engine"
)

func newValidateCmd(configPath, externalServersPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Load and validate the graph configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := buildLogger()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			cfg, err := config.Load(*configPath, *externalServersPath)
			if err != nil {
				return err
			}
			if _, err := engine.New(cfg, logger); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: valid (%d tool(s))\n", *configPath, len(cfg.Tools))
			return nil
		},
	}
}
