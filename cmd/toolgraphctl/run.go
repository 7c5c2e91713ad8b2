package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/relaygraph/toolgraphd/internal/config"
	"github.com/relaygraph/toolgraphd/internal/engine"
	"github.com/relaygraph/toolgraphd/pkg/toolgraph"
)

func newRunCmd(configPath, externalServersPath *string) *cobra.Command {
	var telemetry bool

	cmd := &cobra.Command{
		Use:   "run <tool>",
		Short: "Execute one tool, reading its arguments as a JSON object from stdin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, cmdArgs []string) error {
			logger, err := buildLogger()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			cfg, err := config.Load(*configPath, *externalServersPath)
			if err != nil {
				return err
			}
			e, err := engine.New(cfg, logger)
			if err != nil {
				return err
			}
			defer e.Close()

			raw, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return fmt.Errorf("reading arguments from stdin: %w", err)
			}
			var toolArgs map[string]any
			if len(raw) > 0 {
				if err := json.Unmarshal(raw, &toolArgs); err != nil {
					return fmt.Errorf("parsing stdin as JSON: %w", err)
				}
			}

			result, err := e.ExecuteTool(cmd.Context(), cmdArgs[0], toolArgs, toolgraph.ExecuteOptions{
				EnableTelemetry: telemetry,
			})
			if result != nil {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				_ = enc.Encode(result)
			}
			return err
		},
	}
	cmd.Flags().BoolVar(&telemetry, "telemetry", false, "include telemetry in the output")
	return cmd
}
