// Command toolgraphctl is a thin operator CLI around the tool-graph
// engine. It is deliberately small: the engine's real embedding is the
// Host interface (pkg/toolgraph.Host), consumed by whatever host-RPC
// protocol server wraps it; that protocol server is out of scope here.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/relaygraph/toolgraphd/internal/config"
	"github.com/relaygraph/toolgraphd/internal/logging"
)

var version = "dev"

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// buildLogger reads the process's own TOOLGRAPHD_LOG_* environment
// variables (distinct from the graph configuration file) and constructs
// the structured logger shared by every subcommand.
func buildLogger() (*zap.Logger, error) {
	serverCfg, err := config.LoadServerConfig()
	if err != nil {
		return nil, fmt.Errorf("loading server configuration: %w", err)
	}
	return logging.New(serverCfg.Logging)
}

func rootCmd() *cobra.Command {
	var configPath string
	var externalServersPath string

	cmd := &cobra.Command{
		Use:     "toolgraphctl",
		Short:   "Operate a declarative tool-graph configuration",
		Version: version,
	}
	cmd.PersistentFlags().StringVar(&configPath, "config", "toolgraph.yaml", "path to the graph configuration file")
	cmd.PersistentFlags().StringVar(&externalServersPath, "external-servers", "", "optional external downstream-server JSON file")

	cmd.AddCommand(newValidateCmd(&configPath, &externalServersPath))
	cmd.AddCommand(newRunCmd(&configPath, &externalServersPath))
	cmd.AddCommand(newServeCmd(&configPath, &externalServersPath))
	return cmd
}
