package main

import (
	"bufio"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/relaygraph/toolgraphd/internal/config"
	"github.com/relaygraph/toolgraphd/internal/engine"
	"github.com/relaygraph/toolgraphd/pkg/toolgraph"
)

// hostRequest is one newline-delimited JSON request read from stdin. It
// demonstrates the shape of the Host interface (spec §6) without
// implementing any real wire protocol; the actual host-RPC server that
// would speak to external callers is out of scope.
type hostRequest struct {
	Op   string         `json:"op"`
	Tool string         `json:"tool,omitempty"`
	Args map[string]any `json:"args,omitempty"`
}

func newServeCmd(configPath, externalServersPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Demonstrate the Host interface over a line-oriented stdio loop",
		Long: `serve reads newline-delimited JSON requests from stdin, each of the
form {"op": "list_tools"} or {"op": "execute_tool", "tool": "...", "args": {...}},
and writes one JSON response per line to stdout. It exists to exercise
pkg/toolgraph.Host end to end; it is not the host-RPC protocol itself.`,
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
			e, err := engine.New(cfg, logger)
			if err != nil {
				return err
			}
			defer e.Close()

			return serveLoop(cmd, e)
		},
	}
}

func serveLoop(cmd *cobra.Command, h toolgraph.Host) error {
	scanner := bufio.NewScanner(cmd.InOrStdin())
	enc := json.NewEncoder(cmd.OutOrStdout())

	for scanner.Scan() {
		var req hostRequest
		if err := json.Unmarshal(scanner.Bytes(), &req); err != nil {
			_ = enc.Encode(map[string]string{"error": fmt.Sprintf("invalid request: %v", err)})
			continue
		}

		switch req.Op {
		case "list_tools":
			_ = enc.Encode(h.ListTools())
		case "execute_tool":
			result, err := h.ExecuteTool(cmd.Context(), req.Tool, req.Args, toolgraph.ExecuteOptions{})
			if err != nil {
				_ = enc.Encode(map[string]string{"error": err.Error()})
				continue
			}
			_ = enc.Encode(result)
		default:
			_ = enc.Encode(map[string]string{"error": fmt.Sprintf("unknown op %q", req.Op)})
		}
	}
	return scanner.Err()
}
