// Package config loads and schema-validates the graph configuration file,
// merges in the optional external downstream-server file, and writes
// graph-local state back to disk (spec §6).
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"

	"github.com/relaygraph/toolgraphd/pkg/toolgraph"
)

var allowedTopLevelFields = map[string]bool{
	"version":         true,
	"server":          true,
	"mcpServers":      true,
	"executionLimits": true,
	"tools":           true,
}

// Load reads path as the graph configuration file, schema-validates it,
// and optionally merges in an external downstream-server file.
func Load(path string, externalServersPath string) (*toolgraph.Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	cfg, err := Parse(raw)
	if err != nil {
		return nil, err
	}

	if externalServersPath != "" {
		if err := mergeExternalServers(cfg, externalServersPath); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// Parse parses raw YAML bytes into a schema-validated Config. Unknown
// top-level fields are rejected (spec §6).
func Parse(raw []byte) (*toolgraph.Config, error) {
	if err := rejectUnknownTopLevelFields(raw); err != nil {
		return nil, err
	}

	k := koanf.New(".")
	if err := k.Load(rawbytes.Provider(raw), yaml.Parser()); err != nil {
		return nil, &toolgraph.ConfigurationError{Messages: []string{fmt.Sprintf("parsing config yaml: %v", err)}}
	}

	var cfg toolgraph.Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "yaml"}); err != nil {
		return nil, &toolgraph.ConfigurationError{Messages: []string{fmt.Sprintf("unmarshalling config: %v", err)}}
	}

	if cfg.ExecutionLimits.MaxNodeExecutions == 0 {
		cfg.ExecutionLimits.MaxNodeExecutions = toolgraph.DefaultExecutionLimits().MaxNodeExecutions
	}
	if cfg.ExecutionLimits.MaxExecutionTimeMS == 0 {
		cfg.ExecutionLimits.MaxExecutionTimeMS = toolgraph.DefaultExecutionLimits().MaxExecutionTimeMS
	}

	if cfg.DownstreamServers == nil {
		cfg.DownstreamServers = make(map[string]toolgraph.DownstreamServer)
	}
	for name, server := range cfg.DownstreamServers {
		server.Provenance = toolgraph.ProvenanceGraphLocal
		cfg.DownstreamServers[name] = server
	}

	return &cfg, nil
}

func rejectUnknownTopLevelFields(raw []byte) error {
	var generic map[string]any
	if err := yamlv3.Unmarshal(raw, &generic); err != nil {
		return &toolgraph.ConfigurationError{Messages: []string{fmt.Sprintf("parsing config yaml: %v", err)}}
	}
	var unknown []string
	for k := range generic {
		if !allowedTopLevelFields[k] {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) > 0 {
		return &toolgraph.ConfigurationError{Messages: []string{fmt.Sprintf("unknown top-level field(s): %v", unknown)}}
	}
	return nil
}

// externalServersFile is the shape of the optional downstream-server file
// (spec §6): `{ "mcpServers": { name: server-config, ... } }`.
type externalServersFile struct {
	MCPServers map[string]toolgraph.DownstreamServer `json:"mcpServers"`
}

// mergeExternalServers loads path as JSON and merges its servers into
// cfg.DownstreamServers. On a name collision the graph-local entry wins.
func mergeExternalServers(cfg *toolgraph.Config, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading external downstream-server file %s: %w", path, err)
	}

	var ext externalServersFile
	if err := json.Unmarshal(raw, &ext); err != nil {
		return fmt.Errorf("parsing external downstream-server file %s: %w", path, err)
	}

	for name, server := range ext.MCPServers {
		if _, exists := cfg.DownstreamServers[name]; exists {
			continue
		}
		server.Provenance = toolgraph.ProvenanceExternal
		cfg.DownstreamServers[name] = server
	}

	return nil
}

// Save serializes cfg's graph-local state back to path as YAML. External
// downstream-server entries are never written back (spec §6); they are
// filtered out of a shallow copy before marshalling. The file is written
// with 0600 permissions.
func Save(cfg *toolgraph.Config, path string) error {
	graphLocal := *cfg
	graphLocal.DownstreamServers = make(map[string]toolgraph.DownstreamServer, len(cfg.DownstreamServers))
	for name, server := range cfg.DownstreamServers {
		if server.Provenance == toolgraph.ProvenanceExternal {
			continue
		}
		graphLocal.DownstreamServers[name] = server
	}

	out, err := yamlv3.Marshal(&graphLocal)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}

	if err := os.WriteFile(path, out, 0o600); err != nil {
		return fmt.Errorf("writing config file %s: %w", path, err)
	}
	return nil
}
