package config

import (
	"strings"

	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"

	"github.com/relaygraph/toolgraphd/internal/logging"
)

// ServerConfig is the CLI process's own operational configuration —
// logging level/format — as distinct from the user-authored graph
// document loaded by Load/Parse. It is sourced entirely from environment
// variables, never from the graph YAML (spec.md §1 draws that boundary:
// the graph document describes tools, not the process hosting them).
type ServerConfig struct {
	Logging logging.Config
}

// envPrefix namespaces every recognized variable, e.g. TOOLGRAPHD_LOG_LEVEL.
const envPrefix = "TOOLGRAPHD_"

// LoadServerConfig reads TOOLGRAPHD_-prefixed environment variables into a
// ServerConfig, defaulting to an info-level JSON logger when none are set.
func LoadServerConfig() (ServerConfig, error) {
	k := koanf.New(".")
	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "_", ".")
	}), nil); err != nil {
		return ServerConfig{}, err
	}

	var cfg ServerConfig
	cfg.Logging.Level = k.String("log.level")
	cfg.Logging.Format = k.String("log.format")
	return cfg, nil
}
