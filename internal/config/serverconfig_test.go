package config_test

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaygraph/toolgraphd/internal/config"
)

func TestLoadServerConfig_DefaultsWhenNoEnvSet(t *testing.T) {
	cfg, err := config.LoadServerConfig()
	require.NoError(t, err)
	assert.Empty(t, cfg.Logging.Level)
	assert.Empty(t, cfg.Logging.Format)
}

func TestLoadServerConfig_ReadsPrefixedEnvVars(t *testing.T) {
	t.Setenv("TOOLGRAPHD_LOG_LEVEL", "debug")
	t.Setenv("TOOLGRAPHD_LOG_FORMAT", "console")

	cfg, err := config.LoadServerConfig()
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "console", cfg.Logging.Format)
}

func TestLoadServerConfig_IgnoresUnrelatedEnvVars(t *testing.T) {
	require.NoError(t, os.Setenv("UNRELATED_SETTING", "x"))
	t.Cleanup(func() { os.Unsetenv("UNRELATED_SETTING") })

	cfg, err := config.LoadServerConfig()
	require.NoError(t, err)
	assert.Empty(t, cfg.Logging.Level)
}
