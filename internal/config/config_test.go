package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sdnlb/vip-switch/internal/errors"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

const validConfig = `
virtual_ip: "10.0.0.10"
backends:
  - ip: "10.0.0.5"
    mac: "00:00:00:00:00:05"
  - ip: "10.0.0.6"
    mac: "00:00:00:00:00:06"
`

func TestLoadConfigDefaults(t *testing.T) {
	path := writeConfig(t, validConfig)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, ":6633", cfg.Controller.Listen)
	assert.Equal(t, uint16(1), cfg.PortMap.ClientPortBase)
	assert.Equal(t, uint16(5), cfg.PortMap.BackendPortBase)
	assert.False(t, cfg.RateLimit.Enabled)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "10.0.0.10", cfg.VirtualAddress().String())
}

func TestToBackendsDerivesPortsFromPortMap(t *testing.T) {
	path := writeConfig(t, validConfig)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	backends, err := cfg.ToBackends()
	require.NoError(t, err)
	require.Len(t, backends, 2)

	assert.Equal(t, "10.0.0.5", backends[0].IP.String())
	assert.Equal(t, "00:00:00:00:00:05", backends[0].MAC.String())
	assert.Equal(t, uint16(5), backends[0].Port)
	assert.Equal(t, uint16(6), backends[1].Port)
}

func TestToBackendsHonorsExplicitPort(t *testing.T) {
	path := writeConfig(t, `
virtual_ip: "10.0.0.10"
backends:
  - ip: "10.0.0.5"
    mac: "00:00:00:00:00:05"
    port: 17
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	backends, err := cfg.ToBackends()
	require.NoError(t, err)
	assert.Equal(t, uint16(17), backends[0].Port)
}

func TestValidateRejectsBadConfig(t *testing.T) {
	tests := []struct {
		name    string
		content string
		code    errors.ErrorCode
	}{
		{
			name:    "Missing virtual IP",
			content: "backends:\n  - ip: \"10.0.0.5\"\n    mac: \"00:00:00:00:00:05\"\n",
			code:    errors.ErrCodeConfigLoad,
		},
		{
			name:    "Empty backend pool",
			content: "virtual_ip: \"10.0.0.10\"\n",
			code:    errors.ErrCodeNoBackends,
		},
		{
			name:    "Invalid backend MAC",
			content: "virtual_ip: \"10.0.0.10\"\nbackends:\n  - ip: \"10.0.0.5\"\n    mac: \"nope\"\n",
			code:    errors.ErrCodeConfigLoad,
		},
		{
			name: "Duplicate backend IP",
			content: `
virtual_ip: "10.0.0.10"
backends:
  - ip: "10.0.0.5"
    mac: "00:00:00:00:00:05"
  - ip: "10.0.0.5"
    mac: "00:00:00:00:00:06"
`,
			code: errors.ErrCodeConfigLoad,
		},
		{
			name: "Rate limit enabled without a rate",
			content: validConfig + `
rate_limit:
  enabled: true
  events_per_second: 0
`,
			code: errors.ErrCodeConfigLoad,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.content)

			_, err := LoadConfig(path)
			require.Error(t, err)
			assert.Equal(t, tt.code, errors.GetErrorCode(err))
		})
	}
}

func TestEnvOverrides(t *testing.T) {
	path := writeConfig(t, validConfig)
	t.Setenv("VS_LISTEN", ":7000")
	t.Setenv("VS_LOG_LEVEL", "debug")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, ":7000", cfg.Controller.Listen)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeConfigLoad, errors.GetErrorCode(err))
}
