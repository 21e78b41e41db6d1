package config

import (
	"flag"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	var c Config
	c.LoadDefaults()

	assert.Equal(t, "cropsync.db", c.DatabasePath)
	assert.Equal(t, "http://127.0.0.1:8080", c.ServerEndpointAddr)
	assert.Equal(t, "", c.DeviceID)
	assert.Equal(t, 3*time.Second, c.OnlineCheckInterval)
	assert.Equal(t, 50, c.SyncBatchLimit)
	assert.Equal(t, 5, c.MaxRetries)
	assert.Equal(t, 10*time.Second, c.RequestTimeout)
}

func TestParseFlags(t *testing.T) {
	tests := []struct {
		expected    *Config
		name        string
		args        []string
		expectPanic bool
	}{
		{
			name:        "Test1 OK",
			args:        []string{"cmd", "-f", "field.db", "-a", "https://api.example.com", "-d", "dev-7", "-i", "10", "-b", "25", "-r", "3", "-t", "30"},
			expectPanic: false,
			expected: &Config{
				DatabasePath:        "field.db",
				ServerEndpointAddr:  "https://api.example.com",
				DeviceID:            "dev-7",
				OnlineCheckInterval: 10 * time.Second,
				SyncBatchLimit:      25,
				MaxRetries:          3,
				RequestTimeout:      30 * time.Second,
			},
		},
		{
			name:        "Test2 incorrect check interval",
			args:        []string{"cmd", "-i", "abc"},
			expectPanic: true,
			expected:    &Config{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flag.CommandLine = flag.NewFlagSet(os.Args[0], flag.PanicOnError)
			os.Args = tt.args

			config := &Config{}

			if !tt.expectPanic {
				require.NotPanics(t, func() { parseFlags(config) })
				assert.Empty(t, cmp.Diff(config, tt.expected))
			} else {
				require.Panics(t, func() { parseFlags(config) })
			}
		})
	}
}

func TestParseJson_OverlaysProvidedFieldsOnly(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "conf.json")
	body := `{
		"server_endpoint_addr": "https://api.example.com",
		"online_check_interval": "7s",
		"max_retries": 9
	}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	os.Args = []string{"cmd", "-c", path}

	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)

	assert.Equal(t, "https://api.example.com", cfg.ServerEndpointAddr)
	assert.Equal(t, 7*time.Second, cfg.OnlineCheckInterval)
	assert.Equal(t, 9, cfg.MaxRetries)

	// Fields absent from the JSON keep their defaults.
	assert.Equal(t, "cropsync.db", cfg.DatabasePath)
	assert.Equal(t, 50, cfg.SyncBatchLimit)
}

func TestParseJson_NoFileFlagIsNoop(t *testing.T) {
	os.Args = []string{"cmd"}

	cfg := &Config{}
	cfg.LoadDefaults()
	before := *cfg
	parseJson(cfg)

	assert.Empty(t, cmp.Diff(&before, cfg))
}
