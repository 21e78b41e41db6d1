package config

import "time"

// Config holds runtime settings for the CropSync client.
//
// Fields:
//   - DatabasePath: path of the local SQLite database file.
//   - ServerEndpointAddr: base URL of the backend REST endpoint.
//   - DeviceID: stable identifier stamped on every local mutation. When
//     left empty the CLI generates one at startup.
//   - OnlineCheckInterval: how often the watcher probes server reachability.
//   - SyncBatchLimit: max outbox entries drained per reconciliation pass.
//   - MaxRetries: per-entry retry ceiling before an entry is parked.
//   - RequestTimeout: per-request deadline for remote calls.
type Config struct {
	DatabasePath        string
	ServerEndpointAddr  string
	DeviceID            string
	OnlineCheckInterval time.Duration
	SyncBatchLimit      int
	MaxRetries          int
	RequestTimeout      time.Duration
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.DatabasePath = "cropsync.db"
	c.ServerEndpointAddr = "http://127.0.0.1:8080"
	c.DeviceID = ""
	c.OnlineCheckInterval = 3 * time.Second
	c.SyncBatchLimit = 50
	c.MaxRetries = 5
	c.RequestTimeout = 10 * time.Second
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
