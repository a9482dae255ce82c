package config

import "time"

// Config holds runtime settings for the GophChat client.
type Config struct {
	// ServerURL is the relay's HTTP base URL; the live channel is derived
	// from it.
	ServerURL string
	// HealthAddr is host:port of the relay's gRPC health endpoint.
	HealthAddr string

	CacheBackend string
	CachePath    string

	PageSize       int
	MergeTolerance time.Duration

	ReconnectBase time.Duration
	ReconnectMax  time.Duration
	DialTimeout   time.Duration
	FetchTimeout  time.Duration

	OnlineCheckInterval time.Duration

	LogLevel string
	LogFile  string
	UI       string
}

const (
	CacheSQLite = "sqlite"
	CachePebble = "pebble"

	UIRepl = "repl"
	UITUI  = "tui"
)

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerURL = "http://127.0.0.1:8080"
	c.HealthAddr = "127.0.0.1:50051"
	c.CacheBackend = CacheSQLite
	c.CachePath = "gophchat.db"
	c.PageSize = 15
	c.MergeTolerance = 3 * time.Second
	c.ReconnectBase = time.Second
	c.ReconnectMax = 30 * time.Second
	c.DialTimeout = 10 * time.Second
	c.FetchTimeout = 10 * time.Second
	c.OnlineCheckInterval = 3 * time.Second
	c.LogLevel = "info"
	c.LogFile = ""
	c.UI = UIRepl
}

// LoadConfig constructs a Config, applies defaults, then overlays the config
// file (if any), the environment and command-line flags. Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseFile(cfg)
	parseEnv(cfg)
	parseFlags(cfg)
	return cfg
}
