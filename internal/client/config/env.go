package config

import "github.com/dmitrijs2005/gophchat/internal/envx"

// EnvPrefix prefixes every environment variable the client reads.
const EnvPrefix = "GOPHCHAT_"

// parseEnv overlays cfg with GOPHCHAT_* variables after loading .env.
// It panics on malformed values, like the other sources.
func parseEnv(cfg *Config) {
	if err := envx.LoadDotEnv(); err != nil {
		panic(err)
	}

	r := envx.Reader{Prefix: EnvPrefix}
	r.String("SERVER_URL", &cfg.ServerURL)
	r.String("HEALTH_ADDR", &cfg.HealthAddr)
	r.String("CACHE_BACKEND", &cfg.CacheBackend)
	r.String("CACHE_PATH", &cfg.CachePath)
	r.String("LOG_LEVEL", &cfg.LogLevel)
	r.String("LOG_FILE", &cfg.LogFile)
	r.String("UI", &cfg.UI)

	for _, err := range []error{
		r.Int("PAGE_SIZE", &cfg.PageSize),
		r.Duration("MERGE_TOLERANCE", &cfg.MergeTolerance),
		r.Duration("RECONNECT_BASE", &cfg.ReconnectBase),
		r.Duration("RECONNECT_MAX", &cfg.ReconnectMax),
		r.Duration("DIAL_TIMEOUT", &cfg.DialTimeout),
		r.Duration("FETCH_TIMEOUT", &cfg.FetchTimeout),
		r.Duration("ONLINE_CHECK_INTERVAL", &cfg.OnlineCheckInterval),
	} {
		if err != nil {
			panic(err)
		}
	}
}
