package config

import "github.com/dmitrijs2005/gophchat/internal/envx"

// EnvPrefix prefixes every environment variable the relay reads.
const EnvPrefix = "GOPHCHAT_SERVER_"

// parseEnv overlays config with GOPHCHAT_SERVER_* variables after loading
// .env. It panics on malformed values.
func parseEnv(config *Config) {
	if err := envx.LoadDotEnv(); err != nil {
		panic(err)
	}

	r := envx.Reader{Prefix: EnvPrefix}
	r.String("HTTP_ADDR", &config.HTTPAddr)
	r.String("HEALTH_ADDR", &config.HealthAddr)
	r.String("DATABASE_DSN", &config.DatabaseDSN)
	r.String("SECRET_KEY", &config.SecretKey)
	r.List("ALLOWED_ORIGINS", &config.AllowedOrigins)
	r.String("S3_ROOT_USER", &config.S3RootUser)
	r.String("S3_ROOT_PASSWORD", &config.S3RootPassword)
	r.String("S3_BUCKET", &config.S3Bucket)
	r.String("S3_REGION", &config.S3Region)
	r.String("S3_BASE_ENDPOINT", &config.S3BaseEndpoint)
	r.String("LOG_LEVEL", &config.LogLevel)

	for _, err := range []error{
		r.Duration("ACCESS_TOKEN_TTL", &config.AccessTokenValidityDuration),
		r.Duration("REFRESH_TOKEN_TTL", &config.RefreshTokenValidityDuration),
		r.Int("HISTORY_ON_CONNECT", &config.HistoryOnConnect),
		r.Int("MAX_PAGE_SIZE", &config.MaxPageSize),
		r.Float("SEND_RPS", &config.SendRPS),
		r.Int("SEND_BURST", &config.SendBurst),
		r.Duration("PING_INTERVAL", &config.PingInterval),
		r.Bool("ARCHIVE_ON_CLEAR", &config.ArchiveOnClear),
	} {
		if err != nil {
			panic(err)
		}
	}
}
