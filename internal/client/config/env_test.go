package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_parseEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	writeTempFile(t, dir, ".env", "GOPHCHAT_LOG_LEVEL=debug\nGOPHCHAT_UI=tui\n")

	t.Setenv("GOPHCHAT_PAGE_SIZE", "40")
	t.Setenv("GOPHCHAT_RECONNECT_BASE", "250ms")
	t.Setenv("GOPHCHAT_UI", "repl")

	cfg := &Config{}
	cfg.LoadDefaults()
	parseEnv(cfg)

	assert.Equal(t, 40, cfg.PageSize)
	assert.Equal(t, 250*time.Millisecond, cfg.ReconnectBase)
	assert.Equal(t, "debug", cfg.LogLevel, "read from .env")
	assert.Equal(t, UIRepl, cfg.UI, "process env wins over .env")
}

func Test_parseEnv_Malformed(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("GOPHCHAT_DIAL_TIMEOUT", "soon")

	cfg := &Config{}
	require.Panics(t, func() { parseEnv(cfg) })
}
