package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dmitrijs2005/gophchat/internal/flagx"
	"github.com/dmitrijs2005/gophchat/internal/timex"
)

// FileConfig is a DTO used exclusively for config file unmarshalling. Zero
// values leave the corresponding Config field untouched.
type FileConfig struct {
	ServerURL           string         `json:"server_url" yaml:"server_url"`
	HealthAddr          string         `json:"health_addr" yaml:"health_addr"`
	CacheBackend        string         `json:"cache_backend" yaml:"cache_backend"`
	CachePath           string         `json:"cache_path" yaml:"cache_path"`
	PageSize            int            `json:"page_size" yaml:"page_size"`
	MergeTolerance      timex.Duration `json:"merge_tolerance" yaml:"merge_tolerance"`
	ReconnectBase       timex.Duration `json:"reconnect_base" yaml:"reconnect_base"`
	ReconnectMax        timex.Duration `json:"reconnect_max" yaml:"reconnect_max"`
	DialTimeout         timex.Duration `json:"dial_timeout" yaml:"dial_timeout"`
	FetchTimeout        timex.Duration `json:"fetch_timeout" yaml:"fetch_timeout"`
	OnlineCheckInterval timex.Duration `json:"online_check_interval" yaml:"online_check_interval"`
	LogLevel            string         `json:"log_level" yaml:"log_level"`
	LogFile             string         `json:"log_file" yaml:"log_file"`
	UI                  string         `json:"ui" yaml:"ui"`
}

// parseFile overlays cfg with values from the file named by -c/-config.
// It panics on read or decode errors.
func parseFile(cfg *Config) {
	path := flagx.ConfigFileFlag()
	if path == "" {
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	var fc FileConfig
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &fc)
	default:
		err = json.Unmarshal(data, &fc)
	}
	if err != nil {
		panic(err)
	}

	fc.apply(cfg)
}

func (fc FileConfig) apply(cfg *Config) {
	setString(&cfg.ServerURL, fc.ServerURL)
	setString(&cfg.HealthAddr, fc.HealthAddr)
	setString(&cfg.CacheBackend, fc.CacheBackend)
	setString(&cfg.CachePath, fc.CachePath)
	if fc.PageSize > 0 {
		cfg.PageSize = fc.PageSize
	}
	setDuration(&cfg.MergeTolerance, fc.MergeTolerance)
	setDuration(&cfg.ReconnectBase, fc.ReconnectBase)
	setDuration(&cfg.ReconnectMax, fc.ReconnectMax)
	setDuration(&cfg.DialTimeout, fc.DialTimeout)
	setDuration(&cfg.FetchTimeout, fc.FetchTimeout)
	setDuration(&cfg.OnlineCheckInterval, fc.OnlineCheckInterval)
	setString(&cfg.LogLevel, fc.LogLevel)
	setString(&cfg.LogFile, fc.LogFile)
	setString(&cfg.UI, fc.UI)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v timex.Duration) {
	if v.Duration > 0 {
		*dst = v.Duration
	}
}
