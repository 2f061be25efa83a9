package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

// Config represents the vihate configuration file
// (~/.config/vihate/config.yaml). Pointer fields distinguish "not set"
// from zero values.
type Config struct {
	// Model
	Model    string `yaml:"model"`
	Revision string `yaml:"revision"`
	CacheDir string `yaml:"cache_dir"`
	Offline  *bool  `yaml:"offline"`
	HubURL   string `yaml:"hub_url"`

	// Runtime
	RuntimeURL      string         `yaml:"runtime_url"`
	RuntimeModel    string         `yaml:"runtime_model"`
	MaxLength       *int64         `yaml:"max_length"`
	MaxConcurrent   *int64         `yaml:"max_concurrent"`
	GenerateTimeout *time.Duration `yaml:"generate_timeout"`
	LoadTimeout     *time.Duration `yaml:"load_timeout"`
	ResultCache     string         `yaml:"result_cache"`
	ResultCacheTTL  *time.Duration `yaml:"result_cache_ttl"`

	// Server
	ServerAddress string         `yaml:"server_address"`
	ReadTimeout   *time.Duration `yaml:"read_timeout"`
	RateLimit     *float64       `yaml:"rate_limit"`
	RateBurst     *int64         `yaml:"rate_burst"`
	EagerLoad     *bool          `yaml:"eager_load"`

	// Output
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

func configPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "vihate", "config.yaml")
}

// loadConfig reads the config file. A missing file yields a zero Config
// unless the path was given explicitly.
func loadConfig(path string, explicit bool) (Config, error) {
	if path == "" {
		return Config{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return Config{}, nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

func applyLoggingConfig(c *cli.Command, cfg Config) {
	if cfg.LogLevel != "" && !c.IsSet("log-level") {
		logLevel = cfg.LogLevel
	}
	if cfg.LogFormat != "" && !c.IsSet("log-format") {
		logFormat = cfg.LogFormat
	}
}

// applyModelConfig applies config file defaults to the model and runtime
// flags when the corresponding flag was not explicitly set.
func applyModelConfig(c *cli.Command, cfg Config) {
	if cfg.Model != "" && !c.IsSet("model") {
		modelRepo = cfg.Model
	}
	if cfg.Revision != "" && !c.IsSet("revision") {
		revision = cfg.Revision
	}
	if cfg.CacheDir != "" && !c.IsSet("cache-dir") {
		cacheDir = cfg.CacheDir
	}
	if cfg.Offline != nil && !c.IsSet("offline") {
		offline = *cfg.Offline
	}
	if cfg.HubURL != "" && !c.IsSet("hub-url") {
		hubURL = cfg.HubURL
	}
	if cfg.RuntimeURL != "" && !c.IsSet("runtime-url") {
		runtimeURL = cfg.RuntimeURL
	}
	if cfg.RuntimeModel != "" && !c.IsSet("runtime-model") {
		runtimeModel = cfg.RuntimeModel
	}
	if cfg.MaxLength != nil && !c.IsSet("max-length") {
		maxLength = *cfg.MaxLength
	}
	if cfg.MaxConcurrent != nil && !c.IsSet("max-concurrent") {
		maxConcurrent = *cfg.MaxConcurrent
	}
	if cfg.GenerateTimeout != nil && !c.IsSet("generate-timeout") {
		generateTimeout = *cfg.GenerateTimeout
	}
	if cfg.LoadTimeout != nil && !c.IsSet("load-timeout") {
		loadTimeout = *cfg.LoadTimeout
	}
	if cfg.ResultCache != "" && !c.IsSet("result-cache") {
		resultCache = cfg.ResultCache
	}
	if cfg.ResultCacheTTL != nil && !c.IsSet("result-cache-ttl") {
		resultCacheTTL = *cfg.ResultCacheTTL
	}
}

// applyServeConfig applies config file defaults to serve command variables.
func applyServeConfig(c *cli.Command, cfg Config) {
	if cfg.ServerAddress != "" && !c.IsSet("addr") {
		addr = cfg.ServerAddress
	}
	if cfg.ReadTimeout != nil && !c.IsSet("read-timeout") {
		readTimeout = *cfg.ReadTimeout
	}
	if cfg.RateLimit != nil && !c.IsSet("rate-limit") {
		rateLimit = *cfg.RateLimit
	}
	if cfg.RateBurst != nil && !c.IsSet("rate-burst") {
		rateBurst = *cfg.RateBurst
	}
	if cfg.EagerLoad != nil && !c.IsSet("eager-load") {
		eagerLoad = *cfg.EagerLoad
	}
}
