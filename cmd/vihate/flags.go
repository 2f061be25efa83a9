package main

import (
	"time"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/vihate/internal/detector"
	"github.com/samcharles93/vihate/internal/hub"
)

var (
	configFile string
	logLevel   string
	logFormat  string

	modelRepo string
	revision  string
	cacheDir  string
	offline   bool
	hfToken   string
	hubURL    string

	runtimeURL      string
	runtimeModel    string
	maxLength       int64
	maxConcurrent   int64
	generateTimeout time.Duration
	loadTimeout     time.Duration
	resultCache     string
	resultCacheTTL  time.Duration
)

func rootFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Usage:       "path to config.yaml",
			Value:       configPath(),
			Destination: &configFile,
		},
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "log level (debug, info, warn, error)",
			Value:       "info",
			Sources:     cli.EnvVars("VIHATE_LOG_LEVEL"),
			Destination: &logLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "log format (auto, pretty, json, text)",
			Value:       "auto",
			Sources:     cli.EnvVars("VIHATE_LOG_FORMAT"),
			Destination: &logFormat,
		},
	}
}

func modelFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "model",
			Aliases:     []string{"m"},
			Usage:       "hub repository of the model",
			Value:       detector.DefaultRepo,
			Sources:     cli.EnvVars("VIHATE_MODEL"),
			Destination: &modelRepo,
		},
		&cli.StringFlag{
			Name:        "revision",
			Usage:       "model revision (branch, tag or commit)",
			Value:       hub.DefaultRevision,
			Sources:     cli.EnvVars("VIHATE_REVISION"),
			Destination: &revision,
		},
		&cli.StringFlag{
			Name:        "cache-dir",
			Usage:       "hub cache directory (default: $HF_HUB_CACHE, $HF_HOME/hub or ~/.cache/huggingface/hub)",
			Sources:     cli.EnvVars("VIHATE_CACHE_DIR", hub.EnvTransformersCache),
			Destination: &cacheDir,
		},
		&cli.BoolFlag{
			Name:        "offline",
			Usage:       "never contact the hub; use cached files only",
			Sources:     cli.EnvVars(hub.EnvOffline),
			Destination: &offline,
		},
		&cli.StringFlag{
			Name:        "hf-token",
			Usage:       "hub access token",
			Sources:     cli.EnvVars(hub.EnvToken),
			Destination: &hfToken,
		},
		&cli.StringFlag{
			Name:        "hub-url",
			Usage:       "hub endpoint",
			Value:       hub.DefaultEndpoint,
			Sources:     cli.EnvVars(hub.EnvEndpoint),
			Destination: &hubURL,
		},
	}
}

func runtimeFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "runtime-url",
			Usage:       "base URL of the Open Inference Protocol v2 model server",
			Value:       "http://127.0.0.1:8081",
			Sources:     cli.EnvVars("VIHATE_RUNTIME_URL"),
			Destination: &runtimeURL,
		},
		&cli.StringFlag{
			Name:        "runtime-model",
			Usage:       "model name on the runtime",
			Value:       "vihatet5",
			Sources:     cli.EnvVars("VIHATE_RUNTIME_MODEL"),
			Destination: &runtimeModel,
		},
		&cli.Int64Flag{
			Name:        "max-length",
			Usage:       "maximum generated sequence length",
			Value:       detector.DefaultMaxLength,
			Destination: &maxLength,
		},
		&cli.Int64Flag{
			Name:        "max-concurrent",
			Usage:       "concurrent generations sent to the runtime",
			Value:       1,
			Destination: &maxConcurrent,
		},
		&cli.DurationFlag{
			Name:        "generate-timeout",
			Usage:       "timeout for one generation",
			Value:       detector.DefaultGenerateTimeout,
			Destination: &generateTimeout,
		},
		&cli.DurationFlag{
			Name:        "load-timeout",
			Usage:       "timeout for loading the model",
			Value:       detector.DefaultLoadTimeout,
			Destination: &loadTimeout,
		},
		&cli.StringFlag{
			Name:        "result-cache",
			Usage:       "SQLite file memoizing results (disabled when empty)",
			Sources:     cli.EnvVars("VIHATE_RESULT_CACHE"),
			Destination: &resultCache,
		},
		&cli.DurationFlag{
			Name:        "result-cache-ttl",
			Usage:       "drop cached results older than this at startup (0 keeps all)",
			Destination: &resultCacheTTL,
		},
	}
}
