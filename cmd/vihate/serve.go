package main

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/vihate/internal/api"
	"github.com/samcharles93/vihate/internal/logger"
	"github.com/samcharles93/vihate/internal/version"
)

var (
	addr        string
	readTimeout time.Duration
	rateLimit   float64
	rateBurst   int64
	eagerLoad   bool
)

func serveCmd() *cli.Command {
	flags := append(modelFlags(), runtimeFlags()...)
	flags = append(flags,
		&cli.StringFlag{
			Name:        "addr",
			Usage:       "listen address",
			Value:       "0.0.0.0:8000",
			Sources:     cli.EnvVars("VIHATE_ADDR"),
			Destination: &addr,
		},
		&cli.DurationFlag{
			Name:        "read-timeout",
			Usage:       "read header timeout",
			Value:       30 * time.Second,
			Destination: &readTimeout,
		},
		&cli.FloatFlag{
			Name:        "rate-limit",
			Usage:       "requests per second across all clients (0 disables)",
			Destination: &rateLimit,
		},
		&cli.Int64Flag{
			Name:        "rate-burst",
			Usage:       "burst size for --rate-limit",
			Destination: &rateBurst,
		},
		&cli.BoolFlag{
			Name:        "eager-load",
			Usage:       "load the model at startup instead of on the first request",
			Destination: &eagerLoad,
		},
	)

	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the toxicity detection API",
		Flags: flags,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			applyModelConfig(cmd, fileConfig)
			applyServeConfig(cmd, fileConfig)
			log := logger.FromContext(ctx)

			svc, cleanup, err := buildService(ctx)
			defer cleanup()
			if err != nil {
				return err
			}
			if eagerLoad {
				go func() {
					if _, err := svc.Handle(ctx); err != nil {
						log.Warn("eager model load failed", "error", err)
					}
				}()
			}

			server := api.NewServer(svc, api.Config{
				RateLimit: rateLimit,
				RateBurst: int(rateBurst),
				Logger:    log,
			})
			e := echo.New()
			e.Use(middleware.RequestLogger())
			e.Use(middleware.Recover())
			server.Install(e)
			server.Register(e)
			log.Info("starting server",
				"address", addr,
				"version", version.String(),
				"model", modelRepo,
				"runtime", runtimeURL,
			)
			sc := echo.StartConfig{
				Address: addr,
				BeforeServeFunc: func(srv *http.Server) error {
					srv.ReadHeaderTimeout = readTimeout
					return nil
				},
			}
			return sc.Start(ctx, e)
		},
	}
}
