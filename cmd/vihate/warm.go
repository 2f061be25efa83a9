package main

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/vihate/internal/detector"
	"github.com/samcharles93/vihate/internal/hub"
	"github.com/samcharles93/vihate/internal/logger"
)

func warmCmd() *cli.Command {
	var skipTest bool
	flags := append(modelFlags(), runtimeFlags()...)
	flags = append(flags, &cli.BoolFlag{
		Name:        "skip-test",
		Usage:       "do not run a test inference after downloading",
		Destination: &skipTest,
	})

	return &cli.Command{
		Name:  "warm",
		Usage: "Download the model snapshot into the cache and test it",
		Flags: flags,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			applyModelConfig(cmd, fileConfig)
			log := logger.FromContext(ctx)
			cache := hub.NewCache(cacheDir)

			if offline {
				if missing := cache.Missing(modelRepo, revision, detector.RequiredFiles); len(missing) > 0 {
					return fmt.Errorf("offline and %s@%s is missing %v: %w", modelRepo, revision, missing, hub.ErrNotCached)
				}
				log.Info("offline: using cached snapshot", "repo", modelRepo)
			} else {
				fmt.Printf("Downloading model: %s\n", modelRepo)
				snap, err := newHubClient().Download(ctx, cache, modelRepo, hub.DownloadOptions{
					Revision: revision,
					Exclude:  hub.DefaultExclude,
					Progress: func(f hub.File) {
						log.Info("file ready", "name", f.Name, "bytes", f.Size, "cached", f.Cached)
					},
				})
				if err != nil {
					return fmt.Errorf("error downloading model: %w", err)
				}
				fmt.Printf("Model downloaded: %d files, %d bytes in %s\n", len(snap.Files), snap.Bytes, snap.Took.Round(time.Millisecond))
			}

			if !skipTest {
				svc, cleanup, err := buildService(ctx)
				defer cleanup()
				if err != nil {
					return err
				}
				fmt.Println("Testing model...")
				label, err := svc.Check(ctx, detector.ProbeText)
				if err != nil {
					return fmt.Errorf("model test failed: %w", err)
				}
				fmt.Printf("Model test successful: %s\n", label)
			}

			fmt.Printf("Model cached in: %s\n", cache.RepoDir(modelRepo))
			return nil
		},
	}
}
