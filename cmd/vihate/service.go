package main

import (
	"context"
	"fmt"
	"time"

	"github.com/samcharles93/vihate/internal/detector"
	"github.com/samcharles93/vihate/internal/hub"
	"github.com/samcharles93/vihate/internal/logger"
	"github.com/samcharles93/vihate/internal/runtime"
	"github.com/samcharles93/vihate/internal/store"
	"github.com/samcharles93/vihate/internal/tokenizer/hf"
)

func newHubClient() *hub.Client {
	return hub.NewClient(hub.WithEndpoint(hubURL), hub.WithToken(hfToken))
}

// buildService wires cache, hub, runtime and result cache into a detector
// service from the current flag values. The returned cleanup is never nil.
func buildService(ctx context.Context) (*detector.Service, func(), error) {
	log := logger.FromContext(ctx)
	cleanup := func() {}

	gen, err := runtime.NewClient(runtimeURL, runtimeModel)
	if err != nil {
		return nil, cleanup, err
	}
	loader := &detector.HubLoader{
		Cache:      hub.NewCache(cacheDir),
		Repo:       modelRepo,
		Revision:   revision,
		Offline:    offline,
		Runtime:    gen,
		Tokenizers: hf.LoadFunc,
		MaxLength:  int(maxLength),
	}
	if !offline {
		loader.Hub = newHubClient()
	}

	opts := detector.Options{
		ModelName:       modelRepo,
		MaxConcurrent:   maxConcurrent,
		GenerateTimeout: generateTimeout,
		LoadTimeout:     loadTimeout,
	}
	if resultCache != "" {
		results, err := store.Open(resultCache)
		if err != nil {
			return nil, cleanup, fmt.Errorf("open result cache: %w", err)
		}
		cleanup = func() { _ = results.Close() }
		if resultCacheTTL > 0 {
			n, err := results.Prune(ctx, time.Now().Add(-resultCacheTTL))
			if err != nil {
				log.Warn("prune result cache", "error", err)
			} else if n > 0 {
				log.Info("pruned result cache", "removed", n)
			}
		}
		if st, err := results.Stats(ctx); err == nil {
			log.Info("result cache ready", "path", resultCache, "entries", st.Entries, "hits", st.Hits)
		}
		opts.Cache = results
	}

	log.Debug("model cache", "dir", loader.Cache.Dir, "offline", offline)
	return detector.New(loader, opts), cleanup, nil
}
