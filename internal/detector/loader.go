package detector

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/samcharles93/vihate/internal/hub"
	"github.com/samcharles93/vihate/internal/logger"
	"github.com/samcharles93/vihate/internal/runtime"
	"github.com/samcharles93/vihate/internal/tokenizer"
)

const (
	DefaultRepo      = "tarudesu/ViHateT5-base-HSD"
	DefaultMaxLength = 256
)

// RequiredFiles must be present in the snapshot before the model can load.
var RequiredFiles = []string{"tokenizer.json", "tokenizer_config.json", "config.json"}

// OptionalFiles are fetched alongside RequiredFiles when the hub has them.
var OptionalFiles = []string{"generation_config.json", "special_tokens_map.json"}

// Handle is a loaded model: the tokenizer lives in process, generation is
// delegated to the runtime.
type Handle struct {
	Tokenizer tokenizer.Tokenizer
	Generator runtime.Generator
	Repo      string
	Revision  string
	// Commit is the snapshot the revision resolved to.
	Commit     string
	Snapshot   string
	ModelType  string
	Generation GenerationConfig
	// ModelMaxLength is the tokenizer's input limit, 0 when unbounded.
	ModelMaxLength int
	LoadedAt       time.Time
}

// Loader produces a Handle. Service calls it at most once per successful
// load.
type Loader interface {
	Load(ctx context.Context) (*Handle, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context) (*Handle, error)

func (f LoaderFunc) Load(ctx context.Context) (*Handle, error) { return f(ctx) }

// HubLoader resolves the model snapshot from a Hugging Face style cache,
// fetching missing files unless Offline is set, and checks that the
// runtime serves the model.
type HubLoader struct {
	Cache      hub.Cache
	Hub        *hub.Client
	Repo       string
	Revision   string
	Offline    bool
	Runtime    runtime.Generator
	Tokenizers tokenizer.LoadFunc
	MaxLength  int
}

func (l *HubLoader) Load(ctx context.Context) (*Handle, error) {
	log := logger.FromContext(ctx)
	repo := l.Repo
	if repo == "" {
		repo = DefaultRepo
	}
	revision := l.Revision
	if revision == "" {
		revision = hub.DefaultRevision
	}
	maxLength := l.MaxLength
	if maxLength <= 0 {
		maxLength = DefaultMaxLength
	}
	if l.Runtime == nil {
		return nil, errors.New("no model runtime configured")
	}
	if l.Tokenizers == nil {
		return nil, errors.New("no tokenizer loader configured")
	}

	if missing := l.Cache.Missing(repo, revision, RequiredFiles); len(missing) > 0 {
		if l.Offline || l.Hub == nil {
			return nil, fmt.Errorf("%s@%s: missing %v in %s: %w", repo, revision, missing, l.Cache.Dir, hub.ErrNotCached)
		}
		log.Info("downloading model files", "repo", repo, "revision", revision, "missing", missing)
		files := append(append([]string{}, RequiredFiles...), OptionalFiles...)
		snap, err := l.Hub.Download(ctx, l.Cache, repo, hub.DownloadOptions{Revision: revision, Files: files})
		if err != nil {
			return nil, err
		}
		log.Info("model files ready", "dir", snap.Dir, "bytes", snap.Bytes, "took", snap.Took)
		if missing := l.Cache.Missing(repo, revision, RequiredFiles); len(missing) > 0 {
			return nil, fmt.Errorf("%s@%s: hub snapshot lacks %v", repo, revision, missing)
		}
	}

	dir, err := l.Cache.SnapshotDir(repo, revision)
	if err != nil {
		return nil, err
	}
	tokCfg, err := tokenizer.LoadConfig(dir)
	if err != nil {
		return nil, err
	}
	tok, err := l.Tokenizers(dir)
	if err != nil {
		return nil, err
	}
	configJSON, err := os.ReadFile(filepath.Join(dir, "config.json"))
	if err != nil {
		return nil, err
	}
	generationJSON, err := os.ReadFile(filepath.Join(dir, "generation_config.json"))
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	gen, modelType, err := parseModelConfig(configJSON, generationJSON, maxLength)
	if err != nil {
		return nil, err
	}

	if err := l.Runtime.Ready(ctx); err != nil {
		return nil, fmt.Errorf("runtime: %w", err)
	}

	return &Handle{
		Tokenizer:      tok,
		Generator:      l.Runtime,
		Repo:           repo,
		Revision:       revision,
		Commit:         filepath.Base(dir),
		Snapshot:       dir,
		ModelType:      modelType,
		Generation:     gen,
		ModelMaxLength: tokCfg.ModelMaxLength,
		LoadedAt:       time.Now(),
	}, nil
}
