package detector

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/samcharles93/vihate/internal/hub"
	"github.com/samcharles93/vihate/internal/runtime"
	"github.com/samcharles93/vihate/internal/tokenizer"
)

const (
	testRepo   = "tarudesu/ViHateT5-base-HSD"
	testCommit = "0123456789abcdef"
)

var testFiles = map[string]string{
	"tokenizer.json": `{
		"added_tokens": [
			{"id": 0, "content": "<pad>", "special": true},
			{"id": 1, "content": "</s>", "special": true},
			{"id": 2, "content": "<unk>", "special": true}
		],
		"pre_tokenizer": {"type": "Metaspace", "replacement": "▁", "prepend_scheme": "always"},
		"decoder": {"type": "Metaspace", "replacement": "▁", "prepend_scheme": "always"},
		"model": {"type": "Unigram", "unk_id": 2, "vocab": [
			["<pad>", 0], ["</s>", 0], ["<unk>", 0], ["▁", -2], ["▁CLEAN", -1]
		]}
	}`,
	"tokenizer_config.json":  `{"eos_token": "</s>", "pad_token": "<pad>", "model_max_length": 512}`,
	"config.json":            `{"model_type": "t5", "is_encoder_decoder": true, "eos_token_id": 1, "pad_token_id": 0, "decoder_start_token_id": 0}`,
	"generation_config.json": `{"eos_token_id": 1, "pad_token_id": 0, "decoder_start_token_id": 0}`,
	"model.safetensors":      "weights",
}

type readyRuntime struct {
	err error
}

func (r readyRuntime) Ready(context.Context) error { return r.err }
func (r readyRuntime) Generate(context.Context, runtime.GenerateRequest) ([]int, error) {
	return []int{0, 4, 1}, nil
}

// snapshotTokenizers records the directory it was asked to load from.
type snapshotTokenizers struct {
	dir string
	err error
}

func (s *snapshotTokenizers) load(dir string) (tokenizer.Tokenizer, error) {
	s.dir = dir
	if s.err != nil {
		return nil, s.err
	}
	return newFakeTokenizer(), nil
}

func newFakeHub(t *testing.T) (*hub.Client, *atomic.Int64) {
	t.Helper()
	var fetches atomic.Int64
	mux := http.NewServeMux()
	mux.HandleFunc("/api/models/"+testRepo+"/revision/main", func(w http.ResponseWriter, r *http.Request) {
		var sib []string
		for name := range testFiles {
			sib = append(sib, `{"rfilename":"`+name+`"}`)
		}
		_, _ = w.Write([]byte(`{"id":"` + testRepo + `","sha":"` + testCommit + `","siblings":[` + strings.Join(sib, ",") + `]}`))
	})
	mux.HandleFunc("/"+testRepo+"/resolve/"+testCommit+"/", func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimPrefix(r.URL.Path, "/"+testRepo+"/resolve/"+testCommit+"/")
		body, ok := testFiles[name]
		if !ok {
			http.NotFound(w, r)
			return
		}
		fetches.Add(1)
		_, _ = w.Write([]byte(body))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return hub.NewClient(hub.WithEndpoint(srv.URL), hub.WithToken("")), &fetches
}

func seedCache(t *testing.T, cache hub.Cache, names ...string) {
	t.Helper()
	dir := filepath.Join(cache.RepoDir(testRepo), "snapshots", testCommit)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	for _, name := range names {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(testFiles[name]), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	refs := filepath.Join(cache.RepoDir(testRepo), "refs")
	if err := os.MkdirAll(refs, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(refs, "main"), []byte(testCommit), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestHubLoaderFromCache(t *testing.T) {
	t.Parallel()

	cache := hub.NewCache(t.TempDir())
	seedCache(t, cache, "tokenizer.json", "tokenizer_config.json", "config.json")
	toks := &snapshotTokenizers{}
	l := &HubLoader{Cache: cache, Repo: testRepo, Offline: true, Runtime: readyRuntime{}, Tokenizers: toks.load}

	h, err := l.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if h.Revision != "main" || h.Commit != testCommit || filepath.Base(h.Snapshot) != testCommit {
		t.Fatalf("unexpected handle: %+v", h)
	}
	if toks.dir != h.Snapshot {
		t.Fatalf("tokenizer loaded from %q, want %q", toks.dir, h.Snapshot)
	}
	want := GenerationConfig{MaxLength: DefaultMaxLength, DecoderStartID: 0, EOSID: 1, PadID: 0}
	if h.Generation != want {
		t.Fatalf("generation = %+v, want %+v", h.Generation, want)
	}
	if h.ModelType != "t5" || h.ModelMaxLength != 512 {
		t.Fatalf("unexpected metadata: type=%q max=%d", h.ModelType, h.ModelMaxLength)
	}
}

func TestHubLoaderTokenizerError(t *testing.T) {
	t.Parallel()

	cache := hub.NewCache(t.TempDir())
	seedCache(t, cache, "tokenizer.json", "tokenizer_config.json", "config.json")
	toks := &snapshotTokenizers{err: errors.New("bad tokenizer.json")}
	l := &HubLoader{Cache: cache, Repo: testRepo, Offline: true, Runtime: readyRuntime{}, Tokenizers: toks.load}
	if _, err := l.Load(context.Background()); err == nil || !strings.Contains(err.Error(), "bad tokenizer.json") {
		t.Fatalf("expected tokenizer error, got %v", err)
	}

	l.Tokenizers = nil
	if _, err := l.Load(context.Background()); err == nil {
		t.Fatal("expected error without a tokenizer loader")
	}
}

func TestHubLoaderOfflineMissing(t *testing.T) {
	t.Parallel()

	cache := hub.NewCache(t.TempDir())
	client, fetches := newFakeHub(t)
	l := &HubLoader{Cache: cache, Hub: client, Repo: testRepo, Offline: true, Runtime: readyRuntime{}, Tokenizers: (&snapshotTokenizers{}).load}
	_, err := l.Load(context.Background())
	if !errors.Is(err, hub.ErrNotCached) {
		t.Fatalf("expected ErrNotCached, got %v", err)
	}
	if fetches.Load() != 0 {
		t.Fatal("offline loader must not download")
	}
}

func TestHubLoaderDownloadsMissing(t *testing.T) {
	t.Parallel()

	cache := hub.NewCache(t.TempDir())
	client, fetches := newFakeHub(t)
	l := &HubLoader{Cache: cache, Hub: client, Repo: testRepo, Runtime: readyRuntime{}, Tokenizers: (&snapshotTokenizers{}).load, MaxLength: 64}

	h, err := l.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if h.Generation.MaxLength != 64 {
		t.Fatalf("max length = %d, want 64", h.Generation.MaxLength)
	}
	// Required and optional files only; weights stay on the runtime side.
	if got := fetches.Load(); got != 4 {
		t.Fatalf("fetched %d files, want 4", got)
	}
	if _, err := os.Stat(filepath.Join(h.Snapshot, "model.safetensors")); !os.IsNotExist(err) {
		t.Fatalf("weights should not be downloaded: %v", err)
	}
	if missing := cache.Missing(testRepo, "main", RequiredFiles); len(missing) != 0 {
		t.Fatalf("cache still missing %v", missing)
	}
}

func TestHubLoaderRuntimeNotReady(t *testing.T) {
	t.Parallel()

	cache := hub.NewCache(t.TempDir())
	seedCache(t, cache, "tokenizer.json", "tokenizer_config.json", "config.json")
	l := &HubLoader{Cache: cache, Repo: testRepo, Offline: true, Runtime: readyRuntime{err: runtime.ErrNotReady}, Tokenizers: (&snapshotTokenizers{}).load}
	if _, err := l.Load(context.Background()); !errors.Is(err, runtime.ErrNotReady) {
		t.Fatalf("expected ErrNotReady, got %v", err)
	}
}

func TestParseModelConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		config  string
		gen     string
		want    GenerationConfig
		wantErr bool
	}{
		{
			name:   "t5 defaults",
			config: `{"model_type":"t5","eos_token_id":1,"pad_token_id":0,"decoder_start_token_id":0}`,
			want:   GenerationConfig{MaxLength: 256, EOSID: 1},
		},
		{
			name:   "eos list and null pad",
			config: `{"eos_token_id":[2,3],"pad_token_id":null}`,
			want:   GenerationConfig{MaxLength: 256, DecoderStartID: 2, EOSID: 2, PadID: 2},
		},
		{
			name:   "generation config overrides",
			config: `{"eos_token_id":1,"pad_token_id":0}`,
			gen:    `{"eos_token_id":5,"decoder_start_token_id":7}`,
			want:   GenerationConfig{MaxLength: 256, DecoderStartID: 7, EOSID: 5},
		},
		{name: "missing eos", config: `{"pad_token_id":0}`, wantErr: true},
		{name: "decoder only", config: `{"is_encoder_decoder":false,"eos_token_id":1}`, wantErr: true},
		{name: "bad json", config: `{`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _, err := parseModelConfig([]byte(tt.config), []byte(tt.gen), 256)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("parseModelConfig: %v", err)
			}
			if got != tt.want {
				t.Fatalf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}
