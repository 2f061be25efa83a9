package hub

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"
)

const testRepo = "tarudesu/ViHateT5-base-HSD"

type fakeHub struct {
	files    map[string]string
	sha      string
	fetches  atomic.Int64
	token    string
	sawToken atomic.Bool
}

func (h *fakeHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.token != "" && r.Header.Get("Authorization") == "Bearer "+h.token {
		h.sawToken.Store(true)
	}
	switch {
	case r.URL.Path == "/api/models/"+testRepo+"/revision/main":
		var sibs []string
		for name, body := range h.files {
			sibs = append(sibs, fmt.Sprintf(`{"rfilename":%q,"size":%d}`, name, len(body)))
		}
		sort.Strings(sibs)
		fmt.Fprintf(w, `{"id":%q,"sha":%q,"siblings":[%s]}`, testRepo, h.sha, strings.Join(sibs, ","))
	case strings.HasPrefix(r.URL.Path, "/"+testRepo+"/resolve/"+h.sha+"/"):
		name := strings.TrimPrefix(r.URL.Path, "/"+testRepo+"/resolve/"+h.sha+"/")
		body, ok := h.files[name]
		if !ok {
			http.NotFound(w, r)
			return
		}
		h.fetches.Add(1)
		_, _ = w.Write([]byte(body))
	default:
		http.NotFound(w, r)
	}
}

func newFakeHub(t *testing.T) (*fakeHub, *Client) {
	t.Helper()
	h := &fakeHub{
		sha: "abc123",
		files: map[string]string{
			"config.json":       `{"model_type":"t5"}`,
			"tokenizer.json":    `{"model":{"type":"Unigram"}}`,
			"model.safetensors": "weights",
			"tf_model.h5":       "tf weights",
		},
	}
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return h, NewClient(WithEndpoint(srv.URL), WithToken(""))
}

func TestDownloadWritesSnapshotAndRef(t *testing.T) {
	t.Parallel()

	h, client := newFakeHub(t)
	cache := NewCache(t.TempDir())

	snap, err := client.Download(context.Background(), cache, testRepo, DownloadOptions{Exclude: DefaultExclude})
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if snap.Commit != "abc123" {
		t.Fatalf("commit = %q, want abc123", snap.Commit)
	}

	var names []string
	for _, f := range snap.Files {
		names = append(names, f.Name)
	}
	sort.Strings(names)
	if diff := cmp.Diff([]string{"config.json", "model.safetensors", "tokenizer.json"}, names); diff != "" {
		t.Fatalf("downloaded files mismatch (-want +got):\n%s", diff)
	}

	dir, err := cache.SnapshotDir(testRepo, "main")
	if err != nil {
		t.Fatalf("SnapshotDir: %v", err)
	}
	if dir != snap.Dir {
		t.Fatalf("SnapshotDir = %q, want %q", dir, snap.Dir)
	}
	raw, err := os.ReadFile(filepath.Join(dir, "config.json"))
	if err != nil || string(raw) != `{"model_type":"t5"}` {
		t.Fatalf("config.json = %q, %v", raw, err)
	}

	before := h.fetches.Load()
	again, err := client.Download(context.Background(), cache, testRepo, DownloadOptions{Exclude: DefaultExclude})
	if err != nil {
		t.Fatalf("second Download: %v", err)
	}
	if h.fetches.Load() != before {
		t.Fatalf("expected cached files to be reused, fetched %d more", h.fetches.Load()-before)
	}
	for _, f := range again.Files {
		if !f.Cached {
			t.Fatalf("file %s not reported as cached", f.Name)
		}
	}
}

func TestDownloadSelectedFilesOnly(t *testing.T) {
	t.Parallel()

	_, client := newFakeHub(t)
	cache := NewCache(t.TempDir())
	snap, err := client.Download(context.Background(), cache, testRepo, DownloadOptions{
		Files: []string{"tokenizer.json", "generation_config.json"},
	})
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if len(snap.Files) != 1 || snap.Files[0].Name != "tokenizer.json" {
		t.Fatalf("unexpected files: %+v", snap.Files)
	}
	missing := cache.Missing(testRepo, "main", []string{"tokenizer.json", "config.json"})
	if diff := cmp.Diff([]string{"config.json"}, missing); diff != "" {
		t.Fatalf("Missing mismatch (-want +got):\n%s", diff)
	}
}

func TestDownloadSendsToken(t *testing.T) {
	t.Parallel()

	h := &fakeHub{sha: "s1", files: map[string]string{"config.json": "{}"}, token: "secret"}
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	client := NewClient(WithEndpoint(srv.URL), WithToken("secret"))
	if _, err := client.Download(context.Background(), NewCache(t.TempDir()), testRepo, DownloadOptions{}); err != nil {
		t.Fatalf("Download: %v", err)
	}
	if !h.sawToken.Load() {
		t.Fatal("expected bearer token on hub requests")
	}
}

func TestRepoInfoStatusErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status int
		want   error
	}{
		{http.StatusNotFound, ErrNotFound},
		{http.StatusUnauthorized, ErrUnauthorized},
		{http.StatusForbidden, ErrUnauthorized},
		{http.StatusTooManyRequests, ErrRateLimited},
	}
	for _, tc := range tests {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
		}))
		client := NewClient(WithEndpoint(srv.URL))
		_, err := client.RepoInfo(context.Background(), testRepo, "main")
		srv.Close()
		if !errors.Is(err, tc.want) {
			t.Errorf("status %d: got %v, want %v", tc.status, err, tc.want)
		}
	}
}

func TestSnapshotDirNotCached(t *testing.T) {
	t.Parallel()

	cache := NewCache(t.TempDir())
	if _, err := cache.SnapshotDir(testRepo, "main"); !errors.Is(err, ErrNotCached) {
		t.Fatalf("expected ErrNotCached, got %v", err)
	}
	if _, err := cache.File(testRepo, "main", "config.json"); !errors.Is(err, ErrNotCached) {
		t.Fatalf("expected ErrNotCached, got %v", err)
	}
}

func TestSnapshotDirWithoutRef(t *testing.T) {
	t.Parallel()

	cache := NewCache(t.TempDir())
	dir := filepath.Join(cache.RepoDir(testRepo), "snapshots", "main")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	got, err := cache.SnapshotDir(testRepo, "")
	if err != nil {
		t.Fatalf("SnapshotDir: %v", err)
	}
	if got != dir {
		t.Fatalf("SnapshotDir = %q, want %q", got, dir)
	}
}

func TestValidateRepo(t *testing.T) {
	t.Parallel()

	for _, repo := range []string{"", "noslash", "/name", "owner/", "a/b/c"} {
		if err := ValidateRepo(repo); !errors.Is(err, ErrInvalidRepo) {
			t.Errorf("ValidateRepo(%q) = %v, want ErrInvalidRepo", repo, err)
		}
	}
	if err := ValidateRepo(testRepo); err != nil {
		t.Fatalf("ValidateRepo(%q) = %v", testRepo, err)
	}
}

func TestDefaultCacheDirPrecedence(t *testing.T) {
	t.Setenv(EnvHubCache, "")
	t.Setenv(EnvTransformersCache, "")
	t.Setenv(EnvHome, "/srv/hf")
	if got := DefaultCacheDir(); got != filepath.Join("/srv/hf", "hub") {
		t.Fatalf("HF_HOME: got %q", got)
	}

	t.Setenv(EnvTransformersCache, "/models/transformers")
	if got := DefaultCacheDir(); got != "/models/transformers" {
		t.Fatalf("TRANSFORMERS_CACHE: got %q", got)
	}

	t.Setenv(EnvHubCache, "/models/hub")
	if got := DefaultCacheDir(); got != "/models/hub" {
		t.Fatalf("HF_HUB_CACHE: got %q", got)
	}

	t.Setenv(EnvHubCache, "")
	t.Setenv(EnvTransformersCache, "")
	t.Setenv(EnvHome, "")
	t.Setenv("XDG_CACHE_HOME", "/xdg")
	if got := DefaultCacheDir(); got != filepath.Join("/xdg", "huggingface", "hub") {
		t.Fatalf("XDG_CACHE_HOME: got %q", got)
	}
}
