// Package hub reads and fills a Hugging Face hub compatible model cache.
//
// The on-disk layout matches the one written by the Python huggingface_hub
// library, so a cache warmed by either side can be read by the other:
//
//	<cache>/models--<org>--<name>/refs/<revision>         commit hash
//	<cache>/models--<org>--<name>/snapshots/<commit>/...  model files
package hub

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	EnvHubCache          = "HF_HUB_CACHE"
	EnvTransformersCache = "TRANSFORMERS_CACHE"
	EnvHome              = "HF_HOME"
	EnvToken             = "HF_TOKEN"
	EnvEndpoint          = "HF_ENDPOINT"
	EnvOffline           = "HF_HUB_OFFLINE"

	DefaultRevision = "main"

	repoPrefix   = "models--"
	refsDir      = "refs"
	snapshotsDir = "snapshots"
)

var (
	ErrNotCached    = errors.New("not in cache")
	ErrInvalidRepo  = errors.New("invalid repo id")
	ErrNotFound     = errors.New("not found on hub")
	ErrUnauthorized = errors.New("hub authentication failed")
	ErrRateLimited  = errors.New("hub rate limit exceeded")
)

// DefaultCacheDir resolves the cache directory the same way the Python
// tooling does: HF_HUB_CACHE, TRANSFORMERS_CACHE, HF_HOME/hub, then
// $XDG_CACHE_HOME/huggingface/hub and ~/.cache/huggingface/hub.
func DefaultCacheDir() string {
	for _, env := range []string{EnvHubCache, EnvTransformersCache} {
		if dir := strings.TrimSpace(os.Getenv(env)); dir != "" {
			return dir
		}
	}
	if home := strings.TrimSpace(os.Getenv(EnvHome)); home != "" {
		return filepath.Join(home, "hub")
	}
	base := strings.TrimSpace(os.Getenv("XDG_CACHE_HOME"))
	if base == "" {
		if home, err := os.UserHomeDir(); err == nil {
			base = filepath.Join(home, ".cache")
		} else {
			base = filepath.Join(os.TempDir(), "cache")
		}
	}
	return filepath.Join(base, "huggingface", "hub")
}

// Cache is a hub cache rooted at Dir.
type Cache struct {
	Dir string
}

// NewCache returns a Cache rooted at dir, or at DefaultCacheDir when dir is empty.
func NewCache(dir string) Cache {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		dir = DefaultCacheDir()
	}
	return Cache{Dir: filepath.Clean(dir)}
}

// RepoDir is the per-repository directory inside the cache.
func (c Cache) RepoDir(repo string) string {
	return filepath.Join(c.Dir, repoPrefix+strings.ReplaceAll(repo, "/", "--"))
}

// SnapshotDir returns the snapshot directory for revision. A revision that
// has a ref file is resolved to its commit; otherwise the revision itself
// is tried as a snapshot name.
func (c Cache) SnapshotDir(repo, revision string) (string, error) {
	if err := ValidateRepo(repo); err != nil {
		return "", err
	}
	if revision == "" {
		revision = DefaultRevision
	}
	commit := revision
	if raw, err := os.ReadFile(filepath.Join(c.RepoDir(repo), refsDir, revision)); err == nil {
		if ref := strings.TrimSpace(string(raw)); ref != "" {
			commit = ref
		}
	}
	dir := filepath.Join(c.RepoDir(repo), snapshotsDir, commit)
	st, err := os.Stat(dir)
	if err != nil || !st.IsDir() {
		return "", fmt.Errorf("%s@%s: %w", repo, revision, ErrNotCached)
	}
	return dir, nil
}

// File returns the path of name inside the resolved snapshot.
func (c Cache) File(repo, revision, name string) (string, error) {
	dir, err := c.SnapshotDir(repo, revision)
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, filepath.FromSlash(name))
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("%s@%s/%s: %w", repo, revision, name, ErrNotCached)
	}
	return path, nil
}

// Missing lists which of names are absent from the snapshot. When the
// snapshot itself does not exist all names are returned.
func (c Cache) Missing(repo, revision string, names []string) []string {
	dir, err := c.SnapshotDir(repo, revision)
	if err != nil {
		return append([]string(nil), names...)
	}
	var missing []string
	for _, name := range names {
		if _, err := os.Stat(filepath.Join(dir, filepath.FromSlash(name))); err != nil {
			missing = append(missing, name)
		}
	}
	return missing
}

func (c Cache) snapshotPath(repo, commit string) string {
	return filepath.Join(c.RepoDir(repo), snapshotsDir, commit)
}

func (c Cache) writeRef(repo, revision, commit string) error {
	if revision == "" || commit == "" || revision == commit {
		return nil
	}
	dir := filepath.Join(c.RepoDir(repo), refsDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	return writeFileAtomic(filepath.Join(dir, revision), []byte(commit))
}

// ValidateRepo checks that repo has the "owner/name" form.
func ValidateRepo(repo string) error {
	owner, name, ok := strings.Cut(repo, "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return fmt.Errorf("%w: %q (want owner/name)", ErrInvalidRepo, repo)
	}
	return nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return os.Rename(tmpPath, path)
}
