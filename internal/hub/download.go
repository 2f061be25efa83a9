package hub

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultExclude skips weight formats no runtime we target loads.
var DefaultExclude = []string{
	"*.h5",
	"*.msgpack",
	"*.ot",
	"flax_model*",
	"tf_model*",
	".gitattributes",
}

type DownloadOptions struct {
	Revision string
	// Files restricts the download to these names. Names that the revision
	// does not contain are skipped.
	Files []string
	// Include and Exclude are path.Match patterns applied when Files is empty.
	Include []string
	Exclude []string
	// Parallelism bounds concurrent file downloads (default 4).
	Parallelism int
	// Progress is called after each file completes.
	Progress func(f File)
}

// Snapshot describes a downloaded revision.
type Snapshot struct {
	Repo     string
	Revision string
	Commit   string
	Dir      string
	Files    []File
	Bytes    int64
	Took     time.Duration
}

type File struct {
	Name   string
	Path   string
	Size   int64
	Cached bool
}

// Download materializes repo at opts.Revision into cache. Files that are
// already present with the expected size are not fetched again.
func (c *Client) Download(ctx context.Context, cache Cache, repo string, opts DownloadOptions) (*Snapshot, error) {
	start := time.Now()
	revision := opts.Revision
	if revision == "" {
		revision = DefaultRevision
	}
	info, err := c.RepoInfo(ctx, repo, revision)
	if err != nil {
		return nil, err
	}
	commit := info.SHA
	if commit == "" {
		commit = revision
	}

	selected := selectFiles(info.Siblings, opts)
	if len(selected) == 0 {
		return nil, fmt.Errorf("%s@%s: no files selected for download", repo, revision)
	}

	dir := cache.snapshotPath(repo, commit)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	parallel := opts.Parallelism
	if parallel <= 0 {
		parallel = 4
	}
	files := make([]File, len(selected))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallel)
	for i, sib := range selected {
		g.Go(func() error {
			target := filepath.Join(dir, filepath.FromSlash(sib.Name))
			f := File{Name: sib.Name, Path: target, Size: sib.Size}
			if st, err := os.Stat(target); err == nil && (sib.Size <= 0 || st.Size() == sib.Size) {
				f.Size = st.Size()
				f.Cached = true
			} else {
				n, err := c.fetch(gctx, repo, commit, sib.Name, target)
				if err != nil {
					return fmt.Errorf("download %s: %w", sib.Name, err)
				}
				f.Size = n
			}
			files[i] = f
			if opts.Progress != nil {
				opts.Progress(f)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := cache.writeRef(repo, revision, commit); err != nil {
		return nil, fmt.Errorf("write ref %s: %w", revision, err)
	}

	snap := &Snapshot{
		Repo:     repo,
		Revision: revision,
		Commit:   commit,
		Dir:      dir,
		Files:    files,
		Took:     time.Since(start),
	}
	for _, f := range files {
		snap.Bytes += f.Size
	}
	return snap, nil
}

func selectFiles(siblings []Sibling, opts DownloadOptions) []Sibling {
	if len(opts.Files) > 0 {
		want := make(map[string]struct{}, len(opts.Files))
		for _, name := range opts.Files {
			want[name] = struct{}{}
		}
		var out []Sibling
		for _, s := range siblings {
			if _, ok := want[s.Name]; ok {
				out = append(out, s)
			}
		}
		return out
	}
	var out []Sibling
	for _, s := range siblings {
		if len(opts.Include) > 0 && !matchAny(opts.Include, s.Name) {
			continue
		}
		if matchAny(opts.Exclude, s.Name) {
			continue
		}
		out = append(out, s)
	}
	return out
}

func matchAny(patterns []string, name string) bool {
	for _, p := range patterns {
		if ok, _ := path.Match(p, name); ok {
			return true
		}
		if ok, _ := path.Match(p, path.Base(name)); ok {
			return true
		}
	}
	return false
}
