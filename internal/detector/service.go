// Package detector runs Vietnamese toxic speech detection on top of a
// lazily loaded seq2seq model.
package detector

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"
	"golang.org/x/text/unicode/norm"

	"github.com/samcharles93/vihate/internal/logger"
	"github.com/samcharles93/vihate/internal/runtime"
)

// TaskPrefix selects the detection task of the multi-task checkpoint.
const TaskPrefix = "toxic-speech-detection"

const (
	DefaultGenerateTimeout = 30 * time.Second
	DefaultLoadTimeout     = 2 * time.Minute
	DefaultRetryBackoff    = 10 * time.Second
)

// State is the lifecycle of the model handle.
type State int32

const (
	StateUninitialized State = iota
	StateLoading
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return "uninitialized"
	}
}

// ResultCache memoizes decoded outputs. Greedy decoding is deterministic
// so a prompt always maps to the same label for a given model snapshot.
type ResultCache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Put(ctx context.Context, key, value string) error
}

type Options struct {
	// ModelName is reported by Health before the model has loaded.
	ModelName       string
	MaxConcurrent   int64
	GenerateTimeout time.Duration
	LoadTimeout     time.Duration
	// RetryBackoff is how long a failed load is reported before the next
	// attempt. Negative disables the back-off.
	RetryBackoff time.Duration
	Cache        ResultCache
}

// Service owns the model handle. The zero value is not usable; use New.
type Service struct {
	loader Loader
	opts   Options
	sem    *semaphore.Weighted
	group  singleflight.Group
	handle atomic.Pointer[Handle]
	now    func() time.Time

	mu       sync.Mutex
	state    State
	lastErr  error
	failedAt time.Time
}

func New(loader Loader, opts Options) *Service {
	if opts.ModelName == "" {
		opts.ModelName = DefaultRepo
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 1
	}
	if opts.GenerateTimeout <= 0 {
		opts.GenerateTimeout = DefaultGenerateTimeout
	}
	if opts.LoadTimeout <= 0 {
		opts.LoadTimeout = DefaultLoadTimeout
	}
	switch {
	case opts.RetryBackoff == 0:
		opts.RetryBackoff = DefaultRetryBackoff
	case opts.RetryBackoff < 0:
		opts.RetryBackoff = 0
	}
	return &Service{
		loader: loader,
		opts:   opts,
		sem:    semaphore.NewWeighted(opts.MaxConcurrent),
		now:    time.Now,
	}
}

func (s *Service) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Service) ModelName() string {
	if h := s.handle.Load(); h != nil {
		return h.Repo
	}
	return s.opts.ModelName
}

// Handle returns the loaded model, loading it on first use. Concurrent
// first callers share one load. A failed load is returned to every caller
// until RetryBackoff has elapsed.
func (s *Service) Handle(ctx context.Context) (*Handle, error) {
	if h := s.handle.Load(); h != nil {
		return h, nil
	}

	s.mu.Lock()
	if s.state == StateFailed && s.now().Sub(s.failedAt) < s.opts.RetryBackoff {
		err := s.lastErr
		s.mu.Unlock()
		return nil, err
	}
	s.mu.Unlock()

	ch := s.group.DoChan("load", func() (any, error) {
		return s.load(ctx)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Handle), nil
	case <-ctx.Done():
		return nil, unavailableError("load model", ctx.Err())
	}
}

func (s *Service) load(ctx context.Context) (*Handle, error) {
	if h := s.handle.Load(); h != nil {
		return h, nil
	}
	log := logger.FromContext(ctx)
	s.setState(StateLoading, nil)

	// The load outlives the caller that triggered it; others may be waiting.
	lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.LoadTimeout)
	defer cancel()

	start := time.Now()
	log.Info("loading model", "model", s.opts.ModelName)
	h, err := s.loader.Load(lctx)
	if err == nil && h == nil {
		err = errors.New("loader returned no model")
	}
	if err != nil {
		err = unavailableError("load model", err)
		s.setState(StateFailed, err)
		log.Error("model load failed", "model", s.opts.ModelName, "error", err, "took", time.Since(start))
		return nil, err
	}
	s.handle.Store(h)
	s.setState(StateReady, nil)
	log.Info("model loaded",
		"model", h.Repo,
		"revision", h.Revision,
		"commit", h.Commit,
		"snapshot", h.Snapshot,
		"took", time.Since(start),
	)
	return h, nil
}

func (s *Service) setState(st State, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = st
	s.lastErr = err
	if st == StateFailed {
		s.failedAt = s.now()
	}
}

// Check classifies text and returns the label produced by the model, for
// example CLEAN or TOXIC.
func (s *Service) Check(ctx context.Context, text string) (string, error) {
	return s.check(ctx, text, true)
}

// check runs the full pipeline. With useCache false the result cache is
// neither read nor written, so the runtime is always asked.
func (s *Service) check(ctx context.Context, text string, useCache bool) (string, error) {
	clean := strings.TrimSpace(strings.ToValidUTF8(text, ""))
	if clean == "" {
		return "", validationError("check", ErrEmptyText)
	}

	h, err := s.Handle(ctx)
	if err != nil {
		return "", err
	}
	log := logger.FromContext(ctx)
	prompt := TaskPrefix + ": " + clean

	cache := s.opts.Cache
	if !useCache {
		cache = nil
	}
	var key string
	if cache != nil {
		key = CacheKey(h.Repo, h.Commit, prompt)
		label, ok, err := cache.Get(ctx, key)
		if err != nil {
			log.Warn("result cache lookup failed", "error", err)
		} else if ok {
			return label, nil
		}
	}

	ids, err := h.Tokenizer.Encode(prompt)
	if err != nil {
		return "", unexpectedError("tokenize", err)
	}
	if h.ModelMaxLength > 0 && len(ids) > h.ModelMaxLength {
		log.Warn("prompt exceeds model max length", "tokens", len(ids), "max", h.ModelMaxLength)
	}

	out, err := s.generate(ctx, h, ids)
	if err != nil {
		return "", err
	}

	label, err := h.Tokenizer.Decode(out)
	if err != nil {
		return "", unexpectedError("decode", err)
	}

	if cache != nil {
		if err := cache.Put(ctx, key, label); err != nil {
			log.Warn("result cache store failed", "error", err)
		}
	}
	return label, nil
}

func (s *Service) generate(ctx context.Context, h *Handle, ids []int) ([]int, error) {
	gctx, cancel := context.WithTimeout(ctx, s.opts.GenerateTimeout)
	defer cancel()

	if err := s.sem.Acquire(gctx, 1); err != nil {
		return nil, unavailableError("generate", fmt.Errorf("waiting for model: %w", err))
	}
	defer s.sem.Release(1)

	out, err := h.Generator.Generate(gctx, runtime.GenerateRequest{
		InputIDs:       ids,
		MaxLength:      h.Generation.MaxLength,
		DecoderStartID: h.Generation.DecoderStartID,
		EOSID:          h.Generation.EOSID,
		PadID:          h.Generation.PadID,
	})
	if err != nil {
		var se *runtime.StatusError
		if errors.As(err, &se) && !se.Temporary() {
			return nil, unexpectedError("generate", err)
		}
		return nil, unavailableError("generate", err)
	}
	return out, nil
}

// CacheKey identifies a prompt for one resolved snapshot of a model.
// Canonically equivalent prompts share a key; the tokenizer normalizes
// them to the same ids.
func CacheKey(repo, commit, prompt string) string {
	sum := sha256.Sum256([]byte(repo + "\x00" + commit + "\x00" + norm.NFC.String(prompt)))
	return hex.EncodeToString(sum[:])
}
