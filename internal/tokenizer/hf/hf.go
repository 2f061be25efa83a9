//go:build cgo

// Package hf loads tokenizer.json through the Hugging Face tokenizers
// library, so normalization, segmentation and decoding match transformers.
package hf

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/daulet/tokenizers"

	"github.com/samcharles93/vihate/internal/tokenizer"
)

// Tokenizer wraps a native tokenizer with the transformers-level settings
// from tokenizer_config.json. It is safe for concurrent use.
type Tokenizer struct {
	tk        *tokenizers.Tokenizer
	cfg       tokenizer.Config
	vocabSize int
}

var _ tokenizer.Tokenizer = (*Tokenizer)(nil)

// Load reads tokenizer.json and, when present, tokenizer_config.json from dir.
func Load(dir string) (*Tokenizer, error) {
	path := filepath.Join(dir, "tokenizer.json")
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("load tokenizer.json: %w", err)
	}
	cfg, err := tokenizer.LoadConfig(dir)
	if err != nil {
		return nil, err
	}
	tk, err := tokenizers.FromFile(path)
	if err != nil {
		return nil, fmt.Errorf("load tokenizer.json: %w", err)
	}
	return &Tokenizer{tk: tk, cfg: cfg, vocabSize: int(tk.VocabSize())}, nil
}

// LoadFunc adapts Load to tokenizer.LoadFunc.
func LoadFunc(dir string) (tokenizer.Tokenizer, error) {
	t, err := Load(dir)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// Encode tokenizes text with special tokens added by the post-processor.
func (t *Tokenizer) Encode(text string) ([]int, error) {
	ids, _ := t.tk.Encode(text, true)
	if len(ids) == 0 {
		return nil, errors.New("tokenizer produced no tokens")
	}
	out := make([]int, len(ids))
	for i, id := range ids {
		out[i] = int(id)
	}
	return out, nil
}

// Decode skips special tokens and, when configured, removes spaces before
// punctuation.
func (t *Tokenizer) Decode(ids []int) (string, error) {
	in := make([]uint32, len(ids))
	for i, id := range ids {
		if id < 0 || id >= t.vocabSize {
			return "", fmt.Errorf("token id out of range: %d", id)
		}
		in[i] = uint32(id)
	}
	text := t.tk.Decode(in, true)
	if t.cfg.CleanUpSpaces {
		text = tokenizer.CleanUp(text)
	}
	return text, nil
}

func (t *Tokenizer) Config() tokenizer.Config { return t.cfg }

// Close releases the native tokenizer.
func (t *Tokenizer) Close() error { return t.tk.Close() }
