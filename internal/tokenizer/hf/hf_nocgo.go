//go:build !cgo

package hf

import (
	"errors"

	"github.com/samcharles93/vihate/internal/tokenizer"
)

// ErrNoCgo is returned by binaries built with CGO_ENABLED=0, which cannot
// link the native tokenizers library.
var ErrNoCgo = errors.New("tokenizer support requires a cgo build linked against libtokenizers")

func LoadFunc(string) (tokenizer.Tokenizer, error) { return nil, ErrNoCgo }
