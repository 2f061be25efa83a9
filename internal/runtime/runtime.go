// Package runtime talks to the external model server that runs the
// seq2seq generation. Text never crosses this boundary, only token ids.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// GenerateRequest is one greedy generation over a single prompt.
type GenerateRequest struct {
	InputIDs       []int
	MaxLength      int
	DecoderStartID int
	EOSID          int
	PadID          int
}

// Generator is implemented by model runtimes.
type Generator interface {
	// Ready returns nil once the runtime can serve the model.
	Ready(ctx context.Context) error
	Generate(ctx context.Context, req GenerateRequest) ([]int, error)
}

// ErrNotReady is returned by Ready when the runtime answers but the model
// is not loaded.
var ErrNotReady = errors.New("model not ready")

// StatusError is a non-2xx answer from the runtime.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("runtime returned %d %s", e.Code, http.StatusText(e.Code))
	}
	return fmt.Sprintf("runtime returned %d: %s", e.Code, e.Message)
}

// Temporary reports whether the failure is on the runtime side.
func (e *StatusError) Temporary() bool {
	return e.Code >= 500 || e.Code == http.StatusTooManyRequests
}
