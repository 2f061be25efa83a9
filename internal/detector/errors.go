package detector

import (
	"errors"
	"fmt"
)

// Kind classifies service errors so callers can map them to a response
// without matching on messages.
type Kind int

const (
	KindUnexpected Kind = iota
	KindValidation
	KindUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindUnavailable:
		return "unavailable"
	default:
		return "unexpected"
	}
}

// Error is the error type returned by Service methods.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Cause returns the wrapped error's message without the operation prefix.
func (e *Error) Cause() string { return e.Err.Error() }

// KindOf reports the Kind of the outermost *Error in err's chain, or
// KindUnexpected when there is none.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindUnexpected
}

var ErrEmptyText = errors.New("text is empty after normalization")

func validationError(op string, err error) error {
	return &Error{Kind: KindValidation, Op: op, Err: err}
}

func unavailableError(op string, err error) error {
	return &Error{Kind: KindUnavailable, Op: op, Err: err}
}

func unexpectedError(op string, err error) error {
	return &Error{Kind: KindUnexpected, Op: op, Err: err}
}
