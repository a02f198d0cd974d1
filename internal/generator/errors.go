package generator

import (
	"errors"
	"fmt"
)

// ErrorKind classifies why a generation failed.
type ErrorKind int

const (
	// KindValidation means the input was rejected before any provider call.
	KindValidation ErrorKind = iota + 1
	// KindTransport covers network failures, timeouts and cancellations.
	KindTransport
	// KindProvider means the provider answered with an error or refused to produce text.
	KindProvider
	// KindSerialization means the provider response could not be interpreted.
	KindSerialization
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindTransport:
		return "transport"
	case KindProvider:
		return "provider"
	case KindSerialization:
		return "serialization"
	default:
		return "unknown"
	}
}

// Error is returned by Generator implementations. Its message is the underlying
// failure description so it can be surfaced to clients unchanged.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind.String() + " error"
	}
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of the first *Error in err's chain, or 0 if there is none.
func KindOf(err error) ErrorKind {
	var gerr *Error
	if errors.As(err, &gerr) {
		return gerr.Kind
	}
	return 0
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}

func newError(kind ErrorKind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func newErrorf(kind ErrorKind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}
