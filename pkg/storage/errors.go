package storage

import (
	"errors"
	"fmt"
)

// Kind classifies coordinator failures. Adapters map kinds to status codes.
type Kind int

const (
	// KindIO is a content store failure: permission, disk full, missing blob
	// behind a live entry.
	KindIO Kind = iota + 1

	// KindIndex is an entry index failure: store unavailable or a uniqueness
	// violation.
	KindIndex

	// KindNotFound means the logical name is not in the index.
	KindNotFound

	// KindQuotaExceeded means admission rejected the upload.
	KindQuotaExceeded

	// KindPoolExhausted means no index session became free in time.
	KindPoolExhausted

	// KindInvalidName means the logical name is empty, contains a separator
	// or is "." / "..".
	KindInvalidName
)

func (k Kind) String() string {
	switch k {
	case KindIO:
		return "io"
	case KindIndex:
		return "index"
	case KindNotFound:
		return "not_found"
	case KindQuotaExceeded:
		return "quota_exceeded"
	case KindPoolExhausted:
		return "pool_exhausted"
	case KindInvalidName:
		return "invalid_name"
	default:
		return "unknown"
	}
}

var (
	// ErrNotFound is the underlying error of KindNotFound failures.
	ErrNotFound = errors.New("file not found")

	// ErrQuotaExceeded is the underlying error of KindQuotaExceeded failures.
	ErrQuotaExceeded = errors.New("exceeded container limit")

	// ErrInvalidName is the underlying error of KindInvalidName failures.
	ErrInvalidName = errors.New("invalid file name")
)

// Error is the structured failure every Coordinator operation returns.
type Error struct {
	Kind Kind
	Op   string
	Name string
	Err  error
}

func (e *Error) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s %q: %s: %v", e.Op, e.Name, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, op, name string, err error) *Error {
	return &Error{Kind: kind, Op: op, Name: name, Err: err}
}

// KindOf returns the Kind of err, or 0 if err is not a *Error.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return 0
}

// IsKind reports whether err is a *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
