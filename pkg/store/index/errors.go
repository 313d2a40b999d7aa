package index

import "errors"

var (
	// ErrDuplicatePath indicates an entry with the same path already exists.
	ErrDuplicatePath = errors.New("duplicate entry path")

	// ErrDuplicateID indicates an entry with the same id already exists.
	ErrDuplicateID = errors.New("duplicate entry id")

	// ErrPoolExhausted indicates no session became free within the acquire
	// timeout.
	ErrPoolExhausted = errors.New("index pool exhausted")

	// ErrUnavailable indicates the backend could not be reached or failed
	// mid-operation.
	ErrUnavailable = errors.New("index unavailable")

	// ErrReleased indicates a session was used after Release.
	ErrReleased = errors.New("session released")
)
