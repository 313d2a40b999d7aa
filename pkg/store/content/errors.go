package content

import "errors"

// Standard content store errors. Implementations wrap them with context:
//
//	return fmt.Errorf("content %s: %w", path, content.ErrContentNotFound)
//
// and callers test with errors.Is.
var (
	// ErrContentNotFound indicates no blob is stored at the requested path.
	ErrContentNotFound = errors.New("content not found")

	// ErrStorageFull indicates the backend ran out of space during a write.
	ErrStorageFull = errors.New("storage full")

	// ErrInvalidPath indicates the path escapes the container root or is empty.
	ErrInvalidPath = errors.New("invalid content path")

	// ErrUnavailable indicates the storage backend could not be reached.
	ErrUnavailable = errors.New("storage unavailable")
)
