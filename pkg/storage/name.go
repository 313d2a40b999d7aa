package storage

import (
	"fmt"
	"strings"
)

// ValidateName checks that name is a flat logical file name: non-empty, no
// path separator, no NUL byte, and not "." or "..".
//
// Names are flat so that every blob sits directly under the container root,
// where the usage scan sees it.
func ValidateName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("empty name: %w", ErrInvalidName)
	case name == "." || name == "..":
		return fmt.Errorf("%q: %w", name, ErrInvalidName)
	case strings.ContainsAny(name, "/\\\x00"):
		return fmt.Errorf("%q contains a separator: %w", name, ErrInvalidName)
	}
	return nil
}
