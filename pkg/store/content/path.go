package content

import (
	"fmt"
	"path"
	"strings"
)

// CleanPath normalizes an entry path and rejects anything that could resolve
// outside the container root: empty paths, absolute paths, backslashes and
// ".." segments.
func CleanPath(p string) (string, error) {
	if p == "" {
		return "", fmt.Errorf("empty path: %w", ErrInvalidPath)
	}
	if strings.HasPrefix(p, "/") || strings.Contains(p, "\\") {
		return "", fmt.Errorf("path %q: %w", p, ErrInvalidPath)
	}

	for _, seg := range strings.Split(p, "/") {
		if seg == ".." {
			return "", fmt.Errorf("path %q: %w", p, ErrInvalidPath)
		}
	}

	cleaned := path.Clean(p)
	if cleaned == "." {
		return "", fmt.Errorf("path %q: %w", p, ErrInvalidPath)
	}

	return cleaned, nil
}
