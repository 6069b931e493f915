package artifact

import (
	"errors"
	"strings"
)

var (
	// ErrNotFound is returned when the requested artifact or action does
	// not exist in the registry.
	ErrNotFound = errors.New("artifact not found")

	// ErrInvalidFilePath is returned when a file action's path fails
	// validation.
	ErrInvalidFilePath = errors.New("invalid file path")

	// ErrClosed is returned when appending an action to a closed artifact.
	ErrClosed = errors.New("artifact already closed")
)

// ValidateFilePath checks that a file action path is safe to materialize
// under the workspace root.
//
// Validation rules:
//   - Must not be empty
//   - Must be relative (no leading / or drive letter)
//   - Must not contain ".." segments (path traversal)
//   - Must not contain null bytes or backslashes
func ValidateFilePath(path string) error {
	if path == "" {
		return ErrInvalidFilePath
	}
	if strings.HasPrefix(path, "/") || strings.Contains(path, ":") {
		return ErrInvalidFilePath
	}
	if strings.ContainsAny(path, "\\\x00") {
		return ErrInvalidFilePath
	}
	for _, seg := range strings.Split(path, "/") {
		if seg == ".." {
			return ErrInvalidFilePath
		}
	}
	return nil
}
