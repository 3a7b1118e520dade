package fetch

import (
	"errors"
	"fmt"

	"github.com/roach88/pipec/internal/ir"
)

// Sentinel errors for fetch failures.
var (
	// ErrNotFound indicates the file does not exist.
	ErrNotFound = errors.New("file not found")

	// ErrTooLarge indicates the file exceeds the size limit.
	ErrTooLarge = errors.New("file too large")

	// ErrUnsupported indicates no fetcher handles the source.
	ErrUnsupported = errors.New("unsupported include source")

	// ErrForbiddenPath indicates the location escapes its root.
	ErrForbiddenPath = errors.New("path escapes root")

	// ErrAccessDenied indicates the remote refused the request.
	ErrAccessDenied = errors.New("access denied")
)

// Error wraps a fetch failure with the source that caused it.
type Error struct {
	Op       string
	Kind     ir.SourceKind
	Location string
	Err      error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s %s `%s`: %v", e.Op, e.Kind, e.Location, e.Err)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

func wrap(op string, src ir.IncludeSource, err error) error {
	var fe *Error
	if errors.As(err, &fe) {
		return err
	}
	return &Error{Op: op, Kind: src.Kind, Location: src.Identity(), Err: err}
}

// IsNotFound reports whether err indicates a missing file.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
