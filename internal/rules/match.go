package rules

import (
	"errors"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// MaxExistsComparisons bounds the pattern x file work of one exists
// clause. Beyond it the clause is treated as true.
const MaxExistsComparisons = 10000

// ErrInvalidPattern is returned when a glob cannot be compiled.
var ErrInvalidPattern = errors.New("invalid glob pattern")

// PatternError wraps pattern-related errors with context.
type PatternError struct {
	Pattern string
	Err     error
}

func (e *PatternError) Error() string {
	return "pattern " + e.Pattern + ": " + e.Err.Error()
}

func (e *PatternError) Unwrap() error {
	return e.Err
}

// normalizePattern strips a leading "./" or "/" so patterns match
// repository-relative paths.
func normalizePattern(p string) string {
	p = strings.TrimPrefix(p, "./")
	return strings.TrimPrefix(p, "/")
}

// ValidatePattern checks a glob. Patterns holding variable references are
// checked after expansion instead.
func ValidatePattern(p string) error {
	if strings.Contains(p, "$") {
		return nil
	}
	if !doublestar.ValidatePattern(normalizePattern(p)) {
		return &PatternError{Pattern: p, Err: ErrInvalidPattern}
	}
	return nil
}

// matchAny reports whether any path matches any pattern.
func matchAny(patterns, paths []string) (bool, error) {
	for _, raw := range patterns {
		p := normalizePattern(raw)
		if !doublestar.ValidatePattern(p) {
			return false, &PatternError{Pattern: raw, Err: ErrInvalidPattern}
		}
		for _, path := range paths {
			if doublestar.MatchUnvalidated(p, strings.TrimPrefix(path, "/")) {
				return true, nil
			}
		}
	}
	return false, nil
}
