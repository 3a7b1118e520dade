package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/roach88/pipec/internal/ir"
)

// Local reads local includes from a repository checkout.
type Local struct {
	// Root is the repository root. Locations are resolved below it; a
	// leading slash means the root itself.
	Root string

	// MaxSize limits the file size. Zero means DefaultMaxSize.
	MaxSize int64
}

// NewLocal returns a Local fetcher rooted at root.
func NewLocal(root string) *Local {
	return &Local{Root: root}
}

// Fetch implements Fetcher.
func (l *Local) Fetch(ctx context.Context, src ir.IncludeSource) (*ir.Fetched, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if src.Kind != ir.SourceLocal {
		return nil, wrap("fetch", src, ErrUnsupported)
	}
	f, err := readBelow(l.Root, src.Location, l.MaxSize)
	if err != nil {
		return nil, wrap("fetch", src, err)
	}
	return f, nil
}

// cleanRelative turns an include location into a slash path relative to
// its root, rejecting any path that climbs out of it.
func cleanRelative(location string) (string, error) {
	if location == "" {
		return "", fmt.Errorf("empty path")
	}
	if strings.Contains(location, "\\") {
		return "", ErrForbiddenPath
	}
	rel := path.Clean("/" + strings.TrimPrefix(location, "/"))
	rel = strings.TrimPrefix(rel, "/")
	if rel == "" || rel == "." {
		return "", fmt.Errorf("%q is a directory", location)
	}
	// path.Clean of a rooted path never keeps "..", so compare against the
	// raw segments to catch escapes.
	depth := 0
	for _, seg := range strings.Split(strings.TrimPrefix(location, "/"), "/") {
		switch seg {
		case "", ".":
		case "..":
			depth--
			if depth < 0 {
				return "", ErrForbiddenPath
			}
		default:
			depth++
		}
	}
	return rel, nil
}

// readBelow reads root/location, enforcing maxSize.
func readBelow(root, location string, maxSize int64) (*ir.Fetched, error) {
	rel, err := cleanRelative(location)
	if err != nil {
		return nil, err
	}
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}

	full := filepath.Join(root, filepath.FromSlash(rel))
	file, err := os.Open(full)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%q is a directory", location)
	}
	if info.Size() > maxSize {
		return nil, ErrTooLarge
	}

	content, err := readLimited(file, maxSize)
	if err != nil {
		return nil, err
	}
	return fetched(path.Base(rel), content), nil
}

// readLimited reads at most max bytes, failing with ErrTooLarge when r
// holds more.
func readLimited(r io.Reader, max int64) ([]byte, error) {
	content, err := io.ReadAll(io.LimitReader(r, max+1))
	if err != nil {
		return nil, err
	}
	if int64(len(content)) > max {
		return nil, ErrTooLarge
	}
	return content, nil
}
