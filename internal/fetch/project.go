package fetch

import (
	"context"
	"path/filepath"

	"github.com/roach88/pipec/internal/ir"
)

// Projects reads project includes from a directory of mirrored projects
// laid out as <Root>/<project path>/<ref>/<file>. An include without ref
// reads the HEAD directory.
//
// Local includes carrying a project (a local include found inside a
// project file) are served from the same tree.
type Projects struct {
	Root    string
	MaxSize int64
}

// NewProjects returns a Projects fetcher rooted at root.
func NewProjects(root string) *Projects {
	return &Projects{Root: root}
}

// Fetch implements Fetcher.
func (p *Projects) Fetch(ctx context.Context, src ir.IncludeSource) (*ir.Fetched, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if src.Project == "" || (src.Kind != ir.SourceProject && src.Kind != ir.SourceLocal) {
		return nil, wrap("fetch", src, ErrUnsupported)
	}

	project, err := cleanRelative(src.Project)
	if err != nil {
		return nil, wrap("fetch", src, err)
	}
	ref := src.Ref
	if ref == "" {
		ref = "HEAD"
	}
	ref, err = cleanRelative(ref)
	if err != nil {
		return nil, wrap("fetch", src, err)
	}

	root := filepath.Join(p.Root, filepath.FromSlash(project), filepath.FromSlash(ref))
	f, err := readBelow(root, src.Location, p.MaxSize)
	if err != nil {
		return nil, wrap("fetch", src, err)
	}
	return f, nil
}
