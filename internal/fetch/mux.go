package fetch

import (
	"context"

	"github.com/roach88/pipec/internal/ir"
)

// Mux routes each source to the fetcher for its kind. Nil entries leave
// that kind unsupported.
type Mux struct {
	Local   Fetcher
	HTTP    Fetcher
	S3      Fetcher
	Project Fetcher
	Catalog Fetcher
}

// Fetch implements Fetcher.
func (m *Mux) Fetch(ctx context.Context, src ir.IncludeSource) (*ir.Fetched, error) {
	next := m.route(src)
	if next == nil {
		return nil, wrap("fetch", src, ErrUnsupported)
	}
	return next.Fetch(ctx, src)
}

func (m *Mux) route(src ir.IncludeSource) Fetcher {
	switch src.Kind {
	case ir.SourceLocal:
		if src.Project != "" {
			return m.Project
		}
		return m.Local
	case ir.SourceRemote:
		if IsS3URL(src.Location) {
			return m.S3
		}
		return m.HTTP
	case ir.SourceProject:
		return m.Project
	case ir.SourceTemplate, ir.SourceComponent:
		return m.Catalog
	}
	return nil
}
