package fetch

import (
	"context"
	"path"
	"sync"

	"github.com/roach88/pipec/internal/ir"
)

// Memory serves include text held in memory, keyed by source key
// (kind:identity). It is safe for concurrent use.
type Memory struct {
	mu    sync.RWMutex
	files map[string][]byte
	calls map[string]int
}

// NewMemory returns an empty Memory fetcher.
func NewMemory() *Memory {
	return &Memory{files: make(map[string][]byte), calls: make(map[string]int)}
}

// Add registers the text of src.
func (m *Memory) Add(src ir.IncludeSource, content string) *Memory {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[src.Key()] = []byte(content)
	return m
}

// AddLocal registers a local file.
func (m *Memory) AddLocal(location, content string) *Memory {
	return m.Add(ir.IncludeSource{Kind: ir.SourceLocal, Location: location}, content)
}

// Fetch implements Fetcher.
func (m *Memory) Fetch(ctx context.Context, src ir.IncludeSource) (*ir.Fetched, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[src.Key()]++
	content, ok := m.files[src.Key()]
	if !ok {
		return nil, wrap("fetch", src, ErrNotFound)
	}
	return fetched(path.Base(src.Location), append([]byte(nil), content...)), nil
}

// Calls returns how many times src was fetched.
func (m *Memory) Calls(src ir.IncludeSource) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.calls[src.Key()]
}
