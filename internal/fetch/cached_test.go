package fetch

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pipec/internal/ir"
	"github.com/roach88/pipec/internal/store"
	"github.com/roach88/pipec/internal/testutil"
)

func openCache(t *testing.T, clock *testutil.DeterministicClock) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "cache.db"), store.WithNow(clock.Now))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestCached_ServesFromCache(t *testing.T) {
	clock := testutil.NewDeterministicClock(testutil.Epoch)
	src := remote("https://example.com/shared.yml")
	mem := NewMemory().Add(src, "shared: {script: x}")
	c := NewCached(mem, openCache(t, clock), time.Minute, nil)
	ctx := context.Background()

	first, err := c.Fetch(ctx, src)
	require.NoError(t, err)
	second, err := c.Fetch(ctx, src)
	require.NoError(t, err)

	assert.Equal(t, 1, mem.Calls(src))
	assert.Equal(t, first.Identity, second.Identity)
	assert.Equal(t, first.Content, second.Content)
	assert.Equal(t, "shared.yml", second.Name)

	// Expired entries are fetched again.
	clock.Advance(2 * time.Minute)
	_, err = c.Fetch(ctx, src)
	require.NoError(t, err)
	assert.Equal(t, 2, mem.Calls(src))
}

func TestCached_LocalBypassesCache(t *testing.T) {
	clock := testutil.NewDeterministicClock(testutil.Epoch)
	mem := NewMemory().AddLocal("a.yml", "a: {script: x}")
	c := NewCached(mem, openCache(t, clock), time.Minute, nil)

	for i := 0; i < 3; i++ {
		_, err := c.Fetch(context.Background(), local("a.yml"))
		require.NoError(t, err)
	}
	assert.Equal(t, 3, mem.Calls(local("a.yml")))
}

type failingCache struct{}

func (failingCache) Get(context.Context, ir.IncludeSource) (*ir.Fetched, bool, error) {
	return nil, false, errors.New("disk on fire")
}

func (failingCache) Put(context.Context, ir.IncludeSource, *ir.Fetched, time.Duration) error {
	return errors.New("disk on fire")
}

func TestCached_IgnoresCacheFailures(t *testing.T) {
	src := ir.IncludeSource{Kind: ir.SourceTemplate, Location: "Go.yml"}
	mem := NewMemory().Add(src, "go: {script: x}")
	c := NewCached(mem, failingCache{}, 0, nil)

	f, err := c.Fetch(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, "go: {script: x}", string(f.Content))
}

func TestCached_PropagatesFetchErrors(t *testing.T) {
	clock := testutil.NewDeterministicClock(testutil.Epoch)
	c := NewCached(NewMemory(), openCache(t, clock), time.Minute, nil)

	_, err := c.Fetch(context.Background(), remote("https://example.com/missing.yml"))
	assert.ErrorIs(t, err, ErrNotFound)
}
