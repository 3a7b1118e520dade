package store

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/pipec/internal/ir"
)

// Put stores the fetched text of src, replacing any previous entry.
// A ttl of zero means DefaultTTL.
func (s *Store) Put(ctx context.Context, src ir.IncludeSource, f *ir.Fetched, ttl time.Duration) error {
	if f == nil {
		return fmt.Errorf("put %s: nil content", src)
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	now := s.now()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO fetch_cache
		(key, kind, location, name, identity, body, size, fetched_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			kind = excluded.kind,
			location = excluded.location,
			name = excluded.name,
			identity = excluded.identity,
			body = excluded.body,
			size = excluded.size,
			fetched_at = excluded.fetched_at,
			expires_at = excluded.expires_at
	`,
		src.Key(),
		string(src.Kind),
		src.Location,
		f.Name,
		f.Identity,
		compress(f.Content),
		len(f.Content),
		now.UnixMilli(),
		now.Add(ttl).UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("put %s: %w", src, err)
	}
	return nil
}
