package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/pipec/internal/ir"
)

// Get returns the cached text of src. ok is false when there is no fresh
// entry.
func (s *Store) Get(ctx context.Context, src ir.IncludeSource) (f *ir.Fetched, ok bool, err error) {
	var (
		name, identity string
		body           []byte
		size           int
	)
	err = s.db.QueryRowContext(ctx, `
		SELECT name, identity, body, size
		FROM fetch_cache
		WHERE key = ? AND expires_at > ?
	`, src.Key(), s.now().UnixMilli()).Scan(&name, &identity, &body, &size)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get %s: %w", src, err)
	}

	content, err := decompress(body, size)
	if err != nil {
		return nil, false, fmt.Errorf("get %s: %w", src, err)
	}
	return &ir.Fetched{Name: name, Content: content, Identity: identity}, true, nil
}

// Entry describes one cached include.
type Entry struct {
	Key       string    `json:"key"`
	Kind      string    `json:"kind"`
	Location  string    `json:"location"`
	Identity  string    `json:"identity"`
	Size      int       `json:"size"`
	FetchedAt time.Time `json:"fetched_at"`
	ExpiresAt time.Time `json:"expires_at"`
	Expired   bool      `json:"expired"`
}

// List returns every entry, fresh or expired, ordered by key.
//
// Returns an empty slice (not nil) when the cache is empty.
func (s *Store) List(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT key, kind, location, identity, size, fetched_at, expires_at
		FROM fetch_cache
		ORDER BY key COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query cache: %w", err)
	}
	defer rows.Close()

	now := s.now()
	entries := []Entry{}
	for rows.Next() {
		var (
			e                  Entry
			fetched, expiresAt int64
		)
		if err := rows.Scan(&e.Key, &e.Kind, &e.Location, &e.Identity, &e.Size, &fetched, &expiresAt); err != nil {
			return nil, fmt.Errorf("scan cache entry: %w", err)
		}
		e.FetchedAt = time.UnixMilli(fetched).UTC()
		e.ExpiresAt = time.UnixMilli(expiresAt).UTC()
		e.Expired = !e.ExpiresAt.After(now)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cache: %w", err)
	}
	return entries, nil
}
