package store

import (
	"context"
	"fmt"

	"github.com/roach88/babel/internal/ir"
)

// Cache event kinds.
const (
	CacheRefresh    = "refresh"
	CacheInvalidate = "invalidate"
)

// CacheEvent is one recorded cache call.
type CacheEvent struct {
	Seq     int64                `json:"seq"`
	Kind    string               `json:"kind"`
	Path    string               `json:"path,omitempty"`
	Options ir.InvalidateOptions `json:"options"`
}

// Refresh records a full cache refresh.
func (s *Store) Refresh(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `INSERT INTO cache_events (kind) VALUES (?)`, CacheRefresh); err != nil {
		return fmt.Errorf("refresh cache: %w", err)
	}
	return nil
}

// InvalidatePath records a path-scoped invalidation.
func (s *Store) InvalidatePath(ctx context.Context, path string, opts ir.InvalidateOptions) error {
	optsJSON, err := marshalCacheOptions(opts)
	if err != nil {
		return fmt.Errorf("invalidate %s: %w", path, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO cache_events (kind, path, options) VALUES (?, ?, ?)
	`, CacheInvalidate, path, optsJSON)
	if err != nil {
		return fmt.Errorf("invalidate %s: %w", path, err)
	}
	return nil
}

// CacheEvents returns recorded cache calls in order.
func (s *Store) CacheEvents(ctx context.Context) ([]CacheEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, kind, path, options FROM cache_events ORDER BY seq ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("read cache events: %w", err)
	}
	defer rows.Close()

	var out []CacheEvent
	for rows.Next() {
		var (
			ev       CacheEvent
			optsJSON string
		)
		if err := rows.Scan(&ev.Seq, &ev.Kind, &ev.Path, &optsJSON); err != nil {
			return nil, fmt.Errorf("read cache events: %w", err)
		}
		if ev.Kind == CacheInvalidate {
			opts, err := unmarshalCacheOptions(optsJSON)
			if err != nil {
				return nil, fmt.Errorf("read cache event %d: %w", ev.Seq, err)
			}
			ev.Options = opts
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read cache events: %w", err)
	}
	return out, nil
}
