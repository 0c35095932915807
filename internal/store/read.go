package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/babel/internal/ir"
)

const replicaColumns = `id, context_key, parent, menuindex, isfolder, fields`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReplica(row rowScanner) (*ir.Replica, error) {
	var (
		r          ir.Replica
		isFolder   int
		fieldsJSON string
	)
	if err := row.Scan(&r.ID, &r.Namespace, &r.Parent, &r.Order, &isFolder, &fieldsJSON); err != nil {
		return nil, err
	}
	r.IsFolder = isFolder != 0

	fields, err := unmarshalFields(fieldsJSON)
	if err != nil {
		return nil, fmt.Errorf("replica %d: %w", r.ID, err)
	}
	r.Fields = fields
	return &r, nil
}

// LoadReplica reads one replica by id. A missing replica returns an error
// wrapping ir.ErrNotFound.
func (s *Store) LoadReplica(ctx context.Context, id int64) (*ir.Replica, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+replicaColumns+` FROM replicas WHERE id = ?`, id)
	r, err := scanReplica(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("load replica %d: %w", id, ir.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load replica %d: %w", id, err)
	}
	return r, nil
}

// ListReplicas returns every replica ordered by id. An empty namespace
// lists all contexts.
func (s *Store) ListReplicas(ctx context.Context, namespace string) ([]*ir.Replica, error) {
	query := `SELECT ` + replicaColumns + ` FROM replicas`
	var args []any
	if namespace != "" {
		query += ` WHERE context_key = ?`
		args = append(args, namespace)
	}
	query += ` ORDER BY id ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list replicas: %w", err)
	}
	defer rows.Close()

	var out []*ir.Replica
	for rows.Next() {
		r, err := scanReplica(rows)
		if err != nil {
			return nil, fmt.Errorf("list replicas: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list replicas: %w", err)
	}
	return out, nil
}

// ChildCount returns the number of replicas whose parent is id.
func (s *Store) ChildCount(ctx context.Context, id int64) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM replicas WHERE parent = ?`, id).Scan(&n); err != nil {
		return 0, fmt.Errorf("count children of %d: %w", id, err)
	}
	return n, nil
}

// SlotValue returns one slot value, or "" if it was never set.
func (s *Store) SlotValue(ctx context.Context, slotID string, replicaID int64) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `
		SELECT value FROM slot_values WHERE replica_id = ? AND slot_id = ?
	`, replicaID, slotID).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read slot %s of replica %d: %w", slotID, replicaID, err)
	}
	return value, nil
}

// SlotValues returns every slot value of a replica keyed by slot id.
func (s *Store) SlotValues(ctx context.Context, replicaID int64) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT slot_id, value FROM slot_values
		WHERE replica_id = ?
		ORDER BY slot_id ASC
	`, replicaID)
	if err != nil {
		return nil, fmt.Errorf("read slots of replica %d: %w", replicaID, err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var slot, value string
		if err := rows.Scan(&slot, &value); err != nil {
			return nil, fmt.Errorf("read slots of replica %d: %w", replicaID, err)
		}
		out[slot] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read slots of replica %d: %w", replicaID, err)
	}
	return out, nil
}

// FindSlotValues returns the values of slotID containing pattern as a
// substring, ordered by replica id. The match is a coarse pre-filter;
// callers decode and check values exactly.
func (s *Store) FindSlotValues(ctx context.Context, slotID, pattern string) ([]ir.SlotMatch, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT replica_id, value FROM slot_values
		WHERE slot_id = ? AND value LIKE ? ESCAPE '\'
		ORDER BY replica_id ASC
	`, slotID, "%"+escapeLike(pattern)+"%")
	if err != nil {
		return nil, fmt.Errorf("search slot %s: %w", slotID, err)
	}
	defer rows.Close()

	var out []ir.SlotMatch
	for rows.Next() {
		var m ir.SlotMatch
		if err := rows.Scan(&m.ReplicaID, &m.Value); err != nil {
			return nil, fmt.Errorf("search slot %s: %w", slotID, err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("search slot %s: %w", slotID, err)
	}
	return out, nil
}

// escapeLike escapes LIKE metacharacters so pattern matches literally.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
