package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/babel/internal/ir"
)

// SaveReplica persists a replica. A zero ID inserts a new row and assigns
// the generated id back onto r; any other ID updates the existing row and
// fails with ir.ErrNotFound if there is none.
func (s *Store) SaveReplica(ctx context.Context, r *ir.Replica) error {
	if r == nil {
		return fmt.Errorf("save replica: nil replica")
	}

	fieldsJSON, err := marshalFields(r.Fields)
	if err != nil {
		return fmt.Errorf("save replica %d: %w", r.ID, err)
	}

	if r.ID == 0 {
		res, err := s.db.ExecContext(ctx, `
			INSERT INTO replicas (context_key, parent, menuindex, isfolder, fields)
			VALUES (?, ?, ?, ?, ?)
		`, r.Namespace, r.Parent, r.Order, boolToInt(r.IsFolder), fieldsJSON)
		if err != nil {
			return fmt.Errorf("insert replica: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("insert replica: %w", err)
		}
		r.ID = id
		return nil
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE replicas
		SET context_key = ?, parent = ?, menuindex = ?, isfolder = ?, fields = ?
		WHERE id = ?
	`, r.Namespace, r.Parent, r.Order, boolToInt(r.IsFolder), fieldsJSON, r.ID)
	if err != nil {
		return fmt.Errorf("save replica %d: %w", r.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("save replica %d: %w", r.ID, err)
	}
	if n == 0 {
		return fmt.Errorf("save replica %d: %w", r.ID, ir.ErrNotFound)
	}
	return nil
}

// InsertReplica inserts a replica with an explicit id. Used for seeding
// fixtures where ids are part of the data. Fails if the id is taken.
func (s *Store) InsertReplica(ctx context.Context, r *ir.Replica) error {
	if r == nil || r.ID <= 0 {
		return fmt.Errorf("insert replica: explicit positive id required")
	}

	fieldsJSON, err := marshalFields(r.Fields)
	if err != nil {
		return fmt.Errorf("insert replica %d: %w", r.ID, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO replicas (id, context_key, parent, menuindex, isfolder, fields)
		VALUES (?, ?, ?, ?, ?, ?)
	`, r.ID, r.Namespace, r.Parent, r.Order, boolToInt(r.IsFolder), fieldsJSON)
	if err != nil {
		return fmt.Errorf("insert replica %d: %w", r.ID, err)
	}
	return nil
}

// DeleteReplica removes a replica and all of its slot values in one
// transaction. Deleting a missing replica returns ir.ErrNotFound.
func (s *Store) DeleteReplica(ctx context.Context, id int64) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("delete replica %d: %w", id, err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, `DELETE FROM replicas WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete replica %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete replica %d: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("delete replica %d: %w", id, ir.ErrNotFound)
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM slot_values WHERE replica_id = ?`, id); err != nil {
		return fmt.Errorf("delete replica %d slots: %w", id, err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("delete replica %d: %w", id, err)
	}
	return nil
}

// SetSlotValue writes a slot value immediately, replacing any prior value.
func (s *Store) SetSlotValue(ctx context.Context, replicaID int64, slotID, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO slot_values (replica_id, slot_id, value)
		VALUES (?, ?, ?)
		ON CONFLICT(replica_id, slot_id) DO UPDATE SET value = excluded.value
	`, replicaID, slotID, value)
	if err != nil {
		return fmt.Errorf("set slot %s on replica %d: %w", slotID, replicaID, err)
	}
	return nil
}

// SetOption writes a host setting, replacing any prior value.
func (s *Store) SetOption(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings (key, value)
		VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("set option %s: %w", key, err)
	}
	return nil
}

// Option reads a host setting, returning def when the key is unset.
func (s *Store) Option(ctx context.Context, key, def string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return def, nil
	}
	if err != nil {
		return "", fmt.Errorf("read option %s: %w", key, err)
	}
	return value, nil
}
