package engine

import (
	"cmp"
	"context"
	"errors"
	"slices"

	"github.com/roach88/babel/internal/ir"
)

// Synchronize propagates the syncable attributes and configured slot values
// of a source replica to every replica linked to it.
//
// Only real differences are written. The parent attribute is never copied
// verbatim: each sibling receives the source parent resolved into its own
// context. Slot values are written to the slot store immediately; changed
// attributes are applied to the returned replicas, which the caller must
// persist (see SynchronizeAndSave).
//
// The result holds each changed sibling once, ordered by id. A sibling that
// fails to load is logged and skipped.
func (e *Engine) Synchronize(ctx context.Context, sourceID int64, syncFields, syncSlots bool) ([]*ir.Replica, error) {
	group, err := e.LinkedReplicas(ctx, sourceID)
	if err != nil {
		return nil, err
	}

	source, err := e.host.LoadReplica(ctx, sourceID)
	if err != nil {
		return nil, NewNotFoundError(sourceID, err)
	}

	siblings := e.loadSiblings(ctx, sourceID, group)
	if len(siblings) == 0 {
		return nil, nil
	}

	changed := make(map[int64]*ir.Replica)
	if syncFields {
		e.syncFieldValues(ctx, source, siblings, changed)
	}
	if syncSlots {
		e.syncSlotValues(ctx, source, siblings, changed)
	}

	out := make([]*ir.Replica, 0, len(changed))
	for _, r := range changed {
		out = append(out, r)
	}
	slices.SortFunc(out, func(a, b *ir.Replica) int {
		return cmp.Compare(a.ID, b.ID)
	})

	e.logger.Info("replicas synchronized",
		"source", sourceID,
		"siblings", len(siblings),
		"changed", len(out),
	)
	return out, nil
}

// SynchronizeAndSave runs Synchronize, persists every changed sibling and
// refreshes the cache once if anything changed.
//
// A sibling that fails to save is logged as a persistence failure; siblings
// already saved stay saved. The failures are joined into the returned
// error alongside the full changed set.
func (e *Engine) SynchronizeAndSave(ctx context.Context, sourceID int64, syncFields, syncSlots bool) ([]*ir.Replica, error) {
	changed, err := e.Synchronize(ctx, sourceID, syncFields, syncSlots)
	if err != nil {
		return nil, err
	}

	var errs []error
	for _, r := range changed {
		if err := e.host.SaveReplica(ctx, r); err != nil {
			pe := NewPersistenceError(r.ID, err)
			e.logger.Error("synchronized replica not saved", "replica", r.ID, "error", pe)
			errs = append(errs, pe)
		}
	}

	if len(changed) > 0 {
		e.refresh(ctx, "synchronize")
	}
	return changed, errors.Join(errs...)
}

// loadSiblings loads every member of group except the source, in context
// key order.
func (e *Engine) loadSiblings(ctx context.Context, sourceID int64, group ir.LinkSet) []*ir.Replica {
	var (
		out  []*ir.Replica
		seen = map[int64]bool{sourceID: true}
	)
	for _, ns := range group.Namespaces() {
		id := group[ns]
		if seen[id] {
			continue
		}
		seen[id] = true

		r, err := e.host.LoadReplica(ctx, id)
		if err != nil {
			e.logger.Error("linked replica not loaded",
				"source", sourceID,
				"replica", id,
				"context", ns,
				"error", NewNotFoundError(id, err),
			)
			continue
		}
		out = append(out, r)
	}
	return out
}

func (e *Engine) syncFieldValues(ctx context.Context, source *ir.Replica, siblings []*ir.Replica, changed map[int64]*ir.Replica) {
	for _, field := range e.syncFields {
		value := source.Get(field)
		for _, sib := range siblings {
			want := value
			if field == ir.FieldParent {
				lp, err := e.ResolveLinkedParent(ctx, source.Parent, sib.Namespace)
				if err != nil {
					e.logger.Error("parent not resolved",
						"parent", source.Parent,
						"replica", sib.ID,
						"context", sib.Namespace,
						"error", err,
					)
					continue
				}
				want = ir.Int(lp.Target())
			}

			if ir.Equal(want, sib.Get(field)) {
				continue
			}
			if !sib.Set(field, want) {
				e.logger.Warn("field value not applicable",
					"field", field,
					"replica", sib.ID,
				)
				continue
			}
			changed[sib.ID] = sib
		}
	}
}

func (e *Engine) syncSlotValues(ctx context.Context, source *ir.Replica, siblings []*ir.Replica, changed map[int64]*ir.Replica) {
	for _, slot := range e.syncSlots {
		value, err := e.host.SlotValue(ctx, slot, source.ID)
		if err != nil {
			e.logger.Error("slot not read", "slot", slot, "replica", source.ID, "error", err)
			continue
		}
		for _, sib := range siblings {
			current, err := e.host.SlotValue(ctx, slot, sib.ID)
			if err != nil {
				e.logger.Error("slot not read", "slot", slot, "replica", sib.ID, "error", err)
				continue
			}
			if current == value {
				continue
			}
			if err := e.host.SetSlotValue(ctx, sib.ID, slot, value); err != nil {
				e.logger.Error("slot not written",
					"slot", slot,
					"replica", sib.ID,
					"error", NewPersistenceError(sib.ID, err),
				)
				continue
			}
			changed[sib.ID] = sib
		}
	}
}
