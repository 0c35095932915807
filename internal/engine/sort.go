package engine

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/roach88/babel/internal/ir"
)

var (
	// ErrBatchConsumed is returned when a sort batch is applied twice.
	ErrBatchConsumed = errors.New("sort batch already applied")

	// ErrNoPendingSort is returned by AfterSort without a preceding BeforeSort.
	ErrNoPendingSort = errors.New("no pending sort batch")
)

// SortChanges records which positional attributes a reorder changed.
type SortChanges struct {
	Parent bool `json:"parent"`
	Order  bool `json:"order"`
}

// SortRecord is the captured intent for one reordered replica.
type SortRecord struct {
	ID        int64       `json:"id"`
	Parent    int64       `json:"parent"`
	Order     int64       `json:"order"`
	Namespace string      `json:"context"`
	Linked    ir.LinkSet  `json:"linked"`
	Changes   SortChanges `json:"changes"`
}

// SortBatch is the snapshot taken before the host applies a reorder. It can
// be applied exactly once.
type SortBatch struct {
	Token      string       `json:"token"`
	Generation int64        `json:"generation"`
	Records    []SortRecord `json:"records"`

	consumed atomic.Bool
}

// Consumed reports whether the batch has been applied.
func (b *SortBatch) Consumed() bool {
	return b.consumed.Load()
}

// Capture snapshots the reorder intent of nodes before the host applies it.
//
// Nodes missing a field, nodes that fail to load, nodes whose position did
// not change and nodes without linked siblings are skipped. A node moved to
// another context is rejected with a logged UNSUPPORTED_CROSS_NAMESPACE_MOVE.
// Once a node is captured, it and all of its linked replicas are handled for
// the rest of the batch, so a sibling listed later is not captured again.
func (e *Engine) Capture(ctx context.Context, nodes []ir.NodeDescriptor) (*SortBatch, error) {
	batch := &SortBatch{
		Token:      e.tokens.Generate(),
		Generation: e.generations.Next(),
	}
	handled := make(map[int64]bool)

	for _, node := range nodes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !node.Complete() {
			e.logger.Debug("sort node incomplete, skipping", "batch", batch.Token)
			continue
		}

		id := *node.ID
		if handled[id] {
			continue
		}

		current, err := e.host.LoadReplica(ctx, id)
		if err != nil {
			e.logger.Error("sorted replica not loaded",
				"batch", batch.Token,
				"replica", id,
				"error", NewNotFoundError(id, err),
			)
			continue
		}

		ns := ir.NormalizeNamespace(*node.Context)
		changes := SortChanges{
			Parent: current.Parent != *node.Parent,
			Order:  current.Order != *node.Order,
		}
		if current.Namespace != ns {
			e.logger.Error("sort skipped",
				"batch", batch.Token,
				"error", NewCrossNamespaceMoveError(id, current.Namespace, ns),
			)
			continue
		}
		if !changes.Parent && !changes.Order {
			continue
		}

		linked, err := e.Links(ctx, id)
		if err != nil {
			e.logger.Error("sorted replica links not read",
				"batch", batch.Token,
				"replica", id,
				"error", err,
			)
			continue
		}
		if len(linked.Without(ns)) == 0 {
			continue
		}

		batch.Records = append(batch.Records, SortRecord{
			ID:        id,
			Parent:    *node.Parent,
			Order:     *node.Order,
			Namespace: ns,
			Linked:    linked,
			Changes:   changes,
		})
		handled[id] = true
		for _, linkedID := range linked {
			handled[linkedID] = true
		}
	}

	e.logger.Debug("sort captured",
		"batch", batch.Token,
		"generation", batch.Generation,
		"records", len(batch.Records),
	)
	return batch, nil
}

// Apply re-applies a captured reorder to the linked siblings of every
// record, in capture order. The source context's own entry is left alone;
// the host has already moved it.
//
// A changed parent is resolved into each sibling's context; a changed order
// is copied verbatim. A sibling that fails to load or save is logged and
// skipped without undoing earlier siblings. The cache is refreshed once if
// the batch held any record.
func (e *Engine) Apply(ctx context.Context, batch *SortBatch) error {
	if batch == nil {
		return ErrNoPendingSort
	}
	if !batch.consumed.CompareAndSwap(false, true) {
		return ErrBatchConsumed
	}

	for _, rec := range batch.Records {
		for _, ns := range rec.Linked.Namespaces() {
			linkedID := rec.Linked[ns]
			if linkedID == rec.ID || ns == rec.Namespace {
				continue
			}
			e.applyToSibling(ctx, batch.Token, rec, ns, linkedID)
		}
	}

	if len(batch.Records) > 0 {
		e.refresh(ctx, "sort")
	}
	return nil
}

func (e *Engine) applyToSibling(ctx context.Context, token string, rec SortRecord, ns string, id int64) {
	sib, err := e.host.LoadReplica(ctx, id)
	if err != nil {
		e.logger.Error("linked replica not loaded",
			"batch", token,
			"source", rec.ID,
			"replica", id,
			"error", NewNotFoundError(id, err),
		)
		return
	}

	oldParent := sib.Parent
	if rec.Changes.Parent {
		lp, err := e.ResolveLinkedParent(ctx, rec.Parent, ns)
		if err != nil {
			e.logger.Error("parent not resolved",
				"batch", token,
				"parent", rec.Parent,
				"replica", id,
				"error", err,
			)
		} else {
			sib.Parent = lp.Target()
			e.logger.Info("linked replica reparented", "replica", id, "parent", sib.Parent, "kind", lp.Kind)
		}
	}
	if rec.Changes.Order {
		sib.Order = rec.Order
		e.logger.Info("linked replica reordered", "replica", id, "order", rec.Order)
	}

	if err := e.host.SaveReplica(ctx, sib); err != nil {
		e.logger.Error("linked replica not saved",
			"batch", token,
			"replica", id,
			"error", NewPersistenceError(id, err),
		)
		return
	}

	if sib.Parent != oldParent {
		for _, parent := range []int64{oldParent, sib.Parent} {
			if err := e.RefreshFolderFlag(ctx, parent); err != nil {
				e.logger.Warn("folder flag not refreshed", "replica", parent, "error", err)
			}
		}
	}
}

// BeforeSort is the host's "about to reorder" hook. It captures nodes and
// holds the batch until AfterSort. A batch still pending from an earlier
// BeforeSort is replaced.
func (e *Engine) BeforeSort(ctx context.Context, nodes []ir.NodeDescriptor) error {
	batch, err := e.Capture(ctx, nodes)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pending != nil {
		e.logger.Warn("replacing unapplied sort batch",
			"previous", e.pending.Token,
			"previous_generation", e.pending.Generation,
			"batch", batch.Token,
		)
	}
	e.pending = batch
	return nil
}

// AfterSort is the host's "reorder applied" hook. It applies and clears the
// batch captured by BeforeSort.
func (e *Engine) AfterSort(ctx context.Context) error {
	e.mu.Lock()
	batch := e.pending
	e.pending = nil
	e.mu.Unlock()

	if batch == nil {
		return ErrNoPendingSort
	}
	return e.Apply(ctx, batch)
}

// PendingSort returns the batch held between BeforeSort and AfterSort, or
// nil.
func (e *Engine) PendingSort() *SortBatch {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pending
}
