package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/babel/internal/ir"
)

// Links returns the decoded link set of a replica. A missing or empty link
// slot is an empty set; the slot is not initialized.
func (e *Engine) Links(ctx context.Context, id int64) (ir.LinkSet, error) {
	raw, err := e.host.SlotValue(ctx, e.linkSlot, id)
	if err != nil {
		return nil, fmt.Errorf("read links of replica %d: %w", id, err)
	}
	ls, err := ir.DecodeLinks(raw)
	if err != nil {
		return nil, NewMalformedLinkError(id, err)
	}
	return ls, nil
}

// SetLinks writes one encoded copy of set to every replica in ids, so that
// every member of a group carries the identical link table. A nil set is
// not applicable and writes nothing.
//
// A failed write is logged and the remaining ids are still written; the
// failures are joined into the returned error. The cache is refreshed once
// when invalidate is set and ids is non-empty.
func (e *Engine) SetLinks(ctx context.Context, ids []int64, set ir.LinkSet, invalidate bool) error {
	encoded, ok := ir.EncodeLinks(set)
	if !ok {
		return nil
	}

	var errs []error
	for _, id := range ids {
		if err := e.host.SetSlotValue(ctx, id, e.linkSlot, encoded); err != nil {
			pe := NewPersistenceError(id, err)
			e.logger.Error("link write failed", "replica", id, "error", pe)
			errs = append(errs, pe)
		}
	}

	if invalidate && len(ids) > 0 {
		e.refresh(ctx, "set_links")
	}
	return errors.Join(errs...)
}

// InitLinks resets a replica to the self-referencing link set
// {namespace: id} and persists it without a cache refresh.
func (e *Engine) InitLinks(ctx context.Context, id int64) (ir.LinkSet, error) {
	r, err := e.host.LoadReplica(ctx, id)
	if err != nil {
		return nil, NewNotFoundError(id, err)
	}
	ls := ir.LinkSet{r.Namespace: r.ID}
	if err := e.SetLinks(ctx, []int64{r.ID}, ls, false); err != nil {
		return nil, err
	}
	e.logger.Debug("links initialized", "replica", id, "context", r.Namespace)
	return ls, nil
}

// LinkedReplicas returns the link set of a replica, initializing it to a
// self link on first access.
func (e *Engine) LinkedReplicas(ctx context.Context, id int64) (ir.LinkSet, error) {
	ls, err := e.Links(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(ls) > 0 {
		return ls, nil
	}
	return e.InitLinks(ctx, id)
}

// Link merges target into the group of source and writes the union to
// every member. Linking a replica that is already in the group is a no-op.
//
// Rejected with NAMESPACE_CONFLICT when the group already holds another
// replica for the target's context, or when target already belongs to a
// group of its own. Rejected with NAMESPACE_NOT_IN_GROUP when the target's
// context is not configured as a sibling of the source's.
func (e *Engine) Link(ctx context.Context, sourceID, targetID int64) (ir.LinkSet, error) {
	source, err := e.host.LoadReplica(ctx, sourceID)
	if err != nil {
		return nil, NewNotFoundError(sourceID, err)
	}
	target, err := e.host.LoadReplica(ctx, targetID)
	if err != nil {
		return nil, NewNotFoundError(targetID, err)
	}

	group, err := e.LinkedReplicas(ctx, sourceID)
	if err != nil {
		return nil, err
	}
	if existing, ok := group[target.Namespace]; ok {
		if existing == targetID {
			return group, nil
		}
		return nil, &EngineError{
			Code:      ErrCodeNamespaceConflict,
			Message:   fmt.Sprintf("group of replica %d already links replica %d", sourceID, existing),
			ReplicaID: targetID,
			Namespace: target.Namespace,
		}
	}
	if !e.groups.InGroup(source.Namespace, target.Namespace) {
		return nil, &EngineError{
			Code:      ErrCodeNamespaceNotInGroup,
			Message:   fmt.Sprintf("context is not a sibling of %s", source.Namespace),
			ReplicaID: targetID,
			Namespace: target.Namespace,
		}
	}

	targetGroup, err := e.Links(ctx, targetID)
	if err != nil {
		return nil, err
	}
	if len(targetGroup.Without(target.Namespace)) > 0 {
		return nil, &EngineError{
			Code:      ErrCodeNamespaceConflict,
			Message:   "replica is already linked to another group",
			ReplicaID: targetID,
			Namespace: target.Namespace,
		}
	}

	union := group.Clone()
	union[target.Namespace] = targetID
	if err := e.SetLinks(ctx, union.IDs(), union, true); err != nil {
		return union, err
	}

	e.logger.Info("replica linked", "source", sourceID, "target", targetID, "context", target.Namespace)
	return union, nil
}

// Unlink removes a replica from its group. The remaining members are
// rewritten without it and the replica is reset to a self link. The cache
// is refreshed once.
func (e *Engine) Unlink(ctx context.Context, id int64) error {
	r, err := e.host.LoadReplica(ctx, id)
	if err != nil {
		return NewNotFoundError(id, err)
	}
	group, err := e.Links(ctx, id)
	if err != nil {
		return err
	}

	remaining := group.Clone()
	for ns, linked := range group {
		if linked == id {
			delete(remaining, ns)
		}
	}

	var errs []error
	if len(remaining) > 0 {
		errs = append(errs, e.SetLinks(ctx, remaining.IDs(), remaining, false))
	}
	errs = append(errs, e.SetLinks(ctx, []int64{id}, ir.LinkSet{r.Namespace: id}, false))
	e.refresh(ctx, "unlink")

	e.logger.Info("replica unlinked", "replica", id, "remaining", len(remaining))
	return errors.Join(errs...)
}
