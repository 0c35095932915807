package engine

import (
	"context"
	"fmt"

	"github.com/roach88/babel/internal/ir"
)

// Duplicate creates a copy of source in the target context.
//
// The copy keeps every attribute except the identity, audit and
// publication ones, which are reset as for a new replica: the title gets
// the translation pending marker, the creator and creation time are the
// engine's actor and clock, edit/delete/publish state is cleared. The
// parent is the source parent resolved into the target context.
//
// After the copy is saved, every slot value of the source except its link
// table is copied verbatim and the new parent is marked as a folder. The
// copy is not linked to anything; see Translate.
//
// Any failure before the copy is saved returns DUPLICATION_FAILED and
// leaves nothing behind.
func (e *Engine) Duplicate(ctx context.Context, source *ir.Replica, targetNS string) (*ir.Replica, error) {
	if source == nil {
		return nil, NewDuplicationError(0, targetNS, fmt.Errorf("nil source replica"))
	}
	ns := ir.NormalizeNamespace(targetNS)
	if ns == "" {
		return nil, NewDuplicationError(source.ID, targetNS, fmt.Errorf("empty target context"))
	}

	lp, err := e.ResolveLinkedParent(ctx, source.Parent, ns)
	if err != nil {
		return nil, NewDuplicationError(source.ID, ns, err)
	}

	dup := source.Clone()
	dup.ID = 0
	dup.Namespace = ns
	dup.Parent = lp.Target()

	title := ""
	if s, ok := source.Get(ir.FieldPageTitle).(ir.String); ok {
		title = string(s)
	}
	now := e.clock.Now().Unix()
	resets := []struct {
		field string
		value ir.Value
	}{
		{ir.FieldPageTitle, ir.String(title + " " + e.cfg.TranslationPending)},
		{ir.FieldCreatedBy, ir.Int(e.actor)},
		{ir.FieldCreatedOn, ir.Int(now)},
		{ir.FieldEditedBy, ir.Int(0)},
		{ir.FieldEditedOn, ir.Int(0)},
		{ir.FieldDeleted, ir.Bool(false)},
		{ir.FieldDeletedOn, ir.Int(0)},
		{ir.FieldDeletedBy, ir.Int(0)},
		{ir.FieldPublished, ir.Bool(false)},
		{ir.FieldPublishedOn, ir.Int(0)},
		{ir.FieldPublishedBy, ir.Int(0)},
	}
	for _, r := range resets {
		dup.Set(r.field, r.value)
	}

	if err := e.host.SaveReplica(ctx, dup); err != nil {
		e.logger.Error("duplicate not saved", "source", source.ID, "context", ns, "error", err)
		return nil, NewDuplicationError(source.ID, ns, err)
	}
	if dup.ID == 0 {
		return nil, NewDuplicationError(source.ID, ns, fmt.Errorf("host assigned no id"))
	}

	slots, err := e.host.SlotValues(ctx, source.ID)
	if err != nil {
		e.logger.Error("slot values not copied", "source", source.ID, "replica", dup.ID, "error", err)
	}
	for slot, value := range slots {
		if slot == e.linkSlot {
			continue
		}
		if err := e.host.SetSlotValue(ctx, dup.ID, slot, value); err != nil {
			e.logger.Error("slot value not copied",
				"slot", slot,
				"replica", dup.ID,
				"error", NewPersistenceError(dup.ID, err),
			)
		}
	}

	if dup.Parent != 0 {
		if err := e.setFolder(ctx, dup.Parent, true); err != nil {
			e.logger.Warn("folder flag not set", "replica", dup.Parent, "error", err)
		}
	}

	e.logger.Info("replica duplicated",
		"source", source.ID,
		"replica", dup.ID,
		"context", ns,
		"parent", dup.Parent,
		"parent_kind", lp.Kind,
	)
	return dup, nil
}

// Translate duplicates a replica into a sibling context and links the copy
// into the source's group, refreshing the cache once.
//
// Rejected with NAMESPACE_NOT_IN_GROUP when the target context is not a
// configured sibling, and with NAMESPACE_CONFLICT when the group already
// has a replica there.
func (e *Engine) Translate(ctx context.Context, sourceID int64, targetNS string) (*ir.Replica, error) {
	source, err := e.host.LoadReplica(ctx, sourceID)
	if err != nil {
		return nil, NewNotFoundError(sourceID, err)
	}

	ns := ir.NormalizeNamespace(targetNS)
	if ns == source.Namespace {
		return nil, &EngineError{
			Code:      ErrCodeNamespaceConflict,
			Message:   "cannot translate into the source context",
			ReplicaID: sourceID,
			Namespace: ns,
		}
	}
	if !e.groups.InGroup(source.Namespace, ns) {
		return nil, &EngineError{
			Code:      ErrCodeNamespaceNotInGroup,
			Message:   fmt.Sprintf("context is not a sibling of %s", source.Namespace),
			ReplicaID: sourceID,
			Namespace: ns,
		}
	}

	group, err := e.LinkedReplicas(ctx, sourceID)
	if err != nil {
		return nil, err
	}
	if existing, ok := group[ns]; ok {
		return nil, &EngineError{
			Code:      ErrCodeNamespaceConflict,
			Message:   fmt.Sprintf("already translated as replica %d", existing),
			ReplicaID: sourceID,
			Namespace: ns,
		}
	}

	dup, err := e.Duplicate(ctx, source, ns)
	if err != nil {
		return nil, err
	}

	union := group.Clone()
	union[ns] = dup.ID
	err = e.SetLinks(ctx, union.IDs(), union, false)
	e.refresh(ctx, "translate")
	return dup, err
}
