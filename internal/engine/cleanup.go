package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/babel/internal/ir"
)

// RemoveLinksToReplica removes every link entry pointing at id and returns
// the number of link tables rewritten.
//
// The slot search is only a coarse substring pre-filter; each candidate is
// decoded and matched exactly, so removing 7 never touches an entry for 70.
// Each link table is rewritten independently. A corrupt table or a failed
// write is logged and skipped; write failures are joined into the error.
func (e *Engine) RemoveLinksToReplica(ctx context.Context, id int64) (int, error) {
	matches, err := e.host.FindSlotValues(ctx, e.linkSlot, fmt.Sprintf(":%d", id))
	if err != nil {
		return 0, fmt.Errorf("search links to replica %d: %w", id, err)
	}

	return e.rewriteLinks(ctx, matches, func(ls ir.LinkSet) bool {
		removed := false
		for ns, linked := range ls {
			if linked == id {
				delete(ls, ns)
				removed = true
			}
		}
		return removed
	})
}

// RemoveLinksToNamespace removes every link entry for a context and strips
// the context from the context group setting. When the setting changes,
// the engine reloads its settings and the manager cache path is
// invalidated. It returns the number of link tables rewritten.
func (e *Engine) RemoveLinksToNamespace(ctx context.Context, namespace string) (int, error) {
	ns := ir.NormalizeNamespace(namespace)
	if ns == "" {
		return 0, fmt.Errorf("remove links to context: empty context key")
	}

	matches, err := e.host.FindSlotValues(ctx, e.linkSlot, ns+":")
	if err != nil {
		return 0, fmt.Errorf("search links to context %s: %w", ns, err)
	}

	n, linkErr := e.rewriteLinks(ctx, matches, func(ls ir.LinkSet) bool {
		if _, ok := ls[ns]; !ok {
			return false
		}
		delete(ls, ns)
		return true
	})

	return n, errors.Join(linkErr, e.removeContextKey(ctx, ns))
}

func (e *Engine) removeContextKey(ctx context.Context, ns string) error {
	current, err := e.host.Option(ctx, ir.SettingContextKeys, e.cfg.ContextKeys)
	if err != nil {
		return fmt.Errorf("read %s: %w", ir.SettingContextKeys, err)
	}
	updated, changed := ir.RemoveContextKey(current, ns)
	if !changed {
		return nil
	}

	if err := e.host.SetOption(ctx, ir.SettingContextKeys, updated); err != nil {
		return fmt.Errorf("write %s: %w", ir.SettingContextKeys, err)
	}
	e.logger.Info("context removed from groups", "context", ns, "setting", updated)

	if err := e.Reload(ctx); err != nil {
		return err
	}
	err = e.host.InvalidatePath(ctx, e.cfg.ManagerCachePath, ir.InvalidateOptions{
		DeleteTop:  false,
		SkipDirs:   false,
		Extensions: []string{".cache.php", ".php"},
	})
	if err != nil {
		return fmt.Errorf("invalidate %s: %w", e.cfg.ManagerCachePath, err)
	}
	return nil
}

// rewriteLinks decodes each match, applies edit and writes back the tables
// edit reports as changed.
func (e *Engine) rewriteLinks(ctx context.Context, matches []ir.SlotMatch, edit func(ir.LinkSet) bool) (int, error) {
	var (
		n    int
		errs []error
	)
	for _, m := range matches {
		ls, err := ir.DecodeLinks(m.Value)
		if err != nil {
			e.logger.Error("link table skipped",
				"replica", m.ReplicaID,
				"error", NewMalformedLinkError(m.ReplicaID, err),
			)
			continue
		}
		if !edit(ls) {
			continue
		}

		encoded, _ := ir.EncodeLinks(ls)
		if err := e.host.SetSlotValue(ctx, m.ReplicaID, e.linkSlot, encoded); err != nil {
			pe := NewPersistenceError(m.ReplicaID, err)
			e.logger.Error("link table not rewritten", "replica", m.ReplicaID, "error", pe)
			errs = append(errs, pe)
			continue
		}
		n++
	}
	return n, errors.Join(errs...)
}
