package engine

import (
	"context"

	"github.com/roach88/babel/internal/ir"
)

// ParentKind distinguishes the outcomes of parent resolution.
type ParentKind int

const (
	// ParentRoot means the source has no parent; the replica sits at the root.
	ParentRoot ParentKind = iota

	// ParentMapped means the source parent has a linked replica in the target context.
	ParentMapped

	// ParentUnmapped means the source parent has no linked replica in the target context.
	ParentUnmapped
)

// String returns the kind name.
func (k ParentKind) String() string {
	switch k {
	case ParentRoot:
		return "root"
	case ParentMapped:
		return "mapped"
	case ParentUnmapped:
		return "unmapped"
	default:
		return "unknown"
	}
}

// LinkedParent is the result of resolving a parent into another context.
type LinkedParent struct {
	Kind ParentKind
	ID   int64
}

// Target returns the parent id to write: the mapped id, or 0 for both root
// and unmapped parents.
func (p LinkedParent) Target() int64 {
	if p.Kind == ParentMapped {
		return p.ID
	}
	return 0
}

// ResolveLinkedParent maps a parent id to its linked replica in the target
// context. A zero parent resolves to root. The parent's link set is read
// as stored, without initialization.
func (e *Engine) ResolveLinkedParent(ctx context.Context, parentID int64, targetNS string) (LinkedParent, error) {
	if parentID <= 0 {
		return LinkedParent{Kind: ParentRoot}, nil
	}
	ls, err := e.Links(ctx, parentID)
	if err != nil {
		return LinkedParent{Kind: ParentUnmapped}, err
	}
	if id, ok := ls[ir.NormalizeNamespace(targetNS)]; ok {
		return LinkedParent{Kind: ParentMapped, ID: id}, nil
	}
	return LinkedParent{Kind: ParentUnmapped}, nil
}

// RefreshFolderFlag sets the folder flag of a replica to whether it has
// children. A zero id is the root and is ignored.
func (e *Engine) RefreshFolderFlag(ctx context.Context, id int64) error {
	if id <= 0 {
		return nil
	}
	n, err := e.host.ChildCount(ctx, id)
	if err != nil {
		return err
	}
	return e.setFolder(ctx, id, n > 0)
}

func (e *Engine) setFolder(ctx context.Context, id int64, folder bool) error {
	r, err := e.host.LoadReplica(ctx, id)
	if err != nil {
		return NewNotFoundError(id, err)
	}
	if r.IsFolder == folder {
		return nil
	}
	r.IsFolder = folder
	if err := e.host.SaveReplica(ctx, r); err != nil {
		return NewPersistenceError(id, err)
	}
	return nil
}
