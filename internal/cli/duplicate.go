package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/babel/internal/engine"
	"github.com/roach88/babel/internal/ir"
)

// ReplicaResult describes a replica created by duplicate or translate.
type ReplicaResult struct {
	Source  int64  `json:"source"`
	ID      int64  `json:"id"`
	Context string `json:"context"`
	Parent  int64  `json:"parent"`
	Linked  string `json:"linked,omitempty"`
}

func (r ReplicaResult) String() string {
	s := fmt.Sprintf("replica %d copied to %s as %d (parent %d)", r.Source, r.Context, r.ID, r.Parent)
	if r.Linked != "" {
		s += "\nlinks: " + r.Linked
	}
	return s
}

// NewDuplicateCommand creates the duplicate command.
func NewDuplicateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "duplicate <replica-id> <context>",
		Short: "Copy a replica into another context without linking it",
		Long: `Copy a replica into another context.

The copy is titled with the translation pending marker, its audit and
publication state is reset and its parent is the source parent resolved into
the target context. Slot values are copied; the link table is not.

Example:
  babel duplicate --db ./host.db --actor 7 5 de`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDuplicate(rootOpts, args[0], args[1], false, cmd)
		},
	}
}

// NewTranslateCommand creates the translate command.
func NewTranslateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "translate <replica-id> <context>",
		Short: "Duplicate a replica into a sibling context and link the copy",
		Long: `Duplicate a replica into a sibling context and link the copy into the
source's group.

The target context must belong to the source's context group and the group
must not already hold a replica there.

Example:
  babel translate --db ./host.db 5 de`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDuplicate(rootOpts, args[0], args[1], true, cmd)
		},
	}
}

func runDuplicate(opts *RootOptions, idArg, ns string, link bool, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd)

	id, err := parseID(idArg)
	if err != nil {
		return fail(f, err)
	}

	ctx := commandContext(cmd)
	s, err := openSession(ctx, opts)
	if err != nil {
		return fail(f, err)
	}
	defer s.Close()

	var dup *ir.Replica
	if link {
		dup, err = s.engine.Translate(ctx, id, ns)
	} else {
		var src *ir.Replica
		src, err = s.store.LoadReplica(ctx, id)
		if err != nil {
			return fail(f, engine.NewNotFoundError(id, err))
		}
		dup, err = s.engine.Duplicate(ctx, src, ns)
	}
	if err != nil {
		return fail(f, err)
	}

	result := ReplicaResult{Source: id, ID: dup.ID, Context: dup.Namespace, Parent: dup.Parent}
	if link {
		ls, err := s.engine.Links(ctx, dup.ID)
		if err != nil {
			return fail(f, err)
		}
		result.Linked, _ = ir.EncodeLinks(ls)
	}
	return f.Success(result)
}
