package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/babel/internal/engine"
	"github.com/roach88/babel/internal/ir"
	"github.com/roach88/babel/internal/store"
)

// SortOptions holds flags for the sort command.
type SortOptions struct {
	*RootOptions
	Nodes  []string
	DryRun bool
}

// SortResult reports the captured batch.
type SortResult struct {
	Batch   string              `json:"batch"`
	Records []engine.SortRecord `json:"records"`
	Applied bool                `json:"applied"`
}

func (r SortResult) String() string {
	if len(r.Records) == 0 {
		return "no linked replicas to reorder"
	}
	var b strings.Builder
	verb := "mirrored"
	if !r.Applied {
		verb = "would mirror"
	}
	fmt.Fprintf(&b, "%s %d reorder(s)", verb, len(r.Records))
	for _, rec := range r.Records {
		fmt.Fprintf(&b, "\n  %d -> parent %d, order %d (%s)", rec.ID, rec.Parent, rec.Order, rec.Namespace)
	}
	return b.String()
}

// NewSortCommand creates the sort command.
func NewSortCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SortOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "sort --node id:parent:order:context [--node ...]",
		Short: "Move replicas and mirror the reorder onto linked replicas",
		Long: `Move replicas in the tree and mirror the move onto their linked replicas.

Each node names a replica and its new position. The reorder intent is
captured first, the nodes are moved, then every linked replica receives the
new order and the new parent resolved into its own context. A node moved to
another context is logged and left out of the mirror.

Examples:
  babel sort --db ./host.db --node 5:10:3:web
  babel sort --db ./host.db --node 5:0:1:web --node 6:0:2:web --dry-run`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSort(opts, cmd)
		},
	}

	cmd.Flags().StringArrayVar(&opts.Nodes, "node", nil, "moved replica as id:parent:order:context (repeatable)")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "capture the batch without moving anything")
	_ = cmd.MarkFlagRequired("node")

	return cmd
}

func runSort(opts *SortOptions, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	nodes := make([]ir.NodeDescriptor, 0, len(opts.Nodes))
	for _, raw := range opts.Nodes {
		node, err := parseNode(raw)
		if err != nil {
			return fail(f, err)
		}
		nodes = append(nodes, node)
	}

	ctx := commandContext(cmd)
	s, err := openSession(ctx, opts.RootOptions)
	if err != nil {
		return fail(f, err)
	}
	defer s.Close()

	if opts.DryRun {
		batch, err := s.engine.Capture(ctx, nodes)
		if err != nil {
			return fail(f, err)
		}
		return f.Success(SortResult{Batch: batch.Token, Records: batch.Records})
	}

	if err := s.engine.BeforeSort(ctx, nodes); err != nil {
		return fail(f, err)
	}
	batch := s.engine.PendingSort()
	if err := moveNodes(ctx, s.store, nodes); err != nil {
		return fail(f, err)
	}
	if err := s.engine.AfterSort(ctx); err != nil {
		return fail(f, err)
	}

	f.VerboseLog("batch %s applied (generation %d)", batch.Token, batch.Generation)
	return f.Success(SortResult{Batch: batch.Token, Records: batch.Records, Applied: true})
}

// moveNodes performs the host side of a reorder: each node is saved at its
// requested position.
func moveNodes(ctx context.Context, st *store.Store, nodes []ir.NodeDescriptor) error {
	for _, n := range nodes {
		r, err := st.LoadReplica(ctx, *n.ID)
		if err != nil {
			return engine.NewNotFoundError(*n.ID, err)
		}
		r.Parent = *n.Parent
		r.Order = *n.Order
		r.Namespace = ir.NormalizeNamespace(*n.Context)
		if err := st.SaveReplica(ctx, r); err != nil {
			return engine.NewPersistenceError(r.ID, err)
		}
	}
	return nil
}
