package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/babel/internal/engine"
)

// CleanupResult reports how many link tables a cleanup rewrote.
type CleanupResult struct {
	Target    string `json:"target"`
	Deleted   bool   `json:"deleted,omitempty"`
	Rewritten int    `json:"rewritten"`
}

func (r CleanupResult) String() string {
	s := fmt.Sprintf("%s: %d link table(s) rewritten", r.Target, r.Rewritten)
	if r.Deleted {
		s = fmt.Sprintf("%s deleted; %d link table(s) rewritten", r.Target, r.Rewritten)
	}
	return s
}

// NewCleanupCommand creates the cleanup command and its subcommands.
func NewCleanupCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Remove dangling link entries",
		Long: `Remove link entries that point at a deleted replica or a removed context.

Subcommands:
  replica    drop entries pointing at one replica
  namespace  drop entries for one context and remove it from the context groups`,
	}

	cmd.AddCommand(newCleanupReplicaCommand(rootOpts))
	cmd.AddCommand(newCleanupNamespaceCommand(rootOpts))
	return cmd
}

func newCleanupReplicaCommand(rootOpts *RootOptions) *cobra.Command {
	var del bool

	cmd := &cobra.Command{
		Use:   "replica <replica-id>",
		Short: "Drop link entries pointing at a replica",
		Long: `Drop every link entry pointing at a replica. With --delete the replica and
its slot values are removed first, as the host does when a resource is
deleted.

Examples:
  babel cleanup replica --db ./host.db 7
  babel cleanup replica --db ./host.db 7 --delete`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newFormatter(rootOpts, cmd)
			id, err := parseID(args[0])
			if err != nil {
				return fail(f, err)
			}

			ctx := commandContext(cmd)
			s, err := openSession(ctx, rootOpts)
			if err != nil {
				return fail(f, err)
			}
			defer s.Close()

			if del {
				if err := s.store.DeleteReplica(ctx, id); err != nil {
					return fail(f, engine.NewNotFoundError(id, err))
				}
				f.VerboseLog("replica %d deleted", id)
			}

			n, err := s.engine.RemoveLinksToReplica(ctx, id)
			if err != nil {
				return fail(f, err)
			}
			return f.Success(CleanupResult{Target: fmt.Sprintf("replica %d", id), Deleted: del, Rewritten: n})
		},
	}

	cmd.Flags().BoolVar(&del, "delete", false, "delete the replica before cleaning up")
	return cmd
}

func newCleanupNamespaceCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "namespace <context>",
		Aliases: []string{"context"},
		Short:   "Drop link entries for a context",
		Long: `Drop every link entry for a context, remove the context from the context
group setting and invalidate the manager cache.

Example:
  babel cleanup namespace --db ./host.db fr`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newFormatter(rootOpts, cmd)

			ctx := commandContext(cmd)
			s, err := openSession(ctx, rootOpts)
			if err != nil {
				return fail(f, err)
			}
			defer s.Close()

			n, err := s.engine.RemoveLinksToNamespace(ctx, args[0])
			if err != nil {
				return fail(f, err)
			}
			return f.Success(CleanupResult{Target: "context " + args[0], Rewritten: n})
		},
	}
}
