package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/babel/internal/ir"
)

// SyncOptions holds flags for the sync command.
type SyncOptions struct {
	*RootOptions
	NoFields bool
	NoSlots  bool
	DryRun   bool
}

// SyncResult reports which siblings a synchronization changed.
type SyncResult struct {
	Source  int64   `json:"source"`
	Changed []int64 `json:"changed"`
	Saved   bool    `json:"saved"`
}

func (r SyncResult) String() string {
	verb := "updated"
	if !r.Saved {
		verb = "would update"
	}
	if len(r.Changed) == 0 {
		return fmt.Sprintf("replica %d: linked replicas already in step", r.Source)
	}
	return fmt.Sprintf("replica %d: %s %v", r.Source, verb, r.Changed)
}

// NewSyncCommand creates the sync command.
func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SyncOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "sync <replica-id>",
		Short: "Copy synchronized fields and slots to linked replicas",
		Long: `Copy the synchronized fields and slots of a replica to every replica
linked with it.

A parent reference is translated into each sibling's context. A replica
without a link table is given a self-link first.

Examples:
  babel sync --db ./host.db 5
  babel sync --db ./host.db 5 --no-slots
  babel sync --db ./host.db 5 --dry-run --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.NoFields, "no-fields", false, "leave fields alone")
	cmd.Flags().BoolVar(&opts.NoSlots, "no-slots", false, "leave slots alone")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "report changes without saving")

	return cmd
}

func runSync(opts *SyncOptions, arg string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	id, err := parseID(arg)
	if err != nil {
		return fail(f, err)
	}

	ctx := commandContext(cmd)
	s, err := openSession(ctx, opts.RootOptions)
	if err != nil {
		return fail(f, err)
	}
	defer s.Close()

	syncFields, syncSlots := !opts.NoFields, !opts.NoSlots
	var changed []*ir.Replica
	if opts.DryRun {
		changed, err = s.engine.Synchronize(ctx, id, syncFields, syncSlots)
	} else {
		changed, err = s.engine.SynchronizeAndSave(ctx, id, syncFields, syncSlots)
	}
	if err != nil {
		return fail(f, err)
	}

	return f.Success(SyncResult{
		Source:  id,
		Changed: replicaIDs(changed),
		Saved:   !opts.DryRun,
	})
}

func replicaIDs(rs []*ir.Replica) []int64 {
	ids := make([]int64, 0, len(rs))
	for _, r := range rs {
		ids = append(ids, r.ID)
	}
	return ids
}
