package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/babel/internal/harness"
)

// SeedResult counts what a fixture wrote.
type SeedResult struct {
	Replicas int `json:"replicas"`
	Links    int `json:"links"`
	Slots    int `json:"slots"`
	Settings int `json:"settings"`
}

func (r SeedResult) String() string {
	return fmt.Sprintf("seeded %d replica(s), %d link table(s), %d slot value(s), %d setting(s)",
		r.Replicas, r.Links, r.Slots, r.Settings)
}

// NewSeedCommand creates the seed command.
func NewSeedCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "seed <fixture.yaml>",
		Short: "Load replicas, links, slots and settings into a database",
		Long: `Load a YAML fixture into the host database. The fixture has the layout of a
scenario's setup block:

  replicas:
    - { id: 5, context: web, parent: 0, fields: { pagetitle: Home } }
    - { id: 7, context: de }
  links:
    - { web: 5, de: 7 }
  slots:
    - { replica: 5, slot: color, value: red }
  settings:
    babel.contextKeys: "web,de"

Replicas keep their ids; seeding an id that exists fails.

Example:
  babel seed --db ./host.db ./fixture.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newFormatter(rootOpts, cmd)

			setup, err := harness.LoadSetup(args[0])
			if err != nil {
				return fail(f, WrapExitError(ExitCommandError, "invalid fixture", err))
			}

			ctx := commandContext(cmd)
			s, err := openSession(ctx, rootOpts)
			if err != nil {
				return fail(f, err)
			}
			defer s.Close()

			if err := harness.Seed(ctx, s.store, s.engine.LinkSlot(), *setup); err != nil {
				return fail(f, err)
			}
			return f.Success(SeedResult{
				Replicas: len(setup.Replicas),
				Links:    len(setup.Links),
				Slots:    len(setup.Slots),
				Settings: len(setup.Settings),
			})
		},
	}
}
