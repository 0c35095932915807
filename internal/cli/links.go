package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/babel/internal/ir"
)

// LinksResult is a replica's link table.
type LinksResult struct {
	Replica int64            `json:"replica"`
	Links   map[string]int64 `json:"links"`
	Encoded string           `json:"encoded"`
	Group   string           `json:"group,omitempty"`
}

func (r LinksResult) String() string {
	if len(r.Links) == 0 {
		return fmt.Sprintf("replica %d is not linked", r.Replica)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "replica %d", r.Replica)
	if r.Group != "" {
		fmt.Fprintf(&b, " (group %s)", r.Group)
	}
	for _, ns := range ir.LinkSet(r.Links).Namespaces() {
		fmt.Fprintf(&b, "\n  %-12s %d", ns, r.Links[ns])
	}
	return b.String()
}

func newLinksResult(id int64, ls ir.LinkSet) LinksResult {
	encoded, _ := ir.EncodeLinks(ls)
	result := LinksResult{Replica: id, Links: map[string]int64(ls), Encoded: encoded}
	if len(ls) > 0 {
		result.Group = ir.GroupKey(ls)
	}
	if result.Links == nil {
		result.Links = map[string]int64{}
	}
	return result
}

// NewLinksCommand creates the links command.
func NewLinksCommand(rootOpts *RootOptions) *cobra.Command {
	var raw bool

	cmd := &cobra.Command{
		Use:   "links <replica-id>",
		Short: "Show a replica's link table",
		Long: `Show the link table of a replica.

A replica without a link table is given a self-link first, as every
operation that reads links does. Use --raw to read the stored table without
writing anything.

Examples:
  babel links --db ./host.db 5
  babel links --db ./host.db 5 --raw --format json`,
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

			var ls ir.LinkSet
			if raw {
				ls, err = s.engine.Links(ctx, id)
			} else {
				ls, err = s.engine.LinkedReplicas(ctx, id)
			}
			if err != nil {
				return fail(f, err)
			}
			return f.Success(newLinksResult(id, ls))
		},
	}

	cmd.Flags().BoolVar(&raw, "raw", false, "read the stored table without initializing it")
	return cmd
}

// NewLinkCommand creates the link command.
func NewLinkCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "link <source-id> <target-id>",
		Short: "Link an existing replica into another replica's group",
		Long: `Link target into the group of source and write the merged table to every
member.

The target's context must be a sibling of the source's, the group must not
already hold a replica for that context and the target must not belong to
another group.

Example:
  babel link --db ./host.db 5 7`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newFormatter(rootOpts, cmd)
			source, err := parseID(args[0])
			if err != nil {
				return fail(f, err)
			}
			target, err := parseID(args[1])
			if err != nil {
				return fail(f, err)
			}

			ctx := commandContext(cmd)
			s, err := openSession(ctx, rootOpts)
			if err != nil {
				return fail(f, err)
			}
			defer s.Close()

			ls, err := s.engine.Link(ctx, source, target)
			if err != nil {
				return fail(f, err)
			}
			return f.Success(newLinksResult(source, ls))
		},
	}
}

// NewUnlinkCommand creates the unlink command.
func NewUnlinkCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "unlink <replica-id>",
		Short: "Remove a replica from its group",
		Long: `Remove a replica from its group. The other members are rewritten without it
and the replica is left linked only to itself.

Example:
  babel unlink --db ./host.db 7`,
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

			if err := s.engine.Unlink(ctx, id); err != nil {
				return fail(f, err)
			}
			ls, err := s.engine.Links(ctx, id)
			if err != nil {
				return fail(f, err)
			}
			return f.Success(newLinksResult(id, ls))
		},
	}
}

// GroupsResult lists the configured context groups.
type GroupsResult struct {
	Setting string     `json:"setting"`
	Groups  [][]string `json:"groups"`
}

func (r GroupsResult) String() string {
	if len(r.Groups) == 0 {
		return "no context groups configured"
	}
	lines := make([]string, len(r.Groups))
	for i, g := range r.Groups {
		lines[i] = strings.Join(g, ", ")
	}
	return strings.Join(lines, "\n")
}

// NewGroupsCommand creates the groups command.
func NewGroupsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "groups",
		Short: "Show the active context groups",
		Long: `Show the context groups in effect: the host setting when present,
otherwise the configuration file.

Example:
  babel groups --db ./host.db --config ./babel.cue`,
		Args:          cobra.NoArgs,
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

			setting, err := s.store.Option(ctx, ir.SettingContextKeys, s.engine.Config().ContextKeys)
			if err != nil {
				return fail(f, err)
			}
			return f.Success(groupsResult(setting, s.engine.Groups()))
		},
	}
}

// groupsResult lists each distinct group once, ordered by the smallest
// key it contains.
func groupsResult(setting string, groups ir.ContextGroups) GroupsResult {
	result := GroupsResult{Setting: ir.FormatContextGroups(setting), Groups: [][]string{}}
	seen := map[string]bool{}
	for _, key := range groups.Keys() {
		group := groups.Group(key)
		if len(group) == 0 || seen[group[0]] {
			continue
		}
		for _, member := range group {
			seen[member] = true
		}
		result.Groups = append(result.Groups, group)
	}
	return result
}
