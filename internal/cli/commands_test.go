package cli

import (
	"bytes"
	"context"
	"io"
	"path/filepath"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/babel/internal/harness"
	"github.com/roach88/babel/internal/ir"
	"github.com/roach88/babel/internal/store"
)

// hostDB seeds a database with two linked roots (1 web, 2 de), a linked
// pair under them (5 web, 7 de) and an unlinked fr replica 9.
func hostDB(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "host.db")
	st, err := store.Open(path)
	require.NoError(t, err)
	defer st.Close()

	err = harness.Seed(context.Background(), st, ir.DefaultLinkSlot, harness.Setup{
		Replicas: []harness.ReplicaSeed{
			{ID: 1, Context: "web", Folder: true},
			{ID: 2, Context: "de", Folder: true},
			{ID: 5, Context: "web", Parent: 1, Order: 1, Fields: map[string]any{"template": 3, "pagetitle": "About"}},
			{ID: 7, Context: "de", Parent: 2, Order: 1, Fields: map[string]any{"template": 1, "pagetitle": "Über"}},
			{ID: 9, Context: "fr"},
		},
		Links: []map[string]int64{
			{"web": 1, "de": 2},
			{"web": 5, "de": 7},
		},
		Settings: map[string]string{ir.SettingContextKeys: "web,de,fr"},
	})
	require.NoError(t, err)
	return path
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

// decodeResponse decodes a JSON response and its data payload into data.
func decodeResponse(t *testing.T, out string, data any) CLIResponse {
	t.Helper()
	var raw struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
		Error  *CLIError       `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &raw), "output: %s", out)
	if data != nil && len(raw.Data) > 0 {
		require.NoError(t, json.Unmarshal(raw.Data, data))
	}
	return CLIResponse{Status: raw.Status, Error: raw.Error}
}

func loadReplica(t *testing.T, db string, id int64) (*ir.Replica, error) {
	t.Helper()
	st, err := store.Open(db)
	require.NoError(t, err)
	defer st.Close()
	return st.LoadReplica(context.Background(), id)
}

func TestSyncCommand(t *testing.T) {
	db := hostDB(t)

	out, err := runCLI(t, "--db", db, "--format", "json", "sync", "5", "--dry-run")
	require.NoError(t, err)
	var dry SyncResult
	assert.Equal(t, "ok", decodeResponse(t, out, &dry).Status)
	assert.Equal(t, []int64{7}, dry.Changed)
	assert.False(t, dry.Saved)

	r, err := loadReplica(t, db, 7)
	require.NoError(t, err)
	assert.Equal(t, ir.Int(1), r.Fields["template"], "dry run must not save")

	out, err = runCLI(t, "--db", db, "sync", "5")
	require.NoError(t, err)
	assert.Contains(t, out, "replica 5: updated [7]")

	r, err = loadReplica(t, db, 7)
	require.NoError(t, err)
	assert.Equal(t, ir.Int(3), r.Fields["template"])
	assert.Equal(t, ir.String("Über"), r.Fields["pagetitle"], "string fields stay per context")
	assert.Equal(t, int64(2), r.Parent)

	out, err = runCLI(t, "--db", db, "sync", "5")
	require.NoError(t, err)
	assert.Contains(t, out, "already in step")
}

func TestSyncCommand_NoFields(t *testing.T) {
	db := hostDB(t)

	out, err := runCLI(t, "--db", db, "--format", "json", "sync", "5", "--no-fields")
	require.NoError(t, err)
	var res SyncResult
	decodeResponse(t, out, &res)
	assert.Empty(t, res.Changed)
}

func TestSyncCommand_Errors(t *testing.T) {
	db := hostDB(t)

	t.Run("missing db", func(t *testing.T) {
		out, err := runCLI(t, "--format", "json", "sync", "5")
		require.Error(t, err)
		assert.Equal(t, ExitCommandError, GetExitCode(err))
		assert.Equal(t, ErrCodeNoDatabase, decodeResponse(t, out, nil).Error.Code)
	})

	t.Run("bad id", func(t *testing.T) {
		out, err := runCLI(t, "--db", db, "--format", "json", "sync", "abc")
		require.Error(t, err)
		assert.Equal(t, ExitCommandError, GetExitCode(err))
		assert.Equal(t, ErrCodeBadArgument, decodeResponse(t, out, nil).Error.Code)
	})

	t.Run("unknown replica", func(t *testing.T) {
		out, err := runCLI(t, "--db", db, "--format", "json", "sync", "404")
		require.Error(t, err)
		assert.Equal(t, ExitFailure, GetExitCode(err))
		resp := decodeResponse(t, out, nil)
		assert.Equal(t, "error", resp.Status)
		assert.Equal(t, "NOT_FOUND", resp.Error.Code)
	})

	t.Run("missing config", func(t *testing.T) {
		out, err := runCLI(t, "--db", db, "--config", filepath.Join(t.TempDir(), "none.cue"), "--format", "json", "sync", "5")
		require.Error(t, err)
		assert.Equal(t, ExitCommandError, GetExitCode(err))
		assert.Equal(t, ErrCodeNotFound, decodeResponse(t, out, nil).Error.Code)
	})
}

func TestSortCommand(t *testing.T) {
	db := hostDB(t)

	out, err := runCLI(t, "--db", db, "--format", "json", "sort", "--node", "5:0:4:web", "--dry-run")
	require.NoError(t, err)
	var dry SortResult
	decodeResponse(t, out, &dry)
	require.Len(t, dry.Records, 1)
	assert.False(t, dry.Applied)
	assert.NotEmpty(t, dry.Batch)

	r, err := loadReplica(t, db, 5)
	require.NoError(t, err)
	assert.Equal(t, int64(1), r.Parent, "dry run must not move")

	out, err = runCLI(t, "--db", db, "sort", "--node", "5:0:4:web")
	require.NoError(t, err)
	assert.Contains(t, out, "mirrored 1 reorder(s)")

	r, err = loadReplica(t, db, 5)
	require.NoError(t, err)
	assert.Equal(t, int64(0), r.Parent)
	assert.Equal(t, int64(4), r.Order)

	sib, err := loadReplica(t, db, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(0), sib.Parent)
	assert.Equal(t, int64(4), sib.Order)
}

func TestSortCommand_BadNode(t *testing.T) {
	out, err := runCLI(t, "--db", hostDB(t), "sort", "--node", "5:0:web")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E009]")
}

func TestTranslateCommand(t *testing.T) {
	db := hostDB(t)

	out, err := runCLI(t, "--db", db, "--actor", "42", "--format", "json", "translate", "5", "fr")
	require.NoError(t, err)
	var res ReplicaResult
	decodeResponse(t, out, &res)
	assert.Equal(t, int64(10), res.ID)
	assert.Equal(t, "fr", res.Context)
	assert.Equal(t, int64(0), res.Parent, "the web root has no fr sibling")
	assert.Equal(t, "de:7;fr:10;web:5", res.Linked)

	dup, err := loadReplica(t, db, 10)
	require.NoError(t, err)
	assert.Equal(t, ir.Int(42), dup.Fields[ir.FieldCreatedBy])

	out, err = runCLI(t, "--db", db, "--format", "json", "translate", "5", "de")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Equal(t, "NAMESPACE_CONFLICT", decodeResponse(t, out, nil).Error.Code)

	out, err = runCLI(t, "--db", db, "--format", "json", "translate", "5", "es")
	require.Error(t, err)
	assert.Equal(t, "NAMESPACE_NOT_IN_GROUP", decodeResponse(t, out, nil).Error.Code)
}

func TestDuplicateCommand(t *testing.T) {
	db := hostDB(t)

	out, err := runCLI(t, "--db", db, "--format", "json", "duplicate", "5", "de")
	require.NoError(t, err)
	var res ReplicaResult
	decodeResponse(t, out, &res)
	assert.Equal(t, int64(10), res.ID)
	assert.Equal(t, int64(2), res.Parent)
	assert.Empty(t, res.Linked)

	out, err = runCLI(t, "--db", db, "--format", "json", "links", "10", "--raw")
	require.NoError(t, err)
	var links LinksResult
	decodeResponse(t, out, &links)
	assert.Empty(t, links.Links, "a duplicate is not linked")
}

func TestLinksCommand(t *testing.T) {
	db := hostDB(t)

	out, err := runCLI(t, "--db", db, "--format", "json", "links", "5")
	require.NoError(t, err)
	var res LinksResult
	decodeResponse(t, out, &res)
	assert.Equal(t, map[string]int64{"web": 5, "de": 7}, res.Links)
	assert.Equal(t, "de:7;web:5", res.Encoded)
	assert.Equal(t, ir.GroupKey(ir.LinkSet{"web": 5, "de": 7}), res.Group)

	out, err = runCLI(t, "--db", db, "links", "9", "--raw")
	require.NoError(t, err)
	assert.Contains(t, out, "replica 9 is not linked")

	out, err = runCLI(t, "--db", db, "links", "9")
	require.NoError(t, err)
	assert.Contains(t, out, "fr")
}

func TestLinkAndUnlinkCommands(t *testing.T) {
	db := hostDB(t)

	out, err := runCLI(t, "--db", db, "--format", "json", "link", "5", "9")
	require.NoError(t, err)
	var linked LinksResult
	decodeResponse(t, out, &linked)
	assert.Equal(t, "de:7;fr:9;web:5", linked.Encoded)

	out, err = runCLI(t, "--db", db, "--format", "json", "unlink", "9")
	require.NoError(t, err)
	var unlinked LinksResult
	decodeResponse(t, out, &unlinked)
	assert.Equal(t, "fr:9", unlinked.Encoded)

	out, err = runCLI(t, "--db", db, "--format", "json", "links", "7", "--raw")
	require.NoError(t, err)
	var rest LinksResult
	decodeResponse(t, out, &rest)
	assert.Equal(t, "de:7;web:5", rest.Encoded)
}

func TestCleanupReplicaCommand(t *testing.T) {
	db := hostDB(t)

	out, err := runCLI(t, "--db", db, "--format", "json", "cleanup", "replica", "7", "--delete")
	require.NoError(t, err)
	var res CleanupResult
	decodeResponse(t, out, &res)
	assert.True(t, res.Deleted)
	assert.Equal(t, 1, res.Rewritten)

	_, err = loadReplica(t, db, 7)
	assert.ErrorIs(t, err, ir.ErrNotFound)

	out, err = runCLI(t, "--db", db, "--format", "json", "links", "5", "--raw")
	require.NoError(t, err)
	var links LinksResult
	decodeResponse(t, out, &links)
	assert.Equal(t, "web:5", links.Encoded)

	out, err = runCLI(t, "--db", db, "--format", "json", "cleanup", "replica", "7", "--delete")
	require.Error(t, err)
	assert.Equal(t, "NOT_FOUND", decodeResponse(t, out, nil).Error.Code)
}

func TestCleanupNamespaceCommand(t *testing.T) {
	db := hostDB(t)

	out, err := runCLI(t, "--db", db, "cleanup", "namespace", "de")
	require.NoError(t, err)
	assert.Contains(t, out, "context de: 4 link table(s) rewritten")

	out, err = runCLI(t, "--db", db, "--format", "json", "groups")
	require.NoError(t, err)
	var groups GroupsResult
	decodeResponse(t, out, &groups)
	assert.Equal(t, "web,fr", groups.Setting)
	assert.Equal(t, [][]string{{"web", "fr"}}, groups.Groups)
}

func TestGroupsCommand(t *testing.T) {
	db := hostDB(t)

	out, err := runCLI(t, "--db", db, "groups")
	require.NoError(t, err)
	assert.Contains(t, out, "web, de, fr")
}

func TestGroupsResult(t *testing.T) {
	res := groupsResult("web,de;intranet, intranet-de;solo", ir.ParseContextGroups("web,de;intranet, intranet-de;solo"))
	assert.Equal(t, "web,de;intranet,intranet-de;solo", res.Setting)
	assert.Equal(t, [][]string{{"web", "de"}, {"intranet", "intranet-de"}, {"solo"}}, res.Groups)

	empty := groupsResult("", ir.ParseContextGroups(""))
	assert.Empty(t, empty.Groups)
	assert.Equal(t, "no context groups configured", empty.String())
}
