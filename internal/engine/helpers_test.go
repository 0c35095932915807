package engine

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/babel/internal/ir"
	"github.com/roach88/babel/internal/store"
	"github.com/roach88/babel/internal/testutil"
)

var errInjected = errors.New("injected failure")

// faultyHost wraps a real store and fails selected calls.
type faultyHost struct {
	*store.Store

	failLoad      map[int64]bool
	failSave      map[int64]bool
	failInsert    bool
	failSlotWrite map[int64]bool
}

func (h *faultyHost) LoadReplica(ctx context.Context, id int64) (*ir.Replica, error) {
	if h.failLoad[id] {
		return nil, errInjected
	}
	return h.Store.LoadReplica(ctx, id)
}

func (h *faultyHost) SaveReplica(ctx context.Context, r *ir.Replica) error {
	if r.ID == 0 && h.failInsert {
		return errInjected
	}
	if h.failSave[r.ID] {
		return errInjected
	}
	return h.Store.SaveReplica(ctx, r)
}

func (h *faultyHost) SetSlotValue(ctx context.Context, replicaID int64, slotID, value string) error {
	if h.failSlotWrite[replicaID] {
		return errInjected
	}
	return h.Store.SetSlotValue(ctx, replicaID, slotID, value)
}

// fixture is an engine over a temp-file store with deterministic time and
// batch tokens. Logs are captured in logs.
type fixture struct {
	t      *testing.T
	ctx    context.Context
	store  *store.Store
	host   *faultyHost
	engine *Engine
	clock  *testutil.DeterministicClock
	logs   *bytes.Buffer
}

func setupTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func newFixture(t *testing.T, contextKeys string, opts ...EngineOption) *fixture {
	t.Helper()
	s := setupTestStore(t)
	f := &fixture{
		t:     t,
		ctx:   context.Background(),
		store: s,
		host: &faultyHost{
			Store:         s,
			failLoad:      map[int64]bool{},
			failSave:      map[int64]bool{},
			failSlotWrite: map[int64]bool{},
		},
		clock: testutil.NewDeterministicClock(),
		logs:  &bytes.Buffer{},
	}

	cfg := ir.DefaultConfig()
	cfg.ContextKeys = contextKeys
	cfg.SyncSlots = []string{"color"}

	base := []EngineOption{
		WithLogger(slog.New(slog.NewTextHandler(f.logs, &slog.HandlerOptions{Level: slog.LevelDebug}))),
		WithClock(f.clock),
		WithBatchTokens(testutil.NewFixedTokenGenerator("batch-test")),
	}
	f.engine = New(f.host, cfg, append(base, opts...)...)
	return f
}

// replica seeds a replica with an explicit id.
func (f *fixture) replica(id int64, ns string, parent, order int64, fields ir.Object) {
	f.t.Helper()
	if fields == nil {
		fields = ir.Object{}
	}
	r := &ir.Replica{ID: id, Namespace: ns, Parent: parent, Order: order, Fields: fields}
	require.NoError(f.t, f.store.InsertReplica(f.ctx, r))
}

// link writes set to the link slot of every member, bypassing the engine.
func (f *fixture) link(set ir.LinkSet) {
	f.t.Helper()
	encoded, _ := ir.EncodeLinks(set)
	for _, id := range set.IDs() {
		require.NoError(f.t, f.store.SetSlotValue(f.ctx, id, ir.DefaultLinkSlot, encoded))
	}
}

func (f *fixture) slot(id int64, slot, value string) {
	f.t.Helper()
	require.NoError(f.t, f.store.SetSlotValue(f.ctx, id, slot, value))
}

func (f *fixture) load(id int64) *ir.Replica {
	f.t.Helper()
	r, err := f.store.LoadReplica(f.ctx, id)
	require.NoError(f.t, err)
	return r
}

func (f *fixture) rawLinks(id int64) string {
	f.t.Helper()
	v, err := f.store.SlotValue(f.ctx, ir.DefaultLinkSlot, id)
	require.NoError(f.t, err)
	return v
}

func (f *fixture) slotValue(id int64, slot string) string {
	f.t.Helper()
	v, err := f.store.SlotValue(f.ctx, slot, id)
	require.NoError(f.t, err)
	return v
}

func (f *fixture) cacheEvents() []store.CacheEvent {
	f.t.Helper()
	events, err := f.store.CacheEvents(f.ctx)
	require.NoError(f.t, err)
	return events
}

func ids(rs []*ir.Replica) []int64 {
	out := make([]int64, len(rs))
	for i, r := range rs {
		out[i] = r.ID
	}
	return out
}
