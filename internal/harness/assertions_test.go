package harness

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/babel/internal/ir"
	"github.com/roach88/babel/internal/store"
)

func sampleTrace() []TraceEvent {
	return []TraceEvent{
		{Seq: 1, Op: OpLink, Args: map[string]any{"replica": int64(1), "target": int64(2)}, Status: StatusOK},
		{Seq: 2, Op: OpSync, Args: map[string]any{"replica": int64(1)}, Status: StatusOK},
		{Seq: 3, Op: OpSync, Args: map[string]any{"replica": int64(2)}, Status: StatusOK},
		{Seq: 4, Op: OpUnlink, Args: map[string]any{"replica": int64(2)}, Status: StatusError, Error: "NOT_FOUND"},
	}
}

func TestAssertTraceContains(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertTraceContains(trace, Assertion{Op: OpSync}))
	assert.NoError(t, assertTraceContains(trace, Assertion{Op: OpSync, Args: map[string]any{"replica": 2}}))
	assert.NoError(t, assertTraceContains(trace, Assertion{Op: OpLink, Args: map[string]any{"target": 2}}))

	err := assertTraceContains(trace, Assertion{Op: OpSync, Args: map[string]any{"replica": 3}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found in trace")
	assert.Contains(t, err.Error(), "[4] unlink")
	assert.Contains(t, err.Error(), "NOT_FOUND")
}

func TestAssertTraceOrder(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertTraceOrder(trace, Assertion{Ops: []string{OpLink, OpSync, OpUnlink}}))
	assert.NoError(t, assertTraceOrder(trace, Assertion{Ops: []string{OpLink, OpUnlink}}))

	err := assertTraceOrder(trace, Assertion{Ops: []string{OpUnlink, OpLink}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "should be before")

	err = assertTraceOrder(trace, Assertion{Ops: []string{OpLink, OpTranslate}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing op: translate")
}

func TestAssertTraceCount(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertTraceCount(trace, Assertion{Op: OpSync, Count: 2}))
	assert.NoError(t, assertTraceCount(trace, Assertion{Op: OpSort, Count: 0}))

	err := assertTraceCount(trace, Assertion{Op: OpSync, Count: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 occurrences of sync")
	assert.Contains(t, err.Error(), "2 occurrences")
}

func stateContext(t *testing.T) *AssertionContext {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	ctx := context.Background()
	require.NoError(t, st.InsertReplica(ctx, &ir.Replica{
		ID: 5, Namespace: "web", Parent: 1, Fields: ir.Object{"pagetitle": ir.String("Home")},
	}))
	require.NoError(t, st.SetSlotValue(ctx, 5, ir.DefaultLinkSlot, "de:7;web:5"))
	require.NoError(t, st.SetSlotValue(ctx, 5, "color", "red"))
	require.NoError(t, st.SetOption(ctx, ir.SettingContextKeys, "web,de"))
	require.NoError(t, st.Refresh(ctx))
	require.NoError(t, st.InvalidatePath(ctx, "cache/", ir.InvalidateOptions{}))
	require.NoError(t, st.Refresh(ctx))

	return &AssertionContext{Store: st, LinkSlot: ir.DefaultLinkSlot, Ctx: ctx}
}

func TestAssertState(t *testing.T) {
	actx := stateContext(t)

	pass := []Assertion{
		{Type: AssertReplica, Replica: 5, Expect: map[string]any{"pagetitle": "Home", "parent": 1, "isfolder": false}},
		{Type: AssertReplica, Replica: 6, Missing: true},
		{Type: AssertLinks, Replica: 5, Links: map[string]int64{"web": 5, "de": 7}},
		{Type: AssertSlot, Replica: 5, Slot: "color", Value: "red"},
		{Type: AssertSlot, Replica: 5, Slot: "size", Value: ""},
		{Type: AssertSetting, Key: ir.SettingContextKeys, Value: "web,de"},
		{Type: AssertCacheEvents, Count: 3},
		{Type: AssertCacheEvents, Kind: store.CacheRefresh, Count: 2},
	}
	for _, a := range pass {
		assert.NoError(t, assertState(actx, a), "%+v", a)
	}

	fail := []struct {
		a    Assertion
		want string
	}{
		{Assertion{Type: AssertReplica, Replica: 5, Expect: map[string]any{"pagetitle": "About"}}, `field "pagetitle"`},
		{Assertion{Type: AssertReplica, Replica: 5, Missing: true}, "to be missing"},
		{Assertion{Type: AssertReplica, Replica: 6, Expect: map[string]any{"parent": 0}}, "load error"},
		{Assertion{Type: AssertLinks, Replica: 5, Links: map[string]int64{"web": 5}}, `"de:7;web:5"`},
		{Assertion{Type: AssertSlot, Replica: 5, Slot: "color", Value: "blue"}, `"red"`},
		{Assertion{Type: AssertSetting, Key: ir.SettingContextKeys, Value: "web"}, `"web,de"`},
		{Assertion{Type: AssertCacheEvents, Kind: store.CacheInvalidate, Count: 2}, "2 cache events (invalidate)"},
	}
	for _, tt := range fail {
		err := assertState(actx, tt.a)
		require.Error(t, err, "%+v", tt.a)
		assert.Contains(t, err.Error(), tt.want)
	}
}

func TestEvaluateAssertions(t *testing.T) {
	result := NewResult()
	result.Trace = sampleTrace()

	errs := EvaluateAssertions(result, []Assertion{
		{Type: AssertTraceCount, Op: OpSync, Count: 2},
		{Type: AssertSlot, Replica: 5, Slot: "color", Value: "red"},
		{Type: "bogus"},
	}, nil)

	require.Len(t, errs, 2)
	assert.Contains(t, errs[0], "requires database context")
	assert.Contains(t, errs[1], `unknown assertion type "bogus"`)
}

func TestMatchArgs(t *testing.T) {
	actual := map[string]any{"replica": int64(5), "context": "de"}

	assert.True(t, matchArgs(actual, nil))
	assert.True(t, matchArgs(actual, map[string]any{"replica": 5}))
	assert.True(t, matchArgs(actual, map[string]any{"replica": 5.0, "context": "de"}))
	assert.False(t, matchArgs(actual, map[string]any{"replica": 6}))
	assert.False(t, matchArgs(actual, map[string]any{"target": 5}))
}
