package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"

	"github.com/roach88/babel/internal/compiler"
	"github.com/roach88/babel/internal/engine"
	"github.com/roach88/babel/internal/ir"
	"github.com/roach88/babel/internal/store"
	"github.com/roach88/babel/internal/testutil"
)

// Codes recorded for errors that carry no engine error code.
const (
	CodeNoPendingSort = "NO_PENDING_SORT"
	CodeBatchConsumed = "BATCH_CONSUMED"
	CodeGeneric       = "ERROR"
)

// Harness is the test execution engine.
// It runs scenarios with a deterministic clock and batch tokens.
type Harness struct {
	store  *store.Store
	engine *engine.Engine
	clock  *testutil.DeterministicClock
	logger *slog.Logger
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
// Deterministic helpers ensure reproducible results.
//
// Execution flow:
// 1. Create fresh in-memory database
// 2. Compile the configuration and seed the host
// 3. Execute flow steps with expect validation
// 4. Evaluate assertions against the trace and the final host state
//
// A step that fails its expect clause is recorded in Result.Errors and the
// flow continues; only harness failures (bad config, seeding) return an
// error.
func Run(scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	cfg, err := scenarioConfig(scenario.Config)
	if err != nil {
		return nil, err
	}

	clock := testutil.NewDeterministicClock()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // Suppress logs in tests
	eng := engine.New(st, *cfg,
		engine.WithLogger(logger),
		engine.WithClock(clock),
		engine.WithActor(scenario.Config.Actor),
		engine.WithBatchTokens(testutil.NewFixedTokenGenerator(scenario.BatchToken)),
	)

	h := &Harness{
		store:  st,
		engine: eng,
		clock:  clock,
		logger: logger,
	}

	ctx := context.Background()
	if err := h.seed(ctx, scenario.Setup); err != nil {
		return nil, fmt.Errorf("failed to execute setup: %w", err)
	}
	if err := eng.Reload(ctx); err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}

	result := NewResult()
	if err := h.executeFlow(ctx, scenario.Flow, result); err != nil {
		return nil, fmt.Errorf("failed to execute flow: %w", err)
	}

	actx := &AssertionContext{
		Store:    st,
		LinkSlot: eng.LinkSlot(),
		Ctx:      ctx,
	}
	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(errMsg)
	}

	return result, nil
}

// scenarioConfig compiles the optional CUE file and applies the inline
// overrides.
func scenarioConfig(sc ScenarioConfig) (*ir.Config, error) {
	cfg := ir.DefaultConfig()
	if sc.File != "" {
		compiled, err := compiler.CompileFile(sc.File)
		if err != nil {
			return nil, fmt.Errorf("failed to compile config: %w", err)
		}
		cfg = *compiled
	}
	if sc.ContextKeys != "" {
		cfg.ContextKeys = sc.ContextKeys
	}
	if sc.SyncSlots != nil {
		cfg.SyncSlots = sc.SyncSlots
	}
	return &cfg, nil
}

// seed writes the setup state straight to the store, bypassing the engine.
func (h *Harness) seed(ctx context.Context, setup Setup) error {
	if err := Seed(ctx, h.store, h.engine.LinkSlot(), setup); err != nil {
		return err
	}
	h.logger.Info("setup seeded",
		"replicas", len(setup.Replicas),
		"links", len(setup.Links),
		"slots", len(setup.Slots),
	)
	return nil
}

// Seed writes setup into st. Link tables are written verbatim to linkSlot
// on every member; replicas keep their declared ids.
func Seed(ctx context.Context, st *store.Store, linkSlot string, setup Setup) error {
	for i, rs := range setup.Replicas {
		fields := ir.Object{}
		for name, raw := range rs.Fields {
			v, err := ir.FromAny(raw)
			if err != nil {
				return fmt.Errorf("replicas[%d] field %q: %w", i, name, err)
			}
			fields[name] = v
		}
		r := &ir.Replica{
			ID:        rs.ID,
			Namespace: ir.NormalizeNamespace(rs.Context),
			Parent:    rs.Parent,
			Order:     rs.Order,
			IsFolder:  rs.Folder,
			Fields:    fields,
		}
		if err := st.InsertReplica(ctx, r); err != nil {
			return fmt.Errorf("replicas[%d]: %w", i, err)
		}
	}

	for i, raw := range setup.Links {
		ls := ir.LinkSet(raw)
		encoded, _ := ir.EncodeLinks(ls)
		for _, id := range ls.IDs() {
			if err := st.SetSlotValue(ctx, id, linkSlot, encoded); err != nil {
				return fmt.Errorf("links[%d]: %w", i, err)
			}
		}
	}

	for i, sl := range setup.Slots {
		if err := st.SetSlotValue(ctx, sl.Replica, sl.Slot, sl.Value); err != nil {
			return fmt.Errorf("slots[%d]: %w", i, err)
		}
	}

	for _, key := range sortedKeys(setup.Settings) {
		if err := st.SetOption(ctx, key, setup.Settings[key]); err != nil {
			return fmt.Errorf("settings[%s]: %w", key, err)
		}
	}
	return nil
}

// executeFlow runs all flow steps and validates expect clauses.
func (h *Harness) executeFlow(ctx context.Context, flow []Step, result *Result) error {
	for i, step := range flow {
		before, err := h.store.CacheEvents(ctx)
		if err != nil {
			return fmt.Errorf("flow step %d: %w", i, err)
		}

		out, stepErr := h.execute(ctx, step)

		after, err := h.store.CacheEvents(ctx)
		if err != nil {
			return fmt.Errorf("flow step %d: %w", i, err)
		}

		event := TraceEvent{
			Seq:    int64(i + 1),
			Op:     step.Op,
			Args:   stepArgs(step),
			Status: StatusOK,
			Result: out,
			Cache:  int64(len(after) - len(before)),
		}
		if stepErr != nil {
			event.Status = StatusError
			event.Result = nil
			event.Error = errorCode(stepErr)
		}
		result.AddTrace(event)

		if msg := checkExpect(step, out, stepErr); msg != "" {
			result.AddError(fmt.Sprintf("flow[%d] %s: %s", i, step.Op, msg))
		}

		h.logger.Info("flow step completed",
			"step", i,
			"op", step.Op,
			"status", event.Status,
		)
	}
	return nil
}

// execute runs one step and returns its result fields.
func (h *Harness) execute(ctx context.Context, st Step) (map[string]any, error) {
	switch st.Op {
	case OpEdit:
		return nil, h.edit(ctx, st)

	case OpSetSlot:
		return nil, h.store.SetSlotValue(ctx, st.Replica, st.Slot, st.Value)

	case OpSync:
		changed, err := h.engine.SynchronizeAndSave(ctx, st.Replica, true, true)
		if err != nil {
			return nil, err
		}
		return map[string]any{"changed": replicaIDs(changed)}, nil

	case OpSort:
		if err := h.engine.BeforeSort(ctx, st.Nodes); err != nil {
			return nil, err
		}
		batch := h.engine.PendingSort()
		if err := h.hostSort(ctx, st.Nodes); err != nil {
			return nil, err
		}
		if err := h.engine.AfterSort(ctx); err != nil {
			return nil, err
		}
		return map[string]any{"records": int64(len(batch.Records))}, nil

	case OpAfterSort:
		return nil, h.engine.AfterSort(ctx)

	case OpDuplicate:
		src, err := h.store.LoadReplica(ctx, st.Replica)
		if err != nil {
			return nil, engine.NewNotFoundError(st.Replica, err)
		}
		dup, err := h.engine.Duplicate(ctx, src, st.Context)
		if err != nil {
			return nil, err
		}
		return map[string]any{"id": dup.ID, "parent": dup.Parent}, nil

	case OpTranslate:
		dup, err := h.engine.Translate(ctx, st.Replica, st.Context)
		if err != nil {
			return nil, err
		}
		return map[string]any{"id": dup.ID, "parent": dup.Parent}, nil

	case OpLink:
		ls, err := h.engine.Link(ctx, st.Replica, st.Target)
		if err != nil {
			return nil, err
		}
		return linksResult(ls), nil

	case OpUnlink:
		if err := h.engine.Unlink(ctx, st.Replica); err != nil {
			return nil, err
		}
		ls, err := h.engine.Links(ctx, st.Replica)
		if err != nil {
			return nil, err
		}
		return linksResult(ls), nil

	case OpLinks:
		ls, err := h.engine.LinkedReplicas(ctx, st.Replica)
		if err != nil {
			return nil, err
		}
		return linksResult(ls), nil

	case OpDelete:
		if err := h.store.DeleteReplica(ctx, st.Replica); err != nil {
			return nil, engine.NewNotFoundError(st.Replica, err)
		}
		n, err := h.engine.RemoveLinksToReplica(ctx, st.Replica)
		if err != nil {
			return nil, err
		}
		return map[string]any{"rewritten": int64(n)}, nil

	case OpCleanupReplica:
		n, err := h.engine.RemoveLinksToReplica(ctx, st.Replica)
		if err != nil {
			return nil, err
		}
		return map[string]any{"rewritten": int64(n)}, nil

	case OpCleanupContext:
		n, err := h.engine.RemoveLinksToNamespace(ctx, st.Context)
		if err != nil {
			return nil, err
		}
		return map[string]any{"rewritten": int64(n)}, nil
	}
	return nil, fmt.Errorf("unknown op %q", st.Op)
}

// edit applies a host-side attribute change.
func (h *Harness) edit(ctx context.Context, st Step) error {
	r, err := h.store.LoadReplica(ctx, st.Replica)
	if err != nil {
		return engine.NewNotFoundError(st.Replica, err)
	}
	for _, name := range sortedKeys(st.Fields) {
		v, err := ir.FromAny(st.Fields[name])
		if err != nil {
			return fmt.Errorf("field %q: %w", name, err)
		}
		if !r.Set(name, v) {
			return fmt.Errorf("field %q: cannot hold %v", name, st.Fields[name])
		}
	}
	return h.store.SaveReplica(ctx, r)
}

// hostSort applies a reorder the way the host would between the two sort
// hooks: every complete node is moved as requested, context included.
func (h *Harness) hostSort(ctx context.Context, nodes []ir.NodeDescriptor) error {
	for _, n := range nodes {
		if !n.Complete() {
			continue
		}
		r, err := h.store.LoadReplica(ctx, *n.ID)
		if errors.Is(err, ir.ErrNotFound) {
			continue
		}
		if err != nil {
			return fmt.Errorf("host sort: %w", err)
		}
		r.Parent = *n.Parent
		r.Order = *n.Order
		r.Namespace = ir.NormalizeNamespace(*n.Context)
		if err := h.store.SaveReplica(ctx, r); err != nil {
			return fmt.Errorf("host sort: %w", err)
		}
	}
	return nil
}

// checkExpect returns a failure message, or "" when the step outcome
// matches its expect clause.
func checkExpect(step Step, out map[string]any, err error) string {
	exp := step.Expect
	if exp == nil || exp.Error == "" {
		if err != nil {
			return fmt.Sprintf("unexpected error: %v", err)
		}
	}
	if exp == nil {
		return ""
	}

	if exp.Error != "" {
		if err == nil {
			return fmt.Sprintf("expected error %s, got success", exp.Error)
		}
		if code := errorCode(err); code != exp.Error {
			return fmt.Sprintf("expected error %s, got %s (%v)", exp.Error, code, err)
		}
		return ""
	}

	for _, key := range sortedKeys(exp.Result) {
		actual, ok := out[key]
		if !ok {
			return fmt.Sprintf("result field %q missing", key)
		}
		if !valuesEqual(exp.Result[key], actual) {
			return fmt.Sprintf("result field %q = %v, expected %v", key, actual, exp.Result[key])
		}
	}
	return ""
}

// errorCode maps an operation error to the code recorded in the trace.
func errorCode(err error) string {
	var ee *engine.EngineError
	switch {
	case errors.As(err, &ee):
		return string(ee.Code)
	case errors.Is(err, engine.ErrNoPendingSort):
		return CodeNoPendingSort
	case errors.Is(err, engine.ErrBatchConsumed):
		return CodeBatchConsumed
	case errors.Is(err, ir.ErrNotFound):
		return string(engine.ErrCodeNotFound)
	default:
		return CodeGeneric
	}
}

// stepArgs returns the fields of a step that its op reads, for the trace.
func stepArgs(st Step) map[string]any {
	args := map[string]any{}
	if st.Replica != 0 {
		args["replica"] = st.Replica
	}
	if st.Target != 0 {
		args["target"] = st.Target
	}
	if st.Context != "" {
		args["context"] = st.Context
	}
	if len(st.Nodes) > 0 {
		nodes := make([]any, len(st.Nodes))
		for i, n := range st.Nodes {
			node := map[string]any{}
			if n.ID != nil {
				node["id"] = *n.ID
			}
			if n.Parent != nil {
				node["parent"] = *n.Parent
			}
			if n.Order != nil {
				node["order"] = *n.Order
			}
			if n.Context != nil {
				node["context"] = *n.Context
			}
			nodes[i] = node
		}
		args["nodes"] = nodes
	}
	if len(st.Fields) > 0 {
		args["fields"] = st.Fields
	}
	if st.Op == OpSetSlot {
		args["slot"] = st.Slot
		args["value"] = st.Value
	}
	if len(args) == 0 {
		return nil
	}
	return args
}

func linksResult(ls ir.LinkSet) map[string]any {
	encoded, _ := ir.EncodeLinks(ls)
	return map[string]any{"links": encoded}
}

func replicaIDs(rs []*ir.Replica) []any {
	out := make([]any, len(rs))
	for i, r := range rs {
		out[i] = r.ID
	}
	return out
}

// valuesEqual compares YAML-decoded and Go values through ir.Value.
func valuesEqual(expected, actual any) bool {
	ev, err := ir.FromAny(expected)
	if err != nil {
		return false
	}
	av, err := ir.FromAny(actual)
	if err != nil {
		return false
	}
	return ir.Equal(ev, av)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
