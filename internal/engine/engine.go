package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/roach88/babel/internal/ir"
)

// ReplicaStore loads and persists replicas.
type ReplicaStore interface {
	// LoadReplica returns an error wrapping ir.ErrNotFound for missing ids.
	LoadReplica(ctx context.Context, id int64) (*ir.Replica, error)

	// SaveReplica inserts when r.ID is zero (assigning the new id) and
	// updates otherwise.
	SaveReplica(ctx context.Context, r *ir.Replica) error

	ChildCount(ctx context.Context, id int64) (int, error)
}

// SlotStore reads and writes per-replica slot values. A value that was
// never set reads as "".
type SlotStore interface {
	SlotValue(ctx context.Context, slotID string, replicaID int64) (string, error)
	SetSlotValue(ctx context.Context, replicaID int64, slotID, value string) error
	SlotValues(ctx context.Context, replicaID int64) (map[string]string, error)

	// FindSlotValues is a substring search over one slot's values.
	FindSlotValues(ctx context.Context, slotID, pattern string) ([]ir.SlotMatch, error)
}

// Cache is the host's cache invalidation signal.
type Cache interface {
	Refresh(ctx context.Context) error
	InvalidatePath(ctx context.Context, path string, opts ir.InvalidateOptions) error
}

// Settings is the host's option store.
type Settings interface {
	Option(ctx context.Context, key, def string) (string, error)
	SetOption(ctx context.Context, key, value string) error
}

// Host bundles every collaborator the engine consumes. *store.Store
// implements it.
type Host interface {
	ReplicaStore
	SlotStore
	Cache
	Settings
}

// Engine links replicas across contexts and keeps linked replicas in step.
//
// Every public operation is synchronous and completes before returning.
// The engine holds no replica state between calls except the pending sort
// batch of the BeforeSort/AfterSort hook pair. Callers embedding the engine
// in a concurrent host must serialize operations per equivalence group
// (see ir.GroupKey).
type Engine struct {
	host Host
	cfg  ir.Config

	groups     ir.ContextGroups
	linkSlot   string
	syncSlots  []string
	syncFields []string
	schemaErr  error

	logger      *slog.Logger
	clock       Clock
	tokens      TokenGenerator
	generations *Generations
	actor       int64

	mu      sync.Mutex
	pending *SortBatch
}

// EngineOption allows configuration of engine parameters.
type EngineOption func(*Engine)

// WithLogger sets the logger used for contained failures.
// Default: slog.Default().
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithActor sets the user id recorded as creator of duplicated replicas.
func WithActor(id int64) EngineOption {
	return func(e *Engine) {
		e.actor = id
	}
}

// WithClock sets the wall clock used for audit timestamps.
// Default: SystemClock.
func WithClock(c Clock) EngineOption {
	return func(e *Engine) {
		if c != nil {
			e.clock = c
		}
	}
}

// WithBatchTokens sets the sort batch token generator.
// Default: UUIDv7Generator.
func WithBatchTokens(g TokenGenerator) EngineOption {
	return func(e *Engine) {
		if g != nil {
			e.tokens = g
		}
	}
}

// New creates an Engine over host with the given configuration.
//
// The attribute schema is validated against the field policy here. Fields
// with an unclassified kind are logged at error level and excluded from
// synchronization; the joined error is available from SchemaError.
//
// Context groups, the link slot and the sync slots come from cfg until
// Reload is called, which lets host settings override them.
func New(host Host, cfg ir.Config, opts ...EngineOption) *Engine {
	def := ir.DefaultConfig()
	if cfg.LinkSlot == "" {
		cfg.LinkSlot = def.LinkSlot
	}
	if cfg.TranslationPending == "" {
		cfg.TranslationPending = def.TranslationPending
	}
	if cfg.ManagerCachePath == "" {
		cfg.ManagerCachePath = def.ManagerCachePath
	}
	if len(cfg.Policy.Sync) == 0 && len(cfg.Policy.NoSync) == 0 {
		cfg.Policy = def.Policy
	}
	if cfg.Schema == nil {
		cfg.Schema = def.Schema
	}

	e := &Engine{
		host:        host,
		cfg:         cfg,
		groups:      ir.ParseContextGroups(cfg.ContextKeys),
		linkSlot:    cfg.LinkSlot,
		syncSlots:   append([]string(nil), cfg.SyncSlots...),
		logger:      slog.Default(),
		clock:       SystemClock{},
		tokens:      UUIDv7Generator{},
		generations: NewGenerations(),
	}

	for _, opt := range opts {
		opt(e)
	}

	fields, err := ValidateSchema(cfg.Schema, cfg.Policy)
	e.syncFields = fields
	e.schemaErr = err
	if err != nil {
		for _, fe := range unwrapJoined(err) {
			e.logger.Error("schema check failed", "error", fe)
		}
	}

	return e
}

// Reload re-reads the host settings that override file configuration:
// the context group setting, the sync slot list and the link slot name.
func (e *Engine) Reload(ctx context.Context) error {
	keys, err := e.host.Option(ctx, ir.SettingContextKeys, e.cfg.ContextKeys)
	if err != nil {
		return fmt.Errorf("reload %s: %w", ir.SettingContextKeys, err)
	}
	slots, err := e.host.Option(ctx, ir.SettingSyncSlots, strings.Join(e.cfg.SyncSlots, ","))
	if err != nil {
		return fmt.Errorf("reload %s: %w", ir.SettingSyncSlots, err)
	}
	linkSlot, err := e.host.Option(ctx, ir.SettingLinkSlot, e.cfg.LinkSlot)
	if err != nil {
		return fmt.Errorf("reload %s: %w", ir.SettingLinkSlot, err)
	}

	e.groups = ir.ParseContextGroups(keys)
	e.syncSlots = splitList(slots)
	if linkSlot = strings.TrimSpace(linkSlot); linkSlot != "" {
		e.linkSlot = linkSlot
	}

	e.logger.Debug("settings reloaded",
		"contexts", len(e.groups),
		"sync_slots", len(e.syncSlots),
		"link_slot", e.linkSlot,
	)
	return nil
}

// Groups returns the active context group configuration.
func (e *Engine) Groups() ir.ContextGroups {
	return e.groups
}

// GroupOf returns the configured group of a context key.
func (e *Engine) GroupOf(ns string) []string {
	return e.groups.Group(ns)
}

// Config returns the configuration the engine was built with.
func (e *Engine) Config() ir.Config {
	return e.cfg
}

// LinkSlot returns the slot holding serialized link sets.
func (e *Engine) LinkSlot() string {
	return e.linkSlot
}

// SyncSlots returns the slots kept equal across a group.
func (e *Engine) SyncSlots() []string {
	return append([]string(nil), e.syncSlots...)
}

// SyncFields returns the attributes kept equal across a group, sorted.
func (e *Engine) SyncFields() []string {
	return append([]string(nil), e.syncFields...)
}

// SchemaError returns the startup schema check result, nil if every field
// was classified.
func (e *Engine) SchemaError() error {
	return e.schemaErr
}

// refresh signals a full cache refresh. A failure is logged, not returned;
// the data writes it follows have already happened.
func (e *Engine) refresh(ctx context.Context, op string) {
	if err := e.host.Refresh(ctx); err != nil {
		e.logger.Error("cache refresh failed", "op", op, "error", err)
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func unwrapJoined(err error) []error {
	if j, ok := err.(interface{ Unwrap() []error }); ok {
		return j.Unwrap()
	}
	return []error{err}
}
