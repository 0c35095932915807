package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/roach88/babel/internal/ir"
)

// Scenario defines a conformance test scenario: a seeded host, a flow of
// engine operations with expected outcomes, and assertions on the final
// host state and the trace.
type Scenario struct {
	// Name uniquely identifies this scenario.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Config selects the engine configuration.
	Config ScenarioConfig `yaml:"config"`

	// Setup seeds the host before the flow runs.
	Setup Setup `yaml:"setup"`

	// Flow contains the engine operations to run, in order.
	Flow []Step `yaml:"flow"`

	// Assertions validate the final trace and host state.
	Assertions []Assertion `yaml:"assertions"`

	// BatchToken is a fixed sort batch token for deterministic traces.
	// If empty, defaults to "test-batch-default".
	BatchToken string `yaml:"batch_token,omitempty"`
}

// ScenarioConfig selects the engine configuration. File, when set, is a
// CUE configuration compiled first; the inline fields override it.
type ScenarioConfig struct {
	File        string   `yaml:"file,omitempty"`
	ContextKeys string   `yaml:"context_keys,omitempty"`
	SyncSlots   []string `yaml:"sync_slots,omitempty"`
	Actor       int64    `yaml:"actor,omitempty"`
}

// Setup seeds the host.
type Setup struct {
	Replicas []ReplicaSeed `yaml:"replicas"`

	// Links are written to the link slot of every member as-is.
	Links []map[string]int64 `yaml:"links,omitempty"`

	Slots    []SlotSeed        `yaml:"slots,omitempty"`
	Settings map[string]string `yaml:"settings,omitempty"`
}

// ReplicaSeed is a replica inserted with an explicit id.
type ReplicaSeed struct {
	ID      int64          `yaml:"id"`
	Context string         `yaml:"context"`
	Parent  int64          `yaml:"parent,omitempty"`
	Order   int64          `yaml:"order,omitempty"`
	Folder  bool           `yaml:"folder,omitempty"`
	Fields  map[string]any `yaml:"fields,omitempty"`
}

// SlotSeed is one slot value written before the flow.
type SlotSeed struct {
	Replica int64  `yaml:"replica"`
	Slot    string `yaml:"slot"`
	Value   string `yaml:"value"`
}

// Step is one flow operation. Which fields are read depends on Op.
type Step struct {
	Op      string              `yaml:"op"`
	Replica int64               `yaml:"replica,omitempty"`
	Target  int64               `yaml:"target,omitempty"`
	Context string              `yaml:"context,omitempty"`
	Nodes   []ir.NodeDescriptor `yaml:"nodes,omitempty"`
	Fields  map[string]any      `yaml:"fields,omitempty"`
	Slot    string              `yaml:"slot,omitempty"`
	Value   string              `yaml:"value,omitempty"`

	// Expect specifies the expected outcome.
	// If nil, the step must succeed and its result is not checked.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause specifies the expected outcome of a step.
type ExpectClause struct {
	// Error is the expected error code; empty means success.
	Error string `yaml:"error,omitempty"`

	// Result is a subset match against the step result.
	Result map[string]any `yaml:"result,omitempty"`
}

// Flow operations.
const (
	OpEdit           = "edit"            // host edits fields of a replica
	OpSetSlot        = "set_slot"        // host writes a slot value
	OpSync           = "sync"            // SynchronizeAndSave
	OpSort           = "sort"            // BeforeSort, host reorder, AfterSort
	OpAfterSort      = "after_sort"      // AfterSort alone
	OpDuplicate      = "duplicate"       // Duplicate
	OpTranslate      = "translate"       // Translate
	OpLink           = "link"            // Link
	OpUnlink         = "unlink"          // Unlink
	OpLinks          = "links"           // LinkedReplicas
	OpDelete         = "delete"          // host delete + RemoveLinksToReplica
	OpCleanupReplica = "cleanup_replica" // RemoveLinksToReplica
	OpCleanupContext = "cleanup_context" // RemoveLinksToNamespace
)

var knownOps = map[string]bool{
	OpEdit: true, OpSetSlot: true, OpSync: true, OpSort: true,
	OpAfterSort: true, OpDuplicate: true, OpTranslate: true, OpLink: true,
	OpUnlink: true, OpLinks: true, OpDelete: true, OpCleanupReplica: true,
	OpCleanupContext: true,
}

// Assertion validates trace or final state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "trace_contains": a step with Op and matching Args ran
	// - "trace_order": Ops ran in this order
	// - "trace_count": Op ran exactly Count times
	// - "replica": replica Replica has the Expect attributes (or is Missing)
	// - "links": replica Replica's link set equals Links
	// - "slot": slot Slot of Replica equals Value
	// - "setting": setting Key equals Value
	// - "cache_events": Count cache events of Kind ("" for any) were signaled
	Type string `yaml:"type"`

	Op   string         `yaml:"op,omitempty"`
	Ops  []string       `yaml:"ops,omitempty"`
	Args map[string]any `yaml:"args,omitempty"`

	Count int `yaml:"count,omitempty"`

	Replica int64            `yaml:"replica,omitempty"`
	Missing bool             `yaml:"missing,omitempty"`
	Expect  map[string]any   `yaml:"expect,omitempty"`
	Links   map[string]int64 `yaml:"links,omitempty"`
	Slot    string           `yaml:"slot,omitempty"`
	Key     string           `yaml:"key,omitempty"`
	Value   string           `yaml:"value,omitempty"`
	Kind    string           `yaml:"kind,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertReplica       = "replica"
	AssertLinks         = "links"
	AssertSlot          = "slot"
	AssertSetting       = "setting"
	AssertCacheEvents   = "cache_events"
)

// LoadScenario reads and parses a scenario YAML file. A relative
// config.file is resolved against the scenario's directory.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}

	if f := scenario.Config.File; f != "" && !filepath.IsAbs(f) {
		scenario.Config.File = filepath.Join(filepath.Dir(path), f)
	}
	if f := scenario.Config.File; f != "" {
		if _, err := os.Stat(f); os.IsNotExist(err) {
			return nil, fmt.Errorf("invalid scenario: config file not found: %s", f)
		}
	}

	return scenario, nil
}

// ParseScenario decodes and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// LoadSetup reads a standalone seed fixture: the setup block of a scenario
// without the flow. Unknown fields are rejected.
func LoadSetup(path string) (*Setup, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixture: %w", err)
	}

	var setup Setup
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&setup); err != nil {
		return nil, fmt.Errorf("failed to parse fixture: %w", err)
	}
	for i, rs := range setup.Replicas {
		if rs.ID <= 0 {
			return nil, fmt.Errorf("invalid fixture: replicas[%d]: id must be positive", i)
		}
	}
	return &setup, nil
}

// FindScenarios returns the .yaml and .yml files under dir, sorted.
func FindScenarios(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if ext := filepath.Ext(path); !info.IsDir() && (ext == ".yaml" || ext == ".yml") {
			files = append(files, path)
		}
		return nil
	})
	sort.Strings(files)
	return files, err
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	seen := make(map[int64]bool)
	for i, r := range s.Setup.Replicas {
		if r.ID <= 0 {
			return fmt.Errorf("setup.replicas[%d]: id must be positive", i)
		}
		if r.Context == "" {
			return fmt.Errorf("setup.replicas[%d]: context is required", i)
		}
		if seen[r.ID] {
			return fmt.Errorf("setup.replicas[%d]: duplicate id %d", i, r.ID)
		}
		seen[r.ID] = true
	}
	for i, l := range s.Setup.Links {
		if len(l) == 0 {
			return fmt.Errorf("setup.links[%d]: link set is empty", i)
		}
	}
	for i, sl := range s.Setup.Slots {
		if sl.Replica <= 0 || sl.Slot == "" {
			return fmt.Errorf("setup.slots[%d]: replica and slot are required", i)
		}
	}

	for i, step := range s.Flow {
		if err := validateStep(i, &step); err != nil {
			return err
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

// validateStep checks that the fields an op reads are present.
func validateStep(index int, st *Step) error {
	if st.Op == "" {
		return fmt.Errorf("flow[%d]: op is required", index)
	}
	if !knownOps[st.Op] {
		return fmt.Errorf("flow[%d]: unknown op %q", index, st.Op)
	}

	switch st.Op {
	case OpEdit:
		if st.Replica == 0 || len(st.Fields) == 0 {
			return fmt.Errorf("flow[%d]: replica and fields are required for edit", index)
		}
	case OpSetSlot:
		if st.Replica == 0 || st.Slot == "" {
			return fmt.Errorf("flow[%d]: replica and slot are required for set_slot", index)
		}
	case OpSort:
		if len(st.Nodes) == 0 {
			return fmt.Errorf("flow[%d]: nodes are required for sort", index)
		}
	case OpDuplicate, OpTranslate:
		if st.Replica == 0 || st.Context == "" {
			return fmt.Errorf("flow[%d]: replica and context are required for %s", index, st.Op)
		}
	case OpLink:
		if st.Replica == 0 || st.Target == 0 {
			return fmt.Errorf("flow[%d]: replica and target are required for link", index)
		}
	case OpCleanupContext:
		if st.Context == "" {
			return fmt.Errorf("flow[%d]: context is required for cleanup_context", index)
		}
	case OpAfterSort:
	default:
		if st.Replica == 0 {
			return fmt.Errorf("flow[%d]: replica is required for %s", index, st.Op)
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Op == "" {
			return fmt.Errorf("assertions[%d]: op is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Ops) == 0 {
			return fmt.Errorf("assertions[%d]: ops list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Op == "" {
			return fmt.Errorf("assertions[%d]: op is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertReplica:
		if a.Replica == 0 {
			return fmt.Errorf("assertions[%d]: replica is required for replica", index)
		}
		if !a.Missing && len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect or missing is required for replica", index)
		}
	case AssertLinks:
		if a.Replica == 0 || len(a.Links) == 0 {
			return fmt.Errorf("assertions[%d]: replica and links are required for links", index)
		}
	case AssertSlot:
		if a.Replica == 0 || a.Slot == "" {
			return fmt.Errorf("assertions[%d]: replica and slot are required for slot", index)
		}
	case AssertSetting:
		if a.Key == "" {
			return fmt.Errorf("assertions[%d]: key is required for setting", index)
		}
	case AssertCacheEvents:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for cache_events", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
