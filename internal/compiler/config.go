package compiler

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/babel/internal/ir"
)

//go:embed schema.cue
var schemaCUE string

// ConfigPath is the top-level field holding the configuration.
const ConfigPath = "babel"

// CompileFile reads and compiles a CUE configuration file.
func CompileFile(path string) (*ir.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return CompileSource(cuecontext.New(), path, data)
}

// CompileSource compiles CUE source holding a top-level babel struct.
func CompileSource(ctx *cue.Context, filename string, src []byte) (*ir.Config, error) {
	v := ctx.CompileBytes(src, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	cfgVal := v.LookupPath(cue.ParsePath(ConfigPath))
	if !cfgVal.Exists() {
		return nil, &CompileError{
			Field:   ConfigPath,
			Message: "babel configuration struct is required",
			Pos:     v.Pos(),
		}
	}
	return CompileConfig(cfgVal)
}

// CompileConfig checks a CUE value against the embedded configuration
// schema and converts it to an ir.Config. Fields left out take their
// defaults from ir.DefaultConfig; a policy or schema given in the file
// replaces the default one entirely.
func CompileConfig(v cue.Value) (*ir.Config, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	def := v.Context().CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := def.Err(); err != nil {
		return nil, fmt.Errorf("embedded schema: %w", err)
	}
	unified := def.LookupPath(cue.ParsePath("#Config")).Unify(v)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	cfg := ir.DefaultConfig()

	keys, err := parseContextKeys(unified)
	if err != nil {
		return nil, err
	}
	cfg.ContextKeys = keys

	if s, ok, err := optionalString(unified, "link_slot"); err != nil {
		return nil, err
	} else if ok {
		cfg.LinkSlot = s
	}
	if s, ok, err := optionalString(unified, "translation_pending"); err != nil {
		return nil, err
	} else if ok {
		cfg.TranslationPending = s
	}
	if s, ok, err := optionalString(unified, "manager_cache_path"); err != nil {
		return nil, err
	} else if ok {
		cfg.ManagerCachePath = s
	}

	if cfg.SyncSlots, err = stringList(unified.LookupPath(cue.ParsePath("sync_slots"))); err != nil {
		return nil, err
	}

	policyVal := unified.LookupPath(cue.ParsePath("policy"))
	if policyVal.Exists() {
		cfg.Policy, err = parsePolicy(policyVal)
		if err != nil {
			return nil, err
		}
	}

	schemaVal := unified.LookupPath(cue.ParsePath("schema"))
	if schemaVal.Exists() {
		cfg.Schema, err = parseSchema(schemaVal)
		if err != nil {
			return nil, err
		}
	}

	return &cfg, nil
}

// parseContextKeys accepts either the flat setting string or a list of
// groups and returns the normalized setting.
func parseContextKeys(v cue.Value) (string, error) {
	flatVal := v.LookupPath(cue.ParsePath("context_keys"))
	listVal := v.LookupPath(cue.ParsePath("contexts"))

	switch {
	case flatVal.Exists() && listVal.Exists():
		return "", &CompileError{
			Field:   "contexts",
			Message: "set either context_keys or contexts, not both",
			Pos:     listVal.Pos(),
		}
	case flatVal.Exists():
		s, err := flatVal.String()
		if err != nil {
			return "", formatCUEError(err)
		}
		return ir.FormatContextGroups(s), nil
	case listVal.Exists():
		iter, err := listVal.List()
		if err != nil {
			return "", formatCUEError(err)
		}
		var groups []string
		for iter.Next() {
			keys, err := stringList(iter.Value())
			if err != nil {
				return "", err
			}
			for _, k := range keys {
				if strings.ContainsAny(k, ",;") {
					return "", &CompileError{
						Field:   "contexts",
						Message: fmt.Sprintf("context key %q contains a separator", k),
						Pos:     iter.Value().Pos(),
					}
				}
			}
			groups = append(groups, strings.Join(keys, ","))
		}
		return ir.FormatContextGroups(strings.Join(groups, ";")), nil
	default:
		return "", nil
	}
}

func parsePolicy(v cue.Value) (ir.FieldPolicy, error) {
	var p ir.FieldPolicy
	sync, err := stringList(v.LookupPath(cue.ParsePath("sync")))
	if err != nil {
		return p, err
	}
	noSync, err := stringList(v.LookupPath(cue.ParsePath("no_sync")))
	if err != nil {
		return p, err
	}
	for _, k := range sync {
		p.Sync = append(p.Sync, ir.FieldKind(k))
	}
	for _, k := range noSync {
		p.NoSync = append(p.NoSync, ir.FieldKind(k))
	}
	return p, nil
}

func parseSchema(v cue.Value) (ir.Schema, error) {
	iter, err := v.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	schema := ir.Schema{}
	for iter.Next() {
		kind, err := iter.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		schema[iter.Label()] = ir.FieldKind(strings.ToLower(strings.TrimSpace(kind)))
	}
	return schema, nil
}

func optionalString(v cue.Value, field string) (string, bool, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return "", false, nil
	}
	s, err := fv.String()
	if err != nil {
		return "", false, formatCUEError(err)
	}
	return s, true, nil
}

// stringList returns nil for a missing value.
func stringList(v cue.Value) ([]string, error) {
	if !v.Exists() {
		return nil, nil
	}
	iter, err := v.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var out []string
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		out = append(out, strings.TrimSpace(s))
	}
	return out, nil
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	// Return first error with position info
	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
