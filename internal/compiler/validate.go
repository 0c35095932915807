package compiler

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/babel/internal/ir"
)

// Validation error codes (E100-E199)
const (
	ErrLinkSlotEmpty       = "E101" // link slot name is required
	ErrLinkSlotSynced      = "E102" // link slot listed as a sync slot
	ErrDuplicateSyncSlot   = "E103" // sync slot listed twice
	ErrContextInManyGroups = "E104" // context key appears in more than one group
	ErrSingletonGroup      = "E105" // group with one context links nothing
	ErrKindInBothSets      = "E106" // kind listed as sync and no-sync
	ErrUnknownFieldKind    = "E107" // schema field kind outside the policy
	ErrMarkerEmpty         = "E108" // translation pending marker is required
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks a compiled configuration. Returns all errors found (does
// not fail-fast). ErrSingletonGroup is advisory: the engine runs, but the
// lone context can never be linked.
func Validate(cfg *ir.Config) []ValidationError {
	var errs []ValidationError

	linkSlot := strings.TrimSpace(cfg.LinkSlot)
	if linkSlot == "" {
		errs = append(errs, ValidationError{
			Field:   "link_slot",
			Message: "link slot name is required",
			Code:    ErrLinkSlotEmpty,
		})
	}
	if strings.TrimSpace(cfg.TranslationPending) == "" {
		errs = append(errs, ValidationError{
			Field:   "translation_pending",
			Message: "translation pending marker is required",
			Code:    ErrMarkerEmpty,
		})
	}

	seen := make(map[string]bool)
	for i, slot := range cfg.SyncSlots {
		if slot == linkSlot && linkSlot != "" {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("sync_slots[%d]", i),
				Message: fmt.Sprintf("link slot %q cannot be synchronized", slot),
				Code:    ErrLinkSlotSynced,
			})
		}
		if seen[slot] {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("sync_slots[%d]", i),
				Message: fmt.Sprintf("duplicate sync slot: %q", slot),
				Code:    ErrDuplicateSyncSlot,
			})
		}
		seen[slot] = true
	}

	errs = append(errs, validateGroups(cfg.ContextKeys)...)
	errs = append(errs, validatePolicy(cfg.Policy, cfg.Schema)...)
	return errs
}

func validateGroups(setting string) []ValidationError {
	var errs []ValidationError
	owner := make(map[string]int)
	for i, group := range strings.Split(ir.FormatContextGroups(setting), ";") {
		if group == "" {
			continue
		}
		keys := strings.Split(group, ",")
		if len(keys) == 1 {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("contexts[%d]", i),
				Message: fmt.Sprintf("group %q has a single context", group),
				Code:    ErrSingletonGroup,
			})
		}
		for _, k := range keys {
			if prev, ok := owner[k]; ok {
				errs = append(errs, ValidationError{
					Field:   fmt.Sprintf("contexts[%d]", i),
					Message: fmt.Sprintf("context %q already belongs to group %d", k, prev),
					Code:    ErrContextInManyGroups,
				})
				continue
			}
			owner[k] = i
		}
	}
	return errs
}

func validatePolicy(p ir.FieldPolicy, schema ir.Schema) []ValidationError {
	var errs []ValidationError
	for _, kind := range p.Sync {
		if slices.Contains(p.NoSync, kind) {
			errs = append(errs, ValidationError{
				Field:   "policy",
				Message: fmt.Sprintf("kind %q is both synced and not synced", kind),
				Code:    ErrKindInBothSets,
			})
		}
	}
	for _, name := range schema.Names() {
		if name == ir.FieldID || name == ir.FieldContextKey {
			continue
		}
		kind := schema[name]
		if !p.Syncs(kind) && !p.Skips(kind) {
			errs = append(errs, ValidationError{
				Field:   "schema." + name,
				Message: fmt.Sprintf("kind %q is not classified by the field policy", kind),
				Code:    ErrUnknownFieldKind,
			})
		}
	}
	return errs
}
