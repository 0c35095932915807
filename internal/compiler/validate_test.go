package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/babel/internal/ir"
)

func codes(errs []ValidationError) []string {
	out := make([]string, len(errs))
	for i, e := range errs {
		out[i] = e.Code
	}
	return out
}

func TestValidateDefaultConfig(t *testing.T) {
	cfg := ir.DefaultConfig()
	cfg.ContextKeys = "web,de;intranet,intranet-de"
	cfg.SyncSlots = []string{"color"}

	assert.Empty(t, Validate(&cfg))
}

func TestValidateLinkSlot(t *testing.T) {
	cfg := ir.DefaultConfig()
	cfg.LinkSlot = " "
	assert.Equal(t, []string{ErrLinkSlotEmpty}, codes(Validate(&cfg)))

	cfg = ir.DefaultConfig()
	cfg.SyncSlots = []string{"color", ir.DefaultLinkSlot}
	errs := Validate(&cfg)
	assert.Equal(t, []string{ErrLinkSlotSynced}, codes(errs))
	assert.Equal(t, "sync_slots[1]", errs[0].Field)
}

func TestValidateDuplicateSyncSlot(t *testing.T) {
	cfg := ir.DefaultConfig()
	cfg.SyncSlots = []string{"color", "size", "color"}
	assert.Equal(t, []string{ErrDuplicateSyncSlot}, codes(Validate(&cfg)))
}

func TestValidateGroups(t *testing.T) {
	cfg := ir.DefaultConfig()
	cfg.ContextKeys = "web,de;de,fr;solo"

	errs := Validate(&cfg)
	assert.Equal(t, []string{ErrContextInManyGroups, ErrSingletonGroup}, codes(errs))
	assert.Contains(t, errs[0].Message, `"de"`)
	assert.Equal(t, "contexts[2]", errs[1].Field)
}

func TestValidatePolicy(t *testing.T) {
	cfg := ir.DefaultConfig()
	cfg.Policy = ir.FieldPolicy{
		Sync:   []ir.FieldKind{ir.KindInteger, ir.KindString},
		NoSync: []ir.FieldKind{ir.KindString},
	}
	cfg.Schema = ir.Schema{
		ir.FieldID:        "uuid",
		ir.FieldPageTitle: ir.KindString,
		ir.FieldParent:    ir.KindInteger,
		"geo":             "point",
	}

	errs := Validate(&cfg)
	assert.Equal(t, []string{ErrKindInBothSets, ErrUnknownFieldKind}, codes(errs))
	assert.Equal(t, "schema.geo", errs[1].Field)
}

func TestValidationErrorFormat(t *testing.T) {
	e := ValidationError{Field: "link_slot", Message: "required", Code: ErrLinkSlotEmpty}
	assert.Equal(t, "[E101] link_slot: required", e.Error())
}
