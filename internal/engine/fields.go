package engine

import (
	"errors"

	"github.com/roach88/babel/internal/ir"
)

// ValidateSchema classifies every attribute of schema against policy and
// returns the names of the attributes to synchronize, sorted.
//
// id and context_key are never synchronized whatever their kind. An
// attribute whose kind is in neither policy set is excluded and reported;
// the returned error joins one UnknownFieldKind EngineError per such
// attribute. The field list is valid even when err is non-nil.
func ValidateSchema(schema ir.Schema, policy ir.FieldPolicy) ([]string, error) {
	var (
		fields []string
		errs   []error
	)
	for _, name := range schema.Names() {
		if name == ir.FieldID || name == ir.FieldContextKey {
			continue
		}
		kind := schema[name]
		switch {
		case policy.Syncs(kind):
			fields = append(fields, name)
		case policy.Skips(kind):
		default:
			errs = append(errs, NewUnknownFieldKindError(name, kind))
		}
	}
	return fields, errors.Join(errs...)
}
