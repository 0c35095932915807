package ir

import (
	"errors"
	"slices"
)

// ErrNotFound is returned (wrapped) by hosts when a replica does not exist.
var ErrNotFound = errors.New("not found")

// Core replica attribute names.
const (
	FieldID          = "id"
	FieldContextKey  = "context_key"
	FieldParent      = "parent"
	FieldMenuIndex   = "menuindex"
	FieldIsFolder    = "isfolder"
	FieldPageTitle   = "pagetitle"
	FieldPublished   = "published"
	FieldPublishedOn = "publishedon"
	FieldPublishedBy = "publishedby"
	FieldDeleted     = "deleted"
	FieldDeletedOn   = "deletedon"
	FieldDeletedBy   = "deletedby"
	FieldCreatedBy   = "createdby"
	FieldCreatedOn   = "createdon"
	FieldEditedBy    = "editedby"
	FieldEditedOn    = "editedon"
)

// Replica is one content item living in exactly one context. The engine
// borrows replicas for a single pass; the host persists them.
type Replica struct {
	ID        int64  `json:"id"`
	Namespace string `json:"context_key"`
	Parent    int64  `json:"parent"`
	Order     int64  `json:"menuindex"`
	IsFolder  bool   `json:"isfolder"`

	// Fields holds every other attribute, keyed by attribute name.
	Fields Object `json:"fields"`
}

// Get returns an attribute by name. Missing attributes are Null.
func (r *Replica) Get(name string) Value {
	switch name {
	case FieldID:
		return Int(r.ID)
	case FieldContextKey:
		return String(r.Namespace)
	case FieldParent:
		return Int(r.Parent)
	case FieldMenuIndex:
		return Int(r.Order)
	case FieldIsFolder:
		return Bool(r.IsFolder)
	}
	if v, ok := r.Fields[name]; ok && v != nil {
		return v
	}
	return Null{}
}

// Set assigns an attribute by name. Core columns are coerced to their Go
// types; a value that cannot be coerced leaves the column unchanged and
// reports false.
func (r *Replica) Set(name string, v Value) bool {
	switch name {
	case FieldID, FieldParent, FieldMenuIndex:
		n, ok := AsInt(v)
		if !ok {
			if _, null := v.(Null); !null {
				return false
			}
			n = 0
		}
		switch name {
		case FieldID:
			r.ID = n
		case FieldParent:
			r.Parent = n
		default:
			r.Order = n
		}
		return true
	case FieldContextKey:
		s, ok := v.(String)
		if !ok {
			return false
		}
		r.Namespace = NormalizeNamespace(string(s))
		return true
	case FieldIsFolder:
		n, ok := AsInt(v)
		if !ok {
			return false
		}
		r.IsFolder = n != 0
		return true
	}
	if r.Fields == nil {
		r.Fields = Object{}
	}
	r.Fields[name] = v
	return true
}

// Clone returns a deep copy.
func (r *Replica) Clone() *Replica {
	out := *r
	out.Fields = r.Fields.Clone()
	return &out
}

// NodeDescriptor is one entry of a host reorder request. Absent fields are
// nil; such nodes are ignored by the sort coordinator.
type NodeDescriptor struct {
	ID      *int64  `json:"id,omitempty" yaml:"id,omitempty"`
	Parent  *int64  `json:"parent,omitempty" yaml:"parent,omitempty"`
	Order   *int64  `json:"order,omitempty" yaml:"order,omitempty"`
	Context *string `json:"context,omitempty" yaml:"context,omitempty"`
}

// Complete reports whether all four fields are present.
func (n NodeDescriptor) Complete() bool {
	return n.ID != nil && n.Parent != nil && n.Order != nil && n.Context != nil
}

// Node builds a complete descriptor.
func Node(id, parent, order int64, context string) NodeDescriptor {
	return NodeDescriptor{ID: &id, Parent: &parent, Order: &order, Context: &context}
}

// SlotMatch is one hit of a substring search over slot values.
type SlotMatch struct {
	ReplicaID int64
	Value     string
}

// InvalidateOptions controls a path-scoped cache invalidation.
type InvalidateOptions struct {
	DeleteTop  bool
	SkipDirs   bool
	Extensions []string
}

// FieldKind is the declared value kind of a host attribute.
type FieldKind string

// Kinds known to the default policy.
const (
	KindDatetime  FieldKind = "datetime"
	KindTimestamp FieldKind = "timestamp"
	KindDate      FieldKind = "date"
	KindTime      FieldKind = "time"
	KindBoolean   FieldKind = "boolean"
	KindInteger   FieldKind = "integer"
	KindInt       FieldKind = "int"
	KindFloat     FieldKind = "float"
	KindString    FieldKind = "string"
	KindPassword  FieldKind = "password"
	KindArray     FieldKind = "array"
	KindJSON      FieldKind = "json"
)

// FieldPolicy classifies attribute kinds. A kind listed in neither set is a
// schema drift and must be reported, never silently skipped.
type FieldPolicy struct {
	Sync   []FieldKind `json:"sync"`
	NoSync []FieldKind `json:"no_sync"`
}

// DefaultFieldPolicy syncs scalar kinds and leaves free text and structured
// values alone.
func DefaultFieldPolicy() FieldPolicy {
	return FieldPolicy{
		Sync: []FieldKind{
			KindDatetime, KindTimestamp, KindDate, KindTime,
			KindBoolean, KindInteger, KindInt, KindFloat,
		},
		NoSync: []FieldKind{KindString, KindPassword, KindArray, KindJSON},
	}
}

// Syncs reports whether kind is in the sync set.
func (p FieldPolicy) Syncs(kind FieldKind) bool {
	return slices.Contains(p.Sync, kind)
}

// Skips reports whether kind is in the no-sync set.
func (p FieldPolicy) Skips(kind FieldKind) bool {
	return slices.Contains(p.NoSync, kind)
}

// Schema maps attribute names to their declared kinds.
type Schema map[string]FieldKind

// Names returns attribute names sorted.
func (s Schema) Names() []string {
	names := make([]string, 0, len(s))
	for k := range s {
		names = append(names, k)
	}
	slices.Sort(names)
	return names
}

// DefaultSchema describes the attributes of a stock content resource.
func DefaultSchema() Schema {
	return Schema{
		FieldID:          KindInteger,
		FieldContextKey:  KindString,
		FieldParent:      KindInteger,
		FieldMenuIndex:   KindInteger,
		FieldIsFolder:    KindBoolean,
		FieldPageTitle:   KindString,
		"longtitle":      KindString,
		"description":    KindString,
		"alias":          KindString,
		"content":        KindString,
		"template":       KindInteger,
		"hidemenu":       KindBoolean,
		"searchable":     KindBoolean,
		"cacheable":      KindBoolean,
		"richtext":       KindBoolean,
		"pub_date":       KindTimestamp,
		"unpub_date":     KindTimestamp,
		"properties":     KindJSON,
		FieldPublished:   KindBoolean,
		FieldPublishedOn: KindTimestamp,
		FieldPublishedBy: KindInteger,
		FieldDeleted:     KindBoolean,
		FieldDeletedOn:   KindTimestamp,
		FieldDeletedBy:   KindInteger,
		FieldCreatedBy:   KindInteger,
		FieldCreatedOn:   KindTimestamp,
		FieldEditedBy:    KindInteger,
		FieldEditedOn:    KindTimestamp,
	}
}
