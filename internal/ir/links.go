package ir

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Link string separators: "web:1;de:4;fr:10".
const (
	pairSeparator  = ";"
	fieldSeparator = ":"
)

// ErrMalformedLinkEntry is matched by every *MalformedLinkError.
var ErrMalformedLinkEntry = errors.New("malformed link entry")

// MalformedLinkError reports a pair of a serialized link string that cannot
// be decoded.
type MalformedLinkError struct {
	Entry  string // Offending pair as found in the input
	Reason string
}

func (e *MalformedLinkError) Error() string {
	return fmt.Sprintf("malformed link entry %q: %s", e.Entry, e.Reason)
}

// Is makes errors.Is(err, ErrMalformedLinkEntry) match.
func (e *MalformedLinkError) Is(target error) bool {
	return target == ErrMalformedLinkEntry
}

// LinkSet maps a context key to the replica holding that context's version
// of the content. Every member of an equivalence group stores an identical
// copy of the full set.
type LinkSet map[string]int64

// Namespaces returns the context keys in sorted order.
func (ls LinkSet) Namespaces() []string {
	keys := make([]string, 0, len(ls))
	for k := range ls {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// IDs returns the replica ids ordered by their context key.
func (ls LinkSet) IDs() []int64 {
	ids := make([]int64, 0, len(ls))
	for _, ns := range ls.Namespaces() {
		ids = append(ids, ls[ns])
	}
	return ids
}

// NamespaceOf returns the context key that points at id.
func (ls LinkSet) NamespaceOf(id int64) (string, bool) {
	for _, ns := range ls.Namespaces() {
		if ls[ns] == id {
			return ns, true
		}
	}
	return "", false
}

// Clone returns a copy. Cloning nil yields nil.
func (ls LinkSet) Clone() LinkSet {
	if ls == nil {
		return nil
	}
	out := make(LinkSet, len(ls))
	for k, v := range ls {
		out[k] = v
	}
	return out
}

// Without returns a copy with the entry for ns removed.
func (ls LinkSet) Without(ns string) LinkSet {
	out := ls.Clone()
	if out == nil {
		out = LinkSet{}
	}
	delete(out, ns)
	return out
}

// Equal reports whether both sets hold the same pairs.
func (ls LinkSet) Equal(other LinkSet) bool {
	if len(ls) != len(other) {
		return false
	}
	for k, v := range ls {
		if ov, ok := other[k]; !ok || ov != v {
			return false
		}
	}
	return true
}

// DecodeLinks parses a serialized link string. The empty string decodes to
// an empty, non-nil set. When a context key occurs twice the last pair wins.
func DecodeLinks(s string) (LinkSet, error) {
	links := LinkSet{}
	if strings.TrimSpace(s) == "" {
		return links, nil
	}

	for _, pair := range strings.Split(s, pairSeparator) {
		ns, rawID, found := strings.Cut(pair, fieldSeparator)
		if !found {
			return nil, &MalformedLinkError{Entry: pair, Reason: "missing ':' separator"}
		}
		ns = NormalizeNamespace(ns)
		if ns == "" {
			return nil, &MalformedLinkError{Entry: pair, Reason: "empty context key"}
		}
		id, err := strconv.ParseInt(strings.TrimSpace(rawID), 10, 64)
		if err != nil {
			return nil, &MalformedLinkError{Entry: pair, Reason: "replica id is not an integer"}
		}
		links[ns] = id
	}
	return links, nil
}

// EncodeLinks serializes a set with pairs sorted by context key.
// A nil set is "not applicable" and reports ok=false; an empty set encodes
// to "".
func EncodeLinks(ls LinkSet) (encoded string, ok bool) {
	if ls == nil {
		return "", false
	}
	pairs := make([]string, 0, len(ls))
	for _, ns := range ls.Namespaces() {
		pairs = append(pairs, ns+fieldSeparator+strconv.FormatInt(ls[ns], 10))
	}
	return strings.Join(pairs, pairSeparator), true
}

// NormalizeNamespace trims and NFC-normalizes a context key so that keys
// typed on different systems compare equal.
func NormalizeNamespace(ns string) string {
	return norm.NFC.String(strings.TrimSpace(ns))
}
