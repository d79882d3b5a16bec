// Package mapping holds the table of source-key to target-key renames.
//
// Keys are node property paths or bare names depending on the key mode the
// table was seeded with. An empty target marks a source key as unmapped.
// Targets are not validated: duplicates, empty values and values containing
// path separators are all stored as given.
package mapping

import (
	"sort"
	"strings"

	"github.com/dgallion1/fieldmap/internal/proptree"
)

// FormPrefix and FormSuffix wrap a source key in a submitted form field name.
const (
	FormPrefix = "Mappings["
	FormSuffix = "]"
)

// Entry is a single source to target pair.
type Entry struct {
	Source string `json:"source" yaml:"source"`
	Target string `json:"target" yaml:"target"`
}

// Store is an insertion-ordered mapping table. It is not safe for
// concurrent use.
type Store struct {
	order   []string
	targets map[string]string
}

// NewStore returns an empty table.
func NewStore() *Store {
	return &Store{targets: make(map[string]string)}
}

// FromEntries builds a table from entries; later duplicates win.
func FromEntries(entries []Entry) *Store {
	s := NewStore()
	for _, e := range entries {
		s.Set(e.Source, e.Target)
	}
	return s
}

// Set stores target under source, keeping the position of an existing key.
func (s *Store) Set(source, target string) {
	if s.targets == nil {
		s.targets = make(map[string]string)
	}
	if _, ok := s.targets[source]; !ok {
		s.order = append(s.order, source)
	}
	s.targets[source] = target
}

// Target returns the target for source and whether an entry exists.
func (s *Store) Target(source string) (string, bool) {
	t, ok := s.targets[source]
	return t, ok
}

// Len returns the number of entries.
func (s *Store) Len() int {
	return len(s.order)
}

// Entries returns the entries in insertion order.
func (s *Store) Entries() []Entry {
	out := make([]Entry, len(s.order))
	for i, k := range s.order {
		out[i] = Entry{Source: k, Target: s.targets[k]}
	}
	return out
}

// Mapped returns the number of entries with a non-empty target.
func (s *Store) Mapped() int {
	var n int
	for _, t := range s.targets {
		if t != "" {
			n++
		}
	}
	return n
}

// Reset removes every entry.
func (s *Store) Reset() {
	s.order = nil
	s.targets = make(map[string]string)
}

// Clone returns an independent copy.
func (s *Store) Clone() *Store {
	return FromEntries(s.Entries())
}

// Seed adds an empty entry for every node key, descendants included,
// leaving existing entries alone. Under proptree.ByName, nodes sharing a
// name share one entry. It returns the number of entries added.
func (s *Store) Seed(nodes []*proptree.Node, mode proptree.KeyMode) int {
	var added int
	proptree.Each(nodes, func(n *proptree.Node) {
		k := n.Key(mode)
		if _, ok := s.Target(k); ok {
			return
		}
		s.Set(k, "")
		added++
	})
	return added
}

// ReplaceFromSubmission discards every entry and rebuilds the table from
// submitted form fields. Fields named Mappings[<source>] store their value
// under <source>; any other field is stored under its own name. Fields are
// applied in name order. Only the first value of a field is used.
func (s *Store) ReplaceFromSubmission(form map[string][]string) {
	s.Reset()

	names := make([]string, 0, len(form))
	for name := range form {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		var value string
		if vs := form[name]; len(vs) > 0 {
			value = vs[0]
		}
		source, _ := UnwrapKey(name)
		s.Set(source, value)
	}
}

// WrapKey returns the form field name for source.
func WrapKey(source string) string {
	return FormPrefix + source + FormSuffix
}

// UnwrapKey strips the Mappings[...] wrapper from a form field name. It
// returns the field unchanged and false when the wrapper is absent.
func UnwrapKey(field string) (string, bool) {
	if len(field) < len(FormPrefix)+len(FormSuffix) ||
		!strings.HasPrefix(field, FormPrefix) || !strings.HasSuffix(field, FormSuffix) {
		return field, false
	}
	return field[len(FormPrefix) : len(field)-len(FormSuffix)], true
}
