// Package proptree flattens JSON documents into property nodes.
//
// Every object member becomes a Node. Nested objects become ObjectGroup
// nodes carrying their own flattened children; arrays whose first element
// is a string collapse into one StringArray node; other arrays are
// flattened element by element into the enclosing level, with no node of
// their own. Scalars become Scalar nodes.
package proptree

import (
	"fmt"

	"github.com/dgallion1/fieldmap/internal/tree"
)

// Kind records which flattening branch produced a node.
type Kind int

const (
	KindScalar Kind = iota
	KindObjectGroup
	KindStringArray
)

var kindNames = [...]string{
	KindScalar:      "Scalar",
	KindObjectGroup: "ObjectGroup",
	KindStringArray: "StringArray",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(text []byte) error {
	for i, name := range kindNames {
		if name == string(text) {
			*k = Kind(i)
			return nil
		}
	}
	return fmt.Errorf("unknown node kind %q", text)
}

const (
	// ObjectMarker is the rendered value of an ObjectGroup node.
	ObjectMarker = "Object"
	// ArraySeparator joins the elements of a StringArray node.
	ArraySeparator = ", "
)

// Node is one discovered property.
type Node struct {
	ObjectPath   string  `json:"objectPath"`
	PropertyPath string  `json:"propertyPath"`
	Name         string  `json:"name"`
	Kind         Kind    `json:"kind"`
	DeclaredType string  `json:"declaredType"`
	Value        string  `json:"value"`
	Children     []*Node `json:"children,omitempty"`

	// Raw is the decoded value the node was built from.
	Raw any `json:"-"`
}

// KeyMode selects which node field identifies a property in a mapping.
type KeyMode int

const (
	ByPath KeyMode = iota
	ByName
)

func (m KeyMode) String() string {
	if m == ByName {
		return "name"
	}
	return "path"
}

// ParseKeyMode accepts "path" or "name".
func ParseKeyMode(s string) (KeyMode, error) {
	switch s {
	case "path", "":
		return ByPath, nil
	case "name":
		return ByName, nil
	}
	return ByPath, fmt.Errorf("unknown key mode %q (want path or name)", s)
}

// Key returns the node's identifier under mode.
func (n *Node) Key(mode KeyMode) string {
	if mode == ByName {
		return n.Name
	}
	return n.PropertyPath
}

// Walker returns a tree.Walker over nodes bounded by maxDepth.
func Walker(maxDepth int) tree.Walker[*Node] {
	return tree.Walker[*Node]{
		Children: func(n *Node) []*Node { return n.Children },
		MaxDepth: maxDepth,
		Label:    func(n *Node) string { return n.PropertyPath },
	}
}

// Each calls fn for every node depth-first, parents before children.
func Each(nodes []*Node, fn func(n *Node)) {
	_ = Walker(0).Walk(nodes, tree.Funcs[*Node]{
		EnterFunc: func(n *Node, _ int) (bool, error) {
			fn(n)
			return true, nil
		},
	})
}

// Count returns the number of nodes including descendants.
func Count(nodes []*Node) int {
	var n int
	Each(nodes, func(*Node) { n++ })
	return n
}

// Keys lists every node's key depth-first, without duplicates.
func Keys(nodes []*Node, mode KeyMode) []string {
	seen := make(map[string]bool)
	var keys []string
	Each(nodes, func(n *Node) {
		k := n.Key(mode)
		if seen[k] {
			return
		}
		seen[k] = true
		keys = append(keys, k)
	})
	return keys
}
