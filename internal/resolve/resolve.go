// Package resolve builds output documents from a mapping table and a
// flattened source document.
//
// The output takes the shape of the source: a mapped ObjectGroup becomes a
// nested object under its target key, built with the same table. At the top
// level only nodes with a rule are emitted. Below a mapped group, nodes
// without a rule keep their own name, and nodes whose rule has an empty
// target are dropped. Within one object the first node to claim a target
// key wins.
package resolve

import (
	"fmt"

	"github.com/dgallion1/fieldmap/internal/jsondoc"
	"github.com/dgallion1/fieldmap/internal/mapping"
	"github.com/dgallion1/fieldmap/internal/proptree"
)

// Options control rule lookup and value rendering.
type Options struct {
	// Mode selects the node field looked up in the table.
	Mode proptree.KeyMode
	// NameFallback looks a node up by name when Mode is ByPath and no
	// entry exists for its path.
	NameFallback bool
	// PreserveTypes emits decoded values instead of string renderings.
	PreserveTypes bool
	// MaxDepth bounds nesting; zero or less means unbounded.
	MaxDepth int
}

// DefaultOptions looks rules up by path with name fallback.
func DefaultOptions() Options {
	return Options{
		Mode:         proptree.ByPath,
		NameFallback: true,
		MaxDepth:     proptree.DefaultMaxDepth,
	}
}

// Stats counts what happened to each visited node.
type Stats struct {
	Applied   int `json:"applied"`   // renamed by a rule
	Carried   int `json:"carried"`   // kept under its own name inside a mapped group
	Dropped   int `json:"dropped"`   // rule with an empty target
	Collided  int `json:"collided"`  // target already written at that level
	Unmatched int `json:"unmatched"` // mapped entries no node used
}

// Build resolves store against nodes.
func Build(store *mapping.Store, nodes []*proptree.Node, opts Options) (jsondoc.Object, error) {
	out, _, err := BuildWithStats(store, nodes, opts)
	return out, err
}

// BuildWithStats is Build that also reports Stats.
func BuildWithStats(store *mapping.Store, nodes []*proptree.Node, opts Options) (jsondoc.Object, Stats, error) {
	b := &builder{
		store: store,
		opts:  opts,
		used:  make(map[string]bool),
		stack: []*frame{{out: jsondoc.Object{}}},
	}
	if err := proptree.Walker(opts.MaxDepth).Walk(nodes, b); err != nil {
		return nil, Stats{}, fmt.Errorf("resolve: %w", err)
	}
	for _, e := range store.Entries() {
		if e.Target != "" && !b.used[e.Source] {
			b.stats.Unmatched++
		}
	}
	return b.stack[0].out, b.stats, nil
}

type frame struct {
	out    jsondoc.Object
	mapped bool
	target string
}

type builder struct {
	store *mapping.Store
	opts  Options
	used  map[string]bool
	stack []*frame
	stats Stats
}

func (b *builder) rule(n *proptree.Node) (string, bool) {
	key := n.Key(b.opts.Mode)
	if t, ok := b.store.Target(key); ok {
		b.used[key] = true
		return t, true
	}
	if b.opts.Mode == proptree.ByPath && b.opts.NameFallback {
		if t, ok := b.store.Target(n.Name); ok {
			b.used[n.Name] = true
			return t, true
		}
	}
	return "", false
}

func (b *builder) Enter(n *proptree.Node, _ int) (bool, error) {
	top := b.stack[len(b.stack)-1]

	target, ok := b.rule(n)
	switch {
	case !ok && !top.mapped:
		return false, nil
	case !ok:
		target = n.Name
	case target == "":
		b.stats.Dropped++
		return false, nil
	}

	if top.out.Has(target) {
		b.stats.Collided++
		return false, nil
	}
	if ok {
		b.stats.Applied++
	} else {
		b.stats.Carried++
	}

	if len(n.Children) > 0 {
		b.stack = append(b.stack, &frame{out: jsondoc.Object{}, mapped: true, target: target})
		return true, nil
	}
	top.out = append(top.out, jsondoc.Member{Key: target, Value: b.value(n)})
	return false, nil
}

func (b *builder) Leave(_ *proptree.Node, _ int) error {
	f := b.stack[len(b.stack)-1]
	b.stack = b.stack[:len(b.stack)-1]
	parent := b.stack[len(b.stack)-1]
	parent.out = append(parent.out, jsondoc.Member{Key: f.target, Value: f.out})
	return nil
}

// value picks what a leaf emits. With PreserveTypes a childless object
// group emits its raw {} rather than the "Object" label.
func (b *builder) value(n *proptree.Node) any {
	if b.opts.PreserveTypes {
		return n.Raw
	}
	return n.Value
}
