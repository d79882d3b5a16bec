package proptree

import (
	"fmt"
	"strings"

	"github.com/dgallion1/fieldmap/internal/jsondoc"
	"github.com/dgallion1/fieldmap/internal/tree"
)

// DefaultMaxDepth bounds nesting when no limit is configured.
const DefaultMaxDepth = 64

// Options tune flattening.
type Options struct {
	// IndexArrays qualifies the paths of array elements with their
	// position, e.g. "items[0].id". Names are unaffected.
	IndexArrays bool
	// MaxDepth bounds nesting; exceeding it returns tree.ErrDepthExceeded.
	// Zero or less means unbounded.
	MaxDepth int
}

// DefaultOptions indexes arrays and bounds depth at DefaultMaxDepth.
func DefaultOptions() Options {
	return Options{IndexArrays: true, MaxDepth: DefaultMaxDepth}
}

// Flatten converts doc into property nodes in document order. A doc that
// is not an object yields no nodes.
func Flatten(doc any, opts Options) ([]*Node, error) {
	obj, ok := doc.(jsondoc.Object)
	if !ok {
		return []*Node{}, nil
	}

	root := &Node{Kind: KindObjectGroup, Children: []*Node{}}
	f := &flattener{opts: opts, stack: []*Node{root}}
	w := tree.Walker[field]{
		Children: f.children,
		MaxDepth: opts.MaxDepth,
		Label:    func(fl field) string { return fl.path },
	}
	if err := w.Walk(memberFields(obj, ""), f); err != nil {
		return nil, fmt.Errorf("flatten: %w", err)
	}
	return root.Children, nil
}

// field is one object member in flattening context.
type field struct {
	parent string
	path   string
	key    string
	value  any
}

// objectPath is the path of the object context holding the field: the
// field's own path for top-level members, the parent path otherwise.
func (fl field) objectPath() string {
	if fl.parent == "" {
		return fl.key
	}
	return fl.parent
}

func joinPath(parent, key string) string {
	if parent == "" {
		return key
	}
	return parent + "." + key
}

func memberFields(obj jsondoc.Object, parent string) []field {
	out := make([]field, 0, len(obj))
	for _, m := range obj {
		out = append(out, field{
			parent: parent,
			path:   joinPath(parent, m.Key),
			key:    m.Key,
			value:  m.Value,
		})
	}
	return out
}

type flattener struct {
	opts  Options
	stack []*Node
}

func (f *flattener) children(fl field) []field {
	switch v := fl.value.(type) {
	case jsondoc.Object:
		return memberFields(v, fl.path)
	case jsondoc.Array:
		var out []field
		for i, el := range v {
			obj, ok := el.(jsondoc.Object)
			if !ok {
				continue
			}
			prefix := fl.path
			if f.opts.IndexArrays {
				prefix = fmt.Sprintf("%s[%d]", fl.path, i)
			}
			out = append(out, memberFields(obj, prefix)...)
		}
		return out
	}
	return nil
}

func (f *flattener) Enter(fl field, _ int) (bool, error) {
	top := f.stack[len(f.stack)-1]

	switch v := fl.value.(type) {
	case jsondoc.Object:
		n := &Node{
			ObjectPath:   fl.path,
			PropertyPath: fl.path,
			Name:         fl.key,
			Kind:         KindObjectGroup,
			DeclaredType: jsondoc.TypeOf(v),
			Value:        ObjectMarker,
			Children:     []*Node{},
			Raw:          v,
		}
		top.Children = append(top.Children, n)
		f.stack = append(f.stack, n)
		return true, nil

	case jsondoc.Array:
		if !isStringArray(v) {
			// Elements are spliced into the current level.
			return true, nil
		}
		parts := make([]string, len(v))
		for i, el := range v {
			parts[i] = jsondoc.Render(el)
		}
		top.Children = append(top.Children, &Node{
			ObjectPath:   fl.objectPath(),
			PropertyPath: fl.path,
			Name:         fl.key,
			Kind:         KindStringArray,
			DeclaredType: jsondoc.TypeOf(v),
			Value:        strings.Join(parts, ArraySeparator),
			Raw:          v,
		})
		return false, nil

	default:
		top.Children = append(top.Children, &Node{
			ObjectPath:   fl.objectPath(),
			PropertyPath: fl.path,
			Name:         fl.key,
			Kind:         KindScalar,
			DeclaredType: jsondoc.TypeOf(v),
			Value:        jsondoc.Render(v),
			Raw:          v,
		})
		return false, nil
	}
}

func (f *flattener) Leave(fl field, _ int) error {
	if _, ok := fl.value.(jsondoc.Object); ok {
		f.stack = f.stack[:len(f.stack)-1]
	}
	return nil
}

// isStringArray reports whether arr is non-empty and starts with a string.
// Later elements are not inspected.
func isStringArray(arr jsondoc.Array) bool {
	if len(arr) == 0 {
		return false
	}
	_, ok := arr[0].(string)
	return ok
}
