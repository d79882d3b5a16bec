package loader

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/dgallion1/fieldmap/internal/jsondoc"
	"github.com/dgallion1/fieldmap/internal/tree"
)

// maxAliasDepth stops alias expansion from looping on recursive anchors.
const maxAliasDepth = 256

// minAliasBudget is the number of values alias expansion may always
// produce, however small the input.
const minAliasBudget = 10_000

// ErrAliasBudget is returned when alias expansion would produce more values
// than the input size allows.
var ErrAliasBudget = errors.New("yaml aliases expand beyond the allowed size")

// YAMLLoader handles YAML files. Mapping order is preserved.
type YAMLLoader struct{}

func (l *YAMLLoader) Load(r io.Reader, filename string) (any, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read yaml: %w", err)
	}
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	if doc.Kind == 0 {
		return nil, errors.New("parse yaml: empty document")
	}
	e := &yamlExpander{budget: max(minAliasBudget, len(data))}
	return e.value(&doc, 0, false)
}

// yamlExpander converts a node tree, counting values produced through
// aliases against budget.
type yamlExpander struct {
	budget   int
	expanded int
}

func (e *yamlExpander) value(n *yaml.Node, depth int, aliased bool) (any, error) {
	if depth > maxAliasDepth {
		return nil, &tree.DepthError{Limit: maxAliasDepth, At: fmt.Sprintf("line %d", n.Line)}
	}
	if aliased {
		e.expanded++
		if e.expanded > e.budget {
			return nil, fmt.Errorf("line %d: %w (%d values)", n.Line, ErrAliasBudget, e.budget)
		}
	}

	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return nil, nil
		}
		return e.value(n.Content[0], depth+1, aliased)

	case yaml.AliasNode:
		return e.value(n.Alias, depth+1, true)

	case yaml.MappingNode:
		obj := jsondoc.Object{}
		for i := 0; i+1 < len(n.Content); i += 2 {
			k, v := n.Content[i], n.Content[i+1]
			if k.Kind != yaml.ScalarNode {
				return nil, fmt.Errorf("line %d: mapping keys must be scalars", k.Line)
			}
			val, err := e.value(v, depth+1, aliased)
			if err != nil {
				return nil, err
			}
			obj.Set(k.Value, val)
		}
		return obj, nil

	case yaml.SequenceNode:
		arr := jsondoc.Array{}
		for _, c := range n.Content {
			val, err := e.value(c, depth+1, aliased)
			if err != nil {
				return nil, err
			}
			arr = append(arr, val)
		}
		return arr, nil

	case yaml.ScalarNode:
		return yamlScalar(n)
	}
	return nil, fmt.Errorf("line %d: unsupported yaml node", n.Line)
}

func yamlScalar(n *yaml.Node) (any, error) {
	switch n.ShortTag() {
	case "!!null":
		return nil, nil
	case "!!bool":
		var b bool
		if err := n.Decode(&b); err != nil {
			return nil, err
		}
		return b, nil
	case "!!int":
		var i int64
		if err := n.Decode(&i); err != nil {
			return n.Value, nil
		}
		return json.Number(strconv.FormatInt(i, 10)), nil
	case "!!float":
		var f float64
		if err := n.Decode(&f); err != nil {
			return nil, err
		}
		if math.IsInf(f, 0) || math.IsNaN(f) {
			return n.Value, nil
		}
		return json.Number(strconv.FormatFloat(f, 'f', -1, 64)), nil
	default:
		return n.Value, nil
	}
}
