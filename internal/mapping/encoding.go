package mapping

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/dgallion1/fieldmap/internal/jsondoc"
	"github.com/dgallion1/fieldmap/internal/proptree"
)

// MarshalJSON encodes the table as an ordered object of source: target.
func (s *Store) MarshalJSON() ([]byte, error) {
	obj := make(jsondoc.Object, 0, s.Len())
	for _, e := range s.Entries() {
		obj = append(obj, jsondoc.Member{Key: e.Source, Value: e.Target})
	}
	return json.Marshal(obj)
}

// UnmarshalJSON decodes an object of source: target strings.
func (s *Store) UnmarshalJSON(data []byte) error {
	var obj jsondoc.Object
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	s.Reset()
	for _, m := range obj {
		switch v := m.Value.(type) {
		case string:
			s.Set(m.Key, v)
		case nil:
			s.Set(m.Key, "")
		default:
			return fmt.Errorf("mapping %q: target must be a string, got %s", m.Key, jsondoc.TypeOf(v))
		}
	}
	return nil
}

// MarshalYAML encodes the table as an ordered YAML mapping.
func (s *Store) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, e := range s.Entries() {
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: e.Source},
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: e.Target},
		)
	}
	return node, nil
}

// UnmarshalYAML decodes a YAML mapping of source: target. A null target is
// read as unmapped.
func (s *Store) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: mappings must be a mapping", value.Line)
	}
	s.Reset()
	for i := 0; i+1 < len(value.Content); i += 2 {
		k, v := value.Content[i], value.Content[i+1]
		if v.Kind != yaml.ScalarNode {
			return fmt.Errorf("line %d: target for %q must be a scalar", v.Line, k.Value)
		}
		target := v.Value
		if v.Tag == "!!null" {
			target = ""
		}
		s.Set(k.Value, target)
	}
	return nil
}

// FileVersion is the current mapping file version.
const FileVersion = "1"

// File is the on-disk form of a mapping table.
//
//	version: "1"
//	mode: path
//	mappings:
//	  name: fullName
//	  address: location
//	  address.city: ""
type File struct {
	Version  string `yaml:"version" json:"version"`
	Mode     string `yaml:"mode" json:"mode"`
	Mappings *Store `yaml:"mappings" json:"mappings"`
}

// NewFile wraps a table for export.
func NewFile(s *Store, mode proptree.KeyMode) *File {
	return &File{Version: FileVersion, Mode: mode.String(), Mappings: s}
}

// KeyMode returns the file's key mode.
func (f *File) KeyMode() (proptree.KeyMode, error) {
	return proptree.ParseKeyMode(f.Mode)
}

// ParseFile decodes a mapping file. JSON input is accepted since it is
// valid YAML.
func ParseFile(data []byte) (*File, error) {
	f := &File{}
	if err := yaml.Unmarshal(data, f); err != nil {
		return nil, fmt.Errorf("parse mapping file: %w", err)
	}
	if f.Version == "" {
		f.Version = FileVersion
	}
	if f.Version != FileVersion {
		return nil, fmt.Errorf("unsupported mapping file version %q", f.Version)
	}
	if _, err := f.KeyMode(); err != nil {
		return nil, err
	}
	if f.Mappings == nil {
		f.Mappings = NewStore()
	}
	return f, nil
}

// Marshal renders f as a YAML document.
func (f *File) Marshal() ([]byte, error) {
	return yaml.Marshal(f)
}
