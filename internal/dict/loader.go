package dict

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/halcyonfs/obdsl/internal/ast"
)

// fileFormat mirrors the dictionary YAML file:
//
//	attributes:
//	  - path: attr.identity.first_name
//	    type: string
//	  - path: attr.cbu.jurisdiction
//	    type: string
//	    default: "US"
type fileFormat struct {
	Attributes []attrEntry `yaml:"attributes"`
}

type attrEntry struct {
	ID          string `yaml:"id,omitempty"`
	Path        string `yaml:"path"`
	Type        string `yaml:"type"`
	Default     yaml.Node `yaml:"default,omitempty"`
	Description string `yaml:"description,omitempty"`
}

// Load reads a dictionary YAML file. Entries without an id get the
// deterministic UUIDv5 of their path.
func Load(path string) (*Dictionary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read dictionary: %w", err)
	}
	return Parse(data)
}

// Parse builds a dictionary from YAML bytes.
func Parse(data []byte) (*Dictionary, error) {
	var f fileFormat
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse dictionary: %w", err)
	}

	attrs := make([]Attribute, 0, len(f.Attributes))
	for i, e := range f.Attributes {
		a := Attribute{
			Path:     e.Path,
			Type:     e.Type,
			Description: e.Description,
		}
		if e.ID != "" {
			id, err := uuid.Parse(e.ID)
			if err != nil {
				return nil, fmt.Errorf("dictionary entry %d (%s): bad id: %w", i, e.Path, err)
			}
			a.ID = id
		}
		if !e.Default.IsZero() {
			v, err := decodeDefault(&e.Default)
			if err != nil {
				return nil, fmt.Errorf("dictionary entry %d (%s): %w", i, e.Path, err)
			}
			a.Default = v
		}
		attrs = append(attrs, a)
	}
	return New(attrs)
}

// decodeDefault converts a YAML scalar into an ast.Value.
func decodeDefault(n *yaml.Node) (ast.Value, error) {
	switch n.Tag {
	case "!!str":
		return ast.String(n.Value), nil
	case "!!bool":
		var b bool
		if err := n.Decode(&b); err != nil {
			return nil, err
		}
		return ast.Bool(b), nil
	case "!!int", "!!float":
		var f float64
		if err := n.Decode(&f); err != nil {
			return nil, err
		}
		return ast.Number(f), nil
	default:
		return nil, fmt.Errorf("unsupported default value tag %s", n.Tag)
	}
}
