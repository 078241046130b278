package vocab

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// File format:
//
//	version: "1.0"
//	domains:
//	  cbu:
//	    description: Client business units
//	    verbs:
//	      create:
//	        description: Create a client business unit
//	        behavior: crud
//	        crud: {operation: create, entity_type: cbu}
//	        args:
//	          - {name: name, type: string, required: true}
//	          - {name: jurisdiction, type: string, enum: [US, GB, LU, IE]}
//	        invocation_phrases: ["onboard a new client"]
//	        macro_phrases: ["new client"]
type fileFormat struct {
	Version string                  `yaml:"version"`
	Domains map[string]domainFormat `yaml:"domains"`
}

type domainFormat struct {
	Description string                `yaml:"description"`
	Verbs       map[string]verbFormat `yaml:"verbs"`
}

type verbFormat struct {
	Description       string    `yaml:"description"`
	Behavior          Behavior  `yaml:"behavior"`
	Crud              *CrudSpec `yaml:"crud,omitempty"`
	Handler           string    `yaml:"handler,omitempty"`
	Args              []ArgSpec `yaml:"args,omitempty"`
	InvocationPhrases []string  `yaml:"invocation_phrases,omitempty"`
	MacroPhrases      []string  `yaml:"macro_phrases,omitempty"`
}

// LoadDir loads every *.yaml/*.yml file in dir into one registry.
func LoadDir(dir string) (*Registry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read vocab dir: %w", err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := filepath.Ext(e.Name())
		if ext == ".yaml" || ext == ".yml" {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no verb schema files in %s", dir)
	}
	sort.Strings(files) // deterministic merge order

	var specs []VerbSpec
	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", f, err)
		}
		s, err := parseFile(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f, err)
		}
		specs = append(specs, s...)
	}
	return NewRegistry(specs)
}

// Parse builds a registry from a single YAML document.
func Parse(data []byte) (*Registry, error) {
	specs, err := parseFile(data)
	if err != nil {
		return nil, err
	}
	return NewRegistry(specs)
}

func parseFile(data []byte) ([]VerbSpec, error) {
	var f fileFormat
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse verb schema: %w", err)
	}

	var specs []VerbSpec
	// Sort domain and verb names for deterministic spec order.
	domains := make([]string, 0, len(f.Domains))
	for d := range f.Domains {
		domains = append(domains, d)
	}
	sort.Strings(domains)

	for _, dname := range domains {
		dom := f.Domains[dname]
		verbs := make([]string, 0, len(dom.Verbs))
		for v := range dom.Verbs {
			verbs = append(verbs, v)
		}
		sort.Strings(verbs)

		for _, vname := range verbs {
			vf := dom.Verbs[vname]
			spec := VerbSpec{
				Domain:            dname,
				Verb:              vname,
				Description:       vf.Description,
				Behavior:          vf.Behavior,
				Crud:              vf.Crud,
				HandlerID:         vf.Handler,
				Args:              vf.Args,
				InvocationPhrases: vf.InvocationPhrases,
				MacroPhrases:      vf.MacroPhrases,
			}
			if err := validateSpec(&spec); err != nil {
				return nil, err
			}
			specs = append(specs, spec)
		}
	}
	return specs, nil
}

func validateSpec(s *VerbSpec) error {
	switch s.Behavior {
	case BehaviorCrud:
		if s.Crud == nil {
			return fmt.Errorf("verb %s: behavior crud requires a crud block", s.FullName())
		}
	case BehaviorCustom:
		if s.HandlerID == "" {
			return fmt.Errorf("verb %s: behavior custom requires a handler id", s.FullName())
		}
	default:
		return fmt.Errorf("verb %s: unknown behavior %q", s.FullName(), s.Behavior)
	}

	seen := map[string]bool{}
	for _, a := range s.Args {
		if a.Name == "" {
			return fmt.Errorf("verb %s: argument with empty name", s.FullName())
		}
		if seen[a.Name] {
			return fmt.Errorf("verb %s: duplicate argument %q", s.FullName(), a.Name)
		}
		seen[a.Name] = true
		switch a.Type {
		case TypeString, TypeNumber, TypeBool, TypeUUID, TypeAttr, TypeList, TypeMap, TypeAny, "":
		default:
			return fmt.Errorf("verb %s: argument %q has unknown type %q", s.FullName(), a.Name, a.Type)
		}
	}
	return nil
}
