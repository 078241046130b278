package harness

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario is one declarative end-to-end case.
type Scenario struct {
	Name string `yaml:"name"`
	// Program is the DSL source under test.
	Program string `yaml:"program"`
	// Mode overrides the execution mode ("best-effort" default, "atomic").
	Mode string `yaml:"mode,omitempty"`
	// Bindings pre-seed the execution context. Values are strings; UUID-shaped
	// ones bind as entity references.
	Bindings map[string]string `yaml:"bindings,omitempty"`
	// CompileErrors, when non-empty, flips the scenario into a negative case:
	// compilation must fail with exactly these codes, in statement order.
	CompileErrors []string `yaml:"compile_errors,omitempty"`
	Expect        Expect   `yaml:"expect,omitempty"`
}

// Expect describes the required session outcome.
type Expect struct {
	Stored   int          `yaml:"stored"`
	Failed   int          `yaml:"failed"`
	Resolved int          `yaml:"resolved"`
	Steps    []StepExpect `yaml:"steps,omitempty"`
	// Entities asserts rows exist in the store after the session.
	Entities []EntityExpect `yaml:"entities,omitempty"`
	Links    int            `yaml:"links,omitempty"`
}

// StepExpect pins one step's verb and status.
type StepExpect struct {
	Verb   string `yaml:"verb"`
	Status string `yaml:"status"` // "ok" | "failed"
}

// EntityExpect asserts an entity of a type exists with the given attributes.
type EntityExpect struct {
	Type  string            `yaml:"type"`
	Attrs map[string]string `yaml:"attrs,omitempty"`
}

// LoadScenario reads one scenario YAML file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("parse scenario %s: %w", path, err)
	}
	if sc.Name == "" {
		return nil, fmt.Errorf("scenario %s: missing name", path)
	}
	if sc.Program == "" {
		return nil, fmt.Errorf("scenario %s: missing program", path)
	}
	return &sc, nil
}
