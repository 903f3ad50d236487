package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario names one unit document to run the pass over and the
// assertions the outcome must satisfy.
type Scenario struct {
	Name        string `yaml:"name"` // also names the golden file
	Description string `yaml:"description"`
	Unit        string `yaml:"unit"`              // YAML or CUE unit document
	Library     string `yaml:"library,omitempty"` // empty selects the embedded surface

	Assertions []Assertion `yaml:"assertions"`
}

// Assertion validates the outcome of the pass.
type Assertion struct {
	// Type specifies the assertion type:
	// - "no_wrappers": no wrapper type survives the pass
	// - "helper_called": a runtime helper is called (optionally exactly Count times)
	// - "param_count": a function has exactly Count value parameters
	// - "field_type": a field has the erased type Expect
	// - "accessor_order": every helper call ends with a getter then a setter
	// - "fails_with": the pass fails with error code Code
	Type string `yaml:"type"`

	// Helper is the helper operation, with or without the atomicfu_ prefix
	// (used by helper_called).
	Helper string `yaml:"helper,omitempty"`

	// Function is a simple or qualified function name (used by param_count).
	Function string `yaml:"function,omitempty"`

	// Field is a field name, optionally qualified as Class.field
	// (used by field_type).
	Field string `yaml:"field,omitempty"`

	// Expect is the expected type (used by field_type).
	Expect string `yaml:"expect,omitempty"`

	// Count is an expected number (used by helper_called and param_count).
	// Zero means "at least one" for helper_called.
	Count int `yaml:"count,omitempty"`

	// Code is the expected pass error code (used by fails_with).
	Code string `yaml:"code,omitempty"`
}

// Assertion type constants.
const (
	AssertNoWrappers    = "no_wrappers"
	AssertHelperCalled  = "helper_called"
	AssertParamCount    = "param_count"
	AssertFieldType     = "field_type"
	AssertAccessorOrder = "accessor_order"
	AssertFailsWith     = "fails_with"
)

// LoadScenario reads a scenario file. Unknown fields are rejected so a
// misspelled assertion key fails loudly; unit and library paths are
// resolved against the scenario's directory.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	base := filepath.Dir(path)
	scenario.Unit = resolvePath(base, scenario.Unit)
	scenario.Library = resolvePath(base, scenario.Library)

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

func resolvePath(base, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}

// required lists, per assertion type, the fields that must be set.
var required = map[string][]struct {
	field string
	set   func(*Assertion) bool
}{
	AssertNoWrappers:    nil,
	AssertAccessorOrder: nil,
	AssertHelperCalled:  {{"helper", func(a *Assertion) bool { return a.Helper != "" }}},
	AssertParamCount:    {{"function", func(a *Assertion) bool { return a.Function != "" }}},
	AssertFieldType: {
		{"field", func(a *Assertion) bool { return a.Field != "" }},
		{"expect", func(a *Assertion) bool { return a.Expect != "" }},
	},
	AssertFailsWith: {{"code", func(a *Assertion) bool { return a.Code != "" }}},
}

func validateScenario(s *Scenario) error {
	switch {
	case s.Name == "":
		return fmt.Errorf("name is required")
	case s.Description == "":
		return fmt.Errorf("description is required")
	case s.Unit == "":
		return fmt.Errorf("unit is required")
	case len(s.Assertions) == 0:
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for _, f := range []struct{ kind, path string }{{"unit", s.Unit}, {"library", s.Library}} {
		if f.path == "" {
			continue
		}
		if _, err := os.Stat(f.path); os.IsNotExist(err) {
			return fmt.Errorf("%s file not found: %s", f.kind, f.path)
		}
	}

	for i := range s.Assertions {
		a := &s.Assertions[i]
		if a.Type == "" {
			return fmt.Errorf("assertions[%d]: type is required", i)
		}
		fields, ok := required[a.Type]
		if !ok {
			return fmt.Errorf("assertions[%d]: unknown assertion type %q", i, a.Type)
		}
		for _, f := range fields {
			if !f.set(a) {
				return fmt.Errorf("assertions[%d]: %s is required for %s", i, f.field, a.Type)
			}
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative", i)
		}
		if a.Type == AssertFailsWith && len(s.Assertions) > 1 {
			return fmt.Errorf("fails_with cannot be combined with other assertions")
		}
	}
	return nil
}
