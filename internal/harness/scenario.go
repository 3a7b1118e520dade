package harness

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/pipec/internal/ir"
)

// Scenario defines one conformance case.
type Scenario struct {
	// Name uniquely identifies the scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what the scenario validates.
	Description string `yaml:"description"`

	// Source is the file name of the configuration. Its extension picks the
	// input format. Empty means .gitlab-ci.yml.
	Source string `yaml:"source,omitempty"`

	// Config is the configuration text.
	Config string `yaml:"config"`

	// Files are the repository files local includes may reach, keyed by
	// path.
	Files map[string]string `yaml:"files,omitempty"`

	// Context is the trigger-time context. Nil means an empty context.
	Context *ir.PipelineContext `yaml:"context,omitempty"`

	// Expect is the required outcome.
	Expect *Expectation `yaml:"expect,omitempty"`

	// Assertions are further checks on the compiled jobs.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Expectation is the coarse outcome of a scenario.
type Expectation struct {
	Valid    *bool             `yaml:"valid,omitempty"`
	Jobs     []string          `yaml:"jobs,omitempty"`
	Errors   []DiagnosticMatch `yaml:"errors,omitempty"`
	Warnings []DiagnosticMatch `yaml:"warnings,omitempty"`
}

// DiagnosticMatch selects a diagnostic. Code is required; empty fields
// match anything.
type DiagnosticMatch struct {
	Code     string `yaml:"code"`
	Kind     string `yaml:"kind,omitempty"`
	Location string `yaml:"location,omitempty"`
	Message  string `yaml:"message,omitempty"`

	// Contains is a substring of the message.
	Contains string `yaml:"contains,omitempty"`
}

// Matches reports whether d is selected.
func (m DiagnosticMatch) Matches(d ir.Diagnostic) bool {
	switch {
	case m.Code != d.Code:
		return false
	case m.Kind != "" && m.Kind != string(d.Kind):
		return false
	case m.Location != "" && m.Location != d.Location:
		return false
	case m.Message != "" && m.Message != d.Message:
		return false
	case m.Contains != "" && !strings.Contains(d.Message, m.Contains):
		return false
	}
	return true
}

// String describes the match for failure messages.
func (m DiagnosticMatch) String() string {
	s := m.Code
	if m.Location != "" {
		s += " at " + m.Location
	}
	if m.Message != "" {
		s += fmt.Sprintf(" %q", m.Message)
	}
	if m.Contains != "" {
		s += fmt.Sprintf(" containing %q", m.Contains)
	}
	return s
}

// Assertion validates the compiled jobs.
type Assertion struct {
	// Type is one of job_present, job_absent, job_order, job_field,
	// include_order.
	Type string `yaml:"type"`

	// Job names the job (job_present, job_absent, job_field).
	Job string `yaml:"job,omitempty"`

	// Jobs is the expected relative order (job_order).
	Jobs []string `yaml:"jobs,omitempty"`

	// Field is a dotted path into the job's JSON form (job_field).
	Field string `yaml:"field,omitempty"`

	// Equals is the expected value (job_field). Mappings match as subsets.
	Equals any `yaml:"equals,omitempty"`

	// Includes is the expected merge order of include locations
	// (include_order).
	Includes []string `yaml:"includes,omitempty"`
}

// Assertion type constants.
const (
	AssertJobPresent   = "job_present"
	AssertJobAbsent    = "job_absent"
	AssertJobOrder     = "job_order"
	AssertJobField     = "job_field"
	AssertIncludeOrder = "include_order"
)

// LoadScenario reads and parses a scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML. Unknown fields are errors.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks required fields and assertion shapes.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return errors.New("name is required")
	}
	if s.Description == "" {
		return errors.New("description is required")
	}
	if s.Config == "" {
		return errors.New("config is required")
	}
	if s.Expect == nil && len(s.Assertions) == 0 {
		return errors.New("expect or assertions is required")
	}
	if s.Context != nil {
		if _, err := ir.ParseSchedulingMode(string(s.Context.Mode)); err != nil {
			return fmt.Errorf("context: %w", err)
		}
	}

	if s.Expect != nil {
		for i, m := range s.Expect.Errors {
			if m.Code == "" {
				return fmt.Errorf("expect.errors[%d]: code is required", i)
			}
		}
		for i, m := range s.Expect.Warnings {
			if m.Code == "" {
				return fmt.Errorf("expect.warnings[%d]: code is required", i)
			}
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, &a); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertJobPresent, AssertJobAbsent:
		if a.Job == "" {
			return fmt.Errorf("assertions[%d]: job is required for %s", index, a.Type)
		}
	case AssertJobOrder:
		if len(a.Jobs) < 2 {
			return fmt.Errorf("assertions[%d]: jobs needs at least two entries for job_order", index)
		}
	case AssertJobField:
		if a.Job == "" || a.Field == "" {
			return fmt.Errorf("assertions[%d]: job and field are required for job_field", index)
		}
	case AssertIncludeOrder:
		if len(a.Includes) == 0 {
			return fmt.Errorf("assertions[%d]: includes is required for include_order", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
