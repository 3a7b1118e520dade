package harness

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/roach88/pipec/internal/ir"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string

	// Jobs is the compiled job order, for context.
	Jobs []string
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)
	fmt.Fprintf(&buf, "  Jobs: %v", e.Jobs)
	return buf.String()
}

func assertJobPresent(compiled *ir.CompileResult, a Assertion) error {
	if _, ok := compiled.Job(a.Job); ok {
		return nil
	}
	return &AssertionError{
		Type:     AssertJobPresent,
		Expected: fmt.Sprintf("job %s in the pipeline", a.Job),
		Actual:   "not found",
		Jobs:     compiled.JobNames(),
	}
}

func assertJobAbsent(compiled *ir.CompileResult, a Assertion) error {
	if _, ok := compiled.Job(a.Job); !ok {
		return nil
	}
	return &AssertionError{
		Type:     AssertJobAbsent,
		Expected: fmt.Sprintf("job %s excluded", a.Job),
		Actual:   "present",
		Jobs:     compiled.JobNames(),
	}
}

// assertJobOrder checks relative order; other jobs may sit in between.
func assertJobOrder(compiled *ir.CompileResult, a Assertion) error {
	names := compiled.JobNames()
	position := make(map[string]int, len(names))
	for i, name := range names {
		position[name] = i
	}

	last := -1
	for _, name := range a.Jobs {
		pos, ok := position[name]
		if !ok {
			return &AssertionError{
				Type:     AssertJobOrder,
				Expected: fmt.Sprintf("jobs in order %v", a.Jobs),
				Actual:   fmt.Sprintf("job %s not found", name),
				Jobs:     names,
			}
		}
		if pos < last {
			return &AssertionError{
				Type:     AssertJobOrder,
				Expected: fmt.Sprintf("jobs in order %v", a.Jobs),
				Actual:   fmt.Sprintf("job %s appears too early", name),
				Jobs:     names,
			}
		}
		last = pos
	}
	return nil
}

func assertJobField(compiled *ir.CompileResult, a Assertion) error {
	job, ok := compiled.Job(a.Job)
	if !ok {
		return &AssertionError{
			Type:     AssertJobField,
			Expected: fmt.Sprintf("job %s with %s = %v", a.Job, a.Field, a.Equals),
			Actual:   "job not found",
			Jobs:     compiled.JobNames(),
		}
	}

	doc, err := jsonForm(job)
	if err != nil {
		return fmt.Errorf("job_field %s: %w", a.Job, err)
	}
	want, err := jsonForm(a.Equals)
	if err != nil {
		return fmt.Errorf("job_field %s: expected value: %w", a.Job, err)
	}

	got, found := lookup(doc, a.Field)
	if !found && want == nil {
		return nil
	}
	if !found || !valuesMatch(got, want) {
		actual := "field absent"
		if found {
			actual = fmt.Sprintf("%v", got)
		}
		return &AssertionError{
			Type:     AssertJobField,
			Expected: fmt.Sprintf("%s.%s = %v", a.Job, a.Field, want),
			Actual:   actual,
			Jobs:     compiled.JobNames(),
		}
	}
	return nil
}

func assertIncludeOrder(compiled *ir.CompileResult, a Assertion) error {
	got := make([]string, len(compiled.Includes))
	for i, inc := range compiled.Includes {
		got[i] = inc.Source.Location
	}
	if reflect.DeepEqual(got, a.Includes) {
		return nil
	}
	return &AssertionError{
		Type:     AssertIncludeOrder,
		Expected: fmt.Sprintf("includes %v", a.Includes),
		Actual:   fmt.Sprintf("includes %v", got),
		Jobs:     compiled.JobNames(),
	}
}

// jsonForm converts v to the generic value its JSON encoding decodes to,
// so that YAML expectations and compiled jobs compare alike.
func jsonForm(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("unmarshal: %w", err)
	}
	return out, nil
}

// lookup follows a dotted path. Numeric segments index arrays.
func lookup(doc any, path string) (any, bool) {
	cur := doc
	for _, seg := range strings.Split(path, ".") {
		switch node := cur.(type) {
		case map[string]any:
			next, ok := node[seg]
			if !ok {
				return nil, false
			}
			cur = next
		case []any:
			var i int
			if _, err := fmt.Sscanf(seg, "%d", &i); err != nil || i < 0 || i >= len(node) {
				return nil, false
			}
			cur = node[i]
		default:
			return nil, false
		}
	}
	return cur, true
}

// valuesMatch compares actual against expected. Expected mappings match
// as subsets; everything else must be equal.
func valuesMatch(actual, expected any) bool {
	want, ok := expected.(map[string]any)
	if !ok {
		return reflect.DeepEqual(actual, expected)
	}
	have, ok := actual.(map[string]any)
	if !ok {
		return false
	}
	for key, w := range want {
		h, exists := have[key]
		if !exists || !valuesMatch(h, w) {
			return false
		}
	}
	return true
}

// EvaluateAssertions evaluates every assertion and returns the failure
// messages.
func EvaluateAssertions(compiled *ir.CompileResult, assertions []Assertion) []string {
	var failures []string
	for i, a := range assertions {
		var failed error
		switch a.Type {
		case AssertJobPresent:
			failed = assertJobPresent(compiled, a)
		case AssertJobAbsent:
			failed = assertJobAbsent(compiled, a)
		case AssertJobOrder:
			failed = assertJobOrder(compiled, a)
		case AssertJobField:
			failed = assertJobField(compiled, a)
		case AssertIncludeOrder:
			failed = assertIncludeOrder(compiled, a)
		default:
			failed = fmt.Errorf("assertions[%d]: unknown assertion type %q", i, a.Type)
		}
		if failed != nil {
			failures = append(failures, failed.Error())
		}
	}
	return failures
}
