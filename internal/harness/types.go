package harness

import "github.com/roach88/pipec/internal/ir"

// Result is the outcome of one scenario.
type Result struct {
	// Pass is true when every expectation and assertion held.
	Pass bool `json:"pass"`

	// Errors describes each failed expectation or assertion.
	Errors []string `json:"errors,omitempty"`

	// Compile is the compiler output the checks ran against.
	Compile *ir.CompileResult `json:"compile"`
}

// NewResult creates a passing result for compiled.
func NewResult(compiled *ir.CompileResult) *Result {
	return &Result{
		Pass:    true,
		Errors:  []string{},
		Compile: compiled,
	}
}

// AddError records a failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
