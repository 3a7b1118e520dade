package ir

// CompileResult is the output of one compile pass.
//
// On success Jobs and Warnings are set and Errors is empty. On failure only
// Errors is set: a partial job graph is never returned next to errors.
type CompileResult struct {
	Jobs     []JobDefinition `json:"jobs,omitempty"`
	Warnings Diagnostics     `json:"warnings,omitempty"`
	Errors   Diagnostics     `json:"errors,omitempty"`

	// Includes lists the files merged into the document, in merge order.
	Includes []ResolvedInclude `json:"includes,omitempty"`
}

// Success builds a successful result. A nil jobs slice becomes empty.
func Success(jobs []JobDefinition, warnings Diagnostics, includes []ResolvedInclude) *CompileResult {
	if jobs == nil {
		jobs = []JobDefinition{}
	}
	return &CompileResult{Jobs: jobs, Warnings: warnings, Includes: includes}
}

// Failure builds a failed result holding only the error diagnostics.
func Failure(diags Diagnostics) *CompileResult {
	return &CompileResult{Errors: diags.Errors()}
}

// Valid reports whether the compile succeeded.
func (r *CompileResult) Valid() bool {
	return r != nil && len(r.Errors) == 0
}

// Err returns the errors as a single error value, or nil on success.
func (r *CompileResult) Err() error {
	if r.Valid() {
		return nil
	}
	return r.Errors
}

// Job returns the compiled job with the given name.
func (r *CompileResult) Job(name string) (JobDefinition, bool) {
	for _, j := range r.Jobs {
		if j.Name == name {
			return j, true
		}
	}
	return JobDefinition{}, false
}

// JobNames returns job names in output order.
func (r *CompileResult) JobNames() []string {
	names := make([]string, len(r.Jobs))
	for i, j := range r.Jobs {
		names[i] = j.Name
	}
	return names
}

// Canonical returns the RFC 8785 encoding of the result.
func (r *CompileResult) Canonical() ([]byte, error) {
	generic, err := ToCanonicalValue(r)
	if err != nil {
		return nil, err
	}
	return MarshalCanonical(generic)
}

// Fingerprint returns the content hash of the result. Identical compiles
// have identical fingerprints.
func (r *CompileResult) Fingerprint() (string, error) {
	data, err := r.Canonical()
	if err != nil {
		return "", err
	}
	return hashWithDomain(DomainCompileResult, data), nil
}
