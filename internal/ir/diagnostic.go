package ir

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies a diagnostic by the compile stage that produced it.
type ErrorKind string

const (
	// KindSyntax: the raw text cannot be parsed at all. Short-circuits.
	KindSyntax ErrorKind = "SyntaxError"

	// KindStructural: unknown, misplaced or conflicting keys and wrong types.
	KindStructural ErrorKind = "StructuralError"

	// KindResolution: missing or unfetchable include, cycle, limits. Short-circuits.
	KindResolution ErrorKind = "ResolutionError"

	// KindInterpolation: an unresolvable placeholder expression.
	KindInterpolation ErrorKind = "InterpolationError"

	// KindRuleEvaluation: a malformed or unevaluable rule expression.
	KindRuleEvaluation ErrorKind = "RuleEvaluationError"

	// KindGraph: needs referencing unknown jobs, stage order, cycles.
	KindGraph ErrorKind = "GraphError"

	// KindWarning marks non-fatal diagnostics.
	KindWarning ErrorKind = "Warning"
)

// Severity of a diagnostic.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Diagnostic codes.
const (
	// Syntax (E001-E009)
	ErrSyntax        = "E001" // document cannot be parsed
	ErrDocumentShape = "E002" // document root is not a hash, or too many documents

	// Structural (E101-E199)
	ErrUnknownKey         = "E101" // key not allowed at this position
	ErrTypeMismatch       = "E102" // value has the wrong type
	ErrMissingRequiredKey = "E103" // required key absent
	ErrArrayOfHashes      = "E104" // array item is not a hash
	ErrConflictingKeys    = "E105" // keys cannot be used together
	ErrInvalidValue       = "E106" // value outside allowed set or range
	ErrExtends            = "E107" // extends base missing, circular or too deep
	ErrUnknownStage       = "E108" // job stage not declared in stages
	ErrNoVisibleJobs      = "E109" // jobs has no visible job

	// Resolution (E201-E299)
	ErrIncludeNotFound  = "E201" // included file does not exist
	ErrIncludeFetch     = "E202" // fetch failed
	ErrCircularInclude  = "E203" // include chain revisits a file
	ErrIncludeDepth     = "E204" // nesting depth limit exceeded
	ErrIncludeCount     = "E205" // total include count exceeded
	ErrIncludeInvalid   = "E206" // include directive malformed
	ErrHeaderInclude    = "E207" // header include source or content invalid
	ErrIncludeSyntax    = "E208" // included file cannot be parsed
	ErrIncludeCancelled = "E209" // resolution cancelled

	// Interpolation (E301-E399)
	ErrUnknownInterpolation = "E301" // unknown interpolation key or function
	ErrInvalidInput         = "E302" // input value rejected by its spec
	ErrCircularVariable     = "E303" // variables reference each other in a cycle
	ErrUnresolvedVariable   = "E304" // variable reference cannot be resolved

	// Rule evaluation (E401-E499)
	ErrExpressionSyntax = "E401" // if: expression does not parse
	ErrExpressionEval   = "E402" // if: expression cannot be evaluated
	ErrRulePattern      = "E403" // changes/exists glob is malformed

	// Graph (E501-E599)
	ErrUndefinedNeed     = "E501" // need names no job
	ErrNeedStageOrder    = "E502" // need sits in a later stage
	ErrNeedsCycle        = "E503" // needs graph has a cycle
	ErrNeedExcluded      = "E504" // need names a job excluded by rules
	ErrInvalidDependency = "E505" // dependency not in a prior stage or needs
	ErrCrossPipelineNeed = "E506" // cross-pipeline need names an unknown job

	// Warnings (W001-W099)
	WarnWorkflowFiltered   = "W001" // workflow:rules excluded the pipeline
	WarnNoJobs             = "W002" // every job was excluded by rules
	WarnDuplicatePipelines = "W003" // rules may create duplicate pipelines
)

// ErrInvalidPipeline is the sentinel every Diagnostics error unwraps to.
var ErrInvalidPipeline = errors.New("invalid pipeline configuration")

// Diagnostic is one located compile error or warning.
type Diagnostic struct {
	Kind     ErrorKind `json:"kind"`
	Code     string    `json:"code"`
	Severity Severity  `json:"severity"`
	Location string    `json:"location,omitempty"`
	Message  string    `json:"message"`
}

// Error implements the error interface.
func (d Diagnostic) Error() string {
	if d.Location != "" {
		return fmt.Sprintf("[%s] %s: %s", d.Code, d.Location, d.Message)
	}
	return fmt.Sprintf("[%s] %s", d.Code, d.Message)
}

// IsFatal reports whether the diagnostic short-circuits compilation.
func (d Diagnostic) IsFatal() bool {
	return d.Kind == KindSyntax || d.Kind == KindResolution
}

// NewError creates an error diagnostic.
func NewError(kind ErrorKind, code, location, format string, args ...any) Diagnostic {
	return Diagnostic{
		Kind:     kind,
		Code:     code,
		Severity: SeverityError,
		Location: location,
		Message:  fmt.Sprintf(format, args...),
	}
}

// NewWarning creates a warning diagnostic.
func NewWarning(code, location, format string, args ...any) Diagnostic {
	return Diagnostic{
		Kind:     KindWarning,
		Code:     code,
		Severity: SeverityWarning,
		Location: location,
		Message:  fmt.Sprintf(format, args...),
	}
}

// Diagnostics is a list of diagnostics usable as an error.
type Diagnostics []Diagnostic

// Error implements the error interface.
func (ds Diagnostics) Error() string {
	switch len(ds) {
	case 0:
		return ErrInvalidPipeline.Error()
	case 1:
		return ds[0].Error()
	}
	parts := make([]string, len(ds))
	for i, d := range ds {
		parts[i] = d.Error()
	}
	return fmt.Sprintf("%d errors: %s", len(ds), strings.Join(parts, "; "))
}

// Unwrap returns ErrInvalidPipeline so callers can use errors.Is.
func (ds Diagnostics) Unwrap() error {
	return ErrInvalidPipeline
}

// Errors returns the diagnostics with error severity.
func (ds Diagnostics) Errors() Diagnostics {
	var out Diagnostics
	for _, d := range ds {
		if d.Severity == SeverityError {
			out = append(out, d)
		}
	}
	return out
}

// Warnings returns the diagnostics with warning severity.
func (ds Diagnostics) Warnings() Diagnostics {
	var out Diagnostics
	for _, d := range ds {
		if d.Severity == SeverityWarning {
			out = append(out, d)
		}
	}
	return out
}

// HasErrors reports whether any diagnostic has error severity.
func (ds Diagnostics) HasErrors() bool {
	for _, d := range ds {
		if d.Severity == SeverityError {
			return true
		}
	}
	return false
}

// OfKind returns the diagnostics of the given kind.
func (ds Diagnostics) OfKind(kind ErrorKind) Diagnostics {
	var out Diagnostics
	for _, d := range ds {
		if d.Kind == kind {
			out = append(out, d)
		}
	}
	return out
}
