// Package rules decides, per job, whether it runs and with which
// attribute overrides.
//
// A rule holds condition clauses (if, changes, exists) that must all hold,
// plus the attributes it supplies when it matches. Rules are tried in
// order; the first match wins and later rules are never evaluated. A rule
// without conditions always matches. When nothing matches the job is
// excluded.
package rules

import (
	"fmt"
	"strings"
)

// Changes is a `changes:` clause.
type Changes struct {
	Paths []string

	// CompareTo names the ref the diff is taken against. Empty means the
	// pipeline's own diff.
	CompareTo string
}

// Exists is an `exists:` clause.
type Exists struct {
	Paths []string
}

// Rule is one item of a `rules:` list.
type Rule struct {
	If      string
	Changes *Changes
	Exists  *Exists

	// Variables override job variables when the rule matches.
	Variables map[string]string

	When         string
	AllowFailure *bool
	ExitCodes    []int
	StartIn      string
}

// Conditional reports whether the rule has any condition clause.
func (r Rule) Conditional() bool {
	return r.If != "" || r.Changes != nil || r.Exists != nil
}

// Summary renders the rule's deciding clauses, e.g.
// `if: $CI_COMMIT_BRANCH == "main"` or `when: always`.
func (r Rule) Summary() string {
	var parts []string
	if r.If != "" {
		parts = append(parts, "if: "+r.If)
	}
	if r.Changes != nil {
		s := "changes: [" + strings.Join(r.Changes.Paths, ", ") + "]"
		if r.Changes.CompareTo != "" {
			s += " compare_to: " + r.Changes.CompareTo
		}
		parts = append(parts, s)
	}
	if r.Exists != nil {
		parts = append(parts, "exists: ["+strings.Join(r.Exists.Paths, ", ")+"]")
	}
	if len(parts) == 0 {
		when := r.When
		if when == "" {
			when = "on_success"
		}
		return fmt.Sprintf("when: %s", when)
	}
	return strings.Join(parts, " && ")
}
