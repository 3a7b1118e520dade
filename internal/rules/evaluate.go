package rules

import (
	"errors"
	"fmt"

	"github.com/roach88/pipec/internal/expr"
	"github.com/roach88/pipec/internal/interpolate"
	"github.com/roach88/pipec/internal/ir"
)

// Scope is the context a rule set is evaluated against.
type Scope struct {
	// Variables visible to if: clauses and path expansion.
	Variables map[string]string

	// ChangedPaths is nil when no diff information is available.
	ChangedPaths []string

	// CompareChangedPaths holds the diff against each compare_to ref.
	CompareChangedPaths map[string][]string

	// RepositoryFiles is nil when the listing is unavailable.
	RepositoryFiles []string
}

// Outcome is the result of evaluating a rule set.
type Outcome struct {
	// Matched is false when no rule matched; the job is then excluded.
	Matched bool

	// Index of the matching rule.
	Index int

	// Rule is the matching rule.
	Rule Rule
}

// When returns the matching rule's when, or fallback when it sets none.
func (o Outcome) When(fallback string) string {
	if o.Rule.When != "" {
		return o.Rule.When
	}
	return fallback
}

// Included reports whether the outcome keeps the job.
func (o Outcome) Included() bool {
	return o.Matched && o.Rule.When != ir.WhenNever
}

// Report converts the outcome into its output record.
func (o Outcome) Report() *ir.RulesOutcome {
	if !o.Matched {
		return nil
	}
	return &ir.RulesOutcome{Matched: o.Index, Clause: o.Rule.Summary()}
}

type compiled struct {
	rule     Rule
	location string
	cond     expr.Node
}

// Set is a compiled, immutable rule list.
type Set struct {
	rules []compiled
}

// Len returns the number of rules.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.rules)
}

// Compile parses every if: clause and checks every glob up front, so
// malformed rules are reported whether or not they would be reached.
// location is the dotted path of the rules list.
func Compile(rules []Rule, location string) (*Set, ir.Diagnostics) {
	var diags ir.Diagnostics
	set := &Set{rules: make([]compiled, 0, len(rules))}

	for i, r := range rules {
		loc := fmt.Sprintf("%s[%d]", location, i)
		c := compiled{rule: r, location: loc}

		if r.If != "" {
			node, err := expr.Parse(r.If)
			if err != nil {
				diags = append(diags, ir.NewError(ir.KindRuleEvaluation, ir.ErrExpressionSyntax, loc+".if",
					"%s: %v", r.If, err))
			}
			c.cond = node
		}
		if r.Changes != nil {
			diags = append(diags, validatePatterns(r.Changes.Paths, loc+".changes")...)
		}
		if r.Exists != nil {
			diags = append(diags, validatePatterns(r.Exists.Paths, loc+".exists")...)
		}
		set.rules = append(set.rules, c)
	}
	if len(diags) > 0 {
		return nil, diags
	}
	return set, nil
}

// MustCompile is like Compile but panics on error. For tests.
func MustCompile(rules []Rule) *Set {
	set, diags := Compile(rules, "rules")
	if len(diags) > 0 {
		panic(diags)
	}
	return set
}

func validatePatterns(patterns []string, location string) ir.Diagnostics {
	var diags ir.Diagnostics
	for i, p := range patterns {
		if err := ValidatePattern(p); err != nil {
			diags = append(diags, ir.NewError(ir.KindRuleEvaluation, ir.ErrRulePattern,
				fmt.Sprintf("%s[%d]", location, i), "%v", err))
		}
	}
	return diags
}

// Evaluate tries the rules in order and returns the first match. Rules
// after the first match are never evaluated.
func (s *Set) Evaluate(scope *Scope) (Outcome, error) {
	if s == nil {
		return Outcome{}, nil
	}
	if scope == nil {
		scope = &Scope{}
	}
	for i, c := range s.rules {
		ok, err := c.matches(scope)
		if err != nil {
			return Outcome{}, err
		}
		if ok {
			return Outcome{Matched: true, Index: i, Rule: c.rule}, nil
		}
	}
	return Outcome{}, nil
}

func (c compiled) matches(scope *Scope) (bool, error) {
	if c.cond != nil {
		ok, err := expr.Eval(c.cond, expr.MapLookup(scope.Variables))
		if err != nil {
			return false, ir.NewError(ir.KindRuleEvaluation, ir.ErrExpressionEval, c.location+".if", "%v", err)
		}
		if !ok {
			return false, nil
		}
	}
	if c.rule.Changes != nil {
		ok, err := changesMatch(c.rule.Changes, scope)
		if err != nil {
			return false, c.patternError(".changes", err)
		}
		if !ok {
			return false, nil
		}
	}
	if c.rule.Exists != nil {
		ok, err := existsMatch(c.rule.Exists, scope)
		if err != nil {
			return false, c.patternError(".exists", err)
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func (c compiled) patternError(suffix string, err error) error {
	var pe *PatternError
	if errors.As(err, &pe) {
		return ir.NewError(ir.KindRuleEvaluation, ir.ErrRulePattern, c.location+suffix, "%v", err)
	}
	return ir.NewError(ir.KindRuleEvaluation, ir.ErrExpressionEval, c.location+suffix, "%v", err)
}

// changesMatch is true when there is no diff information to compare with.
func changesMatch(ch *Changes, scope *Scope) (bool, error) {
	paths := scope.ChangedPaths
	if ch.CompareTo != "" {
		ref := interpolate.ExpandExisting(ch.CompareTo, scope.Variables)
		diff, ok := scope.CompareChangedPaths[ref]
		if !ok {
			return true, nil
		}
		paths = diff
	}
	if paths == nil {
		return true, nil
	}
	return matchAny(expandAll(ch.Paths, scope.Variables), paths)
}

// existsMatch is false without a repository listing.
func existsMatch(ex *Exists, scope *Scope) (bool, error) {
	if scope.RepositoryFiles == nil {
		return false, nil
	}
	if len(ex.Paths)*len(scope.RepositoryFiles) > MaxExistsComparisons {
		return true, nil
	}
	return matchAny(expandAll(ex.Paths, scope.Variables), scope.RepositoryFiles)
}

func expandAll(patterns []string, vars map[string]string) []string {
	out := make([]string, len(patterns))
	for i, p := range patterns {
		out[i] = interpolate.ExpandExisting(p, vars)
	}
	return out
}
