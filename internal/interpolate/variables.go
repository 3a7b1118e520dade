package interpolate

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/roach88/pipec/internal/graph"
	"github.com/roach88/pipec/internal/ir"
)

// variablePattern matches $$, ${NAME} and $NAME.
var variablePattern = regexp.MustCompile(`\$\$|\$\{([A-Za-z_][A-Za-z0-9_]*)\}|\$([A-Za-z_][A-Za-z0-9_]*)`)

// UnresolvedError lists every variable a strict expansion could not
// resolve.
type UnresolvedError struct {
	Names []string
}

// Error implements the error interface.
func (e *UnresolvedError) Error() string {
	return fmt.Sprintf("unresolved variables: %s", strings.Join(e.Names, ", "))
}

// Expand substitutes $NAME and ${NAME} from vars; $$ becomes a literal $.
// All unresolved names are reported together and no partial result is
// returned.
func Expand(s string, vars map[string]string) (string, error) {
	var missing []string
	seen := make(map[string]bool)
	out := variablePattern.ReplaceAllStringFunc(s, func(m string) string {
		if m == "$$" {
			return "$"
		}
		name := referenceName(m)
		if v, ok := vars[name]; ok {
			return v
		}
		if !seen[name] {
			seen[name] = true
			missing = append(missing, name)
		}
		return m
	})
	if len(missing) > 0 {
		return "", &UnresolvedError{Names: missing}
	}
	return out, nil
}

// ExpandExisting substitutes the variables present in vars and leaves
// every other reference untouched.
func ExpandExisting(s string, vars map[string]string) string {
	return variablePattern.ReplaceAllStringFunc(s, func(m string) string {
		if m == "$$" {
			return m
		}
		if v, ok := vars[referenceName(m)]; ok {
			return v
		}
		return m
	})
}

// References returns the names referenced by s, in order of first
// appearance.
func References(s string) []string {
	var names []string
	seen := make(map[string]bool)
	for _, m := range variablePattern.FindAllString(s, -1) {
		if m == "$$" {
			continue
		}
		name := referenceName(m)
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	return names
}

func referenceName(m string) string {
	name := strings.TrimPrefix(m, "$")
	name = strings.TrimPrefix(name, "{")
	return strings.TrimSuffix(name, "}")
}

// CheckCycles reports variables that reference each other in a cycle.
// raw names variables declared with `expand: false`, whose values are never
// expanded and so cannot take part in a cycle.
func CheckCycles(vars map[string]string, raw map[string]bool, location string) ir.Diagnostics {
	names := make([]string, 0, len(vars))
	for name := range vars {
		names = append(names, name)
	}
	sort.Strings(names)

	g := graph.New()
	for _, name := range names {
		g.AddNode(name)
		if raw[name] {
			continue
		}
		for _, ref := range References(vars[name]) {
			if _, declared := vars[ref]; declared {
				g.AddEdge(name, ref)
			}
		}
	}

	var diags ir.Diagnostics
	for _, c := range g.Cycles() {
		members := append([]string(nil), c.Members...)
		sort.Strings(members)
		diags = append(diags, ir.NewError(ir.KindInterpolation, ir.ErrCircularVariable, location,
			"circular variable reference detected: [%s]", strings.Join(members, " ")))
	}
	return diags
}
