package expr

import (
	"fmt"
	"strconv"
	"strings"
)

// Lookup resolves a variable. ok is false when the variable is unset.
type Lookup func(name string) (value string, ok bool)

// MapLookup adapts a map to a Lookup.
func MapLookup(vars map[string]string) Lookup {
	return func(name string) (string, bool) {
		v, ok := vars[name]
		return v, ok
	}
}

// EvalError reports an expression that parsed but cannot be evaluated,
// such as =~ against a variable that does not hold a pattern.
type EvalError struct {
	Expr    string
	Message string
}

// Error implements the error interface.
func (e *EvalError) Error() string {
	return fmt.Sprintf("cannot evaluate %s: %s", e.Expr, e.Message)
}

type valueKind int

const (
	kindUnset valueKind = iota
	kindNull
	kindString
	kindBool
	kindPattern
)

// value is the result of evaluating an operand or sub-expression.
type value struct {
	kind    valueKind
	str     string
	boolean bool
	pattern Pattern
}

func (v value) truthy() bool {
	switch v.kind {
	case kindString:
		return v.str != ""
	case kindBool:
		return v.boolean
	case kindPattern:
		return true
	default:
		return false
	}
}

func (v value) text() string {
	switch v.kind {
	case kindString:
		return v.str
	case kindBool:
		return strconv.FormatBool(v.boolean)
	case kindPattern:
		return v.pattern.String()
	default:
		return ""
	}
}

// Eval evaluates n against vars and reports whether it holds.
func Eval(n Node, vars Lookup) (bool, error) {
	v, err := eval(n, vars)
	if err != nil {
		return false, err
	}
	return v.truthy(), nil
}

// EvalString parses and evaluates src in one step.
func EvalString(src string, vars Lookup) (bool, error) {
	n, err := Parse(src)
	if err != nil {
		return false, err
	}
	return Eval(n, vars)
}

func eval(n Node, vars Lookup) (value, error) {
	switch node := n.(type) {
	case Variable:
		s, ok := vars(node.Name)
		if !ok {
			return value{kind: kindUnset}, nil
		}
		return value{kind: kindString, str: s}, nil
	case String:
		return value{kind: kindString, str: node.Value}, nil
	case Null:
		return value{kind: kindNull}, nil
	case Pattern:
		return value{kind: kindPattern, pattern: node}, nil
	case Logical:
		left, err := eval(node.Left, vars)
		if err != nil {
			return value{}, err
		}
		if node.Op == OpAnd && !left.truthy() {
			return value{kind: kindBool}, nil
		}
		if node.Op == OpOr && left.truthy() {
			return value{kind: kindBool, boolean: true}, nil
		}
		right, err := eval(node.Right, vars)
		if err != nil {
			return value{}, err
		}
		return value{kind: kindBool, boolean: right.truthy()}, nil
	case Compare:
		return evalCompare(node, vars)
	default:
		return value{}, &EvalError{Expr: fmt.Sprint(n), Message: fmt.Sprintf("unknown node %T", n)}
	}
}

func evalCompare(c Compare, vars Lookup) (value, error) {
	left, err := eval(c.Left, vars)
	if err != nil {
		return value{}, err
	}
	right, err := eval(c.Right, vars)
	if err != nil {
		return value{}, err
	}

	var result bool
	switch c.Op {
	case OpEqual:
		result = equal(left, right)
	case OpNotEqual:
		result = !equal(left, right)
	case OpMatch, OpNotMatch:
		matched, err := match(c, left, right)
		if err != nil {
			return value{}, err
		}
		result = matched == (c.Op == OpMatch)
	default:
		return value{}, &EvalError{Expr: c.String(), Message: "unknown operator " + string(c.Op)}
	}
	return value{kind: kindBool, boolean: result}, nil
}

// equal implements == coercion.
func equal(a, b value) bool {
	if a.kind == kindNull || b.kind == kindNull {
		other := b
		if b.kind == kindNull {
			other = a
		}
		return other.kind == kindNull || other.kind == kindUnset
	}
	as, bs := a.text(), b.text()
	if an, aok := number(as); aok {
		if bn, bok := number(bs); bok {
			return an == bn
		}
	}
	return as == bs
}

func number(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	return f, err == nil
}

// match implements =~. An unset or null left side never matches.
func match(c Compare, left, right value) (bool, error) {
	var p Pattern
	switch right.kind {
	case kindPattern:
		p = right.pattern
	case kindString:
		parsed, err := ParsePattern(right.str)
		if err != nil {
			return false, &EvalError{Expr: c.String(), Message: fmt.Sprintf("right side is not a valid pattern: %v", err)}
		}
		p = parsed
	default:
		return false, nil
	}
	if left.kind == kindUnset || left.kind == kindNull {
		return false, nil
	}
	return p.Regexp.MatchString(left.text()), nil
}
