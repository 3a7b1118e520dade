package expr

import (
	"regexp"
	"strings"
)

// Node is one node of a parsed expression.
//
// This is a sealed interface - only types in this package implement it.
type Node interface {
	exprNode()
	String() string
}

// Operator is a comparison or logical operator.
type Operator string

const (
	OpEqual    Operator = "=="
	OpNotEqual Operator = "!="
	OpMatch    Operator = "=~"
	OpNotMatch Operator = "!~"
	OpAnd      Operator = "&&"
	OpOr       Operator = "||"
)

// Variable references a pipeline variable.
type Variable struct {
	Name string
}

func (Variable) exprNode() {}

func (v Variable) String() string { return "$" + v.Name }

// String is a quoted literal.
type String struct {
	Value string
}

func (String) exprNode() {}

func (s String) String() string {
	if strings.Contains(s.Value, `"`) {
		return "'" + s.Value + "'"
	}
	return `"` + s.Value + `"`
}

// Null is the null literal.
type Null struct{}

func (Null) exprNode() {}

func (Null) String() string { return "null" }

// Pattern is a /regex/flags literal, compiled at parse time.
type Pattern struct {
	Source string
	Flags  string
	Regexp *regexp.Regexp
}

func (Pattern) exprNode() {}

func (p Pattern) String() string { return "/" + p.Source + "/" + p.Flags }

// Compare applies ==, !=, =~ or !~.
type Compare struct {
	Op    Operator
	Left  Node
	Right Node
}

func (Compare) exprNode() {}

func (c Compare) String() string {
	return c.Left.String() + " " + string(c.Op) + " " + c.Right.String()
}

// Logical applies && or ||. Evaluation short-circuits.
type Logical struct {
	Op    Operator
	Left  Node
	Right Node
}

func (Logical) exprNode() {}

func (l Logical) String() string {
	return "(" + l.Left.String() + " " + string(l.Op) + " " + l.Right.String() + ")"
}

// Variables returns the names of variables referenced by n, in order of
// first appearance.
func Variables(n Node) []string {
	var names []string
	seen := make(map[string]bool)
	var walk func(Node)
	walk = func(n Node) {
		switch node := n.(type) {
		case Variable:
			if !seen[node.Name] {
				seen[node.Name] = true
				names = append(names, node.Name)
			}
		case Compare:
			walk(node.Left)
			walk(node.Right)
		case Logical:
			walk(node.Left)
			walk(node.Right)
		}
	}
	walk(n)
	return names
}
