package expr

import (
	"fmt"
	"regexp"
	"strings"
)

// maxNesting bounds parenthesis depth.
const maxNesting = 100

// SyntaxError reports an expression that does not parse.
type SyntaxError struct {
	Expr    string
	Pos     int
	Message string
}

// Error implements the error interface.
func (e *SyntaxError) Error() string {
	return fmt.Sprintf("invalid expression syntax at position %d: %s", e.Pos, e.Message)
}

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokVariable
	tokString
	tokPattern
	tokNull
	tokOperator
	tokLParen
	tokRParen
)

type token struct {
	kind  tokenKind
	pos   int
	text  string
	op    Operator
	flags string
}

var variableName = regexp.MustCompile(`^[A-Za-z0-9_]+`)

// lex splits src into tokens.
func lex(src string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '(':
			toks = append(toks, token{kind: tokLParen, pos: i})
			i++
		case c == ')':
			toks = append(toks, token{kind: tokRParen, pos: i})
			i++
		case c == '$':
			start := i
			i++
			if i < len(src) && src[i] == '{' {
				end := strings.IndexByte(src[i:], '}')
				if end < 0 {
					return nil, &SyntaxError{Expr: src, Pos: start, Message: "unterminated ${ variable"}
				}
				name := src[i+1 : i+end]
				if name == "" || variableName.FindString(name) != name {
					return nil, &SyntaxError{Expr: src, Pos: start, Message: fmt.Sprintf("invalid variable name %q", name)}
				}
				toks = append(toks, token{kind: tokVariable, pos: start, text: name})
				i += end + 1
				continue
			}
			name := variableName.FindString(src[i:])
			if name == "" {
				return nil, &SyntaxError{Expr: src, Pos: start, Message: "expected variable name after $"}
			}
			toks = append(toks, token{kind: tokVariable, pos: start, text: name})
			i += len(name)
		case c == '"' || c == '\'':
			end := strings.IndexByte(src[i+1:], c)
			if end < 0 {
				return nil, &SyntaxError{Expr: src, Pos: i, Message: "unterminated string"}
			}
			toks = append(toks, token{kind: tokString, pos: i, text: src[i+1 : i+1+end]})
			i += end + 2
		case c == '/':
			tok, next, err := lexPattern(src, i)
			if err != nil {
				return nil, err
			}
			toks = append(toks, tok)
			i = next
		case strings.HasPrefix(src[i:], "null") && !isWordChar(src, i+4):
			toks = append(toks, token{kind: tokNull, pos: i})
			i += 4
		default:
			op, ok := operatorAt(src, i)
			if !ok {
				return nil, &SyntaxError{Expr: src, Pos: i, Message: fmt.Sprintf("unexpected character %q", c)}
			}
			toks = append(toks, token{kind: tokOperator, pos: i, op: op})
			i += 2
		}
	}
	toks = append(toks, token{kind: tokEOF, pos: len(src)})
	return toks, nil
}

func lexPattern(src string, start int) (token, int, error) {
	i := start + 1
	var body strings.Builder
	for {
		if i >= len(src) {
			return token{}, 0, &SyntaxError{Expr: src, Pos: start, Message: "unterminated pattern"}
		}
		c := src[i]
		if c == '\\' && i+1 < len(src) {
			body.WriteByte(c)
			body.WriteByte(src[i+1])
			i += 2
			continue
		}
		if c == '/' {
			break
		}
		body.WriteByte(c)
		i++
	}
	i++
	flagStart := i
	for i < len(src) && strings.IndexByte("ims", src[i]) >= 0 {
		i++
	}
	if isWordChar(src, i) {
		return token{}, 0, &SyntaxError{Expr: src, Pos: i, Message: fmt.Sprintf("unknown pattern flag %q", src[i])}
	}
	return token{kind: tokPattern, pos: start, text: body.String(), flags: src[flagStart:i]}, i, nil
}

func operatorAt(src string, i int) (Operator, bool) {
	if i+2 > len(src) {
		return "", false
	}
	switch op := Operator(src[i : i+2]); op {
	case OpEqual, OpNotEqual, OpMatch, OpNotMatch, OpAnd, OpOr:
		return op, true
	}
	return "", false
}

func isWordChar(src string, i int) bool {
	if i >= len(src) {
		return false
	}
	c := src[i]
	return c == '_' || (c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// CompilePattern compiles a pattern body and flags into a Go regexp.
func CompilePattern(source, flags string) (*regexp.Regexp, error) {
	if flags != "" {
		source = "(?" + flags + ")" + source
	}
	return regexp.Compile(source)
}

// ParsePattern parses a "/regex/flags" string, as held by a variable used
// on the right of =~.
func ParsePattern(s string) (Pattern, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "/") {
		return Pattern{}, fmt.Errorf("%q is not a /pattern/", s)
	}
	tok, next, err := lexPattern(s, 0)
	if err != nil {
		return Pattern{}, err
	}
	if next != len(s) {
		return Pattern{}, fmt.Errorf("%q is not a /pattern/", s)
	}
	re, err := CompilePattern(tok.text, tok.flags)
	if err != nil {
		return Pattern{}, err
	}
	return Pattern{Source: tok.text, Flags: tok.flags, Regexp: re}, nil
}

// Parse parses an expression.
func Parse(src string) (Node, error) {
	if strings.TrimSpace(src) == "" {
		return nil, &SyntaxError{Expr: src, Message: "empty expression"}
	}
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{src: src, toks: toks}
	n, err := p.parseOr(0)
	if err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.kind != tokEOF {
		return nil, p.errorf(tok, "unexpected %s", describe(tok))
	}
	return n, nil
}

// MustParse is like Parse but panics on error. For tests and fixed tables.
func MustParse(src string) Node {
	n, err := Parse(src)
	if err != nil {
		panic(err)
	}
	return n
}

type parser struct {
	src  string
	toks []token
	pos  int
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) next() token {
	tok := p.toks[p.pos]
	if tok.kind != tokEOF {
		p.pos++
	}
	return tok
}

func (p *parser) errorf(tok token, format string, args ...any) error {
	return &SyntaxError{Expr: p.src, Pos: tok.pos, Message: fmt.Sprintf(format, args...)}
}

func (p *parser) parseOr(depth int) (Node, error) {
	left, err := p.parseAnd(depth)
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokOperator && p.peek().op == OpOr {
		p.next()
		right, err := p.parseAnd(depth)
		if err != nil {
			return nil, err
		}
		left = Logical{Op: OpOr, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseAnd(depth int) (Node, error) {
	left, err := p.parseCompare(depth)
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokOperator && p.peek().op == OpAnd {
		p.next()
		right, err := p.parseCompare(depth)
		if err != nil {
			return nil, err
		}
		left = Logical{Op: OpAnd, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseCompare(depth int) (Node, error) {
	left, err := p.parseOperand(depth)
	if err != nil {
		return nil, err
	}
	tok := p.peek()
	if tok.kind != tokOperator || tok.op == OpAnd || tok.op == OpOr {
		if _, isPattern := left.(Pattern); isPattern {
			return nil, p.errorf(tok, "pattern used outside =~ or !~")
		}
		return left, nil
	}
	p.next()
	rightTok := p.peek()
	right, err := p.parseOperand(depth)
	if err != nil {
		return nil, err
	}
	if _, isPattern := left.(Pattern); isPattern {
		return nil, p.errorf(tok, "pattern must be on the right of %s", tok.op)
	}
	_, rightPattern := right.(Pattern)
	switch tok.op {
	case OpMatch, OpNotMatch:
		switch right.(type) {
		case Pattern, Variable:
		default:
			return nil, p.errorf(rightTok, "right side of %s must be a pattern or a variable", tok.op)
		}
	default:
		if rightPattern {
			return nil, p.errorf(rightTok, "pattern used with %s", tok.op)
		}
	}
	if next := p.peek(); next.kind == tokOperator && next.op != OpAnd && next.op != OpOr {
		return nil, p.errorf(next, "comparisons cannot be chained")
	}
	return Compare{Op: tok.op, Left: left, Right: right}, nil
}

func (p *parser) parseOperand(depth int) (Node, error) {
	tok := p.next()
	switch tok.kind {
	case tokVariable:
		return Variable{Name: tok.text}, nil
	case tokString:
		return String{Value: tok.text}, nil
	case tokNull:
		return Null{}, nil
	case tokPattern:
		re, err := CompilePattern(tok.text, tok.flags)
		if err != nil {
			return nil, p.errorf(tok, "invalid pattern /%s/: %v", tok.text, err)
		}
		return Pattern{Source: tok.text, Flags: tok.flags, Regexp: re}, nil
	case tokLParen:
		if depth >= maxNesting {
			return nil, p.errorf(tok, "parentheses nested deeper than %d", maxNesting)
		}
		inner, err := p.parseOr(depth + 1)
		if err != nil {
			return nil, err
		}
		if closing := p.next(); closing.kind != tokRParen {
			return nil, p.errorf(closing, "expected ), got %s", describe(closing))
		}
		return inner, nil
	default:
		return nil, p.errorf(tok, "expected operand, got %s", describe(tok))
	}
}

func describe(tok token) string {
	switch tok.kind {
	case tokEOF:
		return "end of expression"
	case tokVariable:
		return "variable $" + tok.text
	case tokString:
		return fmt.Sprintf("string %q", tok.text)
	case tokPattern:
		return "pattern /" + tok.text + "/"
	case tokNull:
		return "null"
	case tokOperator:
		return "operator " + string(tok.op)
	case tokLParen:
		return "("
	case tokRParen:
		return ")"
	default:
		return "token"
	}
}
