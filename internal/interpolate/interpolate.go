// Package interpolate resolves `$[[ inputs.NAME ]]` placeholders and
// `$VAR` references inside configuration values.
package interpolate

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/roach88/pipec/internal/ir"
)

// MaxFunctions bounds the function chain of one placeholder.
const MaxFunctions = 3

var (
	placeholderPattern = regexp.MustCompile(`\$\[\[\s*(.*?)\s*\]\]`)
	truncatePattern    = regexp.MustCompile(`^truncate\(\s*(\d+)\s*,\s*(\d+)\s*\)$`)
	inputNamePattern   = regexp.MustCompile(`^inputs\.([A-Za-z0-9_-]+)$`)
)

// Scope holds the values placeholders resolve against.
type Scope struct {
	// Inputs are the validated input values.
	Inputs map[string]any

	// Variables feed the expand_vars function.
	Variables map[string]string
}

// HasPlaceholders reports whether s contains a `$[[ ]]` block.
func HasPlaceholders(s string) bool {
	return placeholderPattern.MatchString(s)
}

// Interpolate returns a copy of value with every placeholder in keys and
// string values replaced. A string holding any failing placeholder is
// returned unchanged together with diagnostics for each failure.
func Interpolate(value any, scope *Scope, location string) (any, ir.Diagnostics) {
	w := &walker{scope: scope}
	out := w.walk(value, location)
	return out, w.diags
}

type walker struct {
	scope *Scope
	diags ir.Diagnostics
}

func (w *walker) walk(value any, location string) any {
	switch v := value.(type) {
	case *ir.Mapping:
		out := ir.NewMapping()
		for _, key := range v.Keys() {
			child, _ := v.Get(key)
			newKey := key
			if HasPlaceholders(key) {
				resolved := w.string(key, joinLocation(location, key))
				s, ok := resolved.(string)
				if !ok {
					s = stringify(resolved)
				}
				newKey = s
			}
			out.Set(newKey, w.walk(child, joinLocation(location, key)))
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = w.walk(item, fmt.Sprintf("%s[%d]", location, i))
		}
		return out
	case string:
		return w.string(v, location)
	default:
		return value
	}
}

func (w *walker) string(s, location string) any {
	matches := placeholderPattern.FindAllStringSubmatchIndex(s, -1)
	if len(matches) == 0 {
		return s
	}

	values := make([]any, len(matches))
	failed := false
	for i, m := range matches {
		body := s[m[2]:m[3]]
		v, err := w.scope.evaluate(body)
		if err != nil {
			w.diags = append(w.diags, ir.NewError(ir.KindInterpolation, err.code, location,
				"`%s`: %s", s[m[0]:m[1]], err.message))
			failed = true
			continue
		}
		values[i] = v
	}
	if failed {
		return s
	}

	// A value that is exactly one placeholder keeps the input's type.
	if len(matches) == 1 && matches[0][0] == 0 && matches[0][1] == len(s) {
		return values[0]
	}

	var b strings.Builder
	last := 0
	for i, m := range matches {
		b.WriteString(s[last:m[0]])
		b.WriteString(stringify(values[i]))
		last = m[1]
	}
	b.WriteString(s[last:])
	return b.String()
}

type placeholderError struct {
	code    string
	message string
}

func (s *Scope) evaluate(body string) (any, *placeholderError) {
	parts := strings.Split(body, "|")
	access := strings.TrimSpace(parts[0])
	functions := parts[1:]

	m := inputNamePattern.FindStringSubmatch(access)
	if m == nil {
		return nil, &placeholderError{ir.ErrUnknownInterpolation, fmt.Sprintf("unknown interpolation key `%s`", access)}
	}
	var inputs map[string]any
	if s != nil {
		inputs = s.Inputs
	}
	v, ok := inputs[m[1]]
	if !ok {
		return nil, &placeholderError{ir.ErrUnknownInterpolation, fmt.Sprintf("unknown input name provided: `%s`", m[1])}
	}

	if len(functions) > MaxFunctions {
		return nil, &placeholderError{ir.ErrUnknownInterpolation, fmt.Sprintf("too many functions in interpolation block (maximum %d)", MaxFunctions)}
	}
	for _, raw := range functions {
		fn := strings.TrimSpace(raw)
		out, err := s.apply(fn, v)
		if err != nil {
			return nil, err
		}
		v = out
	}
	return v, nil
}

func (s *Scope) apply(fn string, v any) (any, *placeholderError) {
	switch {
	case fn == "expand_vars":
		str, ok := v.(string)
		if !ok {
			return nil, &placeholderError{ir.ErrUnknownInterpolation, fmt.Sprintf("invalid input type: %s can only be used with string inputs", fn)}
		}
		var vars map[string]string
		if s != nil {
			vars = s.Variables
		}
		return ExpandExisting(str, vars), nil
	case fn == "posix_escape":
		str, ok := v.(string)
		if !ok {
			return nil, &placeholderError{ir.ErrUnknownInterpolation, fmt.Sprintf("invalid input type: %s can only be used with string inputs", fn)}
		}
		return PosixEscape(str), nil
	case strings.HasPrefix(fn, "truncate"):
		m := truncatePattern.FindStringSubmatch(fn)
		if m == nil {
			return nil, &placeholderError{ir.ErrUnknownInterpolation, fmt.Sprintf("invalid function arguments: `%s`", fn)}
		}
		str, ok := v.(string)
		if !ok {
			return nil, &placeholderError{ir.ErrUnknownInterpolation, "invalid input type: truncate can only be used with string inputs"}
		}
		offset, _ := strconv.Atoi(m[1])
		length, _ := strconv.Atoi(m[2])
		runes := []rune(str)
		if offset >= len(runes) {
			return "", nil
		}
		end := min(offset+length, len(runes))
		return string(runes[offset:end]), nil
	default:
		return nil, &placeholderError{ir.ErrUnknownInterpolation, fmt.Sprintf("no function matching `%s`: check that the function name, arguments, and types are correct", fn)}
	}
}

// PosixEscape quotes s for a POSIX shell, backslash-escaping every
// character outside the portable safe set.
func PosixEscape(s string) string {
	if s == "" {
		return "''"
	}
	var b strings.Builder
	for _, r := range s {
		switch {
		case r == '\n':
			b.WriteString("'\n'")
		case r < 0x80 && !isShellSafe(byte(r)):
			b.WriteByte('\\')
			b.WriteRune(r)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func isShellSafe(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') ||
		strings.IndexByte("_-.,:+/@", c) >= 0
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case int:
		return strconv.Itoa(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		data, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(data)
	}
}

func joinLocation(location, key string) string {
	if location == "" {
		return key
	}
	return location + "." + key
}
