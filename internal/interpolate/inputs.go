package interpolate

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/roach88/pipec/internal/expr"
	"github.com/roach88/pipec/internal/ir"
)

// Input types.
const (
	TypeString  = "string"
	TypeNumber  = "number"
	TypeBoolean = "boolean"
	TypeArray   = "array"
)

var inputSpecKeys = []string{"default", "description", "options", "regex", "type"}

// ResolveInputs checks given against the `spec:inputs` declarations and
// returns the effective value of every declared input. location is the
// dotted path of the inputs block, used in diagnostics.
func ResolveInputs(specs *ir.Mapping, given map[string]any, location string) (map[string]any, ir.Diagnostics) {
	var diags ir.Diagnostics
	errorf := func(loc, format string, args ...any) {
		diags = append(diags, ir.NewError(ir.KindInterpolation, ir.ErrInvalidInput, loc, format, args...))
	}

	var unknown []string
	for name := range given {
		if !specs.Has(name) {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		errorf(location, "unknown input arguments: %s", strings.Join(unknown, ", "))
	}

	out := make(map[string]any, specs.Len())
	for _, name := range specs.Keys() {
		raw, _ := specs.Get(name)
		loc := location + "." + name

		var spec *ir.Mapping
		switch v := raw.(type) {
		case nil:
			spec = ir.NewMapping()
		case *ir.Mapping:
			spec = v
		default:
			errorf(loc, "input specification must be a hash, got %s", ir.TypeName(raw))
			continue
		}

		if bad := unknownSpecKeys(spec); len(bad) > 0 {
			errorf(loc, "unknown input specification keys: %s", strings.Join(bad, ", "))
			continue
		}

		typ := TypeString
		if t, ok := spec.Get("type"); ok {
			s, isString := t.(string)
			if !isString || !slices.Contains([]string{TypeString, TypeNumber, TypeBoolean, TypeArray}, s) {
				errorf(loc, "header:spec:inputs:%s input type unknown value: %v", name, t)
				continue
			}
			typ = s
		}

		value, provided := given[name]
		def, hasDefault := spec.Get("default")
		if hasDefault && !matchesType(def, typ) {
			errorf(loc, "`%s` input: default value is not a %s", name, typ)
			continue
		}
		if !provided {
			if !hasDefault {
				errorf(loc, "`%s` input: required value has not been provided", name)
				continue
			}
			value = def
		}

		if !matchesType(value, typ) {
			errorf(loc, "`%s` input: provided value is not a %s", name, typ)
			continue
		}
		if err := checkOptions(spec, value); err != "" {
			errorf(loc, "`%s` input: %s", name, err)
			continue
		}
		if err := checkRegex(spec, value, typ); err != "" {
			errorf(loc, "`%s` input: %s", name, err)
			continue
		}
		out[name] = plain(value)
	}
	return out, diags
}

func unknownSpecKeys(spec *ir.Mapping) []string {
	var bad []string
	for _, k := range spec.Keys() {
		if !slices.Contains(inputSpecKeys, k) {
			bad = append(bad, k)
		}
	}
	return bad
}

func matchesType(v any, typ string) bool {
	switch typ {
	case TypeString:
		_, ok := v.(string)
		return ok
	case TypeNumber:
		switch v.(type) {
		case int, int64, float64:
			return true
		}
		return false
	case TypeBoolean:
		_, ok := v.(bool)
		return ok
	case TypeArray:
		_, ok := v.([]any)
		return ok
	default:
		return false
	}
}

func checkOptions(spec *ir.Mapping, value any) string {
	raw, ok := spec.Get("options")
	if !ok {
		return ""
	}
	options, ok := raw.([]any)
	if !ok {
		return "options must be an array"
	}
	for _, o := range options {
		if fmt.Sprint(o) == fmt.Sprint(value) {
			return ""
		}
	}
	return fmt.Sprintf("`%v` cannot be used because it is not in the list of allowed options", value)
}

func checkRegex(spec *ir.Mapping, value any, typ string) string {
	raw, ok := spec.Get("regex")
	if !ok {
		return ""
	}
	if typ != TypeString {
		return "regex can only be used with string inputs"
	}
	src, ok := raw.(string)
	if !ok {
		return "regex must be a string"
	}
	if !strings.HasPrefix(src, "/") {
		src = "/" + src + "/"
	}
	p, err := expr.ParsePattern(src)
	if err != nil {
		return fmt.Sprintf("invalid regular expression: %v", err)
	}
	if !p.Regexp.MatchString(value.(string)) {
		return "provided value does not match required RegEx pattern"
	}
	return ""
}

// plain converts mappings inside array inputs into plain maps.
func plain(v any) any {
	switch t := v.(type) {
	case *ir.Mapping:
		return t.ToMap()
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = plain(item)
		}
		return out
	default:
		return v
	}
}
