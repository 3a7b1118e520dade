package document

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"

	"github.com/roach88/pipec/internal/ir"
)

// parseCUE evaluates a CUE file and converts the concrete result. Struct
// field order follows declaration order.
func parseCUE(name string, content []byte) (*Document, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(content, cue.Filename(name))
	if err := v.Err(); err != nil {
		return nil, cueSyntaxError(name, err)
	}
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, cueSyntaxError(name, err)
	}

	raw, err := cueToValue(v)
	if err != nil {
		return nil, cueSyntaxError(name, err)
	}
	body, ok := raw.(*ir.Mapping)
	if !ok {
		return nil, &SyntaxError{
			File:    name,
			Code:    ir.ErrDocumentShape,
			Message: fmt.Sprintf("document root must be a hash, got %s", ir.TypeName(raw)),
		}
	}
	return splitHeader(name, body)
}

func cueToValue(v cue.Value) (any, error) {
	switch v.Kind() {
	case cue.StructKind:
		iter, err := v.Fields()
		if err != nil {
			return nil, err
		}
		out := ir.NewMapping()
		for iter.Next() {
			child, err := cueToValue(iter.Value())
			if err != nil {
				return nil, err
			}
			out.Set(iter.Label(), child)
		}
		return out, nil
	case cue.ListKind:
		iter, err := v.List()
		if err != nil {
			return nil, err
		}
		out := []any{}
		for iter.Next() {
			child, err := cueToValue(iter.Value())
			if err != nil {
				return nil, err
			}
			out = append(out, child)
		}
		return out, nil
	case cue.StringKind:
		return v.String()
	case cue.IntKind:
		n, err := v.Int64()
		return int(n), err
	case cue.FloatKind:
		return v.Float64()
	case cue.BoolKind:
		return v.Bool()
	case cue.NullKind:
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported value kind %v at %s", v.Kind(), v.Path())
	}
}

// cueSyntaxError reports the first CUE error with its position.
func cueSyntaxError(name string, err error) *SyntaxError {
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return &SyntaxError{File: name, Message: err.Error()}
	}
	first := errs[0]
	out := &SyntaxError{File: name, Message: first.Error()}
	if positions := errors.Positions(first); len(positions) > 0 {
		out.Line = positions[0].Line()
		out.Column = positions[0].Column()
	}
	return out
}
