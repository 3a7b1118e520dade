package document

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/tidwall/jsonc"

	"github.com/roach88/pipec/internal/ir"
)

// parseJSON accepts JSON with comments and trailing commas. Objects are
// decoded token by token so key order is kept.
func parseJSON(name string, content []byte) (*Document, error) {
	clean := jsonc.ToJSON(content)
	if len(bytes.TrimSpace(clean)) == 0 {
		return &Document{Name: name, Body: ir.NewMapping()}, nil
	}

	dec := json.NewDecoder(bytes.NewReader(clean))
	dec.UseNumber()

	v, err := decodeJSONValue(dec, 0)
	if err != nil {
		return nil, jsonSyntaxError(name, clean, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, &SyntaxError{File: name, Message: "unexpected data after top-level value"}
	}

	body, ok := v.(*ir.Mapping)
	if !ok {
		return nil, &SyntaxError{
			File:    name,
			Code:    ir.ErrDocumentShape,
			Message: fmt.Sprintf("document root must be a hash, got %s", ir.TypeName(v)),
		}
	}
	return splitHeader(name, body)
}

func decodeJSONValue(dec *json.Decoder, depth int) (any, error) {
	if depth > maxAliasDepth {
		return nil, fmt.Errorf("document nesting exceeds %d levels", maxAliasDepth)
	}
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			out := ir.NewMapping()
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return nil, fmt.Errorf("object key must be a string")
				}
				if out.Has(key) {
					return nil, fmt.Errorf("mapping key %q already defined", key)
				}
				v, err := decodeJSONValue(dec, depth+1)
				if err != nil {
					return nil, err
				}
				out.Set(key, v)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return out, nil
		case '[':
			out := []any{}
			for dec.More() {
				v, err := decodeJSONValue(dec, depth+1)
				if err != nil {
					return nil, err
				}
				out = append(out, v)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return out, nil
		default:
			return nil, fmt.Errorf("unexpected %q", t.String())
		}
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return int(n), nil
		}
		f, err := t.Float64()
		if err != nil {
			return nil, fmt.Errorf("invalid number %s", t)
		}
		return f, nil
	default:
		// string, bool, nil
		return t, nil
	}
}

func jsonSyntaxError(name string, data []byte, err error) *SyntaxError {
	var se *json.SyntaxError
	if errors.As(err, &se) {
		line := 1 + strings.Count(string(data[:min(int(se.Offset), len(data))]), "\n")
		return &SyntaxError{File: name, Line: line, Message: se.Error()}
	}
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return &SyntaxError{File: name, Message: "unexpected end of input"}
	}
	return &SyntaxError{File: name, Message: err.Error()}
}
