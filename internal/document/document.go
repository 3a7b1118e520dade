// Package document parses raw pipeline configuration text into ordered
// ir.Mapping documents.
//
// Three input formats are accepted, chosen by file extension:
//   - YAML (default): multi-document streams carry an optional header
//     document holding only `spec:` followed by the body
//   - JSON and JSONC (.json, .jsonc): comments and trailing commas allowed
//   - CUE (.cue): the value must be concrete
//
// For JSON and CUE a top-level `spec` key is split off as the header.
package document

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/roach88/pipec/internal/ir"
)

// Format names an input syntax.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
	FormatCUE  Format = "cue"
)

// HeaderKey is the only key a header document may contain.
const HeaderKey = "spec"

// Document is a parsed configuration file.
type Document struct {
	// Name is the file name the text came from.
	Name string

	// Header is the `spec:` section, or nil when the file has none.
	Header *ir.Mapping

	// Body is the pipeline configuration. Never nil.
	Body *ir.Mapping
}

// SyntaxError reports text that cannot be parsed into a document.
type SyntaxError struct {
	File    string
	Line    int
	Column  int
	Code    string
	Message string
}

// Error implements the error interface.
func (e *SyntaxError) Error() string {
	switch {
	case e.Line > 0 && e.Column > 0:
		return fmt.Sprintf("%s:%d:%d: %s", e.File, e.Line, e.Column, e.Message)
	case e.Line > 0:
		return fmt.Sprintf("%s:%d: %s", e.File, e.Line, e.Message)
	default:
		return fmt.Sprintf("%s: %s", e.File, e.Message)
	}
}

// Diagnostic converts the error into a SyntaxError diagnostic.
func (e *SyntaxError) Diagnostic() ir.Diagnostic {
	code := e.Code
	if code == "" {
		code = ir.ErrSyntax
	}
	return ir.NewError(ir.KindSyntax, code, e.File, "%s", e.positionedMessage())
}

func (e *SyntaxError) positionedMessage() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, e.Message)
	}
	return e.Message
}

// DetectFormat picks the format for a file name.
func DetectFormat(name string) Format {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json", ".jsonc":
		return FormatJSON
	case ".cue":
		return FormatCUE
	default:
		return FormatYAML
	}
}

// Parse parses content according to the format implied by name.
// The returned error is always a *SyntaxError.
func Parse(name string, content []byte) (*Document, error) {
	switch DetectFormat(name) {
	case FormatJSON:
		return parseJSON(name, content)
	case FormatCUE:
		return parseCUE(name, content)
	default:
		return parseYAML(name, content)
	}
}

// IsEmpty reports whether the document has neither header nor body keys.
func (d *Document) IsEmpty() bool {
	return d.Header.Len() == 0 && d.Body.Len() == 0
}

// splitHeader moves a top-level spec key out of a single-document body.
func splitHeader(name string, body *ir.Mapping) (*Document, error) {
	doc := &Document{Name: name, Body: body}
	raw, ok := body.Get(HeaderKey)
	if !ok {
		return doc, nil
	}
	spec, ok := raw.(*ir.Mapping)
	if !ok {
		return nil, &SyntaxError{File: name, Code: ir.ErrDocumentShape, Message: "header `spec` must be a hash"}
	}
	doc.Header = ir.MappingOf(HeaderKey, spec)
	doc.Body = body.Clone()
	doc.Body.Delete(HeaderKey)
	return doc, nil
}
