package document

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/pipec/internal/ir"
)

// maxAliasDepth bounds alias expansion so self-referencing anchors cannot
// recurse forever.
const maxAliasDepth = 1000

var yamlLinePattern = regexp.MustCompile(`^yaml: line (\d+): (.*)$`)

func parseYAML(name string, content []byte) (*Document, error) {
	dec := yaml.NewDecoder(bytes.NewReader(content))

	var nodes []*yaml.Node
	for {
		var node yaml.Node
		err := dec.Decode(&node)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, yamlSyntaxError(name, err)
		}
		nodes = append(nodes, &node)
	}

	docs := make([]*ir.Mapping, 0, len(nodes))
	for _, node := range nodes {
		m, err := convertDocument(name, node)
		if err != nil {
			return nil, err
		}
		docs = append(docs, m)
	}

	switch len(docs) {
	case 0:
		return &Document{Name: name, Body: ir.NewMapping()}, nil
	case 1:
		return &Document{Name: name, Body: docs[0]}, nil
	case 2:
		header := docs[0]
		if header.Len() != 1 || !header.Has(HeaderKey) {
			return nil, &SyntaxError{
				File:    name,
				Line:    nodes[0].Line,
				Code:    ir.ErrDocumentShape,
				Message: "the first of two documents must be a header containing only `spec`",
			}
		}
		return &Document{Name: name, Header: header, Body: docs[1]}, nil
	default:
		return nil, &SyntaxError{
			File:    name,
			Line:    nodes[2].Line,
			Code:    ir.ErrDocumentShape,
			Message: fmt.Sprintf("expected at most 2 documents (header and body), found %d", len(docs)),
		}
	}
}

func yamlSyntaxError(name string, err error) *SyntaxError {
	msg := err.Error()
	if m := yamlLinePattern.FindStringSubmatch(msg); m != nil {
		line, _ := strconv.Atoi(m[1])
		return &SyntaxError{File: name, Line: line, Message: m[2]}
	}
	var typeErr *yaml.TypeError
	if errors.As(err, &typeErr) && len(typeErr.Errors) > 0 {
		msg = typeErr.Errors[0]
	}
	return &SyntaxError{File: name, Message: msg}
}

func convertDocument(name string, node *yaml.Node) (*ir.Mapping, error) {
	if node.Kind == yaml.DocumentNode {
		if len(node.Content) == 0 {
			return ir.NewMapping(), nil
		}
		node = node.Content[0]
	}
	if node.Kind == yaml.ScalarNode && node.Tag == "!!null" {
		return ir.NewMapping(), nil
	}
	c := &yamlConverter{file: name}
	v, err := c.convert(node, 0)
	if err != nil {
		return nil, err
	}
	m, ok := v.(*ir.Mapping)
	if !ok {
		return nil, &SyntaxError{
			File:    name,
			Line:    node.Line,
			Column:  node.Column,
			Code:    ir.ErrDocumentShape,
			Message: fmt.Sprintf("document root must be a hash, got %s", ir.TypeName(v)),
		}
	}
	return m, nil
}

type yamlConverter struct {
	file string
}

func (c *yamlConverter) errorf(node *yaml.Node, format string, args ...any) error {
	return &SyntaxError{File: c.file, Line: node.Line, Column: node.Column, Message: fmt.Sprintf(format, args...)}
}

func (c *yamlConverter) convert(node *yaml.Node, depth int) (any, error) {
	if depth > maxAliasDepth {
		return nil, c.errorf(node, "document nesting exceeds %d levels", maxAliasDepth)
	}
	if node.Kind != yaml.AliasNode && isLocalTag(node.Tag) {
		return nil, c.errorf(node, "unsupported tag %s", node.Tag)
	}
	switch node.Kind {
	case yaml.AliasNode:
		return c.convert(node.Alias, depth+1)
	case yaml.ScalarNode:
		return c.scalar(node)
	case yaml.SequenceNode:
		out := make([]any, 0, len(node.Content))
		for _, child := range node.Content {
			v, err := c.convert(child, depth+1)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	case yaml.MappingNode:
		return c.mapping(node, depth)
	default:
		return nil, c.errorf(node, "unexpected YAML node")
	}
}

// mapping converts a mapping node. Explicit keys win over keys pulled in by
// `<<` merge keys, whatever their textual order.
func (c *yamlConverter) mapping(node *yaml.Node, depth int) (*ir.Mapping, error) {
	out := ir.NewMapping()
	explicit := make(map[string]int)
	var merges []*yaml.Node

	for i := 0; i+1 < len(node.Content); i += 2 {
		keyNode, valNode := node.Content[i], node.Content[i+1]
		if keyNode.Kind == yaml.ScalarNode && keyNode.Tag == "!!merge" {
			merges = append(merges, valNode)
			continue
		}
		if keyNode.Kind != yaml.ScalarNode {
			return nil, c.errorf(keyNode, "mapping keys must be scalars")
		}
		key := keyNode.Value
		if line, dup := explicit[key]; dup {
			return nil, c.errorf(keyNode, "mapping key %q already defined at line %d", key, line)
		}
		explicit[key] = keyNode.Line
		v, err := c.convert(valNode, depth+1)
		if err != nil {
			return nil, err
		}
		out.Set(key, v)
	}

	for _, merge := range merges {
		sources := []*yaml.Node{merge}
		if merge.Kind == yaml.SequenceNode {
			sources = merge.Content
		}
		for _, src := range sources {
			v, err := c.convert(src, depth+1)
			if err != nil {
				return nil, err
			}
			m, ok := v.(*ir.Mapping)
			if !ok {
				return nil, c.errorf(src, "merge key value must be a hash or a list of hashes")
			}
			for _, k := range m.Keys() {
				if out.Has(k) {
					continue
				}
				mv, _ := m.Get(k)
				out.Set(k, mv)
			}
		}
	}
	return out, nil
}

func (c *yamlConverter) scalar(node *yaml.Node) (any, error) {
	switch node.Tag {
	case "!!null":
		return nil, nil
	case "!!bool":
		var b bool
		if err := node.Decode(&b); err != nil {
			return nil, c.errorf(node, "invalid boolean %q", node.Value)
		}
		return b, nil
	case "!!int":
		var n int
		if err := node.Decode(&n); err != nil {
			return nil, c.errorf(node, "invalid integer %q", node.Value)
		}
		return n, nil
	case "!!float":
		var f float64
		if err := node.Decode(&f); err != nil {
			return nil, c.errorf(node, "invalid float %q", node.Value)
		}
		return f, nil
	case "!!str", "!!binary", "!!timestamp", "!", "":
		return node.Value, nil
	default:
		return nil, c.errorf(node, "unsupported tag %s", node.Tag)
	}
}

// isLocalTag reports application tags such as `!reference`.
func isLocalTag(tag string) bool {
	return strings.HasPrefix(tag, "!") && !strings.HasPrefix(tag, "!!") && tag != "!"
}
