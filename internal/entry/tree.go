package entry

import (
	"fmt"
	"strings"

	"github.com/roach88/pipec/internal/ir"
)

// NodeID addresses a node in a Tree.
type NodeID int

type memo int8

const (
	memoUnknown memo = iota
	memoTrue
	memoFalse
)

type node struct {
	kind     Kind
	key      string
	location string
	config   any

	children []NodeID
	byKey    map[string]NodeID

	// errs holds the node's own diagnostics, not its descendants'.
	errs ir.Diagnostics

	valid    memo
	value    any
	composed bool
}

// Tree is an arena of entry nodes. Nodes are created by Compose and never
// modified afterwards; validity and values are computed on first demand
// and cached.
type Tree struct {
	nodes    []node
	composed bool
}

// Build creates a tree holding a single root node of the given kind.
// Call Compose to create the rest of the nodes.
func Build(kind Kind, config any, location string) *Tree {
	return &Tree{nodes: []node{{kind: kind, location: location, config: config}}}
}

// Root returns the id of the root node.
func (t *Tree) Root() NodeID { return 0 }

// Len returns the number of nodes.
func (t *Tree) Len() int { return len(t.nodes) }

// Kind returns the variant of a node.
func (t *Tree) Kind(id NodeID) Kind { return t.nodes[id].kind }

// Location returns the dotted path of a node.
func (t *Tree) Location(id NodeID) string { return t.nodes[id].location }

// Config returns the raw configuration of a node.
func (t *Tree) Config(id NodeID) any { return t.nodes[id].config }

// Children returns the child ids of a node in configuration order.
func (t *Tree) Children(id NodeID) []NodeID {
	return append([]NodeID(nil), t.nodes[id].children...)
}

// Child returns the child created for a hash key.
func (t *Tree) Child(id NodeID, key string) (NodeID, bool) {
	child, ok := t.nodes[id].byKey[key]
	return child, ok
}

// Compose walks the configuration top-down, creating a child for every
// key or item the dispatch table allows and recording structural errors
// as it goes. Siblings keep validating after an error. Compose is
// idempotent.
func (t *Tree) Compose() {
	if t.composed {
		return
	}
	t.composed = true

	queue := []NodeID{t.Root()}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		queue = append(queue, t.expand(id)...)
	}
}

// expand validates the shape of one node and creates its children.
func (t *Tree) expand(id NodeID) []NodeID {
	n := &t.nodes[id]
	spec := schema[n.kind]

	if n.config == nil && spec.nullable {
		return nil
	}

	var created []NodeID
	switch cfg := n.config.(type) {
	case *ir.Mapping:
		switch {
		case spec.forms&formHash != 0:
			created = t.expandHash(id, cfg, spec)
		case spec.forms&formNamed != 0:
			created = t.expandNamed(id, cfg, spec)
		case spec.forms&formList != 0 && spec.single:
			created = []NodeID{t.addChild(id, spec.each, "", n.location, cfg)}
		case spec.leaf != nil:
			if !t.checkLeaf(id, spec) {
				return nil
			}
		default:
			t.mismatch(id, spec)
			return nil
		}
	case []any:
		switch {
		case spec.forms&formList != 0:
			created = t.expandList(id, cfg, spec)
		case spec.leaf != nil:
			if !t.checkLeaf(id, spec) {
				return nil
			}
		default:
			t.mismatch(id, spec)
			return nil
		}
	default:
		switch {
		case spec.leaf != nil:
			if !t.checkLeaf(id, spec) {
				return nil
			}
		case spec.forms&formList != 0 && spec.single && n.config != nil:
			created = []NodeID{t.addChild(id, spec.each, "", n.location, n.config)}
		default:
			t.mismatch(id, spec)
			return nil
		}
	}

	if spec.check != nil {
		spec.check(&checker{tree: t, id: id})
	}
	return created
}

func (t *Tree) expandHash(id NodeID, cfg *ir.Mapping, spec *entrySpec) []NodeID {
	var created []NodeID
	location := t.nodes[id].location
	for _, key := range cfg.Keys() {
		childKind, ok := spec.keys[key]
		if !ok {
			if spec.ignoreKey != nil && spec.ignoreKey(key) {
				continue
			}
			t.nodes[id].errs = append(t.nodes[id].errs, ir.NewError(ir.KindStructural, ir.ErrUnknownKey,
				joinLocation(location, key), "config contains unknown key: %s", key))
			continue
		}
		value, _ := cfg.Get(key)
		created = append(created, t.addChild(id, childKind, key, joinLocation(location, key), value))
	}
	return created
}

func (t *Tree) expandNamed(id NodeID, cfg *ir.Mapping, spec *entrySpec) []NodeID {
	var created []NodeID
	location := t.nodes[id].location
	for _, key := range cfg.Keys() {
		childKind := spec.each
		if spec.eachKey != nil {
			childKind = spec.eachKey(key)
		}
		value, _ := cfg.Get(key)
		created = append(created, t.addChild(id, childKind, key, joinLocation(location, key), value))
	}
	return created
}

func (t *Tree) expandList(id NodeID, items []any, spec *entrySpec) []NodeID {
	var created []NodeID
	location := t.nodes[id].location
	itemSpec := schema[spec.each]
	hashOnly := itemSpec.leaf == nil && itemSpec.forms&^(formHash|formNamed) == 0
	for i, item := range items {
		loc := fmt.Sprintf("%s[%d]", location, i)
		if _, isHash := item.(*ir.Mapping); hashOnly && !isHash {
			t.nodes[id].errs = append(t.nodes[id].errs, ir.NewError(ir.KindStructural, ir.ErrArrayOfHashes,
				loc, "%s item should be a hash", spec.each))
			continue
		}
		created = append(created, t.addChild(id, spec.each, fmt.Sprint(i), loc, item))
	}
	return created
}

func (t *Tree) addChild(parent NodeID, kind Kind, key, location string, config any) NodeID {
	id := NodeID(len(t.nodes))
	t.nodes = append(t.nodes, node{kind: kind, key: key, location: location, config: config})
	p := &t.nodes[parent]
	p.children = append(p.children, id)
	if key != "" {
		if p.byKey == nil {
			p.byKey = make(map[string]NodeID)
		}
		p.byKey[key] = id
	}
	return id
}

// checkLeaf runs the leaf validator. A problem without a message is a
// shape mismatch.
func (t *Tree) checkLeaf(id NodeID, spec *entrySpec) bool {
	p := spec.leaf(t.nodes[id].config)
	if p == nil {
		return true
	}
	if p.message == "" {
		t.mismatch(id, spec)
		return false
	}
	t.nodes[id].errs = append(t.nodes[id].errs, ir.NewError(ir.KindStructural, p.code, t.nodes[id].location, "%s", p.message))
	return false
}

func (t *Tree) mismatch(id NodeID, spec *entrySpec) {
	n := &t.nodes[id]
	n.errs = append(n.errs, ir.NewError(ir.KindStructural, ir.ErrTypeMismatch, n.location,
		"config should be %s, got %s", spec.expect, ir.TypeName(n.config)))
}

// Valid reports whether the node and every descendant validated without
// errors. The answer is cached.
func (t *Tree) Valid(id NodeID) bool {
	n := &t.nodes[id]
	if n.valid != memoUnknown {
		return n.valid == memoTrue
	}
	ok := len(n.errs) == 0
	for _, child := range n.children {
		if !t.Valid(child) {
			ok = false
		}
	}
	if ok {
		n.valid = memoTrue
	} else {
		n.valid = memoFalse
	}
	return ok
}

// Errors returns the diagnostics of the node and its descendants, own
// errors first, then children in configuration order.
func (t *Tree) Errors(id NodeID) ir.Diagnostics {
	var out ir.Diagnostics
	var walk func(NodeID)
	walk = func(id NodeID) {
		out = append(out, t.nodes[id].errs...)
		for _, child := range t.nodes[id].children {
			walk(child)
		}
	}
	walk(id)
	return out
}

// Value returns the typed value composed from the node's configuration
// and its children's values. An invalid node has no value. The result is
// cached.
func (t *Tree) Value(id NodeID) any {
	if !t.Valid(id) {
		return nil
	}
	n := &t.nodes[id]
	if n.composed {
		return n.value
	}
	var v any
	if spec := schema[n.kind]; spec.compose != nil {
		v = spec.compose(&composer{tree: t, id: id})
	} else {
		v = n.config
	}
	n.value = v
	n.composed = true
	return v
}

func joinLocation(location, key string) string {
	if location == "" {
		return key
	}
	return location + "." + key
}

func hiddenName(name string) bool {
	return strings.HasPrefix(name, ".")
}
