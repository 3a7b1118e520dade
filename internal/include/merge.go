package include

import "github.com/roach88/pipec/internal/ir"

// deepMerge applies src over dst. Mappings present on both sides merge
// recursively; any other value in src replaces the one in dst. Existing
// keys keep their position and new keys are appended.
func deepMerge(dst, src *ir.Mapping) {
	for _, key := range src.Keys() {
		value, _ := src.Get(key)
		if incoming, ok := value.(*ir.Mapping); ok {
			if existing, ok := mappingAt(dst, key); ok {
				merged := existing.Clone()
				deepMerge(merged, incoming)
				dst.Set(key, merged)
				continue
			}
			dst.Set(key, incoming.Clone())
			continue
		}
		dst.Set(key, ir.CloneValue(value))
	}
}

func mappingAt(m *ir.Mapping, key string) (*ir.Mapping, bool) {
	v, ok := m.Get(key)
	if !ok {
		return nil, false
	}
	mm, ok := v.(*ir.Mapping)
	return mm, ok
}

// split divides body around its include: key. Without one, everything is
// before.
func split(body *ir.Mapping) (before, after *ir.Mapping, include any, found bool) {
	before, after = ir.NewMapping(), ir.NewMapping()
	idx := body.Index(includeKey)
	for i, key := range body.Keys() {
		value, _ := body.Get(key)
		switch {
		case idx < 0 || i < idx:
			before.Set(key, value)
		case i == idx:
			include, found = value, true
		default:
			after.Set(key, value)
		}
	}
	return before, after, include, found
}
