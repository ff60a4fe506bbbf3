// Package transform implements the content-rewriting passes applied to
// Contentful response envelopes: asset URL rewriting, link resolution, Vimeo
// resolution, field flattening and envelope stripping, orchestrated by a
// fixed-order pipeline.
//
// Stages operate on the decoded JSON payload (map[string]any), mutate it in
// place where possible and never fail the run: a malformed sub-structure is
// skipped or passed through, logged, and the remaining content is still
// transformed.
package transform

// dig walks nested maps along keys and returns the value at the end of the
// path. The boolean is false if any intermediate value is missing or not a map.
func dig(v any, keys ...string) (any, bool) {
	current := v
	for _, key := range keys {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[key]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// digString is dig for string leaves.
func digString(v any, keys ...string) (string, bool) {
	value, ok := dig(v, keys...)
	if !ok {
		return "", false
	}
	s, ok := value.(string)
	return s, ok
}

// isScalar reports whether v is a JSON scalar (string, bool or number).
func isScalar(v any) bool {
	switch v.(type) {
	case string, bool, float64, int, int64:
		return true
	default:
		return false
	}
}

// itemID extracts sys.id from an item-shaped value.
func itemID(v any) (string, bool) {
	return digString(v, "sys", "id")
}
