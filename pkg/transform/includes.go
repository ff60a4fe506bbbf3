package transform

import (
	"context"
)

// maxResolveDepth caps recursion while resolving links. Contentful does not
// produce cyclic includes; the cap guards against pathological payloads.
const maxResolveDepth = 32

// ResolveIncludes replaces Contentful link stubs inside items with the full
// entry/asset fields carried in the envelope's includes member.
type ResolveIncludes struct{}

// NewResolveIncludes creates the stage.
func NewResolveIncludes() *ResolveIncludes { return &ResolveIncludes{} }

// Name implements Stage.
func (t *ResolveIncludes) Name() string { return "resolve_includes" }

// Apply builds an index of includes by (linkType, id) and walks items,
// replacing every link stub whose target is present. The resolved value is
// the target's fields plus an "id" member so the entry keeps its identity
// after flattening strips sys. Dangling links keep their stub so the
// flattener can still reduce them to a bare id. Envelopes without includes
// or items are returned unchanged.
func (t *ResolveIncludes) Apply(ctx context.Context, content map[string]any) map[string]any {
	includesRaw, hasIncludes := content["includes"]
	items, hasItems := content["items"]
	if !hasIncludes || !hasItems {
		return content
	}

	index := buildIncludesIndex(includesRaw)
	content["items"] = resolveValue(items, index, 0)

	return content
}

// includesIndex maps linkType -> id -> fields.
type includesIndex map[string]map[string]map[string]any

func buildIncludesIndex(includesRaw any) includesIndex {
	index := includesIndex{}

	includes, ok := includesRaw.(map[string]any)
	if !ok {
		return index
	}

	for linkType, values := range includes {
		list, ok := values.([]any)
		if !ok {
			continue
		}
		for _, value := range list {
			id, ok := itemID(value)
			if !ok {
				continue
			}
			fields, ok := dig(value, "fields")
			if !ok {
				continue
			}
			fieldsMap, ok := fields.(map[string]any)
			if !ok {
				continue
			}
			if index[linkType] == nil {
				index[linkType] = map[string]map[string]any{}
			}
			index[linkType][id] = fieldsMap
		}
	}

	return index
}

func resolveValue(v any, index includesIndex, depth int) any {
	if depth > maxResolveDepth {
		return v
	}

	switch value := v.(type) {
	case map[string]any:
		m := value

		if isLinkStub(m) {
			linkType, _ := digString(m, "sys", "linkType")
			id, _ := itemID(m)
			if fields, ok := index[linkType][id]; ok {
				resolved := make(map[string]any, len(fields)+1)
				for k, fv := range fields {
					resolved[k] = fv
				}
				resolved["id"] = id
				m = resolved
			}
			// Target absent: keep the stub, the flattener reduces it to its id.
		}

		out := make(map[string]any, len(m))
		for k, child := range m {
			out[k] = resolveValue(child, index, depth+1)
		}
		return out

	case []any:
		out := make([]any, len(value))
		for i, element := range value {
			out[i] = resolveValue(element, index, depth+1)
		}
		return out

	default:
		return v
	}
}

// isLinkStub reports whether m is a Contentful link placeholder.
func isLinkStub(m map[string]any) bool {
	sysType, _ := digString(m, "sys", "type")
	if sysType != "Link" {
		return false
	}
	linkType, _ := digString(m, "sys", "linkType")
	return linkType == "Asset" || linkType == "Entry"
}
