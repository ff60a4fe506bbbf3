package transform

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/stanwood/contentful-proxy/pkg/logging"
)

// FlattenFields collapses the CMS's verbose field/richtext/link structure
// into a flat, client-friendly shape: every field value becomes a scalar, a
// flat object or a list of flat objects.
type FlattenFields struct {
	logger zerolog.Logger
}

// NewFlattenFields creates the stage.
func NewFlattenFields() *FlattenFields {
	return &FlattenFields{
		logger: logging.NewLogger("flatten-fields"),
	}
}

// Name implements Stage.
func (t *FlattenFields) Name() string { return "flatten_fields" }

// Apply replaces each item with its flattened fields object, carrying the
// item's sys.id over as "id".
func (t *FlattenFields) Apply(ctx context.Context, content map[string]any) map[string]any {
	items, ok := content["items"].([]any)
	if !ok {
		return content
	}

	flattened := make([]any, len(items))
	for i, item := range items {
		fields, ok := dig(item, "fields")
		if !ok {
			flattened[i] = item
			continue
		}
		id, _ := itemID(item)
		flattened[i] = t.flattenFields(fields, id)
	}
	content["items"] = flattened

	return content
}

// flattenFields flattens every value of a fields object, dropping explicit
// nulls. A non-empty itemID is attached as "id".
func (t *FlattenFields) flattenFields(fields any, id string) any {
	m, ok := fields.(map[string]any)
	if !ok {
		return fields
	}

	out := make(map[string]any, len(m)+1)
	for key, value := range m {
		if value == nil {
			continue
		}
		out[key] = t.flattenField(value)
	}
	if id != "" {
		out["id"] = id
	}

	return out
}

// flattenField reduces a single field value. Shape recognizers are evaluated
// in priority order; the earliest match wins and the final default logs and
// passes the raw value through unchanged.
func (t *FlattenFields) flattenField(value any) any {
	// Rich-text documents render to a single HTML string.
	if html, ok := renderRichText(value); ok {
		return html
	}

	// Scalars pass through.
	if isScalar(value) {
		return value
	}

	// Lists: the first element decides between asset and entry handling.
	// A non-uniform list follows the first element's shape; that is an
	// accepted limitation of the format, not something to second-guess.
	if list, ok := value.([]any); ok {
		if len(list) > 0 {
			if _, isAsset := digString(list[0], "file", "contentType"); isAsset {
				out := make([]any, len(list))
				for i, element := range list {
					out[i] = t.flattenField(element)
				}
				return out
			}
		}
		out := make([]any, len(list))
		for i, element := range list {
			out[i] = t.flattenFields(element, "")
		}
		return out
	}

	// Image asset: url plus dimensions, title when present.
	if image, ok := flattenImage(value); ok {
		return image
	}

	// Movie or other plain file: bare URL.
	if fileURL, ok := digString(value, "file", "url"); ok {
		return fileURL
	}

	// PDF link.
	if pdfURL, ok := digString(value, "pdf", "fields", "file", "url"); ok {
		return pdfURL
	}

	// Explicitly null PDF link: the asset is gone, degrade to empty string.
	if m, ok := value.(map[string]any); ok {
		if pdf, exists := m["pdf"]; exists && pdf == nil {
			return ""
		}
	}

	// Nested entry: recurse into its fields, keeping its identity.
	if fields, ok := dig(value, "fields"); ok {
		id, _ := itemID(value)
		return t.flattenFields(fields, id)
	}

	// Unresolved link stub: reduce to its bare id.
	if id, ok := itemID(value); ok {
		return map[string]any{"id": id}
	}

	flattenFallbacks.Inc()
	t.logger.Warn().Interface("value", value).Msg("Failed to flatten field value")

	return value
}

// flattenImage extracts {url, width, height, title?} from an asset's file
// member. Both dimensions must be present, otherwise the value falls through
// to the plain-file case.
func flattenImage(value any) (map[string]any, bool) {
	fileURL, ok := digString(value, "file", "url")
	if !ok {
		return nil, false
	}
	width, ok := dig(value, "file", "details", "image", "width")
	if !ok {
		return nil, false
	}
	height, ok := dig(value, "file", "details", "image", "height")
	if !ok {
		return nil, false
	}

	image := map[string]any{
		"url":    fileURL,
		"width":  width,
		"height": height,
	}
	if title, ok := digString(value, "title"); ok {
		image["title"] = title
	}

	return image, true
}
