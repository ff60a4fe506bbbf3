package transform

import (
	"context"
	"reflect"
	"testing"
)

func flattenValue(t *testing.T, v any) any {
	t.Helper()
	return NewFlattenFields().flattenField(v)
}

func TestFlattenField_Scalars(t *testing.T) {
	for _, v := range []any{"text", true, float64(42), 3.14} {
		if got := flattenValue(t, v); got != v {
			t.Errorf("flattenField(%v) = %v, want unchanged", v, got)
		}
	}
}

func TestFlattenField_Image(t *testing.T) {
	image := map[string]any{
		"title": "A photo",
		"file": map[string]any{
			"url":         "https://proxy.test/contentful/file_cache/img.test/a/photo.png",
			"contentType": "image/png",
			"details": map[string]any{
				"image": map[string]any{"width": float64(800), "height": float64(600)},
			},
		},
	}

	got := flattenValue(t, image)
	want := map[string]any{
		"url":    "https://proxy.test/contentful/file_cache/img.test/a/photo.png",
		"width":  float64(800),
		"height": float64(600),
		"title":  "A photo",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("flattenField(image) = %v, want %v", got, want)
	}
}

func TestFlattenField_ImageWithoutTitle(t *testing.T) {
	image := map[string]any{
		"file": map[string]any{
			"url":     "//img.test/a/b.png",
			"details": map[string]any{"image": map[string]any{"width": float64(1), "height": float64(2)}},
		},
	}

	got := flattenValue(t, image).(map[string]any)
	if _, hasTitle := got["title"]; hasTitle {
		t.Errorf("title present: %v", got)
	}
}

func TestFlattenField_MovieFile(t *testing.T) {
	movie := map[string]any{
		"file": map[string]any{
			"url":         "//videos.test/a/clip.mp4",
			"contentType": "video/mp4",
		},
	}

	if got := flattenValue(t, movie); got != "//videos.test/a/clip.mp4" {
		t.Errorf("flattenField(movie) = %v, want bare url", got)
	}
}

func TestFlattenField_PDF(t *testing.T) {
	pdf := map[string]any{
		"pdf": map[string]any{
			"fields": map[string]any{
				"file": map[string]any{"url": "//docs.test/a/manual.pdf"},
			},
		},
	}

	if got := flattenValue(t, pdf); got != "//docs.test/a/manual.pdf" {
		t.Errorf("flattenField(pdf) = %v", got)
	}
}

func TestFlattenField_NullPDF(t *testing.T) {
	pdf := map[string]any{"pdf": nil}

	if got := flattenValue(t, pdf); got != "" {
		t.Errorf("flattenField(null pdf) = %v, want empty string", got)
	}
}

func TestFlattenField_NestedEntry(t *testing.T) {
	entry := map[string]any{
		"sys": map[string]any{"id": "nested1"},
		"fields": map[string]any{
			"title": "Nested",
			"empty": nil,
		},
	}

	got := flattenValue(t, entry)
	want := map[string]any{"title": "Nested", "id": "nested1"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("flattenField(nested entry) = %v, want %v (nulls dropped)", got, want)
	}
}

func TestFlattenField_UnresolvedLinkStub(t *testing.T) {
	stub := map[string]any{
		"sys": map[string]any{"type": "Link", "linkType": "Entry", "id": "ghost"},
	}

	got := flattenValue(t, stub)
	want := map[string]any{"id": "ghost"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("flattenField(stub) = %v, want %v", got, want)
	}
}

func TestFlattenField_AssetList(t *testing.T) {
	assets := []any{
		map[string]any{
			"file": map[string]any{
				"url":         "//img.test/a/1.png",
				"contentType": "image/png",
				"details":     map[string]any{"image": map[string]any{"width": float64(10), "height": float64(20)}},
			},
		},
		map[string]any{
			"file": map[string]any{"url": "//img.test/a/2.mp4", "contentType": "video/mp4"},
		},
	}

	got := flattenValue(t, assets).([]any)

	first := got[0].(map[string]any)
	if first["url"] != "//img.test/a/1.png" {
		t.Errorf("first asset = %v", first)
	}
	if got[1] != "//img.test/a/2.mp4" {
		t.Errorf("second asset = %v", got[1])
	}
}

func TestFlattenField_EntryList(t *testing.T) {
	entries := []any{
		map[string]any{"title": "One", "count": float64(1)},
		map[string]any{"title": "Two", "count": float64(2)},
	}

	got := flattenValue(t, entries).([]any)

	first := got[0].(map[string]any)
	if first["title"] != "One" || first["count"] != float64(1) {
		t.Errorf("first entry = %v", first)
	}
}

func TestFlattenField_RichText(t *testing.T) {
	document := map[string]any{
		"nodeType": "document",
		"content": []any{
			map[string]any{
				"nodeType": "paragraph",
				"content": []any{
					map[string]any{"nodeType": "text", "value": "Hello "},
					map[string]any{
						"nodeType": "text",
						"value":    "world",
						"marks":    []any{map[string]any{"type": "bold"}},
					},
				},
			},
			map[string]any{
				"nodeType": "embedded-asset-block",
				"data": map[string]any{
					"target": map[string]any{
						"title": "Diagram",
						"file":  map[string]any{"url": "//img.test/a/diagram.png"},
					},
				},
			},
		},
	}

	got := flattenValue(t, document)
	want := `<p>Hello <b>world</b></p><img src="//img.test/a/diagram.png" alt="Diagram" />`
	if got != want {
		t.Errorf("flattenField(richtext) = %q, want %q", got, want)
	}
}

func TestFlattenField_UnrecognizedShapePassesThrough(t *testing.T) {
	odd := map[string]any{"mystery": map[string]any{"deep": true}}

	got := flattenValue(t, odd)
	if !reflect.DeepEqual(got, odd) {
		t.Errorf("flattenField(unrecognized) = %v, want passthrough", got)
	}
}

func TestFlattenFields_Apply(t *testing.T) {
	content := map[string]any{
		"items": []any{
			map[string]any{
				"sys": map[string]any{"id": "item1"},
				"fields": map[string]any{
					"title":   "Hello",
					"dropped": nil,
				},
			},
		},
	}

	NewFlattenFields().Apply(context.Background(), content)

	item := content["items"].([]any)[0].(map[string]any)
	want := map[string]any{"title": "Hello", "id": "item1"}
	if !reflect.DeepEqual(item, want) {
		t.Errorf("flattened item = %v, want %v", item, want)
	}
}

func TestFlattenFields_MissingItems(t *testing.T) {
	content := map[string]any{"sys": map[string]any{}}
	got := NewFlattenFields().Apply(context.Background(), content)
	if _, hasItems := got["items"]; hasItems {
		t.Error("items appeared from nowhere")
	}
}
