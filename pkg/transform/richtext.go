package transform

import (
	"fmt"
	"strings"
)

// renderRichText renders a Contentful rich-text document to a single HTML
// string. The boolean is false when the value is not a rich-text document,
// letting the flattener try its other shape recognizers.
func renderRichText(value any) (string, bool) {
	m, ok := value.(map[string]any)
	if !ok {
		return "", false
	}
	if nodeType, _ := m["nodeType"].(string); nodeType != "document" {
		return "", false
	}
	if _, ok := m["content"].([]any); !ok {
		return "", false
	}

	return renderNode(m), true
}

func renderNode(node map[string]any) string {
	nodeType, _ := node["nodeType"].(string)

	switch nodeType {
	case "text":
		text, _ := node["value"].(string)
		return applyMarks(text, node["marks"])

	case "paragraph":
		return "<p>" + renderChildren(node) + "</p>"

	case "heading-1", "heading-2", "heading-3", "heading-4", "heading-5", "heading-6":
		level := nodeType[len(nodeType)-1:]
		return fmt.Sprintf("<h%s>%s</h%s>", level, renderChildren(node), level)

	case "hyperlink":
		uri, _ := digString(node, "data", "uri")
		return fmt.Sprintf(`<a href="%s">%s</a>`, uri, renderChildren(node))

	case "unordered-list":
		return "<ul>" + renderChildren(node) + "</ul>"

	case "ordered-list":
		return "<ol>" + renderChildren(node) + "</ol>"

	case "list-item":
		return "<li>" + renderChildren(node) + "</li>"

	case "blockquote":
		return "<blockquote>" + renderChildren(node) + "</blockquote>"

	case "hr":
		return "<hr/>"

	case "embedded-asset-block":
		// data.target holds the resolved asset fields after link resolution.
		src, ok := digString(node, "data", "target", "file", "url")
		if !ok {
			return ""
		}
		alt, _ := digString(node, "data", "target", "title")
		return fmt.Sprintf(`<img src="%s" alt="%s" />`, src, alt)

	default:
		return renderChildren(node)
	}
}

func renderChildren(node map[string]any) string {
	children, ok := node["content"].([]any)
	if !ok {
		return ""
	}

	var b strings.Builder
	for _, child := range children {
		childMap, ok := child.(map[string]any)
		if !ok {
			continue
		}
		b.WriteString(renderNode(childMap))
	}
	return b.String()
}

func applyMarks(text string, marks any) string {
	list, ok := marks.([]any)
	if !ok {
		return text
	}

	for _, mark := range list {
		markType, _ := digString(mark, "type")
		switch markType {
		case "bold":
			text = "<b>" + text + "</b>"
		case "italic":
			text = "<i>" + text + "</i>"
		case "underline":
			text = "<u>" + text + "</u>"
		case "code":
			text = "<code>" + text + "</code>"
		}
	}
	return text
}
