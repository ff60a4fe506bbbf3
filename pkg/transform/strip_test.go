package transform

import (
	"context"
	"testing"
)

func TestRemoveIncludes_Idempotent(t *testing.T) {
	content := map[string]any{
		"items":    []any{},
		"includes": map[string]any{"Asset": []any{}},
	}

	stage := RemoveIncludes{}
	stage.Apply(context.Background(), content)

	if _, ok := content["includes"]; ok {
		t.Error("includes still present")
	}

	// Second application is a no-op, not an error.
	stage.Apply(context.Background(), content)
	if _, ok := content["items"]; !ok {
		t.Error("items removed by repeated application")
	}
}

func TestRemoveRootSys_Idempotent(t *testing.T) {
	content := map[string]any{
		"items": []any{},
		"sys":   map[string]any{"type": "Array"},
	}

	stage := RemoveRootSys{}
	stage.Apply(context.Background(), content)
	stage.Apply(context.Background(), content)

	if _, ok := content["sys"]; ok {
		t.Error("sys still present")
	}
	if _, ok := content["items"]; !ok {
		t.Error("items removed")
	}
}
