package transform

import "context"

// RemoveIncludes deletes the envelope's includes member. It only makes sense
// after link resolution, which is the last reader of includes. Idempotent;
// absence is not an error.
type RemoveIncludes struct{}

// Name implements Stage.
func (RemoveIncludes) Name() string { return "remove_includes" }

// Apply implements Stage.
func (RemoveIncludes) Apply(ctx context.Context, content map[string]any) map[string]any {
	delete(content, "includes")
	return content
}

// RemoveRootSys deletes the envelope's root sys member. Idempotent; absence
// is not an error.
type RemoveRootSys struct{}

// Name implements Stage.
func (RemoveRootSys) Name() string { return "remove_root_sys" }

// Apply implements Stage.
func (RemoveRootSys) Apply(ctx context.Context, content map[string]any) map[string]any {
	delete(content, "sys")
	return content
}
