package transform

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/stanwood/contentful-proxy/pkg/logging"
)

// Stage is one transformation pass over a response envelope. Apply returns
// the (possibly unchanged) envelope; stages handle their own tolerance for
// malformed sub-structures and never report errors to the orchestrator.
type Stage interface {
	Name() string
	Apply(ctx context.Context, content map[string]any) map[string]any
}

// Pipeline runs stages over an envelope in fixed order.
//
// The order is load-bearing: asset URLs must be rewritten while the envelope
// still has its CMS-native shape, links must resolve before flattening
// collapses the stubs, and the envelope members can only be stripped once no
// later stage reads them.
type Pipeline struct {
	stages []Stage
	logger zerolog.Logger
}

// NewPipeline creates a pipeline over the given stages.
func NewPipeline(stages ...Stage) *Pipeline {
	return &Pipeline{
		stages: stages,
		logger: logging.NewLogger("pipeline"),
	}
}

// Default assembles the canonical six-stage pipeline.
func Default(proxyHostname string, cache VideoCache, resolver VideoResolver) *Pipeline {
	return NewPipeline(
		NewReplaceAssetLinks(proxyHostname),
		NewResolveIncludes(),
		NewResolveVideos(cache, resolver),
		NewFlattenFields(),
		RemoveIncludes{},
		RemoveRootSys{},
	)
}

// Run applies all stages in order and returns the transformed envelope.
func (p *Pipeline) Run(ctx context.Context, content map[string]any) map[string]any {
	for _, stage := range p.stages {
		start := time.Now()
		content = stage.Apply(ctx, content)
		elapsed := time.Since(start)

		stageDuration.WithLabelValues(stage.Name()).Observe(elapsed.Seconds())
		p.logger.Debug().
			Str("stage", stage.Name()).
			Dur("duration", elapsed).
			Msg("Stage applied")
	}
	return content
}
