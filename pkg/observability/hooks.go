package observability

import (
	"context"
	"log/slog"

	"github.com/gnueaj/SAE-vis-sub000/pkg/domain"
)

// LogHooks returns lifecycle hooks that log every event.
// Integrity warnings are logged at Warn, everything else at Debug.
func LogHooks(logger *slog.Logger) domain.LifecycleHooks {
	stage := func(ctx context.Context, e *domain.StageEvent) {
		logger.DebugContext(ctx, string(e.Type),
			"tree_id", e.TreeID,
			"node_id", e.NodeID,
			"rule_type", e.RuleType,
			"children", e.Children,
		)
	}
	return domain.LifecycleHooks{
		OnStageAdded:        stage,
		OnStageRemoved:      stage,
		OnThresholdsUpdated: stage,
		OnFetch: func(ctx context.Context, e *domain.FetchEvent) {
			if e.Err != nil {
				logger.WarnContext(ctx, "fetch failed", "metric", e.Metric, "duration", e.Duration, "err", e.Err)
				return
			}
			logger.DebugContext(ctx, "fetch",
				"metric", e.Metric,
				"thresholds", e.Thresholds,
				"groups", e.Groups,
				"duration", e.Duration,
			)
		},
		OnIntegrityWarning: func(ctx context.Context, e *domain.IntegrityEvent) {
			logger.WarnContext(ctx, "integrity warning",
				"kind", e.Kind,
				"node_id", e.NodeID,
				"metric", e.Metric,
				"reported", e.Reported,
				"computed", e.Computed,
			)
		},
	}
}

// Chain merges hooks so that every non-nil callback runs in order.
func Chain(hooks ...domain.LifecycleHooks) domain.LifecycleHooks {
	var out domain.LifecycleHooks
	for _, h := range hooks {
		out.OnStageAdded = chain(out.OnStageAdded, h.OnStageAdded)
		out.OnStageRemoved = chain(out.OnStageRemoved, h.OnStageRemoved)
		out.OnThresholdsUpdated = chain(out.OnThresholdsUpdated, h.OnThresholdsUpdated)
		out.OnFetch = chain(out.OnFetch, h.OnFetch)
		out.OnIntegrityWarning = chain(out.OnIntegrityWarning, h.OnIntegrityWarning)
	}
	return out
}

func chain[E any](a, b func(context.Context, E)) func(context.Context, E) {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	return func(ctx context.Context, e E) {
		a(ctx, e)
		b(ctx, e)
	}
}
