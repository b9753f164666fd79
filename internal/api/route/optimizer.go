package route

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/xco2/tripspot/app/observability/metrics"
	"github.com/xco2/tripspot/internal/api/advisor"
	"github.com/xco2/tripspot/internal/api/duration"
	"github.com/xco2/tripspot/internal/types"
)

// InsufficientAdvice is the advice of a route with fewer than two places.
const InsufficientAdvice = "请选择更多地点以规划路线。"

// DefaultMaxConcurrency bounds the legs estimated at once in one step.
const DefaultMaxConcurrency = 8

type Planner interface {
	// Plan orders places with a nearest-neighbour walk starting at the first one.
	Plan(ctx context.Context, places []types.Place) (types.Route, error)
}

type Optimizer struct {
	logger         *slog.Logger
	durations      duration.Source
	advisor        advisor.Service
	maxConcurrency int
}

var _ Planner = (*Optimizer)(nil)

func NewOptimizer(durations duration.Source, advice advisor.Service, maxConcurrency int, logger *slog.Logger) *Optimizer {
	if maxConcurrency <= 0 {
		maxConcurrency = DefaultMaxConcurrency
	}
	return &Optimizer{
		logger:         logger,
		durations:      durations,
		advisor:        advice,
		maxConcurrency: maxConcurrency,
	}
}

func (o *Optimizer) Plan(ctx context.Context, places []types.Place) (types.Route, error) {
	ctx, span := otel.Tracer("RouteOptimizer").Start(ctx, "Plan", trace.WithAttributes(
		attribute.Int("places.count", len(places)),
	))
	defer span.End()

	l := o.logger.With(slog.String("method", "Plan"))
	m := metrics.Get()

	places = firstOccurrences(places)
	if len(places) < 2 {
		ids := make([]string, len(places))
		for i, p := range places {
			ids[i] = p.ID
		}
		m.RoutePlansTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "degenerate")))
		span.SetStatus(codes.Ok, "degenerate route")
		return types.Route{Sequence: ids, Advice: InsufficientAdvice}, nil
	}
	for _, p := range places {
		if !p.Located() {
			err := fmt.Errorf("%w: place %q has no coordinates", types.ErrInvalidInput, p.ID)
			span.RecordError(err)
			span.SetStatus(codes.Error, "unlocated place")
			m.RoutePlansTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "invalid")))
			return types.Route{}, err
		}
	}

	t0 := time.Now()
	est := o.durations.Session(ctx)

	current := places[0]
	ordered := []types.Place{current}
	remaining := append([]types.Place(nil), places[1:]...)
	totalSeconds := 0.0

	for len(remaining) > 0 {
		costs, err := o.estimateStep(ctx, est, current, remaining)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "cancelled")
			return types.Route{}, err
		}

		best := -1
		for i, c := range costs {
			if math.IsNaN(c) || math.IsInf(c, 0) || c < 0 {
				continue
			}
			if best == -1 || c < costs[best] {
				best = i
			}
		}
		if best == -1 {
			l.WarnContext(ctx, "No usable leg estimate, stopping early",
				slog.Int("visited", len(ordered)), slog.Int("remaining", len(remaining)))
			break
		}

		totalSeconds += costs[best]
		current = remaining[best]
		ordered = append(ordered, current)
		remaining = append(remaining[:best], remaining[best+1:]...)
	}

	minutes := int(math.Round(totalSeconds / 60))
	sequence := make([]string, len(ordered))
	for i, p := range ordered {
		sequence[i] = p.ID
	}

	l.InfoContext(ctx, "Route sequenced",
		slog.Int("stops", len(sequence)),
		slog.Float64("total_seconds", totalSeconds),
		slog.Int64("elapsed_ms", time.Since(t0).Milliseconds()))

	r := types.Route{
		Sequence:             sequence,
		TotalDurationMinutes: minutes,
		Advice:               o.advisor.Advise(ctx, ordered, minutes),
	}
	m.RoutePlansTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "planned")))
	span.SetAttributes(attribute.Int("route.minutes", minutes), attribute.Int("route.stops", len(sequence)))
	span.SetStatus(codes.Ok, "route planned")
	return r, nil
}

// estimateStep asks for every candidate leg from current concurrently and waits for all of them.
func (o *Optimizer) estimateStep(ctx context.Context, est duration.Estimator, current types.Place, candidates []types.Place) ([]float64, error) {
	costs := make([]float64, len(candidates))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.maxConcurrency)
	for i, c := range candidates {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			costs[i] = est.Estimate(gctx, current, c)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return costs, ctx.Err()
}

func firstOccurrences(places []types.Place) []types.Place {
	seen := make(map[string]struct{}, len(places))
	out := make([]types.Place, 0, len(places))
	for _, p := range places {
		if _, ok := seen[p.ID]; ok {
			continue
		}
		seen[p.ID] = struct{}{}
		out = append(out, p)
	}
	return out
}
