package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fitsocial/followgraph/internal/relation"
	"github.com/fitsocial/followgraph/pkg/telemetry"
)

type metrics struct {
	transitions otelmetric.Int64Counter
	retries     otelmetric.Int64Counter
	duration    otelmetric.Float64Histogram
}

func newMetrics() (*metrics, error) {
	meter := telemetry.Meter()

	transitions, err := meter.Int64Counter("followgraph_transitions_total",
		otelmetric.WithDescription("Relationship transitions by action and outcome"))
	if err != nil {
		return nil, fmt.Errorf("failed to create transitions counter: %w", err)
	}
	retries, err := meter.Int64Counter("followgraph_store_retries_total",
		otelmetric.WithDescription("Store operations retried after a transient failure"))
	if err != nil {
		return nil, fmt.Errorf("failed to create retries counter: %w", err)
	}
	duration, err := meter.Float64Histogram("followgraph_operation_duration_seconds",
		otelmetric.WithDescription("Relationship service operation latency"),
		otelmetric.WithUnit("s"))
	if err != nil {
		return nil, fmt.Errorf("failed to create duration histogram: %w", err)
	}

	return &metrics{transitions: transitions, retries: retries, duration: duration}, nil
}

// outcome labels err for metrics and spans
func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return "canceled"
	}
	if kind := relation.KindOf(err); kind != nil {
		return kind.Error()
	}
	return "error"
}

// startOp opens the span of one service operation. The returned func ends
// it and records the duration
func (s *Service) startOp(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	ctx, span := telemetry.StartSpan(ctx, "relations."+op, trace.WithAttributes(attrs...))
	start := time.Now()
	return ctx, func(err error) {
		out := outcome(err)
		if err != nil && !relation.IsTerminal(err) {
			span.RecordError(err)
			span.SetStatus(codes.Error, out)
		}
		span.SetAttributes(attribute.String("outcome", out))
		span.End()
		s.metrics.duration.Record(ctx, time.Since(start).Seconds(), otelmetric.WithAttributes(
			attribute.String("operation", op),
			attribute.String("outcome", out),
		))
	}
}
