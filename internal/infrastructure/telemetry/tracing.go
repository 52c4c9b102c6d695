package telemetry

import (
	"context"
	"errors"

	"github.com/flora/backend/internal/domain/shared"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName names the tracer used for service spans
const TracerName = "flora-backend"

// Span attribute keys shared by the services
const (
	AttrItems             = attribute.Key("flora.items")
	AttrBalances          = attribute.Key("flora.balances")
	AttrTransactionID     = attribute.Key("flora.transaction.id")
	AttrTransactionNumber = attribute.Key("flora.transaction.number")
	AttrIdempotentReplay  = attribute.Key("flora.idempotent_replay")
	AttrErrorCode         = attribute.Key("flora.error.code")
)

// StartServiceSpan starts an internal span named "{service}.{method}".
//
//	ctx, span := telemetry.StartServiceSpan(ctx, "pos", "create_sale", telemetry.AttrItems.Int(n))
//	defer func() { telemetry.EndSpan(span, err) }()
func StartServiceSpan(ctx context.Context, service, method string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.GetTracerProvider().Tracer(TracerName).Start(ctx, service+"."+method,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...),
	)
}

// RecordError attaches err to the span. Business rule violations carry
// their code and leave the status unset; anything else marks the span
// failed. A nil error is ignored.
func RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)

	var de *shared.DomainError
	if errors.As(err, &de) && !errors.Is(de, shared.ErrUnavailable) {
		span.SetAttributes(AttrErrorCode.String(de.Code))
		return
	}
	span.SetStatus(codes.Error, err.Error())
}

// EndSpan records err and ends the span
func EndSpan(span trace.Span, err error) {
	RecordError(span, err)
	span.End()
}

// TraceID returns the trace ID of the span in ctx, or ""
func TraceID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.TraceID().IsValid() {
		return ""
	}
	return sc.TraceID().String()
}
