package obs

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// maxStatementLen caps the recorded statement so bulk breakdown inserts do
// not bloat span payloads.
const maxStatementLen = 300

type ctxSpanKey struct{}

// PGXTracer implements pgx.QueryTracer so catalog reads and breakdown writes
// show up as child spans of the reprice request.
type PGXTracer struct{}

// TraceQueryStart opens a span named after the SQL verb.
func (PGXTracer) TraceQueryStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	name := "db.query"
	operation := ""
	if fields := strings.Fields(data.SQL); len(fields) > 0 {
		operation = strings.ToLower(fields[0])
		name = "db." + operation
	}
	ctx, span := otel.Tracer("pricing.db").Start(ctx, name)
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.statement", truncateSQL(data.SQL)),
	)
	if operation != "" {
		span.SetAttributes(attribute.String("db.operation", operation))
	}
	return context.WithValue(ctx, ctxSpanKey{}, span)
}

// TraceQueryEnd ends the span and records any error.
func (PGXTracer) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	if span, ok := ctx.Value(ctxSpanKey{}).(trace.Span); ok {
		if data.Err != nil {
			span.RecordError(data.Err)
		}
		span.End()
	}
}

func truncateSQL(sql string) string {
	trimmed := strings.TrimSpace(sql)
	if len(trimmed) > maxStatementLen {
		return trimmed[:maxStatementLen] + "..."
	}
	return trimmed
}
