package db

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var (
	stmtMetricsEnabled bool
	stmtDuration       metric.Float64Histogram
	stmtErrors         metric.Int64Counter
	stmtTracer         trace.Tracer
)

// InitTelemetry registers the statement histogram and error counter. Calls
// made before it still produce spans through the global tracer.
func InitTelemetry(serviceName string) {
	stmtTracer = otel.Tracer(serviceName + "/db")
	meter := otel.Meter(serviceName + "/db")

	var err error
	stmtDuration, err = meter.Float64Histogram(
		"userdesk_store_statement_duration_seconds",
		metric.WithDescription("Postgres key-value statement latency"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return
	}

	stmtErrors, err = meter.Int64Counter(
		"userdesk_store_statement_errors_total",
		metric.WithDescription("Postgres key-value statement errors"),
	)
	if err != nil {
		return
	}

	stmtMetricsEnabled = true
}

type statement struct {
	op    string
	table string
}

type instrumentedQueryer struct {
	q Queryer
}

func (i instrumentedQueryer) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	start := time.Now()
	ctx, span, st := startStatementSpan(ctx, sql)
	tag, err := i.q.Exec(ctx, sql, arguments...)
	recordStatement(ctx, span, st, err, time.Since(start))
	return tag, err
}

func (i instrumentedQueryer) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	start := time.Now()
	ctx, span, st := startStatementSpan(ctx, sql)
	return &instrumentedRow{
		Row:   i.q.QueryRow(ctx, sql, args...),
		ctx:   ctx,
		st:    st,
		start: start,
		span:  span,
	}
}

type instrumentedRow struct {
	pgx.Row
	ctx   context.Context
	st    statement
	start time.Time
	span  trace.Span
	once  sync.Once
}

// Scan ends the span. pgx.ErrNoRows is a miss, not a failure.
func (r *instrumentedRow) Scan(dest ...any) error {
	err := r.Row.Scan(dest...)
	r.once.Do(func() {
		recorded := err
		if errors.Is(err, pgx.ErrNoRows) {
			recorded = nil
			r.span.SetAttributes(attribute.Bool("db.miss", true))
		}
		recordStatement(r.ctx, r.span, r.st, recorded, time.Since(r.start))
	})
	return err
}

func startStatementSpan(ctx context.Context, sql string) (context.Context, trace.Span, statement) {
	st := classify(sql)
	tracer := stmtTracer
	if tracer == nil {
		tracer = otel.Tracer("userdesk-db")
	}
	ctx, span := tracer.Start(ctx, "DB "+st.op+" "+st.table)
	span.SetAttributes(statementAttrs(st)...)
	return ctx, span, st
}

func recordStatement(ctx context.Context, span trace.Span, st statement, err error, duration time.Duration) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "db_error")
	}
	span.End()

	if !stmtMetricsEnabled {
		return
	}

	attrs := append(statementAttrs(st), attribute.String("db.status", statusLabel(err)))
	stmtDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
	if err != nil {
		stmtErrors.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

func statementAttrs(st statement) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", st.op),
		attribute.String("db.sql.table", st.table),
	}
}

func statusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// classify reduces a statement to its verb and target table. An INSERT with
// ON CONFLICT is reported as UPSERT.
func classify(sql string) statement {
	fields := strings.Fields(sql)
	if len(fields) == 0 {
		return statement{op: "UNKNOWN", table: "unknown"}
	}
	st := statement{op: strings.ToUpper(fields[0]), table: "unknown"}

	upper := strings.ToUpper(sql)
	if st.op == "INSERT" && strings.Contains(upper, "ON CONFLICT") {
		st.op = "UPSERT"
	}

	for i, f := range fields {
		switch strings.ToUpper(f) {
		case "FROM", "INTO", "TABLE", "UPDATE":
			j := i + 1
			for j < len(fields) && isClauseWord(fields[j]) {
				j++
			}
			if j < len(fields) {
				st.table = tableName(fields[j])
				return st
			}
		}
	}
	return st
}

func isClauseWord(f string) bool {
	switch strings.ToUpper(f) {
	case "IF", "NOT", "EXISTS", "ONLY":
		return true
	}
	return false
}

// tableName drops a column list glued to the table, as in kv_store(key).
func tableName(word string) string {
	if i := strings.IndexByte(word, '('); i >= 0 {
		word = word[:i]
	}
	word = strings.Trim(word, `"`)
	if word == "" {
		return "unknown"
	}
	return word
}
