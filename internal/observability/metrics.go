package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricRequestsTotal    = "llvmlines.requests.total"
	metricRequestDuration  = "llvmlines.request.duration.seconds"
	metricErrorsTotal      = "llvmlines.errors.total"
	metricInflightRequests = "llvmlines.inflight.requests"

	metricRunsTotal      = "llvmlines.runs.total"
	metricRunDuration    = "llvmlines.run.duration.seconds"
	metricFunctionsTotal = "llvmlines.functions.total"
	metricDistinctTotal  = "llvmlines.functions.distinct"
	metricIRLinesTotal   = "llvmlines.ir.lines.total"
	metricIRBytesTotal   = "llvmlines.ir.bytes.total"
	metricInputLines     = "llvmlines.ir.input_lines.total"
	metricAnonymousTotal = "llvmlines.functions.anonymous"
	metricFilesTotal     = "llvmlines.files.total"

	attrOp     = "op"
	attrStatus = "status"
	attrSource = "source"

	// StatusOK marks a successful request or run.
	StatusOK = "ok"
	// StatusError marks a failed request or run.
	StatusError = "error"
)

// durationBucketBoundaries covers 10ms to 30 minutes; a cold crate build
// dominates a run.
var durationBucketBoundaries = []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 120, 300, 600, 1800}

// REDMetrics holds the OTel instruments for Rate, Error, Duration metrics.
type REDMetrics struct {
	requestsTotal    metric.Int64Counter
	requestDuration  metric.Float64Histogram
	errorsTotal      metric.Int64Counter
	inflightRequests metric.Int64UpDownCounter
}

// NewREDMetrics creates RED metric instruments from the given meter.
func NewREDMetrics(mt metric.Meter) (*REDMetrics, error) {
	b := newMetricBuilder(mt)

	rm := &REDMetrics{
		requestsTotal:    b.counter(metricRequestsTotal, "Total number of requests", "{request}"),
		requestDuration:  b.histogram(metricRequestDuration, "Request duration in seconds", "s", durationBucketBoundaries...),
		errorsTotal:      b.counter(metricErrorsTotal, "Total number of errors", "{error}"),
		inflightRequests: b.upDownCounter(metricInflightRequests, "Number of in-flight requests", "{request}"),
	}

	if b.err != nil {
		return nil, b.err
	}

	return rm, nil
}

// RecordRequest records a completed request with its operation, status, and duration.
func (rm *REDMetrics) RecordRequest(ctx context.Context, op, status string, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String(attrOp, op),
		attribute.String(attrStatus, status),
	)

	rm.requestsTotal.Add(ctx, 1, attrs)
	rm.requestDuration.Record(ctx, duration.Seconds(), attrs)

	if status == StatusError {
		rm.errorsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrOp, op)))
	}
}

// TrackInflight increments the in-flight gauge and returns a function to decrement it.
func (rm *REDMetrics) TrackInflight(ctx context.Context, op string) func() {
	attrs := metric.WithAttributes(attribute.String(attrOp, op))
	rm.inflightRequests.Add(ctx, 1, attrs)

	return func() {
		rm.inflightRequests.Add(ctx, -1, attrs)
	}
}

// RunStats describes one analysis run.
type RunStats struct {
	// Source is "cargo", "files" or "mcp".
	Source string
	Status string

	Duration time.Duration

	// Functions is the number of function bodies counted.
	Functions int
	// Distinct is the number of normalized names.
	Distinct int
	// Lines is the total IR lines attributed to functions.
	Lines int
	// InputBytes is the size of the IR read.
	InputBytes int
	// InputLines is the number of IR lines scanned.
	InputLines int
	// Anonymous is the number of bodies skipped for lack of a symbol.
	Anonymous int
	// Files is the number of IR files read.
	Files int
}

// RunMetrics records per-run analysis totals.
type RunMetrics struct {
	runsTotal      metric.Int64Counter
	runDuration    metric.Float64Histogram
	functionsTotal metric.Int64Counter
	distinctTotal  metric.Int64Counter
	irLinesTotal   metric.Int64Counter
	irBytesTotal   metric.Int64Counter
	inputLines     metric.Int64Counter
	anonymousTotal metric.Int64Counter
	filesTotal     metric.Int64Counter
}

// NewRunMetrics creates run metric instruments from the given meter.
func NewRunMetrics(mt metric.Meter) (*RunMetrics, error) {
	b := newMetricBuilder(mt)

	rm := &RunMetrics{
		runsTotal:      b.counter(metricRunsTotal, "Total number of analysis runs", "{run}"),
		runDuration:    b.histogram(metricRunDuration, "Run duration including the build", "s", durationBucketBoundaries...),
		functionsTotal: b.counter(metricFunctionsTotal, "Function bodies counted", "{function}"),
		distinctTotal:  b.counter(metricDistinctTotal, "Distinct normalized function names", "{function}"),
		irLinesTotal:   b.counter(metricIRLinesTotal, "IR instruction lines attributed to functions", "{line}"),
		irBytesTotal:   b.counter(metricIRBytesTotal, "IR bytes read", "By"),
		inputLines:     b.counter(metricInputLines, "IR lines scanned", "{line}"),
		anonymousTotal: b.counter(metricAnonymousTotal, "Function bodies without a symbol", "{function}"),
		filesTotal:     b.counter(metricFilesTotal, "IR files read", "{file}"),
	}

	if b.err != nil {
		return nil, b.err
	}

	return rm, nil
}

// RecordRun records the outcome of one run.
func (rm *RunMetrics) RecordRun(ctx context.Context, stats RunStats) {
	status := stats.Status
	if status == "" {
		status = StatusOK
	}

	source := metric.WithAttributes(attribute.String(attrSource, stats.Source))

	rm.runsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrSource, stats.Source),
		attribute.String(attrStatus, status),
	))
	rm.runDuration.Record(ctx, stats.Duration.Seconds(), source)
	rm.functionsTotal.Add(ctx, int64(stats.Functions), source)
	rm.distinctTotal.Add(ctx, int64(stats.Distinct), source)
	rm.irLinesTotal.Add(ctx, int64(stats.Lines), source)
	rm.irBytesTotal.Add(ctx, int64(stats.InputBytes), source)
	rm.inputLines.Add(ctx, int64(stats.InputLines), source)
	rm.anonymousTotal.Add(ctx, int64(stats.Anonymous), source)
	rm.filesTotal.Add(ctx, int64(stats.Files), source)
}
