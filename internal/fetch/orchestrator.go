package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"time"
	_ "time/tzdata"

	"github.com/0xc0d3d00d/candlefetch/internal/domain"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const (
	meterName       = "github.com/0xc0d3d00d/candlefetch/internal/fetch"
	defaultTimezone = "Asia/Kolkata"
)

type outcome string

const (
	outcomeWritten outcome = "written"
	outcomeSkipped outcome = "skipped"
	outcomeEmpty   outcome = "empty"
	outcomeFailed  outcome = "failed"
)

// Plan is the instrument x timeframe x day space of one run. The last day is
// always today, so every run covers one more day than the previous one.
type Plan struct {
	Instruments []string
	Timeframes  []string
	StartDate   time.Time
}

// Report counts partitions by what happened to them during a run.
type Report struct {
	Written int
	Skipped int
	Empty   int
	Failed  int
}

func (r *Report) add(o outcome) {
	switch o {
	case outcomeWritten:
		r.Written++
	case outcomeSkipped:
		r.Skipped++
	case outcomeEmpty:
		r.Empty++
	case outcomeFailed:
		r.Failed++
	}
}

type Orchestrator struct {
	provider dataProvider
	store    partitionStore
	now      func() time.Time
	location *time.Location

	meterProvider  metric.MeterProvider
	partitions     metric.Int64Counter
	candlesWritten metric.Int64Counter
}

type Option func(*Orchestrator)

// WithClock replaces time.Now when deciding what "today" is.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		o.now = now
	}
}

// WithLocation sets the time zone whose calendar days partitions follow.
func WithLocation(loc *time.Location) Option {
	return func(o *Orchestrator) {
		if loc != nil {
			o.location = loc
		}
	}
}

func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *Orchestrator) {
		if mp != nil {
			o.meterProvider = mp
		}
	}
}

// defaultLocation is the exchange's zone, or UTC when it cannot be loaded.
func defaultLocation() *time.Location {
	loc, err := time.LoadLocation(defaultTimezone)
	if err != nil {
		slog.Warn("unknown time zone, falling back to UTC", "timezone", defaultTimezone, "error", err)
		return time.UTC
	}
	return loc
}

func NewOrchestrator(provider dataProvider, store partitionStore, opts ...Option) (*Orchestrator, error) {
	o := &Orchestrator{
		provider:      provider,
		store:         store,
		now:           time.Now,
		location:      defaultLocation(),
		meterProvider: noop.NewMeterProvider(),
	}
	for _, opt := range opts {
		opt(o)
	}

	meter := o.meterProvider.Meter(meterName)

	var err error
	o.partitions, err = meter.Int64Counter(
		"candlefetch.partitions",
		metric.WithDescription("Partitions visited, by outcome."),
		metric.WithUnit("{partition}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create partitions counter: %w", err)
	}

	o.candlesWritten, err = meter.Int64Counter(
		"candlefetch.candles.written",
		metric.WithDescription("Candles written to partition files."),
		metric.WithUnit("{candle}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create candles counter: %w", err)
	}

	return o, nil
}

// Run walks every instrument, timeframe and day of the plan in order, fetching
// and writing each day that has no partition yet. Provider and storage
// failures only cost the day they happened on; the day is picked up again by
// the next run. An invalid timeframe aborts the run.
func (o *Orchestrator) Run(ctx context.Context, plan Plan) (Report, error) {
	var report Report

	start := o.date(plan.StartDate)
	end := o.date(o.now().In(o.location))
	slog.InfoContext(ctx, "starting run",
		"instrument_count", len(plan.Instruments),
		"timeframe_count", len(plan.Timeframes),
		"from", start.Format(time.DateOnly),
		"to", end.Format(time.DateOnly),
	)

	for _, instrument := range plan.Instruments {
		slog.InfoContext(ctx, "processing instrument", "instrument_key", instrument)
		for _, token := range plan.Timeframes {
			tf, err := domain.ParseTimeframe(token)
			if err != nil {
				return report, fmt.Errorf("failed to process %q: %w", instrument, err)
			}

			slog.InfoContext(ctx, "processing timeframe", "instrument_key", instrument, "timeframe", tf.Token)
			for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
				if err := ctx.Err(); err != nil {
					return report, err
				}

				o.record(ctx, &report, o.processDay(ctx, instrument, tf, day))
			}
		}
	}

	slog.InfoContext(ctx, "run finished",
		"written", report.Written,
		"skipped", report.Skipped,
		"empty", report.Empty,
		"failed", report.Failed,
	)
	return report, nil
}

func (o *Orchestrator) processDay(ctx context.Context, instrument string, tf domain.Timeframe, day time.Time) outcome {
	date := day.Format(time.DateOnly)
	filename := o.store.FilePath(instrument, tf.Token, day)

	exists, err := o.store.Exists(filename)
	if err != nil {
		slog.ErrorContext(ctx, "failed to check partition", "path", filename, "error", err)
		return outcomeFailed
	}
	if exists {
		slog.InfoContext(ctx, "partition already exists, skipping", "instrument_key", instrument, "timeframe", tf.Token, "date", date)
		return outcomeSkipped
	}

	slog.InfoContext(ctx, "fetching candles", "instrument_key", instrument, "timeframe", tf.Token, "date", date)
	candles := o.provider.Fetch(ctx, instrument, day, day, tf)

	err = o.store.Write(ctx, instrument, tf.Token, day, candles)
	if err != nil {
		slog.ErrorContext(ctx, "failed to write partition, will retry on next run", "instrument_key", instrument, "timeframe", tf.Token, "date", date, "error", err)
		return outcomeFailed
	}
	if len(candles) == 0 {
		return outcomeEmpty
	}

	o.candlesWritten.Add(ctx, int64(len(candles)), metric.WithAttributes(attribute.String("timeframe", tf.Token)))
	return outcomeWritten
}

func (o *Orchestrator) record(ctx context.Context, report *Report, out outcome) {
	report.add(out)
	o.partitions.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", string(out))))
}

// date keeps the calendar day of t as written and moves it to midnight in the
// orchestrator's location.
func (o *Orchestrator) date(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, o.location)
}
