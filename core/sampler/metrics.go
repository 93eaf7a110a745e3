package sampler

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/metric"
	"go.uber.org/atomic"
)

// otelMetrics is the default MetricsReporter: observable gauges and
// counters backed by lock-free atomics, registered against a
// vendor-neutral otel/metric.Meter. Grounded on the teacher's
// MetricsManager (internal/processor/reservoirsampler/metrics.go),
// generalized from span-reservoir counters to sampler event counters.
// Unlike the teacher, which took its Meter from an OTel-collector
// component, this takes a plain metric.Meter so it works with any
// otel/sdk/metric.MeterProvider — see DESIGN.md for why the
// collector-specific packages were dropped.
type otelMetrics struct {
	lineWatchpoints  *atomic.Int64
	pcWatchpoints    *atomic.Int64
	samples          *atomic.Int64
	strides          *atomic.Int64
	dangling         *atomic.Int64
	shortTraces      *atomic.Int64
	burstsOpened     *atomic.Int64
	totalReferences  *atomic.Uint64

	meter metric.Meter
}

// NewOTelMetrics creates a MetricsReporter and registers its
// instruments against meter. Pass a no-op meter (e.g. from
// noop.NewMeterProvider()) when metrics aren't needed.
func NewOTelMetrics(meter metric.Meter) (MetricsReporter, error) {
	m := &otelMetrics{
		lineWatchpoints: atomic.NewInt64(0),
		pcWatchpoints:   atomic.NewInt64(0),
		samples:         atomic.NewInt64(0),
		strides:         atomic.NewInt64(0),
		dangling:        atomic.NewInt64(0),
		shortTraces:     atomic.NewInt64(0),
		burstsOpened:    atomic.NewInt64(0),
		totalReferences: atomic.NewUint64(0),
		meter:           meter,
	}
	if err := m.register(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *otelMetrics) register() error {
	gauges := []struct {
		name string
		desc string
		unit string
		val  *atomic.Int64
	}{
		{"refsampler.line_watchpoints", "Entries currently held in the line-keyed watchpoint table", "{entries}", m.lineWatchpoints},
		{"refsampler.pc_watchpoints", "Entries currently held in the PC-keyed watchpoint table", "{entries}", m.pcWatchpoints},
	}
	for _, g := range gauges {
		g := g
		_, err := m.meter.Int64ObservableGauge(
			g.name,
			metric.WithDescription(g.desc),
			metric.WithUnit(g.unit),
			metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
				o.Observe(g.val.Load())
				return nil
			}),
		)
		if err != nil {
			return fmt.Errorf("register gauge %s: %w", g.name, err)
		}
	}

	counters := []struct {
		name string
		desc string
		unit string
		val  *atomic.Int64
	}{
		{"refsampler.samples_written", "Reuse samples written to burst files", "{events}", m.samples},
		{"refsampler.strides_written", "Stride events written to burst files", "{events}", m.strides},
		{"refsampler.dangling_written", "Dangling watchpoints flushed at shutdown", "{events}", m.dangling},
		{"refsampler.short_traces_written", "Short-trace events written to burst files", "{events}", m.shortTraces},
		{"refsampler.bursts_opened", "Number of bursts opened", "{bursts}", m.burstsOpened},
	}
	for _, c := range counters {
		c := c
		_, err := m.meter.Int64ObservableCounter(
			c.name,
			metric.WithDescription(c.desc),
			metric.WithUnit(c.unit),
			metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
				o.Observe(c.val.Load())
				return nil
			}),
		)
		if err != nil {
			return fmt.Errorf("register counter %s: %w", c.name, err)
		}
	}

	_, err := m.meter.Int64ObservableCounter(
		"refsampler.total_references",
		metric.WithDescription("Total memory references dispatched, whether or not a burst is active"),
		metric.WithUnit("{references}"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(int64(m.totalReferences.Load()))
			return nil
		}),
	)
	if err != nil {
		return fmt.Errorf("register counter refsampler.total_references: %w", err)
	}
	return nil
}

func (m *otelMetrics) ReportLineWatchpoints(count int)       { m.lineWatchpoints.Store(int64(count)) }
func (m *otelMetrics) ReportPCWatchpoints(count int)         { m.pcWatchpoints.Store(int64(count)) }
func (m *otelMetrics) ReportSamples(count int)               { m.samples.Add(int64(count)) }
func (m *otelMetrics) ReportStrides(count int)               { m.strides.Add(int64(count)) }
func (m *otelMetrics) ReportDangling(count int)              { m.dangling.Add(int64(count)) }
func (m *otelMetrics) ReportShortTraces(count int)           { m.shortTraces.Add(int64(count)) }
func (m *otelMetrics) ReportBurstsOpened(count int)          { m.burstsOpened.Add(int64(count)) }
func (m *otelMetrics) ReportTotalReferences(count uint64)    { m.totalReferences.Store(count) }

var _ MetricsReporter = (*otelMetrics)(nil)

// noopMetrics is the zero-value fallback used when Config.Metrics is
// unset, so Sampler never has to nil-check its reporter.
type noopMetrics struct{}

func (noopMetrics) ReportLineWatchpoints(int)    {}
func (noopMetrics) ReportPCWatchpoints(int)      {}
func (noopMetrics) ReportSamples(int)            {}
func (noopMetrics) ReportStrides(int)            {}
func (noopMetrics) ReportDangling(int)           {}
func (noopMetrics) ReportShortTraces(int)        {}
func (noopMetrics) ReportBurstsOpened(int)       {}
func (noopMetrics) ReportTotalReferences(uint64) {}

var _ MetricsReporter = noopMetrics{}
