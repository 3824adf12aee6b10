package otel

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MrEthical07/phonebook"
	"github.com/MrEthical07/phonebook/metrics/export/internaldefs"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Instrument names. Engine counters share EventsInstrument and are told
// apart by the "event" attribute.
const (
	EventsInstrument       = "phonebook.auth.events"
	LatencyInstrument      = "phonebook.auth.latency.buckets"
	AuditDroppedInstrument = "phonebook.audit.dropped"
)

var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

// Source is read on every collection. *phonebook.Engine satisfies it.
type Source interface {
	MetricsSnapshot() phonebook.MetricsSnapshot
	AuditDropped() uint64
}

type eventSeries struct {
	id   phonebook.MetricID
	opts metric.ObserveOption
}

type latencySeries struct {
	id      phonebook.MetricID
	buckets [8]metric.ObserveOption
}

// Exporter keeps three instruments registered on one meter until Close.
type Exporter struct {
	source       Source
	registration metric.Registration

	events  metric.Int64ObservableCounter
	latency metric.Int64ObservableGauge
	dropped metric.Int64ObservableCounter

	eventSeries   []eventSeries
	latencySeries []latencySeries
}

func NewExporter(meter metric.Meter, source Source) (*Exporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	e := &Exporter{source: source}
	var err error
	e.events, err = meter.Int64ObservableCounter(EventsInstrument,
		metric.WithDescription("Authentication and recovery outcomes, by event."))
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", EventsInstrument, err)
	}
	e.latency, err = meter.Int64ObservableGauge(LatencyInstrument,
		metric.WithDescription("Cumulative latency bucket counts, by operation and upper bound in seconds."))
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", LatencyInstrument, err)
	}
	e.dropped, err = meter.Int64ObservableCounter(AuditDroppedInstrument,
		metric.WithDescription("Audit events dropped because the buffer was full."))
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", AuditDroppedInstrument, err)
	}

	for _, def := range internaldefs.CounterDefs {
		e.eventSeries = append(e.eventSeries, eventSeries{
			id:   def.ID,
			opts: metric.WithAttributes(attribute.String("event", EventName(def.Name))),
		})
	}
	for _, def := range internaldefs.HistogramDefs {
		s := latencySeries{id: def.ID}
		op := strings.TrimSuffix(strings.TrimPrefix(def.Name, "phonebook_"), "_latency_seconds")
		for i, le := range internaldefs.HistogramBounds {
			s.buckets[i] = metric.WithAttributes(attribute.String("operation", op), attribute.String("le", le))
		}
		e.latencySeries = append(e.latencySeries, s)
	}

	e.registration, err = meter.RegisterCallback(e.observe, e.events, e.latency, e.dropped)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}
	return e, nil
}

// EventName is the "event" attribute value for a counter named like
// phonebook_login_success_total.
func EventName(counter string) string {
	return strings.TrimSuffix(strings.TrimPrefix(counter, "phonebook_"), "_total")
}

func (e *Exporter) observe(_ context.Context, o metric.Observer) error {
	snap := e.source.MetricsSnapshot()
	for _, s := range e.eventSeries {
		o.ObserveInt64(e.events, int64(snap.Counters[s.id]), s.opts)
	}
	for _, s := range e.latencySeries {
		cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(snap.Histograms[s.id]))
		for i, v := range cumulative {
			o.ObserveInt64(e.latency, int64(v), s.buckets[i])
		}
	}
	o.ObserveInt64(e.dropped, int64(e.source.AuditDropped()))
	return nil
}

func (e *Exporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
