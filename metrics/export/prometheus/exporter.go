package prometheus

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/MrEthical07/phonebook"
	"github.com/MrEthical07/phonebook/metrics/export/internaldefs"
)

// Source is what the exporter reads on every scrape. *phonebook.Engine
// satisfies it.
type Source interface {
	MetricsSnapshot() phonebook.MetricsSnapshot
	AuditDropped() uint64
}

type Exporter struct {
	source Source
}

func NewExporter(source Source) *Exporter {
	return &Exporter{source: source}
}

// Handler streams the exposition text on every scrape.
func (p *Exporter) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		_, _ = p.WriteTo(w)
	})
}

// Render returns the current metrics. It is empty when the engine was built
// with metrics disabled and nothing was dropped.
func (p *Exporter) Render() string {
	var b strings.Builder
	_, _ = p.WriteTo(&b)
	return b.String()
}

// WriteTo writes the exposition text to w.
func (p *Exporter) WriteTo(w io.Writer) (int64, error) {
	if p == nil || p.source == nil {
		return 0, nil
	}
	snap := p.source.MetricsSnapshot()
	dropped := p.source.AuditDropped()
	if len(snap.Counters) == 0 && len(snap.Histograms) == 0 && dropped == 0 {
		return 0, nil
	}

	ew := &errWriter{w: w}
	for _, def := range internaldefs.CounterDefs {
		ew.counter(def.Name, def.Help, snap.Counters[def.ID])
	}
	for _, def := range internaldefs.HistogramDefs {
		if raw, ok := snap.Histograms[def.ID]; ok {
			ew.histogram(def.Name, def.Help, internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(raw)))
		}
	}
	ew.counter(internaldefs.AuditDroppedName, "Audit events dropped because the buffer was full.", dropped)
	return ew.n, ew.err
}

// errWriter stops writing after the first error.
type errWriter struct {
	w   io.Writer
	n   int64
	err error
}

func (ew *errWriter) printf(format string, args ...any) {
	if ew.err != nil {
		return
	}
	n, err := fmt.Fprintf(ew.w, format, args...)
	ew.n += int64(n)
	ew.err = err
}

func (ew *errWriter) header(name, help, kind string) {
	ew.printf("# HELP %s %s\n# TYPE %s %s\n", name, helpEscaper.Replace(help), name, kind)
}

func (ew *errWriter) counter(name, help string, value uint64) {
	ew.header(name, help, "counter")
	ew.printf("%s %d\n", name, value)
}

// histogram writes cumulative buckets. Samples are only bucketed, so _sum
// is always zero.
func (ew *errWriter) histogram(name, help string, cumulative [8]uint64) {
	ew.header(name, help, "histogram")
	for i, le := range internaldefs.HistogramBounds {
		ew.printf("%s_bucket{le=%q} %d\n", name, le, cumulative[i])
	}
	ew.printf("%s_count %d\n%s_sum 0\n", name, cumulative[len(cumulative)-1], name)
}

var helpEscaper = strings.NewReplacer("\\", "\\\\", "\n", "\\n")
