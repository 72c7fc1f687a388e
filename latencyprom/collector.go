// Package latencyprom exports the counters of a latencytracker.Tracker as
// Prometheus metrics.
package latencyprom

import (
	"github.com/joeycumines/go-latencytracker"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = `latencytracker`

type (
	// StatsSource is implemented by *latencytracker.Tracker.
	StatsSource interface {
		Stats() latencytracker.Stats
	}

	// Collector implements prometheus.Collector, reading a snapshot of the
	// source's counters on every scrape.
	Collector struct {
		source   StatsSource
		begun    *prometheus.Desc
		closed   *prometheus.Desc
		rejected *prometheus.Desc
		live     *prometheus.Desc
		capacity *prometheus.Desc
	}
)

var _ prometheus.Collector = (*Collector)(nil)

// NewCollector initializes a Collector for source. The constLabels are
// applied to every metric, e.g. to distinguish multiple trackers.
func NewCollector(source StatsSource, constLabels prometheus.Labels) *Collector {
	if source == nil {
		panic(`latencyprom: nil source`)
	}
	return &Collector{
		source: source,
		begun: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, `events`, `begun_total`),
			"Number of events accepted by EventIn.",
			nil,
			constLabels,
		),
		closed: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, `events`, `closed_total`),
			"Number of events closed, by reason.",
			[]string{`reason`},
			constLabels,
		),
		rejected: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, `events`, `rejected_total`),
			"Number of EventIn or EventOut calls that were refused, by reason.",
			[]string{`reason`},
			constLabels,
		),
		live: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, `events`, `live`),
			"Number of open events.",
			nil,
			constLabels,
		),
		capacity: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, `events`, `capacity`),
			"Total number of event slots.",
			nil,
			constLabels,
		),
	}
}

func (x *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- x.begun
	ch <- x.closed
	ch <- x.rejected
	ch <- x.live
	ch <- x.capacity
}

func (x *Collector) Collect(ch chan<- prometheus.Metric) {
	stats := x.source.Stats()

	ch <- prometheus.MustNewConstMetric(x.begun, prometheus.CounterValue, float64(stats.Begun))

	for _, v := range [...]struct {
		reason string
		value  uint64
	}{
		{latencytracker.CloseNormal.String(), stats.Normal},
		{latencytracker.CloseTimeout.String(), stats.Timeout},
		{latencytracker.CloseGarbageCollected.String(), stats.GarbageCollected},
		{latencytracker.CloseUnique.String(), stats.Unique},
		{`below_threshold`, stats.BelowThreshold},
		{`discarded`, stats.Discarded},
	} {
		ch <- prometheus.MustNewConstMetric(x.closed, prometheus.CounterValue, float64(v.value), v.reason)
	}

	ch <- prometheus.MustNewConstMetric(x.rejected, prometheus.CounterValue, float64(stats.Full), `full`)
	ch <- prometheus.MustNewConstMetric(x.rejected, prometheus.CounterValue, float64(stats.NotFound), `not_found`)

	ch <- prometheus.MustNewConstMetric(x.live, prometheus.GaugeValue, float64(stats.Live))
	ch <- prometheus.MustNewConstMetric(x.capacity, prometheus.GaugeValue, float64(stats.Capacity))
}
