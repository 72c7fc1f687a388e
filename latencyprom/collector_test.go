package latencyprom

import (
	"strings"
	"testing"

	"github.com/joeycumines/go-latencytracker"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticSource latencytracker.Stats

func (x staticSource) Stats() latencytracker.Stats { return latencytracker.Stats(x) }

func TestCollector_Collect(t *testing.T) {
	c := NewCollector(staticSource{
		Begun:            10,
		Full:             2,
		NotFound:         3,
		Normal:           4,
		BelowThreshold:   1,
		Timeout:          1,
		GarbageCollected: 1,
		Unique:           1,
		Discarded:        1,
		Live:             1,
		Capacity:         100,
	}, prometheus.Labels{`tracker`: `test`})

	const expected = `
# HELP latencytracker_events_begun_total Number of events accepted by EventIn.
# TYPE latencytracker_events_begun_total counter
latencytracker_events_begun_total{tracker="test"} 10
# HELP latencytracker_events_capacity Total number of event slots.
# TYPE latencytracker_events_capacity gauge
latencytracker_events_capacity{tracker="test"} 100
# HELP latencytracker_events_closed_total Number of events closed, by reason.
# TYPE latencytracker_events_closed_total counter
latencytracker_events_closed_total{reason="below_threshold",tracker="test"} 1
latencytracker_events_closed_total{reason="discarded",tracker="test"} 1
latencytracker_events_closed_total{reason="gc",tracker="test"} 1
latencytracker_events_closed_total{reason="normal",tracker="test"} 4
latencytracker_events_closed_total{reason="timeout",tracker="test"} 1
latencytracker_events_closed_total{reason="unique",tracker="test"} 1
# HELP latencytracker_events_live Number of open events.
# TYPE latencytracker_events_live gauge
latencytracker_events_live{tracker="test"} 1
# HELP latencytracker_events_rejected_total Number of EventIn or EventOut calls that were refused, by reason.
# TYPE latencytracker_events_rejected_total counter
latencytracker_events_rejected_total{reason="full",tracker="test"} 2
latencytracker_events_rejected_total{reason="not_found",tracker="test"} 3
`

	require.NoError(t, testutil.CollectAndCompare(c, strings.NewReader(expected)))
}

func TestCollector_tracker(t *testing.T) {
	tracker, err := latencytracker.New(latencytracker.WithCapacity(2))
	require.NoError(t, err)
	defer tracker.Destroy()

	require.NoError(t, tracker.EventIn([]byte(`a`), 0, nil, 0, false, nil))
	require.NoError(t, tracker.EventIn([]byte(`b`), 0, nil, 0, false, nil))
	require.ErrorIs(t, tracker.EventIn([]byte(`c`), 0, nil, 0, false, nil), latencytracker.ErrFull)

	registry := prometheus.NewPedanticRegistry()
	require.NoError(t, registry.Register(NewCollector(tracker, nil)))

	assert.Equal(t, 11, testutil.CollectAndCount(NewCollector(tracker, nil)))
	require.NoError(t, testutil.GatherAndCompare(registry, strings.NewReader(`
# HELP latencytracker_events_live Number of open events.
# TYPE latencytracker_events_live gauge
latencytracker_events_live 2
`), `latencytracker_events_live`))
}

func TestNewCollector_nil(t *testing.T) {
	assert.Panics(t, func() { NewCollector(nil, nil) })
}
