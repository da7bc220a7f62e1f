package lstore

import (
	"fmt"
	"github.com/ValentinKolb/memDB/lib/store/lstore/internal"
	"github.com/VictoriaMetrics/metrics"
	"io"
	"sync/atomic"
	"time"
)

// storeMetrics collects the per-store command metrics.
// Every store owns its own metrics.Set, so several stores (shards) can live in one process.
type storeMetrics struct {
	set          *metrics.Set
	name         string
	activeRanges atomic.Int64
}

func newStoreMetrics(name string, keys func() float64) *storeMetrics {
	m := &storeMetrics{
		set:  metrics.NewSet(),
		name: name,
	}
	m.set.NewGauge(fmt.Sprintf(`memdb_keys{store=%q}`, name), keys)
	m.set.NewGauge(fmt.Sprintf(`memdb_range_streams_active{store=%q}`, name), func() float64 {
		return float64(m.activeRanges.Load())
	})
	return m
}

// observe records the outcome and duration of a single command
func (m *storeMetrics) observe(ct internal.CommandType, err error, start time.Time) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.set.GetOrCreateCounter(fmt.Sprintf(`memdb_commands_total{store=%q,cmd=%q,status=%q}`, m.name, ct, status)).Inc()
	m.set.GetOrCreateHistogram(fmt.Sprintf(`memdb_command_duration_seconds{store=%q,cmd=%q}`, m.name, ct)).UpdateDuration(start)
	if ct.IsWrite() && err == nil {
		m.set.GetOrCreateCounter(fmt.Sprintf(`memdb_writes_total{store=%q}`, m.name)).Inc()
	}
}

func (m *storeMetrics) rangeOpened() {
	m.activeRanges.Add(1)
}

func (m *storeMetrics) rangeClosed() {
	m.activeRanges.Add(-1)
}

// WritePrometheus writes the metrics of the store in Prometheus text format to w
func (m *storeMetrics) WritePrometheus(w io.Writer) {
	m.set.WritePrometheus(w)
}
