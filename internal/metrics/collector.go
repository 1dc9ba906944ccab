// Package metrics provides a lightweight, Prometheus-compatible metrics
// collector for the assistant. It outputs text/plain in Prometheus exposition
// format without requiring the prometheus/client_golang dependency.
package metrics

import (
	"fmt"
	"math"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Collector is the global metrics collector.
var Collector = NewMetricsCollector()

// MetricsCollector aggregates counters, gauges, and histograms.
type MetricsCollector struct {
	counters   sync.Map // name{labels} -> *Counter
	gauges     sync.Map // name{labels} -> *Gauge
	histograms sync.Map // name{labels} -> *Histogram
	startTime  time.Time
}

// NewMetricsCollector creates a new collector.
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{startTime: time.Now()}
}

// Uptime returns how long the collector has been running.
func (c *MetricsCollector) Uptime() time.Duration {
	return time.Since(c.startTime)
}

// Counter is a monotonically increasing counter.
type Counter struct {
	name   string
	help   string
	labels string
	value  atomic.Int64
}

// Inc increments the counter by 1.
func (c *Counter) Inc() { c.value.Add(1) }

// Add increments the counter by n.
func (c *Counter) Add(n int64) { c.value.Add(n) }

// Value returns the current counter value.
func (c *Counter) Value() int64 { return c.value.Load() }

// Gauge is a value that can go up and down.
type Gauge struct {
	name   string
	help   string
	labels string
	value  atomic.Int64
}

func (g *Gauge) Set(v int64) { g.value.Store(v) }
func (g *Gauge) Inc() { g.value.Add(1) }
func (g *Gauge) Dec() { g.value.Add(-1) }
func (g *Gauge) Value() int64 { return g.value.Load() }

// Histogram tracks the distribution of values.
type Histogram struct {
	name    string
	help    string
	labels  string
	mu      sync.Mutex
	count   int64
	sum     float64
	buckets []histBucket
}

type histBucket struct {
	le    float64
	count int64
}

// Observe records a value in the histogram.
func (h *Histogram) Observe(v float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += v
	for i := range h.buckets {
		if v <= h.buckets[i].le {
			h.buckets[i].count++
		}
	}
}

// ObserveSince records the seconds elapsed since start.
func (h *Histogram) ObserveSince(start time.Time) {
	h.Observe(time.Since(start).Seconds())
}

// Count returns the number of observations.
func (h *Histogram) Count() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.count
}

// --- Registration helpers ---

// Counter returns or creates a counter with the given name and label set.
func (c *MetricsCollector) Counter(name, help, labels string) *Counter {
	key := name + "{" + labels + "}"
	if v, ok := c.counters.Load(key); ok {
		return v.(*Counter)
	}
	ctr := &Counter{name: name, help: help, labels: labels}
	actual, _ := c.counters.LoadOrStore(key, ctr)
	return actual.(*Counter)
}

// Gauge returns or creates a gauge with the given name and label set.
func (c *MetricsCollector) Gauge(name, help, labels string) *Gauge {
	key := name + "{" + labels + "}"
	if v, ok := c.gauges.Load(key); ok {
		return v.(*Gauge)
	}
	g := &Gauge{name: name, help: help, labels: labels}
	actual, _ := c.gauges.LoadOrStore(key, g)
	return actual.(*Gauge)
}

// Histogram returns or creates a histogram with the given name and label set.
func (c *MetricsCollector) Histogram(name, help, labels string, buckets []float64) *Histogram {
	key := name + "{" + labels + "}"
	if v, ok := c.histograms.Load(key); ok {
		return v.(*Histogram)
	}
	bs := append([]float64(nil), buckets...)
	sort.Float64s(bs)
	hb := make([]histBucket, len(bs))
	for i, b := range bs {
		hb[i] = histBucket{le: b}
	}
	h := &Histogram{name: name, help: help, labels: labels, buckets: hb}
	actual, _ := c.histograms.LoadOrStore(key, h)
	return actual.(*Histogram)
}

// --- Prometheus text rendering ---

// sortedKeys returns the keys of m in lexical order so that series of the
// same metric are rendered together under one HELP/TYPE header.
func sortedKeys(m *sync.Map) []string {
	var keys []string
	m.Range(func(k, _ any) bool {
		keys = append(keys, k.(string))
		return true
	})
	sort.Strings(keys)
	return keys
}

// Render writes every metric in Prometheus text exposition format.
func (c *MetricsCollector) Render() string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "# HELP lawyrs_uptime_seconds Time since start in seconds\n")
	fmt.Fprintf(&sb, "# TYPE lawyrs_uptime_seconds gauge\n")
	fmt.Fprintf(&sb, "lawyrs_uptime_seconds %d\n\n", int64(c.Uptime().Seconds()))

	helpWritten := make(map[string]bool)
	for _, key := range sortedKeys(&c.counters) {
		v, _ := c.counters.Load(key)
		ctr := v.(*Counter)
		if !helpWritten[ctr.name] {
			fmt.Fprintf(&sb, "# HELP %s %s\n", ctr.name, ctr.help)
			fmt.Fprintf(&sb, "# TYPE %s counter\n", ctr.name)
			helpWritten[ctr.name] = true
		}
		writeSample(&sb, ctr.name, ctr.labels, fmt.Sprintf("%d", ctr.Value()))
	}

	helpWritten = make(map[string]bool)
	for _, key := range sortedKeys(&c.gauges) {
		v, _ := c.gauges.Load(key)
		g := v.(*Gauge)
		if !helpWritten[g.name] {
			fmt.Fprintf(&sb, "# HELP %s %s\n", g.name, g.help)
			fmt.Fprintf(&sb, "# TYPE %s gauge\n", g.name)
			helpWritten[g.name] = true
		}
		writeSample(&sb, g.name, g.labels, fmt.Sprintf("%d", g.Value()))
	}

	helpWritten = make(map[string]bool)
	for _, key := range sortedKeys(&c.histograms) {
		v, _ := c.histograms.Load(key)
		h := v.(*Histogram)
		h.mu.Lock()
		if !helpWritten[h.name] {
			fmt.Fprintf(&sb, "# HELP %s %s\n", h.name, h.help)
			fmt.Fprintf(&sb, "# TYPE %s histogram\n", h.name)
			helpWritten[h.name] = true
		}
		prefix := h.name + "_bucket{"
		if h.labels != "" {
			prefix += h.labels + ","
		}
		for _, b := range h.buckets {
			le := fmt.Sprintf("%g", b.le)
			if math.IsInf(b.le, 1) {
				le = "+Inf"
			}
			fmt.Fprintf(&sb, "%sle=\"%s\"} %d\n", prefix, le, b.count)
		}
		writeSample(&sb, h.name+"_count", h.labels, fmt.Sprintf("%d", h.count))
		writeSample(&sb, h.name+"_sum", h.labels, fmt.Sprintf("%f", h.sum))
		h.mu.Unlock()
	}

	return sb.String()
}

func writeSample(sb *strings.Builder, name, labels, value string) {
	if labels != "" {
		fmt.Fprintf(sb, "%s{%s} %s\n", name, labels, value)
		return
	}
	fmt.Fprintf(sb, "%s %s\n", name, value)
}

// Handler returns an http.HandlerFunc that renders metrics in Prometheus text format.
func (c *MetricsCollector) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		fmt.Fprint(w, c.Render())
	}
}

// --- Pre-defined metrics used across the application ---

var (
	TurnsTotal         = Collector.Counter("lawyrs_turns_total", "Total assistant turns handled", "")
	InvalidRequests    = Collector.Counter("lawyrs_invalid_requests_total", "Turns rejected as malformed", "")
	CoRoutesTotal      = Collector.Counter("lawyrs_coroutes_total", "Turns that executed a co-routed specialist", "")
	FullCrewTurns      = Collector.Counter("lawyrs_full_crew_turns_total", "Turns that ran the full specialist crew", "")
	LLMRequestsTotal   = Collector.Counter("lawyrs_llm_requests_total", "Text-generation API requests", "")
	LLMRateLimited     = Collector.Counter("lawyrs_llm_rate_limited_total", "Text-generation calls skipped by the rate limiter", "")
	LocalStoreFailures = Collector.Counter("lawyrs_local_store_failures_total", "Failed writes to the local store", "")
	ActiveTurns        = Collector.Gauge("lawyrs_active_turns", "Turns currently in flight", "")

	TurnLatency = Collector.Histogram("lawyrs_turn_latency_seconds", "End-to-end turn latency in seconds", "",
		[]float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120})
	LLMLatency = Collector.Histogram("lawyrs_llm_latency_seconds", "Text-generation latency in seconds", "",
		[]float64{0.5, 1, 2, 5, 10, 30, 60})
	RemoteLatency = Collector.Histogram("lawyrs_remote_agent_latency_seconds", "Remote agent service latency in seconds", "",
		[]float64{0.5, 1, 2, 5, 10, 30, 60})
)

// TierOutputs counts outputs by the tier that produced them.
func TierOutputs(tier string) *Counter {
	return Collector.Counter("lawyrs_tier_outputs_total", "Specialist outputs by generation tier", `tier="`+tier+`"`)
}

// Routes counts primary routes by specialist.
func Routes(specialist string) *Counter {
	return Collector.Counter("lawyrs_routes_total", "Primary routes by specialist", `specialist="`+specialist+`"`)
}

// CloudMemoryFailures counts swallowed cloud-memory errors by operation.
func CloudMemoryFailures(op string) *Counter {
	return Collector.Counter("lawyrs_cloud_memory_failures_total", "Cloud memory calls that failed and were degraded", `op="`+op+`"`)
}
