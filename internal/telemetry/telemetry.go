// Package telemetry exposes operational counters and gauges for the
// agent in Prometheus text format. These are health metrics about the
// engine itself (ticks, persistence failures, dropped notifications),
// never the tracked user's activity data.
package telemetry

import (
	"fmt"
	"io"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
)

// Counter is a monotonically increasing counter.
type Counter struct {
	name  string
	help  string
	value atomic.Uint64
}

func (c *Counter) Inc()          { c.value.Add(1) }
func (c *Counter) Add(v uint64)  { c.value.Add(v) }
func (c *Counter) Value() uint64 { return c.value.Load() }

// Gauge is a value that moves both ways.
type Gauge struct {
	name  string
	help  string
	value atomic.Int64
}

func (g *Gauge) Set(v int64)  { g.value.Store(v) }
func (g *Gauge) Inc()         { g.value.Add(1) }
func (g *Gauge) Dec()         { g.value.Add(-1) }
func (g *Gauge) Value() int64 { return g.value.Load() }

// Registry holds the agent's metrics. All operations are safe for
// concurrent use.
type Registry struct {
	mu       sync.RWMutex
	prefix   string
	counters map[string]*Counter
	gauges   map[string]*Gauge
}

func NewRegistry(prefix string) *Registry {
	return &Registry{
		prefix:   prefix,
		counters: make(map[string]*Counter),
		gauges:   make(map[string]*Gauge),
	}
}

// Counter returns the named counter, registering it on first use.
func (r *Registry) Counter(name, help string) *Counter {
	r.mu.Lock()
	defer r.mu.Unlock()
	full := r.prefix + "_" + name
	if c, ok := r.counters[full]; ok {
		return c
	}
	c := &Counter{name: full, help: help}
	r.counters[full] = c
	return c
}

// Gauge returns the named gauge, registering it on first use.
func (r *Registry) Gauge(name, help string) *Gauge {
	r.mu.Lock()
	defer r.mu.Unlock()
	full := r.prefix + "_" + name
	if g, ok := r.gauges[full]; ok {
		return g
	}
	g := &Gauge{name: full, help: help}
	r.gauges[full] = g
	return g
}

// WritePrometheus renders every metric in Prometheus text exposition
// format, sorted by name for stable output.
func (r *Registry) WritePrometheus(w io.Writer) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.counters))
	for name := range r.counters {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		c := r.counters[name]
		if _, err := fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s counter\n%s %d\n",
			c.name, c.help, c.name, c.name, c.Value()); err != nil {
			return err
		}
	}

	names = names[:0]
	for name := range r.gauges {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		g := r.gauges[name]
		if _, err := fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s gauge\n%s %d\n",
			g.name, g.help, g.name, g.name, g.Value()); err != nil {
			return err
		}
	}
	return nil
}

// Handler serves the registry over HTTP for scraping.
func (r *Registry) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		r.WritePrometheus(w)
	})
}

var defaultRegistry = NewRegistry("monitord")

// Default returns the process-wide registry.
func Default() *Registry { return defaultRegistry }

// Engine metrics, registered up front so they appear in scrapes even
// before the first event.
var (
	SessionsStarted = defaultRegistry.Counter("sessions_started_total", "Sessions started.")
	SessionsStopped = defaultRegistry.Counter("sessions_stopped_total", "Sessions stopped, any cause.")
	PeriodsScored   = defaultRegistry.Counter("periods_scored_total", "Activity periods scored.")
	WindowsComplete = defaultRegistry.Counter("windows_completed_total", "Windows completed.")
	BotVerdicts     = defaultRegistry.Counter("bot_verdicts_total", "Periods judged automated.")
	PersistFailures = defaultRegistry.Counter("persist_failures_total", "Persistence calls that returned an error.")
	InactivityStops = defaultRegistry.Counter("inactivity_stops_total", "Sessions stopped for inactivity.")
	MidnightStops   = defaultRegistry.Counter("midnight_stops_total", "Sessions stopped at UTC midnight.")
	ActiveSession   = defaultRegistry.Gauge("active_session", "1 while a session is tracking.")
)
