// Package observability exposes the station's Prometheus metrics.
package observability

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles the station collectors. All methods are safe on a nil
// receiver so components can run without metrics.
type Metrics struct {
	gatherer prometheus.Gatherer

	Cycles           prometheus.Counter
	Pulses           *prometheus.CounterVec
	EnvPollFailures  prometheus.Counter
	LogAppendFailure prometheus.Counter
	TimeSynced       prometheus.Gauge
	LoopDuration     prometheus.Histogram
	Starvations      prometheus.Counter
	WebClients       prometheus.Gauge
}

// NewMetrics registers the station metrics against reg, defaulting to the
// global registry when nil.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	m := &Metrics{gatherer: gatherer}
	var err error

	if m.Cycles, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "station_sample_cycles_total",
		Help: "Completed sampling cycles.",
	}), "station_sample_cycles_total"); err != nil {
		return nil, err
	}
	if m.Pulses, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "station_pulses_total",
		Help: "Pulse edges seen per line, labeled by debounce result.",
	}, []string{"line", "result"}), "station_pulses_total"); err != nil {
		return nil, err
	}
	if m.EnvPollFailures, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "station_env_poll_failures_total",
		Help: "Environment sensor polls that returned no reading.",
	}), "station_env_poll_failures_total"); err != nil {
		return nil, err
	}
	if m.LogAppendFailure, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "station_log_append_failures_total",
		Help: "Log records that could not be written.",
	}), "station_log_append_failures_total"); err != nil {
		return nil, err
	}
	if m.TimeSynced, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "station_time_synced",
		Help: "1 once the RTC has been set from GPS time.",
	}), "station_time_synced"); err != nil {
		return nil, err
	}
	if m.LoopDuration, err = register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "station_loop_iteration_seconds",
		Help:    "Duration of one foreground loop iteration.",
		Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2},
	}), "station_loop_iteration_seconds"); err != nil {
		return nil, err
	}
	if m.Starvations, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "station_watchdog_starvations_total",
		Help: "Times the watchdog was not kicked within its timeout.",
	}), "station_watchdog_starvations_total"); err != nil {
		return nil, err
	}
	if m.WebClients, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "station_web_clients",
		Help: "Connected websocket clients.",
	}), "station_web_clients"); err != nil {
		return nil, err
	}
	return m, nil
}

// Handler serves the registered metrics.
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// CycleDone counts one sampling cycle.
func (m *Metrics) CycleDone() {
	if m == nil {
		return
	}
	m.Cycles.Inc()
}

// Pulse records the debounce result of one edge on line.
func (m *Metrics) Pulse(line string, accepted bool) {
	if m == nil {
		return
	}
	result := "rejected"
	if accepted {
		result = "accepted"
	}
	m.Pulses.WithLabelValues(line, result).Inc()
}

// EnvPollFailed counts a missing sensor reading.
func (m *Metrics) EnvPollFailed() {
	if m == nil {
		return
	}
	m.EnvPollFailures.Inc()
}

// LogAppendFailed counts a dropped log record.
func (m *Metrics) LogAppendFailed() {
	if m == nil {
		return
	}
	m.LogAppendFailure.Inc()
}

// SetTimeSynced updates the sync gauge.
func (m *Metrics) SetTimeSynced(synced bool) {
	if m == nil {
		return
	}
	v := 0.0
	if synced {
		v = 1
	}
	m.TimeSynced.Set(v)
}

// SetWebClients updates the websocket client gauge.
func (m *Metrics) SetWebClients(n int) {
	if m == nil {
		return
	}
	m.WebClients.Set(float64(n))
}

// ObserveIteration records the duration of one loop iteration.
func (m *Metrics) ObserveIteration(d time.Duration) {
	if m == nil {
		return
	}
	m.LoopDuration.Observe(d.Seconds())
}

// Starved counts a watchdog timeout.
func (m *Metrics) Starved() {
	if m == nil {
		return
	}
	m.Starvations.Inc()
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C, name string) (C, error) {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
			var zero C
			return zero, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		var zero C
		return zero, err
	}
	return c, nil
}
