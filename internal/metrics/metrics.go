// Package metrics exposes keeper activity as Prometheus metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"cosmossdk.io/math"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/alanyoungcy/poolkeeper/internal/domain"
)

const namespace = "poolkeeper"

// Collector owns a private registry with every keeper metric. All methods
// are safe for concurrent use.
type Collector struct {
	registry *prometheus.Registry

	taskRuns     *prometheus.CounterVec
	taskDuration *prometheus.HistogramVec
	poolErrors   *prometheus.CounterVec
	decisions    *prometheus.CounterVec
	pools        prometheus.Gauge

	txSubmitted   *prometheus.CounterVec
	txResubmitted *prometheus.CounterVec
	txSettled     *prometheus.CounterVec
	txInFlight    prometheus.Gauge

	reserve  *prometheus.GaugeVec
	capacity *prometheus.GaugeVec
}

// New creates a Collector and registers its metrics plus the Go runtime
// collectors.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		taskRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "task_runs_total",
			Help: "Scheduled task runs by task.",
		}, []string{"task"}),
		taskDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "task_duration_seconds",
			Help:    "Wall time of scheduled task runs.",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
		}, []string{"task"}),
		poolErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "pool_errors_total",
			Help: "Pools skipped for a task run because of an error.",
		}, []string{"task"}),
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "decisions_total",
			Help: "Orchestrator decisions by phase and action.",
		}, []string{"phase", "action"}),
		pools: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "pools",
			Help: "Pools in the active set.",
		}),
		txSubmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "tx_submitted_total",
			Help: "Transactions broadcast for new actions.",
		}, []string{"action"}),
		txResubmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "tx_resubmitted_total",
			Help: "Replacement broadcasts after a confirmation timeout.",
		}, []string{"action", "escalated"}),
		txSettled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "tx_settled_total",
			Help: "Mined transactions by outcome.",
		}, []string{"action", "status"}),
		txInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "tx_in_flight",
			Help: "Unconfirmed actions.",
		}),
		reserve: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "pool_reserve",
			Help: "Pool reserve in currency units.",
		}, []string{"pool"}),
		capacity: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "pool_capacity",
			Help: "Derived investment capacity in currency units.",
		}, []string{"pool"}),
	}

	c.registry.MustRegister(
		c.taskRuns, c.taskDuration, c.poolErrors, c.decisions, c.pools,
		c.txSubmitted, c.txResubmitted, c.txSettled, c.txInFlight,
		c.reserve, c.capacity,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// ObserveTask records one run of task with the number of pools that failed.
func (c *Collector) ObserveTask(task string, took time.Duration, failures int) {
	c.taskRuns.WithLabelValues(task).Inc()
	c.taskDuration.WithLabelValues(task).Observe(took.Seconds())
	if failures > 0 {
		c.poolErrors.WithLabelValues(task).Add(float64(failures))
	}
}

// ObserveDecision counts one orchestrator decision.
func (c *Collector) ObserveDecision(d domain.Decision) {
	c.decisions.WithLabelValues(d.Phase.String(), d.Action.String()).Inc()
}

// ObservePool records the headline figures of a freshly read pool state.
func (c *Collector) ObservePool(st domain.PoolState) {
	c.reserve.WithLabelValues(st.PoolID).Set(units(st.Reserve))
	c.capacity.WithLabelValues(st.PoolID).Set(units(st.Capacity.Total))
}

// SetPools records the size of the active pool set.
func (c *Collector) SetPools(n int) { c.pools.Set(float64(n)) }

func (c *Collector) TxSubmitted(action string) { c.txSubmitted.WithLabelValues(action).Inc() }

func (c *Collector) TxResubmitted(action string, escalated bool) {
	c.txResubmitted.WithLabelValues(action, strconv.FormatBool(escalated)).Inc()
}

func (c *Collector) TxSettled(action string, succeeded bool) {
	status := "success"
	if !succeeded {
		status = "reverted"
	}
	c.txSettled.WithLabelValues(action, status).Inc()
}

func (c *Collector) SetInFlight(n int) { c.txInFlight.Set(float64(n)) }

// units converts an 18-decimal amount to a float for display. Gauges are
// the only place amounts become floating point.
func units(v math.Int) float64 {
	f, err := math.LegacyNewDecFromIntWithPrec(domain.ZeroIfNil(v), domain.AmountDecimals).Float64()
	if err != nil {
		return 0
	}
	return f
}
