// Package metrics exposes command counters and the per-profile sensor values
// (hunger average, snacks done, free meals used) over Prometheus.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/dietplan/dietplan/internal/core"
)

const namespace = "dietplan"

// ProfileLister lists the profiles to report on.
type ProfileLister interface {
	List(ctx context.Context) ([]core.Profile, error)
}

// StatsSource reads the derived values behind the sensors.
type StatsSource interface {
	HungerAverage(ctx context.Context, profileID int64, asOf time.Time) (*float64, error)
	SnacksCompleted(ctx context.Context, profileID int64, date time.Time) (int, error)
	FreeMealsUsedInWeek(ctx context.Context, profileID int64, anchor time.Time) (int, error)
}

// Metrics owns a registry with the command metrics and the sensor collector.
type Metrics struct {
	Registry *prometheus.Registry

	commands  *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	conns     prometheus.Gauge
	connTotal prometheus.Counter
}

// New registers everything on a fresh registry. quota is reported as a constant gauge.
func New(profiles ProfileLister, stats StatsSource, quota int, log *zap.Logger) *Metrics {
	if log == nil {
		log = zap.NewNop()
	}
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ws",
			Name:      "commands_total",
			Help:      "Commands handled, by type and result code.",
		}, []string{"type", "code"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ws",
			Name:      "command_duration_seconds",
			Help:      "Duration of command handling.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12), // 0.5ms to ~1s
		}, []string{"type"}),
		conns: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ws",
			Name:      "connections",
			Help:      "Open websocket connections.",
		}),
		connTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ws",
			Name:      "connections_total",
			Help:      "Websocket connections accepted.",
		}),
	}
	m.Registry.MustRegister(
		m.commands,
		m.duration,
		m.conns,
		m.connTotal,
		NewSensorCollector(profiles, stats, quota, log),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
	return m
}

// Handler serves the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// ObserveCommand records one handled command. code is "ok" on success.
func (m *Metrics) ObserveCommand(typ, code string, d time.Duration) {
	if typ == "" {
		typ = "unknown"
	}
	m.commands.WithLabelValues(typ, code).Inc()
	m.duration.WithLabelValues(typ).Observe(d.Seconds())
}

// ConnOpened and ConnClosed track websocket sessions.
func (m *Metrics) ConnOpened() {
	m.conns.Inc()
	m.connTotal.Inc()
}

func (m *Metrics) ConnClosed() {
	m.conns.Dec()
}

// SensorCollector reads the sensor values from the store on every scrape.
type SensorCollector struct {
	profiles ProfileLister
	stats    StatsSource
	quota    int
	log      *zap.Logger
	now      func() time.Time
	timeout  time.Duration

	hunger    *prometheus.Desc
	snacks    *prometheus.Desc
	freeMeals *prometheus.Desc
	freeQuota *prometheus.Desc
}

// NewSensorCollector builds the collector.
func NewSensorCollector(profiles ProfileLister, stats StatsSource, quota int, log *zap.Logger) *SensorCollector {
	labels := []string{"profile_id", "profile"}
	return &SensorCollector{
		profiles: profiles,
		stats:    stats,
		quota:    quota,
		log:      log,
		now:      time.Now,
		timeout:  5 * time.Second,
		hunger: prometheus.NewDesc(namespace+"_hunger_avg_7d",
			"Average hunger score over the last 7 days.", labels, nil),
		snacks: prometheus.NewDesc(namespace+"_snacks_done_today",
			"Snack periods marked done today.", labels, nil),
		freeMeals: prometheus.NewDesc(namespace+"_free_meals_week",
			"Free meals used in the current ISO week.", labels, nil),
		freeQuota: prometheus.NewDesc(namespace+"_free_meals_quota",
			"Configured free meals per week.", nil, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *SensorCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.hunger
	ch <- c.snacks
	ch <- c.freeMeals
	ch <- c.freeQuota
}

// Collect implements prometheus.Collector. A profile whose values cannot be
// read is skipped and logged; the scrape still succeeds.
func (c *SensorCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	ch <- prometheus.MustNewConstMetric(c.freeQuota, prometheus.GaugeValue, float64(c.quota))

	ps, err := c.profiles.List(ctx)
	if err != nil {
		c.log.Warn("sensor scrape: listing profiles", zap.Error(err))
		return
	}
	n := c.now()
	today := time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, time.UTC)
	for _, p := range ps {
		labels := []string{strconv.FormatInt(p.ID, 10), p.DisplayName}

		avg, err := c.stats.HungerAverage(ctx, p.ID, today)
		if err != nil {
			c.log.Warn("sensor scrape: hunger", zap.Int64("profile_id", p.ID), zap.Error(err))
			continue
		}
		if avg != nil {
			ch <- prometheus.MustNewConstMetric(c.hunger, prometheus.GaugeValue, *avg, labels...)
		}

		snacks, err := c.stats.SnacksCompleted(ctx, p.ID, today)
		if err != nil {
			c.log.Warn("sensor scrape: snacks", zap.Int64("profile_id", p.ID), zap.Error(err))
			continue
		}
		ch <- prometheus.MustNewConstMetric(c.snacks, prometheus.GaugeValue, float64(snacks), labels...)

		free, err := c.stats.FreeMealsUsedInWeek(ctx, p.ID, today)
		if err != nil {
			c.log.Warn("sensor scrape: free meals", zap.Int64("profile_id", p.ID), zap.Error(err))
			continue
		}
		ch <- prometheus.MustNewConstMetric(c.freeMeals, prometheus.GaugeValue, float64(free), labels...)
	}
}
