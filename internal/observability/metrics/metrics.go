package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "wwtp_"

	resultSuccess = "success"
	resultError   = "error"

	writeAccepted = "accepted"
	writeRejected = "rejected"

	notifySent    = "sent"
	notifyDropped = "dropped"
	notifyFailed  = "failed"

	protocolModbus = "modbus"
	protocolSNMP   = "snmp"
)

var (
	registerOnce sync.Once

	tickTotal    prometheus.Counter
	tickDuration prometheus.Histogram

	activeAlarms     prometheus.Gauge
	alarmEventsTotal *prometheus.CounterVec

	tagWritesTotal *prometheus.CounterVec

	scenarioEventsTotal *prometheus.CounterVec
	scenarioActive      prometheus.Gauge

	trendPoints prometheus.Gauge

	httpRequestsTotal *prometheus.CounterVec
	httpLatency       *prometheus.HistogramVec

	protocolRequestsTotal *prometheus.CounterVec

	notificationsTotal *prometheus.CounterVec
)

// Init registers the process metrics. Safe to call more than once.
func Init() {
	registerOnce.Do(func() {
		tickTotal = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "ticks_total",
				Help: "Total completed simulation ticks",
			},
		)
		tickDuration = prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "tick_duration_seconds",
				Help:    "Tick computation time in seconds",
				Buckets: prometheus.DefBuckets,
			},
		)

		activeAlarms = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "active_alarms",
				Help: "Alarms currently raised (acknowledged or not)",
			},
		)
		alarmEventsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "alarm_events_total",
				Help: "Total alarm lifecycle events by type",
			},
			[]string{"event"},
		)

		tagWritesTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "tag_writes_total",
				Help: "Total operator tag writes by result",
			},
			[]string{"result"},
		)

		scenarioEventsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "scenario_events_total",
				Help: "Total scenario lifecycle events by scenario and type",
			},
			[]string{"scenario", "event"},
		)
		scenarioActive = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "scenario_active",
				Help: "Whether a scenario is currently running",
			},
		)

		trendPoints = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "trend_points",
				Help: "Samples currently held in the trend buffer",
			},
		)

		httpRequestsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "http_requests_total",
				Help: "Total HTTP requests by method, route and status",
			},
			[]string{"method", "route", "status"},
		)
		httpLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "http_latency_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		)

		protocolRequestsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "protocol_requests_total",
				Help: "Total fieldbus requests by protocol and operation",
			},
			[]string{"protocol", "operation"},
		)

		notificationsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "notifications_total",
				Help: "Total alarm notifications by channel and result",
			},
			[]string{"channel", "result"},
		)

		prometheus.MustRegister(
			tickTotal,
			tickDuration,
			activeAlarms,
			alarmEventsTotal,
			tagWritesTotal,
			scenarioEventsTotal,
			scenarioActive,
			trendPoints,
			httpRequestsTotal,
			httpLatency,
			protocolRequestsTotal,
			notificationsTotal,
		)
	})
}

// ObserveTick records one completed tick and its computation time.
func ObserveTick(duration time.Duration) {
	if tickTotal != nil {
		tickTotal.Inc()
	}
	if tickDuration != nil {
		tickDuration.Observe(duration.Seconds())
	}
}

// SetActiveAlarms sets the raised-alarm gauge.
func SetActiveAlarms(count int) {
	if activeAlarms != nil {
		activeAlarms.Set(float64(count))
	}
}

// IncAlarmEvent increments alarm lifecycle counters.
func IncAlarmEvent(event string) {
	if event == "" {
		event = "unknown"
	}
	if alarmEventsTotal != nil {
		alarmEventsTotal.WithLabelValues(event).Inc()
	}
}

// IncTagWrite increments the operator write counter.
func IncTagWrite(result string) {
	if result == "" {
		result = "unknown"
	}
	if tagWritesTotal != nil {
		tagWritesTotal.WithLabelValues(result).Inc()
	}
}

// IncScenarioEvent increments scenario lifecycle counters.
func IncScenarioEvent(scenario, event string) {
	if scenario == "" {
		scenario = "unknown"
	}
	if event == "" {
		event = "unknown"
	}
	if scenarioEventsTotal != nil {
		scenarioEventsTotal.WithLabelValues(scenario, event).Inc()
	}
}

// SetScenarioActive flags whether a scenario is running.
func SetScenarioActive(active bool) {
	if scenarioActive == nil {
		return
	}
	if active {
		scenarioActive.Set(1)
	} else {
		scenarioActive.Set(0)
	}
}

// SetTrendPoints sets the trend buffer size gauge.
func SetTrendPoints(count int) {
	if trendPoints != nil {
		trendPoints.Set(float64(count))
	}
}

// ObserveHTTPRequest records one served HTTP request.
func ObserveHTTPRequest(method, route, status string, duration time.Duration) {
	if route == "" {
		route = "unknown"
	}
	if httpRequestsTotal != nil {
		httpRequestsTotal.WithLabelValues(method, route, status).Inc()
	}
	if httpLatency != nil {
		httpLatency.WithLabelValues(method, route).Observe(duration.Seconds())
	}
}

// IncProtocolRequest increments the fieldbus request counter.
func IncProtocolRequest(protocol, operation string) {
	if protocol == "" {
		protocol = "unknown"
	}
	if operation == "" {
		operation = "unknown"
	}
	if protocolRequestsTotal != nil {
		protocolRequestsTotal.WithLabelValues(protocol, operation).Inc()
	}
}

// IncNotification increments the notification counter.
func IncNotification(channel, result string) {
	if channel == "" {
		channel = "unknown"
	}
	if result == "" {
		result = "unknown"
	}
	if notificationsTotal != nil {
		notificationsTotal.WithLabelValues(channel, result).Inc()
	}
}

// Exported constants for callers.
const (
	ResultSuccess = resultSuccess
	ResultError   = resultError

	WriteAccepted = writeAccepted
	WriteRejected = writeRejected

	NotifySent    = notifySent
	NotifyDropped = notifyDropped
	NotifyFailed  = notifyFailed

	ProtocolModbus = protocolModbus
	ProtocolSNMP   = protocolSNMP
)
