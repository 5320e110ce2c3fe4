package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every Prometheus metric a login or shard process exports.
type Metrics struct {
	// Session/reactor metrics.
	SessionsTotal   *prometheus.CounterVec
	SessionsActive  prometheus.Gauge
	PacketsTotal    *prometheus.CounterVec
	PollDuration    prometheus.Histogram
	DisconnectsTotal *prometheus.CounterVec

	// Entity map / interest management.
	EntityMapOccupancy *prometheus.GaugeVec
	ChannelPopulation  *prometheus.GaugeVec

	// Tick scheduler.
	TickDuration     *prometheus.HistogramVec
	TicksTotal       *prometheus.CounterVec
	VehicleExpiries  prometheus.Counter

	// Persistence.
	DatabaseOperationsTotal *prometheus.CounterVec
	DatabaseOpDuration      prometheus.Histogram
	SaveQueueDepth          prometheus.Gauge

	// Login<->shard control link.
	LoginShardLinkUp        prometheus.Gauge
	LoginShardFramesTotal   *prometheus.CounterVec
	LoginShardHandshakesTotal *prometheus.CounterVec
}

// NewMetrics creates and registers every metric.
func NewMetrics() *Metrics {
	return &Metrics{
		SessionsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "originfall_sessions_total",
				Help: "Connections accepted, by client kind",
			},
			[]string{"kind"},
		),
		SessionsActive: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "originfall_sessions_active",
				Help: "Currently registered reactor sessions",
			},
		),
		PacketsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "originfall_packets_total",
				Help: "Packets dispatched, by packet id and direction",
			},
			[]string{"packet_id", "direction"},
		),
		PollDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "originfall_reactor_poll_duration_seconds",
				Help:    "Time spent in one Reactor.Poll pass",
				Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
			},
		),
		DisconnectsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "originfall_disconnects_total",
				Help: "Session disconnects, by reason severity",
			},
			[]string{"severity"},
		),
		EntityMapOccupancy: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "originfall_entitymap_occupancy",
				Help: "Live entities tracked by the entity map, by kind",
			},
			[]string{"kind"},
		),
		ChannelPopulation: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "originfall_channel_population",
				Help: "Player count per channel",
			},
			[]string{"channel"},
		),
		TickDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "originfall_tick_duration_seconds",
				Help:    "Scheduler task execution time, by task",
				Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
			},
			[]string{"task"},
		),
		TicksTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "originfall_ticks_total",
				Help: "Scheduler task firings, by task",
			},
			[]string{"task"},
		),
		VehicleExpiries: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "originfall_vehicle_expiries_total",
				Help: "Vehicle item expirations processed",
			},
		),
		DatabaseOperationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "originfall_database_operations_total",
				Help: "Database operations, by operation and result",
			},
			[]string{"operation", "result"},
		),
		DatabaseOpDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "originfall_database_operation_duration_seconds",
				Help:    "Database operation latency",
				Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
			},
		),
		SaveQueueDepth: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "originfall_save_queue_depth",
				Help: "Pending entries in the autosave retry queue",
			},
		),
		LoginShardLinkUp: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "originfall_loginshard_link_up",
				Help: "Login<->shard control link status (0/1)",
			},
		),
		LoginShardFramesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "originfall_loginshard_frames_total",
				Help: "Frames exchanged over the login<->shard control link, by type",
			},
			[]string{"type"},
		),
		LoginShardHandshakesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "originfall_loginshard_handshakes_total",
				Help: "Login<->shard handshake attempts, by result",
			},
			[]string{"result"},
		),
	}
}

// RecordSessionOpened increments accept counters for kind ("game",
// "login_server", "shard_server", "unknown").
func (m *Metrics) RecordSessionOpened(kind string, active int) {
	m.SessionsTotal.WithLabelValues(kind).Inc()
	m.SessionsActive.Set(float64(active))
}

// RecordSessionClosed updates the active-session gauge after a disconnect.
func (m *Metrics) RecordSessionClosed(severity string, active int) {
	m.DisconnectsTotal.WithLabelValues(severity).Inc()
	m.SessionsActive.Set(float64(active))
}

// RecordPacket increments the per-id packet counter.
func (m *Metrics) RecordPacket(packetID, direction string) {
	m.PacketsTotal.WithLabelValues(packetID, direction).Inc()
}

// RecordTick records one scheduler task firing and its duration.
func (m *Metrics) RecordTick(task string, durationSeconds float64) {
	m.TicksTotal.WithLabelValues(task).Inc()
	m.TickDuration.WithLabelValues(task).Observe(durationSeconds)
}

// RecordDatabaseOp records a persistence gateway call.
func (m *Metrics) RecordDatabaseOp(operation string, success bool, durationSeconds float64) {
	result := "success"
	if !success {
		result = "failure"
	}
	m.DatabaseOperationsTotal.WithLabelValues(operation, result).Inc()
	m.DatabaseOpDuration.Observe(durationSeconds)
}

// SetLoginShardLinkUp reflects the control link's current state.
func (m *Metrics) SetLoginShardLinkUp(up bool) {
	if up {
		m.LoginShardLinkUp.Set(1)
	} else {
		m.LoginShardLinkUp.Set(0)
	}
}

// RecordLoginShardFrame increments the per-type control-link frame counter.
func (m *Metrics) RecordLoginShardFrame(frameType string) {
	m.LoginShardFramesTotal.WithLabelValues(frameType).Inc()
}

// RecordLoginShardHandshake records a control-link handshake attempt.
func (m *Metrics) RecordLoginShardHandshake(success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	m.LoginShardHandshakesTotal.WithLabelValues(result).Inc()
}

// Handler exposes the Prometheus metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.Handler()
}
