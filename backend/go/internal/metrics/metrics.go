package metrics

import (
	"AgentOffice/backend/go/pkg/circuitbreaker"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "agent_office"

// Metrics owns a private registry so that every process (and every test)
// starts from zero. All methods are safe on a nil receiver.
type Metrics struct {
	registry         *prometheus.Registry
	callbacks        *prometheus.CounterVec
	events           *prometheus.CounterVec
	dispatches       *prometheus.CounterVec
	questsCreated    *prometheus.CounterVec
	gatewayFailures  *prometheus.CounterVec
	notifications    *prometheus.CounterVec
	breakerState     *prometheus.GaugeVec
	realtimeClients  prometheus.Gauge
	staleTasksMarked prometheus.Counter
}

// New registers every instrument on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		callbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "callbacks_total",
			Help: "Workflow engine callbacks by agent and status.",
		}, []string{"agent", "status"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "events_broadcast_total",
			Help: "Events broadcast to real-time clients by type.",
		}, []string{"type"}),
		dispatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "dispatches_total",
			Help: "Tasks dispatched to the workflow engine by result.",
		}, []string{"result"}),
		questsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "quests_created_total",
			Help: "Quests created by type.",
		}, []string{"quest_type"}),
		gatewayFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "rowstore_failures_total",
			Help: "Row store operations that failed, by operation and table.",
		}, []string{"op", "table"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "notifications_total",
			Help: "Chat-bot notifications by kind and result.",
		}, []string{"kind", "result"}),
		breakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "circuit_breaker_state",
			Help: "Circuit breaker state per dependency (0 closed, 1 open, 2 half-open).",
		}, []string{"name"}),
		realtimeClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "realtime_clients",
			Help: "Connected websocket clients.",
		}),
		staleTasksMarked: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "stale_tasks_total",
			Help: "Pipeline tasks marked as errored by the stale sweep.",
		}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.callbacks, m.events, m.dispatches, m.questsCreated, m.gatewayFailures,
		m.notifications, m.breakerState, m.realtimeClients, m.staleTasksMarked,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// Registry exposes the registry for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) Callback(agent, status string) {
	if m == nil {
		return
	}
	m.callbacks.WithLabelValues(agent, status).Inc()
}

func (m *Metrics) Event(eventType string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(eventType).Inc()
}

func (m *Metrics) Dispatch(result string) {
	if m == nil {
		return
	}
	m.dispatches.WithLabelValues(result).Inc()
}

func (m *Metrics) QuestCreated(questType string) {
	if m == nil {
		return
	}
	m.questsCreated.WithLabelValues(questType).Inc()
}

func (m *Metrics) GatewayFailure(op, table string) {
	if m == nil {
		return
	}
	m.gatewayFailures.WithLabelValues(op, table).Inc()
}

func (m *Metrics) Notification(kind, result string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(kind, result).Inc()
}

func (m *Metrics) BreakerState(name string, state int) {
	if m == nil {
		return
	}
	m.breakerState.WithLabelValues(name).Set(float64(state))
}

// BreakerHook feeds circuit breaker transitions into the breaker gauge.
func (m *Metrics) BreakerHook() circuitbreaker.StateChangeFunc {
	return func(name string, _, to circuitbreaker.State) {
		m.BreakerState(name, int(to))
	}
}

func (m *Metrics) SetRealtimeClients(n int) {
	if m == nil {
		return
	}
	m.realtimeClients.Set(float64(n))
}

func (m *Metrics) StaleTasks(n int) {
	if m == nil {
		return
	}
	m.staleTasksMarked.Add(float64(n))
}
