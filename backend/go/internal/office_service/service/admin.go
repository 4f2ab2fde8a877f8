package service

import (
	"AgentOffice/backend/go/internal/models"
	"context"
	"time"
)

// HealthReport is the operator view of the process.
type HealthReport struct {
	Version            string              `json:"version"`
	UptimeSec          float64             `json:"uptime_sec"`
	RealtimeClients    int                 `json:"ws_clients"`
	NotifierActive     bool                `json:"notifier_active"`
	WorkflowConfigured bool                `json:"workflow_configured"`
	StoreConnected     bool                `json:"db_connected"`
	StoreError         string              `json:"db_error,omitempty"`
	LLMProvider        string              `json:"llm_provider,omitempty"`
	InFlightCycles     int                 `json:"in_flight_cycles"`
	Agents             []models.AgentState `json:"agents"`
}

func (s *OfficeService) Version() string {
	return s.version
}

func (s *OfficeService) Health(ctx context.Context) HealthReport {
	r := HealthReport{
		Version:            s.version,
		UptimeSec:          s.now().Sub(s.started).Seconds(),
		RealtimeClients:    s.clients(),
		NotifierActive:     s.notifier.Enabled(),
		WorkflowConfigured: s.canDispatch(),
		InFlightCycles:     s.cycles.size(),
		Agents:             s.state.Snapshot(),
	}
	if s.llm != nil {
		r.LLMProvider = s.llm.Name()
	}
	if err := s.store.Gateway().Ping(ctx); err != nil {
		r.StoreError = err.Error()
	} else {
		r.StoreConnected = true
	}
	return r
}

// ResetAgents puts every agent back to idle and resends the snapshot to all
// clients.
func (s *OfficeService) ResetAgents() {
	s.state.Reset()
	s.broadcast(s.state.InitEvent())
}

// MetricsReport is a compact JSON view for dashboards without Prometheus.
type MetricsReport struct {
	Version      string  `json:"version"`
	UptimeSec    float64 `json:"uptime_sec"`
	WSClients    int     `json:"ws_clients"`
	AgentsActive int     `json:"agents_active"`
	Errors24h    *int    `json:"errors_24h,omitempty"`
}

func (s *OfficeService) Metrics(ctx context.Context) MetricsReport {
	active := 0
	for _, a := range s.state.Snapshot() {
		if a.Status == models.AgentWorking || a.Status == models.AgentThinking {
			active++
		}
	}
	r := MetricsReport{
		Version:      s.version,
		UptimeSec:    s.now().Sub(s.started).Seconds(),
		WSClients:    s.clients(),
		AgentsActive: active,
	}
	if s.store.Available() {
		n := len(s.store.ErrorsSince(ctx, s.now().Add(-24*time.Hour)))
		r.Errors24h = &n
	}
	return r
}
