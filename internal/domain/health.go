package domain

import "time"

type HealthStatus string

const (
	StatusHealthy   HealthStatus = "healthy"
	StatusDegraded  HealthStatus = "degraded"
	StatusUnhealthy HealthStatus = "unhealthy"
)

type ProbeState string

const (
	ProbeUp          ProbeState = "up"
	ProbeError       ProbeState = "error"
	ProbeUnreachable ProbeState = "unreachable"
)

type ProbeResult struct {
	State      ProbeState `json:"state"`
	URL        string     `json:"url"`
	StatusCode int        `json:"status_code,omitempty"`
	Error      string     `json:"error,omitempty"`
	LatencyMS  int64      `json:"latency_ms"`
}

type HealthReport struct {
	Service      string                 `json:"service"`
	Status       HealthStatus           `json:"status"`
	Version      string                 `json:"version"`
	Timestamp    time.Time              `json:"timestamp"`
	Dependencies map[string]ProbeResult `json:"dependencies,omitempty"`
}

// AggregateHealth folds backend probes into an overall status. A backend that
// answers with an error still responded; only when no backend responded at
// all is the result unhealthy.
func AggregateHealth(probes map[string]ProbeResult) HealthStatus {
	up, unreachable := 0, 0
	for _, p := range probes {
		switch p.State {
		case ProbeUp:
			up++
		case ProbeUnreachable:
			unreachable++
		}
	}
	switch {
	case unreachable == len(probes):
		return StatusUnhealthy
	case up == len(probes):
		return StatusHealthy
	default:
		return StatusDegraded
	}
}
