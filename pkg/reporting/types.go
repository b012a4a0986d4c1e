package reporting

import (
	"time"

	"github.com/jihwankim/loadsmith/pkg/stats"
)

// RunReport is the final JSON report written at the end of a run.
type RunReport struct {
	RunID     string    `json:"run_id"`
	Scenario  string    `json:"scenario"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Duration  string    `json:"duration"`

	Status  RunStatus `json:"status"`
	Message string    `json:"message,omitempty"`

	Config RunConfigInfo `json:"config"`

	UsersStarted  int `json:"users_started"`
	UsersFinished int `json:"users_finished"`

	Endpoints      []EndpointSummary `json:"endpoints"`
	TotalRequests  int               `json:"total_requests"`
	TotalFailures  int               `json:"total_failures"`
	ScenarioErrors []ScenarioErrorInfo `json:"scenario_errors,omitempty"`
}

// RunStatus is the terminal or current status of a run.
type RunStatus string

const (
	StatusRunning   RunStatus = "running"
	StatusCompleted RunStatus = "completed"
	StatusFailed    RunStatus = "failed"
	StatusStopped   RunStatus = "stopped"
)

// RunConfigInfo records the configuration a report was produced under, for
// reproducibility.
type RunConfigInfo struct {
	BaseURL   string  `json:"base_url"`
	Users     int     `json:"users"`
	SpawnRate float64 `json:"spawn_rate"`
	Workers   int     `json:"workers"`
	Seed      int64   `json:"seed"`
}

// EndpointSummary is the JSON shape of one stats.EndpointStats entry.
type EndpointSummary struct {
	Endpoint string `json:"endpoint"`
	Count    int    `json:"count"`
	Failures int    `json:"failures"`
	MinMS    float64 `json:"min_ms"`
	MaxMS    float64 `json:"max_ms"`
	MeanMS   float64 `json:"mean_ms"`
	P50MS    float64 `json:"p50_ms"`
	P90MS    float64 `json:"p90_ms"`
	P95MS    float64 `json:"p95_ms"`
	P99MS    float64 `json:"p99_ms"`
}

// ScenarioErrorInfo is the JSON shape of one vuser.ScenarioError.
type ScenarioErrorInfo struct {
	Screen string    `json:"screen"`
	Error  string    `json:"error"`
	At     time.Time `json:"at"`
}

// EndpointSummaries converts a stats snapshot's endpoint map into a sorted
// slice of EndpointSummary, in milliseconds, for JSON/HTML rendering.
func EndpointSummaries(snap stats.Snapshot) []EndpointSummary {
	out := make([]EndpointSummary, 0, len(snap.Endpoints))
	for _, ep := range snap.Endpoints {
		out = append(out, EndpointSummary{
			Endpoint: ep.Endpoint,
			Count:    ep.Count,
			Failures: ep.Failures,
			MinMS:    ep.Min.Seconds() * 1000,
			MaxMS:    ep.Max.Seconds() * 1000,
			MeanMS:   ep.Mean.Seconds() * 1000,
			P50MS:    ep.P50.Seconds() * 1000,
			P90MS:    ep.P90.Seconds() * 1000,
			P95MS:    ep.P95.Seconds() * 1000,
			P99MS:    ep.P99.Seconds() * 1000,
		})
	}
	return out
}

// DashboardConfigInfo is the config subset echoed by the dashboard's
// /api/status, restricted to the recognized keys a client may want to
// display or re-submit.
type DashboardConfigInfo struct {
	BaseURL   string  `json:"base_url"`
	Users     int     `json:"users"`
	SpawnRate float64 `json:"spawn_rate"`
	Workers   int     `json:"workers"`
}

// DashboardStatus is the JSON shape served by the dashboard's /api/status:
// the run's lifecycle state, the scenarios the registry knows about, and
// the config it was launched with.
type DashboardStatus struct {
	State     string              `json:"state"`
	Scenarios []string            `json:"scenarios"`
	Config    DashboardConfigInfo `json:"config"`
}

// LiveState is the JSON shape streamed over /api/stream: the run's id,
// scenario and state plus the live progress fields the dashboard page
// renders. It does not carry DashboardStatus's scenario list or config.
type LiveState struct {
	RunID       string    `json:"run_id"`
	Scenario    string    `json:"scenario"`
	State       string    `json:"state"`
	StartTime   time.Time `json:"start_time"`
	Elapsed     float64   `json:"elapsed_s"`
	ActiveUsers int       `json:"active_users"`
	TargetPool  int       `json:"target_pool"`
	RPS         float64   `json:"rps"`

	Endpoints []EndpointSummary `json:"endpoints"`
}
