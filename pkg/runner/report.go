package runner

import (
	"time"

	"github.com/jihwankim/loadsmith/pkg/reporting"
)

// buildReport converts the Runner's accumulated Stats into a final
// reporting.RunReport.
func (r *Runner) buildReport() *reporting.RunReport {
	endTime := time.Now()
	summary := r.stats.Summary()

	status := reporting.StatusCompleted
	if r.cfg.Load.Duration == 0 {
		status = reporting.StatusStopped
	}

	scenarioErrs := r.stats.ScenarioErrors()
	errInfos := make([]reporting.ScenarioErrorInfo, len(scenarioErrs))
	for i, e := range scenarioErrs {
		errInfos[i] = reporting.ScenarioErrorInfo{
			Screen: e.Screen,
			Error:  e.Error(),
			At:     e.At,
		}
	}

	return &reporting.RunReport{
		RunID:     r.runID,
		Scenario:  r.cfg.Load.Scenario,
		StartTime: r.startTime,
		EndTime:   endTime,
		Duration:  endTime.Sub(r.startTime).Round(time.Millisecond).String(),
		Status:    status,
		Config: reporting.RunConfigInfo{
			BaseURL:   r.cfg.Load.BaseURL,
			Users:     r.cfg.Load.Users,
			SpawnRate: r.cfg.Load.SpawnRate,
			Workers:   r.cfg.Load.Workers,
			Seed:      r.cfg.Load.Seed,
		},
		UsersStarted:   summary.Started,
		UsersFinished:  summary.Finished,
		Endpoints:      reporting.EndpointSummaries(summary),
		TotalRequests:  summary.RequestCount,
		TotalFailures:  summary.ErrorCount,
		ScenarioErrors: errInfos,
	}
}
