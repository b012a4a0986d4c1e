package reporting

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jihwankim/loadsmith/pkg/stats"
)

// OutputFormat is how ProgressReporter renders live state.
type OutputFormat string

const (
	FormatText OutputFormat = "text"
	FormatJSON OutputFormat = "json"
	FormatTUI  OutputFormat = "tui"
)

// ProgressReporter prints run progress to the terminal as a run proceeds.
type ProgressReporter struct {
	format OutputFormat
	logger *Logger
}

// NewProgressReporter creates a ProgressReporter.
func NewProgressReporter(format OutputFormat, logger *Logger) *ProgressReporter {
	return &ProgressReporter{format: format, logger: logger}
}

// ReportSnapshot renders one periodic stats.Snapshot.
func (pr *ProgressReporter) ReportSnapshot(scenario string, elapsed time.Duration, snap stats.Snapshot) {
	switch pr.format {
	case FormatJSON:
		pr.reportSnapshotJSON(scenario, elapsed, snap)
	case FormatTUI:
		pr.reportSnapshotTUI(scenario, elapsed, snap)
	default:
		pr.reportSnapshotText(elapsed, snap)
	}
}

// ReportStateTransition reports a Runner phase transition, e.g.
// "spawning" → "running".
func (pr *ProgressReporter) ReportStateTransition(from, to string) {
	switch pr.format {
	case FormatJSON:
		data, _ := json.Marshal(map[string]interface{}{
			"event":      "state_transition",
			"from_state": from,
			"to_state":   to,
			"timestamp":  time.Now(),
		})
		fmt.Println(string(data))
	case FormatTUI:
		pr.clearLine()
		fmt.Printf("state: %s -> %s\n", from, to)
	default:
		fmt.Printf("[STATE] %s -> %s\n", from, to)
	}
}

// ReportRunCompleted prints the final summary once a run finishes.
func (pr *ProgressReporter) ReportRunCompleted(report *RunReport) {
	switch pr.format {
	case FormatJSON:
		data, _ := json.Marshal(map[string]interface{}{
			"event":     "run_completed",
			"report":    report,
			"timestamp": time.Now(),
		})
		fmt.Println(string(data))
	case FormatTUI:
		pr.clearLine()
		pr.printSummary(report)
	default:
		pr.printSummary(report)
	}
}

func (pr *ProgressReporter) reportSnapshotText(elapsed time.Duration, snap stats.Snapshot) {
	fmt.Printf("[%s] users=%d/%d started=%d finished=%d rps=%.1f reqs=%d errs=%d\n",
		elapsed.Round(time.Second), snap.ActiveUsers, snap.ActiveUsers, snap.Started, snap.Finished,
		snap.RPS, snap.RequestCount, snap.ErrorCount)
}

func (pr *ProgressReporter) reportSnapshotJSON(scenario string, elapsed time.Duration, snap stats.Snapshot) {
	data, err := json.Marshal(map[string]interface{}{
		"event":        "snapshot",
		"scenario":     scenario,
		"elapsed_s":    elapsed.Seconds(),
		"active_users": snap.ActiveUsers,
		"started":      snap.Started,
		"finished":     snap.Finished,
		"rps":          snap.RPS,
		"requests":     snap.RequestCount,
		"errors":       snap.ErrorCount,
		"endpoints":    EndpointSummaries(snap),
	})
	if err != nil {
		pr.logger.Error("failed to marshal snapshot", "error", err)
		return
	}
	fmt.Println(string(data))
}

func (pr *ProgressReporter) reportSnapshotTUI(scenario string, elapsed time.Duration, snap stats.Snapshot) {
	pr.clearScreen()
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("  loadsmith: %s\n", scenario)
	fmt.Println(strings.Repeat("=", 80))
	fmt.Println()
	fmt.Printf("elapsed: %s   active users: %d   rps: %.1f\n", elapsed.Round(time.Second), snap.ActiveUsers, snap.RPS)
	fmt.Printf("started: %d   finished: %d   requests: %d   errors: %d\n",
		snap.Started, snap.Finished, snap.RequestCount, snap.ErrorCount)
	fmt.Println()
	if len(snap.Endpoints) > 0 {
		fmt.Println("endpoint                                count   fail    p50     p95     p99")
		for _, ep := range EndpointSummaries(snap) {
			fmt.Printf("%-38s %6d  %5d  %6.0f  %6.0f  %6.0f\n",
				ep.Endpoint, ep.Count, ep.Failures, ep.P50MS, ep.P95MS, ep.P99MS)
		}
	}
	fmt.Println()
	fmt.Println(strings.Repeat("-", 80))
}

func (pr *ProgressReporter) printSummary(report *RunReport) {
	fmt.Println()
	fmt.Println(strings.Repeat("=", 80))
	fmt.Println("  RUN SUMMARY")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("scenario: %s\n", report.Scenario)
	fmt.Printf("run id:   %s\n", report.RunID)
	fmt.Printf("status:   %s\n", report.Status)
	fmt.Printf("duration: %s\n", report.Duration)
	fmt.Printf("users:    %d started, %d finished\n", report.UsersStarted, report.UsersFinished)
	fmt.Printf("requests: %d total, %d failed\n", report.TotalRequests, report.TotalFailures)
	if len(report.ScenarioErrors) > 0 {
		fmt.Printf("scenario errors: %d\n", len(report.ScenarioErrors))
	}
	fmt.Println()
	if len(report.Endpoints) > 0 {
		fmt.Println("endpoint                                count   fail    p50     p95     p99")
		for _, ep := range report.Endpoints {
			fmt.Printf("%-38s %6d  %5d  %6.0f  %6.0f  %6.0f\n",
				ep.Endpoint, ep.Count, ep.Failures, ep.P50MS, ep.P95MS, ep.P99MS)
		}
	}
	fmt.Println(strings.Repeat("=", 80))
}

func (pr *ProgressReporter) clearScreen() {
	fmt.Print("\033[2J\033[H")
}

func (pr *ProgressReporter) clearLine() {
	fmt.Print("\033[K")
}
