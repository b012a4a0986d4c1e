// Package stats implements the thread-safe metrics aggregator: an
// append-only log of every completed request plus periodic snapshots and a
// final summary, grouped per endpoint.
package stats

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jihwankim/loadsmith/pkg/vuser"
)

// Stats aggregates MetricRecords and ScenarioErrors from every virtual
// user behind a single mutex. It is safe for concurrent use.
type Stats struct {
	mu sync.Mutex

	allMetrics      []vuser.MetricRecord
	intervalMetrics []vuser.MetricRecord
	scenarioErrors  []vuser.ScenarioError

	started  int
	finished int

	lastSnapshot time.Time
}

// New returns an empty Stats.
func New() *Stats {
	return &Stats{lastSnapshot: time.Now()}
}

// Record appends m to both the all-time and the current-interval logs.
func (s *Stats) Record(m vuser.MetricRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.allMetrics = append(s.allMetrics, m)
	s.intervalMetrics = append(s.intervalMetrics, m)
}

// RecordScenarioError appends a scenario-level error.
func (s *Stats) RecordScenarioError(e vuser.ScenarioError) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scenarioErrors = append(s.scenarioErrors, e)
}

// UserStarted increments the started-user counter.
func (s *Stats) UserStarted() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started++
}

// UserFinished increments the finished-user counter.
func (s *Stats) UserFinished() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finished++
}

// Counts returns the started and finished user counts.
func (s *Stats) Counts() (started, finished int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started, s.finished
}

// EndpointStats summarizes every request recorded against one endpoint.
type EndpointStats struct {
	Endpoint string
	Count    int
	Failures int
	Min      time.Duration
	Max      time.Duration
	Mean     time.Duration
	P50      time.Duration
	P90      time.Duration
	P95      time.Duration
	P99      time.Duration
}

// Snapshot is a point-in-time view used by the live dashboard/terminal
// reporter: stats accumulated since the previous snapshot.
type Snapshot struct {
	At            time.Time
	Elapsed       time.Duration
	ActiveUsers   int
	Started       int
	Finished      int
	RequestCount  int
	ErrorCount    int
	ScenarioErrs  int
	RPS           float64
	Endpoints     map[string]EndpointStats
}

// Snapshot computes a Snapshot over metrics recorded since the previous
// call to Snapshot, then clears the interval buffer. activeUsers is
// supplied by the caller (the Runner tracks live user count itself).
func (s *Stats) Snapshot(activeUsers int) Snapshot {
	s.mu.Lock()
	metrics := s.intervalMetrics
	s.intervalMetrics = nil
	started, finished := s.started, s.finished
	now := time.Now()
	elapsed := now.Sub(s.lastSnapshot)
	s.lastSnapshot = now
	s.mu.Unlock()

	snap := Snapshot{
		At:          now,
		Elapsed:     elapsed,
		ActiveUsers: activeUsers,
		Started:     started,
		Finished:    finished,
		Endpoints:   groupByEndpoint(metrics),
	}
	for _, ep := range snap.Endpoints {
		snap.RequestCount += ep.Count
		snap.ErrorCount += ep.Failures
	}
	if elapsed > 0 {
		snap.RPS = float64(snap.RequestCount) / elapsed.Seconds()
	}
	return snap
}

// Summary computes stats over every request recorded for the entire run.
func (s *Stats) Summary() Snapshot {
	s.mu.Lock()
	metrics := make([]vuser.MetricRecord, len(s.allMetrics))
	copy(metrics, s.allMetrics)
	started, finished := s.started, s.finished
	scenarioErrs := len(s.scenarioErrors)
	s.mu.Unlock()

	summary := Snapshot{
		At:           time.Now(),
		Started:      started,
		Finished:     finished,
		ScenarioErrs: scenarioErrs,
		Endpoints:    groupByEndpoint(metrics),
	}
	for _, ep := range summary.Endpoints {
		summary.RequestCount += ep.Count
		summary.ErrorCount += ep.Failures
	}
	return summary
}

// ScenarioErrors returns every scenario error recorded for the run.
func (s *Stats) ScenarioErrors() []vuser.ScenarioError {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]vuser.ScenarioError, len(s.scenarioErrors))
	copy(out, s.scenarioErrors)
	return out
}

func endpointKey(m vuser.MetricRecord) string {
	name := m.Name
	if name == "" {
		name = m.Path
	}
	return strings.ToUpper(m.Method) + " " + name
}

func groupByEndpoint(metrics []vuser.MetricRecord) map[string]EndpointStats {
	byEndpoint := make(map[string][]vuser.MetricRecord)
	for _, m := range metrics {
		key := endpointKey(m)
		byEndpoint[key] = append(byEndpoint[key], m)
	}
	out := make(map[string]EndpointStats, len(byEndpoint))
	for key, recs := range byEndpoint {
		out[key] = computeEndpointStats(key, recs)
	}
	return out
}

func computeEndpointStats(key string, recs []vuser.MetricRecord) EndpointStats {
	durations := make([]time.Duration, len(recs))
	var total time.Duration
	failures := 0
	for i, r := range recs {
		durations[i] = r.Duration
		total += r.Duration
		if r.Error != "" || r.Status >= 400 {
			failures++
		}
	}
	sort.Slice(durations, func(i, j int) bool { return durations[i] < durations[j] })

	es := EndpointStats{
		Endpoint: key,
		Count:    len(recs),
		Failures: failures,
	}
	if len(durations) == 0 {
		return es
	}
	es.Min = durations[0]
	es.Max = durations[len(durations)-1]
	es.Mean = total / time.Duration(len(durations))
	es.P50 = percentile(durations, 50)
	es.P90 = percentile(durations, 90)
	es.P95 = percentile(durations, 95)
	es.P99 = percentile(durations, 99)
	return es
}

// percentile returns the p-th percentile of a slice of durations already
// sorted ascending, using idx = max(ceil(n*p/100)-1, 0).
func percentile(sorted []time.Duration, p int) time.Duration {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	idx := (n*p + 99) / 100 // ceil(n*p/100)
	idx--
	if idx < 0 {
		idx = 0
	}
	if idx >= n {
		idx = n - 1
	}
	return sorted[idx]
}
