package stats_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jihwankim/loadsmith/pkg/stats"
	"github.com/jihwankim/loadsmith/pkg/vuser"
)

func record(name string, method string, d time.Duration, success bool) vuser.MetricRecord {
	status := 200
	errMsg := ""
	if !success {
		status = 500
		errMsg = "boom"
	}
	return vuser.MetricRecord{Name: name, Method: method, Path: "/" + name, Status: status, Duration: d, Success: success, Error: errMsg, At: time.Now()}
}

func TestStats_SummaryGroupsByEndpoint(t *testing.T) {
	s := stats.New()
	s.Record(record("home", "GET", 10*time.Millisecond, true))
	s.Record(record("home", "GET", 20*time.Millisecond, true))
	s.Record(record("checkout", "POST", 30*time.Millisecond, false))

	sum := s.Summary()
	assert.Equal(t, 3, sum.RequestCount)
	assert.Equal(t, 1, sum.ErrorCount)

	home, ok := sum.Endpoints["GET home"]
	require.True(t, ok)
	assert.Equal(t, 2, home.Count)
	assert.Equal(t, 0, home.Failures)

	checkout, ok := sum.Endpoints["POST checkout"]
	require.True(t, ok)
	assert.Equal(t, 1, checkout.Count)
	assert.Equal(t, 1, checkout.Failures)
}

func TestStats_ThreeXXIsNotCountedAsFailure(t *testing.T) {
	s := stats.New()
	s.Record(vuser.MetricRecord{Name: "redirect", Method: "GET", Path: "/redirect", Status: 302, Success: false, At: time.Now()})

	sum := s.Summary()
	ep, ok := sum.Endpoints["GET redirect"]
	require.True(t, ok)
	assert.Equal(t, 1, ep.Count)
	assert.Equal(t, 0, ep.Failures, "3xx is not an error per the error law")
}

func TestStats_PercentileOrdering(t *testing.T) {
	s := stats.New()
	for i := 1; i <= 100; i++ {
		s.Record(record("x", "GET", time.Duration(i)*time.Millisecond, true))
	}
	sum := s.Summary()
	ep := sum.Endpoints["GET x"]

	assert.Equal(t, 50*time.Millisecond, ep.P50)
	assert.Equal(t, 90*time.Millisecond, ep.P90)
	assert.Equal(t, 95*time.Millisecond, ep.P95)
	assert.Equal(t, 99*time.Millisecond, ep.P99)
	assert.Equal(t, 1*time.Millisecond, ep.Min)
	assert.Equal(t, 100*time.Millisecond, ep.Max)
}

func TestStats_SnapshotClearsIntervalButNotAllTime(t *testing.T) {
	s := stats.New()
	s.Record(record("x", "GET", time.Millisecond, true))

	snap := s.Snapshot(5)
	assert.Equal(t, 1, snap.RequestCount)
	assert.Equal(t, 5, snap.ActiveUsers)

	empty := s.Snapshot(5)
	assert.Equal(t, 0, empty.RequestCount, "interval buffer must be cleared after Snapshot")

	full := s.Summary()
	assert.Equal(t, 1, full.RequestCount, "all-time totals survive across snapshots")
}

func TestStats_StartedFinishedCounts(t *testing.T) {
	s := stats.New()
	s.UserStarted()
	s.UserStarted()
	s.UserFinished()

	started, finished := s.Counts()
	assert.Equal(t, 2, started)
	assert.Equal(t, 1, finished)
}

func TestStats_ScenarioErrorsAccumulate(t *testing.T) {
	s := stats.New()
	s.RecordScenarioError(vuser.ScenarioError{Screen: "checkout", Err: assertErr("boom"), At: time.Now()})

	errs := s.ScenarioErrors()
	require.Len(t, errs, 1)
	assert.Equal(t, "checkout", errs[0].Screen)
}

func TestStats_ConcurrentRecordIsSafe(t *testing.T) {
	s := stats.New()
	var wg sync.WaitGroup
	const n = 200
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			s.Record(record("x", "GET", time.Millisecond, true))
		}()
	}
	wg.Wait()

	assert.Equal(t, n, s.Summary().RequestCount)
}

type assertErr string

func (e assertErr) Error() string { return string(e) }
