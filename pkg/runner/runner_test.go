package runner_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jihwankim/loadsmith/pkg/config"
	"github.com/jihwankim/loadsmith/pkg/reporting"
	"github.com/jihwankim/loadsmith/pkg/scenario/builder"
	"github.com/jihwankim/loadsmith/pkg/screen"
	"github.com/jihwankim/loadsmith/pkg/runner"
	"github.com/jihwankim/loadsmith/pkg/stats"
	"github.com/jihwankim/loadsmith/pkg/vuser"
)

func testLogger() *reporting.Logger {
	return reporting.NewLogger(reporting.LoggerConfig{Level: reporting.LogLevelError, Format: reporting.LogFormatText})
}

func pingServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
}

func pingRegistry() *screen.Registry {
	sc := builder.New("ping").Visit("ping").MustBuild()
	return screen.New().
		Screen("ping", func(goCtx context.Context, ctx *vuser.Context) error {
			_ = ctx.Get(goCtx, "/")
			return nil
		}).
		Scenario(sc)
}

func TestRunner_RunCompletesAfterDuration(t *testing.T) {
	srv := pingServer(t)
	defer srv.Close()

	cfg := config.DefaultConfig()
	cfg.Load.BaseURL = srv.URL
	cfg.Load.Users = 3
	cfg.Load.SpawnRate = 50
	cfg.Load.Duration = 200 * time.Millisecond
	cfg.Load.Scenario = "ping"
	cfg.Reporting.SnapshotInterval = 20 * time.Millisecond

	r := runner.New(cfg, pingRegistry(), testLogger())

	start := time.Now()
	report, err := r.Run(context.Background())
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.Less(t, elapsed, 5*time.Second)
	assert.Equal(t, reporting.StatusCompleted, report.Status)
	assert.GreaterOrEqual(t, report.UsersStarted, 1)
	assert.Equal(t, runner.StateStopped, r.State())
}

func TestRunner_StopEndsRunEarly(t *testing.T) {
	srv := pingServer(t)
	defer srv.Close()

	cfg := config.DefaultConfig()
	cfg.Load.BaseURL = srv.URL
	cfg.Load.Users = 2
	cfg.Load.SpawnRate = 50
	cfg.Load.Duration = 0
	cfg.Load.Scenario = "ping"

	r := runner.New(cfg, pingRegistry(), testLogger())

	go func() {
		time.Sleep(100 * time.Millisecond)
		r.Stop()
	}()

	start := time.Now()
	report, err := r.Run(context.Background())
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.Less(t, elapsed, 5*time.Second)
	assert.Equal(t, reporting.StatusStopped, report.Status)
}

func TestRunner_UnknownScenarioErrors(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Load.BaseURL = "http://example.invalid"
	cfg.Load.Scenario = "does-not-exist"

	r := runner.New(cfg, pingRegistry(), testLogger())
	_, err := r.Run(context.Background())
	require.Error(t, err)
}

func TestRunner_InvokesOnStartAndOnStopHooksPerUser(t *testing.T) {
	srv := pingServer(t)
	defer srv.Close()

	var mu sync.Mutex
	var starts, stops int

	sc := builder.New("ping").Visit("ping").MustBuild()
	reg := screen.New().
		Screen("ping", func(goCtx context.Context, ctx *vuser.Context) error {
			_ = ctx.Get(goCtx, "/")
			return nil
		}).
		Scenario(sc).
		OnStart(func(context.Context, *vuser.Context) error {
			mu.Lock()
			starts++
			mu.Unlock()
			return nil
		}).
		OnStop(func(context.Context, *vuser.Context) error {
			mu.Lock()
			stops++
			mu.Unlock()
			return nil
		})

	cfg := config.DefaultConfig()
	cfg.Load.BaseURL = srv.URL
	cfg.Load.Users = 3
	cfg.Load.SpawnRate = 50
	cfg.Load.Duration = 150 * time.Millisecond
	cfg.Load.Scenario = "ping"

	r := runner.New(cfg, reg, testLogger())
	_, err := r.Run(context.Background())
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, starts, stops, "every user that starts must also stop")
	assert.Greater(t, starts, 0)
}

func TestRunner_SubscribeReceivesSnapshots(t *testing.T) {
	srv := pingServer(t)
	defer srv.Close()

	cfg := config.DefaultConfig()
	cfg.Load.BaseURL = srv.URL
	cfg.Load.Users = 2
	cfg.Load.SpawnRate = 50
	cfg.Load.Duration = 150 * time.Millisecond
	cfg.Load.Scenario = "ping"
	cfg.Reporting.SnapshotInterval = 20 * time.Millisecond

	r := runner.New(cfg, pingRegistry(), testLogger())

	var received int
	r.Subscribe(func(stats.Snapshot) { received++ })

	_, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Greater(t, received, 0)
}
