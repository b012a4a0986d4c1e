// Package runner implements the Scaler: it spawns and retires virtual
// users toward a target pool size at a configured spawn rate, drives each
// user's scenario loop through the executor, and coordinates graceful
// termination on a duration deadline, an external stop request, or
// SIGINT/SIGTERM.
package runner

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jihwankim/loadsmith/pkg/config"
	"github.com/jihwankim/loadsmith/pkg/reporting"
	"github.com/jihwankim/loadsmith/pkg/screen"
	"github.com/jihwankim/loadsmith/pkg/stats"
)

// joinBudgetPerUser bounds how long Run waits, per still-active user, for
// that user's goroutine to notice the stop signal and exit during the final
// drain.
const joinBudgetPerUser = 2 * time.Second

// spawnPollInterval bounds how often the spawn loop re-checks the stop flag
// and any pending reshape.
const spawnPollInterval = 100 * time.Millisecond

// State is the Runner's current lifecycle phase, surfaced to the terminal
// reporter and the dashboard.
type State string

const (
	StatePending  State = "pending"
	StateSpawning State = "spawning"
	StateRunning  State = "running"
	StateStopping State = "stopping"
	StateStopped  State = "stopped"
)

// Runner owns the virtual-user pool for one run.
type Runner struct {
	cfg    *config.Config
	reg    *screen.Registry
	stats  *stats.Stats
	logger *reporting.Logger
	stop   *stopController

	runID     string
	startTime time.Time

	state atomic.Value // State

	targetPool int32 // atomic
	spawnRateX int64 // spawn rate * 1000, atomic (avoids float64 atomics)

	activeCount int32 // atomic

	wg sync.WaitGroup

	subMu       sync.Mutex
	subscribers []func(stats.Snapshot)
}

// Subscribe registers fn to be called with a periodic stats.Snapshot while
// the run is in progress (every cfg.Reporting.SnapshotInterval). Used by
// the terminal reporter; the dashboard's SSE stream reads Stats().Summary()
// instead.
func (r *Runner) Subscribe(fn func(stats.Snapshot)) {
	r.subMu.Lock()
	defer r.subMu.Unlock()
	r.subscribers = append(r.subscribers, fn)
}

func (r *Runner) snapshotLoop(ctx context.Context) {
	interval := r.cfg.Reporting.SnapshotInterval
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stop.Done():
			return
		case <-ticker.C:
			snap := r.stats.Snapshot(r.ActiveUsers())
			r.subMu.Lock()
			subs := append([]func(stats.Snapshot){}, r.subscribers...)
			r.subMu.Unlock()
			for _, fn := range subs {
				fn(snap)
			}
		}
	}
}

// New builds a Runner from cfg and reg. reg must already be validated.
func New(cfg *config.Config, reg *screen.Registry, logger *reporting.Logger) *Runner {
	r := &Runner{
		cfg:    cfg,
		reg:    reg,
		stats:  stats.New(),
		logger: logger,
		stop:   newStopController(),
		runID:  generateRunID(),
	}
	r.state.Store(StatePending)
	r.targetPool = int32(cfg.Load.Users)
	r.spawnRateX = int64(cfg.Load.SpawnRate * 1000)
	if cfg.Load.Workers > 0 {
		// Advisory only: caps the OS threads Go schedules virtual-user
		// goroutines onto, it does not bound how many virtual users run.
		runtime.GOMAXPROCS(cfg.Load.Workers)
	}
	return r
}

// RunID returns the identifier assigned to this run.
func (r *Runner) RunID() string { return r.runID }

// Stats returns the Runner's Stats aggregator, for live reporting.
func (r *Runner) Stats() *stats.Stats { return r.stats }

// ScenarioNames returns every scenario name known to the Runner's registry.
func (r *Runner) ScenarioNames() []string { return r.reg.ScenarioNames() }

// Config returns the Runner's configuration, for status reporting.
func (r *Runner) Config() *config.Config { return r.cfg }

// State returns the Runner's current lifecycle phase.
func (r *Runner) State() State { return r.state.Load().(State) }

// ActiveUsers returns the number of virtual users currently running.
func (r *Runner) ActiveUsers() int { return int(atomic.LoadInt32(&r.activeCount)) }

// TargetPool returns the current target number of concurrent users.
func (r *Runner) TargetPool() int { return int(atomic.LoadInt32(&r.targetPool)) }

// Reshape updates the target pool size and/or spawn rate while a run is in
// progress. A zero value leaves that setting unchanged.
func (r *Runner) Reshape(targetPool int, spawnRate float64) {
	if targetPool > 0 {
		atomic.StoreInt32(&r.targetPool, int32(targetPool))
	}
	if spawnRate > 0 {
		atomic.StoreInt64(&r.spawnRateX, int64(spawnRate*1000))
	}
}

// Stop requests graceful termination: no new users are spawned, the run
// context is cancelled (cutting short any in-flight request or Think pause),
// running users exit at their next step boundary, and Run returns once every
// user has exited or its join budget expires.
func (r *Runner) Stop() {
	r.stop.Stop()
}

func (r *Runner) setState(s State) {
	from := r.State()
	r.state.Store(s)
	r.logger.Info("runner state transition", "from", from, "to", s)
}

func (r *Runner) spawnRate() float64 {
	return float64(atomic.LoadInt64(&r.spawnRateX)) / 1000.0
}

func generateRunID() string {
	return fmt.Sprintf("run-%d", time.Now().UnixNano())
}

// Run executes the scenario named cfg.Load.Scenario until stopped: by a
// configured duration elapsing, Stop being called, or SIGINT/SIGTERM. It
// returns the final RunReport.
func (r *Runner) Run(goCtx context.Context) (*reporting.RunReport, error) {
	if err := r.reg.Validate(); err != nil {
		return nil, fmt.Errorf("registry validation failed: %w", err)
	}
	sc, ok := r.reg.ScenarioByName(r.cfg.Load.Scenario)
	if !ok {
		return nil, fmt.Errorf("scenario %q is not registered", r.cfg.Load.Scenario)
	}

	r.startTime = time.Now()
	r.setState(StateSpawning)

	unregisterSignals := r.stop.watchSignals()
	defer unregisterSignals()

	runCtx, cancel := context.WithCancel(goCtx)
	defer cancel()

	if r.cfg.Load.Duration > 0 {
		deadline := r.startTime.Add(r.cfg.Load.Duration)
		r.stop.OnStop(cancel)
		go r.watchDuration(deadline)
	} else {
		r.stop.OnStop(cancel)
	}

	go r.spawnLoop(runCtx, sc.Steps)
	go r.snapshotLoop(runCtx)

	<-r.stop.Done()
	r.setState(StateStopping)

	r.drain()
	r.setState(StateStopped)

	return r.buildReport(), nil
}

// watchDuration triggers Stop once deadline passes, polling at
// spawnPollInterval so it notices Stop() called for another reason first.
func (r *Runner) watchDuration(deadline time.Time) {
	ticker := time.NewTicker(spawnPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-r.stop.Done():
			return
		case <-ticker.C:
			if time.Now().After(deadline) {
				r.Stop()
				return
			}
		}
	}
}

// drain waits for every spawned user to exit, bounded by a total budget of
// joinBudgetPerUser per currently active user so one wedged user cannot
// block shutdown indefinitely.
func (r *Runner) drain() {
	budget := time.Duration(r.ActiveUsers()+1) * joinBudgetPerUser
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(budget):
		r.logger.Warn("drain budget exceeded; some virtual users did not exit cleanly",
			"remaining", r.ActiveUsers())
	}
}
