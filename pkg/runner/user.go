package runner

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/jihwankim/loadsmith/pkg/executor"
	"github.com/jihwankim/loadsmith/pkg/scenario"
	"github.com/jihwankim/loadsmith/pkg/vuser"
)

// spawnLoop spawns virtual users toward r.targetPool at r.spawnRate users
// per second, until the run is stopped. It also notices upward reshapes
// (more users needed) between spawns; downward reshapes are handled by each
// user self-retiring once the active count exceeds the target (see
// runUser).
func (r *Runner) spawnLoop(ctx context.Context, steps []scenario.Step) {
	var spawned int64

	for {
		if r.stop.Stopped() || ctx.Err() != nil {
			return
		}

		if r.ActiveUsers() < r.TargetPool() {
			idx := atomic.AddInt64(&spawned, 1)
			r.wg.Add(1)
			go r.runUser(ctx, steps, idx)
			if r.ActiveUsers()+1 >= r.TargetPool() {
				r.setState(StateRunning)
			}
		}

		cadence := spawnCadence(r.spawnRate())
		select {
		case <-ctx.Done():
			return
		case <-r.stop.Done():
			return
		case <-time.After(cadence):
		}
	}
}

// spawnCadence returns the delay between spawns for a given spawn rate
// (users per second).
func spawnCadence(spawnRate float64) time.Duration {
	if spawnRate <= 0 {
		return time.Second
	}
	return time.Duration(float64(time.Second) / spawnRate)
}

// runUser is one virtual user's lifetime: it repeatedly walks the
// scenario's steps until the run stops, the active pool shrinks below this
// user, or the goroutine's context is cancelled.
func (r *Runner) runUser(ctx context.Context, steps []scenario.Step, idx int64) {
	defer r.wg.Done()

	atomic.AddInt32(&r.activeCount, 1)
	defer atomic.AddInt32(&r.activeCount, -1)

	r.stats.UserStarted()
	defer r.stats.UserFinished()

	vc, err := vuser.NewContext(vuser.Options{
		BaseURL:         r.cfg.Load.BaseURL,
		OpenTimeout:     r.cfg.HTTP.OpenTimeout,
		ReadTimeout:     r.cfg.HTTP.ReadTimeout,
		DefaultHeaders:  r.cfg.HTTP.DefaultHeaders,
		Seed:            userSeed(r.cfg.Load.Seed, idx),
		OnMetric:        r.stats.Record,
		OnScenarioError: r.stats.RecordScenarioError,
	})
	if err != nil {
		r.logger.Error("failed to build virtual user context", "error", err)
		return
	}

	if onStart, ok := r.reg.StartHook(); ok {
		if err := onStart(ctx, vc); err != nil {
			vc.RecordScenarioError("on_start", err)
		}
	}
	if onStop, ok := r.reg.StopHook(); ok {
		defer func() {
			if err := onStop(ctx, vc); err != nil {
				vc.RecordScenarioError("on_stop", err)
			}
		}()
	}

	for {
		if r.stop.Stopped() || ctx.Err() != nil {
			return
		}
		if r.ActiveUsers() > r.TargetPool() {
			// Shrinking: retire rather than start another iteration. Any
			// overshoot this causes self-corrects, since spawnLoop only
			// spawns while active is below target.
			return
		}
		executor.Run(ctx, r.reg, vc, steps)
	}
}

// userSeed derives a per-user deterministic seed from a run-level seed and
// the user's spawn index, so a fixed run seed reproduces the same sequence
// of Choose draws for the same user index.
func userSeed(runSeed int64, idx int64) int64 {
	if runSeed == 0 {
		return 0 // Context falls back to a time-based seed
	}
	return runSeed*1000003 + idx
}
