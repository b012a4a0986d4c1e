// Package executor walks a scenario's step-tree against a virtual user's
// Context: it resolves Visit steps to registered screens, draws a branch
// for Choose steps with probability proportional to weight, pauses for
// Think steps, and inlines ScenarioRef steps.
package executor

import (
	"context"
	"math/rand"
	"time"

	"github.com/jihwankim/loadsmith/pkg/scenario"
	"github.com/jihwankim/loadsmith/pkg/screen"
	"github.com/jihwankim/loadsmith/pkg/vuser"
)

// sleepPollInterval bounds how quickly a Think step notices cancellation.
const sleepPollInterval = 100 * time.Millisecond

// Run walks steps against ctx, resolving Visit/ScenarioRef through reg. It
// stops early if ctx.Aborted() becomes true or goCtx is cancelled. Run
// clears ctx's abort flag before walking and leaves it set on return if the
// walk aborted, so the caller can distinguish a normal from an aborted
// completion.
func Run(goCtx context.Context, reg *screen.Registry, ctx *vuser.Context, steps []scenario.Step) {
	ctx.ResetAborted()
	walk(goCtx, reg, ctx, steps)
}

func walk(goCtx context.Context, reg *screen.Registry, ctx *vuser.Context, steps []scenario.Step) {
	for _, step := range steps {
		if ctx.Aborted() || goCtx.Err() != nil {
			return
		}
		execStep(goCtx, reg, ctx, step)
	}
}

func execStep(goCtx context.Context, reg *screen.Registry, ctx *vuser.Context, step scenario.Step) {
	switch s := step.(type) {
	case scenario.Visit:
		ctx.SetCurrentScreen(s.Screen)
		fn, ok := reg.Lookup(s.Screen)
		if !ok {
			// The Registry is validated before any user is spawned, so this
			// indicates a screen removed after validation; absorb it like
			// any other scenario-level error rather than crashing the user.
			ctx.RecordScenarioError(s.Screen, errUnregisteredScreen(s.Screen))
			return
		}
		if err := fn(goCtx, ctx); err != nil {
			ctx.RecordScenarioError(s.Screen, err)
		}

	case scenario.Think:
		interruptibleSleep(goCtx, drawThink(ctx.Rand(), s))

	case scenario.ScenarioRef:
		sc, ok := reg.ScenarioByName(s.Name)
		if !ok {
			ctx.RecordScenarioError(s.Name, errUnregisteredScenario(s.Name))
			return
		}
		walk(goCtx, reg, ctx, sc.Steps)

	case scenario.Choose:
		if len(s.Options) == 0 {
			return
		}
		idx := weightedChoice(ctx.Rand(), s.Options)
		walk(goCtx, reg, ctx, s.Options[idx].Steps)
	}
}

// drawThink returns a duration uniformly distributed in [min, max].
func drawThink(rng *rand.Rand, t scenario.Think) time.Duration {
	if t.Max <= t.Min {
		return t.Min
	}
	span := int64(t.Max - t.Min)
	return t.Min + time.Duration(rng.Int63n(span+1))
}

// weightedChoice draws one option index with probability proportional to
// its weight among all options. The algorithm mirrors a classic cumulative-
// weight roulette draw: sum the weights, draw r in [0, total), then walk
// the options subtracting each weight from r until it goes negative.
func weightedChoice(rng *rand.Rand, options []scenario.Option) int {
	total := 0
	for _, opt := range options {
		total += opt.Weight
	}
	if total <= 0 {
		return 0
	}
	r := rng.Intn(total)
	for i, opt := range options {
		r -= opt.Weight
		if r < 0 {
			return i
		}
	}
	return len(options) - 1
}

// interruptibleSleep sleeps for d, or until goCtx is cancelled, whichever
// comes first, checking at sleepPollInterval granularity so a Think step
// never blocks shutdown for longer than that.
func interruptibleSleep(goCtx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	deadline := time.Now().Add(d)
	ticker := time.NewTicker(sleepPollInterval)
	defer ticker.Stop()
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return
		}
		select {
		case <-goCtx.Done():
			return
		case <-ticker.C:
		case <-time.After(minDuration(remaining, sleepPollInterval)):
		}
	}
}

func minDuration(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}
