// Package screen holds the Registry: the set of named screens and named
// scenarios a Runner can execute, plus pre-run reachability validation.
package screen

import (
	"context"
	"fmt"
	"sort"

	"github.com/jihwankim/loadsmith/pkg/scenario"
	"github.com/jihwankim/loadsmith/pkg/vuser"
)

// Screen is a unit of work a virtual user performs when it visits a named
// screen: arbitrary Go code that issues requests through ctx, stores data
// for later steps, and optionally aborts the current iteration.
type Screen func(goCtx context.Context, ctx *vuser.Context) error

// Registry is the set of named screens and named scenarios available to a
// run. It is built once at startup (typically in main) and is read-only
// once Validate has been called.
type Registry struct {
	screens   map[string]Screen
	scenarios map[string]scenario.Scenario

	onStart Screen
	onStop  Screen
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{
		screens:   make(map[string]Screen),
		scenarios: make(map[string]scenario.Scenario),
	}
}

// Screen registers a named screen. Registering the same name twice replaces
// the previous registration.
func (r *Registry) Screen(name string, fn Screen) *Registry {
	r.screens[name] = fn
	return r
}

// Scenario registers a named scenario. Registering the same name twice
// replaces the previous registration.
func (r *Registry) Scenario(sc scenario.Scenario) *Registry {
	r.scenarios[sc.Name] = sc
	return r
}

// OnStart registers the callable run once per virtual user, before that
// user's first scenario iteration. Registering twice replaces the previous
// hook.
func (r *Registry) OnStart(fn Screen) *Registry {
	r.onStart = fn
	return r
}

// OnStop registers the callable run once per virtual user, at retirement,
// after that user's last scenario iteration. Registering twice replaces the
// previous hook.
func (r *Registry) OnStop(fn Screen) *Registry {
	r.onStop = fn
	return r
}

// StartHook returns the registered on-start callable, and whether one was
// registered.
func (r *Registry) StartHook() (Screen, bool) {
	return r.onStart, r.onStart != nil
}

// StopHook returns the registered on-stop callable, and whether one was
// registered.
func (r *Registry) StopHook() (Screen, bool) {
	return r.onStop, r.onStop != nil
}

// Lookup returns the screen registered under name.
func (r *Registry) Lookup(name string) (Screen, bool) {
	fn, ok := r.screens[name]
	return fn, ok
}

// ScenarioNames returns every registered scenario name, sorted.
func (r *Registry) ScenarioNames() []string {
	names := make([]string, 0, len(r.scenarios))
	for name := range r.scenarios {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ScenarioByName returns the scenario registered under name.
func (r *Registry) ScenarioByName(name string) (scenario.Scenario, bool) {
	sc, ok := r.scenarios[name]
	return sc, ok
}

// Validate walks every registered scenario's step-tree and reports every
// Visit whose screen is not registered and every ScenarioRef whose target
// scenario is not registered (directly or transitively). It accumulates all
// problems before returning, rather than failing on the first one, so a
// single run surfaces every missing symbol at once.
func (r *Registry) Validate() error {
	v := &validation{reg: r, visiting: make(map[string]bool)}
	names := r.ScenarioNames()
	for _, name := range names {
		v.walkScenario(name)
	}
	if len(v.errors) == 0 {
		return nil
	}
	return &ValidationError{Problems: v.errors}
}

// ValidationError reports every reachability problem found by Validate.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("registry validation failed with %d problem(s):", len(e.Problems))
	for _, p := range e.Problems {
		msg += "\n  - " + p
	}
	return msg
}

type validation struct {
	reg      *Registry
	visiting map[string]bool
	errors   []string
}

func (v *validation) walkScenario(name string) {
	if v.visiting[name] {
		return // cycle; ScenarioRef cycles are allowed (they model loops) and terminate via Runner duration
	}
	sc, ok := v.reg.scenarios[name]
	if !ok {
		v.errors = append(v.errors, fmt.Sprintf("scenario %q referenced but not registered", name))
		return
	}
	v.visiting[name] = true
	v.walkSteps(name, sc.Steps)
	delete(v.visiting, name)
}

func (v *validation) walkSteps(scenarioName string, steps []scenario.Step) {
	for _, step := range steps {
		switch s := step.(type) {
		case scenario.Visit:
			if _, ok := v.reg.screens[s.Screen]; !ok {
				v.errors = append(v.errors, fmt.Sprintf("scenario %q: Visit(%q) but no screen is registered under that name", scenarioName, s.Screen))
			}
		case scenario.ScenarioRef:
			v.walkScenario(s.Name)
		case scenario.Choose:
			for _, opt := range s.Options {
				v.walkSteps(scenarioName, opt.Steps)
			}
		case scenario.Think:
			// no reachability to check
		default:
			v.errors = append(v.errors, fmt.Sprintf("scenario %q: unrecognized step type %T", scenarioName, step))
		}
	}
}
