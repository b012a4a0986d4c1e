// Package builder provides the fluent DSL used to assemble a
// scenario.Scenario's step-tree: Visit, Think, and Choose. A Builder
// accumulates steps and freezes them into an immutable []scenario.Step on
// Build.
package builder

import (
	"fmt"
	"time"

	"github.com/jihwankim/loadsmith/pkg/scenario"
)

// Builder accumulates steps for one scenario or one branch of a Choose.
type Builder struct {
	name  string
	steps []scenario.Step
	err   error
}

// New starts a builder for a scenario named name. name is used only for
// diagnostics (validation errors, reporting); it need not be unique until
// the scenario is registered.
func New(name string) *Builder {
	return &Builder{name: name}
}

// Visit appends a step that moves the virtual user to the named screen.
func (b *Builder) Visit(screen string) *Builder {
	if screen == "" {
		b.fail(fmt.Errorf("scenario %q: Visit requires a non-empty screen name", b.name))
		return b
	}
	b.steps = append(b.steps, scenario.Visit{Screen: screen})
	return b
}

// Think appends a pause step. A single duration argument produces a fixed
// pause; two arguments (min, max) draw uniformly from that range at
// execution time.
func (b *Builder) Think(d ...time.Duration) *Builder {
	switch len(d) {
	case 1:
		b.steps = append(b.steps, scenario.Think{Min: d[0], Max: d[0]})
	case 2:
		if d[1] < d[0] {
			b.fail(fmt.Errorf("scenario %q: Think max %s is less than min %s", b.name, d[1], d[0]))
			return b
		}
		b.steps = append(b.steps, scenario.Think{Min: d[0], Max: d[1]})
	default:
		b.fail(fmt.Errorf("scenario %q: Think takes 1 or 2 durations, got %d", b.name, len(d)))
	}
	return b
}

// ScenarioRef appends a step that inlines another named scenario's steps.
func (b *Builder) ScenarioRef(name string) *Builder {
	if name == "" {
		b.fail(fmt.Errorf("scenario %q: ScenarioRef requires a non-empty scenario name", b.name))
		return b
	}
	b.steps = append(b.steps, scenario.ScenarioRef{Name: name})
	return b
}

// Choose appends a weighted-branch step. configure is called once with a
// fresh Chooser; each Chooser.Option call registers one branch.
func (b *Builder) Choose(configure func(*Chooser)) *Builder {
	c := &Chooser{parent: b.name}
	configure(c)
	if c.err != nil {
		b.fail(c.err)
		return b
	}
	if len(c.options) == 0 {
		b.fail(fmt.Errorf("scenario %q: Choose requires at least one Option", b.name))
		return b
	}
	total := 0
	for _, opt := range c.options {
		total += opt.Weight
	}
	if total <= 0 {
		b.fail(fmt.Errorf("scenario %q: Choose options must sum to a positive weight, got %d", b.name, total))
		return b
	}
	b.steps = append(b.steps, scenario.Choose{Options: c.options})
	return b
}

// Build freezes the accumulated steps into a scenario.Scenario. It returns
// an error if any prior DSL call was invalid.
func (b *Builder) Build() (scenario.Scenario, error) {
	if b.err != nil {
		return scenario.Scenario{}, b.err
	}
	frozen := make([]scenario.Step, len(b.steps))
	copy(frozen, b.steps)
	return scenario.Scenario{Name: b.name, Steps: frozen}, nil
}

// MustBuild is Build, panicking on error. Intended for package-level
// scenario tables initialized at startup, where a malformed DSL call is a
// programmer error that should fail fast.
func (b *Builder) MustBuild() scenario.Scenario {
	sc, err := b.Build()
	if err != nil {
		panic(err)
	}
	return sc
}

func (b *Builder) fail(err error) {
	if b.err == nil {
		b.err = err
	}
}

// Chooser collects the weighted options of one Choose step.
type Chooser struct {
	parent  string
	options []scenario.Option
	err     error
}

// Option registers one weighted branch. weight must be positive; configure
// builds that branch's steps via a nested Builder.
func (c *Chooser) Option(weight int, configure func(*Builder)) *Chooser {
	if weight <= 0 {
		c.fail(fmt.Errorf("scenario %q: Choose option weight must be positive, got %d", c.parent, weight))
		return c
	}
	nested := New(c.parent)
	configure(nested)
	built, err := nested.Build()
	if err != nil {
		c.fail(err)
		return c
	}
	c.options = append(c.options, scenario.Option{Weight: weight, Steps: built.Steps})
	return c
}

func (c *Chooser) fail(err error) {
	if c.err == nil {
		c.err = err
	}
}
