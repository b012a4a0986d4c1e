package screen_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jihwankim/loadsmith/pkg/scenario"
	"github.com/jihwankim/loadsmith/pkg/scenario/builder"
	"github.com/jihwankim/loadsmith/pkg/screen"
	"github.com/jihwankim/loadsmith/pkg/vuser"
)

func noop(context.Context, *vuser.Context) error { return nil }

func TestRegistry_ValidateAcceptsWellFormedScenario(t *testing.T) {
	sc := builder.New("home").Visit("a").Visit("b").MustBuild()
	reg := screen.New().Screen("a", noop).Screen("b", noop).Scenario(sc)

	assert.NoError(t, reg.Validate())
}

func TestRegistry_ValidateReportsMissingScreen(t *testing.T) {
	sc := builder.New("home").Visit("a").Visit("missing").MustBuild()
	reg := screen.New().Screen("a", noop).Scenario(sc)

	err := reg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `Visit("missing")`)
}

func TestRegistry_ValidateReportsMissingScenarioRef(t *testing.T) {
	sc := builder.New("home").Visit("a").ScenarioRef("nowhere").MustBuild()
	reg := screen.New().Screen("a", noop).Scenario(sc)

	err := reg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `scenario "nowhere" referenced but not registered`)
}

func TestRegistry_ValidateWalksChooseBranches(t *testing.T) {
	sc := builder.New("home").
		Choose(func(c *builder.Chooser) {
			c.Option(1, func(b *builder.Builder) { b.Visit("missing") })
		}).
		MustBuild()
	reg := screen.New().Scenario(sc)

	err := reg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing")
}

func TestRegistry_ValidateAllowsScenarioRefCycles(t *testing.T) {
	a := builder.New("a").Visit("x").ScenarioRef("b").MustBuild()
	b := builder.New("b").Visit("x").ScenarioRef("a").MustBuild()
	reg := screen.New().Screen("x", noop).Scenario(a).Scenario(b)

	assert.NoError(t, reg.Validate())
}

func TestRegistry_ValidateAccumulatesAllProblems(t *testing.T) {
	sc := builder.New("home").Visit("missing-one").ScenarioRef("missing-two").MustBuild()
	reg := screen.New().Scenario(sc)

	err := reg.Validate()
	require.Error(t, err)
	ve, ok := err.(*screen.ValidationError)
	require.True(t, ok)
	assert.Len(t, ve.Problems, 2)
}

func TestRegistry_LookupAndScenarioByName(t *testing.T) {
	sc := scenario.Scenario{Name: "home", Steps: nil}
	reg := screen.New().Screen("a", noop).Scenario(sc)

	fn, ok := reg.Lookup("a")
	assert.True(t, ok)
	assert.NotNil(t, fn)

	_, ok = reg.Lookup("missing")
	assert.False(t, ok)

	got, ok := reg.ScenarioByName("home")
	require.True(t, ok)
	assert.Equal(t, "home", got.Name)
}

func TestRegistry_ScenarioNamesSorted(t *testing.T) {
	reg := screen.New().
		Scenario(scenario.Scenario{Name: "zeta"}).
		Scenario(scenario.Scenario{Name: "alpha"})

	assert.Equal(t, []string{"alpha", "zeta"}, reg.ScenarioNames())
}

func TestRegistry_StartStopHooksDefaultToUnset(t *testing.T) {
	reg := screen.New()

	_, ok := reg.StartHook()
	assert.False(t, ok)
	_, ok = reg.StopHook()
	assert.False(t, ok)
}

func TestRegistry_StartStopHooksAreRegistered(t *testing.T) {
	reg := screen.New().OnStart(noop).OnStop(noop)

	fn, ok := reg.StartHook()
	require.True(t, ok)
	require.NotNil(t, fn)

	fn, ok = reg.StopHook()
	require.True(t, ok)
	require.NotNil(t, fn)
}
