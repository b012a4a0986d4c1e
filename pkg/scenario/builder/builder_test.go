package builder_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jihwankim/loadsmith/pkg/scenario"
	"github.com/jihwankim/loadsmith/pkg/scenario/builder"
)

func TestBuilder_LinearSteps(t *testing.T) {
	sc, err := builder.New("login").
		Visit("home").
		Think(100*time.Millisecond, 200*time.Millisecond).
		Visit("dashboard").
		Build()
	require.NoError(t, err)

	assert.Equal(t, "login", sc.Name)
	require.Len(t, sc.Steps, 3)
	assert.Equal(t, scenario.Visit{Screen: "home"}, sc.Steps[0])
	assert.Equal(t, scenario.Think{Min: 100 * time.Millisecond, Max: 200 * time.Millisecond}, sc.Steps[1])
	assert.Equal(t, scenario.Visit{Screen: "dashboard"}, sc.Steps[2])
}

func TestBuilder_ThinkSingleArgIsFixed(t *testing.T) {
	sc := builder.New("s").Think(500 * time.Millisecond).MustBuild()
	require.Len(t, sc.Steps, 1)
	th := sc.Steps[0].(scenario.Think)
	assert.Equal(t, 500*time.Millisecond, th.Min)
	assert.Equal(t, 500*time.Millisecond, th.Max)
}

func TestBuilder_ThinkRejectsMaxLessThanMin(t *testing.T) {
	_, err := builder.New("s").Think(2*time.Second, 1*time.Second).Build()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "less than min")
}

func TestBuilder_ThinkRejectsWrongArgCount(t *testing.T) {
	_, err := builder.New("s").Think().Build()
	require.Error(t, err)

	_, err = builder.New("s").Think(1, 2, 3).Build()
	require.Error(t, err)
}

func TestBuilder_VisitRejectsEmptyName(t *testing.T) {
	_, err := builder.New("s").Visit("").Build()
	require.Error(t, err)
}

func TestBuilder_ScenarioRef(t *testing.T) {
	sc := builder.New("outer").ScenarioRef("inner").MustBuild()
	require.Len(t, sc.Steps, 1)
	assert.Equal(t, scenario.ScenarioRef{Name: "inner"}, sc.Steps[0])
}

func TestBuilder_Choose(t *testing.T) {
	sc, err := builder.New("browse").
		Choose(func(c *builder.Chooser) {
			c.Option(70, func(b *builder.Builder) { b.Visit("browse") })
			c.Option(30, func(b *builder.Builder) { b.Visit("checkout") })
		}).
		Build()
	require.NoError(t, err)
	require.Len(t, sc.Steps, 1)

	ch := sc.Steps[0].(scenario.Choose)
	require.Len(t, ch.Options, 2)
	assert.Equal(t, 70, ch.Options[0].Weight)
	assert.Equal(t, 30, ch.Options[1].Weight)
	assert.Equal(t, 100, ch.TotalWeight())
	assert.Equal(t, scenario.Visit{Screen: "browse"}, ch.Options[0].Steps[0])
	assert.Equal(t, scenario.Visit{Screen: "checkout"}, ch.Options[1].Steps[0])
}

func TestBuilder_ChooseRejectsNoOptions(t *testing.T) {
	_, err := builder.New("s").Choose(func(c *builder.Chooser) {}).Build()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least one Option")
}

func TestBuilder_ChooseRejectsNonPositiveWeight(t *testing.T) {
	_, err := builder.New("s").
		Choose(func(c *builder.Chooser) {
			c.Option(0, func(b *builder.Builder) { b.Visit("x") })
		}).
		Build()
	require.Error(t, err)
}

func TestBuilder_FirstErrorWins(t *testing.T) {
	_, err := builder.New("s").
		Visit("").
		Visit("also-bad-but-ignored").
		Think(2*time.Second, 1*time.Second).
		Build()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Visit requires a non-empty screen name")
}

func TestBuilder_MustBuildPanicsOnError(t *testing.T) {
	assert.Panics(t, func() {
		builder.New("s").Visit("").MustBuild()
	})
}

func TestBuilder_BuildFreezesSteps(t *testing.T) {
	b := builder.New("s").Visit("a")
	sc, err := b.Build()
	require.NoError(t, err)

	b.Visit("b")
	assert.Len(t, sc.Steps, 1, "mutating the builder after Build must not affect the frozen scenario")
}
