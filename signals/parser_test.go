package signals_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/delaneyj/signalexpr/ecs"
	"github.com/delaneyj/signalexpr/signals"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// parseFixture has n/a = 2, n/b = 3 and a lamp entity with a transform.
func parseFixture(t *testing.T) *fixture {
	f := newFixture(t)
	f.entity("lamp", transform{Position: [3]float32{1, 4, 9}, Scale: 0.5, Visible: true})

	lock := f.write()
	defer lock.Release()
	f.ref("n/a").SetValue(lock, 2)
	f.ref("n/b").SetValue(lock, 3)
	return f
}

func TestParseAndEvaluate(t *testing.T) {
	f := parseFixture(t)

	tcs := []struct {
		text      string
		canonical string
		want      float64
	}{
		{"", "0", 0},
		{"   ", "0", 0},
		{"42", "42", 42},
		{"1 + 2 * 3", "(1 + (2 * 3))", 7},
		{"(1 + 2) * 3", "((1 + 2) * 3)", 9},
		{"10 - 4 - 3", "((10 - 4) - 3)", 3},
		{"8 / 2 / 2", "((8 / 2) / 2)", 2},
		{"-3", "-3", -3},
		{"- 3", "-3", -3},
		{"!0", "1", 1},
		{"!!2", "1", 1},
		{"3 - -2", "(3 - -2)", 5},
		{"-n/a", "-n/a", -2},
		{"!n/a", "!n/a", 0},
		{"2 * -n/a", "(2 * -n/a)", -4},
		{"(n/a)", "n/a", 2},
		{"n/a == 2", "(n/a == 2)", 1},
		{"n/a != 2", "(n/a != 2)", 0},
		{"n/b >= 3 && n/a < 2", "((n/b >= 3) && (n/a < 2))", 0},
		{"n/b >= 3 || n/a < 2", "((n/b >= 3) || (n/a < 2))", 1},
		{"n/a <= 2 && n/b > 2.5", "((n/a <= 2) && (n/b > 2.5))", 1},
		{"n/a > 1 ? n/b : 0", "((n/a > 1) ? n/b : 0)", 3},
		{"0 ? 1 : 0 ? 2 : 3", "(0 ? 1 : (0 ? 2 : 3))", 3},
		{"1 ? 0 ? 4 : 5 : 6", "(1 ? (0 ? 4 : 5) : 6)", 5},
		{"1 + 1 ? 7 : 8", "((1 + 1) ? 7 : 8)", 7},
		{"max(n/a, n/b)", "max(n/a, n/b)", 3},
		{"min(n/a,n/b)", "min(n/a, n/b)", 2},
		{"abs(-5)", "abs(-5)", 5},
		{"floor(2.7) + ceil(2.2)", "(floor(2.7) + ceil(2.2))", 5},
		{"sin(0) + cos(0)", "(sin(0) + cos(0))", 1},
		{"tan(0)", "tan(0)", 0},
		{"lamp#transform.scale * 4", "(lamp#transform.scale * 4)", 2},
		{"lamp#transform.position.y", "lamp#transform.position.y", 4},
		{"lamp#transform.position.2", "lamp#transform.position.z", 9},
		{"lamp#transform.Position.z", "lamp#transform.position.z", 9},
		{"lamp#Transform.visible", "lamp#transform.visible", 1},
		{"ghost#transform.scale", "ghost#transform.scale", 0},
		{"is_focused(Game)", "is_focused(Game)", 1},
		{"is_focused(menu)", "is_focused(Menu)", 0},
		{"if_focused(Menu, 5)", "if_focused(Menu, 5)", 0},
		{"if_focused(game, n/a)", "if_focused(Game, n/a)", 2},
		{"n/missing + 1", "(n/missing + 1)", 1},
	}

	lock := f.world.StartTransaction(ecs.Live, ecs.Write(ecs.Signals), ecs.Read(ecs.Focus))
	defer lock.Release()

	for _, tc := range tcs {
		t.Run(tc.text, func(t *testing.T) {
			expr, err := f.mgr.Parse(tc.text, ecs.Name{})
			require.NoError(t, err)
			require.True(t, expr.Valid())
			assert.Equal(t, tc.canonical, expr.String())
			assert.InDelta(t, tc.want, expr.Evaluate(lock, 0), 1e-9)
		})
	}
}

func TestParseErrors(t *testing.T) {
	f := parseFixture(t)

	tcs := []struct {
		text string
		kind signals.ParseErrorKind
		is   error
	}{
		{"(1 + 2", signals.ErrMissingClose, nil},
		{"max(1)", signals.ErrMissingClose, nil},
		{"max(1, 2", signals.ErrMissingClose, nil},
		{"n/a ? 1", signals.ErrMissingClose, nil},
		{"1 +", signals.ErrUnexpectedEnd, nil},
		{"-", signals.ErrUnexpectedEnd, nil},
		{"* 2", signals.ErrUnexpectedOperator, nil},
		{"1 )", signals.ErrUnexpectedOperator, nil},
		{"()", signals.ErrUnexpectedOperator, nil},
		{"1, 2", signals.ErrUnexpectedOperator, nil},
		{"1 2", signals.ErrUnknownIdentifier, nil},
		{"foo", signals.ErrUnknownIdentifier, nil},
		{"NaN", signals.ErrUnknownIdentifier, nil},
		{"-Inf", signals.ErrUnknownIdentifier, nil},
		{"foo(1)", signals.ErrUnknownFunction, nil},
		{"n/", signals.ErrBadReference, signals.ErrInvalidSignal},
		{"a:b:c/x", signals.ErrBadReference, ecs.ErrInvalidName},
		{"lamp#transform.position", signals.ErrBadReference, ecs.ErrNotScalar},
		{"lamp#transform.position.xy", signals.ErrBadReference, ecs.ErrNotScalar},
		{"lamp#transform.colour", signals.ErrBadReference, ecs.ErrUnknownField},
		{"lamp#sound.volume", signals.ErrBadReference, ecs.ErrUnknownComponent},
		{"is_focused(Sideways)", signals.ErrBadReference, nil},
	}

	lock := f.read()
	defer lock.Release()

	for _, tc := range tcs {
		t.Run(tc.text, func(t *testing.T) {
			expr, err := f.mgr.Parse(tc.text, ecs.Name{})
			require.Error(t, err)
			assert.ErrorIs(t, err, signals.ErrParse)
			assert.True(t, signals.IsParseError(err, tc.kind), "got %v", err)
			if tc.is != nil {
				assert.ErrorIs(t, err, tc.is)
			}

			var pe *signals.ParseError
			require.True(t, errors.As(err, &pe))
			assert.Equal(t, tc.text, pe.Text)

			assert.False(t, expr.Valid())
			assert.Nil(t, expr.Root())
			assert.Equal(t, tc.text, expr.String())
			assert.Equal(t, 0.0, expr.Evaluate(lock, 0))
		})
	}
}

func TestParseErrorPosition(t *testing.T) {
	f := newFixture(t)
	_, err := f.mgr.Parse("1 + foo(2)", ecs.Name{})
	var pe *signals.ParseError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, signals.ErrUnknownFunction, pe.Kind)
	assert.Equal(t, "foo", pe.Token)
	assert.Equal(t, 4, pe.Pos)
	assert.Contains(t, err.Error(), "unknown function")
}

func TestTooManyNodes(t *testing.T) {
	f := newFixture(t, func(c *signals.Config) { c.MaxNodes = 8 })

	_, err := f.mgr.Parse("1 + 2 + 3", ecs.Name{})
	require.NoError(t, err)

	_, err = f.mgr.Parse("1 + 2 + 3 + 4 + 5", ecs.Name{})
	assert.True(t, signals.IsParseError(err, signals.ErrTooManyNodes))

	long := strings.Repeat("1 + ", 300) + "1"
	_, err = newFixture(t).mgr.Parse(long, ecs.Name{})
	assert.True(t, signals.IsParseError(err, signals.ErrTooManyNodes))
}

func TestMustParse(t *testing.T) {
	f := newFixture(t)
	assert.NotPanics(t, func() { f.mgr.MustParse("1 + 1", ecs.Name{}) })
	assert.Panics(t, func() { f.mgr.MustParse("1 +", ecs.Name{}) })
}
