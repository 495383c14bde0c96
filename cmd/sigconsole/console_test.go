package main

import (
	"bytes"
	"io"
	"log/slog"
	"testing"

	"github.com/delaneyj/signalexpr/ecs"
	"github.com/delaneyj/signalexpr/signals"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const lobbyScene = "../../scene/testdata/lobby.yaml"

func newTestConsole(t *testing.T, mode ecs.Mode) (*console, *bytes.Buffer) {
	t.Helper()
	cfg := signals.DefaultConfig()
	cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))

	var out bytes.Buffer
	c, err := openConsole(lobbyScene, cfg, mode, &out)
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c, &out
}

func TestOpenConsoleErrors(t *testing.T) {
	_, err := openConsole("testdata/missing.yaml", signals.DefaultConfig(), ecs.Live, io.Discard)
	assert.Error(t, err)
}

func TestEval(t *testing.T) {
	c, out := newTestConsole(t, ecs.Live)

	v, err := c.eval("player/boost + 1")
	require.NoError(t, err)
	assert.Equal(t, 5.0, v)
	assert.Equal(t, "(lobby:player/boost + 1) = 5\n", out.String())

	_, err = c.eval("player/boost +")
	assert.Error(t, err)
}

func TestGet(t *testing.T) {
	c, out := newTestConsole(t, ecs.Live)

	require.NoError(t, c.get("player/speed", "lamp/brightness", "menu:pause/visible"))
	assert.Equal(t,
		"lobby:player/speed = 2\nlobby:lamp/brightness = 12\nmenu:pause/visible = 0\n",
		out.String(),
	)

	assert.Error(t, c.get("no signal here"))
}

func TestAssign(t *testing.T) {
	c, out := newTestConsole(t, ecs.Live)

	require.NoError(t, c.assign([]string{"player/speed=5"}))
	require.NoError(t, c.get("player/boost"))
	assert.Equal(t, "lobby:player/boost = 10\n", out.String())

	out.Reset()
	require.NoError(t, c.assign([]string{"player/speed = lamp/warm + 2"}))
	require.NoError(t, c.get("player/boost"))
	assert.Equal(t, "lobby:player/boost = 10\n", out.String(), "the value still overrides the new binding")

	assert.Error(t, c.assign([]string{"player/speed"}))
	assert.Error(t, c.assign([]string{"player/speed=1 +"}))
	assert.Error(t, c.assign([]string{"player/speed=NaN"}))
}

func TestStagingIsSeparate(t *testing.T) {
	c, out := newTestConsole(t, ecs.Staging)

	require.NoError(t, c.get("player/boost"))
	assert.Equal(t, "lobby:player/boost = 4\n", out.String())

	lock := c.mgr.World().StartTransaction(ecs.Live, ecs.Read(ecs.Signals))
	defer lock.Release()
	h, ok := c.mgr.Registry().Lookup(mustKey(t, c, "player/boost"))
	require.True(t, ok)
	_, ok = c.mgr.State(lock, h)
	assert.False(t, ok, "live table has no rows")
}

func mustKey(t *testing.T, c *console, text string) signals.SignalKey {
	t.Helper()
	key, err := signals.ParseSignalKey(c.mgr.World(), text, c.loaded.Scope)
	require.NoError(t, err)
	return key
}

func TestList(t *testing.T) {
	c, out := newTestConsole(t, ecs.Live)

	c.list("player")
	s := out.String()
	assert.Contains(t, s, "lobby:player/boost")
	assert.Contains(t, s, "(lobby:player/speed * 2)")
	assert.Contains(t, s, "lobby:player/sprinting")
	assert.NotContains(t, s, "lobby:lamp/warm")
	assert.NotContains(t, s, "menu:pause/visible")
}

func TestNodes(t *testing.T) {
	c, out := newTestConsole(t, ecs.Live)

	c.nodes()
	s := out.String()
	assert.Contains(t, s, "(lobby:player/speed * 2)")
	assert.Contains(t, s, "two_input")
	assert.Contains(t, s, "TOTAL")
}

func TestGraph(t *testing.T) {
	c, out := newTestConsole(t, ecs.Live)

	c.graph()
	s := out.String()
	assert.Contains(t, s, `digraph "lobby" {`)
	assert.Contains(t, s, `"lobby:player/speed" -> "lobby:player/boost";`)
	assert.Contains(t, s, `"lobby:player/boost" -> "lobby:lamp/brightness";`)
	assert.Contains(t, s, `"lobby:player/speed" [label="lobby:player/speed = 2"];`)
}

func TestSweep(t *testing.T) {
	c, out := newTestConsole(t, ecs.Live)

	retired, _ := c.sweep(0)
	assert.Zero(t, retired, "every scene signal has a row")

	require.NoError(t, c.get("player/ghost"))
	retired, _ = c.sweep(0)
	assert.Equal(t, 1, retired)
	assert.Contains(t, out.String(), "retired 1 signals")
}

func TestStats(t *testing.T) {
	c, out := newTestConsole(t, ecs.Live)

	require.NoError(t, c.stats())
	s := out.String()
	assert.Contains(t, s, "live: handles=7")
	assert.Contains(t, s, "signals_registry_handles")
	assert.Contains(t, s, "signals_node_pool_nodes")
}
