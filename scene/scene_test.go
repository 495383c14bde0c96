package scene_test

import (
	"testing"

	"github.com/delaneyj/signalexpr/ecs"
	"github.com/delaneyj/signalexpr/scene"
	"github.com/delaneyj/signalexpr/signals"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func load(t *testing.T) (*signals.Manager, *scene.Loaded) {
	t.Helper()
	f, err := scene.LoadFile("testdata/lobby.yaml")
	require.NoError(t, err)

	mgr := signals.NewManager(ecs.NewWorld(), signals.DefaultConfig())
	loaded, err := f.Apply(mgr, ecs.Live)
	require.NoError(t, err)
	t.Cleanup(loaded.Close)
	return mgr, loaded
}

func TestLoadScene(t *testing.T) {
	mgr, loaded := load(t)
	w := mgr.World()

	assert.Equal(t, ecs.Name{Scene: "lobby"}, loaded.Scope)
	assert.Equal(t, []ecs.Name{
		{Scene: "lobby", Entity: "player"},
		{Scene: "lobby", Entity: "lamp"},
		{Scene: "menu", Entity: "pause"},
	}, loaded.Entities)
	assert.Len(t, loaded.Refs, 7)

	lock := w.StartTransaction(ecs.Live, ecs.Write(ecs.Signals), ecs.Read(ecs.Focus))
	defer lock.Release()

	get := func(text string) float64 {
		ref, err := mgr.ParseRef(text, loaded.Scope)
		require.NoError(t, err)
		defer ref.Close()
		return ref.GetSignal(lock)
	}

	assert.Equal(t, 2.0, get("player/speed"))
	assert.Equal(t, 1.0, get("player/sprinting"))
	assert.Equal(t, 4.0, get("player/boost"))
	assert.Equal(t, 1.0, get("player/moving"))
	assert.Equal(t, 12.0, get("lamp/brightness"))
	assert.Equal(t, 1.0, get("lamp/warm"))
	assert.Equal(t, 0.0, get("menu:pause/visible"))
	assert.True(t, w.HasPrimaryFocus(lock, ecs.FocusGame))

	ref, err := mgr.ParseRef("player/boost", loaded.Scope)
	require.NoError(t, err)
	defer ref.Close()
	expr, ok := ref.GetBinding(lock)
	require.True(t, ok)
	assert.Equal(t, "(lobby:player/speed * 2)", expr.String())
}

func TestLoadedComponents(t *testing.T) {
	mgr, _ := load(t)
	w := mgr.World()

	ct, ok := w.ComponentType("light")
	require.True(t, ok)
	id, ok := w.Ref(ecs.Name{Scene: "lobby", Entity: "lamp"}).Get(nil)
	require.True(t, ok)

	lock := w.StartTransaction(ecs.Live, ecs.Read(ct.Resource()))
	defer lock.Release()
	v, ok := w.Component(lock, ct, id)
	require.True(t, ok)
	light, ok := v.(*scene.Light)
	require.True(t, ok)
	assert.Equal(t, scene.Light{Intensity: 3, Color: [3]float32{1, 0.5, 0.25}, On: true}, *light)
}

func TestParseErrors(t *testing.T) {
	tcs := map[string]string{
		"unknown field":    "scene: a\nentitys: []\n",
		"bad name":         "scene: a\nentities:\n  - name: \"a b\"\n",
		"duplicate entity": "scene: a\nentities:\n  - name: x\n  - name: a:x\n",
		"bad focus":        "scene: a\nfocus: Sideways\n",
	}
	for name, data := range tcs {
		t.Run(name, func(t *testing.T) {
			_, err := scene.Parse([]byte(data))
			assert.Error(t, err)
		})
	}
}

func TestApplyErrors(t *testing.T) {
	tcs := map[string]struct {
		data string
		is   error
	}{
		"unknown component": {"scene: a\nentities:\n  - name: x\n    components:\n      sound: {volume: 1}\n", ecs.ErrUnknownComponent},
		"bad binding":       {"scene: a\nentities:\n  - name: x\n    signals:\n      y: \"1 +\"\n", signals.ErrParse},
		"infinite value":    {"scene: a\nentities:\n  - name: x\n    signals:\n      y: .inf\n", nil},
		"list signal":       {"scene: a\nentities:\n  - name: x\n    signals:\n      y: [1, 2]\n", nil},
	}
	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			f, err := scene.Parse([]byte(tc.data))
			require.NoError(t, err)
			_, err = f.Apply(signals.NewManager(ecs.NewWorld(), signals.Config{}), ecs.Live)
			require.Error(t, err)
			if tc.is != nil {
				assert.ErrorIs(t, err, tc.is)
			}
		})
	}
}
