package signals_test

import (
	"runtime"
	"sync"
	"testing"

	"github.com/delaneyj/signalexpr/ecs"
	"github.com/delaneyj/signalexpr/signals"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInterningSharesNodes(t *testing.T) {
	f := newFixture(t)

	a := f.parse("n/a + 1")
	assert.Equal(t, 3, f.mgr.NodeCount())

	b := f.parse("n/a   +   1")
	c := f.parse("(n/a + 1)")
	assert.Same(t, a.Root(), b.Root())
	assert.Same(t, a.Root(), c.Root())
	assert.Equal(t, 3, f.mgr.NodeCount())

	d := f.parse("2 * (n/a + 1)")
	assert.Same(t, a.Root(), d.Root().Children()[1])
	assert.Equal(t, 5, f.mgr.NodeCount())

	n, ok := f.mgr.Pool().Lookup("(n/a + 1)")
	require.True(t, ok)
	assert.Same(t, a.Root(), n)
}

func TestConcurrentParseSharesRoot(t *testing.T) {
	f := newFixture(t)
	const text = "max(n/a, n/b) * (n/c + 1)"
	anchor := f.parse(text)

	const workers = 32
	roots := make([]*signals.Node, workers)
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if i%4 == 0 {
				f.mgr.DropUnused()
			}
			e, err := f.mgr.Parse(text, ecs.Name{})
			roots[i], errs[i] = e.Root(), err
			if i%4 == 2 {
				f.mgr.DropUnused()
			}
		}()
	}
	wg.Wait()

	for i := range workers {
		require.NoError(t, errs[i])
		assert.Same(t, anchor.Root(), roots[i])
	}
	runtime.KeepAlive(anchor)
}

func TestComponentSpellingsShareNode(t *testing.T) {
	f := newFixture(t)
	f.entity("lamp", transform{Position: [3]float32{1, 4, 9}})

	e := f.parse("lamp#transform.position.x")
	for _, text := range []string{"lamp#transform.Position.x", "lamp#Transform.position.0", "lamp#transform.POSITION.r"} {
		other := f.parse(text)
		assert.Same(t, e.Root(), other.Root(), text)
		assert.Equal(t, "lamp#transform.position.x", other.String())
	}
	assert.Equal(t, 1, f.mgr.NodeCount())
}

func TestInterningAddsOnlyNewCombinators(t *testing.T) {
	f := newFixture(t)
	lock := f.write()
	defer lock.Release()

	f.parse("player/device1_button")
	f.parse("hand/test-action1")
	base := f.mgr.NodeCount()
	assert.Equal(t, 2, base)

	first := f.ref("out/first")
	require.NoError(t, first.SetBindingText(lock, "hand/test-action1 + player/device1_button", ecs.Name{}))
	assert.Equal(t, base+1, f.mgr.NodeCount())

	second := f.ref("out/second")
	require.NoError(t, second.SetBindingText(lock, "player/device2_key > max(player/device1_button, hand/test-action1)", ecs.Name{}))
	// player/device2_key, max(...) and the comparison
	assert.Equal(t, base+4, f.mgr.NodeCount())

	require.NoError(t, second.SetBindingText(lock, "player/device2_key > max(player/device1_button, hand/test-action1)", ecs.Name{}))
	assert.Equal(t, base+4, f.mgr.NodeCount())
}

func TestDropUnused(t *testing.T) {
	f := newFixture(t)

	kept := f.parse("n/a + 2")
	bound := f.ref("n/bound")
	lock := f.write()
	require.NoError(t, bound.SetBindingText(lock, "n/c - 1", ecs.Name{}))
	lock.Release()

	func() {
		f.parse("n/b * 3")
	}()
	assert.Equal(t, 9, f.mgr.NodeCount())

	runtime.GC()
	assert.Equal(t, 3, f.mgr.DropUnused())
	assert.Equal(t, 0, f.mgr.DropUnused(), "second sweep has nothing to do")
	assert.Equal(t, 6, f.mgr.NodeCount())

	_, ok := f.mgr.Pool().Lookup("(n/b * 3)")
	assert.False(t, ok)
	n, ok := f.mgr.Pool().Lookup("(n/a + 2)")
	require.True(t, ok)
	assert.Same(t, kept.Root(), n)
	_, ok = f.mgr.Pool().Lookup("(n/c - 1)")
	assert.True(t, ok, "bindings keep their nodes")

	runtime.KeepAlive(kept)
	runtime.KeepAlive(bound)
}
