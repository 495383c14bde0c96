package signals_test

import (
	"bytes"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/delaneyj/signalexpr/ecs"
	"github.com/delaneyj/signalexpr/signals"
	"github.com/stretchr/testify/require"
)

type transform struct {
	Position [3]float32 `yaml:"position"`
	Scale    float64    `yaml:"scale"`
	Visible  bool       `yaml:"visible"`
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type fixture struct {
	t     *testing.T
	world *ecs.World
	mgr   *signals.Manager
	logs  *syncBuffer
	now   atomic.Int64
}

func newFixture(t *testing.T, opts ...func(*signals.Config)) *fixture {
	t.Helper()
	f := &fixture{
		t:     t,
		world: ecs.NewWorld(),
		logs:  &syncBuffer{},
	}
	f.now.Store(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).UnixNano())
	ecs.RegisterComponent[transform](f.world, "transform")

	cfg := signals.DefaultConfig()
	cfg.Logger = slog.New(slog.NewTextHandler(f.logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	cfg.Clock = func() time.Time { return time.Unix(0, f.now.Load()).UTC() }
	for _, opt := range opts {
		opt(&cfg)
	}
	f.mgr = signals.NewManager(f.world, cfg)
	return f
}

func (f *fixture) advance(d time.Duration) {
	f.now.Add(int64(d))
}

// warnings counts logged records containing msg.
func (f *fixture) warnings(msg string) int {
	return strings.Count(f.logs.String(), msg)
}

func (f *fixture) ref(text string) *signals.Ref {
	f.t.Helper()
	r, err := f.mgr.ParseRef(text, ecs.Name{})
	require.NoError(f.t, err)
	return r
}

func (f *fixture) parse(text string) signals.Expression {
	f.t.Helper()
	e, err := f.mgr.Parse(text, ecs.Name{})
	require.NoError(f.t, err)
	return e
}

func (f *fixture) write() *ecs.Lock {
	return f.world.StartTransaction(ecs.Live, ecs.Write(ecs.Signals))
}

func (f *fixture) read() *ecs.Lock {
	return f.world.StartTransaction(ecs.Live, ecs.Read(ecs.Signals))
}

// entity creates name with a transform component.
func (f *fixture) entity(name string, tr transform) {
	f.t.Helper()
	id, err := f.world.NewEntity(ecs.Name{Entity: name})
	require.NoError(f.t, err)
	ct, ok := f.world.ComponentType("transform")
	require.True(f.t, ok)
	lock := f.world.StartTransaction(ecs.Live, ecs.Write(ct.Resource()))
	defer lock.Release()
	require.NoError(f.t, f.world.SetComponent(lock, id, ct, &tr))
}
