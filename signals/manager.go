package signals

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/delaneyj/signalexpr/ecs"
)

// Manager owns the signal registry, the node pool and the live and staging
// signal tables of one World.
type Manager struct {
	cfg      Config
	log      *slog.Logger
	world    *ecs.World
	registry *Registry
	pool     *NodePool
	tables   [2]*Table
	metrics  *metrics
}

func NewManager(world *ecs.World, cfg Config) *Manager {
	if world == nil {
		panic("signals: nil world")
	}
	cfg = cfg.withDefaults()
	m := &Manager{
		cfg:   cfg,
		log:   cfg.Logger,
		world: world,
		pool:  newNodePool(cfg.Shards),
		tables: [2]*Table{
			ecs.Live:    newTable(ecs.Live),
			ecs.Staging: newTable(ecs.Staging),
		},
	}
	m.registry = newRegistry(m, cfg.Shards)
	m.metrics = newMetrics(cfg.Metrics, m)
	return m
}

func (m *Manager) World() *ecs.World {
	return m.world
}

func (m *Manager) Config() Config {
	return m.cfg
}

func (m *Manager) Registry() *Registry {
	return m.registry
}

func (m *Manager) Pool() *NodePool {
	return m.pool
}

func (m *Manager) warn(reason, msg string, args ...any) {
	m.metrics.warnings.WithLabelValues(reason).Inc()
	m.log.Warn(msg, append(args, "reason", reason)...)
}

// Ref returns a reference to the signal name on entity.
func (m *Manager) Ref(entity ecs.EntityRef, name string) (*Ref, error) {
	key, err := NewSignalKey(entity, name)
	if err != nil {
		return nil, err
	}
	return newRef(m.registry.acquire(key)), nil
}

// RefName is Ref for an entity given by name.
func (m *Manager) RefName(entity ecs.Name, name string) (*Ref, error) {
	return m.Ref(m.world.Ref(entity), name)
}

// ParseRef returns a reference to the signal written "entity/signal",
// resolved against scope.
func (m *Manager) ParseRef(text string, scope ecs.Name) (*Ref, error) {
	key, err := ParseSignalKey(m.world, text, scope)
	if err != nil {
		return nil, err
	}
	return newRef(m.registry.acquire(key)), nil
}

// Parse parses text against scope. On failure the returned Expression keeps
// the text and scope but has no root.
func (m *Manager) Parse(text string, scope ecs.Name) (Expression, error) {
	e := Expression{Text: text, Scope: scope, mgr: m}
	p := &parser{mgr: m, text: text, scope: scope}
	root, err := p.parse()
	if err != nil {
		m.metrics.parseErrors.Inc()
		m.log.Debug("expression parse failed", "expr", text, "scope", scope.String(), "error", err)
		return e, err
	}
	e.root = &exprRoot{node: root, relative: p.relative}
	m.pool.track(e.root)
	return e, nil
}

// MustParse is Parse for expressions known to be valid.
func (m *Manager) MustParse(text string, scope ecs.Name) Expression {
	e, err := m.Parse(text, scope)
	if err != nil {
		panic(err)
	}
	return e
}

// Tick retires handles idle for at least maxAge. It returns the number
// retired.
func (m *Manager) Tick(maxAge time.Duration) int {
	return m.registry.Tick(maxAge)
}

// DropUnused removes pooled nodes no live expression uses.
func (m *Manager) DropUnused() int {
	dropped := m.pool.DropUnused()
	if dropped > 0 {
		m.log.Debug("dropped unused nodes", "count", dropped, "remaining", m.pool.Len())
	}
	return dropped
}

// Sweep runs Tick and DropUnused every interval until ctx is done.
func (m *Manager) Sweep(ctx context.Context, interval, maxAge time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		case <-ticker.C:
			m.Tick(maxAge)
			m.DropUnused()
		}
	}
}

func (m *Manager) NodeCount() int {
	return m.pool.Len()
}

func (m *Manager) SignalCount() int {
	return m.registry.Len()
}

func (m *Manager) FindAll(entity ecs.EntityRef) []*Handle {
	return m.registry.FindAll(entity)
}

func (m *Manager) FindMatching(substr string) []*Handle {
	return m.registry.FindMatching(substr)
}

// Dependencies returns the signals the binding of h is subscribed to.
func (m *Manager) Dependencies(lock *ecs.Lock, h *Handle) []*Handle {
	return m.dependencyHandles(lock, h)
}

// Subscribers returns the signals whose bindings read h.
func (m *Manager) Subscribers(lock *ecs.Lock, h *Handle) []*Handle {
	return m.subscriberHandles(lock, h)
}

// Signal returns the effective value of h, evaluating its binding if needed.
func (m *Manager) Signal(lock *ecs.Lock, h *Handle) float64 {
	return m.getSignal(newEvalContext(m, lock, h.String()), h, 0)
}

// State is a snapshot of one signal row.
type State struct {
	Handle     *Handle
	HasValue   bool
	Value      float64
	Binding    *Expression
	LastValue  float64
	Dirty      bool
	Subscribed int
}

func (m *Manager) State(lock *ecs.Lock, h *Handle) (State, bool) {
	s := m.peek(lock, h)
	if s == nil {
		return State{Handle: h}, false
	}
	st := State{
		Handle:     h,
		HasValue:   s.hasValue(),
		Binding:    s.binding,
		LastValue:  s.lastValue,
		Dirty:      s.lastValueDirty,
		Subscribed: len(m.subscriberHandles(lock, h)),
	}
	if st.HasValue {
		st.Value = s.value
	}
	return st, true
}

type Stats struct {
	Mode    ecs.Mode
	Handles int
	Nodes   int
	Rows    int
}

func (s Stats) String() string {
	return fmt.Sprintf("%s: handles=%d nodes=%d rows=%d", s.Mode, s.Handles, s.Nodes, s.Rows)
}

// Stats reports the registry and pool sizes and the rows in use in the
// table lock reads.
func (m *Manager) Stats(lock *ecs.Lock) Stats {
	m.checkLock(lock, ecs.AccessRead)
	return Stats{
		Mode:    lock.Mode(),
		Handles: m.registry.Len(),
		Nodes:   m.pool.Len(),
		Rows:    m.table(lock).Len(),
	}
}
