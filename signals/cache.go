package signals

import (
	"fmt"
	"math"
	"slices"
	"weak"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/delaneyj/signalexpr/ecs"
)

func (m *Manager) checkLock(lock *ecs.Lock, access ecs.Access) {
	if lock == nil {
		panic("nil transaction")
	}
	if lock.World() != m.world {
		panic("transaction belongs to a different world")
	}
	if !lock.Has(ecs.Signals, access) {
		if access == ecs.AccessWrite {
			panic("lock does not permit writing signals")
		}
		panic("lock does not permit reading signals")
	}
}

func (m *Manager) table(lock *ecs.Lock) *Table {
	return m.tables[lock.Mode()]
}

// peek returns the row for h without creating one.
func (m *Manager) peek(lock *ecs.Lock, h *Handle) *slot {
	m.checkLock(lock, ecs.AccessRead)
	idx := h.Index(lock.Mode())
	if idx < 0 {
		return nil
	}
	return m.table(lock).at(idx)
}

// row returns the index of the row for h, allocating it if needed.
func (m *Manager) row(lock *ecs.Lock, h *Handle) int {
	m.checkLock(lock, ecs.AccessWrite)
	if h.Retired() {
		panic(fmt.Sprintf("signal %s used after it was retired", h))
	}
	if idx := h.Index(lock.Mode()); idx >= 0 {
		return idx
	}
	return m.table(lock).alloc(h)
}

func (m *Manager) setValue(lock *ecs.Lock, h *Handle, v float64) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		panic(fmt.Sprintf("signal %s set to non-finite value %v", h, v))
	}
	idx := m.row(lock, h)
	t := m.table(lock)
	s := t.at(idx)
	if s.lastValue != v || s.lastValueDirty {
		m.newPropagation(t).subscribers(s, 1)
	}
	s.value = v
	s.lastValue = v
	s.lastValueDirty = false
}

func (m *Manager) clearValue(lock *ecs.Lock, h *Handle) {
	m.checkLock(lock, ecs.AccessWrite)
	idx := h.Index(lock.Mode())
	if idx < 0 {
		return
	}
	t := m.table(lock)
	s := t.at(idx)
	s.value = unset
	switch {
	case s.binding != nil:
		m.newPropagation(t).mark(idx, 0)
	case s.lastValue != 0 || s.lastValueDirty:
		s.lastValue = 0
		s.lastValueDirty = false
		m.newPropagation(t).subscribers(s, 1)
	}
	m.maybeFree(t, idx)
}

func (m *Manager) setBinding(lock *ecs.Lock, h *Handle, expr Expression) {
	if expr.mgr != nil && expr.mgr != m {
		panic("expression belongs to a different manager")
	}
	// An expression parsed before a Tick may hold retired handles; resolve
	// it again so the binding follows the live ones.
	deps := expr.Dependencies()
	if expr.mgr != nil && slices.ContainsFunc(deps, (*Handle).Retired) {
		if fresh, err := m.Parse(expr.Text, expr.Scope); err == nil {
			expr = fresh
			deps = expr.Dependencies()
		}
	}

	idx := m.row(lock, h)
	t := m.table(lock)
	m.unsubscribe(t, idx)

	weakDeps := make([]weak.Pointer[Handle], 0, len(deps))
	for _, dep := range deps {
		if dep.Retired() {
			continue
		}
		m.addSubscriber(lock, dep, h)
		weakDeps = append(weakDeps, weak.Make(dep))
	}

	// addSubscriber may have grown the table
	s := t.at(idx)
	s.dependencies = weakDeps
	s.binding = &expr
	m.newPropagation(t).mark(idx, 0)
}

func (m *Manager) clearBinding(lock *ecs.Lock, h *Handle) {
	m.checkLock(lock, ecs.AccessWrite)
	idx := h.Index(lock.Mode())
	if idx < 0 {
		return
	}
	t := m.table(lock)
	if t.at(idx).binding == nil {
		return
	}
	m.unsubscribe(t, idx)
	t.at(idx).binding = nil
	m.newPropagation(t).mark(idx, 0)
	m.maybeFree(t, idx)
}

// addSubscriber records sub as a dependent of h. Repeated calls do not add
// duplicate entries.
func (m *Manager) addSubscriber(lock *ecs.Lock, h, sub *Handle) {
	t := m.table(lock)
	s := t.at(m.row(lock, h))
	for _, live := range s.liveSubscribers() {
		if live == sub {
			return
		}
	}
	s.subscribers = append(s.subscribers, weak.Make(sub))
}

func (m *Manager) removeSubscriber(t *Table, h, sub *Handle) {
	idx := h.Index(t.mode)
	if idx < 0 {
		return
	}
	t.at(idx).dropSubscriber(sub)
	m.maybeFree(t, idx)
}

// unsubscribe removes the row at idx from the subscriber lists of everything
// its binding depends on.
func (m *Manager) unsubscribe(t *Table, idx int) {
	s := t.at(idx)
	deps := s.dependencies
	s.dependencies = nil
	h := s.handle
	for _, wp := range deps {
		switch dep := wp.Value(); dep {
		case nil:
		case h:
			s.dropSubscriber(h)
		default:
			m.removeSubscriber(t, dep, h)
		}
	}
}

func (m *Manager) maybeFree(t *Table, idx int) {
	if t.at(idx).empty() {
		t.release(idx)
	}
}

func (m *Manager) slotEmpty(lock *ecs.Lock, h *Handle) bool {
	m.checkLock(lock, ecs.AccessWrite)
	idx := h.Index(lock.Mode())
	if idx < 0 {
		return true
	}
	return m.table(lock).at(idx).empty()
}

func (m *Manager) freeRow(lock *ecs.Lock, h *Handle) {
	m.checkLock(lock, ecs.AccessWrite)
	if idx := h.Index(lock.Mode()); idx >= 0 {
		m.table(lock).release(idx)
	}
}

type propagation struct {
	mgr      *Manager
	table    *Table
	reported bool
}

func (m *Manager) newPropagation(t *Table) *propagation {
	return &propagation{mgr: m, table: t}
}

func (p *propagation) mark(idx int, depth int) {
	s := p.table.at(idx)
	s.lastValueDirty = true
	p.subscribers(s, depth+1)
}

// subscribers marks every live dependent of s dirty, depth first.
func (p *propagation) subscribers(s *slot, depth int) {
	subs := s.liveSubscribers()
	if len(subs) == 0 {
		return
	}
	if depth > p.mgr.cfg.MaxDepth {
		if !p.reported {
			p.reported = true
			p.mgr.warn(reasonPropagationDepth, "dirty propagation depth exceeded",
				"signal", s.handle.String(),
				"depth", depth,
			)
		}
		return
	}
	for _, sub := range subs {
		idx := sub.Index(p.table.mode)
		if idx < 0 || p.table.at(idx).lastValueDirty {
			continue
		}
		p.mark(idx, depth)
	}
}

// getSignal returns the effective value of h. A dirty result is recomputed
// and cached when the lock permits writing signals and nothing it read is
// uncacheable; otherwise it is evaluated without being stored. Bindings that
// read the event payload are only evaluated during an event.
func (m *Manager) getSignal(ec *evalContext, h *Handle, depth int) float64 {
	lock := ec.lock
	m.checkLock(lock, ecs.AccessRead)
	idx := h.Index(lock.Mode())
	if idx < 0 {
		return 0
	}
	t := m.table(lock)
	s := t.at(idx)
	if !s.hasValue() && s.binding == nil {
		return 0
	}

	// A binding that reads the event payload keeps the last value it had
	// during an event; outside of one there is nothing to evaluate it with.
	eventBound := !s.hasValue() && s.binding.readsEvent()
	if (eventBound && !ec.hasEvent) || (!eventBound && !s.lastValueDirty) {
		m.metrics.cacheHits.Inc()
		return s.lastValue
	}

	canCache := lock.Has(ecs.Signals, ecs.AccessWrite)
	if s.hasValue() {
		v := s.value
		if canCache {
			s.lastValue = v
			s.lastValueDirty = false
		}
		return v
	}

	binding := s.binding
	outer := ec.uncacheable
	ec.uncacheable = false
	v := binding.eval(ec, depth)
	uncacheable := ec.uncacheable
	ec.uncacheable = outer || uncacheable

	if canCache && (eventBound || !uncacheable) {
		s = t.at(idx)
		if eventBound && s.lastValue != v {
			m.newPropagation(t).subscribers(s, 1)
		}
		s.lastValue = v
		s.lastValueDirty = false
		m.metrics.cacheMisses.Inc()
	} else {
		m.metrics.uncached.Inc()
	}
	return v
}

// dependencyHandles returns the signals the binding of h is subscribed to.
func (m *Manager) dependencyHandles(lock *ecs.Lock, h *Handle) []*Handle {
	s := m.peek(lock, h)
	if s == nil {
		return nil
	}
	seen := mapset.NewThreadUnsafeSet[*Handle]()
	var deps []*Handle
	for _, wp := range s.dependencies {
		if dep := wp.Value(); dep != nil && !dep.Retired() && seen.Add(dep) {
			deps = append(deps, dep)
		}
	}
	return deps
}

func (m *Manager) subscriberHandles(lock *ecs.Lock, h *Handle) []*Handle {
	m.checkLock(lock, ecs.AccessRead)
	idx := h.Index(lock.Mode())
	if idx < 0 {
		return nil
	}
	s := m.table(lock).at(idx)
	var subs []*Handle
	for _, wp := range s.subscribers {
		if sub := wp.Value(); sub != nil && !sub.Retired() {
			subs = append(subs, sub)
		}
	}
	return subs
}
