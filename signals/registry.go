package signals

import (
	"cmp"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/delaneyj/signalexpr/ecs"
)

type registryShard struct {
	mu      sync.RWMutex
	handles map[SignalKey]*Handle
}

// Registry interns signal handles: there is at most one Handle per key for
// as long as the handle is registered.
type Registry struct {
	mgr    *Manager
	shards []registryShard
}

func newRegistry(mgr *Manager, shards int) *Registry {
	r := &Registry{
		mgr:    mgr,
		shards: make([]registryShard, shards),
	}
	for i := range r.shards {
		r.shards[i].handles = map[SignalKey]*Handle{}
	}
	return r
}

func (r *Registry) shard(key SignalKey) *registryShard {
	return &r.shards[xxhash.Sum64String(key.String())%uint64(len(r.shards))]
}

// Lookup returns the registered handle for key without creating one.
func (r *Registry) Lookup(key SignalKey) (*Handle, bool) {
	s := r.shard(key)
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.handles[key]
	return h, ok
}

// GetOrCreate returns the handle for key, creating it on first use.
func (r *Registry) GetOrCreate(key SignalKey) *Handle {
	if h, ok := r.Lookup(key); ok {
		return h
	}

	s := r.shard(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	if h, ok := s.handles[key]; ok {
		return h
	}
	h := newHandle(r.mgr, key, r.mgr.cfg.Clock())
	s.handles[key] = h
	return h
}

// acquire is GetOrCreate that also takes a reference under the shard lock,
// so Tick cannot retire the handle in between.
func (r *Registry) acquire(key SignalKey) *Handle {
	s := r.shard(key)
	s.mu.RLock()
	if h, ok := s.handles[key]; ok {
		h.acquire()
		s.mu.RUnlock()
		return h
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.handles[key]
	if !ok {
		h = newHandle(r.mgr, key, r.mgr.cfg.Clock())
		s.handles[key] = h
	}
	h.acquire()
	return h
}

func (r *Registry) Len() int {
	n := 0
	for i := range r.shards {
		s := &r.shards[i]
		s.mu.RLock()
		n += len(s.handles)
		s.mu.RUnlock()
	}
	return n
}

func (r *Registry) collect(match func(*Handle) bool) []*Handle {
	var found []*Handle
	for i := range r.shards {
		s := &r.shards[i]
		s.mu.RLock()
		for _, h := range s.handles {
			if match(h) {
				found = append(found, h)
			}
		}
		s.mu.RUnlock()
	}
	slices.SortFunc(found, func(a, b *Handle) int {
		return cmp.Compare(a.String(), b.String())
	})
	return found
}

// FindAll returns every registered handle belonging to entity.
func (r *Registry) FindAll(entity ecs.EntityRef) []*Handle {
	return r.collect(func(h *Handle) bool {
		return h.key.Entity == entity
	})
}

// FindMatching returns every registered handle whose "entity/signal" text
// contains substr.
func (r *Registry) FindMatching(substr string) []*Handle {
	return r.collect(func(h *Handle) bool {
		return strings.Contains(h.String(), substr)
	})
}

// Tick retires handles that have had no open Refs for at least maxAge and
// whose rows are empty in both tables. It takes write transactions on the
// live and staging signals, so the caller must not hold either. It returns
// the number of handles retired.
func (r *Registry) Tick(maxAge time.Duration) int {
	cutoff := r.mgr.cfg.Clock().Add(-maxAge).UnixNano()
	candidates := r.collect(func(h *Handle) bool {
		return h.refs.Load() == 0 && h.idleSince.Load() <= cutoff
	})
	if len(candidates) == 0 {
		return 0
	}

	w := r.mgr.world
	live := w.StartTransaction(ecs.Live, ecs.Write(ecs.Signals))
	defer live.Release()
	staging := w.StartTransaction(ecs.Staging, ecs.Write(ecs.Signals))
	defer staging.Release()

	retired := 0
	for _, h := range candidates {
		if !r.mgr.slotEmpty(live, h) || !r.mgr.slotEmpty(staging, h) {
			continue
		}

		s := r.shard(h.key)
		s.mu.Lock()
		if s.handles[h.key] == h && h.refs.Load() == 0 {
			delete(s.handles, h.key)
			r.mgr.freeRow(live, h)
			r.mgr.freeRow(staging, h)
			h.retired.Store(true)
			retired++
		}
		s.mu.Unlock()
	}

	if retired > 0 {
		r.mgr.log.Debug("retired signal handles", "count", retired, "remaining", r.Len())
	}
	return retired
}
