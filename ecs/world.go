package ecs

import (
	"cmp"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
)

type EntityID uint64

func (id EntityID) Valid() bool {
	return id != 0
}

type entityRef struct {
	name Name
	id   atomic.Uint64
}

// EntityRef is a stable, comparable reference to a named entity. It stays
// valid while the entity it names is created, destroyed and recreated.
type EntityRef struct {
	ref *entityRef
}

func (r EntityRef) Valid() bool {
	return r.ref != nil
}

func (r EntityRef) Name() Name {
	if r.ref == nil {
		return Name{}
	}
	return r.ref.name
}

func (r EntityRef) String() string {
	return r.Name().String()
}

// Get returns the entity currently bound to the name, if any.
func (r EntityRef) Get(lock *Lock) (EntityID, bool) {
	if r.ref == nil {
		return 0, false
	}
	id := EntityID(r.ref.id.Load())
	return id, id.Valid()
}

// World is the entity store the signal engine runs against: named entities,
// registered component types, the focus state and the per-resource locks that
// transactions acquire.
type World struct {
	mu         sync.RWMutex
	nextID     EntityID
	entities   map[EntityID]Name
	refs       map[Name]*entityRef
	components map[string]*ComponentType

	locksMu sync.Mutex
	locks   map[resourceKey]*sync.RWMutex

	focus FocusLayer
}

type resourceKey struct {
	resource Resource
	mode     Mode
}

func NewWorld() *World {
	return &World{
		entities:   map[EntityID]Name{},
		refs:       map[Name]*entityRef{},
		components: map[string]*ComponentType{},
		locks:      map[resourceKey]*sync.RWMutex{},
		focus:      FocusGame,
	}
}

// mutex returns the lock guarding r. Only the signal table keeps separate
// live and staging copies; every other resource is shared by both modes.
func (w *World) mutex(r Resource, mode Mode) *sync.RWMutex {
	if r != Signals {
		mode = Live
	}
	key := resourceKey{resource: r, mode: mode}

	w.locksMu.Lock()
	defer w.locksMu.Unlock()
	mu, ok := w.locks[key]
	if !ok {
		mu = &sync.RWMutex{}
		w.locks[key] = mu
	}
	return mu
}

// Ref returns the interned reference for name.
func (w *World) Ref(name Name) EntityRef {
	w.mu.RLock()
	ref, ok := w.refs[name]
	w.mu.RUnlock()
	if ok {
		return EntityRef{ref: ref}
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if ref, ok = w.refs[name]; !ok {
		ref = &entityRef{name: name}
		w.refs[name] = ref
	}
	return EntityRef{ref: ref}
}

// NewEntity creates an entity called name. Creating a name that already
// exists returns an error.
func (w *World) NewEntity(name Name) (EntityID, error) {
	ref := w.Ref(name)

	w.mu.Lock()
	defer w.mu.Unlock()
	if ref.ref.id.Load() != 0 {
		return 0, fmt.Errorf("entity %s already exists", name)
	}
	w.nextID++
	id := w.nextID
	w.entities[id] = name
	ref.ref.id.Store(uint64(id))
	return id, nil
}

// DestroyEntity removes the entity and every component it owns. lock must
// hold write access on all component resources; without it DestroyEntity
// panics and the entity is left intact.
func (w *World) DestroyEntity(lock *Lock, id EntityID) {
	w.mu.RLock()
	cts := make([]*ComponentType, 0, len(w.components))
	for _, ct := range w.components {
		cts = append(cts, ct)
	}
	w.mu.RUnlock()

	for _, ct := range cts {
		if !lock.Has(ct.Resource(), AccessWrite) {
			panic(fmt.Sprintf("lock does not permit writing component %s", ct.name))
		}
	}

	w.mu.Lock()
	if name, ok := w.entities[id]; ok {
		delete(w.entities, id)
		w.refs[name].id.Store(0)
	}
	w.mu.Unlock()

	for _, ct := range cts {
		delete(ct.values, id)
	}
}

func (w *World) Exists(id EntityID) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	_, ok := w.entities[id]
	return ok
}

func (w *World) EntityName(id EntityID) (Name, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	name, ok := w.entities[id]
	return name, ok
}

// Entities returns the names of all live entities, sorted.
func (w *World) Entities() []Name {
	w.mu.RLock()
	names := make([]Name, 0, len(w.entities))
	for _, name := range w.entities {
		names = append(names, name)
	}
	w.mu.RUnlock()

	slices.SortFunc(names, func(a, b Name) int {
		if c := cmp.Compare(a.Scene, b.Scene); c != 0 {
			return c
		}
		return cmp.Compare(a.Entity, b.Entity)
	})
	return names
}

func (w *World) PrimaryFocus(lock *Lock) FocusLayer {
	if !lock.Has(Focus, AccessRead) {
		panic("lock does not permit reading focus")
	}
	return w.focus
}

func (w *World) HasPrimaryFocus(lock *Lock, layer FocusLayer) bool {
	return w.PrimaryFocus(lock) == layer
}

func (w *World) SetPrimaryFocus(lock *Lock, layer FocusLayer) {
	if !lock.Has(Focus, AccessWrite) {
		panic("lock does not permit writing focus")
	}
	w.focus = layer
}
