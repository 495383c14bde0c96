package ecs

import (
	"slices"
	"sync"

	mapset "github.com/deckarep/golang-set/v2"
)

type Mode uint8

const (
	Live Mode = iota
	Staging
)

func (m Mode) String() string {
	if m == Staging {
		return "staging"
	}
	return "live"
}

type Access uint8

const (
	AccessNone Access = iota
	AccessRead
	AccessWrite
)

type Resource string

const (
	Signals Resource = "signals"
	Focus   Resource = "focus"
)

func ComponentResource(name string) Resource {
	return Resource("component:" + name)
}

// Permissions is a set of resources requested for reading and writing.
type Permissions struct {
	read  mapset.Set[Resource]
	write mapset.Set[Resource]
}

func Read(resources ...Resource) Permissions {
	return Permissions{
		read:  mapset.NewThreadUnsafeSet(resources...),
		write: mapset.NewThreadUnsafeSet[Resource](),
	}
}

func Write(resources ...Resource) Permissions {
	return Permissions{
		read:  mapset.NewThreadUnsafeSet[Resource](),
		write: mapset.NewThreadUnsafeSet(resources...),
	}
}

type heldMutex struct {
	mu    *sync.RWMutex
	write bool
}

// Lock is an open transaction. It is not safe for use from more than one
// goroutine at a time.
type Lock struct {
	world    *World
	mode     Mode
	perms    map[Resource]Access
	held     []heldMutex
	released bool
}

// StartTransaction acquires every requested resource, blocking until all are
// available. Resources are acquired in sorted order so concurrent
// transactions cannot deadlock against each other.
func (w *World) StartTransaction(mode Mode, perms ...Permissions) *Lock {
	l := &Lock{
		world: w,
		mode:  mode,
		perms: map[Resource]Access{},
	}
	for _, p := range perms {
		for r := range p.read.Iter() {
			if l.perms[r] < AccessRead {
				l.perms[r] = AccessRead
			}
		}
		for r := range p.write.Iter() {
			l.perms[r] = AccessWrite
		}
	}

	resources := make([]Resource, 0, len(l.perms))
	for r := range l.perms {
		resources = append(resources, r)
	}
	slices.Sort(resources)

	for _, r := range resources {
		mu := w.mutex(r, mode)
		write := l.perms[r] == AccessWrite
		if write {
			mu.Lock()
		} else {
			mu.RLock()
		}
		l.held = append(l.held, heldMutex{mu: mu, write: write})
	}
	return l
}

func (l *Lock) World() *World {
	return l.world
}

func (l *Lock) Mode() Mode {
	return l.mode
}

func (l *Lock) Staging() bool {
	return l.mode == Staging
}

// Has reports whether the lock grants at least access on r.
func (l *Lock) Has(r Resource, access Access) bool {
	if l == nil || l.released {
		return false
	}
	return l.perms[r] >= access
}

// TryRead grants temporary read access to r without blocking. If the lock
// already covers r the returned release is a no-op. The grant must be
// released before the lock itself.
func (l *Lock) TryRead(r Resource) (release func(), ok bool) {
	if l.Has(r, AccessRead) {
		return func() {}, true
	}
	if l == nil || l.released {
		return nil, false
	}
	mu := l.world.mutex(r, l.mode)
	if !mu.TryRLock() {
		return nil, false
	}
	l.perms[r] = AccessRead
	return func() {
		delete(l.perms, r)
		mu.RUnlock()
	}, true
}

func (l *Lock) Release() {
	if l.released {
		panic("transaction released twice")
	}
	l.released = true
	for i := len(l.held) - 1; i >= 0; i-- {
		if l.held[i].write {
			l.held[i].mu.Unlock()
		} else {
			l.held[i].mu.RUnlock()
		}
	}
	l.held = nil
}
