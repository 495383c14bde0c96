package signals

import (
	"math"
	"weak"

	"github.com/delaneyj/signalexpr/ecs"
)

// unset marks a slot without a committed value. Real signal values are
// always finite.
var unset = math.Inf(-1)

type slot struct {
	used   bool
	handle *Handle

	value        float64
	binding      *Expression
	subscribers  []weak.Pointer[Handle]
	dependencies []weak.Pointer[Handle]

	lastValue      float64
	lastValueDirty bool
}

func (s *slot) hasValue() bool {
	return !math.IsInf(s.value, -1)
}

// liveSubscribers drops expired or retired entries and returns what is left.
func (s *slot) liveSubscribers() []*Handle {
	live := make([]*Handle, 0, len(s.subscribers))
	kept := s.subscribers[:0]
	for _, wp := range s.subscribers {
		h := wp.Value()
		if h == nil || h.Retired() {
			continue
		}
		kept = append(kept, wp)
		live = append(live, h)
	}
	clear(s.subscribers[len(kept):])
	s.subscribers = kept
	return live
}

func (s *slot) dropSubscriber(sub *Handle) {
	for i, wp := range s.subscribers {
		if wp.Value() == sub {
			s.subscribers = append(s.subscribers[:i], s.subscribers[i+1:]...)
			return
		}
	}
}

func (s *slot) empty() bool {
	return !s.hasValue() && s.binding == nil && len(s.liveSubscribers()) == 0
}

// Table is one view (live or staging) of every signal's storage. Rows are
// recycled through a free list.
type Table struct {
	mode  ecs.Mode
	slots []slot
	free  []int
}

func newTable(mode ecs.Mode) *Table {
	return &Table{mode: mode}
}

func (t *Table) Mode() ecs.Mode {
	return t.mode
}

// Len is the number of rows in use.
func (t *Table) Len() int {
	return len(t.slots) - len(t.free)
}

func (t *Table) at(idx int) *slot {
	s := &t.slots[idx]
	if !s.used {
		panic("access to freed signal row")
	}
	return s
}

// alloc gives h a row. Pointers returned by at are invalidated.
func (t *Table) alloc(h *Handle) int {
	var idx int
	if n := len(t.free); n > 0 {
		idx = t.free[n-1]
		t.free = t.free[:n-1]
	} else {
		idx = len(t.slots)
		t.slots = append(t.slots, slot{})
	}
	t.slots[idx] = slot{
		used:      true,
		handle:    h,
		value:     unset,
		lastValue: 0,
	}
	h.index[t.mode].Store(int64(idx))
	return idx
}

func (t *Table) release(idx int) {
	s := t.at(idx)
	s.handle.index[t.mode].Store(invalidIndex)
	t.slots[idx] = slot{}
	t.free = append(t.free, idx)
}
