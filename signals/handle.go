package signals

import (
	"runtime"
	"sync/atomic"
	"time"

	"github.com/delaneyj/signalexpr/ecs"
)

const invalidIndex = -1

// Handle is the single interned object behind a SignalKey. It records where
// the signal lives in the live and staging tables.
type Handle struct {
	key   SignalKey
	mgr   *Manager
	index [2]atomic.Int64

	refs      atomic.Int32
	idleSince atomic.Int64
	retired   atomic.Bool
}

func newHandle(mgr *Manager, key SignalKey, now time.Time) *Handle {
	h := &Handle{key: key, mgr: mgr}
	h.index[ecs.Live].Store(invalidIndex)
	h.index[ecs.Staging].Store(invalidIndex)
	h.idleSince.Store(now.UnixNano())
	return h
}

func (h *Handle) Key() SignalKey {
	return h.key
}

func (h *Handle) String() string {
	return h.key.String()
}

// Index returns the table row for mode, or -1 if the signal has no row or
// the handle has been retired.
func (h *Handle) Index(mode ecs.Mode) int {
	if h.retired.Load() {
		return invalidIndex
	}
	return int(h.index[mode].Load())
}

func (h *Handle) Retired() bool {
	return h.retired.Load()
}

// Refs is the number of open Refs to this handle.
func (h *Handle) Refs() int {
	return int(h.refs.Load())
}

func (h *Handle) acquire() {
	h.refs.Add(1)
}

func (h *Handle) release(now time.Time) {
	if h.refs.Add(-1) == 0 {
		h.idleSince.Store(now.UnixNano())
	}
}

type refToken struct {
	h      *Handle
	closed atomic.Bool
}

func (t *refToken) release() {
	if t.closed.CompareAndSwap(false, true) {
		t.h.release(t.h.mgr.cfg.Clock())
	}
}

// Ref is an external reference to a signal. While a Ref is open the
// registry will not retire its handle. Refs are released by Close or, as a
// backstop, when they are garbage collected.
type Ref struct {
	h   *Handle
	tok *refToken
}

// newRef wraps a handle whose reference has already been acquired.
func newRef(h *Handle) *Ref {
	r := &Ref{h: h, tok: &refToken{h: h}}
	runtime.AddCleanup(r, (*refToken).release, r.tok)
	return r
}

func (r *Ref) Handle() *Handle {
	if r == nil || r.h == nil {
		panic("use of nil signal ref")
	}
	return r.h
}

func (r *Ref) Key() SignalKey {
	return r.Handle().key
}

func (r *Ref) String() string {
	return r.Handle().String()
}

func (r *Ref) Close() {
	r.Handle()
	r.tok.release()
}

func (r *Ref) SetValue(lock *ecs.Lock, v float64) {
	h := r.Handle()
	h.mgr.setValue(lock, h, v)
}

func (r *Ref) ClearValue(lock *ecs.Lock) {
	h := r.Handle()
	h.mgr.clearValue(lock, h)
}

func (r *Ref) HasValue(lock *ecs.Lock) bool {
	h := r.Handle()
	s := h.mgr.peek(lock, h)
	return s != nil && s.hasValue()
}

// GetValue returns the committed value, or 0 if none is set.
func (r *Ref) GetValue(lock *ecs.Lock) float64 {
	h := r.Handle()
	s := h.mgr.peek(lock, h)
	if s == nil || !s.hasValue() {
		return 0
	}
	return s.value
}

func (r *Ref) SetBinding(lock *ecs.Lock, expr Expression) {
	h := r.Handle()
	h.mgr.setBinding(lock, h, expr)
}

// SetBindingText parses text and binds it. Nothing is changed if the text
// does not parse.
func (r *Ref) SetBindingText(lock *ecs.Lock, text string, scope ecs.Name) error {
	h := r.Handle()
	expr, err := h.mgr.Parse(text, scope)
	if err != nil {
		return err
	}
	h.mgr.setBinding(lock, h, expr)
	return nil
}

func (r *Ref) ClearBinding(lock *ecs.Lock) {
	h := r.Handle()
	h.mgr.clearBinding(lock, h)
}

func (r *Ref) HasBinding(lock *ecs.Lock) bool {
	h := r.Handle()
	s := h.mgr.peek(lock, h)
	return s != nil && s.binding != nil
}

func (r *Ref) GetBinding(lock *ecs.Lock) (Expression, bool) {
	h := r.Handle()
	s := h.mgr.peek(lock, h)
	if s == nil || s.binding == nil {
		return Expression{}, false
	}
	return *s.binding, true
}

// GetSignal returns the effective value of the signal: its committed value
// if set, otherwise its evaluated binding. Cached results are reused until
// an upstream change marks the signal dirty.
func (r *Ref) GetSignal(lock *ecs.Lock) float64 {
	h := r.Handle()
	ec := newEvalContext(h.mgr, lock, h.String())
	return h.mgr.getSignal(ec, h, 0)
}

// Dirty reports whether the cached value of the signal is stale.
func (r *Ref) Dirty(lock *ecs.Lock) bool {
	h := r.Handle()
	s := h.mgr.peek(lock, h)
	return s != nil && s.lastValueDirty
}
