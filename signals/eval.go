package signals

import (
	"math"

	"github.com/delaneyj/signalexpr/ecs"
)

const (
	reasonDepth            = "depth"
	reasonPropagationDepth = "propagation_depth"
	reasonNonFinite        = "non_finite"
	reasonEventType        = "event_type"
	reasonNoEvent          = "no_event"
	reasonComponentType    = "component_type"
	reasonComponentLocked  = "component_locked"
	reasonFocusLocked      = "focus_locked"
)

// evalContext carries the state of one top level evaluation.
type evalContext struct {
	mgr      *Manager
	lock     *ecs.Lock
	payload  any
	hasEvent bool
	source   string

	// uncacheable is set when the result depends on something that can
	// change without marking signals dirty.
	uncacheable   bool
	depthReported bool
}

func newEvalContext(mgr *Manager, lock *ecs.Lock, source string) *evalContext {
	return &evalContext{mgr: mgr, lock: lock, source: source}
}

func (ec *evalContext) warn(n *Node, depth int, reason, msg string) {
	ec.mgr.warn(reason, msg,
		"expr", n.text,
		"signal", ec.source,
		"depth", depth,
	)
}

func evalConstant(n *Node, _ *evalContext, _ int) float64 {
	return n.value
}

func evalIdentifier(n *Node, ec *evalContext, depth int) float64 {
	ec.uncacheable = true
	if !ec.hasEvent {
		ec.warn(n, depth, reasonNoEvent, "event field read outside of an event")
		return 0
	}
	v, err := ecs.ReadPath(ec.payload, n.path)
	if err != nil {
		ec.mgr.warn(reasonEventType, "event payload does not match",
			"expr", n.text,
			"signal", ec.source,
			"depth", depth,
			"error", err,
		)
		return 0
	}
	return finite(n, ec, depth, v)
}

func evalSignal(n *Node, ec *evalContext, depth int) float64 {
	if depth >= ec.mgr.cfg.MaxDepth {
		ec.uncacheable = true
		if !ec.depthReported {
			ec.depthReported = true
			ec.warn(n, depth, reasonDepth, "signal binding depth exceeded")
		}
		return 0
	}
	return ec.mgr.getSignal(ec, n.handle, depth+1)
}

func evalComponent(n *Node, ec *evalContext, depth int) float64 {
	ec.uncacheable = true
	id, ok := n.entity.Get(ec.lock)
	if !ok {
		return 0
	}
	release, ok := ec.lock.TryRead(n.field.Component.Resource())
	if !ok {
		ec.warn(n, depth, reasonComponentLocked, "component is locked")
		return 0
	}
	defer release()

	value, ok := ec.lock.World().Component(ec.lock, n.field.Component, id)
	if !ok {
		return 0
	}
	v, err := n.field.ReadFloat(value)
	if err != nil {
		ec.mgr.warn(reasonComponentType, "component field could not be read",
			"expr", n.text,
			"signal", ec.source,
			"depth", depth,
			"error", err,
		)
		return 0
	}
	return finite(n, ec, depth, v)
}

func evalFocus(n *Node, ec *evalContext, depth int) float64 {
	ec.uncacheable = true
	release, ok := ec.lock.TryRead(ecs.Focus)
	if !ok {
		ec.warn(n, depth, reasonFocusLocked, "focus state is locked")
		return 0
	}
	focused := ec.lock.World().HasPrimaryFocus(ec.lock, n.layer)
	release()
	if !focused {
		return 0
	}
	if len(n.children) == 0 {
		return 1
	}
	child := n.children[0]
	return child.eval(child, ec, depth)
}

func evalOneInput(n *Node, ec *evalContext, depth int) float64 {
	child := n.children[0]
	return finite(n, ec, depth, n.unary.fn(child.eval(child, ec, depth)))
}

func evalTwoInput(n *Node, ec *evalContext, depth int) float64 {
	left, right := n.children[0], n.children[1]
	a := left.eval(left, ec, depth)
	b := right.eval(right, ec, depth)
	return finite(n, ec, depth, n.binary.fn(a, b))
}

func evalDecider(n *Node, ec *evalContext, depth int) float64 {
	cond := n.children[0]
	branch := n.children[2]
	if truthy(cond.eval(cond, ec, depth)) {
		branch = n.children[1]
	}
	return branch.eval(branch, ec, depth)
}

func finite(n *Node, ec *evalContext, depth int, v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		ec.warn(n, depth, reasonNonFinite, "expression produced a non-finite value")
		return 0
	}
	return v
}

type checkContext struct {
	mgr  *Manager
	lock *ecs.Lock
}

func checkLeaf(*Node, *checkContext, int) bool {
	return true
}

func checkChildren(n *Node, cc *checkContext, depth int) bool {
	for _, c := range n.children {
		if !c.check(c, cc, depth) {
			return false
		}
	}
	return true
}

func checkSignal(n *Node, cc *checkContext, depth int) bool {
	if !cc.lock.Has(ecs.Signals, ecs.AccessRead) {
		return false
	}
	if depth >= cc.mgr.cfg.MaxDepth {
		return true
	}
	idx := n.handle.Index(cc.lock.Mode())
	if idx < 0 {
		return true
	}
	s := cc.mgr.table(cc.lock).at(idx)
	if s.hasValue() || s.binding == nil || !s.binding.Valid() {
		return true
	}
	root := s.binding.root.node
	return root.check(root, cc, depth+1)
}

func checkComponent(n *Node, cc *checkContext, _ int) bool {
	return cc.lock.Has(n.field.Component.Resource(), ecs.AccessRead)
}

func checkFocus(n *Node, cc *checkContext, depth int) bool {
	if !cc.lock.Has(ecs.Focus, ecs.AccessRead) {
		return false
	}
	return checkChildren(n, cc, depth)
}
