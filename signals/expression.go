package signals

import (
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/delaneyj/signalexpr/ecs"
)

type exprRoot struct {
	node     *Node
	relative bool
}

// Expression is parsed text bound to a scope. An Expression whose text
// failed to parse has no root and evaluates to 0.
type Expression struct {
	Text  string
	Scope ecs.Name

	mgr  *Manager
	root *exprRoot
}

// Valid reports whether the expression parsed.
func (e Expression) Valid() bool {
	return e.root != nil
}

// Root returns the pooled root node, or nil if the expression is invalid.
func (e Expression) Root() *Node {
	if e.root == nil {
		return nil
	}
	return e.root.node
}

// String returns the canonical text, or the raw text if parsing failed.
func (e Expression) String() string {
	if e.root == nil {
		return e.Text
	}
	return e.root.node.text
}

// Relative reports whether any reference was resolved against Scope.
func (e Expression) Relative() bool {
	return e.root != nil && e.root.relative
}

// readsEvent reports whether evaluating the expression reads the event
// payload.
func (e Expression) readsEvent() bool {
	return e.root != nil && e.root.node.event
}

func (e Expression) eval(ec *evalContext, depth int) float64 {
	if e.root == nil {
		return 0
	}
	n := e.root.node
	return n.eval(n, ec, depth)
}

func (e Expression) Evaluate(lock *ecs.Lock, depth int) float64 {
	if e.root == nil {
		return 0
	}
	return e.eval(newEvalContext(e.mgr, lock, ""), depth)
}

// EvaluateEvent evaluates with payload available to event fields.
func (e Expression) EvaluateEvent(lock *ecs.Lock, payload any) float64 {
	if e.root == nil {
		return 0
	}
	ec := newEvalContext(e.mgr, lock, "")
	ec.payload = payload
	ec.hasEvent = true
	return e.eval(ec, 0)
}

// CanEvaluate reports whether every signal, component and focus reference
// reachable from the expression can be read under lock. Both branches of a
// ternary are checked.
func (e Expression) CanEvaluate(lock *ecs.Lock, depth int) bool {
	if e.root == nil {
		return true
	}
	n := e.root.node
	return n.check(n, &checkContext{mgr: e.mgr, lock: lock}, depth)
}

// SetScope rebinds the expression to scope. If nothing in it is relative
// the root is kept; otherwise the text is resolved again and the pool
// shares every subtree that did not change. If the text does not resolve in
// scope the expression is left as it was and the error returned.
func (e *Expression) SetScope(scope ecs.Name) error {
	if scope == e.Scope {
		return nil
	}
	if (e.root != nil && !e.root.relative) || e.mgr == nil {
		e.Scope = scope
		return nil
	}
	next, err := e.mgr.Parse(e.Text, scope)
	if err != nil {
		return err
	}
	*e = next
	return nil
}

// Dependencies returns the distinct signals the expression reads.
func (e Expression) Dependencies() []*Handle {
	if e.root == nil {
		return nil
	}
	seen := mapset.NewThreadUnsafeSet[*Handle]()
	var deps []*Handle
	e.root.node.walk(func(n *Node) {
		if n.kind == KindSignal && seen.Add(n.handle) {
			deps = append(deps, n.handle)
		}
	})
	return deps
}
