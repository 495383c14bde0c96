package signals

import (
	"math"
	"strconv"
	"strings"

	"github.com/delaneyj/signalexpr/ecs"
)

type NodeKind uint8

const (
	KindConstant NodeKind = iota
	KindIdentifier
	KindSignal
	KindComponent
	KindFocus
	KindOneInput
	KindTwoInput
	KindDecider
)

func (k NodeKind) String() string {
	switch k {
	case KindConstant:
		return "constant"
	case KindIdentifier:
		return "identifier"
	case KindSignal:
		return "signal"
	case KindComponent:
		return "component"
	case KindFocus:
		return "focus"
	case KindOneInput:
		return "one_input"
	case KindTwoInput:
		return "two_input"
	case KindDecider:
		return "decider"
	default:
		return "unknown"
	}
}

type (
	evalFunc  func(n *Node, ec *evalContext, depth int) float64
	checkFunc func(n *Node, cc *checkContext, depth int) bool
)

// Node is an immutable, pooled expression node. Nodes with the same
// canonical text are the same object while they remain in the pool.
type Node struct {
	kind     NodeKind
	text     string
	children []*Node

	value  float64
	path   string
	handle *Handle
	entity ecs.EntityRef
	field  ecs.Field
	layer  ecs.FocusLayer
	unary  *unaryOp
	binary *binaryOp

	eval  evalFunc
	check checkFunc

	// event is set when the node or any descendant reads the event payload.
	event bool
}

func (n *Node) Kind() NodeKind {
	return n.kind
}

// String returns the canonical text of the node.
func (n *Node) String() string {
	return n.text
}

func (n *Node) Children() []*Node {
	return n.children
}

// Handle returns the signal a KindSignal node reads.
func (n *Node) Handle() *Handle {
	return n.handle
}

func (n *Node) Value() float64 {
	return n.value
}

func truthy(v float64) bool {
	return v >= 0.5
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

type unaryOp struct {
	name string
	fn   func(float64) float64
}

type binaryOp struct {
	symbol string
	prec   precedence
	call   bool
	fn     func(a, b float64) float64
}

var (
	opNeg = &unaryOp{name: "-", fn: func(v float64) float64 { return -v }}
	opNot = &unaryOp{name: "!", fn: func(v float64) float64 { return boolValue(!truthy(v)) }}

	funcs1 = map[string]*unaryOp{
		"sin":   {name: "sin", fn: math.Sin},
		"cos":   {name: "cos", fn: math.Cos},
		"tan":   {name: "tan", fn: math.Tan},
		"floor": {name: "floor", fn: math.Floor},
		"ceil":  {name: "ceil", fn: math.Ceil},
		"abs":   {name: "abs", fn: math.Abs},
	}

	funcs2 = map[string]*binaryOp{
		"min": {symbol: "min", call: true, fn: math.Min},
		"max": {symbol: "max", call: true, fn: math.Max},
	}

	binaryOps = map[string]*binaryOp{
		"*":  {symbol: "*", prec: precProduct, fn: func(a, b float64) float64 { return a * b }},
		"/":  {symbol: "/", prec: precProduct, fn: func(a, b float64) float64 { return a / b }},
		"+":  {symbol: "+", prec: precSum, fn: func(a, b float64) float64 { return a + b }},
		"-":  {symbol: "-", prec: precSum, fn: func(a, b float64) float64 { return a - b }},
		"==": {symbol: "==", prec: precCompare, fn: func(a, b float64) float64 { return boolValue(a == b) }},
		"!=": {symbol: "!=", prec: precCompare, fn: func(a, b float64) float64 { return boolValue(a != b) }},
		">":  {symbol: ">", prec: precCompare, fn: func(a, b float64) float64 { return boolValue(a > b) }},
		">=": {symbol: ">=", prec: precCompare, fn: func(a, b float64) float64 { return boolValue(a >= b) }},
		"<":  {symbol: "<", prec: precCompare, fn: func(a, b float64) float64 { return boolValue(a < b) }},
		"<=": {symbol: "<=", prec: precCompare, fn: func(a, b float64) float64 { return boolValue(a <= b) }},
		"&&": {symbol: "&&", prec: precAnd, fn: func(a, b float64) float64 { return boolValue(truthy(a) && truthy(b)) }},
		"||": {symbol: "||", prec: precOr, fn: func(a, b float64) float64 { return boolValue(truthy(a) || truthy(b)) }},
	}
)

func formatConstant(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func newConstant(v float64) *Node {
	return &Node{
		kind:  KindConstant,
		text:  formatConstant(v),
		value: v,
		eval:  evalConstant,
		check: checkLeaf,
	}
}

func newIdentifier(path string) *Node {
	text := "event"
	if path != "" {
		text += "." + path
	}
	return &Node{
		kind:  KindIdentifier,
		text:  text,
		path:  path,
		eval:  evalIdentifier,
		check: checkLeaf,
		event: true,
	}
}

func newSignalNode(h *Handle) *Node {
	return &Node{
		kind:   KindSignal,
		text:   h.String(),
		handle: h,
		eval:   evalSignal,
		check:  checkSignal,
	}
}

func newComponentNode(entity ecs.EntityRef, field ecs.Field) *Node {
	text := entity.String() + "#" + field.Component.Name()
	if p := field.Canonical(); p != "" {
		text += "." + p
	}
	return &Node{
		kind:   KindComponent,
		text:   text,
		entity: entity,
		field:  field,
		eval:   evalComponent,
		check:  checkComponent,
	}
}

func newFocusNode(layer ecs.FocusLayer, child *Node) *Node {
	n := &Node{
		kind:  KindFocus,
		layer: layer,
		eval:  evalFocus,
		check: checkFocus,
	}
	if child == nil {
		n.text = "is_focused(" + layer.String() + ")"
	} else {
		n.text = "if_focused(" + layer.String() + ", " + child.text + ")"
		n.children = []*Node{child}
		n.event = child.event
	}
	return n
}

func newOneInput(op *unaryOp, child *Node) *Node {
	text := op.name + child.text
	if op != opNeg && op != opNot {
		text = op.name + "(" + child.text + ")"
	}
	return &Node{
		kind:     KindOneInput,
		text:     text,
		children: []*Node{child},
		unary:    op,
		eval:     evalOneInput,
		check:    checkChildren,
		event:    child.event,
	}
}

func newTwoInput(op *binaryOp, left, right *Node) *Node {
	var text string
	if op.call {
		text = op.symbol + "(" + left.text + ", " + right.text + ")"
	} else {
		text = "(" + left.text + " " + op.symbol + " " + right.text + ")"
	}
	return &Node{
		kind:     KindTwoInput,
		text:     text,
		children: []*Node{left, right},
		binary:   op,
		eval:     evalTwoInput,
		check:    checkChildren,
		event:    left.event || right.event,
	}
}

func newDecider(cond, whenTrue, whenFalse *Node) *Node {
	var b strings.Builder
	b.WriteString("(")
	b.WriteString(cond.text)
	b.WriteString(" ? ")
	b.WriteString(whenTrue.text)
	b.WriteString(" : ")
	b.WriteString(whenFalse.text)
	b.WriteString(")")
	return &Node{
		kind:     KindDecider,
		text:     b.String(),
		children: []*Node{cond, whenTrue, whenFalse},
		eval:     evalDecider,
		check:    checkChildren,
		event:    cond.event || whenTrue.event || whenFalse.event,
	}
}

// walk visits n and its descendants depth first. Shared subtrees are
// visited once per occurrence.
func (n *Node) walk(fn func(*Node)) {
	fn(n)
	for _, c := range n.children {
		c.walk(fn)
	}
}
