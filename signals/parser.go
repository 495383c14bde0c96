package signals

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/delaneyj/signalexpr/ecs"
)

type precedence uint8

// Operator classes from loosest to tightest.
const (
	precGroup precedence = iota
	precTernary
	precOr
	precAnd
	precCompare
	precSum
	precProduct
	precUnary
)

type parser struct {
	mgr    *Manager
	text   string
	scope  ecs.Name
	tokens []token
	pos    int

	nodes    int
	relative bool
}

func (p *parser) peek() (token, bool) {
	if p.pos >= len(p.tokens) {
		return token{}, false
	}
	return p.tokens[p.pos], true
}

func (p *parser) next() (token, bool) {
	t, ok := p.peek()
	if ok {
		p.pos++
	}
	return t, ok
}

func (p *parser) fail(kind ParseErrorKind, t token, err error) error {
	return &ParseError{
		Kind:  kind,
		Text:  p.text,
		Token: t.text,
		Pos:   t.pos,
		Err:   err,
	}
}

func (p *parser) failEnd(kind ParseErrorKind) error {
	return &ParseError{Kind: kind, Text: p.text, Pos: len(p.text)}
}

// intern pools a candidate node and enforces the per-parse node budget.
func (p *parser) intern(n *Node) (*Node, error) {
	p.nodes++
	if p.nodes > p.mgr.cfg.MaxNodes {
		return nil, p.failEnd(ErrTooManyNodes)
	}
	return p.mgr.pool.Intern(n), nil
}

func (p *parser) parse() (*Node, error) {
	if strings.TrimSpace(p.text) == "" {
		return p.intern(newConstant(0))
	}
	p.tokens = tokenize(p.text)
	root, err := p.parseExpr(precGroup)
	if err != nil {
		return nil, err
	}
	if t, ok := p.peek(); ok {
		return nil, p.fail(ErrUnexpectedOperator, t, nil)
	}
	return root, nil
}

// parseExpr parses operators binding at least as tightly as limit. It stops
// at ) , : or any operator looser than limit and leaves that token in place.
func (p *parser) parseExpr(limit precedence) (*Node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		t, ok := p.peek()
		if !ok {
			return left, nil
		}
		switch t.text {
		case ")", ",", ":":
			return left, nil
		case "(":
			return nil, p.fail(ErrUnexpectedOperator, t, nil)
		case "?":
			if limit > precTernary {
				return left, nil
			}
			p.pos++
			if left, err = p.parseTernary(left); err != nil {
				return nil, err
			}
			continue
		}

		op, ok := binaryOps[t.text]
		if !ok {
			return nil, p.fail(ErrUnknownIdentifier, t, nil)
		}
		if op.prec < limit {
			return left, nil
		}
		p.pos++
		right, err := p.parseExpr(op.prec + 1)
		if err != nil {
			return nil, err
		}
		if left, err = p.intern(newTwoInput(op, left, right)); err != nil {
			return nil, err
		}
	}
}

func (p *parser) parseTernary(cond *Node) (*Node, error) {
	whenTrue, err := p.parseExpr(precTernary)
	if err != nil {
		return nil, err
	}
	if err := p.expect(":"); err != nil {
		return nil, err
	}
	whenFalse, err := p.parseExpr(precTernary)
	if err != nil {
		return nil, err
	}
	return p.intern(newDecider(cond, whenTrue, whenFalse))
}

func (p *parser) expect(text string) error {
	t, ok := p.next()
	if !ok {
		return &ParseError{Kind: ErrMissingClose, Text: p.text, Token: text, Pos: len(p.text)}
	}
	if t.text != text {
		return p.fail(ErrMissingClose, t, fmt.Errorf("expected %q", text))
	}
	return nil
}

func (p *parser) parseUnary() (*Node, error) {
	t, ok := p.next()
	if !ok {
		return nil, p.failEnd(ErrUnexpectedEnd)
	}

	switch t.text {
	case "-", "!":
		op := opNeg
		if t.text == "!" {
			op = opNot
		}
		child, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		if child.kind == KindConstant {
			return p.intern(newConstant(op.fn(child.value)))
		}
		return p.intern(newOneInput(op, child))

	case "(":
		inner, err := p.parseExpr(precGroup)
		if err != nil {
			return nil, err
		}
		if err := p.expect(")"); err != nil {
			return nil, err
		}
		return inner, nil

	case ")", ",", "?", ":":
		return nil, p.fail(ErrUnexpectedOperator, t, nil)
	}
	if _, isOp := binaryOps[t.text]; isOp {
		return nil, p.fail(ErrUnexpectedOperator, t, nil)
	}

	if next, ok := p.peek(); ok && next.text == "(" {
		p.pos++
		return p.parseCall(t)
	}
	return p.parseLeaf(t)
}

func (p *parser) parseCall(name token) (*Node, error) {
	switch name.text {
	case "is_focused", "if_focused":
		t, ok := p.next()
		if !ok {
			return nil, p.failEnd(ErrUnexpectedEnd)
		}
		layer, err := ecs.ParseFocusLayer(t.text)
		if err != nil {
			return nil, p.fail(ErrBadReference, t, err)
		}
		var child *Node
		if name.text == "if_focused" {
			if err := p.expect(","); err != nil {
				return nil, err
			}
			if child, err = p.parseExpr(precGroup); err != nil {
				return nil, err
			}
		}
		if err := p.expect(")"); err != nil {
			return nil, err
		}
		return p.intern(newFocusNode(layer, child))
	}

	if op, ok := funcs1[name.text]; ok {
		arg, err := p.parseExpr(precGroup)
		if err != nil {
			return nil, err
		}
		if err := p.expect(")"); err != nil {
			return nil, err
		}
		return p.intern(newOneInput(op, arg))
	}

	if op, ok := funcs2[name.text]; ok {
		a, err := p.parseExpr(precGroup)
		if err != nil {
			return nil, err
		}
		if err := p.expect(","); err != nil {
			return nil, err
		}
		b, err := p.parseExpr(precGroup)
		if err != nil {
			return nil, err
		}
		if err := p.expect(")"); err != nil {
			return nil, err
		}
		return p.intern(newTwoInput(op, a, b))
	}

	return nil, p.fail(ErrUnknownFunction, name, nil)
}

func (p *parser) parseLeaf(t token) (*Node, error) {
	word := t.text
	switch {
	case word == "event" || strings.HasPrefix(word, "event."):
		return p.intern(newIdentifier(strings.TrimPrefix(strings.TrimPrefix(word, "event"), ".")))

	case strings.Contains(word, "/"):
		key, err := ParseSignalKey(p.mgr.world, word, p.scope)
		if err != nil {
			return nil, p.fail(ErrBadReference, t, err)
		}
		entityText, _, _ := strings.Cut(word, "/")
		p.noteScope(entityText)
		return p.intern(newSignalNode(p.mgr.registry.GetOrCreate(key)))

	case strings.Contains(word, "#"):
		entityText, rest, _ := strings.Cut(word, "#")
		component, path, _ := strings.Cut(rest, ".")
		name, err := ecs.ParseName(entityText, p.scope)
		if err != nil {
			return nil, p.fail(ErrBadReference, t, err)
		}
		field, err := p.mgr.world.LookupField(component, path)
		if err != nil {
			return nil, p.fail(ErrBadReference, t, err)
		}
		if !field.Scalar() {
			return nil, p.fail(ErrBadReference, t, fmt.Errorf("%w: %s", ecs.ErrNotScalar, rest))
		}
		p.noteScope(entityText)
		return p.intern(newComponentNode(p.mgr.world.Ref(name), field))
	}

	v, err := strconv.ParseFloat(word, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, p.fail(ErrUnknownIdentifier, t, nil)
	}
	return p.intern(newConstant(v))
}

// noteScope records whether a reference was resolved relative to the scope.
func (p *parser) noteScope(entityText string) {
	if !strings.Contains(entityText, ":") {
		p.relative = true
	}
}
