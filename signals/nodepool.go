package signals

import (
	"cmp"
	"slices"
	"sync"
	"weak"

	"github.com/cespare/xxhash/v2"
)

type poolShard struct {
	mu    sync.RWMutex
	nodes map[string]*Node
}

// NodePool interns expression nodes by canonical text so that identical
// sub-expressions share one node.
type NodePool struct {
	shards []poolShard

	rootsMu sync.Mutex
	roots   []weak.Pointer[exprRoot]
}

func newNodePool(shards int) *NodePool {
	p := &NodePool{shards: make([]poolShard, shards)}
	for i := range p.shards {
		p.shards[i].nodes = map[string]*Node{}
	}
	return p
}

func (p *NodePool) shard(text string) *poolShard {
	return &p.shards[xxhash.Sum64String(text)%uint64(len(p.shards))]
}

// current reports whether a pooled node can stand in for candidate: its
// children must be the same pooled nodes and any signal it reads must not
// have been retired.
func current(pooled, candidate *Node) bool {
	if pooled.handle != nil && pooled.handle.Retired() {
		return false
	}
	return slices.Equal(pooled.children, candidate.children)
}

// Intern returns the pooled node with the same canonical text as candidate,
// adding candidate if there is none.
func (p *NodePool) Intern(candidate *Node) *Node {
	s := p.shard(candidate.text)
	s.mu.RLock()
	n, ok := s.nodes[candidate.text]
	s.mu.RUnlock()
	if ok && current(n, candidate) {
		return n
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if n, ok := s.nodes[candidate.text]; ok && current(n, candidate) {
		return n
	}
	s.nodes[candidate.text] = candidate
	return candidate
}

// Lookup returns the pooled node for canonical text.
func (p *NodePool) Lookup(text string) (*Node, bool) {
	s := p.shard(text)
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.nodes[text]
	return n, ok
}

func (p *NodePool) Len() int {
	n := 0
	for i := range p.shards {
		s := &p.shards[i]
		s.mu.RLock()
		n += len(s.nodes)
		s.mu.RUnlock()
	}
	return n
}

// Nodes returns every pooled node, shortest text first.
func (p *NodePool) Nodes() []*Node {
	var nodes []*Node
	for i := range p.shards {
		s := &p.shards[i]
		s.mu.RLock()
		for _, n := range s.nodes {
			nodes = append(nodes, n)
		}
		s.mu.RUnlock()
	}
	slices.SortFunc(nodes, func(a, b *Node) int {
		return cmp.Or(
			cmp.Compare(len(a.text), len(b.text)),
			cmp.Compare(a.text, b.text),
		)
	})
	return nodes
}

func (p *NodePool) track(root *exprRoot) {
	p.rootsMu.Lock()
	defer p.rootsMu.Unlock()
	p.roots = append(p.roots, weak.Make(root))
}

// liveRoots prunes collected expression roots and returns the rest.
func (p *NodePool) liveRoots() []*Node {
	p.rootsMu.Lock()
	defer p.rootsMu.Unlock()
	var nodes []*Node
	kept := p.roots[:0]
	for _, wp := range p.roots {
		if r := wp.Value(); r != nil {
			kept = append(kept, wp)
			nodes = append(nodes, r.node)
		}
	}
	clear(p.roots[len(kept):])
	p.roots = kept
	return nodes
}

// DropUnused removes every pooled node that is neither the root of a live
// expression nor a child of another node still in use. It returns the
// number of nodes removed; calling it again without changes removes nothing.
func (p *NodePool) DropUnused() int {
	roots := p.liveRoots()

	for i := range p.shards {
		p.shards[i].mu.Lock()
	}
	defer func() {
		for i := range p.shards {
			p.shards[i].mu.Unlock()
		}
	}()

	pooled := func(n *Node) bool {
		return p.shard(n.text).nodes[n.text] == n
	}

	refs := map[*Node]int{}
	// Nodes that have been replaced in the pool still hold their children.
	var hold func(n *Node)
	hold = func(n *Node) {
		if pooled(n) {
			refs[n]++
			return
		}
		for _, c := range n.children {
			hold(c)
		}
	}
	for i := range p.shards {
		for _, n := range p.shards[i].nodes {
			for _, c := range n.children {
				hold(c)
			}
		}
	}
	for _, r := range roots {
		hold(r)
	}

	var unused []*Node
	for i := range p.shards {
		for _, n := range p.shards[i].nodes {
			if refs[n] == 0 {
				unused = append(unused, n)
			}
		}
	}

	var release func(n *Node)
	release = func(n *Node) {
		if !pooled(n) {
			for _, c := range n.children {
				release(c)
			}
			return
		}
		refs[n]--
		if refs[n] == 0 {
			unused = append(unused, n)
		}
	}

	dropped := 0
	for len(unused) > 0 {
		n := unused[len(unused)-1]
		unused = unused[:len(unused)-1]
		if !pooled(n) {
			continue
		}
		delete(p.shard(n.text).nodes, n.text)
		dropped++
		for _, c := range n.children {
			release(c)
		}
	}
	return dropped
}
