package templates

import (
	"strings"
)

// Graph is a binding graph ready to be rendered. Edges run from a signal to
// the signals whose bindings read it.
type Graph struct {
	Name  string
	Nodes []GraphNode
	Edges []GraphEdge
}

type GraphNode struct {
	ID    string
	Label string
	Bound bool
	Dirty bool
}

type GraphEdge struct {
	From string
	To   string
}

func dotQuote(s string) string {
	var sb strings.Builder
	sb.Grow(len(s) + 2)
	sb.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"', '\\':
			sb.WriteByte('\\')
			sb.WriteRune(r)
		case '\n':
			sb.WriteString(`\n`)
		default:
			sb.WriteRune(r)
		}
	}
	sb.WriteByte('"')
	return sb.String()
}

func nodeAttrs(n GraphNode) string {
	var sb strings.Builder
	if n.Bound {
		sb.WriteString(", style=rounded")
	}
	if n.Dirty {
		sb.WriteString(", color=red")
	}
	return sb.String()
}
