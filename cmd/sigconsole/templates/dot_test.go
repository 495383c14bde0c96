package templates

import (
	"bytes"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
)

func TestDotQuote(t *testing.T) {
	assert.Equal(t, `"plain"`, dotQuote("plain"))
	assert.Equal(t, `"say \"hi\""`, dotQuote(`say "hi"`))
	assert.Equal(t, `"a\\b"`, dotQuote(`a\b`))
	assert.Equal(t, `"one\ntwo"`, dotQuote("one\ntwo"))
}

func TestDot(t *testing.T) {
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)

	tests := []struct {
		name  string
		graph Graph
	}{
		{
			name:  "empty",
			graph: Graph{Name: "empty"},
		},
		{
			name: "lobby",
			graph: Graph{
				Name: "lobby",
				Nodes: []GraphNode{
					{ID: "lobby:player/speed", Label: "lobby:player/speed = 2"},
					{ID: "lobby:player/boost", Label: "lobby:player/boost = 4\n(lobby:player/speed * 2)", Bound: true},
					{ID: `lobby:lamp/"quoted"`, Label: `lobby:lamp/"quoted" = 0`, Bound: true, Dirty: true},
				},
				Edges: []GraphEdge{
					{From: "lobby:player/speed", To: "lobby:player/boost"},
					{From: "lobby:player/boost", To: `lobby:lamp/"quoted"`},
				},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Dot(tt.graph)
			g.Assert(t, tt.name, []byte(out))

			var buf bytes.Buffer
			WriteDot(&buf, tt.graph)
			assert.Equal(t, out, buf.String())
		})
	}
}
