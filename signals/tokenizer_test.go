package signals

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenize(t *testing.T) {
	texts := func(tokens []token) []string {
		out := make([]string, len(tokens))
		for i, tok := range tokens {
			out[i] = tok.text
		}
		return out
	}

	tcs := []struct {
		text string
		want []string
	}{
		{"1 + 2", []string{"1", "+", "2"}},
		{"-x/y", []string{"-", "x/y"}},
		{"!!x/y", []string{"!", "!", "x/y"}},
		{"a/b -1", []string{"a/b", "-", "1"}},
		{"a/b - -1", []string{"a/b", "-", "-", "1"}},
		{"(a/b) >=c/d", []string{"(", "a/b", ")", ">=", "c/d"}},
		{"a/b ==c/d", []string{"a/b", "==", "c/d"}},
		{"x/y ?s:e/z", []string{"x/y", "?", "s:e/z"}},
		{"min(a/b,c/d)", []string{"min", "(", "a/b", ",", "c/d", ")"}},
		{"hand/test-action1 - 1", []string{"hand/test-action1", "-", "1"}},
		{"\t1\n*\r2 ", []string{"1", "*", "2"}},
		{"", []string{}},
	}
	for _, tc := range tcs {
		t.Run(tc.text, func(t *testing.T) {
			assert.Equal(t, tc.want, texts(tokenize(tc.text)))
		})
	}

	tokens := tokenize("ab + -(cd)")
	assert.Equal(t, []token{
		{text: "ab", pos: 0},
		{text: "+", pos: 3},
		{text: "-", pos: 5},
		{text: "(", pos: 6},
		{text: "cd", pos: 7},
		{text: ")", pos: 9},
	}, tokens)
}
