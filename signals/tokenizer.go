package signals

import "strings"

type token struct {
	text string
	pos  int
}

var operatorPrefixes = []string{
	"==", "!=", ">=", "<=", "&&", "||",
	"+", "-", "*", "/", "<", ">", "?", ":",
}

func operatorPrefix(s string) string {
	for _, op := range operatorPrefixes {
		if strings.HasPrefix(s, op) {
			return op
		}
	}
	return ""
}

// tokenize splits text on whitespace and the punctuation ( ) and ,. Within a
// word, operators are only split off at the start: a leading - or ! where an
// operand is expected is unary, and a leading operator where an operator is
// expected is binary. Anything else stays part of the word, so names such as
// "hand/test-action1" are a single token.
func tokenize(text string) []token {
	var tokens []token
	operand := true

	emitWord := func(word string, pos int) {
		for word != "" {
			var op string
			if operand {
				if word[0] == '-' || word[0] == '!' {
					op = word[:1]
				} else {
					op = operatorPrefix(word)
				}
			} else {
				op = operatorPrefix(word)
				if op != "" {
					operand = true
				}
			}
			if op == "" {
				tokens = append(tokens, token{text: word, pos: pos})
				operand = false
				return
			}
			tokens = append(tokens, token{text: op, pos: pos})
			word = word[len(op):]
			pos += len(op)
		}
	}

	start := -1
	for i := 0; i < len(text); i++ {
		c := text[i]
		switch c {
		case ' ', '\t', '\r', '\n', '(', ')', ',':
			if start >= 0 {
				emitWord(text[start:i], start)
				start = -1
			}
			switch c {
			case '(', ',':
				tokens = append(tokens, token{text: string(c), pos: i})
				operand = true
			case ')':
				tokens = append(tokens, token{text: ")", pos: i})
				operand = false
			}
		default:
			if start < 0 {
				start = i
			}
		}
	}
	if start >= 0 {
		emitWord(text[start:], start)
	}
	return tokens
}
