package signals

import (
	"errors"
	"fmt"
)

// ErrParse matches every expression parse failure.
var ErrParse = errors.New("expression parse error")

type ParseErrorKind uint8

const (
	ErrMissingClose ParseErrorKind = iota + 1
	ErrUnexpectedOperator
	ErrUnexpectedEnd
	ErrTooManyNodes
	ErrUnknownIdentifier
	ErrUnknownFunction
	ErrBadReference
)

func (k ParseErrorKind) String() string {
	switch k {
	case ErrMissingClose:
		return "missing close token"
	case ErrUnexpectedOperator:
		return "unexpected operator"
	case ErrUnexpectedEnd:
		return "unexpected end of expression"
	case ErrTooManyNodes:
		return "too many nodes"
	case ErrUnknownIdentifier:
		return "unexpected identifier/signal"
	case ErrUnknownFunction:
		return "unknown function"
	case ErrBadReference:
		return "invalid reference"
	default:
		return fmt.Sprintf("ParseErrorKind(%d)", k)
	}
}

// ParseError describes why an expression could not be parsed. Pos is the
// byte offset of Token in Text.
type ParseError struct {
	Kind  ParseErrorKind
	Text  string
	Token string
	Pos   int
	Err   error
}

func (e *ParseError) Error() string {
	msg := fmt.Sprintf("%s at offset %d", e.Kind, e.Pos)
	if e.Token != "" {
		msg += fmt.Sprintf(" (%q)", e.Token)
	}
	msg += fmt.Sprintf(" in %q", e.Text)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ParseError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrParse}
	}
	return []error{ErrParse, e.Err}
}

// IsParseError reports whether err is a parse failure of the given kind.
func IsParseError(err error, kind ParseErrorKind) bool {
	var pe *ParseError
	if errors.As(err, &pe) {
		return pe.Kind == kind
	}
	return false
}
