package signals

import (
	"errors"
	"fmt"
	"strings"

	"github.com/delaneyj/signalexpr/ecs"
	"golang.org/x/text/unicode/norm"
)

var ErrInvalidSignal = errors.New("invalid signal name")

// SignalKey identifies a signal: an entity plus a name. Keys are comparable
// and equal iff both fields match.
type SignalKey struct {
	Entity ecs.EntityRef
	Name   string
}

func NewSignalKey(entity ecs.EntityRef, name string) (SignalKey, error) {
	name = norm.NFC.String(strings.TrimSpace(name))
	if err := validateSignalName(name); err != nil {
		return SignalKey{}, err
	}
	if !entity.Valid() {
		return SignalKey{}, fmt.Errorf("%w: signal %q has no entity", ErrInvalidSignal, name)
	}
	return SignalKey{Entity: entity, Name: name}, nil
}

func validateSignalName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty", ErrInvalidSignal)
	}
	if strings.ContainsAny(name, "/#(),:? \t\r\n") {
		return fmt.Errorf("%w: %q contains reserved characters", ErrInvalidSignal, name)
	}
	return nil
}

// ParseSignalKey parses "entity/signal" with the entity resolved against scope.
func ParseSignalKey(w *ecs.World, text string, scope ecs.Name) (SignalKey, error) {
	entityText, signalName, ok := strings.Cut(strings.TrimSpace(text), "/")
	if !ok {
		return SignalKey{}, fmt.Errorf("%w: %q is not of the form entity/signal", ErrInvalidSignal, text)
	}
	name, err := ecs.ParseName(entityText, scope)
	if err != nil {
		return SignalKey{}, fmt.Errorf("signal %q: %w", text, err)
	}
	return NewSignalKey(w.Ref(name), signalName)
}

func (k SignalKey) String() string {
	return k.Entity.String() + "/" + k.Name
}
