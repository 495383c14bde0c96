package ecs

import (
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strings"
)

var ErrUnknownComponent = errors.New("unknown component")

// ComponentType is a registered component. Its values are stored per entity
// and guarded by the component's own resource lock.
type ComponentType struct {
	name   string
	typ    reflect.Type
	values map[EntityID]any
}

func (c *ComponentType) Name() string {
	return c.name
}

func (c *ComponentType) Type() reflect.Type {
	return c.typ
}

func (c *ComponentType) Resource() Resource {
	return ComponentResource(c.name)
}

// RegisterComponent makes T available as a component called name. Registering
// the same name twice returns the existing type if T matches and panics otherwise.
func RegisterComponent[T any](w *World, name string) *ComponentType {
	typ := reflect.TypeFor[T]()
	name = strings.ToLower(name)

	w.mu.Lock()
	defer w.mu.Unlock()
	if existing, ok := w.components[name]; ok {
		if existing.typ != typ {
			panic(fmt.Sprintf("component %q already registered as %s", name, existing.typ))
		}
		return existing
	}
	ct := &ComponentType{
		name:   name,
		typ:    typ,
		values: map[EntityID]any{},
	}
	w.components[name] = ct
	return ct
}

func (w *World) ComponentType(name string) (*ComponentType, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	ct, ok := w.components[strings.ToLower(name)]
	return ct, ok
}

// ComponentTypes returns every registered component, sorted by name.
func (w *World) ComponentTypes() []*ComponentType {
	w.mu.RLock()
	cts := make([]*ComponentType, 0, len(w.components))
	for _, ct := range w.components {
		cts = append(cts, ct)
	}
	w.mu.RUnlock()
	slices.SortFunc(cts, func(a, b *ComponentType) int {
		return strings.Compare(a.name, b.name)
	})
	return cts
}

// LookupField resolves "component" plus a dotted path inside it.
func (w *World) LookupField(component, path string) (Field, error) {
	ct, ok := w.ComponentType(component)
	if !ok {
		return Field{}, fmt.Errorf("%w: %q", ErrUnknownComponent, component)
	}
	fp, err := LookupPath(ct.typ, path)
	if err != nil {
		return Field{}, fmt.Errorf("component %s: %w", ct.name, err)
	}
	return Field{FieldPath: fp, Component: ct}, nil
}

// Component returns a pointer to the entity's component value.
func (w *World) Component(lock *Lock, ct *ComponentType, id EntityID) (any, bool) {
	if !lock.Has(ct.Resource(), AccessRead) {
		panic(fmt.Sprintf("lock does not permit reading component %s", ct.name))
	}
	v, ok := ct.values[id]
	return v, ok
}

// SetComponent stores value, which must be a *T of the registered type.
func (w *World) SetComponent(lock *Lock, id EntityID, ct *ComponentType, value any) error {
	if !lock.Has(ct.Resource(), AccessWrite) {
		panic(fmt.Sprintf("lock does not permit writing component %s", ct.name))
	}
	if reflect.TypeOf(value) != reflect.PointerTo(ct.typ) {
		return fmt.Errorf("%w: component %s wants *%s, got %T", ErrTypeMismatch, ct.name, ct.typ, value)
	}
	if !w.Exists(id) {
		return fmt.Errorf("entity %d does not exist", id)
	}
	ct.values[id] = value
	return nil
}

func (w *World) RemoveComponent(lock *Lock, id EntityID, ct *ComponentType) {
	if !lock.Has(ct.Resource(), AccessWrite) {
		panic(fmt.Sprintf("lock does not permit writing component %s", ct.name))
	}
	delete(ct.values, id)
}
