package scene

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"os"
	"reflect"
	"slices"

	"github.com/delaneyj/signalexpr/ecs"
	"github.com/delaneyj/signalexpr/signals"
	"gopkg.in/yaml.v3"
)

// File is a scene description: entities with their components and signals.
type File struct {
	// Scene is the scope relative names in the file resolve against.
	Scene string `yaml:"scene"`

	// Focus is the primary focus layer after loading. Empty leaves it as is.
	Focus string `yaml:"focus,omitempty"`

	Entities []Entity `yaml:"entities"`
}

type Entity struct {
	Name string `yaml:"name"`

	// Components maps a registered component name to its field values.
	Components map[string]yaml.Node `yaml:"components,omitempty"`

	// Signals maps a signal name to a number (a value) or a string (a
	// binding expression).
	Signals map[string]yaml.Node `yaml:"signals,omitempty"`
}

func (f *File) Scope() ecs.Name {
	return ecs.Name{Scene: f.Scene}
}

// Parse decodes a scene, rejecting unknown fields.
func Parse(data []byte) (*File, error) {
	var f File
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&f); err != nil {
		return nil, fmt.Errorf("failed to parse scene: %w", err)
	}
	if err := f.validate(); err != nil {
		return nil, fmt.Errorf("invalid scene: %w", err)
	}
	return &f, nil
}

func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scene file: %w", err)
	}
	return Parse(data)
}

func (f *File) validate() error {
	seen := map[ecs.Name]bool{}
	for i, e := range f.Entities {
		name, err := ecs.ParseName(e.Name, f.Scope())
		if err != nil {
			return fmt.Errorf("entity %d: %w", i, err)
		}
		if seen[name] {
			return fmt.Errorf("entity %s is declared twice", name)
		}
		seen[name] = true
	}
	if f.Focus != "" {
		if _, err := ecs.ParseFocusLayer(f.Focus); err != nil {
			return err
		}
	}
	return nil
}

// Loaded holds the references a scene created. Closing it lets the registry
// retire signals nothing else uses.
type Loaded struct {
	Scope    ecs.Name
	Entities []ecs.Name
	Refs     []*signals.Ref
}

func (l *Loaded) Close() {
	for _, r := range l.Refs {
		r.Close()
	}
	l.Refs = nil
}

// Apply creates the scene's entities in the manager's world and sets their
// components, signals and the focus layer in mode.
func (f *File) Apply(mgr *signals.Manager, mode ecs.Mode) (*Loaded, error) {
	w := mgr.World()
	RegisterComponents(w)

	perms := []ecs.Resource{ecs.Signals, ecs.Focus}
	for _, e := range f.Entities {
		for component := range e.Components {
			ct, ok := w.ComponentType(component)
			if !ok {
				return nil, fmt.Errorf("entity %s: %w: %q", e.Name, ecs.ErrUnknownComponent, component)
			}
			perms = append(perms, ct.Resource())
		}
	}
	lock := w.StartTransaction(mode, ecs.Write(perms...))
	defer lock.Release()

	loaded := &Loaded{Scope: f.Scope()}
	for _, e := range f.Entities {
		if err := f.applyEntity(mgr, lock, e, loaded); err != nil {
			loaded.Close()
			return nil, fmt.Errorf("entity %s: %w", e.Name, err)
		}
	}

	if f.Focus != "" {
		layer, err := ecs.ParseFocusLayer(f.Focus)
		if err != nil {
			loaded.Close()
			return nil, err
		}
		w.SetPrimaryFocus(lock, layer)
	}
	return loaded, nil
}

func (f *File) applyEntity(mgr *signals.Manager, lock *ecs.Lock, e Entity, loaded *Loaded) error {
	w := mgr.World()
	name, err := ecs.ParseName(e.Name, f.Scope())
	if err != nil {
		return err
	}
	id, err := w.NewEntity(name)
	if err != nil {
		return err
	}
	loaded.Entities = append(loaded.Entities, name)

	for _, component := range sortedKeys(e.Components) {
		ct, _ := w.ComponentType(component)
		node := e.Components[component]
		value := reflect.New(ct.Type())
		if err := node.Decode(value.Interface()); err != nil {
			return fmt.Errorf("component %s: %w", component, err)
		}
		if err := w.SetComponent(lock, id, ct, value.Interface()); err != nil {
			return err
		}
	}

	for _, signal := range sortedKeys(e.Signals) {
		ref, err := mgr.RefName(name, signal)
		if err != nil {
			return err
		}
		loaded.Refs = append(loaded.Refs, ref)
		if err := applySignal(lock, ref, e.Signals[signal], f.Scope()); err != nil {
			return fmt.Errorf("signal %s: %w", signal, err)
		}
	}
	return nil
}

var errSignalNode = errors.New("signal must be a number, a bool or an expression string")

func applySignal(lock *ecs.Lock, ref *signals.Ref, node yaml.Node, scope ecs.Name) error {
	if node.Kind != yaml.ScalarNode {
		return errSignalNode
	}
	switch node.Tag {
	case "!!int", "!!float":
		var v float64
		if err := node.Decode(&v); err != nil {
			return err
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("value %s is not finite", node.Value)
		}
		ref.SetValue(lock, v)
	case "!!bool":
		var b bool
		if err := node.Decode(&b); err != nil {
			return err
		}
		if b {
			ref.SetValue(lock, 1)
		} else {
			ref.SetValue(lock, 0)
		}
	case "!!str":
		return ref.SetBindingText(lock, node.Value, scope)
	default:
		return fmt.Errorf("%w, got %s", errSignalNode, node.Tag)
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
