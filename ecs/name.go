package ecs

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var ErrInvalidName = errors.New("invalid entity name")

// Name identifies an entity inside a scene. Scene may be empty for entities
// that live outside any scene.
type Name struct {
	Scene  string
	Entity string
}

func (n Name) String() string {
	if n.Scene == "" {
		return n.Entity
	}
	return n.Scene + ":" + n.Entity
}

func (n Name) IsZero() bool {
	return n.Scene == "" && n.Entity == ""
}

// ParseName resolves text against scope. "scene:entity" is absolute, a bare
// "entity" takes the scene of scope. Names are NFC normalised so that two
// spellings of the same name resolve to the same entity.
func ParseName(text string, scope Name) (Name, error) {
	text = norm.NFC.String(strings.TrimSpace(text))
	if text == "" {
		return Name{}, fmt.Errorf("%w: empty name", ErrInvalidName)
	}

	scene, entity, absolute := strings.Cut(text, ":")
	if !absolute {
		scene, entity = scope.Scene, text
	}
	if entity == "" {
		return Name{}, fmt.Errorf("%w: %q has no entity part", ErrInvalidName, text)
	}
	if strings.ContainsAny(entity, ":/#()[], \t\r\n") || strings.ContainsAny(scene, "/#()[], \t\r\n") {
		return Name{}, fmt.Errorf("%w: %q contains reserved characters", ErrInvalidName, text)
	}
	return Name{Scene: scene, Entity: entity}, nil
}

// ScopeFor returns the scope used to resolve names relative to n.
func ScopeFor(n Name) Name {
	return Name{Scene: n.Scene}
}
