package ecs

import (
	"fmt"
	"strings"
)

type FocusLayer uint8

const (
	FocusNever FocusLayer = iota
	FocusGame
	FocusMenu
	FocusOverlay
)

var focusLayerNames = [...]string{
	FocusNever:   "Never",
	FocusGame:    "Game",
	FocusMenu:    "Menu",
	FocusOverlay: "Overlay",
}

func (l FocusLayer) String() string {
	if int(l) < len(focusLayerNames) {
		return focusLayerNames[l]
	}
	return fmt.Sprintf("FocusLayer(%d)", l)
}

// ParseFocusLayer matches layer names case-insensitively.
func ParseFocusLayer(s string) (FocusLayer, error) {
	for i, name := range focusLayerNames {
		if strings.EqualFold(name, s) {
			return FocusLayer(i), nil
		}
	}
	return FocusNever, fmt.Errorf("unknown focus layer %q", s)
}
