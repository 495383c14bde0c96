package scene

import "github.com/delaneyj/signalexpr/ecs"

type Transform struct {
	Position [3]float32 `yaml:"position"`
	Rotation [4]float32 `yaml:"rotation"`
	Scale    float64    `yaml:"scale"`
}

type Light struct {
	Intensity float64    `yaml:"intensity"`
	Color     [3]float32 `yaml:"color"`
	On        bool       `yaml:"on"`
}

type Button struct {
	Pressed bool    `yaml:"pressed"`
	Value   float64 `yaml:"value"`
}

// RegisterComponents makes the scene component types available in w.
func RegisterComponents(w *ecs.World) {
	ecs.RegisterComponent[Transform](w, "transform")
	ecs.RegisterComponent[Light](w, "light")
	ecs.RegisterComponent[Button](w, "button")
}
