package particle

import (
	"math/rand"
	"strings"
)

// MaxDepth is the upper bound of the depth factor z.
const MaxDepth = 5.0

// Particle is one point light. X and Y are normalized to the source image, Z is
// the depth factor (0 = locked to the background, larger = closer to the camera).
type Particle struct {
	X     float64  `yaml:"x"`
	Y     float64  `yaml:"y"`
	Z     float64  `yaml:"z"`
	Scale float64  `yaml:"scale"`
	Alpha *float64 `yaml:"alpha,omitempty"`
	Color string   `yaml:"color,omitempty"` // empty = global particle color
}

// AlphaOr returns the particle alpha or def when unset.
func (p Particle) AlphaOr(def float64) float64 {
	if p.Alpha == nil {
		return def
	}
	return *p.Alpha
}

// DetectionResult is the ordered output of a detector.
type DetectionResult []Particle

// CubedDepth draws z from pow(u, 3) * MaxDepth: most particles stay shallow,
// a few come close.
func CubedDepth(r *rand.Rand) float64 {
	u := r.Float64()
	return u * u * u * MaxDepth
}

func ptr(v float64) *float64 { return &v }

// Hotspot is an externally supplied placement hint, coordinates in percent.
type Hotspot struct {
	X float64 `yaml:"x" json:"x"`
	Y float64 `yaml:"y" json:"y"`
}

// Hints is the sparse output of the description service.
type Hints struct {
	Hotspots []Hotspot `yaml:"hotspots" json:"hotspots"`
	Colors   []string  `yaml:"colors" json:"colors"`
}

// Empty reports whether h carries no usable hotspot.
func (h *Hints) Empty() bool {
	return h == nil || len(h.Hotspots) == 0
}

func (h *Hints) colorAt(i int) string {
	if h == nil || len(h.Colors) == 0 {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(h.Colors[i%len(h.Colors)]))
}

// Mode tells which source produced the particles.
type Mode string

const (
	ModeReal       Mode = "real"
	ModeAIMap      Mode = "ai-map"
	ModeProcedural Mode = "procedural"
)
