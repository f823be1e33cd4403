// Package director plans a batch: manifests, zoom origins and reports.
package director

import (
	"math"

	"github.com/ivlev/stellarfield/internal/config"
	"github.com/ivlev/stellarfield/internal/particle"
)

// Director picks a zoom origin for items whose manifest entry has none.
type Director struct {
	Grid int // cells per side
	// Margin keeps the origin away from the image border
	Margin float64
}

// NewDirector creates a new Director with default settings
func NewDirector() *Director {
	return &Director{Grid: 8, Margin: 0.05}
}

// PickOrigin returns the brightness-weighted centroid of the densest grid
// cell. Without particles it returns the image centre.
func (d *Director) PickOrigin(particles []particle.Particle) config.ZoomOrigin {
	grid := d.Grid
	if grid <= 0 {
		grid = 8
	}
	type cell struct{ w, x, y float64 }
	cells := make([]cell, grid*grid)

	for _, p := range particles {
		if p.X < 0 || p.X > 1 || p.Y < 0 || p.Y > 1 {
			continue
		}
		w := p.Scale * p.AlphaOr(1)
		if w <= 0 {
			continue
		}
		cx := min(int(p.X*float64(grid)), grid-1)
		cy := min(int(p.Y*float64(grid)), grid-1)
		c := &cells[cy*grid+cx]
		c.w += w
		c.x += p.X * w
		c.y += p.Y * w
	}

	best := -1
	for i, c := range cells {
		if c.w > 0 && (best < 0 || c.w > cells[best].w) {
			best = i
		}
	}
	if best < 0 {
		return config.ZoomOrigin{X: 0.5, Y: 0.5}
	}
	c := cells[best]
	return config.ZoomOrigin{
		X: clampMargin(c.x/c.w, d.Margin),
		Y: clampMargin(c.y/c.w, d.Margin),
	}
}

// Origin resolves the origin for a manifest item.
func (d *Director) Origin(it Item, particles []particle.Particle) config.ZoomOrigin {
	if it.Origin != nil {
		return it.Origin.Clamp()
	}
	return d.PickOrigin(particles)
}

// Plan builds a manifest for plain inputs, one item per path.
func (d *Director) Plan(inputs []string) *Manifest {
	m := &Manifest{Version: ManifestVersion}
	for _, in := range inputs {
		m.Items = append(m.Items, Item{Name: DisplayName(in), Input: in})
	}
	return m
}

func clampMargin(v, margin float64) float64 {
	return math.Max(margin, math.Min(1-margin, v))
}
