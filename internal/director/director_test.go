package director

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/ivlev/stellarfield/internal/config"
	"github.com/ivlev/stellarfield/internal/particle"
)

func TestPickOrigin(t *testing.T) {
	d := NewDirector()

	if o := d.PickOrigin(nil); o.X != 0.5 || o.Y != 0.5 {
		t.Errorf("empty field should centre the origin, got %+v", o)
	}

	// a dense clump near (0.7, 0.2) and a few scattered stars
	var ps []particle.Particle
	for i := 0; i < 10; i++ {
		ps = append(ps, particle.Particle{X: 0.70 + float64(i%2)*0.02, Y: 0.20 + float64(i%3)*0.01, Scale: 1})
	}
	ps = append(ps,
		particle.Particle{X: 0.1, Y: 0.9, Scale: 2},
		particle.Particle{X: 0.4, Y: 0.5, Scale: 2},
	)

	o := d.PickOrigin(ps)
	if math.Abs(o.X-0.71) > 0.02 || math.Abs(o.Y-0.21) > 0.02 {
		t.Errorf("origin should land in the clump, got %+v", o)
	}

	edge := d.PickOrigin([]particle.Particle{{X: 0, Y: 1, Scale: 1}})
	if edge.X != d.Margin || edge.Y != 1-d.Margin {
		t.Errorf("origin should respect the margin, got %+v", edge)
	}
}

func TestOriginPrefersManifest(t *testing.T) {
	d := NewDirector()
	it := Item{Input: "a.png", Origin: &config.ZoomOrigin{X: 1.4, Y: 0.3}}
	if o := d.Origin(it, nil); o.X != 1 || o.Y != 0.3 {
		t.Errorf("manifest origin should win (clamped), got %+v", o)
	}
}

func TestManifestWriteRead(t *testing.T) {
	d := NewDirector()
	m := d.Plan([]string{"in/orion.png", "in/deck.pdf"})
	m.Items[0].Origin = &config.ZoomOrigin{X: 0.25, Y: 0.75}
	m.Items[1].Hints = "in/deck.yaml"

	path := filepath.Join(t.TempDir(), "batch.yaml")
	if err := WriteManifest(m, path); err != nil {
		t.Fatalf("WriteManifest: %v", err)
	}
	got, err := ReadManifest(path)
	if err != nil {
		t.Fatalf("ReadManifest: %v", err)
	}

	if got.Version != ManifestVersion || len(got.Items) != 2 {
		t.Fatalf("unexpected manifest %+v", got)
	}
	if got.Items[0].Name != "orion" || got.Items[0].Origin == nil || got.Items[0].Origin.Y != 0.75 {
		t.Errorf("item 0 %+v", got.Items[0])
	}
	if got.Items[1].Origin != nil || got.Items[1].Hints != "in/deck.yaml" {
		t.Errorf("item 1 %+v", got.Items[1])
	}
}

func TestReadManifestRejectsMissingInput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	WriteManifest(&Manifest{Items: []Item{{Name: "nothing"}}}, path)
	if _, err := ReadManifest(path); err == nil {
		t.Error("item without input must be rejected")
	}
}
