package particle

import (
	"math/rand"
	"reflect"
	"testing"
)

func seeded(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}

func TestResolveRealDetections(t *testing.T) {
	det := make(DetectionResult, 120)
	for i := range det {
		det[i] = Particle{X: 0.5, Y: 0.5, Scale: float64(i)}
	}

	r := NewResolver(100, seeded(1))
	got, mode := r.Resolve(det, &Hints{Hotspots: []Hotspot{{X: 10, Y: 10}}}, 500)
	if mode != ModeReal {
		t.Fatalf("expected mode real, got %s", mode)
	}
	if len(got) != 100 {
		t.Fatalf("expected cap of 100 particles, got %d", len(got))
	}
	// largest scale first; the 20 smallest are dropped
	for _, p := range got {
		if p.Scale < 20 {
			t.Errorf("particle with scale %f should have been dropped", p.Scale)
		}
	}
	if det[0].Scale != 0 {
		t.Error("Resolve must not reorder the caller's detection result")
	}
}

func TestResolveSmallDetectionIsUnreliable(t *testing.T) {
	det := make(DetectionResult, MinReliableDetections) // exactly 50 is not enough
	r := NewResolver(0, seeded(2))
	got, mode := r.Resolve(det, nil, 30)
	if mode != ModeProcedural {
		t.Fatalf("expected procedural, got %s", mode)
	}
	if len(got) != 30 {
		t.Errorf("expected 30 particles, got %d", len(got))
	}
	for _, p := range got {
		if p.Z < 0 || p.Z > MaxDepth {
			t.Errorf("depth out of range: %f", p.Z)
		}
		if p.X < 0 || p.X >= 1 || p.Y < 0 || p.Y >= 1 {
			t.Errorf("position out of range: %+v", p)
		}
	}
}

func TestResolveHotspotClusters(t *testing.T) {
	hints := &Hints{
		Hotspots: []Hotspot{{X: 50, Y: 50}, {X: 30, Y: 70}, {X: 60, Y: 40}},
		Colors:   []string{"#FF0000", "00ff00"},
	}
	r := NewResolver(0, seeded(3))
	got, mode := r.Resolve(nil, hints, 10)
	if mode != ModeAIMap {
		t.Fatalf("expected ai-map, got %s", mode)
	}
	// every hotspot is at least 0.15 away from the border, nothing is discarded
	if want := len(hints.Hotspots) * DefaultClusterSize; len(got) != want {
		t.Fatalf("expected %d particles, got %d", want, len(got))
	}
	if got[0].Color != "#ff0000" || got[DefaultClusterSize].Color != "#00ff00" || got[2*DefaultClusterSize].Color != "#ff0000" {
		t.Errorf("unexpected cluster colors: %s %s %s", got[0].Color, got[DefaultClusterSize].Color, got[2*DefaultClusterSize].Color)
	}
	for _, p := range got {
		if p.Alpha == nil {
			t.Fatal("hotspot particles carry alpha")
		}
	}
}

func TestResolveHotspotDiscardsOutside(t *testing.T) {
	hints := &Hints{Hotspots: []Hotspot{{X: 0, Y: 0}}}
	got, _ := NewResolver(0, seeded(4)).Resolve(nil, hints, 0)
	if len(got) == 0 || len(got) >= DefaultClusterSize {
		t.Fatalf("corner hotspot should lose some particles, got %d", len(got))
	}
	for _, p := range got {
		if p.X < 0 || p.X > 1 || p.Y < 0 || p.Y > 1 {
			t.Errorf("particle outside unit square: %+v", p)
		}
	}
}

func TestResolveDeterministicWithSeed(t *testing.T) {
	hints := &Hints{Hotspots: []Hotspot{{X: 5, Y: 95}, {X: 50, Y: 50}}}
	a, _ := NewResolver(0, seeded(7)).Resolve(nil, hints, 0)
	b, _ := NewResolver(0, seeded(7)).Resolve(nil, hints, 0)
	if !reflect.DeepEqual(a, b) {
		t.Error("same seed must yield identical particles")
	}
}

func TestEmptyHintsFallThrough(t *testing.T) {
	r := NewResolver(0, seeded(5))
	if _, mode := r.Resolve(nil, &Hints{Colors: []string{"#fff"}}, 5); mode != ModeProcedural {
		t.Errorf("hints without hotspots must behave like no hint, got %s", mode)
	}
}

func TestResolveRespectsDeviceCap(t *testing.T) {
	tests := []struct {
		name  string
		hints *Hints
		mode  Mode
	}{
		{"procedural", nil, ModeProcedural},
		{"hotspots", &Hints{Hotspots: []Hotspot{{X: 50, Y: 50}, {X: 40, Y: 40}, {X: 60, Y: 60}}}, ModeAIMap},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewResolver(MaxParticlesConstrained, seeded(3))
			r.ClusterSize = 1000
			r.Jitter = 0.01
			got, mode := r.Resolve(nil, tt.hints, 5000)
			if mode != tt.mode {
				t.Fatalf("mode %s, want %s", mode, tt.mode)
			}
			if len(got) != MaxParticlesConstrained {
				t.Errorf("expected %d particles, got %d", MaxParticlesConstrained, len(got))
			}
		})
	}
}
