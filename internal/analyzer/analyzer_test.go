package analyzer

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"
	"reflect"
	"testing"

	"github.com/ivlev/stellarfield/internal/config"
)

func blackImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: color.Black}, image.Point{}, draw.Src)
	return img
}

func gray(v uint8) color.RGBA {
	return color.RGBA{R: v, G: v, B: v, A: 255}
}

// drawStar paints a 3x3 blob with its peak at (cx, cy).
func drawStar(img *image.RGBA, cx, cy int) {
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			v := uint8(120)
			switch {
			case dx == 0 && dy == 0:
				v = 255
			case dx == 0 || dy == 0:
				v = 180
			}
			img.SetRGBA(cx+dx, cy+dy, gray(v))
		}
	}
}

func TestStarDetectorFlatField(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 200, 150))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: gray(128)}, image.Point{}, draw.Src)

	got := NewStarDetector().Detect(context.Background(), img)
	if len(got) != 0 {
		t.Fatalf("flat field must yield no stars, got %d", len(got))
	}
}

func TestStarDetectorCountsSeparatedSources(t *testing.T) {
	img := blackImage(400, 300)
	n := 0
	for j := 0; j < 5; j++ {
		for i := 0; i < 8; i++ {
			drawStar(img, 31+40*i, 33+50*j)
			n++
		}
	}

	got, stats := NewStarDetector().DetectWithStats(context.Background(), img)
	lo, hi := int(math.Floor(float64(n)*0.8)), int(math.Ceil(float64(n)*1.2))
	if len(got) < lo || len(got) > hi {
		t.Fatalf("expected %d..%d stars, got %d (threshold %.2f, sigma %.2f)", lo, hi, len(got), stats.Threshold, stats.Sigma)
	}

	for _, p := range got {
		if p.X < 0 || p.X > 1 || p.Y < 0 || p.Y > 1 {
			t.Errorf("position not normalized: %+v", p)
		}
		if p.Z < 0 || p.Z > 5 {
			t.Errorf("depth out of range: %f", p.Z)
		}
		if p.Scale <= 0 {
			t.Errorf("scale must be positive: %f", p.Scale)
		}
		if p.Color != "#ffffff" {
			t.Errorf("color should be sampled from the peak pixel, got %s", p.Color)
		}
	}
}

func TestStarDetectorSquareAtCenter(t *testing.T) {
	img := blackImage(100, 100)
	for y := 48; y <= 52; y++ {
		for x := 48; x <= 52; x++ {
			img.SetRGBA(x, y, gray(255))
		}
	}

	got := NewStarDetector().Detect(context.Background(), img)
	if len(got) == 0 {
		t.Fatal("expected at least one star")
	}
	best := math.Inf(1)
	for _, p := range got {
		best = math.Min(best, math.Hypot(p.X-0.5, p.Y-0.5))
	}
	if best > 0.05 {
		t.Errorf("closest star is %.3f away from the centre", best)
	}
}

func TestStarDetectorIsolationRejects(t *testing.T) {
	img := blackImage(120, 120)
	drawStar(img, 60, 60)

	d := NewStarDetector()
	d.IsolationSigma = 1e9
	got, stats := d.DetectWithStats(context.Background(), img)
	if len(got) != 0 {
		t.Errorf("expected all candidates rejected, got %d", len(got))
	}
	if stats.Rejected == 0 {
		t.Error("expected rejected candidates to be counted")
	}
}

func TestStarDetectorDownscales(t *testing.T) {
	img := blackImage(2000, 1000)
	for y := 496; y <= 504; y++ {
		for x := 1496; x <= 1504; x++ {
			img.SetRGBA(x, y, gray(255))
		}
	}

	got, stats := NewStarDetector().DetectWithStats(context.Background(), img)
	if stats.Width != 1024 || stats.Height != 512 {
		t.Fatalf("expected 1024x512 analysis size, got %dx%d", stats.Width, stats.Height)
	}
	if len(got) == 0 {
		t.Fatal("expected the star to survive downscaling")
	}
	if math.Abs(got[0].X-0.75) > 0.02 || math.Abs(got[0].Y-0.5) > 0.02 {
		t.Errorf("unexpected position %.3f,%.3f", got[0].X, got[0].Y)
	}
}

func TestStarDetectorSeeded(t *testing.T) {
	img := blackImage(200, 200)
	drawStar(img, 50, 50)
	drawStar(img, 150, 120)

	d := NewStarDetector()
	d.Seed = 42
	a := d.Detect(context.Background(), img)
	b := d.Detect(context.Background(), img)
	if !reflect.DeepEqual(a, b) {
		t.Error("seeded detector must be deterministic")
	}
}

func TestDetectBytes(t *testing.T) {
	d := NewStarDetector()
	if got := d.DetectBytes(context.Background(), []byte("garbage")); got == nil || len(got) != 0 {
		t.Errorf("undecodable input must give an empty, non-nil result, got %v", got)
	}

	img := blackImage(100, 100)
	drawStar(img, 40, 40)
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	if got := d.DetectBytes(context.Background(), buf.Bytes()); len(got) != 1 {
		t.Errorf("expected 1 star from png bytes, got %d", len(got))
	}
}

func TestStarDetectorCancelled(t *testing.T) {
	img := blackImage(300, 300)
	drawStar(img, 100, 100)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	got := NewStarDetector().Detect(ctx, img)
	if got == nil {
		t.Error("cancelled detection still returns a non-nil result")
	}
}

func TestDetectorRegistry(t *testing.T) {
	tests := []struct {
		variant string
		wantErr bool
	}{
		{"star", false},
		{"", false}, // default
		{"ai", true},
		{"contrast", true},
	}

	for _, tt := range tests {
		t.Run(tt.variant, func(t *testing.T) {
			detector, err := NewDetector(tt.variant, config.DefaultDetector())

			if tt.wantErr {
				if err == nil {
					t.Error("Expected error, got nil")
				}
			} else {
				if err != nil {
					t.Errorf("Unexpected error: %v", err)
				}
				if detector == nil {
					t.Error("Expected detector, got nil")
				}
			}
		})
	}
}
