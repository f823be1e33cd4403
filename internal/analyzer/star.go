package analyzer

import (
	"context"
	"fmt"
	"image"
	"math"
	"math/rand"
	"runtime"
	"time"

	"github.com/ivlev/stellarfield/internal/config"
	"github.com/ivlev/stellarfield/internal/particle"
	"github.com/ivlev/stellarfield/internal/source"
)

// StarDetector extracts point sources with a local background estimate and an
// adaptive k-sigma threshold. All constants are empirical and exposed.
type StarDetector struct {
	MaxAnalysisWidth int     // wider images are downscaled first
	BlockSize        int     // background block edge in pixels
	BlockStride      int     // sampling stride inside a block
	StatsStride      int     // sampling stride for residual statistics
	KSigma           float64 // threshold = mean + KSigma*sigma
	MinThreshold     float64 // absolute threshold floor (luminance units)
	ScanStep         int     // candidate scan step
	Margin           int     // pixels skipped at every edge
	RingRadius       int     // isolation ring radius
	IsolationSigma   float64 // required peak - ring average, in sigmas
	SuppressRadius   int     // accepted stars claim this neighbourhood
	ScaleDivisor     float64
	MinScale         float64
	MaxScale         float64
	Workers          int
	Seed             int64 // 0 = seeded from the clock
}

// NewStarDetector creates a detector with default settings
func NewStarDetector() *StarDetector {
	return NewStarDetectorFromConfig(config.DefaultDetector())
}

func NewStarDetectorFromConfig(c config.DetectorConfig) *StarDetector {
	c = c.Clamp()
	return &StarDetector{
		MaxAnalysisWidth: c.MaxAnalysisWidth,
		BlockSize:        c.BlockSize,
		BlockStride:      c.BlockStride,
		StatsStride:      c.StatsStride,
		KSigma:           c.KSigma,
		MinThreshold:     c.MinThreshold,
		ScanStep:         c.ScanStep,
		Margin:           max(4, c.RingRadius+1),
		RingRadius:       c.RingRadius,
		IsolationSigma:   c.IsolationSigma,
		SuppressRadius:   c.RingRadius + 2,
		ScaleDivisor:     40,
		MinScale:         0.4,
		MaxScale:         3,
		Workers:          runtime.NumCPU(),
	}
}

// Detect implements Detector.
func (d *StarDetector) Detect(ctx context.Context, img image.Image) particle.DetectionResult {
	res, _ := d.DetectWithStats(ctx, img)
	return res
}

// DetectBytes decodes data and detects stars. Decode failures give an empty result.
func (d *StarDetector) DetectBytes(ctx context.Context, data []byte) particle.DetectionResult {
	img, _, err := source.Decode(data)
	if err != nil {
		return particle.DetectionResult{}
	}
	return d.Detect(ctx, img)
}

// DetectWithStats runs the detection and also returns the statistics it used.
// A cancelled context returns whatever was found before the cancellation.
func (d *StarDetector) DetectWithStats(ctx context.Context, img image.Image) (particle.DetectionResult, Stats) {
	out := particle.DetectionResult{}
	if img == nil || img.Bounds().Empty() {
		return out, Stats{}
	}

	rgba := toAnalysisRGBA(img, d.MaxAnalysisWidth)
	w, h := rgba.Rect.Dx(), rgba.Rect.Dy()
	stats := Stats{Width: w, Height: h}

	luma, err := luminance(ctx, rgba, d.Workers)
	if err != nil {
		return out, stats
	}
	bg, err := blockFloors(ctx, luma, w, h, d.BlockSize, d.BlockStride, d.Workers)
	if err != nil {
		return out, stats
	}

	res := func(x, y int) float64 {
		v := float64(luma[y*w+x] - bg.at(x, y))
		if v < 0 {
			return 0
		}
		return v
	}

	stats.Mean, stats.Sigma = residualStats(res, w, h, d.StatsStride)
	stats.Threshold = math.Max(stats.Mean+d.KSigma*stats.Sigma, d.MinThreshold)

	seed := d.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	margin := max(d.Margin, d.RingRadius)
	inside := func(x, y int) bool {
		return x >= margin && y >= margin && x < w-margin && y < h-margin
	}

	claimed := make([]bool, w*h)
	claim := func(cx, cy int) {
		r := d.SuppressRadius
		for y := max(0, cy-r); y <= min(h-1, cy+r); y++ {
			for x := max(0, cx-r); x <= min(w-1, cx+r); x++ {
				claimed[y*w+x] = true
			}
		}
	}

	step := max(1, d.ScanStep)
	for y := margin; y < h-margin; y += step {
		if ctx.Err() != nil {
			break
		}
		for x := margin; x < w-margin; x += step {
			if claimed[y*w+x] || res(x, y) <= stats.Threshold {
				continue
			}
			stats.Candidates++

			// the coarse scan rarely lands on the peak itself
			px, py := climb(res, x, y, 4*d.RingRadius, inside)
			if !inside(px, py) || claimed[py*w+px] {
				continue
			}
			peak := res(px, py)
			if !isLocalMax(res, px, py, peak) {
				continue
			}

			r := d.RingRadius
			ring := (res(px+r, py) + res(px-r, py) + res(px, py+r) + res(px, py-r)) / 4
			claim(px, py)
			if peak-ring < d.IsolationSigma*stats.Sigma {
				stats.Rejected++
				continue
			}

			cx, cy := centroid(res, px, py, r, w, h)
			o := rgba.PixOffset(px, py)
			alpha := clamp(peak/255, 0.35, 1)
			out = append(out, particle.Particle{
				X:     (cx + 0.5) / float64(w),
				Y:     (cy + 0.5) / float64(h),
				Z:     particle.CubedDepth(rng),
				Scale: clamp((peak-stats.Threshold)/d.ScaleDivisor, d.MinScale, d.MaxScale),
				Alpha: &alpha,
				Color: fmt.Sprintf("#%02x%02x%02x", rgba.Pix[o], rgba.Pix[o+1], rgba.Pix[o+2]),
			})
		}
	}

	return out, stats
}

// climb follows the strictly brightest 4-neighbour until it reaches a peak.
func climb(res func(x, y int) float64, x, y, maxSteps int, inside func(x, y int) bool) (int, int) {
	for i := 0; i < maxSteps; i++ {
		best := res(x, y)
		nx, ny := x, y
		for _, d := range [4][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}} {
			cx, cy := x+d[0], y+d[1]
			if !inside(cx, cy) {
				continue
			}
			if v := res(cx, cy); v > best {
				best, nx, ny = v, cx, cy
			}
		}
		if nx == x && ny == y {
			break
		}
		x, y = nx, ny
	}
	return x, y
}

func isLocalMax(res func(x, y int) float64, x, y int, peak float64) bool {
	return res(x+1, y) <= peak && res(x-1, y) <= peak && res(x, y+1) <= peak && res(x, y-1) <= peak
}

// centroid returns the residual-weighted centre of the window around (px, py).
func centroid(res func(x, y int) float64, px, py, r, w, h int) (float64, float64) {
	var sx, sy, sum float64
	for y := max(0, py-r); y <= min(h-1, py+r); y++ {
		for x := max(0, px-r); x <= min(w-1, px+r); x++ {
			v := res(x, y)
			sx += float64(x) * v
			sy += float64(y) * v
			sum += v
		}
	}
	if sum == 0 {
		return float64(px), float64(py)
	}
	return sx / sum, sy / sum
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
