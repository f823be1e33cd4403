package config

import (
	"strings"

	"github.com/lucasb-eyer/go-colorful"
)

// Slider bounds of the original controls. Values outside are clamped, never rejected.
const (
	MinScale         = 0.1
	MaxScale         = 5.0
	MaxRotationSpeed = 90.0
	MinDuration      = 0.5
	MaxDuration      = 120.0
	MaxDensity       = 5000
	MaxBaseSize      = 50.0
	MaxBrightness    = 5.0
	MinFeathering    = -3.0
	MaxFeathering    = 3.0
	MaxSpikeGain     = 5.0
	MaxSpikeThresh   = 3.0
	MaxSpikeAngle    = 180.0
	MinFPS           = 1
	MaxFPS           = 120
	MinBitrate       = 1.0
	MaxBitrate       = 100.0
)

func clampF(v, lo, hi float64) float64 {
	if v != v { // NaN
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampI(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampPtr(p *float64, lo, hi float64) *float64 {
	if p == nil {
		return nil
	}
	v := clampF(*p, lo, hi)
	return &v
}

// NormalizeHex returns c as a lowercase #rrggbb string, or fallback if c does not parse.
func NormalizeHex(c, fallback string) string {
	c = strings.TrimSpace(c)
	if c == "" {
		return fallback
	}
	if !strings.HasPrefix(c, "#") {
		c = "#" + c
	}
	col, err := colorful.Hex(c)
	if err != nil {
		return fallback
	}
	return col.Clamped().Hex()
}

func (a AnimationConfig) Clamp() AnimationConfig {
	a.InitialScale = clampF(a.InitialScale, MinScale, MaxScale)
	a.FinalScale = clampF(a.FinalScale, MinScale, MaxScale)
	a.RotationSpeed = clampF(a.RotationSpeed, 0, MaxRotationSpeed)
	a.DurationSeconds = clampF(a.DurationSeconds, MinDuration, MaxDuration)
	switch Direction(strings.ToLower(string(a.RotationDirection))) {
	case CCW:
		a.RotationDirection = CCW
	default:
		a.RotationDirection = CW
	}
	a.Easing = strings.ToLower(strings.TrimSpace(a.Easing))
	return a
}

func (p ParticleConfig) Clamp() ParticleConfig {
	p.Density = clampI(p.Density, 0, MaxDensity)
	p.BaseSize = clampF(p.BaseSize, 0, MaxBaseSize)
	p.Brightness = clampF(p.Brightness, 0, MaxBrightness)
	p.Feathering = clampF(p.Feathering, MinFeathering, MaxFeathering)
	p.Color = NormalizeHex(p.Color, "#ffffff")
	p.SpikeGain = clampPtr(p.SpikeGain, 0, MaxSpikeGain)
	p.SpikeThreshold = clampPtr(p.SpikeThreshold, 0, MaxSpikeThresh)
	p.SpikeAngle = clampPtr(p.SpikeAngle, 0, MaxSpikeAngle)
	return p
}

func (z ZoomOrigin) Clamp() ZoomOrigin {
	z.X = clampF(z.X, 0, 1)
	z.Y = clampF(z.Y, 0, 1)
	return z
}

func (v VideoConfig) Clamp() VideoConfig {
	v.FPS = clampI(v.FPS, MinFPS, MaxFPS)
	v.BitrateMbps = clampF(v.BitrateMbps, MinBitrate, MaxBitrate)
	switch Resolution(strings.ToLower(string(v.Resolution))) {
	case Resolution1080p:
		v.Resolution = Resolution1080p
	case Resolution4K:
		v.Resolution = Resolution4K
	default:
		v.Resolution = ResolutionOriginal
	}
	// unknown formats are kept: the capture pipeline negotiates a fallback
	v.Format = strings.ToLower(strings.TrimSpace(v.Format))
	return v
}

func (d DetectorConfig) Clamp() DetectorConfig {
	def := DefaultDetector()
	if d.MaxAnalysisWidth <= 0 {
		d.MaxAnalysisWidth = def.MaxAnalysisWidth
	}
	d.MaxAnalysisWidth = clampI(d.MaxAnalysisWidth, 64, 8192)
	if d.BlockSize <= 0 {
		d.BlockSize = def.BlockSize
	}
	if d.BlockStride <= 0 {
		d.BlockStride = def.BlockStride
	}
	if d.StatsStride <= 0 {
		d.StatsStride = def.StatsStride
	}
	if d.KSigma <= 0 {
		d.KSigma = def.KSigma
	}
	if d.MinThreshold < 0 {
		d.MinThreshold = 0
	}
	if d.ScanStep <= 0 {
		d.ScanStep = def.ScanStep
	}
	if d.RingRadius <= 0 {
		d.RingRadius = def.RingRadius
	}
	if d.IsolationSigma < 0 {
		d.IsolationSigma = 0
	}
	return d
}

// Clamp brings every field into its valid range.
func (c Config) Clamp() Config {
	c.Animation = c.Animation.Clamp()
	c.Particles = c.Particles.Clamp()
	c.Video = c.Video.Clamp()
	c.Detector = c.Detector.Clamp()
	if c.Capture.SafetyMarginMs < 0 {
		c.Capture.SafetyMarginMs = 0
	}
	if c.Capture.SettleMs < 0 {
		c.Capture.SettleMs = 0
	}
	if c.DPI <= 0 {
		c.DPI = 150
	}
	if c.Workers <= 0 {
		c.Workers = 1
	}
	if strings.TrimSpace(c.OutputDir) == "" {
		c.OutputDir = "output"
	}
	return c
}
