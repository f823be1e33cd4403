package config

import "math"

// Direction is the background rotation direction.
type Direction string

const (
	CW  Direction = "cw"
	CCW Direction = "ccw"
)

// Sign returns +1 for clockwise and -1 for counter-clockwise rotation.
func (d Direction) Sign() float64 {
	if d == CCW {
		return -1
	}
	return 1
}

// AnimationConfig describes the zoom/rotation of the background over one capture.
type AnimationConfig struct {
	InitialScale      float64   `yaml:"initial_scale" toml:"initial_scale"`
	FinalScale        float64   `yaml:"final_scale" toml:"final_scale"`
	RotationDirection Direction `yaml:"rotation_direction" toml:"rotation_direction"`
	RotationSpeed     float64   `yaml:"rotation_speed" toml:"rotation_speed"` // degrees per second
	DurationSeconds   float64   `yaml:"duration" toml:"duration"`
	Easing            string    `yaml:"easing" toml:"easing"` // linear, in-out-quad, in-out-cubic, in-out-sine, out-cubic
}

// ParticleConfig governs sprite generation and per-frame compositing gain.
type ParticleConfig struct {
	Density        int      `yaml:"density" toml:"density"`
	BaseSize       float64  `yaml:"base_size" toml:"base_size"`
	Brightness     float64  `yaml:"brightness" toml:"brightness"`
	Color          string   `yaml:"color" toml:"color"`
	Feathering     float64  `yaml:"feathering" toml:"feathering"`
	SpikeGain      *float64 `yaml:"spike_gain,omitempty" toml:"spike_gain,omitempty"`
	SpikeThreshold *float64 `yaml:"spike_threshold,omitempty" toml:"spike_threshold,omitempty"`
	SpikeAngle     *float64 `yaml:"spike_angle,omitempty" toml:"spike_angle,omitempty"`
}

// ZoomOrigin is the pivot of scaling/rotation in normalized image coordinates.
type ZoomOrigin struct {
	X float64 `yaml:"x" toml:"x"`
	Y float64 `yaml:"y" toml:"y"`
}

// Resolution selects the capture surface size.
type Resolution string

const (
	ResolutionOriginal Resolution = "original"
	Resolution1080p    Resolution = "1080p"
	Resolution4K       Resolution = "4k"
)

type VideoConfig struct {
	Resolution  Resolution `yaml:"resolution" toml:"resolution"`
	BitrateMbps float64    `yaml:"bitrate_mbps" toml:"bitrate_mbps"`
	FPS         int        `yaml:"fps" toml:"fps"`
	Format      string     `yaml:"format" toml:"format"` // requested container: mp4, webm, mkv
}

// BitrateKbps returns the bitrate in kbit/s as ffmpeg expects it.
func (v VideoConfig) BitrateKbps() int {
	return int(math.Round(v.BitrateMbps * 1000))
}

// SurfaceSize returns the render surface for a source image of srcW x srcH.
// The long edge is fixed by the resolution preset, the aspect ratio is kept and
// both sides are even (yuv420p requirement).
func (v VideoConfig) SurfaceSize(srcW, srcH int) (int, int) {
	if srcW <= 0 || srcH <= 0 {
		srcW, srcH = 1920, 1080
	}
	long := 0
	switch v.Resolution {
	case Resolution1080p:
		long = 1920
	case Resolution4K:
		long = 3840
	}
	w, h := float64(srcW), float64(srcH)
	if long > 0 {
		k := float64(long) / math.Max(w, h)
		w, h = w*k, h*k
	}
	return even(int(math.Round(w))), even(int(math.Round(h)))
}

func even(v int) int {
	if v < 2 {
		return 2
	}
	if v%2 != 0 {
		v++
	}
	return v
}

// DetectorConfig mirrors the tunables of the star detector. The constants are
// empirical, so all of them are configurable.
type DetectorConfig struct {
	MaxAnalysisWidth int     `yaml:"max_analysis_width" toml:"max_analysis_width"`
	BlockSize        int     `yaml:"block_size" toml:"block_size"`
	BlockStride      int     `yaml:"block_stride" toml:"block_stride"`
	StatsStride      int     `yaml:"stats_stride" toml:"stats_stride"`
	KSigma           float64 `yaml:"k_sigma" toml:"k_sigma"`
	MinThreshold     float64 `yaml:"min_threshold" toml:"min_threshold"`
	ScanStep         int     `yaml:"scan_step" toml:"scan_step"`
	RingRadius       int     `yaml:"ring_radius" toml:"ring_radius"`
	IsolationSigma   float64 `yaml:"isolation_sigma" toml:"isolation_sigma"`
}

type CaptureConfig struct {
	SafetyMarginMs int  `yaml:"safety_margin_ms" toml:"safety_margin_ms"`
	SettleMs       int  `yaml:"settle_ms" toml:"settle_ms"`
	Realtime       bool `yaml:"realtime" toml:"realtime"`
}

type Config struct {
	Animation AnimationConfig `yaml:"animation" toml:"animation"`
	Particles ParticleConfig  `yaml:"particles" toml:"particles"`
	Video     VideoConfig     `yaml:"video" toml:"video"`
	Detector  DetectorConfig  `yaml:"detector" toml:"detector"`
	Capture   CaptureConfig   `yaml:"capture" toml:"capture"`
	OutputDir string          `yaml:"output_dir" toml:"output_dir"`
	DPI       int             `yaml:"dpi" toml:"dpi"`
	Seed      int64           `yaml:"seed" toml:"seed"`
	Workers   int             `yaml:"workers" toml:"workers"`
	LogLevel  string          `yaml:"log_level" toml:"log_level"`
}
