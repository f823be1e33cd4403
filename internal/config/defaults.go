package config

import "runtime"

func DefaultAnimation() AnimationConfig {
	return AnimationConfig{
		InitialScale:      1.0,
		FinalScale:        1.35,
		RotationDirection: CW,
		RotationSpeed:     1.5,
		DurationSeconds:   8,
		Easing:            "linear",
	}
}

func DefaultParticles() ParticleConfig {
	return ParticleConfig{
		Density:    600,
		BaseSize:   6,
		Brightness: 1,
		Color:      "#cfe3ff",
		Feathering: 0,
	}
}

func DefaultDetector() DetectorConfig {
	return DetectorConfig{
		MaxAnalysisWidth: 1024,
		BlockSize:        16,
		BlockStride:      2,
		StatsStride:      4,
		KSigma:           2.8,
		MinThreshold:     8,
		ScanStep:         2,
		RingRadius:       3,
		IsolationSigma:   0.5,
	}
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Animation: DefaultAnimation(),
		Particles: DefaultParticles(),
		Video: VideoConfig{
			Resolution:  Resolution1080p,
			BitrateMbps: 12,
			FPS:         30,
			Format:      "mp4",
		},
		Detector: DefaultDetector(),
		Capture: CaptureConfig{
			SafetyMarginMs: 300,
			SettleMs:       0,
		},
		OutputDir: "output",
		DPI:       150,
		Workers:   runtime.NumCPU(),
		LogLevel:  "info",
	}
}
