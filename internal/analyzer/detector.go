package analyzer

import (
	"context"
	"image"

	"github.com/ivlev/stellarfield/internal/particle"
)

// Detector is the interface for point source extraction strategies.
// Implementations never fail: unusable input yields an empty result.
type Detector interface {
	Detect(ctx context.Context, img image.Image) particle.DetectionResult
}

// Stats describes one detection run.
type Stats struct {
	Width, Height int     // analysis size after downscaling
	Mean          float64 // residual mean
	Sigma         float64 // residual standard deviation
	Threshold     float64
	Candidates    int // pixels above threshold visited by the scan
	Rejected      int // candidates rejected by the isolation check
}
