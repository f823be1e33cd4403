package analyzer

import (
	"fmt"

	"github.com/ivlev/stellarfield/internal/config"
)

// NewDetector creates a detector based on the specified variant
func NewDetector(variant string, cfg config.DetectorConfig) (Detector, error) {
	switch variant {
	case "star", "":
		return NewStarDetectorFromConfig(cfg), nil
	case "ai":
		return nil, fmt.Errorf("AI detector is an external service, use hint files instead")
	default:
		return nil, fmt.Errorf("unknown detector variant: %s", variant)
	}
}
