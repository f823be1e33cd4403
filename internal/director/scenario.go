package director

import "github.com/ivlev/stellarfield/internal/config"

const ManifestVersion = "1.0"

// Manifest describes a batch: which inputs to animate and per-item overrides.
type Manifest struct {
	Version string `yaml:"version"`
	Items   []Item `yaml:"items"`
}

// Item is one manifest entry. Empty fields fall back to the batch config.
type Item struct {
	Name   string             `yaml:"name,omitempty"`
	Input  string             `yaml:"input"`
	Origin *config.ZoomOrigin `yaml:"origin,omitempty"` // nil = PickOrigin
	Hints  string             `yaml:"hints,omitempty"`  // path to a hint sidecar
}

// Report is the YAML summary written after a batch.
type Report struct {
	Version   string       `yaml:"version"`
	Generated string       `yaml:"generated"`
	Items     []ReportItem `yaml:"items"`
}

type ReportItem struct {
	Name      string             `yaml:"name"`
	Status    string             `yaml:"status"`
	Mode      string             `yaml:"mode,omitempty"`
	Particles int                `yaml:"particles"`
	Origin    *config.ZoomOrigin `yaml:"origin,omitempty"`
	Artifact  string             `yaml:"artifact,omitempty"`
	Bytes     int                `yaml:"bytes,omitempty"`
	Container string             `yaml:"container,omitempty"`
	Fallback  bool               `yaml:"fallback,omitempty"`
	Partial   bool               `yaml:"partial,omitempty"`
	Error     string             `yaml:"error,omitempty"`
}
