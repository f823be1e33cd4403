// Package hint supplies optional particle hints: hotspots and palette colors
// produced by an external collaborator.
package hint

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/ivlev/stellarfield/internal/particle"
)

// Provider returns hints for an item. A nil result means "no hints".
type Provider interface {
	Hints(ctx context.Context, name string) (*particle.Hints, error)
}

// FileProvider reads <Dir>/<name>.yaml, .yml or .json sidecar files.
type FileProvider struct {
	Dir string
}

var sidecarExts = []string{".yaml", ".yml", ".json"}

func (p FileProvider) Hints(ctx context.Context, name string) (*particle.Hints, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for _, ext := range sidecarExts {
		path := filepath.Join(p.Dir, name+ext)
		h, err := ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		return h, err
	}
	return nil, nil
}

// ReadFile parses one sidecar. JSON is read through the YAML decoder.
func ReadFile(path string) (*particle.Hints, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var h particle.Hints
	if err := yaml.Unmarshal(data, &h); err != nil {
		return nil, fmt.Errorf("parse hints %s: %w", path, err)
	}
	return &h, nil
}

// Static hands out fixed hints per name, for manifests and tests.
type Static map[string]*particle.Hints

func (s Static) Hints(_ context.Context, name string) (*particle.Hints, error) {
	return s[name], nil
}
