package director

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// WriteManifest writes a manifest to a YAML file
func WriteManifest(m *Manifest, path string) error {
	return writeYAML(m, path)
}

// ReadManifest reads a batch manifest. Items without an input are rejected.
func ReadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	for i, it := range m.Items {
		if it.Input == "" {
			return nil, fmt.Errorf("manifest %s: item %d has no input", path, i+1)
		}
	}
	if m.Version == "" {
		m.Version = ManifestVersion
	}
	return &m, nil
}

// WriteReport writes the batch summary.
func WriteReport(r *Report, path string) error {
	return writeYAML(r, path)
}

func writeYAML(v any, path string) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
