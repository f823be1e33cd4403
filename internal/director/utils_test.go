package director

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestGenerateReportPath(t *testing.T) {
	path := GenerateReportPath("output")

	if filepath.Dir(path) != "output" {
		t.Errorf("Path should be in output: %s", path)
	}
	if !strings.HasPrefix(filepath.Base(path), "report_") || filepath.Ext(path) != ".yaml" {
		t.Errorf("unexpected report name: %s", path)
	}
}

func TestFindLatestManifest(t *testing.T) {
	dir := t.TempDir()

	files := []string{
		filepath.Join(dir, "night_a.yaml"),
		filepath.Join(dir, "night_b.yml"),
		filepath.Join(dir, "report_2026-02-13_01-00-00.yaml"),
	}
	for i, f := range files {
		os.WriteFile(f, []byte("version: \"1.0\""), 0644)
		modTime := time.Now().Add(time.Duration(i) * time.Hour)
		os.Chtimes(f, modTime, modTime)
	}

	latest, err := FindLatestManifest(dir)
	if err != nil {
		t.Fatalf("FindLatestManifest failed: %v", err)
	}
	// the report is newer but is not a manifest
	if latest != files[1] {
		t.Errorf("Expected latest to be %s, got %s", files[1], latest)
	}

	if _, err := FindLatestManifest(t.TempDir()); err == nil {
		t.Error("empty directory must fail")
	}
}

func TestDisplayName(t *testing.T) {
	if got := DisplayName("/data/in/M31 field.tiff"); got != "M31 field" {
		t.Errorf("got %q", got)
	}
}
