package main

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/ivlev/stellarfield/internal/analyzer"
	"github.com/ivlev/stellarfield/internal/config"
	"github.com/ivlev/stellarfield/internal/director"
	"github.com/ivlev/stellarfield/internal/hint"
	"github.com/ivlev/stellarfield/internal/logging"
	"github.com/ivlev/stellarfield/internal/particle"
	"github.com/ivlev/stellarfield/internal/renderer"
	"github.com/ivlev/stellarfield/internal/source"
	"github.com/ivlev/stellarfield/internal/system"
)

// preparedScene is one input ready to render, outside of a batch.
type preparedScene struct {
	name       string
	scene      renderer.Scene
	width      int
	height     int
	mode       particle.Mode
	detections int
	stats      analyzer.Stats
}

func newRNG(cfg *config.Config) *rand.Rand {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed))
}

// prepareScene decodes one page of input and runs detection, resolution and
// origin selection the way a batch item does.
func prepareScene(ctx context.Context, cfg *config.Config, input string, page int, hintsPath string, origin *config.ZoomOrigin) (*preparedScene, error) {
	src, err := source.Open(input)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", input, err)
	}
	defer src.Close()

	if page < 0 || page >= src.PageCount() {
		return nil, fmt.Errorf("page %d out of range (1..%d)", page+1, src.PageCount())
	}
	img, err := src.RenderPage(page, cfg.DPI)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", src.Name(page), err)
	}

	det := analyzer.NewStarDetectorFromConfig(cfg.Detector)
	if cfg.Workers > 0 {
		det.Workers = cfg.Workers
	}
	det.Seed = cfg.Seed
	found, stats := det.DetectWithStats(ctx, img)

	var hints *particle.Hints
	if hintsPath != "" {
		if hints, err = hint.ReadFile(hintsPath); err != nil {
			return nil, err
		}
	}

	res := particle.NewResolver(system.DetectDeviceClass().MaxParticles(), newRNG(cfg))
	particles, mode := res.Resolve(found, hints, cfg.Particles.Density)

	o := director.NewDirector().Origin(director.Item{Origin: origin}, particles)
	b := img.Bounds()
	w, h := cfg.Video.SurfaceSize(b.Dx(), b.Dy())

	return &preparedScene{
		name: src.Name(page),
		scene: renderer.Scene{
			Particles:  particles,
			Animation:  cfg.Animation,
			Particle:   cfg.Particles,
			Origin:     o,
			Background: img,
		},
		width:      w,
		height:     h,
		mode:       mode,
		detections: len(found),
		stats:      stats,
	}, nil
}

// openManifest opens every manifest input and expands PDFs into one item per
// page, so items line up with source indices. An input that cannot be opened
// stays in the batch as a single failing item.
func openManifest(m *director.Manifest, logger *slog.Logger) (source.Source, *director.Manifest) {
	log := logging.Component(logger, "manifest")
	expanded := &director.Manifest{Version: m.Version}
	parts := make([]source.Source, 0, len(m.Items))
	for _, it := range m.Items {
		s, err := source.Open(it.Input)
		if err != nil {
			name := it.Name
			if name == "" {
				name = director.DisplayName(it.Input)
			}
			log.Warn("input unavailable", slog.String("input", it.Input), slog.Any("error", err))
			s = source.NewUnavailable(name, fmt.Errorf("open %s: %w", it.Input, err))
		}
		parts = append(parts, s)
		pages := s.PageCount()
		for p := 0; p < pages; p++ {
			item := it
			switch {
			case it.Name == "":
				item.Name = s.Name(p)
			case pages > 1:
				item.Name = fmt.Sprintf("%s_p%03d", it.Name, p+1)
			}
			expanded.Items = append(expanded.Items, item)
		}
	}
	return source.NewMulti(parts...), expanded
}
