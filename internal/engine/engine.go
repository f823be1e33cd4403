// Package engine runs a batch: for every input it decodes, detects, resolves
// particles, records the animation and stores the artifact, strictly in order.
package engine

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/ivlev/stellarfield/internal/analyzer"
	"github.com/ivlev/stellarfield/internal/capture"
	"github.com/ivlev/stellarfield/internal/config"
	"github.com/ivlev/stellarfield/internal/director"
	"github.com/ivlev/stellarfield/internal/hint"
	"github.com/ivlev/stellarfield/internal/logging"
	"github.com/ivlev/stellarfield/internal/particle"
	"github.com/ivlev/stellarfield/internal/renderer"
	"github.com/ivlev/stellarfield/internal/source"
	"github.com/ivlev/stellarfield/internal/system"
)

var ErrDecode = errors.New("input could not be decoded")

type Status string

const (
	StatusIdle      Status = "idle"
	StatusAnalyzing Status = "analyzing"
	StatusReady     Status = "ready"
	StatusCapturing Status = "capturing"
	StatusSuccess   Status = "success"
	StatusError     Status = "error"
)

// Item is the per-input record of a batch.
type Item struct {
	Index     int
	Name      string
	Status    Status
	Mode      particle.Mode
	Particles int
	Origin    config.ZoomOrigin
	Artifact  string // saved path
	Bytes     int
	Container string
	Fallback  bool
	Partial   bool
	Err       error
}

// BatchState is a snapshot of the whole batch.
type BatchState struct {
	Items       []Item
	ActiveIndex int
	// ExportCursor is the item being exported, -1 when no export runs.
	ExportCursor int
}

// Counts returns how many items succeeded and failed.
func (b BatchState) Counts() (ok, failed int) {
	for _, it := range b.Items {
		switch it.Status {
		case StatusSuccess:
			ok++
		case StatusError:
			failed++
		}
	}
	return ok, failed
}

// ArtifactSink stores a finished artifact and returns where it went.
type ArtifactSink interface {
	Save(name string, a *capture.Artifact) (string, error)
}

type Sequencer struct {
	Source   source.Source
	Detector analyzer.Detector
	Resolver *particle.Resolver
	Hints    hint.Provider
	Director *director.Director
	Renderer *renderer.Engine
	Pipeline *capture.Pipeline
	Sink     ArtifactSink
	Config   config.Config
	// Manifest items line up with source indices; names, origins and hint
	// files found there take precedence.
	Manifest *director.Manifest
	Logger   *slog.Logger
	// OnUpdate receives a snapshot after every status change.
	OnUpdate func(BatchState)

	pool  *system.FramePool
	mu    sync.Mutex
	state BatchState
}

// New wires a sequencer with the default detector, resolver and renderer.
func New(cfg config.Config, src source.Source, pipeline *capture.Pipeline, sink ArtifactSink, logger *slog.Logger) *Sequencer {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	det := analyzer.NewStarDetectorFromConfig(cfg.Detector)
	if cfg.Workers > 0 {
		det.Workers = cfg.Workers
	}
	det.Seed = seed
	return &Sequencer{
		Source:   src,
		Detector: det,
		Resolver: particle.NewResolver(system.DetectDeviceClass().MaxParticles(), rand.New(rand.NewSource(seed))),
		Director: director.NewDirector(),
		Renderer: renderer.NewEngine(nil),
		Pipeline: pipeline,
		Sink:     sink,
		Config:   cfg,
		Logger:   logging.Component(logger, "sequencer"),
	}
}

// State returns a copy of the current batch state.
func (s *Sequencer) State() BatchState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

func (s *Sequencer) snapshot() BatchState {
	st := s.state
	st.Items = append([]Item(nil), s.state.Items...)
	return st
}

func (s *Sequencer) update(fn func(*BatchState)) {
	s.mu.Lock()
	fn(&s.state)
	snap := s.snapshot()
	s.mu.Unlock()
	if s.OnUpdate != nil {
		s.OnUpdate(snap)
	}
}

func (s *Sequencer) setStatus(i int, st Status) {
	s.update(func(b *BatchState) { b.Items[i].Status = st })
}

func (s *Sequencer) fail(i int, err error) {
	s.update(func(b *BatchState) {
		b.Items[i].Status = StatusError
		b.Items[i].Err = err
	})
	s.Logger.Warn("item failed", slog.Int("item", i), slog.Any("error", err))
}

func (s *Sequencer) manifestItem(i int) director.Item {
	if s.Manifest != nil && i < len(s.Manifest.Items) {
		return s.Manifest.Items[i]
	}
	return director.Item{}
}

// Run processes every item in order. A failed item is recorded and the batch
// moves on. Cancellation stops the batch after the current session has been
// flushed; the returned error is then the context error.
func (s *Sequencer) Run(ctx context.Context) (BatchState, error) {
	if s.pool == nil {
		s.pool = system.NewFramePool()
	}
	n := s.Source.PageCount()
	s.update(func(b *BatchState) {
		b.Items = make([]Item, n)
		for i := range b.Items {
			name := s.manifestItem(i).Name
			if name == "" {
				name = s.Source.Name(i)
			}
			b.Items[i] = Item{Index: i, Name: name, Status: StatusIdle}
		}
		b.ActiveIndex = 0
		b.ExportCursor = 0
	})

	var runErr error
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		if err := s.runItem(ctx, i); err != nil && ctx.Err() != nil {
			runErr = ctx.Err()
			break
		}
	}

	s.update(func(b *BatchState) { b.ExportCursor = -1 })
	ok, failed := s.State().Counts()
	s.Logger.Info("batch finished", slog.Int("items", n), slog.Int("ok", ok), slog.Int("failed", failed))
	return s.State(), runErr
}

type preparedItem struct {
	scene renderer.Scene
	w, h  int
	first *image.RGBA
}

func (s *Sequencer) runItem(ctx context.Context, i int) error {
	s.update(func(b *BatchState) {
		b.ActiveIndex = i
		b.ExportCursor = i
		b.Items[i].Status = StatusAnalyzing
	})

	ready := capture.NewSignal()
	if err := s.Pipeline.Arm(ready); err != nil {
		s.fail(i, err)
		return err
	}

	prep := &preparedItem{}
	prepared := make(chan struct{})
	go func() {
		defer close(prepared)
		if err := s.prepare(ctx, i, prep); err != nil {
			ready.Fail(err)
			return
		}
		s.setStatus(i, StatusReady)
		ready.Fire()
	}()

	frames := &frameSource{
		prep:    prep,
		engine:  s.Renderer,
		pool:    s.pool,
		onStart: func() { s.setStatus(i, StatusCapturing) },
	}
	art, err := s.Pipeline.Record(ctx, frames)
	// Record may give up before ready fires; prepare must not outlive the item
	<-prepared
	frames.release()

	if art == nil {
		if err == nil {
			err = fmt.Errorf("no artifact recorded")
		}
		s.fail(i, err)
		return err
	}

	name := s.State().Items[i].Name
	path, saveErr := s.Sink.Save(name, art)
	s.update(func(b *BatchState) {
		it := &b.Items[i]
		it.Artifact = path
		it.Bytes = len(art.Data)
		it.Container = art.Profile.Container
		it.Fallback = art.Fallback
		it.Partial = art.Partial
		switch {
		case saveErr != nil:
			it.Status, it.Err = StatusError, fmt.Errorf("save artifact: %w", saveErr)
		case err != nil:
			it.Status, it.Err = StatusError, err
		default:
			it.Status = StatusSuccess
		}
	})
	if saveErr != nil {
		s.Logger.Warn("artifact not saved", slog.String("item", name), slog.Any("error", saveErr))
	} else {
		s.Logger.Info("artifact saved", slog.String("item", name), slog.String("path", path), slog.Bool("partial", art.Partial))
	}
	return err
}

// prepare decodes, detects and resolves item i and paints its first frame.
// It runs on its own goroutine while the pipeline waits on the ready signal.
func (s *Sequencer) prepare(ctx context.Context, i int, prep *preparedItem) error {
	name := s.State().Items[i].Name
	img, err := s.Source.RenderPage(i, s.Config.DPI)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrDecode, name, err)
	}
	if b := img.Bounds(); b.Dx() == 0 || b.Dy() == 0 {
		return fmt.Errorf("%w: %s: empty image", ErrDecode, name)
	}

	det := s.Detector.Detect(ctx, img)
	if err := ctx.Err(); err != nil {
		return err
	}

	mi := s.manifestItem(i)
	hints := s.hints(ctx, name, mi)
	particles, mode := s.Resolver.Resolve(det, hints, s.Config.Particles.Density)

	dir := s.Director
	if dir == nil {
		dir = director.NewDirector()
	}
	origin := dir.Origin(mi, particles)

	s.update(func(b *BatchState) {
		b.Items[i].Mode = mode
		b.Items[i].Particles = len(particles)
		b.Items[i].Origin = origin
	})
	s.Logger.Info("item prepared",
		slog.String("item", name),
		slog.Int("detections", len(det)),
		slog.String("mode", string(mode)),
		slog.Int("particles", len(particles)))

	b := img.Bounds()
	prep.w, prep.h = s.Config.Video.SurfaceSize(b.Dx(), b.Dy())
	prep.scene = renderer.Scene{
		Particles:  particles,
		Animation:  s.Config.Animation,
		Particle:   s.Config.Particles,
		Origin:     origin,
		Background: img,
	}
	prep.first = s.pool.Get(image.Rect(0, 0, prep.w, prep.h))
	s.Renderer.Render(prep.first, 0, prep.scene, renderer.Options{})
	return nil
}

func (s *Sequencer) hints(ctx context.Context, name string, mi director.Item) *particle.Hints {
	var (
		h   *particle.Hints
		err error
	)
	switch {
	case mi.Hints != "":
		h, err = hint.ReadFile(mi.Hints)
	case s.Hints != nil:
		h, err = s.Hints.Hints(ctx, name)
	}
	if err != nil {
		s.Logger.Warn("hints unavailable", slog.String("item", name), slog.Any("error", err))
		return nil
	}
	return h
}
