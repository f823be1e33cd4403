package engine

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ivlev/stellarfield/internal/capture"
	"github.com/ivlev/stellarfield/internal/config"
	"github.com/ivlev/stellarfield/internal/hint"
	"github.com/ivlev/stellarfield/internal/particle"
	"github.com/ivlev/stellarfield/internal/source"
)

type allCaps struct{}

func (allCaps) HasEncoder(string) bool { return true }
func (allCaps) HasMuxer(string) bool   { return true }

type nullEncoder struct{ onChunk func([]byte) }

func (e nullEncoder) WriteFrame(*image.RGBA) error { e.onChunk([]byte{1}); return nil }
func (e nullEncoder) Close() error                  { return nil }

type nullFactory struct{}

func (nullFactory) NewEncoder(_ context.Context, _ capture.EncoderOptions, onChunk func([]byte)) (capture.Encoder, error) {
	return nullEncoder{onChunk: onChunk}, nil
}

func fieldPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 64, 36))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = 10, 10, 20, 255
	}
	img.Set(20, 10, color.White)
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.Animation.DurationSeconds = 0.2
	cfg.Video.FPS = 10
	cfg.Video.Resolution = config.ResolutionOriginal
	cfg.Capture.SafetyMarginMs = 0
	cfg.Particles.Density = 40
	cfg.Seed = 7
	cfg.Workers = 2
	return cfg
}

func newSequencer(t *testing.T, src source.Source, sink ArtifactSink) *Sequencer {
	cfg := testConfig()
	p := capture.NewPipeline(nullFactory{}, allCaps{}, cfg, nil)
	return New(cfg, src, p, sink, nil)
}

func TestBatchContinuesAfterFailure(t *testing.T) {
	good := fieldPNG(t)
	src := source.NewBytesSource().
		Add("one", good).
		Add("broken", []byte("not an image at all")).
		Add("three", good)

	sink := &MemorySink{}
	seq := newSequencer(t, src, sink)
	seq.Hints = hint.Static{"three": {Hotspots: []particle.Hotspot{{X: 50, Y: 50}}}}

	var (
		mu       sync.Mutex
		statuses []Status
	)
	seq.OnUpdate = func(b BatchState) {
		mu.Lock()
		defer mu.Unlock()
		if n := len(statuses); n == 0 || statuses[n-1] != b.Items[0].Status {
			statuses = append(statuses, b.Items[0].Status)
		}
	}

	st, err := seq.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if st.Items[0].Status != StatusSuccess || st.Items[2].Status != StatusSuccess {
		t.Errorf("good items should succeed: %+v / %+v", st.Items[0], st.Items[2])
	}
	if st.Items[1].Status != StatusError || !errors.Is(st.Items[1].Err, ErrDecode) {
		t.Errorf("broken item should fail with ErrDecode: %+v", st.Items[1])
	}
	if ok, failed := st.Counts(); ok != 2 || failed != 1 {
		t.Errorf("counts ok=%d failed=%d", ok, failed)
	}
	if st.ExportCursor != -1 || st.ActiveIndex != 2 {
		t.Errorf("cursor %d active %d", st.ExportCursor, st.ActiveIndex)
	}

	if st.Items[0].Mode != particle.ModeProcedural || st.Items[2].Mode != particle.ModeAIMap {
		t.Errorf("modes %s / %s", st.Items[0].Mode, st.Items[2].Mode)
	}
	if _, ok := sink.Files["one.mp4"]; !ok {
		t.Errorf("missing artifact for item one: %v", sink.Files)
	}
	if _, ok := sink.Files["three.mp4"]; !ok || len(sink.Files) != 2 {
		t.Errorf("unexpected artifacts %v", sink.Files)
	}

	// 0.2 s at 10 fps -> frames at 0, 0.1, 0.2
	if st.Items[0].Bytes != 3 {
		t.Errorf("artifact size %d", st.Items[0].Bytes)
	}

	mu.Lock()
	defer mu.Unlock()
	want := []Status{StatusIdle, StatusAnalyzing, StatusReady, StatusCapturing, StatusSuccess}
	if len(statuses) != len(want) {
		t.Fatalf("status sequence %v", statuses)
	}
	for i := range want {
		if statuses[i] != want[i] {
			t.Fatalf("status sequence %v, want %v", statuses, want)
		}
	}
}

func TestBatchCancelStopsAfterFlush(t *testing.T) {
	good := fieldPNG(t)
	src := source.NewBytesSource().Add("a", good).Add("b", good)
	sink := &MemorySink{}
	seq := newSequencer(t, src, sink)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	seq.OnUpdate = func(b BatchState) {
		if b.Items[0].Status == StatusCapturing {
			cancel()
		}
	}

	st, err := seq.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if !st.Items[0].Partial || st.Items[0].Status != StatusError {
		t.Errorf("first item should be flushed as partial: %+v", st.Items[0])
	}
	if _, ok := sink.Files["a.mp4"]; !ok {
		t.Error("partial artifact should still be saved")
	}
	if st.Items[1].Status != StatusIdle {
		t.Errorf("second item must not start, got %s", st.Items[1].Status)
	}
}

func TestDirSink(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	sink, err := NewDirSink(dir)
	if err != nil {
		t.Fatalf("NewDirSink: %v", err)
	}
	if err := sink.Lock(); err != nil {
		t.Fatalf("Lock: %v", err)
	}
	defer sink.Unlock()

	a := &capture.Artifact{Data: []byte("webm"), Profile: capture.Profile{Extension: "webm"}}
	path, err := sink.Save("orion p1", a)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if filepath.Base(path) != "orion_p1.webm" {
		t.Errorf("path %s", path)
	}
	if data, _ := os.ReadFile(path); string(data) != "webm" {
		t.Errorf("content %q", data)
	}

	other, _ := NewDirSink(dir)
	if err := other.Lock(); err == nil {
		other.Unlock()
		t.Error("second lock on the same directory must fail")
	}
}

// slowSource holds RenderPage until release is closed.
type slowSource struct {
	data     []byte
	release  chan struct{}
	returned atomic.Bool
}

func (s *slowSource) PageCount() int  { return 1 }
func (s *slowSource) Name(int) string { return "slow" }
func (s *slowSource) Close() error    { return nil }
func (s *slowSource) RenderPage(int, int) (image.Image, error) {
	<-s.release
	defer s.returned.Store(true)
	img, _, err := source.Decode(s.data)
	return img, err
}

func TestCancelWhileDecodingWaitsForPrepare(t *testing.T) {
	src := &slowSource{data: fieldPNG(t), release: make(chan struct{})}
	seq := newSequencer(t, src, &MemorySink{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var once sync.Once
	seq.OnUpdate = func(b BatchState) {
		if b.Items[0].Status == StatusAnalyzing {
			once.Do(func() {
				cancel()
				go func() {
					time.Sleep(50 * time.Millisecond)
					close(src.release)
				}()
			})
		}
	}

	st, err := seq.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if !src.returned.Load() {
		t.Error("Run returned while the item was still being decoded")
	}
	if st.Items[0].Status != StatusError {
		t.Errorf("cancelled item should end as error, got %s", st.Items[0].Status)
	}
	if seq.Pipeline.State() != capture.Idle {
		t.Errorf("pipeline state %s", seq.Pipeline.State())
	}
}
