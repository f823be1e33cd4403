// Package capture records the rendered animation into a video artifact.
package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ivlev/stellarfield/internal/config"
	"github.com/ivlev/stellarfield/internal/logging"
	"github.com/ivlev/stellarfield/internal/playback"
)

var (
	ErrEncoderStart = errors.New("encoder could not be started")
	ErrNotArmed     = errors.New("capture pipeline is not armed")
	ErrBusy         = errors.New("capture pipeline is busy")
)

// FrameSource renders the frame for a progress value. The returned image is
// only valid until the next call.
type FrameSource interface {
	Size() (w, h int)
	Frame(progress float64) *image.RGBA
}

// Artifact is the finished recording of one session.
type Artifact struct {
	SessionID string
	Data      []byte
	Profile   Profile
	Requested string
	Fallback  bool
	Frames    int
	// Partial marks a recording cut short by cancellation.
	Partial bool
	Elapsed time.Duration
}

type Pipeline struct {
	Factory  EncoderFactory
	Caps     Capabilities
	Profiles []Profile
	Video    config.VideoConfig
	// animation length in seconds
	Duration     float64
	SafetyMargin time.Duration
	Settle       time.Duration
	Realtime     bool
	Logger       *slog.Logger

	mu    sync.Mutex
	state State
	// pending is the ready signal of the session reserved by Arm
	pending *Signal
	// busy is set while Record owns the reservation
	busy bool
}

func NewPipeline(factory EncoderFactory, caps Capabilities, cfg config.Config, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		Factory:      factory,
		Caps:         caps,
		Profiles:     DefaultProfiles(),
		Video:        cfg.Video,
		Duration:     cfg.Animation.DurationSeconds,
		SafetyMargin: time.Duration(cfg.Capture.SafetyMarginMs) * time.Millisecond,
		Settle:       time.Duration(cfg.Capture.SettleMs) * time.Millisecond,
		Realtime:     cfg.Capture.Realtime,
		Logger:       logging.Component(logger, "capture"),
	}
}

func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Pipeline) setState(s State) {
	p.mu.Lock()
	p.state = s
	p.mu.Unlock()
}

// Arm reserves the pipeline for a recording that starts once ready fires.
// The state stays Idle until Record has seen the signal; only then is the
// pipeline Armed. A nil signal counts as already fired.
func (p *Pipeline) Arm(ready *Signal) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != Idle || p.pending != nil || p.busy {
		return fmt.Errorf("%w: %s", ErrBusy, p.state)
	}
	if ready == nil {
		ready = NewSignal()
		ready.Fire()
	}
	p.pending = ready
	return nil
}

// Disarm drops a reservation that will not be recorded.
func (p *Pipeline) Disarm() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.busy {
		p.pending = nil
	}
}

func (p *Pipeline) release() {
	p.mu.Lock()
	p.state = Idle
	p.pending = nil
	p.busy = false
	p.mu.Unlock()
}

// Record waits for the ready signal, then records frames from src until the
// animation plus the safety margin has elapsed. On cancellation the frames
// recorded so far are flushed and returned as a partial artifact together
// with the context error. The pipeline is Idle again when Record returns.
//
// An encoder that fails to start, or dies before producing any output, is
// retried once with reduced options and then with the next supported
// profile.
func (p *Pipeline) Record(ctx context.Context, src FrameSource) (*Artifact, error) {
	p.mu.Lock()
	ready := p.pending
	if ready == nil || p.busy {
		p.mu.Unlock()
		return nil, ErrNotArmed
	}
	p.busy = true
	p.mu.Unlock()
	defer p.release()

	if err := ready.Wait(ctx); err != nil {
		return nil, err
	}
	p.setState(Armed)

	candidates := Candidates(p.Video.Format, p.Caps, p.Profiles)
	if len(candidates) == 0 {
		return nil, ErrUnsupportedProfile
	}

	session := uuid.NewString()
	log := p.Logger.With(slog.String("session", session))
	w, h := src.Size()

	var lastErr error
	for _, neg := range candidates {
		if neg.Fallback {
			log.Warn("requested container unavailable, falling back",
				slog.String("requested", neg.Requested),
				slog.String("container", neg.Profile.Container),
				slog.String("codec", neg.Profile.Codec))
		}
		for _, reduced := range []bool{false, true} {
			opts := EncoderOptions{
				Profile:     neg.Profile,
				Width:       w,
				Height:      h,
				FPS:         p.fps(),
				BitrateKbps: p.Video.BitrateKbps(),
				Reduced:     reduced,
			}
			a, rejected, err := p.attempt(ctx, log, src, neg, opts)
			if !rejected {
				if a != nil {
					a.SessionID = session
				}
				return a, err
			}
			lastErr = err
			log.Warn("encoder rejected the session",
				slog.String("codec", neg.Profile.Codec),
				slog.Bool("reduced", reduced),
				slog.Any("error", err))
		}
	}
	return nil, fmt.Errorf("%w: %w", ErrEncoderStart, lastErr)
}

// attempt runs one encoder session. rejected marks a failure before the
// encoder produced any output.
func (p *Pipeline) attempt(ctx context.Context, log *slog.Logger, src FrameSource, neg Negotiation, opts EncoderOptions) (a *Artifact, rejected bool, err error) {
	var (
		chunkMu sync.Mutex
		chunks  [][]byte
	)
	onChunk := func(b []byte) {
		chunkMu.Lock()
		chunks = append(chunks, b)
		chunkMu.Unlock()
	}

	// the encoder outlives cancellation so a partial recording can be flushed
	enc, err := p.Factory.NewEncoder(context.WithoutCancel(ctx), opts, onChunk)
	if err != nil {
		return nil, ctx.Err() == nil, err
	}

	p.setState(Recording)
	log.Info("recording",
		slog.String("codec", opts.Profile.Codec),
		slog.String("container", opts.Profile.Container),
		slog.Bool("reduced", opts.Reduced),
		slog.Int("width", opts.Width), slog.Int("height", opts.Height))

	start := time.Now()
	frames, recErr := p.run(ctx, src, enc)

	p.setState(Flushing)
	closeErr := enc.Close()

	chunkMu.Lock()
	data := bytes.Join(chunks, nil)
	chunks = nil
	chunkMu.Unlock()

	cancelled := recErr != nil && ctx.Err() != nil
	if !cancelled {
		err := recErr
		if err == nil && closeErr != nil {
			err = fmt.Errorf("flush encoder: %w", closeErr)
		}
		if err != nil {
			return nil, len(data) == 0, err
		}
	}

	a = &Artifact{
		Data:      data,
		Profile:   neg.Profile,
		Requested: neg.Requested,
		Fallback:  neg.Fallback,
		Frames:    frames,
		Partial:   cancelled,
		Elapsed:   time.Since(start),
	}
	log.Info("flushed", slog.Int("frames", frames), slog.Int("bytes", len(data)), slog.Bool("partial", cancelled))
	if cancelled {
		return a, false, ctx.Err()
	}
	return a, false, nil
}

func (p *Pipeline) fps() int {
	if p.Video.FPS <= 0 {
		return 30
	}
	return p.Video.FPS
}

// stopAfter is the animation length plus the safety margin.
func (p *Pipeline) stopAfter() time.Duration {
	return time.Duration(p.Duration*float64(time.Second)) + p.SafetyMargin
}

func (p *Pipeline) run(ctx context.Context, src FrameSource, enc Encoder) (int, error) {
	if p.Settle > 0 {
		t := time.NewTimer(p.Settle)
		select {
		case <-ctx.Done():
			t.Stop()
			return 0, ctx.Err()
		case <-t.C:
		}
	}

	clock := playback.NewClock(p.Duration)
	clock.Restart(playback.Capture)

	if p.Realtime {
		return p.runRealtime(ctx, src, enc, clock)
	}
	return p.runStepped(ctx, src, enc, clock)
}

// runStepped advances a virtual clock by 1/fps per frame, so every frame is
// rendered no matter how long encoding takes.
func (p *Pipeline) runStepped(ctx context.Context, src FrameSource, enc Encoder, clock *playback.Clock) (int, error) {
	fps := float64(p.fps())
	dt := 1 / fps
	last := int(math.Floor(p.stopAfter().Seconds()*fps + 1e-6))

	frames := 0
	for k := 0; k <= last; k++ {
		if err := ctx.Err(); err != nil {
			return frames, err
		}
		if err := enc.WriteFrame(src.Frame(clock.Progress())); err != nil {
			return frames, fmt.Errorf("write frame %d: %w", k, err)
		}
		frames++
		clock.Tick(dt)
	}
	return frames, nil
}

// runRealtime paces frames with a wall-clock ticker and stops on a timer.
func (p *Pipeline) runRealtime(ctx context.Context, src FrameSource, enc Encoder, clock *playback.Clock) (int, error) {
	ticker := time.NewTicker(time.Second / time.Duration(p.fps()))
	defer ticker.Stop()
	stop := time.NewTimer(p.stopAfter())
	defer stop.Stop()

	frames := 0
	write := func() error {
		if err := enc.WriteFrame(src.Frame(clock.Progress())); err != nil {
			return fmt.Errorf("write frame %d: %w", frames, err)
		}
		frames++
		return nil
	}
	if err := write(); err != nil {
		return frames, err
	}

	prev := time.Now()
	for {
		select {
		case <-ctx.Done():
			return frames, ctx.Err()
		case <-stop.C:
			return frames, nil
		case now := <-ticker.C:
			clock.Tick(now.Sub(prev).Seconds())
			prev = now
			if err := write(); err != nil {
				return frames, err
			}
		}
	}
}
