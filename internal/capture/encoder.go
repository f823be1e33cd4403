package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os/exec"
	"strings"
	"sync"
)

// Encoder consumes raw frames and emits the container stream through the
// chunk callback given to the factory.
type Encoder interface {
	WriteFrame(img *image.RGBA) error
	// Close flushes the stream. All chunks are delivered before it returns.
	Close() error
}

type EncoderOptions struct {
	Profile     Profile
	Width       int
	Height      int
	FPS         int
	BitrateKbps int
	// Reduced drops the bitrate and the profile's encoder options.
	Reduced bool
}

type EncoderFactory interface {
	NewEncoder(ctx context.Context, opts EncoderOptions, onChunk func([]byte)) (Encoder, error)
}

const chunkSize = 64 << 10

// FFmpegFactory starts one ffmpeg process per session: rawvideo RGBA on stdin,
// the muxed stream on stdout.
type FFmpegFactory struct {
	Binary string
}

func (f FFmpegFactory) NewEncoder(ctx context.Context, opts EncoderOptions, onChunk func([]byte)) (Encoder, error) {
	if opts.Width <= 0 || opts.Height <= 0 || opts.FPS <= 0 {
		return nil, fmt.Errorf("invalid encoder geometry %dx%d@%d", opts.Width, opts.Height, opts.FPS)
	}
	bin := f.Binary
	if bin == "" {
		bin = "ffmpeg"
	}

	cmd := exec.CommandContext(ctx, bin, buildFFmpegArgs(opts)...)
	e := &FFmpegEncoder{cmd: cmd, w: opts.Width, h: opts.Height, readDone: make(chan error, 1)}
	cmd.Stderr = &e.stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe error: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe error: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("ffmpeg start error: %w", err)
	}
	e.stdin = stdin

	go func() {
		buf := make([]byte, chunkSize)
		for {
			n, err := stdout.Read(buf)
			if n > 0 {
				chunk := make([]byte, n)
				copy(chunk, buf[:n])
				onChunk(chunk)
			}
			if err != nil {
				if errors.Is(err, io.EOF) {
					err = nil
				}
				e.readDone <- err
				return
			}
		}
	}()
	return e, nil
}

func buildFFmpegArgs(opts EncoderOptions) []string {
	p := opts.Profile
	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-f", "rawvideo",
		"-pixel_format", "rgba",
		"-video_size", fmt.Sprintf("%dx%d", opts.Width, opts.Height),
		"-framerate", fmt.Sprintf("%d", opts.FPS),
		"-i", "-",
		"-an",
		"-c:v", p.Codec,
		"-pix_fmt", "yuv420p",
	}
	if !opts.Reduced {
		if opts.BitrateKbps > 0 {
			args = append(args, "-b:v", fmt.Sprintf("%dk", opts.BitrateKbps))
		}
		args = append(args, p.Args...)
	}
	args = append(args, p.MuxArgs...)
	args = append(args, "-f", p.Muxer, "pipe:1")
	return args
}

type FFmpegEncoder struct {
	cmd      *exec.Cmd
	stdin    io.WriteCloser
	stderr   bytes.Buffer
	w, h     int
	readDone chan error

	closeOnce sync.Once
	closeErr  error
}

func (e *FFmpegEncoder) WriteFrame(img *image.RGBA) error {
	b := img.Bounds()
	if b.Dx() != e.w || b.Dy() != e.h {
		return fmt.Errorf("frame %dx%d, encoder expects %dx%d", b.Dx(), b.Dy(), e.w, e.h)
	}
	// непрерывный буфер пишем целиком, иначе построчно
	if img.Stride == e.w*4 {
		start := img.PixOffset(b.Min.X, b.Min.Y)
		_, err := e.stdin.Write(img.Pix[start : start+e.w*e.h*4])
		return err
	}
	for y := b.Min.Y; y < b.Max.Y; y++ {
		off := img.PixOffset(b.Min.X, y)
		if _, err := e.stdin.Write(img.Pix[off : off+e.w*4]); err != nil {
			return err
		}
	}
	return nil
}

func (e *FFmpegEncoder) Close() error {
	e.closeOnce.Do(func() {
		e.stdin.Close()
		readErr := <-e.readDone
		if err := e.cmd.Wait(); err != nil {
			e.closeErr = fmt.Errorf("ffmpeg wait error: %w: %s", err, strings.TrimSpace(e.stderr.String()))
			return
		}
		e.closeErr = readErr
	})
	return e.closeErr
}
