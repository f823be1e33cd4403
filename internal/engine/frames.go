package engine

import (
	"image"

	"github.com/ivlev/stellarfield/internal/renderer"
	"github.com/ivlev/stellarfield/internal/system"
)

// frameSource feeds the capture pipeline from a prepared item. It is only
// touched after the ready signal fired, so prep is complete by then.
type frameSource struct {
	prep    *preparedItem
	engine  *renderer.Engine
	pool    *system.FramePool
	onStart func()

	frame *image.RGBA
}

func (f *frameSource) Size() (int, int) {
	if f.onStart != nil {
		f.onStart()
		f.onStart = nil
	}
	return f.prep.w, f.prep.h
}

func (f *frameSource) Frame(progress float64) *image.RGBA {
	if f.frame == nil {
		// first paint doubles as the first capture buffer
		f.frame = f.prep.first
		if f.frame == nil {
			f.frame = f.pool.Get(image.Rect(0, 0, f.prep.w, f.prep.h))
		}
	}
	f.engine.Render(f.frame, progress, f.prep.scene, renderer.Options{})
	return f.frame
}

// release returns the capture buffer, or the unused first paint, to the pool.
func (f *frameSource) release() {
	if f.frame == nil {
		f.frame = f.prep.first
	}
	f.prep.first = nil
	if f.frame != nil {
		f.pool.Put(f.frame)
		f.frame = nil
	}
}
