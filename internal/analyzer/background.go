package analyzer

import (
	"context"
	"image"
	"math"

	"golang.org/x/image/draw"
	"golang.org/x/sync/errgroup"
)

// toAnalysisRGBA returns img as a zero-origin RGBA no wider than maxW.
func toAnalysisRGBA(img image.Image, maxW int) *image.RGBA {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if maxW > 0 && w > maxW {
		nh := int(math.Round(float64(h) * float64(maxW) / float64(w)))
		if nh < 1 {
			nh = 1
		}
		dst := image.NewRGBA(image.Rect(0, 0, maxW, nh))
		draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
		return dst
	}
	if rgba, ok := img.(*image.RGBA); ok && rgba.Rect.Min == (image.Point{}) {
		return rgba
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

// rowChunks splits [0,h) into at most n contiguous ranges.
func rowChunks(h, n int) [][2]int {
	if n < 1 {
		n = 1
	}
	if n > h {
		n = h
	}
	var out [][2]int
	size := (h + n - 1) / n
	for y0 := 0; y0 < h; y0 += size {
		y1 := y0 + size
		if y1 > h {
			y1 = h
		}
		out = append(out, [2]int{y0, y1})
	}
	return out
}

// luminance converts rgba into perceptual luminance (0..255).
func luminance(ctx context.Context, rgba *image.RGBA, workers int) ([]float32, error) {
	w, h := rgba.Rect.Dx(), rgba.Rect.Dy()
	luma := make([]float32, w*h)

	g, ctx := errgroup.WithContext(ctx)
	for _, c := range rowChunks(h, workers) {
		y0, y1 := c[0], c[1]
		g.Go(func() error {
			for y := y0; y < y1; y++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				row := rgba.Pix[y*rgba.Stride : y*rgba.Stride+w*4]
				for x := 0; x < w; x++ {
					p := row[x*4 : x*4+3]
					luma[y*w+x] = 0.299*float32(p[0]) + 0.587*float32(p[1]) + 0.114*float32(p[2])
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return luma, nil
}

// backgroundMap holds the per-block luminance floor, a cheap approximation
// of a morphological opening.
type backgroundMap struct {
	block  int
	cols   int
	floors []float32
}

func (b *backgroundMap) at(x, y int) float32 {
	return b.floors[(y/b.block)*b.cols+x/b.block]
}

func blockFloors(ctx context.Context, luma []float32, w, h, block, stride, workers int) (*backgroundMap, error) {
	cols := (w + block - 1) / block
	rows := (h + block - 1) / block
	bg := &backgroundMap{block: block, cols: cols, floors: make([]float32, cols*rows)}

	g, ctx := errgroup.WithContext(ctx)
	for _, c := range rowChunks(rows, workers) {
		r0, r1 := c[0], c[1]
		g.Go(func() error {
			for by := r0; by < r1; by++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				y0, y1 := by*block, min((by+1)*block, h)
				for bx := 0; bx < cols; bx++ {
					x0, x1 := bx*block, min((bx+1)*block, w)
					floor := float32(math.MaxFloat32)
					for y := y0; y < y1; y += stride {
						for x := x0; x < x1; x += stride {
							if v := luma[y*w+x]; v < floor {
								floor = v
							}
						}
					}
					bg.floors[by*cols+bx] = floor
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return bg, nil
}

// residualStats samples residuals on a coarse grid and returns mean and
// population standard deviation.
func residualStats(res func(x, y int) float64, w, h, stride int) (mean, sigma float64) {
	var sum, sumSq float64
	n := 0
	for y := 0; y < h; y += stride {
		for x := 0; x < w; x += stride {
			v := res(x, y)
			sum += v
			sumSq += v * v
			n++
		}
	}
	if n == 0 {
		return 0, 0
	}
	mean = sum / float64(n)
	variance := sumSq/float64(n) - mean*mean
	if variance < 0 {
		variance = 0
	}
	return mean, math.Sqrt(variance)
}
