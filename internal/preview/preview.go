// Package preview renders top-down heightmaps of a world for quick inspection.
package preview

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"voxelglobe/internal/profiling"
)

// HeightSource answers the terrain height of a column, or a negative value when unknown.
type HeightSource interface {
	SurfaceHeightAt(x, z float64) float64
}

type Options struct {
	CenterX, CenterZ float64
	Extent           int // world blocks per side
	Size             int // output pixels per side
	Label            string
}

var (
	unknownColor = color.RGBA{20, 24, 48, 255}
	labelColor   = color.RGBA{255, 255, 255, 255}
	low          = [3]float64{40, 90, 40}
	high         = [3]float64{235, 235, 225}
)

// Render samples one height per block and scales the result to Size. The min and max
// heights seen are returned alongside the image.
func Render(src HeightSource, opts Options) (img *image.RGBA, lo, hi float64) {
	defer profiling.Track("preview.Render")()
	n := max(opts.Extent, 1)
	heights := make([]float64, n*n)
	lo, hi = math.Inf(1), math.Inf(-1)
	x0 := math.Floor(opts.CenterX) - float64(n/2)
	z0 := math.Floor(opts.CenterZ) - float64(n/2)
	for j := range n {
		for i := range n {
			h := src.SurfaceHeightAt(x0+float64(i)+0.5, z0+float64(j)+0.5)
			heights[j*n+i] = h
			if h < 0 {
				continue
			}
			lo = math.Min(lo, h)
			hi = math.Max(hi, h)
		}
	}
	if math.IsInf(lo, 1) {
		lo, hi = -1, -1
	}

	raw := image.NewRGBA(image.Rect(0, 0, n, n))
	for j := range n {
		for i := range n {
			raw.SetRGBA(i, j, shade(heights[j*n+i], lo, hi))
		}
	}

	size := max(opts.Size, 1)
	img = image.NewRGBA(image.Rect(0, 0, size, size))
	draw.NearestNeighbor.Scale(img, img.Bounds(), raw, raw.Bounds(), draw.Src, nil)

	if opts.Label != "" {
		d := font.Drawer{
			Dst:  img,
			Src:  image.NewUniform(labelColor),
			Face: basicfont.Face7x13,
			Dot:  fixed.P(4, 4+basicfont.Face7x13.Ascent),
		}
		d.DrawString(opts.Label)
	}
	return img, lo, hi
}

func shade(h, lo, hi float64) color.RGBA {
	if h < 0 {
		return unknownColor
	}
	t := 0.5
	if hi > lo {
		t = (h - lo) / (hi - lo)
	}
	var c [3]uint8
	for k := range c {
		c[k] = uint8(low[k] + (high[k]-low[k])*t)
	}
	return color.RGBA{c[0], c[1], c[2], 255}
}

// WritePNG encodes img to path, creating the parent directory.
func WritePNG(path string, img image.Image) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create preview: %w", err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("encode preview: %w", err)
	}
	return f.Close()
}
