package preview

import (
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

type ramp struct{}

// Height grows with x; columns with z < 0 are unknown.
func (ramp) SurfaceHeightAt(x, z float64) float64 {
	if z < 0 {
		return -1
	}
	return x
}

func TestRenderShadesByHeight(t *testing.T) {
	img, lo, hi := Render(ramp{}, Options{CenterX: 8, CenterZ: 8, Extent: 16, Size: 64})
	if img.Bounds().Dx() != 64 || img.Bounds().Dy() != 64 {
		t.Fatalf("bounds = %v", img.Bounds())
	}
	if lo != 0.5 || hi != 15.5 {
		t.Errorf("range = [%v, %v]", lo, hi)
	}
	left, right := img.RGBAAt(1, 32), img.RGBAAt(62, 32)
	if left.R >= right.R {
		t.Errorf("higher columns should be brighter: %v vs %v", left, right)
	}
}

func TestRenderMarksUnknownColumns(t *testing.T) {
	img, _, _ := Render(ramp{}, Options{CenterX: 0, CenterZ: 0, Extent: 8, Size: 8})
	if got := img.RGBAAt(4, 0); got != unknownColor {
		t.Errorf("unknown column drawn as %v", got)
	}
	if got := img.RGBAAt(4, 7); got == unknownColor {
		t.Error("known column drawn as unknown")
	}
}

func TestRenderAllUnknown(t *testing.T) {
	_, lo, hi := Render(ramp{}, Options{CenterZ: -100, Extent: 4, Size: 4})
	if lo != -1 || hi != -1 {
		t.Errorf("range = [%v, %v]", lo, hi)
	}
}

func TestRenderLabelAndWrite(t *testing.T) {
	plain, _, _ := Render(ramp{}, Options{CenterX: 8, CenterZ: 8, Extent: 16, Size: 128})
	labeled, _, _ := Render(ramp{}, Options{CenterX: 8, CenterZ: 8, Extent: 16, Size: 128, Label: "hills 42"})
	differs := false
	for y := 0; y < 20 && !differs; y++ {
		for x := 0; x < 70; x++ {
			if plain.RGBAAt(x, y) != labeled.RGBAAt(x, y) {
				differs = true
				break
			}
		}
	}
	if !differs {
		t.Error("label not drawn")
	}

	path := filepath.Join(t.TempDir(), "out", "map.png")
	if err := WritePNG(path, labeled); err != nil {
		t.Fatal(err)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	cfg, err := png.DecodeConfig(f)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Width != 128 || cfg.Height != 128 {
		t.Errorf("decoded %dx%d", cfg.Width, cfg.Height)
	}
}
