package scanner

import (
	"image"
	"image/color"
	"testing"
)

// uniformImage is a flat surface the content check must treat as empty.
func uniformImage(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

// stripedImage alternates black and white columns, which saturates the
// horizontal edge-pair sampler.
func stripedImage(w, h, stripe int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.NRGBA{0, 0, 0, 255}
			if (x/stripe)%2 == 1 {
				c = color.NRGBA{255, 255, 255, 255}
			}
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func TestHasVisibleContent(t *testing.T) {
	p := NewPreprocessor(DefaultConfig())
	if p.HasVisibleContent(uniformImage(64, 64, color.NRGBA{200, 200, 200, 255})) {
		t.Fatalf("flat frame should be judged empty")
	}
	if !p.HasVisibleContent(stripedImage(64, 64, 4)) {
		t.Fatalf("high-contrast stripes should be judged as content")
	}
	if p.HasVisibleContent(nil) {
		t.Fatalf("nil frame should be judged empty")
	}
	if p.HasVisibleContent(image.NewNRGBA(image.Rect(0, 0, 0, 0))) {
		t.Fatalf("zero-sized frame should be judged empty")
	}
}

func TestBinarizeProducesPureBlackAndWhite(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 32, 32))
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			c := color.NRGBA{20, 20, 20, 255}
			if x >= 16 {
				c = color.NRGBA{230, 230, 230, 255}
			}
			img.SetNRGBA(x, y, c)
		}
	}

	out := NewPreprocessor(DefaultConfig()).Binarize(img)
	sawBlack, sawWhite := false, false
	b := out.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := out.NRGBAAt(x, y)
			if c.R != c.G || c.G != c.B {
				t.Fatalf("pixel (%d,%d) is not gray: %+v", x, y, c)
			}
			switch c.R {
			case 0:
				sawBlack = true
			case 255:
				sawWhite = true
			default:
				t.Fatalf("pixel (%d,%d) is not pure black or white: %d", x, y, c.R)
			}
		}
	}
	if !sawBlack || !sawWhite {
		t.Fatalf("expected both tones, black=%v white=%v", sawBlack, sawWhite)
	}
}

func TestFrameHashStability(t *testing.T) {
	p := NewPreprocessor(DefaultConfig())
	dark := uniformImage(16, 16, color.NRGBA{0, 0, 0, 255})
	light := uniformImage(16, 16, color.NRGBA{255, 255, 255, 255})

	h1 := p.FrameHash(dark)
	h2 := p.FrameHash(uniformImage(16, 16, color.NRGBA{0, 0, 0, 255}))
	if h1 == "" || h1 != h2 {
		t.Fatalf("identical frames should hash identically: %q vs %q", h1, h2)
	}
	if h3 := p.FrameHash(light); h3 == h1 {
		t.Fatalf("opposite frames should not collide: %q", h3)
	}
	if h := p.FrameHash(uniformImage(4, 4, color.NRGBA{0, 0, 0, 255})); h != "" {
		t.Fatalf("sub-grid frame should hash empty, got %q", h)
	}
}

func TestCropROIDimensions(t *testing.T) {
	cfg := DefaultConfig()
	p := NewPreprocessor(cfg)
	frame := uniformImage(100, 100, color.NRGBA{128, 128, 128, 255})
	roi := p.CropROI(frame)
	wantW := int(100 * cfg.ROIWidthFrac)
	wantH := int(100 * cfg.ROIHeightFrac)
	if roi.Bounds().Dx() != wantW || roi.Bounds().Dy() != wantH {
		t.Fatalf("expected %dx%d crop, got %dx%d", wantW, wantH, roi.Bounds().Dx(), roi.Bounds().Dy())
	}
}
