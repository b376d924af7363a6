package scanner

import (
	"image"
	"image/color"
	"strings"

	"github.com/disintegration/imaging"
)

// Preprocessor conditions cropped captures for monochrome glyph recognition
// and carries the cheap frame heuristics (content presence, stability hash)
// that decide whether a frame is worth paying OCR cost on.
type Preprocessor struct {
	cfg Config
}

func NewPreprocessor(cfg Config) *Preprocessor {
	return &Preprocessor{cfg: cfg}
}

// CropROI cuts the centered region of interest out of a full frame. Bounding
// recognition to this crop keeps OCR cost flat and avoids background text.
func (p *Preprocessor) CropROI(frame image.Image) *image.NRGBA {
	b := frame.Bounds()
	w := int(float64(b.Dx()) * p.cfg.ROIWidthFrac)
	h := int(float64(b.Dy()) * p.cfg.ROIHeightFrac)
	if w < 1 || h < 1 {
		return imaging.Clone(frame)
	}
	x0 := b.Min.X + (b.Dx()-w)/2
	y0 := b.Min.Y + (b.Dy()-h)/2
	return imaging.Crop(frame, image.Rect(x0, y0, x0+w, y0+h))
}

// Binarize converts each pixel to luma, stretches contrast around mid-gray
// and applies a global threshold. The output is pure black or white.
func (p *Preprocessor) Binarize(img image.Image) *image.NRGBA {
	src := img
	if p.cfg.BoxBlur {
		src = boxBlur3(img)
	}
	b := src.Bounds()
	out := imaging.New(b.Dx(), b.Dy(), color.NRGBA{255, 255, 255, 255})
	thr := float64(p.cfg.BinarizeThreshold)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			adj := (luma(src.At(x, y))-128)*p.cfg.ContrastFactor + 128
			var v uint8
			if adj > thr {
				v = 255
			}
			out.SetNRGBA(x-b.Min.X, y-b.Min.Y, color.NRGBA{R: v, G: v, B: v, A: 255})
		}
	}
	return out
}

// HasVisibleContent samples a sparse grid of horizontal pixel pairs and
// counts the pairs whose luma differs by more than EdgeDelta. A frame whose
// edge-pair fraction stays under MinEdgeFraction is judged empty (camera
// pointed at a blank surface). A nil or zero-sized buffer is also "empty".
func (p *Preprocessor) HasVisibleContent(img image.Image) bool {
	if img == nil {
		return false
	}
	b := img.Bounds()
	stride := p.cfg.EdgeStride
	if stride < 2 {
		stride = 2
	}
	half := stride / 2
	total, edges := 0, 0
	for y := b.Min.Y; y < b.Max.Y; y += stride {
		for x := b.Min.X; x+half < b.Max.X; x += stride {
			d := luma(img.At(x, y)) - luma(img.At(x+half, y))
			if d < 0 {
				d = -d
			}
			total++
			if d > float64(p.cfg.EdgeDelta) {
				edges++
			}
		}
	}
	if total == 0 {
		return false
	}
	return float64(edges)/float64(total) >= p.cfg.MinEdgeFraction
}

// FrameHash reduces a frame to a short string over a coarse sample grid.
// Equal hashes across consecutive frames mean the scene is stable enough to
// recognize; the hash is a motion detector, not a fingerprint.
func (p *Preprocessor) FrameHash(img image.Image) string {
	const grid = 8
	b := img.Bounds()
	if b.Dx() < grid || b.Dy() < grid {
		return ""
	}
	sx, sy := b.Dx()/grid, b.Dy()/grid
	const hexdigits = "0123456789abcdef"
	var sb strings.Builder
	sb.Grow(grid * grid)
	for gy := 0; gy < grid; gy++ {
		for gx := 0; gx < grid; gx++ {
			l := luma(img.At(b.Min.X+gx*sx+sx/2, b.Min.Y+gy*sy+sy/2))
			sb.WriteByte(hexdigits[(int(l)>>4)&0xf])
		}
	}
	return sb.String()
}

// luma converts a color to perceptual brightness in [0,255].
func luma(c color.Color) float64 {
	r, g, b, _ := c.RGBA()
	return 0.299*float64(r>>8) + 0.587*float64(g>>8) + 0.114*float64(b>>8)
}

// boxBlur3 applies a 3x3 mean filter to suppress single-pixel sensor noise
// before binarization.
func boxBlur3(img image.Image) *image.NRGBA {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	out := imaging.New(w, h, color.NRGBA{255, 255, 255, 255})
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var sumR, sumG, sumB, n uint32
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					x2, y2 := x+dx, y+dy
					if x2 < 0 || y2 < 0 || x2 >= w || y2 >= h {
						continue
					}
					r, g, bb, _ := img.At(b.Min.X+x2, b.Min.Y+y2).RGBA()
					sumR += r >> 8
					sumG += g >> 8
					sumB += bb >> 8
					n++
				}
			}
			out.SetNRGBA(x, y, color.NRGBA{
				R: uint8(sumR / n),
				G: uint8(sumG / n),
				B: uint8(sumB / n),
				A: 255,
			})
		}
	}
	return out
}
