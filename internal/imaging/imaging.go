// Package imaging holds the small pixel helpers shared by the recognition stages.
package imaging

import (
	"image"
	"image/color"
	"image/draw"
	"math"
	"sort"
)

// RGB is an 8-bit color sample without alpha, stored as float64 for averaging.
type RGB struct {
	R, G, B float64
}

func FromColor(c color.Color) RGB {
	r, g, b, _ := c.RGBA()
	return RGB{R: float64(r >> 8), G: float64(g >> 8), B: float64(b >> 8)}
}

func (c RGB) RGBA() color.RGBA {
	return color.RGBA{R: clamp8(c.R), G: clamp8(c.G), B: clamp8(c.B), A: 255}
}

// Luma is the Rec. 601 luminance in 0..255.
func (c RGB) Luma() float64 {
	return 0.299*c.R + 0.587*c.G + 0.114*c.B
}

// Chroma is max(R,G,B) - min(R,G,B).
func (c RGB) Chroma() float64 {
	return math.Max(c.R, math.Max(c.G, c.B)) - math.Min(c.R, math.Min(c.G, c.B))
}

// Hue returns the hue angle in degrees [0,360). Achromatic colors return 0.
func (c RGB) Hue() float64 {
	maxC := math.Max(c.R, math.Max(c.G, c.B))
	minC := math.Min(c.R, math.Min(c.G, c.B))
	diff := maxC - minC
	if diff == 0 {
		return 0
	}
	var h float64
	switch maxC {
	case c.R:
		h = 60 * math.Mod((c.G-c.B)/diff, 6)
	case c.G:
		h = 60 * ((c.B-c.R)/diff + 2)
	default:
		h = 60 * ((c.R-c.G)/diff + 4)
	}
	if h < 0 {
		h += 360
	}
	return h
}

// Dist is the Euclidean RGB distance.
func (c RGB) Dist(o RGB) float64 {
	dr, dg, db := c.R-o.R, c.G-o.G, c.B-o.B
	return math.Sqrt(dr*dr + dg*dg + db*db)
}

// HueDistance is the circular distance between two hue angles in degrees.
func HueDistance(a, b float64) float64 {
	d := math.Abs(a - b)
	if d > 180 {
		d = 360 - d
	}
	return d
}

// ToRGBA returns img as a tightly packed *image.RGBA with bounds starting at
// the origin, so Pix holds exactly Dx*Dy pixels. Anything else is copied.
func ToRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && packed(rgba) {
		return rgba
	}
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
	return out
}

func packed(img *image.RGBA) bool {
	b := img.Bounds()
	return b.Min == (image.Point{}) && img.Stride == 4*b.Dx() && len(img.Pix) == 4*b.Dx()*b.Dy()
}

// At reads a pixel of an RGBA image as RGB.
func At(img *image.RGBA, x, y int) RGB {
	i := img.PixOffset(x, y)
	p := img.Pix[i : i+3 : i+3]
	return RGB{R: float64(p[0]), G: float64(p[1]), B: float64(p[2])}
}

// MeanRect averages the pixels of r clipped to the image bounds.
func MeanRect(img *image.RGBA, r image.Rectangle) (RGB, bool) {
	r = r.Intersect(img.Bounds())
	if r.Empty() {
		return RGB{}, false
	}
	var sum RGB
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			p := At(img, x, y)
			sum.R += p.R
			sum.G += p.G
			sum.B += p.B
		}
	}
	n := float64(r.Dx() * r.Dy())
	return RGB{R: sum.R / n, G: sum.G / n, B: sum.B / n}, true
}

// Median returns the per-channel median of colors.
func Median(colors []RGB) RGB {
	if len(colors) == 0 {
		return RGB{}
	}
	rs := make([]float64, len(colors))
	gs := make([]float64, len(colors))
	bs := make([]float64, len(colors))
	for i, c := range colors {
		rs[i], gs[i], bs[i] = c.R, c.G, c.B
	}
	return RGB{R: MedianFloat(rs), G: MedianFloat(gs), B: MedianFloat(bs)}
}

// MedianFloat sorts vals in place and returns the median.
func MedianFloat(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	sort.Float64s(vals)
	mid := len(vals) / 2
	if len(vals)%2 == 1 {
		return vals[mid]
	}
	return (vals[mid-1] + vals[mid]) / 2
}

// CornerPatches returns four small squares inset from the corners of r.
func CornerPatches(r image.Rectangle) []image.Rectangle {
	side := r.Dx()
	if r.Dy() < side {
		side = r.Dy()
	}
	inset := side / 16
	size := side / 8
	if size < 1 {
		size = 1
	}
	return []image.Rectangle{
		image.Rect(r.Min.X+inset, r.Min.Y+inset, r.Min.X+inset+size, r.Min.Y+inset+size),
		image.Rect(r.Max.X-inset-size, r.Min.Y+inset, r.Max.X-inset, r.Min.Y+inset+size),
		image.Rect(r.Min.X+inset, r.Max.Y-inset-size, r.Min.X+inset+size, r.Max.Y-inset),
		image.Rect(r.Max.X-inset-size, r.Max.Y-inset-size, r.Max.X-inset, r.Max.Y-inset),
	}
}

// Background estimates the plain square color of a cell as the median of its corner patches.
func Background(img *image.RGBA, rect image.Rectangle) (RGB, bool) {
	var samples []RGB
	for _, patch := range CornerPatches(rect) {
		if m, ok := MeanRect(img, patch); ok {
			samples = append(samples, m)
		}
	}
	if len(samples) == 0 {
		return RGB{}, false
	}
	return Median(samples), true
}

// Rotate180 returns a copy of img turned upside down.
func Rotate180(img image.Image) *image.RGBA {
	src := ToRGBA(img)
	b := src.Bounds()
	out := image.NewRGBA(b)
	w, h := b.Dx(), b.Dy()
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			si := src.PixOffset(x, y)
			di := out.PixOffset(w-1-x, h-1-y)
			copy(out.Pix[di:di+4], src.Pix[si:si+4])
		}
	}
	return out
}

func clamp8(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v + 0.5)
}
