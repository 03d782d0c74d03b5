package rectify

import (
	"context"
	"fmt"
	"image"
	"math"

	"gonum.org/v1/gonum/mat"
)

// homography maps canonical board coordinates to source image coordinates.
type homography [9]float64

func (h homography) apply(u, v float64) (float64, float64) {
	w := h[6]*u + h[7]*v + h[8]
	if w == 0 {
		return math.NaN(), math.NaN()
	}
	return (h[0]*u + h[1]*v + h[2]) / w, (h[3]*u + h[4]*v + h[5]) / w
}

// solveHomography finds H with H*(dst corner) ~ (src corner) for the four corners
// of a size x size square.
func solveHomography(src Quad, size float64) (homography, error) {
	dst := Quad{{0, 0}, {size, 0}, {size, size}, {0, size}}

	A := mat.NewDense(8, 8, nil)
	B := mat.NewVecDense(8, nil)
	for i := 0; i < 4; i++ {
		u, v := dst[i].X, dst[i].Y
		x, y := src[i].X, src[i].Y

		A.Set(i*2, 0, u)
		A.Set(i*2, 1, v)
		A.Set(i*2, 2, 1)
		A.Set(i*2, 6, -u*x)
		A.Set(i*2, 7, -v*x)
		B.SetVec(i*2, x)

		A.Set(i*2+1, 3, u)
		A.Set(i*2+1, 4, v)
		A.Set(i*2+1, 5, 1)
		A.Set(i*2+1, 6, -u*y)
		A.Set(i*2+1, 7, -v*y)
		B.SetVec(i*2+1, y)
	}

	var params mat.VecDense
	if err := params.SolveVec(A, B); err != nil {
		return homography{}, fmt.Errorf("solve homography: %w", err)
	}
	var h homography
	for i := 0; i < 8; i++ {
		h[i] = params.AtVec(i)
	}
	h[8] = 1
	return h, nil
}

// warpPerspective samples src through h into a size x size image using bilinear interpolation.
func warpPerspective(ctx context.Context, src *image.RGBA, h homography, size int) (*image.RGBA, error) {
	out := image.NewRGBA(image.Rect(0, 0, size, size))
	for v := 0; v < size; v++ {
		if v%64 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		for u := 0; u < size; u++ {
			x, y := h.apply(float64(u)+0.5, float64(v)+0.5)
			sampleBilinear(src, x-0.5, y-0.5, out.Pix[out.PixOffset(u, v):])
		}
	}
	return out, nil
}

// sampleBilinear writes the interpolated pixel at (x, y) into dst[0:4], clamping to the source edges.
func sampleBilinear(src *image.RGBA, x, y float64, dst []uint8) {
	b := src.Bounds()
	if math.IsNaN(x) || math.IsNaN(y) {
		dst[0], dst[1], dst[2], dst[3] = 0, 0, 0, 255
		return
	}
	maxX := float64(b.Dx() - 1)
	maxY := float64(b.Dy() - 1)
	x = math.Max(0, math.Min(maxX, x))
	y = math.Max(0, math.Min(maxY, y))

	x0 := int(math.Floor(x))
	y0 := int(math.Floor(y))
	x1 := min(x0+1, b.Dx()-1)
	y1 := min(y0+1, b.Dy()-1)
	fx := x - float64(x0)
	fy := y - float64(y0)

	p00 := src.PixOffset(b.Min.X+x0, b.Min.Y+y0)
	p10 := src.PixOffset(b.Min.X+x1, b.Min.Y+y0)
	p01 := src.PixOffset(b.Min.X+x0, b.Min.Y+y1)
	p11 := src.PixOffset(b.Min.X+x1, b.Min.Y+y1)
	for c := 0; c < 4; c++ {
		top := float64(src.Pix[p00+c])*(1-fx) + float64(src.Pix[p10+c])*fx
		bottom := float64(src.Pix[p01+c])*(1-fx) + float64(src.Pix[p11+c])*fx
		dst[c] = uint8(math.Round(top*(1-fy) + bottom*fy))
	}
}
