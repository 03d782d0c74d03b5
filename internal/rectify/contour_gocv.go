//go:build gocv

package rectify

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// ContourSupported reports whether this build links OpenCV.
const ContourSupported = true

// ContourDetector finds the largest four-sided contour with OpenCV. Unlike
// EdgeDetector it tolerates perspective, so it suits camera photos.
type ContourDetector struct {
	MinAreaFraction float64
	MaxAreaFraction float64
}

func NewContourDetector() *ContourDetector {
	return &ContourDetector{MinAreaFraction: 0.1, MaxAreaFraction: 0.98}
}

func (d *ContourDetector) Name() string { return "contour" }

func (d *ContourDetector) Detect(img image.Image) (Quad, error) {
	src := imageToMat(img)
	defer src.Close()

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(src, &gray, gocv.ColorBGRToGray)

	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(gray, &blurred, image.Point{X: 5, Y: 5}, 0, 0, gocv.BorderDefault)

	edges := gocv.NewMat()
	defer edges.Close()
	gocv.Canny(blurred, &edges, 50, 150)

	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Point{X: 3, Y: 3})
	defer kernel.Close()
	gocv.Dilate(edges, &edges, kernel)

	contours := gocv.FindContours(edges, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	imgArea := float64(src.Cols() * src.Rows())
	var best Quad
	var bestArea float64
	for i := 0; i < contours.Size(); i++ {
		contour := contours.At(i)
		area := gocv.ContourArea(contour)
		if area < imgArea*d.MinAreaFraction || area > imgArea*d.MaxAreaFraction {
			continue
		}
		epsilon := 0.02 * gocv.ArcLength(contour, true)
		approx := gocv.ApproxPolyDP(contour, epsilon, true)
		if approx.Size() == 4 && area > bestArea {
			var q Quad
			for j := 0; j < 4; j++ {
				pt := approx.At(j)
				q[j] = Point{X: float64(pt.X), Y: float64(pt.Y)}
			}
			best = q.Ordered()
			bestArea = area
		}
		approx.Close()
	}
	if bestArea == 0 {
		return Quad{}, fmt.Errorf("%w: no quadrilateral contour", ErrBoardNotFound)
	}
	return best, nil
}

// imageToMat converts img to a BGR Mat.
func imageToMat(img image.Image) gocv.Mat {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	mat := gocv.NewMatWithSize(h, w, gocv.MatTypeCV8UC3)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, b, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			mat.SetUCharAt(y, x*3+0, uint8(b>>8))
			mat.SetUCharAt(y, x*3+1, uint8(g>>8))
			mat.SetUCharAt(y, x*3+2, uint8(r>>8))
		}
	}
	return mat
}
