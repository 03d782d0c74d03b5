//go:build !gocv

package rectify

import (
	"fmt"
	"image"
)

// ContourSupported reports whether this build links OpenCV.
const ContourSupported = false

// ContourDetector is a stub for builds without the gocv tag.
type ContourDetector struct {
	MinAreaFraction float64
	MaxAreaFraction float64
}

func NewContourDetector() *ContourDetector {
	return &ContourDetector{MinAreaFraction: 0.1, MaxAreaFraction: 0.98}
}

func (d *ContourDetector) Name() string { return "contour" }

func (d *ContourDetector) Detect(image.Image) (Quad, error) {
	return Quad{}, fmt.Errorf("%w: contour detection requires the gocv build tag", ErrBoardNotFound)
}
