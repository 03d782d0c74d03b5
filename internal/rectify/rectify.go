// Package rectify locates the chessboard in an input image and warps it onto
// a canonical square.
package rectify

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math"

	"go.uber.org/zap"

	"github.com/park285/chessfen/internal/imaging"
)

var ErrBoardNotFound = errors.New("rectify: chessboard not found")

const DefaultOutputSize = 512

// Detector proposes board corners when the caller did not supply them.
type Detector interface {
	Name() string
	Detect(img image.Image) (Quad, error)
}

// Board is the rectified, square board image.
type Board struct {
	Image    *image.RGBA
	Source   Quad
	Detected bool
}

func (b *Board) Size() int {
	return b.Image.Bounds().Dx()
}

type Rectifier struct {
	detector        Detector
	outputSize      int
	aspectTolerance float64
	minHintArea     float64
	logger          *zap.Logger
}

type Option func(*Rectifier)

func WithOutputSize(size int) Option {
	return func(r *Rectifier) {
		if size >= 64 {
			r.outputSize = size
		}
	}
}

// WithAspectTolerance sets how far a detected region may stray from square, e.g. 0.2 allows 1.2:1.
func WithAspectTolerance(tol float64) Option {
	return func(r *Rectifier) {
		if tol > 0 {
			r.aspectTolerance = tol
		}
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(r *Rectifier) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func New(detector Detector, opts ...Option) *Rectifier {
	r := &Rectifier{
		detector:        detector,
		outputSize:      DefaultOutputSize,
		aspectTolerance: 0.2,
		minHintArea:     64,
		logger:          zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Rectifier) OutputSize() int {
	return r.outputSize
}

// Rectify warps the board region of img onto an OutputSize square. A hint
// bypasses detection. Without one, a failed or implausible detection yields ErrBoardNotFound.
func (r *Rectifier) Rectify(ctx context.Context, img image.Image, hint *Quad) (*Board, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, fmt.Errorf("%w: empty image", ErrBoardNotFound)
	}

	var quad Quad
	detected := false
	if hint != nil {
		quad = hint.Ordered()
		if !quad.Convex() || quad.Area() < r.minHintArea {
			return nil, fmt.Errorf("%w: corner hint is degenerate", ErrBoardNotFound)
		}
	} else {
		if r.detector == nil {
			return nil, fmt.Errorf("%w: no corners given and detection disabled", ErrBoardNotFound)
		}
		q, err := r.detector.Detect(img)
		if err != nil {
			r.logger.Debug("board_detect_failed", zap.String("detector", r.detector.Name()), zap.Error(err))
			if errors.Is(err, ErrBoardNotFound) {
				return nil, err
			}
			return nil, fmt.Errorf("%w: %v", ErrBoardNotFound, err)
		}
		quad = q.Ordered()
		aspect := quad.AspectRatio()
		if math.Abs(math.Log(aspect)) > math.Log(1+r.aspectTolerance) {
			r.logger.Debug("board_detect_aspect_rejected",
				zap.String("detector", r.detector.Name()),
				zap.Float64("aspect", aspect),
			)
			return nil, fmt.Errorf("%w: aspect ratio %.2f out of tolerance", ErrBoardNotFound, aspect)
		}
		detected = true
	}

	h, err := solveHomography(quad, float64(r.outputSize))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBoardNotFound, err)
	}
	out, err := warpPerspective(ctx, imaging.ToRGBA(img), h, r.outputSize)
	if err != nil {
		return nil, err
	}

	r.logger.Debug("board_rectified",
		zap.Bool("detected", detected),
		zap.String("corners", quad.String()),
		zap.Int("size", r.outputSize),
	)
	return &Board{Image: out, Source: quad, Detected: detected}, nil
}

// Chain tries each detector in turn and returns the first hit.
type Chain []Detector

func (c Chain) Name() string {
	name := "chain"
	for _, d := range c {
		name += ":" + d.Name()
	}
	return name
}

func (c Chain) Detect(img image.Image) (Quad, error) {
	var errs []error
	for _, d := range c {
		q, err := d.Detect(img)
		if err == nil {
			return q, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", d.Name(), err))
	}
	if len(errs) == 0 {
		return Quad{}, ErrBoardNotFound
	}
	return Quad{}, errors.Join(errs...)
}
