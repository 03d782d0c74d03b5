// Package pipeline runs the image-to-FEN stages under a per-request deadline.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/park285/chessfen/internal/activecolor"
	"github.com/park285/chessfen/internal/classifier"
	"github.com/park285/chessfen/internal/domain"
	"github.com/park285/chessfen/internal/fen"
	"github.com/park285/chessfen/internal/grid"
	"github.com/park285/chessfen/internal/rectify"
)

const DefaultTimeout = 10 * time.Second

// Request carries one image plus optional caller hints.
type Request struct {
	Image       image.Image
	Corners     *rectify.Quad
	Orientation *domain.Orientation
	// RequestID is generated when empty.
	RequestID string
}

type Timings struct {
	Rectify  time.Duration
	Grid     time.Duration
	Classify time.Duration
	Resolve  time.Duration
	Total    time.Duration
}

type Result struct {
	RequestID           string
	Record              fen.Record
	Matrix              domain.PieceMatrix
	Orientation         domain.Orientation
	OrientationDetected bool
	Corners             rectify.Quad
	BoardDetected       bool
	Board               *image.RGBA
	Timings             Timings
}

// Pipeline holds no per-request state and is safe for concurrent use.
type Pipeline struct {
	rectifier   *rectify.Rectifier
	partitioner *grid.Partitioner
	classifier  classifier.Classifier
	resolver    *activecolor.Resolver
	timeout     time.Duration
	maxPixels   int64
	logger      *zap.Logger
}

type Option func(*Pipeline)

func WithTimeout(d time.Duration) Option {
	return func(p *Pipeline) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithMaxPixels caps width*height of accepted images. Zero or less disables the cap.
func WithMaxPixels(n int64) Option {
	return func(p *Pipeline) { p.maxPixels = n }
}

func WithLogger(logger *zap.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

func New(r *rectify.Rectifier, part *grid.Partitioner, c classifier.Classifier, res *activecolor.Resolver, opts ...Option) (*Pipeline, error) {
	if r == nil || part == nil || c == nil || res == nil {
		return nil, errors.New("pipeline: rectifier, partitioner, classifier and resolver are required")
	}
	p := &Pipeline{
		rectifier:   r,
		partitioner: part,
		classifier:  c,
		resolver:    res,
		timeout:     DefaultTimeout,
		maxPixels:   DefaultMaxPixels,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

func (p *Pipeline) Timeout() time.Duration {
	return p.timeout
}

// RecognizeBytes decodes data and runs Recognize on it.
func (p *Pipeline) RecognizeBytes(ctx context.Context, data []byte, req Request) (*Result, error) {
	img, _, err := DecodeLimited(data, p.maxPixels)
	if err != nil {
		return nil, err
	}
	req.Image = img
	return p.Recognize(ctx, req)
}

// Recognize turns a board image into a FEN record. Failures are *Error values.
func (p *Pipeline) Recognize(ctx context.Context, req Request) (*Result, error) {
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}
	logger := p.logger.With(zap.String("request_id", req.RequestID))
	start := time.Now()

	res, err := p.run(ctx, req)
	if err != nil {
		kind, _ := KindOf(err)
		logger.Warn("recognize_failed",
			zap.String("kind", string(kind)),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
		return nil, err
	}
	res.Timings.Total = time.Since(start)
	logger.Info("recognized",
		zap.String("fen", res.Record.FEN),
		zap.String("orientation", res.Orientation.String()),
		zap.Bool("orientation_detected", res.OrientationDetected),
		zap.Bool("board_detected", res.BoardDetected),
		zap.String("cue", string(res.Record.Cue)),
		zap.String("confidence", string(res.Record.Confidence)),
		zap.Bool("valid", res.Record.Valid),
		zap.Duration("rectify", res.Timings.Rectify),
		zap.Duration("classify", res.Timings.Classify),
		zap.Duration("total", res.Timings.Total),
	)
	return res, nil
}

func (p *Pipeline) run(parent context.Context, req Request) (*Result, error) {
	if req.Image == nil || req.Image.Bounds().Empty() {
		return nil, newError(KindInvalidImage, "recognize", ErrEmptyImage)
	}
	b := req.Image.Bounds()
	if err := checkPixels(b.Dx(), b.Dy(), p.maxPixels); err != nil {
		return nil, newError(KindInvalidImage, "recognize", err)
	}
	ctx, cancel := context.WithTimeout(parent, p.timeout)
	defer cancel()

	res := &Result{RequestID: req.RequestID}

	t := time.Now()
	board, err := p.rectifier.Rectify(ctx, req.Image, req.Corners)
	res.Timings.Rectify = time.Since(t)
	if err != nil {
		return nil, stageError(ctx, KindBoardNotFound, "rectify", err)
	}
	res.Board = board.Image
	res.Corners = board.Source
	res.BoardDetected = board.Detected
	if err := ctx.Err(); err != nil {
		return nil, newError(KindTimeout, "rectify", err)
	}

	t = time.Now()
	g, err := p.partitioner.Partition(board.Image, req.Orientation)
	res.Timings.Grid = time.Since(t)
	if err != nil {
		return nil, stageError(ctx, KindPartition, "partition", err)
	}
	res.Orientation = g.Orientation
	res.OrientationDetected = g.OrientationDetected

	t = time.Now()
	cells := g.Flat()
	images := make([]image.Image, len(cells))
	for i, c := range cells {
		images[i] = c.Image
	}
	labels, err := classifier.ClassifyAll(ctx, p.classifier, images)
	res.Timings.Classify = time.Since(t)
	if err != nil {
		return nil, stageError(ctx, KindClassificationUnavailable, "classify", err)
	}
	if len(labels) != len(cells) {
		return nil, newError(KindClassificationUnavailable, "classify",
			fmt.Errorf("%w: got %d labels for %d cells", classifier.ErrUnavailable, len(labels), len(cells)))
	}
	for i, c := range cells {
		res.Matrix[c.Row][c.Col] = labels[i]
	}
	if err := ctx.Err(); err != nil {
		return nil, newError(KindTimeout, "classify", err)
	}

	t = time.Now()
	sig := p.resolver.Resolve(board.Image, g.Orientation, &res.Matrix)
	res.Timings.Resolve = time.Since(t)

	res.Record = fen.Assemble(&res.Matrix, sig)
	return res, nil
}
