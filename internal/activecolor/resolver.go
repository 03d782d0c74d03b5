// Package activecolor guesses the side to move from last-move overlays drawn
// by online boards: an arrow first, then a pair of highlighted squares, and
// finally a low-confidence default of white.
package activecolor

import (
	"fmt"
	"image"

	nchess "github.com/corentings/chess/v2"
	"go.uber.org/zap"

	"github.com/park285/chessfen/internal/domain"
	"github.com/park285/chessfen/internal/grid"
	"github.com/park285/chessfen/internal/imaging"
)

// Tuning holds the detector thresholds.
type Tuning struct {
	// ArrowMinChroma is the minimum max-min channel spread of an arrow pixel.
	ArrowMinChroma float64
	// ArrowMinHueDistance is the minimum hue distance in degrees from the square color.
	ArrowMinHueDistance float64
	// ArrowMinArea is the minimum share of board pixels an arrow must cover.
	ArrowMinArea float64
	// ArrowMinElongation is the minimum ratio of the principal to the secondary variance.
	ArrowMinElongation float64
	// ArrowHeadRatio is how much wider the head end must be than the tail end.
	ArrowHeadRatio float64
	// HighlightMinShift is the minimum RGB distance between a tinted square and the plain palette.
	HighlightMinShift float64
	// HighlightMaxSpread bounds the disagreement between the four corner samples of a tinted square.
	HighlightMaxSpread float64
}

func DefaultTuning() Tuning {
	return Tuning{
		ArrowMinChroma:      40,
		ArrowMinHueDistance: 25,
		ArrowMinArea:        0.002,
		ArrowMinElongation:  3,
		ArrowHeadRatio:      1.6,
		HighlightMinShift:   18,
		HighlightMaxSpread:  12,
	}
}

// palette is the plain color of squares with even and odd raw parity.
type palette [2]imaging.RGB

// board bundles what the cue detectors look at.
type board struct {
	img      *image.RGBA
	size     int
	palette  palette
	orient   domain.Orientation
	matrix   *domain.PieceMatrix
	cellSize float64
}

type detector interface {
	cue() domain.Cue
	detect(b *board) (domain.Move, bool)
}

type Resolver struct {
	tuning    Tuning
	detectors []detector
	logger    *zap.Logger
}

func NewResolver(t Tuning, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		tuning: t,
		detectors: []detector{
			&arrowDetector{t: t},
			&highlightDetector{t: t},
		},
		logger: logger,
	}
}

// Resolve never fails. Detector errors and panics count as "cue not found".
func (r *Resolver) Resolve(img *image.RGBA, o domain.Orientation, m *domain.PieceMatrix) domain.ActiveColorSignal {
	if img == nil || m == nil || img.Bounds().Dx() < 8 || img.Bounds().Dx() != img.Bounds().Dy() {
		return domain.DefaultSignal()
	}
	b := &board{
		img:      imaging.ToRGBA(img),
		size:     img.Bounds().Dx(),
		orient:   o,
		matrix:   m,
		cellSize: float64(img.Bounds().Dx()) / 8,
	}
	b.palette = estimatePalette(b.img, b.size)

	for _, d := range r.detectors {
		mv, ok := r.safeDetect(d, b)
		if !ok {
			continue
		}
		dest := m.At(mv.To)
		if dest.IsEmpty() {
			r.logger.Debug("active_color_cue_rejected", zap.String("cue", string(d.cue())), zap.String("move", mv.UCI()))
			continue
		}
		move := mv
		return domain.ActiveColorSignal{
			Color:      domain.Opponent(dest.Color()),
			SourceMove: &move,
			Confidence: domain.ConfidenceHigh,
			Cue:        d.cue(),
		}
	}
	return domain.DefaultSignal()
}

func (r *Resolver) safeDetect(d detector, b *board) (mv domain.Move, ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Warn("active_color_detector_panic",
				zap.String("cue", string(d.cue())),
				zap.String("panic", fmt.Sprint(rec)),
			)
			mv, ok = domain.Move{}, false
		}
	}()
	return d.detect(b)
}

func estimatePalette(img *image.RGBA, size int) palette {
	var samples [2][]imaging.RGB
	for r := 0; r < 8; r++ {
		for c := 0; c < 8; c++ {
			if bg, ok := imaging.Background(img, grid.RawRect(size, r, c)); ok {
				samples[(r+c)%2] = append(samples[(r+c)%2], bg)
			}
		}
	}
	return palette{imaging.Median(samples[0]), imaging.Median(samples[1])}
}

// rawCell maps a pixel to its raw row and column.
func (b *board) rawCell(x, y float64) (int, int) {
	col := int(x / b.cellSize)
	row := int(y / b.cellSize)
	return min(max(row, 0), 7), min(max(col, 0), 7)
}

// squareAt converts a raw cell to the board square it shows.
func (b *board) squareAt(row, col int) nchess.Square {
	return domain.SquareAt(b.orient.Normalize(row, col))
}
