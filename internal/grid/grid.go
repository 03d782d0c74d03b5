// Package grid splits a rectified board into 64 cells and decides which side
// of the board faces the camera.
package grid

import (
	"errors"
	"fmt"
	"image"
	"math"

	nchess "github.com/corentings/chess/v2"
	"go.uber.org/zap"

	"github.com/park285/chessfen/internal/domain"
	"github.com/park285/chessfen/internal/imaging"
)

var ErrMalformedBoard = errors.New("grid: rectified board is not square")

// Cell is one square of the board. Row and Col are orientation-normalized,
// Rect is the pixel area inside the rectified image.
type Cell struct {
	Row    int
	Col    int
	Square nchess.Square
	Rect   image.Rectangle
	Image  image.Image
}

type Grid struct {
	Cells       [8][8]Cell
	Orientation domain.Orientation
	// OrientationDetected is false when the orientation came from an override
	// or the default for an ambiguous board.
	OrientationDetected bool
	Size                int
}

// Flat returns the cells in row-major order, a8 first.
func (g *Grid) Flat() []Cell {
	out := make([]Cell, 0, 64)
	for r := range g.Cells {
		out = append(out, g.Cells[r][:]...)
	}
	return out
}

// Edges returns the nine cell boundaries along one axis of a board of the
// given side. Rounding each boundary independently keeps cells gap-free
// without accumulating drift.
func Edges(size int) [9]int {
	var e [9]int
	for i := range e {
		e[i] = int(math.Round(float64(i*size) / 8))
	}
	return e
}

// RawRect is the pixel rectangle of the raw (unnormalized) cell at row, col.
func RawRect(size, row, col int) image.Rectangle {
	e := Edges(size)
	return image.Rect(e[col], e[row], e[col+1], e[row+1])
}

type Partitioner struct {
	// ForegroundDistance is the RGB distance from the cell background that marks a piece pixel.
	ForegroundDistance float64
	// OccupiedFraction is the share of foreground pixels that marks a cell occupied.
	OccupiedFraction float64
	// MinLumaGap is the luminance difference between near and far pieces needed to trust an orientation.
	MinLumaGap float64
	logger     *zap.Logger
}

func NewPartitioner(logger *zap.Logger) *Partitioner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Partitioner{
		ForegroundDistance: 60,
		OccupiedFraction:   0.04,
		MinLumaGap:         40,
		logger:             logger,
	}
}

// Partition divides img into an 8x8 grid. A non-nil override skips orientation detection.
func (p *Partitioner) Partition(img *image.RGBA, override *domain.Orientation) (*Grid, error) {
	if img == nil {
		return nil, fmt.Errorf("%w: nil image", ErrMalformedBoard)
	}
	b := img.Bounds()
	if b.Dx() != b.Dy() || b.Dx() < 8 {
		return nil, fmt.Errorf("%w: %dx%d", ErrMalformedBoard, b.Dx(), b.Dy())
	}
	size := b.Dx()

	g := &Grid{Size: size}
	if override != nil {
		g.Orientation = *override
	} else {
		g.Orientation, g.OrientationDetected = p.DetectOrientation(img)
	}

	for r := 0; r < 8; r++ {
		for c := 0; c < 8; c++ {
			rr, rc := g.Orientation.Normalize(r, c)
			rect := RawRect(size, rr, rc).Add(b.Min)
			g.Cells[r][c] = Cell{
				Row:    r,
				Col:    c,
				Square: domain.SquareAt(r, c),
				Rect:   rect,
				Image:  img.SubImage(rect),
			}
		}
	}
	return g, nil
}

// DetectOrientation compares piece brightness on the two ranks nearest the
// camera with the two farthest. Light pieces near the camera mean white is at
// the bottom. The second result is false when the evidence is ambiguous, in
// which case WhiteBottom is returned.
func (p *Partitioner) DetectOrientation(img *image.RGBA) (domain.Orientation, bool) {
	size := img.Bounds().Dx()
	top, topOK := p.pieceLuma(img, size, []int{0, 1})
	bottom, bottomOK := p.pieceLuma(img, size, []int{6, 7})
	if !topOK || !bottomOK {
		p.logger.Debug("orientation_ambiguous", zap.Bool("top_pieces", topOK), zap.Bool("bottom_pieces", bottomOK))
		return domain.WhiteBottom, false
	}
	switch {
	case bottom-top >= p.MinLumaGap:
		return domain.WhiteBottom, true
	case top-bottom >= p.MinLumaGap:
		return domain.BlackBottom, true
	}
	p.logger.Debug("orientation_ambiguous", zap.Float64("top_luma", top), zap.Float64("bottom_luma", bottom))
	return domain.WhiteBottom, false
}

// pieceLuma averages the luminance of foreground pixels over occupied cells in the given raw rows.
func (p *Partitioner) pieceLuma(img *image.RGBA, size int, rows []int) (float64, bool) {
	origin := img.Bounds().Min
	var sum, n float64
	for _, r := range rows {
		for c := 0; c < 8; c++ {
			rect := RawRect(size, r, c).Add(origin)
			fg, count := p.foreground(img, rect)
			if count == 0 {
				continue
			}
			sum += fg
			n += float64(count)
		}
	}
	if n == 0 {
		return 0, false
	}
	return sum / n, true
}

// foreground returns the luminance sum and count of piece pixels in rect, or
// zero when the cell looks empty.
func (p *Partitioner) foreground(img *image.RGBA, rect image.Rectangle) (float64, int) {
	bg, ok := imaging.Background(img, rect)
	if !ok {
		return 0, 0
	}
	var sum float64
	count, total := 0, 0
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			px := imaging.At(img, x, y)
			total++
			if px.Dist(bg) > p.ForegroundDistance {
				sum += px.Luma()
				count++
			}
		}
	}
	if total == 0 || float64(count)/float64(total) < p.OccupiedFraction {
		return 0, 0
	}
	return sum, count
}
