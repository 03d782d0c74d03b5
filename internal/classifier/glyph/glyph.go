// Package glyph is a template-matching classifier for flat digital diagrams.
// Each cell is compared against the built-in piece glyphs composited over the
// cell's own square color, upright and upside down.
package glyph

import (
	"context"
	"fmt"
	"image"
	"math"
	"sync"

	nchess "github.com/corentings/chess/v2"
	xdraw "golang.org/x/image/draw"

	"github.com/park285/chessfen/internal/boardrender"
	"github.com/park285/chessfen/internal/classifier"
	"github.com/park285/chessfen/internal/domain"
	"github.com/park285/chessfen/internal/imaging"
)

type templateKey struct {
	piece   nchess.Piece
	size    int
	rotated bool
}

type Classifier struct {
	mu        sync.RWMutex
	templates map[templateKey]*image.RGBA
}

var _ classifier.Classifier = (*Classifier)(nil)

func New() *Classifier {
	return &Classifier{templates: map[templateKey]*image.RGBA{}}
}

// Warm renders every template for the given cell size ahead of the first request.
func (c *Classifier) Warm(size int) error {
	for _, p := range domain.AllPieces {
		for _, rotated := range []bool{false, true} {
			if _, err := c.template(p, size, rotated); err != nil {
				return err
			}
		}
	}
	return nil
}

func (c *Classifier) Classify(ctx context.Context, cell image.Image) (domain.PieceLabel, error) {
	if err := ctx.Err(); err != nil {
		return domain.PieceLabel{}, err
	}
	img := squareCell(cell)
	size := img.Bounds().Dx()
	if size < 8 {
		return domain.EmptyLabel, nil
	}
	bg, ok := imaging.Background(img, img.Bounds())
	if !ok {
		return domain.EmptyLabel, nil
	}

	best := nchess.NoPiece
	bestScore := uniformError(img, bg)
	second := math.Inf(1)
	for _, p := range domain.AllPieces {
		score := math.Inf(1)
		for _, rotated := range []bool{false, true} {
			tpl, err := c.template(p, size, rotated)
			if err != nil {
				return domain.PieceLabel{}, fmt.Errorf("%w: %v", classifier.ErrUnavailable, err)
			}
			score = math.Min(score, compositeError(img, tpl, bg))
		}
		if score < bestScore {
			best, bestScore, second = p, score, bestScore
		} else if score < second {
			second = score
		}
	}

	return domain.PieceLabel{Piece: best, Confidence: confidence(bestScore, second)}, nil
}

func (c *Classifier) template(p nchess.Piece, size int, rotated bool) (*image.RGBA, error) {
	key := templateKey{piece: p, size: size, rotated: rotated}
	c.mu.RLock()
	tpl, ok := c.templates[key]
	c.mu.RUnlock()
	if ok {
		return tpl, nil
	}

	img, err := boardrender.PieceImage(p, size)
	if err != nil {
		return nil, err
	}
	if rotated {
		img = imaging.Rotate180(img)
	}

	c.mu.Lock()
	c.templates[key] = img
	c.mu.Unlock()
	return img, nil
}

// squareCell returns cell as an origin-based square RGBA image, resampling
// non-square cells to the larger side.
func squareCell(cell image.Image) *image.RGBA {
	b := cell.Bounds()
	if b.Dx() == b.Dy() {
		return imaging.ToRGBA(cell)
	}
	side := max(b.Dx(), b.Dy())
	out := image.NewRGBA(image.Rect(0, 0, side, side))
	xdraw.BiLinear.Scale(out, out.Bounds(), cell, b, xdraw.Src, nil)
	return out
}

// uniformError is the mean squared error against an empty square.
func uniformError(img *image.RGBA, bg imaging.RGB) float64 {
	var sum float64
	n := len(img.Pix) / 4
	for i := 0; i < len(img.Pix); i += 4 {
		dr := float64(img.Pix[i]) - bg.R
		dg := float64(img.Pix[i+1]) - bg.G
		db := float64(img.Pix[i+2]) - bg.B
		sum += dr*dr + dg*dg + db*db
	}
	return sum / float64(n)
}

// compositeError is the mean squared error against tpl drawn over bg.
func compositeError(img, tpl *image.RGBA, bg imaging.RGB) float64 {
	var sum float64
	n := len(img.Pix) / 4
	for i := 0; i < len(img.Pix); i += 4 {
		// tpl is alpha-premultiplied.
		inv := 1 - float64(tpl.Pix[i+3])/255
		dr := float64(img.Pix[i]) - (float64(tpl.Pix[i]) + bg.R*inv)
		dg := float64(img.Pix[i+1]) - (float64(tpl.Pix[i+1]) + bg.G*inv)
		db := float64(img.Pix[i+2]) - (float64(tpl.Pix[i+2]) + bg.B*inv)
		sum += dr*dr + dg*dg + db*db
	}
	return sum / float64(n)
}

// confidence grows with the gap between the best and runner-up scores.
func confidence(best, second float64) float64 {
	if math.IsInf(second, 1) || second <= 0 {
		return 1
	}
	c := 1 - (best+1)/(second+1)
	return math.Max(0, math.Min(1, c))
}
