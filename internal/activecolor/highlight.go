package activecolor

import (
	"github.com/park285/chessfen/internal/domain"
	"github.com/park285/chessfen/internal/grid"
	"github.com/park285/chessfen/internal/imaging"
)

// highlightDetector looks for exactly two squares whose plain color is tinted
// away from the board palette. The occupied one is the move destination.
type highlightDetector struct {
	t Tuning
}

func (d *highlightDetector) cue() domain.Cue { return domain.CueHighlight }

func (d *highlightDetector) detect(b *board) (domain.Move, bool) {
	type cell struct{ row, col int }
	var tinted []cell
	for r := 0; r < 8; r++ {
		for c := 0; c < 8; c++ {
			if d.tinted(b, r, c) {
				tinted = append(tinted, cell{r, c})
			}
		}
	}
	if len(tinted) != 2 {
		return domain.Move{}, false
	}

	a := b.squareAt(tinted[0].row, tinted[0].col)
	z := b.squareAt(tinted[1].row, tinted[1].col)
	aEmpty := b.matrix.At(a).IsEmpty()
	zEmpty := b.matrix.At(z).IsEmpty()
	switch {
	case aEmpty && !zEmpty:
		return domain.Move{From: a, To: z}, true
	case zEmpty && !aEmpty:
		return domain.Move{From: z, To: a}, true
	}
	return domain.Move{}, false
}

// tinted reports whether all four corner samples of the raw cell agree with
// each other and sit away from both palette colors.
func (d *highlightDetector) tinted(b *board, row, col int) bool {
	rect := grid.RawRect(b.size, row, col)
	var samples []imaging.RGB
	for _, patch := range imaging.CornerPatches(rect) {
		m, ok := imaging.MeanRect(b.img, patch)
		if !ok {
			return false
		}
		samples = append(samples, m)
	}
	center := imaging.Median(samples)
	for _, s := range samples {
		if s.Dist(center) > d.t.HighlightMaxSpread {
			return false
		}
	}
	own := b.palette[(row+col)%2]
	other := b.palette[(row+col+1)%2]
	return center.Dist(own) >= d.t.HighlightMinShift && center.Dist(other) >= d.t.HighlightMinShift
}
