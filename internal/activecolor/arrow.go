package activecolor

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/park285/chessfen/internal/domain"
	"github.com/park285/chessfen/internal/imaging"
)

// arrowDetector finds a single saturated arrow whose hue differs from the
// squares underneath. Piece outlines blended onto a square keep the square's
// hue, so they drop out of the mask.
type arrowDetector struct {
	t Tuning
}

func (d *arrowDetector) cue() domain.Cue { return domain.CueArrow }

func (d *arrowDetector) detect(b *board) (domain.Move, bool) {
	xs, ys := d.mask(b)
	n := len(xs)
	if n == 0 || float64(n) < d.t.ArrowMinArea*float64(b.size*b.size) {
		return domain.Move{}, false
	}

	// Principal axis of the mask.
	var mx, my float64
	for i := range xs {
		mx += xs[i]
		my += ys[i]
	}
	mx /= float64(n)
	my /= float64(n)
	var sxx, sxy, syy float64
	for i := range xs {
		dx, dy := xs[i]-mx, ys[i]-my
		sxx += dx * dx
		sxy += dx * dy
		syy += dy * dy
	}
	ax, ay, elongation, ok := principalAxis(sxx/float64(n), sxy/float64(n), syy/float64(n))
	if !ok || elongation < d.t.ArrowMinElongation {
		return domain.Move{}, false
	}

	ts := make([]float64, n)
	ss := make([]float64, n)
	tMin, tMax := math.Inf(1), math.Inf(-1)
	for i := range xs {
		dx, dy := xs[i]-mx, ys[i]-my
		ts[i] = dx*ax + dy*ay
		ss[i] = -dx*ay + dy*ax
		tMin = math.Min(tMin, ts[i])
		tMax = math.Max(tMax, ts[i])
	}
	length := tMax - tMin
	if length < b.cellSize*0.75 || !continuous(ts, tMin, length) {
		return domain.Move{}, false
	}

	band := length * 0.25
	lowSpread := spread(ts, ss, tMin, tMin+band)
	highSpread := spread(ts, ss, tMax-band, tMax)

	var tTail, tHead float64
	switch {
	case highSpread >= lowSpread*d.t.ArrowHeadRatio:
		tTail, tHead = tMin, tMax
	case lowSpread >= highSpread*d.t.ArrowHeadRatio:
		tTail, tHead = tMax, tMin
	default:
		return domain.Move{}, false
	}

	// Pull both ends inward so tips resting on a square edge stay in their square.
	pull := b.cellSize * 0.2
	dir := 1.0
	if tHead < tTail {
		dir = -1
	}
	tailX, tailY := mx+ax*(tTail+dir*pull), my+ay*(tTail+dir*pull)
	headX, headY := mx+ax*(tHead-dir*pull), my+ay*(tHead-dir*pull)

	fromRow, fromCol := b.rawCell(tailX, tailY)
	toRow, toCol := b.rawCell(headX, headY)
	mv := domain.Move{From: b.squareAt(fromRow, fromCol), To: b.squareAt(toRow, toCol)}
	if mv.From == mv.To {
		return domain.Move{}, false
	}
	return mv, true
}

// principalAxis returns the unit eigenvector of the largest eigenvalue of the
// covariance matrix and the ratio of the two eigenvalues.
func principalAxis(sxx, sxy, syy float64) (ax, ay, elongation float64, ok bool) {
	var eig mat.EigenSym
	if !eig.Factorize(mat.NewSymDense(2, []float64{sxx, sxy, sxy, syy}), true) {
		return 0, 0, 0, false
	}
	// Eigenvalues come back in ascending order.
	values := eig.Values(nil)
	var vecs mat.Dense
	eig.VectorsTo(&vecs)
	minor := math.Max(values[0], 1)
	return vecs.At(0, 1), vecs.At(1, 1), values[1] / minor, true
}

// mask returns the coordinates of pixels that look like arrow paint.
func (d *arrowDetector) mask(b *board) ([]float64, []float64) {
	hues := [2]float64{b.palette[0].Hue(), b.palette[1].Hue()}
	var xs, ys []float64
	for y := 0; y < b.size; y++ {
		for x := 0; x < b.size; x++ {
			px := imaging.At(b.img, x, y)
			if px.Chroma() < d.t.ArrowMinChroma {
				continue
			}
			row, col := b.rawCell(float64(x), float64(y))
			bgHue := hues[(row+col)%2]
			if b.palette[(row+col)%2].Chroma() < d.t.ArrowMinChroma/2 {
				// Gray boards: any saturated pixel counts.
				xs = append(xs, float64(x)+0.5)
				ys = append(ys, float64(y)+0.5)
				continue
			}
			if imaging.HueDistance(px.Hue(), bgHue) < d.t.ArrowMinHueDistance {
				continue
			}
			xs = append(xs, float64(x)+0.5)
			ys = append(ys, float64(y)+0.5)
		}
	}
	return xs, ys
}

// continuous reports whether the mask covers the principal axis without large gaps,
// which rules out two separate colored blobs.
func continuous(ts []float64, tMin, length float64) bool {
	const bins = 32
	var filled [bins]bool
	for _, t := range ts {
		i := int((t - tMin) / length * bins)
		if i >= bins {
			i = bins - 1
		}
		filled[i] = true
	}
	count := 0
	for _, f := range filled {
		if f {
			count++
		}
	}
	return count >= bins*7/8
}

// spread is the perpendicular extent of the mask within [lo, hi] along the axis.
func spread(ts, ss []float64, lo, hi float64) float64 {
	sMin, sMax := math.Inf(1), math.Inf(-1)
	for i, t := range ts {
		if t < lo || t > hi {
			continue
		}
		sMin = math.Min(sMin, ss[i])
		sMax = math.Max(sMax, ss[i])
	}
	if sMax < sMin {
		return 0
	}
	return sMax - sMin
}
