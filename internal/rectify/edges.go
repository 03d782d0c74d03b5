package rectify

import (
	"fmt"
	"image"
	"math"
	"sort"

	xdraw "golang.org/x/image/draw"

	"github.com/park285/chessfen/internal/imaging"
)

// EdgeDetector finds an axis-aligned checkerboard by looking for nine evenly
// spaced gradient ridges in both directions. It covers screenshots and
// scanned diagrams; photographs with strong perspective need a corner hint.
type EdgeDetector struct {
	// MaxDim bounds the working resolution.
	MaxDim int
	// EdgeClip caps each Sobel response so long square borders outweigh
	// short high-contrast piece outlines.
	EdgeClip float64
	// PeakRatio is the minimum ridge height relative to the strongest ridge.
	PeakRatio float64
	// MinBoardFraction is the smallest board side relative to the shorter image side.
	MinBoardFraction float64
	// MinParityContrast is the minimum luminance gap between light and dark squares.
	MinParityContrast float64
}

func NewEdgeDetector() *EdgeDetector {
	return &EdgeDetector{
		MaxDim:            1024,
		EdgeClip:          160,
		PeakRatio:         0.35,
		MinBoardFraction:  0.25,
		MinParityContrast: 18,
	}
}

func (d *EdgeDetector) Name() string { return "edges" }

func (d *EdgeDetector) Detect(img image.Image) (Quad, error) {
	gray, w, h, sx, sy := d.grayscale(img)
	if w < 32 || h < 32 {
		return Quad{}, fmt.Errorf("%w: image too small", ErrBoardNotFound)
	}

	cols, rows := sobelProfiles(gray, w, h, d.EdgeClip)
	minSpacing := d.MinBoardFraction * float64(min(w, h)) / 8

	xs, ok := d.findLattice(cols, minSpacing)
	if !ok {
		return Quad{}, fmt.Errorf("%w: no vertical grid lines", ErrBoardNotFound)
	}
	ys, ok := d.findLattice(rows, minSpacing)
	if !ok {
		return Quad{}, fmt.Errorf("%w: no horizontal grid lines", ErrBoardNotFound)
	}
	if !d.checkerPattern(gray, w, h, xs, ys) {
		return Quad{}, fmt.Errorf("%w: no alternating square pattern", ErrBoardNotFound)
	}

	q := Quad{
		{X: xs[0], Y: ys[0]},
		{X: xs[8], Y: ys[0]},
		{X: xs[8], Y: ys[8]},
		{X: xs[0], Y: ys[8]},
	}
	return q.scale(sx, sy), nil
}

// grayscale converts img to a luminance buffer, downscaling when it exceeds MaxDim.
func (d *EdgeDetector) grayscale(img image.Image) ([]float64, int, int, float64, float64) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	src := imaging.ToRGBA(img)
	if d.MaxDim > 0 && max(w, h) > d.MaxDim {
		f := float64(d.MaxDim) / float64(max(w, h))
		nw := max(1, int(math.Round(float64(w)*f)))
		nh := max(1, int(math.Round(float64(h)*f)))
		small := image.NewRGBA(image.Rect(0, 0, nw, nh))
		xdraw.ApproxBiLinear.Scale(small, small.Bounds(), src, src.Bounds(), xdraw.Src, nil)
		src = small
	}
	sw, sh := src.Bounds().Dx(), src.Bounds().Dy()
	gray := make([]float64, sw*sh)
	for y := 0; y < sh; y++ {
		for x := 0; x < sw; x++ {
			gray[y*sw+x] = imaging.At(src, x, y).Luma()
		}
	}
	return gray, sw, sh, float64(w) / float64(sw), float64(h) / float64(sh)
}

// sobelProfiles accumulates clipped |Gx| per column and |Gy| per row.
func sobelProfiles(g []float64, w, h int, clip float64) ([]float64, []float64) {
	cols := make([]float64, w)
	rows := make([]float64, h)
	at := func(x, y int) float64 { return g[y*w+x] }
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			gx := (at(x+1, y-1) + 2*at(x+1, y) + at(x+1, y+1)) - (at(x-1, y-1) + 2*at(x-1, y) + at(x-1, y+1))
			gy := (at(x-1, y+1) + 2*at(x, y+1) + at(x+1, y+1)) - (at(x-1, y-1) + 2*at(x, y-1) + at(x+1, y-1))
			cols[x] += math.Min(math.Abs(gx), clip)
			rows[y] += math.Min(math.Abs(gy), clip)
		}
	}
	return cols, rows
}

type ridge struct {
	pos      float64
	strength float64
}

// ridges returns local maxima of profile above ratio*max, located with sub-pixel
// precision on pixel-edge coordinates.
func ridges(profile []float64, ratio float64) []ridge {
	var peak float64
	for _, v := range profile {
		peak = math.Max(peak, v)
	}
	if peak <= 0 {
		return nil
	}
	var out []ridge
	for i := 1; i < len(profile)-1; i++ {
		v := profile[i]
		if v < ratio*peak || v < profile[i-1] || v <= profile[i+1] {
			continue
		}
		a, c := profile[i-1], profile[i+1]
		pos := (float64(i-1)*a + float64(i)*v + float64(i+1)*c) / (a + v + c)
		out = append(out, ridge{pos: pos + 0.5, strength: v})
	}
	if len(out) > 64 {
		sort.Slice(out, func(i, j int) bool { return out[i].strength > out[j].strength })
		out = out[:64]
		sort.Slice(out, func(i, j int) bool { return out[i].pos < out[j].pos })
	}
	return out
}

type lattice struct {
	lines    [9]float64
	matched  int
	strength float64
}

// findLattice searches for nine equally spaced lines. Lines that coincide with
// the image border count as present since a board can be cropped flush.
func (d *EdgeDetector) findLattice(profile []float64, minSpacing float64) ([9]float64, bool) {
	length := float64(len(profile))
	rs := ridges(profile, d.PeakRatio)
	if len(rs) < 2 {
		return [9]float64{}, false
	}

	var best lattice
	for i := 0; i < len(rs); i++ {
		for j := i + 1; j < len(rs); j++ {
			span := rs[j].pos - rs[i].pos
			for k := 1; k <= 8; k++ {
				spacing := span / float64(k)
				if spacing < minSpacing {
					break
				}
				tol := math.Max(2, spacing*0.06)
				for m := 0; m+k <= 8; m++ {
					first := rs[i].pos - float64(m)*spacing
					if first < -tol || first+8*spacing > length+tol {
						continue
					}
					cand := scoreLattice(rs, first, spacing, tol, length)
					if cand.matched > best.matched ||
						(cand.matched == best.matched && cand.strength > best.strength) {
						best = cand
					}
				}
			}
		}
	}
	if best.matched < 8 {
		return [9]float64{}, false
	}
	return best.lines, true
}

func scoreLattice(rs []ridge, first, spacing, tol, length float64) lattice {
	var l lattice
	var sn, sp, snn, snp, cnt float64
	for n := 0; n < 9; n++ {
		want := first + float64(n)*spacing
		obs := math.NaN()
		if r, ok := nearestRidge(rs, want, tol); ok {
			obs = r.pos
			l.strength += r.strength
		} else if math.Abs(want) <= tol {
			obs = 0
		} else if math.Abs(want-length) <= tol {
			obs = length
		}
		if math.IsNaN(obs) {
			continue
		}
		l.matched++
		fn := float64(n)
		sn += fn
		sp += obs
		snn += fn * fn
		snp += fn * obs
		cnt++
	}
	// Least-squares refit of first + n*spacing over the matched lines.
	a, s := first, spacing
	if den := cnt*snn - sn*sn; cnt >= 2 && den != 0 {
		s = (cnt*snp - sn*sp) / den
		a = (sp - s*sn) / cnt
	}
	for n := range l.lines {
		l.lines[n] = a + float64(n)*s
	}
	return l
}

func nearestRidge(rs []ridge, want, tol float64) (ridge, bool) {
	idx := sort.Search(len(rs), func(i int) bool { return rs[i].pos >= want })
	best := ridge{}
	bestDist := math.Inf(1)
	for _, i := range []int{idx - 1, idx} {
		if i < 0 || i >= len(rs) {
			continue
		}
		if dd := math.Abs(rs[i].pos - want); dd < bestDist {
			best, bestDist = rs[i], dd
		}
	}
	return best, bestDist <= tol
}

// checkerPattern verifies that square corners alternate between two luminance classes.
func (d *EdgeDetector) checkerPattern(g []float64, w, h int, xs, ys [9]float64) bool {
	var means [8][8]float64
	var sum [2]float64
	var count [2]float64
	for r := 0; r < 8; r++ {
		for c := 0; c < 8; c++ {
			cell := image.Rect(int(xs[c]), int(ys[r]), int(xs[c+1]), int(ys[r+1]))
			var total, n float64
			for _, p := range imaging.CornerPatches(cell) {
				p = p.Intersect(image.Rect(0, 0, w, h))
				for y := p.Min.Y; y < p.Max.Y; y++ {
					for x := p.Min.X; x < p.Max.X; x++ {
						total += g[y*w+x]
						n++
					}
				}
			}
			if n == 0 {
				return false
			}
			means[r][c] = total / n
			parity := (r + c) % 2
			sum[parity] += means[r][c]
			count[parity]++
		}
	}
	even := sum[0] / count[0]
	odd := sum[1] / count[1]
	if math.Abs(even-odd) < d.MinParityContrast {
		return false
	}
	agree := 0
	for r := 0; r < 8; r++ {
		for c := 0; c < 8; c++ {
			own, other := even, odd
			if (r+c)%2 == 1 {
				own, other = odd, even
			}
			if math.Abs(means[r][c]-own) < math.Abs(means[r][c]-other) {
				agree++
			}
		}
	}
	return agree >= 56
}
