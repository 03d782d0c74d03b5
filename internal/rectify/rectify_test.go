package rectify

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/draw"
	"math"
	"testing"

	"github.com/park285/chessfen/internal/boardrender"
	"github.com/park285/chessfen/internal/domain"
	"github.com/park285/chessfen/internal/imaging"
)

func near(a, b, tol float64) bool { return math.Abs(a-b) <= tol }

func renderBoard(t *testing.T, opts boardrender.Options) *image.RGBA {
	t.Helper()
	m := domain.EmptyMatrix()
	img, err := boardrender.NewSVGBoardRenderer().Render(context.Background(), m, opts)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	return img
}

func uniform(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: c}, image.Point{}, draw.Src)
	return img
}

func TestParseQuadOrdersCorners(t *testing.T) {
	q, err := ParseQuad("100,110 0,0 100,0 0,100")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	want := Quad{{0, 0}, {100, 0}, {100, 110}, {0, 100}}
	if q != want {
		t.Fatalf("quad = %v, want %v", q, want)
	}
	if !q.Convex() {
		t.Fatalf("quad should be convex")
	}
	if _, err := ParseQuad("1,2,3"); err == nil {
		t.Fatalf("expected count error")
	}
	if _, err := ParseQuad("1,2,3,4,5,6,7,x"); err == nil {
		t.Fatalf("expected number error")
	}
}

func TestQuadGeometry(t *testing.T) {
	q := Quad{{0, 0}, {200, 0}, {200, 100}, {0, 100}}
	if q.Area() != 20000 {
		t.Fatalf("area = %v", q.Area())
	}
	if q.AspectRatio() != 2 {
		t.Fatalf("aspect = %v", q.AspectRatio())
	}
	line := Quad{{0, 0}, {10, 0}, {20, 0}, {30, 0}}
	if line.Convex() {
		t.Fatalf("collinear corners are not convex")
	}
	bowtie := Quad{{0, 0}, {10, 10}, {10, 0}, {0, 10}}
	if bowtie.Convex() {
		t.Fatalf("self-intersecting quad is not convex")
	}
}

func TestHomographyMapsCorners(t *testing.T) {
	src := Quad{{10, 20}, {110, 25}, {105, 130}, {5, 120}}
	h, err := solveHomography(src, 50)
	if err != nil {
		t.Fatalf("solve: %v", err)
	}
	dst := Quad{{0, 0}, {50, 0}, {50, 50}, {0, 50}}
	for i := range dst {
		x, y := h.apply(dst[i].X, dst[i].Y)
		if !near(x, src[i].X, 1e-6) || !near(y, src[i].Y, 1e-6) {
			t.Fatalf("corner %d mapped to (%v,%v), want %v", i, x, y, src[i])
		}
	}
}

func TestRectifyIdentityIsExact(t *testing.T) {
	img := renderBoard(t, boardrender.Options{SquareSize: 32})
	r := New(NewEdgeDetector(), WithOutputSize(256))
	hint := Quad{{0, 0}, {256, 0}, {256, 256}, {0, 256}}

	b, err := r.Rectify(context.Background(), img, &hint)
	if err != nil {
		t.Fatalf("rectify: %v", err)
	}
	if b.Detected || b.Size() != 256 {
		t.Fatalf("detected=%v size=%d", b.Detected, b.Size())
	}
	for _, p := range []image.Point{{3, 3}, {40, 5}, {128, 200}, {255, 255}} {
		if got, want := b.Image.RGBAAt(p.X, p.Y), img.RGBAAt(p.X, p.Y); got != want {
			t.Fatalf("pixel %v = %v, want %v", p, got, want)
		}
	}
}

func TestRectifyRejectsDegenerateHint(t *testing.T) {
	img := renderBoard(t, boardrender.Options{SquareSize: 16})
	r := New(NewEdgeDetector())
	hint := Quad{{0, 0}, {10, 0}, {20, 0}, {30, 0}}
	if _, err := r.Rectify(context.Background(), img, &hint); !errors.Is(err, ErrBoardNotFound) {
		t.Fatalf("err = %v", err)
	}
}

func TestEdgeDetectorFindsFramedBoard(t *testing.T) {
	img := renderBoard(t, boardrender.Options{SquareSize: 64, Margin: 40})
	q, err := NewEdgeDetector().Detect(img)
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	want := Quad{{40, 40}, {552, 40}, {552, 552}, {40, 552}}
	for i := range want {
		if !near(q[i].X, want[i].X, 2) || !near(q[i].Y, want[i].Y, 2) {
			t.Fatalf("corner %d = %v, want %v", i, q[i], want[i])
		}
	}
}

func TestRectifyDetectsBoard(t *testing.T) {
	img := renderBoard(t, boardrender.Options{SquareSize: 64, Margin: 40})
	r := New(NewEdgeDetector(), WithOutputSize(512))
	b, err := r.Rectify(context.Background(), img, nil)
	if err != nil {
		t.Fatalf("rectify: %v", err)
	}
	if !b.Detected {
		t.Fatalf("board should be marked detected")
	}
	// Centers of a1 (dark) and h1 (light) keep their theme colors.
	dark := imaging.At(b.Image, 32, 480)
	light := imaging.At(b.Image, 480, 480)
	if dark.Dist(imaging.FromColor(boardrender.DefaultTheme.Dark)) > 6 {
		t.Fatalf("a1 center = %+v", dark)
	}
	if light.Dist(imaging.FromColor(boardrender.DefaultTheme.Light)) > 6 {
		t.Fatalf("h1 center = %+v", light)
	}
}

func TestEdgeDetectorRejectsPlainImage(t *testing.T) {
	img := uniform(400, 300, color.RGBA{R: 90, G: 140, B: 200, A: 255})
	if _, err := NewEdgeDetector().Detect(img); !errors.Is(err, ErrBoardNotFound) {
		t.Fatalf("err = %v", err)
	}
	r := New(NewEdgeDetector())
	if _, err := r.Rectify(context.Background(), img, nil); !errors.Is(err, ErrBoardNotFound) {
		t.Fatalf("rectify err = %v", err)
	}
}

func TestRectifyWithoutDetector(t *testing.T) {
	img := uniform(64, 64, color.White)
	if _, err := New(nil).Rectify(context.Background(), img, nil); !errors.Is(err, ErrBoardNotFound) {
		t.Fatalf("err = %v", err)
	}
}

func TestRectifyHonorsCancelledContext(t *testing.T) {
	img := renderBoard(t, boardrender.Options{SquareSize: 16})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	hint := Quad{{0, 0}, {128, 0}, {128, 128}, {0, 128}}
	if _, err := New(nil).Rectify(ctx, img, &hint); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
}

type stubDetector struct {
	q   Quad
	err error
}

func (s stubDetector) Name() string { return "stub" }
func (s stubDetector) Detect(image.Image) (Quad, error) { return s.q, s.err }

func TestChainFallsThrough(t *testing.T) {
	want := Quad{{1, 1}, {9, 1}, {9, 9}, {1, 9}}
	c := Chain{stubDetector{err: ErrBoardNotFound}, stubDetector{q: want}}
	got, err := c.Detect(nil)
	if err != nil || got != want {
		t.Fatalf("chain = %v, %v", got, err)
	}
	if _, err := (Chain{stubDetector{err: ErrBoardNotFound}}).Detect(nil); !errors.Is(err, ErrBoardNotFound) {
		t.Fatalf("err = %v", err)
	}
	if c.Name() != "chain:stub:stub" {
		t.Fatalf("name = %q", c.Name())
	}
}

func TestRectifyRejectsOblongDetection(t *testing.T) {
	img := uniform(300, 300, color.White)
	r := New(stubDetector{q: Quad{{0, 0}, {300, 0}, {300, 100}, {0, 100}}})
	if _, err := r.Rectify(context.Background(), img, nil); !errors.Is(err, ErrBoardNotFound) {
		t.Fatalf("err = %v", err)
	}
}
