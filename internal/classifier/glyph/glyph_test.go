package glyph

import (
	"context"
	"image"
	"math"
	"testing"

	nchess "github.com/corentings/chess/v2"

	"github.com/park285/chessfen/internal/boardrender"
	"github.com/park285/chessfen/internal/domain"
	"github.com/park285/chessfen/internal/fen"
	"github.com/park285/chessfen/internal/grid"
	"github.com/park285/chessfen/internal/imaging"
)

func renderStart(t *testing.T) (*image.RGBA, domain.PieceMatrix) {
	t.Helper()
	m, err := fen.ParsePlacement(fen.StartingPosition)
	if err != nil {
		t.Fatalf("parse placement: %v", err)
	}
	img, err := boardrender.NewSVGBoardRenderer().Render(context.Background(), m, boardrender.Options{SquareSize: 64})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	return img, m
}

func TestClassifyStartingPosition(t *testing.T) {
	img, m := renderStart(t)
	c := New()
	if err := c.Warm(64); err != nil {
		t.Fatalf("warm: %v", err)
	}
	for row := 0; row < 8; row++ {
		for col := 0; col < 8; col++ {
			cell := img.SubImage(grid.RawRect(512, row, col))
			got, err := c.Classify(context.Background(), cell)
			if err != nil {
				t.Fatalf("classify %s: %v", domain.SquareAt(row, col), err)
			}
			want := m[row][col].Piece
			if got.Piece != want {
				t.Fatalf("%s: got %s, want %s", domain.SquareAt(row, col), domain.LabelName(got.Piece), domain.LabelName(want))
			}
			if got.Confidence < 0 || got.Confidence > 1 {
				t.Fatalf("%s: confidence %v out of range", domain.SquareAt(row, col), got.Confidence)
			}
		}
	}
}

func TestClassifyUpsideDownPiece(t *testing.T) {
	img, _ := renderStart(t)
	cell := imaging.Rotate180(img.SubImage(grid.RawRect(512, 0, 1)))
	got, err := New().Classify(context.Background(), cell)
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if got.Piece != nchess.BlackKnight {
		t.Fatalf("got %s, want black_knight", domain.LabelName(got.Piece))
	}
}

func TestClassifyEmptyCellIsConfident(t *testing.T) {
	img, _ := renderStart(t)
	got, err := New().Classify(context.Background(), img.SubImage(grid.RawRect(512, 4, 4)))
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if !got.IsEmpty() || got.Confidence < 0.9 {
		t.Fatalf("empty cell = %s (%.2f)", got, got.Confidence)
	}
}

func TestClassifyTinyCellIsEmpty(t *testing.T) {
	got, err := New().Classify(context.Background(), image.NewRGBA(image.Rect(0, 0, 4, 4)))
	if err != nil || !got.IsEmpty() {
		t.Fatalf("tiny cell = %s, %v", got, err)
	}
}

func TestClassifyHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := New().Classify(ctx, image.NewRGBA(image.Rect(0, 0, 64, 64))); err == nil {
		t.Fatalf("expected context error")
	}
}

func TestConfidence(t *testing.T) {
	if math.Abs(confidence(0, 99)-0.99) > 1e-9 {
		t.Fatalf("confidence(0, 99) = %v", confidence(0, 99))
	}
	if confidence(50, 50) != 0 {
		t.Fatalf("tie should give zero confidence")
	}
}
