// Package boardrender draws a piece matrix as a flat 2D diagram with optional
// last-move overlays in the style of online chess boards.
package boardrender

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	imagedraw "image/draw"
	"image/png"

	nchess "github.com/corentings/chess/v2"

	"github.com/park285/chessfen/internal/domain"
)

const DefaultSquareSize = 64

type Theme struct {
	Light color.RGBA
	Dark  color.RGBA
	Frame color.RGBA
}

var DefaultTheme = Theme{
	Light: color.RGBA{233, 207, 163, 255},
	Dark:  color.RGBA{187, 136, 96, 255},
	Frame: color.RGBA{48, 46, 43, 255},
}

var (
	DefaultArrowColor     = color.NRGBA{R: 21, G: 120, B: 27, A: 200}
	DefaultHighlightColor = color.NRGBA{R: 255, G: 228, B: 120, A: 140}
)

type Options struct {
	SquareSize  int
	Margin      int
	Orientation domain.Orientation
	Theme       *Theme

	// Highlight tints both squares of a move underneath the pieces.
	Highlight      *domain.Move
	HighlightColor color.Color

	// Arrow is drawn over the pieces from the center of From to the center of To.
	Arrow      *domain.Move
	ArrowColor color.Color
}

func (o Options) squareSize() int {
	if o.SquareSize > 0 {
		return o.SquareSize
	}
	return DefaultSquareSize
}

func (o Options) theme() Theme {
	if o.Theme != nil {
		return *o.Theme
	}
	return DefaultTheme
}

// BoardRect is the pixel area covered by the 64 squares.
func (o Options) BoardRect() image.Rectangle {
	side := o.squareSize() * 8
	return image.Rect(o.Margin, o.Margin, o.Margin+side, o.Margin+side)
}

type BoardRenderer interface {
	Render(ctx context.Context, m domain.PieceMatrix, opts Options) (*image.RGBA, error)
	RenderPNG(ctx context.Context, m domain.PieceMatrix, opts Options) ([]byte, error)
}

type svgBoardRenderer struct{}

func NewSVGBoardRenderer() BoardRenderer {
	return &svgBoardRenderer{}
}

func (r *svgBoardRenderer) Render(ctx context.Context, m domain.PieceMatrix, opts Options) (*image.RGBA, error) {
	squareSize := opts.squareSize()
	theme := opts.theme()
	boardRect := opts.BoardRect()
	total := boardRect.Max.X + opts.Margin

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	img := image.NewRGBA(image.Rect(0, 0, total, total))
	imagedraw.Draw(img, img.Bounds(), image.NewUniform(theme.Frame), image.Point{}, imagedraw.Src)

	drawSquares(img, theme, squareSize, boardRect.Min)
	if opts.Highlight != nil {
		clr := opts.HighlightColor
		if clr == nil {
			clr = DefaultHighlightColor
		}
		drawSquareOverlay(img, squareRect(opts.Highlight.From, squareSize, boardRect.Min, opts.Orientation), clr)
		drawSquareOverlay(img, squareRect(opts.Highlight.To, squareSize, boardRect.Min, opts.Orientation), clr)
	}
	if err := drawPieces(img, &m, squareSize, boardRect.Min, opts.Orientation); err != nil {
		return nil, err
	}
	if opts.Arrow != nil {
		clr := opts.ArrowColor
		if clr == nil {
			clr = DefaultArrowColor
		}
		drawArrow(img, *opts.Arrow, squareSize, boardRect.Min, opts.Orientation, clr)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	return img, nil
}

func (r *svgBoardRenderer) RenderPNG(ctx context.Context, m domain.PieceMatrix, opts Options) ([]byte, error) {
	img, err := r.Render(ctx, m, opts)
	if err != nil {
		return nil, err
	}
	var pngBuf bytes.Buffer
	if err := png.Encode(&pngBuf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return pngBuf.Bytes(), nil
}

func drawSquares(dst *image.RGBA, theme Theme, squareSize int, origin image.Point) {
	for row := 0; row < 8; row++ {
		for col := 0; col < 8; col++ {
			x := origin.X + col*squareSize
			y := origin.Y + row*squareSize
			// Light squares sit on even raw parity in both orientations.
			clr := theme.Light
			if (row+col)%2 == 1 {
				clr = theme.Dark
			}
			imagedraw.Draw(dst, image.Rect(x, y, x+squareSize, y+squareSize), image.NewUniform(clr), image.Point{}, imagedraw.Src)
		}
	}
}

func drawPieces(dst *image.RGBA, m *domain.PieceMatrix, squareSize int, origin image.Point, o domain.Orientation) error {
	for row := 0; row < 8; row++ {
		for col := 0; col < 8; col++ {
			piece := m[row][col].Piece
			if piece == nchess.NoPiece {
				continue
			}
			glyph, err := PieceImage(piece, squareSize)
			if err != nil {
				return err
			}
			rect := squareRect(domain.SquareAt(row, col), squareSize, origin, o)
			imagedraw.Draw(dst, rect, glyph, image.Point{}, imagedraw.Over)
		}
	}
	return nil
}

// squareRect locates sq on the rendered board for the given orientation.
func squareRect(sq nchess.Square, squareSize int, origin image.Point, o domain.Orientation) image.Rectangle {
	row, col := o.Normalize(domain.SquareCell(sq))
	x := origin.X + col*squareSize
	y := origin.Y + row*squareSize
	return image.Rect(x, y, x+squareSize, y+squareSize)
}
