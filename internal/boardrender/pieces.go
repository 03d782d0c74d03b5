package boardrender

import (
	"bytes"
	"embed"
	"fmt"
	"image"
	"sync"

	nchess "github.com/corentings/chess/v2"
	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"

	"github.com/park285/chessfen/internal/domain"
)

//go:embed assets/pieces/*.svg
var pieceFiles embed.FS

type glyphKey struct {
	piece nchess.Piece
	size  int
}

// glyphCache keeps rasterized glyphs per piece and size. Sources are read
// and cleaned once per piece, rasters once per size.
type glyphCache struct {
	mu      sync.RWMutex
	sources map[nchess.Piece][]byte
	glyphs  map[glyphKey]*image.RGBA
}

var glyphs = &glyphCache{
	sources: map[nchess.Piece][]byte{},
	glyphs:  map[glyphKey]*image.RGBA{},
}

// PieceImage rasterizes the glyph for piece into a transparent size x size image.
// Results are shared, callers must not modify them.
func PieceImage(piece nchess.Piece, size int) (*image.RGBA, error) {
	if piece == nchess.NoPiece {
		return nil, fmt.Errorf("no glyph for empty square")
	}
	if size <= 0 {
		return nil, fmt.Errorf("invalid glyph size %d", size)
	}
	return glyphs.get(glyphKey{piece: piece, size: size})
}

func (c *glyphCache) get(key glyphKey) (*image.RGBA, error) {
	c.mu.RLock()
	img, ok := c.glyphs[key]
	src := c.sources[key.piece]
	c.mu.RUnlock()
	if ok {
		return img, nil
	}

	if src == nil {
		var err error
		if src, err = loadSource(key.piece); err != nil {
			return nil, err
		}
	}
	img, err := rasterize(src, key.size)
	if err != nil {
		return nil, fmt.Errorf("%s glyph: %w", domain.LabelName(key.piece), err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.sources[key.piece] = src
	if cached, ok := c.glyphs[key]; ok {
		return cached, nil
	}
	c.glyphs[key] = img
	return img, nil
}

func rasterize(src []byte, size int) (*image.RGBA, error) {
	icon, err := oksvg.ReadIconStream(bytes.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("parse svg: %w", err)
	}
	if icon.ViewBox.W <= 0 || icon.ViewBox.H <= 0 {
		icon.ViewBox.W, icon.ViewBox.H = float64(size), float64(size)
	}
	icon.SetTarget(0, 0, float64(size), float64(size))

	// A fresh RGBA is fully transparent.
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	scanner := rasterx.NewScannerGV(size, size, img, img.Bounds())
	icon.Draw(rasterx.NewDasher(size, size, scanner), 1.0)
	return img, nil
}

func loadSource(piece nchess.Piece) ([]byte, error) {
	name, err := assetName(piece)
	if err != nil {
		return nil, err
	}
	data, err := pieceFiles.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("read piece asset %s: %w", name, err)
	}
	return cleanSVG(data), nil
}

// assetName maps a piece to its file, e.g. wN.svg for the white knight.
func assetName(piece nchess.Piece) (string, error) {
	letter, ok := domain.FENLetter(piece)
	if !ok {
		return "", fmt.Errorf("no asset for piece %v", piece)
	}
	if letter >= 'a' {
		letter -= 'a' - 'A'
	}
	return fmt.Sprintf("assets/pieces/%s%c.svg", domain.ColorCode(piece.Color()), letter), nil
}

var svgStyleFixes = [][2]string{
	{"fill: #", "fill:#"},
	{"stroke: #", "stroke:#"},
	{"stop-color: #", "stop-color:#"},
}

// cleanSVG drops the space after style keys, which oksvg does not accept.
func cleanSVG(svg []byte) []byte {
	for _, f := range svgStyleFixes {
		svg = bytes.ReplaceAll(svg, []byte(f[0]), []byte(f[1]))
	}
	return svg
}
