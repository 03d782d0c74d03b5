package domain

import (
	"fmt"
	"strings"

	nchess "github.com/corentings/chess/v2"
)

// Orientation tells which side of the physical board faces the camera.
type Orientation int

const (
	WhiteBottom Orientation = iota
	BlackBottom
)

func (o Orientation) String() string {
	if o == BlackBottom {
		return "black_bottom"
	}
	return "white_bottom"
}

func ParseOrientation(s string) (Orientation, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "white_bottom", "white", "w":
		return WhiteBottom, nil
	case "black_bottom", "black", "b", "flipped":
		return BlackBottom, nil
	}
	return WhiteBottom, fmt.Errorf("unknown orientation %q", s)
}

// Normalize maps a raw image cell (row, col) to board coordinates where row 0 is rank 8 and col 0 is file a.
func (o Orientation) Normalize(row, col int) (int, int) {
	if o == BlackBottom {
		return 7 - row, 7 - col
	}
	return row, col
}

// PieceMatrix is an 8x8 grid of labels, row 0 = rank 8, col 0 = file a.
type PieceMatrix [8][8]PieceLabel

// EmptyMatrix returns a matrix with every square labeled empty.
func EmptyMatrix() PieceMatrix {
	var m PieceMatrix
	for r := range m {
		for c := range m[r] {
			m[r][c] = EmptyLabel
		}
	}
	return m
}

// At returns the label on sq.
func (m *PieceMatrix) At(sq nchess.Square) PieceLabel {
	row, col := SquareCell(sq)
	return m[row][col]
}

func (m *PieceMatrix) Set(sq nchess.Square, p nchess.Piece) {
	row, col := SquareCell(sq)
	m[row][col] = PieceLabel{Piece: p, Confidence: 1}
}

// KingCount returns the number of kings of color c.
func (m *PieceMatrix) KingCount(c nchess.Color) int {
	n := 0
	for r := range m {
		for col := range m[r] {
			p := m[r][col].Piece
			if p != nchess.NoPiece && p.Type() == nchess.King && p.Color() == c {
				n++
			}
		}
	}
	return n
}

// MatrixFromBoard copies an nchess board into a matrix.
func MatrixFromBoard(b *nchess.Board) PieceMatrix {
	m := EmptyMatrix()
	if b == nil {
		return m
	}
	for sq, p := range b.SquareMap() {
		m.Set(sq, p)
	}
	return m
}

// SquareAt converts matrix coordinates to a square.
func SquareAt(row, col int) nchess.Square {
	return nchess.NewSquare(nchess.File(col), nchess.Rank(7-row))
}

// SquareCell converts a square to matrix coordinates.
func SquareCell(sq nchess.Square) (int, int) {
	return 7 - int(sq.Rank()), int(sq.File())
}

// ParseSquare parses algebraic names such as "e4".
func ParseSquare(s string) (nchess.Square, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	if len(v) != 2 || v[0] < 'a' || v[0] > 'h' || v[1] < '1' || v[1] > '8' {
		return nchess.NoSquare, fmt.Errorf("invalid square %q", s)
	}
	return nchess.NewSquare(nchess.File(v[0]-'a'), nchess.Rank(v[1]-'1')), nil
}

// Move is a from/to square pair inferred from an overlay cue.
type Move struct {
	From nchess.Square
	To   nchess.Square
}

// UCI returns the move in coordinate form, e.g. "e2e4".
func (m Move) UCI() string {
	return m.From.String() + m.To.String()
}

// ParseMove parses coordinate notation like "e2e4". Promotion suffixes are ignored.
func ParseMove(s string) (Move, error) {
	v := strings.TrimSpace(s)
	if len(v) < 4 {
		return Move{}, fmt.Errorf("invalid move %q", s)
	}
	from, err := ParseSquare(v[:2])
	if err != nil {
		return Move{}, err
	}
	to, err := ParseSquare(v[2:4])
	if err != nil {
		return Move{}, err
	}
	if from == to {
		return Move{}, fmt.Errorf("invalid move %q: same square", s)
	}
	return Move{From: from, To: to}, nil
}
