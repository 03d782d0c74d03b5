package domain

import (
	"fmt"
	"strings"

	nchess "github.com/corentings/chess/v2"
)

// PieceLabel is the classification outcome for one square.
type PieceLabel struct {
	Piece      nchess.Piece
	Confidence float64
}

// EmptyLabel is a certain empty square.
var EmptyLabel = PieceLabel{Piece: nchess.NoPiece, Confidence: 1}

func (l PieceLabel) IsEmpty() bool {
	return l.Piece == nchess.NoPiece
}

func (l PieceLabel) Color() nchess.Color {
	if l.IsEmpty() {
		return nchess.NoColor
	}
	return l.Piece.Color()
}

// String returns the label in classifier vocabulary, e.g. "white_pawn" or "empty".
func (l PieceLabel) String() string {
	return LabelName(l.Piece)
}

var typeNames = map[nchess.PieceType]string{
	nchess.King:   "king",
	nchess.Queen:  "queen",
	nchess.Rook:   "rook",
	nchess.Bishop: "bishop",
	nchess.Knight: "knight",
	nchess.Pawn:   "pawn",
}

var fenLetters = map[nchess.PieceType]byte{
	nchess.King:   'k',
	nchess.Queen:  'q',
	nchess.Rook:   'r',
	nchess.Bishop: 'b',
	nchess.Knight: 'n',
	nchess.Pawn:   'p',
}

// AllPieces lists the twelve colored pieces in a stable order.
var AllPieces = []nchess.Piece{
	nchess.WhiteKing, nchess.WhiteQueen, nchess.WhiteRook, nchess.WhiteBishop, nchess.WhiteKnight, nchess.WhitePawn,
	nchess.BlackKing, nchess.BlackQueen, nchess.BlackRook, nchess.BlackBishop, nchess.BlackKnight, nchess.BlackPawn,
}

func LabelName(p nchess.Piece) string {
	if p == nchess.NoPiece {
		return "empty"
	}
	name, ok := typeNames[p.Type()]
	if !ok {
		return "empty"
	}
	return ColorName(p.Color()) + "_" + name
}

// ParseLabel accepts "empty", "white_pawn", "black-knight" and similar spellings.
func ParseLabel(s string) (nchess.Piece, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	v = strings.NewReplacer("-", "_", " ", "_").Replace(v)
	if v == "" || v == "empty" || v == "none" {
		return nchess.NoPiece, nil
	}
	colorPart, typePart, ok := strings.Cut(v, "_")
	if !ok {
		return nchess.NoPiece, fmt.Errorf("unknown piece label %q", s)
	}
	var c nchess.Color
	switch colorPart {
	case "white", "w":
		c = nchess.White
	case "black", "b":
		c = nchess.Black
	default:
		return nchess.NoPiece, fmt.Errorf("unknown piece color in label %q", s)
	}
	for t, name := range typeNames {
		if name == typePart {
			return nchess.NewPiece(t, c), nil
		}
	}
	return nchess.NoPiece, fmt.Errorf("unknown piece type in label %q", s)
}

// FENLetter returns the placement letter: upper case for white, lower case for black.
func FENLetter(p nchess.Piece) (byte, bool) {
	if p == nchess.NoPiece {
		return 0, false
	}
	ch, ok := fenLetters[p.Type()]
	if !ok {
		return 0, false
	}
	if p.Color() == nchess.White {
		ch -= 'a' - 'A'
	}
	return ch, true
}

// PieceFromLetter is the inverse of FENLetter.
func PieceFromLetter(ch byte) (nchess.Piece, bool) {
	c := nchess.Black
	lower := ch
	if ch >= 'A' && ch <= 'Z' {
		c = nchess.White
		lower = ch + ('a' - 'A')
	}
	for t, l := range fenLetters {
		if l == lower {
			return nchess.NewPiece(t, c), true
		}
	}
	return nchess.NoPiece, false
}

func ColorName(c nchess.Color) string {
	switch c {
	case nchess.White:
		return "white"
	case nchess.Black:
		return "black"
	}
	return "none"
}

// ColorCode is the single-letter FEN form of c ("w" or "b").
func ColorCode(c nchess.Color) string {
	if c == nchess.Black {
		return "b"
	}
	return "w"
}

func ParseColor(s string) (nchess.Color, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "w", "white":
		return nchess.White, nil
	case "b", "black":
		return nchess.Black, nil
	}
	return nchess.NoColor, fmt.Errorf("unknown color %q", s)
}

func Opponent(c nchess.Color) nchess.Color {
	switch c {
	case nchess.White:
		return nchess.Black
	case nchess.Black:
		return nchess.White
	}
	return nchess.NoColor
}
