// Package fen turns a recognized piece matrix and an active-color guess into
// a Forsyth-Edwards Notation record.
package fen

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	nchess "github.com/corentings/chess/v2"

	"github.com/park285/chessfen/internal/domain"
)

const StartingPosition = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

// Record is the assembled FEN plus best-effort validity metadata. An
// unplayable position still gets a FEN string, flagged with Valid=false.
type Record struct {
	FEN        string
	Placement  string
	Active     nchess.Color
	Confidence domain.Confidence
	Cue        domain.Cue
	Castling   string
	Valid      bool
	Warnings   []string
	LastMove   *domain.Move
}

// Assemble never fails. En passant is always "-" and the move counters "0 1".
func Assemble(m *domain.PieceMatrix, sig domain.ActiveColorSignal) Record {
	active := sig.Color
	if active != nchess.Black {
		active = nchess.White
	}
	placement := Placement(m)
	castling := Castling(m)
	fen := strings.Join([]string{placement, domain.ColorCode(active), castling, "-", "0", "1"}, " ")

	rec := Record{
		FEN:        fen,
		Placement:  placement,
		Active:     active,
		Confidence: sig.Confidence,
		Cue:        sig.Cue,
		Castling:   castling,
		LastMove:   sig.SourceMove,
	}
	if rec.Confidence == "" {
		rec.Confidence = domain.ConfidenceLow
	}
	rec.Warnings = Validate(m, fen)
	rec.Valid = len(rec.Warnings) == 0
	return rec
}

// Placement encodes ranks 8 to 1 with run-length digits for empty squares.
func Placement(m *domain.PieceMatrix) string {
	var b strings.Builder
	for row := 0; row < 8; row++ {
		if row > 0 {
			b.WriteByte('/')
		}
		empty := 0
		for col := 0; col < 8; col++ {
			ch, ok := domain.FENLetter(m[row][col].Piece)
			if !ok {
				empty++
				continue
			}
			if empty > 0 {
				b.WriteString(strconv.Itoa(empty))
				empty = 0
			}
			b.WriteByte(ch)
		}
		if empty > 0 {
			b.WriteString(strconv.Itoa(empty))
		}
	}
	return b.String()
}

// Castling grants each right when the king and the matching rook stand on
// their home squares. Move history is unknown, so this can over-grant rights.
func Castling(m *domain.PieceMatrix) string {
	var b strings.Builder
	whiteKing := m.At(nchess.E1).Piece == nchess.WhiteKing
	blackKing := m.At(nchess.E8).Piece == nchess.BlackKing
	if whiteKing && m.At(nchess.H1).Piece == nchess.WhiteRook {
		b.WriteByte('K')
	}
	if whiteKing && m.At(nchess.A1).Piece == nchess.WhiteRook {
		b.WriteByte('Q')
	}
	if blackKing && m.At(nchess.H8).Piece == nchess.BlackRook {
		b.WriteByte('k')
	}
	if blackKing && m.At(nchess.A8).Piece == nchess.BlackRook {
		b.WriteByte('q')
	}
	if b.Len() == 0 {
		return "-"
	}
	return b.String()
}

// Validate lists reasons the position cannot occur in a legal game.
func Validate(m *domain.PieceMatrix, fen string) []string {
	var warnings []string
	for _, c := range []nchess.Color{nchess.White, nchess.Black} {
		if n := m.KingCount(c); n != 1 {
			warnings = append(warnings, fmt.Sprintf("%s has %d kings", domain.ColorName(c), n))
		}
	}

	var pieces, pawns [3]int
	for row := 0; row < 8; row++ {
		for col := 0; col < 8; col++ {
			p := m[row][col].Piece
			if p == nchess.NoPiece {
				continue
			}
			pieces[p.Color()]++
			if p.Type() == nchess.Pawn {
				pawns[p.Color()]++
				if row == 0 || row == 7 {
					warnings = append(warnings, fmt.Sprintf("%s pawn on back rank %s", domain.ColorName(p.Color()), domain.SquareAt(row, col)))
				}
			}
		}
	}
	for _, c := range []nchess.Color{nchess.White, nchess.Black} {
		if pieces[c] > 16 {
			warnings = append(warnings, fmt.Sprintf("%s has %d pieces", domain.ColorName(c), pieces[c]))
		}
		if pawns[c] > 8 {
			warnings = append(warnings, fmt.Sprintf("%s has %d pawns", domain.ColorName(c), pawns[c]))
		}
	}

	// The parser can panic on positions without kings, so only hand it
	// positions that passed the king check.
	if len(warnings) == 0 {
		if _, err := nchess.FEN(fen); err != nil {
			warnings = append(warnings, "rejected by parser: "+err.Error())
		}
	}
	return warnings
}

// WithActiveColor rewrites the side-to-move field of an existing FEN.
func WithActiveColor(fen string, c nchess.Color) (string, error) {
	fields := strings.Fields(fen)
	if len(fields) < 2 {
		return "", fmt.Errorf("fen %q: missing active color field", fen)
	}
	if c != nchess.White && c != nchess.Black {
		return "", fmt.Errorf("fen: invalid active color")
	}
	fields[1] = domain.ColorCode(c)
	return strings.Join(fields, " "), nil
}

// ParsePlacement decodes the first FEN field into a matrix. It accepts
// positions the full parser rejects, such as boards without kings.
func ParsePlacement(fen string) (domain.PieceMatrix, error) {
	m := domain.EmptyMatrix()
	field, _, _ := strings.Cut(strings.TrimSpace(fen), " ")
	ranks := strings.Split(field, "/")
	if len(ranks) != 8 {
		return m, fmt.Errorf("placement %q: want 8 ranks, got %d", field, len(ranks))
	}
	for row, rank := range ranks {
		col := 0
		for i := 0; i < len(rank); i++ {
			ch := rank[i]
			if ch >= '1' && ch <= '8' {
				col += int(ch - '0')
				continue
			}
			p, ok := domain.PieceFromLetter(ch)
			if !ok {
				return m, fmt.Errorf("placement %q: bad character %q", field, ch)
			}
			if col >= 8 {
				return m, fmt.Errorf("placement %q: rank %d overflows", field, 8-row)
			}
			m[row][col] = domain.PieceLabel{Piece: p, Confidence: 1}
			col++
		}
		if col != 8 {
			return m, fmt.Errorf("placement %q: rank %d has %d squares", field, 8-row, col)
		}
	}
	return m, nil
}

func LichessURL(fen string) string {
	return "https://lichess.org/analysis/" + strings.ReplaceAll(fen, " ", "_")
}

func ChessComURL(fen string) string {
	return "https://www.chess.com/analysis?fen=" + url.PathEscape(fen)
}
