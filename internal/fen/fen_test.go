package fen

import (
	"math/rand/v2"
	"strings"
	"testing"

	nchess "github.com/corentings/chess/v2"

	"github.com/park285/chessfen/internal/domain"
)

func mustPlacement(t *testing.T, s string) domain.PieceMatrix {
	t.Helper()
	m, err := ParsePlacement(s)
	if err != nil {
		t.Fatalf("ParsePlacement(%q): %v", s, err)
	}
	return m
}

func TestPlacementRunLength(t *testing.T) {
	m := domain.EmptyMatrix()
	if got := Placement(&m); got != "8/8/8/8/8/8/8/8" {
		t.Fatalf("empty board = %q", got)
	}
	m.Set(nchess.A2, nchess.WhitePawn)
	m.Set(nchess.H2, nchess.WhitePawn)
	m.Set(nchess.D5, nchess.BlackQueen)
	got := Placement(&m)
	if got != "8/8/8/3q4/8/8/P6P/8" {
		t.Fatalf("placement = %q", got)
	}
}

func TestAssembleStartingPosition(t *testing.T) {
	m := mustPlacement(t, StartingPosition)
	rec := Assemble(&m, domain.DefaultSignal())
	if rec.FEN != StartingPosition {
		t.Fatalf("fen = %q", rec.FEN)
	}
	if !rec.Valid || len(rec.Warnings) != 0 {
		t.Fatalf("warnings = %v", rec.Warnings)
	}

	opt, err := nchess.FEN(rec.FEN)
	if err != nil {
		t.Fatalf("parser rejected %q: %v", rec.FEN, err)
	}
	game := nchess.NewGame(opt)
	if game.FEN() != rec.FEN {
		t.Fatalf("round trip = %q", game.FEN())
	}
	if game.Position().Turn() != nchess.White {
		t.Fatalf("turn = %v", game.Position().Turn())
	}
}

// randomMatrix places both kings and up to 28 other pieces, keeping pawns off the back ranks.
func randomMatrix(rng *rand.Rand) domain.PieceMatrix {
	m := domain.EmptyMatrix()
	free := rng.Perm(64)
	put := func(p nchess.Piece) bool {
		for i, idx := range free {
			row, col := idx/8, idx%8
			if p.Type() == nchess.Pawn && (row == 0 || row == 7) {
				continue
			}
			m[row][col] = domain.PieceLabel{Piece: p, Confidence: 1}
			free = append(free[:i], free[i+1:]...)
			return true
		}
		return false
	}
	put(nchess.WhiteKing)
	put(nchess.BlackKing)
	others := []nchess.Piece{
		nchess.WhiteQueen, nchess.WhiteRook, nchess.WhiteBishop, nchess.WhiteKnight, nchess.WhitePawn,
		nchess.BlackQueen, nchess.BlackRook, nchess.BlackBishop, nchess.BlackKnight, nchess.BlackPawn,
	}
	for n := rng.IntN(29); n > 0; n-- {
		put(others[rng.IntN(len(others))])
	}
	return m
}

func TestAssembleRoundTripRandomPositions(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 42))
	parsed := 0
	for i := 0; i < 500; i++ {
		m := randomMatrix(rng)
		sig := domain.DefaultSignal()
		if i%2 == 1 {
			sig.Color = nchess.Black
		}
		rec := Assemble(&m, sig)

		back, err := ParsePlacement(rec.FEN)
		if err != nil {
			t.Fatalf("case %d: ParsePlacement(%q): %v", i, rec.FEN, err)
		}
		for row := 0; row < 8; row++ {
			for col := 0; col < 8; col++ {
				if back[row][col].Piece != m[row][col].Piece {
					t.Fatalf("case %d: %s differs after round trip of %q", i, domain.SquareAt(row, col), rec.FEN)
				}
			}
		}
		if !strings.HasPrefix(strings.Fields(rec.FEN)[1], domain.ColorCode(sig.Color)) {
			t.Fatalf("case %d: active color field of %q", i, rec.FEN)
		}

		if !rec.Valid {
			continue
		}
		opt, err := nchess.FEN(rec.FEN)
		if err != nil {
			t.Fatalf("case %d: valid record rejected by parser: %v", i, err)
		}
		board := domain.MatrixFromBoard(nchess.NewGame(opt).Position().Board())
		for row := 0; row < 8; row++ {
			for col := 0; col < 8; col++ {
				if board[row][col].Piece != m[row][col].Piece {
					t.Fatalf("case %d: parser disagrees on %s for %q", i, domain.SquareAt(row, col), rec.FEN)
				}
			}
		}
		parsed++
	}
	if parsed == 0 {
		t.Fatalf("no generated position passed validation")
	}
}

func TestAssembleBlackToMove(t *testing.T) {
	m := mustPlacement(t, StartingPosition)
	mv := domain.Move{From: nchess.E2, To: nchess.E4}
	sig := domain.ActiveColorSignal{Color: nchess.Black, SourceMove: &mv, Confidence: domain.ConfidenceHigh, Cue: domain.CueArrow}
	rec := Assemble(&m, sig)
	if !strings.Contains(rec.FEN, " b KQkq - 0 1") {
		t.Fatalf("fen = %q", rec.FEN)
	}
	if rec.LastMove == nil || rec.LastMove.UCI() != "e2e4" || rec.Cue != domain.CueArrow {
		t.Fatalf("record = %+v", rec)
	}
}

func TestCastling(t *testing.T) {
	cases := []struct {
		placement string
		want      string
	}{
		{"r3k2r/8/8/8/8/8/8/R3K2R", "KQkq"},
		{"r3k2r/8/8/8/8/8/8/4K3", "kq"},
		{"4k2r/8/8/8/8/8/8/R3K3", "Qk"},
		{"r3k2r/8/8/8/8/8/8/R4K1R", "kq"},
		{"8/8/8/8/8/8/8/8", "-"},
	}
	for _, tc := range cases {
		m := mustPlacement(t, tc.placement)
		if got := Castling(&m); got != tc.want {
			t.Fatalf("Castling(%s) = %q, want %q", tc.placement, got, tc.want)
		}
	}
}

func TestValidateFlagsImpossiblePositions(t *testing.T) {
	cases := []struct {
		placement string
		contains  string
	}{
		{"8/8/8/8/8/8/8/8", "white has 0 kings"},
		{"k7/8/8/8/8/8/8/KK6", "white has 2 kings"},
		{"k6P/8/8/8/8/8/8/K7", "pawn on back rank"},
		{"k7/8/8/8/8/8/PPPPPPPP/KP6", "white has 9 pawns"},
	}
	for _, tc := range cases {
		m := mustPlacement(t, tc.placement)
		rec := Assemble(&m, domain.DefaultSignal())
		if rec.Valid {
			t.Fatalf("%s should be invalid", tc.placement)
		}
		if !strings.Contains(strings.Join(rec.Warnings, "; "), tc.contains) {
			t.Fatalf("%s warnings %v, want %q", tc.placement, rec.Warnings, tc.contains)
		}
		if !strings.HasPrefix(rec.FEN, tc.placement+" w ") {
			t.Fatalf("invalid positions still get a FEN, got %q", rec.FEN)
		}
	}
}

func TestWithActiveColor(t *testing.T) {
	got, err := WithActiveColor(StartingPosition, nchess.Black)
	if err != nil {
		t.Fatalf("WithActiveColor: %v", err)
	}
	if got != "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR b KQkq - 0 1" {
		t.Fatalf("got %q", got)
	}
	if _, err := WithActiveColor("8/8/8/8/8/8/8/8", nchess.White); err == nil {
		t.Fatalf("expected missing field error")
	}
	if _, err := WithActiveColor(StartingPosition, nchess.NoColor); err == nil {
		t.Fatalf("expected invalid color error")
	}
}

func TestParsePlacementErrors(t *testing.T) {
	for _, bad := range []string{
		"8/8/8/8/8/8/8",
		"9/8/8/8/8/8/8/8",
		"ppppppppp/8/8/8/8/8/8/8",
		"7/8/8/8/8/8/8/8",
		"x7/8/8/8/8/8/8/8",
	} {
		if _, err := ParsePlacement(bad); err == nil {
			t.Fatalf("ParsePlacement(%q) should fail", bad)
		}
	}
}

func TestLinks(t *testing.T) {
	if got := LichessURL(StartingPosition); got != "https://lichess.org/analysis/rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR_w_KQkq_-_0_1" {
		t.Fatalf("lichess = %q", got)
	}
	if got := ChessComURL("8/8/8/8/8/8/8/8 w - - 0 1"); got != "https://www.chess.com/analysis?fen=8%2F8%2F8%2F8%2F8%2F8%2F8%2F8%20w%20-%20-%200%201" {
		t.Fatalf("chess.com = %q", got)
	}
}
