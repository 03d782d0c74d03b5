package domain

import (
	"testing"

	nchess "github.com/corentings/chess/v2"
)

func TestParseLabel(t *testing.T) {
	cases := map[string]nchess.Piece{
		"white_pawn":   nchess.WhitePawn,
		"Black-Knight": nchess.BlackKnight,
		"w_king":       nchess.WhiteKing,
		"black queen":  nchess.BlackQueen,
		"empty":        nchess.NoPiece,
		"":             nchess.NoPiece,
	}
	for in, want := range cases {
		got, err := ParseLabel(in)
		if err != nil {
			t.Fatalf("ParseLabel(%q): %v", in, err)
		}
		if got != want {
			t.Fatalf("ParseLabel(%q) = %v, want %v", in, got, want)
		}
	}
	for _, bad := range []string{"purple_pawn", "white_dragon", "pawn"} {
		if _, err := ParseLabel(bad); err == nil {
			t.Fatalf("ParseLabel(%q) should fail", bad)
		}
	}
}

func TestLabelRoundTrip(t *testing.T) {
	for _, p := range AllPieces {
		got, err := ParseLabel(LabelName(p))
		if err != nil || got != p {
			t.Fatalf("label round trip %v: got %v err %v", p, got, err)
		}
		ch, ok := FENLetter(p)
		if !ok {
			t.Fatalf("no letter for %v", p)
		}
		back, ok := PieceFromLetter(ch)
		if !ok || back != p {
			t.Fatalf("letter round trip %c: got %v", ch, back)
		}
	}
	if ch, _ := FENLetter(nchess.WhiteKnight); ch != 'N' {
		t.Fatalf("white knight letter = %c", ch)
	}
	if ch, _ := FENLetter(nchess.BlackPawn); ch != 'p' {
		t.Fatalf("black pawn letter = %c", ch)
	}
	if _, ok := PieceFromLetter('x'); ok {
		t.Fatalf("x is not a piece")
	}
}

func TestOrientationNormalize(t *testing.T) {
	if r, c := WhiteBottom.Normalize(0, 1); r != 0 || c != 1 {
		t.Fatalf("white bottom moved cell to %d,%d", r, c)
	}
	if r, c := BlackBottom.Normalize(0, 1); r != 7 || c != 6 {
		t.Fatalf("black bottom (0,1) -> %d,%d", r, c)
	}
	o, err := ParseOrientation("flipped")
	if err != nil || o != BlackBottom {
		t.Fatalf("ParseOrientation(flipped) = %v, %v", o, err)
	}
	if _, err := ParseOrientation("left"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestSquares(t *testing.T) {
	if sq := SquareAt(0, 0); sq != nchess.A8 {
		t.Fatalf("SquareAt(0,0) = %s", sq)
	}
	if sq := SquareAt(7, 4); sq != nchess.E1 {
		t.Fatalf("SquareAt(7,4) = %s", sq)
	}
	r, c := SquareCell(nchess.H1)
	if r != 7 || c != 7 {
		t.Fatalf("SquareCell(h1) = %d,%d", r, c)
	}
	sq, err := ParseSquare("E4")
	if err != nil || sq != nchess.E4 {
		t.Fatalf("ParseSquare(E4) = %s, %v", sq, err)
	}
	if _, err := ParseSquare("i9"); err == nil {
		t.Fatalf("expected error for i9")
	}
}

func TestParseMove(t *testing.T) {
	m, err := ParseMove("e7e8q")
	if err != nil {
		t.Fatalf("ParseMove: %v", err)
	}
	if m.From != nchess.E7 || m.To != nchess.E8 || m.UCI() != "e7e8" {
		t.Fatalf("move = %+v", m)
	}
	if _, err := ParseMove("e2e2"); err == nil {
		t.Fatalf("expected error for null move")
	}
	if _, err := ParseMove("e2"); err == nil {
		t.Fatalf("expected error for short move")
	}
}

func TestMatrix(t *testing.T) {
	m := EmptyMatrix()
	if !m.At(nchess.D4).IsEmpty() {
		t.Fatalf("empty matrix has a piece on d4")
	}
	m.Set(nchess.E1, nchess.WhiteKing)
	m.Set(nchess.E8, nchess.BlackKing)
	m.Set(nchess.D8, nchess.BlackKing)
	if m.KingCount(nchess.White) != 1 || m.KingCount(nchess.Black) != 2 {
		t.Fatalf("king counts = %d, %d", m.KingCount(nchess.White), m.KingCount(nchess.Black))
	}
	if m[7][4].Piece != nchess.WhiteKing || m.At(nchess.E1).Color() != nchess.White {
		t.Fatalf("e1 not stored at row 7 col 4")
	}

	game := nchess.NewGame()
	start := MatrixFromBoard(game.Position().Board())
	if start.At(nchess.D1).Piece != nchess.WhiteQueen || start.At(nchess.G8).Piece != nchess.BlackKnight {
		t.Fatalf("start matrix wrong: d1=%v g8=%v", start.At(nchess.D1), start.At(nchess.G8))
	}
}

func TestColors(t *testing.T) {
	if Opponent(nchess.White) != nchess.Black || Opponent(nchess.Black) != nchess.White {
		t.Fatalf("opponent")
	}
	if ColorCode(nchess.Black) != "b" || ColorName(nchess.White) != "white" {
		t.Fatalf("color names")
	}
	if c, err := ParseColor("B"); err != nil || c != nchess.Black {
		t.Fatalf("ParseColor(B) = %v, %v", c, err)
	}
	sig := DefaultSignal()
	if sig.Color != nchess.White || sig.Confidence != ConfidenceLow || sig.Cue != CueDefault || sig.SourceMove != nil {
		t.Fatalf("default signal = %+v", sig)
	}
}
