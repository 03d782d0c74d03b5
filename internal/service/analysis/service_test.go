package analysis

import (
	"bytes"
	"context"
	"errors"
	"image/png"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/park285/chessfen/internal/activecolor"
	"github.com/park285/chessfen/internal/boardrender"
	"github.com/park285/chessfen/internal/classifier/glyph"
	"github.com/park285/chessfen/internal/fen"
	"github.com/park285/chessfen/internal/grid"
	"github.com/park285/chessfen/internal/msgcat"
	"github.com/park285/chessfen/internal/pipeline"
	"github.com/park285/chessfen/internal/rectify"
	"github.com/park285/chessfen/internal/resultcache"
	"github.com/park285/chessfen/pkg/fendto"
)

const fullCorners = "0,0,512,0,512,512,0,512"

func newTestService(t *testing.T, cache *resultcache.Store) *Service {
	t.Helper()
	cls := glyph.New()
	p, err := pipeline.New(
		rectify.New(rectify.NewEdgeDetector()),
		grid.NewPartitioner(nil),
		cls,
		activecolor.NewResolver(activecolor.DefaultTuning(), nil),
	)
	if err != nil {
		t.Fatalf("pipeline: %v", err)
	}
	cat, err := msgcat.New("")
	if err != nil {
		t.Fatalf("msgcat: %v", err)
	}
	svc, err := NewService(p, cls, cache, nil, cat, Config{MaxUploadBytes: 1 << 20}, nil)
	if err != nil {
		t.Fatalf("service: %v", err)
	}
	return svc
}

func startPNG(t *testing.T) []byte {
	t.Helper()
	m, err := fen.ParsePlacement(fen.StartingPosition)
	if err != nil {
		t.Fatal(err)
	}
	raw, err := boardrender.NewSVGBoardRenderer().RenderPNG(context.Background(), m, boardrender.Options{SquareSize: 64})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	return raw
}

func asDomainError(t *testing.T, err error) fendto.DomainError {
	t.Helper()
	var de fendto.DomainError
	if !errors.As(err, &de) {
		t.Fatalf("error %v (%T) is not a DomainError", err, err)
	}
	return de
}

func TestAnalyzeStartingPosition(t *testing.T) {
	svc := newTestService(t, nil)
	resp, err := svc.Analyze(context.Background(), Upload{Data: startPNG(t), Filename: "board.png", Corners: fullCorners})
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if resp.FEN != fen.StartingPosition {
		t.Fatalf("fen = %q", resp.FEN)
	}
	if resp.ActiveColor != "w" || resp.ActiveColorConfidence != "low" {
		t.Fatalf("active color = %s/%s", resp.ActiveColor, resp.ActiveColorConfidence)
	}
	if !strings.Contains(resp.Message, "white to move") {
		t.Fatalf("message = %q", resp.Message)
	}
	if !strings.HasPrefix(resp.LichessURL, "https://lichess.org/analysis/") {
		t.Fatalf("lichess url = %q", resp.LichessURL)
	}
	if resp.Cached {
		t.Fatalf("first response must not be cached")
	}
}

func TestAnalyzeUsesCache(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	svc := newTestService(t, resultcache.NewStore(rdb, time.Minute))

	up := Upload{Data: startPNG(t), Filename: "board.png", Corners: fullCorners, RequestID: "req-1"}
	first, err := svc.Analyze(context.Background(), up)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if first.RequestID != "req-1" {
		t.Fatalf("request id = %q, want req-1", first.RequestID)
	}
	up.RequestID = "req-2"
	second, err := svc.Analyze(context.Background(), up)
	if err != nil {
		t.Fatalf("analyze cached: %v", err)
	}
	if !second.Cached || second.FEN != first.FEN {
		t.Fatalf("second = %+v", second)
	}
	if second.RequestID != "req-2" {
		t.Fatalf("cached response kept request id %q, want req-2", second.RequestID)
	}
	if h := svc.Health(context.Background()); h.Cache != "ok" || h.Status != "ok" {
		t.Fatalf("health = %+v", h)
	}
}

func TestAnalyzeValidation(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	_, err := svc.Analyze(ctx, Upload{})
	if de := asDomainError(t, err); de.Code != CodeBadRequest {
		t.Fatalf("empty upload code = %s", de.Code)
	}

	_, err = svc.Analyze(ctx, Upload{Data: make([]byte, 2<<20), Filename: "big.png"})
	if de := asDomainError(t, err); de.Code != CodeTooLarge {
		t.Fatalf("large upload code = %s", de.Code)
	}

	_, err = svc.Analyze(ctx, Upload{Data: []byte("x"), Filename: "board.gif"})
	if de := asDomainError(t, err); de.Code != CodeUnsupportedType || !strings.Contains(de.Message, ".gif") {
		t.Fatalf("unsupported type = %+v", de)
	}

	_, err = svc.Analyze(ctx, Upload{Data: startPNG(t), Corners: "1,2,3"})
	if de := asDomainError(t, err); de.Code != CodeBadRequest {
		t.Fatalf("bad corners code = %s", de.Code)
	}

	_, err = svc.Analyze(ctx, Upload{Data: startPNG(t), Orientation: "sideways"})
	if de := asDomainError(t, err); de.Code != CodeBadRequest {
		t.Fatalf("bad orientation code = %s", de.Code)
	}

	_, err = svc.Analyze(ctx, Upload{Data: []byte("garbage"), Filename: "x.png"})
	de := asDomainError(t, err)
	if de.Code != string(pipeline.KindInvalidImage) || de.Retryable {
		t.Fatalf("garbage = %+v", de)
	}
	if !strings.Contains(de.Message, "could not be read") {
		t.Fatalf("message not from catalog: %q", de.Message)
	}
}

func TestSetActiveColor(t *testing.T) {
	svc := newTestService(t, nil)
	resp, err := svc.SetActiveColor(fendto.ActiveColorRequest{FEN: fen.StartingPosition, ActiveColor: "black"})
	if err != nil {
		t.Fatalf("set active color: %v", err)
	}
	if resp.FEN != "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR b KQkq - 0 1" {
		t.Fatalf("fen = %q", resp.FEN)
	}
	if resp.ActiveColor != "b" {
		t.Fatalf("active color = %q, want b", resp.ActiveColor)
	}
	if _, err := svc.SetActiveColor(fendto.ActiveColorRequest{FEN: fen.StartingPosition, ActiveColor: "green"}); err == nil {
		t.Fatalf("expected error for bad color")
	}
	if _, err := svc.SetActiveColor(fendto.ActiveColorRequest{FEN: "8/8 w - - 0 1", ActiveColor: "w"}); err == nil {
		t.Fatalf("expected error for bad placement")
	}
}

func TestRender(t *testing.T) {
	svc := newTestService(t, nil)
	raw, err := svc.Render(context.Background(), fendto.RenderRequest{FEN: fen.StartingPosition, SquareSize: 32, Arrow: "e2e4"})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if img.Bounds().Dx() != 256 {
		t.Fatalf("width = %d", img.Bounds().Dx())
	}
	if _, err := svc.Render(context.Background(), fendto.RenderRequest{FEN: fen.StartingPosition, SquareSize: 4}); err == nil {
		t.Fatalf("expected square size error")
	}
	if _, err := svc.Render(context.Background(), fendto.RenderRequest{FEN: fen.StartingPosition, Arrow: "e9e4"}); err == nil {
		t.Fatalf("expected arrow parse error")
	}
}
