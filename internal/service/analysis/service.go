package analysis

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/park285/chessfen/internal/boardrender"
	"github.com/park285/chessfen/internal/classifier"
	"github.com/park285/chessfen/internal/domain"
	"github.com/park285/chessfen/internal/fen"
	"github.com/park285/chessfen/internal/msgcat"
	"github.com/park285/chessfen/internal/pipeline"
	"github.com/park285/chessfen/internal/rectify"
	"github.com/park285/chessfen/internal/resultcache"
	"github.com/park285/chessfen/pkg/fendto"
)

const (
	CodeBadRequest      = "bad_request"
	CodeTooLarge        = "too_large"
	CodeUnsupportedType = "unsupported_type"
	CodeInternal        = "internal"
)

var (
	ErrEmptyUpload = errors.New("empty upload")
	ErrInvalidFEN  = errors.New("invalid fen")
)

const (
	defaultMaxUpload  = 5 << 20
	cacheOpTimeout    = 500 * time.Millisecond
	minRenderSquare   = 16
	maxRenderSquare   = 128
	maxRenderMargin   = 256
	orientationAuto   = "auto"
)

var defaultAllowedExts = []string{".png", ".jpg", ".jpeg", ".webp"}

type Config struct {
	MaxUploadBytes int64
	AllowedExts    []string
}

// Service validates uploads, runs the pipeline and shapes the JSON response.
type Service struct {
	pipeline   *pipeline.Pipeline
	classifier classifier.Classifier
	cache      *resultcache.Store
	renderer   boardrender.BoardRenderer
	messages   *msgcat.Catalog
	cfg        Config
	allowed    map[string]struct{}
	logger     *zap.Logger
}

// NewService wires the analysis service. cache and messages may be nil.
func NewService(p *pipeline.Pipeline, c classifier.Classifier, cache *resultcache.Store, renderer boardrender.BoardRenderer, messages *msgcat.Catalog, cfg Config, logger *zap.Logger) (*Service, error) {
	if p == nil {
		return nil, errors.New("analysis: pipeline is required")
	}
	if renderer == nil {
		renderer = boardrender.NewSVGBoardRenderer()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = defaultMaxUpload
	}
	if len(cfg.AllowedExts) == 0 {
		cfg.AllowedExts = defaultAllowedExts
	}
	allowed := make(map[string]struct{}, len(cfg.AllowedExts))
	for _, ext := range cfg.AllowedExts {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		allowed[ext] = struct{}{}
	}
	return &Service{
		pipeline:   p,
		classifier: c,
		cache:      cache,
		renderer:   renderer,
		messages:   messages,
		cfg:        cfg,
		allowed:    allowed,
		logger:     logger,
	}, nil
}

func (s *Service) MaxUploadBytes() int64 { return s.cfg.MaxUploadBytes }

// Upload is one image plus the optional hints of an analyze request.
type Upload struct {
	Data        []byte
	Filename    string
	Corners     string
	Orientation string
	// RequestID correlates logs and the response. Generated when empty.
	RequestID string
}

// Analyze recognizes the position in an uploaded image. Errors are fendto.DomainError values.
func (s *Service) Analyze(ctx context.Context, up Upload) (*fendto.AnalysisResponse, error) {
	if err := s.validateUpload(up); err != nil {
		return nil, err
	}
	if up.RequestID == "" {
		up.RequestID = uuid.NewString()
	}
	req := pipeline.Request{RequestID: up.RequestID}
	if c := strings.TrimSpace(up.Corners); c != "" {
		q, err := rectify.ParseQuad(c)
		if err != nil {
			return nil, s.badRequest(err.Error())
		}
		req.Corners = &q
	}
	if o := strings.TrimSpace(up.Orientation); o != "" && !strings.EqualFold(o, orientationAuto) {
		orient, err := domain.ParseOrientation(o)
		if err != nil {
			return nil, s.badRequest(err.Error())
		}
		req.Orientation = &orient
	}

	key := resultcache.Key(up.Data, normalizedHint(req.Corners), strings.ToLower(strings.TrimSpace(up.Orientation)))
	if cached := s.loadCached(ctx, key); cached != nil {
		cached.Cached = true
		cached.RequestID = up.RequestID
		return cached, nil
	}

	start := time.Now()
	res, err := s.pipeline.RecognizeBytes(ctx, up.Data, req)
	if err != nil {
		return nil, s.DomainError(err)
	}
	resp := s.response(res)
	resp.ElapsedMillis = time.Since(start).Milliseconds()
	s.saveCached(ctx, key, resp)
	return resp, nil
}

func (s *Service) validateUpload(up Upload) error {
	if len(up.Data) == 0 {
		return s.badRequest(ErrEmptyUpload.Error())
	}
	if int64(len(up.Data)) > s.cfg.MaxUploadBytes {
		return s.domainError(CodeTooLarge, false, map[string]any{"LimitMB": s.cfg.MaxUploadBytes >> 20},
			fmt.Sprintf("image exceeds %d bytes", s.cfg.MaxUploadBytes))
	}
	if name := strings.TrimSpace(up.Filename); name != "" {
		ext := strings.ToLower(filepath.Ext(name))
		if _, ok := s.allowed[ext]; !ok {
			return s.domainError(CodeUnsupportedType, false,
				map[string]any{"Ext": ext, "Allowed": strings.Join(s.cfg.AllowedExts, ", ")},
				fmt.Sprintf("unsupported file type %q", ext))
		}
	}
	return nil
}

func (s *Service) response(res *pipeline.Result) *fendto.AnalysisResponse {
	rec := res.Record
	resp := &fendto.AnalysisResponse{
		FEN:                   rec.FEN,
		ActiveColor:           domain.ColorCode(rec.Active),
		ActiveColorConfidence: string(rec.Confidence),
		Orientation:           res.Orientation.String(),
		OrientationDetected:   res.OrientationDetected,
		Cue:                   string(rec.Cue),
		Valid:                 rec.Valid,
		Warnings:              rec.Warnings,
		Corners:               res.Corners.String(),
		BoardDetected:         res.BoardDetected,
		LichessURL:            fen.LichessURL(rec.FEN),
		ChessComURL:           fen.ChessComURL(rec.FEN),
		RequestID:             res.RequestID,
	}
	if rec.LastMove != nil {
		resp.LastMove = rec.LastMove.UCI()
	}
	var notes []string
	if rec.Confidence == domain.ConfidenceLow {
		notes = append(notes, s.messages.RenderOr("analysis.low_confidence",
			map[string]any{"Color": domain.ColorName(rec.Active)},
			fmt.Sprintf("Side to move (%s) is a guess.", domain.ColorName(rec.Active))))
	}
	if !rec.Valid {
		notes = append(notes, s.messages.RenderOr("analysis.invalid_position",
			map[string]any{"Warnings": strings.Join(rec.Warnings, "; ")},
			"The recognized position looks illegal."))
	}
	resp.Message = strings.Join(notes, " ")
	return resp
}

// SetActiveColor rewrites the side to move of a previously returned FEN.
func (s *Service) SetActiveColor(req fendto.ActiveColorRequest) (*fendto.ActiveColorResponse, error) {
	c, err := domain.ParseColor(req.ActiveColor)
	if err != nil {
		return nil, s.badRequest(err.Error())
	}
	out, err := fen.WithActiveColor(strings.TrimSpace(req.FEN), c)
	if err != nil {
		return nil, s.badRequest(err.Error())
	}
	if _, err := fen.ParsePlacement(out); err != nil {
		return nil, s.badRequest(fmt.Errorf("%w: %v", ErrInvalidFEN, err).Error())
	}
	return &fendto.ActiveColorResponse{
		FEN:         out,
		ActiveColor: domain.ColorCode(c),
		LichessURL:  fen.LichessURL(out),
		ChessComURL: fen.ChessComURL(out),
	}, nil
}

// Render draws a placement as PNG, optionally with an arrow or highlight cue.
func (s *Service) Render(ctx context.Context, req fendto.RenderRequest) ([]byte, error) {
	m, err := fen.ParsePlacement(req.FEN)
	if err != nil {
		return nil, s.badRequest(err.Error())
	}
	opts := boardrender.Options{SquareSize: req.SquareSize, Margin: req.Margin}
	if opts.SquareSize != 0 && (opts.SquareSize < minRenderSquare || opts.SquareSize > maxRenderSquare) {
		return nil, s.badRequest(fmt.Sprintf("square_size must be between %d and %d", minRenderSquare, maxRenderSquare))
	}
	if opts.Margin < 0 || opts.Margin > maxRenderMargin {
		return nil, s.badRequest(fmt.Sprintf("margin must be between 0 and %d", maxRenderMargin))
	}
	if o := strings.TrimSpace(req.Orientation); o != "" {
		if opts.Orientation, err = domain.ParseOrientation(o); err != nil {
			return nil, s.badRequest(err.Error())
		}
	}
	if a := strings.TrimSpace(req.Arrow); a != "" {
		mv, err := domain.ParseMove(a)
		if err != nil {
			return nil, s.badRequest(err.Error())
		}
		opts.Arrow = &mv
	}
	if h := strings.TrimSpace(req.Highlight); h != "" {
		mv, err := domain.ParseMove(h)
		if err != nil {
			return nil, s.badRequest(err.Error())
		}
		opts.Highlight = &mv
	}
	png, err := s.renderer.RenderPNG(ctx, m, opts)
	if err != nil {
		s.logger.Error("render_failed", zap.Error(err))
		return nil, s.domainError(CodeInternal, true, nil, "render failed")
	}
	return png, nil
}

// Health reports classifier and cache reachability. Status is "ok" only when
// every configured dependency answers.
func (s *Service) Health(ctx context.Context) fendto.HealthResponse {
	out := fendto.HealthResponse{Status: "ok", Classifier: "ok", Cache: "disabled"}
	if hc, ok := s.classifier.(classifier.HealthChecker); ok {
		if err := hc.Health(ctx); err != nil {
			out.Classifier = "unavailable"
			out.Status = "degraded"
		}
	}
	if s.cache != nil {
		out.Cache = "ok"
		if err := s.cache.Ping(ctx); err != nil {
			out.Cache = "unavailable"
			out.Status = "degraded"
		}
	}
	return out
}

// DomainError maps any error to the wire error shape.
func (s *Service) DomainError(err error) fendto.DomainError {
	var de fendto.DomainError
	if errors.As(err, &de) {
		return de
	}
	kind, ok := pipeline.KindOf(err)
	if !ok {
		s.logger.Error("unexpected_error", zap.Error(err))
		return s.domainError(CodeInternal, false, nil, "internal error")
	}
	return s.domainError(string(kind), kind.Retryable(), nil, err.Error())
}

func (s *Service) badRequest(detail string) fendto.DomainError {
	return s.domainError(CodeBadRequest, false, map[string]any{"Detail": detail}, detail)
}

func (s *Service) domainError(code string, retryable bool, data map[string]any, fallback string) fendto.DomainError {
	if data == nil {
		data = map[string]any{}
	}
	return fendto.DomainError{
		Code:      code,
		Message:   s.messages.RenderOr("errors."+code, data, fallback),
		Retryable: retryable,
	}
}

func (s *Service) loadCached(ctx context.Context, key string) *fendto.AnalysisResponse {
	if s.cache == nil {
		return nil
	}
	cctx, cancel := context.WithTimeout(ctx, cacheOpTimeout)
	defer cancel()
	resp, err := s.cache.Load(cctx, key)
	if err != nil {
		s.logger.Warn("result_cache_load_failed", zap.Error(err))
		return nil
	}
	return resp
}

func (s *Service) saveCached(ctx context.Context, key string, resp *fendto.AnalysisResponse) {
	if s.cache == nil {
		return
	}
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cacheOpTimeout)
	defer cancel()
	if err := s.cache.Save(cctx, key, resp); err != nil {
		s.logger.Warn("result_cache_save_failed", zap.Error(err))
	}
}

func normalizedHint(q *rectify.Quad) string {
	if q == nil {
		return ""
	}
	return q.Ordered().String()
}
