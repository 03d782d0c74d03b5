package builder

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/park285/chessfen/internal/activecolor"
	"github.com/park285/chessfen/internal/boardrender"
	"github.com/park285/chessfen/internal/classifier"
	"github.com/park285/chessfen/internal/classifier/glyph"
	"github.com/park285/chessfen/internal/classifier/remote"
	"github.com/park285/chessfen/internal/config"
	"github.com/park285/chessfen/internal/grid"
	"github.com/park285/chessfen/internal/msgcat"
	"github.com/park285/chessfen/internal/pipeline"
	"github.com/park285/chessfen/internal/rectify"
	"github.com/park285/chessfen/internal/resultcache"
	"github.com/park285/chessfen/internal/service/analysis"
)

type Deps struct {
	Service    *analysis.Service
	Pipeline   *pipeline.Pipeline
	Classifier classifier.Classifier
	Cache      *resultcache.Store
	Messages   *msgcat.Catalog

	redis *redis.Client
}

func (d *Deps) Close() error {
	if d.redis != nil {
		return d.redis.Close()
	}
	return nil
}

func New(cfg *config.AppConfig, logger *zap.Logger) (*Deps, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	tuning := cfg.Tuning
	if tuning == nil {
		tuning = &config.Tuning{}
	}

	detector, err := newDetector(cfg.Detector, tuning.Detector)
	if err != nil {
		return nil, err
	}
	rectOpts := []rectify.Option{rectify.WithOutputSize(cfg.OutputSize), rectify.WithLogger(logger)}
	if tuning.Detector.AspectTolerance > 0 {
		rectOpts = append(rectOpts, rectify.WithAspectTolerance(tuning.Detector.AspectTolerance))
	}
	rectifier := rectify.New(detector, rectOpts...)

	partitioner := grid.NewPartitioner(logger)
	setIf(&partitioner.ForegroundDistance, tuning.Grid.ForegroundDistance)
	setIf(&partitioner.OccupiedFraction, tuning.Grid.OccupiedFraction)
	setIf(&partitioner.MinLumaGap, tuning.Grid.MinLumaGap)

	resolver := activecolor.NewResolver(activeColorTuning(tuning.ActiveColor), logger)

	cls, err := newClassifier(cfg, cfg.OutputSize/8)
	if err != nil {
		return nil, err
	}

	p, err := pipeline.New(rectifier, partitioner, cls, resolver,
		pipeline.WithTimeout(cfg.RequestTimeout),
		pipeline.WithMaxPixels(cfg.MaxImagePixels),
		pipeline.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}

	messages, err := msgcat.New(cfg.MessagesDir)
	if err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}

	deps := &Deps{Pipeline: p, Classifier: cls, Messages: messages}
	if strings.TrimSpace(cfg.RedisURL) != "" {
		opts, perr := parseRedisURL(cfg.RedisURL)
		if perr != nil {
			return nil, fmt.Errorf("parse redis url: %w", perr)
		}
		rdb := redis.NewClient(opts)
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		deps.redis = rdb
		deps.Cache = resultcache.NewStore(rdb, cfg.CacheTTL)
	}

	svc, err := analysis.NewService(p, cls, deps.Cache, boardrender.NewSVGBoardRenderer(), messages,
		analysis.Config{MaxUploadBytes: cfg.MaxUploadBytes}, logger)
	if err != nil {
		_ = deps.Close()
		return nil, err
	}
	deps.Service = svc

	logger.Info("fen_pipeline_ready",
		zap.String("detector", detector.Name()),
		zap.String("classifier", cfg.Classifier),
		zap.Int("output_size", cfg.OutputSize),
		zap.Duration("timeout", cfg.RequestTimeout),
		zap.Bool("cache", deps.Cache != nil),
	)
	return deps, nil
}

func newDetector(name string, t config.DetectorTuning) (rectify.Detector, error) {
	edges := rectify.NewEdgeDetector()
	if t.MaxDim > 0 {
		edges.MaxDim = t.MaxDim
	}
	setIf(&edges.EdgeClip, t.EdgeClip)
	setIf(&edges.PeakRatio, t.PeakRatio)
	setIf(&edges.MinBoardFraction, t.MinBoardFraction)
	setIf(&edges.MinParityContrast, t.MinParityContrast)

	switch name {
	case config.DetectorEdges:
		return edges, nil
	case config.DetectorContour:
		if !rectify.ContourSupported {
			return nil, fmt.Errorf("DETECTOR=contour requires a build with the gocv tag")
		}
		return rectify.NewContourDetector(), nil
	case config.DetectorAuto, "":
		if rectify.ContourSupported {
			return rectify.Chain{edges, rectify.NewContourDetector()}, nil
		}
		return edges, nil
	}
	return nil, fmt.Errorf("unknown detector %q", name)
}

func newClassifier(cfg *config.AppConfig, cellSize int) (classifier.Classifier, error) {
	switch cfg.Classifier {
	case config.ClassifierRemote:
		opts := []remote.Option{
			remote.WithTimeout(cfg.ClassifierTimeout),
			remote.WithRetry(cfg.ClassifierRetries),
		}
		if key := strings.TrimSpace(cfg.ClassifierAPIKey); key != "" {
			opts = append(opts, remote.WithHeaderProvider(func() map[string]string {
				return map[string]string{"X-API-Key": key}
			}))
		}
		return remote.NewClient(cfg.ClassifierURL, opts...), nil
	case config.ClassifierGlyph, "":
		c := glyph.New()
		if err := c.Warm(cellSize); err != nil {
			return nil, fmt.Errorf("warm glyph templates: %w", err)
		}
		return c, nil
	}
	return nil, fmt.Errorf("unknown classifier %q", cfg.Classifier)
}

func activeColorTuning(t config.ActiveColorTuning) activecolor.Tuning {
	out := activecolor.DefaultTuning()
	setIf(&out.ArrowMinChroma, t.ArrowMinChroma)
	setIf(&out.ArrowMinHueDistance, t.ArrowMinHueDistance)
	setIf(&out.ArrowMinArea, t.ArrowMinArea)
	setIf(&out.ArrowMinElongation, t.ArrowMinElongation)
	setIf(&out.ArrowHeadRatio, t.ArrowHeadRatio)
	setIf(&out.HighlightMinShift, t.HighlightMinShift)
	setIf(&out.HighlightMaxSpread, t.HighlightMaxSpread)
	return out
}

func setIf(dst *float64, v float64) {
	if v > 0 {
		*dst = v
	}
}

func parseRedisURL(raw string) (*redis.Options, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "redis" && u.Scheme != "rediss" {
		return nil, fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	port := u.Port()
	if port == "" {
		port = "6379"
	}
	if _, err := strconv.Atoi(port); err != nil {
		return nil, err
	}
	db := 0
	if p := strings.TrimPrefix(u.Path, "/"); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid db %q", p)
		}
		db = n
	}
	pass, _ := u.User.Password()
	return &redis.Options{
		Addr:     u.Hostname() + ":" + port,
		Username: u.User.Username(),
		Password: pass,
		DB:       db,
	}, nil
}
