package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	ClassifierGlyph  = "glyph"
	ClassifierRemote = "remote"

	DetectorEdges   = "edges"
	DetectorContour = "contour"
	DetectorAuto    = "auto"
)

type AppConfig struct {
	HTTPAddr       string
	RequestTimeout time.Duration
	MaxUploadBytes int64
	// MaxImagePixels caps width*height of a decoded upload.
	MaxImagePixels int64

	Classifier        string
	ClassifierURL     string
	ClassifierAPIKey  string
	ClassifierTimeout time.Duration
	ClassifierRetries int

	Detector   string
	OutputSize int

	RedisURL string
	CacheTTL time.Duration

	MessagesDir string
	TuningFile  string
	Tuning      *Tuning
}

func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		HTTPAddr:          ":8080",
		RequestTimeout:    10 * time.Second,
		MaxUploadBytes:    5 << 20,
		MaxImagePixels:    40_000_000,
		Classifier:        ClassifierGlyph,
		ClassifierTimeout: 5 * time.Second,
		ClassifierRetries: 2,
		Detector:          DetectorAuto,
		OutputSize:        512,
		CacheTTL:          24 * time.Hour,
	}

	if v := env("HTTP_ADDR"); v != "" {
		cfg.HTTPAddr = v
	}
	if err := envDuration("REQUEST_TIMEOUT", &cfg.RequestTimeout); err != nil {
		return nil, err
	}
	if v := env("MAX_UPLOAD_BYTES"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("MAX_UPLOAD_BYTES: invalid value %q", v)
		}
		cfg.MaxUploadBytes = n
	}
	if v := env("MAX_IMAGE_PIXELS"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("MAX_IMAGE_PIXELS: invalid value %q", v)
		}
		cfg.MaxImagePixels = n
	}

	if v := strings.ToLower(env("CLASSIFIER")); v != "" {
		cfg.Classifier = v
	}
	cfg.ClassifierURL = env("CLASSIFIER_URL")
	cfg.ClassifierAPIKey = env("CLASSIFIER_API_KEY")
	if err := envDuration("CLASSIFIER_TIMEOUT", &cfg.ClassifierTimeout); err != nil {
		return nil, err
	}
	if v := env("CLASSIFIER_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.ClassifierRetries = n
		}
	}

	if v := strings.ToLower(env("DETECTOR")); v != "" {
		cfg.Detector = v
	}
	if v := env("OUTPUT_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 64 {
			return nil, fmt.Errorf("OUTPUT_SIZE: must be an integer >= 64, got %q", v)
		}
		cfg.OutputSize = n
	}

	cfg.RedisURL = env("REDIS_URL")
	if err := envDuration("CACHE_TTL", &cfg.CacheTTL); err != nil {
		return nil, err
	}

	cfg.MessagesDir = env("MESSAGES_DIR")
	cfg.TuningFile = env("TUNING_FILE")
	if cfg.TuningFile != "" {
		t, err := LoadTuning(cfg.TuningFile)
		if err != nil {
			return nil, err
		}
		cfg.Tuning = t
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *AppConfig) Validate() error {
	switch c.Classifier {
	case ClassifierGlyph:
	case ClassifierRemote:
		if c.ClassifierURL == "" {
			return errors.New("CLASSIFIER_URL is required when CLASSIFIER=remote")
		}
	default:
		return fmt.Errorf("CLASSIFIER: unknown classifier %q", c.Classifier)
	}
	switch c.Detector {
	case DetectorEdges, DetectorContour, DetectorAuto:
	default:
		return fmt.Errorf("DETECTOR: unknown detector %q", c.Detector)
	}
	if c.RequestTimeout <= 0 {
		return errors.New("REQUEST_TIMEOUT must be positive")
	}
	return nil
}

func env(k string) string {
	return strings.TrimSpace(os.Getenv(k))
}

// envDuration accepts Go durations ("750ms", "2m") or a bare number of seconds.
func envDuration(k string, dst *time.Duration) error {
	v := env(k)
	if v == "" {
		return nil
	}
	if n, err := strconv.Atoi(v); err == nil && n > 0 {
		*dst = time.Duration(n) * time.Second
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return fmt.Errorf("%s: invalid duration %q", k, v)
	}
	*dst = d
	return nil
}
