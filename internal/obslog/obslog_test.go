package obslog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"WARNING": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"bogus":   zapcore.InfoLevel,
		"":        zapcore.InfoLevel,
	}
	for in, want := range cases {
		if got := parseLevel(in); got != want {
			t.Fatalf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNewWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "fen.log")
	logger, err := New(Options{Level: zapcore.InfoLevel, File: path, Format: "json"})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	logger.Info("recognized")
	_ = logger.Sync()

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(raw), `"msg":"recognized"`) {
		t.Fatalf("log content %q", raw)
	}
}

func TestOptionsFromEnv(t *testing.T) {
	t.Setenv("LOG_TO_FILE", "false")
	t.Setenv("LOG_FORMAT", "XML")
	opts := OptionsFromEnv()
	if opts.File != "" {
		t.Fatalf("file sink should be disabled")
	}
	if opts.Format != "legacy" {
		t.Fatalf("format = %q", opts.Format)
	}
}
