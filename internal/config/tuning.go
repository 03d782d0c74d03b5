package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	yaml "gopkg.in/yaml.v3"
)

// Tuning overrides recognizer thresholds. Zero values keep the built-in defaults.
type Tuning struct {
	Detector    DetectorTuning    `yaml:"detector"`
	Grid        GridTuning        `yaml:"grid"`
	ActiveColor ActiveColorTuning `yaml:"active_color"`
}

type DetectorTuning struct {
	MaxDim            int     `yaml:"max_dim"`
	EdgeClip          float64 `yaml:"edge_clip"`
	PeakRatio         float64 `yaml:"peak_ratio"`
	MinBoardFraction  float64 `yaml:"min_board_fraction"`
	MinParityContrast float64 `yaml:"min_parity_contrast"`
	AspectTolerance   float64 `yaml:"aspect_tolerance"`
}

type GridTuning struct {
	ForegroundDistance float64 `yaml:"foreground_distance"`
	OccupiedFraction   float64 `yaml:"occupied_fraction"`
	MinLumaGap         float64 `yaml:"min_luma_gap"`
}

type ActiveColorTuning struct {
	ArrowMinChroma      float64 `yaml:"arrow_min_chroma"`
	ArrowMinHueDistance float64 `yaml:"arrow_min_hue_distance"`
	ArrowMinArea        float64 `yaml:"arrow_min_area"`
	ArrowMinElongation  float64 `yaml:"arrow_min_elongation"`
	ArrowHeadRatio      float64 `yaml:"arrow_head_ratio"`
	HighlightMinShift   float64 `yaml:"highlight_min_shift"`
	HighlightMaxSpread  float64 `yaml:"highlight_max_spread"`
}

func LoadTuning(path string) (*Tuning, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tuning file: %w", err)
	}
	return ParseTuning(raw)
}

// ParseTuning rejects unknown keys so a typo does not silently keep a default.
func ParseTuning(raw []byte) (*Tuning, error) {
	var t Tuning
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&t); err != nil {
		if errors.Is(err, io.EOF) {
			return &t, nil
		}
		return nil, fmt.Errorf("parse tuning: %w", err)
	}
	return &t, nil
}
