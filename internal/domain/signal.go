package domain

import nchess "github.com/corentings/chess/v2"

// Confidence is the coarse trust level of an active-color guess.
type Confidence string

const (
	ConfidenceLow  Confidence = "low"
	ConfidenceHigh Confidence = "high"
)

// Cue names the overlay that produced an active-color guess.
type Cue string

const (
	CueArrow     Cue = "arrow"
	CueHighlight Cue = "highlight"
	CueDefault   Cue = "default"
)

// ActiveColorSignal is the resolver's verdict about the side to move.
type ActiveColorSignal struct {
	Color      nchess.Color
	SourceMove *Move
	Confidence Confidence
	Cue        Cue
}

// DefaultSignal is returned when no overlay cue was found.
func DefaultSignal() ActiveColorSignal {
	return ActiveColorSignal{
		Color:      nchess.White,
		Confidence: ConfidenceLow,
		Cue:        CueDefault,
	}
}
