package fendto

// AnalysisResponse is the result of one recognition. The first three fields
// are always present; the rest are diagnostics.
type AnalysisResponse struct {
	FEN                   string `json:"fen"`
	ActiveColor           string `json:"active_color"`
	ActiveColorConfidence string `json:"active_color_confidence"`

	Orientation         string   `json:"orientation,omitempty"`
	OrientationDetected bool     `json:"orientation_detected"`
	Cue                 string   `json:"cue,omitempty"`
	LastMove            string   `json:"last_move,omitempty"`
	Valid               bool     `json:"valid"`
	Warnings            []string `json:"warnings,omitempty"`
	Corners             string   `json:"corners,omitempty"`
	BoardDetected       bool     `json:"board_detected"`
	LichessURL          string   `json:"lichess_url,omitempty"`
	ChessComURL         string   `json:"chesscom_url,omitempty"`
	Message             string   `json:"message,omitempty"`
	RequestID           string   `json:"request_id,omitempty"`
	Cached              bool     `json:"cached,omitempty"`
	ElapsedMillis       int64    `json:"elapsed_ms"`
}

// ActiveColorRequest rewrites the side to move of an existing FEN.
type ActiveColorRequest struct {
	FEN         string `json:"fen"`
	ActiveColor string `json:"active_color"`
}

type ActiveColorResponse struct {
	FEN         string `json:"fen"`
	ActiveColor string `json:"active_color"`
	LichessURL  string `json:"lichess_url"`
	ChessComURL string `json:"chesscom_url"`
}

// RenderRequest draws a FEN placement, optionally with a move cue.
type RenderRequest struct {
	FEN         string `json:"fen"`
	Orientation string `json:"orientation,omitempty"`
	SquareSize  int    `json:"square_size,omitempty"`
	Margin      int    `json:"margin,omitempty"`
	Arrow       string `json:"arrow,omitempty"`
	Highlight   string `json:"highlight,omitempty"`
}

type HealthResponse struct {
	Status     string `json:"status"`
	Classifier string `json:"classifier"`
	Cache      string `json:"cache"`
}

// StreamFrame is one message on the streaming endpoint. Exactly one of
// Result and Error is set.
type StreamFrame struct {
	Seq    int               `json:"seq"`
	Result *AnalysisResponse `json:"result,omitempty"`
	Error  *DomainError      `json:"error,omitempty"`
}
