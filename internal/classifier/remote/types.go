package remote

// ClassifyRequest carries PNG-encoded cells, base64 in JSON.
type ClassifyRequest struct {
	Cells []CellPayload `json:"cells"`
}

type CellPayload struct {
	Index int    `json:"index"`
	Image string `json:"image"`
}

type ClassifyResponse struct {
	Labels []LabelPayload `json:"labels"`
}

type LabelPayload struct {
	Index      int     `json:"index"`
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

type HealthResponse struct {
	Status      string `json:"status"`
	ModelLoaded bool   `json:"model_loaded"`
	Model       string `json:"model,omitempty"`
}
