package fendto

// DomainError is the JSON error body returned for failed requests.
type DomainError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

func (e DomainError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Code != "" {
		return e.Code
	}
	return "fen recognition error"
}

type ErrorResponse struct {
	Error     DomainError `json:"error"`
	RequestID string      `json:"request_id,omitempty"`
}
