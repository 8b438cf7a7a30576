package api

// StartRequest is the optional body of a start request
type StartRequest struct {
	DurationMinutes int `json:"durationMinutes"`
}

// HealthResponse is returned by the health check
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

// OKResponse acknowledges a request without a payload
type OKResponse struct {
	OK bool `json:"ok"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
