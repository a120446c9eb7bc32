package dto

// ErrorResponseDTO is the body of every non-2xx response.
type ErrorResponseDTO struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

type HealthResponseDTO struct {
	Status   string `json:"status"`
	Database string `json:"database"`
}
