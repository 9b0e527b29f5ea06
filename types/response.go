package types

type ErrorResponse struct {
	Success      bool   `json:"success"`
	ErrorMessage string `json:"error,omitempty"`
}

type StatusResponse struct {
	Success bool   `json:"success"`
	Status  string `json:"status,omitempty"`
}
