package models

// RunResponse is the response for the /api/v1/runs endpoints.
type RunResponse struct {
	// Success indicates whether the request was accepted.
	Success bool `json:"success"`

	// Run is the current status of the requested run.
	Run *RunStatus `json:"run,omitempty"`

	// Error is populated only when Success is false.
	Error *ErrorDetail `json:"error,omitempty"`
}

// HealthResponse is the response for GET /api/v1/health.
type HealthResponse struct {
	Status  string `json:"status"` // "idle" or "busy"
	Uptime  string `json:"uptime"`
	Current string `json:"current_run,omitempty"`
	Version string `json:"version"`
}
