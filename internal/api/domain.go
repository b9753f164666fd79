package api

// Response is the JSON envelope of error replies.
type Response struct {
	Success   bool   `json:"success" example:"false"`
	Message   string `json:"message,omitempty"`
	Error     string `json:"error,omitempty" example:"place 5f0c7c1e: not found"`
	RequestID string `json:"request_id,omitempty"`
}
