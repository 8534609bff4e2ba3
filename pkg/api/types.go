package api

// ErrorResponse is the generic rejection body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// QuotaExceededResponse is the body of a DAILY_LIMIT_REACHED rejection.
type QuotaExceededResponse struct {
	Error     string `json:"error"`
	Limit     *int   `json:"limit"`
	Remaining int    `json:"remaining"`
	Pro       bool   `json:"pro"`
	Message   string `json:"message"`
}
