// Package apierror provides the response envelope for the API.
// Every response, success or failure, goes through this package to keep the
// {success, data, message, code} contract and to prevent leaking internal
// details (stack traces, DB errors, etc.).
package apierror

// Envelope is the canonical body of every HTTP response.
type Envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data"`
	Message string      `json:"message,omitempty"`
	// Code is a stable machine-readable error code (empty on success).
	Code string `json:"code,omitempty"`
	// Fields carries per-field validator tags on 422 responses.
	Fields map[string]string `json:"fields,omitempty"`
}

// OK wraps a successful payload.
func OK(data interface{}) *Envelope {
	return &Envelope{Success: true, Data: data}
}

// New builds a failure envelope without a code.
func New(msg string) *Envelope {
	return &Envelope{Success: false, Message: msg}
}

// WithCode builds a failure envelope carrying a stable error code.
func WithCode(code, msg string) *Envelope {
	return &Envelope{Success: false, Message: msg, Code: code}
}

// NewValidation wraps multiple field errors.
func NewValidation(fields map[string]string) *Envelope {
	return &Envelope{Success: false, Message: "Error de validacion", Code: "validacion", Fields: fields}
}
