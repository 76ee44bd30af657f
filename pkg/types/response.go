package types

// SuccessEnvelope wraps every successful payload. Source names the provider
// that produced the data when more than one can answer.
type SuccessEnvelope struct {
	Data   any    `json:"data"`
	Source string `json:"source,omitempty"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}
