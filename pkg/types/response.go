package types

type SuccessEnvelope struct {
	Data any `json:"data"`
}

type PageMeta struct {
	Total  int64 `json:"total"`
	Limit  int   `json:"limit"`
	Offset int   `json:"offset"`
}

type PageEnvelope struct {
	Data any      `json:"data"`
	Meta PageMeta `json:"meta"`
}

// APIError is the error body. Retryable tells a till it may resubmit the
// same request unchanged, for example after losing an invoice-number race.
type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable,omitempty"`
	Details   any    `json:"details,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}
