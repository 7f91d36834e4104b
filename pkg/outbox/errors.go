package outbox

import "errors"

var (
	errEmptyData          = errors.New("event payload has no data")
	errTransactionMissing = errors.New("transaction required")
)

// NonRetryableError marks a handler failure that will not succeed on retry.
type NonRetryableError struct {
	Err error
}

func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable error"
	}
	return e.Err.Error()
}

func (e NonRetryableError) Unwrap() error {
	return e.Err
}

// NewNonRetryableError wraps err so the dispatcher stops retrying the event.
func NewNonRetryableError(err error) error {
	return NonRetryableError{Err: err}
}

// IsNonRetryable reports whether err carries a NonRetryableError.
func IsNonRetryable(err error) bool {
	var target NonRetryableError
	return errors.As(err, &target)
}
