package domain

import "errors"

var (
	// ErrJobNotFound is returned when a job row does not exist.
	ErrJobNotFound = errors.New("extraction job not found")

	// ErrProviderRejected is returned when the extraction provider refuses a
	// submission with a non-success response.
	ErrProviderRejected = errors.New("extraction provider rejected submission")

	// ErrNetwork is returned on transport-level failures talking to the
	// extraction provider. The client does not retry; the worker decides.
	ErrNetwork = errors.New("extraction provider unreachable")

	// ErrArchiveMalformed is returned when the result archive is not a valid
	// container.
	ErrArchiveMalformed = errors.New("result archive is not a valid archive")

	// ErrArchiveTooLarge is returned when the result archive exceeds the
	// configured size bound.
	ErrArchiveTooLarge = errors.New("result archive exceeds size limit")

	// ErrNoStructuredText is returned when the result archive contains no
	// structured-text entry.
	ErrNoStructuredText = errors.New("result archive contains no structured-text entry")

	// ErrDecodeFailed is returned when the structured-text entry is not valid
	// UTF-8.
	ErrDecodeFailed = errors.New("structured-text entry is not valid UTF-8")

	// ErrStorageFailed is returned when an object-storage upload or download
	// fails during materialization.
	ErrStorageFailed = errors.New("object storage operation failed")

	// ErrSessionNotFound is returned when a parse session does not exist.
	ErrSessionNotFound = errors.New("parse session not found")

	// ErrSessionConsumed is returned when confirming or discarding a parse
	// session that was already consumed. This is a client error, never a
	// silent success.
	ErrSessionConsumed = errors.New("parse session already consumed")

	// ErrSectionNotFound is returned when a document section does not exist.
	ErrSectionNotFound = errors.New("document section not found")

	// ErrJobTimeout is returned when a job exceeds its wall-clock wait budget.
	ErrJobTimeout = errors.New("extraction exceeded maximum wait budget")
)

// RetryableError wraps transient failures that should trigger a message
// requeue at the consumer level.
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string {
	return "retryable error: " + e.Err.Error()
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// NewRetryableError wraps err as retryable.
func NewRetryableError(err error) error {
	return &RetryableError{Err: err}
}
