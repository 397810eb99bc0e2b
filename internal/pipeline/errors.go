package pipeline

import "errors"

// Kind classifies a terminal job failure. Validation kinds are detected
// before any engine resource is consumed and are never worth retrying;
// engine and encoding failures may be transient.
type Kind string

const (
	KindInvalidMode          Kind = "invalid_mode"
	KindMissingPrompt        Kind = "missing_prompt"
	KindMissingImage         Kind = "missing_image"
	KindInvalidImageEncoding Kind = "invalid_image_encoding"
	KindInvalidResolution    Kind = "invalid_resolution"
	KindEngineFailure        Kind = "engine_failure"
	KindEncodingFailure      Kind = "encoding_failure"
)

// Error is a terminal pipeline failure. Message is the caller-facing text
// that ends up verbatim in the error envelope; Kind lets callers distinguish
// validation failures from engine failures programmatically.
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Retryable reports whether resubmitting the same job could plausibly
// succeed. Validation failures are deterministic and never retryable.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case KindEngineFailure, KindEncodingFailure:
		return true
	default:
		return false
	}
}

func newError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func wrapError(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, cause: cause}
}

// KindOf returns the failure kind of err, or the empty string when err
// did not originate in the pipeline.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}
