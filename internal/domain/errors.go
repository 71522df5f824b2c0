package domain

import "errors"

var (
	ErrEmptyMessage       = errors.New("message is empty")
	ErrFeedbackSuppressed = errors.New("feedback suppressed: thread timed out")
	ErrInvalidFeedback    = errors.New("invalid feedback")
	ErrUnknownMessage     = errors.New("unknown message")
)
