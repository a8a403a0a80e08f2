package idea

import (
	"errors"
	"fmt"
	"time"
)

// ValidationError is user input the bot refuses to process. Its message is
// safe to show verbatim.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// NewValidationError builds a ValidationError for field.
func NewValidationError(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is or wraps a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// FormatDuration renders d as m:ss.
func FormatDuration(d time.Duration) string {
	secs := int(d.Round(time.Second) / time.Second)
	if secs < 0 {
		secs = 0
	}
	return fmt.Sprintf("%d:%02d", secs/60, secs%60)
}

// ErrVoiceTooLong reports a voice note over the configured limit.
func ErrVoiceTooLong(actual, limit time.Duration) *ValidationError {
	return NewValidationError("voice",
		"Voice note is %s long. The limit is %s, please send a shorter one.",
		FormatDuration(actual), describeLimit(limit))
}

func describeLimit(limit time.Duration) string {
	if limit%time.Minute == 0 {
		m := int(limit / time.Minute)
		if m == 1 {
			return "1 minute"
		}
		return fmt.Sprintf("%d minutes", m)
	}
	return FormatDuration(limit)
}
