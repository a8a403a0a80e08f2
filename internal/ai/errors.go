package ai

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNoProviders is reported when a chain has nothing to try.
	ErrNoProviders = errors.New("no providers configured")

	// ErrUnsupported is returned by a provider that lacks an operation.
	ErrUnsupported = errors.New("operation not supported by provider")

	// ErrEmptyTranscription means transcription succeeded but produced only
	// whitespace. It is not a provider failure.
	ErrEmptyTranscription = errors.New("transcription is empty")

	// ErrMalformedResponse marks a response that could not be used.
	ErrMalformedResponse = errors.New("malformed response")
)

// ProviderError is a single provider's failure for one operation.
type ProviderError struct {
	Provider string
	Op       string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Provider, e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// ExhaustedError is returned when every provider in the chain failed.
// Errs is in provider order; the last entry is the final attempt.
type ExhaustedError struct {
	Op   string
	Errs []error
}

func (e *ExhaustedError) Error() string {
	if len(e.Errs) == 0 {
		return fmt.Sprintf("%s failed: all providers exhausted", e.Op)
	}
	last := e.Errs[len(e.Errs)-1]
	if len(e.Errs) == 1 {
		return fmt.Sprintf("%s failed: %v", e.Op, last)
	}

	var earlier []string
	for _, err := range e.Errs[:len(e.Errs)-1] {
		earlier = append(earlier, err.Error())
	}
	return fmt.Sprintf("%s failed after %d providers: %v (earlier: %s)",
		e.Op, len(e.Errs), last, strings.Join(earlier, "; "))
}

func (e *ExhaustedError) Unwrap() []error {
	return e.Errs
}

// Last returns the final provider's error, or nil.
func (e *ExhaustedError) Last() error {
	if len(e.Errs) == 0 {
		return nil
	}
	return e.Errs[len(e.Errs)-1]
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedResponse, fmt.Sprintf(format, args...))
}
