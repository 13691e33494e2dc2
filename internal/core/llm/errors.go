package llm

import (
	"errors"
	"fmt"
)

// EmbeddingError reports a failure of the embedding provider. Transient
// failures (rate limit, timeout, network) may be retried with backoff by the
// caller; permanent ones (malformed input, auth) must propagate untouched.
type EmbeddingError struct {
	Transient bool
	Err       error
}

func (e *EmbeddingError) Error() string {
	if e.Transient {
		return fmt.Sprintf("embedding failed (transient): %v", e.Err)
	}
	return fmt.Sprintf("embedding failed: %v", e.Err)
}

func (e *EmbeddingError) Unwrap() error { return e.Err }

// GenerationError reports a failure of the completion capability, tagged the
// same way as EmbeddingError.
type GenerationError struct {
	Transient bool
	Err       error
}

func (e *GenerationError) Error() string {
	if e.Transient {
		return fmt.Sprintf("generation failed (transient): %v", e.Err)
	}
	return fmt.Sprintf("generation failed: %v", e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// IsTransient reports whether err is a capability error marked retryable.
func IsTransient(err error) bool {
	var ee *EmbeddingError
	if errors.As(err, &ee) {
		return ee.Transient
	}
	var ge *GenerationError
	if errors.As(err, &ge) {
		return ge.Transient
	}
	return false
}
