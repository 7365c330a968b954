package annotation

import (
	"errors"
	"fmt"
)

// ValidationError reports a rejected span, class or selection
type ValidationError struct {
	Field   string      `json:"field"`
	Value   interface{} `json:"value,omitempty"`
	Message string      `json:"message"`
}

func (e *ValidationError) Error() string {
	if e.Value == nil {
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("invalid %s %v: %s", e.Field, e.Value, e.Message)
}

// ConflictError reports a linking decision that does not fit the current
// state, such as reusing a tag when no duplicate was found.
type ConflictError struct {
	Message string `json:"message"`
}

func (e *ConflictError) Error() string {
	return "conflict: " + e.Message
}

// IsValidation reports whether err wraps a ValidationError
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// IsConflict reports whether err wraps a ConflictError
func IsConflict(err error) bool {
	var c *ConflictError
	return errors.As(err, &c)
}

// CheckBounds enforces 0 <= start < end <= length
func CheckBounds(start, end, length int) error {
	switch {
	case start < 0:
		return &ValidationError{Field: "startOffset", Value: start, Message: "must not be negative"}
	case end > length:
		return &ValidationError{Field: "endOffset", Value: end, Message: fmt.Sprintf("exceeds document length %d", length)}
	case start >= end:
		return &ValidationError{Field: "span", Value: fmt.Sprintf("[%d,%d)", start, end), Message: "must not be empty"}
	}
	return nil
}
