package common

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// Common error types used across qab packages
var (
	ErrPathEmpty      = errors.New("path cannot be empty")
	ErrSourceNotExist = errors.New("source does not exist")
	ErrInvalidConfig  = errors.New("invalid configuration")
	ErrInvalidVocab   = errors.New("invalid vocabulary")
	ErrBadSpanLine    = errors.New("answer span line must hold exactly two integers")
	ErrStreamClosed   = errors.New("batch stream is closed")
)

// ValidationUtils provides common validation utilities used across packages
type ValidationUtils struct{}

// NewValidationUtils creates a new ValidationUtils instance
func NewValidationUtils() *ValidationUtils {
	return &ValidationUtils{}
}

// ValidateContextCancellation checks if context is cancelled and returns appropriate error
func (vu *ValidationUtils) ValidateContextCancellation(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}

// ValidateRequiredString validates that a string is not empty
func (vu *ValidationUtils) ValidateRequiredString(value, fieldName string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%s cannot be empty: %w", fieldName, ErrInvalidConfig)
	}
	return nil
}

// ValidatePositive validates that an integer setting is greater than zero
func (vu *ValidationUtils) ValidatePositive(value int, fieldName string) error {
	if value <= 0 {
		return fmt.Errorf("%s must be > 0, got %d: %w", fieldName, value, ErrInvalidConfig)
	}
	return nil
}

// ValidateFileExists validates that a regular file exists at path. A missing file
// matches both ErrSourceNotExist and os.ErrNotExist.
func (vu *ValidationUtils) ValidateFileExists(path string) error {
	if path == "" {
		return ErrPathEmpty
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%s: %w: %w", path, ErrSourceNotExist, err)
		}
		return fmt.Errorf("failed to access file %s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("path is a directory, not a file: %s", path)
	}
	return nil
}

// ErrorUtils provides common error handling utilities
type ErrorUtils struct{}

// NewErrorUtils creates a new ErrorUtils instance
func NewErrorUtils() *ErrorUtils {
	return &ErrorUtils{}
}

// WrapError wraps an error with additional context
func (eu *ErrorUtils) WrapError(err error, message string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	context := fmt.Sprintf(message, args...)
	return fmt.Errorf("%s: %w", context, err)
}

// LogAndWrapError logs an error and wraps it with context
func (eu *ErrorUtils) LogAndWrapError(logger zerolog.Logger, err error, level zerolog.Level, message string, args ...interface{}) error {
	if err == nil {
		return nil
	}

	context := fmt.Sprintf(message, args...)
	logger.WithLevel(level).Err(err).Msg(context)

	return fmt.Errorf("%s: %w", context, err)
}
