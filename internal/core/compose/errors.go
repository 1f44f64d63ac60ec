package compose

import (
	"errors"
	"fmt"
)

// =============================================================================
// Error Types
// =============================================================================

var (
	// Input errors
	ErrEmptyInput  = errors.New("compose spec is empty")
	ErrInvalidYAML = errors.New("invalid YAML syntax")

	// Structural-type errors raised by the rewriter
	ErrInvalidDocument       = errors.New("compose document root must be a mapping")
	ErrInvalidServices       = errors.New("services must be a mapping")
	ErrInvalidVolumes        = errors.New("top-level volumes must be a mapping")
	ErrInvalidServiceVolumes = errors.New("service volumes must be a list")

	// Project validation errors
	ErrInvalidProject   = errors.New("invalid compose project")
	ErrNoServices       = errors.New("compose spec must define at least one service")
	ErrUndeclaredVolume = errors.New("service refers to an undeclared volume")
)

// ParseError wraps errors with context about where processing failed.
type ParseError struct {
	Field   string // e.g., "services.web.volumes"
	Message string
	Err     error
}

func (e *ParseError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// NewParseError creates a new ParseError.
func NewParseError(field, message string, err error) *ParseError {
	return &ParseError{
		Field:   field,
		Message: message,
		Err:     err,
	}
}

// IsStructuralError reports whether err is a structural-type rejection of the
// document shape, as opposed to a YAML syntax or project validation failure.
func IsStructuralError(err error) bool {
	return errors.Is(err, ErrInvalidDocument) ||
		errors.Is(err, ErrInvalidServices) ||
		errors.Is(err, ErrInvalidVolumes) ||
		errors.Is(err, ErrInvalidServiceVolumes)
}
