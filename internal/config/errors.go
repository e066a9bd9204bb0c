package config

import (
	"fmt"
	"strings"
)

// Error types of a ConfigurationError.
const (
	ErrorTypeIO         = "io"
	ErrorTypeParse      = "parse"
	ErrorTypeSchema     = "schema"
	ErrorTypeValidation = "validation"
)

// ConfigurationError represents a configuration file that could not be used.
type ConfigurationError struct {
	FilePath    string   `json:"filePath"`
	ErrorType   string   `json:"errorType"`
	Message     string   `json:"message"`
	Details     string   `json:"details"`
	Suggestions []string `json:"suggestions"`
	Err         error    `json:"-"`
}

// Error implements the error interface
func (ce *ConfigurationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", ce.ErrorType, ce.FilePath, ce.Message)
}

func (ce *ConfigurationError) Unwrap() error {
	return ce.Err
}

// DetailedError returns a detailed error message with all context
func (ce *ConfigurationError) DetailedError() string {
	var parts []string

	parts = append(parts, fmt.Sprintf("Configuration Error in %s", ce.FilePath))
	parts = append(parts, fmt.Sprintf("  Type: %s", ce.ErrorType))
	parts = append(parts, fmt.Sprintf("  Error: %s", ce.Message))

	if ce.Details != "" {
		parts = append(parts, fmt.Sprintf("  Details: %s", ce.Details))
	}

	if len(ce.Suggestions) > 0 {
		parts = append(parts, "  Suggestions:")
		for _, suggestion := range ce.Suggestions {
			parts = append(parts, fmt.Sprintf("    - %s", suggestion))
		}
	}

	return strings.Join(parts, "\n")
}

func newConfigurationError(filePath, errorType, message string, err error, suggestions ...string) *ConfigurationError {
	ce := &ConfigurationError{
		FilePath:    filePath,
		ErrorType:   errorType,
		Message:     message,
		Suggestions: suggestions,
		Err:         err,
	}
	if err != nil {
		ce.Details = err.Error()
	}
	return ce
}
