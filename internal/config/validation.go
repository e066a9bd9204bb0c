package config

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	"github.com/bmatcuk/doublestar/v4"

	"snektest/pkg/logging"
)

// ValidationError represents a validation error with context
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

// Error implements the error interface
func (ve ValidationError) Error() string {
	if ve.Field == "" {
		return ve.Message
	}
	return fmt.Sprintf("field '%s': %s", ve.Field, ve.Message)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for multiple validation errors
func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return "no validation errors"
	}
	if len(ve) == 1 {
		return ve[0].Error()
	}

	var messages []string
	for _, err := range ve {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(messages, "; "))
}

// HasErrors returns true if there are any validation errors
func (ve ValidationErrors) HasErrors() bool {
	return len(ve) > 0
}

// Add adds a new validation error
func (ve *ValidationErrors) Add(field, message string, value ...interface{}) {
	var val interface{}
	if len(value) > 0 {
		val = value[0]
	}
	*ve = append(*ve, ValidationError{
		Field:   field,
		Value:   val,
		Message: message,
	})
}

// Validate checks the semantic constraints the schema cannot express.
func (c Config) Validate() error {
	var errs ValidationErrors

	if strings.TrimSpace(c.TestPrefix) == "" {
		errs.Add("test_prefix", "is required", c.TestPrefix)
	}
	for i, pattern := range c.Ignore {
		if !doublestar.ValidatePattern(pattern) {
			errs.Add(fmt.Sprintf("ignore[%d]", i), "is not a valid glob pattern", pattern)
		}
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		errs.Add("log_level", err.Error(), c.LogLevel)
	}
	if c.QueueSize < 1 {
		errs.Add("queue_size", "must be at least 1", c.QueueSize)
	}
	if c.MaxOutputBytes < 0 {
		errs.Add("max_output_bytes", "must not be negative", c.MaxOutputBytes)
	}
	if c.Timeout < 0 {
		errs.Add("timeout", "must not be negative", c.Timeout)
	}
	if c.TeardownTimeout < 0 {
		errs.Add("teardown_timeout", "must not be negative", c.TeardownTimeout)
	}
	if c.ReportName != "" {
		if _, err := template.New("report_name").Funcs(sprig.TxtFuncMap()).Parse(c.ReportName); err != nil {
			errs.Add("report_name", fmt.Sprintf("is not a valid template: %v", err), c.ReportName)
		}
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}
