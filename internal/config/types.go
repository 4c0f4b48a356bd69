package config

import (
	"fmt"
	"strings"
)

// Parse error categories.
const (
	ErrorTypeIO     = "io"
	ErrorTypeSyntax = "syntax"
	ErrorTypeFormat = "format"
)

// ParseResult holds the outcome of parsing settings content.
type ParseResult struct {
	// Data is the parsed settings object
	Data map[string]interface{}
	// Errors collects the parse errors encountered
	Errors []ParseError
	// Format is the format that was parsed (json, yaml)
	Format string
}

// IsValid reports whether parsing succeeded.
func (r *ParseResult) IsValid() bool {
	return len(r.Errors) == 0
}

// ParseError is a parse failure with location information where the
// underlying decoder provides it.
type ParseError struct {
	// Path is the settings file path ("" when parsed from a string)
	Path string
	// Line is 1-based; 0 when unknown
	Line int
	// Column is 1-based; 0 when unknown
	Column int
	// Offset is the byte offset; 0 when unknown
	Offset int64
	// Message describes the failure
	Message string
	// Type categorizes the failure (io, syntax, format)
	Type string
}

// Error implements the error interface.
func (e ParseError) Error() string {
	var sb strings.Builder
	if e.Path != "" {
		sb.WriteString(e.Path)
		sb.WriteString(": ")
	}
	if e.Line > 0 {
		sb.WriteString(fmt.Sprintf("line %d", e.Line))
		if e.Column > 0 {
			sb.WriteString(fmt.Sprintf(", column %d", e.Column))
		}
		sb.WriteString(": ")
	}
	sb.WriteString(e.Message)
	return sb.String()
}

// ValidationResult holds the outcome of schema validation.
type ValidationResult struct {
	// Valid reports whether the settings satisfy the schema
	Valid bool
	// Errors lists the schema violations
	Errors []ValidationError
}

// ValidationError is one schema violation.
type ValidationError struct {
	// Path locates the violation in the settings (e.g. "/source/path")
	Path string
	// Type is the violation kind (required, type, enum, ...)
	Type string
	// Message describes the violation
	Message string
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s", e.Path, e.Message)
	}
	return e.Message
}

// Result combines parsing and validation for one settings file.
type Result struct {
	// Data is the parsed settings object
	Data map[string]interface{}
	// ParseErrors collects parse failures
	ParseErrors []ParseError
	// ValidationErrors collects schema violations
	ValidationErrors []ValidationError
	// FilePath is the settings file path ("" when parsed from a string)
	FilePath string
	// Format is the detected format (json, yaml)
	Format string
}

// IsValid reports whether the settings parsed and validated cleanly.
func (r *Result) IsValid() bool {
	return len(r.ParseErrors) == 0 && len(r.ValidationErrors) == 0
}

// AllErrors flattens parse and validation errors into one slice.
func (r *Result) AllErrors() []error {
	errors := make([]error, 0, len(r.ParseErrors)+len(r.ValidationErrors))
	for _, e := range r.ParseErrors {
		errors = append(errors, e)
	}
	for _, e := range r.ValidationErrors {
		errors = append(errors, e)
	}
	return errors
}
