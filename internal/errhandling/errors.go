// Package errhandling provides error types and classification utilities.
// This file defines the typed errors raised by the cleaning engine, the
// category model used by the CLI to pick exit codes, and helpers for
// inspecting wrapped errors.
package errhandling

import (
	"errors"
	"fmt"
)

// ErrorCategory represents the type/category of an error.
// Categories help determine the appropriate error handling strategy.
type ErrorCategory string

// Error categories for classification.
const (
	// CategoryValidation represents rule specification errors (missing or
	// structurally invalid parameters). Validation errors are fatal and
	// abort the run before the offending rule mutates the batch.
	CategoryValidation ErrorCategory = "validation"

	// CategorySchema represents missing-column errors raised when a rule
	// names a column the batch does not carry. Schema errors are fatal.
	CategorySchema ErrorCategory = "schema"

	// CategoryRuleType represents unknown rule-type identifiers. Raised at
	// resolution time, before the rule runs. Fatal.
	CategoryRuleType ErrorCategory = "rule_type"

	// CategoryConfig represents settings file errors (unreadable file,
	// malformed JSON/YAML, schema violations). Fatal.
	CategoryConfig ErrorCategory = "config"

	// CategoryIO represents source/target read and write errors. Fatal.
	CategoryIO ErrorCategory = "io"

	// CategoryScript represents plugin script failures (load, compile, or
	// runtime errors in a hook script). Fatal unless the script's on_error
	// policy downgrades them before they reach classification.
	CategoryScript ErrorCategory = "script"

	// CategoryDataQuality represents expectation failures surfaced as
	// errors under strict data-quality mode. Fatal.
	CategoryDataQuality ErrorCategory = "data_quality"

	// CategoryUnknown represents unclassified errors.
	CategoryUnknown ErrorCategory = "unknown"
)

// ValidationError reports a rule specification that is missing a required
// parameter or carries a structurally invalid value. It is raised before
// the rule touches the batch, so a failing rule never half-applies.
type ValidationError struct {
	// Rule is the rule type identifier the bad specification belongs to.
	Rule string

	// Param is the offending parameter name ("" when the problem is not
	// tied to a single parameter).
	Param string

	// Message describes what is wrong with the value.
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Param != "" {
		return fmt.Sprintf("invalid rule %q: parameter %q %s", e.Rule, e.Param, e.Message)
	}
	return fmt.Sprintf("invalid rule %q: %s", e.Rule, e.Message)
}

// NewValidationError creates a ValidationError for a rule parameter.
func NewValidationError(rule, param, message string) *ValidationError {
	return &ValidationError{Rule: rule, Param: param, Message: message}
}

// MissingParam creates the ValidationError used when a required parameter
// is absent from a rule specification.
func MissingParam(rule, param string) *ValidationError {
	return &ValidationError{Rule: rule, Param: param, Message: "is required"}
}

// SchemaError reports a column referenced by a rule that does not exist in
// the batch at the time the rule executes.
type SchemaError struct {
	// Column is the missing column name.
	Column string
}

// Error implements the error interface.
func (e *SchemaError) Error() string {
	return fmt.Sprintf("column %q not found in batch", e.Column)
}

// NewSchemaError creates a SchemaError for a missing column.
func NewSchemaError(column string) *SchemaError {
	return &SchemaError{Column: column}
}

// UnknownRuleTypeError reports a rule-type identifier that is not present
// in the registry. Raised at resolution, before the rule runs; rules
// earlier in the list have already been applied by then.
type UnknownRuleTypeError struct {
	// Type is the unrecognized rule-type identifier.
	Type string
}

// Error implements the error interface.
func (e *UnknownRuleTypeError) Error() string {
	return fmt.Sprintf("unknown rule type: %s", e.Type)
}

// NewUnknownRuleTypeError creates an UnknownRuleTypeError.
func NewUnknownRuleTypeError(ruleType string) *UnknownRuleTypeError {
	return &UnknownRuleTypeError{Type: ruleType}
}

// IsValidationError reports whether err wraps a *ValidationError.
func IsValidationError(err error) bool {
	var verr *ValidationError
	return errors.As(err, &verr)
}

// IsSchemaError reports whether err wraps a *SchemaError.
func IsSchemaError(err error) bool {
	var serr *SchemaError
	return errors.As(err, &serr)
}

// IsUnknownRuleTypeError reports whether err wraps an *UnknownRuleTypeError.
func IsUnknownRuleTypeError(err error) bool {
	var uerr *UnknownRuleTypeError
	return errors.As(err, &uerr)
}

// ClassifiedError wraps an error with classification metadata.
// It provides category, fatality status, and contextual information.
type ClassifiedError struct {
	// Category is the error classification category.
	Category ErrorCategory

	// Fatal indicates whether the error aborts the run.
	Fatal bool

	// Message is a human-readable error message.
	Message string

	// OriginalErr is the underlying error that was classified.
	OriginalErr error
}

// Error implements the error interface.
func (e *ClassifiedError) Error() string {
	return fmt.Sprintf("%s error: %s", e.Category, e.Message)
}

// Unwrap returns the original error for use with errors.Is and errors.As.
func (e *ClassifiedError) Unwrap() error {
	return e.OriginalErr
}

// NewConfigError creates a ClassifiedError for settings errors.
func NewConfigError(message string, originalErr error) *ClassifiedError {
	return &ClassifiedError{
		Category:    CategoryConfig,
		Fatal:       true,
		Message:     message,
		OriginalErr: originalErr,
	}
}

// NewIOError creates a ClassifiedError for source/target errors.
func NewIOError(message string, originalErr error) *ClassifiedError {
	return &ClassifiedError{
		Category:    CategoryIO,
		Fatal:       true,
		Message:     message,
		OriginalErr: originalErr,
	}
}

// NewScriptError creates a ClassifiedError for plugin script errors.
func NewScriptError(message string, originalErr error) *ClassifiedError {
	return &ClassifiedError{
		Category:    CategoryScript,
		Fatal:       true,
		Message:     message,
		OriginalErr: originalErr,
	}
}

// NewDataQualityError creates a ClassifiedError for strict-mode
// expectation failures.
func NewDataQualityError(message string, originalErr error) *ClassifiedError {
	return &ClassifiedError{
		Category:    CategoryDataQuality,
		Fatal:       true,
		Message:     message,
		OriginalErr: originalErr,
	}
}

// ClassifyError classifies any error into a ClassifiedError.
// It handles already classified errors and the engine's typed errors.
// Unknown (unclassified) errors are treated as fatal: the engine never
// recovers a rule-level failure on the caller's behalf.
func ClassifyError(err error) *ClassifiedError {
	if err == nil {
		return &ClassifiedError{
			Category: CategoryUnknown,
			Fatal:    false,
			Message:  "nil error",
		}
	}

	// Check if already classified
	var classified *ClassifiedError
	if errors.As(err, &classified) {
		return classified
	}

	var verr *ValidationError
	if errors.As(err, &verr) {
		return &ClassifiedError{
			Category:    CategoryValidation,
			Fatal:       true,
			Message:     verr.Error(),
			OriginalErr: err,
		}
	}

	var serr *SchemaError
	if errors.As(err, &serr) {
		return &ClassifiedError{
			Category:    CategorySchema,
			Fatal:       true,
			Message:     serr.Error(),
			OriginalErr: err,
		}
	}

	var uerr *UnknownRuleTypeError
	if errors.As(err, &uerr) {
		return &ClassifiedError{
			Category:    CategoryRuleType,
			Fatal:       true,
			Message:     uerr.Error(),
			OriginalErr: err,
		}
	}

	return &ClassifiedError{
		Category:    CategoryUnknown,
		Fatal:       true,
		Message:     err.Error(),
		OriginalErr: err,
	}
}

// IsFatal returns true if the error aborts the run.
// Nil errors return false; everything else in this engine is fatal unless
// a classifier explicitly downgraded it.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	return ClassifyError(err).Fatal
}

// GetErrorCategory returns the error category for a given error.
// Returns CategoryUnknown for nil or unclassified errors.
func GetErrorCategory(err error) ErrorCategory {
	if err == nil {
		return CategoryUnknown
	}
	return ClassifyError(err).Category
}
