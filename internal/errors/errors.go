package errors

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Error types for the asset registry
type ErrorType string

const (
	// Registry errors
	ErrorTypeRegistry         ErrorType = "registry"
	ErrorTypeIdentityConflict ErrorType = "identity_conflict"
	ErrorTypePartialIndex     ErrorType = "partial_index"

	// Scan errors
	ErrorTypeScan  ErrorType = "scan"
	ErrorTypeParse ErrorType = "parse"

	// File errors
	ErrorTypeFileNotFound ErrorType = "file_not_found"
	ErrorTypePermission   ErrorType = "permission"
	ErrorTypeFile         ErrorType = "file"

	// Configuration errors
	ErrorTypeConfig ErrorType = "config"

	// Internal errors
	ErrorTypeInternal ErrorType = "internal"
)

// RegistryError represents a failed registry operation on one asset path
type RegistryError struct {
	Type        ErrorType
	Path        string
	Operation   string
	Underlying  error
	Timestamp   time.Time
	Recoverable bool
}

// NewRegistryError creates a new registry error with context
func NewRegistryError(op string, err error) *RegistryError {
	return &RegistryError{
		Type:       ErrorTypeRegistry,
		Operation:  op,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

// WithPath adds the asset path to the error
func (e *RegistryError) WithPath(path string) *RegistryError {
	e.Path = path
	return e
}

// WithRecoverable marks the error as recoverable
func (e *RegistryError) WithRecoverable(recoverable bool) *RegistryError {
	e.Recoverable = recoverable
	return e
}

// Error implements the error interface
func (e *RegistryError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s %s failed for %s: %v", e.Type, e.Operation, e.Path, e.Underlying)
	}
	return fmt.Sprintf("%s %s failed: %v", e.Type, e.Operation, e.Underlying)
}

// Unwrap returns the underlying error for errors.Is/As
func (e *RegistryError) Unwrap() error {
	return e.Underlying
}

// IsRecoverable checks if the error can be retried
func (e *RegistryError) IsRecoverable() bool {
	return e.Recoverable
}

// IdentityConflictError reports an incoming record whose primary path is
// already registered under a different id or type.
type IdentityConflictError struct {
	PrimaryPath  string
	ExistingID   string
	IncomingID   string
	ExistingType string
	IncomingType string
	Timestamp    time.Time
}

// NewIdentityConflictError creates a new identity conflict diagnostic
func NewIdentityConflictError(primaryPath, existingID, incomingID, existingType, incomingType string) *IdentityConflictError {
	return &IdentityConflictError{
		PrimaryPath:  primaryPath,
		ExistingID:   existingID,
		IncomingID:   incomingID,
		ExistingType: existingType,
		IncomingType: incomingType,
		Timestamp:    time.Now(),
	}
}

// Error implements the error interface
func (e *IdentityConflictError) Error() string {
	return fmt.Sprintf("identity conflict at %s: registered %s (%s), incoming %s (%s)",
		e.PrimaryPath, e.ExistingID, e.ExistingType, e.IncomingID, e.IncomingType)
}

// PartialIndexError reports a move or rename whose physical step failed
// part way. Indices are only best-effort consistent afterwards; callers
// should retry or trigger a re-scan.
type PartialIndexError struct {
	Type       ErrorType
	Operation  string
	Path       string
	Completed  int
	Total      int
	Underlying error
	Timestamp  time.Time
}

// NewPartialIndexError creates a new partial index failure
func NewPartialIndexError(op, path string, completed, total int, err error) *PartialIndexError {
	return &PartialIndexError{
		Type:       ErrorTypePartialIndex,
		Operation:  op,
		Path:       path,
		Completed:  completed,
		Total:      total,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

// Error implements the error interface
func (e *PartialIndexError) Error() string {
	return fmt.Sprintf("%s of %s stopped after %d/%d files: %v", e.Operation, e.Path, e.Completed, e.Total, e.Underlying)
}

// Unwrap returns the underlying error
func (e *PartialIndexError) Unwrap() error {
	return e.Underlying
}

// IsRecoverable reports true: a re-scan restores consistency
func (e *PartialIndexError) IsRecoverable() bool {
	return true
}

// ParseError represents a metadata file that could not be turned into a record
type ParseError struct {
	Type       ErrorType
	FilePath   string
	Field      string
	Underlying error
	Timestamp  time.Time
}

// NewParseError creates a new parse error
func NewParseError(path, field string, err error) *ParseError {
	return &ParseError{
		Type:       ErrorTypeParse,
		FilePath:   path,
		Field:      field,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

// Error implements the error interface
func (e *ParseError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("parse error in %s (field %q): %v", e.FilePath, e.Field, e.Underlying)
	}
	return fmt.Sprintf("parse error in %s: %v", e.FilePath, e.Underlying)
}

// Unwrap returns the underlying error
func (e *ParseError) Unwrap() error {
	return e.Underlying
}

// FileError represents a file-related error
type FileError struct {
	Type       ErrorType
	Path       string
	Operation  string
	Underlying error
	Timestamp  time.Time
}

// NewFileError creates a new file error
func NewFileError(op, path string, err error) *FileError {
	errorType := ErrorTypeFile
	switch {
	case os.IsNotExist(err):
		errorType = ErrorTypeFileNotFound
	case isPermissionError(err):
		errorType = ErrorTypePermission
	}

	return &FileError{
		Type:       errorType,
		Path:       path,
		Operation:  op,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

// isPermissionError checks if the error is a permission error
func isPermissionError(err error) bool {
	if err == nil {
		return false
	}
	if os.IsPermission(err) {
		return true
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "permission denied") || strings.Contains(errStr, "access denied")
}

// Error implements the error interface
func (e *FileError) Error() string {
	return fmt.Sprintf("file %s failed for %s: %v", e.Operation, e.Path, e.Underlying)
}

// Unwrap returns the underlying error
func (e *FileError) Unwrap() error {
	return e.Underlying
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field      string
	Value      string
	Underlying error
	Timestamp  time.Time
}

// NewConfigError creates a new config error
func NewConfigError(field, value string, err error) *ConfigError {
	return &ConfigError{
		Field:      field,
		Value:      value,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

// Error implements the error interface
func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error for field %s (value %s): %v", e.Field, e.Value, e.Underlying)
}

// Unwrap returns the underlying error
func (e *ConfigError) Unwrap() error {
	return e.Underlying
}

// MultiError represents multiple errors
type MultiError struct {
	Errors []error
}

// NewMultiError creates a new multi-error, or nil when every error is nil
func NewMultiError(errs []error) *MultiError {
	filtered := make([]error, 0, len(errs))
	for _, err := range errs {
		if err != nil {
			filtered = append(filtered, err)
		}
	}
	if len(filtered) == 0 {
		return nil
	}
	return &MultiError{Errors: filtered}
}

// Error implements the error interface
func (e *MultiError) Error() string {
	if len(e.Errors) == 0 {
		return "no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("%d errors: %v", len(e.Errors), e.Errors)
}

// Unwrap returns all errors
func (e *MultiError) Unwrap() []error {
	return e.Errors
}
