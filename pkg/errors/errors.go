package errors

import (
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
)

// AppError is the base interface for all persistence errors
type AppError interface {
	error
	Code() string
}

// DeclarationError represents a malformed type declaration on an entity class
type DeclarationError struct {
	Class    string
	Property string
	Message  string
}

func (e *DeclarationError) Error() string {
	if e.Property != "" {
		return fmt.Sprintf("invalid declaration %s.%s: %s", e.Class, e.Property, e.Message)
	}
	return fmt.Sprintf("invalid declaration %s: %s", e.Class, e.Message)
}

func (e *DeclarationError) Code() string {
	return "DECLARATION_ERROR"
}

// NewDeclarationError creates a new DeclarationError
func NewDeclarationError(class, property, message string) *DeclarationError {
	return &DeclarationError{Class: class, Property: property, Message: message}
}

// ValidationError represents an entity whose values do not match its resolved types
type ValidationError struct {
	Field   string
	Message string
	Value   interface{}
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

func (e *ValidationError) Code() string {
	return "VALIDATION_ERROR"
}

// NewValidationError creates a new ValidationError
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// SchemaConflictError is raised when a live table disagrees with the target
// shape and the active policy forbids the structural change.
type SchemaConflictError struct {
	Table   string
	Column  string
	Message string
}

func (e *SchemaConflictError) Error() string {
	return fmt.Sprintf("schema conflict on %s.%s: %s", e.Table, e.Column, e.Message)
}

func (e *SchemaConflictError) Code() string {
	return "SCHEMA_CONFLICT"
}

// NewSchemaConflictError creates a new SchemaConflictError
func NewSchemaConflictError(table, column, message string) *SchemaConflictError {
	return &SchemaConflictError{Table: table, Column: column, Message: message}
}

// EngineError wraps a failure reported by the database engine
type EngineError struct {
	Statement string
	Number    uint16
	Cause     error
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("engine error: %v", e.Cause)
}

func (e *EngineError) Code() string {
	return "ENGINE_ERROR"
}

func (e *EngineError) Unwrap() error {
	return e.Cause
}

// NewEngineError creates a new EngineError, keeping the MySQL error number when present
func NewEngineError(statement string, cause error) *EngineError {
	e := &EngineError{Statement: statement, Cause: cause}
	var myErr *mysql.MySQLError
	if errors.As(cause, &myErr) {
		e.Number = myErr.Number
	}
	return e
}

// NotFoundError represents a resource that was not found
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s with ID '%s' not found", e.Resource, e.ID)
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

func (e *NotFoundError) Code() string {
	return "NOT_FOUND"
}

// NewNotFoundError creates a new NotFoundError
func NewNotFoundError(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

// MySQL error numbers the engine reacts to
const (
	ErrNumTableExists   uint16 = 1050
	ErrNumNoSuchTable   uint16 = 1146
	ErrNumDuplicateKey  uint16 = 1061
	ErrNumDuplicateFK   uint16 = 1826
	ErrNumDuplicateName uint16 = 1060
	ErrNumDeadlock      uint16 = 1213
	ErrNumLockWait      uint16 = 1205
)

// Helper functions for error checking

// IsDeclaration checks if an error is a DeclarationError
func IsDeclaration(err error) bool {
	var declaration *DeclarationError
	return errors.As(err, &declaration)
}

// IsValidation checks if an error is a ValidationError
func IsValidation(err error) bool {
	var validation *ValidationError
	return errors.As(err, &validation)
}

// IsSchemaConflict checks if an error is a SchemaConflictError
func IsSchemaConflict(err error) bool {
	var conflict *SchemaConflictError
	return errors.As(err, &conflict)
}

// IsNotFound checks if an error is a NotFoundError
func IsNotFound(err error) bool {
	var notFound *NotFoundError
	return errors.As(err, &notFound)
}

// IsEngine checks if an error is an EngineError
func IsEngine(err error) bool {
	var engine *EngineError
	return errors.As(err, &engine)
}

// HasEngineNumber reports whether err carries the given MySQL error number
func HasEngineNumber(err error, number uint16) bool {
	var engine *EngineError
	if errors.As(err, &engine) && engine.Number == number {
		return true
	}
	var myErr *mysql.MySQLError
	return errors.As(err, &myErr) && myErr.Number == number
}

// GetErrorCode returns the error code for an error
// Returns "UNKNOWN_ERROR" if the error doesn't implement AppError
func GetErrorCode(err error) string {
	var appErr AppError
	if errors.As(err, &appErr) {
		return appErr.Code()
	}
	return "UNKNOWN_ERROR"
}
