package model

import (
	"errors"
	"fmt"
)

// Reason classifies why a document could not become a Record
type Reason string

const (
	ReasonNone                 Reason = ""
	ReasonMalformedXML         Reason = "MalformedXML"
	ReasonNotAnInvoiceDocument Reason = "NotAnInvoiceDocument"
	ReasonMissingInvoiceNumber Reason = "MissingInvoiceNumber"
	ReasonMissingSupplierName  Reason = "MissingSupplierName"
	ReasonStorageFault         Reason = "StorageFault"
	ReasonUnexpected           Reason = "Unexpected"
)

// ExtractionError is the typed failure produced by the locator and normalizer
type ExtractionError struct {
	Reason  Reason
	Field   string
	Message string
	Cause   error
}

func (e *ExtractionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %s (%v)", e.Reason, e.Field, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Reason, e.Field, e.Message)
}

func (e *ExtractionError) Unwrap() error {
	return e.Cause
}

// Is matches another ExtractionError carrying the same reason, so callers can
// write errors.Is(err, model.ErrMissingInvoiceNumber).
func (e *ExtractionError) Is(target error) bool {
	var t *ExtractionError
	if !errors.As(target, &t) {
		return false
	}
	return t.Reason == e.Reason
}

// NewExtractionError creates a new extraction error
func NewExtractionError(reason Reason, field, message string, cause error) *ExtractionError {
	return &ExtractionError{
		Reason:  reason,
		Field:   field,
		Message: message,
		Cause:   cause,
	}
}

// Sentinels for errors.Is comparisons
var (
	ErrMalformedXML         = &ExtractionError{Reason: ReasonMalformedXML}
	ErrNotAnInvoiceDocument = &ExtractionError{Reason: ReasonNotAnInvoiceDocument}
	ErrMissingInvoiceNumber = &ExtractionError{Reason: ReasonMissingInvoiceNumber}
	ErrMissingSupplierName  = &ExtractionError{Reason: ReasonMissingSupplierName}
)

// StorageError wraps a fault raised by the persistent store
type StorageError struct {
	Op    string
	Cause error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s failed: %v", e.Op, e.Cause)
}

func (e *StorageError) Unwrap() error {
	return e.Cause
}

// NewStorageError creates a new storage error
func NewStorageError(op string, cause error) *StorageError {
	return &StorageError{Op: op, Cause: cause}
}

// ReasonOf returns the reason carried by err. Anything that is neither an
// extraction nor a storage error reports ReasonUnexpected.
func ReasonOf(err error) Reason {
	if err == nil {
		return ReasonNone
	}
	var ee *ExtractionError
	if errors.As(err, &ee) {
		return ee.Reason
	}
	var se *StorageError
	if errors.As(err, &se) {
		return ReasonStorageFault
	}
	return ReasonUnexpected
}

// ValidationError represents invalid caller input (filters, formats)
type ValidationError struct {
	Field   string
	Value   interface{}
	Rule    string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Value != nil {
		return fmt.Sprintf("validation failed on %s: %s (value=%v, rule=%s)", e.Field, e.Message, e.Value, e.Rule)
	}
	return fmt.Sprintf("validation failed on %s: %s (rule=%s)", e.Field, e.Message, e.Rule)
}

// NewValidationError creates a new validation error
func NewValidationError(field string, value interface{}, rule, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Rule:    rule,
		Message: message,
	}
}
