package domain

import (
	"errors"
	"fmt"
)

// Error types for consistent error handling across the BFA.

// ErrNotFound indicates a resource was not found.
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ErrExternalService indicates a failure in an external service call.
type ErrExternalService struct {
	Service string
	Err     error
}

func (e *ErrExternalService) Error() string {
	return fmt.Sprintf("external service error [%s]: %v", e.Service, e.Err)
}

func (e *ErrExternalService) Unwrap() error {
	return e.Err
}

// ErrCircuitOpen indicates the circuit breaker is open.
type ErrCircuitOpen struct {
	Service string
}

func (e *ErrCircuitOpen) Error() string {
	return fmt.Sprintf("circuit breaker open for service: %s", e.Service)
}

// ErrValidation indicates a validation error (bad input).
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error on '%s': %s", e.Field, e.Message)
}

// ErrUnauthorized indicates a missing, invalid or expired token.
type ErrUnauthorized struct {
	Message string
}

func (e *ErrUnauthorized) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "unauthorized"
}

// ErrConflict indicates a resource already exists (e.g. an email already registered).
type ErrConflict struct {
	Message string
}

func (e *ErrConflict) Error() string {
	return e.Message
}

// ============================================================
// Facture workflow errors
// ============================================================

// ErrAuth is a sign-in or sign-up failure. Message is shown to the user as is.
type ErrAuth struct {
	Message string
	Err     error
}

func (e *ErrAuth) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "Une erreur est survenue"
}

func (e *ErrAuth) Unwrap() error {
	return e.Err
}

// ErrQuery is a failed read of factures. Callers keep their previous data.
type ErrQuery struct {
	Err error
}

func (e *ErrQuery) Error() string {
	return fmt.Sprintf("query factures: %v", e.Err)
}

func (e *ErrQuery) Unwrap() error {
	return e.Err
}

// ErrUpdate is a failed "mark imported" update after the export file was produced.
// The file is not retracted; the export stays pending until confirmed.
type ErrUpdate struct {
	ExportID string
	IDs      []int64
	Err      error
}

func (e *ErrUpdate) Error() string {
	return fmt.Sprintf("export %s produced but status update of %d facture(s) failed: %v", e.ExportID, len(e.IDs), e.Err)
}

func (e *ErrUpdate) Unwrap() error {
	return e.Err
}

// ErrExport is a spreadsheet generation failure. The store was not touched.
type ErrExport struct {
	Err error
}

func (e *ErrExport) Error() string {
	return fmt.Sprintf("spreadsheet export failed: %v", e.Err)
}

func (e *ErrExport) Unwrap() error {
	return e.Err
}

// Sentinel errors of the export workflow.
var (
	ErrEmptySelection   = errors.New("no facture selected")
	ErrExportInProgress = errors.New("an export is already in progress")
)
