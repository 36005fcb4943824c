package util

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/spec-kit/fleet-maintenance/internal/calendar"
	"github.com/spec-kit/fleet-maintenance/internal/codes"
	"github.com/spec-kit/fleet-maintenance/internal/permission"
	"github.com/spec-kit/fleet-maintenance/internal/statemachine"
)

// Error codes rendered in API responses.
const (
	CodeValidation        = "VALIDATION_FAILED"
	CodeNotFound          = "NOT_FOUND"
	CodeUnauthorized      = "UNAUTHORIZED"
	CodeForbidden         = "FORBIDDEN"
	CodeConflict          = "CONFLICT"
	CodeInvalidTransition = "INVALID_TRANSITION"
	CodeInvalidMove       = "INVALID_MOVE"
	CodeUnknownState      = "UNKNOWN_STATE"
	CodeInternal          = "INTERNAL_ERROR"
)

const uniqueViolation = "23505"

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError(CodeValidation, message, http.StatusBadRequest, details)
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return NewDomainError(CodeNotFound, fmt.Sprintf("%s not found", resource), http.StatusNotFound, details)
}

func NewUnauthorized(message string) error {
	return NewDomainError(CodeUnauthorized, message, http.StatusUnauthorized, nil)
}

func NewForbidden(message string) error {
	return NewDomainError(CodeForbidden, message, http.StatusForbidden, nil)
}

// NewPermissionDenied is a FORBIDDEN error naming the permission the role lacks.
func NewPermissionDenied(role permission.Role, missing permission.Permission) error {
	return NewDomainError(CodeForbidden, fmt.Sprintf("role %q lacks permission %s", role, missing),
		http.StatusForbidden, map[string]any{"role": role, "permission": missing.String()})
}

func NewConflict(message string, details map[string]any) error {
	return NewDomainError(CodeConflict, message, http.StatusConflict, details)
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// ToDomainError converts kernel, storage and generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}

	var transition *statemachine.InvalidTransitionError
	if errors.As(err, &transition) {
		return &DomainError{
			Code:       CodeInvalidTransition,
			Message:    transition.Error(),
			HTTPStatus: http.StatusConflict,
			Details:    map[string]any{"domain": transition.Domain, "from": transition.From, "to": transition.To},
			Err:        err,
		}
	}
	var move *statemachine.MoveError
	if errors.As(err, &move) {
		return &DomainError{
			Code:       CodeInvalidMove,
			Message:    move.Error(),
			HTTPStatus: http.StatusConflict,
			Details:    map[string]any{"state": move.State, "destination": move.Destination},
			Err:        err,
		}
	}
	var unknown *statemachine.UnknownStateError
	if errors.As(err, &unknown) {
		return &DomainError{
			Code:       CodeUnknownState,
			Message:    "entity is in a state outside its domain",
			HTTPStatus: http.StatusInternalServerError,
			Details:    map[string]any{"domain": unknown.Domain, "state": unknown.State},
			Err:        err,
		}
	}
	if errors.Is(err, codes.ErrMalformedCode) || errors.Is(err, codes.ErrInvalidSequence) ||
		errors.Is(err, permission.ErrUnknownPermission) || errors.Is(err, calendar.ErrTooManyMinutes) {
		return &DomainError{Code: CodeValidation, Message: err.Error(), HTTPStatus: http.StatusBadRequest, Err: err}
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return &DomainError{
			Code:       CodeConflict,
			Message:    "resource already exists",
			HTTPStatus: http.StatusConflict,
			Details:    map[string]any{"constraint": pgErr.ConstraintName},
			Err:        err,
		}
	}
	if errors.Is(err, sql.ErrNoRows) || errors.Is(err, pgx.ErrNoRows) {
		return NewDomainError(CodeNotFound, "resource not found", http.StatusNotFound, map[string]any{})
	}
	return NewInternalError(err).(*DomainError)
}

func MapError(err error) error {
	return ToDomainError(err)
}
