package dto

import (
	"net/http"
	"strings"
)

// Error codes sent to clients have the form ERR_<DESCRIPTION>. Domain codes
// (INSUFFICIENT_STOCK, NO_OPEN_SHIFT, ...) get the prefix added by
// NormalizeErrorCode.

// General error codes
const (
	ErrCodeUnknown  = "ERR_UNKNOWN"
	ErrCodeInternal = "ERR_INTERNAL"
)

// Validation error codes
const (
	ErrCodeValidation   = "ERR_VALIDATION"
	ErrCodeBadRequest   = "ERR_BAD_REQUEST"
	ErrCodeInvalidInput = "ERR_INVALID_INPUT"
	ErrCodeInvalidJSON  = "ERR_INVALID_JSON"
	ErrCodeInvalidID    = "ERR_INVALID_ID"
	ErrCodeInvalidFile  = "ERR_INVALID_FILE"
	ErrCodeBodyTooLarge = "ERR_BODY_TOO_LARGE"
)

// Authentication error codes
const (
	ErrCodeUnauthorized       = "ERR_UNAUTHORIZED"
	ErrCodeForbidden          = "ERR_FORBIDDEN"
	ErrCodeInvalidCredentials = "ERR_INVALID_CREDENTIALS"
	ErrCodeAccountBlocked     = "ERR_ACCOUNT_BLOCKED"
	ErrCodeAccountDeactivated = "ERR_ACCOUNT_DEACTIVATED"
)

// Resource error codes
const (
	ErrCodeNotFound            = "ERR_NOT_FOUND"
	ErrCodeAlreadyExists       = "ERR_ALREADY_EXISTS"
	ErrCodeConflict            = "ERR_CONFLICT"
	ErrCodeConcurrencyConflict = "ERR_CONCURRENCY_CONFLICT"
	ErrCodePhoneTaken          = "ERR_PHONE_TAKEN"
	ErrCodeEmailTaken          = "ERR_EMAIL_TAKEN"
)

// Business rule error codes
const (
	ErrCodeInvalidState      = "ERR_INVALID_STATE"
	ErrCodeInsufficientStock = "ERR_INSUFFICIENT_STOCK"
	ErrCodeNoOpenShift       = "ERR_NO_OPEN_SHIFT"
	ErrCodeShiftAlreadyOpen  = "ERR_SHIFT_ALREADY_OPEN"
	ErrCodeShiftClosed       = "ERR_SHIFT_CLOSED"
	ErrCodeReturnExceedsSold = "ERR_RETURN_EXCEEDS_SOLD"
	ErrCodeVariantHasStock   = "ERR_VARIANT_HAS_STOCK"
	ErrCodeShiftRequired     = "ERR_SHIFT_REQUIRED"
)

// Availability error codes
const (
	ErrCodeLocked             = "ERR_LOCKED"
	ErrCodeRateLimited        = "ERR_RATE_LIMITED"
	ErrCodeServiceUnavailable = "ERR_SERVICE_UNAVAILABLE"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes. Codes not
// listed here are resolved by suffix in GetHTTPStatus.
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeUnknown:  http.StatusInternalServerError,
	ErrCodeInternal: http.StatusInternalServerError,

	ErrCodeValidation:   http.StatusBadRequest,
	ErrCodeBadRequest:   http.StatusBadRequest,
	ErrCodeInvalidInput: http.StatusBadRequest,
	ErrCodeInvalidJSON:  http.StatusBadRequest,
	ErrCodeInvalidID:    http.StatusBadRequest,
	ErrCodeInvalidFile:  http.StatusBadRequest,
	ErrCodeBodyTooLarge: http.StatusRequestEntityTooLarge,

	ErrCodeUnauthorized:       http.StatusUnauthorized,
	ErrCodeInvalidCredentials: http.StatusUnauthorized,
	ErrCodeForbidden:          http.StatusForbidden,
	ErrCodeAccountBlocked:     http.StatusForbidden,
	ErrCodeAccountDeactivated: http.StatusForbidden,

	ErrCodeNotFound:            http.StatusNotFound,
	ErrCodeAlreadyExists:       http.StatusConflict,
	ErrCodeConflict:            http.StatusConflict,
	ErrCodeConcurrencyConflict: http.StatusConflict,
	ErrCodePhoneTaken:          http.StatusConflict,
	ErrCodeEmailTaken:          http.StatusConflict,
	ErrCodeShiftAlreadyOpen:    http.StatusConflict,
	ErrCodeShiftClosed:         http.StatusConflict,

	ErrCodeInvalidState:      http.StatusUnprocessableEntity,
	ErrCodeInsufficientStock: http.StatusUnprocessableEntity,
	ErrCodeNoOpenShift:       http.StatusUnprocessableEntity,
	ErrCodeReturnExceedsSold: http.StatusUnprocessableEntity,
	ErrCodeVariantHasStock:   http.StatusUnprocessableEntity,
	ErrCodeShiftRequired:     http.StatusUnprocessableEntity,

	ErrCodeLocked:             http.StatusLocked,
	ErrCodeRateLimited:        http.StatusTooManyRequests,
	ErrCodeServiceUnavailable: http.StatusServiceUnavailable,
}

// GetHTTPStatus returns the HTTP status for a normalized error code.
// ERR_*_NOT_FOUND is 404, ERR_INVALID_* and ERR_EMPTY_* are 400,
// ERR_DUPLICATE_* is 400 and anything else unknown is 500.
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	switch {
	case strings.HasSuffix(code, "_NOT_FOUND"):
		return http.StatusNotFound
	case strings.HasPrefix(code, "ERR_INVALID_"),
		strings.HasPrefix(code, "ERR_EMPTY_"),
		strings.HasPrefix(code, "ERR_DUPLICATE_"),
		strings.HasSuffix(code, "_REQUIRED"):
		return http.StatusBadRequest
	case strings.HasSuffix(code, "_TAKEN"):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// DomainErrorStatus is GetHTTPStatus for codes raised by the domain layer.
// An unmapped domain code is a broken business rule (422), not a server fault.
func DomainErrorStatus(code string) int {
	status := GetHTTPStatus(code)
	if status == http.StatusInternalServerError && code != ErrCodeInternal && code != ErrCodeUnknown {
		return http.StatusUnprocessableEntity
	}
	return status
}

// LegacyErrorCodeMapping maps domain codes whose client code is not just the
// ERR_ prefixed form
var LegacyErrorCodeMapping = map[string]string{
	"VALIDATION_ERROR":    ErrCodeValidation,
	"VALIDATION_ERRORS":   ErrCodeValidation,
	"BAD_REQUEST":         ErrCodeBadRequest,
	"INTERNAL_ERROR":      ErrCodeInternal,
	"PASSWORD_HASH_ERROR": ErrCodeInternal,
	"OPTIMISTIC_LOCK":     ErrCodeConcurrencyConflict,
}

// NormalizeErrorCode converts a domain code to the client format.
// Codes already starting with ERR_ are returned as-is.
func NormalizeErrorCode(code string) string {
	if code == "" {
		return ErrCodeUnknown
	}
	if strings.HasPrefix(code, "ERR_") {
		return code
	}
	if mapped, ok := LegacyErrorCodeMapping[code]; ok {
		return mapped
	}
	return "ERR_" + code
}
