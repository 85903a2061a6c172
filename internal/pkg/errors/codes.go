package errors

import (
	"net/http"
	"strings"
)

// Error codes are stable identifiers; clients key off Code, never Message.

// Asset error codes.
const (
	CodeAssetNotFound = "ASSET_NOT_FOUND"
	CodeAssetExists   = "ASSET_CODE_ALREADY_EXISTS"
)

// Maintenance error codes.
const (
	CodePMNotFound              = "PM_SCHEDULE_NOT_FOUND"
	CodeBreakdownNotFound       = "BREAKDOWN_NOT_FOUND"
	CodeInvalidStatusTransition = "INVALID_STATUS_TRANSITION"
)

// Inventory error codes.
const (
	CodeSpareNotFound     = "SPARE_PART_NOT_FOUND"
	CodeSpareExists       = "SPARE_PART_CODE_ALREADY_EXISTS"
	CodeInsufficientStock = "INSUFFICIENT_STOCK"
	CodeStockLimit        = "STOCK_LIMIT_EXCEEDED"
	CodeSpareInUse        = "SPARE_PART_IN_USE"
)

// Auth error codes.
const (
	CodeAuthRequired       = "AUTH_REQUIRED"
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeTokenExpired       = "TOKEN_EXPIRED"
	CodeTokenInvalid       = "TOKEN_INVALID"
	CodeTokenRevoked       = "TOKEN_REVOKED"
	CodeUserNotFound       = "USER_NOT_FOUND"
	CodeForbidden          = "FORBIDDEN"
	CodeEmailRegistered    = "EMAIL_ALREADY_REGISTERED"
)

// Validation error codes.
const (
	CodeInvalidRequestField = "INVALID_REQUEST_FIELD"
	CodeValidationFailed    = "VALIDATION_FAILED"
	CodeInvalidEnumValue    = "INVALID_ENUM_VALUE"
	CodeInvalidID           = "INVALID_ID"
)

// Infrastructure error codes.
const (
	CodeInternal           = "INTERNAL_ERROR"
	CodeServiceUnavailable = "SERVICE_UNAVAILABLE"
)

// Convenience constructors using predefined codes.

// ErrInvalidEnum reports a value outside an enum, naming the allowed values.
func ErrInvalidEnum(field, value string, allowed []string) *AppError {
	return (&AppError{
		Code:       CodeInvalidEnumValue,
		Message:    "invalid " + field + " '" + value + "', must be one of: " + strings.Join(allowed, ", "),
		HTTPStatus: http.StatusBadRequest,
	}).WithParams(map[string]interface{}{
		"field":   field,
		"value":   value,
		"allowed": allowed,
	}).WithFieldErrors([]FieldError{{Field: field, Code: CodeInvalidEnumValue}})
}

// ErrInsufficientStock reports an issue larger than the stock on hand.
func ErrInsufficientStock(partCode string, available, requested int) *AppError {
	return (&AppError{
		Code:       CodeInsufficientStock,
		Message:    "insufficient stock",
		HTTPStatus: http.StatusConflict,
	}).WithParams(map[string]interface{}{
		"part_code": partCode,
		"available": available,
		"requested": requested,
	})
}

// ErrStockLimitExceeded reports a return that would push stock past the
// largest storable balance.
func ErrStockLimitExceeded(partCode string, available, requested, limit int) *AppError {
	return (&AppError{
		Code:       CodeStockLimit,
		Message:    "stock limit exceeded",
		HTTPStatus: http.StatusConflict,
	}).WithParams(map[string]interface{}{
		"part_code": partCode,
		"available": available,
		"requested": requested,
		"limit":     limit,
	})
}

// ErrForbiddenRoles reports a role that is not on a route's allow-list.
func ErrForbiddenRoles(required []string, actual string) *AppError {
	return (&AppError{
		Code:       CodeForbidden,
		Message:    "access denied, required role: " + strings.Join(required, " or "),
		HTTPStatus: http.StatusForbidden,
	}).WithParams(map[string]interface{}{
		"required_roles": required,
		"your_role":      actual,
	})
}

// ErrInvalidID reports a malformed path identifier.
func ErrInvalidID(param string) *AppError {
	return &AppError{
		Code:       CodeInvalidID,
		Message:    param + " must be a valid UUID",
		HTTPStatus: http.StatusBadRequest,
	}
}

// ErrInvalidRequestField reports a field that clients may not set.
func ErrInvalidRequestField(fieldName string) *AppError {
	return &AppError{
		Code:       CodeInvalidRequestField,
		Message:    "request contains forbidden field: " + fieldName,
		HTTPStatus: http.StatusBadRequest,
	}
}
