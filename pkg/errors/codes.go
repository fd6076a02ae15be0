package errors

import (
	"net/http"
	"strings"
)

// ErrorCode is a string representation of a specific error condition.
// Codes are "<MODULE>_<NNN>"; the module prefix is used as a metric label.
type ErrorCode string

func (c ErrorCode) String() string {
	return string(c)
}

// Common Error Codes
const (
	ErrCodeInternal           ErrorCode = "COMMON_001"
	ErrCodeBadRequest         ErrorCode = "COMMON_002"
	ErrCodeUnauthorized       ErrorCode = "COMMON_003"
	ErrCodeForbidden          ErrorCode = "COMMON_004"
	ErrCodeNotFound           ErrorCode = "COMMON_005"
	ErrCodeConflict           ErrorCode = "COMMON_006"
	ErrCodeTooManyRequests    ErrorCode = "COMMON_007"
	ErrCodeServiceUnavailable ErrorCode = "COMMON_008"
	ErrCodeTimeout            ErrorCode = "COMMON_009"
	ErrCodeValidation         ErrorCode = "COMMON_010"
	ErrCodeSerialization      ErrorCode = "COMMON_011"
	ErrCodeDatabaseError      ErrorCode = "COMMON_012"
	ErrCodeCacheError         ErrorCode = "COMMON_013"
	ErrCodeMessageQueueError  ErrorCode = "COMMON_014"
	ErrCodeNotImplemented     ErrorCode = "COMMON_016"
)

// Short aliases used at call sites.
const (
	CodeUnknown      = ErrorCode("")
	CodeOK           = ErrorCode("OK")
	CodeInternal     = ErrCodeInternal
	CodeInvalidParam = ErrCodeBadRequest
	CodeUnauthorized = ErrCodeUnauthorized
	CodeForbidden    = ErrCodeForbidden
	CodeNotFound     = ErrCodeNotFound
	CodeConflict     = ErrCodeConflict
	CodeRateLimit    = ErrCodeTooManyRequests

	CodeDatabaseError     = ErrCodeDatabaseError
	CodeCacheError        = ErrCodeCacheError
	CodeMessageQueueError = ErrCodeMessageQueueError
)

// Auth Error Codes
const (
	ErrCodeTokenMissing    ErrorCode = "AUTH_001"
	ErrCodeTokenInvalid    ErrorCode = "AUTH_002"
	ErrCodeTokenExpired    ErrorCode = "AUTH_003"
	ErrCodeEmailUnverified ErrorCode = "AUTH_004"
)

// User Profile Error Codes
const (
	ErrCodeProfileNotFound ErrorCode = "USR_001"
	ErrCodeCompanyInvalid  ErrorCode = "USR_002"
)

// Session Error Codes
const (
	ErrCodeSessionNotFound     ErrorCode = "SES_001"
	ErrCodeSessionIDInvalid    ErrorCode = "SES_002"
	ErrCodeUserIDInvalid       ErrorCode = "SES_003"
	ErrCodeSessionMalformed    ErrorCode = "SES_004"
	ErrCodeSessionForeignBuyer ErrorCode = "SES_005"
)

// Downloads Error Codes
const (
	ErrCodeCatalogInvalid ErrorCode = "DL_001"
)

// ErrorCodeHTTPStatus maps ErrorCodes to HTTP status codes.
var ErrorCodeHTTPStatus = map[ErrorCode]int{
	ErrCodeInternal:           http.StatusInternalServerError,
	ErrCodeBadRequest:         http.StatusBadRequest,
	ErrCodeUnauthorized:       http.StatusUnauthorized,
	ErrCodeForbidden:          http.StatusForbidden,
	ErrCodeNotFound:           http.StatusNotFound,
	ErrCodeConflict:           http.StatusConflict,
	ErrCodeTooManyRequests:    http.StatusTooManyRequests,
	ErrCodeServiceUnavailable: http.StatusServiceUnavailable,
	ErrCodeTimeout:            http.StatusGatewayTimeout,
	ErrCodeValidation:         http.StatusUnprocessableEntity,
	ErrCodeSerialization:      http.StatusInternalServerError,
	ErrCodeDatabaseError:      http.StatusInternalServerError,
	ErrCodeCacheError:         http.StatusInternalServerError,
	ErrCodeMessageQueueError:  http.StatusInternalServerError,
	ErrCodeNotImplemented:     http.StatusNotImplemented,

	ErrCodeTokenMissing:    http.StatusUnauthorized,
	ErrCodeTokenInvalid:    http.StatusUnauthorized,
	ErrCodeTokenExpired:    http.StatusUnauthorized,
	ErrCodeEmailUnverified: http.StatusForbidden,

	ErrCodeProfileNotFound: http.StatusNotFound,
	ErrCodeCompanyInvalid:  http.StatusBadRequest,

	ErrCodeSessionNotFound:     http.StatusNotFound,
	ErrCodeSessionIDInvalid:    http.StatusBadRequest,
	ErrCodeUserIDInvalid:       http.StatusBadRequest,
	ErrCodeSessionMalformed:    http.StatusBadRequest,
	ErrCodeSessionForeignBuyer: http.StatusForbidden,

	ErrCodeCatalogInvalid: http.StatusInternalServerError,
}

// ErrorCodeMessage maps ErrorCodes to default messages.
var ErrorCodeMessage = map[ErrorCode]string{
	ErrCodeInternal:           "internal server error",
	ErrCodeBadRequest:         "bad request",
	ErrCodeUnauthorized:       "unauthorized",
	ErrCodeForbidden:          "forbidden",
	ErrCodeNotFound:           "resource not found",
	ErrCodeConflict:           "resource conflict",
	ErrCodeTooManyRequests:    "too many requests",
	ErrCodeServiceUnavailable: "service unavailable",
	ErrCodeTimeout:            "request timeout",
	ErrCodeValidation:         "validation failed",
	ErrCodeSerialization:      "serialization error",
	ErrCodeDatabaseError:      "database error",
	ErrCodeCacheError:         "cache error",
	ErrCodeMessageQueueError:  "message queue error",
	ErrCodeNotImplemented:     "not implemented",

	ErrCodeTokenMissing:    "authorization token missing",
	ErrCodeTokenInvalid:    "authorization token invalid",
	ErrCodeTokenExpired:    "authorization token expired",
	ErrCodeEmailUnverified: "email address not verified",

	ErrCodeProfileNotFound: "user profile not found",
	ErrCodeCompanyInvalid:  "invalid company",

	ErrCodeSessionNotFound:     "session not found",
	ErrCodeSessionIDInvalid:    "invalid session id",
	ErrCodeUserIDInvalid:       "invalid user id",
	ErrCodeSessionMalformed:    "malformed session update",
	ErrCodeSessionForeignBuyer: "session belongs to another company",

	ErrCodeCatalogInvalid: "invalid download catalog",
}

// HTTPStatusForCode returns the HTTP status code for an ErrorCode.
func HTTPStatusForCode(code ErrorCode) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// DefaultMessageForCode returns the default message for an ErrorCode.
func DefaultMessageForCode(code ErrorCode) string {
	if msg, ok := ErrorCodeMessage[code]; ok {
		return msg
	}
	return "unknown error"
}

// IsClientError returns true if the ErrorCode corresponds to a 4xx HTTP status.
func IsClientError(code ErrorCode) bool {
	status := HTTPStatusForCode(code)
	return status >= 400 && status < 500
}

// IsServerError returns true if the ErrorCode corresponds to a 5xx HTTP status.
func IsServerError(code ErrorCode) bool {
	status := HTTPStatusForCode(code)
	return status >= 500 && status < 600
}

// ModuleForCode returns the module prefix of an ErrorCode.
func ModuleForCode(code ErrorCode) string {
	parts := strings.Split(string(code), "_")
	if len(parts) > 1 && parts[0] != "" {
		return parts[0]
	}
	return "UNKNOWN"
}
