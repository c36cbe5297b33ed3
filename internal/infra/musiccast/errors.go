package musiccast

import (
	"context"
	"errors"
	"fmt"
	"strconv"
)

// Common errors
var (
	// ErrTemporaryFailure indicates the device answered with a gateway or availability error
	ErrTemporaryFailure = errors.New("temporary failure")

	// ErrRateLimited indicates the device refused the request because of load
	ErrRateLimited = errors.New("rate limited")

	// ErrEmptyAddress is returned when a call is made without a device address
	ErrEmptyAddress = errors.New("device address is required")

	// ErrInvalidValue is returned for enum arguments the device API does not define
	ErrInvalidValue = errors.New("invalid value")
)

// Response codes returned in the response_code field of every device reply.
const (
	CodeOK               = 0
	CodeInitializing     = 1
	CodeInternalError    = 2
	CodeInvalidRequest   = 3
	CodeInvalidParameter = 4
	CodeGuarded          = 5
	CodeTimeout          = 6
	CodeFirmwareUpdating = 99
	CodeAccessError      = 100
	CodeOtherErrors      = 101
	CodeWrongUserName    = 102
	CodeWrongPassword    = 103
	CodeAccountExpired   = 104
	CodeAccountDisconn   = 105
	CodeAccountLimit     = 106
	CodeServerMaint      = 107
	CodeInvalidAccount   = 108
	CodeLicenseError     = 109
	CodeReadOnlyMode     = 110
	CodeMaxStations      = 111
	CodeAccessDenied     = 112
)

var codeText = map[int]string{
	CodeOK:               "successful request",
	CodeInitializing:     "initializing",
	CodeInternalError:    "internal error",
	CodeInvalidRequest:   "invalid request",
	CodeInvalidParameter: "invalid parameter",
	CodeGuarded:          "guarded",
	CodeTimeout:          "time out",
	CodeFirmwareUpdating: "firmware updating",
	CodeAccessError:      "access error",
	CodeOtherErrors:      "other errors",
	CodeWrongUserName:    "wrong user name",
	CodeWrongPassword:    "wrong password",
	CodeAccountExpired:   "account expired",
	CodeAccountDisconn:   "account disconnected",
	CodeAccountLimit:     "account number reached the limit",
	CodeServerMaint:      "server maintenance",
	CodeInvalidAccount:   "invalid account",
	CodeLicenseError:     "license error",
	CodeReadOnlyMode:     "read only mode",
	CodeMaxStations:      "max stations",
	CodeAccessDenied:     "access denied",
}

// CodeText returns a human readable description of a response code.
func CodeText(code int) string {
	if s, ok := codeText[code]; ok {
		return s
	}
	return "unknown"
}

// StatusError is returned when a device replies with a non-zero response_code
// or an unexpected HTTP status.
type StatusError struct {
	Op         Operation
	Code       int // device response_code, 0 when HTTPStatus is set
	HTTPStatus int
}

func (e *StatusError) Error() string {
	if e.HTTPStatus != 0 {
		return fmt.Sprintf("%s: unexpected status: %d", e.Op, e.HTTPStatus)
	}
	return fmt.Sprintf("%s: response code %d (%s)", e.Op, e.Code, CodeText(e.Code))
}

// StatusCode returns the failure code as the string carried in cached results.
func (e *StatusError) StatusCode() string {
	if e.HTTPStatus != 0 {
		return "http_" + strconv.Itoa(e.HTTPStatus)
	}
	return strconv.Itoa(e.Code)
}

// Code maps any error returned by the client to a failure code string.
// A nil error yields an empty string.
func Code(err error) string {
	if err == nil {
		return ""
	}

	var se *StatusError
	switch {
	case errors.As(err, &se):
		return se.StatusCode()
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrTemporaryFailure):
		return "temporary_failure"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "transport_error"
	}
}

// IsTemporaryError returns true if retrying the same request later may succeed.
func IsTemporaryError(err error) bool {
	if errors.Is(err, ErrTemporaryFailure) || errors.Is(err, ErrRateLimited) {
		return true
	}
	var se *StatusError
	if errors.As(err, &se) {
		switch se.Code {
		case CodeInitializing, CodeTimeout, CodeFirmwareUpdating, CodeServerMaint:
			return true
		}
	}
	return false
}
