// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package acquisition

import (
	"errors"
	"fmt"
)

// UnsupportedMessage is the fixed message stored when no usable capability exists.
const UnsupportedMessage = "geolocation is not supported by this environment"

// ErrorCode classifies why a position request did not resolve to coordinates. The host-reported
// codes mirror the W3C geolocation taxonomy.
type ErrorCode int

const (
	CodeUnspecified ErrorCode = iota
	CodePermissionDenied
	CodePositionUnavailable
	CodeTimeout
	CodeUnsupported
)

var (
	ErrUnsupported         = errors.New("geolocation capability unsupported")
	ErrPermissionDenied    = errors.New("geolocation permission denied")
	ErrPositionUnavailable = errors.New("geolocation position unavailable")
	ErrTimeout             = errors.New("geolocation request timed out")
)

// String returns the lower-case name of the error code.
func (c ErrorCode) String() string {
	switch c {
	case CodePermissionDenied:
		return "permission_denied"
	case CodePositionUnavailable:
		return "position_unavailable"
	case CodeTimeout:
		return "timeout"
	case CodeUnsupported:
		return "unsupported"
	default:
		return "unspecified"
	}
}

// Retryable reports whether re-triggering a request can succeed in the same environment.
func (c ErrorCode) Retryable() bool {
	return c != CodeUnsupported
}

// ErrorInfo is the structured failure payload kept in State.Error.
type ErrorInfo struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// NewErrorInfo returns an ErrorInfo for the given code. An empty message is replaced by the code's
// sentinel text.
func NewErrorInfo(code ErrorCode, message string) ErrorInfo {
	if message == "" {
		if sentinel := code.sentinel(); sentinel != nil {
			message = sentinel.Error()
		}
	}
	return ErrorInfo{Code: code, Message: message}
}

// Error satisfies the error interface.
func (e ErrorInfo) Error() string {
	if e.Message == "" {
		return e.Code.String()
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is allows errors.Is to match an ErrorInfo against the package sentinels.
func (e ErrorInfo) Is(target error) bool {
	sentinel := e.Code.sentinel()
	return sentinel != nil && sentinel == target
}

func (c ErrorCode) sentinel() error {
	switch c {
	case CodePermissionDenied:
		return ErrPermissionDenied
	case CodePositionUnavailable:
		return ErrPositionUnavailable
	case CodeTimeout:
		return ErrTimeout
	case CodeUnsupported:
		return ErrUnsupported
	default:
		return nil
	}
}
