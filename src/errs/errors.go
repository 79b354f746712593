// Package errs implements the tagged error taxonomy of the terminal mirror
// SDK. Each kind is a distinct type rather than a shared base with a string
// discriminator, so callers dispatch with errors.As instead of string
// matching — mirrors the base-and-wrap shape the teacher used for its own
// MarketObserverError family, split into one type per kind.
package errs

import (
	"errors"
	"fmt"
	"time"
)

// -----------------------------------------------------------------------------

// ValidationError: malformed request. Never retried.
type ValidationError struct {
	Message string
	Details map[string]interface{}
	Cause   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s", e.Message)
}

func (e *ValidationError) Unwrap() error { return e.Cause }

// -----------------------------------------------------------------------------

// NotFoundError: resource absent. Never retried.
type NotFoundError struct {
	Message string
	Cause   error
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("not found: %s", e.Message) }

func (e *NotFoundError) Unwrap() error { return e.Cause }

// -----------------------------------------------------------------------------

// NotSynchronizedError: operation requires sync state not yet achieved.
type NotSynchronizedError struct {
	Message string
	Cause   error
}

func (e *NotSynchronizedError) Error() string {
	return fmt.Sprintf("not synchronized: %s", e.Message)
}

func (e *NotSynchronizedError) Unwrap() error { return e.Cause }

// -----------------------------------------------------------------------------

// NotConnectedError: server reports the session is not authenticated.
type NotConnectedError struct {
	Message string
	Cause   error
}

func (e *NotConnectedError) Error() string { return fmt.Sprintf("not connected: %s", e.Message) }

func (e *NotConnectedError) Unwrap() error { return e.Cause }

// -----------------------------------------------------------------------------

// UnauthorizedError: token invalid. Fatal — the transport that surfaces this
// must also tear itself down (see transport.Client.handleUnauthorized).
type UnauthorizedError struct {
	Message string
	Cause   error
}

func (e *UnauthorizedError) Error() string { return fmt.Sprintf("unauthorized: %s", e.Message) }

func (e *UnauthorizedError) Unwrap() error { return e.Cause }

// -----------------------------------------------------------------------------

// ApiError: upstream/network generic. Retried by HttpClient.
type ApiError struct {
	Code    int
	Message string
	Cause   error
}

func (e *ApiError) Error() string { return fmt.Sprintf("api error %d: %s", e.Code, e.Message) }

func (e *ApiError) Unwrap() error { return e.Cause }

// -----------------------------------------------------------------------------

// InternalError: transient. Retried by HttpClient.
type InternalError struct {
	Message string
	Cause   error
}

func (e *InternalError) Error() string { return fmt.Sprintf("internal error: %s", e.Message) }

func (e *InternalError) Unwrap() error { return e.Cause }

// -----------------------------------------------------------------------------

// TooManyRequestsError carries the server's recommended retry wall-clock time.
type TooManyRequestsError struct {
	Message              string
	RecommendedRetryTime time.Time
	Cause                error
}

func (e *TooManyRequestsError) Error() string {
	return fmt.Sprintf("too many requests: %s (retry at %s)", e.Message, e.RecommendedRetryTime)
}

func (e *TooManyRequestsError) Unwrap() error { return e.Cause }

// -----------------------------------------------------------------------------

// TimeoutError: local wait exceeded. Never retried automatically.
type TimeoutError struct {
	Message string
	Cause   error
}

func (e *TimeoutError) Error() string { return e.Message }

func (e *TimeoutError) Unwrap() error { return e.Cause }

// -----------------------------------------------------------------------------

// TradeError: trade command rejected by the server; carries its result code.
type TradeError struct {
	Code       int
	StringCode string
	Message    string
	Cause      error
}

func (e *TradeError) Error() string {
	return fmt.Sprintf("trade error %s (%d): %s", e.StringCode, e.Code, e.Message)
}

func (e *TradeError) Unwrap() error { return e.Cause }

// -----------------------------------------------------------------------------

// ConnectionClosedError: an outstanding request future was rejected because
// the transport was closed out from under it.
type ConnectionClosedError struct {
	Message string
	Cause   error
}

func (e *ConnectionClosedError) Error() string { return e.Message }

func (e *ConnectionClosedError) Unwrap() error { return e.Cause }

// -----------------------------------------------------------------------------

// serverError is the wire shape of a processingError packet's "error" field;
// FromServerPacket converts it into the matching tagged error kind.
type serverError struct {
	ID                    string    `json:"id"`
	Message               string    `json:"message"`
	Details               map[string]interface{} `json:"details"`
	RecommendedRetryTime  time.Time `json:"recommendedRetryTime"`
	Code                  int       `json:"code"`
	StringCode            string    `json:"stringCode"`
}

// FromServerPacket converts the server's tagged "error" payload (§4.1, §7)
// into a concrete Go error of the matching kind.
func FromServerPacket(kind string, raw map[string]interface{}) error {
	se := decodeServerError(raw)

	switch kind {
	case "ValidationError":
		return &ValidationError{Message: se.Message, Details: se.Details}
	case "NotFoundError":
		return &NotFoundError{Message: se.Message}
	case "NotSynchronizedError":
		return &NotSynchronizedError{Message: se.Message}
	case "NotConnectedError":
		return &NotConnectedError{Message: se.Message}
	case "UnauthorizedError":
		return &UnauthorizedError{Message: se.Message}
	case "TooManyRequestsError":
		return &TooManyRequestsError{Message: se.Message, RecommendedRetryTime: se.RecommendedRetryTime}
	case "TradeError":
		return &TradeError{Code: se.Code, StringCode: se.StringCode, Message: se.Message}
	case "InternalError":
		return &InternalError{Message: se.Message}
	default:
		return &ApiError{Code: se.Code, Message: se.Message}
	}
}

func decodeServerError(raw map[string]interface{}) serverError {
	se := serverError{}
	if v, ok := raw["message"].(string); ok {
		se.Message = v
	}
	if v, ok := raw["id"].(string); ok {
		se.ID = v
	}
	if v, ok := raw["stringCode"].(string); ok {
		se.StringCode = v
	}
	if v, ok := raw["details"].(map[string]interface{}); ok {
		se.Details = v
	}
	if v, ok := raw["code"].(float64); ok {
		se.Code = int(v)
	}
	if v, ok := raw["recommendedRetryTime"].(time.Time); ok {
		se.RecommendedRetryTime = v
	}
	return se
}

// Retryable reports whether HttpClient's exponential-backoff policy (§4.2)
// applies to this error kind.
func Retryable(err error) bool {
	var apiErr *ApiError
	var internalErr *InternalError
	return errors.As(err, &apiErr) || errors.As(err, &internalErr)
}
