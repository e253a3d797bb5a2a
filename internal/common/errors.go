package common

import (
	"errors"
	"net/http"
)

// Kind classifies an AppError for status mapping and logging.
type Kind string

const (
	KindValidation Kind = "validation"
	KindNotFound   Kind = "not_found"
	KindUpstream   Kind = "upstream"
	KindTransport  Kind = "transport"
	KindInternal   Kind = "internal"
)

// AppError represents an error with an attached code and HTTP status.
type AppError struct {
	Kind       Kind
	Code       string
	Message    string
	HTTPStatus int
	Err        error
	Details    any
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

// Unwrap allows errors.Is/As to inspect the underlying error.
func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewAppError constructs an AppError.
func NewAppError(code, message string, status int, err error) *AppError {
	return &AppError{Kind: kindForStatus(status), Code: code, Message: message, HTTPStatus: status, Err: err}
}

// Validation reports a missing or malformed input. Details usually carries a field->message map.
func Validation(code, message string, details any) *AppError {
	if code == "" {
		code = "VALIDATION"
	}
	return &AppError{Kind: KindValidation, Code: code, Message: message, HTTPStatus: http.StatusBadRequest, Details: details}
}

// NotFound reports an unknown product or order.
func NotFound(message string, err error) *AppError {
	return &AppError{Kind: KindNotFound, Code: "NOT_FOUND", Message: message, HTTPStatus: http.StatusNotFound, Err: err}
}

// Upstream relays a rejection from the payment provider with its status and code.
func Upstream(status int, code, message string) *AppError {
	if status < 400 {
		status = http.StatusBadGateway
	}
	return &AppError{Kind: KindUpstream, Code: code, Message: message, HTTPStatus: status}
}

// Transport wraps network and decoding failures that surface as a generic server error.
func Transport(message string, err error) *AppError {
	return &AppError{Kind: KindTransport, Code: "INTERNAL", Message: message, HTTPStatus: http.StatusInternalServerError, Err: err}
}

// IsAppError checks whether the error is an AppError.
func IsAppError(err error) bool {
	var target *AppError
	return errors.As(err, &target)
}

// KindOf returns the kind of err, or KindInternal for foreign errors.
func KindOf(err error) Kind {
	var target *AppError
	if errors.As(err, &target) && target.Kind != "" {
		return target.Kind
	}
	if err == nil {
		return ""
	}
	return KindInternal
}

func kindForStatus(status int) Kind {
	switch {
	case status == http.StatusNotFound:
		return KindNotFound
	case status >= 400 && status < 500:
		return KindValidation
	default:
		return KindInternal
	}
}
