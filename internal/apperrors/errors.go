package apperrors

import (
	"errors"
	"fmt"
)

// Code classifies an error for callers
type Code string

const (
	CodeValidation    Code = "VALIDATION"
	CodeUnauthorized  Code = "UNAUTHORIZED"
	CodeConflict      Code = "CONFLICT"
	CodeQuotaExceeded Code = "QUOTA_EXCEEDED"
	CodeNotFound      Code = "NOT_FOUND"
	CodeStorage       Code = "STORAGE"
	CodeInternal      Code = "INTERNAL"
)

// AppError is an expected outcome with a stable code
type AppError struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Cause   error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Cause }

// Is matches sentinel errors by code and message so wrapped copies still compare equal
func (e *AppError) Is(target error) bool {
	var t *AppError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code && t.Message == e.Message
}

func New(code Code, message string) error {
	return &AppError{Code: code, Message: message}
}

func Wrap(code Code, message string, cause error) error {
	return &AppError{Code: code, Message: message, Cause: cause}
}

func Validation(msg string) error {
	return New(CodeValidation, msg)
}

func Unauthorized(msg string) error {
	return New(CodeUnauthorized, msg)
}

func Conflict(msg string) error {
	return New(CodeConflict, msg)
}

func NotFound(msg string) error {
	return New(CodeNotFound, msg)
}

// Storage marks a blob store failure that survived the retry budget
func Storage(msg string, cause error) error {
	return Wrap(CodeStorage, msg, cause)
}

func Internal(msg string, cause error) error {
	return Wrap(CodeInternal, msg, cause)
}

// QuotaKind tells which quota policy denied an upload
type QuotaKind string

const (
	QuotaItemLimit    QuotaKind = "item_limit"
	QuotaStorageLimit QuotaKind = "storage_limit"
)

// QuotaError is returned when an upload does not fit the daily allowance
type QuotaError struct {
	Kind      QuotaKind
	MediaType string
}

func (e *QuotaError) Error() string {
	if e.Kind == QuotaItemLimit {
		return fmt.Sprintf("daily %s limit exceeded", e.MediaType)
	}
	return "daily storage limit exceeded"
}

func (e *QuotaError) Is(target error) bool {
	t, ok := target.(*QuotaError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.MediaType == "" || t.MediaType == e.MediaType)
}

func ItemLimitExceeded(mediaType string) error {
	return &QuotaError{Kind: QuotaItemLimit, MediaType: mediaType}
}

func StorageLimitExceeded() error {
	return &QuotaError{Kind: QuotaStorageLimit}
}

// CodeOf classifies any error; unknown errors are internal
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var qe *QuotaError
	if errors.As(err, &qe) {
		return CodeQuotaExceeded
	}
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Code
	}
	return CodeInternal
}

// PublicMessage returns the message safe to show to a client
func PublicMessage(err error) string {
	var qe *QuotaError
	if errors.As(err, &qe) {
		return qe.Error()
	}
	var ae *AppError
	if errors.As(err, &ae) && ae.Code != CodeInternal && ae.Code != CodeStorage {
		return ae.Message
	}
	return "internal server error"
}
