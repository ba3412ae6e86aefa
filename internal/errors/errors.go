// Package errors defines the application error taxonomy and the JSON
// envelope every API response uses.
package errors

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

type ErrorCode string

const (
	CodeInternal       ErrorCode = "INTERNAL_ERROR"
	CodeValidation     ErrorCode = "VALIDATION_ERROR"
	CodeNotFound       ErrorCode = "NOT_FOUND"
	CodeBadRequest     ErrorCode = "BAD_REQUEST"
	CodeRateLimit      ErrorCode = "RATE_LIMIT_EXCEEDED"
	CodeServiceUnavail ErrorCode = "SERVICE_UNAVAILABLE"

	// Upload taxonomy. MissingColumn rejects a file whose header lacks a
	// required column, MalformedValue a file with no coercible data rows,
	// EmptyFile a file with a header but nothing under it.
	CodeMissingColumn  ErrorCode = "MISSING_COLUMN"
	CodeMalformedValue ErrorCode = "MALFORMED_VALUE"
	CodeEmptyFile      ErrorCode = "EMPTY_FILE"
)

var statusByCode = map[ErrorCode]int{
	CodeValidation:     http.StatusBadRequest,
	CodeBadRequest:     http.StatusBadRequest,
	CodeMissingColumn:  http.StatusUnprocessableEntity,
	CodeMalformedValue: http.StatusUnprocessableEntity,
	CodeEmptyFile:      http.StatusUnprocessableEntity,
	CodeNotFound:       http.StatusNotFound,
	CodeRateLimit:      http.StatusTooManyRequests,
	CodeServiceUnavail: http.StatusServiceUnavailable,
}

type AppError struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	StatusCode int       `json:"-"`
	Cause      error     `json:"-"`
	Timestamp  time.Time `json:"timestamp"`
	RequestID  string    `json:"request_id,omitempty"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error { return e.Cause }

func New(code ErrorCode, message string) *AppError {
	status, ok := statusByCode[code]
	if !ok {
		status = http.StatusInternalServerError
	}
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: status,
		Timestamp:  time.Now().UTC(),
	}
}

func Wrap(err error, code ErrorCode, message string) *AppError {
	appErr := New(code, message)
	appErr.Cause = err
	return appErr
}

func Internal(message string) *AppError { return New(CodeInternal, message) }

func Validation(message string) *AppError { return New(CodeValidation, message) }

func NotFound(message string) *AppError { return New(CodeNotFound, message) }

func BadRequest(message string) *AppError { return New(CodeBadRequest, message) }

func RateLimit(message string) *AppError { return New(CodeRateLimit, message) }

func InternalWrap(err error, message string) *AppError { return Wrap(err, CodeInternal, message) }

func BadRequestWrap(err error, message string) *AppError { return Wrap(err, CodeBadRequest, message) }

func MissingColumn(message string) *AppError { return New(CodeMissingColumn, message) }

func MalformedValue(message string) *AppError { return New(CodeMalformedValue, message) }

func EmptyFile(message string) *AppError { return New(CodeEmptyFile, message) }

type envelope struct {
	Success bool      `json:"success"`
	Data    any       `json:"data,omitempty"`
	Error   *AppError `json:"error,omitempty"`
}

// WriteError renders err as the JSON error envelope. Non-AppError values
// are masked as internal errors so raw error text never reaches clients.
func WriteError(w http.ResponseWriter, logger *slog.Logger, err error, requestID string) {
	appErr, ok := err.(*AppError)
	if !ok {
		appErr = Internal("an unexpected error occurred")
		appErr.Cause = err
	}
	appErr.RequestID = requestID

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(appErr.StatusCode)

	if encodeErr := json.NewEncoder(w).Encode(envelope{Error: appErr}); encodeErr != nil {
		logger.Error("failed to encode error response",
			"encode_error", encodeErr,
			"original_error", err,
			"request_id", requestID,
		)
		return
	}

	level := slog.LevelError
	if appErr.StatusCode < 500 {
		level = slog.LevelWarn
	}
	logger.Log(context.Background(), level, "request failed",
		"error_code", appErr.Code,
		"error_message", appErr.Message,
		"status_code", appErr.StatusCode,
		"request_id", requestID,
		"cause", appErr.Cause,
	)
}

func WriteSuccess(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(envelope{Success: true, Data: data})
}

func WriteSuccessWithHeaders(w http.ResponseWriter, data any, headers map[string]string) {
	for key, value := range headers {
		w.Header().Set(key, value)
	}
	WriteSuccess(w, data)
}
