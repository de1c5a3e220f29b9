// Package errors provides the structured error type shared by every app in the module.
// Google SDK failures arrive as gRPC status errors and are folded into the same codes.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Code classifies an AppError.
type Code int32

const (
	CodeUnknown Code = iota
	CodeInternal
	CodeInvalidArgument
	CodeNotFound
	CodeUnavailable
	CodeTimeout
	CodeCancelled
	CodeConfigMissing
	CodeConfigInvalid
	CodeAudioInvalidFormat
	CodeAudioEmptyInput
	CodeAudioTooLarge
	CodeTranscriptionFailed
	CodeTranslationFailed
	CodeSynthesisFailed
	CodeUploadFailed
	CodeDownloadFailed
	CodeLLMAPIError
	CodeTaskAlreadyRunning
	CodeNoTaskRunning
	CodeToolNotFound
	CodeToolFailed
)

var codeNames = map[Code]string{
	CodeUnknown:             "UNKNOWN",
	CodeInternal:            "INTERNAL",
	CodeInvalidArgument:     "INVALID_ARGUMENT",
	CodeNotFound:            "NOT_FOUND",
	CodeUnavailable:         "UNAVAILABLE",
	CodeTimeout:             "TIMEOUT",
	CodeCancelled:           "CANCELLED",
	CodeConfigMissing:       "CONFIG_MISSING",
	CodeConfigInvalid:       "CONFIG_INVALID",
	CodeAudioInvalidFormat:  "AUDIO_INVALID_FORMAT",
	CodeAudioEmptyInput:     "AUDIO_EMPTY_INPUT",
	CodeAudioTooLarge:       "AUDIO_TOO_LARGE",
	CodeTranscriptionFailed: "TRANSCRIPTION_FAILED",
	CodeTranslationFailed:   "TRANSLATION_FAILED",
	CodeSynthesisFailed:     "SYNTHESIS_FAILED",
	CodeUploadFailed:        "UPLOAD_FAILED",
	CodeDownloadFailed:      "DOWNLOAD_FAILED",
	CodeLLMAPIError:         "LLM_API_ERROR",
	CodeTaskAlreadyRunning:  "TASK_ALREADY_RUNNING",
	CodeNoTaskRunning:       "NO_TASK_RUNNING",
	CodeToolNotFound:        "TOOL_NOT_FOUND",
	CodeToolFailed:          "TOOL_FAILED",
}

func (c Code) String() string {
	if s, ok := codeNames[c]; ok {
		return s
	}
	return fmt.Sprintf("CODE(%d)", int32(c))
}

// AppError is the base error type with structured error code and metadata.
type AppError struct {
	Code     Code
	Message  string
	Metadata map[string]string
	Cause    error
}

func (e *AppError) Error() string {
	s := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if len(e.Metadata) > 0 {
		s += fmt.Sprintf(" %v", e.Metadata)
	}
	if e.Cause != nil {
		s += fmt.Sprintf(" caused by: %v", e.Cause)
	}
	return s
}

// Unwrap returns the underlying cause for errors.Is/As.
func (e *AppError) Unwrap() error { return e.Cause }

// New creates a new AppError with the given code and message.
func New(code Code, msg string) *AppError {
	return &AppError{Code: code, Message: msg}
}

// Newf creates a new AppError with formatted message.
func Newf(code Code, format string, args ...any) *AppError {
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps an existing error with an AppError.
func Wrap(err error, code Code, msg string) *AppError {
	return &AppError{Code: code, Message: msg, Cause: err}
}

// Wrapf wraps an existing error with formatted message.
func Wrapf(err error, code Code, format string, args ...any) *AppError {
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...), Cause: err}
}

// WithMetadata adds metadata to an AppError.
func (e *AppError) WithMetadata(key, value string) *AppError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]string)
	}
	e.Metadata[key] = value
	return e
}

// FromGRPCError converts a gRPC status error from a Google client into an AppError.
// Errors that already are AppErrors pass through unchanged.
func FromGRPCError(err error) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}
	st, ok := status.FromError(err)
	if !ok {
		return &AppError{Code: CodeUnknown, Message: err.Error(), Cause: err}
	}
	return &AppError{Code: grpcToErrorCode(st.Code()), Message: st.Message(), Cause: err}
}

// IsNotFound reports whether err is a NotFound from a gRPC API or an AppError.
func IsNotFound(err error) bool {
	if IsCode(err, CodeNotFound) {
		return true
	}
	return status.Code(err) == codes.NotFound
}

func grpcToErrorCode(c codes.Code) Code {
	switch c {
	case codes.InvalidArgument:
		return CodeInvalidArgument
	case codes.NotFound:
		return CodeNotFound
	case codes.Unavailable:
		return CodeUnavailable
	case codes.DeadlineExceeded:
		return CodeTimeout
	case codes.Canceled:
		return CodeCancelled
	case codes.Internal:
		return CodeInternal
	case codes.FailedPrecondition:
		return CodeConfigMissing
	case codes.PermissionDenied, codes.Unauthenticated:
		return CodeConfigInvalid
	case codes.ResourceExhausted:
		return CodeLLMAPIError
	default:
		return CodeUnknown
	}
}

// IsCode checks if an error chain carries a specific error code.
func IsCode(err error, code Code) bool {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// HTTPStatus maps an error to the status used for JSON error bodies.
func HTTPStatus(err error) int {
	var appErr *AppError
	if !stderrors.As(err, &appErr) {
		return http.StatusInternalServerError
	}
	switch appErr.Code {
	case CodeInvalidArgument, CodeAudioInvalidFormat, CodeAudioEmptyInput, CodeAudioTooLarge:
		return http.StatusBadRequest
	case CodeNotFound, CodeToolNotFound:
		return http.StatusNotFound
	case CodeTaskAlreadyRunning:
		return http.StatusConflict
	case CodeUnavailable:
		return http.StatusServiceUnavailable
	case CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
