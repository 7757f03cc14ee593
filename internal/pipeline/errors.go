package pipeline

import (
	"errors"
	"fmt"
)

// ErrorCode classifies job errors.
type ErrorCode string

const (
	ErrorSourceUnreadable      ErrorCode = "SOURCE_UNREADABLE"
	ErrorOCRUnavailable        ErrorCode = "OCR_UNAVAILABLE"
	ErrorExtractionEmpty       ErrorCode = "EXTRACTION_EMPTY"
	ErrorTranslationService    ErrorCode = "TRANSLATION_SERVICE_ERROR"
	ErrorLayoutOverflow        ErrorCode = "LAYOUT_OVERFLOW"
	ErrorReconstructionFailure ErrorCode = "RECONSTRUCTION_FAILURE"
	ErrorOutputInvalid         ErrorCode = "OUTPUT_INVALID"
)

// Error is a classified job error. Only SOURCE_UNREADABLE and OUTPUT_INVALID
// ever reach the caller; the other codes describe recovered conditions.
type Error struct {
	Code    ErrorCode
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func NewSourceUnreadableError(path string, cause error) *Error {
	return &Error{
		Code:    ErrorSourceUnreadable,
		Message: fmt.Sprintf("cannot read source document %s", path),
		Cause:   cause,
	}
}

func NewReconstructionFailureError(cause error) *Error {
	return &Error{
		Code:    ErrorReconstructionFailure,
		Message: "composing the translated document failed",
		Cause:   cause,
	}
}

func NewOutputInvalidError(message string, cause error) *Error {
	return &Error{
		Code:    ErrorOutputInvalid,
		Message: message,
		Cause:   cause,
	}
}

// CodeOf returns the code of the first *Error in err's chain, or "" if there is none.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
