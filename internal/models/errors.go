package models

import (
	"errors"
	"fmt"
)

// ErrorKind classifies pipeline failures.
type ErrorKind string

const (
	KindUnsupportedFormat      ErrorKind = "UnsupportedFormat"
	KindPageLimitExceeded      ErrorKind = "PageLimitExceeded"
	KindEmptyFile              ErrorKind = "EmptyFile"
	KindCorruptedFile          ErrorKind = "CorruptedFile"
	KindFileTooLarge           ErrorKind = "FileTooLarge"
	KindExtractionTransient    ErrorKind = "ExtractionTransient"
	KindExtractionUnavailable  ErrorKind = "ExtractionUnavailable"
	KindSummarizationTransient ErrorKind = "SummarizationTransientError"
	KindSummarizationRejected  ErrorKind = "SummarizationRejected"
	KindPipelineAborted        ErrorKind = "PipelineAborted"
)

// Sentinels for errors.Is. Any *Error with the same Kind matches.
var (
	ErrUnsupportedFormat      = &Error{Kind: KindUnsupportedFormat}
	ErrPageLimitExceeded      = &Error{Kind: KindPageLimitExceeded}
	ErrEmptyFile              = &Error{Kind: KindEmptyFile}
	ErrCorruptedFile          = &Error{Kind: KindCorruptedFile}
	ErrFileTooLarge           = &Error{Kind: KindFileTooLarge}
	ErrExtractionTransient    = &Error{Kind: KindExtractionTransient}
	ErrExtractionUnavailable  = &Error{Kind: KindExtractionUnavailable}
	ErrSummarizationTransient = &Error{Kind: KindSummarizationTransient}
	ErrSummarizationRejected  = &Error{Kind: KindSummarizationRejected}
	ErrPipelineAborted        = &Error{Kind: KindPipelineAborted}
)

// Error is a classified pipeline error.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Message != "" {
		msg = fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// NewError builds a classified error.
func NewError(kind ErrorKind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or "".
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsInputError reports whether err rejects the input file itself. These are
// fatal for the run and never retried.
func IsInputError(err error) bool {
	switch KindOf(err) {
	case KindUnsupportedFormat, KindPageLimitExceeded, KindEmptyFile, KindCorruptedFile, KindFileTooLarge:
		return true
	}
	return false
}
