// Package apperr defines the error kinds a clip job can fail with.
package apperr

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindValidation           Kind = "validation"
	KindNotFound             Kind = "not_found"
	KindAcquisitionExhausted Kind = "acquisition_exhausted"
	KindTranscription        Kind = "transcription"
	KindNoHighlights         Kind = "no_highlights"
	KindRender               Kind = "render"
	KindStorage              Kind = "storage"
	KindCanceled             Kind = "canceled"
	KindInternal             Kind = "internal"
)

// Error carries a kind, a human-readable message and, for subprocess
// failures, the tail of the tool's output.
type Error struct {
	Kind    Kind
	Message string
	Detail  string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if e.Detail != "" {
		msg = fmt.Sprintf("%s\n%s", msg, e.Detail)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error by kind so errors.Is(err, apperr.ErrNotFound) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Message == "" && t.Kind == e.Kind
}

// Sentinels for errors.Is checks.
var (
	ErrValidation           = &Error{Kind: KindValidation}
	ErrNotFound             = &Error{Kind: KindNotFound}
	ErrAcquisitionExhausted = &Error{Kind: KindAcquisitionExhausted}
	ErrTranscription        = &Error{Kind: KindTranscription}
	ErrNoHighlights         = &Error{Kind: KindNoHighlights}
	ErrRender               = &Error{Kind: KindRender}
	ErrStorage              = &Error{Kind: KindStorage}
	ErrCanceled             = &Error{Kind: KindCanceled}
)

func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

func Validation(format string, args ...any) *Error {
	return New(KindValidation, format, args...)
}

func NotFound(format string, args ...any) *Error {
	return New(KindNotFound, format, args...)
}

// Render builds a render error with the diagnostic tail of a subprocess.
func Render(err error, detail string, format string, args ...any) *Error {
	e := Wrap(KindRender, err, format, args...)
	e.Detail = detail
	return e
}

// KindOf reports the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Code maps a kind to the error code used in API payloads.
func Code(kind Kind) string {
	switch kind {
	case KindValidation:
		return "VALIDATION_ERROR"
	case KindNotFound:
		return "NOT_FOUND"
	case KindAcquisitionExhausted:
		return "ACQUISITION_EXHAUSTED"
	case KindTranscription:
		return "TRANSCRIPTION_ERROR"
	case KindNoHighlights:
		return "NO_HIGHLIGHTS_FOUND"
	case KindRender:
		return "RENDER_ERROR"
	case KindStorage:
		return "STORAGE_ERROR"
	case KindCanceled:
		return "CANCELED"
	default:
		return "SERVICE_ERROR"
	}
}
