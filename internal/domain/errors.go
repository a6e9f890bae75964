package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors recorded against a test case or raised during setup.
var (
	ErrLogMissing             = errors.New("log not producible")
	ErrLogRegion              = errors.New("could not extract log region")
	ErrDocumentMissing        = errors.New("document not produced")
	ErrNoPages                = errors.New("rasterizer produced no page images")
	ErrUnsupportedImageFormat = errors.New("unsupported image format")
	ErrUnknownEngine          = errors.New("unknown engine")
	ErrNameCollision          = errors.New("test name collides with page image keys")
	ErrCommandBlocked         = errors.New("command blocked by security policy")
)

// RegressError is the base error type with context.
type RegressError struct {
	Phase      string // "config", "scan", "copy", "compile", "log", "baseline", "raster", "image", "report"
	File       string
	LineNumber int
	Message    string
	Suggestion string
	Cause      error
}

func (e *RegressError) Error() string {
	s := fmt.Sprintf("[%s]", e.Phase)
	if e.File != "" {
		s += fmt.Sprintf(" %s", e.File)
	}
	if e.LineNumber > 0 {
		s += fmt.Sprintf(":%d", e.LineNumber)
	}
	s += fmt.Sprintf(": %s", e.Message)
	if e.Cause != nil {
		s += fmt.Sprintf(": %v", e.Cause)
	}
	if e.Suggestion != "" {
		s += fmt.Sprintf(" (hint: %s)", e.Suggestion)
	}
	return s
}

func (e *RegressError) Unwrap() error {
	return e.Cause
}

// NewError creates a new RegressError.
func NewError(phase, file string, line int, message string, cause error) *RegressError {
	return &RegressError{
		Phase:      phase,
		File:       file,
		LineNumber: line,
		Message:    message,
		Cause:      cause,
	}
}

// NewErrorWithSuggestion creates a new RegressError carrying a hint for the user.
func NewErrorWithSuggestion(phase, file string, line int, message, suggestion string, cause error) *RegressError {
	e := NewError(phase, file, line, message, cause)
	e.Suggestion = suggestion
	return e
}
