package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrForbidden     = errors.New("forbidden")
	ErrConflict      = errors.New("session busy")
	ErrInvalidInput  = errors.New("invalid input")
	ErrAnalysisParse = errors.New("analysis parse error")
	ErrGeneration    = errors.New("generation error")
	ErrStore         = errors.New("store error")
)

// AnalysisParseError reports that the analysis stage produced no usable analysis.
type AnalysisParseError struct {
	Reason string
	Err    error
}

func (e *AnalysisParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("analysis parse error: %s: %v", e.Reason, e.Err)
	}
	return "analysis parse error: " + e.Reason
}

func (e *AnalysisParseError) Unwrap() error { return e.Err }

func (e *AnalysisParseError) Is(target error) bool { return target == ErrAnalysisParse }

// GenerationError reports that the response stage produced no reply.
type GenerationError struct {
	Reason string
	Err    error
}

func (e *GenerationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("generation error: %s: %v", e.Reason, e.Err)
	}
	return "generation error: " + e.Reason
}

func (e *GenerationError) Unwrap() error { return e.Err }

func (e *GenerationError) Is(target error) bool { return target == ErrGeneration }

// StoreError wraps a persistence failure.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store error: %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

func (e *StoreError) Is(target error) bool { return target == ErrStore }
