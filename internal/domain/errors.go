package domain

import "errors"

// Common validation errors for AnalysisTask
var (
	ErrEmptyTaskID       = errors.New("task ID cannot be empty")
	ErrEmptyLessonID     = errors.New("lesson ID cannot be empty")
	ErrInvalidTaskType   = errors.New("invalid task type")
	ErrInvalidTaskStatus = errors.New("invalid task status")
	ErrInvalidPriority   = errors.New("priority must be positive")
	ErrInvalidMaxRetries = errors.New("max retries must be positive")
)

// Common validation errors for AnalysisResult
var (
	ErrEmptyResultID        = errors.New("result ID cannot be empty")
	ErrInvalidResultStatus  = errors.New("invalid result status")
	ErrInvalidResultVersion = errors.New("result version must be at least 1")
)
