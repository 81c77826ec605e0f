package gemini

import "errors"

// Analyzer errors. All of them are retryable from the queue's point of
// view: the processor retries with backoff until the task's budget runs
// out, regardless of which of these occurred.
var (
	// ErrInvalidResponse indicates the inference service returned a
	// payload that could not be parsed into the expected schema.
	ErrInvalidResponse = errors.New("invalid response from inference service")

	// ErrContentBlocked indicates the inference service refused to
	// generate content for the given lesson.
	ErrContentBlocked = errors.New("content blocked by inference service")

	// ErrEmptyLesson indicates the lesson has no analyzable text.
	ErrEmptyLesson = errors.New("lesson content is empty")
)
