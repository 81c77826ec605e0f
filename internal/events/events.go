// Package events decouples lesson change notifications from analysis task
// creation. The main application (or its webhook) emits a LessonEvent; the
// analysis service reacts by queueing the appropriate task without either
// side importing the other.
package events

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// LessonAction names what happened to the lesson.
type LessonAction string

// Possible lesson actions
const (
	LessonCreated LessonAction = "created"
	LessonUpdated LessonAction = "updated"
)

// LessonEvent represents a change to a lesson that may warrant analysis.
// The changed-field flags let handlers pick the cheapest sufficient task
// type instead of always re-running the full analysis.
type LessonEvent struct {
	// ID is a unique identifier for this event
	ID uuid.UUID `json:"id"`

	// LessonID identifies the lesson that changed
	LessonID uuid.UUID `json:"lesson_id"`

	// Action is what happened to the lesson
	Action LessonAction `json:"action"`

	// ContentChanged is true when the lesson text changed
	ContentChanged bool `json:"content_changed"`

	// MediaChanged is true when the lesson video material changed
	MediaChanged bool `json:"media_changed"`

	// OccurredAt is when the change happened
	OccurredAt time.Time `json:"occurred_at"`
}

// NewLessonEvent creates a LessonEvent for the given lesson and action.
func NewLessonEvent(
	lessonID uuid.UUID,
	action LessonAction,
	contentChanged bool,
	mediaChanged bool,
) (*LessonEvent, error) {
	if lessonID == uuid.Nil {
		return nil, errors.New("lesson ID cannot be empty")
	}

	switch action {
	case LessonCreated, LessonUpdated:
	default:
		return nil, errors.New("unknown lesson action")
	}

	return &LessonEvent{
		ID:             uuid.New(),
		LessonID:       lessonID,
		Action:         action,
		ContentChanged: contentChanged,
		MediaChanged:   mediaChanged,
		OccurredAt:     time.Now().UTC(),
	}, nil
}

// EventHandler defines an interface for components that react to lesson
// events.
type EventHandler interface {
	// HandleEvent processes the given event within the provided context.
	// Returns an error if the event cannot be handled successfully.
	HandleEvent(ctx context.Context, event *LessonEvent) error
}

// EventEmitter defines an interface for components that publish lesson
// events without direct knowledge of the handlers.
type EventEmitter interface {
	// EmitEvent publishes the given event to all registered handlers.
	// Returns an error if the event cannot be emitted.
	EmitEvent(ctx context.Context, event *LessonEvent) error
}
