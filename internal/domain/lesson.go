package domain

import "github.com/google/uuid"

// LessonContent is a read-only view of a lesson, fetched through a
// collaborator adapter. Lesson modeling itself is owned by the main
// application; the analysis subsystem only needs the analyzable fields.
type LessonContent struct {
	ID       uuid.UUID `json:"id"`
	Title    string    `json:"title"`
	Content  string    `json:"content"`
	VideoURL string    `json:"video_url,omitempty"`
}

// HasVideo reports whether the lesson carries video material worth sending
// through the video analysis lane.
func (l LessonContent) HasVideo() bool {
	return l.VideoURL != ""
}
