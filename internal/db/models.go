// Package db stores handed-off dictation sessions in SQLite.
package db

import "time"

// Session is one dictation session.
type Session struct {
	ID        string
	PatientID string
	Locale    string
	StartedAt time.Time
	EndedAt   *time.Time
	Status    string
	Fallback  bool
	AudioPath string
	CreatedAt time.Time
}

// Segment is one finalized piece of a session transcript.
type Segment struct {
	ID             string
	SessionID      string
	Text           string
	SequenceNumber int
	CreatedAt      time.Time
}

// Transcript is the text handed to the review stage. Pending is cleared once
// the review stage has taken it.
type Transcript struct {
	SessionID string
	PatientID string
	Raw       string
	Processed string
	Pending   bool
	CreatedAt time.Time
}

// Session statuses.
const (
	StatusCompleted = "completed"
	StatusReviewed  = "reviewed"
)
