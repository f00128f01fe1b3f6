// Package handoff delivers a finished dictation to the edit and review stage.
package handoff

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

var (
	ErrEmptyTranscript = errors.New("transcript is empty")
	ErrNoPending       = errors.New("no pending transcript")
)

// Artifact is one handed-off dictation.
type Artifact struct {
	SessionID string
	PatientID string
	Locale    string
	// Text is the transcript as accumulated; Processed is Text after
	// transcript.Normalize.
	Text      string
	Processed string
	Segments  []string
	// Fallback is set when Text came from the display surface because
	// nothing was finalized.
	Fallback  bool
	AudioPath string
	StartedAt time.Time
	EndedAt   time.Time
}

// Body is the text the review stage should edit.
func (a Artifact) Body() string {
	if a.Processed != "" {
		return a.Processed
	}
	return a.Text
}

// Validate checks the artifact before it is handed to any sink.
func (a Artifact) Validate() error {
	if strings.TrimSpace(a.Text) == "" {
		return ErrEmptyTranscript
	}
	if a.SessionID == "" {
		return errors.New("artifact has no session id")
	}
	if a.PatientID != "" {
		return ValidatePatientID(a.PatientID)
	}
	return nil
}

// Sink receives finished artifacts.
type Sink interface {
	Handoff(ctx context.Context, a Artifact) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, a Artifact) error

func (f SinkFunc) Handoff(ctx context.Context, a Artifact) error { return f(ctx, a) }

// Multi hands the artifact to every sink and joins their errors.
type Multi []Sink

func (m Multi) Handoff(ctx context.Context, a Artifact) error {
	if err := a.Validate(); err != nil {
		return err
	}
	var errs []error
	for _, s := range m {
		if err := s.Handoff(ctx, a); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var rePatientID = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// ValidatePatientID accepts 3 to 50 letters, digits, hyphens or underscores.
func ValidatePatientID(id string) error {
	id = strings.TrimSpace(id)
	switch {
	case id == "":
		return errors.New("patient id is required")
	case len(id) < 3:
		return errors.New("patient id must be at least 3 characters long")
	case len(id) > 50:
		return errors.New("patient id must be 50 characters or less")
	case !rePatientID.MatchString(id):
		return fmt.Errorf("patient id %q can only contain letters, numbers, hyphens, and underscores", id)
	}
	return nil
}
