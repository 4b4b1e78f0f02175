package reprocessing

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrCannotReprocess matches every CannotReprocessError via errors.Is.
	ErrCannotReprocess = errors.New("cannot reprocess event")

	ErrInvalidRemainingEvents = errors.New("remaining_events must be keep or delete")
	ErrInvalidMaxEvents       = errors.New("max_events must be positive")
	ErrGroupNotFound          = errors.New("group not found")
)

// ConflictError is returned when a group is already being reprocessed.
type ConflictError struct {
	GroupID int64
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("group %d is already being reprocessed", e.GroupID)
}

// CannotReprocessKind enumerates why an event cannot be resubmitted.
type CannotReprocessKind int

const (
	PayloadNotFound CannotReprocessKind = iota + 1
	EventNotFound
	MissingAttachment
)

// CannotReprocessError is terminal for one event. The group job goes on.
type CannotReprocessError struct {
	Kind         CannotReprocessKind
	ProjectID    int64
	EventID      string
	MissingTypes []string // sorted, only for MissingAttachment
}

// Reason is the stable, machine-readable failure string.
func (e *CannotReprocessError) Reason() string {
	switch e.Kind {
	case PayloadNotFound:
		return "reprocessing_nodestore.not_found"
	case EventNotFound:
		return "event.not_found"
	case MissingAttachment:
		return "attachment.not_found." + strings.Join(e.MissingTypes, "_and_")
	default:
		return "unknown"
	}
}

func (e *CannotReprocessError) Error() string {
	return fmt.Sprintf("cannot reprocess event %s of project %d: %s", e.EventID, e.ProjectID, e.Reason())
}

func (e *CannotReprocessError) Is(target error) bool {
	return target == ErrCannotReprocess
}

// IntegrityError means an attachment's stored bytes disagree with its
// recorded size. Nothing is handed to ingestion.
type IntegrityError struct {
	AttachmentID int64
	Expected     int64
	Actual       int64
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("attachment %d: read %d bytes, expected %d", e.AttachmentID, e.Actual, e.Expected)
}

// IsTerminal reports whether retrying the event can never succeed.
func IsTerminal(err error) bool {
	var integrity *IntegrityError
	return errors.Is(err, ErrCannotReprocess) || errors.As(err, &integrity)
}

// RemainingEvents is the policy for events past max_events.
type RemainingEvents string

const (
	RemainingEventsKeep   RemainingEvents = "keep"
	RemainingEventsDelete RemainingEvents = "delete"
)

// ParseRemainingEvents validates a policy name.
func ParseRemainingEvents(s string) (RemainingEvents, error) {
	switch RemainingEvents(s) {
	case RemainingEventsKeep, RemainingEventsDelete:
		return RemainingEvents(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidRemainingEvents, s)
	}
}
