package v1

import "time"

// Attachment type identifiers. Processing of native crash payloads cannot run
// without the matching attachment.
const (
	AttachmentTypeMinidump         = "event.minidump"
	AttachmentTypeAppleCrashReport = "event.applecrashreport"
	AttachmentTypeDefault          = "event.attachment"
)

// EventAttachment describes a stored attachment of a processed event.
// The bytes live in blob storage and are streamed, never loaded whole.
type EventAttachment struct {
	ID          int64     `json:"id"`
	ProjectID   int64     `json:"project_id"`
	EventID     string    `json:"event_id"`
	GroupID     *int64    `json:"group_id,omitempty"`
	Type        string    `json:"type"`
	Name        string    `json:"name"`
	ContentType string    `json:"content_type,omitempty"`
	Size        int64     `json:"size"`
	CreatedAt   time.Time `json:"created_at"`
}

// CachedAttachment is the in-flight descriptor published next to a handoff
// payload in the payload cache. Its chunks live under the same cache key.
type CachedAttachment struct {
	Key         string `json:"key"`
	ID          int    `json:"id"`
	Name        string `json:"name"`
	ContentType string `json:"content_type,omitempty"`
	Type        string `json:"type"`
	Chunks      int    `json:"chunks"`
	Size        int64  `json:"size"`
}
