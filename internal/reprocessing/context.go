package reprocessing

import (
	v1 "github.com/aevon-lab/reprocessor/internal/api/v1"
)

var (
	originalIssueIDPath     = []string{"contexts", "reprocessing", "original_issue_id"}
	originalPrimaryHashPath = []string{"contexts", "reprocessing", "original_primary_hash"}
)

// OriginalIssueID returns the old group id carried by a resubmitted payload.
func OriginalIssueID(payload v1.Payload) (int64, bool) {
	raw := payload.GetPath(originalIssueIDPath...)
	if raw == nil {
		return 0, false
	}
	return v1.AsInt64(raw)
}

// OriginalPrimaryHash returns the grouping key the event had before it was
// resubmitted. Empty when the event had none.
func OriginalPrimaryHash(payload v1.Payload) string {
	s, _ := payload.GetPath(originalPrimaryHashPath...).(string)
	return s
}

// IsReprocessedEvent reports whether payload went through ReprocessEvent.
func IsReprocessedEvent(payload v1.Payload) bool {
	id, ok := OriginalIssueID(payload)
	return ok && id != 0
}

func setReprocessingContext(payload v1.Payload, groupID int64, primaryHash string) {
	payload.SetPath(groupID, originalIssueIDPath...)
	if primaryHash == "" {
		payload.SetPath(nil, originalPrimaryHashPath...)
		return
	}
	payload.SetPath(primaryHash, originalPrimaryHashPath...)
}
