package storage

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
)

// Subkey of an event node holding the payload as it was before processing.
const UnprocessedSubkey = "unprocessed"

// EventCacheKey is the standard payload cache key of one event.
func EventCacheKey(projectID int64, eventID string) string {
	return fmt.Sprintf("e:%s:%d", eventID, projectID)
}

// UnprocessedCacheKey is where the unprocessed backup of an event is cached.
func UnprocessedCacheKey(projectID int64, eventID string) string {
	return EventCacheKey(projectID, eventID) + ":u"
}

// ChunkCacheKey addresses one chunk of one cached attachment.
func ChunkCacheKey(key string, attachmentID, chunkIndex int) string {
	return fmt.Sprintf("c:%s:%d:%d", key, attachmentID, chunkIndex)
}

// AttachmentsCacheKey holds the attachment descriptor list of a cached payload.
func AttachmentsCacheKey(key string) string {
	return "a:" + key
}

// EventNodeID is the archive node of a processed event.
func EventNodeID(projectID int64, eventID string) string {
	return md5Hex(fmt.Sprintf("%d:%s", projectID, eventID))
}

// UnprocessedNodeID is the archive node an unprocessed payload is moved to
// once the event was accepted.
func UnprocessedNodeID(projectID int64, eventID string) string {
	return md5Hex(fmt.Sprintf("%d:%s:unprocessed", projectID, eventID))
}

func md5Hex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}
