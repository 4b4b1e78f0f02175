package reprocessing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"

	v1 "github.com/aevon-lab/reprocessor/internal/api/v1"
)

// PayloadKind classifies a payload for attachment requirements.
type PayloadKind int

const (
	PayloadNonNative PayloadKind = iota
	PayloadGenericNative
	PayloadMinidump
	PayloadAppleCrashReport
)

func (k PayloadKind) String() string {
	switch k {
	case PayloadGenericNative:
		return "native"
	case PayloadMinidump:
		return "minidump"
	case PayloadAppleCrashReport:
		return "applecrashreport"
	default:
		return "non_native"
	}
}

var nativePlatforms = map[string]bool{
	"cocoa":  true,
	"native": true,
}

// ClassifyPayload derives the kind from the first exception's mechanism and
// the platform.
func ClassifyPayload(payload v1.Payload) PayloadKind {
	switch firstMechanismType(payload) {
	case "minidump", "unreal":
		return PayloadMinidump
	case "applecrashreport":
		return PayloadAppleCrashReport
	}
	if platform, _ := payload["platform"].(string); nativePlatforms[platform] {
		return PayloadGenericNative
	}
	return PayloadNonNative
}

func firstMechanismType(payload v1.Payload) string {
	values, ok := payload.GetPath("exception", "values").([]interface{})
	if !ok || len(values) == 0 {
		return ""
	}
	first, ok := values[0].(map[string]interface{})
	if !ok {
		return ""
	}
	mechanism, ok := first["mechanism"].(map[string]interface{})
	if !ok {
		return ""
	}
	t, _ := mechanism["type"].(string)
	return t
}

// RequiredAttachmentTypes lists the attachment types processing cannot run without.
func RequiredAttachmentTypes(kind PayloadKind) []string {
	switch kind {
	case PayloadMinidump:
		return []string{v1.AttachmentTypeMinidump}
	case PayloadAppleCrashReport:
		return []string{v1.AttachmentTypeAppleCrashReport}
	default:
		return nil
	}
}

// missingAttachmentTypes returns the required types with no stored attachment, sorted.
func missingAttachmentTypes(required []string, attachments []*v1.EventAttachment) []string {
	present := make(map[string]bool, len(attachments))
	for _, att := range attachments {
		present[att.Type] = true
	}
	var missing []string
	for _, t := range required {
		if !present[t] {
			missing = append(missing, t)
		}
	}
	sort.Strings(missing)
	return missing
}

// copyAttachment streams one attachment into the cache in chunkSize pieces.
// On error the chunks written so far are left for the caller to remove; the
// returned descriptor's Chunks field counts them.
func (e *Engine) copyAttachment(ctx context.Context, cacheKey string, index int, att *v1.EventAttachment) (v1.CachedAttachment, error) {
	cached := v1.CachedAttachment{
		Key:         cacheKey,
		ID:          index,
		Name:        att.Name,
		ContentType: att.ContentType,
		Type:        att.Type,
	}

	rc, err := e.attachments.OpenAttachment(ctx, att)
	if err != nil {
		return cached, fmt.Errorf("failed to open attachment %d: %w", att.ID, err)
	}
	defer rc.Close()

	buf := make([]byte, e.cfg.ChunkSize)
	for {
		n, readErr := io.ReadFull(rc, buf)
		if n > 0 {
			if err := e.cache.SetChunk(ctx, cacheKey, index, cached.Chunks, buf[:n], e.cfg.CacheTimeout); err != nil {
				return cached, fmt.Errorf("failed to cache chunk %d of attachment %d: %w", cached.Chunks, att.ID, err)
			}
			cached.Chunks++
			cached.Size += int64(n)
		}
		if errors.Is(readErr, io.EOF) || errors.Is(readErr, io.ErrUnexpectedEOF) {
			break
		}
		if readErr != nil {
			return cached, fmt.Errorf("failed to read attachment %d: %w", att.ID, readErr)
		}
	}

	if cached.Size != att.Size {
		return cached, &IntegrityError{AttachmentID: att.ID, Expected: att.Size, Actual: cached.Size}
	}
	return cached, nil
}
