package queue

import (
	"fmt"
	"strconv"
	"time"

	"github.com/aevon-lab/reprocessor/internal/reprocessing"
	"github.com/redis/go-redis/v9"
)

// ParseMessage decodes and validates the stream fields of one job.
func ParseMessage(msg redis.XMessage) (Message, error) {
	taskType, err := parseOptionalString(msg.Values, "task_type")
	if err != nil {
		return Message{}, err
	}
	projectID, err := parseOptionalInt64(msg.Values, "project_id")
	if err != nil {
		return Message{}, err
	}
	groupID, err := parseOptionalInt64(msg.Values, "group_id")
	if err != nil {
		return Message{}, err
	}
	newGroupID, err := parseOptionalInt64(msg.Values, "new_group_id")
	if err != nil {
		return Message{}, err
	}
	maxEvents, err := parseOptionalInt64(msg.Values, "max_events")
	if err != nil {
		return Message{}, err
	}
	cursor, err := parseOptionalInt64(msg.Values, "cursor")
	if err != nil {
		return Message{}, err
	}
	selected, err := parseOptionalInt64(msg.Values, "selected")
	if err != nil {
		return Message{}, err
	}
	startTime, err := parseOptionalTime(msg.Values, "start_time")
	if err != nil {
		return Message{}, err
	}
	eventID, err := parseOptionalString(msg.Values, "event_id")
	if err != nil {
		return Message{}, err
	}
	remaining, err := parseOptionalString(msg.Values, "remaining_events")
	if err != nil {
		return Message{}, err
	}
	traceID, err := parseOptionalString(msg.Values, "trace_id")
	if err != nil {
		return Message{}, err
	}
	lastError, err := parseOptionalString(msg.Values, "last_error")
	if err != nil {
		return Message{}, err
	}

	attempt, err := parseOptionalInt(msg.Values, "attempt")
	if err != nil {
		return Message{}, err
	}
	if attempt == 0 {
		attempt = 1
	}

	if projectID == nil || groupID == nil {
		return Message{}, fmt.Errorf("missing project_id or group_id")
	}

	switch TaskType(taskType) {
	case TaskTypeReprocessGroup:
		if newGroupID == nil {
			return Message{}, fmt.Errorf("missing new_group_id")
		}
		if _, err := reprocessing.ParseRemainingEvents(remaining); err != nil {
			return Message{}, err
		}
	case TaskTypeReprocessEvent:
		if eventID == "" {
			return Message{}, fmt.Errorf("missing event_id")
		}
	case TaskTypeFinishReprocessing:
	case "":
		return Message{}, fmt.Errorf("missing task_type")
	default:
		return Message{}, fmt.Errorf("unknown task_type %q", taskType)
	}

	return Message{
		ID:              msg.ID,
		TaskType:        TaskType(taskType),
		Attempt:         attempt,
		ProjectID:       *projectID,
		GroupID:         *groupID,
		NewGroupID:      valueOr(newGroupID),
		EventID:         eventID,
		RemainingEvents: reprocessing.RemainingEvents(remaining),
		MaxEvents:       maxEvents,
		StartTime:       startTime,
		Cursor:          valueOr(cursor),
		Selected:        valueOr(selected),
		TraceID:         traceID,
		LastError:       lastError,
		Raw:             msg,
	}, nil
}

func valueOr(v *int64) int64 {
	if v == nil {
		return 0
	}
	return *v
}

func parseOptionalInt64(values map[string]any, key string) (*int64, error) {
	raw, ok := values[key]
	if !ok {
		return nil, nil
	}
	num, err := strconv.ParseInt(fmt.Sprint(raw), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", key, err)
	}
	return &num, nil
}

func parseOptionalInt(values map[string]any, key string) (int, error) {
	raw, ok := values[key]
	if !ok {
		return 0, nil
	}
	num, err := strconv.Atoi(fmt.Sprint(raw))
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", key, err)
	}
	return num, nil
}

func parseOptionalString(values map[string]any, key string) (string, error) {
	raw, ok := values[key]
	if !ok {
		return "", nil
	}
	return fmt.Sprint(raw), nil
}

func parseOptionalTime(values map[string]any, key string) (time.Time, error) {
	raw, ok := values[key]
	if !ok {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, fmt.Sprint(raw))
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing %s: %w", key, err)
	}
	return t, nil
}

// messageValues is the stream encoding of msg with the given attempt.
func messageValues(msg Message, attempt int) map[string]any {
	values := map[string]any{
		"task_type":  string(msg.TaskType),
		"attempt":    attempt,
		"project_id": msg.ProjectID,
		"group_id":   msg.GroupID,
	}

	switch msg.TaskType {
	case TaskTypeReprocessGroup:
		values["new_group_id"] = msg.NewGroupID
		values["remaining_events"] = string(msg.RemainingEvents)
		values["cursor"] = msg.Cursor
		values["selected"] = msg.Selected
		if msg.MaxEvents != nil {
			values["max_events"] = *msg.MaxEvents
		}
	case TaskTypeReprocessEvent:
		values["event_id"] = msg.EventID
	}

	if !msg.StartTime.IsZero() {
		values["start_time"] = msg.StartTime.UTC().Format(time.RFC3339Nano)
	}
	if msg.TraceID != "" {
		values["trace_id"] = msg.TraceID
	}
	return values
}
