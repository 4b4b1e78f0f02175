// Package queue carries reprocessing jobs over a Redis stream and hands
// resubmitted payloads to the ingestion stream.
package queue

import (
	"fmt"
	"time"

	"github.com/aevon-lab/reprocessor/internal/reprocessing"
	"github.com/redis/go-redis/v9"
)

type TaskType string

const (
	TaskTypeReprocessGroup     TaskType = "reprocess_group"
	TaskTypeReprocessEvent     TaskType = "reprocess_event"
	TaskTypeFinishReprocessing TaskType = "finish_reprocessing"
)

// Message is one parsed job. Only the fields of its TaskType are set.
type Message struct {
	ID       string
	TaskType TaskType
	Attempt  int

	ProjectID       int64
	GroupID         int64
	NewGroupID      int64
	EventID         string
	RemainingEvents reprocessing.RemainingEvents
	MaxEvents       *int64
	StartTime       time.Time
	Cursor          int64
	Selected        int64

	TraceID   string
	LastError string
	Raw       redis.XMessage
}

// GroupJob converts a reprocess_group message.
func (m Message) GroupJob() reprocessing.GroupJob {
	return reprocessing.GroupJob{
		ProjectID:       m.ProjectID,
		GroupID:         m.GroupID,
		NewGroupID:      m.NewGroupID,
		RemainingEvents: m.RemainingEvents,
		MaxEvents:       m.MaxEvents,
		StartTime:       m.StartTime,
		Cursor:          m.Cursor,
		Selected:        m.Selected,
	}
}

// EventJob converts a reprocess_event message.
func (m Message) EventJob() reprocessing.EventJob {
	return reprocessing.EventJob{
		ProjectID: m.ProjectID,
		EventID:   m.EventID,
		GroupID:   m.GroupID,
		StartTime: m.StartTime,
	}
}

// FinishJob converts a finish_reprocessing message.
func (m Message) FinishJob() reprocessing.FinishJob {
	return reprocessing.FinishJob{ProjectID: m.ProjectID, GroupID: m.GroupID}
}

func groupMessage(job reprocessing.GroupJob) Message {
	return Message{
		TaskType:        TaskTypeReprocessGroup,
		ProjectID:       job.ProjectID,
		GroupID:         job.GroupID,
		NewGroupID:      job.NewGroupID,
		RemainingEvents: job.RemainingEvents,
		MaxEvents:       job.MaxEvents,
		StartTime:       job.StartTime,
		Cursor:          job.Cursor,
		Selected:        job.Selected,
	}
}

func eventMessage(job reprocessing.EventJob) Message {
	return Message{
		TaskType:  TaskTypeReprocessEvent,
		ProjectID: job.ProjectID,
		GroupID:   job.GroupID,
		EventID:   job.EventID,
		StartTime: job.StartTime,
	}
}

func finishMessage(job reprocessing.FinishJob) Message {
	return Message{
		TaskType:  TaskTypeFinishReprocessing,
		ProjectID: job.ProjectID,
		GroupID:   job.GroupID,
	}
}

// String identifies the message in logs.
func (m Message) String() string {
	switch m.TaskType {
	case TaskTypeReprocessEvent:
		return fmt.Sprintf("%s(group=%d, event=%s)", m.TaskType, m.GroupID, m.EventID)
	default:
		return fmt.Sprintf("%s(group=%d)", m.TaskType, m.GroupID)
	}
}
