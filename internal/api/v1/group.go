package v1

import (
	"encoding/json"
	"fmt"
	"time"
)

// GroupStatus mirrors the status column of the groups table.
type GroupStatus int

const (
	GroupStatusUnresolved      GroupStatus = 0
	GroupStatusResolved        GroupStatus = 1
	GroupStatusIgnored         GroupStatus = 2
	GroupStatusPendingDeletion GroupStatus = 3
	GroupStatusReprocessing    GroupStatus = 6
)

func (s GroupStatus) String() string {
	switch s {
	case GroupStatusUnresolved:
		return "unresolved"
	case GroupStatusResolved:
		return "resolved"
	case GroupStatusIgnored:
		return "ignored"
	case GroupStatusPendingDeletion:
		return "pending_deletion"
	case GroupStatusReprocessing:
		return "reprocessing"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Group is a logical issue aggregating events that share a fingerprint.
type Group struct {
	ID        int64 `json:"id,string"`
	ProjectID int64 `json:"project_id"`

	// ShortID is the human-facing sequence number, unique per project.
	// Nil while the slot is released (old identity of a reprocessed group).
	ShortID *int64 `json:"short_id,omitempty"`

	Status    GroupStatus            `json:"status"`
	TimesSeen int64                  `json:"times_seen"`
	Message   string                 `json:"message"`
	Culprit   string                 `json:"culprit"`
	Level     string                 `json:"level"`
	FirstSeen time.Time              `json:"first_seen"`
	LastSeen  time.Time              `json:"last_seen"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// GroupModel names a group-owned record kind the group store knows how to re-point.
type GroupModel string

const (
	GroupModelActivity     GroupModel = "activity"
	GroupModelAssignee     GroupModel = "assignee"
	GroupModelBookmark     GroupModel = "bookmark"
	GroupModelSubscription GroupModel = "subscription"
	GroupModelSeen         GroupModel = "seen"
	GroupModelMeta         GroupModel = "meta"
	GroupModelHash         GroupModel = "hash"
	GroupModelInbox        GroupModel = "inbox"
)

// ActivityType is the kind of an audit record on a group.
type ActivityType int

const (
	ActivitySetResolved  ActivityType = 1
	ActivityNote         ActivityType = 5
	ActivityAssigned     ActivityType = 12
	ActivityReprocess    ActivityType = 24
	ActivitySetUnresolve ActivityType = 25
)

// Activity is an immutable audit record attached to a group.
type Activity struct {
	ID        int64           `json:"id,string"`
	ProjectID int64           `json:"project_id"`
	GroupID   int64           `json:"group_id,string"`
	Type      ActivityType    `json:"type"`
	Ident     string          `json:"ident,omitempty"`
	UserID    *int64          `json:"user_id,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// ReprocessingActivityData is the payload of a REPROCESS activity. It is the
// only place the old and new identities of a fork are recorded together.
type ReprocessingActivityData struct {
	EventCount int64 `json:"eventCount"`
	OldGroupID int64 `json:"oldGroupId"`
	NewGroupID int64 `json:"newGroupId"`
}

// ReprocessingData decodes the activity payload of a REPROCESS activity.
func (a *Activity) ReprocessingData() (ReprocessingActivityData, error) {
	var data ReprocessingActivityData
	if a.Type != ActivityReprocess {
		return data, fmt.Errorf("activity %d is not a reprocessing activity", a.ID)
	}
	if err := json.Unmarshal(a.Data, &data); err != nil {
		return data, fmt.Errorf("failed to unmarshal reprocessing activity data: %w", err)
	}
	return data, nil
}
