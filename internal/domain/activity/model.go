package activity

import "time"

// ActivityType represents the type of activity event
type ActivityType string

const (
	TypeSessionCreated   ActivityType = "session_created"
	TypeSessionStarted   ActivityType = "session_started"
	TypeSessionCompleted ActivityType = "session_completed"
	TypeSessionCancelled ActivityType = "session_cancelled"
	TypeTaskAssigned     ActivityType = "task_assigned"
	TypeTaskCompleted    ActivityType = "task_completed"
	TypeItemFound        ActivityType = "item_found"
	TypeItemMissing      ActivityType = "item_missing"
	TypeItemUnexpected   ActivityType = "item_unexpected"
)

// ActivityEntry represents an event in the activity log
type ActivityEntry struct {
	ID           int64        `json:"id"`
	TenantID     string       `json:"tenant_id"`
	SessionID    *string      `json:"session_id,omitempty"`
	TaskID       *string      `json:"task_id,omitempty"`
	ItemID       *string      `json:"item_id,omitempty"`
	ActorID      *string      `json:"actor_id,omitempty"`
	ActivityType ActivityType `json:"type"`
	Summary      string       `json:"summary"`
	Details      string       `json:"details,omitempty"` // JSON string
	CreatedAt    time.Time    `json:"created_at"`
}
