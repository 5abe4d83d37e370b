package inventory

import (
	"time"

	"github.com/rpggio/tally/internal/domain/asset"
)

// SessionStatus represents the lifecycle status of a counting session
type SessionStatus string

const (
	StatusDraft      SessionStatus = "draft"
	StatusInProgress SessionStatus = "in_progress"
	StatusCompleted  SessionStatus = "completed"
	StatusCancelled  SessionStatus = "cancelled"
)

// Terminal reports whether no further transition is possible.
func (s SessionStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// ItemStatus is the reconciliation state of one asset within a session
type ItemStatus string

const (
	ItemExpected   ItemStatus = "expected"
	ItemFound      ItemStatus = "found"
	ItemMissing    ItemStatus = "missing"
	ItemUnexpected ItemStatus = "unexpected"
)

// TaskStatus represents the lifecycle status of an operator task
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskInProgress TaskStatus = "in_progress"
	TaskCompleted  TaskStatus = "completed"
)

// Counters are rollups derived from a set of items. On a session they are a
// cache that only RefreshCounters writes.
type Counters struct {
	Expected   int `json:"total_expected"`
	Scanned    int `json:"total_scanned"`
	Matched    int `json:"total_matched"`
	Missing    int `json:"total_missing"`
	Unexpected int `json:"total_unexpected"`
}

// Session is one physical count
type Session struct {
	ID          string        `json:"id"`
	TenantID    string        `json:"tenant_id"`
	Name        string        `json:"name"`
	Scope       asset.Scope   `json:"scope"`
	Status      SessionStatus `json:"status"`
	Notes       string        `json:"notes,omitempty"`
	CreatedBy   string        `json:"created_by"`
	CreatedAt   time.Time     `json:"created_at"`
	StartedAt   *time.Time    `json:"started_at,omitempty"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
	CancelledAt *time.Time    `json:"cancelled_at,omitempty"`
	Counters    Counters      `json:"counters"`
}

// Item tracks one expected or discovered asset within a session
type Item struct {
	ID        string `json:"id"`
	TenantID  string `json:"tenant_id"`
	SessionID string `json:"session_id"`
	AssetID   string `json:"asset_id"`
	// LocationID is the asset's location when the item was created.
	LocationID *string    `json:"location_id,omitempty"`
	Status     ItemStatus `json:"status"`
	ScannedAt  *time.Time `json:"scanned_at,omitempty"`
	ScannedBy  *string    `json:"scanned_by,omitempty"`
	TaskID     *string    `json:"task_id,omitempty"`
	Condition  string     `json:"condition,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Task is a location-scoped slice of a session assigned to one operator
type Task struct {
	ID          string     `json:"id"`
	TenantID    string     `json:"tenant_id"`
	SessionID   string     `json:"session_id"`
	AssigneeID  string     `json:"assignee_id"`
	LocationID  *string    `json:"location_id,omitempty"`
	Status      TaskStatus `json:"status"`
	Notes       string     `json:"notes,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Assignment requests one task for an operator
type Assignment struct {
	AssigneeID string  `json:"assignee_id"`
	LocationID *string `json:"location_id,omitempty"`
	Notes      string  `json:"notes,omitempty"`
}

// TaskDetail is what a device needs to work a task
type TaskDetail struct {
	Task  Task     `json:"task"`
	Items []Item   `json:"items"`
	Stats Counters `json:"stats"`
}

// ScanResult classifies the outcome of a scan
type ScanResult string

const (
	ResultNotFound     ScanResult = "not_found"
	ResultNewlyFound   ScanResult = "newly_found"
	ResultAlreadyFound ScanResult = "already_found"
	ResultUnexpected   ScanResult = "unexpected"
	// ResultRegistered is recorded for unexpected-asset registrations.
	ResultRegistered ScanResult = "registered"
)

// ScanOutcome is returned by Scan
type ScanOutcome struct {
	Result    ScanResult            `json:"result"`
	Code      string                `json:"code"`
	Asset     *asset.Asset          `json:"asset,omitempty"`
	MatchedBy asset.IdentifierField `json:"matched_by,omitempty"`
	Item      *Item                 `json:"item,omitempty"`
	// Duplicate is set when the outcome was replayed from an earlier submission
	// with the same client event id.
	Duplicate bool `json:"duplicate,omitempty"`
}

// EventKind distinguishes recorded client submissions
type EventKind string

const (
	KindScan       EventKind = "scan"
	KindUnexpected EventKind = "unexpected"
)

// ScanEvent is a recorded client submission, keyed by its client event id
type ScanEvent struct {
	TenantID      string     `json:"tenant_id"`
	SessionID     string     `json:"session_id"`
	ClientEventID string     `json:"client_event_id"`
	Kind          EventKind  `json:"kind"`
	Code          string     `json:"code,omitempty"`
	AssetID       *string    `json:"asset_id,omitempty"`
	ItemID        *string    `json:"item_id,omitempty"`
	TaskID        *string    `json:"task_id,omitempty"`
	OperatorID    string     `json:"operator_id"`
	Result        ScanResult `json:"result"`
	ScannedAt     time.Time  `json:"scanned_at"`
	RecordedAt    time.Time  `json:"recorded_at"`
}
