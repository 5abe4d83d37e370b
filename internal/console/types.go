package console

import (
	"time"

	"github.com/rpggio/tally/internal/domain/activity"
	"github.com/rpggio/tally/internal/domain/asset"
	"github.com/rpggio/tally/internal/domain/inventory"
)

// Caller identifies who a request acts for.
type Caller struct {
	TenantID string
	UserID   string
	// IdempotencyKey is the transport-level key, used as the client event id
	// when a scan carries none.
	IdempotencyKey string
}

// Session lifecycle params

type CreateSessionParams struct {
	Name        string                 `json:"name"`
	Scope       asset.Scope            `json:"scope"`
	Notes       string                 `json:"notes,omitempty"`
	Assignments []inventory.Assignment `json:"assignments,omitempty"`
}

type SessionParams struct {
	SessionID string `json:"session_id"`
}

type ListSessionsParams struct {
	Statuses []inventory.SessionStatus `json:"statuses,omitempty"`
	Limit    int                       `json:"limit,omitempty"`
	Offset   int                       `json:"offset,omitempty"`
}

type AssignTasksParams struct {
	SessionID   string                 `json:"session_id"`
	Assignments []inventory.Assignment `json:"assignments"`
}

// Scan params

type ScanBarcodeParams struct {
	SessionID     string    `json:"session_id"`
	TaskID        *string   `json:"task_id,omitempty"`
	Code          string    `json:"code"`
	ScannedAt     time.Time `json:"scanned_at,omitempty"`
	ClientEventID string    `json:"client_event_id,omitempty"`
}

type AddUnexpectedParams struct {
	SessionID     string    `json:"session_id"`
	TaskID        *string   `json:"task_id,omitempty"`
	AssetID       string    `json:"asset_id,omitempty"`
	Code          string    `json:"code,omitempty"`
	ScannedAt     time.Time `json:"scanned_at,omitempty"`
	ClientEventID string    `json:"client_event_id,omitempty"`
}

type ItemParams struct {
	SessionID string  `json:"session_id,omitempty"`
	ItemID    string  `json:"item_id"`
	TaskID    *string `json:"task_id,omitempty"`
}

type ListItemsParams struct {
	SessionID  string                 `json:"session_id"`
	LocationID *string                `json:"location_id,omitempty"`
	Statuses   []inventory.ItemStatus `json:"statuses,omitempty"`
}

// Task params

type TaskParams struct {
	TaskID string `json:"task_id"`
}

type CompleteTaskParams struct {
	TaskID string `json:"task_id"`
	Notes  string `json:"notes,omitempty"`
}

type RecentActivityParams struct {
	SessionID *string                 `json:"session_id,omitempty"`
	TaskID    *string                 `json:"task_id,omitempty"`
	Types     []activity.ActivityType `json:"types,omitempty"`
	Limit     int                     `json:"limit,omitempty"`
}

// Responses

type CreateSessionResponse struct {
	Session *inventory.Session `json:"session"`
	Tasks   []inventory.Task   `json:"tasks"`
}

type AddUnexpectedResponse struct {
	Item    *inventory.Item `json:"item"`
	Created bool            `json:"created"`
}
