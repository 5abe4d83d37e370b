package inventory

import (
	"context"
	"time"

	"github.com/rpggio/tally/internal/domain/activity"
	"github.com/rpggio/tally/internal/domain/operator"
)

// Store groups the inventory repositories and runs units of work atomically.
type Store interface {
	Sessions() SessionRepository
	Items() ItemRepository
	Tasks() TaskRepository
	ScanEvents() ScanEventRepository
	// WithinTx runs fn against a Store bound to a single transaction. The
	// transaction commits when fn returns nil.
	WithinTx(ctx context.Context, fn func(tx Store) error) error
}

// SessionRepository provides persistence for sessions.
type SessionRepository interface {
	Create(ctx context.Context, tenantID string, sess *Session) error
	Get(ctx context.Context, tenantID, id string) (*Session, error)
	List(ctx context.Context, tenantID string, opts ListSessionsOptions) ([]Session, error)
	// TransitionStatus moves the session to `to` only if its current status is
	// one of from, and stamps the matching timestamp. It reports whether a row
	// changed.
	TransitionStatus(ctx context.Context, tenantID, id string, from []SessionStatus, to SessionStatus, at time.Time) (bool, error)
	UpdateCounters(ctx context.Context, tenantID, id string, counters Counters) error
}

// ItemRepository provides persistence for session items.
type ItemRepository interface {
	CreateBatch(ctx context.Context, tenantID string, items []Item) error
	Get(ctx context.Context, tenantID, id string) (*Item, error)
	GetByAsset(ctx context.Context, tenantID, sessionID, assetID string) (*Item, error)
	List(ctx context.Context, tenantID, sessionID string, opts ListItemsOptions) ([]Item, error)
	// InsertOrGet inserts item unless the (session, asset) pair exists, and
	// returns the stored row with whether this call created it.
	InsertOrGet(ctx context.Context, tenantID string, item *Item) (*Item, bool, error)
	// MarkFound updates an expected or missing item to found.
	MarkFound(ctx context.Context, tenantID, id, operatorID string, taskID *string, at time.Time) (bool, error)
	// MarkMissing updates an expected or found item to missing.
	MarkMissing(ctx context.Context, tenantID, id string) (bool, error)
	TouchScanned(ctx context.Context, tenantID, id string, at time.Time) error
	SweepExpected(ctx context.Context, tenantID, sessionID string) (int64, error)
	// Counts aggregates items of a session, restricted to a location when
	// locationID is set.
	Counts(ctx context.Context, tenantID, sessionID string, locationID *string) (Counters, error)
}

// TaskRepository provides persistence for operator tasks.
type TaskRepository interface {
	Create(ctx context.Context, tenantID string, task *Task) error
	Get(ctx context.Context, tenantID, id string) (*Task, error)
	ListBySession(ctx context.Context, tenantID, sessionID string) ([]Task, error)
	// ListAssigned returns the operator's tasks in sessions that are in progress.
	ListAssigned(ctx context.Context, tenantID, assigneeID string) ([]Task, error)
	TransitionStatus(ctx context.Context, tenantID, id string, from []TaskStatus, to TaskStatus, at time.Time) (bool, error)
	AppendNotes(ctx context.Context, tenantID, id, notes string) error
}

// ScanEventRepository records client submissions for replay detection.
type ScanEventRepository interface {
	Get(ctx context.Context, tenantID, sessionID, clientEventID string) (*ScanEvent, error)
	// Record fails with repository.ErrDuplicate when the id was already used.
	Record(ctx context.Context, tenantID string, ev *ScanEvent) error
}

// UserDirectory resolves operators for event context.
type UserDirectory interface {
	Get(ctx context.Context, tenantID, id string) (*operator.User, error)
}

// ActivityRepository receives the engine's audit trail.
type ActivityRepository interface {
	Log(ctx context.Context, tenantID string, entry *activity.ActivityEntry) error
}

// EventPublisher delivers lifecycle events to the notification dispatcher.
type EventPublisher interface {
	Publish(ctx context.Context, event Event) error
}

// ListSessionsOptions filters session listings.
type ListSessionsOptions struct {
	Statuses []SessionStatus
	Limit    int
	Offset   int
}

// ListItemsOptions filters item listings.
type ListItemsOptions struct {
	LocationID *string
	Statuses   []ItemStatus
}
