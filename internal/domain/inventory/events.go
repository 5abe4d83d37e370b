package inventory

import (
	"context"
	"time"

	"github.com/rpggio/tally/internal/domain/activity"
)

// EventType names a lifecycle event for the notification dispatcher.
type EventType string

const (
	EventTaskAssigned     EventType = "task.assigned"
	EventTaskCompleted    EventType = "task.completed"
	EventSessionCompleted EventType = "session.completed"
)

// Event carries the context a notification template needs.
type Event struct {
	Type         EventType `json:"type"`
	TenantID     string    `json:"tenant_id"`
	SessionID    string    `json:"session_id"`
	SessionName  string    `json:"session_name"`
	TaskID       string    `json:"task_id,omitempty"`
	LocationID   string    `json:"location_id,omitempty"`
	LocationName string    `json:"location_name,omitempty"`
	AssigneeID   string    `json:"assignee_id,omitempty"`
	AssigneeName string    `json:"assignee_name,omitempty"`
	CreatorID    string    `json:"creator_id"`
	CreatorName  string    `json:"creator_name,omitempty"`
	Counters     *Counters `json:"counters,omitempty"`
	OccurredAt   time.Time `json:"occurred_at"`
}

func (s *Service) taskEvent(ctx context.Context, typ EventType, sess *Session, task *Task) Event {
	ev := Event{
		Type:         typ,
		TenantID:     sess.TenantID,
		SessionID:    sess.ID,
		SessionName:  sess.Name,
		TaskID:       task.ID,
		AssigneeID:   task.AssigneeID,
		AssigneeName: s.userName(ctx, sess.TenantID, task.AssigneeID),
		CreatorID:    sess.CreatedBy,
		CreatorName:  s.userName(ctx, sess.TenantID, sess.CreatedBy),
		OccurredAt:   s.now(),
	}
	if task.LocationID != nil {
		ev.LocationID = *task.LocationID
		ev.LocationName = s.assets.LocationName(ctx, sess.TenantID, task.LocationID)
	}
	return ev
}

func (s *Service) sessionEvent(ctx context.Context, typ EventType, sess *Session) Event {
	counters := sess.Counters
	return Event{
		Type:        typ,
		TenantID:    sess.TenantID,
		SessionID:   sess.ID,
		SessionName: sess.Name,
		CreatorID:   sess.CreatedBy,
		CreatorName: s.userName(ctx, sess.TenantID, sess.CreatedBy),
		Counters:    &counters,
		OccurredAt:  s.now(),
	}
}

// notifyAssigned emits TaskAssigned for every task not assigned to the
// session's creator.
func (s *Service) notifyAssigned(ctx context.Context, sess *Session, tasks []Task) {
	for i := range tasks {
		if tasks[i].AssigneeID == sess.CreatedBy {
			continue
		}
		s.publish(ctx, s.taskEvent(ctx, EventTaskAssigned, sess, &tasks[i]))
	}
}

func (s *Service) publish(ctx context.Context, ev Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, ev); err != nil {
		s.logger.Warn("publishing event failed", "type", ev.Type, "session_id", ev.SessionID, "error", err)
	}
}

func (s *Service) userName(ctx context.Context, tenantID, userID string) string {
	if s.directory == nil || userID == "" {
		return ""
	}
	user, err := s.directory.Get(ctx, tenantID, userID)
	if err != nil {
		return ""
	}
	return user.Name
}

func (s *Service) record(ctx context.Context, tenantID string, entry activity.ActivityEntry) {
	if s.activities == nil {
		return
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.now()
	}
	if err := s.activities.Log(ctx, tenantID, &entry); err != nil {
		s.logger.Warn("logging activity failed", "type", entry.ActivityType, "error", err)
	}
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
