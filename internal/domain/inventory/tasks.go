package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rpggio/tally/internal/domain/activity"
	"github.com/rpggio/tally/internal/repository"
)

func newTasks(tenantID, sessionID string, assignments []Assignment, now time.Time) ([]Task, error) {
	tasks := make([]Task, 0, len(assignments))
	for _, a := range assignments {
		if strings.TrimSpace(a.AssigneeID) == "" {
			return nil, fmt.Errorf("%w: assignee is required", ErrInvalidInput)
		}
		loc := a.LocationID
		if loc != nil && strings.TrimSpace(*loc) == "" {
			loc = nil
		}
		tasks = append(tasks, Task{
			ID:         uuid.NewString(),
			TenantID:   tenantID,
			SessionID:  sessionID,
			AssigneeID: a.AssigneeID,
			LocationID: loc,
			Status:     TaskPending,
			Notes:      a.Notes,
			CreatedAt:  now,
		})
	}
	return tasks, nil
}

// AssignTasks creates one pending task per assignment. Tasks added to a
// running session are announced immediately.
func (s *Service) AssignTasks(ctx context.Context, tenantID, sessionID, actorID string, assignments []Assignment) ([]Task, error) {
	if len(assignments) == 0 {
		return nil, fmt.Errorf("%w: no assignments", ErrInvalidInput)
	}

	unlock := s.locks.Lock(sessionID)
	defer unlock()

	sess, err := s.loadSession(ctx, s.store, tenantID, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Status.Terminal() {
		return nil, fmt.Errorf("%w: cannot assign tasks in a %s session", ErrInvalidTransition, sess.Status)
	}

	tasks, err := newTasks(tenantID, sess.ID, assignments, s.now())
	if err != nil {
		return nil, err
	}
	err = s.store.WithinTx(ctx, func(tx Store) error {
		for i := range tasks {
			if err := tx.Tasks().Create(ctx, tenantID, &tasks[i]); err != nil {
				return fmt.Errorf("creating task: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if sess.Status == StatusInProgress {
		s.notifyAssigned(ctx, sess, tasks)
	}
	for i := range tasks {
		s.record(ctx, tenantID, activity.ActivityEntry{
			SessionID:    &sess.ID,
			TaskID:       &tasks[i].ID,
			ActorID:      strPtr(actorID),
			ActivityType: activity.TypeTaskAssigned,
			Summary:      fmt.Sprintf("Assigned task to %s", tasks[i].AssigneeID),
		})
	}
	return tasks, nil
}

// ScopedItems returns the session items that fall in the task's location, or
// every session item for a task without one.
func (s *Service) ScopedItems(ctx context.Context, tenantID string, task *Task) ([]Item, error) {
	items, err := s.store.Items().List(ctx, tenantID, task.SessionID, ListItemsOptions{LocationID: task.LocationID})
	if err != nil {
		return nil, fmt.Errorf("listing task items: %w", err)
	}
	return items, nil
}

// ListAssignedTasks returns the operator's tasks in running sessions.
func (s *Service) ListAssignedTasks(ctx context.Context, tenantID, operatorID string) ([]Task, error) {
	if operatorID == "" {
		return nil, ErrInvalidInput
	}
	return s.store.Tasks().ListAssigned(ctx, tenantID, operatorID)
}

// LookupTask loads a task without its items. A non-empty operatorID must be
// the assignee.
func (s *Service) LookupTask(ctx context.Context, tenantID, taskID, operatorID string) (*Task, error) {
	task, err := s.loadTask(ctx, s.store, tenantID, taskID)
	if err != nil {
		return nil, err
	}
	if operatorID != "" && task.AssigneeID != operatorID {
		return nil, fmt.Errorf("%w: task is assigned to another operator", ErrNotInScope)
	}
	return task, nil
}

// GetTask loads a task with its scoped items and stats. A non-empty
// operatorID must be the assignee.
func (s *Service) GetTask(ctx context.Context, tenantID, taskID, operatorID string) (*TaskDetail, error) {
	task, err := s.LookupTask(ctx, tenantID, taskID, operatorID)
	if err != nil {
		return nil, err
	}

	items, err := s.ScopedItems(ctx, tenantID, task)
	if err != nil {
		return nil, err
	}
	stats, err := s.TaskStats(ctx, tenantID, task)
	if err != nil {
		return nil, err
	}
	return &TaskDetail{Task: *task, Items: items, Stats: stats}, nil
}

// CompleteTask closes the operator's task. Items in its scope are left as
// they are.
func (s *Service) CompleteTask(ctx context.Context, tenantID, taskID, operatorID, notes string) (*Task, error) {
	task, err := s.loadTask(ctx, s.store, tenantID, taskID)
	if err != nil {
		return nil, err
	}
	if task.AssigneeID != operatorID {
		return nil, fmt.Errorf("%w: task is assigned to another operator", ErrNotInScope)
	}
	sess, err := s.loadSession(ctx, s.store, tenantID, task.SessionID)
	if err != nil {
		return nil, err
	}
	if err := requireInProgress(sess); err != nil {
		return nil, err
	}
	if !taskFinish.allows(task.Status) {
		return nil, fmt.Errorf("%w: task is %s", ErrInvalidTransition, task.Status)
	}

	now := s.now()
	err = s.store.WithinTx(ctx, func(tx Store) error {
		ok, err := tx.Tasks().TransitionStatus(ctx, tenantID, task.ID, taskFinish.From, taskFinish.To, now)
		if err != nil {
			return fmt.Errorf("completing task: %w", err)
		}
		if !ok {
			return fmt.Errorf("%w: task already completed", ErrInvalidTransition)
		}
		if strings.TrimSpace(notes) != "" {
			if err := tx.Tasks().AppendNotes(ctx, tenantID, task.ID, notes); err != nil {
				return fmt.Errorf("saving task notes: %w", err)
			}
		}
		task, err = tx.Tasks().Get(ctx, tenantID, task.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, s.taskEvent(ctx, EventTaskCompleted, sess, task))
	s.record(ctx, tenantID, activity.ActivityEntry{
		SessionID:    &sess.ID,
		TaskID:       &task.ID,
		ActorID:      &task.AssigneeID,
		ActivityType: activity.TypeTaskCompleted,
		Summary:      "Completed task",
	})
	return task, nil
}

// checkTask validates that a scan or override may run against taskID and
// starts a pending task. A nil taskID skips the check.
func (s *Service) checkTask(ctx context.Context, tx Store, tenantID string, sess *Session, taskID *string, operatorID string, begin bool) (*Task, error) {
	if taskID == nil || *taskID == "" {
		return nil, nil
	}
	task, err := s.loadTask(ctx, tx, tenantID, *taskID)
	if err != nil {
		return nil, err
	}
	if task.SessionID != sess.ID {
		return nil, fmt.Errorf("%w: task belongs to another session", ErrNotInScope)
	}
	if task.AssigneeID != operatorID {
		return nil, fmt.Errorf("%w: task is assigned to another operator", ErrNotInScope)
	}
	if task.Status == TaskCompleted {
		return nil, fmt.Errorf("%w: task is completed", ErrInvalidTransition)
	}
	if begin && taskBegin.allows(task.Status) {
		now := s.now()
		if _, err := tx.Tasks().TransitionStatus(ctx, tenantID, task.ID, taskBegin.From, taskBegin.To, now); err != nil {
			return nil, fmt.Errorf("starting task: %w", err)
		}
		task.Status = TaskInProgress
		task.StartedAt = &now
	}
	return task, nil
}

func (s *Service) loadTask(ctx context.Context, store Store, tenantID, id string) (*Task, error) {
	if id == "" {
		return nil, ErrInvalidInput
	}
	task, err := store.Tasks().Get(ctx, tenantID, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("loading task: %w", err)
	}
	return task, nil
}
