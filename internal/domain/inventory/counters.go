package inventory

import (
	"context"
	"fmt"
)

// RefreshCounters recomputes a session's counters from its persisted items
// and overwrites the cached values on the session row.
func RefreshCounters(ctx context.Context, store Store, tenantID, sessionID string) (Counters, error) {
	counters, err := store.Items().Counts(ctx, tenantID, sessionID, nil)
	if err != nil {
		return Counters{}, fmt.Errorf("counting items: %w", err)
	}
	if err := store.Sessions().UpdateCounters(ctx, tenantID, sessionID, counters); err != nil {
		return Counters{}, fmt.Errorf("updating counters: %w", err)
	}
	return counters, nil
}

// refreshAfterCommit runs outside the mutation's transaction. A failure is
// logged and left for the next read to repair.
func (s *Service) refreshAfterCommit(ctx context.Context, tenantID, sessionID string) {
	if _, err := RefreshCounters(ctx, s.store, tenantID, sessionID); err != nil {
		s.logger.Warn("counter refresh failed", "session_id", sessionID, "error", err)
	}
}

// TaskStats computes counters over the task's scoped items. They are never
// persisted.
func (s *Service) TaskStats(ctx context.Context, tenantID string, task *Task) (Counters, error) {
	counters, err := s.store.Items().Counts(ctx, tenantID, task.SessionID, task.LocationID)
	if err != nil {
		return Counters{}, fmt.Errorf("counting task items: %w", err)
	}
	return counters, nil
}
