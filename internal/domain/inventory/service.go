package inventory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rpggio/tally/internal/domain/activity"
	"github.com/rpggio/tally/internal/domain/asset"
	"github.com/rpggio/tally/internal/repository"
)

const defaultSyncWorkers = 4

// Service is the reconciliation engine. Mutations of one session are
// serialized in-process and guarded in SQL by status compare-and-swap.
type Service struct {
	store       Store
	assets      *asset.Resolver
	directory   UserDirectory
	activities  ActivityRepository
	publisher   EventPublisher
	logger      *slog.Logger
	locks       *keyedMutex
	now         func() time.Time
	syncWorkers int
}

// Option configures a Service.
type Option func(*Service)

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithSyncWorkers bounds parallel code resolution during Sync.
func WithSyncWorkers(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.syncWorkers = n
		}
	}
}

// NewService creates the engine. directory, activities and publisher may be
// nil.
func NewService(
	store Store,
	catalog asset.Catalog,
	directory UserDirectory,
	activities ActivityRepository,
	publisher EventPublisher,
	logger *slog.Logger,
	opts ...Option,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		store:       store,
		assets:      asset.NewResolver(catalog),
		directory:   directory,
		activities:  activities,
		publisher:   publisher,
		logger:      logger,
		locks:       newKeyedMutex(),
		now:         time.Now,
		syncWorkers: defaultSyncWorkers,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateSessionRequest defines session creation inputs.
type CreateSessionRequest struct {
	Name        string       `json:"name"`
	Scope       asset.Scope  `json:"scope"`
	Notes       string       `json:"notes,omitempty"`
	CreatedBy   string       `json:"created_by"`
	Assignments []Assignment `json:"assignments,omitempty"`
}

// CreateSession creates a draft session, optionally with its tasks.
func (s *Service) CreateSession(ctx context.Context, tenantID string, req CreateSessionRequest) (*Session, []Task, error) {
	if strings.TrimSpace(req.Name) == "" || req.CreatedBy == "" {
		return nil, nil, ErrInvalidInput
	}
	scope, err := asset.NormalizeScope(req.Scope)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	now := s.now()
	sess := &Session{
		ID:        uuid.NewString(),
		TenantID:  tenantID,
		Name:      strings.TrimSpace(req.Name),
		Scope:     scope,
		Status:    StatusDraft,
		Notes:     req.Notes,
		CreatedBy: req.CreatedBy,
		CreatedAt: now,
	}
	tasks, err := newTasks(tenantID, sess.ID, req.Assignments, now)
	if err != nil {
		return nil, nil, err
	}

	err = s.store.WithinTx(ctx, func(tx Store) error {
		if err := tx.Sessions().Create(ctx, tenantID, sess); err != nil {
			return fmt.Errorf("creating session: %w", err)
		}
		for i := range tasks {
			if err := tx.Tasks().Create(ctx, tenantID, &tasks[i]); err != nil {
				return fmt.Errorf("creating task: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	s.record(ctx, tenantID, activity.ActivityEntry{
		SessionID:    &sess.ID,
		ActorID:      &sess.CreatedBy,
		ActivityType: activity.TypeSessionCreated,
		Summary:      fmt.Sprintf("Created session %q", sess.Name),
	})
	return sess, tasks, nil
}

// GetSession loads a session. Counters of a session that can still change
// are recomputed before returning.
func (s *Service) GetSession(ctx context.Context, tenantID, id string) (*Session, error) {
	sess, err := s.loadSession(ctx, s.store, tenantID, id)
	if err != nil {
		return nil, err
	}
	if sess.Status.Terminal() {
		return sess, nil
	}

	unlock := s.locks.Lock(sess.ID)
	defer unlock()
	counters, err := RefreshCounters(ctx, s.store, tenantID, sess.ID)
	if err != nil {
		s.logger.Warn("counter refresh on read failed", "session_id", sess.ID, "error", err)
		return sess, nil
	}
	sess.Counters = counters
	return sess, nil
}

// ListSessions lists sessions, newest first.
func (s *Service) ListSessions(ctx context.Context, tenantID string, opts ListSessionsOptions) ([]Session, error) {
	if opts.Limit <= 0 {
		opts.Limit = 50
	}
	return s.store.Sessions().List(ctx, tenantID, opts)
}

// ListItems lists a session's items.
func (s *Service) ListItems(ctx context.Context, tenantID, sessionID string, opts ListItemsOptions) ([]Item, error) {
	if _, err := s.loadSession(ctx, s.store, tenantID, sessionID); err != nil {
		return nil, err
	}
	return s.store.Items().List(ctx, tenantID, sessionID, opts)
}

// StartSession materializes the expected items of a draft session and moves
// it to in_progress.
func (s *Service) StartSession(ctx context.Context, tenantID, id, actorID string) (*Session, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	sess, err := s.loadSession(ctx, s.store, tenantID, id)
	if err != nil {
		return nil, err
	}
	if _, err := NextStatus(sess.Status, EventStart); err != nil {
		return nil, err
	}

	expected, err := s.assets.Resolve(ctx, tenantID, sess.Scope)
	if err != nil {
		return nil, fmt.Errorf("resolving scope: %w", err)
	}

	now := s.now()
	items := make([]Item, 0, len(expected))
	for _, a := range expected {
		items = append(items, Item{
			ID:         uuid.NewString(),
			TenantID:   tenantID,
			SessionID:  sess.ID,
			AssetID:    a.ID,
			LocationID: a.LocationID,
			Status:     ItemExpected,
			CreatedAt:  now,
		})
	}

	var tasks []Task
	err = s.store.WithinTx(ctx, func(tx Store) error {
		ok, err := tx.Sessions().TransitionStatus(ctx, tenantID, sess.ID, sourceStatuses(EventStart), StatusInProgress, now)
		if err != nil {
			return fmt.Errorf("starting session: %w", err)
		}
		if !ok {
			return fmt.Errorf("%w: session is no longer draft", ErrInvalidTransition)
		}
		if err := tx.Items().CreateBatch(ctx, tenantID, items); err != nil {
			return fmt.Errorf("materializing items: %w", err)
		}
		if sess.Counters, err = RefreshCounters(ctx, tx, tenantID, sess.ID); err != nil {
			return err
		}
		tasks, err = tx.Tasks().ListBySession(ctx, tenantID, sess.ID)
		if err != nil {
			return fmt.Errorf("listing tasks: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sess.Status = StatusInProgress
	sess.StartedAt = &now

	s.logger.Info("session started", "session_id", sess.ID, "expected", len(items), "tasks", len(tasks))
	s.notifyAssigned(ctx, sess, tasks)
	s.record(ctx, tenantID, activity.ActivityEntry{
		SessionID:    &sess.ID,
		ActorID:      strPtr(actorID),
		ActivityType: activity.TypeSessionStarted,
		Summary:      fmt.Sprintf("Started session %q with %d expected assets", sess.Name, len(items)),
	})
	return sess, nil
}

// CompleteSession closes an in-progress session and sweeps every item still
// expected to missing.
func (s *Service) CompleteSession(ctx context.Context, tenantID, id, actorID string) (*Session, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	sess, err := s.loadSession(ctx, s.store, tenantID, id)
	if err != nil {
		return nil, err
	}
	if _, err := NextStatus(sess.Status, EventComplete); err != nil {
		return nil, err
	}

	now := s.now()
	var swept int64
	err = s.store.WithinTx(ctx, func(tx Store) error {
		ok, err := tx.Sessions().TransitionStatus(ctx, tenantID, sess.ID, sourceStatuses(EventComplete), StatusCompleted, now)
		if err != nil {
			return fmt.Errorf("completing session: %w", err)
		}
		if !ok {
			return fmt.Errorf("%w: session is no longer in progress", ErrInvalidTransition)
		}
		if swept, err = tx.Items().SweepExpected(ctx, tenantID, sess.ID); err != nil {
			return fmt.Errorf("sweeping expected items: %w", err)
		}
		sess.Counters, err = RefreshCounters(ctx, tx, tenantID, sess.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	sess.Status = StatusCompleted
	sess.CompletedAt = &now

	s.logger.Info("session completed", "session_id", sess.ID, "swept", swept)
	s.publish(ctx, s.sessionEvent(ctx, EventSessionCompleted, sess))
	s.record(ctx, tenantID, activity.ActivityEntry{
		SessionID:    &sess.ID,
		ActorID:      strPtr(actorID),
		ActivityType: activity.TypeSessionCompleted,
		Summary: fmt.Sprintf("Completed session %q: %d matched, %d missing, %d unexpected",
			sess.Name, sess.Counters.Matched, sess.Counters.Missing, sess.Counters.Unexpected),
	})
	return sess, nil
}

// CancelSession abandons a session without touching its items.
func (s *Service) CancelSession(ctx context.Context, tenantID, id, actorID string) (*Session, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	sess, err := s.loadSession(ctx, s.store, tenantID, id)
	if err != nil {
		return nil, err
	}
	if _, err := NextStatus(sess.Status, EventCancel); err != nil {
		return nil, err
	}

	now := s.now()
	ok, err := s.store.Sessions().TransitionStatus(ctx, tenantID, sess.ID, sourceStatuses(EventCancel), StatusCancelled, now)
	if err != nil {
		return nil, fmt.Errorf("cancelling session: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: session already closed", ErrInvalidTransition)
	}
	sess.Status = StatusCancelled
	sess.CancelledAt = &now

	s.record(ctx, tenantID, activity.ActivityEntry{
		SessionID:    &sess.ID,
		ActorID:      strPtr(actorID),
		ActivityType: activity.TypeSessionCancelled,
		Summary:      fmt.Sprintf("Cancelled session %q", sess.Name),
	})
	return sess, nil
}

func (s *Service) loadSession(ctx context.Context, store Store, tenantID, id string) (*Session, error) {
	if id == "" {
		return nil, ErrInvalidInput
	}
	sess, err := store.Sessions().Get(ctx, tenantID, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("loading session: %w", err)
	}
	return sess, nil
}
