package mocks

import (
	"context"
	"time"

	"github.com/rpggio/tally/internal/domain/activity"
	"github.com/rpggio/tally/internal/domain/asset"
	"github.com/rpggio/tally/internal/domain/inventory"
	"github.com/rpggio/tally/internal/domain/operator"
	"github.com/stretchr/testify/mock"
)

// Store is a mock for inventory.Store. WithinTx runs fn against the store
// itself unless TxErr is set.
type Store struct {
	SessionRepo   *SessionRepository
	ItemRepo      *ItemRepository
	TaskRepo      *TaskRepository
	ScanEventRepo *ScanEventRepository
	TxErr         error
}

// NewStore returns a Store with fresh repository mocks.
func NewStore() *Store {
	return &Store{
		SessionRepo:   &SessionRepository{},
		ItemRepo:      &ItemRepository{},
		TaskRepo:      &TaskRepository{},
		ScanEventRepo: &ScanEventRepository{},
	}
}

func (s *Store) Sessions() inventory.SessionRepository     { return s.SessionRepo }
func (s *Store) Items() inventory.ItemRepository           { return s.ItemRepo }
func (s *Store) Tasks() inventory.TaskRepository           { return s.TaskRepo }
func (s *Store) ScanEvents() inventory.ScanEventRepository { return s.ScanEventRepo }

func (s *Store) WithinTx(ctx context.Context, fn func(tx inventory.Store) error) error {
	if s.TxErr != nil {
		return s.TxErr
	}
	return fn(s)
}

// AssertExpectations asserts every repository mock.
func (s *Store) AssertExpectations(t mock.TestingT) {
	s.SessionRepo.AssertExpectations(t)
	s.ItemRepo.AssertExpectations(t)
	s.TaskRepo.AssertExpectations(t)
	s.ScanEventRepo.AssertExpectations(t)
}

// SessionRepository is a mock for inventory.SessionRepository.
type SessionRepository struct {
	mock.Mock
}

func (m *SessionRepository) Create(ctx context.Context, tenantID string, sess *inventory.Session) error {
	args := m.Called(ctx, tenantID, sess)
	return args.Error(0)
}

func (m *SessionRepository) Get(ctx context.Context, tenantID, id string) (*inventory.Session, error) {
	args := m.Called(ctx, tenantID, id)
	if sess, ok := args.Get(0).(*inventory.Session); ok {
		return sess, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *SessionRepository) List(ctx context.Context, tenantID string, opts inventory.ListSessionsOptions) ([]inventory.Session, error) {
	args := m.Called(ctx, tenantID, opts)
	if list, ok := args.Get(0).([]inventory.Session); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *SessionRepository) TransitionStatus(ctx context.Context, tenantID, id string, from []inventory.SessionStatus, to inventory.SessionStatus, at time.Time) (bool, error) {
	args := m.Called(ctx, tenantID, id, from, to, at)
	return args.Bool(0), args.Error(1)
}

func (m *SessionRepository) UpdateCounters(ctx context.Context, tenantID, id string, counters inventory.Counters) error {
	args := m.Called(ctx, tenantID, id, counters)
	return args.Error(0)
}

// ItemRepository is a mock for inventory.ItemRepository.
type ItemRepository struct {
	mock.Mock
}

func (m *ItemRepository) CreateBatch(ctx context.Context, tenantID string, items []inventory.Item) error {
	args := m.Called(ctx, tenantID, items)
	return args.Error(0)
}

func (m *ItemRepository) Get(ctx context.Context, tenantID, id string) (*inventory.Item, error) {
	args := m.Called(ctx, tenantID, id)
	if item, ok := args.Get(0).(*inventory.Item); ok {
		return item, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *ItemRepository) GetByAsset(ctx context.Context, tenantID, sessionID, assetID string) (*inventory.Item, error) {
	args := m.Called(ctx, tenantID, sessionID, assetID)
	if item, ok := args.Get(0).(*inventory.Item); ok {
		return item, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *ItemRepository) List(ctx context.Context, tenantID, sessionID string, opts inventory.ListItemsOptions) ([]inventory.Item, error) {
	args := m.Called(ctx, tenantID, sessionID, opts)
	if list, ok := args.Get(0).([]inventory.Item); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *ItemRepository) InsertOrGet(ctx context.Context, tenantID string, item *inventory.Item) (*inventory.Item, bool, error) {
	args := m.Called(ctx, tenantID, item)
	if got, ok := args.Get(0).(*inventory.Item); ok {
		return got, args.Bool(1), args.Error(2)
	}
	return nil, args.Bool(1), args.Error(2)
}

func (m *ItemRepository) MarkFound(ctx context.Context, tenantID, id, operatorID string, taskID *string, at time.Time) (bool, error) {
	args := m.Called(ctx, tenantID, id, operatorID, taskID, at)
	return args.Bool(0), args.Error(1)
}

func (m *ItemRepository) MarkMissing(ctx context.Context, tenantID, id string) (bool, error) {
	args := m.Called(ctx, tenantID, id)
	return args.Bool(0), args.Error(1)
}

func (m *ItemRepository) TouchScanned(ctx context.Context, tenantID, id string, at time.Time) error {
	args := m.Called(ctx, tenantID, id, at)
	return args.Error(0)
}

func (m *ItemRepository) SweepExpected(ctx context.Context, tenantID, sessionID string) (int64, error) {
	args := m.Called(ctx, tenantID, sessionID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *ItemRepository) Counts(ctx context.Context, tenantID, sessionID string, locationID *string) (inventory.Counters, error) {
	args := m.Called(ctx, tenantID, sessionID, locationID)
	return args.Get(0).(inventory.Counters), args.Error(1)
}

// TaskRepository is a mock for inventory.TaskRepository.
type TaskRepository struct {
	mock.Mock
}

func (m *TaskRepository) Create(ctx context.Context, tenantID string, task *inventory.Task) error {
	args := m.Called(ctx, tenantID, task)
	return args.Error(0)
}

func (m *TaskRepository) Get(ctx context.Context, tenantID, id string) (*inventory.Task, error) {
	args := m.Called(ctx, tenantID, id)
	if task, ok := args.Get(0).(*inventory.Task); ok {
		return task, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *TaskRepository) ListBySession(ctx context.Context, tenantID, sessionID string) ([]inventory.Task, error) {
	args := m.Called(ctx, tenantID, sessionID)
	if list, ok := args.Get(0).([]inventory.Task); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *TaskRepository) ListAssigned(ctx context.Context, tenantID, assigneeID string) ([]inventory.Task, error) {
	args := m.Called(ctx, tenantID, assigneeID)
	if list, ok := args.Get(0).([]inventory.Task); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *TaskRepository) TransitionStatus(ctx context.Context, tenantID, id string, from []inventory.TaskStatus, to inventory.TaskStatus, at time.Time) (bool, error) {
	args := m.Called(ctx, tenantID, id, from, to, at)
	return args.Bool(0), args.Error(1)
}

func (m *TaskRepository) AppendNotes(ctx context.Context, tenantID, id, notes string) error {
	args := m.Called(ctx, tenantID, id, notes)
	return args.Error(0)
}

// ScanEventRepository is a mock for inventory.ScanEventRepository.
type ScanEventRepository struct {
	mock.Mock
}

func (m *ScanEventRepository) Get(ctx context.Context, tenantID, sessionID, clientEventID string) (*inventory.ScanEvent, error) {
	args := m.Called(ctx, tenantID, sessionID, clientEventID)
	if ev, ok := args.Get(0).(*inventory.ScanEvent); ok {
		return ev, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *ScanEventRepository) Record(ctx context.Context, tenantID string, ev *inventory.ScanEvent) error {
	args := m.Called(ctx, tenantID, ev)
	return args.Error(0)
}

// Catalog is a mock for asset.Catalog.
type Catalog struct {
	mock.Mock
}

func (m *Catalog) Get(ctx context.Context, tenantID, id string) (*asset.Asset, error) {
	args := m.Called(ctx, tenantID, id)
	if a, ok := args.Get(0).(*asset.Asset); ok {
		return a, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *Catalog) FindByIdentifier(ctx context.Context, tenantID string, field asset.IdentifierField, value string) (*asset.Asset, error) {
	args := m.Called(ctx, tenantID, field, value)
	if a, ok := args.Get(0).(*asset.Asset); ok {
		return a, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *Catalog) List(ctx context.Context, tenantID string, scope asset.Scope) ([]asset.Asset, error) {
	args := m.Called(ctx, tenantID, scope)
	if list, ok := args.Get(0).([]asset.Asset); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *Catalog) GetLocation(ctx context.Context, tenantID, id string) (*asset.Location, error) {
	args := m.Called(ctx, tenantID, id)
	if loc, ok := args.Get(0).(*asset.Location); ok {
		return loc, args.Error(1)
	}
	return nil, args.Error(1)
}

// UserRepository is a mock for operator.Repository.
type UserRepository struct {
	mock.Mock
}

func (m *UserRepository) Create(ctx context.Context, tenantID string, user *operator.User) error {
	args := m.Called(ctx, tenantID, user)
	return args.Error(0)
}

func (m *UserRepository) Get(ctx context.Context, tenantID, id string) (*operator.User, error) {
	args := m.Called(ctx, tenantID, id)
	if user, ok := args.Get(0).(*operator.User); ok {
		return user, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *UserRepository) List(ctx context.Context, tenantID string) ([]operator.User, error) {
	args := m.Called(ctx, tenantID)
	if list, ok := args.Get(0).([]operator.User); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

// ActivityRepository is a mock for activity.Repository.
type ActivityRepository struct {
	mock.Mock
}

func (m *ActivityRepository) Log(ctx context.Context, tenantID string, entry *activity.ActivityEntry) error {
	args := m.Called(ctx, tenantID, entry)
	return args.Error(0)
}

func (m *ActivityRepository) List(ctx context.Context, tenantID string, opts activity.ListActivityOptions) ([]activity.ActivityEntry, error) {
	args := m.Called(ctx, tenantID, opts)
	if list, ok := args.Get(0).([]activity.ActivityEntry); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

// Publisher is a mock for inventory.EventPublisher.
type Publisher struct {
	mock.Mock
}

func (m *Publisher) Publish(ctx context.Context, event inventory.Event) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}
