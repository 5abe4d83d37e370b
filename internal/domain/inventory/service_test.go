package inventory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/rpggio/tally/internal/domain/asset"
	"github.com/rpggio/tally/internal/domain/inventory"
	"github.com/rpggio/tally/internal/repository"
	"github.com/rpggio/tally/internal/repository/mocks"
)

var fixedNow = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func newMockService(store *mocks.Store, catalog *mocks.Catalog, publisher inventory.EventPublisher) *inventory.Service {
	return inventory.NewService(store, catalog, nil, nil, publisher, nil,
		inventory.WithClock(func() time.Time { return fixedNow }))
}

func TestService_CompleteDraftMutatesNothing(t *testing.T) {
	ctx := context.Background()
	store := mocks.NewStore()
	svc := newMockService(store, &mocks.Catalog{}, nil)

	store.SessionRepo.On("Get", ctx, "tenant1", "s1").
		Return(&inventory.Session{ID: "s1", TenantID: "tenant1", Status: inventory.StatusDraft}, nil)

	_, err := svc.CompleteSession(ctx, "tenant1", "s1", "manager")
	require.ErrorIs(t, err, inventory.ErrInvalidTransition)

	store.SessionRepo.AssertNotCalled(t, "TransitionStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	store.ItemRepo.AssertNotCalled(t, "SweepExpected", mock.Anything, mock.Anything, mock.Anything)
	store.AssertExpectations(t)
}

func TestService_CompleteLosesRace(t *testing.T) {
	ctx := context.Background()
	store := mocks.NewStore()
	publisher := &mocks.Publisher{}
	svc := newMockService(store, &mocks.Catalog{}, publisher)

	store.SessionRepo.On("Get", ctx, "tenant1", "s1").
		Return(&inventory.Session{ID: "s1", TenantID: "tenant1", Status: inventory.StatusInProgress}, nil)
	store.SessionRepo.On("TransitionStatus", ctx, "tenant1", "s1",
		[]inventory.SessionStatus{inventory.StatusInProgress}, inventory.StatusCompleted, fixedNow).
		Return(false, nil)

	_, err := svc.CompleteSession(ctx, "tenant1", "s1", "manager")
	require.ErrorIs(t, err, inventory.ErrInvalidTransition)
	store.ItemRepo.AssertNotCalled(t, "SweepExpected", mock.Anything, mock.Anything, mock.Anything)
	publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}

func TestService_ScanSurvivesRefreshFailure(t *testing.T) {
	ctx := context.Background()
	store := mocks.NewStore()
	catalog := &mocks.Catalog{}
	svc := newMockService(store, catalog, nil)

	sess := &inventory.Session{ID: "s1", TenantID: "tenant1", Status: inventory.StatusInProgress}
	chair := &asset.Asset{ID: "a1", Code: "A-1", Name: "Chair"}
	expected := &inventory.Item{ID: "i1", SessionID: "s1", AssetID: "a1", Status: inventory.ItemExpected}
	found := &inventory.Item{ID: "i1", SessionID: "s1", AssetID: "a1", Status: inventory.ItemFound, ScannedAt: &fixedNow}

	store.SessionRepo.On("Get", ctx, "tenant1", "s1").Return(sess, nil)
	catalog.On("FindByIdentifier", ctx, "tenant1", asset.FieldBarcode, "A-1").Return(nil, repository.ErrNotFound)
	catalog.On("FindByIdentifier", ctx, "tenant1", asset.FieldCode, "A-1").Return(chair, nil)
	store.ItemRepo.On("GetByAsset", ctx, "tenant1", "s1", "a1").Return(expected, nil)
	store.ItemRepo.On("MarkFound", ctx, "tenant1", "i1", "op1", (*string)(nil), fixedNow).Return(true, nil)
	store.ItemRepo.On("Get", ctx, "tenant1", "i1").Return(found, nil)
	store.ItemRepo.On("Counts", ctx, "tenant1", "s1", (*string)(nil)).Return(inventory.Counters{}, errors.New("disk full"))

	out, err := svc.Scan(ctx, "tenant1", inventory.ScanRequest{SessionID: "s1", OperatorID: "op1", Code: "A-1"})
	require.NoError(t, err)
	require.Equal(t, inventory.ResultNewlyFound, out.Result)
	require.Equal(t, asset.FieldCode, out.MatchedBy)
	store.SessionRepo.AssertNotCalled(t, "UpdateCounters", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	catalog.AssertNotCalled(t, "FindByIdentifier", mock.Anything, mock.Anything, asset.FieldTag, mock.Anything)
}

func TestService_ScanFailureIsAtomic(t *testing.T) {
	ctx := context.Background()
	store := mocks.NewStore()
	catalog := &mocks.Catalog{}
	svc := newMockService(store, catalog, nil)

	store.SessionRepo.On("Get", ctx, "tenant1", "s1").
		Return(&inventory.Session{ID: "s1", TenantID: "tenant1", Status: inventory.StatusInProgress}, nil)
	catalog.On("FindByIdentifier", ctx, "tenant1", asset.FieldBarcode, "A-1").
		Return(&asset.Asset{ID: "a1"}, nil)
	store.TxErr = errors.New("database is locked")

	_, err := svc.Scan(ctx, "tenant1", inventory.ScanRequest{SessionID: "s1", OperatorID: "op1", Code: "A-1"})
	require.Error(t, err)
	store.ItemRepo.AssertNotCalled(t, "Counts", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestService_PublishFailureDoesNotFailCompletion(t *testing.T) {
	ctx := context.Background()
	store := mocks.NewStore()
	publisher := &mocks.Publisher{}
	svc := newMockService(store, &mocks.Catalog{}, publisher)

	counters := inventory.Counters{Expected: 2, Matched: 1, Scanned: 1, Missing: 1}
	store.SessionRepo.On("Get", ctx, "tenant1", "s1").
		Return(&inventory.Session{ID: "s1", TenantID: "tenant1", Name: "Q1", Status: inventory.StatusInProgress}, nil)
	store.SessionRepo.On("TransitionStatus", ctx, "tenant1", "s1",
		[]inventory.SessionStatus{inventory.StatusInProgress}, inventory.StatusCompleted, fixedNow).
		Return(true, nil)
	store.ItemRepo.On("SweepExpected", ctx, "tenant1", "s1").Return(int64(1), nil)
	store.ItemRepo.On("Counts", ctx, "tenant1", "s1", (*string)(nil)).Return(counters, nil)
	store.SessionRepo.On("UpdateCounters", ctx, "tenant1", "s1", counters).Return(nil)
	publisher.On("Publish", ctx, mock.MatchedBy(func(ev inventory.Event) bool {
		return ev.Type == inventory.EventSessionCompleted && ev.Counters != nil && ev.Counters.Missing == 1
	})).Return(errors.New("nats: connection closed"))

	sess, err := svc.CompleteSession(ctx, "tenant1", "s1", "manager")
	require.NoError(t, err)
	require.Equal(t, inventory.StatusCompleted, sess.Status)
	require.Equal(t, fixedNow, *sess.CompletedAt)
	require.Equal(t, counters, sess.Counters)
	store.AssertExpectations(t)
	publisher.AssertExpectations(t)
}

func TestService_CreateSessionValidation(t *testing.T) {
	ctx := context.Background()
	store := mocks.NewStore()
	svc := newMockService(store, &mocks.Catalog{}, nil)

	_, _, err := svc.CreateSession(ctx, "tenant1", inventory.CreateSessionRequest{Name: " ", CreatedBy: "m"})
	require.ErrorIs(t, err, inventory.ErrInvalidInput)

	_, _, err = svc.CreateSession(ctx, "tenant1", inventory.CreateSessionRequest{
		Name: "Q1", CreatedBy: "m", Scope: asset.Scope{Type: "building"},
	})
	require.ErrorIs(t, err, inventory.ErrInvalidInput)

	_, _, err = svc.CreateSession(ctx, "tenant1", inventory.CreateSessionRequest{
		Name: "Q1", CreatedBy: "m", Assignments: []inventory.Assignment{{AssigneeID: ""}},
	})
	require.ErrorIs(t, err, inventory.ErrInvalidInput)
	store.SessionRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
}

func TestService_StartResolvesScopeBeforeTransition(t *testing.T) {
	ctx := context.Background()
	store := mocks.NewStore()
	catalog := &mocks.Catalog{}
	svc := newMockService(store, catalog, nil)

	scope := asset.Scope{Type: asset.ScopeLocation, IDs: []string{"A"}}
	store.SessionRepo.On("Get", ctx, "tenant1", "s1").
		Return(&inventory.Session{ID: "s1", TenantID: "tenant1", Status: inventory.StatusDraft, Scope: scope}, nil)
	catalog.On("List", ctx, "tenant1", scope).Return(nil, errors.New("catalog offline"))

	_, err := svc.StartSession(ctx, "tenant1", "s1", "manager")
	require.Error(t, err)
	store.SessionRepo.AssertNotCalled(t, "TransitionStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	store.ItemRepo.AssertNotCalled(t, "CreateBatch", mock.Anything, mock.Anything, mock.Anything)
}
