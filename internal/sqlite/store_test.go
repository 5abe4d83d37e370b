package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/rpggio/tally/internal/domain/asset"
	"github.com/rpggio/tally/internal/domain/inventory"
	"github.com/rpggio/tally/internal/repository"
	"github.com/stretchr/testify/require"
)

func TestSessionRepository_TransitionStatus(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	insertSession(t, db, "s1", "tenant1", inventory.StatusDraft)

	repo := NewSessionRepository(db)
	now := time.Now()

	ok, err := repo.TransitionStatus(ctx, "tenant1", "s1",
		[]inventory.SessionStatus{inventory.StatusDraft}, inventory.StatusInProgress, now)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = repo.TransitionStatus(ctx, "tenant1", "s1",
		[]inventory.SessionStatus{inventory.StatusDraft}, inventory.StatusInProgress, now)
	require.NoError(t, err)
	require.False(t, ok, "second start must not apply")

	ok, err = repo.TransitionStatus(ctx, "tenant2", "s1",
		[]inventory.SessionStatus{inventory.StatusInProgress}, inventory.StatusCompleted, now)
	require.NoError(t, err)
	require.False(t, ok, "other tenant must not see the session")

	loaded, err := repo.Get(ctx, "tenant1", "s1")
	require.NoError(t, err)
	require.Equal(t, inventory.StatusInProgress, loaded.Status)
	require.NotNil(t, loaded.StartedAt)
	require.Nil(t, loaded.CompletedAt)
}

func TestSessionRepository_ScopeAndList(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	repo := NewSessionRepository(db)

	require.NoError(t, repo.Create(ctx, "tenant1", &inventory.Session{
		ID:        "s1",
		Name:      "Warehouse",
		Scope:     asset.Scope{Type: asset.ScopeLocation, IDs: []string{"A", "B"}},
		Status:    inventory.StatusDraft,
		CreatedBy: "manager",
		CreatedAt: time.Now(),
	}))
	insertSession(t, db, "s2", "tenant1", inventory.StatusInProgress)

	loaded, err := repo.Get(ctx, "tenant1", "s1")
	require.NoError(t, err)
	require.Equal(t, asset.ScopeLocation, loaded.Scope.Type)
	require.Equal(t, []string{"A", "B"}, loaded.Scope.IDs)

	all, err := repo.List(ctx, "tenant1", inventory.ListSessionsOptions{})
	require.NoError(t, err)
	require.Len(t, all, 2)

	running, err := repo.List(ctx, "tenant1", inventory.ListSessionsOptions{
		Statuses: []inventory.SessionStatus{inventory.StatusInProgress},
	})
	require.NoError(t, err)
	require.Len(t, running, 1)
	require.Equal(t, "s2", running[0].ID)

	_, err = repo.Get(ctx, "tenant2", "s1")
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestItemRepository_ConditionalUpdates(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	insertSession(t, db, "s1", "tenant1", inventory.StatusInProgress)
	items := NewStore(db).Items()

	now := time.Now()
	require.NoError(t, items.CreateBatch(ctx, "tenant1", []inventory.Item{
		{ID: "i1", SessionID: "s1", AssetID: "a1", LocationID: ptr("A"), Status: inventory.ItemExpected, CreatedAt: now},
		{ID: "i2", SessionID: "s1", AssetID: "a2", LocationID: ptr("B"), Status: inventory.ItemExpected, CreatedAt: now},
	}))

	won, err := items.MarkFound(ctx, "tenant1", "i1", "op1", nil, now)
	require.NoError(t, err)
	require.True(t, won)

	won, err = items.MarkFound(ctx, "tenant1", "i1", "op2", nil, now)
	require.NoError(t, err)
	require.False(t, won, "found item must not be found twice")

	loaded, err := items.Get(ctx, "tenant1", "i1")
	require.NoError(t, err)
	require.Equal(t, inventory.ItemFound, loaded.Status)
	require.Equal(t, "op1", *loaded.ScannedBy)

	changed, err := items.MarkMissing(ctx, "tenant1", "i1")
	require.NoError(t, err)
	require.True(t, changed)
	loaded, err = items.Get(ctx, "tenant1", "i1")
	require.NoError(t, err)
	require.Equal(t, inventory.ItemMissing, loaded.Status)
	require.Nil(t, loaded.ScannedAt)
	require.Nil(t, loaded.ScannedBy)

	swept, err := items.SweepExpected(ctx, "tenant1", "s1")
	require.NoError(t, err)
	require.Equal(t, int64(1), swept)

	counts, err := items.Counts(ctx, "tenant1", "s1", nil)
	require.NoError(t, err)
	require.Equal(t, inventory.Counters{Expected: 2, Missing: 2}, counts)

	scoped, err := items.List(ctx, "tenant1", "s1", inventory.ListItemsOptions{LocationID: ptr("B")})
	require.NoError(t, err)
	require.Len(t, scoped, 1)
	require.Equal(t, "a2", scoped[0].AssetID)
}

func TestItemRepository_InsertOrGet(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	insertSession(t, db, "s1", "tenant1", inventory.StatusInProgress)
	items := NewStore(db).Items()

	now := time.Now()
	first := &inventory.Item{
		ID: "i1", SessionID: "s1", AssetID: "a9", Status: inventory.ItemUnexpected,
		ScannedAt: &now, ScannedBy: ptr("op1"), CreatedAt: now,
	}
	got, created, err := items.InsertOrGet(ctx, "tenant1", first)
	require.NoError(t, err)
	require.True(t, created)
	require.Equal(t, "i1", got.ID)

	second := &inventory.Item{
		ID: "i2", SessionID: "s1", AssetID: "a9", Status: inventory.ItemUnexpected, CreatedAt: now,
	}
	got, created, err = items.InsertOrGet(ctx, "tenant1", second)
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, "i1", got.ID, "loser must reuse the winner's row")

	counts, err := items.Counts(ctx, "tenant1", "s1", nil)
	require.NoError(t, err)
	require.Equal(t, inventory.Counters{Scanned: 1, Unexpected: 1}, counts)
}

func TestStore_WithinTxRollsBack(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	store := NewStore(db)
	insertSession(t, db, "s1", "tenant1", inventory.StatusDraft)

	boom := errors.New("boom")
	err := store.WithinTx(ctx, func(tx inventory.Store) error {
		ok, err := tx.Sessions().TransitionStatus(ctx, "tenant1", "s1",
			[]inventory.SessionStatus{inventory.StatusDraft}, inventory.StatusInProgress, time.Now())
		require.NoError(t, err)
		require.True(t, ok)
		return boom
	})
	require.ErrorIs(t, err, boom)

	loaded, err := store.Sessions().Get(ctx, "tenant1", "s1")
	require.NoError(t, err)
	require.Equal(t, inventory.StatusDraft, loaded.Status)
}

func TestStore_LockContentionIsTransient(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "tally.db")

	holder, err := New(path)
	require.NoError(t, err)
	defer holder.Close()
	require.NoError(t, holder.RunMigrations())
	insertSession(t, holder, "s1", "tenant1", inventory.StatusDraft)

	waiter, err := New(path)
	require.NoError(t, err)
	defer waiter.Close()
	_, err = waiter.Exec("PRAGMA busy_timeout = 50")
	require.NoError(t, err)

	lock, err := holder.BeginTx(ctx, nil)
	require.NoError(t, err)

	store := NewStore(waiter)
	transition := func(tx inventory.Store) error {
		_, err := tx.Sessions().TransitionStatus(ctx, "tenant1", "s1",
			[]inventory.SessionStatus{inventory.StatusDraft}, inventory.StatusInProgress, time.Now())
		return err
	}
	err = store.WithinTx(ctx, transition)
	require.ErrorIs(t, err, inventory.ErrTransient)

	require.NoError(t, lock.Rollback())
	require.NoError(t, store.WithinTx(ctx, transition))
}

func TestTaskRepository_Lifecycle(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	insertSession(t, db, "s1", "tenant1", inventory.StatusInProgress)
	insertSession(t, db, "s2", "tenant1", inventory.StatusDraft)
	tasks := NewStore(db).Tasks()

	now := time.Now()
	require.NoError(t, tasks.Create(ctx, "tenant1", &inventory.Task{
		ID: "t1", SessionID: "s1", AssigneeID: "op1", LocationID: ptr("A"), Status: inventory.TaskPending, CreatedAt: now,
	}))
	require.NoError(t, tasks.Create(ctx, "tenant1", &inventory.Task{
		ID: "t2", SessionID: "s2", AssigneeID: "op1", Status: inventory.TaskPending, CreatedAt: now,
	}))

	assigned, err := tasks.ListAssigned(ctx, "tenant1", "op1")
	require.NoError(t, err)
	require.Len(t, assigned, 1, "tasks of draft sessions are not listed")
	require.Equal(t, "t1", assigned[0].ID)

	ok, err := tasks.TransitionStatus(ctx, "tenant1", "t1",
		[]inventory.TaskStatus{inventory.TaskPending, inventory.TaskInProgress}, inventory.TaskCompleted, now)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, tasks.AppendNotes(ctx, "tenant1", "t1", "shelf 3 blocked"))
	require.NoError(t, tasks.AppendNotes(ctx, "tenant1", "t1", "done"))

	loaded, err := tasks.Get(ctx, "tenant1", "t1")
	require.NoError(t, err)
	require.Equal(t, inventory.TaskCompleted, loaded.Status)
	require.NotNil(t, loaded.CompletedAt)
	require.NotNil(t, loaded.StartedAt)
	require.Equal(t, "shelf 3 blocked\ndone", loaded.Notes)

	ok, err = tasks.TransitionStatus(ctx, "tenant1", "t1",
		[]inventory.TaskStatus{inventory.TaskPending, inventory.TaskInProgress}, inventory.TaskCompleted, now)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestScanEventRepository_Duplicate(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	insertSession(t, db, "s1", "tenant1", inventory.StatusInProgress)
	events := NewStore(db).ScanEvents()

	ev := &inventory.ScanEvent{
		SessionID:     "s1",
		ClientEventID: "dev-1",
		Kind:          inventory.KindScan,
		Code:          "A-1",
		AssetID:       ptr("a1"),
		OperatorID:    "op1",
		Result:        inventory.ResultNewlyFound,
		ScannedAt:     time.Now(),
		RecordedAt:    time.Now(),
	}
	require.NoError(t, events.Record(ctx, "tenant1", ev))
	require.ErrorIs(t, events.Record(ctx, "tenant1", ev), repository.ErrDuplicate)

	loaded, err := events.Get(ctx, "tenant1", "s1", "dev-1")
	require.NoError(t, err)
	require.Equal(t, inventory.ResultNewlyFound, loaded.Result)
	require.Equal(t, "a1", *loaded.AssetID)
	require.Nil(t, loaded.ItemID)

	_, err = events.Get(ctx, "tenant1", "s1", "dev-2")
	require.ErrorIs(t, err, repository.ErrNotFound)
}
