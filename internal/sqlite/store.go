package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rpggio/tally/internal/domain/inventory"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store implements inventory.Store for SQLite
type Store struct {
	db *DB
	q  querier
	tx bool
}

// NewStore creates a Store over db
func NewStore(db *DB) *Store {
	return &Store{db: db, q: db.DB}
}

func (s *Store) Sessions() inventory.SessionRepository { return &SessionRepository{q: s.q} }

func (s *Store) Items() inventory.ItemRepository { return &ItemRepository{q: s.q} }

func (s *Store) Tasks() inventory.TaskRepository { return &TaskRepository{q: s.q} }

func (s *Store) ScanEvents() inventory.ScanEventRepository { return &ScanEventRepository{q: s.q} }

// WithinTx runs fn in a transaction. A Store that is already transactional
// runs fn directly. Lock contention that outlasts busy_timeout is reported
// as inventory.ErrTransient.
func (s *Store) WithinTx(ctx context.Context, fn func(tx inventory.Store) error) error {
	if s.tx {
		return fn(s)
	}
	return busyAsTransient(s.withinTx(ctx, fn))
}

func (s *Store) withinTx(ctx context.Context, fn func(tx inventory.Store) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&Store{db: s.db, q: tx, tx: true}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func busyAsTransient(err error) error {
	if err == nil || errors.Is(err, inventory.ErrTransient) || !isBusy(err) {
		return err
	}
	return fmt.Errorf("%w: %v", inventory.ErrTransient, err)
}
