package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rpggio/tally/internal/domain/activity"
	"github.com/rpggio/tally/internal/domain/asset"
	"github.com/rpggio/tally/internal/repository"
)

// errReplayed aborts a transaction whose client event id was recorded
// concurrently.
var errReplayed = errors.New("client event already recorded")

// ScanRequest is one code submission.
type ScanRequest struct {
	SessionID  string    `json:"session_id"`
	TaskID     *string   `json:"task_id,omitempty"`
	OperatorID string    `json:"operator_id"`
	Code       string    `json:"code"`
	ScannedAt  time.Time `json:"scanned_at,omitempty"`
	// ClientEventID makes the submission idempotent when set.
	ClientEventID string `json:"client_event_id,omitempty"`
}

// ItemCommand targets a single item for a manual override.
type ItemCommand struct {
	// SessionID, when set, must match the item's session.
	SessionID  string  `json:"session_id,omitempty"`
	ItemID     string  `json:"item_id"`
	TaskID     *string `json:"task_id,omitempty"`
	OperatorID string  `json:"operator_id"`
}

// UnexpectedRequest registers an asset found outside the expected set. The
// asset is identified by AssetID, or by Code when AssetID is empty.
type UnexpectedRequest struct {
	SessionID     string    `json:"session_id"`
	TaskID        *string   `json:"task_id,omitempty"`
	OperatorID    string    `json:"operator_id"`
	AssetID       string    `json:"asset_id,omitempty"`
	Code          string    `json:"code,omitempty"`
	ScannedAt     time.Time `json:"scanned_at,omitempty"`
	ClientEventID string    `json:"client_event_id,omitempty"`
}

// Scan reconciles a scanned code against the session. A code that matches
// no asset yields ResultNotFound and changes nothing.
func (s *Service) Scan(ctx context.Context, tenantID string, req ScanRequest) (*ScanOutcome, error) {
	if req.OperatorID == "" {
		return nil, fmt.Errorf("%w: operator is required", ErrInvalidInput)
	}

	unlock := s.locks.Lock(req.SessionID)
	defer unlock()

	if err := s.precheck(ctx, tenantID, req.SessionID, req.TaskID, req.OperatorID); err != nil {
		return nil, err
	}

	found, field, err := s.assets.ResolveCode(ctx, tenantID, req.Code)
	if err != nil && !errors.Is(err, asset.ErrAssetNotFound) {
		if errors.Is(err, asset.ErrInvalidCode) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		return nil, err
	}
	return s.scanLocked(ctx, tenantID, req, found, field)
}

// scanLocked applies a scan whose code is already resolved. found is nil
// when nothing matched. The caller holds the session lock.
func (s *Service) scanLocked(ctx context.Context, tenantID string, req ScanRequest, found *asset.Asset, field asset.IdentifierField) (*ScanOutcome, error) {
	if prior, err := s.lookupEvent(ctx, tenantID, req.SessionID, req.ClientEventID); err != nil {
		return nil, err
	} else if prior != nil {
		return s.replayAs(ctx, tenantID, prior, KindScan)
	}

	at := s.scanTime(req.ScannedAt)
	var (
		outcome *ScanOutcome
		mutated bool
	)
	err := s.store.WithinTx(ctx, func(tx Store) error {
		sess, err := s.loadSession(ctx, tx, tenantID, req.SessionID)
		if err != nil {
			return err
		}
		if err := requireInProgress(sess); err != nil {
			return err
		}

		if found == nil {
			outcome = &ScanOutcome{Result: ResultNotFound, Code: req.Code}
		} else {
			task, err := s.checkTask(ctx, tx, tenantID, sess, req.TaskID, req.OperatorID, true)
			if err != nil {
				return err
			}
			outcome, mutated, err = s.reconcile(ctx, tx, tenantID, sess, task, req.OperatorID, found, at)
			if err != nil {
				return err
			}
			outcome.Code = req.Code
			outcome.Asset = found
			outcome.MatchedBy = field
		}
		return s.recordEvent(ctx, tx, tenantID, req.ClientEventID, &ScanEvent{
			SessionID:  req.SessionID,
			Kind:       KindScan,
			Code:       req.Code,
			TaskID:     req.TaskID,
			OperatorID: req.OperatorID,
			ScannedAt:  at,
		}, outcome)
	})
	if errors.Is(err, errReplayed) {
		return s.replayByID(ctx, tenantID, req.SessionID, req.ClientEventID, KindScan)
	}
	if err != nil {
		return nil, err
	}

	if mutated {
		s.refreshAfterCommit(ctx, tenantID, req.SessionID)
	}
	if outcome.Result == ResultNewlyFound {
		s.record(ctx, tenantID, activity.ActivityEntry{
			SessionID:    &req.SessionID,
			TaskID:       req.TaskID,
			ItemID:       &outcome.Item.ID,
			ActorID:      &req.OperatorID,
			ActivityType: activity.TypeItemFound,
			Summary:      fmt.Sprintf("Scanned %s (%s)", outcome.Asset.Name, req.Code),
		})
	}
	return outcome, nil
}

// reconcile applies a resolved scan to the asset's item. It reports whether
// any row changed.
func (s *Service) reconcile(ctx context.Context, tx Store, tenantID string, sess *Session, task *Task, operatorID string, found *asset.Asset, at time.Time) (*ScanOutcome, bool, error) {
	item, err := tx.Items().GetByAsset(ctx, tenantID, sess.ID, found.ID)
	if errors.Is(err, repository.ErrNotFound) {
		return &ScanOutcome{Result: ResultUnexpected}, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("loading item: %w", err)
	}

	var taskID *string
	if task != nil {
		taskID = &task.ID
	}

	switch item.Status {
	case ItemFound:
		return &ScanOutcome{Result: ResultAlreadyFound, Item: item}, false, nil
	case ItemExpected, ItemMissing:
		won, err := tx.Items().MarkFound(ctx, tenantID, item.ID, operatorID, taskID, at)
		if err != nil {
			return nil, false, fmt.Errorf("marking item found: %w", err)
		}
		item, err = tx.Items().Get(ctx, tenantID, item.ID)
		if err != nil {
			return nil, false, fmt.Errorf("reloading item: %w", err)
		}
		if won {
			return &ScanOutcome{Result: ResultNewlyFound, Item: item}, true, nil
		}
		return &ScanOutcome{Result: ResultAlreadyFound, Item: item}, false, nil
	case ItemUnexpected:
		if err := tx.Items().TouchScanned(ctx, tenantID, item.ID, at); err != nil {
			return nil, false, fmt.Errorf("touching item: %w", err)
		}
		item, err = tx.Items().Get(ctx, tenantID, item.ID)
		if err != nil {
			return nil, false, fmt.Errorf("reloading item: %w", err)
		}
		return &ScanOutcome{Result: ResultAlreadyFound, Item: item}, true, nil
	default:
		return nil, false, fmt.Errorf("item %s has unknown status %q", item.ID, item.Status)
	}
}

// MarkFound forces an expected or missing item to found.
func (s *Service) MarkFound(ctx context.Context, tenantID string, cmd ItemCommand) (*Item, error) {
	return s.override(ctx, tenantID, cmd, ItemFound)
}

// MarkMissing forces an expected or found item to missing.
func (s *Service) MarkMissing(ctx context.Context, tenantID string, cmd ItemCommand) (*Item, error) {
	return s.override(ctx, tenantID, cmd, ItemMissing)
}

func (s *Service) override(ctx context.Context, tenantID string, cmd ItemCommand, target ItemStatus) (*Item, error) {
	if cmd.OperatorID == "" {
		return nil, fmt.Errorf("%w: operator is required", ErrInvalidInput)
	}
	item, err := s.loadItem(ctx, s.store, tenantID, cmd.ItemID)
	if err != nil {
		return nil, err
	}
	if cmd.SessionID != "" && cmd.SessionID != item.SessionID {
		return nil, fmt.Errorf("%w: item belongs to another session", ErrNotInScope)
	}

	unlock := s.locks.Lock(item.SessionID)
	defer unlock()

	var changed bool
	err = s.store.WithinTx(ctx, func(tx Store) error {
		sess, err := s.loadSession(ctx, tx, tenantID, item.SessionID)
		if err != nil {
			return err
		}
		if err := requireInProgress(sess); err != nil {
			return err
		}
		if _, err := s.checkTask(ctx, tx, tenantID, sess, cmd.TaskID, cmd.OperatorID, true); err != nil {
			return err
		}
		if item, err = s.loadItem(ctx, tx, tenantID, item.ID); err != nil {
			return err
		}

		if item.Status == target {
			return nil
		}
		if item.Status == ItemUnexpected {
			return fmt.Errorf("%w: item is unexpected", ErrInvalidTransition)
		}
		switch target {
		case ItemFound:
			changed, err = tx.Items().MarkFound(ctx, tenantID, item.ID, cmd.OperatorID, cmd.TaskID, s.now())
		case ItemMissing:
			changed, err = tx.Items().MarkMissing(ctx, tenantID, item.ID)
		}
		if err != nil {
			return fmt.Errorf("marking item %s: %w", target, err)
		}
		item, err = s.loadItem(ctx, tx, tenantID, item.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if !changed {
		return item, nil
	}

	s.refreshAfterCommit(ctx, tenantID, item.SessionID)
	typ := activity.TypeItemFound
	if target == ItemMissing {
		typ = activity.TypeItemMissing
	}
	s.record(ctx, tenantID, activity.ActivityEntry{
		SessionID:    &item.SessionID,
		TaskID:       cmd.TaskID,
		ItemID:       &item.ID,
		ActorID:      &cmd.OperatorID,
		ActivityType: typ,
		Summary:      fmt.Sprintf("Marked item %s", target),
	})
	return item, nil
}

// AddUnexpected registers an asset that was found but not expected. It
// returns the existing item, with created false, when the asset already has
// one in the session.
func (s *Service) AddUnexpected(ctx context.Context, tenantID string, req UnexpectedRequest) (*Item, bool, error) {
	if req.OperatorID == "" {
		return nil, false, fmt.Errorf("%w: operator is required", ErrInvalidInput)
	}

	unlock := s.locks.Lock(req.SessionID)
	defer unlock()

	if err := s.precheck(ctx, tenantID, req.SessionID, req.TaskID, req.OperatorID); err != nil {
		return nil, false, err
	}
	found, err := s.resolveAsset(ctx, tenantID, req.AssetID, req.Code)
	if err != nil {
		return nil, false, err
	}
	outcome, err := s.addUnexpectedLocked(ctx, tenantID, req, found)
	if err != nil {
		return nil, false, err
	}
	return outcome.Item, outcome.Result == ResultRegistered && !outcome.Duplicate, nil
}

func (s *Service) addUnexpectedLocked(ctx context.Context, tenantID string, req UnexpectedRequest, found *asset.Asset) (*ScanOutcome, error) {
	if prior, err := s.lookupEvent(ctx, tenantID, req.SessionID, req.ClientEventID); err != nil {
		return nil, err
	} else if prior != nil {
		return s.replayAs(ctx, tenantID, prior, KindUnexpected)
	}

	at := s.scanTime(req.ScannedAt)
	var outcome *ScanOutcome
	err := s.store.WithinTx(ctx, func(tx Store) error {
		sess, err := s.loadSession(ctx, tx, tenantID, req.SessionID)
		if err != nil {
			return err
		}
		if err := requireInProgress(sess); err != nil {
			return err
		}
		task, err := s.checkTask(ctx, tx, tenantID, sess, req.TaskID, req.OperatorID, true)
		if err != nil {
			return err
		}

		candidate := &Item{
			ID:         uuid.NewString(),
			TenantID:   tenantID,
			SessionID:  sess.ID,
			AssetID:    found.ID,
			LocationID: found.LocationID,
			Status:     ItemUnexpected,
			ScannedAt:  &at,
			ScannedBy:  &req.OperatorID,
			CreatedAt:  s.now(),
		}
		if task != nil {
			candidate.TaskID = &task.ID
		}
		item, created, err := tx.Items().InsertOrGet(ctx, tenantID, candidate)
		if err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return fmt.Errorf("%w: %v", ErrTransient, err)
			}
			return fmt.Errorf("registering unexpected item: %w", err)
		}

		outcome = &ScanOutcome{Result: ResultAlreadyFound, Code: req.Code, Asset: found, Item: item}
		if created {
			outcome.Result = ResultRegistered
		}
		return s.recordEvent(ctx, tx, tenantID, req.ClientEventID, &ScanEvent{
			SessionID:  req.SessionID,
			Kind:       KindUnexpected,
			Code:       req.Code,
			TaskID:     req.TaskID,
			OperatorID: req.OperatorID,
			ScannedAt:  at,
		}, outcome)
	})
	if errors.Is(err, errReplayed) {
		return s.replayByID(ctx, tenantID, req.SessionID, req.ClientEventID, KindUnexpected)
	}
	if err != nil {
		return nil, err
	}

	if outcome.Result == ResultRegistered {
		s.refreshAfterCommit(ctx, tenantID, req.SessionID)
		s.record(ctx, tenantID, activity.ActivityEntry{
			SessionID:    &req.SessionID,
			TaskID:       req.TaskID,
			ItemID:       &outcome.Item.ID,
			ActorID:      &req.OperatorID,
			ActivityType: activity.TypeItemUnexpected,
			Summary:      fmt.Sprintf("Registered unexpected asset %s", found.Name),
		})
	}
	return outcome, nil
}

// precheck rejects requests against a session that is not running or a task
// the operator cannot use, before any catalog lookup.
func (s *Service) precheck(ctx context.Context, tenantID, sessionID string, taskID *string, operatorID string) error {
	sess, err := s.loadSession(ctx, s.store, tenantID, sessionID)
	if err != nil {
		return err
	}
	if err := requireInProgress(sess); err != nil {
		return err
	}
	_, err = s.checkTask(ctx, s.store, tenantID, sess, taskID, operatorID, false)
	return err
}

func (s *Service) resolveAsset(ctx context.Context, tenantID, assetID, code string) (*asset.Asset, error) {
	if assetID != "" {
		return s.assets.Get(ctx, tenantID, assetID)
	}
	found, _, err := s.assets.ResolveCode(ctx, tenantID, code)
	if errors.Is(err, asset.ErrInvalidCode) {
		return nil, fmt.Errorf("%w: asset id or code is required", ErrInvalidInput)
	}
	return found, err
}

// scanTime uses the client's timestamp unless it is unset or ahead of the
// server clock.
func (s *Service) scanTime(client time.Time) time.Time {
	now := s.now()
	if client.IsZero() || client.After(now) {
		return now
	}
	return client
}

func (s *Service) loadItem(ctx context.Context, store Store, tenantID, id string) (*Item, error) {
	if id == "" {
		return nil, ErrInvalidInput
	}
	item, err := store.Items().Get(ctx, tenantID, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrItemNotFound
		}
		return nil, fmt.Errorf("loading item: %w", err)
	}
	return item, nil
}
