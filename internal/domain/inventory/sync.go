package inventory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rpggio/tally/internal/domain/asset"
	"github.com/rpggio/tally/internal/repository"
)

// SyncEvent is one offline submission from a device.
type SyncEvent struct {
	ClientEventID string    `json:"client_event_id"`
	Kind          EventKind `json:"kind"`
	Code          string    `json:"code,omitempty"`
	AssetID       string    `json:"asset_id,omitempty"`
	ScannedAt     time.Time `json:"scanned_at"`
}

// SyncRequest is a batch of offline submissions for one task.
type SyncRequest struct {
	SessionID  string      `json:"session_id"`
	TaskID     *string     `json:"task_id,omitempty"`
	OperatorID string      `json:"operator_id"`
	Events     []SyncEvent `json:"events"`
}

// SyncEventResult reports how one submission was applied.
type SyncEventResult struct {
	ClientEventID string       `json:"client_event_id"`
	Outcome       *ScanOutcome `json:"outcome,omitempty"`
	Err           error        `json:"-"`
	Error         string       `json:"error,omitempty"`
}

// SyncResult lists per-event results in submission order.
type SyncResult struct {
	Results  []SyncEventResult `json:"results"`
	Applied  int               `json:"applied"`
	Replayed int               `json:"replayed"`
	Failed   int               `json:"failed"`
}

type resolved struct {
	asset *asset.Asset
	field asset.IdentifierField
	err   error
}

// Sync applies a batch of offline events in client timestamp order. Each
// event commits on its own; an event that fails is reported and the rest are
// still applied. The whole batch is rejected when the session or task cannot
// take scans.
func (s *Service) Sync(ctx context.Context, tenantID string, req SyncRequest) (*SyncResult, error) {
	if req.OperatorID == "" {
		return nil, fmt.Errorf("%w: operator is required", ErrInvalidInput)
	}
	for _, ev := range req.Events {
		if ev.Kind != KindScan && ev.Kind != KindUnexpected {
			return nil, fmt.Errorf("%w: unknown event kind %q", ErrInvalidInput, ev.Kind)
		}
	}

	unlock := s.locks.Lock(req.SessionID)
	defer unlock()

	if err := s.precheck(ctx, tenantID, req.SessionID, req.TaskID, req.OperatorID); err != nil {
		return nil, err
	}

	lookups, err := s.resolveBatch(ctx, tenantID, req.Events)
	if err != nil {
		return nil, err
	}

	// Effective times are fixed once so the ordering is stable against the clock.
	order := make([]int, len(req.Events))
	times := make([]time.Time, len(req.Events))
	for i, ev := range req.Events {
		order[i] = i
		times[i] = s.scanTime(ev.ScannedAt)
	}
	sort.SliceStable(order, func(a, b int) bool {
		return times[order[a]].Before(times[order[b]])
	})

	result := &SyncResult{Results: make([]SyncEventResult, len(req.Events))}
	for _, i := range order {
		ev := req.Events[i]
		res := SyncEventResult{ClientEventID: ev.ClientEventID}
		res.Outcome, res.Err = s.applySyncEvent(ctx, tenantID, req, ev, lookups[i])
		switch {
		case res.Err != nil:
			res.Error = res.Err.Error()
			result.Failed++
		case res.Outcome.Duplicate:
			result.Replayed++
		default:
			result.Applied++
		}
		result.Results[i] = res
	}

	s.logger.Info("sync applied", "session_id", req.SessionID, "events", len(req.Events),
		"applied", result.Applied, "replayed", result.Replayed, "failed", result.Failed)
	return result, nil
}

// resolveBatch looks up every event's asset concurrently. Misses are kept
// per event; any other catalog error fails the batch.
func (s *Service) resolveBatch(ctx context.Context, tenantID string, events []SyncEvent) ([]resolved, error) {
	lookups := make([]resolved, len(events))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.syncWorkers)
	for i, ev := range events {
		g.Go(func() error {
			var r resolved
			switch {
			case ev.Kind == KindUnexpected && ev.AssetID != "":
				r.asset, r.err = s.assets.Get(gctx, tenantID, ev.AssetID)
			default:
				r.asset, r.field, r.err = s.assets.ResolveCode(gctx, tenantID, ev.Code)
			}
			if r.err != nil && !errors.Is(r.err, asset.ErrAssetNotFound) && !errors.Is(r.err, asset.ErrInvalidCode) {
				return r.err
			}
			lookups[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("resolving codes: %w", err)
	}
	return lookups, nil
}

func (s *Service) applySyncEvent(ctx context.Context, tenantID string, req SyncRequest, ev SyncEvent, r resolved) (*ScanOutcome, error) {
	if ev.Kind == KindUnexpected {
		if r.err != nil {
			if prior, err := s.lookupEvent(ctx, tenantID, req.SessionID, ev.ClientEventID); err == nil && prior != nil {
				return s.replayAs(ctx, tenantID, prior, KindUnexpected)
			}
			return nil, r.err
		}
		return s.addUnexpectedLocked(ctx, tenantID, UnexpectedRequest{
			SessionID:     req.SessionID,
			TaskID:        req.TaskID,
			OperatorID:    req.OperatorID,
			AssetID:       ev.AssetID,
			Code:          ev.Code,
			ScannedAt:     ev.ScannedAt,
			ClientEventID: ev.ClientEventID,
		}, r.asset)
	}

	if errors.Is(r.err, asset.ErrInvalidCode) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, r.err)
	}
	return s.scanLocked(ctx, tenantID, ScanRequest{
		SessionID:     req.SessionID,
		TaskID:        req.TaskID,
		OperatorID:    req.OperatorID,
		Code:          ev.Code,
		ScannedAt:     ev.ScannedAt,
		ClientEventID: ev.ClientEventID,
	}, r.asset, r.field)
}

// lookupEvent returns the recorded submission for clientEventID, or nil.
func (s *Service) lookupEvent(ctx context.Context, tenantID, sessionID, clientEventID string) (*ScanEvent, error) {
	if clientEventID == "" {
		return nil, nil
	}
	ev, err := s.store.ScanEvents().Get(ctx, tenantID, sessionID, clientEventID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("loading scan event: %w", err)
	}
	return ev, nil
}

// recordEvent stores the submission alongside its effect. It is a no-op for
// events without a client id.
func (s *Service) recordEvent(ctx context.Context, tx Store, tenantID, clientEventID string, ev *ScanEvent, outcome *ScanOutcome) error {
	if clientEventID == "" {
		return nil
	}
	ev.TenantID = tenantID
	ev.ClientEventID = clientEventID
	ev.Result = outcome.Result
	ev.RecordedAt = s.now()
	if outcome.Asset != nil {
		ev.AssetID = &outcome.Asset.ID
	}
	if outcome.Item != nil {
		ev.ItemID = &outcome.Item.ID
	}
	if err := tx.ScanEvents().Record(ctx, tenantID, ev); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return errReplayed
		}
		return fmt.Errorf("recording scan event: %w", err)
	}
	return nil
}

func (s *Service) replayByID(ctx context.Context, tenantID, sessionID, clientEventID string, kind EventKind) (*ScanOutcome, error) {
	prior, err := s.lookupEvent(ctx, tenantID, sessionID, clientEventID)
	if err != nil {
		return nil, err
	}
	if prior == nil {
		return nil, fmt.Errorf("%w: scan event %s vanished", ErrTransient, clientEventID)
	}
	return s.replayAs(ctx, tenantID, prior, kind)
}

// replayAs replays a recorded submission of the same kind. A client event id
// reused for the other kind is rejected.
func (s *Service) replayAs(ctx context.Context, tenantID string, ev *ScanEvent, kind EventKind) (*ScanOutcome, error) {
	if ev.Kind != kind {
		return nil, fmt.Errorf("%w: client event %s was already used for a %s", ErrInvalidInput, ev.ClientEventID, ev.Kind)
	}
	return s.replay(ctx, tenantID, ev), nil
}

// replay rebuilds the outcome of a recorded submission from current state.
func (s *Service) replay(ctx context.Context, tenantID string, ev *ScanEvent) *ScanOutcome {
	out := &ScanOutcome{Result: ev.Result, Code: ev.Code, Duplicate: true}
	if ev.AssetID != nil {
		if a, err := s.assets.Get(ctx, tenantID, *ev.AssetID); err == nil {
			out.Asset = a
		}
	}
	if ev.ItemID != nil {
		if item, err := s.store.Items().Get(ctx, tenantID, *ev.ItemID); err == nil {
			out.Item = item
		}
	}
	return out
}
