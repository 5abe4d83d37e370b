package transport

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/rpggio/tally/internal/apierr"
	"github.com/rpggio/tally/internal/domain/inventory"
	"github.com/rpggio/tally/internal/domain/operator"
)

// DeviceService defines the engine operations used by handheld scanners.
type DeviceService interface {
	ListAssignedTasks(ctx context.Context, tenantID, operatorID string) ([]inventory.Task, error)
	LookupTask(ctx context.Context, tenantID, taskID, operatorID string) (*inventory.Task, error)
	GetTask(ctx context.Context, tenantID, taskID, operatorID string) (*inventory.TaskDetail, error)
	Scan(ctx context.Context, tenantID string, req inventory.ScanRequest) (*inventory.ScanOutcome, error)
	AddUnexpected(ctx context.Context, tenantID string, req inventory.UnexpectedRequest) (*inventory.Item, bool, error)
	CompleteTask(ctx context.Context, tenantID, taskID, operatorID, notes string) (*inventory.Task, error)
	Sync(ctx context.Context, tenantID string, req inventory.SyncRequest) (*inventory.SyncResult, error)
}

// DeviceScanRequest is the body of POST /tasks/{taskID}/scans.
type DeviceScanRequest struct {
	Code          string    `json:"code"`
	ScannedAt     time.Time `json:"scanned_at,omitempty"`
	ClientEventID string    `json:"client_event_id,omitempty"`
}

// DeviceUnexpectedRequest is the body of POST /tasks/{taskID}/unexpected.
type DeviceUnexpectedRequest struct {
	AssetID       string    `json:"asset_id,omitempty"`
	Code          string    `json:"code,omitempty"`
	ScannedAt     time.Time `json:"scanned_at,omitempty"`
	ClientEventID string    `json:"client_event_id,omitempty"`
}

type deviceCompleteRequest struct {
	Notes string `json:"notes,omitempty"`
}

// DeviceSyncRequest is the body of POST /tasks/{taskID}/sync.
type DeviceSyncRequest struct {
	Events []inventory.SyncEvent `json:"events"`
}

func (s *Server) deviceRoutes(r chi.Router) {
	r.Use(s.requirePermission(operator.PermExecute))
	r.Get("/tasks", s.listTasks)
	r.Route("/tasks/{taskID}", func(r chi.Router) {
		r.Get("/", s.getTask)
		r.Post("/scans", s.scan)
		r.Post("/unexpected", s.addUnexpected)
		r.Post("/complete", s.completeTask)
		r.Post("/sync", s.sync)
	})
}

func (s *Server) requirePermission(perm operator.Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if s.users != nil {
				p, _ := PrincipalFromContext(r.Context())
				if err := s.users.Authorize(r.Context(), p.TenantID, p.UserID, perm); err != nil {
					s.fail(w, r, err)
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (s *Server) listTasks(w http.ResponseWriter, r *http.Request) {
	p, _ := PrincipalFromContext(r.Context())
	tasks, err := s.device.ListAssignedTasks(r.Context(), p.TenantID, p.UserID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if tasks == nil {
		tasks = []inventory.Task{}
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (s *Server) getTask(w http.ResponseWriter, r *http.Request) {
	p, _ := PrincipalFromContext(r.Context())
	detail, err := s.device.GetTask(r.Context(), p.TenantID, chi.URLParam(r, "taskID"), p.UserID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (s *Server) scan(w http.ResponseWriter, r *http.Request) {
	var body DeviceScanRequest
	if !decodeBody(w, r, &body) {
		return
	}
	p, task, ok := s.ownTask(w, r)
	if !ok {
		return
	}
	out, err := s.device.Scan(r.Context(), p.TenantID, inventory.ScanRequest{
		SessionID:     task.SessionID,
		TaskID:        &task.ID,
		OperatorID:    p.UserID,
		Code:          body.Code,
		ScannedAt:     body.ScannedAt,
		ClientEventID: clientEventID(r.Context(), body.ClientEventID),
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) addUnexpected(w http.ResponseWriter, r *http.Request) {
	var body DeviceUnexpectedRequest
	if !decodeBody(w, r, &body) {
		return
	}
	p, task, ok := s.ownTask(w, r)
	if !ok {
		return
	}
	item, created, err := s.device.AddUnexpected(r.Context(), p.TenantID, inventory.UnexpectedRequest{
		SessionID:     task.SessionID,
		TaskID:        &task.ID,
		OperatorID:    p.UserID,
		AssetID:       body.AssetID,
		Code:          body.Code,
		ScannedAt:     body.ScannedAt,
		ClientEventID: clientEventID(r.Context(), body.ClientEventID),
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, map[string]any{"item": item, "created": created})
}

func (s *Server) completeTask(w http.ResponseWriter, r *http.Request) {
	var body deviceCompleteRequest
	if !decodeBody(w, r, &body) {
		return
	}
	p, _ := PrincipalFromContext(r.Context())
	task, err := s.device.CompleteTask(r.Context(), p.TenantID, chi.URLParam(r, "taskID"), p.UserID, body.Notes)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) sync(w http.ResponseWriter, r *http.Request) {
	var body DeviceSyncRequest
	if !decodeBody(w, r, &body) {
		return
	}
	p, task, ok := s.ownTask(w, r)
	if !ok {
		return
	}
	result, err := s.device.Sync(r.Context(), p.TenantID, inventory.SyncRequest{
		SessionID:  task.SessionID,
		TaskID:     &task.ID,
		OperatorID: p.UserID,
		Events:     body.Events,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// ownTask loads the path task and checks the caller is its assignee.
func (s *Server) ownTask(w http.ResponseWriter, r *http.Request) (Principal, *inventory.Task, bool) {
	p, _ := PrincipalFromContext(r.Context())
	task, err := s.device.LookupTask(r.Context(), p.TenantID, chi.URLParam(r, "taskID"), p.UserID)
	if err != nil {
		s.fail(w, r, err)
		return p, nil, false
	}
	return p, task, true
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	apiErr := apierr.Map(err)
	if apiErr.Code == apierr.CodeInternal {
		s.logger.Error("device request failed", "path", r.URL.Path, "error", err)
	}
	writeAPIError(w, apiErr)
}

func decodeBody(w http.ResponseWriter, r *http.Request, out any) bool {
	if r.ContentLength == 0 {
		return true
	}
	if err := json.NewDecoder(r.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		writeAPIError(w, apierr.New(apierr.CodeInvalidInput, "invalid body: "+err.Error()))
		return false
	}
	return true
}

func clientEventID(ctx context.Context, explicit string) string {
	if explicit != "" {
		return explicit
	}
	key, _ := IdempotencyKeyFromContext(ctx)
	return key
}
