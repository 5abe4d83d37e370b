// Package console dispatches the manager console methods to the inventory
// engine. The JSON-RPC endpoint and the MCP tool server both route through it.
package console

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rpggio/tally/internal/apierr"
	"github.com/rpggio/tally/internal/domain/activity"
	"github.com/rpggio/tally/internal/domain/inventory"
	"github.com/rpggio/tally/internal/domain/operator"
)

// ErrUnknownMethod is returned for a method name that is not dispatched.
var ErrUnknownMethod = errors.New("unknown method")

// Inventory defines the engine operations the console needs.
type Inventory interface {
	CreateSession(ctx context.Context, tenantID string, req inventory.CreateSessionRequest) (*inventory.Session, []inventory.Task, error)
	GetSession(ctx context.Context, tenantID, id string) (*inventory.Session, error)
	ListSessions(ctx context.Context, tenantID string, opts inventory.ListSessionsOptions) ([]inventory.Session, error)
	ListItems(ctx context.Context, tenantID, sessionID string, opts inventory.ListItemsOptions) ([]inventory.Item, error)
	AssignTasks(ctx context.Context, tenantID, sessionID, actorID string, assignments []inventory.Assignment) ([]inventory.Task, error)
	StartSession(ctx context.Context, tenantID, id, actorID string) (*inventory.Session, error)
	CompleteSession(ctx context.Context, tenantID, id, actorID string) (*inventory.Session, error)
	CancelSession(ctx context.Context, tenantID, id, actorID string) (*inventory.Session, error)
	Scan(ctx context.Context, tenantID string, req inventory.ScanRequest) (*inventory.ScanOutcome, error)
	AddUnexpected(ctx context.Context, tenantID string, req inventory.UnexpectedRequest) (*inventory.Item, bool, error)
	MarkFound(ctx context.Context, tenantID string, cmd inventory.ItemCommand) (*inventory.Item, error)
	MarkMissing(ctx context.Context, tenantID string, cmd inventory.ItemCommand) (*inventory.Item, error)
	GetTask(ctx context.Context, tenantID, taskID, operatorID string) (*inventory.TaskDetail, error)
	CompleteTask(ctx context.Context, tenantID, taskID, operatorID, notes string) (*inventory.Task, error)
}

// Authorizer checks user permissions.
type Authorizer interface {
	Authorize(ctx context.Context, tenantID, userID string, perm operator.Permission) error
}

// ActivityService lists the audit trail.
type ActivityService interface {
	GetRecentActivity(ctx context.Context, tenantID string, opts activity.ListActivityOptions) ([]activity.ActivityEntry, error)
}

// Method describes one dispatched method.
type Method struct {
	Name        string
	Description string
	Permission  operator.Permission
}

// Methods lists every console method in a stable order.
var Methods = []Method{
	{"create_session", "Create a draft counting session with a scope and optional task assignments.", operator.PermManage},
	{"get_session", "Get a session with its current counters.", operator.PermExecute},
	{"list_sessions", "List sessions, newest first, optionally filtered by status.", operator.PermExecute},
	{"assign_tasks", "Assign location-scoped tasks to operators on a draft or running session.", operator.PermManage},
	{"start_session", "Start a draft session and materialize its expected items.", operator.PermManage},
	{"complete_session", "Complete a running session; unscanned expected items become missing.", operator.PermManage},
	{"cancel_session", "Cancel a draft or running session.", operator.PermManage},
	{"scan_barcode", "Reconcile a scanned barcode, asset code or RFID tag against a running session.", operator.PermExecute},
	{"add_unexpected", "Register an asset found outside the session's expected set.", operator.PermExecute},
	{"mark_item_found", "Manually mark an expected or missing item as found.", operator.PermExecute},
	{"mark_item_missing", "Manually mark an expected or found item as missing.", operator.PermExecute},
	{"complete_task", "Complete one of your tasks with optional notes.", operator.PermExecute},
	{"list_items", "List the items of a session, optionally by location and status.", operator.PermExecute},
	{"get_task", "Get a task with its scoped items and live stats.", operator.PermExecute},
	{"recent_activity", "List the most recent activity, optionally for one session or task.", operator.PermExecute},
}

var permissions = func() map[string]operator.Permission {
	m := make(map[string]operator.Permission, len(Methods))
	for _, method := range Methods {
		m[method.Name] = method.Permission
	}
	return m
}()

// Handler dispatches console methods.
type Handler struct {
	inventory Inventory
	users     Authorizer
	activity  ActivityService
}

// NewHandler creates a console handler.
func NewHandler(inv Inventory, users Authorizer, activitySvc ActivityService) *Handler {
	return &Handler{inventory: inv, users: users, activity: activitySvc}
}

// Handle authorizes the caller for method and dispatches it.
func (h *Handler) Handle(ctx context.Context, caller Caller, method string, params json.RawMessage) (any, error) {
	perm, ok := permissions[method]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMethod, method)
	}
	if err := h.users.Authorize(ctx, caller.TenantID, caller.UserID, perm); err != nil {
		return nil, err
	}
	tenantID := caller.TenantID

	switch method {
	case "create_session":
		var req CreateSessionParams
		if err := decodeParams(params, &req); err != nil {
			return nil, err
		}
		sess, tasks, err := h.inventory.CreateSession(ctx, tenantID, inventory.CreateSessionRequest{
			Name:        req.Name,
			Scope:       req.Scope,
			Notes:       req.Notes,
			CreatedBy:   caller.UserID,
			Assignments: req.Assignments,
		})
		if err != nil {
			return nil, err
		}
		if tasks == nil {
			tasks = []inventory.Task{}
		}
		return CreateSessionResponse{Session: sess, Tasks: tasks}, nil
	case "get_session":
		var req SessionParams
		if err := decodeParams(params, &req); err != nil {
			return nil, err
		}
		return h.inventory.GetSession(ctx, tenantID, req.SessionID)
	case "list_sessions":
		var req ListSessionsParams
		if err := decodeParams(params, &req); err != nil {
			return nil, err
		}
		return h.inventory.ListSessions(ctx, tenantID, inventory.ListSessionsOptions{
			Statuses: req.Statuses,
			Limit:    req.Limit,
			Offset:   req.Offset,
		})
	case "assign_tasks":
		var req AssignTasksParams
		if err := decodeParams(params, &req); err != nil {
			return nil, err
		}
		return h.inventory.AssignTasks(ctx, tenantID, req.SessionID, caller.UserID, req.Assignments)
	case "start_session", "complete_session", "cancel_session":
		var req SessionParams
		if err := decodeParams(params, &req); err != nil {
			return nil, err
		}
		switch method {
		case "start_session":
			return h.inventory.StartSession(ctx, tenantID, req.SessionID, caller.UserID)
		case "complete_session":
			return h.inventory.CompleteSession(ctx, tenantID, req.SessionID, caller.UserID)
		default:
			return h.inventory.CancelSession(ctx, tenantID, req.SessionID, caller.UserID)
		}
	case "scan_barcode":
		var req ScanBarcodeParams
		if err := decodeParams(params, &req); err != nil {
			return nil, err
		}
		return h.inventory.Scan(ctx, tenantID, inventory.ScanRequest{
			SessionID:     req.SessionID,
			TaskID:        req.TaskID,
			OperatorID:    caller.UserID,
			Code:          req.Code,
			ScannedAt:     req.ScannedAt,
			ClientEventID: eventID(req.ClientEventID, caller),
		})
	case "add_unexpected":
		var req AddUnexpectedParams
		if err := decodeParams(params, &req); err != nil {
			return nil, err
		}
		item, created, err := h.inventory.AddUnexpected(ctx, tenantID, inventory.UnexpectedRequest{
			SessionID:     req.SessionID,
			TaskID:        req.TaskID,
			OperatorID:    caller.UserID,
			AssetID:       req.AssetID,
			Code:          req.Code,
			ScannedAt:     req.ScannedAt,
			ClientEventID: eventID(req.ClientEventID, caller),
		})
		if err != nil {
			return nil, err
		}
		return AddUnexpectedResponse{Item: item, Created: created}, nil
	case "mark_item_found", "mark_item_missing":
		var req ItemParams
		if err := decodeParams(params, &req); err != nil {
			return nil, err
		}
		cmd := inventory.ItemCommand{
			SessionID:  req.SessionID,
			ItemID:     req.ItemID,
			TaskID:     req.TaskID,
			OperatorID: caller.UserID,
		}
		if method == "mark_item_found" {
			return h.inventory.MarkFound(ctx, tenantID, cmd)
		}
		return h.inventory.MarkMissing(ctx, tenantID, cmd)
	case "complete_task":
		var req CompleteTaskParams
		if err := decodeParams(params, &req); err != nil {
			return nil, err
		}
		return h.inventory.CompleteTask(ctx, tenantID, req.TaskID, caller.UserID, req.Notes)
	case "list_items":
		var req ListItemsParams
		if err := decodeParams(params, &req); err != nil {
			return nil, err
		}
		return h.inventory.ListItems(ctx, tenantID, req.SessionID, inventory.ListItemsOptions{
			LocationID: req.LocationID,
			Statuses:   req.Statuses,
		})
	case "get_task":
		var req TaskParams
		if err := decodeParams(params, &req); err != nil {
			return nil, err
		}
		// Managers may inspect any task; operators only their own.
		operatorID := caller.UserID
		if h.users.Authorize(ctx, tenantID, caller.UserID, operator.PermManage) == nil {
			operatorID = ""
		}
		return h.inventory.GetTask(ctx, tenantID, req.TaskID, operatorID)
	case "recent_activity":
		var req RecentActivityParams
		if err := decodeParams(params, &req); err != nil {
			return nil, err
		}
		entries, err := h.activity.GetRecentActivity(ctx, tenantID, activity.ListActivityOptions{
			SessionID: req.SessionID,
			TaskID:    req.TaskID,
			Types:     req.Types,
			Limit:     req.Limit,
		})
		if err != nil {
			return nil, err
		}
		if entries == nil {
			entries = []activity.ActivityEntry{}
		}
		return entries, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownMethod, method)
}

func decodeParams(params json.RawMessage, out any) error {
	if len(params) == 0 {
		return nil
	}
	if err := json.Unmarshal(params, out); err != nil {
		return apierr.New(apierr.CodeInvalidInput, "invalid params: "+err.Error())
	}
	return nil
}

func eventID(explicit string, caller Caller) string {
	if explicit != "" {
		return explicit
	}
	return caller.IdempotencyKey
}
