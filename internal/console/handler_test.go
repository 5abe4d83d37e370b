package console

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/rpggio/tally/internal/apierr"
	"github.com/rpggio/tally/internal/domain/activity"
	"github.com/rpggio/tally/internal/domain/inventory"
	"github.com/rpggio/tally/internal/domain/operator"
	"github.com/rpggio/tally/internal/repository/mocks"
)

type inventoryMock struct {
	mock.Mock
}

func (m *inventoryMock) CreateSession(ctx context.Context, tenantID string, req inventory.CreateSessionRequest) (*inventory.Session, []inventory.Task, error) {
	args := m.Called(ctx, tenantID, req)
	sess, _ := args.Get(0).(*inventory.Session)
	tasks, _ := args.Get(1).([]inventory.Task)
	return sess, tasks, args.Error(2)
}
func (m *inventoryMock) GetSession(ctx context.Context, tenantID, id string) (*inventory.Session, error) {
	args := m.Called(ctx, tenantID, id)
	sess, _ := args.Get(0).(*inventory.Session)
	return sess, args.Error(1)
}
func (m *inventoryMock) ListSessions(ctx context.Context, tenantID string, opts inventory.ListSessionsOptions) ([]inventory.Session, error) {
	args := m.Called(ctx, tenantID, opts)
	list, _ := args.Get(0).([]inventory.Session)
	return list, args.Error(1)
}
func (m *inventoryMock) ListItems(ctx context.Context, tenantID, sessionID string, opts inventory.ListItemsOptions) ([]inventory.Item, error) {
	args := m.Called(ctx, tenantID, sessionID, opts)
	list, _ := args.Get(0).([]inventory.Item)
	return list, args.Error(1)
}
func (m *inventoryMock) AssignTasks(ctx context.Context, tenantID, sessionID, actorID string, assignments []inventory.Assignment) ([]inventory.Task, error) {
	args := m.Called(ctx, tenantID, sessionID, actorID, assignments)
	list, _ := args.Get(0).([]inventory.Task)
	return list, args.Error(1)
}
func (m *inventoryMock) StartSession(ctx context.Context, tenantID, id, actorID string) (*inventory.Session, error) {
	args := m.Called(ctx, tenantID, id, actorID)
	sess, _ := args.Get(0).(*inventory.Session)
	return sess, args.Error(1)
}
func (m *inventoryMock) CompleteSession(ctx context.Context, tenantID, id, actorID string) (*inventory.Session, error) {
	args := m.Called(ctx, tenantID, id, actorID)
	sess, _ := args.Get(0).(*inventory.Session)
	return sess, args.Error(1)
}
func (m *inventoryMock) CancelSession(ctx context.Context, tenantID, id, actorID string) (*inventory.Session, error) {
	args := m.Called(ctx, tenantID, id, actorID)
	sess, _ := args.Get(0).(*inventory.Session)
	return sess, args.Error(1)
}
func (m *inventoryMock) Scan(ctx context.Context, tenantID string, req inventory.ScanRequest) (*inventory.ScanOutcome, error) {
	args := m.Called(ctx, tenantID, req)
	out, _ := args.Get(0).(*inventory.ScanOutcome)
	return out, args.Error(1)
}
func (m *inventoryMock) AddUnexpected(ctx context.Context, tenantID string, req inventory.UnexpectedRequest) (*inventory.Item, bool, error) {
	args := m.Called(ctx, tenantID, req)
	item, _ := args.Get(0).(*inventory.Item)
	return item, args.Bool(1), args.Error(2)
}
func (m *inventoryMock) MarkFound(ctx context.Context, tenantID string, cmd inventory.ItemCommand) (*inventory.Item, error) {
	args := m.Called(ctx, tenantID, cmd)
	item, _ := args.Get(0).(*inventory.Item)
	return item, args.Error(1)
}
func (m *inventoryMock) MarkMissing(ctx context.Context, tenantID string, cmd inventory.ItemCommand) (*inventory.Item, error) {
	args := m.Called(ctx, tenantID, cmd)
	item, _ := args.Get(0).(*inventory.Item)
	return item, args.Error(1)
}
func (m *inventoryMock) GetTask(ctx context.Context, tenantID, taskID, operatorID string) (*inventory.TaskDetail, error) {
	args := m.Called(ctx, tenantID, taskID, operatorID)
	detail, _ := args.Get(0).(*inventory.TaskDetail)
	return detail, args.Error(1)
}
func (m *inventoryMock) CompleteTask(ctx context.Context, tenantID, taskID, operatorID, notes string) (*inventory.Task, error) {
	args := m.Called(ctx, tenantID, taskID, operatorID, notes)
	task, _ := args.Get(0).(*inventory.Task)
	return task, args.Error(1)
}

type activityStub struct {
	opts activity.ListActivityOptions
}

func (s *activityStub) GetRecentActivity(_ context.Context, _ string, opts activity.ListActivityOptions) ([]activity.ActivityEntry, error) {
	s.opts = opts
	return nil, nil
}

func newTestHandler(t *testing.T) (*Handler, *inventoryMock, *activityStub) {
	t.Helper()
	users := &mocks.UserRepository{}
	users.On("Get", mock.Anything, "tenant1", "mgr").
		Return(&operator.User{ID: "mgr", Permissions: []operator.Permission{operator.PermManage}}, nil)
	users.On("Get", mock.Anything, "tenant1", "op1").
		Return(&operator.User{ID: "op1", Permissions: []operator.Permission{operator.PermExecute}}, nil)

	inv := &inventoryMock{}
	acts := &activityStub{}
	return NewHandler(inv, operator.NewService(users, nil), acts), inv, acts
}

var (
	manager = Caller{TenantID: "tenant1", UserID: "mgr"}
	scanner = Caller{TenantID: "tenant1", UserID: "op1"}
)

func TestHandler_UnknownMethod(t *testing.T) {
	h, _, _ := newTestHandler(t)
	_, err := h.Handle(context.Background(), manager, "drop_tables", nil)
	require.ErrorIs(t, err, ErrUnknownMethod)
}

func TestHandler_RequiresManageForLifecycle(t *testing.T) {
	h, inv, _ := newTestHandler(t)
	for _, method := range []string{"create_session", "assign_tasks", "start_session", "complete_session", "cancel_session"} {
		_, err := h.Handle(context.Background(), scanner, method, json.RawMessage(`{"session_id":"s1"}`))
		require.ErrorIs(t, err, operator.ErrForbidden, method)
	}
	inv.AssertNotCalled(t, "StartSession", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestHandler_CreateSessionActsAsCaller(t *testing.T) {
	ctx := context.Background()
	h, inv, _ := newTestHandler(t)

	inv.On("CreateSession", ctx, "tenant1", mock.MatchedBy(func(req inventory.CreateSessionRequest) bool {
		return req.CreatedBy == "mgr" && req.Name == "Q1" && len(req.Assignments) == 1
	})).Return(&inventory.Session{ID: "s1"}, nil, nil)

	res, err := h.Handle(ctx, manager, "create_session",
		json.RawMessage(`{"name":"Q1","scope":{"type":"all"},"assignments":[{"assignee_id":"op1"}]}`))
	require.NoError(t, err)
	resp := res.(CreateSessionResponse)
	require.Equal(t, "s1", resp.Session.ID)
	require.NotNil(t, resp.Tasks)
	inv.AssertExpectations(t)
}

func TestHandler_ScanUsesIdempotencyKey(t *testing.T) {
	ctx := context.Background()
	h, inv, _ := newTestHandler(t)

	inv.On("Scan", ctx, "tenant1", inventory.ScanRequest{
		SessionID: "s1", OperatorID: "op1", Code: "A-01", ClientEventID: "key-1",
	}).Return(&inventory.ScanOutcome{Result: inventory.ResultNewlyFound}, nil).Once()
	inv.On("Scan", ctx, "tenant1", inventory.ScanRequest{
		SessionID: "s1", OperatorID: "op1", Code: "A-02", ClientEventID: "evt-9",
	}).Return(&inventory.ScanOutcome{Result: inventory.ResultNotFound}, nil).Once()

	caller := scanner
	caller.IdempotencyKey = "key-1"
	res, err := h.Handle(ctx, caller, "scan_barcode", json.RawMessage(`{"session_id":"s1","code":"A-01"}`))
	require.NoError(t, err)
	require.Equal(t, inventory.ResultNewlyFound, res.(*inventory.ScanOutcome).Result)

	_, err = h.Handle(ctx, caller, "scan_barcode", json.RawMessage(`{"session_id":"s1","code":"A-02","client_event_id":"evt-9"}`))
	require.NoError(t, err)
	inv.AssertExpectations(t)
}

func TestHandler_InvalidParams(t *testing.T) {
	h, _, _ := newTestHandler(t)
	_, err := h.Handle(context.Background(), scanner, "scan_barcode", json.RawMessage(`{"code":42}`))
	var apiErr *apierr.APIError
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, apierr.CodeInvalidInput, apiErr.Code)
}

func TestHandler_GetTaskScopesOperators(t *testing.T) {
	ctx := context.Background()
	h, inv, _ := newTestHandler(t)

	inv.On("GetTask", ctx, "tenant1", "t1", "").Return(&inventory.TaskDetail{}, nil).Once()
	inv.On("GetTask", ctx, "tenant1", "t1", "op1").Return(nil, inventory.ErrNotInScope).Once()

	_, err := h.Handle(ctx, manager, "get_task", json.RawMessage(`{"task_id":"t1"}`))
	require.NoError(t, err)

	_, err = h.Handle(ctx, scanner, "get_task", json.RawMessage(`{"task_id":"t1"}`))
	require.ErrorIs(t, err, inventory.ErrNotInScope)
	inv.AssertExpectations(t)
}

func TestHandler_AddUnexpected(t *testing.T) {
	ctx := context.Background()
	h, inv, _ := newTestHandler(t)

	inv.On("AddUnexpected", ctx, "tenant1", inventory.UnexpectedRequest{
		SessionID: "s1", OperatorID: "op1", AssetID: "b00",
	}).Return(&inventory.Item{ID: "i9", Status: inventory.ItemUnexpected}, true, nil)

	res, err := h.Handle(ctx, scanner, "add_unexpected", json.RawMessage(`{"session_id":"s1","asset_id":"b00"}`))
	require.NoError(t, err)
	resp := res.(AddUnexpectedResponse)
	require.True(t, resp.Created)
	require.Equal(t, "i9", resp.Item.ID)
}

func TestHandler_RecentActivity(t *testing.T) {
	h, _, acts := newTestHandler(t)
	res, err := h.Handle(context.Background(), scanner, "recent_activity",
		json.RawMessage(`{"session_id":"s1","types":["item_found"],"limit":5}`))
	require.NoError(t, err)
	require.Empty(t, res)
	require.Equal(t, "s1", *acts.opts.SessionID)
	require.Equal(t, []activity.ActivityType{activity.TypeItemFound}, acts.opts.Types)
	require.Equal(t, 5, acts.opts.Limit)
}
