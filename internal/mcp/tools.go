package mcp

import (
	"context"
	"encoding/json"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/rpggio/tally/internal/console"
)

func str(desc string) map[string]any {
	return map[string]any{"type": "string", "description": desc}
}

func enumArray(desc string, values ...string) map[string]any {
	return map[string]any{
		"type":        "array",
		"description": desc,
		"items":       map[string]any{"type": "string", "enum": values},
	}
}

func object(props map[string]any, required ...string) map[string]any {
	schema := map[string]any{"type": "object", "properties": props}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

var assignmentsSchema = map[string]any{
	"type":        "array",
	"description": "One task per entry; location_id limits the task to that location's items",
	"items": object(map[string]any{
		"assignee_id": str("Operator user ID"),
		"location_id": str("Location ID (omit for the whole session)"),
		"notes":       str("Instructions for the operator"),
	}, "assignee_id"),
}

var scopeSchema = object(map[string]any{
	"type": map[string]any{
		"type": "string",
		"enum": []string{"all", "location", "category", "department"},
	},
	"ids": map[string]any{
		"type":        "array",
		"description": "Foreign key IDs for the scope type; ignored for all",
		"items":       map[string]any{"type": "string"},
	},
}, "type")

var sessionID = str("Session ID")

// toolSchemas holds the input schema of every console method.
var toolSchemas = map[string]map[string]any{
	"create_session": object(map[string]any{
		"name":        str("Session display name"),
		"scope":       scopeSchema,
		"notes":       str("Free-form notes"),
		"assignments": assignmentsSchema,
	}, "name", "scope"),
	"get_session": object(map[string]any{"session_id": sessionID}, "session_id"),
	"list_sessions": object(map[string]any{
		"statuses": enumArray("Filter by status", "draft", "in_progress", "completed", "cancelled"),
		"limit":    map[string]any{"type": "integer", "description": "Maximum number of results"},
		"offset":   map[string]any{"type": "integer", "description": "Offset for pagination"},
	}),
	"assign_tasks": object(map[string]any{
		"session_id":  sessionID,
		"assignments": assignmentsSchema,
	}, "session_id", "assignments"),
	"start_session":    object(map[string]any{"session_id": sessionID}, "session_id"),
	"complete_session": object(map[string]any{"session_id": sessionID}, "session_id"),
	"cancel_session":   object(map[string]any{"session_id": sessionID}, "session_id"),
	"scan_barcode": object(map[string]any{
		"session_id":      sessionID,
		"task_id":         str("Task the scan belongs to (optional)"),
		"code":            str("Scanned barcode, asset code or RFID tag"),
		"scanned_at":      str("RFC 3339 time of the scan (defaults to now)"),
		"client_event_id": str("Unique ID that makes retries safe"),
	}, "session_id", "code"),
	"add_unexpected": object(map[string]any{
		"session_id":      sessionID,
		"task_id":         str("Task the registration belongs to (optional)"),
		"asset_id":        str("Asset ID; takes precedence over code"),
		"code":            str("Scanned code identifying the asset"),
		"scanned_at":      str("RFC 3339 time of the scan (defaults to now)"),
		"client_event_id": str("Unique ID that makes retries safe"),
	}, "session_id"),
	"mark_item_found": object(map[string]any{
		"session_id": str("Session ID (optional check)"),
		"item_id":    str("Item ID"),
		"task_id":    str("Task ID (optional)"),
	}, "item_id"),
	"mark_item_missing": object(map[string]any{
		"session_id": str("Session ID (optional check)"),
		"item_id":    str("Item ID"),
		"task_id":    str("Task ID (optional)"),
	}, "item_id"),
	"complete_task": object(map[string]any{
		"task_id": str("Task ID"),
		"notes":   str("Closing notes appended to the task"),
	}, "task_id"),
	"list_items": object(map[string]any{
		"session_id":  sessionID,
		"location_id": str("Only items at this location"),
		"statuses":    enumArray("Filter by item status", "expected", "found", "missing", "unexpected"),
	}, "session_id"),
	"get_task": object(map[string]any{"task_id": str("Task ID")}, "task_id"),
	"recent_activity": object(map[string]any{
		"session_id": str("Only activity for this session"),
		"task_id":    str("Only activity for this task"),
		"types": enumArray("Filter by activity type",
			"session_created", "session_started", "session_completed", "session_cancelled",
			"task_assigned", "task_completed", "item_found", "item_missing", "item_unexpected"),
		"limit": map[string]any{"type": "integer", "description": "Maximum number of entries (default 50)"},
	}),
}

func registerTools(server *sdkmcp.Server, dispatcher Dispatcher) {
	for _, method := range console.Methods {
		schema, ok := toolSchemas[method.Name]
		if !ok {
			schema = object(map[string]any{})
		}
		server.AddTool(&sdkmcp.Tool{
			Name:        method.Name,
			Description: method.Description,
			InputSchema: schema,
		}, toolHandler(dispatcher, method.Name))
	}
}

func toolHandler(dispatcher Dispatcher, name string) sdkmcp.ToolHandler {
	return func(ctx context.Context, req *sdkmcp.CallToolRequest) (*sdkmcp.CallToolResult, error) {
		var args json.RawMessage
		if req.Params != nil {
			args = req.Params.Arguments
		}
		result, err := dispatcher.Handle(ctx, getCaller(ctx), name, args)
		if err != nil {
			return toolError(err), nil
		}
		return toolResult(result)
	}
}
