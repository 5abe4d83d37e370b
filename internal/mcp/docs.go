package mcp

import (
	"context"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

const serverInstructions = `tally reconciles physical inventory counts: Sessions -> Items, partitioned into Tasks.

Core concepts:
- Session: one count over a scope (all assets, or by location, category or department).
  Lifecycle: draft -> in_progress -> completed, or cancelled from draft/in_progress.
- Item: one asset within a session. expected -> found by scan, expected -> missing at completion,
  or unexpected when registered from outside the scope.
- Task: a location slice of a session assigned to one operator.
- Counters are recomputed from items on every change; never adjust them by hand.

Default workflow:
1) create_session with a scope, optionally with assignments; assign_tasks for more.
2) start_session materializes the expected items.
3) scan_barcode for each code; a result of "unexpected" means the asset exists but is out of scope,
   call add_unexpected to register it.
4) complete_session sweeps unscanned items to missing.

Retries: pass client_event_id on scans; a repeat returns the original outcome with duplicate=true.

Docs:
- tally://docs/reconciliation
`

type docResource struct {
	URI         string
	Name        string
	Title       string
	Description string
	Content     string
}

var docResources = []docResource{
	{
		URI:         "tally://docs/reconciliation",
		Name:        "reconciliation",
		Title:       "How scans reconcile",
		Description: "Scan outcomes, manual overrides and the completion sweep.",
		Content: `# Reconciliation

## Scan outcomes

| Result | Meaning | State change |
|--------|---------|--------------|
| newly_found | first scan of an expected or missing item | item -> found |
| already_found | item was already found, or is a registered unexpected item | none |
| unexpected | asset exists but has no item in this session | none; call add_unexpected |
| not_found | no asset matches the code | none |

Codes match barcode first, then asset code, then RFID tag.

## Manual overrides

- mark_item_found: expected or missing -> found.
- mark_item_missing: expected or found -> missing.
- Unexpected items cannot be overridden.

## Completion

complete_session is only valid from in_progress. Every item still expected becomes missing, and
the final counters are returned. Completing a task never sweeps items.
`,
	},
}

func registerDocResources(server *sdkmcp.Server) {
	for _, doc := range docResources {
		server.AddResource(&sdkmcp.Resource{
			URI:         doc.URI,
			Name:        doc.Name,
			Title:       doc.Title,
			Description: doc.Description,
			MIMEType:    "text/markdown",
			Size:        int64(len(doc.Content)),
		}, func(_ context.Context, req *sdkmcp.ReadResourceRequest) (*sdkmcp.ReadResourceResult, error) {
			uri := doc.URI
			if req != nil && req.Params != nil && req.Params.URI != "" {
				uri = req.Params.URI
			}
			return &sdkmcp.ReadResourceResult{
				Contents: []*sdkmcp.ResourceContents{{
					URI:      uri,
					MIMEType: "text/markdown",
					Text:     doc.Content,
				}},
			}, nil
		})
	}
}
