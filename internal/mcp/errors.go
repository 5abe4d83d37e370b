package mcp

import (
	"encoding/json"
	"errors"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/rpggio/tally/internal/apierr"
	"github.com/rpggio/tally/internal/console"
)

// toolError reports err to the model as a tool result rather than a protocol
// error, so it can read the code and recover.
func toolError(err error) *sdkmcp.CallToolResult {
	apiErr := apierr.Map(err)
	if errors.Is(err, console.ErrUnknownMethod) {
		apiErr = apierr.New(apierr.CodeInvalidInput, err.Error())
	}
	data, _ := json.Marshal(apiErr)
	return &sdkmcp.CallToolResult{
		IsError: true,
		Content: []sdkmcp.Content{&sdkmcp.TextContent{Text: string(data)}},
	}
}

func toolResult(v any) (*sdkmcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return &sdkmcp.CallToolResult{
		Content: []sdkmcp.Content{&sdkmcp.TextContent{Text: string(data)}},
	}, nil
}
