package transport

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rpggio/tally/internal/console"
	"github.com/rpggio/tally/internal/domain/inventory"
)

func TestParseRequest(t *testing.T) {
	body := bytes.NewBufferString(`{"jsonrpc":"2.0","method":"test","params":{"a":1},"id":1}`)
	req, err := ParseRequest(body)
	require.NoError(t, err)
	require.Equal(t, "2.0", req.JSONRPC)
	require.Equal(t, "test", req.Method)
	require.Equal(t, json.RawMessage(`{"a":1}`), req.Params)
}

func TestParseRequest_Invalid(t *testing.T) {
	body := bytes.NewBufferString(`{"jsonrpc":"2.0","id":1}`)
	_, err := ParseRequest(body)
	require.Error(t, err)
	require.NotErrorIs(t, err, errParse)

	_, err = ParseRequest(bytes.NewBufferString(`{not json`))
	require.ErrorIs(t, err, errParse)
}

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, 1, ErrInvalidParams, "bad params", nil)

	require.Equal(t, 200, rec.Code)
	require.Contains(t, rec.Body.String(), `"error"`)
}

func decodeResponse(t *testing.T, body *bytes.Buffer) Response {
	t.Helper()
	var resp Response
	require.NoError(t, json.Unmarshal(body.Bytes(), &resp))
	return resp
}

func TestWriteDispatchError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteDispatchError(rec, 7, fmt.Errorf("%w: session is draft", inventory.ErrInvalidTransition))
	resp := decodeResponse(t, rec.Body)
	require.Equal(t, ErrApplication, resp.Error.Code)
	require.Equal(t, "INVALID_TRANSITION", resp.Error.Data.(map[string]any)["code"])

	rec = httptest.NewRecorder()
	WriteDispatchError(rec, 8, fmt.Errorf("%w: nope", console.ErrUnknownMethod))
	require.Equal(t, ErrMethodNotFound, decodeResponse(t, rec.Body).Error.Code)

	rec = httptest.NewRecorder()
	WriteDispatchError(rec, 9, inventory.ErrInvalidInput)
	require.Equal(t, ErrInvalidParams, decodeResponse(t, rec.Body).Error.Code)
}
