package functional_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rpggio/tally/internal/domain/asset"
	"github.com/rpggio/tally/internal/domain/operator"
	"github.com/rpggio/tally/internal/testserver"
)

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
	ID      any             `json:"id,omitempty"`
}

type rpcError struct {
	Code    int            `json:"code"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data,omitempty"`
}

type fixture struct {
	ts           *testserver.TestServer
	managerToken string
	olgaToken    string
	omarToken    string
}

// newFixture seeds Aisle A with five chairs and Aisle B with one projector.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	ts := testserver.New(t, "tenant1")
	ts.AddLocation(t, "A", "Aisle A")
	ts.AddLocation(t, "B", "Aisle B")
	locA, locB := "A", "B"
	for i := 0; i < 5; i++ {
		ts.AddAsset(t, asset.Asset{
			ID:         fmt.Sprintf("a%02d", i),
			Code:       fmt.Sprintf("A-%02d", i),
			Barcode:    fmt.Sprintf("BC-A-%02d", i),
			Name:       fmt.Sprintf("Chair %d", i),
			LocationID: &locA,
		})
	}
	ts.AddAsset(t, asset.Asset{ID: "b00", Code: "B-00", Name: "Projector", LocationID: &locB, Tags: []string{"EPC-B00"}})

	return &fixture{
		ts:           ts,
		managerToken: ts.AddUser(t, "manager", "Mara", operator.PermManage),
		olgaToken:    ts.AddUser(t, "olga", "Olga", operator.PermExecute),
		omarToken:    ts.AddUser(t, "omar", "Omar", operator.PermExecute),
	}
}

func (f *fixture) rpc(t *testing.T, token, method string, params any) rpcResponse {
	t.Helper()

	payload := map[string]any{
		"jsonrpc": "2.0",
		"method":  method,
		"id":      1,
	}
	if params != nil {
		payload["params"] = params
	}
	body, err := json.Marshal(payload)
	require.NoError(t, err)

	resp := f.do(t, token, http.MethodPost, "/rpc", body, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		t.Fatalf("Expected status 200, got %d. Body: %s", resp.StatusCode, string(bodyBytes))
	}

	var result rpcResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	return result
}

// call makes an RPC call that must succeed and decodes its result into out.
func (f *fixture) call(t *testing.T, token, method string, params, out any) {
	t.Helper()
	resp := f.rpc(t, token, method, params)
	require.Nil(t, resp.Error, "%s failed: %+v", method, resp.Error)
	if out != nil {
		require.NoError(t, json.Unmarshal(resp.Result, out))
	}
}

func (f *fixture) do(t *testing.T, token, method, path string, body []byte, headers map[string]string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, f.ts.Server.URL+path, bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

// device calls the device API and decodes a JSON body into out. It returns
// the status code.
func (f *fixture) device(t *testing.T, token, method, path string, in any, headers map[string]string, out any) int {
	t.Helper()
	var body []byte
	if in != nil {
		var err error
		body, err = json.Marshal(in)
		require.NoError(t, err)
	}
	resp := f.do(t, token, method, "/api/v1"+path, body, headers)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}
