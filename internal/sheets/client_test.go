package sheets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Veraticus/tally/internal/common"
	"github.com/Veraticus/tally/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// fakeAPI is a minimal stand-in for the Sheets REST API.
type fakeAPI struct {
	values   map[string][][]any
	status   int
	requests []*http.Request
	bodies   []string
	mu       sync.Mutex
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	f.mu.Lock()
	f.requests = append(f.requests, r)
	f.bodies = append(f.bodies, string(body))
	status := f.status
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if status != 0 {
		w.WriteHeader(status)
		_, _ = fmt.Fprintf(w, `{"error":{"code":%d,"message":"denied"}}`, status)
		return
	}

	path := r.URL.Path
	switch {
	case strings.HasSuffix(path, "values:batchUpdate"):
		_, _ = io.WriteString(w, `{"spreadsheetId":"sheet-123","totalUpdatedCells":1}`)
	case strings.Contains(path, "/values/") && r.Method == http.MethodGet:
		table := path[strings.Index(path, "/values/")+len("/values/"):]
		table = strings.Trim(table, "'")
		_ = json.NewEncoder(w).Encode(map[string]any{"range": table, "values": f.values[table]})
	case strings.Contains(path, "/values/") && r.Method == http.MethodPut:
		_, _ = io.WriteString(w, `{"updatedCells":1}`)
	default:
		_, _ = io.WriteString(w, `{"sheets":[{"properties":{"title":"main"}},{"properties":{"title":"data"}}]}`)
	}
}

func newTestClient(t *testing.T, api *fakeAPI, config Config) *Client {
	t.Helper()

	server := httptest.NewServer(api)
	t.Cleanup(server.Close)

	srv, err := sheets.NewService(context.Background(),
		option.WithEndpoint(server.URL+"/"),
		option.WithoutAuthentication(),
		option.WithHTTPClient(server.Client()))
	require.NoError(t, err)

	config.SpreadsheetID = "sheet-123"
	if config.RetryAttempts == 0 {
		config.RetryAttempts = 1
	}
	config.RetryDelay = time.Millisecond
	config.RetryMaxDelay = 5 * time.Millisecond
	config.RateLimitDelay = 2 * time.Millisecond
	return NewClientWithService(srv, config, nil)
}

func TestClient_ReadTable(t *testing.T) {
	api := &fakeAPI{values: map[string][][]any{
		"data": {
			{"phone number", "practice_updates_datetime", "practice_counter"},
			{"972501234567", "22:06, 24/08/25", 3},
			{},
			{"0529876543"},
		},
	}}
	client := newTestClient(t, api, Config{})

	snap, err := client.ReadTable(context.Background(), "data")
	require.NoError(t, err)

	assert.Equal(t, "data", snap.Name)
	assert.Equal(t, []string{"phone number", "practice_updates_datetime", "practice_counter"}, snap.Header)
	require.Len(t, snap.Rows, 3)
	assert.Equal(t, model.Row{Index: 2, Cells: []string{"972501234567", "22:06, 24/08/25", "3"}}, snap.Rows[0])
	assert.Equal(t, 3, snap.Rows[1].Index)
	assert.Empty(t, snap.Rows[1].Cells)
	assert.Equal(t, 4, snap.Rows[2].Index)

	require.Len(t, api.requests, 1)
	assert.Equal(t, "FORMATTED_VALUE", api.requests[0].URL.Query().Get("valueRenderOption"))
}

func TestClient_ReadTable_Empty(t *testing.T) {
	client := newTestClient(t, &fakeAPI{values: map[string][][]any{}}, Config{})

	snap, err := client.ReadTable(context.Background(), "empty")
	require.NoError(t, err)
	assert.Empty(t, snap.Header)
	assert.Empty(t, snap.Rows)
}

func TestClient_ApplyWrites(t *testing.T) {
	api := &fakeAPI{}
	client := newTestClient(t, api, Config{ForceText: true})

	err := client.ApplyWrites(context.Background(), "data", []model.CellWrite{
		{Range: "C2", Value: "22:06, 24/08/25"},
		{Range: "E2", Value: 4},
	})
	require.NoError(t, err)
	require.Len(t, api.bodies, 1)

	var req sheets.BatchUpdateValuesRequest
	require.NoError(t, json.Unmarshal([]byte(api.bodies[0]), &req))

	assert.Equal(t, "USER_ENTERED", req.ValueInputOption)
	require.Len(t, req.Data, 2)
	assert.Equal(t, "'data'!C2", req.Data[0].Range)
	assert.Equal(t, []any{"'22:06, 24/08/25"}, req.Data[0].Values[0])
	assert.Equal(t, "'data'!E2", req.Data[1].Range)
	assert.Equal(t, []any{float64(4)}, req.Data[1].Values[0])
}

func TestClient_ApplyWrites_EmptyBatchSkipsRequest(t *testing.T) {
	api := &fakeAPI{}
	client := newTestClient(t, api, Config{})

	require.NoError(t, client.ApplyWrites(context.Background(), "data", nil))
	assert.Empty(t, api.requests)
}

func TestClient_ApplyWrites_PermissionDeniedIsNotRetried(t *testing.T) {
	api := &fakeAPI{status: http.StatusForbidden}
	client := newTestClient(t, api, Config{RetryAttempts: 3})

	err := client.ApplyWrites(context.Background(), "data", []model.CellWrite{{Range: "A2", Value: "x"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "data")
	assert.Len(t, api.requests, 1)
}

func TestClient_ReadTable_NotFound(t *testing.T) {
	api := &fakeAPI{status: http.StatusNotFound}
	client := newTestClient(t, api, Config{RetryAttempts: 3})

	_, err := client.ReadTable(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrTableNotFound))
	assert.Len(t, api.requests, 1)
}

func TestClient_ServerErrorIsRetried(t *testing.T) {
	api := &fakeAPI{status: http.StatusInternalServerError}
	client := newTestClient(t, api, Config{RetryAttempts: 2})

	_, err := client.ReadAll(context.Background(), "data")
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrMaxRetries))
	assert.Len(t, api.requests, 2)
}

func TestClient_RateLimitIsRetried(t *testing.T) {
	api := &fakeAPI{status: http.StatusTooManyRequests}
	client := newTestClient(t, api, Config{RetryAttempts: 2})

	err := client.ApplyWrites(context.Background(), "data", []model.CellWrite{{Range: "A2", Value: "x"}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrMaxRetries))
	assert.True(t, errors.Is(err, common.ErrRateLimit))
	assert.Len(t, api.requests, 2)
}

func TestClient_StampUpdated(t *testing.T) {
	api := &fakeAPI{}
	client := newTestClient(t, api, Config{})

	require.NoError(t, client.StampUpdated(context.Background(), "dashboard", "C9", "16-10 09:30"))
	require.Len(t, api.requests, 1)
	assert.Equal(t, http.MethodPut, api.requests[0].Method)
	assert.Equal(t, "USER_ENTERED", api.requests[0].URL.Query().Get("valueInputOption"))
	assert.Contains(t, api.bodies[0], `'16-10 09:30`)
}

func TestClient_ListTables(t *testing.T) {
	client := newTestClient(t, &fakeAPI{}, Config{})

	titles, err := client.ListTables(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"main", "data"}, titles)
}

func TestQuoteSheet(t *testing.T) {
	assert.Equal(t, "'data'", quoteSheet("data"))
	assert.Equal(t, "'Dana''s tab'", quoteSheet("Dana's tab"))
}
