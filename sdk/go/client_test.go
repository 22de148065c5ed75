package dispatchsdk

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssignCallPostsUnit(t *testing.T) {
	var gotPath, gotKey string
	var gotBody map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.Method + " " + r.URL.Path
		gotKey = r.Header.Get("X-Api-Key")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(Call{ID: "c1", CaseNumber: 4, Status: "accepted"})
	}))
	defer srv.Close()

	client := New(srv.URL + "/")
	client.APIKey = "secret"
	call, err := client.AssignCall(context.Background(), "c1", "u1")
	require.NoError(t, err)
	assert.Equal(t, "POST /911-calls/assign/c1", gotPath)
	assert.Equal(t, "secret", gotKey)
	assert.Equal(t, map[string]string{"unit": "u1"}, gotBody)
	assert.Equal(t, int64(4), call.CaseNumber)

	_, err = client.UnassignCall(context.Background(), "c1", "u1")
	require.NoError(t, err)
	assert.Equal(t, "POST /911-calls/unassign/c1", gotPath)
}

func TestBearerTokenWins(t *testing.T) {
	var auth, key string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		key = r.Header.Get("X-Api-Key")
		_, _ = w.Write([]byte(`{"units":[{"id":"u1","kind":"officer","callsign":"1A-12"}]}`))
	}))
	defer srv.Close()

	client := New(srv.URL)
	client.APIKey = "key"
	client.BearerToken = "tok"
	units, err := client.ListUnits(context.Background(), "officer")
	require.NoError(t, err)
	require.Len(t, units, 1)
	assert.Equal(t, "Bearer tok", auth)
	assert.Empty(t, key)
}

func TestAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"code":"not_found"}}`))
	}))
	defer srv.Close()

	_, err := New(srv.URL).GetCall(context.Background(), "missing")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Contains(t, apiErr.Body, "not_found")
}

func TestListCallsQuery(t *testing.T) {
	var query string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.RawQuery
		_, _ = w.Write([]byte(`{"calls":[],"total_count":0}`))
	}))
	defer srv.Close()

	calls, err := New(srv.URL).ListCalls(context.Background(), CallQuery{Status: "pending", Search: "grove", Limit: 5})
	require.NoError(t, err)
	assert.Empty(t, calls)
	assert.Equal(t, "limit=5&q=grove&status=pending", query)
}

func TestCallMerge(t *testing.T) {
	base := Call{ID: "c1", CaseNumber: 3, Location: "Route 68", Status: "pending",
		AssignedUnits: []AssignedUnit{{UnitID: "u1"}}}

	merged := base.Merge(Call{ID: "c1", Status: "accepted"})
	assert.Equal(t, "accepted", merged.Status)
	assert.Equal(t, "Route 68", merged.Location)
	assert.Equal(t, int64(3), merged.CaseNumber)
	assert.Len(t, merged.AssignedUnits, 1)

	cleared := base.Merge(Call{ID: "c1", AssignedUnits: []AssignedUnit{}})
	assert.Empty(t, cleared.AssignedUnits)
}

func TestStreamCalls(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ws/calls" {
			http.NotFound(w, r)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.WriteJSON(StreamEvent{Type: StreamUnit, Unit: &Unit{ID: "u1"}})
		_ = conn.WriteJSON(StreamEvent{Type: StreamCall, Call: &Call{ID: "c1", Status: "accepted"}})
		_ = conn.WriteJSON(StreamEvent{Type: StreamCallRemoved, Call: &Call{ID: "c1"}})
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		time.Sleep(50 * time.Millisecond)
	}))
	defer srv.Close()

	var got []Call
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := New(srv.URL).StreamCalls(ctx, func(c Call) { got = append(got, c) })
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "c1", got[0].ID)
	assert.False(t, got[0].Ended)
	assert.Equal(t, Call{ID: "c1", Ended: true}, got[1])
}

func TestWebsocketURL(t *testing.T) {
	u, err := New("https://cad.example.com/api/").websocketURL("/ws/calls")
	require.NoError(t, err)
	assert.Equal(t, "wss://cad.example.com/api/ws/calls", u)

	_, err = New("ftp://cad").websocketURL("/ws/calls")
	assert.Error(t, err)
}
