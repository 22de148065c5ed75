package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"dispatchline/internal/config"
	"dispatchline/internal/db"
	"dispatchline/internal/domain"
	"dispatchline/internal/engine"
	"dispatchline/internal/migrate"
	"dispatchline/internal/repo"
	dispatchsdk "dispatchline/sdk/go"
)

type testServer struct {
	URL    string
	Engine engine.Engine
	Hub    *Hub
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

func newTestServer(t *testing.T, authCfg AuthConfig) *testServer {
	t.Helper()
	workspace := t.TempDir()
	if _, err := db.EnsureWorkspace(workspace); err != nil {
		t.Fatalf("ensure workspace: %v", err)
	}
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	hub := NewHub(logger)
	e := engine.New(conn).WithPublisher(hub)
	handler, err := New(Config{Engine: e, Auth: authCfg, Hub: hub, Logger: logger})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	testSrv := &testServer{
		URL:    "http://" + ln.Addr().String(),
		Engine: e,
		Hub:    hub,
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	t.Cleanup(testSrv.Close)
	return testSrv
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

func insertKey(t *testing.T, e engine.Engine, key, actorID, role string) {
	t.Helper()
	err := e.Repo.InsertAPIKey(context.Background(), domain.APIKey{
		ID:      "key-" + actorID,
		ActorID: actorID,
		Role:    role,
		KeyHash: repo.HashAPIKey(key),
	})
	if err != nil {
		t.Fatalf("insert api key: %v", err)
	}
}

func TestHealthAndAuthRequired(t *testing.T) {
	srv := newTestServer(t, AuthConfig{JWTSecret: "secret"})

	res, body := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/health", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("health status %d: %s", res.StatusCode, string(body))
	}
	res, body = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/911-calls", nil, nil)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d: %s", res.StatusCode, string(body))
	}
	var envelope struct {
		Error apiErrorBody `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || envelope.Error.Code != "unauthorized" {
		t.Fatalf("expected unauthorized envelope, got %s", string(body))
	}
	res, _ = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/911-calls", nil, map[string]string{"X-Api-Key": "nope"})
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for unknown key, got %d", res.StatusCode)
	}
	res, _ = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/openapi.json", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("openapi status %d", res.StatusCode)
	}
}

func TestAssignFlowThroughClient(t *testing.T) {
	srv := newTestServer(t, AuthConfig{InsecureDev: true})
	ctx := context.Background()
	client := dispatchsdk.New(srv.URL)

	unit, err := client.CreateUnit(ctx, "officer", "1A-12", "J. Doe", "LSPD")
	if err != nil {
		t.Fatalf("create unit: %v", err)
	}
	call, err := client.CreateCall(ctx, "Caller", "Route 68", "Vehicle fire")
	if err != nil {
		t.Fatalf("create call: %v", err)
	}
	if call.CaseNumber != 1 || call.Status != "pending" {
		t.Fatalf("unexpected call %+v", call)
	}

	assigned, err := client.AssignCall(ctx, call.ID, unit.ID)
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if assigned.ID != call.ID || len(assigned.AssignedUnits) != 1 || assigned.AssignedUnits[0].Callsign != "1A-12" {
		t.Fatalf("unexpected assigned call %+v", assigned)
	}
	units, err := client.ListUnits(ctx, "officer")
	if err != nil {
		t.Fatalf("list units: %v", err)
	}
	if len(units) != 1 || units[0].Status != domain.UnitStatusEnRoute {
		t.Fatalf("expected en-route unit, got %+v", units)
	}

	unassigned, err := client.UnassignCall(ctx, call.ID, unit.ID)
	if err != nil {
		t.Fatalf("unassign: %v", err)
	}
	if len(unassigned.AssignedUnits) != 0 {
		t.Fatalf("expected no units, got %+v", unassigned.AssignedUnits)
	}

	_, err = client.AssignCall(ctx, "missing", unit.ID)
	var apiErr *dispatchsdk.APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %v", err)
	}
	res, body := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/911-calls/assign/"+call.ID, map[string]any{"unit": " "}, nil)
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for blank unit, got %d: %s", res.StatusCode, string(body))
	}

	evts, err := client.Events(ctx, 10)
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	if len(evts) == 0 || evts[0].Type != "call.unassign" {
		t.Fatalf("expected newest event call.unassign, got %+v", evts)
	}
}

func TestUnitKeySeesOnlyAcceptedCalls(t *testing.T) {
	srv := newTestServer(t, AuthConfig{})
	ctx := context.Background()
	insertKey(t, srv.Engine, "dispatch-key", "dispatcher", "dispatch")
	insertKey(t, srv.Engine, "unit-key", "1A-12", "unit")

	dispatcher := dispatchsdk.New(srv.URL)
	dispatcher.APIKey = "dispatch-key"
	pending, err := dispatcher.CreateCall(ctx, "", "Grove Street", "")
	if err != nil {
		t.Fatalf("create pending: %v", err)
	}
	accepted, err := dispatcher.CreateCall(ctx, "", "Vinewood", "")
	if err != nil {
		t.Fatalf("create accepted: %v", err)
	}
	if _, err := dispatcher.SetCallStatus(ctx, accepted.ID, "accepted"); err != nil {
		t.Fatalf("accept: %v", err)
	}

	unitClient := dispatchsdk.New(srv.URL)
	unitClient.APIKey = "unit-key"
	calls, err := unitClient.ListCalls(ctx, dispatchsdk.CallQuery{})
	if err != nil {
		t.Fatalf("list as unit: %v", err)
	}
	if len(calls) != 1 || calls[0].ID != accepted.ID {
		t.Fatalf("unit should only see accepted call, got %+v", calls)
	}
	if _, err := unitClient.GetCall(ctx, pending.ID); err == nil {
		t.Fatalf("unit should not see pending call")
	}
	var apiErr *dispatchsdk.APIError
	if _, err := unitClient.CreateCall(ctx, "", "Paleto", ""); !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 creating call as unit, got %v", err)
	}
	all, err := dispatcher.ListCalls(ctx, dispatchsdk.CallQuery{Status: "all"})
	if err != nil || len(all) != 2 {
		t.Fatalf("dispatcher should see both calls: %v %d", err, len(all))
	}
}

func TestJWTAuth(t *testing.T) {
	srv := newTestServer(t, AuthConfig{JWTSecret: "secret"})
	token, err := SignToken("secret", "dispatcher-1", []string{"dispatch"}, time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	res, body := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/me", nil, map[string]string{"Authorization": "Bearer " + token})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("me status %d: %s", res.StatusCode, string(body))
	}
	var who WhoAmIResponse
	if err := json.Unmarshal(body, &who); err != nil {
		t.Fatalf("decode me: %v", err)
	}
	if who.ActorID != "dispatcher-1" || len(who.Permissions) != 2 {
		t.Fatalf("unexpected principal %+v", who)
	}
	bad, _ := SignToken("other", "x", nil, time.Hour)
	res, _ = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/me", nil, map[string]string{"Authorization": "Bearer " + bad})
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad signature, got %d", res.StatusCode)
	}
}

func TestStreamPushesCallUpdates(t *testing.T) {
	srv := newTestServer(t, AuthConfig{InsecureDev: true})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	client := dispatchsdk.New(srv.URL)

	unit, err := client.CreateUnit(ctx, "deputy", "M-3", "", "")
	if err != nil {
		t.Fatalf("create unit: %v", err)
	}
	call, err := client.CreateCall(ctx, "", "Sandy Shores", "")
	if err != nil {
		t.Fatalf("create call: %v", err)
	}

	received := make(chan dispatchsdk.Call, 4)
	streamCtx, stopStream := context.WithCancel(ctx)
	streamDone := make(chan error, 1)
	go func() {
		streamDone <- client.StreamCalls(streamCtx, func(c dispatchsdk.Call) { received <- c })
	}()
	for srv.Hub.Subscribers() == 0 {
		select {
		case <-ctx.Done():
			t.Fatalf("stream never connected")
		case <-time.After(10 * time.Millisecond):
		}
	}

	if _, err := client.AssignCall(ctx, call.ID, unit.ID); err != nil {
		t.Fatalf("assign: %v", err)
	}
	select {
	case got := <-received:
		if got.ID != call.ID || len(got.AssignedUnits) != 1 {
			t.Fatalf("unexpected pushed call %+v", got)
		}
	case <-ctx.Done():
		t.Fatalf("no call pushed")
	}
	stopStream()
	if err := <-streamDone; err != nil {
		t.Fatalf("stream: %v", err)
	}
}

func TestWebhookDelivery(t *testing.T) {
	srv := newTestServer(t, AuthConfig{InsecureDev: true})
	ctx := context.Background()

	var (
		mu     sync.Mutex
		events []webhookEvent
	)
	receiver := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var evt webhookEvent
		_ = json.NewDecoder(r.Body).Decode(&evt)
		mu.Lock()
		events = append(events, evt)
		mu.Unlock()
	}))
	defer receiver.Close()

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	d := newWebhookDispatcher(srv.Engine, []config.WebhookConfig{{URL: receiver.URL, Events: []string{"call.create"}}}, logger)
	d.dispatchAll(ctx)

	if _, err := srv.Engine.CreateUnit(ctx, engine.UnitCreateOptions{Kind: "officer", Callsign: "2B-1"}); err != nil {
		t.Fatalf("create unit: %v", err)
	}
	if _, err := srv.Engine.CreateCall(ctx, engine.CallCreateOptions{Location: "Harmony"}); err != nil {
		t.Fatalf("create call: %v", err)
	}
	d.dispatchAll(ctx)

	mu.Lock()
	defer mu.Unlock()
	if len(events) != 1 || events[0].Type != "call.create" || events[0].ActorID != "system" {
		t.Fatalf("expected one call.create delivery, got %+v", events)
	}
}
