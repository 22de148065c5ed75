package app

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dispatchline/internal/config"
	"dispatchline/internal/console"
	dispatchsdk "dispatchline/sdk/go"
)

type fakeClient struct {
	calls    []dispatchsdk.Call
	units    map[string][]dispatchsdk.Unit
	incErr   error
	assigned []string
}

func (f *fakeClient) ListCalls(ctx context.Context, q dispatchsdk.CallQuery) ([]dispatchsdk.Call, error) {
	return f.calls, nil
}

func (f *fakeClient) ListUnits(ctx context.Context, kind string) ([]dispatchsdk.Unit, error) {
	return f.units[kind], nil
}

func (f *fakeClient) ListIncidents(ctx context.Context, activeOnly bool) ([]dispatchsdk.Incident, error) {
	if f.incErr != nil {
		return nil, f.incErr
	}
	return []dispatchsdk.Incident{{ID: "inc-1", CaseNumber: 1, IsActive: true}}, nil
}

func (f *fakeClient) AssignCall(ctx context.Context, callID, unitID string) (dispatchsdk.Call, error) {
	f.assigned = append(f.assigned, callID+"/"+unitID)
	return dispatchsdk.Call{ID: callID}, nil
}

func (f *fakeClient) UnassignCall(ctx context.Context, callID, unitID string) (dispatchsdk.Call, error) {
	return dispatchsdk.Call{ID: callID}, nil
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		calls: []dispatchsdk.Call{{ID: "c1", CaseNumber: 7, Status: "accepted"}},
		units: map[string][]dispatchsdk.Unit{
			"officer": {{ID: "o1", Kind: "officer", Callsign: "1A-12"}},
			"deputy":  {{ID: "d1", Kind: "deputy", Callsign: "M-3"}},
		},
	}
}

func TestLoadDashboard(t *testing.T) {
	d, err := LoadDashboard(context.Background(), newFakeClient())
	require.NoError(t, err)
	assert.Len(t, d.Calls, 1)
	assert.Len(t, d.Officers, 1)
	assert.Len(t, d.Deputies, 1)
	assert.Len(t, d.Incidents, 1)
}

func TestLoadDashboardFailure(t *testing.T) {
	client := newFakeClient()
	client.incErr = errors.New("boom")
	_, err := LoadDashboard(context.Background(), client)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load incidents")
}

func TestNewSessionResolvesActiveUnits(t *testing.T) {
	client := newFakeClient()
	cfg := config.Default()
	cfg.Console.Route = console.RouteOfficer
	cfg.Console.ActiveOfficer = "1a-12"
	cfg.Console.ActiveDeputy = "d1"

	s, err := NewSession(context.Background(), client, cfg, nil)
	require.NoError(t, err)
	officer, ok := s.Console.Units.ActiveOfficer()
	require.True(t, ok)
	assert.Equal(t, "o1", officer.ID)
	deputy, ok := s.Console.Units.ActiveDeputy()
	require.True(t, ok)
	assert.Equal(t, "d1", deputy.ID)

	require.NoError(t, s.Console.Submit(context.Background(), "assign 7"))
	assert.Equal(t, []string{"c1/o1"}, client.assigned)
}

func TestNewSessionUnknownActiveUnit(t *testing.T) {
	cfg := config.Default()
	cfg.Console.ActiveDeputy = "Z-9"
	_, err := NewSession(context.Background(), newFakeClient(), cfg, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Z-9")
}
