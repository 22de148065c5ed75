package console

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dispatchsdk "dispatchline/sdk/go"
)

type fakeUpdater struct {
	mu       sync.Mutex
	requests []string
	resp     dispatchsdk.Call
	err      error
	block    chan struct{}
	started  chan struct{}
}

func (f *fakeUpdater) AssignCall(ctx context.Context, callID, unitID string) (dispatchsdk.Call, error) {
	return f.record("assign", callID, unitID)
}

func (f *fakeUpdater) UnassignCall(ctx context.Context, callID, unitID string) (dispatchsdk.Call, error) {
	return f.record("unassign", callID, unitID)
}

func (f *fakeUpdater) record(action, callID, unitID string) (dispatchsdk.Call, error) {
	f.mu.Lock()
	f.requests = append(f.requests, fmt.Sprintf("%s %s %s", action, callID, unitID))
	f.mu.Unlock()
	if f.started != nil {
		close(f.started)
	}
	if f.block != nil {
		<-f.block
	}
	return f.resp, f.err
}

func (f *fakeUpdater) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func newTestConsole(t *testing.T, updater CallUpdater) *Console {
	t.Helper()
	c := New(Options{Client: updater})
	c.Calls.SetCalls([]dispatchsdk.Call{
		{ID: "call-1", CaseNumber: 1234, Name: "Caller", Location: "Route 68", Status: "pending"},
		{ID: "call-2", CaseNumber: 1235, Location: "Grove Street", Status: "accepted"},
	})
	return c
}

func lastEntry(t *testing.T, c *Console) LogEntry {
	t.Helper()
	e, ok := c.Log.Last()
	require.True(t, ok, "expected a log entry")
	return e
}

func TestBlankInputLogsNothing(t *testing.T) {
	c := newTestConsole(t, nil)
	for _, in := range []string{"", " ", "\t\n  "} {
		require.NoError(t, c.Submit(context.Background(), in))
	}
	assert.Equal(t, 0, c.Log.Len())
}

func TestUnknownCommand(t *testing.T) {
	c := newTestConsole(t, nil)
	c.Execute(context.Background(), "  Launch  rockets ")
	require.Equal(t, 1, c.Log.Len())
	e := lastEntry(t, c)
	assert.Equal(t, KindError, e.Kind)
	assert.Equal(t, "Unknown command: launch.", e.Output)
	assert.Equal(t, "Launch  rockets", e.Input)
}

func TestHelp(t *testing.T) {
	c := newTestConsole(t, nil)
	c.Execute(context.Background(), "HELP")
	require.Equal(t, 1, c.Log.Len())
	e := lastEntry(t, c)
	assert.Equal(t, KindInfo, e.Kind)
	assert.Contains(t, e.Output, "Commands:")
	assert.Contains(t, e.Output, "- show filters")
}

func TestOpen(t *testing.T) {
	tests := []struct {
		input  string
		modal  ModalID
		output string
	}{
		{"open notepad", ModalNotepad, "Opened notepad."},
		{"open Name", ModalNameSearch, "Opened name search."},
		{"open name-search", ModalNameSearch, "Opened name search."},
		{"open vehicle", ModalVehicleSearch, "Opened vehicle search."},
		{"open weapon", ModalWeaponSearch, "Opened weapon search."},
		{"open address", ModalAddressSearch, "Opened address search."},
		{"open custom-field", ModalCustomFieldSearch, "Opened custom field search."},
		{"open CALL", ModalManage911Call, "Opened 911 call manager."},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			c := newTestConsole(t, nil)
			c.Execute(context.Background(), tt.input)
			e := lastEntry(t, c)
			assert.Equal(t, KindSuccess, e.Kind)
			assert.Equal(t, tt.output, e.Output)
			assert.True(t, c.Modals.IsOpen(tt.modal))
		})
	}

	c := newTestConsole(t, nil)
	c.Execute(context.Background(), "open")
	assert.Equal(t, "Missing target for open command.", lastEntry(t, c).Output)
	c.Execute(context.Background(), "open fire  truck")
	e := lastEntry(t, c)
	assert.Equal(t, KindError, e.Kind)
	assert.Equal(t, "Unknown modal target: fire truck", e.Output)
	assert.Equal(t, "open fire truck", e.Input)
}

func TestViewCall(t *testing.T) {
	for _, in := range []string{"view call 1234", "select call #1234", "FOCUS Call 1234"} {
		t.Run(in, func(t *testing.T) {
			c := newTestConsole(t, nil)
			c.Execute(context.Background(), in)
			e := lastEntry(t, c)
			assert.Equal(t, KindSuccess, e.Kind)
			assert.Equal(t, "Opened call #1234.", e.Output)
			selected, ok := c.Calls.Selected()
			require.True(t, ok)
			assert.Equal(t, "call-1", selected.ID)
			payload, ok := c.Modals.Payload(ModalManage911Call)
			require.True(t, ok)
			assert.Equal(t, "call-1", payload.(dispatchsdk.Call).ID)
		})
	}

	c := newTestConsole(t, nil)
	c.Execute(context.Background(), "view call 9999")
	e := lastEntry(t, c)
	assert.Equal(t, KindError, e.Kind)
	assert.Contains(t, e.Output, "9999")
	_, ok := c.Calls.Selected()
	assert.False(t, ok)

	c.Execute(context.Background(), "view unit 1")
	assert.Equal(t, "Only call selection is supported.", lastEntry(t, c).Output)
	c.Execute(context.Background(), "view call")
	assert.Equal(t, "Provide a case number to view.", lastEntry(t, c).Output)
	c.Execute(context.Background(), "view call 123")
	assert.Equal(t, "Call #123 was not found.", lastEntry(t, c).Output)
}

func TestAssignWithoutUnitIssuesNoRequest(t *testing.T) {
	updater := &fakeUpdater{resp: dispatchsdk.Call{ID: "call-1"}}
	c := newTestConsole(t, updater)
	c.Execute(context.Background(), "assign 1234")
	e := lastEntry(t, c)
	assert.Equal(t, KindError, e.Kind)
	assert.Equal(t, "Unit identifier required. Provide a unit ID or use an active unit.", e.Output)
	assert.Equal(t, "assign 1234", e.Input)
	assert.Equal(t, 0, updater.count())

	c.SetRoute(RouteOfficer)
	c.Execute(context.Background(), "assign #1234")
	assert.Equal(t, KindError, lastEntry(t, c).Kind)
	assert.Equal(t, 0, updater.count())
}

func TestAssignExplicitUnitMergesCall(t *testing.T) {
	updater := &fakeUpdater{resp: dispatchsdk.Call{
		ID:            "call-1",
		Status:        "accepted",
		AssignedUnits: []dispatchsdk.AssignedUnit{{ID: "a1", UnitID: "unit-9", IsPrimary: true}},
	}}
	c := newTestConsole(t, updater)
	c.Execute(context.Background(), "assign 1234 unit-9")
	e := lastEntry(t, c)
	assert.Equal(t, KindSuccess, e.Kind)
	assert.Equal(t, "Assigned unit successfully.", e.Output)
	assert.Equal(t, []string{"assign call-1 unit-9"}, updater.requests)

	call, ok := c.Calls.FindByCase("1234")
	require.True(t, ok)
	assert.Equal(t, "accepted", call.Status)
	assert.Equal(t, "Route 68", call.Location)
	require.Len(t, call.AssignedUnits, 1)
	assert.Equal(t, "unit-9", call.AssignedUnits[0].UnitID)
}

func TestAssignUsesRouteActiveUnit(t *testing.T) {
	updater := &fakeUpdater{resp: dispatchsdk.Call{ID: "call-2"}}
	c := newTestConsole(t, updater)
	c.Units.SetActiveOfficer(&dispatchsdk.Unit{ID: "officer-1"})
	c.Units.SetActiveDeputy(&dispatchsdk.Unit{ID: "deputy-1"})

	c.SetRoute("/officer/dashboard")
	c.Execute(context.Background(), "unassign 1235")
	assert.Equal(t, "Unassigned unit successfully.", lastEntry(t, c).Output)

	c.SetRoute(RouteEMSFD)
	c.Execute(context.Background(), "assign 1235")

	c.SetRoute(RouteDispatch)
	c.Execute(context.Background(), "assign 1235")
	assert.Equal(t, KindError, lastEntry(t, c).Kind)

	assert.Equal(t, []string{"unassign call-2 officer-1", "assign call-2 deputy-1"}, updater.requests)
}

func TestAssignFailures(t *testing.T) {
	c := newTestConsole(t, &fakeUpdater{resp: dispatchsdk.Call{}})
	c.Execute(context.Background(), "assign")
	assert.Equal(t, "Provide a case number to update.", lastEntry(t, c).Output)
	c.Execute(context.Background(), "assign 42 unit-1")
	assert.Equal(t, "Call #42 was not found.", lastEntry(t, c).Output)

	c.Execute(context.Background(), "assign 1234 unit-1")
	e := lastEntry(t, c)
	assert.Equal(t, KindError, e.Kind)
	assert.Equal(t, "Unable to update call.", e.Output)

	c = newTestConsole(t, &fakeUpdater{err: errors.New("connection refused")})
	c.Execute(context.Background(), "unassign 1234 unit-1")
	e = lastEntry(t, c)
	assert.Equal(t, KindError, e.Kind)
	assert.Equal(t, "Unable to update call: connection refused.", e.Output)
	call, _ := c.Calls.FindByCase("1234")
	assert.Equal(t, "pending", call.Status)
}

func TestSearchAndClear(t *testing.T) {
	c := newTestConsole(t, nil)
	c.Execute(context.Background(), "search  grove   street ")
	e := lastEntry(t, c)
	assert.Equal(t, KindSuccess, e.Kind)
	assert.Equal(t, `Search updated to "grove street".`, e.Output)
	assert.Equal(t, "grove street", c.Filters.Get().Search)

	c.Execute(context.Background(), "search")
	assert.Equal(t, "Provide text to search.", lastEntry(t, c).Output)
	assert.Equal(t, "grove street", c.Filters.Get().Search)

	c.Execute(context.Background(), "clear filters")
	assert.Equal(t, "Cannot clear filters.", lastEntry(t, c).Output)
	c.Execute(context.Background(), "clear")
	assert.Equal(t, "Cannot clear (unknown).", lastEntry(t, c).Output)

	c.Execute(context.Background(), "clear search")
	assert.Equal(t, "Search cleared.", lastEntry(t, c).Output)
	c.Execute(context.Background(), "summary")
	e = lastEntry(t, c)
	assert.Equal(t, KindInfo, e.Kind)
	assert.Equal(t, "Calls loaded: 2\nSearch: (none)\nStatus filter: all", e.Output)
}

func TestFilterStatus(t *testing.T) {
	c := newTestConsole(t, nil)
	c.Execute(context.Background(), "filter status ACCEPTED")
	assert.Equal(t, "Status filter set to accepted.", lastEntry(t, c).Output)
	assert.Equal(t, StatusAccepted, c.Filters.Get().Status)

	c.Execute(context.Background(), "filter status bogus")
	e := lastEntry(t, c)
	assert.Equal(t, KindError, e.Kind)
	assert.Equal(t, "Status must be one of: all, pending, accepted, declined.", e.Output)
	assert.Equal(t, StatusAccepted, c.Filters.Get().Status)

	c.Execute(context.Background(), "filter status")
	assert.Equal(t, KindError, lastEntry(t, c).Kind)
	c.Execute(context.Background(), "filter priority high")
	assert.Equal(t, "Only status filtering is supported.", lastEntry(t, c).Output)

	c.Execute(context.Background(), "search grove")
	c.Execute(context.Background(), "summary")
	assert.Equal(t, "Calls loaded: 2\nSearch: \"grove\"\nStatus filter: accepted", lastEntry(t, c).Output)
}

func TestShowFilters(t *testing.T) {
	c := newTestConsole(t, nil)
	var seen []Filter
	c.Filters.Subscribe(func(f Filter) { seen = append(seen, f) })

	c.Execute(context.Background(), "show calls")
	assert.Equal(t, "Unknown show target: calls.", lastEntry(t, c).Output)
	c.Execute(context.Background(), "show")
	assert.Equal(t, "Unknown show target: (unknown).", lastEntry(t, c).Output)
	assert.Empty(t, seen)

	c.Execute(context.Background(), "show filters")
	assert.Equal(t, "Filters opened.", lastEntry(t, c).Output)
	assert.True(t, c.Filters.Get().ShowFilters)
	require.Len(t, seen, 1)
	assert.True(t, seen[0].ShowFilters)
}

func TestSubmitRejectsWhileProcessing(t *testing.T) {
	updater := &fakeUpdater{
		resp:    dispatchsdk.Call{ID: "call-1"},
		block:   make(chan struct{}),
		started: make(chan struct{}),
	}
	c := newTestConsole(t, updater)

	done := make(chan error, 1)
	go func() { done <- c.Submit(context.Background(), "assign 1234 unit-1") }()
	<-updater.started

	assert.True(t, c.Processing())
	assert.Equal(t, PromptBusy, c.Prompt())
	assert.ErrorIs(t, c.Submit(context.Background(), "help"), ErrBusy)
	assert.Equal(t, 0, c.Log.Len())

	close(updater.block)
	require.NoError(t, <-done)
	assert.False(t, c.Processing())
	assert.Equal(t, 1, c.Log.Len())
	assert.Equal(t, "Assigned unit successfully.", lastEntry(t, c).Output)

	require.NoError(t, c.Submit(context.Background(), "help"))
	assert.Equal(t, 2, c.Log.Len())
}
