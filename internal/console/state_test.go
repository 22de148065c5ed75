package console

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dispatchsdk "dispatchline/sdk/go"
)

func TestLogEvictsOldestPastCapacity(t *testing.T) {
	l := NewLog(0)
	require.Equal(t, DefaultLogCapacity, l.Capacity())
	for i := 1; i <= 26; i++ {
		l.Append(fmt.Sprintf("cmd %d", i), "ok", KindInfo)
	}
	entries := l.Entries()
	require.Len(t, entries, 25)
	assert.Equal(t, "cmd 2", entries[0].Input)
	assert.Equal(t, "cmd 26", entries[24].Input)
	for i := 1; i < len(entries); i++ {
		assert.Equal(t, 1, entries[i].ID.Compare(entries[i-1].ID), "ids must increase")
	}
}

func TestConsoleLogKeepsTwentyFiveEntries(t *testing.T) {
	c := New(Options{})
	assert.Equal(t, 25, c.Log.Capacity())
	for i := 0; i < 30; i++ {
		c.Execute(context.Background(), "help")
	}
	assert.Equal(t, 25, c.Log.Len())
}

func TestLogSubscribe(t *testing.T) {
	l := NewLog(3)
	var got []string
	unsubscribe := l.Subscribe(func(e LogEntry) { got = append(got, e.Output) })
	l.Append("a", "first", KindSuccess)
	unsubscribe()
	l.Append("b", "second", KindError)
	assert.Equal(t, []string{"first"}, got)
	assert.Equal(t, 2, l.Len())
}

func TestTokenize(t *testing.T) {
	cmd, ok := Tokenize("  VIEW   call\t#12 ")
	require.True(t, ok)
	assert.Equal(t, "view", cmd.Verb)
	assert.Equal(t, []string{"call", "#12"}, cmd.Args)
	assert.Equal(t, "VIEW   call\t#12", cmd.Raw)

	_, ok = Tokenize(" \t ")
	assert.False(t, ok)

	assert.Equal(t, "12", NormalizeCaseNumber("#12 "))
	assert.Equal(t, "#12", NormalizeCaseNumber(" #12 "))
	assert.Equal(t, "#12", NormalizeCaseNumber("##12"))
}

func TestCallStoreVisible(t *testing.T) {
	s := NewCallStore()
	s.SetCalls([]dispatchsdk.Call{
		{ID: "1", CaseNumber: 10, Location: "Route 68", Status: StatusPending},
		{ID: "2", CaseNumber: 11, Location: "Grove Street", Status: StatusAccepted},
		{ID: "3", CaseNumber: 12, Location: "Vinewood", Description: "grove party", Status: StatusDeclined},
	})

	ids := func(calls []dispatchsdk.Call) []string {
		out := []string{}
		for _, c := range calls {
			out = append(out, c.ID)
		}
		return out
	}
	assert.Equal(t, []string{"1", "2", "3"}, ids(s.Visible(Filter{Status: StatusAll}, true)))
	assert.Equal(t, []string{"2"}, ids(s.Visible(Filter{Status: StatusAll}, false)))
	assert.Equal(t, []string{"1"}, ids(s.Visible(Filter{Status: StatusPending}, true)))
	assert.Empty(t, ids(s.Visible(Filter{Status: StatusPending}, false)))
	assert.Equal(t, []string{"2", "3"}, ids(s.Visible(Filter{Status: StatusAll, Search: "GROVE"}, true)))
	assert.Equal(t, []string{"3"}, ids(s.Visible(Filter{Search: "#12"}, true)))
}

func TestCallStoreApply(t *testing.T) {
	s := NewCallStore()
	s.SetCalls([]dispatchsdk.Call{{ID: "1", CaseNumber: 10, Location: "Route 68", Status: StatusPending}})
	var notified int
	s.Subscribe(func([]dispatchsdk.Call) { notified++ })

	s.Apply(dispatchsdk.Call{ID: "2", CaseNumber: 11, Status: StatusPending})
	s.Apply(dispatchsdk.Call{ID: "1", Status: StatusAccepted})
	require.Equal(t, 2, s.Len())
	c, ok := s.FindByCase("10")
	require.True(t, ok)
	assert.Equal(t, StatusAccepted, c.Status)
	assert.Equal(t, "Route 68", c.Location)

	s.SetSelected(&c)
	s.Apply(dispatchsdk.Call{ID: "1", Ended: true})
	assert.Equal(t, 1, s.Len())
	_, ok = s.Selected()
	assert.False(t, ok)

	s.Apply(dispatchsdk.Call{ID: "9", Ended: true})
	assert.False(t, s.Merge(dispatchsdk.Call{ID: "missing"}))
	assert.Equal(t, 3, notified)
}

func TestModalStore(t *testing.T) {
	s := NewModalStore()
	var events []ModalEvent
	s.Subscribe(func(e ModalEvent) { events = append(events, e) })
	s.Open(ModalNotepad, nil)
	assert.True(t, s.IsOpen(ModalNotepad))
	s.Close(ModalNotepad)
	s.Close(ModalNotepad)
	assert.False(t, s.IsOpen(ModalNotepad))
	require.Len(t, events, 2)
	assert.True(t, events[0].Open)
	assert.False(t, events[1].Open)
}

func TestActiveUnitID(t *testing.T) {
	units := NewUnitStore()
	_, ok := ActiveUnitID(RouteOfficer, units)
	assert.False(t, ok)

	units.SetActiveOfficer(&dispatchsdk.Unit{ID: "o1"})
	units.SetActiveDeputy(&dispatchsdk.Unit{ID: "d1"})
	id, ok := ActiveUnitID("/officer", units)
	assert.True(t, ok)
	assert.Equal(t, "o1", id)
	id, _ = ActiveUnitID("/ems-fd/incidents", units)
	assert.Equal(t, "d1", id)
	_, ok = ActiveUnitID(RouteDispatch, units)
	assert.False(t, ok)
	assert.True(t, IsDispatchRoute(RouteDispatch))
	assert.False(t, IsDispatchRoute(RouteOfficer))
}

func TestGuard(t *testing.T) {
	var g Guard
	assert.Equal(t, StateIdle, g.State())
	assert.True(t, g.Enter())
	assert.False(t, g.Enter())
	assert.Equal(t, "processing", g.State().String())
	g.Leave()
	assert.True(t, g.Enter())
}

func TestRenderEntry(t *testing.T) {
	out := RenderEntry(LogEntry{Input: "summary", Output: "Calls loaded: 1\nSearch: (none)", Kind: KindInfo})
	assert.Contains(t, out, "summary")
	assert.Contains(t, out, "Calls loaded: 1")
	assert.Contains(t, out, "Search: (none)")
	assert.Contains(t, RenderLog(nil), EmptyLog)
}
