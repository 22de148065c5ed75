package server

import (
	"io"
	"testing"

	"github.com/sirupsen/logrus"

	"dispatchline/internal/domain"
	"dispatchline/internal/engine/auth"
)

func nextEvent(t *testing.T, c *hubClient) streamEvent {
	t.Helper()
	select {
	case evt := <-c.send:
		return evt
	default:
		t.Fatalf("expected a queued stream event")
		return streamEvent{}
	}
}

func TestHubRemovesCallsUnitsCanNoLongerSee(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	hub := NewHub(logger)
	unit := &hubClient{perms: auth.PermissionsForRole(auth.PermUnit), send: make(chan streamEvent, 4)}
	dispatcher := &hubClient{perms: auth.PermissionsForRole(auth.PermDispatch), send: make(chan streamEvent, 4)}
	hub.register(unit)
	hub.register(dispatcher)
	defer hub.unregister(unit)
	defer hub.unregister(dispatcher)

	hub.PublishCall(domain.Call{ID: "c1", Location: "Vinewood", Status: domain.CallStatusAccepted})
	hub.PublishCall(domain.Call{ID: "c1", Location: "Vinewood", Status: domain.CallStatusPending})

	evt := nextEvent(t, unit)
	if evt.Type != streamCall || evt.Call.Location != "Vinewood" {
		t.Fatalf("expected accepted call update, got %+v", evt)
	}
	evt = nextEvent(t, unit)
	if evt.Type != streamCallRemoved || evt.Call.ID != "c1" || evt.Call.Location != "" {
		t.Fatalf("expected id-only removal, got %+v", evt)
	}

	for i := 0; i < 2; i++ {
		evt := nextEvent(t, dispatcher)
		if evt.Type != streamCall || evt.Call.Location != "Vinewood" {
			t.Fatalf("dispatcher should see every update, got %+v", evt)
		}
	}
	if got := hub.Subscribers(); got != 2 {
		t.Fatalf("expected 2 subscribers, got %d", got)
	}
}
