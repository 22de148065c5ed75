package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"dispatchline/internal/config"
	"dispatchline/internal/console"
	dispatchsdk "dispatchline/sdk/go"
)

// Client is what a console session needs from the API.
type Client interface {
	DashboardSource
	console.CallUpdater
}

// Session is a console bound to loaded dashboard state.
type Session struct {
	Console   *console.Console
	Dashboard Dashboard
}

// NewSession loads the dashboard and seeds a console with its calls and the
// configured active officer and deputy.
func NewSession(ctx context.Context, client Client, cfg *config.Config, logger logrus.FieldLogger) (*Session, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	dash, err := LoadDashboard(ctx, client)
	if err != nil {
		return nil, err
	}
	c := console.New(console.Options{
		Route:  cfg.Console.Route,
		Client: client,
		Logger: logger,
	})
	c.Calls.SetCalls(dash.Calls)

	if ref := cfg.Console.ActiveOfficer; ref != "" {
		u, ok := FindUnit(dash.Officers, ref)
		if !ok {
			return nil, fmt.Errorf("active officer %q is not on duty", ref)
		}
		c.Units.SetActiveOfficer(&u)
	}
	if ref := cfg.Console.ActiveDeputy; ref != "" {
		u, ok := FindUnit(dash.Deputies, ref)
		if !ok {
			return nil, fmt.Errorf("active deputy %q is not on duty", ref)
		}
		c.Units.SetActiveDeputy(&u)
	}
	return &Session{Console: c, Dashboard: dash}, nil
}

// FindUnit matches ref against unit ids, then callsigns case-insensitively.
func FindUnit(units []dispatchsdk.Unit, ref string) (dispatchsdk.Unit, bool) {
	ref = strings.TrimSpace(ref)
	for _, u := range units {
		if u.ID == ref {
			return u, true
		}
	}
	for _, u := range units {
		if strings.EqualFold(u.Callsign, ref) {
			return u, true
		}
	}
	return dispatchsdk.Unit{}, false
}
