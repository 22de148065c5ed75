package app

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	dispatchsdk "dispatchline/sdk/go"
)

// DashboardSource is the part of the API client a dashboard reads from.
type DashboardSource interface {
	ListCalls(ctx context.Context, q dispatchsdk.CallQuery) ([]dispatchsdk.Call, error)
	ListUnits(ctx context.Context, kind string) ([]dispatchsdk.Unit, error)
	ListIncidents(ctx context.Context, activeOnly bool) ([]dispatchsdk.Incident, error)
}

// Dashboard is the page data of the dispatch board.
type Dashboard struct {
	Calls     []dispatchsdk.Call     `json:"calls"`
	Officers  []dispatchsdk.Unit     `json:"officers"`
	Deputies  []dispatchsdk.Unit     `json:"deputies"`
	Incidents []dispatchsdk.Incident `json:"incidents"`
}

// LoadDashboard requests calls, officers, deputies and active incidents in
// parallel. The first failure cancels the rest.
func LoadDashboard(ctx context.Context, src DashboardSource) (Dashboard, error) {
	var d Dashboard
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		d.Calls, err = src.ListCalls(ctx, dispatchsdk.CallQuery{})
		return wrap("calls", err)
	})
	g.Go(func() (err error) {
		d.Officers, err = src.ListUnits(ctx, "officer")
		return wrap("officers", err)
	})
	g.Go(func() (err error) {
		d.Deputies, err = src.ListUnits(ctx, "deputy")
		return wrap("deputies", err)
	})
	g.Go(func() (err error) {
		d.Incidents, err = src.ListIncidents(ctx, true)
		return wrap("incidents", err)
	})
	if err := g.Wait(); err != nil {
		return Dashboard{}, err
	}
	return d, nil
}

func wrap(what string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("load %s: %w", what, err)
}
