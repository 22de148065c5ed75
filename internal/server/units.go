package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"dispatchline/internal/domain"
	"dispatchline/internal/engine"
	"dispatchline/internal/engine/auth"
)

type unitBody struct {
	Body domain.Unit `json:"body"`
}

type incidentBody struct {
	Body domain.Incident `json:"body"`
}

func registerUnits(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-units",
		Method:      http.MethodGet,
		Path:        "/units",
		Summary:     "List active officers and deputies",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Kind string `query:"kind" enum:"officer,deputy"`
	}) (*struct {
		Body UnitListResponse `json:"body"`
	}, error) {
		if _, err := requirePermission(ctx, auth.PermUnit); err != nil {
			return nil, handleError(err)
		}
		units, err := e.ListUnits(ctx, input.Kind)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body UnitListResponse `json:"body"`
		}{Body: UnitListResponse{Units: nonNilUnits(units)}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-unit",
		Method:        http.MethodPost,
		Path:          "/units",
		Summary:       "Put a unit on duty",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Body CreateUnitRequest `json:"body"`
	}) (*unitBody, error) {
		p, err := requirePermission(ctx, auth.PermDispatch)
		if err != nil {
			return nil, handleError(err)
		}
		if strings.TrimSpace(input.Body.Callsign) == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "callsign is required", map[string]any{"field": "callsign"})
		}
		u, err := e.CreateUnit(ctx, engine.UnitCreateOptions{
			ID:         input.Body.ID,
			Kind:       input.Body.Kind,
			Callsign:   input.Body.Callsign,
			Name:       input.Body.Name,
			Department: input.Body.Department,
			ActorID:    p.ActorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &unitBody{Body: u}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-unit-status",
		Method:      http.MethodPatch,
		Path:        "/units/{id}/status",
		Summary:     "Set unit status",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID   string            `path:"id"`
		Body UnitStatusRequest `json:"body"`
	}) (*unitBody, error) {
		p, err := requirePermission(ctx, auth.PermUnit)
		if err != nil {
			return nil, handleError(err)
		}
		u, err := e.SetUnitStatus(ctx, input.ID, input.Body.Status, p.ActorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &unitBody{Body: u}, nil
	})
}

func registerIncidents(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-incidents",
		Method:      http.MethodGet,
		Path:        "/incidents",
		Summary:     "List incidents",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Active bool `query:"active"`
	}) (*struct {
		Body IncidentListResponse `json:"body"`
	}, error) {
		if _, err := requirePermission(ctx, auth.PermUnit); err != nil {
			return nil, handleError(err)
		}
		items, err := e.ListIncidents(ctx, input.Active)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body IncidentListResponse `json:"body"`
		}{Body: IncidentListResponse{Incidents: nonNilIncidents(items)}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-incident",
		Method:        http.MethodPost,
		Path:          "/incidents",
		Summary:       "Create incident",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Body CreateIncidentRequest `json:"body"`
	}) (*incidentBody, error) {
		p, err := requirePermission(ctx, auth.PermDispatch)
		if err != nil {
			return nil, handleError(err)
		}
		inc, err := e.CreateIncident(ctx, engine.IncidentCreateOptions{
			Description:          input.Body.Description,
			FirearmsInvolved:     input.Body.FirearmsInvolved,
			InjuriesOrFatalities: input.Body.InjuriesOrFatalities,
			ArrestsMade:          input.Body.ArrestsMade,
			UnitIDs:              input.Body.UnitIDs,
			ActorID:              p.ActorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &incidentBody{Body: inc}, nil
	})

	for _, action := range []string{"assign", "unassign"} {
		apply := e.AssignUnitToIncident
		if action == "unassign" {
			apply = e.UnassignUnitFromIncident
		}
		huma.Register(api, huma.Operation{
			OperationID: action + "-incident-unit",
			Method:      http.MethodPost,
			Path:        "/incidents/" + action + "/{id}",
			Summary:     strings.ToUpper(action[:1]) + action[1:] + " incident unit",
			Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound},
		}, func(ctx context.Context, input *struct {
			ID   string        `path:"id"`
			Body AssignRequest `json:"body"`
		}) (*incidentBody, error) {
			p, err := requirePermission(ctx, auth.PermDispatch)
			if err != nil {
				return nil, handleError(err)
			}
			if strings.TrimSpace(input.Body.Unit) == "" {
				return nil, newAPIError(http.StatusBadRequest, "bad_request", "unit is required", map[string]any{"field": "unit"})
			}
			inc, err := apply(ctx, input.ID, input.Body.Unit, p.ActorID)
			if err != nil {
				return nil, handleError(err)
			}
			return &incidentBody{Body: inc}, nil
		})
	}
}

func registerEvents(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/events",
		Summary:     "List recent dispatch events",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Type       string `query:"type"`
		EntityKind string `query:"entity_kind" enum:"call,unit,incident"`
		EntityID   string `query:"entity_id"`
		Limit      int    `query:"limit" default:"50"`
	}) (*struct {
		Body EventListResponse `json:"body"`
	}, error) {
		if _, err := requirePermission(ctx, auth.PermDispatch); err != nil {
			return nil, handleError(err)
		}
		items, err := e.Repo.LatestEvents(ctx, normalizeLimit(input.Limit), input.Type, input.EntityKind, input.EntityID)
		if err != nil {
			return nil, handleError(err)
		}
		if items == nil {
			items = []domain.Event{}
		}
		return &struct {
			Body EventListResponse `json:"body"`
		}{Body: EventListResponse{Items: items}}, nil
	})
}
