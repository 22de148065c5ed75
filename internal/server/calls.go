package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"dispatchline/internal/domain"
	"dispatchline/internal/engine"
	"dispatchline/internal/engine/auth"
	"dispatchline/internal/repo"
)

type callBody struct {
	Body domain.Call `json:"body"`
}

func registerCalls(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-calls",
		Method:      http.MethodGet,
		Path:        "/911-calls",
		Summary:     "List active 911 calls",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Status       string `query:"status" enum:"all,pending,accepted,declined"`
		Query        string `query:"q"`
		Limit        int    `query:"limit" default:"100"`
		IncludeEnded bool   `query:"include_ended"`
	}) (*struct {
		Body CallListResponse `json:"body"`
	}, error) {
		p, err := requirePermission(ctx, auth.PermUnit)
		if err != nil {
			return nil, handleError(err)
		}
		calls, err := e.ListCalls(ctx, repo.CallFilter{
			Status:       input.Status,
			Query:        input.Query,
			IncludeEnded: input.IncludeEnded,
			Limit:        normalizeLimit(input.Limit),
		})
		if err != nil {
			return nil, handleError(err)
		}
		visible := make([]domain.Call, 0, len(calls))
		for _, c := range calls {
			if auth.CanSeeCall(p.Permissions, c) {
				visible = append(visible, c)
			}
		}
		return &struct {
			Body CallListResponse `json:"body"`
		}{Body: CallListResponse{Calls: nonNilCalls(visible), TotalCount: len(visible)}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-call",
		Method:        http.MethodPost,
		Path:          "/911-calls",
		Summary:       "Create 911 call",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Body CreateCallRequest `json:"body"`
	}) (*callBody, error) {
		p, err := requirePermission(ctx, auth.PermDispatch)
		if err != nil {
			return nil, handleError(err)
		}
		if strings.TrimSpace(input.Body.Location) == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "location is required", map[string]any{"field": "location"})
		}
		c, err := e.CreateCall(ctx, engine.CallCreateOptions{
			Name:        input.Body.Name,
			Location:    input.Body.Location,
			Postal:      input.Body.Postal,
			Description: input.Body.Description,
			Status:      input.Body.Status,
			ActorID:     p.ActorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &callBody{Body: c}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-call",
		Method:      http.MethodGet,
		Path:        "/911-calls/{id}",
		Summary:     "Get 911 call",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*callBody, error) {
		p, err := requirePermission(ctx, auth.PermUnit)
		if err != nil {
			return nil, handleError(err)
		}
		c, err := visibleCall(ctx, e, p, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &callBody{Body: c}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-call-status",
		Method:      http.MethodPatch,
		Path:        "/911-calls/{id}/status",
		Summary:     "Set 911 call status",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID   string            `path:"id"`
		Body CallStatusRequest `json:"body"`
	}) (*callBody, error) {
		p, err := requirePermission(ctx, auth.PermDispatch)
		if err != nil {
			return nil, handleError(err)
		}
		c, err := e.SetCallStatus(ctx, input.ID, input.Body.Status, p.ActorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &callBody{Body: c}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "end-call",
		Method:      http.MethodPost,
		Path:        "/911-calls/{id}/end",
		Summary:     "End 911 call and release its units",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*callBody, error) {
		p, err := requirePermission(ctx, auth.PermDispatch)
		if err != nil {
			return nil, handleError(err)
		}
		c, err := e.EndCall(ctx, input.ID, p.ActorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &callBody{Body: c}, nil
	})

	registerCallAssignment(api, e, "assign", "Assign unit to 911 call", e.AssignUnitToCall)
	registerCallAssignment(api, e, "unassign", "Unassign unit from 911 call", e.UnassignUnitFromCall)
}

type callAssignFunc func(ctx context.Context, callID, unitID, actorID string) (domain.Call, error)

func registerCallAssignment(api huma.API, e engine.Engine, action, summary string, apply callAssignFunc) {
	huma.Register(api, huma.Operation{
		OperationID: action + "-call-unit",
		Method:      http.MethodPost,
		Path:        "/911-calls/" + action + "/{id}",
		Summary:     summary,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		ID   string        `path:"id"`
		Body AssignRequest `json:"body"`
	}) (*callBody, error) {
		p, err := requirePermission(ctx, auth.PermUnit)
		if err != nil {
			return nil, handleError(err)
		}
		if strings.TrimSpace(input.Body.Unit) == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "unit is required", map[string]any{"field": "unit"})
		}
		if _, err := visibleCall(ctx, e, p, input.ID); err != nil {
			return nil, handleError(err)
		}
		c, err := apply(ctx, input.ID, input.Body.Unit, p.ActorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &callBody{Body: c}, nil
	})
}

// visibleCall hides calls the principal may not see behind ErrNotFound.
func visibleCall(ctx context.Context, e engine.Engine, p Principal, id string) (domain.Call, error) {
	c, err := e.GetCall(ctx, id)
	if err != nil {
		return domain.Call{}, err
	}
	if !auth.CanSeeCall(p.Permissions, c) {
		return domain.Call{}, repo.ErrNotFound
	}
	return c, nil
}
