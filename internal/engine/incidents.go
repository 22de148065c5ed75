package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"dispatchline/internal/domain"
	"dispatchline/internal/events"
)

type IncidentCreateOptions struct {
	Description          string
	FirearmsInvolved     bool
	InjuriesOrFatalities bool
	ArrestsMade          bool
	UnitIDs              []string
	ActorID              string
}

func (e Engine) CreateIncident(ctx context.Context, opts IncidentCreateOptions) (domain.Incident, error) {
	now := e.timestamp()
	inc := domain.Incident{
		ID:                   uuid.NewString(),
		Description:          strings.TrimSpace(opts.Description),
		IsActive:             true,
		FirearmsInvolved:     opts.FirearmsInvolved,
		InjuriesOrFatalities: opts.InjuriesOrFatalities,
		ArrestsMade:          opts.ArrestsMade,
		InvolvedUnits:        []domain.AssignedUnit{},
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	err := e.withTx(ctx, func(tx *sql.Tx) error {
		n, err := e.Repo.NextCaseNumber(ctx, tx, "incidents")
		if err != nil {
			return err
		}
		inc.CaseNumber = n
		if err := e.Repo.InsertIncident(ctx, tx, inc); err != nil {
			return fmt.Errorf("insert incident: %w", err)
		}
		for _, unitID := range opts.UnitIDs {
			if _, err := e.Repo.GetUnit(ctx, tx, unitID); err != nil {
				return fmt.Errorf("unit %s: %w", unitID, err)
			}
			if err := e.Repo.AddIncidentUnit(ctx, tx, inc.ID, domain.AssignedUnit{ID: uuid.NewString(), UnitID: unitID, CreatedAt: now}); err != nil {
				return fmt.Errorf("involve unit: %w", err)
			}
		}
		if err := e.eventWriter().Append(ctx, tx, events.IncidentCreate, "incident", inc.ID, opts.ActorID, events.Payload{
			"case_number": inc.CaseNumber,
		}); err != nil {
			return err
		}
		inc, err = e.Repo.GetIncident(ctx, tx, inc.ID)
		return err
	})
	if err != nil {
		return domain.Incident{}, err
	}
	e.publishIncident(inc)
	return inc, nil
}

func (e Engine) ListIncidents(ctx context.Context, activeOnly bool) ([]domain.Incident, error) {
	return e.Repo.ListIncidents(ctx, activeOnly)
}

// AssignUnitToIncident involves unitID in the incident; repeats are no-ops.
func (e Engine) AssignUnitToIncident(ctx context.Context, incidentID, unitID, actorID string) (domain.Incident, error) {
	return e.changeIncidentUnit(ctx, incidentID, unitID, actorID, true)
}

// UnassignUnitFromIncident removes unitID from the incident; absent units are no-ops.
func (e Engine) UnassignUnitFromIncident(ctx context.Context, incidentID, unitID, actorID string) (domain.Incident, error) {
	return e.changeIncidentUnit(ctx, incidentID, unitID, actorID, false)
}

func (e Engine) changeIncidentUnit(ctx context.Context, incidentID, unitID, actorID string, assign bool) (domain.Incident, error) {
	if strings.TrimSpace(unitID) == "" {
		return domain.Incident{}, errors.New("unit is required")
	}
	var (
		out     domain.Incident
		changed bool
	)
	err := e.withTx(ctx, func(tx *sql.Tx) error {
		inc, err := e.Repo.GetIncident(ctx, tx, incidentID)
		if err != nil {
			return err
		}
		if _, err := e.Repo.GetUnit(ctx, tx, unitID); err != nil {
			return fmt.Errorf("unit %s: %w", unitID, err)
		}
		involved := false
		for _, iu := range inc.InvolvedUnits {
			if iu.UnitID == unitID {
				involved = true
				break
			}
		}
		now := e.timestamp()
		evtType := events.IncidentUnassign
		switch {
		case assign && !involved:
			evtType = events.IncidentAssign
			if err := e.Repo.AddIncidentUnit(ctx, tx, incidentID, domain.AssignedUnit{ID: uuid.NewString(), UnitID: unitID, CreatedAt: now}); err != nil {
				return fmt.Errorf("involve unit: %w", err)
			}
		case !assign && involved:
			if _, err := e.Repo.RemoveIncidentUnit(ctx, tx, incidentID, unitID); err != nil {
				return err
			}
		default:
			out = inc
			return nil
		}
		if err := e.Repo.TouchIncident(ctx, tx, incidentID, now); err != nil {
			return err
		}
		if err := e.eventWriter().Append(ctx, tx, evtType, "incident", incidentID, actorID, events.Payload{"unit_id": unitID}); err != nil {
			return err
		}
		changed = true
		out, err = e.Repo.GetIncident(ctx, tx, incidentID)
		return err
	})
	if err != nil {
		return domain.Incident{}, err
	}
	if changed {
		e.publishIncident(out)
	}
	return out, nil
}
