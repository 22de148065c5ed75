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

// UnitCreateOptions are parameters for going on duty as a unit.
type UnitCreateOptions struct {
	ID         string
	Kind       string
	Callsign   string
	Name       string
	Department string
	ActorID    string
}

func (e Engine) CreateUnit(ctx context.Context, opts UnitCreateOptions) (domain.Unit, error) {
	switch opts.Kind {
	case domain.UnitKindOfficer, domain.UnitKindDeputy:
	case "":
		return domain.Unit{}, errors.New("kind is required")
	default:
		return domain.Unit{}, fmt.Errorf("invalid unit kind %s", opts.Kind)
	}
	opts.Callsign = strings.TrimSpace(opts.Callsign)
	if opts.Callsign == "" {
		return domain.Unit{}, errors.New("callsign is required")
	}
	id := strings.TrimSpace(opts.ID)
	if id == "" {
		id = uuid.NewString()
	}
	now := e.timestamp()
	u := domain.Unit{
		ID:         id,
		Kind:       opts.Kind,
		Callsign:   opts.Callsign,
		Name:       strings.TrimSpace(opts.Name),
		Department: strings.TrimSpace(opts.Department),
		Status:     domain.UnitStatusOnDuty,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	err := e.withTx(ctx, func(tx *sql.Tx) error {
		if err := e.Repo.InsertUnit(ctx, tx, u); err != nil {
			return fmt.Errorf("insert unit: %w", err)
		}
		return e.eventWriter().Append(ctx, tx, events.UnitCreate, "unit", u.ID, opts.ActorID, events.Payload{
			"kind":     u.Kind,
			"callsign": u.Callsign,
		})
	})
	if err != nil {
		return domain.Unit{}, err
	}
	e.publishUnit(u)
	return u, nil
}

func (e Engine) GetUnit(ctx context.Context, id string) (domain.Unit, error) {
	return e.Repo.GetUnit(ctx, nil, id)
}

func (e Engine) ListUnits(ctx context.Context, kind string) ([]domain.Unit, error) {
	switch kind {
	case "", domain.UnitKindOfficer, domain.UnitKindDeputy:
	default:
		return nil, fmt.Errorf("invalid unit kind %s", kind)
	}
	return e.Repo.ListUnits(ctx, kind)
}

// SetUnitStatus changes a unit's status. Going off duty clears its active call.
func (e Engine) SetUnitStatus(ctx context.Context, id, status, actorID string) (domain.Unit, error) {
	if !domain.ValidUnitStatus(status) {
		return domain.Unit{}, fmt.Errorf("invalid unit status %s", status)
	}
	var out domain.Unit
	err := e.withTx(ctx, func(tx *sql.Tx) error {
		current, err := e.Repo.GetUnit(ctx, tx, id)
		if err != nil {
			return err
		}
		activeCall := current.ActiveCallID
		if status == domain.UnitStatusOffDuty {
			activeCall = nil
		}
		if err := e.Repo.UpdateUnitStatus(ctx, tx, id, status, activeCall, e.timestamp()); err != nil {
			return err
		}
		if err := e.eventWriter().Append(ctx, tx, events.UnitStatus, "unit", id, actorID, events.Payload{
			"from": current.Status,
			"to":   status,
		}); err != nil {
			return err
		}
		out, err = e.Repo.GetUnit(ctx, tx, id)
		return err
	})
	if err != nil {
		return domain.Unit{}, err
	}
	e.publishUnit(out)
	return out, nil
}
