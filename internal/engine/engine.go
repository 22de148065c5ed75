package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"dispatchline/internal/domain"
	"dispatchline/internal/events"
	"dispatchline/internal/repo"
)

// Publisher receives records after their transaction commits.
type Publisher interface {
	PublishCall(domain.Call)
	PublishUnit(domain.Unit)
	PublishIncident(domain.Incident)
}

type Engine struct {
	DB        *sql.DB
	Repo      repo.Repo
	Events    events.Writer
	Publisher Publisher
	Now       func() time.Time
}

func New(db *sql.DB) Engine {
	return Engine{
		DB:     db,
		Repo:   repo.Repo{DB: db},
		Events: events.Writer{},
		Now:    time.Now,
	}
}

// WithPublisher returns a copy of e that announces committed changes to p.
func (e Engine) WithPublisher(p Publisher) Engine {
	e.Publisher = p
	return e
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) timestamp() string {
	return e.now().UTC().Format(time.RFC3339)
}

// withTx runs fn in a transaction and commits when it returns nil.
func (e Engine) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// eventWriter shares the engine clock with the event log.
func (e Engine) eventWriter() events.Writer {
	w := e.Events
	if w.Now == nil {
		w.Now = e.now
	}
	return w
}

// CallCreateOptions are parameters for creating a 911 call.
type CallCreateOptions struct {
	Name        string
	Location    string
	Postal      string
	Description string
	Status      string
	ActorID     string
}

func (e Engine) CreateCall(ctx context.Context, opts CallCreateOptions) (domain.Call, error) {
	opts.Location = strings.TrimSpace(opts.Location)
	if opts.Location == "" {
		return domain.Call{}, errors.New("location is required")
	}
	if opts.Status == "" {
		opts.Status = domain.CallStatusPending
	}
	if !domain.ValidCallStatus(opts.Status) {
		return domain.Call{}, fmt.Errorf("invalid call status %s", opts.Status)
	}
	now := e.timestamp()
	c := domain.Call{
		ID:            uuid.NewString(),
		Name:          strings.TrimSpace(opts.Name),
		Location:      opts.Location,
		Postal:        strings.TrimSpace(opts.Postal),
		Description:   strings.TrimSpace(opts.Description),
		Status:        opts.Status,
		AssignedUnits: []domain.AssignedUnit{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	err := e.withTx(ctx, func(tx *sql.Tx) error {
		n, err := e.Repo.NextCaseNumber(ctx, tx, "calls")
		if err != nil {
			return err
		}
		c.CaseNumber = n
		if err := e.Repo.InsertCall(ctx, tx, c); err != nil {
			return fmt.Errorf("insert call: %w", err)
		}
		return e.eventWriter().Append(ctx, tx, events.CallCreate, "call", c.ID, opts.ActorID, events.Payload{
			"case_number": c.CaseNumber,
			"status":      c.Status,
		})
	})
	if err != nil {
		return domain.Call{}, err
	}
	e.publishCall(c)
	return c, nil
}

func (e Engine) GetCall(ctx context.Context, id string) (domain.Call, error) {
	return e.Repo.GetCall(ctx, nil, id)
}

func (e Engine) ListCalls(ctx context.Context, f repo.CallFilter) ([]domain.Call, error) {
	if f.Status != "" && f.Status != "all" && !domain.ValidCallStatus(f.Status) {
		return nil, fmt.Errorf("invalid status filter %s", f.Status)
	}
	return e.Repo.ListCalls(ctx, f)
}

func (e Engine) SetCallStatus(ctx context.Context, id, status, actorID string) (domain.Call, error) {
	if !domain.ValidCallStatus(status) {
		return domain.Call{}, fmt.Errorf("invalid call status %s", status)
	}
	var out domain.Call
	err := e.withTx(ctx, func(tx *sql.Tx) error {
		current, err := e.Repo.GetCall(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := e.Repo.UpdateCallStatus(ctx, tx, id, status, e.timestamp()); err != nil {
			return err
		}
		if err := e.eventWriter().Append(ctx, tx, events.CallStatus, "call", id, actorID, events.Payload{
			"from": current.Status,
			"to":   status,
		}); err != nil {
			return err
		}
		out, err = e.Repo.GetCall(ctx, tx, id)
		return err
	})
	if err != nil {
		return domain.Call{}, err
	}
	e.publishCall(out)
	return out, nil
}

// EndCall marks a call ended and releases its assigned units.
func (e Engine) EndCall(ctx context.Context, id, actorID string) (domain.Call, error) {
	var (
		out      domain.Call
		released []domain.Unit
	)
	err := e.withTx(ctx, func(tx *sql.Tx) error {
		current, err := e.Repo.GetCall(ctx, tx, id)
		if err != nil {
			return err
		}
		now := e.timestamp()
		if err := e.Repo.EndCall(ctx, tx, id, now); err != nil {
			return err
		}
		for _, au := range current.AssignedUnits {
			u, err := e.releaseUnit(ctx, tx, au.UnitID, id, now)
			if err != nil {
				return err
			}
			if u != nil {
				released = append(released, *u)
			}
		}
		if err := e.eventWriter().Append(ctx, tx, events.CallEnd, "call", id, actorID, nil); err != nil {
			return err
		}
		out, err = e.Repo.GetCall(ctx, tx, id)
		return err
	})
	if err != nil {
		return domain.Call{}, err
	}
	e.publishCall(out)
	for _, u := range released {
		e.publishUnit(u)
	}
	return out, nil
}

// AssignUnitToCall attaches unitID to the call. Assigning an already assigned unit is a no-op.
func (e Engine) AssignUnitToCall(ctx context.Context, callID, unitID, actorID string) (domain.Call, error) {
	if strings.TrimSpace(unitID) == "" {
		return domain.Call{}, errors.New("unit is required")
	}
	var (
		out     domain.Call
		unit    domain.Unit
		changed bool
	)
	err := e.withTx(ctx, func(tx *sql.Tx) error {
		call, err := e.Repo.GetCall(ctx, tx, callID)
		if err != nil {
			return err
		}
		if call.Ended {
			return fmt.Errorf("call #%d is ended: invalid assignment", call.CaseNumber)
		}
		unit, err = e.Repo.GetUnit(ctx, tx, unitID)
		if err != nil {
			return fmt.Errorf("unit %s: %w", unitID, err)
		}
		if call.HasUnit(unitID) {
			out = call
			return nil
		}
		now := e.timestamp()
		au := domain.AssignedUnit{
			ID:        uuid.NewString(),
			UnitID:    unitID,
			IsPrimary: len(call.AssignedUnits) == 0,
			CreatedAt: now,
		}
		if err := e.Repo.AddCallUnit(ctx, tx, callID, au); err != nil {
			return fmt.Errorf("assign unit: %w", err)
		}
		activeCall := callID
		if err := e.Repo.UpdateUnitStatus(ctx, tx, unitID, domain.UnitStatusEnRoute, &activeCall, now); err != nil {
			return err
		}
		if err := e.Repo.TouchCall(ctx, tx, callID, now); err != nil {
			return err
		}
		if err := e.eventWriter().Append(ctx, tx, events.CallAssign, "call", callID, actorID, events.Payload{
			"unit_id":  unitID,
			"callsign": unit.Callsign,
		}); err != nil {
			return err
		}
		if out, err = e.Repo.GetCall(ctx, tx, callID); err != nil {
			return err
		}
		unit, err = e.Repo.GetUnit(ctx, tx, unitID)
		changed = true
		return err
	})
	if err != nil {
		return domain.Call{}, err
	}
	if changed {
		e.publishCall(out)
		e.publishUnit(unit)
	}
	return out, nil
}

// UnassignUnitFromCall detaches unitID from the call. Unassigning an absent unit is a no-op.
func (e Engine) UnassignUnitFromCall(ctx context.Context, callID, unitID, actorID string) (domain.Call, error) {
	if strings.TrimSpace(unitID) == "" {
		return domain.Call{}, errors.New("unit is required")
	}
	var (
		out      domain.Call
		released *domain.Unit
		changed  bool
	)
	err := e.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := e.Repo.GetCall(ctx, tx, callID); err != nil {
			return err
		}
		if _, err := e.Repo.GetUnit(ctx, tx, unitID); err != nil {
			return fmt.Errorf("unit %s: %w", unitID, err)
		}
		removed, err := e.Repo.RemoveCallUnit(ctx, tx, callID, unitID)
		if err != nil {
			return err
		}
		if removed {
			now := e.timestamp()
			if released, err = e.releaseUnit(ctx, tx, unitID, callID, now); err != nil {
				return err
			}
			if err := e.Repo.TouchCall(ctx, tx, callID, now); err != nil {
				return err
			}
			if err := e.eventWriter().Append(ctx, tx, events.CallUnassign, "call", callID, actorID, events.Payload{"unit_id": unitID}); err != nil {
				return err
			}
			changed = true
		}
		out, err = e.Repo.GetCall(ctx, tx, callID)
		return err
	})
	if err != nil {
		return domain.Call{}, err
	}
	if changed {
		e.publishCall(out)
		if released != nil {
			e.publishUnit(*released)
		}
	}
	return out, nil
}

// releaseUnit returns the unit to on-duty when its active call is callID.
func (e Engine) releaseUnit(ctx context.Context, tx *sql.Tx, unitID, callID, now string) (*domain.Unit, error) {
	u, err := e.Repo.GetUnit(ctx, tx, unitID)
	if err != nil {
		return nil, err
	}
	if u.ActiveCallID == nil || *u.ActiveCallID != callID {
		return nil, nil
	}
	if err := e.Repo.UpdateUnitStatus(ctx, tx, unitID, domain.UnitStatusOnDuty, nil, now); err != nil {
		return nil, err
	}
	u.Status = domain.UnitStatusOnDuty
	u.ActiveCallID = nil
	u.UpdatedAt = now
	return &u, nil
}

func (e Engine) publishCall(c domain.Call) {
	if e.Publisher != nil {
		e.Publisher.PublishCall(c)
	}
}

func (e Engine) publishUnit(u domain.Unit) {
	if e.Publisher != nil {
		e.Publisher.PublishUnit(u)
	}
}

func (e Engine) publishIncident(inc domain.Incident) {
	if e.Publisher != nil {
		e.Publisher.PublishIncident(inc)
	}
}
