package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

const (
	CallCreate       = "call.create"
	CallStatus       = "call.status"
	CallEnd          = "call.end"
	CallAssign       = "call.assign"
	CallUnassign     = "call.unassign"
	UnitCreate       = "unit.create"
	UnitStatus       = "unit.status"
	IncidentCreate   = "incident.create"
	IncidentAssign   = "incident.assign"
	IncidentUnassign = "incident.unassign"
)

// Writer appends dispatch events inside the caller's transaction.
type Writer struct {
	Now func() time.Time
}

type Payload map[string]any

func (w Writer) Append(ctx context.Context, tx *sql.Tx, evtType, entityKind, entityID, actorID string, payload Payload) error {
	now := time.Now
	if w.Now != nil {
		now = w.Now
	}
	if payload == nil {
		payload = Payload{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}
	if actorID == "" {
		actorID = "system"
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO events(ts,type,entity_kind,entity_id,actor_id,payload_json) VALUES (?,?,?,?,?,?)`,
		now().UTC().Format(time.RFC3339), evtType, entityKind, nullable(entityID), actorID, string(data))
	return err
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
