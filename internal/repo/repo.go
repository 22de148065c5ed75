package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"dispatchline/internal/domain"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

// q picks the open transaction when there is one.
func (r Repo) q(tx *sql.Tx) DBTX {
	if tx != nil {
		return tx
	}
	return r.DB
}

// CallFilter narrows ListCalls.
type CallFilter struct {
	Status       string
	Query        string
	IncludeEnded bool
	Limit        int
}

const callColumns = `id,case_number,name,location,COALESCE(postal,''),COALESCE(description,''),status,ended,created_at,updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCall(row rowScanner) (domain.Call, error) {
	var c domain.Call
	var ended int
	err := row.Scan(&c.ID, &c.CaseNumber, &c.Name, &c.Location, &c.Postal, &c.Description, &c.Status, &ended, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return c, ErrNotFound
	}
	c.Ended = ended != 0
	c.AssignedUnits = []domain.AssignedUnit{}
	return c, err
}

// NextCaseNumber returns the next sequential case number for calls or incidents.
func (r Repo) NextCaseNumber(ctx context.Context, tx *sql.Tx, table string) (int64, error) {
	switch table {
	case "calls", "incidents":
	default:
		return 0, fmt.Errorf("invalid case number table %q", table)
	}
	var n int64
	err := r.q(tx).QueryRowContext(ctx, `SELECT COALESCE(MAX(case_number),0)+1 FROM `+table).Scan(&n)
	return n, err
}

func (r Repo) InsertCall(ctx context.Context, tx *sql.Tx, c domain.Call) error {
	_, err := r.q(tx).ExecContext(ctx, `INSERT INTO calls(id,case_number,name,location,postal,description,status,ended,created_at,updated_at) VALUES (?,?,?,?,?,?,?,?,?,?)`,
		c.ID, c.CaseNumber, c.Name, c.Location, nullable(c.Postal), nullable(c.Description), c.Status, boolInt(c.Ended), c.CreatedAt, c.UpdatedAt)
	return err
}

// GetCall loads a call with its assigned units.
func (r Repo) GetCall(ctx context.Context, tx *sql.Tx, id string) (domain.Call, error) {
	c, err := scanCall(r.q(tx).QueryRowContext(ctx, `SELECT `+callColumns+` FROM calls WHERE id=?`, id))
	if err != nil {
		return domain.Call{}, err
	}
	units, err := r.callUnits(ctx, tx, []string{c.ID})
	if err != nil {
		return domain.Call{}, err
	}
	if au, ok := units[c.ID]; ok {
		c.AssignedUnits = au
	}
	return c, nil
}

func (r Repo) ListCalls(ctx context.Context, f CallFilter) ([]domain.Call, error) {
	var (
		clauses []string
		args    []any
	)
	if !f.IncludeEnded {
		clauses = append(clauses, "ended=0")
	}
	if f.Status != "" && f.Status != "all" {
		clauses = append(clauses, "status=?")
		args = append(args, f.Status)
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		like := "%" + strings.ToLower(q) + "%"
		clauses = append(clauses, "(LOWER(name) LIKE ? OR LOWER(location) LIKE ? OR LOWER(COALESCE(description,'')) LIKE ? OR CAST(case_number AS TEXT) LIKE ?)")
		args = append(args, like, like, like, like)
	}
	query := `SELECT ` + callColumns + ` FROM calls`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY case_number DESC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var (
		calls []domain.Call
		ids   []string
	)
	for rows.Next() {
		c, err := scanCall(rows)
		if err != nil {
			return nil, err
		}
		calls = append(calls, c)
		ids = append(ids, c.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()
	units, err := r.callUnits(ctx, nil, ids)
	if err != nil {
		return nil, err
	}
	for i := range calls {
		if au, ok := units[calls[i].ID]; ok {
			calls[i].AssignedUnits = au
		}
	}
	return calls, nil
}

func (r Repo) UpdateCallStatus(ctx context.Context, tx *sql.Tx, id, status, updatedAt string) error {
	res, err := r.q(tx).ExecContext(ctx, `UPDATE calls SET status=?, updated_at=? WHERE id=?`, status, updatedAt, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) EndCall(ctx context.Context, tx *sql.Tx, id, updatedAt string) error {
	res, err := r.q(tx).ExecContext(ctx, `UPDATE calls SET ended=1, updated_at=? WHERE id=?`, updatedAt, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) TouchCall(ctx context.Context, tx *sql.Tx, id, updatedAt string) error {
	_, err := r.q(tx).ExecContext(ctx, `UPDATE calls SET updated_at=? WHERE id=?`, updatedAt, id)
	return err
}

func (r Repo) AddCallUnit(ctx context.Context, tx *sql.Tx, callID string, au domain.AssignedUnit) error {
	_, err := r.q(tx).ExecContext(ctx, `INSERT INTO call_units(id,call_id,unit_id,is_primary,created_at) VALUES (?,?,?,?,?)`,
		au.ID, callID, au.UnitID, boolInt(au.IsPrimary), au.CreatedAt)
	return err
}

// RemoveCallUnit deletes the assignment and reports whether one existed.
func (r Repo) RemoveCallUnit(ctx context.Context, tx *sql.Tx, callID, unitID string) (bool, error) {
	res, err := r.q(tx).ExecContext(ctx, `DELETE FROM call_units WHERE call_id=? AND unit_id=?`, callID, unitID)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (r Repo) callUnits(ctx context.Context, tx *sql.Tx, callIDs []string) (map[string][]domain.AssignedUnit, error) {
	out := make(map[string][]domain.AssignedUnit, len(callIDs))
	if len(callIDs) == 0 {
		return out, nil
	}
	query := `SELECT cu.call_id, cu.id, cu.unit_id, u.callsign, cu.is_primary, cu.created_at
FROM call_units cu JOIN units u ON u.id=cu.unit_id
WHERE cu.call_id IN (` + placeholders(len(callIDs)) + `)
ORDER BY cu.created_at, cu.id`
	rows, err := r.q(tx).QueryContext(ctx, query, stringArgs(callIDs)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			callID  string
			au      domain.AssignedUnit
			primary int
		)
		if err := rows.Scan(&callID, &au.ID, &au.UnitID, &au.Callsign, &primary, &au.CreatedAt); err != nil {
			return nil, err
		}
		au.IsPrimary = primary != 0
		out[callID] = append(out[callID], au)
	}
	return out, rows.Err()
}

// LatestEvents returns the newest n events, newest first.
func (r Repo) LatestEvents(ctx context.Context, n int, evtType, entityKind, entityID string) ([]domain.Event, error) {
	var (
		clauses []string
		args    []any
	)
	if evtType != "" {
		clauses = append(clauses, "type=?")
		args = append(args, evtType)
	}
	if entityKind != "" {
		clauses = append(clauses, "entity_kind=?")
		args = append(args, entityKind)
	}
	if entityID != "" {
		clauses = append(clauses, "entity_id=?")
		args = append(args, entityID)
	}
	query := `SELECT id,ts,type,entity_kind,COALESCE(entity_id,''),actor_id,payload_json FROM events`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY id DESC"
	if n > 0 {
		query += " LIMIT ?"
		args = append(args, n)
	}
	return r.queryEvents(ctx, query, args...)
}

// EventsAfter returns up to limit events with id greater than cursor, oldest first.
func (r Repo) EventsAfter(ctx context.Context, limit int, cursor int64) ([]domain.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	return r.queryEvents(ctx, `SELECT id,ts,type,entity_kind,COALESCE(entity_id,''),actor_id,payload_json FROM events WHERE id>? ORDER BY id ASC LIMIT ?`, cursor, limit)
}

func (r Repo) LatestEventID(ctx context.Context) (int64, error) {
	var id int64
	err := r.DB.QueryRowContext(ctx, `SELECT COALESCE(MAX(id),0) FROM events`).Scan(&id)
	return id, err
}

func (r Repo) queryEvents(ctx context.Context, query string, args ...any) ([]domain.Event, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Event
	for rows.Next() {
		var e domain.Event
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &e.EntityKind, &e.EntityID, &e.ActorID, &e.Payload); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func stringArgs(items []string) []any {
	args := make([]any, len(items))
	for i, v := range items {
		args[i] = v
	}
	return args
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
