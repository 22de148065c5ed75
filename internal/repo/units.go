package repo

import (
	"context"
	"database/sql"
	"errors"

	"dispatchline/internal/domain"
)

const unitColumns = `id,kind,callsign,name,COALESCE(department,''),status,active_call_id,created_at,updated_at`

func scanUnit(row rowScanner) (domain.Unit, error) {
	var u domain.Unit
	var activeCall sql.NullString
	err := row.Scan(&u.ID, &u.Kind, &u.Callsign, &u.Name, &u.Department, &u.Status, &activeCall, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return u, ErrNotFound
	}
	if activeCall.Valid {
		v := activeCall.String
		u.ActiveCallID = &v
	}
	return u, err
}

func (r Repo) InsertUnit(ctx context.Context, tx *sql.Tx, u domain.Unit) error {
	_, err := r.q(tx).ExecContext(ctx, `INSERT INTO units(id,kind,callsign,name,department,status,active_call_id,created_at,updated_at) VALUES (?,?,?,?,?,?,?,?,?)`,
		u.ID, u.Kind, u.Callsign, u.Name, nullable(u.Department), u.Status, u.ActiveCallID, u.CreatedAt, u.UpdatedAt)
	return err
}

func (r Repo) GetUnit(ctx context.Context, tx *sql.Tx, id string) (domain.Unit, error) {
	return scanUnit(r.q(tx).QueryRowContext(ctx, `SELECT `+unitColumns+` FROM units WHERE id=?`, id))
}

// ListUnits returns units ordered by callsign, optionally only one kind.
func (r Repo) ListUnits(ctx context.Context, kind string) ([]domain.Unit, error) {
	query := `SELECT ` + unitColumns + ` FROM units`
	var args []any
	if kind != "" {
		query += ` WHERE kind=?`
		args = append(args, kind)
	}
	query += ` ORDER BY callsign, id`
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Unit
	for rows.Next() {
		u, err := scanUnit(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, u)
	}
	return res, rows.Err()
}

// UpdateUnitStatus sets status and the active call; a nil activeCallID clears it.
func (r Repo) UpdateUnitStatus(ctx context.Context, tx *sql.Tx, id, status string, activeCallID *string, updatedAt string) error {
	res, err := r.q(tx).ExecContext(ctx, `UPDATE units SET status=?, active_call_id=?, updated_at=? WHERE id=?`, status, activeCallID, updatedAt, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
