package repo

import (
	"context"
	"database/sql"
	"errors"

	"dispatchline/internal/domain"
)

const incidentColumns = `id,case_number,COALESCE(description,''),is_active,firearms_involved,injuries_or_fatalities,arrests_made,created_at,updated_at`

func scanIncident(row rowScanner) (domain.Incident, error) {
	var inc domain.Incident
	var active, firearms, injuries, arrest int
	err := row.Scan(&inc.ID, &inc.CaseNumber, &inc.Description, &active, &firearms, &injuries, &arrest, &inc.CreatedAt, &inc.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return inc, ErrNotFound
	}
	inc.IsActive = active != 0
	inc.FirearmsInvolved = firearms != 0
	inc.InjuriesOrFatalities = injuries != 0
	inc.ArrestsMade = arrest != 0
	inc.InvolvedUnits = []domain.AssignedUnit{}
	return inc, err
}

func (r Repo) InsertIncident(ctx context.Context, tx *sql.Tx, inc domain.Incident) error {
	_, err := r.q(tx).ExecContext(ctx, `INSERT INTO incidents(id,case_number,description,is_active,firearms_involved,injuries_or_fatalities,arrests_made,created_at,updated_at) VALUES (?,?,?,?,?,?,?,?,?)`,
		inc.ID, inc.CaseNumber, nullable(inc.Description), boolInt(inc.IsActive), boolInt(inc.FirearmsInvolved),
		boolInt(inc.InjuriesOrFatalities), boolInt(inc.ArrestsMade), inc.CreatedAt, inc.UpdatedAt)
	return err
}

func (r Repo) GetIncident(ctx context.Context, tx *sql.Tx, id string) (domain.Incident, error) {
	inc, err := scanIncident(r.q(tx).QueryRowContext(ctx, `SELECT `+incidentColumns+` FROM incidents WHERE id=?`, id))
	if err != nil {
		return domain.Incident{}, err
	}
	units, err := r.incidentUnits(ctx, tx, []string{inc.ID})
	if err != nil {
		return domain.Incident{}, err
	}
	if iu, ok := units[inc.ID]; ok {
		inc.InvolvedUnits = iu
	}
	return inc, nil
}

func (r Repo) ListIncidents(ctx context.Context, activeOnly bool) ([]domain.Incident, error) {
	query := `SELECT ` + incidentColumns + ` FROM incidents`
	if activeOnly {
		query += ` WHERE is_active=1`
	}
	query += ` ORDER BY case_number DESC`
	rows, err := r.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var (
		res []domain.Incident
		ids []string
	)
	for rows.Next() {
		inc, err := scanIncident(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, inc)
		ids = append(ids, inc.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()
	units, err := r.incidentUnits(ctx, nil, ids)
	if err != nil {
		return nil, err
	}
	for i := range res {
		if iu, ok := units[res[i].ID]; ok {
			res[i].InvolvedUnits = iu
		}
	}
	return res, nil
}

func (r Repo) AddIncidentUnit(ctx context.Context, tx *sql.Tx, incidentID string, au domain.AssignedUnit) error {
	_, err := r.q(tx).ExecContext(ctx, `INSERT INTO incident_units(id,incident_id,unit_id,created_at) VALUES (?,?,?,?)`,
		au.ID, incidentID, au.UnitID, au.CreatedAt)
	return err
}

func (r Repo) RemoveIncidentUnit(ctx context.Context, tx *sql.Tx, incidentID, unitID string) (bool, error) {
	res, err := r.q(tx).ExecContext(ctx, `DELETE FROM incident_units WHERE incident_id=? AND unit_id=?`, incidentID, unitID)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (r Repo) TouchIncident(ctx context.Context, tx *sql.Tx, id, updatedAt string) error {
	_, err := r.q(tx).ExecContext(ctx, `UPDATE incidents SET updated_at=? WHERE id=?`, updatedAt, id)
	return err
}

func (r Repo) incidentUnits(ctx context.Context, tx *sql.Tx, ids []string) (map[string][]domain.AssignedUnit, error) {
	out := make(map[string][]domain.AssignedUnit, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	query := `SELECT iu.incident_id, iu.id, iu.unit_id, u.callsign, iu.created_at
FROM incident_units iu JOIN units u ON u.id=iu.unit_id
WHERE iu.incident_id IN (` + placeholders(len(ids)) + `)
ORDER BY iu.created_at, iu.id`
	rows, err := r.q(tx).QueryContext(ctx, query, stringArgs(ids)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			incidentID string
			au         domain.AssignedUnit
		)
		if err := rows.Scan(&incidentID, &au.ID, &au.UnitID, &au.Callsign, &au.CreatedAt); err != nil {
			return nil, err
		}
		out[incidentID] = append(out[incidentID], au)
	}
	return out, rows.Err()
}
