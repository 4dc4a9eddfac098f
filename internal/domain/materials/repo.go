package materials

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/Spok95/e-weave/internal/infra/db"
)

type Repo struct{ q db.Querier }

func NewRepo(q db.Querier) *Repo { return &Repo{q: q} }

const materialColumns = `id, name, category_id, fiber, description, water_usage, co2_footprint, quantity, created_at`

func scanMaterial(row pgx.Row) (*Material, error) {
	var m Material
	if err := row.Scan(
		&m.ID,
		&m.Name,
		&m.CategoryID,
		&m.Fiber,
		&m.Description,
		&m.WaterUsage,
		&m.CO2Footprint,
		&m.Quantity,
		&m.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &m, nil
}

func (r *Repo) Create(ctx context.Context, m Material) (*Material, error) {
	return scanMaterial(r.q.QueryRow(ctx, `
		INSERT INTO materials (id, name, category_id, fiber, description, water_usage, co2_footprint, quantity)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING `+materialColumns,
		m.ID, m.Name, m.CategoryID, m.Fiber, m.Description, m.WaterUsage, m.CO2Footprint, m.Quantity,
	))
}

// GetByID returns nil, nil when the material does not exist.
func (r *Repo) GetByID(ctx context.Context, id uuid.UUID) (*Material, error) {
	return scanMaterial(r.q.QueryRow(ctx, `SELECT `+materialColumns+` FROM materials WHERE id = $1`, id))
}

// GetForUpdate locks the row until the surrounding transaction ends.
func (r *Repo) GetForUpdate(ctx context.Context, id uuid.UUID) (*Material, error) {
	return scanMaterial(r.q.QueryRow(ctx, `SELECT `+materialColumns+` FROM materials WHERE id = $1 FOR UPDATE`, id))
}

func (r *Repo) List(ctx context.Context) ([]Material, error) {
	rows, err := r.q.Query(ctx, `SELECT `+materialColumns+` FROM materials ORDER BY name, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Material
	for rows.Next() {
		m, err := scanMaterial(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

// SetQuantity writes qty only if the stored quantity still equals expected.
// It reports false when nothing was updated.
func (r *Repo) SetQuantity(ctx context.Context, id uuid.UUID, expected, qty float64) (bool, error) {
	tag, err := r.q.Exec(ctx, `
		UPDATE materials SET quantity = $3
		WHERE id = $1 AND quantity = $2
	`, id, expected, qty)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

/* History */

func (r *Repo) InsertHistory(ctx context.Context, h History) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO material_history (id, material_id, team_member_id, previous_length, new_length, changed_at, task_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, h.ID, h.MaterialID, h.TeamMemberID, h.PreviousQuantity, h.NewQuantity, h.ChangedAt, h.TaskID)
	return err
}

// ListHistory returns entries oldest first. limit <= 0 means no limit; with a
// limit the most recent entries are kept.
func (r *Repo) ListHistory(ctx context.Context, materialID uuid.UUID, limit int) ([]History, error) {
	q := `
		SELECT id, material_id, team_member_id, previous_length, new_length, changed_at, task_id, seq
		FROM material_history
		WHERE material_id = $1
		ORDER BY seq DESC
	`
	args := []any{materialID}
	if limit > 0 {
		q += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := r.q.Query(ctx, `SELECT id, material_id, team_member_id, previous_length, new_length, changed_at, task_id FROM (`+q+`) h ORDER BY seq`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []History
	for rows.Next() {
		var h History
		if err := rows.Scan(
			&h.ID,
			&h.MaterialID,
			&h.TeamMemberID,
			&h.PreviousQuantity,
			&h.NewQuantity,
			&h.ChangedAt,
			&h.TaskID,
		); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}
