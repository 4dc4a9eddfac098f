package projects

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/Spok95/e-weave/internal/infra/db"
)

type Repo struct{ q db.Querier }

func NewRepo(q db.Querier) *Repo { return &Repo{q: q} }

/* Projects */

func (r *Repo) CreateProject(ctx context.Context, p Project) (*Project, error) {
	row := r.q.QueryRow(ctx, `
		INSERT INTO projects (id, name) VALUES ($1,$2)
		RETURNING id, name, created_at
	`, p.ID, p.Name)
	var out Project
	if err := row.Scan(&out.ID, &out.Name, &out.CreatedAt); err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *Repo) GetProject(ctx context.Context, id uuid.UUID) (*Project, error) {
	row := r.q.QueryRow(ctx, `SELECT id, name, created_at FROM projects WHERE id = $1`, id)
	var p Project
	if err := row.Scan(&p.ID, &p.Name, &p.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

/* Tasks */

func (r *Repo) CreateTask(ctx context.Context, t Task) (*Task, error) {
	row := r.q.QueryRow(ctx, `
		INSERT INTO tasks (id, project_id, title) VALUES ($1,$2,$3)
		RETURNING id, project_id, title, created_at
	`, t.ID, t.ProjectID, t.Title)
	var out Task
	if err := row.Scan(&out.ID, &out.ProjectID, &out.Title, &out.CreatedAt); err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *Repo) GetTask(ctx context.Context, id uuid.UUID) (*Task, error) {
	row := r.q.QueryRow(ctx, `SELECT id, project_id, title, created_at FROM tasks WHERE id = $1`, id)
	var t Task
	if err := row.Scan(&t.ID, &t.ProjectID, &t.Title, &t.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}

/* Project materials */

// AssignMaterial is idempotent.
func (r *Repo) AssignMaterial(ctx context.Context, projectID, materialID uuid.UUID) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO project_materials (project_id, material_id)
		VALUES ($1,$2)
		ON CONFLICT (project_id, material_id) DO NOTHING
	`, projectID, materialID)
	return err
}

func (r *Repo) HasMaterial(ctx context.Context, projectID, materialID uuid.UUID) (bool, error) {
	var ok bool
	err := r.q.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM project_materials WHERE project_id = $1 AND material_id = $2
		)
	`, projectID, materialID).Scan(&ok)
	return ok, err
}

/* Task materials */

func (r *Repo) InsertTaskMaterial(ctx context.Context, tm TaskMaterial) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO task_materials (id, task_id, material_id, team_member_id, history_id, amount_used, used_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, tm.ID, tm.TaskID, tm.MaterialID, tm.TeamMemberID, tm.HistoryID, tm.AmountUsed, tm.UsedAt)
	return err
}

func (r *Repo) ListTaskMaterials(ctx context.Context, taskID uuid.UUID) ([]TaskMaterial, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id, task_id, material_id, team_member_id, history_id, amount_used, used_at
		FROM task_materials
		WHERE task_id = $1
		ORDER BY used_at, id
	`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TaskMaterial
	for rows.Next() {
		var tm TaskMaterial
		if err := rows.Scan(&tm.ID, &tm.TaskID, &tm.MaterialID, &tm.TeamMemberID, &tm.HistoryID, &tm.AmountUsed, &tm.UsedAt); err != nil {
			return nil, err
		}
		out = append(out, tm)
	}
	return out, rows.Err()
}
