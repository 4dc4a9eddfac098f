package team

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/Spok95/e-weave/internal/infra/db"
)

type Repo struct {
	q db.Querier
}

func NewRepo(q db.Querier) *Repo { return &Repo{q: q} }

func (r *Repo) GetByUserID(ctx context.Context, userID string) (*Member, error) {
	row := r.q.QueryRow(ctx, `
		SELECT id, user_id, name, role, created_at
		FROM team_members WHERE user_id = $1
	`, userID)

	var m Member
	if err := row.Scan(&m.ID, &m.UserID, &m.Name, &m.Role, &m.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &m, nil
}

// Upsert creates the member or refreshes name and role for an existing user id.
func (r *Repo) Upsert(ctx context.Context, m Member) (*Member, error) {
	row := r.q.QueryRow(ctx, `
		INSERT INTO team_members (id, user_id, name, role)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (user_id)
		DO UPDATE SET
			name = EXCLUDED.name,
			role = EXCLUDED.role
		RETURNING id, user_id, name, role, created_at
	`, m.ID, m.UserID, m.Name, m.Role)

	var out Member
	if err := row.Scan(&out.ID, &out.UserID, &out.Name, &out.Role, &out.CreatedAt); err != nil {
		return nil, err
	}
	return &out, nil
}
