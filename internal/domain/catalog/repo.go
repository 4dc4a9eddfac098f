package catalog

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/Spok95/e-weave/internal/infra/db"
)

type Repo struct{ q db.Querier }

func NewRepo(q db.Querier) *Repo { return &Repo{q: q} }

/* Categories */

func (r *Repo) CreateCategory(ctx context.Context, c Category) (*Category, error) {
	row := r.q.QueryRow(ctx, `
		INSERT INTO material_categories (id, name) VALUES ($1,$2)
		ON CONFLICT (name) DO NOTHING
		RETURNING id, name, created_at
	`, c.ID, c.Name)
	var out Category
	err := row.Scan(&out.ID, &out.Name, &out.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		// already exists
		return r.GetCategoryByName(ctx, c.Name)
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *Repo) GetCategoryByName(ctx context.Context, name string) (*Category, error) {
	return r.getCategory(ctx, `SELECT id, name, created_at FROM material_categories WHERE name = $1`, name)
}

func (r *Repo) GetCategoryByID(ctx context.Context, id uuid.UUID) (*Category, error) {
	return r.getCategory(ctx, `SELECT id, name, created_at FROM material_categories WHERE id = $1`, id)
}

func (r *Repo) getCategory(ctx context.Context, q string, arg any) (*Category, error) {
	var c Category
	if err := r.q.QueryRow(ctx, q, arg).Scan(&c.ID, &c.Name, &c.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

func (r *Repo) ListCategories(ctx context.Context) ([]Category, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id, name, created_at
		FROM material_categories
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Category
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Name, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
