// Package pgstore implements the ledger and catalog stores on PostgreSQL.
package pgstore

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Spok95/e-weave/internal/domain/catalog"
	"github.com/Spok95/e-weave/internal/domain/ledger"
	"github.com/Spok95/e-weave/internal/domain/materials"
	"github.com/Spok95/e-weave/internal/domain/projects"
	"github.com/Spok95/e-weave/internal/domain/team"
	"github.com/Spok95/e-weave/internal/infra/db"
)

type Store struct {
	pool *pgxpool.Pool
	repos
}

var (
	_ ledger.Store  = (*Store)(nil)
	_ catalog.Store = (*Store)(nil)
)

type repos struct {
	catalog   *catalog.Repo
	materials *materials.Repo
	projects  *projects.Repo
	team      *team.Repo
}

func newRepos(q db.Querier) repos {
	return repos{
		catalog:   catalog.NewRepo(q),
		materials: materials.NewRepo(q),
		projects:  projects.NewRepo(q),
		team:      team.NewRepo(q),
	}
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool, repos: newRepos(pool)}
}

// InTx runs fn in a read committed transaction. Materials are locked with
// SELECT ... FOR UPDATE and the quantity write is conditional, which is enough
// to serialise writers per material without SERIALIZABLE.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx ledger.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(ctx, pgTx{newRepos(tx)}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

type pgTx struct{ repos }

func (t pgTx) TeamMemberByUserID(ctx context.Context, userID string) (*team.Member, error) {
	return t.team.GetByUserID(ctx, userID)
}

func (t pgTx) MaterialForUpdate(ctx context.Context, id uuid.UUID) (*materials.Material, error) {
	return t.materials.GetForUpdate(ctx, id)
}

func (t pgTx) Task(ctx context.Context, id uuid.UUID) (*projects.Task, error) {
	return t.projects.GetTask(ctx, id)
}

func (t pgTx) ProjectHasMaterial(ctx context.Context, projectID, materialID uuid.UUID) (bool, error) {
	return t.projects.HasMaterial(ctx, projectID, materialID)
}

func (t pgTx) SetQuantity(ctx context.Context, id uuid.UUID, expected, qty float64) (bool, error) {
	return t.materials.SetQuantity(ctx, id, expected, qty)
}

func (t pgTx) InsertHistory(ctx context.Context, h materials.History) error {
	return t.materials.InsertHistory(ctx, h)
}

func (t pgTx) InsertTaskMaterial(ctx context.Context, tm projects.TaskMaterial) error {
	return t.projects.InsertTaskMaterial(ctx, tm)
}

/* Reads and catalog writes run on the pool. */

func (s *Store) GetMaterial(ctx context.Context, id uuid.UUID) (*materials.Material, error) {
	return s.materials.GetByID(ctx, id)
}

func (s *Store) ListMaterials(ctx context.Context) ([]materials.Material, error) {
	return s.materials.List(ctx)
}

func (s *Store) CreateMaterial(ctx context.Context, m materials.Material) (*materials.Material, error) {
	return s.materials.Create(ctx, m)
}

func (s *Store) ListHistory(ctx context.Context, materialID uuid.UUID, limit int) ([]materials.History, error) {
	return s.materials.ListHistory(ctx, materialID, limit)
}

func (s *Store) GetTask(ctx context.Context, id uuid.UUID) (*projects.Task, error) {
	return s.projects.GetTask(ctx, id)
}

func (s *Store) ListTaskMaterials(ctx context.Context, taskID uuid.UUID) ([]projects.TaskMaterial, error) {
	return s.projects.ListTaskMaterials(ctx, taskID)
}

func (s *Store) CreateCategory(ctx context.Context, c catalog.Category) (*catalog.Category, error) {
	return s.catalog.CreateCategory(ctx, c)
}

func (s *Store) GetCategory(ctx context.Context, id uuid.UUID) (*catalog.Category, error) {
	return s.catalog.GetCategoryByID(ctx, id)
}

func (s *Store) ListCategories(ctx context.Context) ([]catalog.Category, error) {
	return s.catalog.ListCategories(ctx)
}

func (s *Store) CreateProject(ctx context.Context, p projects.Project) (*projects.Project, error) {
	return s.projects.CreateProject(ctx, p)
}

func (s *Store) GetProject(ctx context.Context, id uuid.UUID) (*projects.Project, error) {
	return s.projects.GetProject(ctx, id)
}

func (s *Store) CreateTask(ctx context.Context, t projects.Task) (*projects.Task, error) {
	return s.projects.CreateTask(ctx, t)
}

func (s *Store) AssignMaterial(ctx context.Context, projectID, materialID uuid.UUID) error {
	return s.projects.AssignMaterial(ctx, projectID, materialID)
}

func (s *Store) UpsertTeamMember(ctx context.Context, m team.Member) (*team.Member, error) {
	return s.team.Upsert(ctx, m)
}
