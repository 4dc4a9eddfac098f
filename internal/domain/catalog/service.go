package catalog

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"

	"github.com/Spok95/e-weave/internal/apperr"
	"github.com/Spok95/e-weave/internal/domain/materials"
	"github.com/Spok95/e-weave/internal/domain/projects"
	"github.com/Spok95/e-weave/internal/domain/team"
)

// Store is the persistence the catalog needs. Getters return nil, nil for
// missing rows.
type Store interface {
	CreateCategory(ctx context.Context, c Category) (*Category, error)
	GetCategory(ctx context.Context, id uuid.UUID) (*Category, error)
	ListCategories(ctx context.Context) ([]Category, error)

	CreateMaterial(ctx context.Context, m materials.Material) (*materials.Material, error)
	GetMaterial(ctx context.Context, id uuid.UUID) (*materials.Material, error)
	ListMaterials(ctx context.Context) ([]materials.Material, error)

	CreateProject(ctx context.Context, p projects.Project) (*projects.Project, error)
	GetProject(ctx context.Context, id uuid.UUID) (*projects.Project, error)
	CreateTask(ctx context.Context, t projects.Task) (*projects.Task, error)
	AssignMaterial(ctx context.Context, projectID, materialID uuid.UUID) error

	UpsertTeamMember(ctx context.Context, m team.Member) (*team.Member, error)
}

type Service struct {
	store Store
}

func NewService(store Store) *Service { return &Service{store: store} }

func (s *Service) CreateCategory(ctx context.Context, name string) (*Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.InvalidArgument("name is required")
	}
	c, err := s.store.CreateCategory(ctx, Category{ID: uuid.New(), Name: name})
	if err != nil {
		return nil, fmt.Errorf("create category: %w", err)
	}
	return c, nil
}

func (s *Service) ListCategories(ctx context.Context) ([]Category, error) {
	return s.store.ListCategories(ctx)
}

// CreateMaterial adds a catalog entry. The initial quantity is the opening
// balance; every later change goes through the ledger.
func (s *Service) CreateMaterial(ctx context.Context, in NewMaterial) (*materials.Material, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperr.InvalidArgument("name is required")
	}
	if math.IsNaN(in.Quantity) || math.IsInf(in.Quantity, 0) || in.Quantity < 0 {
		return nil, apperr.InvalidArgument("quantity must be a non-negative number")
	}
	if in.CategoryID != nil {
		cat, err := s.store.GetCategory(ctx, *in.CategoryID)
		if err != nil {
			return nil, fmt.Errorf("load category: %w", err)
		}
		if cat == nil {
			return nil, apperr.NotFound("category")
		}
	}

	m, err := s.store.CreateMaterial(ctx, materials.Material{
		ID:           uuid.New(),
		Name:         name,
		CategoryID:   in.CategoryID,
		Fiber:        strings.TrimSpace(in.Fiber),
		Description:  in.Description,
		WaterUsage:   in.WaterUsage,
		CO2Footprint: in.CO2Footprint,
		Quantity:     in.Quantity,
	})
	if err != nil {
		return nil, fmt.Errorf("create material: %w", err)
	}
	return m, nil
}

func (s *Service) GetMaterial(ctx context.Context, id uuid.UUID) (*materials.Material, error) {
	m, err := s.store.GetMaterial(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load material: %w", err)
	}
	if m == nil {
		return nil, apperr.NotFound("material")
	}
	return m, nil
}

func (s *Service) ListMaterials(ctx context.Context) ([]materials.Material, error) {
	return s.store.ListMaterials(ctx)
}

func (s *Service) CreateProject(ctx context.Context, name string) (*projects.Project, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.InvalidArgument("name is required")
	}
	p, err := s.store.CreateProject(ctx, projects.Project{ID: uuid.New(), Name: name})
	if err != nil {
		return nil, fmt.Errorf("create project: %w", err)
	}
	return p, nil
}

func (s *Service) CreateTask(ctx context.Context, projectID uuid.UUID, title string) (*projects.Task, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, apperr.InvalidArgument("title is required")
	}
	if err := s.requireProject(ctx, projectID); err != nil {
		return nil, err
	}
	t, err := s.store.CreateTask(ctx, projects.Task{ID: uuid.New(), ProjectID: projectID, Title: title})
	if err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	return t, nil
}

// AssignMaterial makes the material available to the project's tasks.
func (s *Service) AssignMaterial(ctx context.Context, projectID, materialID uuid.UUID) error {
	if err := s.requireProject(ctx, projectID); err != nil {
		return err
	}
	if _, err := s.GetMaterial(ctx, materialID); err != nil {
		return err
	}
	if err := s.store.AssignMaterial(ctx, projectID, materialID); err != nil {
		return fmt.Errorf("assign material: %w", err)
	}
	return nil
}

func (s *Service) RegisterMember(ctx context.Context, userID, name string, role team.Role) (*team.Member, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, apperr.InvalidArgument("user id is required")
	}
	if role == "" {
		role = team.RoleMember
	}
	if !role.Valid() {
		return nil, apperr.InvalidArgument(fmt.Sprintf("unknown role %q", role))
	}
	m, err := s.store.UpsertTeamMember(ctx, team.Member{
		ID:     uuid.New(),
		UserID: userID,
		Name:   strings.TrimSpace(name),
		Role:   role,
	})
	if err != nil {
		return nil, fmt.Errorf("register team member: %w", err)
	}
	return m, nil
}

func (s *Service) requireProject(ctx context.Context, id uuid.UUID) error {
	p, err := s.store.GetProject(ctx, id)
	if err != nil {
		return fmt.Errorf("load project: %w", err)
	}
	if p == nil {
		return apperr.NotFound("project")
	}
	return nil
}
