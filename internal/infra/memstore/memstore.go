// Package memstore is an in-memory implementation of the ledger and catalog
// stores. It backs the "memory" storage driver and the unit tests.
//
// A transaction locks each material it reads for update with a keyed mutex
// and stages its writes; commit applies the staged writes under the store
// mutex, rollback drops them.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/im7mortal/kmutex"

	"github.com/Spok95/e-weave/internal/domain/catalog"
	"github.com/Spok95/e-weave/internal/domain/ledger"
	"github.com/Spok95/e-weave/internal/domain/materials"
	"github.com/Spok95/e-weave/internal/domain/projects"
	"github.com/Spok95/e-weave/internal/domain/team"
)

// Fault lets tests fail a write. It is called with the write name
// ("set_quantity", "insert_history", "insert_task_material") and a non-nil
// result is returned from that write.
type Fault func(op string) error

type assignment struct {
	projectID  uuid.UUID
	materialID uuid.UUID
}

type Store struct {
	mu    sync.RWMutex
	locks *kmutex.Kmutex
	fault Fault
	now   func() time.Time

	categories  map[uuid.UUID]catalog.Category
	materials   map[uuid.UUID]materials.Material
	history     []materials.History
	members     map[string]team.Member // by user id
	projects    map[uuid.UUID]projects.Project
	tasks       map[uuid.UUID]projects.Task
	assignments map[assignment]time.Time
	usages      []projects.TaskMaterial
}

var (
	_ ledger.Store  = (*Store)(nil)
	_ catalog.Store = (*Store)(nil)
)

func New() *Store {
	return &Store{
		locks:       kmutex.New(),
		now:         func() time.Time { return time.Now().UTC() },
		categories:  map[uuid.UUID]catalog.Category{},
		materials:   map[uuid.UUID]materials.Material{},
		members:     map[string]team.Member{},
		projects:    map[uuid.UUID]projects.Project{},
		tasks:       map[uuid.UUID]projects.Task{},
		assignments: map[assignment]time.Time{},
	}
}

// SetFault installs f; nil removes it.
func (s *Store) SetFault(f Fault) {
	s.mu.Lock()
	s.fault = f
	s.mu.Unlock()
}

/* Transactions */

type tx struct {
	s      *Store
	locked []uuid.UUID

	quantities map[uuid.UUID]float64
	history    []materials.History
	usages     []projects.TaskMaterial
}

func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx ledger.Tx) error) error {
	t := &tx{s: s, quantities: map[uuid.UUID]float64{}}
	defer t.release()

	if err := fn(ctx, t); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.commit(t)
	return nil
}

func (t *tx) release() {
	for _, id := range t.locked {
		t.s.locks.Unlock(id)
	}
	t.locked = nil
}

func (s *Store) commit(t *tx) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, q := range t.quantities {
		m := s.materials[id]
		m.Quantity = q
		s.materials[id] = m
	}
	s.history = append(s.history, t.history...)
	s.usages = append(s.usages, t.usages...)
}

func (s *Store) injected(op string) error {
	s.mu.RLock()
	f := s.fault
	s.mu.RUnlock()
	if f == nil {
		return nil
	}
	return f(op)
}

func (t *tx) TeamMemberByUserID(_ context.Context, userID string) (*team.Member, error) {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	m, ok := t.s.members[userID]
	if !ok {
		return nil, nil
	}
	return &m, nil
}

func (t *tx) MaterialForUpdate(_ context.Context, id uuid.UUID) (*materials.Material, error) {
	if !t.holds(id) {
		t.s.locks.Lock(id)
		t.locked = append(t.locked, id)
	}

	t.s.mu.RLock()
	m, ok := t.s.materials[id]
	t.s.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	if q, staged := t.quantities[id]; staged {
		m.Quantity = q
	}
	return &m, nil
}

func (t *tx) holds(id uuid.UUID) bool {
	for _, l := range t.locked {
		if l == id {
			return true
		}
	}
	return false
}

func (t *tx) Task(_ context.Context, id uuid.UUID) (*projects.Task, error) {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	task, ok := t.s.tasks[id]
	if !ok {
		return nil, nil
	}
	return &task, nil
}

func (t *tx) ProjectHasMaterial(_ context.Context, projectID, materialID uuid.UUID) (bool, error) {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	_, ok := t.s.assignments[assignment{projectID: projectID, materialID: materialID}]
	return ok, nil
}

func (t *tx) SetQuantity(_ context.Context, id uuid.UUID, expected, qty float64) (bool, error) {
	if !t.holds(id) {
		return false, fmt.Errorf("memstore: material %s not locked", id)
	}
	if err := t.s.injected("set_quantity"); err != nil {
		return false, err
	}
	if qty < 0 {
		return false, fmt.Errorf("memstore: quantity %v violates non-negative constraint", qty)
	}

	current, staged := t.quantities[id]
	if !staged {
		t.s.mu.RLock()
		m, ok := t.s.materials[id]
		t.s.mu.RUnlock()
		if !ok {
			return false, nil
		}
		current = m.Quantity
	}
	if current != expected {
		return false, nil
	}
	t.quantities[id] = qty
	return true, nil
}

func (t *tx) InsertHistory(_ context.Context, h materials.History) error {
	if err := t.s.injected("insert_history"); err != nil {
		return err
	}
	t.history = append(t.history, h)
	return nil
}

func (t *tx) InsertTaskMaterial(_ context.Context, tm projects.TaskMaterial) error {
	if err := t.s.injected("insert_task_material"); err != nil {
		return err
	}
	if tm.AmountUsed <= 0 {
		return fmt.Errorf("memstore: amount used %v violates positive constraint", tm.AmountUsed)
	}
	t.usages = append(t.usages, tm)
	return nil
}

/* Reads */

func (s *Store) GetMaterial(_ context.Context, id uuid.UUID) (*materials.Material, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.materials[id]
	if !ok {
		return nil, nil
	}
	return &m, nil
}

func (s *Store) ListMaterials(_ context.Context) ([]materials.Material, error) {
	s.mu.RLock()
	out := make([]materials.Material, 0, len(s.materials))
	for _, m := range s.materials {
		out = append(out, m)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

func (s *Store) GetTask(_ context.Context, id uuid.UUID) (*projects.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[id]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (s *Store) ListHistory(_ context.Context, materialID uuid.UUID, limit int) ([]materials.History, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []materials.History
	for _, h := range s.history {
		if h.MaterialID == materialID {
			out = append(out, h)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (s *Store) ListTaskMaterials(_ context.Context, taskID uuid.UUID) ([]projects.TaskMaterial, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []projects.TaskMaterial
	for _, tm := range s.usages {
		if tm.TaskID == taskID {
			out = append(out, tm)
		}
	}
	return out, nil
}

/* Catalog */

func (s *Store) CreateCategory(_ context.Context, c catalog.Category) (*catalog.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.categories {
		if existing.Name == c.Name {
			return &existing, nil
		}
	}
	c.CreatedAt = s.now()
	s.categories[c.ID] = c
	return &c, nil
}

func (s *Store) GetCategory(_ context.Context, id uuid.UUID) (*catalog.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.categories[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (s *Store) ListCategories(_ context.Context) ([]catalog.Category, error) {
	s.mu.RLock()
	out := make([]catalog.Category, 0, len(s.categories))
	for _, c := range s.categories {
		out = append(out, c)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) CreateMaterial(_ context.Context, m materials.Material) (*materials.Material, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.materials[m.ID]; ok {
		return nil, fmt.Errorf("memstore: material %s already exists", m.ID)
	}
	m.CreatedAt = s.now()
	s.materials[m.ID] = m
	return &m, nil
}

func (s *Store) CreateProject(_ context.Context, p projects.Project) (*projects.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.CreatedAt = s.now()
	s.projects[p.ID] = p
	return &p, nil
}

func (s *Store) GetProject(_ context.Context, id uuid.UUID) (*projects.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.projects[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (s *Store) CreateTask(_ context.Context, t projects.Task) (*projects.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.projects[t.ProjectID]; !ok {
		return nil, fmt.Errorf("memstore: project %s does not exist", t.ProjectID)
	}
	t.CreatedAt = s.now()
	s.tasks[t.ID] = t
	return &t, nil
}

func (s *Store) AssignMaterial(_ context.Context, projectID, materialID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := assignment{projectID: projectID, materialID: materialID}
	if _, ok := s.assignments[key]; !ok {
		s.assignments[key] = s.now()
	}
	return nil
}

func (s *Store) UpsertTeamMember(_ context.Context, m team.Member) (*team.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.members[m.UserID]; ok {
		existing.Name = m.Name
		existing.Role = m.Role
		s.members[m.UserID] = existing
		return &existing, nil
	}
	m.CreatedAt = s.now()
	s.members[m.UserID] = m
	return &m, nil
}
