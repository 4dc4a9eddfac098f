package ledger

import (
	"context"

	"github.com/google/uuid"

	"github.com/Spok95/e-weave/internal/domain/materials"
	"github.com/Spok95/e-weave/internal/domain/projects"
	"github.com/Spok95/e-weave/internal/domain/team"
)

// Tx is the view of the store inside one ledger transaction. Getters return
// nil, nil for missing rows.
type Tx interface {
	TeamMemberByUserID(ctx context.Context, userID string) (*team.Member, error)
	// MaterialForUpdate reads the material and holds it exclusively until
	// the transaction ends.
	MaterialForUpdate(ctx context.Context, id uuid.UUID) (*materials.Material, error)
	Task(ctx context.Context, id uuid.UUID) (*projects.Task, error)
	ProjectHasMaterial(ctx context.Context, projectID, materialID uuid.UUID) (bool, error)

	// SetQuantity is a compare-and-swap on the material quantity. It reports
	// false when the stored value no longer equals expected.
	SetQuantity(ctx context.Context, materialID uuid.UUID, expected, qty float64) (bool, error)
	InsertHistory(ctx context.Context, h materials.History) error
	InsertTaskMaterial(ctx context.Context, tm projects.TaskMaterial) error
}

// Store runs scoped transactions: fn's writes are committed when it returns
// nil and discarded when it returns an error or panics.
type Store interface {
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	GetMaterial(ctx context.Context, id uuid.UUID) (*materials.Material, error)
	GetTask(ctx context.Context, id uuid.UUID) (*projects.Task, error)
	ListHistory(ctx context.Context, materialID uuid.UUID, limit int) ([]materials.History, error)
	ListTaskMaterials(ctx context.Context, taskID uuid.UUID) ([]projects.TaskMaterial, error)
}

// Observer receives one call per ledger operation.
type Observer interface {
	ObserveLedger(op, outcome string, seconds float64)
}

type nopObserver struct{}

func (nopObserver) ObserveLedger(string, string, float64) {}
