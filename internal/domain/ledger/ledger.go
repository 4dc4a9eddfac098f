// Package ledger keeps each material's current quantity together with its
// append-only change history and the task usage records derived from it.
//
// Every operation runs in one store transaction. All checks happen before the
// first write, the material row is held for the whole transaction and the
// quantity is written with a compare-and-swap, so concurrent changes to the
// same material are serialised and a history entry's previous quantity always
// equals the value it replaced.
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Spok95/e-weave/internal/apperr"
	"github.com/Spok95/e-weave/internal/domain/materials"
	"github.com/Spok95/e-weave/internal/domain/projects"
	"github.com/Spok95/e-weave/internal/domain/team"
)

const (
	opQuantityChange  = "quantity_change"
	opTaskConsumption = "task_consumption"
	opRecount         = "recount"
)

type Ledger struct {
	store Store
	log   *slog.Logger
	obs   Observer
	now   func() time.Time
}

// New returns a ledger over store. obs may be nil.
func New(store Store, log *slog.Logger, obs Observer) *Ledger {
	if obs == nil {
		obs = nopObserver{}
	}
	return &Ledger{
		store: store,
		log:   log.With("component", "ledger"),
		obs:   obs,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Usage is the result of a task consumption.
type Usage struct {
	TaskMaterial projects.TaskMaterial `json:"taskMaterial"`
	History      materials.History     `json:"history"`
}

// RecordQuantityChange applies a manual correction, a restock, or with a task
// id a task-attributed decrease, and returns the new history entry.
func (l *Ledger) RecordQuantityChange(ctx context.Context, c QuantityChange) (*materials.History, error) {
	var out *materials.History
	err := l.observe(opQuantityChange, func() error {
		if err := c.validate(); err != nil {
			return err
		}
		return l.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
			member, mat, err := loadActorAndMaterial(ctx, tx, c.ActorUserID, c.MaterialID)
			if err != nil {
				return err
			}

			var task *projects.Task
			if c.TaskID != nil {
				if task, err = loadAssignedTask(ctx, tx, *c.TaskID, mat.ID); err != nil {
					return err
				}
				if c.PreviousQuantity-c.NewQuantity <= 0 {
					return apperr.InvalidArgument("amount used must be positive")
				}
			}
			if c.NewQuantity < 0 {
				return apperr.InvalidArgument("new quantity must be non-negative")
			}
			if mat.Quantity != c.PreviousQuantity {
				return errStale
			}

			changedAt := l.now()
			if c.ChangedAt != nil {
				changedAt = c.ChangedAt.UTC()
			}
			h, _, err := l.write(ctx, tx, entry{
				member:    member,
				material:  mat,
				task:      task,
				previous:  c.PreviousQuantity,
				next:      c.NewQuantity,
				changedAt: changedAt,
			})
			if err != nil {
				return err
			}
			out = h
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	l.log.Info("material quantity changed",
		"material_id", out.MaterialID,
		"previous", out.PreviousQuantity,
		"new", out.NewQuantity,
		"task_id", out.TaskID,
	)
	return out, nil
}

// RecordTaskConsumption takes AmountUsed from the material's current quantity
// on behalf of a task.
func (l *Ledger) RecordTaskConsumption(ctx context.Context, c TaskConsumption) (*Usage, error) {
	var out *Usage
	err := l.observe(opTaskConsumption, func() error {
		if err := c.validate(); err != nil {
			return err
		}
		return l.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
			member, mat, err := loadActorAndMaterial(ctx, tx, c.ActorUserID, c.MaterialID)
			if err != nil {
				return err
			}
			task, err := loadAssignedTask(ctx, tx, c.TaskID, mat.ID)
			if err != nil {
				return err
			}
			if c.AmountUsed <= 0 {
				return apperr.InvalidArgument("amount used must be positive")
			}
			previous := mat.Quantity
			if c.AmountUsed > previous {
				return errInsufficient
			}

			h, tm, err := l.write(ctx, tx, entry{
				member:    member,
				material:  mat,
				task:      task,
				previous:  previous,
				next:      previous - c.AmountUsed,
				changedAt: l.now(),
			})
			if err != nil {
				return err
			}
			out = &Usage{TaskMaterial: *tm, History: *h}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	l.log.Info("material consumed by task",
		"material_id", out.TaskMaterial.MaterialID,
		"task_id", out.TaskMaterial.TaskID,
		"amount_used", out.TaskMaterial.AmountUsed,
		"remaining", out.History.NewQuantity,
	)
	return out, nil
}

// Recount records a counted stock level. It returns nil, nil when the count
// already matches the stored quantity.
func (l *Ledger) Recount(ctx context.Context, c Recount) (*materials.History, error) {
	var out *materials.History
	err := l.observe(opRecount, func() error {
		if err := c.validate(); err != nil {
			return err
		}
		return l.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
			member, mat, err := loadActorAndMaterial(ctx, tx, c.ActorUserID, c.MaterialID)
			if err != nil {
				return err
			}
			if mat.Quantity == c.Quantity {
				return nil
			}
			h, _, err := l.write(ctx, tx, entry{
				member:    member,
				material:  mat,
				previous:  mat.Quantity,
				next:      c.Quantity,
				changedAt: l.now(),
			})
			if err != nil {
				return err
			}
			out = h
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// History lists a material's entries oldest first; limit <= 0 lists all.
func (l *Ledger) History(ctx context.Context, materialID uuid.UUID, limit int) ([]materials.History, error) {
	m, err := l.store.GetMaterial(ctx, materialID)
	if err != nil {
		return nil, fmt.Errorf("load material: %w", err)
	}
	if m == nil {
		return nil, apperr.NotFound("material")
	}
	out, err := l.store.ListHistory(ctx, materialID, limit)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	return out, nil
}

// TaskUsage lists the materials a task has consumed.
func (l *Ledger) TaskUsage(ctx context.Context, taskID uuid.UUID) ([]projects.TaskMaterial, error) {
	t, err := l.store.GetTask(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("load task: %w", err)
	}
	if t == nil {
		return nil, apperr.NotFound("task")
	}
	out, err := l.store.ListTaskMaterials(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("list task materials: %w", err)
	}
	return out, nil
}

var (
	errStale        = apperr.InvalidState("material quantity changed concurrently")
	errInsufficient = apperr.InvalidState("insufficient material")
)

type entry struct {
	member    *team.Member
	material  *materials.Material
	task      *projects.Task
	previous  float64
	next      float64
	changedAt time.Time
}

// write performs the three ledger writes. Callers have validated e and hold
// the material row.
func (l *Ledger) write(ctx context.Context, tx Tx, e entry) (*materials.History, *projects.TaskMaterial, error) {
	ok, err := tx.SetQuantity(ctx, e.material.ID, e.previous, e.next)
	if err != nil {
		return nil, nil, fmt.Errorf("update material quantity: %w", err)
	}
	if !ok {
		return nil, nil, errStale
	}

	h := materials.History{
		ID:               uuid.New(),
		MaterialID:       e.material.ID,
		TeamMemberID:     e.member.ID,
		PreviousQuantity: e.previous,
		NewQuantity:      e.next,
		ChangedAt:        e.changedAt,
	}
	if e.task != nil {
		id := e.task.ID
		h.TaskID = &id
	}
	if err := tx.InsertHistory(ctx, h); err != nil {
		return nil, nil, fmt.Errorf("insert material history: %w", err)
	}
	if e.task == nil {
		return &h, nil, nil
	}

	tm := projects.TaskMaterial{
		ID:           uuid.New(),
		TaskID:       e.task.ID,
		MaterialID:   e.material.ID,
		TeamMemberID: e.member.ID,
		HistoryID:    h.ID,
		AmountUsed:   e.previous - e.next,
		UsedAt:       l.now(),
	}
	if err := tx.InsertTaskMaterial(ctx, tm); err != nil {
		return nil, nil, fmt.Errorf("insert task material: %w", err)
	}
	return &h, &tm, nil
}

func loadActorAndMaterial(ctx context.Context, tx Tx, userID string, materialID uuid.UUID) (*team.Member, *materials.Material, error) {
	member, err := tx.TeamMemberByUserID(ctx, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("load team member: %w", err)
	}
	if member == nil {
		return nil, nil, apperr.NotFound("team member")
	}
	mat, err := tx.MaterialForUpdate(ctx, materialID)
	if err != nil {
		return nil, nil, fmt.Errorf("load material: %w", err)
	}
	if mat == nil {
		return nil, nil, apperr.NotFound("material")
	}
	return member, mat, nil
}

func loadAssignedTask(ctx context.Context, tx Tx, taskID, materialID uuid.UUID) (*projects.Task, error) {
	task, err := tx.Task(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("load task: %w", err)
	}
	if task == nil {
		return nil, apperr.NotFound("task")
	}
	ok, err := tx.ProjectHasMaterial(ctx, task.ProjectID, materialID)
	if err != nil {
		return nil, fmt.Errorf("check project material: %w", err)
	}
	if !ok {
		return nil, apperr.InvalidState("material not assigned to project")
	}
	return task, nil
}

func (l *Ledger) observe(op string, fn func() error) error {
	start := time.Now()
	err := fn()
	l.obs.ObserveLedger(op, apperr.Kind(err), time.Since(start).Seconds())
	if err != nil && apperr.Kind(err) == "error" {
		l.log.Error("ledger operation failed", "op", op, "err", err)
	}
	return err
}
