package ledger

import (
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Spok95/e-weave/internal/apperr"
)

// QuantityChange sets a material's quantity from PreviousQuantity to
// NewQuantity. With a TaskID the decrease is attributed to that task.
type QuantityChange struct {
	MaterialID       uuid.UUID
	ActorUserID      string
	PreviousQuantity float64
	NewQuantity      float64
	ChangedAt        *time.Time
	TaskID           *uuid.UUID
}

// TaskConsumption takes AmountUsed meters of a material for a task.
type TaskConsumption struct {
	TaskID      uuid.UUID
	MaterialID  uuid.UUID
	AmountUsed  float64
	ActorUserID string
}

// Recount sets the counted quantity of a material whatever it is now.
type Recount struct {
	MaterialID  uuid.UUID
	ActorUserID string
	Quantity    float64
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

func checkActor(userID string) error {
	if strings.TrimSpace(userID) == "" {
		return apperr.InvalidArgument("acting user is required")
	}
	return nil
}

func (c QuantityChange) validate() error {
	if err := checkActor(c.ActorUserID); err != nil {
		return err
	}
	if c.MaterialID == uuid.Nil {
		return apperr.InvalidArgument("material id is required")
	}
	if !finite(c.PreviousQuantity) || !finite(c.NewQuantity) {
		return apperr.InvalidArgument("quantities must be numbers")
	}
	if c.TaskID != nil && *c.TaskID == uuid.Nil {
		return apperr.InvalidArgument("task id is invalid")
	}
	return nil
}

func (c TaskConsumption) validate() error {
	if err := checkActor(c.ActorUserID); err != nil {
		return err
	}
	if c.TaskID == uuid.Nil || c.MaterialID == uuid.Nil {
		return apperr.InvalidArgument("task id and material id are required")
	}
	if !finite(c.AmountUsed) {
		return apperr.InvalidArgument("amount used must be a number")
	}
	return nil
}

func (c Recount) validate() error {
	if err := checkActor(c.ActorUserID); err != nil {
		return err
	}
	if c.MaterialID == uuid.Nil {
		return apperr.InvalidArgument("material id is required")
	}
	if !finite(c.Quantity) || c.Quantity < 0 {
		return apperr.InvalidArgument("new quantity must be non-negative")
	}
	return nil
}
