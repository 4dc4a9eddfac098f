package materials

import (
	"time"

	"github.com/google/uuid"
)

// Material is a fabric or yarn in stock. Quantity is the available length in
// meters and only changes through the ledger.
type Material struct {
	ID           uuid.UUID  `json:"id"`
	Name         string     `json:"name"`
	CategoryID   *uuid.UUID `json:"categoryId,omitempty"`
	Fiber        string     `json:"fiber"`
	Description  string     `json:"description"`
	WaterUsage   float64    `json:"waterUsage"`   // liters per meter
	CO2Footprint float64    `json:"co2Footprint"` // kg per meter
	Quantity     float64    `json:"quantity"`
	CreatedAt    time.Time  `json:"createdAt"`
}

// History is one ledger entry. Entries are never updated or deleted.
type History struct {
	ID               uuid.UUID  `json:"id"`
	MaterialID       uuid.UUID  `json:"materialId"`
	TeamMemberID     uuid.UUID  `json:"teamMemberId"`
	PreviousQuantity float64    `json:"previousLength"`
	NewQuantity      float64    `json:"newLength"`
	ChangedAt        time.Time  `json:"changedAt"`
	TaskID           *uuid.UUID `json:"taskId,omitempty"`
}

// Delta is positive for restocks and negative for consumption.
func (h History) Delta() float64 { return h.NewQuantity - h.PreviousQuantity }
