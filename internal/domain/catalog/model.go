package catalog

import (
	"time"

	"github.com/google/uuid"
)

type Category struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewMaterial is a validated catalog entry request.
type NewMaterial struct {
	Name         string
	CategoryID   *uuid.UUID
	Fiber        string
	Description  string
	WaterUsage   float64
	CO2Footprint float64
	Quantity     float64
}
