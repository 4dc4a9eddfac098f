package projects

import (
	"time"

	"github.com/google/uuid"
)

type Project struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

type Task struct {
	ID        uuid.UUID `json:"id"`
	ProjectID uuid.UUID `json:"projectId"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
}

// TaskMaterial attributes a quantity decrease to the task that consumed it.
type TaskMaterial struct {
	ID           uuid.UUID `json:"id"`
	TaskID       uuid.UUID `json:"taskId"`
	MaterialID   uuid.UUID `json:"materialId"`
	TeamMemberID uuid.UUID `json:"teamMemberId"`
	HistoryID    uuid.UUID `json:"historyId"`
	AmountUsed   float64   `json:"amountUsed"`
	UsedAt       time.Time `json:"usedAt"`
}
