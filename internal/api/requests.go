package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/Spok95/e-weave/internal/apperr"
	"github.com/Spok95/e-weave/internal/domain/catalog"
	"github.com/Spok95/e-weave/internal/domain/ledger"
	"github.com/Spok95/e-weave/internal/domain/team"
)

const maxBody = 1 << 20

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.InvalidArgument("request body is required")
		}
		return apperr.InvalidArgument("invalid JSON body")
	}
	return nil
}

func pathID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, apperr.InvalidArgument(name + " must be a UUID")
	}
	return id, nil
}

func parseOptionalID(field string, s *string) (*uuid.UUID, error) {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil, nil
	}
	id, err := uuid.Parse(strings.TrimSpace(*s))
	if err != nil {
		return nil, apperr.InvalidArgument(field + " must be a UUID")
	}
	return &id, nil
}

// POST /materials/{id}/history
type historyRequest struct {
	PreviousLength *float64   `json:"previousLength"`
	NewLength      *float64   `json:"newLength"`
	ChangedAt      *time.Time `json:"changedAt"`
	TaskID         *string    `json:"taskId"`
}

func (req historyRequest) command(materialID uuid.UUID, actor string) (ledger.QuantityChange, error) {
	if req.PreviousLength == nil || req.NewLength == nil {
		return ledger.QuantityChange{}, apperr.InvalidArgument("previousLength and newLength are required")
	}
	taskID, err := parseOptionalID("taskId", req.TaskID)
	if err != nil {
		return ledger.QuantityChange{}, err
	}
	return ledger.QuantityChange{
		MaterialID:       materialID,
		ActorUserID:      actor,
		PreviousQuantity: *req.PreviousLength,
		NewQuantity:      *req.NewLength,
		ChangedAt:        req.ChangedAt,
		TaskID:           taskID,
	}, nil
}

// POST /tasks/{id}/materials
type taskMaterialRequest struct {
	MaterialID string   `json:"materialId"`
	AmountUsed *float64 `json:"amountUsed"`
}

func (req taskMaterialRequest) command(taskID uuid.UUID, actor string) (ledger.TaskConsumption, error) {
	materialID, err := uuid.Parse(strings.TrimSpace(req.MaterialID))
	if err != nil {
		return ledger.TaskConsumption{}, apperr.InvalidArgument("materialId must be a UUID")
	}
	if req.AmountUsed == nil {
		return ledger.TaskConsumption{}, apperr.InvalidArgument("amountUsed is required")
	}
	return ledger.TaskConsumption{
		TaskID:      taskID,
		MaterialID:  materialID,
		AmountUsed:  *req.AmountUsed,
		ActorUserID: actor,
	}, nil
}

// POST /materials
type materialRequest struct {
	Name         string  `json:"name"`
	CategoryID   *string `json:"categoryId"`
	Fiber        string  `json:"fiber"`
	Description  string  `json:"description"`
	WaterUsage   float64 `json:"waterUsage"`
	CO2Footprint float64 `json:"co2Footprint"`
	Quantity     float64 `json:"quantity"`
}

func (req materialRequest) input() (catalog.NewMaterial, error) {
	categoryID, err := parseOptionalID("categoryId", req.CategoryID)
	if err != nil {
		return catalog.NewMaterial{}, err
	}
	return catalog.NewMaterial{
		Name:         req.Name,
		CategoryID:   categoryID,
		Fiber:        req.Fiber,
		Description:  req.Description,
		WaterUsage:   req.WaterUsage,
		CO2Footprint: req.CO2Footprint,
		Quantity:     req.Quantity,
	}, nil
}

type nameRequest struct {
	Name string `json:"name"`
}

type taskRequest struct {
	Title string `json:"title"`
}

type assignRequest struct {
	MaterialID string `json:"materialId"`
}

type memberRequest struct {
	UserID string    `json:"userId"`
	Name   string    `json:"name"`
	Role   team.Role `json:"role"`
}
