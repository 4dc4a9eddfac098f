package api

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/Spok95/e-weave/internal/apperr"
	"github.com/Spok95/e-weave/internal/domain/ledger"
	"github.com/Spok95/e-weave/internal/reports"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

/* Ledger */

func (a *API) recordHistory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	var req historyRequest
	if err := decode(w, r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	cmd, err := req.command(id, UserID(r.Context()))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	h, err := a.ledger.RecordQuantityChange(r.Context(), cmd)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, h)
}

func (a *API) listHistory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		if limit, err = strconv.Atoi(s); err != nil || limit < 0 {
			a.writeError(w, r, apperr.InvalidArgument("limit must be a non-negative integer"))
			return
		}
	}
	entries, err := a.ledger.History(r.Context(), id, limit)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(entries))
}

func (a *API) consumeTaskMaterial(w http.ResponseWriter, r *http.Request) {
	taskID, err := pathID(r, "id")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	var req taskMaterialRequest
	if err := decode(w, r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	cmd, err := req.command(taskID, UserID(r.Context()))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	u, err := a.ledger.RecordTaskConsumption(r.Context(), cmd)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, u.TaskMaterial)
}

func (a *API) listTaskMaterials(w http.ResponseWriter, r *http.Request) {
	taskID, err := pathID(r, "id")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	usage, err := a.ledger.TaskUsage(r.Context(), taskID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(usage))
}

/* Reports */

func (a *API) exportHistory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	m, err := a.catalog.GetMaterial(r.Context(), id)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	entries, err := a.ledger.History(r.Context(), id, 0)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	buf := &bytes.Buffer{}
	if err := reports.WriteHistory(buf, *m, entries); err != nil {
		a.writeError(w, r, fmt.Errorf("write history workbook: %w", err))
		return
	}
	name := fmt.Sprintf("history_%s_%s.xlsx", m.ID, time.Now().Format("20060102_150405"))
	writeFile(w, name, buf.Bytes())
}

func (a *API) exportRecountSheet(w http.ResponseWriter, r *http.Request) {
	mats, err := a.catalog.ListMaterials(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	buf := &bytes.Buffer{}
	if err := reports.WriteRecountSheet(buf, mats); err != nil {
		a.writeError(w, r, fmt.Errorf("write recount workbook: %w", err))
		return
	}
	writeFile(w, fmt.Sprintf("materials_%s.xlsx", time.Now().Format("20060102_150405")), buf.Bytes())
}

type recountResult struct {
	Line       int        `json:"line"`
	MaterialID *uuid.UUID `json:"materialId,omitempty"`
	Status     string     `json:"status"` // updated | unchanged | failed
	Message    string     `json:"message,omitempty"`
}

type recountSummary struct {
	Updated   int             `json:"updated"`
	Unchanged int             `json:"unchanged"`
	Failed    int             `json:"failed"`
	Rows      []recountResult `json:"rows"`
}

// importRecount applies a filled-in recount workbook. Each row is its own
// ledger transaction, so one bad row does not block the others.
func (a *API) importRecount(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 10*maxBody))
	if err != nil {
		a.writeError(w, r, apperr.InvalidArgument("could not read upload"))
		return
	}
	rows, err := reports.ParseRecount(bytes.NewReader(data))
	if err != nil {
		a.writeError(w, r, apperr.InvalidArgument(err.Error()))
		return
	}

	actor := UserID(r.Context())
	sum := recountSummary{Rows: []recountResult{}}
	for _, row := range rows {
		res := recountResult{Line: row.Line}
		if row.Err != nil {
			res.Status, res.Message = "failed", row.Err.Error()
			sum.Failed++
			sum.Rows = append(sum.Rows, res)
			continue
		}
		id := row.MaterialID
		res.MaterialID = &id

		h, err := a.ledger.Recount(r.Context(), ledger.Recount{
			MaterialID:  row.MaterialID,
			ActorUserID: actor,
			Quantity:    row.Quantity,
		})
		switch {
		case err != nil && statusOf(err) == http.StatusInternalServerError:
			a.writeError(w, r, err)
			return
		case err != nil:
			res.Status, res.Message = "failed", err.Error()
			sum.Failed++
		case h == nil:
			res.Status = "unchanged"
			sum.Unchanged++
		default:
			res.Status = "updated"
			sum.Updated++
		}
		sum.Rows = append(sum.Rows, res)
	}

	a.log.Info("recount imported",
		"updated", sum.Updated,
		"unchanged", sum.Unchanged,
		"failed", sum.Failed,
	)
	writeJSON(w, http.StatusOK, sum)
}

func writeFile(w http.ResponseWriter, name string, data []byte) {
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

/* Catalog */

func (a *API) listMaterials(w http.ResponseWriter, r *http.Request) {
	mats, err := a.catalog.ListMaterials(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(mats))
}

func (a *API) createMaterial(w http.ResponseWriter, r *http.Request) {
	var req materialRequest
	if err := decode(w, r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	in, err := req.input()
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	m, err := a.catalog.CreateMaterial(r.Context(), in)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func (a *API) getMaterial(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	m, err := a.catalog.GetMaterial(r.Context(), id)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (a *API) listCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := a.catalog.ListCategories(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(cats))
}

func (a *API) createCategory(w http.ResponseWriter, r *http.Request) {
	var req nameRequest
	if err := decode(w, r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	c, err := a.catalog.CreateCategory(r.Context(), req.Name)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (a *API) createProject(w http.ResponseWriter, r *http.Request) {
	var req nameRequest
	if err := decode(w, r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	p, err := a.catalog.CreateProject(r.Context(), req.Name)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (a *API) createTask(w http.ResponseWriter, r *http.Request) {
	projectID, err := pathID(r, "id")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	var req taskRequest
	if err := decode(w, r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	t, err := a.catalog.CreateTask(r.Context(), projectID, req.Title)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (a *API) assignMaterial(w http.ResponseWriter, r *http.Request) {
	projectID, err := pathID(r, "id")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	var req assignRequest
	if err := decode(w, r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	materialID, err := uuid.Parse(req.MaterialID)
	if err != nil {
		a.writeError(w, r, apperr.InvalidArgument("materialId must be a UUID"))
		return
	}
	if err := a.catalog.AssignMaterial(r.Context(), projectID, materialID); err != nil {
		a.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) registerMember(w http.ResponseWriter, r *http.Request) {
	var req memberRequest
	if err := decode(w, r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	m, err := a.catalog.RegisterMember(r.Context(), req.UserID, req.Name, req.Role)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

// nonNil makes empty lists encode as [] rather than null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
