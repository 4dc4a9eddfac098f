package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/Spok95/e-weave/internal/domain/catalog"
	"github.com/Spok95/e-weave/internal/domain/ledger"
	"github.com/Spok95/e-weave/internal/domain/materials"
	"github.com/Spok95/e-weave/internal/domain/projects"
	"github.com/Spok95/e-weave/internal/infra/memstore"
)

const (
	secret = "test-secret"
	user   = "auth0|tailor"
)

type httpRecorder struct {
	routes []string
}

func (r *httpRecorder) ObserveHTTP(method, route, status string, _ time.Duration) {
	r.routes = append(r.routes, method+" "+route+" "+status)
}

type env struct {
	t       *testing.T
	srv     *httptest.Server
	token   string
	store   *memstore.Store
	catalog *catalog.Service
	metrics *httpRecorder
}

func newEnv(t *testing.T) *env {
	t.Helper()
	st := memstore.New()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	auth := NewAuthenticator(secret)
	svc := catalog.NewService(st)
	rec := &httpRecorder{}
	a := New(log, ledger.New(st, log, nil), svc, auth, rec)

	srv := httptest.NewServer(a.Routes())
	t.Cleanup(srv.Close)

	token, err := auth.Sign(user, time.Hour)
	require.NoError(t, err)

	_, err = svc.RegisterMember(context.Background(), user, "Tailor", "")
	require.NoError(t, err)
	return &env{t: t, srv: srv, token: token, store: st, catalog: svc, metrics: rec}
}

func (e *env) do(method, path string, body any) *http.Response {
	e.t.Helper()
	var rd io.Reader
	switch b := body.(type) {
	case nil:
	case []byte:
		rd = bytes.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(e.t, err)
		rd = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, e.srv.URL+path, rd)
	require.NoError(e.t, err)
	req.Header.Set("Authorization", "Bearer "+e.token)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(e.t, err)
	e.t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func (e *env) seed(qty float64) (materials.Material, projects.Task) {
	e.t.Helper()
	ctx := context.Background()
	m, err := e.catalog.CreateMaterial(ctx, catalog.NewMaterial{Name: "Hemp canvas", Quantity: qty})
	require.NoError(e.t, err)
	p, err := e.catalog.CreateProject(ctx, "Tote bags")
	require.NoError(e.t, err)
	task, err := e.catalog.CreateTask(ctx, p.ID, "Cut straps")
	require.NoError(e.t, err)
	require.NoError(e.t, e.catalog.AssignMaterial(ctx, p.ID, m.ID))
	return *m, *task
}

func TestAuthRequired(t *testing.T) {
	e := newEnv(t)

	resp, err := http.Get(e.srv.URL + "/materials")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "missing or invalid token", decodeBody[errorBody](t, resp).Message)

	e.token = "not-a-jwt"
	assert.Equal(t, http.StatusUnauthorized, e.do(http.MethodGet, "/materials", nil).StatusCode)

	other, err := NewAuthenticator("other-secret").Sign(user, time.Hour)
	require.NoError(t, err)
	e.token = other
	assert.Equal(t, http.StatusUnauthorized, e.do(http.MethodGet, "/materials", nil).StatusCode)

	expired, err := NewAuthenticator(secret).Sign(user, -time.Minute)
	require.NoError(t, err)
	e.token = expired
	assert.Equal(t, http.StatusUnauthorized, e.do(http.MethodGet, "/materials", nil).StatusCode)
}

func TestVerifyRejectsOtherAlgorithms(t *testing.T) {
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.RegisteredClaims{Subject: user}).SignedString([]byte(secret))
	require.NoError(t, err)
	_, err = NewAuthenticator(secret).Verify(tok)
	assert.Error(t, err)

	tok, err = jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{}).SignedString([]byte(secret))
	require.NoError(t, err)
	_, err = NewAuthenticator(secret).Verify(tok)
	assert.Error(t, err, "subject is required")
}

func TestTaskMaterialEndpoint(t *testing.T) {
	e := newEnv(t)
	m, task := e.seed(100)

	resp := e.do(http.MethodPost, "/tasks/"+task.ID.String()+"/materials", map[string]any{
		"materialId": m.ID.String(),
		"amountUsed": 30,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	tm := decodeBody[projects.TaskMaterial](t, resp)
	assert.Equal(t, 30.0, tm.AmountUsed)
	assert.Equal(t, task.ID, tm.TaskID)

	resp = e.do(http.MethodGet, "/materials/"+m.ID.String(), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 70.0, decodeBody[materials.Material](t, resp).Quantity)

	resp = e.do(http.MethodPost, "/tasks/"+task.ID.String()+"/materials", map[string]any{
		"materialId": m.ID.String(),
		"amountUsed": 80,
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "insufficient material", decodeBody[errorBody](t, resp).Message)

	resp = e.do(http.MethodGet, "/tasks/"+task.ID.String()+"/materials", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decodeBody[[]projects.TaskMaterial](t, resp), 1)

	var conflicts int
	for _, r := range e.metrics.routes {
		if strings.HasPrefix(r, "POST /tasks/{id}/materials") && strings.HasSuffix(r, " 409") {
			conflicts++
		}
	}
	assert.Equal(t, 1, conflicts, e.metrics.routes)
}

func TestHistoryEndpoint(t *testing.T) {
	e := newEnv(t)
	m, task := e.seed(100)
	path := "/materials/" + m.ID.String() + "/history"

	resp := e.do(http.MethodPost, path, map[string]any{
		"previousLength": 100,
		"newLength":      140,
		"changedAt":      "2026-05-01T10:00:00Z",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	h := decodeBody[materials.History](t, resp)
	assert.Equal(t, 140.0, h.NewQuantity)
	assert.Equal(t, time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC), h.ChangedAt)

	resp = e.do(http.MethodPost, path, map[string]any{
		"previousLength": 140,
		"newLength":      120,
		"taskId":         task.ID.String(),
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = e.do(http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	entries := decodeBody[[]materials.History](t, resp)
	require.Len(t, entries, 2)
	assert.Equal(t, entries[0].NewQuantity, entries[1].PreviousQuantity)
	require.NotNil(t, entries[1].TaskID)

	resp = e.do(http.MethodGet, path+"?limit=1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decodeBody[[]materials.History](t, resp), 1)
}

func TestErrorMapping(t *testing.T) {
	e := newEnv(t)
	m, task := e.seed(100)
	other, err := e.catalog.CreateMaterial(context.Background(), catalog.NewMaterial{Name: "Unassigned", Quantity: 5})
	require.NoError(t, err)
	history := "/materials/" + m.ID.String() + "/history"

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
		msg    string
	}{
		{"bad path id", http.MethodPost, "/materials/xyz/history", map[string]any{"previousLength": 1, "newLength": 0}, 400, "id must be a UUID"},
		{"missing lengths", http.MethodPost, history, map[string]any{"newLength": 1}, 400, "previousLength and newLength are required"},
		{"unknown field", http.MethodPost, history, map[string]any{"previousLength": 1, "newLength": 0, "extra": true}, 400, "invalid JSON body"},
		{"empty body", http.MethodPost, history, nil, 400, "request body is required"},
		{"bad task id", http.MethodPost, history, map[string]any{"previousLength": 100, "newLength": 90, "taskId": "t-1"}, 400, "taskId must be a UUID"},
		{"negative length", http.MethodPost, history, map[string]any{"previousLength": 100, "newLength": -1}, 400, "new quantity must be non-negative"},
		{"stale previous", http.MethodPost, history, map[string]any{"previousLength": 99, "newLength": 90}, 409, "material quantity changed concurrently"},
		{"unknown material", http.MethodPost, "/materials/" + uuid.NewString() + "/history", map[string]any{"previousLength": 1, "newLength": 0}, 404, "material not found"},
		{"unknown task", http.MethodPost, "/tasks/" + uuid.NewString() + "/materials", map[string]any{"materialId": m.ID.String(), "amountUsed": 1}, 404, "task not found"},
		{"not assigned", http.MethodPost, "/tasks/" + task.ID.String() + "/materials", map[string]any{"materialId": other.ID.String(), "amountUsed": 1}, 409, "material not assigned to project"},
		{"zero amount", http.MethodPost, "/tasks/" + task.ID.String() + "/materials", map[string]any{"materialId": m.ID.String(), "amountUsed": 0}, 400, "amount used must be positive"},
		{"missing amount", http.MethodPost, "/tasks/" + task.ID.String() + "/materials", map[string]any{"materialId": m.ID.String()}, 400, "amountUsed is required"},
		{"bad limit", http.MethodGet, history + "?limit=-3", nil, 400, "limit must be a non-negative integer"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := e.do(tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Equal(t, tt.msg, decodeBody[errorBody](t, resp).Message)
		})
	}
}

func TestUnregisteredUser(t *testing.T) {
	e := newEnv(t)
	m, _ := e.seed(100)

	tok, err := NewAuthenticator(secret).Sign("auth0|stranger", time.Hour)
	require.NoError(t, err)
	e.token = tok

	resp := e.do(http.MethodPost, "/materials/"+m.ID.String()+"/history", map[string]any{"previousLength": 100, "newLength": 90})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "team member not found", decodeBody[errorBody](t, resp).Message)
}

func TestStoreFailureIsGeneric(t *testing.T) {
	e := newEnv(t)
	m, task := e.seed(100)
	e.store.SetFault(func(op string) error {
		if op == "insert_history" {
			return fmt.Errorf("connection reset by peer")
		}
		return nil
	})

	resp := e.do(http.MethodPost, "/tasks/"+task.ID.String()+"/materials", map[string]any{"materialId": m.ID.String(), "amountUsed": 5})
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "operation failed", decodeBody[errorBody](t, resp).Message)
}

func TestCatalogEndpoints(t *testing.T) {
	e := newEnv(t)

	resp := e.do(http.MethodPost, "/categories", map[string]any{"name": "Knits"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	cat := decodeBody[catalog.Category](t, resp)

	resp = e.do(http.MethodPost, "/materials", map[string]any{
		"name":       "Merino jersey",
		"categoryId": cat.ID.String(),
		"fiber":      "wool",
		"quantity":   12.5,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	m := decodeBody[materials.Material](t, resp)
	assert.Equal(t, 12.5, m.Quantity)

	resp = e.do(http.MethodPost, "/projects", map[string]any{"name": "Winter"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	p := decodeBody[projects.Project](t, resp)

	resp = e.do(http.MethodPost, "/projects/"+p.ID.String()+"/tasks", map[string]any{"title": "Knit sleeves"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	task := decodeBody[projects.Task](t, resp)

	resp = e.do(http.MethodPost, "/tasks/"+task.ID.String()+"/materials", map[string]any{"materialId": m.ID.String(), "amountUsed": 2})
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = e.do(http.MethodPost, "/projects/"+p.ID.String()+"/materials", map[string]any{"materialId": m.ID.String()})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = e.do(http.MethodPost, "/tasks/"+task.ID.String()+"/materials", map[string]any{"materialId": m.ID.String(), "amountUsed": 2})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = e.do(http.MethodGet, "/materials", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	list := decodeBody[[]materials.Material](t, resp)
	require.Len(t, list, 1)
	assert.Equal(t, 10.5, list[0].Quantity)

	resp = e.do(http.MethodGet, "/categories", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decodeBody[[]catalog.Category](t, resp), 1)

	resp = e.do(http.MethodPost, "/team-members", map[string]any{"userId": "auth0|new", "name": "New", "role": "admin"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
}

func readSheet(t *testing.T, resp *http.Response) [][]string {
	t.Helper()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, xlsxContentType, resp.Header.Get("Content-Type"))
	f, err := excelize.OpenReader(resp.Body)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(f.GetSheetName(f.GetActiveSheetIndex()))
	require.NoError(t, err)
	return rows
}

func TestHistoryExport(t *testing.T) {
	e := newEnv(t)
	m, task := e.seed(100)
	resp := e.do(http.MethodPost, "/tasks/"+task.ID.String()+"/materials", map[string]any{"materialId": m.ID.String(), "amountUsed": 25})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	rows := readSheet(t, e.do(http.MethodGet, "/materials/"+m.ID.String()+"/history.xlsx", nil))
	require.Len(t, rows, 3)
	assert.Equal(t, "100", rows[2][1])
	assert.Equal(t, "75", rows[2][2])
}

func TestRecountImport(t *testing.T) {
	e := newEnv(t)
	a, _ := e.seed(100)
	b, err := e.catalog.CreateMaterial(context.Background(), catalog.NewMaterial{Name: "Zip tape", Quantity: 8})
	require.NoError(t, err)

	rows := readSheet(t, e.do(http.MethodGet, "/materials/export.xlsx", nil))
	require.Len(t, rows, 3)

	f := excelize.NewFile()
	sheet := f.GetSheetName(f.GetActiveSheetIndex())
	for i, r := range rows {
		vals := make([]interface{}, 0, 5)
		for _, c := range r {
			vals = append(vals, c)
		}
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &vals))
	}
	// rows are sorted by name: Hemp canvas, Zip tape
	require.NoError(t, f.SetCellValue(sheet, "E2", "96"))
	require.NoError(t, f.SetCellValue(sheet, "E3", "8"))
	require.NoError(t, f.SetSheetRow(sheet, "A4", &[]interface{}{uuid.NewString(), "ghost", "", 0, "1"}))
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	require.NoError(t, f.Close())

	resp := e.do(http.MethodPost, "/materials/import", buf.Bytes())
	require.Equal(t, http.StatusOK, resp.StatusCode)
	sum := decodeBody[recountSummary](t, resp)
	assert.Equal(t, 1, sum.Updated)
	assert.Equal(t, 1, sum.Unchanged)
	assert.Equal(t, 1, sum.Failed)
	require.Len(t, sum.Rows, 3)
	assert.Equal(t, "material not found", sum.Rows[2].Message)

	got, err := e.catalog.GetMaterial(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, 96.0, got.Quantity)
	got, err = e.catalog.GetMaterial(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, 8.0, got.Quantity)

	resp = e.do(http.MethodPost, "/materials/import", []byte("not a workbook"))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
