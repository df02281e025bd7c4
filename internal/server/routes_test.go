package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/JunoAX/familytasks-go/internal/auth"
	"github.com/JunoAX/familytasks-go/internal/models"
	"github.com/JunoAX/familytasks-go/internal/observability"
	"github.com/JunoAX/familytasks-go/internal/store/memstore"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	t      *testing.T
	router *gin.Engine
	store  *memstore.Store
}

func newTestServer(t *testing.T, mutate ...func(*Deps)) *testServer {
	t.Helper()
	s := memstore.New()
	d := Deps{Store: s, Version: "test", Metrics: observability.NewMetrics()}
	for _, m := range mutate {
		m(&d)
	}
	r, err := NewRouter(d)
	require.NoError(t, err)
	return &testServer{t: t, router: r, store: s}
}

func (ts *testServer) do(method, path string, body any, header ...string) *httptest.ResponseRecorder {
	ts.t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(ts.t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func (ts *testServer) createTask(body map[string]any) models.TaskResponse {
	ts.t.Helper()
	w := ts.do(http.MethodPost, "/api/tasks", body)
	require.Equal(ts.t, http.StatusCreated, w.Code, w.Body.String())
	return decode[models.TaskResponse](ts.t, w)
}

func (ts *testServer) link(taskID, dependsOn int64) *httptest.ResponseRecorder {
	return ts.do(http.MethodPost, "/api/dependencies", map[string]int64{"task_id": taskID, "depends_on_task_id": dependsOn})
}

func TestHealthAndRoot(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"healthy","version":"test"}`, w.Body.String())
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	w = ts.do(http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Family Tasks API")
}

func TestUserRoutes(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(http.MethodPost, "/api/users", map[string]string{"name": "Ada", "email": "ada@example.com"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	ada := decode[models.User](t, w)

	w = ts.do(http.MethodPost, "/api/users", map[string]string{"name": "Ada Again", "email": "ADA@example.com"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "already exists")

	w = ts.do(http.MethodPost, "/api/users", map[string]string{"name": "No Email"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(http.MethodPatch, fmt.Sprintf("/api/users/%d", ada.ID), `{"name":"Ada Lovelace"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Ada Lovelace", decode[models.User](t, w).Name)

	w = ts.do(http.MethodGet, "/api/users", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]models.User](t, w), 1)

	w = ts.do(http.MethodGet, "/api/users/abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	assert.Equal(t, http.StatusNoContent, ts.do(http.MethodDelete, fmt.Sprintf("/api/users/%d", ada.ID), nil).Code)
	assert.Equal(t, http.StatusNotFound, ts.do(http.MethodDelete, fmt.Sprintf("/api/users/%d", ada.ID), nil).Code)
	assert.Equal(t, http.StatusNotFound, ts.do(http.MethodGet, fmt.Sprintf("/api/users/%d", ada.ID), nil).Code)
}

func TestTaskRoutes(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(http.MethodPost, "/api/tasks", map[string]any{"title": "Orphan", "assigned_user_id": 99})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "User 99 not found")

	w = ts.do(http.MethodPost, "/api/tasks", map[string]any{"title": "Bad", "priority": "critical"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	ts.createTask(map[string]any{"title": "urgent", "priority": "urgent"})
	ts.createTask(map[string]any{"title": "low", "priority": "low", "due_date": "2026-05-01"})
	med := ts.createTask(map[string]any{"title": "med", "priority": "med"})

	w = ts.do(http.MethodGet, "/api/tasks?sort_by=priority&sort_order=asc", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var titles []string
	for _, task := range decode[[]models.TaskResponse](t, w) {
		titles = append(titles, task.Title)
	}
	assert.Equal(t, []string{"urgent", "med", "low"}, titles)

	w = ts.do(http.MethodGet, "/api/tasks?due_date_from=2026-04-01&due_date_to=2026-05-31", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[[]models.TaskResponse](t, w)
	require.Len(t, list, 1)
	assert.Equal(t, "low", list[0].Title)

	assert.Equal(t, http.StatusBadRequest, ts.do(http.MethodGet, "/api/tasks?sort_by=title", nil).Code)
	assert.Equal(t, http.StatusBadRequest, ts.do(http.MethodGet, "/api/tasks?due_date_from=May", nil).Code)

	w = ts.do(http.MethodPut, fmt.Sprintf("/api/tasks/%d", med.ID), `{"status":"done","description":"halfway"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	updated := decode[models.TaskResponse](t, w)
	assert.Equal(t, models.StatusDone, updated.Status)
	require.NotNil(t, updated.Description)

	w = ts.do(http.MethodPatch, fmt.Sprintf("/api/tasks/%d", med.ID), `{"description":null}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, decode[models.TaskResponse](t, w).Description)

	assert.Equal(t, http.StatusNotFound, ts.do(http.MethodPatch, "/api/tasks/999", `{"title":"x"}`).Code)
	assert.Equal(t, http.StatusBadRequest, ts.do(http.MethodPatch, fmt.Sprintf("/api/tasks/%d", med.ID), `{"title":5}`).Code)

	assert.Equal(t, http.StatusNoContent, ts.do(http.MethodDelete, fmt.Sprintf("/api/tasks/%d", med.ID), nil).Code)
	assert.Equal(t, http.StatusNotFound, ts.do(http.MethodGet, fmt.Sprintf("/api/tasks/%d", med.ID), nil).Code)
}

func TestDependencyRoutes(t *testing.T) {
	ts := newTestServer(t)
	a := ts.createTask(map[string]any{"title": "A"})
	b := ts.createTask(map[string]any{"title": "B"})
	c := ts.createTask(map[string]any{"title": "C"})

	w := ts.link(a.ID, b.ID)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	ab := decode[models.Dependency](t, w)
	require.Equal(t, http.StatusCreated, ts.link(b.ID, c.ID).Code)

	w = ts.link(c.ID, a.ID)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	body := decode[struct {
		Error string  `json:"error"`
		Cycle []int64 `json:"cycle"`
	}](t, w)
	assert.Contains(t, body.Error, "would create a cycle")
	assert.Equal(t, []int64{c.ID, a.ID, b.ID, c.ID}, body.Cycle)

	assert.Equal(t, http.StatusUnprocessableEntity, ts.link(a.ID, b.ID).Code)
	assert.Equal(t, http.StatusBadRequest, ts.link(a.ID, a.ID).Code)
	assert.Equal(t, http.StatusNotFound, ts.link(a.ID, 999).Code)
	assert.Equal(t, http.StatusBadRequest, ts.do(http.MethodPost, "/api/dependencies", `{"task_id":1}`).Code)

	w = ts.do(http.MethodGet, "/api/dependencies", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]models.Dependency](t, w), 2)

	w = ts.do(http.MethodGet, fmt.Sprintf("/api/dependencies/task/%d", b.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]models.Dependency](t, w), 2)

	w = ts.do(http.MethodGet, fmt.Sprintf("/api/tasks/%d", b.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	taskB := decode[models.TaskResponse](t, w)
	assert.Equal(t, []int64{a.ID}, taskB.Blocking)
	assert.Equal(t, []int64{c.ID}, taskB.BlockedBy)

	path := fmt.Sprintf("/api/dependencies/%d", ab.ID)
	assert.Equal(t, http.StatusNoContent, ts.do(http.MethodDelete, path, nil).Code)
	assert.Equal(t, http.StatusNotFound, ts.do(http.MethodDelete, path, nil).Code)

	w = ts.do(http.MethodGet, fmt.Sprintf("/api/tasks/%d", b.ID), nil)
	assert.Empty(t, decode[models.TaskResponse](t, w).Blocking)
}

func TestLongCycleResponse(t *testing.T) {
	ts := newTestServer(t)
	ids := make([]int64, 30)
	for i := range ids {
		ids[i] = ts.createTask(map[string]any{"title": fmt.Sprintf("step %d", i)}).ID
	}
	for i := 0; i+1 < len(ids); i++ {
		require.Equal(t, http.StatusCreated, ts.link(ids[i], ids[i+1]).Code)
	}

	w := ts.link(ids[len(ids)-1], ids[0])
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	body := decode[struct {
		Error string  `json:"error"`
		Cycle []int64 `json:"cycle"`
	}](t, w)
	assert.Len(t, body.Cycle, len(ids)+1)
	assert.Contains(t, body.Error, "(11 more)")
}

func TestSubtaskAndLinkRoutes(t *testing.T) {
	ts := newTestServer(t)
	task := ts.createTask(map[string]any{"title": "Project"})
	base := fmt.Sprintf("/api/tasks/%d", task.ID)

	w := ts.do(http.MethodPost, base+"/subtasks", map[string]string{"title": "Outline"})
	require.Equal(t, http.StatusCreated, w.Code)
	sub := decode[models.Subtask](t, w)

	w = ts.do(http.MethodPatch, fmt.Sprintf("/api/subtasks/%d", sub.ID), `{"completed":true}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode[models.Subtask](t, w).Completed)

	w = ts.do(http.MethodGet, base+"/subtasks", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]models.Subtask](t, w), 1)

	assert.Equal(t, http.StatusNotFound, ts.do(http.MethodPost, "/api/tasks/999/subtasks", map[string]string{"title": "x"}).Code)
	assert.Equal(t, http.StatusNoContent, ts.do(http.MethodDelete, fmt.Sprintf("/api/subtasks/%d", sub.ID), nil).Code)

	w = ts.do(http.MethodPost, base+"/links", map[string]string{"url": "https://example.com/brief", "title": "Brief"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	link := decode[models.TaskLink](t, w)

	assert.Equal(t, http.StatusBadRequest, ts.do(http.MethodPost, base+"/links", map[string]string{"url": "not a url"}).Code)

	w = ts.do(http.MethodGet, base+"/links", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]models.TaskLink](t, w), 1)

	assert.Equal(t, http.StatusNoContent, ts.do(http.MethodDelete, fmt.Sprintf("/api/links/%d", link.ID), nil).Code)
	assert.Equal(t, http.StatusNotFound, ts.do(http.MethodDelete, fmt.Sprintf("/api/links/%d", link.ID), nil).Code)
}

func TestIdentitySyncRoute(t *testing.T) {
	jwtSvc := auth.NewJWTService("secret", "familytasks", time.Hour)
	ts := newTestServer(t, func(d *Deps) {
		d.JWT = jwtSvc
		d.RequireAuth = true
	})
	req := map[string]string{"google_id": "g-1", "email": "maya@example.com", "name": "Maya Gamull"}

	w := ts.do(http.MethodPost, "/api/auth/sync", req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	first := decode[models.SyncResult](t, w)
	assert.True(t, first.IsNewUser)
	assert.Equal(t, "The Gamull Family", first.Family.Name)
	require.NotEmpty(t, first.Token)

	w = ts.do(http.MethodPost, "/api/auth/sync", req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, decode[models.SyncResult](t, w).IsNewUser)

	assert.Equal(t, http.StatusUnauthorized, ts.do(http.MethodGet, "/api/tasks", nil).Code)
	w = ts.do(http.MethodGet, "/api/tasks", nil, "Authorization", "Bearer "+first.Token)
	assert.Equal(t, http.StatusOK, w.Code)

	w = ts.do(http.MethodPost, "/api/auth/sync", map[string]string{"google_id": "g-2", "name": "No Email"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUnavailableStoreReturns503(t *testing.T) {
	ts := newTestServer(t)
	ts.store.SetUnavailable(true)

	w := ts.do(http.MethodGet, "/api/tasks", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))

	w = ts.do(http.MethodPost, "/api/dependencies", map[string]int64{"task_id": 1, "depends_on_task_id": 2})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t)
	a := ts.createTask(map[string]any{"title": "A"})
	ts.link(a.ID, a.ID)

	w := ts.do(http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	out := w.Body.String()
	assert.True(t, strings.Contains(out, `familytasks_dependencies_rejected_total{reason="self_loop"} 1`), out)
	assert.Contains(t, out, "familytasks_http_requests_total")
}
