package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/JunoAX/familytasks-go/internal/apperror"
	"github.com/JunoAX/familytasks-go/internal/graph"
	"github.com/JunoAX/familytasks-go/internal/models"
	"github.com/JunoAX/familytasks-go/internal/store"
	"github.com/JunoAX/familytasks-go/internal/store/memstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// tickingClock advances one minute per reading so created_at values differ.
func tickingClock() func() time.Time {
	t := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(time.Minute)
		return t
	}
}

func setup(t *testing.T) (*Service, *memstore.Store) {
	t.Helper()
	s := memstore.New(memstore.WithClock(tickingClock()))
	return NewService(s, nil), s
}

func strPtr(s string) *string { return &s }

func createTask(t *testing.T, svc *Service, req models.TaskCreateRequest) *models.TaskResponse {
	t.Helper()
	task, err := svc.CreateTask(context.Background(), req)
	require.NoError(t, err)
	return task
}

func titles(tasks []models.TaskResponse) []string {
	out := make([]string, len(tasks))
	for i, t := range tasks {
		out[i] = t.Title
	}
	return out
}

func TestCreateTaskDefaults(t *testing.T) {
	svc, _ := setup(t)

	task := createTask(t, svc, models.TaskCreateRequest{Title: "  Feed the cat  "})

	assert.Equal(t, "Feed the cat", task.Title)
	assert.Equal(t, models.StatusTodo, task.Status)
	assert.Equal(t, models.PriorityNone, task.Priority)
	assert.Equal(t, models.TaskTypeOther, task.TaskType)
	assert.Equal(t, []string{}, task.Tags)
	assert.Empty(t, task.Blocking)
	assert.Empty(t, task.BlockedBy)
	assert.Nil(t, task.Assignee)
}

var errWriteFailed = errors.New("write failed")

// failAfterInsert lets CreateTask write its row and then reports failure, so
// only the transaction can keep the row out of the store.
type failAfterInsert struct {
	*memstore.Store
}

func (f failAfterInsert) Tx(ctx context.Context, iso store.Isolation, fn func(q store.Queries) error) error {
	return f.Store.Tx(ctx, iso, func(q store.Queries) error {
		return fn(failAfterInsertQueries{q})
	})
}

type failAfterInsertQueries struct{ store.Queries }

func (q failAfterInsertQueries) CreateTask(ctx context.Context, t *models.Task) error {
	if err := q.Queries.CreateTask(ctx, t); err != nil {
		return err
	}
	return errWriteFailed
}

func TestCreateTaskRollsBackOnFailure(t *testing.T) {
	s := memstore.New(memstore.WithClock(tickingClock()))
	svc := NewService(failAfterInsert{s}, nil)
	ctx := context.Background()

	_, err := svc.CreateTask(ctx, models.TaskCreateRequest{Title: "Mow the lawn"})
	assert.ErrorIs(t, err, apperror.ErrInternal)
	assert.ErrorIs(t, err, errWriteFailed)

	tasks, err := s.ListTasks(ctx, models.TaskFilter{})
	require.NoError(t, err)
	assert.Empty(t, tasks)
	exists, err := s.TaskExists(ctx, 1)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestCreateTaskWithMissingAssignee(t *testing.T) {
	svc, s := setup(t)
	missing := int64(42)

	_, err := svc.CreateTask(context.Background(), models.TaskCreateRequest{Title: "Mow", AssignedUserID: &missing})
	assert.ErrorIs(t, err, apperror.ErrInvalidArgument)
	assert.Contains(t, err.Error(), "User 42 not found")

	tasks, err := s.ListTasks(context.Background(), models.TaskFilter{})
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestCreateTaskWithAssignee(t *testing.T) {
	svc, s := setup(t)
	ctx := context.Background()
	user := &models.User{Name: "Ada", Email: "ada@example.com"}
	require.NoError(t, s.CreateUser(ctx, user))

	task := createTask(t, svc, models.TaskCreateRequest{Title: "Homework", AssignedUserID: &user.ID, DueDate: strPtr("2026-02-03")})

	require.NotNil(t, task.Assignee)
	assert.Equal(t, "Ada", task.Assignee.Name)
	require.NotNil(t, task.DueDate)
	assert.Equal(t, "2026-02-03", *task.DueDate)
}

func TestDerivedDependencyViews(t *testing.T) {
	svc, s := setup(t)
	ctx := context.Background()
	engine := graph.NewEngine(s)

	a := createTask(t, svc, models.TaskCreateRequest{Title: "A"})
	b := createTask(t, svc, models.TaskCreateRequest{Title: "B"})

	dep, err := engine.CreateDependency(ctx, a.ID, b.ID)
	require.NoError(t, err)

	gotA, err := svc.GetTask(ctx, a.ID)
	require.NoError(t, err)
	gotB, err := svc.GetTask(ctx, b.ID)
	require.NoError(t, err)

	assert.Equal(t, []int64{b.ID}, gotA.BlockedBy)
	assert.Empty(t, gotA.Blocking)
	assert.Equal(t, []int64{a.ID}, gotB.Blocking)
	assert.Empty(t, gotB.BlockedBy)

	_, err = engine.DeleteDependency(ctx, dep.ID)
	require.NoError(t, err)

	all, err := svc.GetTasks(ctx, models.TaskFilter{})
	require.NoError(t, err)
	for _, task := range all {
		assert.Empty(t, task.Blocking)
		assert.Empty(t, task.BlockedBy)
	}
}

func TestGetTasksPrioritySort(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	createTask(t, svc, models.TaskCreateRequest{Title: "urgent", Priority: models.PriorityUrgent})
	createTask(t, svc, models.TaskCreateRequest{Title: "low", Priority: models.PriorityLow})
	createTask(t, svc, models.TaskCreateRequest{Title: "med", Priority: models.PriorityMed})

	asc, err := svc.GetTasks(ctx, models.TaskFilter{SortBy: models.SortByPriority, SortOrder: models.SortAsc})
	require.NoError(t, err)
	assert.Equal(t, []string{"urgent", "med", "low"}, titles(asc))

	desc, err := svc.GetTasks(ctx, models.TaskFilter{SortBy: models.SortByPriority, SortOrder: models.SortDesc})
	require.NoError(t, err)
	assert.Equal(t, []string{"low", "med", "urgent"}, titles(desc))
}

func TestGetTasksDueDateSortPutsMissingLast(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	createTask(t, svc, models.TaskCreateRequest{Title: "undated"})
	createTask(t, svc, models.TaskCreateRequest{Title: "march", DueDate: strPtr("2026-03-01")})
	createTask(t, svc, models.TaskCreateRequest{Title: "january", DueDate: strPtr("2026-01-15")})

	asc, err := svc.GetTasks(ctx, models.TaskFilter{SortBy: models.SortByDueDate, SortOrder: models.SortAsc})
	require.NoError(t, err)
	assert.Equal(t, []string{"january", "march", "undated"}, titles(asc))

	desc, err := svc.GetTasks(ctx, models.TaskFilter{SortBy: models.SortByDueDate, SortOrder: models.SortDesc})
	require.NoError(t, err)
	assert.Equal(t, []string{"march", "january", "undated"}, titles(desc))
}

func TestGetTasksDefaultSortNewestFirst(t *testing.T) {
	svc, _ := setup(t)

	createTask(t, svc, models.TaskCreateRequest{Title: "first"})
	createTask(t, svc, models.TaskCreateRequest{Title: "second"})
	createTask(t, svc, models.TaskCreateRequest{Title: "third"})

	tasks, err := svc.GetTasks(context.Background(), models.TaskFilter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"third", "second", "first"}, titles(tasks))
}

func TestGetTasksFilters(t *testing.T) {
	svc, s := setup(t)
	ctx := context.Background()
	user := &models.User{Name: "Ada", Email: "ada@example.com"}
	require.NoError(t, s.CreateUser(ctx, user))

	createTask(t, svc, models.TaskCreateRequest{Title: "done early", Status: models.StatusDone, DueDate: strPtr("2026-01-05")})
	createTask(t, svc, models.TaskCreateRequest{Title: "todo mid", AssignedUserID: &user.ID, DueDate: strPtr("2026-01-15"), Priority: models.PriorityHigh})
	createTask(t, svc, models.TaskCreateRequest{Title: "todo late", DueDate: strPtr("2026-02-20")})
	createTask(t, svc, models.TaskCreateRequest{Title: "todo undated", Priority: models.PriorityHigh})

	from := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		filter models.TaskFilter
		want   []string
	}{
		{"status", models.TaskFilter{Status: models.StatusDone}, []string{"done early"}},
		{"assignee", models.TaskFilter{AssignedUserID: &user.ID}, []string{"todo mid"}},
		{"priority", models.TaskFilter{Priority: models.PriorityHigh}, []string{"todo undated", "todo mid"}},
		{"date range", models.TaskFilter{DueDateFrom: &from, DueDateTo: &to}, []string{"todo mid"}},
		{"open-ended range", models.TaskFilter{DueDateFrom: &from}, []string{"todo late", "todo mid"}},
		{"combined", models.TaskFilter{Status: models.StatusTodo, Priority: models.PriorityHigh, DueDateTo: &to}, []string{"todo mid"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tasks, err := svc.GetTasks(ctx, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.want, titles(tasks))
		})
	}
}

func TestGetTasksRejectsBadFilter(t *testing.T) {
	svc, _ := setup(t)

	_, err := svc.GetTasks(context.Background(), models.TaskFilter{SortBy: "title"})
	assert.ErrorIs(t, err, apperror.ErrInvalidArgument)

	_, err = svc.GetTasks(context.Background(), models.TaskFilter{Status: "blocked"})
	assert.ErrorIs(t, err, apperror.ErrInvalidArgument)
}

func decodeUpdate(t *testing.T, body string) models.TaskUpdateRequest {
	t.Helper()
	var req models.TaskUpdateRequest
	require.NoError(t, json.Unmarshal([]byte(body), &req))
	return req
}

func TestUpdateTaskPartial(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()
	task := createTask(t, svc, models.TaskCreateRequest{
		Title:       "Laundry",
		Description: strPtr("whites"),
		DueDate:     strPtr("2026-04-01"),
		Tags:        []string{"home"},
	})

	updated, err := svc.UpdateTask(ctx, task.ID, decodeUpdate(t, `{"status":"in-progress","due_date":null}`))
	require.NoError(t, err)

	assert.Equal(t, models.StatusInProgress, updated.Status)
	assert.Nil(t, updated.DueDate)
	assert.Equal(t, "Laundry", updated.Title)
	require.NotNil(t, updated.Description)
	assert.Equal(t, "whites", *updated.Description)
	assert.Equal(t, []string{"home"}, updated.Tags)
	assert.True(t, updated.UpdatedAt.After(task.UpdatedAt))
}

func TestUpdateTaskEmptyPatchIsNoop(t *testing.T) {
	svc, _ := setup(t)
	task := createTask(t, svc, models.TaskCreateRequest{Title: "Laundry"})

	same, err := svc.UpdateTask(context.Background(), task.ID, decodeUpdate(t, `{}`))
	require.NoError(t, err)
	assert.Equal(t, task.UpdatedAt, same.UpdatedAt)
	assert.Equal(t, task.Title, same.Title)
}

func TestUpdateTaskValidation(t *testing.T) {
	svc, _ := setup(t)
	task := createTask(t, svc, models.TaskCreateRequest{Title: "Laundry"})

	tests := []struct {
		name string
		body string
		want error
	}{
		{"null title", `{"title":null}`, apperror.ErrInvalidArgument},
		{"blank title", `{"title":"  "}`, apperror.ErrInvalidArgument},
		{"bad status", `{"status":"blocked"}`, apperror.ErrInvalidArgument},
		{"null priority", `{"priority":null}`, apperror.ErrInvalidArgument},
		{"bad date", `{"due_date":"next week"}`, apperror.ErrInvalidArgument},
		{"missing assignee", `{"assigned_user_id":77}`, apperror.ErrInvalidArgument},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.UpdateTask(context.Background(), task.ID, decodeUpdate(t, tt.body))
			assert.ErrorIs(t, err, tt.want)
		})
	}

	_, err := svc.UpdateTask(context.Background(), 999, decodeUpdate(t, `{"title":"x"}`))
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestUpdateTaskClearsAssignee(t *testing.T) {
	svc, s := setup(t)
	ctx := context.Background()
	user := &models.User{Name: "Ada", Email: "ada@example.com"}
	require.NoError(t, s.CreateUser(ctx, user))
	task := createTask(t, svc, models.TaskCreateRequest{Title: "Walk dog", AssignedUserID: &user.ID})

	updated, err := svc.UpdateTask(ctx, task.ID, decodeUpdate(t, `{"assigned_user_id":null}`))
	require.NoError(t, err)
	assert.Nil(t, updated.AssignedUserID)
	assert.Nil(t, updated.Assignee)
}

func TestDeleteTaskCascades(t *testing.T) {
	svc, s := setup(t)
	ctx := context.Background()
	engine := graph.NewEngine(s)

	a := createTask(t, svc, models.TaskCreateRequest{Title: "A"})
	b := createTask(t, svc, models.TaskCreateRequest{Title: "B"})
	_, err := engine.CreateDependency(ctx, a.ID, b.ID)
	require.NoError(t, err)
	_, err = svc.CreateSubtask(ctx, b.ID, models.SubtaskCreateRequest{Title: "step"})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteTask(ctx, b.ID))

	gotA, err := svc.GetTask(ctx, a.ID)
	require.NoError(t, err)
	assert.Empty(t, gotA.BlockedBy)

	_, err = svc.GetTask(ctx, b.ID)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
	assert.ErrorIs(t, svc.DeleteTask(ctx, b.ID), apperror.ErrNotFound)
}
