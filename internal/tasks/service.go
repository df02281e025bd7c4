// Package tasks serves task reads with their assignee and dependency views
// and applies task, subtask and link mutations.
package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/JunoAX/familytasks-go/internal/apperror"
	"github.com/JunoAX/familytasks-go/internal/models"
	"github.com/JunoAX/familytasks-go/internal/patch"
	"github.com/JunoAX/familytasks-go/internal/store"
	"github.com/JunoAX/familytasks-go/internal/validation"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

var tracer = otel.Tracer("github.com/JunoAX/familytasks-go/internal/tasks")

type Service struct {
	store  store.Store
	logger *slog.Logger
}

func NewService(s store.Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: s, logger: logger}
}

// GetTasks returns the tasks matching filter, each with its assignee and
// dependency views.
func (s *Service) GetTasks(ctx context.Context, filter models.TaskFilter) ([]models.TaskResponse, error) {
	ctx, span := tracer.Start(ctx, "tasks.GetTasks")
	defer span.End()

	filter = filter.Normalize()
	if err := validateFilter(filter); err != nil {
		return nil, err
	}
	span.SetAttributes(
		attribute.String("sort.by", filter.SortBy),
		attribute.String("sort.order", filter.SortOrder),
	)

	tasks, err := s.store.ListTasks(ctx, filter)
	if err != nil {
		return nil, apperror.FromStore(err, "Tasks")
	}
	span.SetAttributes(attribute.Int("tasks.count", len(tasks)))

	return s.aggregate(ctx, tasks)
}

func validateFilter(f models.TaskFilter) error {
	if f.Status != "" && !slices.Contains(models.Statuses, f.Status) {
		return apperror.Invalid("Invalid status %q", f.Status)
	}
	if f.Priority != "" && !slices.Contains(models.Priorities, f.Priority) {
		return apperror.Invalid("Invalid priority %q", f.Priority)
	}
	switch f.SortBy {
	case models.SortByDueDate, models.SortByPriority, models.SortByCreatedAt:
	default:
		return apperror.Invalid("Invalid sort_by %q", f.SortBy)
	}
	if f.SortOrder != models.SortAsc && f.SortOrder != models.SortDesc {
		return apperror.Invalid("Invalid sort_order %q", f.SortOrder)
	}
	if f.DueDateFrom != nil && f.DueDateTo != nil && f.DueDateFrom.After(*f.DueDateTo) {
		return apperror.Invalid("due_date_from must not be after due_date_to")
	}
	return nil
}

// GetTask returns one task with its assignee and dependency views.
func (s *Service) GetTask(ctx context.Context, id int64) (*models.TaskResponse, error) {
	ctx, span := tracer.Start(ctx, "tasks.GetTask")
	defer span.End()
	span.SetAttributes(attribute.Int64("task.id", id))

	task, err := s.store.GetTask(ctx, id)
	if err != nil {
		return nil, apperror.FromStore(err, fmt.Sprintf("Task %d", id))
	}

	responses, err := s.aggregate(ctx, []models.Task{*task})
	if err != nil {
		return nil, err
	}
	return &responses[0], nil
}

// aggregate attaches assignees and derives blocking / blocked_by. The two
// lookups are independent and run concurrently on separate connections.
func (s *Service) aggregate(ctx context.Context, tasks []models.Task) ([]models.TaskResponse, error) {
	if len(tasks) == 0 {
		return []models.TaskResponse{}, nil
	}

	taskIDs := make([]int64, 0, len(tasks))
	var userIDs []int64
	for _, t := range tasks {
		taskIDs = append(taskIDs, t.ID)
		if t.AssignedUserID != nil && !slices.Contains(userIDs, *t.AssignedUserID) {
			userIDs = append(userIDs, *t.AssignedUserID)
		}
	}

	var (
		users []models.User
		deps  []models.Dependency
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		users, err = s.store.GetUsersByIDs(gctx, userIDs)
		return err
	})
	g.Go(func() error {
		var err error
		deps, err = s.store.ListDependenciesTouching(gctx, taskIDs)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, apperror.FromStore(err, "Tasks")
	}

	usersByID := make(map[int64]*models.User, len(users))
	for i := range users {
		usersByID[users[i].ID] = &users[i]
	}

	blocking := make(map[int64][]int64)
	blockedBy := make(map[int64][]int64)
	for _, d := range deps {
		blocking[d.DependsOnTaskID] = append(blocking[d.DependsOnTaskID], d.TaskID)
		blockedBy[d.TaskID] = append(blockedBy[d.TaskID], d.DependsOnTaskID)
	}

	responses := make([]models.TaskResponse, 0, len(tasks))
	for _, t := range tasks {
		var assignee *models.User
		if t.AssignedUserID != nil {
			assignee = usersByID[*t.AssignedUserID]
		}
		resp := t.ToResponse(assignee)
		if ids := blocking[t.ID]; len(ids) > 0 {
			resp.Blocking = sortedCopy(ids)
		}
		if ids := blockedBy[t.ID]; len(ids) > 0 {
			resp.BlockedBy = sortedCopy(ids)
		}
		responses = append(responses, resp)
	}
	return responses, nil
}

func sortedCopy(ids []int64) []int64 {
	out := slices.Clone(ids)
	slices.Sort(out)
	return out
}

// CreateTask validates the assignee and inserts the task in one transaction.
func (s *Service) CreateTask(ctx context.Context, req models.TaskCreateRequest) (*models.TaskResponse, error) {
	ctx, span := tracer.Start(ctx, "tasks.CreateTask")
	defer span.End()

	task := models.Task{
		Title:          strings.TrimSpace(req.Title),
		Description:    req.Description,
		AssignedUserID: req.AssignedUserID,
		Status:         req.Status,
		Priority:       req.Priority,
		TaskType:       req.TaskType,
		Tags:           req.Tags,
	}
	if task.Title == "" {
		return nil, apperror.Invalid("title is required")
	}
	if err := validateEnums(task.Status, task.Priority, task.TaskType); err != nil {
		return nil, err
	}
	if req.DueDate != nil {
		due, err := parseDate("due_date", *req.DueDate)
		if err != nil {
			return nil, err
		}
		task.DueDate = &due
	}

	err := s.store.Tx(ctx, store.ReadCommitted, func(q store.Queries) error {
		if task.AssignedUserID != nil {
			if err := checkAssignee(ctx, q, *task.AssignedUserID); err != nil {
				return err
			}
		}
		return q.CreateTask(ctx, &task)
	})
	if err != nil {
		return nil, apperror.FromStore(err, "Task")
	}

	s.logger.InfoContext(ctx, "task.created", "task_id", task.ID)
	return s.GetTask(ctx, task.ID)
}

// UpdateTask applies the fields present in req. A request with no fields
// returns the task unchanged.
func (s *Service) UpdateTask(ctx context.Context, id int64, req models.TaskUpdateRequest) (*models.TaskResponse, error) {
	ctx, span := tracer.Start(ctx, "tasks.UpdateTask")
	defer span.End()
	span.SetAttributes(attribute.Int64("task.id", id))

	p, err := taskPatch(req)
	if err != nil {
		return nil, err
	}

	err = s.store.Tx(ctx, store.ReadCommitted, func(q store.Queries) error {
		exists, err := q.TaskExists(ctx, id)
		if err != nil {
			return err
		}
		if !exists {
			return apperror.NotFound("Task %d not found", id)
		}
		if p.Empty() {
			return nil
		}
		if req.AssignedUserID.Present() {
			if err := checkAssignee(ctx, q, req.AssignedUserID.Value); err != nil {
				return err
			}
		}
		_, err = q.UpdateTask(ctx, id, p)
		return err
	})
	if err != nil {
		return nil, apperror.FromStore(err, fmt.Sprintf("Task %d", id))
	}

	if !p.Empty() {
		s.logger.InfoContext(ctx, "task.updated", "task_id", id, "fields", p.Len())
	}
	return s.GetTask(ctx, id)
}

// taskPatch converts the request into column assignments, rejecting nulls
// for required columns and unknown enum values.
func taskPatch(req models.TaskUpdateRequest) (patch.Patch, error) {
	var p patch.Patch

	if req.Title.Set {
		title := strings.TrimSpace(req.Title.Value)
		if req.Title.Null || title == "" {
			return p, apperror.Invalid("title cannot be empty")
		}
		p.Set("title", title)
	}
	patch.Add(&p, "description", req.Description)
	if req.AssignedUserID.Present() && req.AssignedUserID.Value <= 0 {
		return p, apperror.Invalid("assigned_user_id must be positive")
	}
	patch.Add(&p, "assigned_user_id", req.AssignedUserID)
	if err := patch.AddFunc(&p, "due_date", req.DueDate, func(v string) (time.Time, error) {
		return parseDate("due_date", v)
	}); err != nil {
		return p, err
	}

	for _, f := range []struct {
		column string
		field  patch.Field[string]
		tag    string
	}{
		{"status", req.Status, "taskstatus"},
		{"priority", req.Priority, "taskpriority"},
		{"task_type", req.TaskType, "tasktype"},
	} {
		if !f.field.Set {
			continue
		}
		if f.field.Null {
			return p, apperror.Invalid("%s cannot be null", f.column)
		}
		if err := validation.Var(f.field.Value, f.tag); err != nil {
			return p, apperror.Invalid("Invalid %s %q", f.column, f.field.Value)
		}
		p.Set(f.column, f.field.Value)
	}

	patch.Add(&p, "tags", req.Tags)
	return p, nil
}

func validateEnums(status, priority, taskType string) error {
	if status != "" && !slices.Contains(models.Statuses, status) {
		return apperror.Invalid("Invalid status %q", status)
	}
	if priority != "" && !slices.Contains(models.Priorities, priority) {
		return apperror.Invalid("Invalid priority %q", priority)
	}
	if taskType != "" && !slices.Contains(models.TaskTypes, taskType) {
		return apperror.Invalid("Invalid task_type %q", taskType)
	}
	return nil
}

func checkAssignee(ctx context.Context, q store.Queries, userID int64) error {
	exists, err := q.UserExists(ctx, userID)
	if err != nil {
		return err
	}
	if !exists {
		return apperror.Invalid("User %d not found", userID)
	}
	return nil
}

func parseDate(field, value string) (time.Time, error) {
	t, err := time.Parse(models.DateLayout, value)
	if err != nil {
		return time.Time{}, apperror.Invalid("%s must be a date in YYYY-MM-DD format", field)
	}
	return t, nil
}

// DeleteTask removes a task together with its dependencies, subtasks and links.
func (s *Service) DeleteTask(ctx context.Context, id int64) error {
	deleted, err := s.store.DeleteTask(ctx, id)
	if err != nil {
		return apperror.FromStore(err, fmt.Sprintf("Task %d", id))
	}
	if !deleted {
		return apperror.NotFound("Task %d not found", id)
	}
	s.logger.InfoContext(ctx, "task.deleted", "task_id", id)
	return nil
}
