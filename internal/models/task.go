package models

import (
	"time"

	"github.com/JunoAX/familytasks-go/internal/patch"
)

// Task statuses
const (
	StatusTodo       = "todo"
	StatusInProgress = "in-progress"
	StatusDone       = "done"
)

// Task priorities, most urgent first
const (
	PriorityUrgent = "urgent"
	PriorityHigh   = "high"
	PriorityMed    = "med"
	PriorityLow    = "low"
	PriorityNone   = "none"
)

// Task types
const (
	TaskTypeChore       = "chore"
	TaskTypeErrand      = "errand"
	TaskTypeHomework    = "homework"
	TaskTypeAppointment = "appointment"
	TaskTypeOther       = "other"
)

// Sort keys and directions accepted by task listing
const (
	SortByDueDate   = "due_date"
	SortByPriority  = "priority"
	SortByCreatedAt = "created_at"

	SortAsc  = "asc"
	SortDesc = "desc"
)

// DateLayout is the wire and storage format of due dates.
const DateLayout = "2006-01-02"

var (
	Statuses   = []string{StatusTodo, StatusInProgress, StatusDone}
	Priorities = []string{PriorityUrgent, PriorityHigh, PriorityMed, PriorityLow, PriorityNone}
	TaskTypes  = []string{TaskTypeChore, TaskTypeErrand, TaskTypeHomework, TaskTypeAppointment, TaskTypeOther}
)

// PriorityRank orders priorities for sorting: urgent=1 ... none=5.
// Unknown values rank after none.
func PriorityRank(p string) int {
	switch p {
	case PriorityUrgent:
		return 1
	case PriorityHigh:
		return 2
	case PriorityMed:
		return 3
	case PriorityLow:
		return 4
	case PriorityNone:
		return 5
	}
	return 6
}

// Task is a row of the tasks table
type Task struct {
	ID             int64      `json:"id" db:"id"`
	Title          string     `json:"title" db:"title"`
	Description    *string    `json:"description,omitempty" db:"description"`
	AssignedUserID *int64     `json:"assigned_user_id,omitempty" db:"assigned_user_id"`
	DueDate        *time.Time `json:"due_date,omitempty" db:"due_date"`
	Status         string     `json:"status" db:"status"`
	Priority       string     `json:"priority" db:"priority"`
	TaskType       string     `json:"task_type" db:"task_type"`
	Tags           []string   `json:"tags" db:"tags"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at" db:"updated_at"`
}

// TaskResponse is a task with its assignee and dependency views
type TaskResponse struct {
	ID             int64     `json:"id"`
	Title          string    `json:"title"`
	Description    *string   `json:"description"`
	AssignedUserID *int64    `json:"assigned_user_id"`
	DueDate        *string   `json:"due_date"`
	Status         string    `json:"status"`
	Priority       string    `json:"priority"`
	TaskType       string    `json:"task_type"`
	Tags           []string  `json:"tags"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
	Assignee       *User     `json:"assignee"`
	Blocking       []int64   `json:"blocking"`   // Tasks that depend on this one
	BlockedBy      []int64   `json:"blocked_by"` // Tasks this one depends on
}

// ToResponse converts a Task to a TaskResponse with empty dependency views.
func (t *Task) ToResponse(assignee *User) TaskResponse {
	var dueDate *string
	if t.DueDate != nil {
		str := t.DueDate.Format(DateLayout)
		dueDate = &str
	}
	tags := t.Tags
	if tags == nil {
		tags = []string{}
	}
	return TaskResponse{
		ID:             t.ID,
		Title:          t.Title,
		Description:    t.Description,
		AssignedUserID: t.AssignedUserID,
		DueDate:        dueDate,
		Status:         t.Status,
		Priority:       t.Priority,
		TaskType:       t.TaskType,
		Tags:           tags,
		CreatedAt:      t.CreatedAt,
		UpdatedAt:      t.UpdatedAt,
		Assignee:       assignee,
		Blocking:       []int64{},
		BlockedBy:      []int64{},
	}
}

// TaskCreateRequest is the body of POST /api/tasks
type TaskCreateRequest struct {
	Title          string   `json:"title" binding:"required,max=500"`
	Description    *string  `json:"description"`
	AssignedUserID *int64   `json:"assigned_user_id" binding:"omitempty,gt=0"`
	DueDate        *string  `json:"due_date" binding:"omitempty,datetime=2006-01-02"`
	Status         string   `json:"status" binding:"omitempty,taskstatus"`
	Priority       string   `json:"priority" binding:"omitempty,taskpriority"`
	TaskType       string   `json:"task_type" binding:"omitempty,tasktype"`
	Tags           []string `json:"tags" binding:"omitempty,dive,max=50"`
}

// TaskUpdateRequest is a partial update. An explicit null clears a nullable column.
type TaskUpdateRequest struct {
	Title          patch.Field[string]   `json:"title"`
	Description    patch.Field[string]   `json:"description"`
	AssignedUserID patch.Field[int64]    `json:"assigned_user_id"`
	DueDate        patch.Field[string]   `json:"due_date"`
	Status         patch.Field[string]   `json:"status"`
	Priority       patch.Field[string]   `json:"priority"`
	TaskType       patch.Field[string]   `json:"task_type"`
	Tags           patch.Field[[]string] `json:"tags"`
}

// TaskFilter selects and orders tasks. Zero values mean "no constraint".
type TaskFilter struct {
	Status         string
	AssignedUserID *int64
	DueDateFrom    *time.Time
	DueDateTo      *time.Time
	Priority       string
	SortBy         string
	SortOrder      string
}

// Normalize fills in the default ordering: newest first.
func (f TaskFilter) Normalize() TaskFilter {
	if f.SortBy == "" {
		f.SortBy = SortByCreatedAt
	}
	if f.SortOrder == "" {
		f.SortOrder = SortDesc
	}
	return f
}
