package models

import (
	"time"

	"github.com/JunoAX/familytasks-go/internal/patch"
)

// Subtask is a checklist item under a task
type Subtask struct {
	ID        int64     `json:"id" db:"id"`
	TaskID    int64     `json:"task_id" db:"task_id"`
	Title     string    `json:"title" db:"title"`
	Completed bool      `json:"completed" db:"completed"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type SubtaskCreateRequest struct {
	Title string `json:"title" binding:"required,max=500"`
}

type SubtaskUpdateRequest struct {
	Title     patch.Field[string] `json:"title"`
	Completed patch.Field[bool]   `json:"completed"`
}

// TaskLink is a URL attached to a task
type TaskLink struct {
	ID        int64     `json:"id" db:"id"`
	TaskID    int64     `json:"task_id" db:"task_id"`
	URL       string    `json:"url" db:"url"`
	Title     *string   `json:"title" db:"title"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type TaskLinkCreateRequest struct {
	URL   string  `json:"url" binding:"required,url,max=2048"`
	Title *string `json:"title" binding:"omitempty,max=500"`
}
