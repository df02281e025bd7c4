package models

import "time"

// Dependency is a directed edge: TaskID cannot be done until DependsOnTaskID is done.
type Dependency struct {
	ID              int64     `json:"id" db:"id"`
	TaskID          int64     `json:"task_id" db:"task_id"`
	DependsOnTaskID int64     `json:"depends_on_task_id" db:"depends_on_task_id"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
}

// DependencyCreateRequest is the body of POST /api/dependencies
type DependencyCreateRequest struct {
	TaskID          int64 `json:"task_id" binding:"required,gt=0"`
	DependsOnTaskID int64 `json:"depends_on_task_id" binding:"required,gt=0"`
}
