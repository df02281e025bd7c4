// Package store declares the persistence gateway the services run against.
// repository.Store implements it over Postgres; memstore implements it in memory.
package store

import (
	"context"
	"errors"

	"github.com/JunoAX/familytasks-go/internal/models"
	"github.com/JunoAX/familytasks-go/internal/patch"
)

var (
	ErrNotFound    = errors.New("record not found")
	ErrDuplicate   = errors.New("duplicate key")
	ErrForeignKey  = errors.New("foreign key violation")
	ErrCheck       = errors.New("check constraint violation")
	ErrUnavailable = errors.New("database unavailable")
)

// Isolation selects the transaction isolation level.
type Isolation int

const (
	ReadCommitted Isolation = iota
	Serializable
)

// Store runs queries directly or inside a transaction.
type Store interface {
	Queries
	// Tx runs fn in one transaction. It commits when fn returns nil and
	// rolls back otherwise.
	Tx(ctx context.Context, iso Isolation, fn func(q Queries) error) error
}

// Queries is every statement the services issue.
type Queries interface {
	UserQueries
	FamilyQueries
	TaskQueries
	DependencyQueries
	SubtaskQueries
	LinkQueries
}

type UserQueries interface {
	ListUsers(ctx context.Context) ([]models.User, error)
	GetUser(ctx context.Context, id int64) (*models.User, error)
	GetUsersByIDs(ctx context.Context, ids []int64) ([]models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByExternalID(ctx context.Context, externalID string) (*models.User, error)
	UserExists(ctx context.Context, id int64) (bool, error)
	CreateUser(ctx context.Context, u *models.User) error
	// UpdateUser applies p, bumps updated_at and returns the stored row.
	UpdateUser(ctx context.Context, id int64, p patch.Patch) (*models.User, error)
	DeleteUser(ctx context.Context, id int64) (bool, error)
}

type FamilyQueries interface {
	GetFamily(ctx context.Context, id int64) (*models.Family, error)
	CreateFamily(ctx context.Context, f *models.Family) error
}

type TaskQueries interface {
	ListTasks(ctx context.Context, filter models.TaskFilter) ([]models.Task, error)
	GetTask(ctx context.Context, id int64) (*models.Task, error)
	TaskExists(ctx context.Context, id int64) (bool, error)
	CreateTask(ctx context.Context, t *models.Task) error
	UpdateTask(ctx context.Context, id int64, p patch.Patch) (*models.Task, error)
	DeleteTask(ctx context.Context, id int64) (bool, error)
}

type DependencyQueries interface {
	// LockDependencies serializes edge writers for the rest of the
	// transaction. Readers are not blocked.
	LockDependencies(ctx context.Context) error
	ListDependencies(ctx context.Context) ([]models.Dependency, error)
	// ListDependenciesForTask returns edges with the task at either end, newest first.
	ListDependenciesForTask(ctx context.Context, taskID int64) ([]models.Dependency, error)
	// ListDependenciesTouching returns edges with any of the tasks at either end.
	ListDependenciesTouching(ctx context.Context, taskIDs []int64) ([]models.Dependency, error)
	DependencyExists(ctx context.Context, taskID, dependsOnTaskID int64) (bool, error)
	// Prerequisites returns the depends_on ids of a task's outgoing edges.
	Prerequisites(ctx context.Context, taskID int64) ([]int64, error)
	CreateDependency(ctx context.Context, d *models.Dependency) error
	DeleteDependency(ctx context.Context, id int64) (bool, error)
}

type SubtaskQueries interface {
	ListSubtasks(ctx context.Context, taskID int64) ([]models.Subtask, error)
	GetSubtask(ctx context.Context, id int64) (*models.Subtask, error)
	CreateSubtask(ctx context.Context, s *models.Subtask) error
	UpdateSubtask(ctx context.Context, id int64, p patch.Patch) (*models.Subtask, error)
	DeleteSubtask(ctx context.Context, id int64) (bool, error)
}

type LinkQueries interface {
	ListLinks(ctx context.Context, taskID int64) ([]models.TaskLink, error)
	CreateLink(ctx context.Context, l *models.TaskLink) error
	DeleteLink(ctx context.Context, id int64) (bool, error)
}
