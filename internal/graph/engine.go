package graph

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/JunoAX/familytasks-go/internal/apperror"
	"github.com/JunoAX/familytasks-go/internal/models"
	"github.com/JunoAX/familytasks-go/internal/store"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("github.com/JunoAX/familytasks-go/internal/graph")

// Rejection reasons reported to the Observer
const (
	ReasonNotFound  = "not_found"
	ReasonSelfLoop  = "self_loop"
	ReasonDuplicate = "duplicate"
	ReasonCycle     = "cycle"
)

// Observer receives engine measurements. observability.Metrics implements it.
type Observer interface {
	DependencyCreated()
	DependencyRejected(reason string)
	CycleSearch(visited int)
}

type nopObserver struct{}

func (nopObserver) DependencyCreated()        {}
func (nopObserver) DependencyRejected(string) {}
func (nopObserver) CycleSearch(int)           {}

// Engine validates and applies dependency mutations.
type Engine struct {
	store    store.Store
	observer Observer
	logger   *slog.Logger
}

type Option func(*Engine)

func WithObserver(o Observer) Option {
	return func(e *Engine) { e.observer = o }
}

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

func NewEngine(s store.Store, opts ...Option) *Engine {
	e := &Engine{store: s, observer: nopObserver{}, logger: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// CreateDependency records that taskID depends on dependsOnTaskID.
//
// Checks run in order inside one transaction holding the dependency write
// lock: both tasks exist (NotFound), the edge is not a self-loop
// (InvalidArgument), the edge is new (Conflict), and it closes no cycle
// (Conflict carrying the cycle path).
func (e *Engine) CreateDependency(ctx context.Context, taskID, dependsOnTaskID int64) (*models.Dependency, error) {
	ctx, span := tracer.Start(ctx, "graph.CreateDependency")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("task.id", taskID),
		attribute.Int64("task.depends_on_id", dependsOnTaskID),
	)

	var dep *models.Dependency
	err := e.store.Tx(ctx, store.ReadCommitted, func(q store.Queries) error {
		if err := q.LockDependencies(ctx); err != nil {
			return err
		}

		for _, id := range []int64{taskID, dependsOnTaskID} {
			exists, err := q.TaskExists(ctx, id)
			if err != nil {
				return err
			}
			if !exists {
				e.reject(ctx, ReasonNotFound, taskID, dependsOnTaskID)
				return apperror.NotFound("Task %d not found", id)
			}
		}

		if taskID == dependsOnTaskID {
			e.reject(ctx, ReasonSelfLoop, taskID, dependsOnTaskID)
			return apperror.Invalid("A task cannot depend on itself (task %d)", taskID)
		}

		exists, err := q.DependencyExists(ctx, taskID, dependsOnTaskID)
		if err != nil {
			return err
		}
		if exists {
			e.reject(ctx, ReasonDuplicate, taskID, dependsOnTaskID)
			return apperror.Conflict("Dependency already exists: task %d already depends on task %d", taskID, dependsOnTaskID)
		}

		path, visited, err := CyclePath(ctx, q.Prerequisites, taskID, dependsOnTaskID)
		e.observer.CycleSearch(visited)
		if err != nil {
			return err
		}
		if path != nil {
			e.reject(ctx, ReasonCycle, taskID, dependsOnTaskID, slog.String("cycle", apperror.FormatPath(path)), slog.Int("cycle_length", len(path)))
			return &apperror.CycleError{TaskID: taskID, DependsOnTaskID: dependsOnTaskID, Path: path}
		}

		dep = &models.Dependency{TaskID: taskID, DependsOnTaskID: dependsOnTaskID}
		return q.CreateDependency(ctx, dep)
	})
	if err != nil {
		err = apperror.FromStore(err, fmt.Sprintf("Dependency %d -> %d", taskID, dependsOnTaskID))
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	e.observer.DependencyCreated()
	e.logger.InfoContext(ctx, "dependency.created",
		"dependency_id", dep.ID,
		"task_id", taskID,
		"depends_on_task_id", dependsOnTaskID,
	)
	return dep, nil
}

func (e *Engine) reject(ctx context.Context, reason string, taskID, dependsOnTaskID int64, extra ...any) {
	e.observer.DependencyRejected(reason)
	args := append([]any{
		"reason", reason,
		"task_id", taskID,
		"depends_on_task_id", dependsOnTaskID,
	}, extra...)
	e.logger.InfoContext(ctx, "dependency.rejected", args...)
}

// DeleteDependency removes an edge by id and reports whether it existed.
func (e *Engine) DeleteDependency(ctx context.Context, id int64) (bool, error) {
	deleted, err := e.store.DeleteDependency(ctx, id)
	if err != nil {
		return false, apperror.FromStore(err, fmt.Sprintf("Dependency %d", id))
	}
	return deleted, nil
}

// ListDependencies returns every edge, newest first.
func (e *Engine) ListDependencies(ctx context.Context) ([]models.Dependency, error) {
	deps, err := e.store.ListDependencies(ctx)
	if err != nil {
		return nil, apperror.FromStore(err, "Dependencies")
	}
	return deps, nil
}

// ListForTask returns the edges with taskID at either end, newest first.
func (e *Engine) ListForTask(ctx context.Context, taskID int64) ([]models.Dependency, error) {
	deps, err := e.store.ListDependenciesForTask(ctx, taskID)
	if err != nil {
		return nil, apperror.FromStore(err, fmt.Sprintf("Task %d", taskID))
	}
	return deps, nil
}

// WouldCreateCycle checks a prospective edge against the stored graph
// without modifying it.
func (e *Engine) WouldCreateCycle(ctx context.Context, taskID, dependsOnTaskID int64) (bool, error) {
	cycle, err := WouldCreateCycle(ctx, e.store.Prerequisites, taskID, dependsOnTaskID)
	if err != nil {
		return false, apperror.FromStore(err, "Dependencies")
	}
	return cycle, nil
}

// Verify audits the stored edge set and returns a cycle if one exists.
func (e *Engine) Verify(ctx context.Context) ([]int64, int, error) {
	deps, err := e.ListDependencies(ctx)
	if err != nil {
		return nil, 0, err
	}
	return FindCycle(deps), len(deps), nil
}
