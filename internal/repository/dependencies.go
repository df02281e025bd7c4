package repository

import (
	"context"

	"github.com/JunoAX/familytasks-go/internal/models"
	"github.com/jackc/pgx/v5"
)

const dependencyColumns = `id, task_id, depends_on_task_id, created_at`

// LockDependencies takes a table lock that conflicts with itself and with
// every row write, so concurrent dependency writers run one at a time while
// plain SELECTs proceed. Only valid inside a transaction.
func (q *queries) LockDependencies(ctx context.Context) error {
	return q.exec(ctx, func(db Querier) error {
		_, err := db.Exec(ctx, `LOCK TABLE dependencies IN SHARE ROW EXCLUSIVE MODE`)
		return err
	})
}

func (q *queries) listDependencies(ctx context.Context, where string, args ...any) ([]models.Dependency, error) {
	var deps []models.Dependency
	err := q.exec(ctx, func(db Querier) error {
		query := `SELECT ` + dependencyColumns + ` FROM dependencies`
		if where != "" {
			query += ` WHERE ` + where
		}
		query += ` ORDER BY created_at DESC, id DESC`

		rows, err := db.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		deps, err = pgx.CollectRows(rows, pgx.RowToStructByName[models.Dependency])
		return err
	})
	if deps == nil {
		deps = []models.Dependency{}
	}
	return deps, err
}

func (q *queries) ListDependencies(ctx context.Context) ([]models.Dependency, error) {
	return q.listDependencies(ctx, "")
}

func (q *queries) ListDependenciesForTask(ctx context.Context, taskID int64) ([]models.Dependency, error) {
	return q.listDependencies(ctx, `task_id = $1 OR depends_on_task_id = $1`, taskID)
}

func (q *queries) ListDependenciesTouching(ctx context.Context, taskIDs []int64) ([]models.Dependency, error) {
	if len(taskIDs) == 0 {
		return []models.Dependency{}, nil
	}
	return q.listDependencies(ctx, `task_id = ANY($1) OR depends_on_task_id = ANY($1)`, taskIDs)
}

func (q *queries) DependencyExists(ctx context.Context, taskID, dependsOnTaskID int64) (bool, error) {
	return q.exists(ctx,
		`SELECT EXISTS(SELECT 1 FROM dependencies WHERE task_id = $1 AND depends_on_task_id = $2)`,
		taskID, dependsOnTaskID,
	)
}

func (q *queries) Prerequisites(ctx context.Context, taskID int64) ([]int64, error) {
	ids := []int64{}
	err := q.exec(ctx, func(db Querier) error {
		rows, err := db.Query(ctx,
			`SELECT depends_on_task_id FROM dependencies WHERE task_id = $1 ORDER BY depends_on_task_id`,
			taskID,
		)
		if err != nil {
			return err
		}
		ids, err = pgx.CollectRows(rows, pgx.RowTo[int64])
		return err
	})
	return ids, err
}

func (q *queries) CreateDependency(ctx context.Context, d *models.Dependency) error {
	return q.exec(ctx, func(db Querier) error {
		return db.QueryRow(ctx, `
			INSERT INTO dependencies (task_id, depends_on_task_id)
			VALUES ($1, $2)
			RETURNING id, created_at
		`, d.TaskID, d.DependsOnTaskID).Scan(&d.ID, &d.CreatedAt)
	})
}

func (q *queries) DeleteDependency(ctx context.Context, id int64) (bool, error) {
	return q.deleteByID(ctx, "dependencies", id)
}
