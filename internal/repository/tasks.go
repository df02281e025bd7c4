package repository

import (
	"context"
	"fmt"

	"github.com/JunoAX/familytasks-go/internal/models"
	"github.com/JunoAX/familytasks-go/internal/patch"
	"github.com/jackc/pgx/v5"
)

const taskColumns = `id, title, description, assigned_user_id, due_date, status, priority, task_type, tags, created_at, updated_at`

// priorityRank orders urgent first and none last
const priorityRank = `CASE priority
	WHEN 'urgent' THEN 1
	WHEN 'high' THEN 2
	WHEN 'med' THEN 3
	WHEN 'low' THEN 4
	ELSE 5
END`

// buildTaskQuery renders the filter as a parameterized SELECT. Rows without a
// due date sort last in both directions, and id breaks ties.
func buildTaskQuery(filter models.TaskFilter) (string, []any) {
	filter = filter.Normalize()

	query := `SELECT ` + taskColumns + ` FROM tasks WHERE 1=1`
	params := []any{}
	paramCount := 0

	if filter.Status != "" {
		paramCount++
		query += fmt.Sprintf(" AND status = $%d", paramCount)
		params = append(params, filter.Status)
	}

	if filter.AssignedUserID != nil {
		paramCount++
		query += fmt.Sprintf(" AND assigned_user_id = $%d", paramCount)
		params = append(params, *filter.AssignedUserID)
	}

	if filter.DueDateFrom != nil {
		paramCount++
		query += fmt.Sprintf(" AND due_date >= $%d", paramCount)
		params = append(params, *filter.DueDateFrom)
	}

	if filter.DueDateTo != nil {
		paramCount++
		query += fmt.Sprintf(" AND due_date <= $%d", paramCount)
		params = append(params, *filter.DueDateTo)
	}

	if filter.Priority != "" {
		paramCount++
		query += fmt.Sprintf(" AND priority = $%d", paramCount)
		params = append(params, filter.Priority)
	}

	direction := "DESC"
	if filter.SortOrder == models.SortAsc {
		direction = "ASC"
	}

	switch filter.SortBy {
	case models.SortByPriority:
		query += " ORDER BY " + priorityRank + " " + direction
	case models.SortByDueDate:
		query += " ORDER BY due_date " + direction + " NULLS LAST"
	default:
		query += " ORDER BY created_at " + direction
	}
	query += ", id " + direction

	return query, params
}

func (q *queries) ListTasks(ctx context.Context, filter models.TaskFilter) ([]models.Task, error) {
	var tasks []models.Task
	err := q.exec(ctx, func(db Querier) error {
		query, params := buildTaskQuery(filter)
		rows, err := db.Query(ctx, query, params...)
		if err != nil {
			return err
		}
		tasks, err = pgx.CollectRows(rows, pgx.RowToStructByName[models.Task])
		return err
	})
	if tasks == nil {
		tasks = []models.Task{}
	}
	return tasks, err
}

func (q *queries) GetTask(ctx context.Context, id int64) (*models.Task, error) {
	var task *models.Task
	err := q.exec(ctx, func(db Querier) error {
		rows, err := db.Query(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id)
		if err != nil {
			return err
		}
		task, err = pgx.CollectOneRow(rows, pgx.RowToAddrOfStructByName[models.Task])
		return err
	})
	return task, err
}

func (q *queries) TaskExists(ctx context.Context, id int64) (bool, error) {
	return q.exists(ctx, `SELECT EXISTS(SELECT 1 FROM tasks WHERE id = $1)`, id)
}

// CreateTask inserts t. Empty status, priority and task type take the column defaults.
func (q *queries) CreateTask(ctx context.Context, t *models.Task) error {
	return q.exec(ctx, func(db Querier) error {
		rows, err := db.Query(ctx, `
			INSERT INTO tasks (title, description, assigned_user_id, due_date, status, priority, task_type, tags)
			VALUES ($1, $2, $3, $4,
				COALESCE(NULLIF($5, ''), 'todo'),
				COALESCE(NULLIF($6, ''), 'none'),
				COALESCE(NULLIF($7, ''), 'other'),
				$8)
			RETURNING `+taskColumns,
			t.Title, t.Description, t.AssignedUserID, t.DueDate,
			t.Status, t.Priority, t.TaskType, t.Tags,
		)
		if err != nil {
			return err
		}
		created, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[models.Task])
		if err != nil {
			return err
		}
		*t = created
		return nil
	})
}

func (q *queries) UpdateTask(ctx context.Context, id int64, p patch.Patch) (*models.Task, error) {
	var task *models.Task
	err := q.exec(ctx, func(db Querier) error {
		query, args := p.UpdateSQL("tasks", "id", id, taskColumns)
		rows, err := db.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		task, err = pgx.CollectOneRow(rows, pgx.RowToAddrOfStructByName[models.Task])
		return err
	})
	return task, err
}

// DeleteTask removes a task; its dependencies, subtasks and links cascade.
func (q *queries) DeleteTask(ctx context.Context, id int64) (bool, error) {
	return q.deleteByID(ctx, "tasks", id)
}
