package repository

import (
	"context"

	"github.com/JunoAX/familytasks-go/internal/models"
	"github.com/JunoAX/familytasks-go/internal/patch"
	"github.com/jackc/pgx/v5"
)

const (
	subtaskColumns = `id, task_id, title, completed, created_at, updated_at`
	linkColumns    = `id, task_id, url, title, created_at`
)

func (q *queries) ListSubtasks(ctx context.Context, taskID int64) ([]models.Subtask, error) {
	subtasks := []models.Subtask{}
	err := q.exec(ctx, func(db Querier) error {
		rows, err := db.Query(ctx,
			`SELECT `+subtaskColumns+` FROM subtasks WHERE task_id = $1 ORDER BY created_at ASC, id ASC`,
			taskID,
		)
		if err != nil {
			return err
		}
		subtasks, err = pgx.CollectRows(rows, pgx.RowToStructByName[models.Subtask])
		return err
	})
	return subtasks, err
}

func (q *queries) GetSubtask(ctx context.Context, id int64) (*models.Subtask, error) {
	var subtask *models.Subtask
	err := q.exec(ctx, func(db Querier) error {
		rows, err := db.Query(ctx, `SELECT `+subtaskColumns+` FROM subtasks WHERE id = $1`, id)
		if err != nil {
			return err
		}
		subtask, err = pgx.CollectOneRow(rows, pgx.RowToAddrOfStructByName[models.Subtask])
		return err
	})
	return subtask, err
}

func (q *queries) CreateSubtask(ctx context.Context, s *models.Subtask) error {
	return q.exec(ctx, func(db Querier) error {
		return db.QueryRow(ctx, `
			INSERT INTO subtasks (task_id, title)
			VALUES ($1, $2)
			RETURNING id, completed, created_at, updated_at
		`, s.TaskID, s.Title).Scan(&s.ID, &s.Completed, &s.CreatedAt, &s.UpdatedAt)
	})
}

func (q *queries) UpdateSubtask(ctx context.Context, id int64, p patch.Patch) (*models.Subtask, error) {
	var subtask *models.Subtask
	err := q.exec(ctx, func(db Querier) error {
		query, args := p.UpdateSQL("subtasks", "id", id, subtaskColumns)
		rows, err := db.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		subtask, err = pgx.CollectOneRow(rows, pgx.RowToAddrOfStructByName[models.Subtask])
		return err
	})
	return subtask, err
}

func (q *queries) DeleteSubtask(ctx context.Context, id int64) (bool, error) {
	return q.deleteByID(ctx, "subtasks", id)
}

func (q *queries) ListLinks(ctx context.Context, taskID int64) ([]models.TaskLink, error) {
	links := []models.TaskLink{}
	err := q.exec(ctx, func(db Querier) error {
		rows, err := db.Query(ctx,
			`SELECT `+linkColumns+` FROM task_links WHERE task_id = $1 ORDER BY created_at ASC, id ASC`,
			taskID,
		)
		if err != nil {
			return err
		}
		links, err = pgx.CollectRows(rows, pgx.RowToStructByName[models.TaskLink])
		return err
	})
	return links, err
}

func (q *queries) CreateLink(ctx context.Context, l *models.TaskLink) error {
	return q.exec(ctx, func(db Querier) error {
		return db.QueryRow(ctx, `
			INSERT INTO task_links (task_id, url, title)
			VALUES ($1, $2, $3)
			RETURNING id, created_at
		`, l.TaskID, l.URL, l.Title).Scan(&l.ID, &l.CreatedAt)
	})
}

func (q *queries) DeleteLink(ctx context.Context, id int64) (bool, error) {
	return q.deleteByID(ctx, "task_links", id)
}
