package repository

import (
	"context"

	"github.com/JunoAX/familytasks-go/internal/models"
	"github.com/JunoAX/familytasks-go/internal/patch"
	"github.com/jackc/pgx/v5"
)

const userColumns = `id, name, email, avatar, external_id, family_id, created_at, updated_at`

func (q *queries) ListUsers(ctx context.Context) ([]models.User, error) {
	var users []models.User
	err := q.exec(ctx, func(db Querier) error {
		rows, err := db.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at DESC, id DESC`)
		if err != nil {
			return err
		}
		users, err = pgx.CollectRows(rows, pgx.RowToStructByName[models.User])
		return err
	})
	if users == nil {
		users = []models.User{}
	}
	return users, err
}

func (q *queries) getUserWhere(ctx context.Context, where string, arg any) (*models.User, error) {
	var user *models.User
	err := q.exec(ctx, func(db Querier) error {
		rows, err := db.Query(ctx, `SELECT `+userColumns+` FROM users WHERE `+where, arg)
		if err != nil {
			return err
		}
		user, err = pgx.CollectOneRow(rows, pgx.RowToAddrOfStructByName[models.User])
		return err
	})
	return user, err
}

func (q *queries) GetUser(ctx context.Context, id int64) (*models.User, error) {
	return q.getUserWhere(ctx, `id = $1`, id)
}

func (q *queries) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return q.getUserWhere(ctx, `LOWER(email) = LOWER($1)`, email)
}

func (q *queries) GetUserByExternalID(ctx context.Context, externalID string) (*models.User, error) {
	return q.getUserWhere(ctx, `external_id = $1`, externalID)
}

func (q *queries) GetUsersByIDs(ctx context.Context, ids []int64) ([]models.User, error) {
	users := []models.User{}
	if len(ids) == 0 {
		return users, nil
	}
	err := q.exec(ctx, func(db Querier) error {
		rows, err := db.Query(ctx, `SELECT `+userColumns+` FROM users WHERE id = ANY($1)`, ids)
		if err != nil {
			return err
		}
		users, err = pgx.CollectRows(rows, pgx.RowToStructByName[models.User])
		return err
	})
	return users, err
}

func (q *queries) UserExists(ctx context.Context, id int64) (bool, error) {
	return q.exists(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)`, id)
}

func (q *queries) CreateUser(ctx context.Context, u *models.User) error {
	return q.exec(ctx, func(db Querier) error {
		rows, err := db.Query(ctx, `
			INSERT INTO users (name, email, avatar, external_id, family_id)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING `+userColumns,
			u.Name, u.Email, u.Avatar, u.ExternalID, u.FamilyID,
		)
		if err != nil {
			return err
		}
		created, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[models.User])
		if err != nil {
			return err
		}
		*u = created
		return nil
	})
}

func (q *queries) UpdateUser(ctx context.Context, id int64, p patch.Patch) (*models.User, error) {
	var user *models.User
	err := q.exec(ctx, func(db Querier) error {
		query, args := p.UpdateSQL("users", "id", id, userColumns)
		rows, err := db.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		user, err = pgx.CollectOneRow(rows, pgx.RowToAddrOfStructByName[models.User])
		return err
	})
	return user, err
}

func (q *queries) DeleteUser(ctx context.Context, id int64) (bool, error) {
	return q.deleteByID(ctx, "users", id)
}
