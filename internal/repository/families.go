package repository

import (
	"context"

	"github.com/JunoAX/familytasks-go/internal/models"
	"github.com/jackc/pgx/v5"
)

const familyColumns = `id, name, created_at, updated_at`

// GetFamily retrieves a family account by ID
func (q *queries) GetFamily(ctx context.Context, id int64) (*models.Family, error) {
	var family *models.Family
	err := q.exec(ctx, func(db Querier) error {
		rows, err := db.Query(ctx, `SELECT `+familyColumns+` FROM family_accounts WHERE id = $1`, id)
		if err != nil {
			return err
		}
		family, err = pgx.CollectOneRow(rows, pgx.RowToAddrOfStructByName[models.Family])
		return err
	})
	return family, err
}

// CreateFamily inserts a family account and fills in its ID and timestamps
func (q *queries) CreateFamily(ctx context.Context, f *models.Family) error {
	return q.exec(ctx, func(db Querier) error {
		return db.QueryRow(ctx, `
			INSERT INTO family_accounts (name)
			VALUES ($1)
			RETURNING id, created_at, updated_at
		`, f.Name).Scan(&f.ID, &f.CreatedAt, &f.UpdatedAt)
	})
}
