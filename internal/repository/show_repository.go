package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/seat-booking/internal/model"
)

// getShow loads a show by primary key.  Shows are owned by the catalog;
// the booking core only reads them.
func getShow(ctx context.Context, q querier, id uint64) (model.Show, error) {
	const query = `SELECT id, title, starts_at, is_active, base_price_cents
                   FROM shows WHERE id = ?`
	var s model.Show
	err := q.QueryRowContext(ctx, query, id).Scan(&s.ID, &s.Title, &s.StartsAt, &s.IsActive, &s.BasePriceCents)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Show{}, ErrNotFound
	}
	if err != nil {
		return model.Show{}, err
	}
	s.StartsAt = s.StartsAt.UTC()
	return s, nil
}
