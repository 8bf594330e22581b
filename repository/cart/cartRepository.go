package cart

import (
	"context"

	"github.com/jmoiron/sqlx"
)

// Repo is the cart collaborator the booking flow needs: clearing a user's
// staged lines once a booking commits. Best-effort by contract.
type Repo interface {
	Clear(ctx context.Context, userID int64) (int64, error)
}

type repo struct{ db *sqlx.DB }

func New(db *sqlx.DB) Repo { return &repo{db: db} }

func (r *repo) Clear(ctx context.Context, userID int64) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM cart_items WHERE user_id = $1`, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
