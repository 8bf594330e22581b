// repository/rental/rentalRepository.go
package rental

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/ARUSH-R/rent-and-return/model"
	productrepo "github.com/ARUSH-R/rent-and-return/repository/product"
)

var (
	ErrNotFound = errors.New("rental not found")

	// ErrActiveLimit surfaces the partial unique index on open rentals: a
	// second booking slipped in between the service's pre-check and the
	// insert.
	ErrActiveLimit = errors.New("user already has an open rental")

	// ErrOutOfStock re-exported so callers depend on one package.
	ErrOutOfStock = productrepo.ErrOutOfStock

	// ErrStatusConflict means a conditional transition matched no row while
	// the rental exists: another writer got there first.
	ErrStatusConflict = errors.New("rental status changed concurrently")
)

type HistoryRow struct {
	RentalID    int64           `db:"rental_id" json:"rental_id"`
	ProductID   int64           `db:"product_id" json:"product_id"`
	ProductName string          `db:"product_name" json:"product_name"`
	TotalAmount decimal.Decimal `db:"total_amount" json:"total_amount"`
	Status      string          `db:"status" json:"status"`
	RentalStart time.Time       `db:"rental_start" json:"rental_start"`
	RentalEnd   time.Time       `db:"rental_end" json:"rental_end"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
}

type Repo interface {
	// CountOpenByUser counts non-deleted PENDING/ACTIVE rentals.
	CountOpenByUser(ctx context.Context, userID int64) (int64, error)

	// CreateReserving inserts the rental in PENDING and reserves one unit of
	// the product's stock in a single transaction. Either both commit or
	// neither does. ErrOutOfStock / ErrActiveLimit on the respective guards.
	CreateReserving(ctx context.Context, r *model.Rental) error

	ByID(ctx context.Context, id int64) (*model.Rental, error)

	// Transition conditionally moves a rental between statuses. The update is
	// keyed on the expected current statuses so a concurrent writer can never
	// be overwritten. ErrStatusConflict when the rental exists but the guard
	// missed, ErrNotFound when it does not.
	Transition(ctx context.Context, id int64, from []model.RentalStatus, to model.RentalStatus, updatedBy string) error

	// CancelRestoring moves a non-terminal rental to CANCELLED, soft-deletes
	// it, and gives the reserved unit back, all in one transaction.
	CancelRestoring(ctx context.Context, id int64, productID int64, updatedBy string) error

	// ExtendEnd pushes rental_end forward by extraDays.
	ExtendEnd(ctx context.Context, id int64, extraDays int) (*model.Rental, error)

	// MarkOverdueBefore flips every open rental whose end passed to OVERDUE
	// in one conditional statement and reports how many were flipped.
	MarkOverdueBefore(ctx context.Context, now time.Time) (int64, error)

	ListByUser(ctx context.Context, userID int64) ([]HistoryRow, error)
	ListByStatus(ctx context.Context, status model.RentalStatus) ([]model.Rental, error)
}

type repo struct{ db *sqlx.DB }

func New(db *sqlx.DB) Repo { return &repo{db: db} }

const rentalCols = `
	id, user_id, product_id, rental_start, rental_end, total_amount,
	status, deleted, created_at, updated_at, updated_by`

func (r *repo) CountOpenByUser(ctx context.Context, userID int64) (int64, error) {
	const q = `
		SELECT count(*)
		FROM rentals
		WHERE user_id = $1
		AND status = ANY($2)
		AND NOT deleted`
	open := model.OpenStatuses()
	states := make([]string, len(open))
	for i, s := range open {
		states[i] = string(s)
	}
	var n int64
	err := r.db.GetContext(ctx, &n, q, userID, states)
	return n, err
}

func (r *repo) CreateReserving(ctx context.Context, rn *model.Rental) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = productrepo.ReserveIn(ctx, tx, rn.ProductID, 1); err != nil {
		return err
	}

	const q = `
		INSERT INTO rentals (user_id, product_id, rental_start, rental_end, total_amount, status, updated_by)
		VALUES ($1,$2,$3,$4,$5,'PENDING',$6)
		RETURNING id, status, created_at, updated_at`
	err = tx.QueryRowContext(ctx, q,
		rn.UserID, rn.ProductID, rn.RentalStart, rn.RentalEnd, rn.TotalAmount, rn.UpdatedBy,
	).Scan(&rn.ID, &rn.Status, &rn.CreatedAt, &rn.UpdatedAt)
	if err != nil {
		if isOpenRentalViolation(err) {
			err = ErrActiveLimit
		}
		return err
	}

	return tx.Commit()
}

func isOpenRentalViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) &&
		pgErr.Code == pgerrcode.UniqueViolation &&
		pgErr.ConstraintName == "rentals_one_open_per_user"
}

func (r *repo) ByID(ctx context.Context, id int64) (*model.Rental, error) {
	var rn model.Rental
	err := r.db.GetContext(ctx, &rn, `SELECT `+rentalCols+` FROM rentals WHERE id = $1 AND NOT deleted`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rn, nil
}

func (r *repo) Transition(ctx context.Context, id int64, from []model.RentalStatus, to model.RentalStatus, updatedBy string) error {
	return transitionTx(ctx, r.db, id, from, to, updatedBy)
}

func transitionTx(ctx context.Context, ext sqlx.ExtContext, id int64, from []model.RentalStatus, to model.RentalStatus, updatedBy string) error {
	const q = `
		UPDATE rentals
		SET status = $2,
			updated_by = $3,
			updated_at = now()
		WHERE id = $1
		AND status = ANY($4)
		AND NOT deleted`
	states := make([]string, len(from))
	for i, s := range from {
		states[i] = string(s)
	}
	res, err := ext.ExecContext(ctx, q, id, to, updatedBy, states)
	if err != nil {
		return err
	}
	if aff, _ := res.RowsAffected(); aff > 0 {
		return nil
	}

	var exists bool
	if err := sqlx.GetContext(ctx, ext, &exists, `SELECT EXISTS (SELECT 1 FROM rentals WHERE id = $1 AND NOT deleted)`, id); err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	return ErrStatusConflict
}

func (r *repo) CancelRestoring(ctx context.Context, id int64, productID int64, updatedBy string) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const q = `
		UPDATE rentals
		SET status = 'CANCELLED',
			deleted = TRUE,
			updated_by = $2,
			updated_at = now()
		WHERE id = $1
		AND status IN ('PENDING','ACTIVE','OVERDUE')
		AND NOT deleted`
	res, err := tx.ExecContext(ctx, q, id, updatedBy)
	if err != nil {
		return err
	}
	if aff, _ := res.RowsAffected(); aff == 0 {
		err = ErrStatusConflict
		return err
	}

	if err = productrepo.RestoreIn(ctx, tx, productID, 1); err != nil {
		return err
	}

	return tx.Commit()
}

func (r *repo) ExtendEnd(ctx context.Context, id int64, extraDays int) (*model.Rental, error) {
	const q = `
		UPDATE rentals
		SET rental_end = rental_end + make_interval(days => $2),
			updated_at = now()
		WHERE id = $1 AND NOT deleted
		RETURNING ` + rentalCols
	var rn model.Rental
	err := r.db.GetContext(ctx, &rn, q, id, extraDays)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rn, nil
}

func (r *repo) MarkOverdueBefore(ctx context.Context, now time.Time) (int64, error) {
	// Guarded on the open statuses, so anything returned or cancelled between
	// scheduling and execution stays where it is.
	const q = `
		UPDATE rentals
		SET status = 'OVERDUE',
			updated_at = now()
		WHERE rental_end < $1
		AND status IN ('PENDING','ACTIVE')
		AND NOT deleted`
	res, err := r.db.ExecContext(ctx, q, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *repo) ListByUser(ctx context.Context, userID int64) ([]HistoryRow, error) {
	const q = `
		SELECT
			r.id           AS rental_id,
			r.product_id   AS product_id,
			p.name         AS product_name,
			r.total_amount AS total_amount,
			r.status       AS status,
			r.rental_start AS rental_start,
			r.rental_end   AS rental_end,
			r.created_at   AS created_at
		FROM rentals r
		JOIN products p ON p.id = r.product_id
		WHERE r.user_id = $1 AND NOT r.deleted
		ORDER BY r.created_at DESC, r.id DESC`
	var out []HistoryRow
	if err := r.db.SelectContext(ctx, &out, q, userID); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *repo) ListByStatus(ctx context.Context, status model.RentalStatus) ([]model.Rental, error) {
	const q = `SELECT ` + rentalCols + ` FROM rentals WHERE status = $1 AND NOT deleted ORDER BY id DESC`
	var out []model.Rental
	if err := r.db.SelectContext(ctx, &out, q, status); err != nil {
		return nil, err
	}
	return out, nil
}

// ActivateIn conditionally moves a rental PENDING -> ACTIVE inside a
// transaction owned by another repository (payment reconciliation).
func ActivateIn(ctx context.Context, tx *sqlx.Tx, id int64, updatedBy string) error {
	return transitionTx(ctx, tx, id, []model.RentalStatus{model.RentalPending}, model.RentalActive, updatedBy)
}
