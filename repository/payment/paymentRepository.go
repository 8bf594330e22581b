// repository/payment/paymentRepository.go
package payment

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/ARUSH-R/rent-and-return/model"
	rentalrepo "github.com/ARUSH-R/rent-and-return/repository/rental"
)

var ErrNotFound = errors.New("payment not found")

// RentalContact is who to notify about a payment outcome.
type RentalContact struct {
	Email    string `db:"email"`
	Username string `db:"username"`
}

type Repo interface {
	// CreatePending inserts a not-yet-successful payment bound to its rental.
	CreatePending(ctx context.Context, p *model.Payment) error

	ByID(ctx context.Context, id int64) (*model.Payment, error)
	ByIntentID(ctx context.Context, intentID string) (*model.Payment, error)
	ByRentalID(ctx context.Context, rentalID int64) (*model.Payment, error)

	// MarkSucceededActivating marks the payment successful, records the
	// processor status and receipt, and moves the rental PENDING -> ACTIVE,
	// in one transaction. The rental transition is conditional; a rental no
	// longer PENDING (already activated, swept overdue) or no longer visible
	// at all (cancelled rentals are soft-deleted) leaves the payment update
	// committed and reports no error, since the payment outcome itself is
	// settled.
	MarkSucceededActivating(ctx context.Context, paymentID, rentalID int64, processorStatus, receiptURL string) error

	MarkFailed(ctx context.Context, paymentID int64, processorStatus string) error

	// ContactForRental resolves the owning user's address for notifications.
	ContactForRental(ctx context.Context, rentalID int64) (*RentalContact, error)
}

type repo struct{ db *sqlx.DB }

func New(db *sqlx.DB) Repo { return &repo{db: db} }

const paymentCols = `
	id, rental_id, method, amount, successful, intent_id,
	processor_status, receipt_url, created_at, updated_at`

func (r *repo) CreatePending(ctx context.Context, p *model.Payment) error {
	const q = `
		INSERT INTO payments (rental_id, method, amount, successful, intent_id, processor_status)
		VALUES ($1,$2,$3,FALSE,$4,$5)
		RETURNING id, successful, created_at, updated_at`
	return r.db.QueryRowContext(ctx, q,
		p.RentalID, p.Method, p.Amount, p.IntentID, p.ProcessorStatus,
	).Scan(&p.ID, &p.Successful, &p.CreatedAt, &p.UpdatedAt)
}

func (r *repo) ByID(ctx context.Context, id int64) (*model.Payment, error) {
	return r.get(ctx, `SELECT `+paymentCols+` FROM payments WHERE id = $1`, id)
}

func (r *repo) ByIntentID(ctx context.Context, intentID string) (*model.Payment, error) {
	return r.get(ctx, `SELECT `+paymentCols+` FROM payments WHERE intent_id = $1`, intentID)
}

func (r *repo) ByRentalID(ctx context.Context, rentalID int64) (*model.Payment, error) {
	return r.get(ctx, `SELECT `+paymentCols+` FROM payments WHERE rental_id = $1`, rentalID)
}

func (r *repo) get(ctx context.Context, q string, arg any) (*model.Payment, error) {
	var p model.Payment
	err := r.db.GetContext(ctx, &p, q, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *repo) MarkSucceededActivating(ctx context.Context, paymentID, rentalID int64, processorStatus, receiptURL string) (err error) {
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
		UPDATE payments
		SET successful = TRUE,
			processor_status = $2,
			receipt_url = NULLIF($3, ''),
			updated_at = now()
		WHERE id = $1`
	if _, err = tx.ExecContext(ctx, q, paymentID, processorStatus, receiptURL); err != nil {
		return err
	}

	err = rentalrepo.ActivateIn(ctx, tx, rentalID, "payment-webhook")
	if err != nil && !benignActivationErr(err) {
		return err
	}
	err = nil

	return tx.Commit()
}

// benignActivationErr reports whether a failed rental activation still leaves
// the payment settlement valid: the rental moved past PENDING (conflict) or
// was cancelled and soft-deleted (not found). Either way the payment outcome
// stands and the event must be acknowledged, not redelivered.
func benignActivationErr(err error) bool {
	return errors.Is(err, rentalrepo.ErrStatusConflict) || errors.Is(err, rentalrepo.ErrNotFound)
}

func (r *repo) MarkFailed(ctx context.Context, paymentID int64, processorStatus string) error {
	const q = `
		UPDATE payments
		SET successful = FALSE,
			processor_status = $2,
			updated_at = now()
		WHERE id = $1`
	res, err := r.db.ExecContext(ctx, q, paymentID, processorStatus)
	if err != nil {
		return err
	}
	if aff, _ := res.RowsAffected(); aff == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repo) ContactForRental(ctx context.Context, rentalID int64) (*RentalContact, error) {
	const q = `
		SELECT u.email, u.username
		FROM rentals r
		JOIN users u ON u.id = r.user_id
		WHERE r.id = $1`
	var c RentalContact
	err := r.db.GetContext(ctx, &c, q, rentalID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}
