// repository/product/productRepository.go
package product

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/ARUSH-R/rent-and-return/model"
)

// ErrOutOfStock is returned when a reserve finds no unit to take: the row is
// gone, out of stock, unavailable or soft-deleted.
var ErrOutOfStock = errors.New("out of stock")

var ErrNotFound = errors.New("product not found")

type Repo interface {
	Create(ctx context.Context, p *model.Product) error
	ByID(ctx context.Context, id int64) (*model.Product, error)
	List(ctx context.Context, onlyAvailable bool) ([]model.Product, error)
	SearchByName(ctx context.Context, keyword string) ([]model.Product, error)
	ByCategory(ctx context.Context, category string) ([]model.Product, error)
	Update(ctx context.Context, p *model.Product) error
	SoftDelete(ctx context.Context, id int64, updatedBy string) error

	// Reserve atomically takes qty units: decrements stock and recomputes
	// available in a single guarded statement. ErrOutOfStock when the guard
	// does not hold.
	Reserve(ctx context.Context, id int64, qty int64) error
	// Restore atomically gives qty units back and recomputes available.
	Restore(ctx context.Context, id int64, qty int64) error
	// Restock sets the absolute stock count (admin re-supply after returns).
	Restock(ctx context.Context, id int64, stock int64, updatedBy string) error
}

type repo struct{ db *sqlx.DB }

func New(db *sqlx.DB) Repo { return &repo{db: db} }

const productCols = `
	id, name, description, category, image_url, price_per_day,
	stock, available, deleted, created_at, updated_at, created_by, updated_by`

func (r *repo) Create(ctx context.Context, p *model.Product) error {
	const q = `
		INSERT INTO products (name, description, category, image_url, price_per_day, stock, available, created_by, updated_by)
		VALUES ($1,$2,$3,$4,$5,$6, $6 > 0, $7, $7)
		RETURNING id, available, created_at, updated_at`
	return r.db.QueryRowContext(ctx, q,
		p.Name, p.Description, p.Category, p.ImageURL, p.PricePerDay, p.Stock, p.CreatedBy,
	).Scan(&p.ID, &p.Available, &p.CreatedAt, &p.UpdatedAt)
}

func (r *repo) ByID(ctx context.Context, id int64) (*model.Product, error) {
	var p model.Product
	err := r.db.GetContext(ctx, &p, `SELECT `+productCols+` FROM products WHERE id = $1 AND NOT deleted`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *repo) List(ctx context.Context, onlyAvailable bool) ([]model.Product, error) {
	q := `SELECT ` + productCols + ` FROM products WHERE NOT deleted`
	if onlyAvailable {
		q += ` AND available`
	}
	q += ` ORDER BY id DESC`
	var out []model.Product
	if err := r.db.SelectContext(ctx, &out, q); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *repo) SearchByName(ctx context.Context, keyword string) ([]model.Product, error) {
	const q = `
		SELECT ` + productCols + `
		FROM products
		WHERE NOT deleted AND name ILIKE '%' || $1 || '%'
		ORDER BY id DESC`
	var out []model.Product
	if err := r.db.SelectContext(ctx, &out, q, keyword); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *repo) ByCategory(ctx context.Context, category string) ([]model.Product, error) {
	const q = `
		SELECT ` + productCols + `
		FROM products
		WHERE NOT deleted AND lower(category) = lower($1)
		ORDER BY id DESC`
	var out []model.Product
	if err := r.db.SelectContext(ctx, &out, q, category); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *repo) Update(ctx context.Context, p *model.Product) error {
	const q = `
		UPDATE products
		SET name = $2,
			description = $3,
			category = $4,
			image_url = $5,
			price_per_day = $6,
			updated_by = $7,
			updated_at = now()
		WHERE id = $1 AND NOT deleted`
	res, err := r.db.ExecContext(ctx, q,
		p.ID, p.Name, p.Description, p.Category, p.ImageURL, p.PricePerDay, p.UpdatedBy)
	if err != nil {
		return err
	}
	if aff, _ := res.RowsAffected(); aff == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repo) SoftDelete(ctx context.Context, id int64, updatedBy string) error {
	// A deleted product is never available, whatever its stock says.
	const q = `
		UPDATE products
		SET deleted = TRUE,
			available = FALSE,
			updated_by = $2,
			updated_at = now()
		WHERE id = $1 AND NOT deleted`
	res, err := r.db.ExecContext(ctx, q, id, updatedBy)
	if err != nil {
		return err
	}
	if aff, _ := res.RowsAffected(); aff == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repo) Reserve(ctx context.Context, id int64, qty int64) error {
	return reserveTx(ctx, r.db, id, qty)
}

func (r *repo) Restore(ctx context.Context, id int64, qty int64) error {
	return restoreTx(ctx, r.db, id, qty)
}

func (r *repo) Restock(ctx context.Context, id int64, stock int64, updatedBy string) error {
	const q = `
		UPDATE products
		SET stock = $2,
			available = $2 > 0 AND NOT deleted,
			updated_by = $3,
			updated_at = now()
		WHERE id = $1 AND NOT deleted`
	res, err := r.db.ExecContext(ctx, q, id, stock, updatedBy)
	if err != nil {
		return err
	}
	if aff, _ := res.RowsAffected(); aff == 0 {
		return ErrNotFound
	}
	return nil
}

// reserveTx and restoreTx run against either the pool or an open transaction,
// so the rental repository can reserve stock inside its booking transaction.

func reserveTx(ctx context.Context, ext sqlx.ExtContext, id int64, qty int64) error {
	const q = `
		UPDATE products
		SET stock = stock - $2,
			available = stock - $2 > 0,
			updated_at = now()
		WHERE id = $1 AND stock >= $2 AND available AND NOT deleted`
	res, err := ext.ExecContext(ctx, q, id, qty)
	if err != nil {
		return err
	}
	if aff, _ := res.RowsAffected(); aff == 0 {
		return ErrOutOfStock
	}
	return nil
}

func restoreTx(ctx context.Context, ext sqlx.ExtContext, id int64, qty int64) error {
	const q = `
		UPDATE products
		SET stock = stock + $2,
			available = stock + $2 > 0 AND NOT deleted,
			updated_at = now()
		WHERE id = $1`
	res, err := ext.ExecContext(ctx, q, id, qty)
	if err != nil {
		return err
	}
	if aff, _ := res.RowsAffected(); aff == 0 {
		return ErrNotFound
	}
	return nil
}

// ReserveIn and RestoreIn expose the guarded stock updates to transactions
// owned by other repositories.
func ReserveIn(ctx context.Context, tx *sqlx.Tx, id int64, qty int64) error {
	return reserveTx(ctx, tx, id, qty)
}

func RestoreIn(ctx context.Context, tx *sqlx.Tx, id int64, qty int64) error {
	return restoreTx(ctx, tx, id, qty)
}
