// model/product.go
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is a rentable item. Stock and the derived available flag are only
// ever mutated through the product repository's guarded updates, so
// available == (stock > 0 && !deleted) holds after every write.
type Product struct {
	ID          int64           `db:"id" json:"id"`
	Name        string          `db:"name" json:"name"`
	Description *string         `db:"description" json:"description,omitempty"`
	Category    string          `db:"category" json:"category"`
	ImageURL    *string         `db:"image_url" json:"image_url,omitempty"`
	PricePerDay decimal.Decimal `db:"price_per_day" json:"price_per_day"`
	Stock       int64           `db:"stock" json:"stock"`
	Available   bool            `db:"available" json:"available"`
	Deleted     bool            `db:"deleted" json:"-"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updated_at"`
	CreatedBy   *string         `db:"created_by" json:"created_by,omitempty"`
	UpdatedBy   *string         `db:"updated_by" json:"updated_by,omitempty"`
}

func (p *Product) Rentable() bool {
	return p.Available && p.Stock > 0 && !p.Deleted
}
