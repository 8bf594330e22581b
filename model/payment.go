// model/payment.go
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Payment is bound 1:1 to its rental; the rental reference never changes
// after creation. A payment starts unsuccessful and is flipped only by the
// reconciliation service consuming processor events.
type Payment struct {
	ID              int64           `db:"id" json:"id"`
	RentalID        int64           `db:"rental_id" json:"rental_id"`
	Method          string          `db:"method" json:"method"`
	Amount          decimal.Decimal `db:"amount" json:"amount"`
	Successful      bool            `db:"successful" json:"successful"`
	IntentID        *string         `db:"intent_id" json:"intent_id,omitempty"`
	ProcessorStatus *string         `db:"processor_status" json:"processor_status,omitempty"`
	ReceiptURL      *string         `db:"receipt_url" json:"receipt_url,omitempty"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updated_at"`
}

func (p *Payment) Pending() bool { return !p.Successful }
