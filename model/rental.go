// model/rental.go
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type RentalStatus string

const (
	RentalPending   RentalStatus = "PENDING"
	RentalActive    RentalStatus = "ACTIVE"
	RentalReturned  RentalStatus = "RETURNED"
	RentalOverdue   RentalStatus = "OVERDUE"
	RentalCancelled RentalStatus = "CANCELLED"
)

// MinRentalDays and MaxRentalDays bound the booking window.
const (
	MinRentalDays = 1
	MaxRentalDays = 30
)

// transitions is the single source of truth for legal status changes.
var transitions = map[RentalStatus][]RentalStatus{
	RentalPending:   {RentalActive, RentalOverdue, RentalCancelled},
	RentalActive:    {RentalReturned, RentalOverdue, RentalCancelled},
	RentalOverdue:   {RentalReturned, RentalCancelled},
	RentalReturned:  {},
	RentalCancelled: {},
}

func (s RentalStatus) CanTransitionTo(to RentalStatus) bool {
	for _, t := range transitions[s] {
		if t == to {
			return true
		}
	}
	return false
}

func (s RentalStatus) Terminal() bool {
	return len(transitions[s]) == 0
}

func (s RentalStatus) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// OpenStatuses are the statuses that count toward the one-rental-per-user
// limit. OVERDUE does not: the user is already blocked from returning late
// but an overdue rental does not hold a booking slot.
func OpenStatuses() []RentalStatus {
	return []RentalStatus{RentalPending, RentalActive}
}

type Rental struct {
	ID          int64           `db:"id" json:"id"`
	UserID      int64           `db:"user_id" json:"user_id"`
	ProductID   int64           `db:"product_id" json:"product_id"`
	RentalStart time.Time       `db:"rental_start" json:"rental_start"`
	RentalEnd   time.Time       `db:"rental_end" json:"rental_end"`
	TotalAmount decimal.Decimal `db:"total_amount" json:"total_amount"`
	Status      RentalStatus    `db:"status" json:"status"`
	Deleted     bool            `db:"deleted" json:"-"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updated_at"`
	UpdatedBy   *string         `db:"updated_by" json:"updated_by,omitempty"`
}

// RentalDays returns the whole number of days between start and end,
// truncated toward zero.
func RentalDays(start, end time.Time) int64 {
	return int64(end.Sub(start) / (24 * time.Hour))
}

func (r *Rental) PeriodValid() bool {
	d := RentalDays(r.RentalStart, r.RentalEnd)
	return r.RentalEnd.After(r.RentalStart) && d >= MinRentalDays && d <= MaxRentalDays
}

func (r *Rental) Open() bool {
	if r.Deleted {
		return false
	}
	for _, s := range OpenStatuses() {
		if r.Status == s {
			return true
		}
	}
	return false
}

func (r *Rental) OverdueAt(now time.Time) bool {
	return !r.Deleted && !r.Status.Terminal() && r.RentalEnd.Before(now)
}
