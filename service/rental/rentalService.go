package rental

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ARUSH-R/rent-and-return/model"
	cartrepo "github.com/ARUSH-R/rent-and-return/repository/cart"
	productrepo "github.com/ARUSH-R/rent-and-return/repository/product"
	rrepo "github.com/ARUSH-R/rent-and-return/repository/rental"
	"github.com/ARUSH-R/rent-and-return/util/mail"
)

// errors used by controllers

type ErrCode string

const (
	ErrBadPeriod          ErrCode = "BAD_PERIOD"
	ErrActiveRental       ErrCode = "ACTIVE_RENTAL_LIMIT"
	ErrNoStock            ErrCode = "NO_STOCK"
	ErrProductUnavailable ErrCode = "PRODUCT_UNAVAILABLE"
	ErrProductNotFound    ErrCode = "PRODUCT_NOT_FOUND"
	ErrNotFound           ErrCode = "NOT_FOUND"
	ErrNotOwner           ErrCode = "NOT_OWNER"
	ErrInvalidState       ErrCode = "INVALID_STATE"
	ErrConflict           ErrCode = "CONFLICT"
)

type codedError struct{ code ErrCode }

func (e codedError) Error() string { return string(e.code) }
func (e codedError) Code() ErrCode { return e.code }
func makeErr(c ErrCode) error      { return codedError{code: c} }

// Code extracts error code
func Code(err error) ErrCode {
	var ce interface{ Code() ErrCode }
	if errors.As(err, &ce) {
		return ce.Code()
	}
	return ""
}

// HistoryRow = repository shape
type HistoryRow = rrepo.HistoryRow

// Repo is what the booking engine needs from storage. Every method is atomic
// from the caller's point of view; the multi-row ones own their transaction.
type Repo interface {
	CountOpenByUser(ctx context.Context, userID int64) (int64, error)
	CreateReserving(ctx context.Context, r *model.Rental) error
	ByID(ctx context.Context, id int64) (*model.Rental, error)
	Transition(ctx context.Context, id int64, from []model.RentalStatus, to model.RentalStatus, updatedBy string) error
	CancelRestoring(ctx context.Context, id int64, productID int64, updatedBy string) error
	ExtendEnd(ctx context.Context, id int64, extraDays int) (*model.Rental, error)
	MarkOverdueBefore(ctx context.Context, now time.Time) (int64, error)
	ListByUser(ctx context.Context, userID int64) ([]HistoryRow, error)
	ListByStatus(ctx context.Context, status model.RentalStatus) ([]model.Rental, error)
}

type ProductReader interface {
	ByID(ctx context.Context, id int64) (*model.Product, error)
}

type Service interface {
	// Create books a product for [start, end), reserving one unit of stock
	// and creating the rental in PENDING as a single committed unit.
	Create(ctx context.Context, user *model.User, productID int64, start, end time.Time) (*model.Rental, error)

	// Extend pushes the rental's end date forward.
	Extend(ctx context.Context, userID, rentalID int64, extraDays int) (*model.Rental, error)

	// Cancel moves a non-terminal rental to CANCELLED, soft-deletes it and
	// restores the reserved stock. Idempotent when already cancelled.
	Cancel(ctx context.Context, userID, rentalID int64) error

	// Return marks an ACTIVE or OVERDUE rental RETURNED. Stock is not
	// restored here; relisting goes through an explicit product restock.
	Return(ctx context.Context, userID, rentalID int64) error

	ByID(ctx context.Context, rentalID int64) (*model.Rental, error)
	MyHistory(ctx context.Context, userID int64) ([]HistoryRow, error)
	ListByStatus(ctx context.Context, status model.RentalStatus) ([]model.Rental, error)
}

// transitionRetries bounds internal retries when a conditional update loses a
// race; past that the conflict surfaces to the caller.
const transitionRetries = 3

type service struct {
	r      Repo
	pr     ProductReader
	cart   cartrepo.Repo
	mailer mail.Sender
	log    *slog.Logger
}

func New(r Repo, pr ProductReader, cart cartrepo.Repo, mailer mail.Sender, log *slog.Logger) Service {
	return &service{r: r, pr: pr, cart: cart, mailer: mailer, log: log}
}

func (s *service) Create(ctx context.Context, user *model.User, productID int64, start, end time.Time) (*model.Rental, error) {
	// One open rental per user.
	open, err := s.r.CountOpenByUser(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	if open > 0 {
		return nil, makeErr(ErrActiveRental)
	}

	p, err := s.pr.ByID(ctx, productID)
	if err != nil {
		if errors.Is(err, productrepo.ErrNotFound) {
			return nil, makeErr(ErrProductNotFound)
		}
		return nil, err
	}
	if !p.Rentable() {
		return nil, makeErr(ErrProductUnavailable)
	}

	days := model.RentalDays(start, end)
	if !end.After(start) || days < model.MinRentalDays || days > model.MaxRentalDays {
		return nil, makeErr(ErrBadPeriod)
	}

	rn := &model.Rental{
		UserID:      user.ID,
		ProductID:   productID,
		RentalStart: start,
		RentalEnd:   end,
		TotalAmount: p.PricePerDay.Mul(decimal.NewFromInt(days)),
		UpdatedBy:   &user.Username,
	}

	if err := s.r.CreateReserving(ctx, rn); err != nil {
		switch {
		case errors.Is(err, rrepo.ErrOutOfStock):
			return nil, makeErr(ErrNoStock)
		case errors.Is(err, rrepo.ErrActiveLimit):
			return nil, makeErr(ErrActiveRental)
		}
		return nil, err
	}

	// The booking is durable; everything below is best-effort.
	if _, err := s.cart.Clear(ctx, user.ID); err != nil {
		s.log.Warn("cart clear failed", "user_id", user.ID, "err", err)
	}
	s.notify(user.Email, "Rental Confirmation - Rent & Return", fmt.Sprintf(
		"Dear %s,\n\nYour rental for product ID %d has been confirmed.\nRental Period: %s to %s\nTotal Amount: %s\n\nThank you for using Rent & Return!",
		user.Username, productID,
		start.Format(time.RFC3339), end.Format(time.RFC3339),
		rn.TotalAmount.StringFixed(2),
	))

	return rn, nil
}

func (s *service) Extend(ctx context.Context, userID, rentalID int64, extraDays int) (*model.Rental, error) {
	if extraDays <= 0 {
		return nil, makeErr(ErrBadPeriod)
	}
	rn, err := s.byOwned(ctx, userID, rentalID)
	if err != nil {
		return nil, err
	}
	if rn.Status.Terminal() {
		return nil, makeErr(ErrInvalidState)
	}
	if rn.RentalEnd.IsZero() {
		return nil, makeErr(ErrInvalidState)
	}
	// TODO: decide whether extensions should count against the 30-day
	// booking cap; today an extension can push a rental past it.
	return s.r.ExtendEnd(ctx, rentalID, extraDays)
}

func (s *service) Cancel(ctx context.Context, userID, rentalID int64) error {
	rn, err := s.r.ByID(ctx, rentalID)
	if err != nil {
		if errors.Is(err, rrepo.ErrNotFound) {
			// A cancelled rental is soft-deleted, so a repeat cancel sees no
			// row. That is the idempotent case, not an error.
			return nil
		}
		return err
	}
	if rn.UserID != userID {
		return makeErr(ErrNotOwner)
	}
	if rn.Status == model.RentalCancelled {
		return nil
	}
	if !rn.Status.CanTransitionTo(model.RentalCancelled) {
		return makeErr(ErrInvalidState)
	}

	err = s.r.CancelRestoring(ctx, rentalID, rn.ProductID, fmt.Sprintf("user:%d", userID))
	if errors.Is(err, rrepo.ErrStatusConflict) {
		// Raced with another transition; re-read to see if it was this one.
		if cur, rerr := s.r.ByID(ctx, rentalID); rerr == nil && cur.Status != model.RentalCancelled {
			return makeErr(ErrInvalidState)
		}
		return nil
	}
	return err
}

func (s *service) Return(ctx context.Context, userID, rentalID int64) error {
	rn, err := s.byOwned(ctx, userID, rentalID)
	if err != nil {
		return err
	}
	if !rn.Status.CanTransitionTo(model.RentalReturned) {
		return makeErr(ErrInvalidState)
	}

	from := []model.RentalStatus{model.RentalActive, model.RentalOverdue}
	for attempt := 0; ; attempt++ {
		err = s.r.Transition(ctx, rentalID, from, model.RentalReturned, fmt.Sprintf("user:%d", userID))
		switch {
		case err == nil:
			return nil
		case errors.Is(err, rrepo.ErrNotFound):
			return makeErr(ErrNotFound)
		case errors.Is(err, rrepo.ErrStatusConflict):
			cur, rerr := s.r.ByID(ctx, rentalID)
			if rerr != nil {
				return rerr
			}
			if cur.Status == model.RentalReturned {
				return nil
			}
			if !cur.Status.CanTransitionTo(model.RentalReturned) {
				return makeErr(ErrInvalidState)
			}
			// PENDING: the sweeper or an activation may flip it under us, so
			// retry against the fresh status a bounded number of times.
			if attempt >= transitionRetries {
				return makeErr(ErrConflict)
			}
			from = []model.RentalStatus{cur.Status, model.RentalActive, model.RentalOverdue}
		default:
			return err
		}
	}
}

func (s *service) ByID(ctx context.Context, rentalID int64) (*model.Rental, error) {
	rn, err := s.r.ByID(ctx, rentalID)
	if errors.Is(err, rrepo.ErrNotFound) {
		return nil, makeErr(ErrNotFound)
	}
	return rn, err
}

func (s *service) MyHistory(ctx context.Context, userID int64) ([]HistoryRow, error) {
	return s.r.ListByUser(ctx, userID)
}

func (s *service) ListByStatus(ctx context.Context, status model.RentalStatus) ([]model.Rental, error) {
	return s.r.ListByStatus(ctx, status)
}

func (s *service) byOwned(ctx context.Context, userID, rentalID int64) (*model.Rental, error) {
	rn, err := s.r.ByID(ctx, rentalID)
	if err != nil {
		if errors.Is(err, rrepo.ErrNotFound) {
			return nil, makeErr(ErrNotFound)
		}
		return nil, err
	}
	if rn.UserID != userID {
		return nil, makeErr(ErrNotOwner)
	}
	return rn, nil
}

func (s *service) notify(email, subject, body string) {
	go func() {
		if err := s.mailer.Send(email, subject, body); err != nil {
			s.log.Warn("notification send failed", "to", email, "err", err)
		}
	}()
}
