package paymentsvc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	jsoniter "github.com/json-iterator/go"

	"github.com/ARUSH-R/rent-and-return/model"
	prepo "github.com/ARUSH-R/rent-and-return/repository/payment"
	striperepo "github.com/ARUSH-R/rent-and-return/repository/stripe"
	rentalsvc "github.com/ARUSH-R/rent-and-return/service/rental"
)

type ErrCode string

const (
	ErrUnknownTransaction ErrCode = "UNKNOWN_TRANSACTION"
	ErrBadSignature       ErrCode = "BAD_SIGNATURE"
	ErrBadPayload         ErrCode = "BAD_PAYLOAD"
	ErrNotFound           ErrCode = "NOT_FOUND"
	ErrInvalidState       ErrCode = "INVALID_STATE"
)

type codedError struct{ code ErrCode }

func (e codedError) Error() string { return string(e.code) }
func (e codedError) Code() ErrCode { return e.code }
func makeErr(c ErrCode) error      { return codedError{code: c} }

func Code(err error) ErrCode {
	var ce interface{ Code() ErrCode }
	if errors.As(err, &ce) {
		return ce.Code()
	}
	return ""
}

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type Repo interface {
	CreatePending(ctx context.Context, p *model.Payment) error
	ByID(ctx context.Context, id int64) (*model.Payment, error)
	ByIntentID(ctx context.Context, intentID string) (*model.Payment, error)
	ByRentalID(ctx context.Context, rentalID int64) (*model.Payment, error)
	MarkSucceededActivating(ctx context.Context, paymentID, rentalID int64, processorStatus, receiptURL string) error
	MarkFailed(ctx context.Context, paymentID int64, processorStatus string) error
	ContactForRental(ctx context.Context, rentalID int64) (*prepo.RentalContact, error)
}

// Mailer is satisfied by util/mail.Sender.
type Mailer interface {
	Send(to, subject, body string) error
}

type Intent struct {
	PaymentID    int64  `json:"payment_id"`
	IntentID     string `json:"intent_id"`
	ClientSecret string `json:"client_secret"`
}

type Service interface {
	// CreateIntent opens a processor intent for the rental's total and binds
	// a pending payment to the rental. One payment per rental.
	CreateIntent(ctx context.Context, userID, rentalID int64) (*Intent, error)

	// HandleWebhook applies one processor event. Replays are no-ops: a
	// payment already in the event's target state is left untouched and
	// nobody is re-notified.
	HandleWebhook(ctx context.Context, sigHeader string, raw []byte) error

	ByID(ctx context.Context, id int64) (*model.Payment, error)
}

type service struct {
	r       Repo
	rentals rentalsvc.Service
	x       striperepo.Repo
	mailer  Mailer
	log     *slog.Logger
}

func New(r Repo, rentals rentalsvc.Service, x striperepo.Repo, mailer Mailer, log *slog.Logger) Service {
	return &service{r: r, rentals: rentals, x: x, mailer: mailer, log: log}
}

func (s *service) CreateIntent(ctx context.Context, userID, rentalID int64) (*Intent, error) {
	rn, err := s.rentals.ByID(ctx, rentalID)
	if err != nil {
		if rentalsvc.Code(err) == rentalsvc.ErrNotFound {
			return nil, makeErr(ErrNotFound)
		}
		return nil, err
	}
	if rn.UserID != userID {
		return nil, makeErr(ErrNotFound)
	}
	if rn.Status != model.RentalPending {
		return nil, makeErr(ErrInvalidState)
	}
	if p, err := s.r.ByRentalID(ctx, rentalID); err == nil && p != nil {
		return nil, makeErr(ErrInvalidState)
	} else if err != nil && !errors.Is(err, prepo.ErrNotFound) {
		return nil, err
	}

	intent, err := s.x.CreateIntent(striperepo.CreateIntentReq{
		Amount:      rn.TotalAmount,
		Currency:    "inr",
		Description: fmt.Sprintf("Rental #%d", rentalID),
		RentalID:    rentalID,
	})
	if err != nil {
		return nil, err
	}

	p := &model.Payment{
		RentalID:        rentalID,
		Method:          "STRIPE",
		Amount:          rn.TotalAmount,
		IntentID:        &intent.IntentID,
		ProcessorStatus: &intent.Status,
	}
	if err := s.r.CreatePending(ctx, p); err != nil {
		return nil, err
	}

	return &Intent{PaymentID: p.ID, IntentID: intent.IntentID, ClientSecret: intent.ClientSecret}, nil
}

type intentEvent struct {
	Type string `json:"type"`
	Data struct {
		ID         string `json:"id"`
		Status     string `json:"status"`
		ReceiptURL string `json:"receipt_url"`
	} `json:"data"`
}

func (s *service) HandleWebhook(ctx context.Context, sigHeader string, raw []byte) error {
	if err := s.x.VerifyWebhookSignature(sigHeader, raw); err != nil {
		return makeErr(ErrBadSignature)
	}

	var ev intentEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		return makeErr(ErrBadPayload)
	}
	if ev.Data.ID == "" {
		return makeErr(ErrBadPayload)
	}

	switch ev.Type {
	case "payment_intent.succeeded":
		return s.onSucceeded(ctx, ev)
	case "payment_intent.payment_failed":
		return s.onFailed(ctx, ev)
	default:
		// Unrecognized event kinds are acknowledged so the processor stops
		// redelivering them.
		s.log.Info("ignoring webhook event", "type", ev.Type)
		return nil
	}
}

func (s *service) onSucceeded(ctx context.Context, ev intentEvent) error {
	p, err := s.r.ByIntentID(ctx, ev.Data.ID)
	if err != nil {
		if errors.Is(err, prepo.ErrNotFound) {
			s.log.Error("webhook for unknown intent", "intent_id", ev.Data.ID)
			return makeErr(ErrUnknownTransaction)
		}
		return err
	}
	if p.Successful {
		// Replay; already settled.
		return nil
	}

	if err := s.r.MarkSucceededActivating(ctx, p.ID, p.RentalID, ev.Data.Status, ev.Data.ReceiptURL); err != nil {
		return err
	}

	contact, err := s.r.ContactForRental(ctx, p.RentalID)
	if err != nil {
		s.log.Warn("no contact for receipt mail", "rental_id", p.RentalID, "err", err)
		return nil
	}
	receipt := ev.Data.ReceiptURL
	if receipt == "" {
		receipt = "N/A"
	}
	s.notify(contact.Email, "Payment Successful - Rent & Return", fmt.Sprintf(
		"Dear %s,\n\nYour payment for rental ID %d was successful.\nAmount: %s\nReceipt: %s\n\nThank you for using Rent & Return!",
		contact.Username, p.RentalID, p.Amount.StringFixed(2), receipt,
	))
	return nil
}

func (s *service) onFailed(ctx context.Context, ev intentEvent) error {
	p, err := s.r.ByIntentID(ctx, ev.Data.ID)
	if err != nil {
		if errors.Is(err, prepo.ErrNotFound) {
			s.log.Error("webhook for unknown intent", "intent_id", ev.Data.ID)
			return makeErr(ErrUnknownTransaction)
		}
		return err
	}
	if p.Successful {
		// A success already landed; a late or out-of-order failure event
		// must not unsettle it.
		s.log.Warn("failure event after success, ignoring", "intent_id", ev.Data.ID)
		return nil
	}
	return s.r.MarkFailed(ctx, p.ID, ev.Data.Status)
}

func (s *service) ByID(ctx context.Context, id int64) (*model.Payment, error) {
	p, err := s.r.ByID(ctx, id)
	if errors.Is(err, prepo.ErrNotFound) {
		return nil, makeErr(ErrNotFound)
	}
	return p, err
}

func (s *service) notify(email, subject, body string) {
	go func() {
		if err := s.mailer.Send(email, subject, body); err != nil {
			s.log.Warn("notification send failed", "to", email, "err", err)
		}
	}()
}
