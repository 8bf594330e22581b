package striperepo

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

type CreateIntentReq struct {
	Amount      decimal.Decimal
	Currency    string
	Description string
	RentalID    int64
}

type CreateIntentResp struct {
	IntentID     string
	Status       string
	ClientSecret string
}

type Repo interface {
	CreateIntent(req CreateIntentReq) (*CreateIntentResp, error)
	// VerifyWebhookSignature checks the signature header against the raw body
	// before any event is acted on.
	VerifyWebhookSignature(sigHeader string, rawBody []byte) error
}
