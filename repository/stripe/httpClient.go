package striperepo

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/ARUSH-R/rent-and-return/util/httpx"
)

type httpRepo struct {
	apiKey        string
	webhookSecret string
	client        *http.Client
}

func NewHTTP(apiKey, webhookSecret string) Repo {
	return &httpRepo{apiKey: apiKey, webhookSecret: webhookSecret, client: httpx.Client()}
}

func (r *httpRepo) CreateIntent(req CreateIntentReq) (*CreateIntentResp, error) {
	// Stripe wants the amount in the currency's smallest unit.
	cents := req.Amount.Mul(hundred).IntPart()

	form := url.Values{}
	form.Set("amount", strconv.FormatInt(cents, 10))
	form.Set("currency", req.Currency)
	form.Set("description", req.Description)
	form.Set("metadata[rental_id]", strconv.FormatInt(req.RentalID, 10))

	httpReq, err := http.NewRequest("POST", "https://api.stripe.com/v1/payment_intents", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+r.apiKey)
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := r.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("stripe create intent failed: %s", resp.Status)
	}

	var out struct {
		ID           string `json:"id"`
		Status       string `json:"status"`
		ClientSecret string `json:"client_secret"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	if out.ID == "" {
		return nil, errors.New("stripe: empty intent id")
	}

	return &CreateIntentResp{IntentID: out.ID, Status: out.Status, ClientSecret: out.ClientSecret}, nil
}

// VerifyWebhookSignature checks the Stripe-Signature scheme: the header
// carries "t=<unix>,v1=<hex hmac>" pairs and the mac is HMAC-SHA256 of
// "<t>.<body>" with the endpoint secret.
func (r *httpRepo) VerifyWebhookSignature(sigHeader string, rawBody []byte) error {
	if r.webhookSecret == "" {
		return errors.New("webhook secret not configured")
	}
	ts, sigs := parseSigHeader(sigHeader)
	if ts == "" || len(sigs) == 0 {
		return errors.New("malformed signature header")
	}

	mac := hmac.New(sha256.New, []byte(r.webhookSecret))
	mac.Write([]byte(ts))
	mac.Write([]byte("."))
	mac.Write(rawBody)
	expected := mac.Sum(nil)

	for _, s := range sigs {
		got, err := hex.DecodeString(s)
		if err != nil {
			continue
		}
		if hmac.Equal(expected, got) {
			return nil
		}
	}
	return errors.New("signature mismatch")
}

func parseSigHeader(h string) (ts string, sigs []string) {
	for _, part := range strings.Split(h, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			ts = v
		case "v1":
			sigs = append(sigs, v)
		}
	}
	return ts, sigs
}
