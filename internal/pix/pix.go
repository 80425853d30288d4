// Package pix talks to the PIX payment gateway: creating charges for
// registrations, polling their status, and authenticating inbound webhook
// notifications.
package pix

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrAuthenticity is returned when an inbound notification fails signature or
// timestamp validation. Such notifications are logged and discarded.
var ErrAuthenticity = errors.New("webhook signature invalid or stale")

// SignatureMaxAge is how old a webhook timestamp may be before it is rejected.
const SignatureMaxAge = 5 * time.Minute

// Charge statuses reported by the gateway.
const (
	StatusApproved = "approved"
	StatusPending  = "pending"
	StatusRejected = "rejected"
	StatusExpired  = "expired"
)

// Charge is the gateway's view of a payment.
type Charge struct {
	Txid       string `json:"txid"`
	Status     string `json:"status"`
	CopyPaste  string `json:"copy_paste"`
	QRCodeData string `json:"qrcode"`
}

// Notification is the webhook payload.
type Notification struct {
	Txid   string `json:"txid"`
	Status string `json:"status"`
}

// Client calls the PIX gateway.
type Client struct {
	BaseURL       string
	Token         string
	WebhookSecret string
	HTTPClient    *http.Client

	// now is swappable for tests.
	now func() time.Time
}

// NewClient creates a gateway client.
func NewClient(baseURL, token, webhookSecret string) *Client {
	return &Client{
		BaseURL:       strings.TrimRight(baseURL, "/"),
		Token:         token,
		WebhookSecret: webhookSecret,
		HTTPClient:    &http.Client{Timeout: 15 * time.Second},
		now:           time.Now,
	}
}

// NewTxid mints a correlation token for a charge. The gateway echoes it back
// in notifications, mapping them to a registration.
func NewTxid() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// CreateCharge registers a charge with the gateway and returns the payable
// charge with its copy-paste code and QR payload.
func (c *Client) CreateCharge(ctx context.Context, txid string, amountCents int64, payerName string) (*Charge, error) {
	body, err := json.Marshal(map[string]any{
		"txid":         txid,
		"amount_cents": amountCents,
		"payer_name":   payerName,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding charge request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/v1/charges", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building charge request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.Token)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("creating charge: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("gateway returned %d creating charge: %s", resp.StatusCode, msg)
	}

	var charge Charge
	if err := json.NewDecoder(resp.Body).Decode(&charge); err != nil {
		return nil, fmt.Errorf("decoding charge response: %w", err)
	}
	return &charge, nil
}

// GetCharge queries the gateway for a charge's current status. Used as the
// pull-based fallback when a webhook was missed.
func (c *Client) GetCharge(ctx context.Context, txid string) (*Charge, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/v1/charges/"+txid, nil)
	if err != nil {
		return nil, fmt.Errorf("building charge query: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.Token)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("querying charge: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("gateway returned %d querying charge: %s", resp.StatusCode, msg)
	}

	var charge Charge
	if err := json.NewDecoder(resp.Body).Decode(&charge); err != nil {
		return nil, fmt.Errorf("decoding charge response: %w", err)
	}
	return &charge, nil
}

// VerifySignature authenticates a webhook delivery. The signature header has
// the form "t=<unix>,v1=<hex>", where v1 is HMAC-SHA256 over "<unix>.<body>"
// keyed with the webhook secret. Stale timestamps are rejected so captured
// deliveries cannot be replayed later.
func (c *Client) VerifySignature(header string, body []byte) error {
	var ts, sig string
	for _, part := range strings.Split(header, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch key {
		case "t":
			ts = value
		case "v1":
			sig = value
		}
	}
	if ts == "" || sig == "" {
		return ErrAuthenticity
	}

	unix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return ErrAuthenticity
	}
	age := c.now().Sub(time.Unix(unix, 0))
	if age > SignatureMaxAge || age < -SignatureMaxAge {
		return ErrAuthenticity
	}

	mac := hmac.New(sha256.New, []byte(c.WebhookSecret))
	mac.Write([]byte(ts))
	mac.Write([]byte("."))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(sig)) {
		return ErrAuthenticity
	}
	return nil
}

// Sign produces the signature header for a body at the given time. The test
// suite and the gateway simulator use it; the server only verifies.
func Sign(secret string, at time.Time, body []byte) string {
	ts := strconv.FormatInt(at.Unix(), 10)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts))
	mac.Write([]byte("."))
	mac.Write(body)
	return fmt.Sprintf("t=%s,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}
