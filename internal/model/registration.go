package model

import (
	"fmt"
	"time"
)

// Registration represents a rally participant sign-up.
type Registration struct {
	ID            int64      `json:"id"`
	Number        int64      `json:"number"`
	Name          string     `json:"name"`
	Email         string     `json:"email"`
	CPF           string     `json:"cpf"`
	Phone         string     `json:"phone,omitempty"`
	City          string     `json:"city,omitempty"`
	State         string     `json:"state,omitempty"`
	Motorcycle    string     `json:"motorcycle,omitempty"`
	ShirtSize     string     `json:"shirt_size"`
	ShirtSleeve   string     `json:"shirt_sleeve"`
	PaymentStatus string     `json:"payment_status"`
	AmountCents   int64      `json:"amount_cents"`
	PixTxid       string     `json:"pix_txid,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	ExpiresAt     time.Time  `json:"expires_at"`
	ConfirmedAt   *time.Time `json:"confirmed_at,omitempty"`

	// Extra shirt line items (not always populated).
	Extras []ExtraShirt `json:"extras,omitempty"`
}

// ExtraShirt is an additional shirt line item owned by a registration.
// Deleting the registration deletes its line items.
type ExtraShirt struct {
	ID             int64  `json:"id"`
	RegistrationID int64  `json:"registration_id"`
	Size           string `json:"size"`
	Sleeve         string `json:"sleeve"`
	PriceCents     int64  `json:"price_cents"`
}

// Payment statuses. Cancelled is a transient marker: the sweeper deletes
// cancelled registrations rather than keeping them around.
const (
	PaymentPending   = "pending"
	PaymentConfirmed = "confirmed"
	PaymentCancelled = "cancelled"
)

// Shirt sizes and sleeve types.
var (
	ShirtSizes  = []string{"XS", "S", "M", "L", "XL"}
	SleeveTypes = []string{SleeveShort, SleeveLong}
)

// Sleeve types.
const (
	SleeveShort = "short"
	SleeveLong  = "long"
)

// ValidShirt reports whether the (size, sleeve) pair is a known shirt variant.
func ValidShirt(size, sleeve string) bool {
	sizeOK := false
	for _, s := range ShirtSizes {
		if s == size {
			sizeOK = true
			break
		}
	}
	if !sizeOK {
		return false
	}
	return sleeve == SleeveShort || sleeve == SleeveLong
}

// ValidateCPF checks a Brazilian CPF number (11 digits, standard check digits).
// Accepts digits only; callers strip punctuation first.
func ValidateCPF(cpf string) error {
	if len(cpf) != 11 {
		return fmt.Errorf("cpf must have 11 digits")
	}

	allEqual := true
	for i := 0; i < 11; i++ {
		if cpf[i] < '0' || cpf[i] > '9' {
			return fmt.Errorf("cpf must contain only digits")
		}
		if cpf[i] != cpf[0] {
			allEqual = false
		}
	}
	if allEqual {
		return fmt.Errorf("invalid cpf")
	}

	digit := func(n int) int { return int(cpf[n] - '0') }

	sum := 0
	for i := 0; i < 9; i++ {
		sum += digit(i) * (10 - i)
	}
	check := (sum * 10) % 11 % 10
	if check != digit(9) {
		return fmt.Errorf("invalid cpf")
	}

	sum = 0
	for i := 0; i < 10; i++ {
		sum += digit(i) * (11 - i)
	}
	check = (sum * 10) % 11 % 10
	if check != digit(10) {
		return fmt.Errorf("invalid cpf")
	}

	return nil
}
