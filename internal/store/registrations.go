package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rotadovale/motofest/internal/model"
)

// Registration numbers start above this so early numbers stay reserved for the
// organizers' bikes.
const firstRegistrationNumber = 100

// ShirtRequest is a requested shirt variant.
type ShirtRequest struct {
	Size   string `json:"size"`
	Sleeve string `json:"sleeve"`
}

// NewRegistration is the input for creating a registration.
type NewRegistration struct {
	Name       string
	Email      string
	CPF        string
	Phone      string
	City       string
	State      string
	Motorcycle string
	Shirt      ShirtRequest
	Extras     []ShirtRequest
}

// Pricing holds the fee schedule used to compute the amount due. The base fee
// includes one shirt; each extra shirt is charged separately.
type Pricing struct {
	BaseFeeCents    int64
	ExtraShirtCents int64
}

// CreateRegistration creates a registration with its extra shirt line items and
// reserves stock for all of them, as one atomic unit of work. Identity checks,
// availability checks, the inserts, and the reserved-unit recompute all run in
// a single transaction: if any step fails, nothing survives.
func CreateRegistration(ctx context.Context, db *sql.DB, in NewRegistration, pricing Pricing, pendingTTL time.Duration) (*model.Registration, error) {
	if !model.ValidShirt(in.Shirt.Size, in.Shirt.Sleeve) {
		return nil, fmt.Errorf("unknown shirt variant %s/%s", in.Shirt.Size, in.Shirt.Sleeve)
	}
	for _, e := range in.Extras {
		if !model.ValidShirt(e.Size, e.Sleeve) {
			return nil, fmt.Errorf("unknown shirt variant %s/%s", e.Size, e.Sleeve)
		}
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	// Identity must be unique among non-cancelled registrations. The partial
	// unique indexes back this up; checking first gives a typed error instead
	// of a constraint failure.
	var clashes int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM registrations
		 WHERE (email = ? OR cpf = ?) AND payment_status != 'cancelled'`,
		in.Email, in.CPF,
	).Scan(&clashes)
	if err != nil {
		return nil, fmt.Errorf("checking identity: %w", err)
	}
	if clashes > 0 {
		return nil, ErrDuplicateIdentity
	}

	// Check availability for every requested variant, counting how many units
	// this registration needs of each. Any shortfall aborts the whole thing.
	needed := map[ShirtRequest]int{in.Shirt: 1}
	for _, e := range in.Extras {
		needed[e]++
	}
	for variant, units := range needed {
		available, err := Available(ctx, tx, variant.Size, variant.Sleeve)
		if err != nil {
			return nil, err
		}
		if available < units {
			return nil, &StockUnavailableError{Size: variant.Size, Sleeve: variant.Sleeve}
		}
	}

	var number int64
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(number), ?) + 1 FROM registrations`,
		firstRegistrationNumber,
	).Scan(&number)
	if err != nil {
		return nil, fmt.Errorf("assigning registration number: %w", err)
	}

	amount := pricing.BaseFeeCents + int64(len(in.Extras))*pricing.ExtraShirtCents
	expiresAt := time.Now().UTC().Add(pendingTTL)

	result, err := tx.ExecContext(ctx,
		`INSERT INTO registrations
		     (number, name, email, cpf, phone, city, state, motorcycle,
		      shirt_size, shirt_sleeve, amount_cents, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		number, in.Name, in.Email, in.CPF, in.Phone, in.City, in.State, in.Motorcycle,
		in.Shirt.Size, in.Shirt.Sleeve, amount, expiresAt,
	)
	if err != nil {
		return nil, fmt.Errorf("creating registration: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting registration id: %w", err)
	}

	for _, e := range in.Extras {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO extra_shirts (registration_id, size, sleeve, price_cents)
			 VALUES (?, ?, ?, ?)`,
			id, e.Size, e.Sleeve, pricing.ExtraShirtCents,
		)
		if err != nil {
			return nil, fmt.Errorf("creating extra shirt: %w", err)
		}
	}

	// Recompute after the rows exist so the counters reflect live rows, not
	// incremental bookkeeping.
	for variant := range needed {
		if err := RecomputeReserved(ctx, tx, variant.Size, variant.Sleeve); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing registration: %w", err)
	}

	return GetRegistration(ctx, db, id)
}

// DeleteRegistration removes a registration and its extra shirt line items,
// releasing all units they held. Returns ErrNotFound if the registration is
// already gone; racing callers treat that as success.
func DeleteRegistration(ctx context.Context, db *sql.DB, id int64) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	touched, err := shirtVariants(ctx, tx, id)
	if err != nil {
		return err
	}

	// Row must be gone before the recompute, which reads live rows.
	// Extra shirts cascade with the registration.
	result, err := tx.ExecContext(ctx, `DELETE FROM registrations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting registration: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}

	for variant := range touched {
		if err := RecomputeReserved(ctx, tx, variant.Size, variant.Sleeve); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing deletion: %w", err)
	}
	return nil
}

// SweepRegistration removes a registration only if it is still sweepable at
// now: cancelled, or pending and past its deadline. The guard lives inside
// the DELETE so a payment confirmed after the sweeper scanned the row can
// never be lost. Returns ErrNotFound when nothing matched, which callers
// treat as already handled.
func SweepRegistration(ctx context.Context, db *sql.DB, id int64, now time.Time) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	touched, err := shirtVariants(ctx, tx, id)
	if err != nil {
		return err
	}

	result, err := tx.ExecContext(ctx,
		`DELETE FROM registrations
		 WHERE id = ?
		   AND (payment_status = ? OR (payment_status = ? AND expires_at <= ?))`,
		id, model.PaymentCancelled, model.PaymentPending, now.UTC(),
	)
	if err != nil {
		return fmt.Errorf("sweeping registration: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}

	for variant := range touched {
		if err := RecomputeReserved(ctx, tx, variant.Size, variant.Sleeve); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing sweep: %w", err)
	}
	return nil
}

// shirtVariants collects the distinct shirt variants held by a registration
// (primary plus extras).
func shirtVariants(ctx context.Context, q dbtx, id int64) (map[ShirtRequest]struct{}, error) {
	variants := make(map[ShirtRequest]struct{})

	var primary ShirtRequest
	err := q.QueryRowContext(ctx,
		`SELECT shirt_size, shirt_sleeve FROM registrations WHERE id = ?`, id,
	).Scan(&primary.Size, &primary.Sleeve)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting registration shirt: %w", err)
	}
	variants[primary] = struct{}{}

	rows, err := q.QueryContext(ctx,
		`SELECT size, sleeve FROM extra_shirts WHERE registration_id = ?`, id,
	)
	if err != nil {
		return nil, fmt.Errorf("getting extra shirts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var v ShirtRequest
		if err := rows.Scan(&v.Size, &v.Sleeve); err != nil {
			return nil, fmt.Errorf("scanning extra shirt: %w", err)
		}
		variants[v] = struct{}{}
	}
	return variants, rows.Err()
}

// ConfirmPayment transitions a registration from pending to confirmed.
// Confirming an already confirmed registration is a no-op returning the
// existing record, so duplicate gateway notifications are harmless.
func ConfirmPayment(ctx context.Context, db *sql.DB, id int64) (*model.Registration, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var status string
	err = tx.QueryRowContext(ctx,
		`SELECT payment_status FROM registrations WHERE id = ?`, id,
	).Scan(&status)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting payment status: %w", err)
	}

	switch status {
	case model.PaymentCancelled:
		return nil, ErrCancelled
	case model.PaymentPending:
		_, err = tx.ExecContext(ctx,
			`UPDATE registrations
			 SET payment_status = ?, confirmed_at = CURRENT_TIMESTAMP
			 WHERE id = ? AND payment_status = ?`,
			model.PaymentConfirmed, id, model.PaymentPending,
		)
		if err != nil {
			return nil, fmt.Errorf("confirming payment: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing confirmation: %w", err)
	}

	return GetRegistration(ctx, db, id)
}

// CancelRegistration marks a registration cancelled, releasing its units right
// away. The sweeper deletes the row later; cancelled is a transient marker,
// not a resting state.
func CancelRegistration(ctx context.Context, db *sql.DB, id int64) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	touched, err := shirtVariants(ctx, tx, id)
	if err != nil {
		return err
	}

	result, err := tx.ExecContext(ctx,
		`UPDATE registrations SET payment_status = ? WHERE id = ? AND payment_status != ?`,
		model.PaymentCancelled, id, model.PaymentCancelled,
	)
	if err != nil {
		return fmt.Errorf("cancelling registration: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		// Already cancelled; nothing to release.
		return tx.Commit()
	}

	for variant := range touched {
		if err := RecomputeReserved(ctx, tx, variant.Size, variant.Sleeve); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing cancellation: %w", err)
	}
	return nil
}

// CancelIfPending cancels a registration only while it is still pending,
// releasing its units. The status guard is part of the UPDATE, so a payment
// confirmed between the caller's read and this call is never overwritten.
// Returns ErrNotFound when no pending row matched (missing, confirmed, or
// already cancelled).
func CancelIfPending(ctx context.Context, db *sql.DB, id int64) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	touched, err := shirtVariants(ctx, tx, id)
	if err != nil {
		return err
	}

	result, err := tx.ExecContext(ctx,
		`UPDATE registrations SET payment_status = ? WHERE id = ? AND payment_status = ?`,
		model.PaymentCancelled, id, model.PaymentPending,
	)
	if err != nil {
		return fmt.Errorf("cancelling registration: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}

	for variant := range touched {
		if err := RecomputeReserved(ctx, tx, variant.Size, variant.Sleeve); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing cancellation: %w", err)
	}
	return nil
}

// AddExtraShirt adds a line item to an existing registration, reserving one
// unit, and bumps the amount due.
func AddExtraShirt(ctx context.Context, db *sql.DB, registrationID int64, shirt ShirtRequest, priceCents int64) (*model.ExtraShirt, error) {
	if !model.ValidShirt(shirt.Size, shirt.Sleeve) {
		return nil, fmt.Errorf("unknown shirt variant %s/%s", shirt.Size, shirt.Sleeve)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var status string
	err = tx.QueryRowContext(ctx,
		`SELECT payment_status FROM registrations WHERE id = ?`, registrationID,
	).Scan(&status)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting registration: %w", err)
	}
	if status == model.PaymentCancelled {
		return nil, ErrCancelled
	}

	available, err := Available(ctx, tx, shirt.Size, shirt.Sleeve)
	if err != nil {
		return nil, err
	}
	if available < 1 {
		return nil, &StockUnavailableError{Size: shirt.Size, Sleeve: shirt.Sleeve}
	}

	result, err := tx.ExecContext(ctx,
		`INSERT INTO extra_shirts (registration_id, size, sleeve, price_cents)
		 VALUES (?, ?, ?, ?)`,
		registrationID, shirt.Size, shirt.Sleeve, priceCents,
	)
	if err != nil {
		return nil, fmt.Errorf("creating extra shirt: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE registrations SET amount_cents = amount_cents + ? WHERE id = ?`,
		priceCents, registrationID,
	)
	if err != nil {
		return nil, fmt.Errorf("updating amount due: %w", err)
	}

	if err := RecomputeReserved(ctx, tx, shirt.Size, shirt.Sleeve); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing extra shirt: %w", err)
	}

	id, _ := result.LastInsertId()
	return &model.ExtraShirt{
		ID:             id,
		RegistrationID: registrationID,
		Size:           shirt.Size,
		Sleeve:         shirt.Sleeve,
		PriceCents:     priceCents,
	}, nil
}

// RemoveExtraShirt deletes a line item, releasing its unit, and lowers the
// amount due.
func RemoveExtraShirt(ctx context.Context, db *sql.DB, registrationID, extraID int64) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var size, sleeve string
	var price int64
	err = tx.QueryRowContext(ctx,
		`SELECT size, sleeve, price_cents FROM extra_shirts
		 WHERE id = ? AND registration_id = ?`, extraID, registrationID,
	).Scan(&size, &sleeve, &price)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("getting extra shirt: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM extra_shirts WHERE id = ?`, extraID); err != nil {
		return fmt.Errorf("deleting extra shirt: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE registrations SET amount_cents = amount_cents - ? WHERE id = ?`,
		price, registrationID,
	)
	if err != nil {
		return fmt.Errorf("updating amount due: %w", err)
	}

	if err := RecomputeReserved(ctx, tx, size, sleeve); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing extra shirt removal: %w", err)
	}
	return nil
}

// SetPixTxid stores the payment correlation token minted for a registration.
func SetPixTxid(ctx context.Context, db *sql.DB, id int64, txid string) error {
	_, err := db.ExecContext(ctx,
		`UPDATE registrations SET pix_txid = ? WHERE id = ?`, txid, id,
	)
	if err != nil {
		return fmt.Errorf("setting pix txid: %w", err)
	}
	return nil
}

const registrationColumns = `id, number, name, email, cpf, phone, city, state,
	motorcycle, shirt_size, shirt_sleeve, payment_status, amount_cents,
	pix_txid, created_at, expires_at, confirmed_at`

// GetRegistration returns a registration by ID with its extra shirts loaded.
func GetRegistration(ctx context.Context, db *sql.DB, id int64) (*model.Registration, error) {
	row := db.QueryRowContext(ctx,
		`SELECT `+registrationColumns+` FROM registrations WHERE id = ?`, id)
	return scanRegistration(ctx, db, row)
}

// GetRegistrationByNumber returns a registration by its public number.
func GetRegistrationByNumber(ctx context.Context, db *sql.DB, number int64) (*model.Registration, error) {
	row := db.QueryRowContext(ctx,
		`SELECT `+registrationColumns+` FROM registrations WHERE number = ?`, number)
	return scanRegistration(ctx, db, row)
}

// GetRegistrationByTxid returns the registration holding a payment correlation
// token.
func GetRegistrationByTxid(ctx context.Context, db *sql.DB, txid string) (*model.Registration, error) {
	row := db.QueryRowContext(ctx,
		`SELECT `+registrationColumns+` FROM registrations WHERE pix_txid = ?`, txid)
	return scanRegistration(ctx, db, row)
}

func scanRegistration(ctx context.Context, db *sql.DB, row *sql.Row) (*model.Registration, error) {
	reg := &model.Registration{}
	var phone, city, state, motorcycle, txid sql.NullString
	err := row.Scan(&reg.ID, &reg.Number, &reg.Name, &reg.Email, &reg.CPF,
		&phone, &city, &state, &motorcycle,
		&reg.ShirtSize, &reg.ShirtSleeve, &reg.PaymentStatus, &reg.AmountCents,
		&txid, &reg.CreatedAt, &reg.ExpiresAt, &reg.ConfirmedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting registration: %w", err)
	}
	reg.Phone = phone.String
	reg.City = city.String
	reg.State = state.String
	reg.Motorcycle = motorcycle.String
	reg.PixTxid = txid.String

	extras, err := listExtraShirts(ctx, db, reg.ID)
	if err != nil {
		return nil, err
	}
	reg.Extras = extras
	return reg, nil
}

func listExtraShirts(ctx context.Context, db *sql.DB, registrationID int64) ([]model.ExtraShirt, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, registration_id, size, sleeve, price_cents
		 FROM extra_shirts WHERE registration_id = ? ORDER BY id`, registrationID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing extra shirts: %w", err)
	}
	defer rows.Close()

	var extras []model.ExtraShirt
	for rows.Next() {
		var e model.ExtraShirt
		if err := rows.Scan(&e.ID, &e.RegistrationID, &e.Size, &e.Sleeve, &e.PriceCents); err != nil {
			return nil, fmt.Errorf("scanning extra shirt: %w", err)
		}
		extras = append(extras, e)
	}
	return extras, rows.Err()
}

// ListRegistrations returns registrations, optionally filtered by payment status.
func ListRegistrations(ctx context.Context, db *sql.DB, status string) ([]model.Registration, error) {
	query := `SELECT ` + registrationColumns + ` FROM registrations`
	var args []any
	if status != "" {
		query += ` WHERE payment_status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY number`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing registrations: %w", err)
	}
	defer rows.Close()

	var regs []model.Registration
	for rows.Next() {
		var reg model.Registration
		var phone, city, state, motorcycle, txid sql.NullString
		if err := rows.Scan(&reg.ID, &reg.Number, &reg.Name, &reg.Email, &reg.CPF,
			&phone, &city, &state, &motorcycle,
			&reg.ShirtSize, &reg.ShirtSleeve, &reg.PaymentStatus, &reg.AmountCents,
			&txid, &reg.CreatedAt, &reg.ExpiresAt, &reg.ConfirmedAt); err != nil {
			return nil, fmt.Errorf("scanning registration: %w", err)
		}
		reg.Phone = phone.String
		reg.City = city.String
		reg.State = state.String
		reg.Motorcycle = motorcycle.String
		reg.PixTxid = txid.String
		regs = append(regs, reg)
	}
	return regs, rows.Err()
}

// ListSweepable returns IDs of registrations the sweeper should remove:
// cancelled ones and pending ones past their expiry deadline.
func ListSweepable(ctx context.Context, db *sql.DB, now time.Time) ([]int64, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id FROM registrations
		 WHERE payment_status = ?
		    OR (payment_status = ? AND expires_at <= ?)`,
		model.PaymentCancelled, model.PaymentPending, now.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("listing sweepable registrations: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning registration id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
