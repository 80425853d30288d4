package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rotadovale/motofest/internal/model"
)

// dbtx is the subset of *sql.DB and *sql.Tx the tx-scoped helpers need.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// ListStock returns all shirt stock rows.
func ListStock(ctx context.Context, db *sql.DB) ([]model.ShirtStock, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT size, sleeve, total_units, reserved_units
		 FROM shirt_stock ORDER BY sleeve, size`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing stock: %w", err)
	}
	defer rows.Close()

	var stock []model.ShirtStock
	for rows.Next() {
		var s model.ShirtStock
		if err := rows.Scan(&s.Size, &s.Sleeve, &s.TotalUnits, &s.ReservedUnits); err != nil {
			return nil, fmt.Errorf("scanning stock: %w", err)
		}
		stock = append(stock, s)
	}
	return stock, rows.Err()
}

// GetStock returns the stock row for a shirt variant, or nil if never seeded.
func GetStock(ctx context.Context, db *sql.DB, size, sleeve string) (*model.ShirtStock, error) {
	s := &model.ShirtStock{}
	err := db.QueryRowContext(ctx,
		`SELECT size, sleeve, total_units, reserved_units
		 FROM shirt_stock WHERE size = ? AND sleeve = ?`, size, sleeve,
	).Scan(&s.Size, &s.Sleeve, &s.TotalUnits, &s.ReservedUnits)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting stock: %w", err)
	}
	return s, nil
}

// Available returns total minus reserved units for a shirt variant.
// A variant that was never seeded has zero availability.
func Available(ctx context.Context, q dbtx, size, sleeve string) (int, error) {
	var available int
	err := q.QueryRowContext(ctx,
		`SELECT total_units - reserved_units FROM shirt_stock
		 WHERE size = ? AND sleeve = ?`, size, sleeve,
	).Scan(&available)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("checking availability: %w", err)
	}
	return available, nil
}

// SetStockTotal sets the total units for a shirt variant, creating the row if
// needed. Shrinking below the currently reserved units is rejected.
func SetStockTotal(ctx context.Context, db *sql.DB, size, sleeve string, total int) error {
	if !model.ValidShirt(size, sleeve) {
		return fmt.Errorf("unknown shirt variant %s/%s", size, sleeve)
	}
	if total < 0 {
		return fmt.Errorf("total must not be negative")
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var reserved int
	err = tx.QueryRowContext(ctx,
		`SELECT reserved_units FROM shirt_stock WHERE size = ? AND sleeve = ?`,
		size, sleeve,
	).Scan(&reserved)
	if err == sql.ErrNoRows {
		reserved = 0
	} else if err != nil {
		return fmt.Errorf("checking reserved units: %w", err)
	}

	if total < reserved {
		return &CapacityViolationError{Size: size, Sleeve: sleeve, Total: total, Reserved: reserved}
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO shirt_stock (size, sleeve, total_units) VALUES (?, ?, ?)
		 ON CONFLICT (size, sleeve) DO UPDATE SET total_units = ?`,
		size, sleeve, total, total,
	)
	if err != nil {
		return fmt.Errorf("setting stock total: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing stock total: %w", err)
	}
	return nil
}

// RecomputeReserved recalculates reserved_units for a shirt variant from the
// live registration and line-item rows and persists it. It is a reconciliation,
// not an increment: idempotent, and self-healing against drift from any missed
// cleanup path. All reservation changes go through this, never through ad hoc
// counter math.
func RecomputeReserved(ctx context.Context, q dbtx, size, sleeve string) error {
	_, err := q.ExecContext(ctx,
		`UPDATE shirt_stock SET reserved_units =
		    (SELECT COUNT(*) FROM registrations r
		      WHERE r.shirt_size = ? AND r.shirt_sleeve = ?
		        AND r.payment_status != 'cancelled')
		  + (SELECT COUNT(*) FROM extra_shirts e
		      JOIN registrations r ON r.id = e.registration_id
		      WHERE e.size = ? AND e.sleeve = ?
		        AND r.payment_status != 'cancelled')
		 WHERE size = ? AND sleeve = ?`,
		size, sleeve, size, sleeve, size, sleeve,
	)
	if err != nil {
		return fmt.Errorf("recomputing reserved units: %w", err)
	}
	return nil
}

// RecomputeAllReserved reconciles every stock row. Run at startup so that any
// drift left behind by a crash is repaired before the server takes traffic.
func RecomputeAllReserved(ctx context.Context, db *sql.DB) error {
	stock, err := ListStock(ctx, db)
	if err != nil {
		return err
	}
	for _, s := range stock {
		if err := RecomputeReserved(ctx, db, s.Size, s.Sleeve); err != nil {
			return err
		}
	}
	return nil
}
