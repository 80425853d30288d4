package sweeper

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rotadovale/motofest/internal/db"
	"github.com/rotadovale/motofest/internal/model"
	"github.com/rotadovale/motofest/internal/store"
)

var pricing = store.Pricing{BaseFeeCents: 15000, ExtraShirtCents: 5000}

func TestSweepRemovesExpiredPendingAndReleasesStock(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	if err := store.SetStockTotal(ctx, database, "M", model.SleeveShort, 1); err != nil {
		t.Fatalf("SetStockTotal: %v", err)
	}

	// Takes the last unit and is already past its deadline.
	_, err := store.CreateRegistration(ctx, database, store.NewRegistration{
		Name: "Ana", Email: "ana@example.com", CPF: "52998224725",
		Shirt: store.ShirtRequest{Size: "M", Sleeve: model.SleeveShort},
	}, pricing, -time.Minute)
	if err != nil {
		t.Fatalf("CreateRegistration: %v", err)
	}

	s := New(database, time.Minute)
	n, err := s.Sweep(ctx)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 swept, got %d", n)
	}

	stock, _ := store.GetStock(ctx, database, "M", model.SleeveShort)
	if stock.Available() != 1 {
		t.Errorf("expected availability back to 1, got %d", stock.Available())
	}

	// The freed unit can be taken again.
	if _, err := store.CreateRegistration(ctx, database, store.NewRegistration{
		Name: "Beto", Email: "beto@example.com", CPF: "11144477735",
		Shirt: store.ShirtRequest{Size: "M", Sleeve: model.SleeveShort},
	}, pricing, 10*time.Minute); err != nil {
		t.Fatalf("CreateRegistration after sweep: %v", err)
	}
}

func TestSweepSkipsConfirmedAndFreshPending(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	store.SetStockTotal(ctx, database, "M", model.SleeveShort, 5)

	expired, _ := store.CreateRegistration(ctx, database, store.NewRegistration{
		Name: "Ana", Email: "ana@example.com", CPF: "52998224725",
		Shirt: store.ShirtRequest{Size: "M", Sleeve: model.SleeveShort},
	}, pricing, -time.Minute)
	if _, err := store.ConfirmPayment(ctx, database, expired.ID); err != nil {
		t.Fatalf("ConfirmPayment: %v", err)
	}

	fresh, _ := store.CreateRegistration(ctx, database, store.NewRegistration{
		Name: "Beto", Email: "beto@example.com", CPF: "11144477735",
		Shirt: store.ShirtRequest{Size: "M", Sleeve: model.SleeveShort},
	}, pricing, 10*time.Minute)

	s := New(database, time.Minute)
	n, err := s.Sweep(ctx)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected nothing swept, got %d", n)
	}

	if got, _ := store.GetRegistration(ctx, database, expired.ID); got == nil {
		t.Error("confirmed registration was swept")
	}
	if got, _ := store.GetRegistration(ctx, database, fresh.ID); got == nil {
		t.Error("fresh pending registration was swept")
	}
}

func TestSweepSparesRegistrationConfirmedAfterScan(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	store.SetStockTotal(ctx, database, "M", model.SleeveShort, 1)

	reg, err := store.CreateRegistration(ctx, database, store.NewRegistration{
		Name: "Ana", Email: "ana@example.com", CPF: "52998224725",
		Shirt: store.ShirtRequest{Size: "M", Sleeve: model.SleeveShort},
	}, pricing, -time.Minute)
	if err != nil {
		t.Fatalf("CreateRegistration: %v", err)
	}

	now := time.Now()
	ids, err := store.ListSweepable(ctx, database, now)
	if err != nil || len(ids) != 1 {
		t.Fatalf("ListSweepable = %v, %v; want one id", ids, err)
	}

	// Payment lands between the scan and the delete.
	if _, err := store.ConfirmPayment(ctx, database, reg.ID); err != nil {
		t.Fatalf("ConfirmPayment: %v", err)
	}

	if err := store.SweepRegistration(ctx, database, ids[0], now); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("SweepRegistration = %v; want ErrNotFound", err)
	}

	got, err := store.GetRegistration(ctx, database, reg.ID)
	if err != nil {
		t.Fatalf("GetRegistration: %v", err)
	}
	if got == nil {
		t.Fatal("confirmed registration was swept")
	}
	if got.PaymentStatus != model.PaymentConfirmed {
		t.Errorf("expected confirmed, got %q", got.PaymentStatus)
	}

	stock, _ := store.GetStock(ctx, database, "M", model.SleeveShort)
	if stock.ReservedUnits != 1 {
		t.Errorf("expected the confirmed shirt to stay reserved, got %d", stock.ReservedUnits)
	}
}

func TestSweepRemovesCancelled(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	store.SetStockTotal(ctx, database, "M", model.SleeveShort, 5)

	reg, _ := store.CreateRegistration(ctx, database, store.NewRegistration{
		Name: "Ana", Email: "ana@example.com", CPF: "52998224725",
		Shirt: store.ShirtRequest{Size: "M", Sleeve: model.SleeveShort},
	}, pricing, 10*time.Minute)
	if err := store.CancelRegistration(ctx, database, reg.ID); err != nil {
		t.Fatalf("CancelRegistration: %v", err)
	}

	s := New(database, time.Minute)
	n, err := s.Sweep(ctx)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 swept, got %d", n)
	}
	if got, _ := store.GetRegistration(ctx, database, reg.ID); got != nil {
		t.Error("cancelled registration still present after sweep")
	}
}

func TestSweepIsIdempotent(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	store.SetStockTotal(ctx, database, "M", model.SleeveShort, 5)

	store.CreateRegistration(ctx, database, store.NewRegistration{
		Name: "Ana", Email: "ana@example.com", CPF: "52998224725",
		Shirt: store.ShirtRequest{Size: "M", Sleeve: model.SleeveShort},
	}, pricing, -time.Minute)

	s := New(database, time.Minute)
	if n, err := s.Sweep(ctx); err != nil || n != 1 {
		t.Fatalf("first Sweep = %d, %v; want 1, nil", n, err)
	}
	// Sweeping again with nothing left is a clean no-op, as is racing a
	// manager who deleted the row first (SweepRegistration's ErrNotFound
	// is treated as handled).
	if n, err := s.Sweep(ctx); err != nil || n != 0 {
		t.Fatalf("second Sweep = %d, %v; want 0, nil", n, err)
	}
}
