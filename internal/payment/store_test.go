package payment

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/Greeshmanth19/payment-bot-crypto/internal/identity"
	"github.com/Greeshmanth19/payment-bot-crypto/internal/schedule"
)

func newTestRecord(id string, owner identity.UserID, next time.Time) *Record {
	return &Record{
		ID:               id,
		Owner:            owner,
		SenderAddress:    "0x1111111111111111111111111111111111111111",
		RecipientAddress: "0x2222222222222222222222222222222222222222",
		RecipientDisplay: "@alice",
		AmountETH:        "0.5",
		AmountWei:        big.NewInt(500000000000000000),
		Schedule:         schedule.Weekly(time.Monday),
		NextExecution:    next,
		Active:           true,
		CreatedAt:        next.Add(-24 * time.Hour),
	}
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	next := time.Date(2025, 3, 17, 12, 0, 0, 0, time.UTC)

	record := newTestRecord("p-1", identity.UserID("100"), next)
	if err := store.Create(ctx, record); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	loaded, err := store.Get(ctx, "p-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if loaded.AmountETH != record.AmountETH || loaded.AmountWei.Cmp(record.AmountWei) != 0 {
		t.Fatalf("amount not preserved: %s / %s", loaded.AmountETH, loaded.AmountWei)
	}
	if loaded.Schedule.Kind != schedule.KindWeekly || loaded.Schedule.Weekday != time.Monday {
		t.Fatalf("schedule not preserved: %+v", loaded.Schedule)
	}
	if !loaded.Active {
		t.Fatal("active flag not preserved")
	}

	// Mutating the loaded copy must not leak into the store.
	loaded.AmountWei.SetInt64(1)
	again, err := store.Get(ctx, "p-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if again.AmountWei.Cmp(record.AmountWei) != 0 {
		t.Fatal("store copy was mutated through a returned record")
	}
}

func TestMemoryStoreCreateConflict(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	next := time.Now()

	if err := store.Create(ctx, newTestRecord("p-1", identity.UserID("100"), next)); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := store.Create(ctx, newTestRecord("p-1", identity.UserID("100"), next)); err != ErrConflict {
		t.Fatalf("duplicate Create error = %v, want ErrConflict", err)
	}
}

func TestMemoryStoreListDue(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	now := time.Date(2025, 3, 17, 12, 0, 0, 0, time.UTC)

	overdue := newTestRecord("p-overdue", identity.UserID("100"), now.Add(-time.Hour))
	exact := newTestRecord("p-exact", identity.UserID("100"), now)
	future := newTestRecord("p-future", identity.UserID("100"), now.Add(time.Hour))
	inactive := newTestRecord("p-inactive", identity.UserID("100"), now.Add(-time.Hour))
	inactive.Active = false
	for _, r := range []*Record{overdue, exact, future, inactive} {
		if err := store.Create(ctx, r); err != nil {
			t.Fatalf("Create(%s) failed: %v", r.ID, err)
		}
	}

	due, err := store.ListDue(ctx, now)
	if err != nil {
		t.Fatalf("ListDue failed: %v", err)
	}
	if len(due) != 2 {
		t.Fatalf("due count = %d, want 2", len(due))
	}
	// Ordered by next-execution, oldest first.
	if due[0].ID != "p-overdue" || due[1].ID != "p-exact" {
		t.Fatalf("due order = [%s %s]", due[0].ID, due[1].ID)
	}
}

func TestMemoryStoreDeactivateAndStats(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	now := time.Date(2025, 3, 17, 12, 0, 0, 0, time.UTC)

	if err := store.Create(ctx, newTestRecord("p-1", identity.UserID("100"), now.Add(-time.Minute))); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := store.Deactivate(ctx, "p-1"); err != nil {
		t.Fatalf("Deactivate failed: %v", err)
	}

	due, err := store.ListDue(ctx, now)
	if err != nil {
		t.Fatalf("ListDue failed: %v", err)
	}
	if len(due) != 0 {
		t.Fatalf("deactivated record still due: %d", len(due))
	}

	// Soft deactivation keeps the record itself.
	record, err := store.Get(ctx, "p-1")
	if err != nil {
		t.Fatalf("Get after Deactivate failed: %v", err)
	}
	if record.Active {
		t.Fatal("record still active")
	}

	stats, err := store.Stats(ctx, now)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.Total != 1 || stats.Active != 0 || stats.Due != 0 {
		t.Fatalf("stats = %+v", stats)
	}
}

func TestMemoryStoreUnknownID(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if _, err := store.Get(ctx, "missing"); err != ErrNotFound {
		t.Fatalf("Get error = %v, want ErrNotFound", err)
	}
	if err := store.Reschedule(ctx, "missing", time.Now()); err != ErrNotFound {
		t.Fatalf("Reschedule error = %v, want ErrNotFound", err)
	}
	if err := store.Deactivate(ctx, "missing"); err != ErrNotFound {
		t.Fatalf("Deactivate error = %v, want ErrNotFound", err)
	}
	if err := store.Delete(ctx, "missing"); err != ErrNotFound {
		t.Fatalf("Delete error = %v, want ErrNotFound", err)
	}
}
