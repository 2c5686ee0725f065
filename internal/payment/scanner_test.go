package payment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Greeshmanth19/payment-bot-crypto/internal/notify"
	"github.com/Greeshmanth19/payment-bot-crypto/internal/schedule"
)

type manualClock struct {
	now time.Time
}

func (c *manualClock) Now() time.Time { return c.now }

type scannerFixture struct {
	*dispatcherFixture
	store   *MemoryStore
	clock   *manualClock
	scanner *Scanner
}

func newScannerFixture(t *testing.T, now time.Time) *scannerFixture {
	t.Helper()
	f := &scannerFixture{
		dispatcherFixture: newDispatcherFixture(t),
		store:             NewMemoryStore(),
		clock:             &manualClock{now: now},
	}
	f.scanner = NewScanner(f.store, f.d, f.outbox, WithClock(f.clock))
	return f
}

func (f *scannerFixture) createRecord(t *testing.T, id string, desc schedule.Descriptor, next time.Time) {
	t.Helper()
	record := newTestRecord(id, f.sender, next)
	record.Schedule = desc
	if err := f.store.Create(context.Background(), record); err != nil {
		t.Fatalf("Create(%s) failed: %v", id, err)
	}
}

func TestTickDispatchesDueWeeklyAndReschedules(t *testing.T) {
	now := time.Date(2025, 3, 17, 12, 0, 30, 0, time.UTC) // Monday just past noon
	f := newScannerFixture(t, now)
	f.createRecord(t, "p-1", schedule.Weekly(time.Monday), now.Add(-time.Second))

	dispatched, err := f.scanner.Tick(context.Background())
	if err != nil {
		t.Fatalf("Tick failed: %v", err)
	}
	if dispatched != 1 {
		t.Fatalf("dispatched = %d, want 1", dispatched)
	}
	if len(f.chain.sent) != 1 {
		t.Fatalf("sent %d transactions, want 1", len(f.chain.sent))
	}

	record, err := f.store.Get(context.Background(), "p-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !record.Active {
		t.Fatal("weekly record must stay active")
	}
	want := time.Date(2025, 3, 24, 12, 0, 0, 0, time.UTC)
	if !record.NextExecution.Equal(want) {
		t.Fatalf("next execution = %v, want %v", record.NextExecution, want)
	}
}

func TestTickIsIdempotentWhenNothingNewIsDue(t *testing.T) {
	now := time.Date(2025, 3, 17, 12, 0, 0, 0, time.UTC)
	f := newScannerFixture(t, now)
	f.createRecord(t, "p-1", schedule.Periodic(3), now)

	if _, err := f.scanner.Tick(context.Background()); err != nil {
		t.Fatalf("first Tick failed: %v", err)
	}
	sentAfterFirst := len(f.chain.sent)

	dispatched, err := f.scanner.Tick(context.Background())
	if err != nil {
		t.Fatalf("second Tick failed: %v", err)
	}
	if dispatched != 0 {
		t.Fatalf("second tick dispatched = %d, want 0", dispatched)
	}
	if len(f.chain.sent) != sentAfterFirst {
		t.Fatalf("second tick issued transactions: %d -> %d", sentAfterFirst, len(f.chain.sent))
	}
}

func TestTickAdvancesPeriodicByInterval(t *testing.T) {
	now := time.Date(2025, 3, 17, 12, 0, 0, 0, time.UTC)
	f := newScannerFixture(t, now)
	f.createRecord(t, "p-1", schedule.Periodic(3), now)

	if _, err := f.scanner.Tick(context.Background()); err != nil {
		t.Fatalf("Tick failed: %v", err)
	}
	record, err := f.store.Get(context.Background(), "p-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if want := now.AddDate(0, 0, 3); !record.NextExecution.Equal(want) {
		t.Fatalf("next execution = %v, want %v", record.NextExecution, want)
	}
}

func TestTickDeactivatesOneTimeAfterTerminalDispatch(t *testing.T) {
	now := time.Date(2025, 12, 25, 12, 0, 0, 0, time.UTC)
	f := newScannerFixture(t, now)
	f.createRecord(t, "p-1", schedule.OneTime(now), now)

	if _, err := f.scanner.Tick(context.Background()); err != nil {
		t.Fatalf("Tick failed: %v", err)
	}
	record, err := f.store.Get(context.Background(), "p-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if record.Active {
		t.Fatal("one-time record must be deactivated after success")
	}

	// Never returned by the scanner again, even far in the future.
	f.clock.now = now.AddDate(0, 1, 0)
	dispatched, err := f.scanner.Tick(context.Background())
	if err != nil {
		t.Fatalf("Tick failed: %v", err)
	}
	if dispatched != 0 {
		t.Fatalf("executed one-time record dispatched again: %d", dispatched)
	}
}

func TestTickLeavesRecordDueAfterFailedDispatch(t *testing.T) {
	now := time.Date(2025, 3, 17, 12, 0, 0, 0, time.UTC)
	f := newScannerFixture(t, now)
	f.createRecord(t, "p-1", schedule.Weekly(time.Monday), now.Add(-time.Minute))
	f.chain.sendErr = errors.New("rpc down")

	dispatched, err := f.scanner.Tick(context.Background())
	if err != nil {
		t.Fatalf("Tick failed: %v", err)
	}
	if dispatched != 0 {
		t.Fatalf("dispatched = %d, want 0", dispatched)
	}

	record, err := f.store.Get(context.Background(), "p-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !record.Active || !record.NextExecution.Equal(now.Add(-time.Minute)) {
		t.Fatalf("failed dispatch must leave record due: %+v", record)
	}

	// The record executes on a later tick once the chain recovers.
	f.chain.sendErr = nil
	dispatched, err = f.scanner.Tick(context.Background())
	if err != nil {
		t.Fatalf("recovery Tick failed: %v", err)
	}
	if dispatched != 1 {
		t.Fatalf("recovery dispatched = %d, want 1", dispatched)
	}
}

func TestTickNotifiesOwnerOnSuccess(t *testing.T) {
	now := time.Date(2025, 3, 17, 12, 0, 0, 0, time.UTC)
	f := newScannerFixture(t, now)
	f.createRecord(t, "p-1", schedule.Periodic(2), now)

	if _, err := f.scanner.Tick(context.Background()); err != nil {
		t.Fatalf("Tick failed: %v", err)
	}
	pending, err := f.outbox.Pending(context.Background(), f.sender)
	if err != nil {
		t.Fatalf("Pending failed: %v", err)
	}
	found := false
	for _, n := range pending {
		if n.Kind == notify.KindPaymentSent && n.Metadata["payment_id"] == "p-1" {
			found = true
		}
	}
	if !found {
		t.Fatalf("owner should be notified of the executed payment, got %+v", pending)
	}
}

func TestTickUsesInjectedClock(t *testing.T) {
	now := time.Date(2025, 3, 17, 12, 0, 0, 0, time.UTC)
	f := newScannerFixture(t, now)
	f.createRecord(t, "p-future", schedule.Periodic(5), now.Add(time.Hour))

	dispatched, err := f.scanner.Tick(context.Background())
	if err != nil {
		t.Fatalf("Tick failed: %v", err)
	}
	if dispatched != 0 {
		t.Fatalf("future record dispatched early: %d", dispatched)
	}

	f.clock.now = now.Add(2 * time.Hour)
	dispatched, err = f.scanner.Tick(context.Background())
	if err != nil {
		t.Fatalf("Tick failed: %v", err)
	}
	if dispatched != 1 {
		t.Fatalf("dispatched = %d, want 1 after clock advance", dispatched)
	}
}
