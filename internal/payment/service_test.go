package payment

import (
	"context"
	"testing"
	"time"

	xerrors "github.com/Greeshmanth19/payment-bot-crypto/internal/errors"
	"github.com/Greeshmanth19/payment-bot-crypto/internal/identity"
	"github.com/Greeshmanth19/payment-bot-crypto/internal/schedule"
)

type serviceFixture struct {
	*dispatcherFixture
	store   *MemoryStore
	clock   *manualClock
	service *Service
}

func newServiceFixture(t *testing.T, now time.Time) *serviceFixture {
	t.Helper()
	f := &serviceFixture{
		dispatcherFixture: newDispatcherFixture(t),
		store:             NewMemoryStore(),
		clock:             &manualClock{now: now},
	}
	f.service = NewService(f.store, f.d, f.keys, f.clock)
	return f
}

func TestScheduleCreatesActiveRecord(t *testing.T) {
	now := time.Date(2025, 3, 12, 9, 0, 0, 0, time.UTC) // Wednesday
	f := newServiceFixture(t, now)

	record, err := f.service.Schedule(context.Background(), ScheduleRequest{
		Owner:        f.sender,
		Recipient:    "0x2222222222222222222222222222222222222222",
		AmountText:   "0.5",
		ScheduleText: "every monday",
	})
	if err != nil {
		t.Fatalf("Schedule failed: %v", err)
	}
	if !record.Active {
		t.Fatal("new record must be active")
	}
	if record.Schedule.Kind != schedule.KindWeekly || record.Schedule.Weekday != time.Monday {
		t.Fatalf("schedule = %+v", record.Schedule)
	}
	// Upcoming Monday at noon, not the week after.
	want := time.Date(2025, 3, 17, 12, 0, 0, 0, time.UTC)
	if !record.NextExecution.Equal(want) {
		t.Fatalf("next execution = %v, want %v", record.NextExecution, want)
	}

	stored, err := f.store.Get(context.Background(), record.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if stored.AmountETH != "0.5" {
		t.Fatalf("stored amount = %q", stored.AmountETH)
	}
}

func TestScheduleStoresProvisionedKeyForUnknownRecipient(t *testing.T) {
	now := time.Date(2025, 3, 12, 9, 0, 0, 0, time.UTC)
	f := newServiceFixture(t, now)

	record, err := f.service.Schedule(context.Background(), ScheduleRequest{
		Owner:        f.sender,
		Recipient:    "@dora",
		AmountText:   "1",
		ScheduleText: "every 3 days",
	})
	if err != nil {
		t.Fatalf("Schedule failed: %v", err)
	}
	if record.ProvisionedKey == "" {
		t.Fatal("record should carry the provisioned key for later delivery")
	}
	if record.RecipientDisplay != "@dora" {
		t.Fatalf("display = %q", record.RecipientDisplay)
	}
}

func TestScheduleValidation(t *testing.T) {
	now := time.Date(2025, 3, 12, 9, 0, 0, 0, time.UTC)
	f := newServiceFixture(t, now)
	ctx := context.Background()

	senderWallet, err := f.keys.Get(ctx, f.sender)
	if err != nil {
		t.Fatalf("keystore Get failed: %v", err)
	}

	cases := map[string]ScheduleRequest{
		"missing owner": {
			Recipient: "0x2222222222222222222222222222222222222222", AmountText: "1", ScheduleText: "every monday",
		},
		"self payment": {
			Owner: f.sender, Recipient: senderWallet.Address, AmountText: "1", ScheduleText: "every monday",
		},
		"bad amount": {
			Owner: f.sender, Recipient: "0x2222222222222222222222222222222222222222", AmountText: "zero", ScheduleText: "every monday",
		},
		"one-time in the past": {
			Owner: f.sender, Recipient: "0x2222222222222222222222222222222222222222", AmountText: "1", ScheduleText: "01-01-2020",
		},
	}
	for name, req := range cases {
		if _, err := f.service.Schedule(ctx, req); err == nil {
			t.Fatalf("%s: Schedule should fail", name)
		} else if code := xerrors.CodeOf(err); code != CodeValidation {
			t.Fatalf("%s: error code = %s, want %s", name, code, CodeValidation)
		}
	}

	if _, err := f.service.Schedule(ctx, ScheduleRequest{
		Owner: f.sender, Recipient: "0x2222222222222222222222222222222222222222",
		AmountText: "1", ScheduleText: "whenever",
	}); err == nil {
		t.Fatal("unrecognized schedule text should fail")
	} else if code := xerrors.CodeOf(err); code != schedule.CodeScheduleParse {
		t.Fatalf("error code = %s, want %s", code, schedule.CodeScheduleParse)
	}
}

func TestCancelSoftDeactivates(t *testing.T) {
	now := time.Date(2025, 3, 12, 9, 0, 0, 0, time.UTC)
	f := newServiceFixture(t, now)
	ctx := context.Background()

	record, err := f.service.Schedule(ctx, ScheduleRequest{
		Owner:        f.sender,
		Recipient:    "0x2222222222222222222222222222222222222222",
		AmountText:   "1",
		ScheduleText: "every 2 days",
	})
	if err != nil {
		t.Fatalf("Schedule failed: %v", err)
	}

	if err := f.service.Cancel(ctx, f.sender, record.ID); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	stored, err := f.store.Get(ctx, record.ID)
	if err != nil {
		t.Fatalf("record should survive cancellation: %v", err)
	}
	if stored.Active {
		t.Fatal("cancelled record still active")
	}
}

func TestCancelRejectsForeignOwner(t *testing.T) {
	now := time.Date(2025, 3, 12, 9, 0, 0, 0, time.UTC)
	f := newServiceFixture(t, now)
	ctx := context.Background()

	record, err := f.service.Schedule(ctx, ScheduleRequest{
		Owner:        f.sender,
		Recipient:    "0x2222222222222222222222222222222222222222",
		AmountText:   "1",
		ScheduleText: "every 2 days",
	})
	if err != nil {
		t.Fatalf("Schedule failed: %v", err)
	}

	err = f.service.Cancel(ctx, identity.UserID("999"), record.ID)
	if code := xerrors.CodeOf(err); code != CodeNotFound {
		t.Fatalf("error code = %s, want %s", code, CodeNotFound)
	}
}

func TestListReturnsOwnRecordsOnly(t *testing.T) {
	now := time.Date(2025, 3, 12, 9, 0, 0, 0, time.UTC)
	f := newServiceFixture(t, now)
	ctx := context.Background()

	if _, err := f.service.Schedule(ctx, ScheduleRequest{
		Owner:        f.sender,
		Recipient:    "0x2222222222222222222222222222222222222222",
		AmountText:   "1",
		ScheduleText: "every monday",
	}); err != nil {
		t.Fatalf("Schedule failed: %v", err)
	}

	mine, err := f.service.List(ctx, f.sender)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(mine) != 1 {
		t.Fatalf("own records = %d, want 1", len(mine))
	}

	others, err := f.service.List(ctx, identity.UserID("999"))
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(others) != 0 {
		t.Fatalf("foreign records = %d, want 0", len(others))
	}
}
