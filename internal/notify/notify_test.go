package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Greeshmanth19/payment-bot-crypto/internal/identity"
	"github.com/Greeshmanth19/payment-bot-crypto/pkg/retry"
)

func TestMemoryOutboxKeepsAppendOrder(t *testing.T) {
	outbox := NewMemoryOutbox()
	recipient := identity.UserID("42")
	ctx := context.Background()

	first := New(recipient, KindPaymentReceived, "you received 0.5 ETH")
	second := New(recipient, KindWalletProvisioned, "a wallet was created for you")
	for _, n := range []Notification{first, second} {
		if err := outbox.Append(ctx, n); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}
	// Duplicate appends must not create a second entry.
	if err := outbox.Append(ctx, first); err != nil {
		t.Fatalf("duplicate Append failed: %v", err)
	}

	pending, err := outbox.Pending(ctx, recipient)
	if err != nil {
		t.Fatalf("Pending failed: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("pending count = %d, want 2", len(pending))
	}
	if pending[0].ID != first.ID || pending[1].ID != second.ID {
		t.Fatalf("pending order = [%s %s], want [%s %s]",
			pending[0].ID, pending[1].ID, first.ID, second.ID)
	}

	if err := outbox.Remove(ctx, recipient, first.ID); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	pending, err = outbox.Pending(ctx, recipient)
	if err != nil {
		t.Fatalf("Pending failed: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != second.ID {
		t.Fatalf("unexpected pending set after remove: %+v", pending)
	}
}

func TestMemoryOutboxIsolatesRecipients(t *testing.T) {
	outbox := NewMemoryOutbox()
	ctx := context.Background()

	if err := outbox.Append(ctx, New(identity.UserID("1"), KindPaymentSent, "sent")); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	pending, err := outbox.Pending(ctx, identity.UserID("2"))
	if err != nil {
		t.Fatalf("Pending failed: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("expected no notifications for other recipient, got %d", len(pending))
	}
}

func TestDrainerRetriesTransientDeliveryFailures(t *testing.T) {
	outbox := NewMemoryOutbox()
	recipient := identity.UserID("7")
	ctx := context.Background()

	n := New(recipient, KindPaymentReceived, "you received 1 ETH")
	if err := outbox.Append(ctx, n); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	attempts := 0
	transport := TransportFunc(func(context.Context, Notification) error {
		attempts++
		if attempts < 2 {
			return errors.New("transport hiccup")
		}
		return nil
	})

	drainer := NewDrainer(outbox, transport, retry.Policy{
		Attempts:  3,
		Delay:     time.Millisecond,
		Retryable: retry.Always,
	})
	delivered, err := drainer.Drain(ctx, recipient)
	if err != nil {
		t.Fatalf("Drain failed: %v", err)
	}
	if delivered != 1 {
		t.Fatalf("delivered = %d, want 1", delivered)
	}
	if attempts != 2 {
		t.Fatalf("delivery attempts = %d, want 2", attempts)
	}

	pending, err := outbox.Pending(ctx, recipient)
	if err != nil {
		t.Fatalf("Pending failed: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("outbox should be empty after drain, got %d entries", len(pending))
	}
}

func TestDrainerKeepsUndeliveredNotifications(t *testing.T) {
	outbox := NewMemoryOutbox()
	recipient := identity.UserID("9")
	ctx := context.Background()

	broken := New(recipient, KindPaymentFailed, "payment failed")
	fine := New(recipient, KindPaymentSent, "payment sent")
	for _, n := range []Notification{broken, fine} {
		if err := outbox.Append(ctx, n); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	transport := TransportFunc(func(_ context.Context, n Notification) error {
		if n.ID == broken.ID {
			return errors.New("permanent failure")
		}
		return nil
	})

	drainer := NewDrainer(outbox, transport, retry.Policy{
		Attempts:  2,
		Delay:     time.Millisecond,
		Retryable: retry.Always,
	})
	delivered, err := drainer.Drain(ctx, recipient)
	if err != nil {
		t.Fatalf("Drain failed: %v", err)
	}
	if delivered != 1 {
		t.Fatalf("delivered = %d, want 1", delivered)
	}

	pending, err := outbox.Pending(ctx, recipient)
	if err != nil {
		t.Fatalf("Pending failed: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != broken.ID {
		t.Fatalf("undelivered notification should remain, got %+v", pending)
	}
}

func TestWithMetadataDoesNotMutateOriginal(t *testing.T) {
	n := New(identity.UserID("1"), KindWalletProvisioned, "wallet created")
	augmented := n.WithMetadata("private_key", "0xabc")
	if len(n.Metadata) != 0 {
		t.Fatalf("original notification mutated: %+v", n.Metadata)
	}
	if augmented.Metadata["private_key"] != "0xabc" {
		t.Fatalf("metadata not applied: %+v", augmented.Metadata)
	}
}
