package alerting

import (
	"context"
	"errors"
	"testing"

	xerrors "github.com/Greeshmanth19/payment-bot-crypto/internal/errors"
	"github.com/Greeshmanth19/payment-bot-crypto/internal/identity"
)

type fakeNotifier struct {
	channel Channel
	events  []Event
	err     error
}

func (f *fakeNotifier) Channel() Channel { return f.channel }

func (f *fakeNotifier) Notify(_ context.Context, event Event) error {
	f.events = append(f.events, event)
	return f.err
}

func TestFanoutBroadcastsToAllChannels(t *testing.T) {
	email := &fakeNotifier{channel: ChannelEmail}
	slack := &fakeNotifier{channel: ChannelSlack}
	fanout := NewFanout(email, slack, nil)

	event := Event{Code: "TX_SUBMIT_FAILED", Message: "boom", PaymentID: "pay-1"}
	if err := fanout.Notify(context.Background(), event); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if len(email.events) != 1 || len(slack.events) != 1 {
		t.Fatalf("expected both channels to receive the event: email %d slack %d", len(email.events), len(slack.events))
	}
	if email.events[0].PaymentID != "pay-1" {
		t.Fatalf("unexpected event payload: %+v", email.events[0])
	}
}

func TestFanoutCollectsChannelErrors(t *testing.T) {
	email := &fakeNotifier{channel: ChannelEmail, err: errors.New("smtp down")}
	slack := &fakeNotifier{channel: ChannelSlack}
	fanout := NewFanout(email, slack)

	err := fanout.Notify(context.Background(), Event{Message: "boom"})
	if err == nil {
		t.Fatal("expected an aggregated error")
	}
	if len(slack.events) != 1 {
		t.Fatalf("a failing channel must not block the others: got %d", len(slack.events))
	}
}

func TestFromErrorCarriesCodeAndMetadata(t *testing.T) {
	cause := xerrors.New(xerrors.CodeInvalidArgument, "bad amount",
		xerrors.WithMetadata("amount", "-1"))

	event := FromError(cause, "pay-9", identity.UserID("42"))
	if event.Code != xerrors.CodeInvalidArgument {
		t.Fatalf("unexpected code: %s", event.Code)
	}
	if event.PaymentID != "pay-9" || event.Owner != "42" {
		t.Fatalf("unexpected event identity fields: %+v", event)
	}
	if event.Metadata["amount"] != "-1" {
		t.Fatalf("metadata not carried over: %+v", event.Metadata)
	}
	if event.OccurredAt.IsZero() {
		t.Fatal("occurred-at must be set")
	}
}
