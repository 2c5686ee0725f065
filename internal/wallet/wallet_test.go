package wallet

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/Greeshmanth19/payment-bot-crypto/internal/identity"
)

func TestProvisionCreatesUsableWallet(t *testing.T) {
	t.Parallel()

	record, err := Provision()
	if err != nil {
		t.Fatalf("provision: %v", err)
	}
	if !IsAddress(record.Address) {
		t.Fatalf("provisioned address invalid: %s", record.Address)
	}
	if !strings.HasPrefix(record.PrivateKeyHex, "0x") || len(record.PrivateKeyHex) != 66 {
		t.Fatalf("unexpected key encoding: %s", record.PrivateKeyHex)
	}

	// Round-trip through import must recover the same address.
	imported, err := ParsePrivateKey(record.PrivateKeyHex)
	if err != nil {
		t.Fatalf("parse generated key: %v", err)
	}
	if imported.Address != record.Address {
		t.Fatalf("address mismatch: %s != %s", imported.Address, record.Address)
	}
}

func TestParsePrivateKeyRejectsMalformedInput(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{
		"",
		"deadbeef",
		"0x1234",
		"0x" + strings.Repeat("zz", 32),
	} {
		if _, err := ParsePrivateKey(raw); err == nil {
			t.Fatalf("expected %q to be rejected", raw)
		}
	}
}

func TestMemoryKeystore(t *testing.T) {
	t.Parallel()

	store := NewMemoryKeystore()
	ctx := context.Background()
	owner := identity.FromInt64(42)

	if _, err := store.Get(ctx, owner); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	record, err := Provision()
	if err != nil {
		t.Fatalf("provision: %v", err)
	}
	if err := store.Put(ctx, owner, record); err != nil {
		t.Fatalf("put: %v", err)
	}

	stored, err := store.Get(ctx, owner)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.Address != record.Address || stored.PrivateKeyHex != record.PrivateKeyHex {
		t.Fatalf("stored record mismatch: %+v", stored)
	}
}
