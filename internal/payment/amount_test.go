package payment

import (
	"math/big"
	"testing"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in      string
		wantWei string
		wantETH string
	}{
		{"1", "1000000000000000000", "1"},
		{"0.5", "500000000000000000", "0.5"},
		{" 2.50 ", "2500000000000000000", "2.5"},
		{"0.000000000000000001", "1", "0.000000000000000001"},
		{"10.25", "10250000000000000000", "10.25"},
	}
	for _, tc := range cases {
		eth, wei, err := ParseAmount(tc.in)
		if err != nil {
			t.Fatalf("ParseAmount(%q) returned error: %v", tc.in, err)
		}
		if wei.String() != tc.wantWei {
			t.Fatalf("ParseAmount(%q) wei = %s, want %s", tc.in, wei, tc.wantWei)
		}
		if eth != tc.wantETH {
			t.Fatalf("ParseAmount(%q) canonical = %q, want %q", tc.in, eth, tc.wantETH)
		}
	}
}

func TestParseAmountRejectsInvalidInput(t *testing.T) {
	for _, in := range []string{"", "abc", "-1", "+1", "0", "0.0", "1.2.3", "1,5", "0.0000000000000000001"} {
		if _, _, err := ParseAmount(in); err == nil {
			t.Fatalf("ParseAmount(%q) should fail", in)
		}
	}
}

func TestFormatWei(t *testing.T) {
	one := new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
	if got := FormatWei(one); got != "1" {
		t.Fatalf("FormatWei(1 ETH) = %q", got)
	}
	half := new(big.Int).Div(one, big.NewInt(2))
	if got := FormatWei(half); got != "0.5" {
		t.Fatalf("FormatWei(0.5 ETH) = %q", got)
	}
	if got := FormatWei(big.NewInt(0)); got != "0" {
		t.Fatalf("FormatWei(0) = %q", got)
	}
}
