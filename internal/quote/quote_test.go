package quote

import (
	"errors"
	"math/big"
	"testing"
)

func TestLimitsValidate(t *testing.T) {
	limits := Limits{Min: 100, Max: 50000}

	if err := limits.Validate(50); err == nil {
		t.Fatal("expected error below minimum")
	}
	if err := limits.Validate(60000); err == nil {
		t.Fatal("expected error above maximum")
	}
	if err := limits.Validate(100); err != nil {
		t.Fatalf("minimum should be inclusive: %v", err)
	}
	if err := limits.Validate(50000); err != nil {
		t.Fatalf("maximum should be inclusive: %v", err)
	}
}

func TestTokenAmountHappyPath(t *testing.T) {
	// 1000 local units at 2000 local per token = 0.5 token.
	spot := new(big.Rat).SetInt64(2000)
	got, err := TokenAmount(1000, spot, 18)
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	want, _ := new(big.Int).SetString("500000000000000000", 10)
	if got.Cmp(want) != 0 {
		t.Fatalf("got %s want %s", got, want)
	}
}

func TestTokenAmountRoundsDown(t *testing.T) {
	// 100 / 3 at 0 decimals = 33.33..., must truncate to 33.
	spot := new(big.Rat).SetInt64(3)
	got, err := TokenAmount(100, spot, 0)
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if got.Int64() != 33 {
		t.Fatalf("got %d, want 33 (round down)", got.Int64())
	}
}

func TestTokenAmountUnavailable(t *testing.T) {
	if _, err := TokenAmount(1000, nil, 18); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("nil spot: got %v", err)
	}
	if _, err := TokenAmount(1000, new(big.Rat), 18); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("zero spot: got %v", err)
	}
}

func TestTokenAmountTooSmall(t *testing.T) {
	// 1 local unit at 1e9 local per token with 6 decimals quantizes to zero.
	spot := new(big.Rat).SetInt64(1_000_000_000)
	if _, err := TokenAmount(1, spot, 6); !errors.Is(err, ErrTooSmall) {
		t.Fatalf("got %v, want ErrTooSmall", err)
	}
}

func TestFormatUnits(t *testing.T) {
	cases := []struct {
		units    string
		decimals int
		want     string
	}{
		{"500000000000000000", 18, "0.5"},
		{"1000000", 6, "1"},
		{"1230000", 6, "1.23"},
		{"42", 0, "42"},
		{"1", 6, "0.000001"},
	}
	for _, tc := range cases {
		units, _ := new(big.Int).SetString(tc.units, 10)
		if got := FormatUnits(units, tc.decimals); got != tc.want {
			t.Errorf("FormatUnits(%s, %d) = %q, want %q", tc.units, tc.decimals, got, tc.want)
		}
	}
}
