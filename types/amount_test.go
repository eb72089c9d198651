package types

import (
	"encoding/json"
	"errors"
	"math/big"
	"testing"
	"time"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"Small", "300", "300", false},
		{"Trimmed", "  42 ", "42", false},
		{"Wei", "200000000000000000", "200000000000000000", false},
		{"Max", "115792089237316195423570985008687907853269984665640564039457584007913129639935",
			"115792089237316195423570985008687907853269984665640564039457584007913129639935", false},
		{"TooLarge", "115792089237316195423570985008687907853269984665640564039457584007913129639936", "", true},
		{"Negative", "-1", "", true},
		{"Empty", "", "", true},
		{"Garbage", "12ab", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAmount(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q, got %s", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.String() != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestAmountAdd(t *testing.T) {
	sum, err := NewAmount(300).Add(NewAmount(200))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !sum.Equal(NewAmount(500)) {
		t.Errorf("got %s, want 500", sum)
	}

	if _, err := MaxAmount().Add(NewAmount(1)); !errors.Is(err, ErrOverflow) {
		t.Errorf("expected ErrOverflow, got %v", err)
	}

	same, err := MaxAmount().Add(Zero())
	if err != nil {
		t.Fatalf("adding zero to max: %v", err)
	}
	if !same.Equal(MaxAmount()) {
		t.Errorf("max + 0 changed value: %s", same)
	}
}

func TestAmountAddDoesNotAlias(t *testing.T) {
	a := NewAmount(10)
	b := a
	if _, err := a.Add(NewAmount(5)); err != nil {
		t.Fatal(err)
	}
	if !a.Equal(NewAmount(10)) || !b.Equal(NewAmount(10)) {
		t.Errorf("operands mutated: a=%s b=%s", a, b)
	}
}

func TestAmountSaturatingSub(t *testing.T) {
	tests := []struct {
		name string
		a, b Amount
		want Amount
	}{
		{"Positive", NewAmount(1000), NewAmount(300), NewAmount(700)},
		{"Equal", NewAmount(300), NewAmount(300), Zero()},
		{"Floor", NewAmount(100), NewAmount(300), Zero()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.SaturatingSub(tt.b); !got.Equal(tt.want) {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestAmountComparison(t *testing.T) {
	tests := []struct {
		name    string
		a, b    Amount
		less    bool
		greater bool
		equal   bool
	}{
		{"Equal", NewAmount(100), NewAmount(100), false, false, true},
		{"Less", NewAmount(50), NewAmount(100), true, false, false},
		{"Greater", NewAmount(200), NewAmount(100), false, true, false},
		{"Zero equal", NewAmount(0), Zero(), false, false, true},
		{"Max greater", MaxAmount(), NewAmount(1), false, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.LessThan(tt.b); got != tt.less {
				t.Errorf("LessThan: got %v, want %v", got, tt.less)
			}
			if got := tt.a.GreaterThan(tt.b); got != tt.greater {
				t.Errorf("GreaterThan: got %v, want %v", got, tt.greater)
			}
			if got := tt.a.Equal(tt.b); got != tt.equal {
				t.Errorf("Equal: got %v, want %v", got, tt.equal)
			}
		})
	}
}

func TestAmountFormatUnits(t *testing.T) {
	tests := []struct {
		name     string
		amount   Amount
		decimals uint8
		want     string
	}{
		{"Fraction", MustParseAmount("200000000000000000"), 18, "0.2"},
		{"Whole", MustParseAmount("5000000000000000000"), 18, "5"},
		{"Mixed", MustParseAmount("1500000000000000001"), 18, "1.500000000000000001"},
		{"No decimals", NewAmount(300), 0, "300"},
		{"Two decimals", NewAmount(4905), 2, "49.05"},
		{"Zero", Zero(), 18, "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.amount.FormatUnits(tt.decimals); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAmountJSON(t *testing.T) {
	a := MustParseAmount("200000000000000000")

	data, err := json.Marshal(a)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `"200000000000000000"` {
		t.Errorf("got %s", data)
	}

	var fromNumber Amount
	if err := json.Unmarshal([]byte(`300`), &fromNumber); err != nil {
		t.Fatalf("unmarshal number: %v", err)
	}
	if !fromNumber.Equal(NewAmount(300)) {
		t.Errorf("got %s, want 300", fromNumber)
	}
}

func TestAmountFromBig(t *testing.T) {
	if _, err := AmountFromBig(big.NewInt(-1)); err == nil {
		t.Error("expected error for negative value")
	}

	tooBig := new(big.Int).Lsh(big.NewInt(1), 256)
	if _, err := AmountFromBig(tooBig); !errors.Is(err, ErrOverflow) {
		t.Errorf("expected ErrOverflow, got %v", err)
	}

	a, err := AmountFromBig(big.NewInt(42))
	if err != nil {
		t.Fatal(err)
	}
	if a.Big().Int64() != 42 {
		t.Errorf("round trip through big.Int: got %s", a.Big())
	}
}

func TestAmountScan(t *testing.T) {
	var a Amount
	if err := a.Scan("1000"); err != nil {
		t.Fatal(err)
	}
	if !a.Equal(NewAmount(1000)) {
		t.Errorf("string scan: got %s", a)
	}
	if err := a.Scan(int64(7)); err != nil {
		t.Fatal(err)
	}
	if !a.Equal(NewAmount(7)) {
		t.Errorf("int64 scan: got %s", a)
	}
	if err := a.Scan(3.5); err == nil {
		t.Error("expected error scanning float64")
	}
}

func TestEntityTouch(t *testing.T) {
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	e := NewEntity(created)

	e.Touch(created.Add(-time.Hour))
	if !e.UpdatedAt.Equal(created) {
		t.Errorf("Touch moved UpdatedAt backwards: %v", e.UpdatedAt)
	}

	later := created.Add(time.Minute)
	e.Touch(later)
	if !e.UpdatedAt.Equal(later) {
		t.Errorf("got %v, want %v", e.UpdatedAt, later)
	}
}
