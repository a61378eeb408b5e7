package money

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestToCents(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  int64
	}{
		{"whole value", "10", 1000},
		{"two decimals", "12.34", 1234},
		{"negative", "-12.34", -1234},
		{"rounds half away from zero", "0.005", 1},
		{"rounds negative half away from zero", "-0.005", -1},
		{"float noise", "10.10000000001", 1010},
		{"zero", "0", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := decimal.NewFromString(tt.input)
			if err != nil {
				t.Fatalf("bad test input %q: %v", tt.input, err)
			}
			if got := ToCents(d); got != tt.want {
				t.Errorf("ToCents(%s) = %d; want %d", tt.input, got, tt.want)
			}
		})
	}
}

func TestFromCentsRoundTrip(t *testing.T) {
	for _, cents := range []int64{0, 1, -1, 99, 100, 12345, -9876543} {
		if got := ToCents(FromCents(cents)); got != cents {
			t.Errorf("ToCents(FromCents(%d)) = %d", cents, got)
		}
	}
}

func TestAllocateCents(t *testing.T) {
	tests := []struct {
		name  string
		total int64
		pctA  string
		wantA int64
		wantB int64
	}{
		{"even split", 1000, "50", 500, 500},
		{"odd cent goes to A", 1001, "50", 501, 500},
		{"sixty forty", 1000, "60", 600, 400},
		{"uneven split rounds A", 1001, "33.33", 334, 667},
		{"all to A", 500, "100", 500, 0},
		{"all to B", 500, "0", 0, 500},
		{"zero total", 0, "50", 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pct, _ := decimal.NewFromString(tt.pctA)
			a, b := AllocateCents(tt.total, pct)
			if a != tt.wantA || b != tt.wantB {
				t.Errorf("AllocateCents(%d, %s) = (%d, %d); want (%d, %d)", tt.total, tt.pctA, a, b, tt.wantA, tt.wantB)
			}
			if a+b != tt.total {
				t.Errorf("parts %d+%d do not sum to total %d", a, b, tt.total)
			}
		})
	}
}

func TestParseCurrency(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"brazilian format", "1.234,56", "1234.56"},
		{"plain decimal point", "1234.56", "1234.56"},
		{"currency symbol", "R$ 99,90", "99.9"},
		{"parenthesized negative", "(123,45)", "-123.45"},
		{"trailing minus", "123,45-", "-123.45"},
		{"leading minus", "-50.00", "-50"},
		{"comma only", "99,90", "99.9"},
		{"thousands with point decimal", "1,234.56", "1234.56"},
		{"garbage", "abc", "0"},
		{"empty", "", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseCurrency(tt.input)
			if got.String() != tt.want {
				t.Errorf("ParseCurrency(%q) = %s; want %s", tt.input, got, tt.want)
			}
		})
	}
}
