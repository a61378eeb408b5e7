package dedup

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/rchaves649/finscope/internal/domain"
)

func tx(id, date, desc string, amount string, externalID string) domain.Transaction {
	return domain.Transaction{
		ID:          id,
		ScopeID:     "s1",
		Date:        date,
		Description: desc,
		Amount:      decimal.RequireFromString(amount),
		Nature:      domain.NatureExpense,
		ExternalID:  externalID,
	}
}

func TestShouldDropByExternalID(t *testing.T) {
	d := NewDetector([]domain.Transaction{
		tx("1", "2026-07-10", "PIX JOAO", "50", "E123"),
	})

	if !d.ShouldDrop("E123", "2026-07-10", "PIX JOAO", 5000) {
		t.Error("known external ID not dropped")
	}
	if d.ShouldDrop("E999", "2026-07-10", "PIX JOAO", 5000) {
		t.Error("unknown external ID dropped")
	}
}

func TestShouldDropFrequency(t *testing.T) {
	// Two identical coffees stored; a re-imported file with three copies
	// must drop exactly two and keep the third as genuinely new.
	existing := []domain.Transaction{
		tx("1", "2026-07-10", "CAFE CENTRAL", "9.50", ""),
		tx("2", "2026-07-10", "CAFE CENTRAL", "9.50", ""),
	}
	d := NewDetector(existing)

	drops := 0
	for i := 0; i < 3; i++ {
		if d.ShouldDrop("", "2026-07-10", "CAFE CENTRAL", 950) {
			drops++
		}
	}
	if drops != 2 {
		t.Errorf("dropped %d rows; want 2", drops)
	}
}

func TestShouldDropFreshFileKeepsRepeats(t *testing.T) {
	d := NewDetector(nil)
	for i := 0; i < 3; i++ {
		if d.ShouldDrop("", "2026-07-10", "CAFE CENTRAL", 950) {
			t.Errorf("row %d dropped with an empty database", i)
		}
	}
}

func TestShouldDropUsesAbsoluteCents(t *testing.T) {
	existing := []domain.Transaction{
		tx("1", "2026-07-10", "IFOOD", "100", ""),
	}
	d := NewDetector(existing)
	// A refund row re-imported with the opposite sign lands on the same
	// fingerprint through the absolute amount.
	if !d.ShouldDrop("", "2026-07-10", "IFOOD", 10000) {
		t.Error("absolute-amount fingerprint missed")
	}
}

func TestPairsNeutralization(t *testing.T) {
	candidates := []Candidate{
		{Index: 0, DateISO: "2026-07-10", NormKey: "IFOOD RESTAURANTE", SignedCents: 10000},
		{Index: 1, DateISO: "2026-07-12", NormKey: "ESTORNO IFOOD RESTAURANTE", SignedCents: -10000},
		{Index: 2, DateISO: "2026-07-11", NormKey: "UBER TRIP", SignedCents: 2500},
	}

	pairs := NewPrefixWindowMatcher().Pairs(candidates)
	if len(pairs) != 1 {
		t.Fatalf("got %d pairs; want 1", len(pairs))
	}
	if pairs[0].Charge != 0 || pairs[0].Refund != 1 {
		t.Errorf("pair = %+v; want charge 0, refund 1", pairs[0])
	}
}

func TestPairsRespectsWindow(t *testing.T) {
	candidates := []Candidate{
		{Index: 0, DateISO: "2026-07-01", NormKey: "IFOOD", SignedCents: 10000},
		{Index: 1, DateISO: "2026-08-01", NormKey: "IFOOD", SignedCents: -10000},
	}
	if pairs := NewPrefixWindowMatcher().Pairs(candidates); len(pairs) != 0 {
		t.Errorf("pair formed across a 31-day gap: %+v", pairs)
	}
}

func TestPairsRequiresRelatedDescriptions(t *testing.T) {
	candidates := []Candidate{
		{Index: 0, DateISO: "2026-07-10", NormKey: "IFOOD", SignedCents: 10000},
		{Index: 1, DateISO: "2026-07-11", NormKey: "SUPERMERCADO", SignedCents: -10000},
	}
	if pairs := NewPrefixWindowMatcher().Pairs(candidates); len(pairs) != 0 {
		t.Errorf("unrelated descriptions paired: %+v", pairs)
	}
}

func TestPairsOnePartnerEach(t *testing.T) {
	// One refund cannot neutralize two charges.
	candidates := []Candidate{
		{Index: 0, DateISO: "2026-07-10", NormKey: "IFOOD PEDIDO", SignedCents: 10000},
		{Index: 1, DateISO: "2026-07-11", NormKey: "IFOOD PEDIDO", SignedCents: 10000},
		{Index: 2, DateISO: "2026-07-12", NormKey: "ESTORNO IFOOD PEDIDO", SignedCents: -10000},
	}
	pairs := NewPrefixWindowMatcher().Pairs(candidates)
	if len(pairs) != 1 {
		t.Fatalf("got %d pairs; want 1", len(pairs))
	}
}

func TestPrefixRelated(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want bool
	}{
		{"containment", "IFOOD RESTAURANTE", "ESTORNO IFOOD RESTAURANTE", true},
		{"equal", "UBER TRIP", "UBER TRIP", true},
		{"first ten runes agree", "MERCADOLIVRE PEDIDO 1", "MERCADOLIVRE PEDIDO 2", true},
		{"unrelated", "IFOOD", "SUPERMERCADO", false},
		{"short and different", "ABC", "XYZ", false},
		{"empty", "", "IFOOD", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := prefixRelated(tt.a, tt.b); got != tt.want {
				t.Errorf("prefixRelated(%q, %q) = %v; want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestFingerprint(t *testing.T) {
	if got := Fingerprint("2026-07-10", 950, "CAFE"); got != "2026-07-10|950|CAFE" {
		t.Errorf("Fingerprint = %q", got)
	}
}
