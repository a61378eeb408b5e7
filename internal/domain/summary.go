package domain

import "github.com/shopspring/decimal"

// CategorySummary is one slice of a period's category breakdown. Deleted
// categories still appear here so historical spend stays visible.
type CategorySummary struct {
	CategoryID string          `json:"categoryId,omitempty"`
	Name       string          `json:"name"`
	Value      decimal.Decimal `json:"value"`
	IsDeleted  bool            `json:"isDeleted,omitempty"`
}

// TimeSeriesEntry is one bucket of the monthly evolution series. The
// category maps carry the dynamic keys (CategoryName and
// CategoryName::SubcategoryName) separately from the structural fields.
type TimeSeriesEntry struct {
	BucketKey         string                     `json:"bucketKey"` // YYYY-MM
	Label             string                     `json:"label"`
	Total             decimal.Decimal            `json:"total"`
	CategoryTotals    map[string]decimal.Decimal `json:"categoryTotals"`
	CategorySubtotals map[string]decimal.Decimal `json:"categorySubtotals"`
}

// NatureTotals breaks the period down by transaction nature.
type NatureTotals struct {
	Expenses     decimal.Decimal `json:"expenses"`
	Installments decimal.Decimal `json:"installments"`
	Refunds      decimal.Decimal `json:"refunds"`
	Credits      decimal.Decimal `json:"credits"`
	Transfers    decimal.Decimal `json:"transfers"`
	InvoiceTotal decimal.Decimal `json:"invoiceTotal"`
}

// Summary is the derived, non-authoritative aggregate for one scope and
// period. It is recomputed from the transaction set on demand and cached
// only for closed months.
type Summary struct {
	TotalSpent       decimal.Decimal   `json:"totalSpent"`
	PendingCount     int               `json:"pendingCount"`
	NeedsAttention   bool              `json:"needsAttention"`
	TotalsByCategory []CategorySummary `json:"totalsByCategory"`
	MonthlyEvolution []TimeSeriesEntry `json:"monthlyEvolution"`
	NatureTotals     NatureTotals      `json:"natureTotals"`
}
