// Package summary computes period aggregates over a scope's transactions
// and caches the result for months that can no longer change.
package summary

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rchaves649/finscope/internal/domain"
	"github.com/rchaves649/finscope/internal/money"
	"github.com/rchaves649/finscope/internal/store"
)

// UnclassifiedBucket is the display name of the pseudo-category that
// collects transactions without a category.
const UnclassifiedBucket = "Não Classificados"

// DeletedSuffix is appended to the display name of tombstoned categories.
const DeletedSuffix = " (Excluída)"

// evolutionMonths is the length of the trailing monthly evolution series.
const evolutionMonths = 6

var monthLabels = [12]string{
	"jan", "fev", "mar", "abr", "mai", "jun",
	"jul", "ago", "set", "out", "nov", "dez",
}

// Data carries the inputs of one summary computation. The service does not
// fetch transactions itself so callers can reuse an already-loaded set.
type Data struct {
	Transactions  []domain.Transaction
	Categories    []domain.Category
	Subcategories []domain.Subcategory
}

// Service computes summaries with snapshot caching. The clock is
// injectable so closed-month logic is testable.
type Service struct {
	snapshots store.SnapshotStore
	now       func() time.Time
}

// NewService creates a summary service over the given snapshot cache.
func NewService(snapshots store.SnapshotStore) *Service {
	return &Service{snapshots: snapshots, now: time.Now}
}

// WithClock overrides the service clock. Intended for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Compute returns the summary for one scope and period. Month periods that
// are fully in the past are served from the snapshot cache when present and
// written back after a recompute; the current and future months, years and
// ranges are always computed fresh. Cache failures degrade to a recompute.
func (s *Service) Compute(ctx context.Context, scopeID string, period domain.Period, data Data) (*domain.Summary, error) {
	cacheable := s.isClosedMonth(period)

	if cacheable {
		cached, err := s.snapshots.Get(ctx, scopeID, period.Key())
		if err == nil && cached != nil {
			return cached, nil
		}
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			log.Printf("ERROR: reading summary snapshot %s/%s: %v", scopeID, period.Key(), err)
		}
	}

	result := s.compute(period, data)

	if cacheable {
		if err := s.snapshots.Save(ctx, scopeID, period.Key(), *result); err != nil {
			log.Printf("ERROR: saving summary snapshot %s/%s: %v", scopeID, period.Key(), err)
		}
	}
	return result, nil
}

// InvalidateForTransaction drops the cached snapshot of the month a
// transaction belongs to. Call it on every write that touches the
// transaction set.
func (s *Service) InvalidateForTransaction(ctx context.Context, scopeID, dateISO string) error {
	if err := s.snapshots.Invalidate(ctx, scopeID, domain.MonthKey(dateISO)); err != nil {
		return fmt.Errorf("invalidating snapshot %s/%s: %w", scopeID, domain.MonthKey(dateISO), err)
	}
	return nil
}

// InvalidateScope drops every cached snapshot of a scope. Structural
// changes such as a category rename affect all months at once.
func (s *Service) InvalidateScope(ctx context.Context, scopeID string) error {
	if err := s.snapshots.InvalidateAll(ctx, scopeID); err != nil {
		return fmt.Errorf("invalidating snapshots for scope %s: %w", scopeID, err)
	}
	return nil
}

func (s *Service) isClosedMonth(period domain.Period) bool {
	if period.Kind != domain.PeriodMonth {
		return false
	}
	now := s.now()
	if period.Year != now.Year() {
		return period.Year < now.Year()
	}
	return period.Month < int(now.Month())
}

func (s *Service) compute(period domain.Period, data Data) *domain.Summary {
	catNames := make(map[string]domain.Category, len(data.Categories))
	for _, c := range data.Categories {
		catNames[c.ID] = c
	}
	subNames := make(map[string]domain.Subcategory, len(data.Subcategories))
	for _, sub := range data.Subcategories {
		subNames[sub.ID] = sub
	}

	var inPeriod []domain.Transaction
	for _, tx := range data.Transactions {
		if period.Contains(tx.Date) {
			inPeriod = append(inPeriod, tx)
		}
	}

	result := &domain.Summary{}

	// All nature totals in integer cents; decimals only at the edges.
	var expenses, installments, refunds, credits, transfers int64
	catCents := make(map[string]int64)

	for _, tx := range inPeriod {
		nat := tx.EffectiveNature()
		// Pending means unconfirmed, or confirmed but still unclassified.
		// Refunds, payments and neutralized rows never need a category.
		noCategoryNeeded := nat == domain.NatureRefund || nat == domain.NaturePayment || tx.IsNeutralized
		if !tx.IsConfirmed || (!noCategoryNeeded && (tx.CategoryID == "" || tx.SubcategoryID == "")) {
			result.PendingCount++
		}
		// Migrated and neutralized transactions stay visible in listings
		// but are excluded from every money aggregate.
		if tx.MigratedFromShared != "" || tx.IsNeutralized {
			continue
		}
		cents := money.ToCents(tx.Amount)
		switch nat {
		case domain.NatureExpense:
			expenses += cents
		case domain.NatureInstallment:
			installments += cents
		case domain.NatureRefund:
			refunds += cents
		case domain.NatureCredit:
			credits += cents
		case domain.NatureTransfer:
			transfers += cents
		}
		// Payments settle a previous invoice and transfers move money
		// between own accounts; neither enters the category breakdown.
		if nat == domain.NaturePayment || nat == domain.NatureTransfer {
			continue
		}
		signed := cents
		if nat == domain.NatureRefund || nat == domain.NatureCredit {
			signed = -cents
		}
		catCents[tx.CategoryID] += signed
	}

	result.NatureTotals = domain.NatureTotals{
		Expenses:     money.FromCents(expenses),
		Installments: money.FromCents(installments),
		Refunds:      money.FromCents(refunds),
		Credits:      money.FromCents(credits),
		Transfers:    money.FromCents(transfers),
		InvoiceTotal: money.FromCents(expenses + installments),
	}
	result.TotalSpent = money.FromCents(expenses + installments - refunds - credits)
	result.NeedsAttention = result.PendingCount > 0

	for catID, cents := range catCents {
		entry := domain.CategorySummary{CategoryID: catID, Value: money.FromCents(cents)}
		switch {
		case catID == "":
			entry.Name = UnclassifiedBucket
		default:
			if cat, ok := catNames[catID]; ok {
				entry.Name = cat.Name
				entry.IsDeleted = cat.IsDeleted
				if cat.IsDeleted {
					entry.Name += DeletedSuffix
				}
			} else {
				entry.Name = UnclassifiedBucket
			}
		}
		result.TotalsByCategory = append(result.TotalsByCategory, entry)
	}
	sort.Slice(result.TotalsByCategory, func(i, j int) bool {
		a, b := result.TotalsByCategory[i], result.TotalsByCategory[j]
		if !a.Value.Equal(b.Value) {
			return a.Value.GreaterThan(b.Value)
		}
		return a.Name < b.Name
	})

	result.MonthlyEvolution = s.evolution(period, data.Transactions, catNames, subNames)
	return result
}

// evolution builds the trailing six-month series ending at the period's
// anchor month (the period's end for years and ranges).
func (s *Service) evolution(period domain.Period, txs []domain.Transaction, catNames map[string]domain.Category, subNames map[string]domain.Subcategory) []domain.TimeSeriesEntry {
	anchor := s.anchorMonth(period)

	type bucket struct {
		total int64
		byCat map[string]int64
		bySub map[string]int64
	}
	buckets := make(map[string]*bucket, evolutionMonths)
	order := make([]string, 0, evolutionMonths)
	labels := make(map[string]string, evolutionMonths)

	for i := evolutionMonths - 1; i >= 0; i-- {
		m := anchor.AddDate(0, -i, 0)
		key := fmt.Sprintf("%04d-%02d", m.Year(), int(m.Month()))
		buckets[key] = &bucket{byCat: make(map[string]int64), bySub: make(map[string]int64)}
		order = append(order, key)
		labels[key] = monthLabels[int(m.Month())-1]
	}

	for _, tx := range txs {
		b, ok := buckets[domain.MonthKey(tx.Date)]
		if !ok {
			continue
		}
		if tx.MigratedFromShared != "" || tx.IsNeutralized {
			continue
		}
		nat := tx.EffectiveNature()
		if nat == domain.NaturePayment || nat == domain.NatureTransfer {
			continue
		}
		signed := money.ToCents(tx.Amount)
		if nat == domain.NatureRefund || nat == domain.NatureCredit {
			signed = -signed
		}
		b.total += signed

		catName := UnclassifiedBucket
		if cat, ok := catNames[tx.CategoryID]; ok && tx.CategoryID != "" {
			catName = cat.Name
			if cat.IsDeleted {
				catName += DeletedSuffix
			}
		}
		b.byCat[catName] += signed
		if sub, ok := subNames[tx.SubcategoryID]; ok && tx.SubcategoryID != "" {
			b.bySub[catName+"::"+sub.Name] += signed
		}
	}

	series := make([]domain.TimeSeriesEntry, 0, len(order))
	for _, key := range order {
		b := buckets[key]
		entry := domain.TimeSeriesEntry{
			BucketKey:         key,
			Label:             labels[key],
			Total:             money.FromCents(b.total),
			CategoryTotals:    make(map[string]decimal.Decimal, len(b.byCat)),
			CategorySubtotals: make(map[string]decimal.Decimal, len(b.bySub)),
		}
		for name, cents := range b.byCat {
			entry.CategoryTotals[name] = money.FromCents(cents)
		}
		for name, cents := range b.bySub {
			entry.CategorySubtotals[name] = money.FromCents(cents)
		}
		series = append(series, entry)
	}
	return series
}

func (s *Service) anchorMonth(period domain.Period) time.Time {
	switch period.Kind {
	case domain.PeriodMonth:
		return time.Date(period.Year, time.Month(period.Month), 1, 0, 0, 0, 0, time.UTC)
	case domain.PeriodYear:
		now := s.now()
		if period.Year == now.Year() {
			return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
		}
		return time.Date(period.Year, time.December, 1, 0, 0, 0, 0, time.UTC)
	case domain.PeriodRange:
		if t, err := time.Parse("2006-01-02", period.EndISO); err == nil {
			return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
		}
	}
	now := s.now()
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
}
