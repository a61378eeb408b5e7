package summary

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rchaves649/finscope/internal/domain"
	"github.com/rchaves649/finscope/internal/store"
)

func fixedNow() time.Time {
	return time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)
}

func newTestService() (*Service, *store.Stores) {
	stores := store.NewMemory()
	svc := NewService(stores.Snapshots).WithClock(fixedNow)
	return svc, stores
}

func tx(id, date string, amount string, nat domain.Nature, categoryID string) domain.Transaction {
	return domain.Transaction{
		ID:          id,
		ScopeID:     "s1",
		Date:        date,
		Description: id,
		Amount:      decimal.RequireFromString(amount),
		Nature:      nat,
		CategoryID:  categoryID,
		IsConfirmed: true,
	}
}

func TestComputeTotals(t *testing.T) {
	svc, _ := newTestService()

	data := Data{Transactions: []domain.Transaction{
		tx("e1", "2026-07-05", "100", domain.NatureExpense, ""),
		tx("i1", "2026-07-06", "50", domain.NatureInstallment, ""),
		tx("r1", "2026-07-07", "30", domain.NatureRefund, ""),
		tx("c1", "2026-07-08", "20", domain.NatureCredit, ""),
		tx("t1", "2026-07-09", "500", domain.NatureTransfer, ""),
		tx("p1", "2026-07-10", "300", domain.NaturePayment, ""),
	}}

	got, err := svc.Compute(context.Background(), "s1", domain.MonthPeriod(2026, 7), data)
	require.NoError(t, err)

	// 100 + 50 - 30 - 20
	assert.Equal(t, "100", got.TotalSpent.String())
	// The invoice total is gross: expenses plus installments, refunds
	// are reported separately.
	assert.Equal(t, "150", got.NatureTotals.InvoiceTotal.String())
	assert.Equal(t, "500", got.NatureTotals.Transfers.String())
}

func TestComputeSkipsNeutralizedAndMigrated(t *testing.T) {
	svc, _ := newTestService()

	neutral := tx("n1", "2026-07-05", "100", domain.NatureExpense, "")
	neutral.IsNeutralized = true
	migrated := tx("m1", "2026-07-06", "80", domain.NatureExpense, "")
	migrated.MigratedFromShared = "other-id"
	kept := tx("k1", "2026-07-07", "10", domain.NatureExpense, "")

	got, err := svc.Compute(context.Background(), "s1", domain.MonthPeriod(2026, 7), Data{
		Transactions: []domain.Transaction{neutral, migrated, kept},
	})
	require.NoError(t, err)
	assert.Equal(t, "10", got.TotalSpent.String())
}

func TestComputePendingCount(t *testing.T) {
	svc, _ := newTestService()

	unconfirmed := tx("u1", "2026-07-05", "10", domain.NatureExpense, "cat-a")
	unconfirmed.SubcategoryID = "sub-a"
	unconfirmed.IsConfirmed = false
	unclassified := tx("m1", "2026-07-06", "10", domain.NatureExpense, "")
	partial := tx("p1", "2026-07-07", "10", domain.NatureExpense, "cat-a")
	refund := tx("r1", "2026-07-08", "10", domain.NatureRefund, "")
	neutral := tx("n1", "2026-07-09", "10", domain.NatureExpense, "")
	neutral.IsNeutralized = true
	done := tx("d1", "2026-07-10", "10", domain.NatureExpense, "cat-a")
	done.SubcategoryID = "sub-a"

	got, err := svc.Compute(context.Background(), "s1", domain.MonthPeriod(2026, 7), Data{
		Transactions: []domain.Transaction{unconfirmed, unclassified, partial, refund, neutral, done},
	})
	require.NoError(t, err)
	// unconfirmed counts; confirmed rows count only while a category or
	// subcategory is missing, except refunds and neutralized rows.
	assert.Equal(t, 3, got.PendingCount)
	assert.True(t, got.NeedsAttention)
}

func TestComputeCategoryBreakdown(t *testing.T) {
	svc, _ := newTestService()

	food := tx("f1", "2026-07-05", "80", domain.NatureExpense, "")
	food.CategoryID = "cat-food"
	foodRefund := tx("f2", "2026-07-06", "30", domain.NatureRefund, "")
	foodRefund.CategoryID = "cat-food"
	ghost := tx("g1", "2026-07-07", "40", domain.NatureExpense, "")
	ghost.CategoryID = "cat-gone"
	loose := tx("l1", "2026-07-08", "15", domain.NatureExpense, "")

	got, err := svc.Compute(context.Background(), "s1", domain.MonthPeriod(2026, 7), Data{
		Transactions: []domain.Transaction{food, foodRefund, ghost, loose},
		Categories: []domain.Category{
			{ID: "cat-food", ScopeID: "s1", Name: "Alimentação"},
			{ID: "cat-gone", ScopeID: "s1", Name: "Antiga", IsDeleted: true},
		},
	})
	require.NoError(t, err)

	byName := make(map[string]domain.CategorySummary)
	for _, c := range got.TotalsByCategory {
		byName[c.Name] = c
	}
	assert.Equal(t, "50", byName["Alimentação"].Value.String(), "refund subtracts inside the category")
	assert.Equal(t, "40", byName["Antiga (Excluída)"].Value.String())
	assert.True(t, byName["Antiga (Excluída)"].IsDeleted)
	assert.Equal(t, "15", byName["Não Classificados"].Value.String())
}

func TestComputeCategoryBreakdownExcludesTransfers(t *testing.T) {
	svc, _ := newTestService()

	transfer := tx("t1", "2026-07-05", "500", domain.NatureTransfer, "cat-x")
	expense := tx("e1", "2026-07-06", "10", domain.NatureExpense, "cat-x")

	got, err := svc.Compute(context.Background(), "s1", domain.MonthPeriod(2026, 7), Data{
		Transactions: []domain.Transaction{transfer, expense},
		Categories:   []domain.Category{{ID: "cat-x", ScopeID: "s1", Name: "X"}},
	})
	require.NoError(t, err)

	require.Len(t, got.TotalsByCategory, 1)
	assert.Equal(t, "10", got.TotalsByCategory[0].Value.String(), "transfers move money, they are not spend")
	assert.Equal(t, "500", got.NatureTotals.Transfers.String())
}

func TestComputeMonthlyEvolution(t *testing.T) {
	svc, _ := newTestService()

	got, err := svc.Compute(context.Background(), "s1", domain.MonthPeriod(2026, 7), Data{
		Transactions: []domain.Transaction{
			tx("a", "2026-07-05", "100", domain.NatureExpense, ""),
			tx("b", "2026-05-05", "40", domain.NatureExpense, ""),
			tx("c", "2025-12-05", "999", domain.NatureExpense, ""), // outside the window
		},
	})
	require.NoError(t, err)

	require.Len(t, got.MonthlyEvolution, 6)
	assert.Equal(t, "2026-02", got.MonthlyEvolution[0].BucketKey)
	assert.Equal(t, "fev", got.MonthlyEvolution[0].Label)
	assert.Equal(t, "2026-07", got.MonthlyEvolution[5].BucketKey)
	assert.Equal(t, "jul", got.MonthlyEvolution[5].Label)
	assert.Equal(t, "100", got.MonthlyEvolution[5].Total.String())
	assert.Equal(t, "40", got.MonthlyEvolution[3].Total.String())
}

func TestComputeClosedMonthUsesSnapshot(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	data := Data{Transactions: []domain.Transaction{
		tx("a", "2026-07-05", "100", domain.NatureExpense, ""),
	}}

	// July 2026 is closed relative to the fixed clock (August 2026).
	first, err := svc.Compute(ctx, "s1", domain.MonthPeriod(2026, 7), data)
	require.NoError(t, err)
	assert.Equal(t, "100", first.TotalSpent.String())

	// Change the underlying data; the cached snapshot must still answer.
	data.Transactions = nil
	second, err := svc.Compute(ctx, "s1", domain.MonthPeriod(2026, 7), data)
	require.NoError(t, err)
	assert.Equal(t, "100", second.TotalSpent.String())

	// Invalidation forces a recompute over the new data.
	require.NoError(t, svc.InvalidateForTransaction(ctx, "s1", "2026-07-05"))
	third, err := svc.Compute(ctx, "s1", domain.MonthPeriod(2026, 7), data)
	require.NoError(t, err)
	assert.Equal(t, "0", third.TotalSpent.String())
}

func TestComputeCurrentMonthNeverCached(t *testing.T) {
	svc, stores := newTestService()
	ctx := context.Background()

	data := Data{Transactions: []domain.Transaction{
		tx("a", "2026-08-05", "100", domain.NatureExpense, ""),
	}}

	_, err := svc.Compute(ctx, "s1", domain.MonthPeriod(2026, 8), data)
	require.NoError(t, err)

	_, err = stores.Snapshots.Get(ctx, "s1", "2026-08")
	assert.ErrorIs(t, err, store.ErrNotFound, "the running month must not be snapshotted")

	data.Transactions = nil
	fresh, err := svc.Compute(ctx, "s1", domain.MonthPeriod(2026, 8), data)
	require.NoError(t, err)
	assert.Equal(t, "0", fresh.TotalSpent.String())
}

func TestInvalidateScope(t *testing.T) {
	svc, stores := newTestService()
	ctx := context.Background()

	require.NoError(t, stores.Snapshots.Save(ctx, "s1", "2026-06", domain.Summary{}))
	require.NoError(t, stores.Snapshots.Save(ctx, "s1", "2026-07", domain.Summary{}))

	require.NoError(t, svc.InvalidateScope(ctx, "s1"))

	_, err := stores.Snapshots.Get(ctx, "s1", "2026-06")
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = stores.Snapshots.Get(ctx, "s1", "2026-07")
	assert.ErrorIs(t, err, store.ErrNotFound)
}
