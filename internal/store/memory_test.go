package store

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rchaves649/finscope/internal/domain"
)

func memTx(id, scopeID, date string) domain.Transaction {
	return domain.Transaction{
		ID:          id,
		ScopeID:     scopeID,
		Date:        date,
		Description: "D " + id,
		Amount:      decimal.NewFromInt(10),
		Nature:      domain.NatureExpense,
	}
}

func TestMemoryTransactions(t *testing.T) {
	stores := NewMemory()
	ctx := context.Background()

	require.NoError(t, stores.Transactions.Save(ctx, memTx("a", "s1", "2026-07-10")))
	require.NoError(t, stores.Transactions.Save(ctx, memTx("b", "s1", "2026-06-01")))
	require.NoError(t, stores.Transactions.Save(ctx, memTx("c", "s2", "2026-07-10")))

	txs, err := stores.Transactions.GetAll(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, txs, 2, "scopes are isolated")

	july, err := stores.Transactions.GetByPeriod(ctx, "s1", domain.MonthPeriod(2026, 7))
	require.NoError(t, err)
	require.Len(t, july, 1)
	assert.Equal(t, "a", july[0].ID)

	require.NoError(t, stores.Transactions.Delete(ctx, "a"))
	assert.ErrorIs(t, stores.Transactions.Delete(ctx, "a"), ErrNotFound)
}

func TestMemorySaveManyOverwrites(t *testing.T) {
	stores := NewMemory()
	ctx := context.Background()

	tx := memTx("a", "s1", "2026-07-10")
	require.NoError(t, stores.Transactions.SaveMany(ctx, []domain.Transaction{tx}))

	tx.Description = "changed"
	require.NoError(t, stores.Transactions.SaveMany(ctx, []domain.Transaction{tx}))

	txs, err := stores.Transactions.GetAll(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, "changed", txs[0].Description)
}

func TestMemoryClassification(t *testing.T) {
	stores := NewMemory()
	ctx := context.Background()

	_, err := stores.Classification.Find(ctx, "s1", "KEY")
	assert.ErrorIs(t, err, ErrNotFound)

	entry := domain.ClassificationMemoryEntry{ScopeID: "s1", NormalizedKey: "KEY", CategoryID: "c1", UsageCount: 1}
	require.NoError(t, stores.Classification.Save(ctx, entry))

	found, err := stores.Classification.Find(ctx, "s1", "KEY")
	require.NoError(t, err)
	assert.Equal(t, "c1", found.CategoryID)

	// Last write wins per (scope, key).
	entry.CategoryID = "c2"
	require.NoError(t, stores.Classification.Save(ctx, entry))
	found, err = stores.Classification.Find(ctx, "s1", "KEY")
	require.NoError(t, err)
	assert.Equal(t, "c2", found.CategoryID)

	require.NoError(t, stores.Classification.Delete(ctx, "s1", "KEY"))
	_, err = stores.Classification.Find(ctx, "s1", "KEY")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemorySnapshots(t *testing.T) {
	stores := NewMemory()
	ctx := context.Background()

	_, err := stores.Snapshots.Get(ctx, "s1", "2026-07")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, stores.Snapshots.Save(ctx, "s1", "2026-07", domain.Summary{PendingCount: 3}))
	got, err := stores.Snapshots.Get(ctx, "s1", "2026-07")
	require.NoError(t, err)
	assert.Equal(t, 3, got.PendingCount)

	// Invalidating an absent key is a no-op.
	require.NoError(t, stores.Snapshots.Invalidate(ctx, "s1", "2099-01"))

	require.NoError(t, stores.Snapshots.Save(ctx, "s1", "2026-06", domain.Summary{}))
	require.NoError(t, stores.Snapshots.InvalidateAll(ctx, "s1"))
	_, err = stores.Snapshots.Get(ctx, "s1", "2026-06")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = stores.Snapshots.Get(ctx, "s1", "2026-07")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryImportLog(t *testing.T) {
	stores := NewMemory()
	ctx := context.Background()

	dup, err := stores.ImportLog.IsAlreadyImported(ctx, "s1", "extrato.csv")
	require.NoError(t, err)
	assert.False(t, dup)

	require.NoError(t, stores.ImportLog.LogImport(ctx, "s1", "extrato.csv"))
	dup, err = stores.ImportLog.IsAlreadyImported(ctx, "s1", "extrato.csv")
	require.NoError(t, err)
	assert.True(t, dup)

	dup, err = stores.ImportLog.IsAlreadyImported(ctx, "s2", "extrato.csv")
	require.NoError(t, err)
	assert.False(t, dup, "import log is per scope")
}

func TestMemorySubcategories(t *testing.T) {
	stores := NewMemory()
	ctx := context.Background()

	require.NoError(t, stores.Subcategories.Save(ctx, domain.Subcategory{ID: "sub1", ScopeID: "s1", CategoryID: "c1", Name: "A"}))
	require.NoError(t, stores.Subcategories.Save(ctx, domain.Subcategory{ID: "sub2", ScopeID: "s1", CategoryID: "c2", Name: "B"}))

	all, err := stores.Subcategories.GetAll(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	byCat, err := stores.Subcategories.GetByCategory(ctx, "s1", "c1")
	require.NoError(t, err)
	require.Len(t, byCat, 1)
	assert.Equal(t, "sub1", byCat[0].ID)
}
