package importer

import (
	"context"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rchaves649/finscope/internal/classify"
	"github.com/rchaves649/finscope/internal/dedup"
	"github.com/rchaves649/finscope/internal/domain"
	"github.com/rchaves649/finscope/internal/nature"
	"github.com/rchaves649/finscope/internal/store"
	"github.com/rchaves649/finscope/internal/summary"
)

func newTestPreparer(t *testing.T) (*Preparer, *store.Stores) {
	t.Helper()
	classifier, err := nature.LoadEmbedded()
	require.NoError(t, err)
	stores := store.NewMemory()
	engine := classify.NewEngine(stores.Classification, stores.Recurring, classifier)
	summaries := summary.NewService(stores.Snapshots)
	prep := NewPreparer(stores.Transactions, stores.ImportLog, summaries, engine, dedup.NewPrefixWindowMatcher())

	seq := 0
	prep.newID = func() string {
		seq++
		return fmt.Sprintf("tx-%d", seq)
	}
	return prep, stores
}

func individualScope() domain.Scope {
	return domain.Scope{ScopeID: "personal", ScopeType: domain.ScopeIndividual, Name: "Personal"}
}

func sharedScope() domain.Scope {
	return domain.Scope{
		ScopeID:      "casa",
		ScopeType:    domain.ScopeShared,
		Name:         "Casa",
		DefaultSplit: &domain.Split{A: decimal.NewFromInt(60), B: decimal.NewFromInt(40)},
	}
}

const uberStatement = "Data;Descrição;Valor\n" +
	"15/07/2026;UBER TRIP;25,50\n" +
	"16/07/2026;UBER TRIP;25,50\n"

func TestPrepareEndToEnd(t *testing.T) {
	prep, _ := newTestPreparer(t)

	res, err := prep.Prepare(context.Background(), individualScope(), uberStatement, "extrato.csv")
	require.NoError(t, err)
	require.Len(t, res.Transactions, 2)
	assert.Zero(t, res.Dropped)

	tx := res.Transactions[0]
	assert.Equal(t, "2026-07-15", tx.Date)
	assert.Equal(t, "UBER TRIP", tx.Description)
	assert.True(t, tx.Amount.Equal(decimal.RequireFromString("25.5")))
	assert.Equal(t, domain.NatureExpense, tx.Nature)
	assert.Equal(t, domain.StatusPending, tx.ClassificationStatus)
	assert.False(t, tx.IsConfirmed)
}

func TestPrepareReImportIsIdempotent(t *testing.T) {
	prep, _ := newTestPreparer(t)
	ctx := context.Background()
	scope := individualScope()

	res, err := prep.Prepare(ctx, scope, uberStatement, "extrato.csv")
	require.NoError(t, err)
	require.NoError(t, prep.Commit(ctx, scope, res, "extrato.csv"))

	again, err := prep.Prepare(ctx, scope, uberStatement, "extrato.csv")
	require.NoError(t, err)
	assert.Empty(t, again.Transactions, "every row of a re-imported file duplicates storage")
	assert.Equal(t, 2, again.Dropped)
	assert.True(t, again.DuplicateFile)
}

func TestPrepareNeutralizesRefundPair(t *testing.T) {
	prep, _ := newTestPreparer(t)

	text := "Data;Descrição;Valor\n" +
		"10/07/2026;IFOOD RESTAURANTE;100,00\n" +
		"12/07/2026;ESTORNO IFOOD RESTAURANTE;-100,00\n"

	res, err := prep.Prepare(context.Background(), individualScope(), text, "fatura.csv")
	require.NoError(t, err)
	require.Len(t, res.Transactions, 2)

	assert.True(t, res.Transactions[0].IsNeutralized)
	assert.True(t, res.Transactions[1].IsNeutralized)
	assert.Equal(t, domain.NatureRefund, res.Transactions[1].Nature)
	// Amounts are stored non-negative; the nature carries the direction.
	assert.False(t, res.Transactions[1].Amount.IsNegative())
}

func TestPrepareNegativeRowBecomesRefund(t *testing.T) {
	prep, _ := newTestPreparer(t)

	text := "Data;Descrição;Valor\n" +
		"10/07/2026;DEVOLUCAO LOJA;-55,00\n"

	res, err := prep.Prepare(context.Background(), individualScope(), text, "")
	require.NoError(t, err)
	require.Len(t, res.Transactions, 1)
	assert.Equal(t, domain.NatureRefund, res.Transactions[0].Nature)
	assert.True(t, res.Transactions[0].Amount.Equal(decimal.NewFromInt(55)))
}

func TestPrepareSharedScopeAllocatesSplit(t *testing.T) {
	prep, _ := newTestPreparer(t)

	text := "Data;Descrição;Valor\n" +
		"10/07/2026;SUPERMERCADO;100,01\n"

	res, err := prep.Prepare(context.Background(), sharedScope(), text, "")
	require.NoError(t, err)
	require.Len(t, res.Transactions, 1)

	share := res.Transactions[0].PayerShare
	require.NotNil(t, share)
	a, b := share.Cents()
	assert.Equal(t, int64(6001), a, "60% of 10001 cents, rounded")
	assert.Equal(t, int64(4000), b)
	assert.Equal(t, int64(10001), a+b, "parts must sum to the amount exactly")
}

func TestPrepareAppliesSuggestion(t *testing.T) {
	prep, stores := newTestPreparer(t)
	ctx := context.Background()

	require.NoError(t, stores.Classification.Save(ctx, domain.ClassificationMemoryEntry{
		ScopeID:       "personal",
		NormalizedKey: "UBER TRIP",
		CategoryID:    "cat-transport",
	}))

	res, err := prep.Prepare(ctx, individualScope(), uberStatement, "")
	require.NoError(t, err)
	require.Len(t, res.Transactions, 2)
	tx := res.Transactions[0]
	assert.Equal(t, "cat-transport", tx.CategoryID)
	assert.Equal(t, domain.StatusAuto, tx.ClassificationStatus)
	assert.True(t, tx.IsSuggested)
}

func TestCommitPersistsAndLogs(t *testing.T) {
	prep, stores := newTestPreparer(t)
	ctx := context.Background()
	scope := individualScope()

	res, err := prep.Prepare(ctx, scope, uberStatement, "extrato.csv")
	require.NoError(t, err)
	require.NoError(t, prep.Commit(ctx, scope, res, "extrato.csv"))

	saved, err := stores.Transactions.GetAll(ctx, scope.ScopeID)
	require.NoError(t, err)
	assert.Len(t, saved, 2)

	logged, err := stores.ImportLog.IsAlreadyImported(ctx, scope.ScopeID, "extrato.csv")
	require.NoError(t, err)
	assert.True(t, logged)
}

func TestCommitInvalidatesSnapshots(t *testing.T) {
	prep, stores := newTestPreparer(t)
	ctx := context.Background()
	scope := individualScope()

	stale := domain.Summary{PendingCount: 99}
	require.NoError(t, stores.Snapshots.Save(ctx, scope.ScopeID, "2026-07", stale))

	res, err := prep.Prepare(ctx, scope, uberStatement, "extrato.csv")
	require.NoError(t, err)
	require.NoError(t, prep.Commit(ctx, scope, res, "extrato.csv"))

	_, err = stores.Snapshots.Get(ctx, scope.ScopeID, "2026-07")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestPrepareEmptyInput(t *testing.T) {
	prep, _ := newTestPreparer(t)
	res, err := prep.Prepare(context.Background(), individualScope(), "", "")
	require.NoError(t, err)
	assert.Empty(t, res.Transactions)
}
