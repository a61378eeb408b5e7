package classify

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rchaves649/finscope/internal/domain"
	"github.com/rchaves649/finscope/internal/nature"
	"github.com/rchaves649/finscope/internal/store"
)

func newTestEngine(t *testing.T) (*Engine, *store.Stores) {
	t.Helper()
	classifier, err := nature.LoadEmbedded()
	require.NoError(t, err)
	stores := store.NewMemory()
	return NewEngine(stores.Classification, stores.Recurring, classifier), stores
}

func TestSuggestUnknownDescription(t *testing.T) {
	engine, _ := newTestEngine(t)

	sug, err := engine.Suggest(context.Background(), "s1", "UBER TRIP SAO PAULO")
	require.NoError(t, err)
	assert.Empty(t, sug.CategoryID)
	assert.Equal(t, domain.NatureExpense, sug.Nature)
	assert.False(t, sug.FromRecurring)
}

func TestSuggestFromMemory(t *testing.T) {
	engine, stores := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, stores.Classification.Save(ctx, domain.ClassificationMemoryEntry{
		ScopeID:       "s1",
		NormalizedKey: "UBER TRIP SAO PAULO",
		CategoryID:    "cat-transport",
		SubcategoryID: "sub-rides",
		UsageCount:    3,
	}))

	sug, err := engine.Suggest(ctx, "s1", "Uber *Trip São Paulo")
	require.NoError(t, err)
	assert.Equal(t, "cat-transport", sug.CategoryID)
	assert.Equal(t, "sub-rides", sug.SubcategoryID)
	// Entry carries no nature; live detection fills it in.
	assert.Equal(t, domain.NatureExpense, sug.Nature)
}

func TestSuggestRecurringWins(t *testing.T) {
	engine, stores := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, stores.Classification.Save(ctx, domain.ClassificationMemoryEntry{
		ScopeID: "s1", NormalizedKey: "NETFLIX COM", CategoryID: "cat-old",
	}))
	share := &domain.PayerShare{A: decimal.NewFromInt(30), B: decimal.NewFromInt(15)}
	require.NoError(t, stores.Recurring.Save(ctx, domain.RecurringMemoryEntry{
		ScopeID:       "s1",
		NormalizedKey: "NETFLIX COM",
		CategoryID:    "cat-streaming",
		Nature:        domain.NatureExpense,
		PayerShare:    share,
	}))

	sug, err := engine.Suggest(ctx, "s1", "NETFLIX.COM")
	require.NoError(t, err)
	assert.True(t, sug.FromRecurring)
	assert.Equal(t, "cat-streaming", sug.CategoryID)
	require.NotNil(t, sug.PayerShare)
	assert.True(t, sug.PayerShare.A.Equal(decimal.NewFromInt(30)))
}

func TestSuggestScopeIsolation(t *testing.T) {
	engine, stores := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, stores.Classification.Save(ctx, domain.ClassificationMemoryEntry{
		ScopeID: "s1", NormalizedKey: "IFOOD", CategoryID: "cat-food",
	}))

	sug, err := engine.Suggest(ctx, "s2", "IFOOD")
	require.NoError(t, err)
	assert.Empty(t, sug.CategoryID, "learning must not leak across scopes")
}

func TestLearnFromConfirmationMemory(t *testing.T) {
	engine, stores := newTestEngine(t)
	engine.now = func() time.Time { return time.Date(2026, 7, 15, 12, 0, 0, 0, time.UTC) }
	ctx := context.Background()

	tx := domain.Transaction{
		ID:          "t1",
		ScopeID:     "s1",
		Description: "iFood *Pedido",
		CategoryID:  "cat-food",
		Nature:      domain.NatureExpense,
	}
	require.NoError(t, engine.LearnFromConfirmation(ctx, tx, Options{LearnCategory: true}))
	require.NoError(t, engine.LearnFromConfirmation(ctx, tx, Options{LearnCategory: true}))

	entry, err := stores.Classification.Find(ctx, "s1", "IFOOD PEDIDO")
	require.NoError(t, err)
	assert.Equal(t, "cat-food", entry.CategoryID)
	assert.Equal(t, 2, entry.UsageCount, "second confirmation must reinforce the count")
	assert.Equal(t, "2026-07-15T12:00:00Z", entry.LastUsedAt)
}

func TestLearnFromConfirmationRecurring(t *testing.T) {
	engine, stores := newTestEngine(t)
	ctx := context.Background()

	tx := domain.Transaction{
		ID:          "t1",
		ScopeID:     "s1",
		Description: "NETFLIX.COM",
		CategoryID:  "cat-streaming",
		Nature:      domain.NatureExpense,
		PayerShare: &domain.PayerShare{
			A: decimal.RequireFromString("22.497"),
			B: decimal.RequireFromString("22.503"),
		},
	}
	require.NoError(t, engine.LearnFromConfirmation(ctx, tx, Options{IsRecurring: true}))

	rule, err := stores.Recurring.Find(ctx, "s1", "NETFLIX COM")
	require.NoError(t, err)
	require.NotNil(t, rule.PayerShare)
	assert.Equal(t, "22.5", rule.PayerShare.A.String(), "stored share must be cents-rounded")
	assert.Equal(t, "22.5", rule.PayerShare.B.String())
}

func TestLearnFromConfirmationSkipsUncategorized(t *testing.T) {
	engine, stores := newTestEngine(t)
	ctx := context.Background()

	tx := domain.Transaction{ID: "t1", ScopeID: "s1", Description: "MISTERY", Nature: domain.NatureExpense}
	require.NoError(t, engine.LearnFromConfirmation(ctx, tx, Options{LearnCategory: true}))

	_, err := stores.Classification.Find(ctx, "s1", "MISTERY")
	assert.ErrorIs(t, err, store.ErrNotFound)
}
