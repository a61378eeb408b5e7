// Package store defines the persistence contract the core depends on. The
// host applications decide what backs it; this package also ships the
// reference in-memory implementation used by tests and the CLI default.
package store

import (
	"context"
	"errors"

	"github.com/rchaves649/finscope/internal/domain"
)

// ErrNotFound is returned by point lookups when no entity matches.
var ErrNotFound = errors.New("store: not found")

// TransactionStore persists transactions partitioned by scope.
type TransactionStore interface {
	GetAll(ctx context.Context, scopeID string) ([]domain.Transaction, error)
	GetByPeriod(ctx context.Context, scopeID string, period domain.Period) ([]domain.Transaction, error)
	Save(ctx context.Context, tx domain.Transaction) error
	// SaveMany persists a batch as one unit: either every transaction is
	// accepted or none is.
	SaveMany(ctx context.Context, txs []domain.Transaction) error
	Delete(ctx context.Context, id string) error
}

// ClassificationMemoryStore persists frequency-based learning entries keyed
// by (scope, normalized key). Find returns ErrNotFound on a miss.
type ClassificationMemoryStore interface {
	Find(ctx context.Context, scopeID, normalizedKey string) (*domain.ClassificationMemoryEntry, error)
	GetAll(ctx context.Context, scopeID string) ([]domain.ClassificationMemoryEntry, error)
	Save(ctx context.Context, entry domain.ClassificationMemoryEntry) error
	Delete(ctx context.Context, scopeID, normalizedKey string) error
}

// RecurringRuleStore persists standing classification rules keyed by
// (scope, normalized key). Find returns ErrNotFound on a miss.
type RecurringRuleStore interface {
	Find(ctx context.Context, scopeID, normalizedKey string) (*domain.RecurringMemoryEntry, error)
	GetAll(ctx context.Context, scopeID string) ([]domain.RecurringMemoryEntry, error)
	Save(ctx context.Context, entry domain.RecurringMemoryEntry) error
	Delete(ctx context.Context, scopeID, normalizedKey string) error
}

// SnapshotStore caches computed summaries for closed months. Get returns
// ErrNotFound on a miss; Invalidate of an absent key is a no-op.
type SnapshotStore interface {
	Get(ctx context.Context, scopeID, periodKey string) (*domain.Summary, error)
	Save(ctx context.Context, scopeID, periodKey string, summary domain.Summary) error
	Invalidate(ctx context.Context, scopeID, periodKey string) error
	InvalidateAll(ctx context.Context, scopeID string) error
}

// ImportLogStore records which statement files were already imported. It is
// advisory only; the duplicate detector is the correctness mechanism.
type ImportLogStore interface {
	IsAlreadyImported(ctx context.Context, scopeID, fileName string) (bool, error)
	LogImport(ctx context.Context, scopeID, fileName string) error
}

// CategoryStore persists categories. Deletion is a tombstone written
// through Save; referenced categories are never physically removed.
type CategoryStore interface {
	GetAll(ctx context.Context, scopeID string) ([]domain.Category, error)
	Save(ctx context.Context, category domain.Category) error
}

// SubcategoryStore persists subcategories, same tombstone rule.
type SubcategoryStore interface {
	GetAll(ctx context.Context, scopeID string) ([]domain.Subcategory, error)
	GetByCategory(ctx context.Context, scopeID, categoryID string) ([]domain.Subcategory, error)
	Save(ctx context.Context, sub domain.Subcategory) error
}

// Stores bundles one implementation of the full contract.
type Stores struct {
	Transactions   TransactionStore
	Classification ClassificationMemoryStore
	Recurring      RecurringRuleStore
	Snapshots      SnapshotStore
	ImportLog      ImportLogStore
	Categories     CategoryStore
	Subcategories  SubcategoryStore
}
