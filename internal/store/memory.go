package store

import (
	"context"
	"sort"
	"sync"

	"github.com/rchaves649/finscope/internal/domain"
)

// NewMemory builds the in-memory implementation of the full contract. It is
// mutex-guarded per store, good enough for the single-writer-per-scope model
// the core assumes.
func NewMemory() *Stores {
	return &Stores{
		Transactions:   &memTransactions{byID: make(map[string]domain.Transaction)},
		Classification: &memClassification{entries: make(map[memKey]domain.ClassificationMemoryEntry)},
		Recurring:      &memRecurring{entries: make(map[memKey]domain.RecurringMemoryEntry)},
		Snapshots:      &memSnapshots{entries: make(map[memKey]domain.Summary)},
		ImportLog:      &memImportLog{entries: make(map[memKey]struct{})},
		Categories:     &memCategories{byID: make(map[string]domain.Category)},
		Subcategories:  &memSubcategories{byID: make(map[string]domain.Subcategory)},
	}
}

type memKey struct {
	scopeID string
	key     string
}

type memTransactions struct {
	mu   sync.Mutex
	byID map[string]domain.Transaction
}

func (m *memTransactions) GetAll(_ context.Context, scopeID string) ([]domain.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []domain.Transaction
	for _, tx := range m.byID {
		if tx.ScopeID == scopeID {
			out = append(out, tx)
		}
	}
	// Map iteration order is random; callers get a stable order.
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *memTransactions) GetByPeriod(ctx context.Context, scopeID string, period domain.Period) ([]domain.Transaction, error) {
	all, err := m.GetAll(ctx, scopeID)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, tx := range all {
		if period.Contains(tx.Date) {
			out = append(out, tx)
		}
	}
	return out, nil
}

func (m *memTransactions) Save(_ context.Context, tx domain.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[tx.ID] = tx
	return nil
}

func (m *memTransactions) SaveMany(_ context.Context, txs []domain.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, tx := range txs {
		m.byID[tx.ID] = tx
	}
	return nil
}

func (m *memTransactions) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[id]; !ok {
		return ErrNotFound
	}
	delete(m.byID, id)
	return nil
}

type memClassification struct {
	mu      sync.Mutex
	entries map[memKey]domain.ClassificationMemoryEntry
}

func (m *memClassification) Find(_ context.Context, scopeID, normalizedKey string) (*domain.ClassificationMemoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[memKey{scopeID, normalizedKey}]
	if !ok {
		return nil, ErrNotFound
	}
	return &entry, nil
}

func (m *memClassification) GetAll(_ context.Context, scopeID string) ([]domain.ClassificationMemoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.ClassificationMemoryEntry
	for k, entry := range m.entries {
		if k.scopeID == scopeID {
			out = append(out, entry)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NormalizedKey < out[j].NormalizedKey })
	return out, nil
}

func (m *memClassification) Save(_ context.Context, entry domain.ClassificationMemoryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[memKey{entry.ScopeID, entry.NormalizedKey}] = entry
	return nil
}

func (m *memClassification) Delete(_ context.Context, scopeID, normalizedKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, memKey{scopeID, normalizedKey})
	return nil
}

type memRecurring struct {
	mu      sync.Mutex
	entries map[memKey]domain.RecurringMemoryEntry
}

func (m *memRecurring) Find(_ context.Context, scopeID, normalizedKey string) (*domain.RecurringMemoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[memKey{scopeID, normalizedKey}]
	if !ok {
		return nil, ErrNotFound
	}
	return &entry, nil
}

func (m *memRecurring) GetAll(_ context.Context, scopeID string) ([]domain.RecurringMemoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.RecurringMemoryEntry
	for k, entry := range m.entries {
		if k.scopeID == scopeID {
			out = append(out, entry)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NormalizedKey < out[j].NormalizedKey })
	return out, nil
}

func (m *memRecurring) Save(_ context.Context, entry domain.RecurringMemoryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[memKey{entry.ScopeID, entry.NormalizedKey}] = entry
	return nil
}

func (m *memRecurring) Delete(_ context.Context, scopeID, normalizedKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, memKey{scopeID, normalizedKey})
	return nil
}

type memSnapshots struct {
	mu      sync.Mutex
	entries map[memKey]domain.Summary
}

func (m *memSnapshots) Get(_ context.Context, scopeID, periodKey string) (*domain.Summary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	summary, ok := m.entries[memKey{scopeID, periodKey}]
	if !ok {
		return nil, ErrNotFound
	}
	return &summary, nil
}

func (m *memSnapshots) Save(_ context.Context, scopeID, periodKey string, summary domain.Summary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[memKey{scopeID, periodKey}] = summary
	return nil
}

func (m *memSnapshots) Invalidate(_ context.Context, scopeID, periodKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, memKey{scopeID, periodKey})
	return nil
}

func (m *memSnapshots) InvalidateAll(_ context.Context, scopeID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k := range m.entries {
		if k.scopeID == scopeID {
			delete(m.entries, k)
		}
	}
	return nil
}

type memImportLog struct {
	mu      sync.Mutex
	entries map[memKey]struct{}
}

func (m *memImportLog) IsAlreadyImported(_ context.Context, scopeID, fileName string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.entries[memKey{scopeID, fileName}]
	return ok, nil
}

func (m *memImportLog) LogImport(_ context.Context, scopeID, fileName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[memKey{scopeID, fileName}] = struct{}{}
	return nil
}

type memCategories struct {
	mu   sync.Mutex
	byID map[string]domain.Category
}

func (m *memCategories) GetAll(_ context.Context, scopeID string) ([]domain.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Category
	for _, c := range m.byID {
		if c.ScopeID == scopeID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *memCategories) Save(_ context.Context, category domain.Category) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[category.ID] = category
	return nil
}

type memSubcategories struct {
	mu   sync.Mutex
	byID map[string]domain.Subcategory
}

func (m *memSubcategories) GetAll(_ context.Context, scopeID string) ([]domain.Subcategory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Subcategory
	for _, s := range m.byID {
		if s.ScopeID == scopeID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *memSubcategories) GetByCategory(ctx context.Context, scopeID, categoryID string) ([]domain.Subcategory, error) {
	all, err := m.GetAll(ctx, scopeID)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, s := range all {
		if s.CategoryID == categoryID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memSubcategories) Save(_ context.Context, sub domain.Subcategory) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[sub.ID] = sub
	return nil
}
