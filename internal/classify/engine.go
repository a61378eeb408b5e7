// Package classify implements the learning side of classification: looking
// up learned category history for a description and reinforcing it on every
// confirmed transaction.
package classify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rchaves649/finscope/internal/domain"
	"github.com/rchaves649/finscope/internal/money"
	"github.com/rchaves649/finscope/internal/nature"
	"github.com/rchaves649/finscope/internal/normalize"
	"github.com/rchaves649/finscope/internal/store"
)

// Suggestion is the resolved classification for a description. Nature is
// always set; category and subcategory are empty when nothing was learned
// yet, which signals a pending classification.
type Suggestion struct {
	CategoryID    string
	SubcategoryID string
	Nature        domain.Nature
	PayerShare    *domain.PayerShare
	FromRecurring bool
}

// Options controls what LearnFromConfirmation writes.
type Options struct {
	LearnCategory bool
	IsRecurring   bool
}

// scopeCache holds the O(1) lookup maps for one scope, loaded lazily from
// the stores. The cache is owned by the engine instance, not package state.
type scopeCache struct {
	memory    map[string]domain.ClassificationMemoryEntry
	recurring map[string]domain.RecurringMemoryEntry
}

// Engine resolves suggestions and applies confirmation learning. The core
// assumes single-writer access per scope; the mutex only guards the cache
// maps against concurrent readers inside one process.
type Engine struct {
	memory     store.ClassificationMemoryStore
	recurring  store.RecurringRuleStore
	classifier *nature.Classifier

	mu     sync.Mutex
	scopes map[string]*scopeCache

	now func() time.Time
}

// NewEngine creates a suggestion engine over the given stores.
func NewEngine(memory store.ClassificationMemoryStore, recurring store.RecurringRuleStore, classifier *nature.Classifier) *Engine {
	return &Engine{
		memory:     memory,
		recurring:  recurring,
		classifier: classifier,
		scopes:     make(map[string]*scopeCache),
		now:        time.Now,
	}
}

// Suggest resolves the classification for a description. Resolution order:
// an active recurring rule wins outright; otherwise the learned memory
// entry supplies category and subcategory; otherwise only the live-detected
// nature is returned.
func (e *Engine) Suggest(ctx context.Context, scopeID, description string) (Suggestion, error) {
	key := normalize.Key(description)

	cache, err := e.scope(ctx, scopeID)
	if err != nil {
		return Suggestion{}, err
	}

	e.mu.Lock()
	rule, hasRule := cache.recurring[key]
	entry, hasEntry := cache.memory[key]
	e.mu.Unlock()

	if hasRule {
		s := Suggestion{
			CategoryID:    rule.CategoryID,
			SubcategoryID: rule.SubcategoryID,
			Nature:        rule.Nature,
			FromRecurring: true,
		}
		if rule.PayerShare != nil {
			share := *rule.PayerShare
			s.PayerShare = &share
		}
		if s.Nature == "" {
			s.Nature = e.classifier.Detect(description)
		}
		return s, nil
	}

	if hasEntry {
		s := Suggestion{
			CategoryID:    entry.CategoryID,
			SubcategoryID: entry.SubcategoryID,
			Nature:        entry.Nature,
		}
		// Entries written before nature tracking carry no nature.
		if s.Nature == "" {
			s.Nature = e.classifier.Detect(description)
		}
		return s, nil
	}

	return Suggestion{Nature: e.classifier.Detect(description)}, nil
}

// LearnFromConfirmation is the write side of the engine, fired when a user
// confirms a transaction. LearnCategory reinforces the frequency-based
// memory; IsRecurring upserts a standing rule capturing category, nature
// and the cents-rounded payer split. Both writes are last-write-wins per
// (scope, key).
func (e *Engine) LearnFromConfirmation(ctx context.Context, tx domain.Transaction, opts Options) error {
	if !opts.LearnCategory && !opts.IsRecurring {
		return nil
	}
	key := normalize.Key(tx.Description)
	if key == "" || tx.CategoryID == "" {
		return nil
	}

	cache, err := e.scope(ctx, tx.ScopeID)
	if err != nil {
		return err
	}

	if opts.LearnCategory {
		entry := domain.ClassificationMemoryEntry{
			ScopeID:       tx.ScopeID,
			NormalizedKey: key,
			CategoryID:    tx.CategoryID,
			SubcategoryID: tx.SubcategoryID,
			Nature:        tx.Nature,
			UsageCount:    1,
			LastUsedAt:    e.now().Format(time.RFC3339),
		}
		e.mu.Lock()
		if prev, ok := cache.memory[key]; ok {
			entry.UsageCount = prev.UsageCount + 1
		}
		e.mu.Unlock()

		if err := e.memory.Save(ctx, entry); err != nil {
			return fmt.Errorf("saving classification memory for %q: %w", key, err)
		}
		e.mu.Lock()
		cache.memory[key] = entry
		e.mu.Unlock()
	}

	if opts.IsRecurring {
		rule := domain.RecurringMemoryEntry{
			ScopeID:       tx.ScopeID,
			NormalizedKey: key,
			CategoryID:    tx.CategoryID,
			SubcategoryID: tx.SubcategoryID,
			Nature:        tx.Nature,
		}
		if tx.PayerShare != nil {
			rule.PayerShare = &domain.PayerShare{
				A: money.RoundToTwo(tx.PayerShare.A),
				B: money.RoundToTwo(tx.PayerShare.B),
			}
		}
		if err := e.recurring.Save(ctx, rule); err != nil {
			return fmt.Errorf("saving recurring rule for %q: %w", key, err)
		}
		e.mu.Lock()
		cache.recurring[key] = rule
		e.mu.Unlock()
	}

	return nil
}

// scope returns the lookup cache for a scope, loading it on first use.
func (e *Engine) scope(ctx context.Context, scopeID string) (*scopeCache, error) {
	e.mu.Lock()
	if cache, ok := e.scopes[scopeID]; ok {
		e.mu.Unlock()
		return cache, nil
	}
	e.mu.Unlock()

	entries, err := e.memory.GetAll(ctx, scopeID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("loading classification memory for scope %s: %w", scopeID, err)
	}
	rules, err := e.recurring.GetAll(ctx, scopeID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("loading recurring rules for scope %s: %w", scopeID, err)
	}

	cache := &scopeCache{
		memory:    make(map[string]domain.ClassificationMemoryEntry, len(entries)),
		recurring: make(map[string]domain.RecurringMemoryEntry, len(rules)),
	}
	for _, entry := range entries {
		cache.memory[entry.NormalizedKey] = entry
	}
	for _, rule := range rules {
		cache.recurring[rule.NormalizedKey] = rule
	}

	e.mu.Lock()
	e.scopes[scopeID] = cache
	e.mu.Unlock()
	return cache, nil
}
