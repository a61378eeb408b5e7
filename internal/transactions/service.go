// Package transactions implements the user-facing lifecycle of a
// transaction: listing with legacy repair, manual entry, edits,
// confirmation with learning, and migration between shared and individual
// scopes.
package transactions

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rchaves649/finscope/internal/classify"
	"github.com/rchaves649/finscope/internal/domain"
	"github.com/rchaves649/finscope/internal/money"
	"github.com/rchaves649/finscope/internal/store"
	"github.com/rchaves649/finscope/internal/summary"
)

// Service coordinates transaction writes with learning and snapshot
// invalidation.
type Service struct {
	transactions  store.TransactionStore
	categories    store.CategoryStore
	subcategories store.SubcategoryStore
	engine        *classify.Engine
	summaries     *summary.Service

	learning bool
	newID    func() string
	now      func() time.Time
}

// NewService creates the transaction service with learning enabled.
func NewService(transactions store.TransactionStore, categories store.CategoryStore, subcategories store.SubcategoryStore, engine *classify.Engine, summaries *summary.Service) *Service {
	return &Service{
		transactions:  transactions,
		categories:    categories,
		subcategories: subcategories,
		engine:        engine,
		summaries:     summaries,
		learning:      true,
		newID:         uuid.NewString,
		now:           time.Now,
	}
}

// WithLearning toggles whether confirmations feed the classification
// engine.
func (s *Service) WithLearning(enabled bool) *Service {
	s.learning = enabled
	return s
}

// List returns a scope's transactions newest first. Legacy records missing
// fields newer code relies on are repaired in place: shared-scope
// transactions get the scope's default split and records without a
// classification status get one derived from their category. Repairs are
// persisted so the next read is clean.
func (s *Service) List(ctx context.Context, scope domain.Scope) ([]domain.Transaction, error) {
	txs, err := s.transactions.GetAll(ctx, scope.ScopeID)
	if err != nil {
		return nil, fmt.Errorf("loading transactions for scope %s: %w", scope.ScopeID, err)
	}

	var repaired []domain.Transaction
	for i := range txs {
		if s.sanitize(scope, &txs[i]) {
			repaired = append(repaired, txs[i])
		}
	}
	if len(repaired) > 0 {
		if err := s.transactions.SaveMany(ctx, repaired); err != nil {
			log.Printf("ERROR: persisting %d repaired transactions: %v", len(repaired), err)
		}
	}

	sort.Slice(txs, func(i, j int) bool {
		if txs[i].Date != txs[j].Date {
			return txs[i].Date > txs[j].Date
		}
		return txs[i].ID > txs[j].ID
	})
	return txs, nil
}

// Create validates and stores a manually entered transaction.
func (s *Service) Create(ctx context.Context, scope domain.Scope, tx domain.Transaction) (*domain.Transaction, error) {
	if tx.ID == "" {
		tx.ID = s.newID()
	}
	tx.ScopeID = scope.ScopeID
	tx.Amount = money.RoundToTwo(tx.Amount)
	if tx.ClassificationStatus == "" {
		tx.ClassificationStatus = domain.StatusManual
	}
	if scope.ScopeType == domain.ScopeShared && tx.PayerShare == nil {
		tx.PayerShare = s.defaultShare(scope, tx.Amount)
	}
	if err := tx.Validate(); err != nil {
		return nil, err
	}
	if err := s.transactions.Save(ctx, tx); err != nil {
		return nil, fmt.Errorf("saving transaction %s: %w", tx.ID, err)
	}
	s.invalidate(ctx, scope.ScopeID, tx.Date)
	return &tx, nil
}

// Update applies user edits. Confirmed transactions accept no edits unless
// they were auto-confirmed; changing the category of any transaction makes
// its classification manual and reopens it for confirmation.
func (s *Service) Update(ctx context.Context, scope domain.Scope, updated domain.Transaction) (*domain.Transaction, error) {
	current, err := s.find(ctx, scope.ScopeID, updated.ID)
	if err != nil {
		return nil, err
	}
	if current.IsConfirmed && !current.IsAutoConfirmed {
		return nil, &domain.ValidationError{
			Entity: "transaction", ID: current.ID, Field: "IsConfirmed",
			Message: "confirmed transactions cannot be edited",
		}
	}

	oldDate := current.Date
	updated.ScopeID = current.ScopeID
	updated.Amount = money.RoundToTwo(updated.Amount)
	if updated.PayerShare != nil {
		updated.PayerShare = &domain.PayerShare{
			A: money.RoundToTwo(updated.PayerShare.A),
			B: money.RoundToTwo(updated.PayerShare.B),
		}
	}
	if updated.CategoryID != current.CategoryID || updated.SubcategoryID != current.SubcategoryID {
		updated.ClassificationStatus = domain.StatusManual
		updated.IsSuggested = false
		updated.IsConfirmed = false
		updated.IsAutoConfirmed = false
	}
	if err := updated.Validate(); err != nil {
		return nil, err
	}
	if err := s.transactions.Save(ctx, updated); err != nil {
		return nil, fmt.Errorf("saving transaction %s: %w", updated.ID, err)
	}
	s.invalidate(ctx, scope.ScopeID, oldDate)
	if updated.Date != oldDate {
		s.invalidate(ctx, scope.ScopeID, updated.Date)
	}
	return &updated, nil
}

// ConfirmOptions controls what a confirmation teaches the engine.
type ConfirmOptions struct {
	LearnCategory bool
	IsRecurring   bool
}

// Confirm finalizes a transaction. Shared-scope transactions that were not
// migrated must carry a payer share summing exactly to the amount in cents;
// a mismatch fails with ShareMismatchError before anything is written.
// Learning failures do not fail the confirmation.
func (s *Service) Confirm(ctx context.Context, scope domain.Scope, id string, opts ConfirmOptions) (*domain.Transaction, error) {
	tx, err := s.find(ctx, scope.ScopeID, id)
	if err != nil {
		return nil, err
	}

	if scope.ScopeType == domain.ScopeShared && tx.MigratedFromShared == "" {
		want := money.ToCents(tx.Amount)
		var got int64
		if tx.PayerShare != nil {
			a, b := tx.PayerShare.Cents()
			got = a + b
		}
		if got != want {
			return nil, &domain.ShareMismatchError{TransactionID: tx.ID, WantCents: want, GotCents: got}
		}
	}

	tx.IsConfirmed = true
	tx.IsAutoConfirmed = false
	tx.ClassificationStatus = domain.StatusManual
	if opts.IsRecurring {
		tx.IsRecurring = true
	}
	if err := s.transactions.Save(ctx, *tx); err != nil {
		return nil, fmt.Errorf("saving transaction %s: %w", tx.ID, err)
	}

	if s.learning {
		if err := s.engine.LearnFromConfirmation(ctx, *tx, classify.Options{
			LearnCategory: opts.LearnCategory,
			IsRecurring:   opts.IsRecurring,
		}); err != nil {
			log.Printf("ERROR: learning from confirmation of %s: %v", tx.ID, err)
		}
	}

	s.invalidate(ctx, scope.ScopeID, tx.Date)
	return tx, nil
}

// MoveToIndividual copies a shared-scope transaction into one
// participant's individual scope and marks the original as migrated. Both
// records leave every aggregate: the original stays visible in the shared
// listing, the copy arrives unconfirmed with an audit trail pointing back.
// Category trees are per scope, so the classification is carried over by
// name where the individual scope has a matching category.
func (s *Service) MoveToIndividual(ctx context.Context, shared domain.Scope, id, individualScopeID string) (*domain.Transaction, error) {
	if shared.ScopeType != domain.ScopeShared {
		return nil, &domain.ValidationError{
			Entity: "scope", ID: shared.ScopeID, Field: "ScopeType",
			Message: "transactions can only be moved out of a shared scope",
		}
	}
	tx, err := s.find(ctx, shared.ScopeID, id)
	if err != nil {
		return nil, err
	}
	if tx.MigratedFromShared != "" {
		return nil, &domain.ValidationError{
			Entity: "transaction", ID: tx.ID, Field: "MigratedFromShared",
			Message: "transaction was already moved to an individual scope",
		}
	}

	catID, subID, err := s.remapClassification(ctx, shared.ScopeID, individualScopeID, tx.CategoryID, tx.SubcategoryID)
	if err != nil {
		return nil, err
	}

	copied := *tx
	copied.ID = s.newID()
	copied.ScopeID = individualScopeID
	copied.CategoryID = catID
	copied.SubcategoryID = subID
	copied.PayerShare = nil
	copied.IsConfirmed = false
	copied.IsAutoConfirmed = false
	copied.MigratedFromShared = shared.ScopeID
	copied.VisibleInShared = false
	copied.AuditTrail = &domain.AuditTrail{
		OriginID:        tx.ID,
		MigratedAt:      s.now().Format(time.RFC3339),
		PreviousScopeID: shared.ScopeID,
	}
	if err := copied.Validate(); err != nil {
		return nil, err
	}

	tx.MigratedFromShared = copied.ID
	tx.VisibleInShared = true

	if err := s.transactions.SaveMany(ctx, []domain.Transaction{*tx, copied}); err != nil {
		return nil, fmt.Errorf("migrating transaction %s: %w", tx.ID, err)
	}
	s.invalidate(ctx, shared.ScopeID, tx.Date)
	s.invalidate(ctx, individualScopeID, copied.Date)
	return &copied, nil
}

// RevertToShared undoes a migration: the individual copy is deleted and the
// shared original returns to the aggregates, unconfirmed and with its
// default split restored. A reclassification made on the copy is carried
// back by category name.
func (s *Service) RevertToShared(ctx context.Context, shared domain.Scope, id, individualScopeID string) (*domain.Transaction, error) {
	tx, err := s.find(ctx, shared.ScopeID, id)
	if err != nil {
		return nil, err
	}
	if tx.MigratedFromShared == "" {
		return nil, &domain.ValidationError{
			Entity: "transaction", ID: tx.ID, Field: "MigratedFromShared",
			Message: "transaction was not moved to an individual scope",
		}
	}

	copyID := tx.MigratedFromShared
	copied, err := s.find(ctx, individualScopeID, copyID)
	switch {
	case err == nil:
		catID, subID, rerr := s.remapClassification(ctx, individualScopeID, shared.ScopeID, copied.CategoryID, copied.SubcategoryID)
		if rerr != nil {
			return nil, rerr
		}
		tx.CategoryID = catID
		tx.SubcategoryID = subID
		if derr := s.transactions.Delete(ctx, copyID); derr != nil && !errors.Is(derr, store.ErrNotFound) {
			log.Printf("ERROR: deleting migrated copy %s: %v", copyID, derr)
		}
	case errors.Is(err, store.ErrNotFound):
		// The copy was deleted by hand; the original keeps its own
		// classification and the revert proceeds.
	default:
		return nil, err
	}
	s.invalidate(ctx, individualScopeID, tx.Date)

	tx.MigratedFromShared = ""
	tx.VisibleInShared = false
	tx.IsConfirmed = false
	tx.IsAutoConfirmed = false
	tx.PayerShare = s.defaultShare(shared, tx.Amount)

	if err := s.transactions.Save(ctx, *tx); err != nil {
		return nil, fmt.Errorf("reverting transaction %s: %w", tx.ID, err)
	}
	s.invalidate(ctx, shared.ScopeID, tx.Date)
	return tx, nil
}

// remapClassification translates a category and subcategory across scopes
// by name. IDs never transfer between scopes; a classification survives the
// move only when the target scope has a category with the same name, and a
// subcategory of it likewise.
func (s *Service) remapClassification(ctx context.Context, fromScopeID, toScopeID, categoryID, subcategoryID string) (string, string, error) {
	if categoryID == "" {
		return "", "", nil
	}
	sourceCats, err := s.categories.GetAll(ctx, fromScopeID)
	if err != nil {
		return "", "", fmt.Errorf("loading categories for scope %s: %w", fromScopeID, err)
	}
	var catName string
	for _, c := range sourceCats {
		if c.ID == categoryID {
			catName = c.Name
			break
		}
	}
	if catName == "" {
		return "", "", nil
	}

	targetCats, err := s.categories.GetAll(ctx, toScopeID)
	if err != nil {
		return "", "", fmt.Errorf("loading categories for scope %s: %w", toScopeID, err)
	}
	var targetCatID string
	for _, c := range targetCats {
		if c.Name == catName {
			targetCatID = c.ID
			break
		}
	}
	if targetCatID == "" || subcategoryID == "" {
		return targetCatID, "", nil
	}

	sourceSubs, err := s.subcategories.GetAll(ctx, fromScopeID)
	if err != nil {
		return "", "", fmt.Errorf("loading subcategories for scope %s: %w", fromScopeID, err)
	}
	var subName string
	for _, sub := range sourceSubs {
		if sub.ID == subcategoryID {
			subName = sub.Name
			break
		}
	}
	if subName == "" {
		return targetCatID, "", nil
	}
	targetSubs, err := s.subcategories.GetByCategory(ctx, toScopeID, targetCatID)
	if err != nil {
		return "", "", fmt.Errorf("loading subcategories for scope %s: %w", toScopeID, err)
	}
	for _, sub := range targetSubs {
		if sub.Name == subName {
			return targetCatID, sub.ID, nil
		}
	}
	return targetCatID, "", nil
}

// Delete removes a transaction and invalidates its month.
func (s *Service) Delete(ctx context.Context, scope domain.Scope, id string) error {
	tx, err := s.find(ctx, scope.ScopeID, id)
	if err != nil {
		return err
	}
	if err := s.transactions.Delete(ctx, id); err != nil {
		return fmt.Errorf("deleting transaction %s: %w", id, err)
	}
	s.invalidate(ctx, scope.ScopeID, tx.Date)
	return nil
}

// sanitize repairs one legacy record in place and reports whether it
// changed.
func (s *Service) sanitize(scope domain.Scope, tx *domain.Transaction) bool {
	changed := false
	if scope.ScopeType == domain.ScopeShared && tx.PayerShare == nil && tx.MigratedFromShared == "" {
		tx.PayerShare = s.defaultShare(scope, tx.Amount)
		changed = true
	}
	if tx.ClassificationStatus == "" {
		switch {
		case tx.CategoryID == "" || tx.SubcategoryID == "":
			tx.ClassificationStatus = domain.StatusPending
		case tx.IsSuggested:
			tx.ClassificationStatus = domain.StatusAuto
		default:
			tx.ClassificationStatus = domain.StatusManual
		}
		changed = true
	}
	return changed
}

func (s *Service) defaultShare(scope domain.Scope, amount decimal.Decimal) *domain.PayerShare {
	a, b := money.AllocateCents(money.ToCents(amount), scope.SplitA())
	return &domain.PayerShare{A: money.FromCents(a), B: money.FromCents(b)}
}

func (s *Service) find(ctx context.Context, scopeID, id string) (*domain.Transaction, error) {
	txs, err := s.transactions.GetAll(ctx, scopeID)
	if err != nil {
		return nil, fmt.Errorf("loading transactions for scope %s: %w", scopeID, err)
	}
	for i := range txs {
		if txs[i].ID == id {
			return &txs[i], nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Service) invalidate(ctx context.Context, scopeID, dateISO string) {
	if err := s.summaries.InvalidateForTransaction(ctx, scopeID, dateISO); err != nil {
		log.Printf("ERROR: %v", err)
	}
}
