// Package categories manages the category tree of a scope. Deletion is
// always a tombstone so historical aggregates keep resolving names.
package categories

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/rchaves649/finscope/internal/domain"
	"github.com/rchaves649/finscope/internal/store"
	"github.com/rchaves649/finscope/internal/summary"
)

// Service coordinates structural category changes with cache invalidation.
// Every mutation drops the scope's entire snapshot cache because names and
// tombstones surface in every cached month.
type Service struct {
	categories    store.CategoryStore
	subcategories store.SubcategoryStore
	summaries     *summary.Service

	newID func() string
}

// NewService creates the category service.
func NewService(categories store.CategoryStore, subcategories store.SubcategoryStore, summaries *summary.Service) *Service {
	return &Service{
		categories:    categories,
		subcategories: subcategories,
		summaries:     summaries,
		newID:         uuid.NewString,
	}
}

// List returns a scope's live categories sorted by name. Tombstoned
// categories are excluded; they only surface through summaries.
func (s *Service) List(ctx context.Context, scopeID string) ([]domain.Category, error) {
	all, err := s.categories.GetAll(ctx, scopeID)
	if err != nil {
		return nil, fmt.Errorf("loading categories for scope %s: %w", scopeID, err)
	}
	live := all[:0]
	for _, c := range all {
		if !c.IsDeleted {
			live = append(live, c)
		}
	}
	sort.Slice(live, func(i, j int) bool { return live[i].Name < live[j].Name })
	return live, nil
}

// ListSubcategories returns the live subcategories of one category, sorted
// by name.
func (s *Service) ListSubcategories(ctx context.Context, scopeID, categoryID string) ([]domain.Subcategory, error) {
	all, err := s.subcategories.GetByCategory(ctx, scopeID, categoryID)
	if err != nil {
		return nil, fmt.Errorf("loading subcategories for category %s: %w", categoryID, err)
	}
	live := all[:0]
	for _, sub := range all {
		if !sub.IsDeleted {
			live = append(live, sub)
		}
	}
	sort.Slice(live, func(i, j int) bool { return live[i].Name < live[j].Name })
	return live, nil
}

// Create adds a category. Names must be non-empty and unique among the
// scope's live categories, case-insensitively.
func (s *Service) Create(ctx context.Context, scopeID, name string) (*domain.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, &domain.ValidationError{Entity: "category", Field: "Name", Message: "category name cannot be empty"}
	}
	existing, err := s.List(ctx, scopeID)
	if err != nil {
		return nil, err
	}
	for _, c := range existing {
		if strings.EqualFold(c.Name, name) {
			return nil, &domain.ValidationError{Entity: "category", Field: "Name", Value: name, Message: "a category with this name already exists"}
		}
	}

	cat := domain.Category{ID: s.newID(), ScopeID: scopeID, Name: name}
	if err := s.categories.Save(ctx, cat); err != nil {
		return nil, fmt.Errorf("saving category %q: %w", name, err)
	}
	s.invalidate(ctx, scopeID)
	return &cat, nil
}

// Rename changes a category's display name. Past summaries pick the new
// name up on recompute.
func (s *Service) Rename(ctx context.Context, scopeID, categoryID, name string) (*domain.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, &domain.ValidationError{Entity: "category", ID: categoryID, Field: "Name", Message: "category name cannot be empty"}
	}
	cat, err := s.findCategory(ctx, scopeID, categoryID)
	if err != nil {
		return nil, err
	}
	cat.Name = name
	if err := s.categories.Save(ctx, *cat); err != nil {
		return nil, fmt.Errorf("saving category %s: %w", categoryID, err)
	}
	s.invalidate(ctx, scopeID)
	return cat, nil
}

// Delete tombstones a category and cascades the tombstone to all its
// subcategories. Transactions keep their category IDs.
func (s *Service) Delete(ctx context.Context, scopeID, categoryID string) error {
	cat, err := s.findCategory(ctx, scopeID, categoryID)
	if err != nil {
		return err
	}
	cat.IsDeleted = true
	if err := s.categories.Save(ctx, *cat); err != nil {
		return fmt.Errorf("tombstoning category %s: %w", categoryID, err)
	}

	subs, err := s.subcategories.GetByCategory(ctx, scopeID, categoryID)
	if err != nil {
		return fmt.Errorf("loading subcategories of %s: %w", categoryID, err)
	}
	for _, sub := range subs {
		if sub.IsDeleted {
			continue
		}
		sub.IsDeleted = true
		if err := s.subcategories.Save(ctx, sub); err != nil {
			return fmt.Errorf("tombstoning subcategory %s: %w", sub.ID, err)
		}
	}

	s.invalidate(ctx, scopeID)
	return nil
}

// CreateSubcategory adds a subcategory under a live category.
func (s *Service) CreateSubcategory(ctx context.Context, scopeID, categoryID, name string) (*domain.Subcategory, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, &domain.ValidationError{Entity: "subcategory", Field: "Name", Message: "subcategory name cannot be empty"}
	}
	cat, err := s.findCategory(ctx, scopeID, categoryID)
	if err != nil {
		return nil, err
	}
	if cat.IsDeleted {
		return nil, &domain.ValidationError{Entity: "category", ID: categoryID, Field: "IsDeleted", Message: "cannot add a subcategory to a deleted category"}
	}
	siblings, err := s.ListSubcategories(ctx, scopeID, categoryID)
	if err != nil {
		return nil, err
	}
	for _, sub := range siblings {
		if strings.EqualFold(sub.Name, name) {
			return nil, &domain.ValidationError{Entity: "subcategory", Field: "Name", Value: name, Message: "a subcategory with this name already exists"}
		}
	}

	sub := domain.Subcategory{ID: s.newID(), ScopeID: scopeID, CategoryID: categoryID, Name: name}
	if err := s.subcategories.Save(ctx, sub); err != nil {
		return nil, fmt.Errorf("saving subcategory %q: %w", name, err)
	}
	s.invalidate(ctx, scopeID)
	return &sub, nil
}

// DeleteSubcategory tombstones one subcategory.
func (s *Service) DeleteSubcategory(ctx context.Context, scopeID, subcategoryID string) error {
	all, err := s.subcategories.GetAll(ctx, scopeID)
	if err != nil {
		return fmt.Errorf("loading subcategories for scope %s: %w", scopeID, err)
	}
	for _, sub := range all {
		if sub.ID != subcategoryID {
			continue
		}
		sub.IsDeleted = true
		if err := s.subcategories.Save(ctx, sub); err != nil {
			return fmt.Errorf("tombstoning subcategory %s: %w", subcategoryID, err)
		}
		s.invalidate(ctx, scopeID)
		return nil
	}
	return store.ErrNotFound
}

func (s *Service) findCategory(ctx context.Context, scopeID, categoryID string) (*domain.Category, error) {
	all, err := s.categories.GetAll(ctx, scopeID)
	if err != nil {
		return nil, fmt.Errorf("loading categories for scope %s: %w", scopeID, err)
	}
	for i := range all {
		if all[i].ID == categoryID {
			return &all[i], nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Service) invalidate(ctx context.Context, scopeID string) {
	if err := s.summaries.InvalidateScope(ctx, scopeID); err != nil {
		log.Printf("ERROR: %v", err)
	}
}
