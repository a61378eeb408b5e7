// Package sqlite implements the persistence contract on a local SQLite
// file. Schema creation happens on open; amounts are stored as decimal
// strings and structured fields as JSON so the file stays inspectable.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/rchaves649/finscope/internal/domain"
	"github.com/rchaves649/finscope/internal/store"
)

// DB owns the SQLite handle and exposes the store interfaces.
type DB struct {
	db *sql.DB
}

// Open opens or creates the database file and ensures the schema exists.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database %s: %w", path, err)
	}
	// The driver multiplexes poorly under write contention; a single
	// connection keeps writes serialized.
	db.SetMaxOpenConns(1)

	d := &DB{db: db}
	if err := d.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}
	return d, nil
}

// Close releases the database handle.
func (d *DB) Close() error {
	return d.db.Close()
}

// Stores returns the full contract bundle backed by this database.
func (d *DB) Stores() *store.Stores {
	return &store.Stores{
		Transactions:   &txStore{d.db},
		Classification: &memoryStore{d.db},
		Recurring:      &recurringStore{d.db},
		Snapshots:      &snapshotStore{d.db},
		ImportLog:      &importLogStore{d.db},
		Categories:     &categoryStore{d.db},
		Subcategories:  &subcategoryStore{d.db},
	}
}

func (d *DB) initSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS transactions (
			id TEXT PRIMARY KEY,
			scope_id TEXT NOT NULL,
			external_id TEXT NOT NULL DEFAULT '',
			date TEXT NOT NULL,
			description TEXT NOT NULL,
			amount TEXT NOT NULL,
			category_id TEXT NOT NULL DEFAULT '',
			subcategory_id TEXT NOT NULL DEFAULT '',
			classification_status TEXT NOT NULL DEFAULT '',
			nature TEXT NOT NULL DEFAULT '',
			is_confirmed INTEGER NOT NULL DEFAULT 0,
			is_suggested INTEGER NOT NULL DEFAULT 0,
			is_auto_confirmed INTEGER NOT NULL DEFAULT 0,
			is_recurring INTEGER NOT NULL DEFAULT 0,
			is_neutralized INTEGER NOT NULL DEFAULT 0,
			payer_share TEXT,
			migrated_from_shared TEXT NOT NULL DEFAULT '',
			visible_in_shared INTEGER NOT NULL DEFAULT 0,
			audit_trail TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_scope_date ON transactions(scope_id, date)`,
		`CREATE TABLE IF NOT EXISTS classification_memory (
			scope_id TEXT NOT NULL,
			normalized_key TEXT NOT NULL,
			category_id TEXT NOT NULL,
			subcategory_id TEXT NOT NULL DEFAULT '',
			nature TEXT NOT NULL DEFAULT '',
			usage_count INTEGER NOT NULL DEFAULT 0,
			last_used_at TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (scope_id, normalized_key)
		)`,
		`CREATE TABLE IF NOT EXISTS recurring_rules (
			scope_id TEXT NOT NULL,
			normalized_key TEXT NOT NULL,
			category_id TEXT NOT NULL,
			subcategory_id TEXT NOT NULL DEFAULT '',
			nature TEXT NOT NULL DEFAULT '',
			payer_share TEXT,
			PRIMARY KEY (scope_id, normalized_key)
		)`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			scope_id TEXT NOT NULL,
			period_key TEXT NOT NULL,
			summary TEXT NOT NULL,
			PRIMARY KEY (scope_id, period_key)
		)`,
		`CREATE TABLE IF NOT EXISTS import_log (
			scope_id TEXT NOT NULL,
			file_name TEXT NOT NULL,
			imported_at TEXT NOT NULL DEFAULT (datetime('now')),
			PRIMARY KEY (scope_id, file_name)
		)`,
		`CREATE TABLE IF NOT EXISTS categories (
			id TEXT PRIMARY KEY,
			scope_id TEXT NOT NULL,
			name TEXT NOT NULL,
			is_deleted INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_categories_scope ON categories(scope_id)`,
		`CREATE TABLE IF NOT EXISTS subcategories (
			id TEXT PRIMARY KEY,
			scope_id TEXT NOT NULL,
			category_id TEXT NOT NULL,
			name TEXT NOT NULL,
			is_deleted INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_subcategories_scope ON subcategories(scope_id, category_id)`,
	}
	for _, stmt := range stmts {
		if _, err := d.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing %.40q: %w", stmt, err)
		}
	}
	return nil
}

type txStore struct{ db *sql.DB }

const txColumns = `id, scope_id, external_id, date, description, amount,
	category_id, subcategory_id, classification_status, nature,
	is_confirmed, is_suggested, is_auto_confirmed, is_recurring, is_neutralized,
	payer_share, migrated_from_shared, visible_in_shared, audit_trail`

func (s *txStore) GetAll(ctx context.Context, scopeID string) ([]domain.Transaction, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+txColumns+` FROM transactions WHERE scope_id = ? ORDER BY date, id`, scopeID)
	if err != nil {
		return nil, fmt.Errorf("querying transactions: %w", err)
	}
	defer rows.Close()
	return scanTransactions(rows)
}

func (s *txStore) GetByPeriod(ctx context.Context, scopeID string, period domain.Period) ([]domain.Transaction, error) {
	all, err := s.GetAll(ctx, scopeID)
	if err != nil {
		return nil, err
	}
	filtered := all[:0]
	for _, tx := range all {
		if period.Contains(tx.Date) {
			filtered = append(filtered, tx)
		}
	}
	return filtered, nil
}

func (s *txStore) Save(ctx context.Context, tx domain.Transaction) error {
	_, err := s.db.ExecContext(ctx, upsertTransactionSQL, txArgs(tx)...)
	if err != nil {
		return fmt.Errorf("saving transaction %s: %w", tx.ID, err)
	}
	return nil
}

func (s *txStore) SaveMany(ctx context.Context, txs []domain.Transaction) error {
	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction batch: %w", err)
	}
	for _, tx := range txs {
		if _, err := dbTx.ExecContext(ctx, upsertTransactionSQL, txArgs(tx)...); err != nil {
			dbTx.Rollback()
			return fmt.Errorf("saving transaction %s in batch: %w", tx.ID, err)
		}
	}
	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("committing transaction batch: %w", err)
	}
	return nil
}

func (s *txStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting transaction %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

const upsertTransactionSQL = `INSERT OR REPLACE INTO transactions (` + txColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func txArgs(tx domain.Transaction) []any {
	return []any{
		tx.ID, tx.ScopeID, tx.ExternalID, tx.Date, tx.Description, tx.Amount.String(),
		tx.CategoryID, tx.SubcategoryID, string(tx.ClassificationStatus), string(tx.Nature),
		tx.IsConfirmed, tx.IsSuggested, tx.IsAutoConfirmed, tx.IsRecurring, tx.IsNeutralized,
		marshalNullable(tx.PayerShare), tx.MigratedFromShared, tx.VisibleInShared,
		marshalNullable(tx.AuditTrail),
	}
}

func scanTransactions(rows *sql.Rows) ([]domain.Transaction, error) {
	var out []domain.Transaction
	for rows.Next() {
		var (
			tx                   domain.Transaction
			amount               string
			status, nat          string
			payerJSON, auditJSON sql.NullString
		)
		if err := rows.Scan(
			&tx.ID, &tx.ScopeID, &tx.ExternalID, &tx.Date, &tx.Description, &amount,
			&tx.CategoryID, &tx.SubcategoryID, &status, &nat,
			&tx.IsConfirmed, &tx.IsSuggested, &tx.IsAutoConfirmed, &tx.IsRecurring, &tx.IsNeutralized,
			&payerJSON, &tx.MigratedFromShared, &tx.VisibleInShared, &auditJSON,
		); err != nil {
			return nil, fmt.Errorf("scanning transaction row: %w", err)
		}
		dec, err := decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("decoding amount %q of transaction %s: %w", amount, tx.ID, err)
		}
		tx.Amount = dec
		tx.ClassificationStatus = domain.ClassificationStatus(status)
		tx.Nature = domain.Nature(nat)
		if payerJSON.Valid && payerJSON.String != "" {
			var share domain.PayerShare
			if err := json.Unmarshal([]byte(payerJSON.String), &share); err != nil {
				return nil, fmt.Errorf("decoding payer share of transaction %s: %w", tx.ID, err)
			}
			tx.PayerShare = &share
		}
		if auditJSON.Valid && auditJSON.String != "" {
			var trail domain.AuditTrail
			if err := json.Unmarshal([]byte(auditJSON.String), &trail); err != nil {
				return nil, fmt.Errorf("decoding audit trail of transaction %s: %w", tx.ID, err)
			}
			tx.AuditTrail = &trail
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

func marshalNullable(v any) any {
	switch t := v.(type) {
	case *domain.PayerShare:
		if t == nil {
			return nil
		}
	case *domain.AuditTrail:
		if t == nil {
			return nil
		}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return string(data)
}

type memoryStore struct{ db *sql.DB }

func (s *memoryStore) Find(ctx context.Context, scopeID, normalizedKey string) (*domain.ClassificationMemoryEntry, error) {
	var entry domain.ClassificationMemoryEntry
	var nat string
	err := s.db.QueryRowContext(ctx,
		`SELECT scope_id, normalized_key, category_id, subcategory_id, nature, usage_count, last_used_at
		 FROM classification_memory WHERE scope_id = ? AND normalized_key = ?`,
		scopeID, normalizedKey,
	).Scan(&entry.ScopeID, &entry.NormalizedKey, &entry.CategoryID, &entry.SubcategoryID, &nat, &entry.UsageCount, &entry.LastUsedAt)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying classification memory: %w", err)
	}
	entry.Nature = domain.Nature(nat)
	return &entry, nil
}

func (s *memoryStore) GetAll(ctx context.Context, scopeID string) ([]domain.ClassificationMemoryEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT scope_id, normalized_key, category_id, subcategory_id, nature, usage_count, last_used_at
		 FROM classification_memory WHERE scope_id = ? ORDER BY normalized_key`, scopeID)
	if err != nil {
		return nil, fmt.Errorf("querying classification memory: %w", err)
	}
	defer rows.Close()

	var out []domain.ClassificationMemoryEntry
	for rows.Next() {
		var entry domain.ClassificationMemoryEntry
		var nat string
		if err := rows.Scan(&entry.ScopeID, &entry.NormalizedKey, &entry.CategoryID, &entry.SubcategoryID, &nat, &entry.UsageCount, &entry.LastUsedAt); err != nil {
			return nil, fmt.Errorf("scanning classification memory row: %w", err)
		}
		entry.Nature = domain.Nature(nat)
		out = append(out, entry)
	}
	return out, rows.Err()
}

func (s *memoryStore) Save(ctx context.Context, entry domain.ClassificationMemoryEntry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO classification_memory
		 (scope_id, normalized_key, category_id, subcategory_id, nature, usage_count, last_used_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.ScopeID, entry.NormalizedKey, entry.CategoryID, entry.SubcategoryID,
		string(entry.Nature), entry.UsageCount, entry.LastUsedAt)
	if err != nil {
		return fmt.Errorf("saving classification memory %s/%s: %w", entry.ScopeID, entry.NormalizedKey, err)
	}
	return nil
}

func (s *memoryStore) Delete(ctx context.Context, scopeID, normalizedKey string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM classification_memory WHERE scope_id = ? AND normalized_key = ?`,
		scopeID, normalizedKey)
	if err != nil {
		return fmt.Errorf("deleting classification memory %s/%s: %w", scopeID, normalizedKey, err)
	}
	return nil
}

type recurringStore struct{ db *sql.DB }

func (s *recurringStore) Find(ctx context.Context, scopeID, normalizedKey string) (*domain.RecurringMemoryEntry, error) {
	var entry domain.RecurringMemoryEntry
	var nat string
	var payerJSON sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT scope_id, normalized_key, category_id, subcategory_id, nature, payer_share
		 FROM recurring_rules WHERE scope_id = ? AND normalized_key = ?`,
		scopeID, normalizedKey,
	).Scan(&entry.ScopeID, &entry.NormalizedKey, &entry.CategoryID, &entry.SubcategoryID, &nat, &payerJSON)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying recurring rule: %w", err)
	}
	entry.Nature = domain.Nature(nat)
	if payerJSON.Valid && payerJSON.String != "" {
		var share domain.PayerShare
		if err := json.Unmarshal([]byte(payerJSON.String), &share); err != nil {
			return nil, fmt.Errorf("decoding payer share of rule %s/%s: %w", scopeID, normalizedKey, err)
		}
		entry.PayerShare = &share
	}
	return &entry, nil
}

func (s *recurringStore) GetAll(ctx context.Context, scopeID string) ([]domain.RecurringMemoryEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT scope_id, normalized_key, category_id, subcategory_id, nature, payer_share
		 FROM recurring_rules WHERE scope_id = ? ORDER BY normalized_key`, scopeID)
	if err != nil {
		return nil, fmt.Errorf("querying recurring rules: %w", err)
	}
	defer rows.Close()

	var out []domain.RecurringMemoryEntry
	for rows.Next() {
		var entry domain.RecurringMemoryEntry
		var nat string
		var payerJSON sql.NullString
		if err := rows.Scan(&entry.ScopeID, &entry.NormalizedKey, &entry.CategoryID, &entry.SubcategoryID, &nat, &payerJSON); err != nil {
			return nil, fmt.Errorf("scanning recurring rule row: %w", err)
		}
		entry.Nature = domain.Nature(nat)
		if payerJSON.Valid && payerJSON.String != "" {
			var share domain.PayerShare
			if err := json.Unmarshal([]byte(payerJSON.String), &share); err != nil {
				return nil, fmt.Errorf("decoding payer share of rule %s/%s: %w", entry.ScopeID, entry.NormalizedKey, err)
			}
			entry.PayerShare = &share
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

func (s *recurringStore) Save(ctx context.Context, entry domain.RecurringMemoryEntry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO recurring_rules
		 (scope_id, normalized_key, category_id, subcategory_id, nature, payer_share)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		entry.ScopeID, entry.NormalizedKey, entry.CategoryID, entry.SubcategoryID,
		string(entry.Nature), marshalNullable(entry.PayerShare))
	if err != nil {
		return fmt.Errorf("saving recurring rule %s/%s: %w", entry.ScopeID, entry.NormalizedKey, err)
	}
	return nil
}

func (s *recurringStore) Delete(ctx context.Context, scopeID, normalizedKey string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM recurring_rules WHERE scope_id = ? AND normalized_key = ?`,
		scopeID, normalizedKey)
	if err != nil {
		return fmt.Errorf("deleting recurring rule %s/%s: %w", scopeID, normalizedKey, err)
	}
	return nil
}

type snapshotStore struct{ db *sql.DB }

func (s *snapshotStore) Get(ctx context.Context, scopeID, periodKey string) (*domain.Summary, error) {
	var blob string
	err := s.db.QueryRowContext(ctx,
		`SELECT summary FROM snapshots WHERE scope_id = ? AND period_key = ?`,
		scopeID, periodKey).Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying snapshot %s/%s: %w", scopeID, periodKey, err)
	}
	var summary domain.Summary
	if err := json.Unmarshal([]byte(blob), &summary); err != nil {
		return nil, fmt.Errorf("decoding snapshot %s/%s: %w", scopeID, periodKey, err)
	}
	return &summary, nil
}

func (s *snapshotStore) Save(ctx context.Context, scopeID, periodKey string, summary domain.Summary) error {
	blob, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("encoding snapshot %s/%s: %w", scopeID, periodKey, err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO snapshots (scope_id, period_key, summary) VALUES (?, ?, ?)`,
		scopeID, periodKey, string(blob))
	if err != nil {
		return fmt.Errorf("saving snapshot %s/%s: %w", scopeID, periodKey, err)
	}
	return nil
}

func (s *snapshotStore) Invalidate(ctx context.Context, scopeID, periodKey string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM snapshots WHERE scope_id = ? AND period_key = ?`, scopeID, periodKey)
	if err != nil {
		return fmt.Errorf("invalidating snapshot %s/%s: %w", scopeID, periodKey, err)
	}
	return nil
}

func (s *snapshotStore) InvalidateAll(ctx context.Context, scopeID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM snapshots WHERE scope_id = ?`, scopeID)
	if err != nil {
		return fmt.Errorf("invalidating snapshots for scope %s: %w", scopeID, err)
	}
	return nil
}

type importLogStore struct{ db *sql.DB }

func (s *importLogStore) IsAlreadyImported(ctx context.Context, scopeID, fileName string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM import_log WHERE scope_id = ? AND file_name = ?`,
		scopeID, fileName).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("querying import log: %w", err)
	}
	return true, nil
}

func (s *importLogStore) LogImport(ctx context.Context, scopeID, fileName string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO import_log (scope_id, file_name, imported_at) VALUES (?, ?, datetime('now'))`,
		scopeID, fileName)
	if err != nil {
		return fmt.Errorf("logging import of %s: %w", fileName, err)
	}
	return nil
}

type categoryStore struct{ db *sql.DB }

func (s *categoryStore) GetAll(ctx context.Context, scopeID string) ([]domain.Category, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, scope_id, name, is_deleted FROM categories WHERE scope_id = ? ORDER BY name`, scopeID)
	if err != nil {
		return nil, fmt.Errorf("querying categories: %w", err)
	}
	defer rows.Close()

	var out []domain.Category
	for rows.Next() {
		var c domain.Category
		if err := rows.Scan(&c.ID, &c.ScopeID, &c.Name, &c.IsDeleted); err != nil {
			return nil, fmt.Errorf("scanning category row: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *categoryStore) Save(ctx context.Context, category domain.Category) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO categories (id, scope_id, name, is_deleted) VALUES (?, ?, ?, ?)`,
		category.ID, category.ScopeID, category.Name, category.IsDeleted)
	if err != nil {
		return fmt.Errorf("saving category %s: %w", category.ID, err)
	}
	return nil
}

type subcategoryStore struct{ db *sql.DB }

func (s *subcategoryStore) GetAll(ctx context.Context, scopeID string) ([]domain.Subcategory, error) {
	return s.query(ctx,
		`SELECT id, scope_id, category_id, name, is_deleted FROM subcategories WHERE scope_id = ? ORDER BY name`,
		scopeID)
}

func (s *subcategoryStore) GetByCategory(ctx context.Context, scopeID, categoryID string) ([]domain.Subcategory, error) {
	return s.query(ctx,
		`SELECT id, scope_id, category_id, name, is_deleted FROM subcategories WHERE scope_id = ? AND category_id = ? ORDER BY name`,
		scopeID, categoryID)
}

func (s *subcategoryStore) Save(ctx context.Context, sub domain.Subcategory) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO subcategories (id, scope_id, category_id, name, is_deleted) VALUES (?, ?, ?, ?, ?)`,
		sub.ID, sub.ScopeID, sub.CategoryID, sub.Name, sub.IsDeleted)
	if err != nil {
		return fmt.Errorf("saving subcategory %s: %w", sub.ID, err)
	}
	return nil
}

func (s *subcategoryStore) query(ctx context.Context, q string, args ...any) ([]domain.Subcategory, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("querying subcategories: %w", err)
	}
	defer rows.Close()

	var out []domain.Subcategory
	for rows.Next() {
		var sub domain.Subcategory
		if err := rows.Scan(&sub.ID, &sub.ScopeID, &sub.CategoryID, &sub.Name, &sub.IsDeleted); err != nil {
			return nil, fmt.Errorf("scanning subcategory row: %w", err)
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}
