// Package fire implements the persistence contract on Cloud Firestore for
// hosts that sync across devices. Documents carry amounts as decimal
// strings; collections are partitioned per scope under a fixed root.
package fire

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/shopspring/decimal"

	"github.com/rchaves649/finscope/internal/domain"
	"github.com/rchaves649/finscope/internal/store"
)

// Client wraps the Firestore client with the store contract.
type Client struct {
	fs        *firestore.Client
	projectID string
}

// NewClient initializes the Firebase app and Firestore client. An empty
// credsPath falls back to Application Default Credentials.
func NewClient(ctx context.Context, projectID, credsPath string) (*Client, error) {
	conf := &firebase.Config{ProjectID: projectID}

	var opts []option.ClientOption
	if credsPath != "" {
		opts = append(opts, option.WithCredentialsFile(credsPath))
	}

	app, err := firebase.NewApp(ctx, conf, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Firebase app: %w", err)
	}
	fs, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %w", err)
	}
	return &Client{fs: fs, projectID: projectID}, nil
}

// Close closes the underlying Firestore client.
func (c *Client) Close() error {
	return c.fs.Close()
}

// Stores returns the full contract bundle backed by this client.
func (c *Client) Stores() *store.Stores {
	return &store.Stores{
		Transactions:   &txStore{c.fs},
		Classification: &memoryStore{c.fs},
		Recurring:      &recurringStore{c.fs},
		Snapshots:      &snapshotStore{c.fs},
		ImportLog:      &importLogStore{c.fs},
		Categories:     &categoryStore{c.fs},
		Subcategories:  &subcategoryStore{c.fs},
	}
}

func scopeCollection(fs *firestore.Client, scopeID, name string) *firestore.CollectionRef {
	return fs.Collection("scopes").Doc(scopeID).Collection(name)
}

func notFound(err error) bool {
	return status.Code(err) == codes.NotFound
}

// txDoc is the Firestore shape of a transaction. Amounts travel as decimal
// strings so no float ever touches money.
type txDoc struct {
	ID                   string     `firestore:"id"`
	ExternalID           string     `firestore:"externalId,omitempty"`
	ScopeID              string     `firestore:"scopeId"`
	Date                 string     `firestore:"date"`
	Description          string     `firestore:"description"`
	Amount               string     `firestore:"amount"`
	CategoryID           string     `firestore:"categoryId,omitempty"`
	SubcategoryID        string     `firestore:"subcategoryId,omitempty"`
	ClassificationStatus string     `firestore:"classificationStatus,omitempty"`
	Nature               string     `firestore:"transactionNature,omitempty"`
	IsConfirmed          bool       `firestore:"isConfirmed"`
	IsSuggested          bool       `firestore:"isSuggested,omitempty"`
	IsAutoConfirmed      bool       `firestore:"isAutoConfirmed,omitempty"`
	IsRecurring          bool       `firestore:"isRecurring,omitempty"`
	IsNeutralized        bool       `firestore:"isNeutralized,omitempty"`
	PayerShareA          string     `firestore:"payerShareA,omitempty"`
	PayerShareB          string     `firestore:"payerShareB,omitempty"`
	MigratedFromShared   string     `firestore:"migratedFromShared,omitempty"`
	VisibleInShared      bool       `firestore:"visibleInShared,omitempty"`
	AuditTrail           *auditDoc  `firestore:"auditTrail,omitempty"`
}

type auditDoc struct {
	OriginID        string `firestore:"originId"`
	MigratedAt      string `firestore:"migratedAt"`
	PreviousScopeID string `firestore:"previousScopeId"`
}

func toTxDoc(tx domain.Transaction) txDoc {
	doc := txDoc{
		ID:                   tx.ID,
		ExternalID:           tx.ExternalID,
		ScopeID:              tx.ScopeID,
		Date:                 tx.Date,
		Description:          tx.Description,
		Amount:               tx.Amount.String(),
		CategoryID:           tx.CategoryID,
		SubcategoryID:        tx.SubcategoryID,
		ClassificationStatus: string(tx.ClassificationStatus),
		Nature:               string(tx.Nature),
		IsConfirmed:          tx.IsConfirmed,
		IsSuggested:          tx.IsSuggested,
		IsAutoConfirmed:      tx.IsAutoConfirmed,
		IsRecurring:          tx.IsRecurring,
		IsNeutralized:        tx.IsNeutralized,
		MigratedFromShared:   tx.MigratedFromShared,
		VisibleInShared:      tx.VisibleInShared,
	}
	if tx.PayerShare != nil {
		doc.PayerShareA = tx.PayerShare.A.String()
		doc.PayerShareB = tx.PayerShare.B.String()
	}
	if tx.AuditTrail != nil {
		doc.AuditTrail = &auditDoc{
			OriginID:        tx.AuditTrail.OriginID,
			MigratedAt:      tx.AuditTrail.MigratedAt,
			PreviousScopeID: tx.AuditTrail.PreviousScopeID,
		}
	}
	return doc
}

func fromTxDoc(doc txDoc) (domain.Transaction, error) {
	amount, err := decimal.NewFromString(doc.Amount)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("decoding amount %q of transaction %s: %w", doc.Amount, doc.ID, err)
	}
	tx := domain.Transaction{
		ID:                   doc.ID,
		ExternalID:           doc.ExternalID,
		ScopeID:              doc.ScopeID,
		Date:                 doc.Date,
		Description:          doc.Description,
		Amount:               amount,
		CategoryID:           doc.CategoryID,
		SubcategoryID:        doc.SubcategoryID,
		ClassificationStatus: domain.ClassificationStatus(doc.ClassificationStatus),
		Nature:               domain.Nature(doc.Nature),
		IsConfirmed:          doc.IsConfirmed,
		IsSuggested:          doc.IsSuggested,
		IsAutoConfirmed:      doc.IsAutoConfirmed,
		IsRecurring:          doc.IsRecurring,
		IsNeutralized:        doc.IsNeutralized,
		MigratedFromShared:   doc.MigratedFromShared,
		VisibleInShared:      doc.VisibleInShared,
	}
	if doc.PayerShareA != "" || doc.PayerShareB != "" {
		a, err := decimal.NewFromString(doc.PayerShareA)
		if err != nil {
			return domain.Transaction{}, fmt.Errorf("decoding payer share of transaction %s: %w", doc.ID, err)
		}
		b, err := decimal.NewFromString(doc.PayerShareB)
		if err != nil {
			return domain.Transaction{}, fmt.Errorf("decoding payer share of transaction %s: %w", doc.ID, err)
		}
		tx.PayerShare = &domain.PayerShare{A: a, B: b}
	}
	if doc.AuditTrail != nil {
		tx.AuditTrail = &domain.AuditTrail{
			OriginID:        doc.AuditTrail.OriginID,
			MigratedAt:      doc.AuditTrail.MigratedAt,
			PreviousScopeID: doc.AuditTrail.PreviousScopeID,
		}
	}
	return tx, nil
}

type txStore struct{ fs *firestore.Client }

func (s *txStore) col(scopeID string) *firestore.CollectionRef {
	return scopeCollection(s.fs, scopeID, "transactions")
}

func (s *txStore) GetAll(ctx context.Context, scopeID string) ([]domain.Transaction, error) {
	iter := s.col(scopeID).OrderBy("date", firestore.Asc).Documents(ctx)
	defer iter.Stop()

	var out []domain.Transaction
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iterating transactions for scope %s: %w", scopeID, err)
		}
		var doc txDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("decoding transaction %s: %w", snap.Ref.ID, err)
		}
		tx, err := fromTxDoc(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, nil
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
	if _, err := s.col(tx.ScopeID).Doc(tx.ID).Set(ctx, toTxDoc(tx)); err != nil {
		return fmt.Errorf("saving transaction %s: %w", tx.ID, err)
	}
	return nil
}

func (s *txStore) SaveMany(ctx context.Context, txs []domain.Transaction) error {
	bw := s.fs.BulkWriter(ctx)
	jobs := make([]*firestore.BulkWriterJob, 0, len(txs))
	for _, tx := range txs {
		job, err := bw.Set(s.col(tx.ScopeID).Doc(tx.ID), toTxDoc(tx))
		if err != nil {
			return fmt.Errorf("queueing transaction %s: %w", tx.ID, err)
		}
		jobs = append(jobs, job)
	}
	bw.End()
	// Set only rejects bad arguments; per-write outcomes arrive on the
	// jobs after End flushes.
	for i, job := range jobs {
		if _, err := job.Results(); err != nil {
			return fmt.Errorf("saving transaction %s: %w", txs[i].ID, err)
		}
	}
	return nil
}

func (s *txStore) Delete(ctx context.Context, id string) error {
	// Transactions are stored under their scope; a cross-scope delete by
	// bare ID needs a collection group lookup.
	iter := s.fs.CollectionGroup("transactions").Where("id", "==", id).Limit(1).Documents(ctx)
	defer iter.Stop()
	snap, err := iter.Next()
	if err == iterator.Done {
		return store.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("locating transaction %s: %w", id, err)
	}
	if _, err := snap.Ref.Delete(ctx); err != nil {
		return fmt.Errorf("deleting transaction %s: %w", id, err)
	}
	return nil
}

type memoryStore struct{ fs *firestore.Client }

type memoryDoc struct {
	ScopeID       string `firestore:"scopeId"`
	NormalizedKey string `firestore:"normalizedKey"`
	CategoryID    string `firestore:"categoryId"`
	SubcategoryID string `firestore:"subcategoryId,omitempty"`
	Nature        string `firestore:"transactionNature,omitempty"`
	UsageCount    int    `firestore:"usageCount"`
	LastUsedAt    string `firestore:"lastUsedAt"`
}

func (s *memoryStore) col(scopeID string) *firestore.CollectionRef {
	return scopeCollection(s.fs, scopeID, "classificationMemory")
}

func (s *memoryStore) Find(ctx context.Context, scopeID, normalizedKey string) (*domain.ClassificationMemoryEntry, error) {
	snap, err := s.col(scopeID).Doc(docKey(normalizedKey)).Get(ctx)
	if notFound(err) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetching classification memory %s/%s: %w", scopeID, normalizedKey, err)
	}
	var doc memoryDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("decoding classification memory %s: %w", snap.Ref.ID, err)
	}
	entry := memoryFromDoc(doc)
	return &entry, nil
}

func (s *memoryStore) GetAll(ctx context.Context, scopeID string) ([]domain.ClassificationMemoryEntry, error) {
	iter := s.col(scopeID).Documents(ctx)
	defer iter.Stop()

	var out []domain.ClassificationMemoryEntry
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iterating classification memory for scope %s: %w", scopeID, err)
		}
		var doc memoryDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("decoding classification memory %s: %w", snap.Ref.ID, err)
		}
		out = append(out, memoryFromDoc(doc))
	}
	return out, nil
}

func (s *memoryStore) Save(ctx context.Context, entry domain.ClassificationMemoryEntry) error {
	doc := memoryDoc{
		ScopeID:       entry.ScopeID,
		NormalizedKey: entry.NormalizedKey,
		CategoryID:    entry.CategoryID,
		SubcategoryID: entry.SubcategoryID,
		Nature:        string(entry.Nature),
		UsageCount:    entry.UsageCount,
		LastUsedAt:    entry.LastUsedAt,
	}
	if _, err := s.col(entry.ScopeID).Doc(docKey(entry.NormalizedKey)).Set(ctx, doc); err != nil {
		return fmt.Errorf("saving classification memory %s/%s: %w", entry.ScopeID, entry.NormalizedKey, err)
	}
	return nil
}

func (s *memoryStore) Delete(ctx context.Context, scopeID, normalizedKey string) error {
	if _, err := s.col(scopeID).Doc(docKey(normalizedKey)).Delete(ctx); err != nil {
		return fmt.Errorf("deleting classification memory %s/%s: %w", scopeID, normalizedKey, err)
	}
	return nil
}

func memoryFromDoc(doc memoryDoc) domain.ClassificationMemoryEntry {
	return domain.ClassificationMemoryEntry{
		ScopeID:       doc.ScopeID,
		NormalizedKey: doc.NormalizedKey,
		CategoryID:    doc.CategoryID,
		SubcategoryID: doc.SubcategoryID,
		Nature:        domain.Nature(doc.Nature),
		UsageCount:    doc.UsageCount,
		LastUsedAt:    doc.LastUsedAt,
	}
}

type recurringStore struct{ fs *firestore.Client }

type recurringDoc struct {
	ScopeID       string `firestore:"scopeId"`
	NormalizedKey string `firestore:"normalizedKey"`
	CategoryID    string `firestore:"categoryId"`
	SubcategoryID string `firestore:"subcategoryId,omitempty"`
	Nature        string `firestore:"transactionNature,omitempty"`
	PayerShareA   string `firestore:"payerShareA,omitempty"`
	PayerShareB   string `firestore:"payerShareB,omitempty"`
}

func (s *recurringStore) col(scopeID string) *firestore.CollectionRef {
	return scopeCollection(s.fs, scopeID, "recurringRules")
}

func (s *recurringStore) Find(ctx context.Context, scopeID, normalizedKey string) (*domain.RecurringMemoryEntry, error) {
	snap, err := s.col(scopeID).Doc(docKey(normalizedKey)).Get(ctx)
	if notFound(err) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetching recurring rule %s/%s: %w", scopeID, normalizedKey, err)
	}
	var doc recurringDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("decoding recurring rule %s: %w", snap.Ref.ID, err)
	}
	return recurringFromDoc(doc)
}

func (s *recurringStore) GetAll(ctx context.Context, scopeID string) ([]domain.RecurringMemoryEntry, error) {
	iter := s.col(scopeID).Documents(ctx)
	defer iter.Stop()

	var out []domain.RecurringMemoryEntry
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iterating recurring rules for scope %s: %w", scopeID, err)
		}
		var doc recurringDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("decoding recurring rule %s: %w", snap.Ref.ID, err)
		}
		entry, err := recurringFromDoc(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, *entry)
	}
	return out, nil
}

func (s *recurringStore) Save(ctx context.Context, entry domain.RecurringMemoryEntry) error {
	doc := recurringDoc{
		ScopeID:       entry.ScopeID,
		NormalizedKey: entry.NormalizedKey,
		CategoryID:    entry.CategoryID,
		SubcategoryID: entry.SubcategoryID,
		Nature:        string(entry.Nature),
	}
	if entry.PayerShare != nil {
		doc.PayerShareA = entry.PayerShare.A.String()
		doc.PayerShareB = entry.PayerShare.B.String()
	}
	if _, err := s.col(entry.ScopeID).Doc(docKey(entry.NormalizedKey)).Set(ctx, doc); err != nil {
		return fmt.Errorf("saving recurring rule %s/%s: %w", entry.ScopeID, entry.NormalizedKey, err)
	}
	return nil
}

func (s *recurringStore) Delete(ctx context.Context, scopeID, normalizedKey string) error {
	if _, err := s.col(scopeID).Doc(docKey(normalizedKey)).Delete(ctx); err != nil {
		return fmt.Errorf("deleting recurring rule %s/%s: %w", scopeID, normalizedKey, err)
	}
	return nil
}

func recurringFromDoc(doc recurringDoc) (*domain.RecurringMemoryEntry, error) {
	entry := domain.RecurringMemoryEntry{
		ScopeID:       doc.ScopeID,
		NormalizedKey: doc.NormalizedKey,
		CategoryID:    doc.CategoryID,
		SubcategoryID: doc.SubcategoryID,
		Nature:        domain.Nature(doc.Nature),
	}
	if doc.PayerShareA != "" || doc.PayerShareB != "" {
		a, err := decimal.NewFromString(doc.PayerShareA)
		if err != nil {
			return nil, fmt.Errorf("decoding payer share of rule %s: %w", doc.NormalizedKey, err)
		}
		b, err := decimal.NewFromString(doc.PayerShareB)
		if err != nil {
			return nil, fmt.Errorf("decoding payer share of rule %s: %w", doc.NormalizedKey, err)
		}
		entry.PayerShare = &domain.PayerShare{A: a, B: b}
	}
	return &entry, nil
}

type snapshotStore struct{ fs *firestore.Client }

type snapshotDoc struct {
	PeriodKey string `firestore:"periodKey"`
	Summary   []byte `firestore:"summary"`
}

func (s *snapshotStore) col(scopeID string) *firestore.CollectionRef {
	return scopeCollection(s.fs, scopeID, "snapshots")
}

func (s *snapshotStore) Get(ctx context.Context, scopeID, periodKey string) (*domain.Summary, error) {
	snap, err := s.col(scopeID).Doc(periodKey).Get(ctx)
	if notFound(err) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetching snapshot %s/%s: %w", scopeID, periodKey, err)
	}
	var doc snapshotDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("decoding snapshot %s/%s: %w", scopeID, periodKey, err)
	}
	var summary domain.Summary
	if err := json.Unmarshal(doc.Summary, &summary); err != nil {
		return nil, fmt.Errorf("decoding snapshot payload %s/%s: %w", scopeID, periodKey, err)
	}
	return &summary, nil
}

func (s *snapshotStore) Save(ctx context.Context, scopeID, periodKey string, summary domain.Summary) error {
	blob, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("encoding snapshot %s/%s: %w", scopeID, periodKey, err)
	}
	doc := snapshotDoc{PeriodKey: periodKey, Summary: blob}
	if _, err := s.col(scopeID).Doc(periodKey).Set(ctx, doc); err != nil {
		return fmt.Errorf("saving snapshot %s/%s: %w", scopeID, periodKey, err)
	}
	return nil
}

func (s *snapshotStore) Invalidate(ctx context.Context, scopeID, periodKey string) error {
	if _, err := s.col(scopeID).Doc(periodKey).Delete(ctx); err != nil {
		return fmt.Errorf("invalidating snapshot %s/%s: %w", scopeID, periodKey, err)
	}
	return nil
}

func (s *snapshotStore) InvalidateAll(ctx context.Context, scopeID string) error {
	iter := s.col(scopeID).Documents(ctx)
	defer iter.Stop()
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			return nil
		}
		if err != nil {
			return fmt.Errorf("iterating snapshots for scope %s: %w", scopeID, err)
		}
		if _, err := snap.Ref.Delete(ctx); err != nil {
			return fmt.Errorf("deleting snapshot %s: %w", snap.Ref.ID, err)
		}
	}
}

type importLogStore struct{ fs *firestore.Client }

func (s *importLogStore) col(scopeID string) *firestore.CollectionRef {
	return scopeCollection(s.fs, scopeID, "importLog")
}

func (s *importLogStore) IsAlreadyImported(ctx context.Context, scopeID, fileName string) (bool, error) {
	_, err := s.col(scopeID).Doc(docKey(fileName)).Get(ctx)
	if notFound(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking import log for %s: %w", fileName, err)
	}
	return true, nil
}

func (s *importLogStore) LogImport(ctx context.Context, scopeID, fileName string) error {
	doc := map[string]any{"fileName": fileName, "importedAt": firestore.ServerTimestamp}
	if _, err := s.col(scopeID).Doc(docKey(fileName)).Set(ctx, doc); err != nil {
		return fmt.Errorf("logging import of %s: %w", fileName, err)
	}
	return nil
}

type categoryStore struct{ fs *firestore.Client }

type categoryDoc struct {
	ID        string `firestore:"id"`
	ScopeID   string `firestore:"scopeId"`
	Name      string `firestore:"name"`
	IsDeleted bool   `firestore:"isDeleted,omitempty"`
}

func (s *categoryStore) col(scopeID string) *firestore.CollectionRef {
	return scopeCollection(s.fs, scopeID, "categories")
}

func (s *categoryStore) GetAll(ctx context.Context, scopeID string) ([]domain.Category, error) {
	iter := s.col(scopeID).Documents(ctx)
	defer iter.Stop()

	var out []domain.Category
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iterating categories for scope %s: %w", scopeID, err)
		}
		var doc categoryDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("decoding category %s: %w", snap.Ref.ID, err)
		}
		out = append(out, domain.Category{ID: doc.ID, ScopeID: doc.ScopeID, Name: doc.Name, IsDeleted: doc.IsDeleted})
	}
	return out, nil
}

func (s *categoryStore) Save(ctx context.Context, category domain.Category) error {
	doc := categoryDoc{ID: category.ID, ScopeID: category.ScopeID, Name: category.Name, IsDeleted: category.IsDeleted}
	if _, err := s.col(category.ScopeID).Doc(category.ID).Set(ctx, doc); err != nil {
		return fmt.Errorf("saving category %s: %w", category.ID, err)
	}
	return nil
}

type subcategoryStore struct{ fs *firestore.Client }

type subcategoryDoc struct {
	ID         string `firestore:"id"`
	ScopeID    string `firestore:"scopeId"`
	CategoryID string `firestore:"categoryId"`
	Name       string `firestore:"name"`
	IsDeleted  bool   `firestore:"isDeleted,omitempty"`
}

func (s *subcategoryStore) col(scopeID string) *firestore.CollectionRef {
	return scopeCollection(s.fs, scopeID, "subcategories")
}

func (s *subcategoryStore) GetAll(ctx context.Context, scopeID string) ([]domain.Subcategory, error) {
	return s.query(ctx, s.col(scopeID).Query, scopeID)
}

func (s *subcategoryStore) GetByCategory(ctx context.Context, scopeID, categoryID string) ([]domain.Subcategory, error) {
	return s.query(ctx, s.col(scopeID).Where("categoryId", "==", categoryID), scopeID)
}

func (s *subcategoryStore) Save(ctx context.Context, sub domain.Subcategory) error {
	doc := subcategoryDoc{ID: sub.ID, ScopeID: sub.ScopeID, CategoryID: sub.CategoryID, Name: sub.Name, IsDeleted: sub.IsDeleted}
	if _, err := s.col(sub.ScopeID).Doc(sub.ID).Set(ctx, doc); err != nil {
		return fmt.Errorf("saving subcategory %s: %w", sub.ID, err)
	}
	return nil
}

func (s *subcategoryStore) query(ctx context.Context, q firestore.Query, scopeID string) ([]domain.Subcategory, error) {
	iter := q.Documents(ctx)
	defer iter.Stop()

	var out []domain.Subcategory
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iterating subcategories for scope %s: %w", scopeID, err)
		}
		var doc subcategoryDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("decoding subcategory %s: %w", snap.Ref.ID, err)
		}
		out = append(out, domain.Subcategory{ID: doc.ID, ScopeID: doc.ScopeID, CategoryID: doc.CategoryID, Name: doc.Name, IsDeleted: doc.IsDeleted})
	}
	return out, nil
}

// docKey makes an arbitrary string safe as a Firestore document ID.
// Normalized keys can exceed ID limits or contain slashes, so a digest is
// used instead of the raw value.
func docKey(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
