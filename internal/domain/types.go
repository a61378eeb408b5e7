package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rchaves649/finscope/internal/money"
)

// Nature classifies the financial intent of a transaction. The amount field
// is always non-negative; the nature carries the sign of the movement.
// Use ValidateNature to ensure validity before use.
type Nature string

const (
	NatureExpense     Nature = "expense"
	NatureCredit      Nature = "credit"
	NatureRefund      Nature = "refund"
	NaturePayment     Nature = "payment"
	NatureInstallment Nature = "installment_expense"
	NatureTransfer    Nature = "transfer"
)

// ClassificationStatus tracks how a transaction got its category.
type ClassificationStatus string

const (
	StatusPending ClassificationStatus = "pending"
	StatusAuto    ClassificationStatus = "auto"
	StatusManual  ClassificationStatus = "manual"
)

// ScopeType distinguishes an individual account from a shared/joint one.
type ScopeType string

const (
	ScopeIndividual ScopeType = "individual"
	ScopeShared     ScopeType = "shared"
)

// UserKey identifies one of the two participants of a shared scope.
type UserKey string

const (
	UserA UserKey = "A"
	UserB UserKey = "B"
)

var (
	validNatures = map[Nature]struct{}{
		NatureExpense: {}, NatureCredit: {}, NatureRefund: {},
		NaturePayment: {}, NatureInstallment: {}, NatureTransfer: {},
	}

	validStatuses = map[ClassificationStatus]struct{}{
		StatusPending: {}, StatusAuto: {}, StatusManual: {},
	}
)

// ValidateNature checks if the nature is one of the closed set.
func ValidateNature(n Nature) bool {
	_, ok := validNatures[n]
	return ok
}

// ValidateStatus checks if the classification status is valid.
func ValidateStatus(s ClassificationStatus) bool {
	_, ok := validStatuses[s]
	return ok
}

// Split holds the default percentage split of a shared scope.
type Split struct {
	A decimal.Decimal `json:"a" yaml:"a"`
	B decimal.Decimal `json:"b" yaml:"b"`
}

// Scope is an isolated accounting context under which categories and
// transactions are partitioned.
type Scope struct {
	ScopeID      string    `json:"scopeId"`
	ScopeType    ScopeType `json:"scopeType"`
	Name         string    `json:"name"`
	DefaultSplit *Split    `json:"defaultSplit,omitempty"`
}

// SplitA returns the scope's percentage for participant A, defaulting to an
// even 50/50 split when none is configured.
func (s Scope) SplitA() decimal.Decimal {
	if s.DefaultSplit != nil {
		return s.DefaultSplit.A
	}
	return decimal.NewFromInt(50)
}

// Category groups transactions for reporting. Once referenced by history it
// is never hard-deleted; IsDeleted is a tombstone so past aggregates keep
// resolving the name.
type Category struct {
	ID        string `json:"id"`
	ScopeID   string `json:"scopeId"`
	Name      string `json:"name"`
	IsDeleted bool   `json:"isDeleted,omitempty"`
}

// Subcategory refines a Category. Same tombstone rule.
type Subcategory struct {
	ID         string `json:"id"`
	ScopeID    string `json:"scopeId"`
	CategoryID string `json:"categoryId"`
	Name       string `json:"name"`
	IsDeleted  bool   `json:"isDeleted,omitempty"`
}

// PayerShare splits a shared-scope transaction's amount between the two
// participants. The two parts must sum to the transaction amount in cents.
type PayerShare struct {
	A decimal.Decimal `json:"a"`
	B decimal.Decimal `json:"b"`
}

// Cents returns both parts in integer cents.
func (p PayerShare) Cents() (int64, int64) {
	return money.ToCents(p.A), money.ToCents(p.B)
}

// AuditTrail records where a migrated transaction came from.
type AuditTrail struct {
	OriginID        string `json:"originId"`
	MigratedAt      string `json:"migratedAt"`
	PreviousScopeID string `json:"previousScopeId"`
}

// Transaction is one financial event. Amount is always non-negative; the
// sign of the movement is carried by Nature. Created unconfirmed by the
// import pipeline or manual entry, mutated by user edits, and treated as
// immutable once confirmed unless explicitly re-opened.
type Transaction struct {
	ID                   string               `json:"id"`
	ExternalID           string               `json:"externalId,omitempty"`
	ScopeID              string               `json:"scopeId"`
	Date                 string               `json:"date"` // ISO format YYYY-MM-DD
	Description          string               `json:"description"`
	Amount               decimal.Decimal      `json:"amount"`
	CategoryID           string               `json:"categoryId,omitempty"`
	SubcategoryID        string               `json:"subcategoryId,omitempty"`
	ClassificationStatus ClassificationStatus `json:"classificationStatus"`
	Nature               Nature               `json:"transactionNature"`
	IsConfirmed          bool                 `json:"isConfirmed"`
	IsSuggested          bool                 `json:"isSuggested,omitempty"`
	IsAutoConfirmed      bool                 `json:"isAutoConfirmed,omitempty"`
	IsRecurring          bool                 `json:"isRecurring,omitempty"`
	IsNeutralized        bool                 `json:"isNeutralized,omitempty"`
	PayerShare           *PayerShare          `json:"payerShare,omitempty"`
	MigratedFromShared   string               `json:"migratedFromShared,omitempty"`
	VisibleInShared      bool                 `json:"visibleInShared,omitempty"`
	AuditTrail           *AuditTrail          `json:"auditTrail,omitempty"`
}

// Validate checks the write-time invariants. A transaction that fails here
// must be rejected before it reaches storage.
func (t *Transaction) Validate() error {
	if t.ID == "" {
		return &ValidationError{Entity: "transaction", Field: "ID", Message: "transaction ID cannot be empty"}
	}
	if t.ScopeID == "" {
		return &ValidationError{Entity: "transaction", ID: t.ID, Field: "ScopeID", Message: "scope ID cannot be empty"}
	}
	if _, err := time.Parse("2006-01-02", t.Date); err != nil {
		return &ValidationError{Entity: "transaction", ID: t.ID, Field: "Date", Value: t.Date, Message: "invalid date format (expected YYYY-MM-DD)"}
	}
	if t.Nature == "" {
		return &ValidationError{Entity: "transaction", ID: t.ID, Field: "Nature", Message: "transaction nature must be set before persistence"}
	}
	if !ValidateNature(t.Nature) {
		return &ValidationError{Entity: "transaction", ID: t.ID, Field: "Nature", Value: string(t.Nature), Message: "unknown transaction nature"}
	}
	if t.Amount.IsNegative() {
		return &ValidationError{Entity: "transaction", ID: t.ID, Field: "Amount", Value: t.Amount.String(), Message: "amount must be non-negative; the nature carries the sign"}
	}
	if t.ClassificationStatus != "" && !ValidateStatus(t.ClassificationStatus) {
		return &ValidationError{Entity: "transaction", ID: t.ID, Field: "ClassificationStatus", Value: string(t.ClassificationStatus), Message: "unknown classification status"}
	}
	if t.PayerShare != nil {
		a, b := t.PayerShare.Cents()
		if a+b != money.ToCents(t.Amount) {
			return &ValidationError{
				Entity:  "transaction",
				ID:      t.ID,
				Field:   "PayerShare",
				Value:   fmt.Sprintf("%d+%d", a, b),
				Message: fmt.Sprintf("payer share must sum to the amount in cents (want %d)", money.ToCents(t.Amount)),
			}
		}
	}
	return nil
}

// EffectiveNature resolves the nature defensively for reads over legacy
// data: a missing or unknown nature is treated as a plain expense. The
// write path still enforces the nature invariant via Validate.
func (t *Transaction) EffectiveNature() Nature {
	if ValidateNature(t.Nature) {
		return t.Nature
	}
	return NatureExpense
}

// ClassificationMemoryEntry is the frequency-based learning record for one
// normalized description key. One entry per (scope, key); last write wins
// and UsageCount counts reinforcements.
type ClassificationMemoryEntry struct {
	ScopeID       string `json:"scopeId"`
	NormalizedKey string `json:"normalizedKey"`
	CategoryID    string `json:"categoryId"`
	SubcategoryID string `json:"subcategoryId"`
	// Nature is empty for entries written before nature tracking existed;
	// readers fall back to live detection.
	Nature     Nature `json:"transactionNature,omitempty"`
	UsageCount int    `json:"usageCount"`
	LastUsedAt string `json:"lastUsedAt"`
}

// RecurringMemoryEntry is a standing rule for a normalized description key.
// It overrides the frequency-based memory and, for shared scopes, fixes the
// payer split.
type RecurringMemoryEntry struct {
	ScopeID       string      `json:"scopeId"`
	NormalizedKey string      `json:"normalizedKey"`
	CategoryID    string      `json:"categoryId"`
	SubcategoryID string      `json:"subcategoryId"`
	Nature        Nature      `json:"transactionNature,omitempty"`
	PayerShare    *PayerShare `json:"payerShare,omitempty"`
}
