// Package importer runs the statement ingestion pipeline: parse, duplicate
// filtering, suggestion enrichment and refund neutralization, producing
// unconfirmed transactions for user review. Prepare is pure with respect to
// the transaction store; Commit persists what review approved.
package importer

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rchaves649/finscope/internal/classify"
	"github.com/rchaves649/finscope/internal/dedup"
	"github.com/rchaves649/finscope/internal/domain"
	"github.com/rchaves649/finscope/internal/money"
	"github.com/rchaves649/finscope/internal/normalize"
	"github.com/rchaves649/finscope/internal/parsers/csv"
	"github.com/rchaves649/finscope/internal/store"
	"github.com/rchaves649/finscope/internal/summary"
)

// Result is the outcome of preparing one statement file.
type Result struct {
	Transactions []*domain.Transaction
	Dropped      int
	// DuplicateFile is advisory: the file name was imported before. The
	// row-level detector remains the correctness mechanism either way.
	DuplicateFile bool
}

// Preparer runs the ingestion pipeline for one scope at a time.
type Preparer struct {
	transactions store.TransactionStore
	importLog    store.ImportLogStore
	summaries    *summary.Service
	engine       *classify.Engine
	matcher      dedup.Matcher

	newID func() string
}

// NewPreparer assembles the pipeline. A nil matcher disables refund
// neutralization.
func NewPreparer(transactions store.TransactionStore, importLog store.ImportLogStore, summaries *summary.Service, engine *classify.Engine, matcher dedup.Matcher) *Preparer {
	return &Preparer{
		transactions: transactions,
		importLog:    importLog,
		summaries:    summaries,
		engine:       engine,
		matcher:      matcher,
		newID:        uuid.NewString,
	}
}

// Prepare parses statement text and builds review-ready transactions.
// Nothing is persisted; rows duplicating stored transactions are counted
// in Dropped.
func (p *Preparer) Prepare(ctx context.Context, scope domain.Scope, statementText, fileName string) (*Result, error) {
	result := &Result{}

	if fileName != "" {
		dup, err := p.importLog.IsAlreadyImported(ctx, scope.ScopeID, fileName)
		if err != nil {
			log.Printf("ERROR: checking import log for %s: %v", fileName, err)
		}
		result.DuplicateFile = dup
	}

	rows := csv.Parse(statementText)
	if len(rows) == 0 {
		return result, nil
	}

	existing, err := p.transactions.GetAll(ctx, scope.ScopeID)
	if err != nil {
		return nil, fmt.Errorf("loading existing transactions for scope %s: %w", scope.ScopeID, err)
	}
	detector := dedup.NewDetector(existing)

	var candidates []dedup.Candidate
	for _, row := range rows {
		key := normalize.Key(row.Description)
		signedCents := money.ToCents(row.Amount)
		absCents := signedCents
		if absCents < 0 {
			absCents = -absCents
		}

		if detector.ShouldDrop(row.ExternalID, row.Date, key, absCents) {
			result.Dropped++
			continue
		}

		tx, err := p.buildTransaction(ctx, scope, row, signedCents)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, dedup.Candidate{
			Index:       len(result.Transactions),
			DateISO:     row.Date,
			NormKey:     key,
			SignedCents: signedCents,
		})
		result.Transactions = append(result.Transactions, tx)
	}

	p.neutralize(result.Transactions, candidates)
	return result, nil
}

// Commit validates and persists a prepared batch, records the file in the
// import log and invalidates every affected month's snapshot.
func (p *Preparer) Commit(ctx context.Context, scope domain.Scope, result *Result, fileName string) error {
	if len(result.Transactions) == 0 {
		return nil
	}

	batch := make([]domain.Transaction, 0, len(result.Transactions))
	for _, tx := range result.Transactions {
		if err := tx.Validate(); err != nil {
			return fmt.Errorf("rejecting import batch: %w", err)
		}
		batch = append(batch, *tx)
	}

	if err := p.transactions.SaveMany(ctx, batch); err != nil {
		return fmt.Errorf("persisting import batch: %w", err)
	}

	if fileName != "" {
		if err := p.importLog.LogImport(ctx, scope.ScopeID, fileName); err != nil {
			log.Printf("ERROR: recording import of %s: %v", fileName, err)
		}
	}

	months := make(map[string]struct{})
	for _, tx := range batch {
		months[domain.MonthKey(tx.Date)] = struct{}{}
	}
	for month := range months {
		if err := p.summaries.InvalidateForTransaction(ctx, scope.ScopeID, month+"-01"); err != nil {
			log.Printf("ERROR: %v", err)
		}
	}
	return nil
}

func (p *Preparer) buildTransaction(ctx context.Context, scope domain.Scope, row csv.Row, signedCents int64) (*domain.Transaction, error) {
	sug, err := p.engine.Suggest(ctx, scope.ScopeID, row.Description)
	if err != nil {
		return nil, fmt.Errorf("resolving suggestion for %q: %w", row.Description, err)
	}

	absCents := signedCents
	if absCents < 0 {
		absCents = -absCents
	}

	tx := &domain.Transaction{
		ID:                   p.newID(),
		ExternalID:           row.ExternalID,
		ScopeID:              scope.ScopeID,
		Date:                 row.Date,
		Description:          row.Description,
		Amount:               money.FromCents(absCents),
		Nature:               sug.Nature,
		ClassificationStatus: domain.StatusPending,
		IsConfirmed:          false,
	}

	// Negative source rows are money coming back. A keyword match already
	// chose a credit-side nature; everything else becomes a refund.
	if signedCents < 0 {
		switch sug.Nature {
		case domain.NatureCredit, domain.NaturePayment, domain.NatureTransfer:
		default:
			tx.Nature = domain.NatureRefund
		}
	}

	if sug.CategoryID != "" {
		tx.CategoryID = sug.CategoryID
		tx.SubcategoryID = sug.SubcategoryID
		tx.ClassificationStatus = domain.StatusAuto
		tx.IsSuggested = true
	}
	if sug.FromRecurring {
		tx.IsRecurring = true
	}

	if scope.ScopeType == domain.ScopeShared {
		tx.PayerShare = p.shareFor(scope, sug, absCents)
	}
	return tx, nil
}

// shareFor derives the payer split for a shared-scope transaction. A
// recurring rule's share fixes the ratio; otherwise the scope default
// applies. The split is allocated in cents so the parts always sum to the
// amount exactly.
func (p *Preparer) shareFor(scope domain.Scope, sug classify.Suggestion, absCents int64) *domain.PayerShare {
	pctA := scope.SplitA()
	if sug.PayerShare != nil {
		total := sug.PayerShare.A.Add(sug.PayerShare.B)
		if total.IsPositive() {
			pctA = sug.PayerShare.A.Div(total).Mul(decimal.NewFromInt(100))
		}
	}
	a, b := money.AllocateCents(absCents, pctA)
	return &domain.PayerShare{A: money.FromCents(a), B: money.FromCents(b)}
}

// neutralize pairs charge/refund rows inside the batch and marks both so
// they cancel out of every aggregate. The refund side keeps the refund
// nature for display.
func (p *Preparer) neutralize(txs []*domain.Transaction, candidates []dedup.Candidate) {
	if p.matcher == nil {
		return
	}
	for _, pair := range p.matcher.Pairs(candidates) {
		txs[pair.Charge].IsNeutralized = true
		txs[pair.Refund].IsNeutralized = true
		txs[pair.Refund].Nature = domain.NatureRefund
	}
}
