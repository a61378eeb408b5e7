package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rchaves649/finscope/internal/classify"
	"github.com/rchaves649/finscope/internal/config"
	"github.com/rchaves649/finscope/internal/dedup"
	"github.com/rchaves649/finscope/internal/domain"
	"github.com/rchaves649/finscope/internal/importer"
	"github.com/rchaves649/finscope/internal/nature"
	"github.com/rchaves649/finscope/internal/store"
	"github.com/rchaves649/finscope/internal/store/fire"
	"github.com/rchaves649/finscope/internal/store/sqlite"
	"github.com/rchaves649/finscope/internal/summary"
	"github.com/rchaves649/finscope/internal/transactions"
	"github.com/rchaves649/finscope/internal/ui"
)

const (
	version = "0.1.0"
)

var (
	// Global flags
	versionFlag = flag.Bool("version", false, "Show version")

	// Core CLI flags
	inputFile  = flag.String("input", "", "Statement file to import")
	scopeID    = flag.String("scope", "personal", "Scope to operate on")
	configPath = flag.String("config", "", "Configuration file (YAML)")
	dbPath     = flag.String("db", "", "SQLite database path (overrides config)")
	dryRun     = flag.Bool("dry-run", false, "Prepare the import without writing anything")

	// Reporting flags
	month = flag.String("month", "", "Show the summary for a month (YYYY-MM)")
	list  = flag.Bool("list", false, "List the scope's transactions")
)

func main() {
	// Custom usage message
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, `finscope - Bank statement ingestion and spend tracking

Usage:
  finscope [flags]

Flags:
`)
		flag.PrintDefaults()
		fmt.Fprint(os.Stderr, `
Examples:
  # Import a statement into the default scope
  finscope -input extrato.csv

  # Preview an import without writing
  finscope -input fatura.csv -scope casa -dry-run

  # Month summary
  finscope -month 2026-07 -scope casa

  # List transactions
  finscope -list -scope personal

`)
	}

	flag.Parse()

	// Handle version flag
	if *versionFlag {
		fmt.Printf("finscope version %s\n", version)
		os.Exit(0)
	}

	if *inputFile == "" && *month == "" && !*list {
		fmt.Fprintf(os.Stderr, "Error: one of -input, -month or -list is required\n\n")
		flag.Usage()
		os.Exit(1)
	}

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if *dbPath != "" {
		cfg.DatabasePath = *dbPath
	}

	scope, err := cfg.ScopeByID(*scopeID)
	if err != nil {
		return err
	}

	stores, cleanup, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	classifier, err := loadClassifier(cfg)
	if err != nil {
		return err
	}

	engine := classify.NewEngine(stores.Classification, stores.Recurring, classifier)
	summaries := summary.NewService(stores.Snapshots)
	txService := transactions.NewService(stores.Transactions, stores.Categories, stores.Subcategories, engine, summaries).
		WithLearning(cfg.Learning)

	switch {
	case *inputFile != "":
		return runImport(ctx, scope, stores, engine, summaries)
	case *month != "":
		return runSummary(ctx, scope, stores, summaries)
	default:
		return runList(ctx, scope, txService)
	}
}

func openStores(ctx context.Context, cfg *config.Config) (*store.Stores, func(), error) {
	if cfg.Firestore != nil {
		client, err := fire.NewClient(ctx, cfg.Firestore.ProjectID, cfg.Firestore.CredentialsFile)
		if err != nil {
			return nil, nil, err
		}
		return client.Stores(), func() { client.Close() }, nil
	}
	db, err := sqlite.Open(cfg.DatabasePath)
	if err != nil {
		return nil, nil, err
	}
	return db.Stores(), func() { db.Close() }, nil
}

func loadClassifier(cfg *config.Config) (*nature.Classifier, error) {
	if cfg.KeywordsFile != "" {
		return nature.LoadFromFile(cfg.KeywordsFile)
	}
	return nature.LoadEmbedded()
}

func runImport(ctx context.Context, scope domain.Scope, stores *store.Stores, engine *classify.Engine, summaries *summary.Service) error {
	data, err := os.ReadFile(*inputFile)
	if err != nil {
		return fmt.Errorf("reading statement file %s: %w", *inputFile, err)
	}
	fileName := filepath.Base(*inputFile)

	ui.Header("Importing Statement")
	ui.Info(fmt.Sprintf("file: %s, scope: %s", fileName, scope.ScopeID))

	prep := importer.NewPreparer(stores.Transactions, stores.ImportLog, summaries, engine, dedup.NewPrefixWindowMatcher())
	result, err := prep.Prepare(ctx, scope, string(data), fileName)
	if err != nil {
		return err
	}

	ui.ImportResult(len(result.Transactions), result.Dropped, result.DuplicateFile)
	ui.Transactions(deref(result.Transactions))

	if *dryRun {
		ui.Warning("dry run, nothing written")
		return nil
	}
	if len(result.Transactions) == 0 {
		ui.Info("nothing to import")
		return nil
	}
	if err := prep.Commit(ctx, scope, result, fileName); err != nil {
		return err
	}
	ui.Success("import committed")
	return nil
}

func runSummary(ctx context.Context, scope domain.Scope, stores *store.Stores, summaries *summary.Service) error {
	period, err := parseMonth(*month)
	if err != nil {
		return err
	}

	txs, err := stores.Transactions.GetAll(ctx, scope.ScopeID)
	if err != nil {
		return fmt.Errorf("loading transactions: %w", err)
	}
	cats, err := stores.Categories.GetAll(ctx, scope.ScopeID)
	if err != nil {
		return fmt.Errorf("loading categories: %w", err)
	}
	subs, err := stores.Subcategories.GetAll(ctx, scope.ScopeID)
	if err != nil {
		return fmt.Errorf("loading subcategories: %w", err)
	}

	result, err := summaries.Compute(ctx, scope.ScopeID, period, summary.Data{
		Transactions:  txs,
		Categories:    cats,
		Subcategories: subs,
	})
	if err != nil {
		return err
	}

	ui.Header(fmt.Sprintf("Summary %s", period.Key()))
	ui.Summary(result)
	return nil
}

func runList(ctx context.Context, scope domain.Scope, svc *transactions.Service) error {
	txs, err := svc.List(ctx, scope)
	if err != nil {
		return err
	}
	ui.Header(fmt.Sprintf("Transactions: %s", scope.Name))
	ui.Transactions(txs)
	return nil
}

func parseMonth(s string) (domain.Period, error) {
	parts := strings.SplitN(s, "-", 2)
	if len(parts) != 2 {
		return domain.Period{}, fmt.Errorf("invalid month %q (expected YYYY-MM)", s)
	}
	year, err := strconv.Atoi(parts[0])
	if err != nil {
		return domain.Period{}, fmt.Errorf("invalid month %q (expected YYYY-MM)", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 1 || m > 12 {
		return domain.Period{}, fmt.Errorf("invalid month %q (expected YYYY-MM)", s)
	}
	return domain.MonthPeriod(year, m), nil
}

func deref(txs []*domain.Transaction) []domain.Transaction {
	var out []domain.Transaction
	for _, tx := range txs {
		out = append(out, *tx)
	}
	return out
}
