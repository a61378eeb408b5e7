// Package csv turns raw delimited statement text into typed raw rows. Banks
// export wildly different layouts, so column positions are detected from
// header keywords with a fixed positional fallback; a failed detection is
// recovered, never fatal, because manual review downstream is the safety
// net.
package csv

import (
	"encoding/csv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rchaves649/finscope/internal/money"
)

// headerScanLimit bounds how deep into the file the header row is searched;
// some exports carry account preamble lines above it.
const headerScanLimit = 20

// descriptionFallback substitutes an empty description on rows that still
// carry an amount.
const descriptionFallback = "Sem descrição"

// Row is one parsed statement line. Amount keeps the sign from the source
// file; the import pipeline needs it for refund pairing before it flips to
// the non-negative convention.
type Row struct {
	Date        string // ISO format YYYY-MM-DD
	Description string
	Amount      decimal.Decimal
	ExternalID  string
}

// columnKeywords maps each column role to the header fragments that
// identify it, in both accented and plain spellings.
var columnKeywords = map[string][]string{
	"date":        {"data", "date", "dt", "vencimento"},
	"description": {"descrição", "descricao", "description", "histórico", "historico", "history", "detalhes", "details", "item"},
	"amount":      {"valor", "amount", "quantia", "total", "lançamento", "lancamento"},
	"externalId":  {"nsu", "autenticação", "autenticacao", "identificador", "documento", "controle"},
}

// layout holds the resolved column indexes. -1 means the column is absent.
type layout struct {
	date, desc, amount, extID int
	headerLine                int // -1 when positional fallback is in effect
}

func fallbackLayout() layout {
	return layout{date: 0, desc: 1, amount: 2, extID: -1, headerLine: -1}
}

// Parse converts statement text into raw rows. It never fails on layout
// ambiguity; at worst the positional fallback applies and unparsable rows
// degrade to zero amounts. Rows that are pure noise (zero amount, no
// description) are dropped.
func Parse(text string) []Row {
	text = strings.TrimPrefix(text, "\ufeff")

	records := split(text, detectDelimiter(text))
	if len(records) == 0 {
		return nil
	}

	lay := detectLayout(records)
	start := lay.headerLine + 1 // fallback layout has headerLine -1

	today := time.Now().Format("2006-01-02")
	rows := make([]Row, 0, len(records)-start)
	for _, record := range records[start:] {
		row, ok := buildRow(record, lay, today)
		if !ok {
			continue
		}
		rows = append(rows, row)
	}
	return rows
}

// detectDelimiter picks the field separator from the first non-empty line.
// Semicolon is the most common Brazilian export separator and wins over
// tab, which wins over comma.
func detectDelimiter(text string) rune {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		switch {
		case strings.Contains(line, ";"):
			return ';'
		case strings.Contains(line, "\t"):
			return '\t'
		default:
			return ','
		}
	}
	return ','
}

// split parses the text into records, tolerating ragged rows and stray
// quotes. If the CSV reader rejects the input entirely, a naive line split
// keeps the import alive.
func split(text string, delim rune) [][]string {
	r := csv.NewReader(strings.NewReader(text))
	r.Comma = delim
	r.LazyQuotes = true
	r.TrimLeadingSpace = true
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err == nil {
		return trimRecords(records)
	}

	var out [][]string
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		out = append(out, strings.Split(line, string(delim)))
	}
	return trimRecords(out)
}

func trimRecords(records [][]string) [][]string {
	out := records[:0]
	for _, record := range records {
		empty := true
		for i, cell := range record {
			record[i] = strings.TrimSpace(cell)
			if record[i] != "" {
				empty = false
			}
		}
		if !empty {
			out = append(out, record)
		}
	}
	return out
}

// detectLayout scores the first headerScanLimit records by how many column
// roles their cells name and maps indexes from the best-scoring line.
// Records above the header are preamble and skipped. When no line reaches
// minimum confidence (a single recognized role), the fixed positional guess
// applies.
func detectLayout(records [][]string) layout {
	limit := len(records)
	if limit > headerScanLimit {
		limit = headerScanLimit
	}

	bestLine, bestScore := -1, 0
	for i := 0; i < limit; i++ {
		score := scoreHeader(records[i])
		// The first line is header-shaped by convention and one recognized
		// role is enough; a line buried in the preamble must name at least
		// two roles so a data row mentioning "total" is not mistaken for it.
		min := 2
		if i == 0 {
			min = 1
		}
		if score >= min && score > bestScore {
			bestLine, bestScore = i, score
		}
	}
	if bestLine < 0 {
		return fallbackLayout()
	}

	lay := fallbackLayout()
	lay.headerLine = bestLine
	header := records[bestLine]
	if idx := findRole(header, "date"); idx >= 0 {
		lay.date = idx
	}
	if idx := findRole(header, "description"); idx >= 0 {
		lay.desc = idx
	}
	if idx := findRole(header, "amount"); idx >= 0 {
		lay.amount = idx
	}
	lay.extID = findRole(header, "externalId")
	return lay
}

func scoreHeader(record []string) int {
	score := 0
	for _, role := range []string{"date", "description", "amount", "externalId"} {
		if findRole(record, role) >= 0 {
			score++
		}
	}
	return score
}

func findRole(record []string, role string) int {
	for i, cell := range record {
		cell = strings.ToLower(strings.TrimSpace(cell))
		if cell == "" {
			continue
		}
		for _, kw := range columnKeywords[role] {
			if strings.Contains(cell, kw) {
				return i
			}
		}
		// "id" alone is too short for a contains match; require equality.
		if role == "externalId" && cell == "id" {
			return i
		}
	}
	return -1
}

func buildRow(record []string, lay layout, today string) (Row, bool) {
	dateRaw := cellAt(record, lay.date)
	descRaw := cellAt(record, lay.desc)
	amountRaw := cellAt(record, lay.amount)

	amount := money.ParseCurrency(amountRaw)
	if amount.IsZero() && descRaw == "" {
		return Row{}, false // noise row
	}
	if descRaw == "" {
		descRaw = descriptionFallback
	}

	date, ok := parseDate(dateRaw)
	if !ok {
		date = today
	}

	row := Row{
		Date:        date,
		Description: descRaw,
		Amount:      money.RoundToTwo(amount),
	}
	if lay.extID >= 0 {
		row.ExternalID = cellAt(record, lay.extID)
	}
	return row, true
}

func cellAt(record []string, idx int) string {
	if idx < 0 || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}

// parseDate accepts DD/MM/YYYY, DD/MM/YY and ISO dates, the latter with an
// optional time suffix, and emits day-precision ISO.
func parseDate(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}

	// ISO with a time component: keep the date part only.
	if i := strings.IndexAny(raw, "T "); i > 0 && strings.Contains(raw[:i], "-") {
		raw = raw[:i]
	}

	for _, format := range []string{"02/01/2006", "02/01/06", "2006-01-02"} {
		if t, err := time.Parse(format, raw); err == nil {
			return t.Format("2006-01-02"), true
		}
	}
	return "", false
}
