// Package ui renders CLI output with color.
package ui

import (
	"fmt"
	"strings"

	"github.com/fatih/color"

	"github.com/rchaves649/finscope/internal/domain"
)

var (
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow, color.Bold)
	blue   = color.New(color.FgBlue)
	red    = color.New(color.FgRed)
)

// Header prints a formatted header
func Header(text string) {
	line := strings.Repeat("=", 60)
	green.Printf("\n%s\n", line)
	green.Printf("%-60s\n", center(text, 60))
	green.Printf("%s\n\n", line)
}

// Success prints a success message
func Success(text string) {
	green.Printf("  → %s\n", text)
}

// Info prints an info message
func Info(text string) {
	fmt.Printf("  → %s\n", text)
}

// Warning prints a warning message
func Warning(text string) {
	yellow.Printf("  ⚠ %s\n", text)
}

// Error prints an error message
func Error(text string) {
	red.Printf("Error: %s\n", text)
}

// ImportResult prints what an import prepared.
func ImportResult(count, dropped int, duplicateFile bool) {
	if duplicateFile {
		Warning("this file name was imported before")
	}
	Success(fmt.Sprintf("%d transactions prepared for review", count))
	if dropped > 0 {
		Info(fmt.Sprintf("%d rows dropped as duplicates", dropped))
	}
}

// Transactions prints a transaction table.
func Transactions(txs []domain.Transaction) {
	for _, tx := range txs {
		marker := " "
		switch {
		case tx.IsNeutralized:
			marker = "~"
		case !tx.IsConfirmed:
			marker = "?"
		}
		line := fmt.Sprintf("%s %s  %10s  %-12s  %s",
			marker, tx.Date, tx.Amount.StringFixed(2), tx.EffectiveNature(), tx.Description)
		switch {
		case tx.IsNeutralized:
			blue.Println(line)
		case !tx.IsConfirmed:
			yellow.Println(line)
		default:
			fmt.Println(line)
		}
	}
}

// Summary prints a computed period summary.
func Summary(s *domain.Summary) {
	fmt.Printf("Total spent:   %s\n", s.TotalSpent.StringFixed(2))
	fmt.Printf("Invoice total: %s\n", s.NatureTotals.InvoiceTotal.StringFixed(2))
	if s.PendingCount > 0 {
		Warning(fmt.Sprintf("%d transactions pending review", s.PendingCount))
	}
	if len(s.TotalsByCategory) > 0 {
		fmt.Println("\nBy category:")
		for _, cat := range s.TotalsByCategory {
			fmt.Printf("  %-30s %12s\n", cat.Name, cat.Value.StringFixed(2))
		}
	}
	if len(s.MonthlyEvolution) > 0 {
		fmt.Println("\nLast months:")
		for _, entry := range s.MonthlyEvolution {
			fmt.Printf("  %s %-4s %12s\n", entry.BucketKey, entry.Label, entry.Total.StringFixed(2))
		}
	}
}

// center centers text within a given width
func center(text string, width int) string {
	if len(text) >= width {
		return text
	}
	padding := (width - len(text)) / 2
	return strings.Repeat(" ", padding) + text
}
