package domain

import "fmt"

// ValidationError reports a write-time invariant violation. It is fatal for
// the single write that raised it and must be detected before the entity
// reaches storage.
type ValidationError struct {
	Entity  string
	ID      string
	Field   string
	Value   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s %s: %s: %s", e.Entity, e.ID, e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.Entity, e.Field, e.Message)
}

// ShareMismatchError blocks confirmation of a shared-scope transaction whose
// payer share does not sum to the total in cents. The import itself is not
// blocked; the user must correct the split before confirming.
type ShareMismatchError struct {
	TransactionID string
	WantCents     int64
	GotCents      int64
}

func (e *ShareMismatchError) Error() string {
	return fmt.Sprintf("transaction %s: payer share sums to %d cents, want %d", e.TransactionID, e.GotCents, e.WantCents)
}
