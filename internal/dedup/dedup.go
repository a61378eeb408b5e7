// Package dedup detects statement rows already present in storage and
// pairs charge/refund rows that cancel each other out.
package dedup

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rchaves649/finscope/internal/domain"
	"github.com/rchaves649/finscope/internal/money"
	"github.com/rchaves649/finscope/internal/normalize"
)

// Fingerprint identifies a transaction for duplicate detection. Two rows
// with the same date, absolute amount in cents and normalized description
// are considered the same purchase.
func Fingerprint(dateISO string, absCents int64, normalizedKey string) string {
	return fmt.Sprintf("%s|%d|%s", dateISO, absCents, normalizedKey)
}

// Detector decides, row by row, whether an incoming statement row is a
// re-import of a transaction already stored. Bank exports carry no stable
// row IDs in general, so the detector works on fingerprint frequencies:
// when the database holds N copies of a fingerprint, the first N file rows
// with that fingerprint are drops and any excess is genuinely new.
type Detector struct {
	externalIDs map[string]struct{}
	dbFreq      map[string]int
	fileSeen    map[string]int
}

// NewDetector indexes the scope's existing transactions. Rows that carry a
// bank-issued external ID are matched by that ID alone and excluded from
// the frequency index.
func NewDetector(existing []domain.Transaction) *Detector {
	d := &Detector{
		externalIDs: make(map[string]struct{}),
		dbFreq:      make(map[string]int),
		fileSeen:    make(map[string]int),
	}
	for _, tx := range existing {
		if tx.ExternalID != "" {
			d.externalIDs[tx.ExternalID] = struct{}{}
			continue
		}
		fp := Fingerprint(tx.Date, abs(money.ToCents(tx.Amount)), normalize.Key(tx.Description))
		d.dbFreq[fp]++
	}
	return d
}

// ShouldDrop reports whether the row duplicates a stored transaction. The
// detector is stateful across one file: each call consumes one occurrence
// of the fingerprint, so a file with three identical coffee purchases keeps
// all three when the database holds none of them.
func (d *Detector) ShouldDrop(externalID, dateISO, normalizedKey string, absCents int64) bool {
	if externalID != "" {
		_, dup := d.externalIDs[externalID]
		return dup
	}
	fp := Fingerprint(dateISO, absCents, normalizedKey)
	seen := d.fileSeen[fp]
	d.fileSeen[fp] = seen + 1
	return seen < d.dbFreq[fp]
}

// Candidate is one surviving statement row offered to the neutralization
// matcher. Index refers back to the caller's slice.
type Candidate struct {
	Index       int
	DateISO     string
	NormKey     string
	SignedCents int64
}

// Pair is a matched charge/refund couple. Refund is the index of the
// negative-amount side.
type Pair struct {
	Charge int
	Refund int
}

// Matcher pairs rows that cancel each other inside one statement file. It
// is an interface so the pairing heuristic can be swapped without touching
// the import pipeline.
type Matcher interface {
	Pairs(candidates []Candidate) []Pair
}

// PrefixWindowMatcher pairs a charge with a refund of the opposite sign and
// equal magnitude when the two dates fall within WindowDays of each other
// and the normalized descriptions are prefix-related. Each row joins at
// most one pair.
type PrefixWindowMatcher struct {
	WindowDays int
}

// NewPrefixWindowMatcher returns the default matcher with a 15-day window.
func NewPrefixWindowMatcher() *PrefixWindowMatcher {
	return &PrefixWindowMatcher{WindowDays: 15}
}

// Pairs implements Matcher. Candidates are bucketed by absolute amount and
// matched greedily in date order.
func (m *PrefixWindowMatcher) Pairs(candidates []Candidate) []Pair {
	buckets := make(map[int64][]Candidate)
	for _, c := range candidates {
		buckets[abs(c.SignedCents)] = append(buckets[abs(c.SignedCents)], c)
	}

	var pairs []Pair
	used := make(map[int]bool)

	for _, bucket := range buckets {
		sort.Slice(bucket, func(i, j int) bool {
			if bucket[i].DateISO != bucket[j].DateISO {
				return bucket[i].DateISO < bucket[j].DateISO
			}
			return bucket[i].Index < bucket[j].Index
		})
		for i := 0; i < len(bucket); i++ {
			if used[bucket[i].Index] {
				continue
			}
			for j := i + 1; j < len(bucket); j++ {
				if used[bucket[j].Index] {
					continue
				}
				a, b := bucket[i], bucket[j]
				if a.SignedCents+b.SignedCents != 0 {
					continue
				}
				if !m.withinWindow(a.DateISO, b.DateISO) {
					continue
				}
				if !prefixRelated(a.NormKey, b.NormKey) {
					continue
				}
				charge, refund := a.Index, b.Index
				if a.SignedCents < 0 {
					charge, refund = b.Index, a.Index
				}
				pairs = append(pairs, Pair{Charge: charge, Refund: refund})
				used[a.Index] = true
				used[b.Index] = true
				break
			}
		}
	}

	sort.Slice(pairs, func(i, j int) bool { return pairs[i].Charge < pairs[j].Charge })
	return pairs
}

func (m *PrefixWindowMatcher) withinWindow(a, b string) bool {
	ta, errA := time.Parse("2006-01-02", a)
	tb, errB := time.Parse("2006-01-02", b)
	if errA != nil || errB != nil {
		return false
	}
	diff := ta.Sub(tb)
	if diff < 0 {
		diff = -diff
	}
	return diff <= time.Duration(m.WindowDays)*24*time.Hour
}

// prefixRelated accepts keys where one contains the other, or where the
// first ten runes agree. Refund rows commonly repeat the merchant name with
// an extra marker such as ESTORNO appended or prepended.
func prefixRelated(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	if strings.Contains(a, b) || strings.Contains(b, a) {
		return true
	}
	ra, rb := []rune(a), []rune(b)
	const n = 10
	if len(ra) < n || len(rb) < n {
		return false
	}
	return string(ra[:n]) == string(rb[:n])
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
