package domain

import (
	"fmt"
	"strings"
)

// PeriodKind selects how a Period bounds its dates.
type PeriodKind string

const (
	PeriodMonth PeriodKind = "month"
	PeriodYear  PeriodKind = "year"
	PeriodRange PeriodKind = "range"
)

// Period scopes a summary computation. Only month periods have a snapshot
// key; year and range periods are always recomputed.
type Period struct {
	Kind     PeriodKind
	Year     int
	Month    int // 1-12, month periods only
	StartISO string
	EndISO   string
}

// MonthPeriod builds a month period.
func MonthPeriod(year, month int) Period {
	return Period{Kind: PeriodMonth, Year: year, Month: month}
}

// YearPeriod builds a year period.
func YearPeriod(year int) Period {
	return Period{Kind: PeriodYear, Year: year}
}

// RangePeriod builds an inclusive ISO date range period.
func RangePeriod(startISO, endISO string) Period {
	return Period{Kind: PeriodRange, StartISO: startISO, EndISO: endISO}
}

// Key returns the snapshot cache key, "YYYY-MM" for month periods and the
// empty string for everything else.
func (p Period) Key() string {
	if p.Kind != PeriodMonth {
		return ""
	}
	return fmt.Sprintf("%04d-%02d", p.Year, p.Month)
}

// Contains reports whether an ISO date (day precision) falls inside the
// period. ISO dates compare correctly as strings.
func (p Period) Contains(dateISO string) bool {
	switch p.Kind {
	case PeriodMonth:
		return strings.HasPrefix(dateISO, p.Key())
	case PeriodYear:
		return strings.HasPrefix(dateISO, fmt.Sprintf("%04d-", p.Year))
	case PeriodRange:
		return dateISO >= p.StartISO && dateISO <= p.EndISO
	}
	return false
}

// MonthKey returns the "YYYY-MM" bucket of an ISO date.
func MonthKey(dateISO string) string {
	if len(dateISO) < 7 {
		return dateISO
	}
	return dateISO[:7]
}
