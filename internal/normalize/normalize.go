// Package normalize turns loosely-typed input rows into canonical matches.
//
// Every function here is total: malformed values degrade to field defaults
// instead of producing errors.
package normalize

import (
	"sort"
	"time"

	"github.com/VedaVachan/COD-Mobile-insights/internal/domain"
)

// Normalize converts one raw row into a fully populated Match.
// index is the row's zero-based position and baseDate anchors synthesized dates.
func Normalize(row domain.RawRow, index int, baseDate time.Time) domain.Match {
	var m domain.Match
	pos := position{index: index, base: baseDate}
	for _, r := range rules {
		v, ok := lookup(row, r.aliases)
		r.apply(&m, v, ok, pos)
	}
	m.Win = IsWin(m.Result)
	return m
}

// All normalizes rows in order
func All(rows []domain.RawRow, baseDate time.Time) []domain.Match {
	matches := make([]domain.Match, len(rows))
	for i, row := range rows {
		matches[i] = Normalize(row, i, baseDate)
	}
	return matches
}

// UnknownColumns lists the column names across rows that no field recognizes, sorted
func UnknownColumns(rows []domain.RawRow) []string {
	seen := make(map[string]bool)
	for _, row := range rows {
		for k := range row {
			if !known[k] {
				seen[k] = true
			}
		}
	}
	cols := make([]string, 0, len(seen))
	for k := range seen {
		cols = append(cols, k)
	}
	sort.Strings(cols)
	return cols
}
