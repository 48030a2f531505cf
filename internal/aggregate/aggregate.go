// Package aggregate computes dashboard metrics over normalized matches.
// All functions are single-pass, leave their input untouched, and return
// zero values for empty input.
package aggregate

import (
	"math"

	"github.com/VedaVachan/COD-Mobile-insights/internal/domain"
)

// TrendDateLayout labels trend points by calendar day
const TrendDateLayout = "2006-01-02"

// KeyFunc selects the grouping key for a match
type KeyFunc func(domain.Match) string

// MapKey groups by map name
func MapKey(m domain.Match) string { return m.Map }

// ModeKey groups by mode name
func ModeKey(m domain.Match) string { return m.Mode }

// ResultKey groups by raw result text
func ResultKey(m domain.Match) string { return m.Result }

func divisor(n int) float64 {
	return float64(max(1, n))
}

// Summarize computes dataset-wide means, rates, and the composite K/D
func Summarize(matches []domain.Match) domain.AggregateSummary {
	var kills, deaths, assists, score, impact, accuracy, duration float64
	var wins, mvps int
	for _, m := range matches {
		kills += m.Kills
		deaths += m.Deaths
		assists += m.Assists
		score += m.Score
		impact += m.Impact
		accuracy += m.Accuracy
		duration += m.DurationMin
		if m.Win {
			wins++
		}
		if m.MVP {
			mvps++
		}
	}

	n := divisor(len(matches))
	s := domain.AggregateSummary{
		Total:          len(matches),
		Wins:           wins,
		MVPs:           mvps,
		AvgKills:       kills / n,
		AvgDeaths:      deaths / n,
		AvgAssists:     assists / n,
		AvgScore:       score / n,
		AvgImpact:      impact / n,
		AvgAccuracy:    accuracy / n,
		AvgDurationMin: duration / n,
		WinRate:        float64(wins) / n * 100,
		MVPRate:        float64(mvps) / n * 100,
	}
	s.KD = s.AvgKills / math.Max(1, s.AvgDeaths)
	return s
}

// GroupBy buckets matches by key, keeping groups in first-seen order
func GroupBy(matches []domain.Match, key KeyFunc) []domain.GroupBreakdown {
	groups := make([]domain.GroupBreakdown, 0)
	index := make(map[string]int)
	for _, m := range matches {
		k := key(m)
		i, ok := index[k]
		if !ok {
			i = len(groups)
			index[k] = i
			groups = append(groups, domain.GroupBreakdown{Key: k})
		}
		g := &groups[i]
		g.Matches++
		g.Kills += m.Kills
		if m.Win {
			g.Wins++
		}
	}

	for i := range groups {
		g := &groups[i]
		g.AvgKills = g.Kills / divisor(g.Matches)
		g.WinRate = float64(g.Wins) / divisor(g.Matches) * 100
	}
	return groups
}

// ByMap is GroupBy keyed on map name
func ByMap(matches []domain.Match) []domain.GroupBreakdown {
	return GroupBy(matches, MapKey)
}

// ByMode is GroupBy keyed on mode
func ByMode(matches []domain.Match) []domain.GroupBreakdown {
	return GroupBy(matches, ModeKey)
}

// Timeline returns a copy of matches in reverse input order
func Timeline(matches []domain.Match) []domain.Match {
	out := make([]domain.Match, len(matches))
	for i, m := range matches {
		out[len(matches)-1-i] = m
	}
	return out
}

// Trends extracts the per-match chart series in input order
func Trends(matches []domain.Match) domain.Trends {
	t := domain.Trends{
		Dates:    make([]string, len(matches)),
		Kills:    make([]float64, len(matches)),
		Accuracy: make([]float64, len(matches)),
		Score:    make([]float64, len(matches)),
		Impact:   make([]float64, len(matches)),
	}
	for i, m := range matches {
		t.Dates[i] = m.Date.UTC().Format(TrendDateLayout)
		t.Kills[i] = m.Kills
		t.Accuracy[i] = m.Accuracy
		t.Score[i] = m.Score
		t.Impact[i] = m.Impact
	}
	return t
}

// KDDistribution returns kills / max(1, deaths) for each match
func KDDistribution(matches []domain.Match) []float64 {
	out := make([]float64, len(matches))
	for i, m := range matches {
		out[i] = m.Kills / math.Max(1, m.Deaths)
	}
	return out
}
