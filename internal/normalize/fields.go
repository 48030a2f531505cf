package normalize

import (
	"strings"
	"time"

	"github.com/VedaVachan/COD-Mobile-insights/internal/domain"
)

// position carries the row context needed by synthesized defaults
type position struct {
	index int
	base  time.Time
}

// rule resolves one canonical field from the first present alias.
// apply always runs; present is false when no alias carried a value.
type rule struct {
	field   string
	aliases []string
	apply   func(m *domain.Match, v any, present bool, pos position)
}

// rules is evaluated top to bottom. mode precedes duration_min because the
// duration default depends on it.
var rules = []rule{
	{"id", []string{"id", "ID", "Id", "match_id", "matchId", "MatchID"}, applyID},
	{"date", []string{"date", "Date", "DATE", "timestamp", "Timestamp", "played_at", "datetime"}, applyDate},
	{"map", []string{"map", "Map", "MAP", "map_name", "mapName"}, text(func(m *domain.Match) *string { return &m.Map }, domain.UnknownMap)},
	{"mode", []string{"mode", "Mode", "MODE", "game_mode", "gameMode"}, text(func(m *domain.Match) *string { return &m.Mode }, domain.DefaultMode)},
	{"result", []string{"result", "Result", "RESULT", "outcome", "Outcome"}, text(func(m *domain.Match) *string { return &m.Result }, "")},
	{"score", []string{"score", "Score", "SCORE", "points"}, metric(func(m *domain.Match) *float64 { return &m.Score })},
	{"kills", []string{"kills", "Kills", "KILLS", "Kill", "kill", "K"}, metric(func(m *domain.Match) *float64 { return &m.Kills })},
	{"deaths", []string{"deaths", "Deaths", "DEATHS", "Death", "death", "D"}, metric(func(m *domain.Match) *float64 { return &m.Deaths })},
	{"assists", []string{"assists", "Assists", "ASSISTS", "Assist", "A"}, metric(func(m *domain.Match) *float64 { return &m.Assists })},
	{"impact", []string{"impact", "Impact", "IMPACT"}, metric(func(m *domain.Match) *float64 { return &m.Impact })},
	{"accuracy", []string{"accuracy", "Accuracy", "ACCURACY", "acc", "Acc"}, metric(func(m *domain.Match) *float64 { return &m.Accuracy })},
	{"duration_min", []string{"duration_min", "Duration", "duration", "duration_minutes", "minutes"}, applyDuration},
	{"mvp", []string{"mvp", "MVP", "Mvp", "is_mvp"}, applyMVP},
}

// known holds every alias in the table
var known = func() map[string]bool {
	m := make(map[string]bool)
	for _, r := range rules {
		for _, a := range r.aliases {
			m[a] = true
		}
	}
	return m
}()

// lookup returns the first present value among aliases
func lookup(row domain.RawRow, aliases []string) (any, bool) {
	for _, a := range aliases {
		if v, ok := row[a]; ok && present(v) {
			return v, true
		}
	}
	return nil, false
}

func applyID(m *domain.Match, v any, ok bool, pos position) {
	if ok {
		if n, isNum := strictNumber(v); isNum {
			m.ID = domain.NumericID(n)
			return
		}
		if s := stringify(v); s != "" {
			m.ID = domain.TextID(s)
			return
		}
	}
	m.ID = domain.NumericID(float64(pos.index + 1))
}

func applyDate(m *domain.Match, v any, ok bool, pos position) {
	if ok {
		if t, valid := Date(v); valid {
			m.Date = t
			return
		}
	}
	m.Date = SynthesizeDate(pos.base, pos.index)
}

func text(target func(*domain.Match) *string, fallback string) func(*domain.Match, any, bool, position) {
	return func(m *domain.Match, v any, ok bool, _ position) {
		s := ""
		if ok {
			s = Text(v)
		}
		if s == "" {
			s = fallback
		}
		*target(m) = s
	}
}

func metric(target func(*domain.Match) *float64) func(*domain.Match, any, bool, position) {
	return func(m *domain.Match, v any, ok bool, _ position) {
		f := 0.0
		if ok {
			f = Number(v, 0)
		}
		if f < 0 {
			f = 0
		}
		*target(m) = f
	}
}

func applyDuration(m *domain.Match, v any, ok bool, _ position) {
	fallback := DefaultDuration(m.Mode)
	if ok {
		if d := Number(v, fallback); d > 0 {
			m.DurationMin = d
			return
		}
	}
	m.DurationMin = fallback
}

func applyMVP(m *domain.Match, v any, ok bool, _ position) {
	m.MVP = ok && Bool(v)
}

// DefaultDuration is 18 minutes for search-and-destroy style modes, else 15
func DefaultDuration(mode string) float64 {
	if strings.Contains(strings.ToLower(mode), "s&d") {
		return 18
	}
	return 15
}

// IsWin reports whether result contains "win" anywhere, case-insensitively.
// "winless streak" counts as a win; callers rely on the substring rule.
func IsWin(result string) bool {
	return strings.Contains(strings.ToLower(result), "win")
}

// SynthesizeDate returns base moved back index whole days
func SynthesizeDate(base time.Time, index int) time.Time {
	return base.UTC().AddDate(0, 0, -index)
}

// Fields returns the canonical field names with their accepted aliases, in resolution order
func Fields() map[string][]string {
	out := make(map[string][]string, len(rules))
	for _, r := range rules {
		out[r.field] = append([]string(nil), r.aliases...)
	}
	return out
}
