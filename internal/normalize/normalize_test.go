package normalize

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/VedaVachan/COD-Mobile-insights/internal/domain"
)

var base = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func TestNormalize_FullRow(t *testing.T) {
	row := domain.RawRow{
		"id":           "42",
		"date":         "2025-03-01T18:30:00Z",
		"map":          "Firing Range",
		"mode":         "Search & Destroy",
		"result":       "Win",
		"score":        "2,150",
		"kills":        "12 kills",
		"deaths":       7,
		"assists":      json.Number("3"),
		"impact":       88.5,
		"accuracy":     "41.2%",
		"duration_min": "22",
		"mvp":          "Yes",
	}

	got := Normalize(row, 5, base)
	want := domain.Match{
		ID:          domain.NumericID(42),
		Date:        time.Date(2025, 3, 1, 18, 30, 0, 0, time.UTC),
		Map:         "Firing Range",
		Mode:        "Search & Destroy",
		Result:      "Win",
		Win:         true,
		Score:       2150,
		Kills:       12,
		Deaths:      7,
		Assists:     3,
		Impact:      88.5,
		Accuracy:    41.2,
		DurationMin: 22,
		MVP:         true,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Normalize() mismatch (-want +got):\n%s", diff)
	}
}

func TestNormalize_EmptyRowDefaults(t *testing.T) {
	got := Normalize(domain.RawRow{}, 0, base)

	assert.Equal(t, domain.NumericID(1), got.ID)
	assert.Equal(t, base, got.Date)
	assert.Equal(t, domain.UnknownMap, got.Map)
	assert.Equal(t, domain.DefaultMode, got.Mode)
	assert.Equal(t, "", got.Result)
	assert.False(t, got.Win)
	assert.False(t, got.MVP)
	assert.Equal(t, 15.0, got.DurationMin)
	assert.Zero(t, got.Kills)
	assert.Zero(t, got.Score)
}

func TestNormalize_AliasPrecedence(t *testing.T) {
	tests := []struct {
		name string
		row  domain.RawRow
		want float64
	}{
		{"lowercase wins over capitalized", domain.RawRow{"kills": "3", "Kills": "9"}, 3},
		{"empty string falls through", domain.RawRow{"kills": "", "Kills": "9"}, 9},
		{"whitespace is present", domain.RawRow{"kills": "   ", "Kills": "9"}, 0},
		{"empty json number falls through", domain.RawRow{"kills": json.Number(""), "Kills": "9"}, 9},
		{"nil falls through", domain.RawRow{"kills": nil, "K": 6}, 6},
		{"zero is present", domain.RawRow{"kills": 0, "Kills": 9}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(tt.row, 0, base)
			if got.Kills != tt.want {
				t.Errorf("Kills = %v, want %v", got.Kills, tt.want)
			}
		})
	}
}

func TestNormalize_NumericCoercion(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  float64
	}{
		{"trailing words", "12 kills", 12},
		{"letters only", "abc", 0},
		{"decimal", "7.5", 7.5},
		{"negative clamps to zero", "-4", 0},
		{"inner minus dropped", "1-2", 12},
		{"two dots", "1.2.3", 0},
		{"native int", 9, 9},
		{"json number", json.Number("11"), 11},
		{"NaN", math.NaN(), 0},
		{"infinity", math.Inf(1), 0},
		{"bool", true, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(domain.RawRow{"kills": tt.value}, 0, base)
			if got.Kills != tt.want {
				t.Errorf("Kills(%v) = %v, want %v", tt.value, got.Kills, tt.want)
			}
		})
	}
}

func TestNormalize_WinSubstring(t *testing.T) {
	tests := []struct {
		result string
		want   bool
	}{
		{"Win by forfeit", true},
		{"WIN", true},
		{"Defeat", false},
		{"Loss", false},
		{"", false},
		// Substring rule: "winless" still counts. Pinned until the rule changes.
		{"winless streak continues", true},
	}

	for _, tt := range tests {
		t.Run(tt.result, func(t *testing.T) {
			got := Normalize(domain.RawRow{"result": tt.result}, 0, base)
			if got.Win != tt.want {
				t.Errorf("Win(%q) = %v, want %v", tt.result, got.Win, tt.want)
			}
		})
	}
}

func TestNormalize_WinColumnIgnored(t *testing.T) {
	got := Normalize(domain.RawRow{"win": "true", "result": "Loss"}, 0, base)
	assert.False(t, got.Win)
}

func TestNormalize_DurationDefault(t *testing.T) {
	tests := []struct {
		name string
		row  domain.RawRow
		want float64
	}{
		{"s&d mode", domain.RawRow{"mode": "S&D"}, 18},
		{"s&d embedded", domain.RawRow{"mode": "Ranked s&d"}, 18},
		{"tdm mode", domain.RawRow{"mode": "TDM"}, 15},
		{"no mode", domain.RawRow{}, 15},
		{"explicit wins", domain.RawRow{"mode": "S&D", "Duration": "9"}, 9},
		{"zero falls back", domain.RawRow{"mode": "S&D", "duration_min": "0"}, 18},
		{"garbage falls back", domain.RawRow{"duration_min": "n/a"}, 15},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(tt.row, 0, base)
			if got.DurationMin != tt.want {
				t.Errorf("DurationMin = %v, want %v", got.DurationMin, tt.want)
			}
		})
	}
}

func TestNormalize_DateSynthesis(t *testing.T) {
	got := Normalize(domain.RawRow{}, 3, base)
	assert.Equal(t, base.Add(-3*24*time.Hour), got.Date)

	bad := Normalize(domain.RawRow{"date": "not a date"}, 2, base)
	assert.Equal(t, base.Add(-48*time.Hour), bad.Date)
}

func TestNormalize_DateFormats(t *testing.T) {
	day := time.Date(2024, 11, 5, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name  string
		value any
		want  time.Time
	}{
		{"rfc3339 offset", "2024-11-05T02:00:00+02:00", day},
		{"date only", "2024-11-05", day},
		{"us date", "11/05/2024", day},
		{"short us date", "11/5/2024", day},
		{"space separated", "2024-11-05 00:00:00", day},
		{"epoch millis", float64(day.UnixMilli()), day},
		{"epoch json number", json.Number("1730764800000"), day},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(domain.RawRow{"Date": tt.value}, 9, base)
			if !got.Date.Equal(tt.want) {
				t.Errorf("Date(%v) = %v, want %v", tt.value, got.Date, tt.want)
			}
			assert.Equal(t, time.UTC, got.Date.Location())
		})
	}
}

func TestNormalize_Identifier(t *testing.T) {
	tests := []struct {
		name  string
		row   domain.RawRow
		index int
		want  domain.MatchID
	}{
		{"numeric string", domain.RawRow{"id": "17"}, 0, domain.NumericID(17)},
		{"native", domain.RawRow{"id": 3}, 0, domain.NumericID(3)},
		{"opaque text", domain.RawRow{"id": "match-12"}, 0, domain.TextID("match-12")},
		{"absent", domain.RawRow{}, 4, domain.NumericID(5)},
		{"empty", domain.RawRow{"id": ""}, 2, domain.NumericID(3)},
		{"blank text kept", domain.RawRow{"id": " "}, 0, domain.TextID(" ")},
		{"text kept verbatim", domain.RawRow{"id": " m-7 "}, 0, domain.TextID(" m-7 ")},
		{"padded number", domain.RawRow{"id": " 42 "}, 0, domain.NumericID(42)},
		{"exponent", domain.RawRow{"id": "1e3"}, 0, domain.NumericID(1000)},
		{"hex float stays text", domain.RawRow{"id": "0x1p4"}, 0, domain.TextID("0x1p4")},
		{"hex int stays text", domain.RawRow{"id": "0X10"}, 0, domain.TextID("0X10")},
		{"underscore digits stay text", domain.RawRow{"id": "1_000"}, 0, domain.TextID("1_000")},
		{"infinity stays text", domain.RawRow{"id": "Inf"}, 0, domain.TextID("Inf")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(tt.row, tt.index, base)
			assert.Equal(t, tt.want, got.ID)
		})
	}
}

func TestNormalize_MVP(t *testing.T) {
	for _, v := range []any{"1", "true", "TRUE", " yes ", "y", true, 1} {
		assert.True(t, Normalize(domain.RawRow{"MVP": v}, 0, base).MVP, "mvp %v", v)
	}
	for _, v := range []any{"0", "false", "no", "maybe", false, 2} {
		assert.False(t, Normalize(domain.RawRow{"MVP": v}, 0, base).MVP, "mvp %v", v)
	}
}

func TestNormalize_TextNormalization(t *testing.T) {
	got := Normalize(domain.RawRow{"map": "  Cafe\u0301 ", "mode": "   "}, 0, base)
	assert.Equal(t, "Caf\u00e9", got.Map)
	assert.Equal(t, domain.DefaultMode, got.Mode)
}

func TestNormalize_Idempotent(t *testing.T) {
	row := domain.RawRow{"kills": "5", "result": "win", "mode": "S&D"}
	first := Normalize(row, 7, base)
	second := Normalize(row, 7, base)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("second call differs (-first +second):\n%s", diff)
	}
}

func TestNormalize_MetricsAlwaysFinite(t *testing.T) {
	rows := []domain.RawRow{
		{"kills": math.Inf(-1), "deaths": "-", "score": ".", "accuracy": "--5"},
		{"impact": "1e400", "assists": []string{"x"}},
		{"kills": struct{}{}},
	}
	for i, row := range rows {
		m := Normalize(row, i, base)
		for _, f := range []float64{m.Kills, m.Deaths, m.Assists, m.Score, m.Impact, m.Accuracy, m.DurationMin} {
			require.False(t, math.IsNaN(f) || math.IsInf(f, 0), "row %d has non-finite metric", i)
			require.GreaterOrEqual(t, f, 0.0)
		}
	}
}

func TestAll_PreservesOrder(t *testing.T) {
	rows := []domain.RawRow{{"map": "A"}, {"map": "B"}, {"map": "C"}}
	got := All(rows, base)
	require.Len(t, got, 3)
	for i, want := range []string{"A", "B", "C"} {
		assert.Equal(t, want, got[i].Map)
		assert.Equal(t, domain.NumericID(float64(i+1)), got[i].ID)
		assert.Equal(t, base.AddDate(0, 0, -i), got[i].Date)
	}
	assert.Empty(t, All(nil, base))
}

func TestUnknownColumns(t *testing.T) {
	rows := []domain.RawRow{
		{"kills": 1, "weapon": "AK"},
		{"Kills": 1, "win": "true", "weapon": "M4"},
	}
	assert.Equal(t, []string{"weapon", "win"}, UnknownColumns(rows))
}
