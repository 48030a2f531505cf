package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// DateLayout is the canonical wire form of Match.Date (UTC, millisecond precision)
const DateLayout = "2006-01-02T15:04:05.000Z07:00"

// Sentinels used when a row carries no map or mode
const (
	UnknownMap  = "Unknown"
	DefaultMode = "Multiplayer"
)

// RawRow is one untyped input record, keyed by whatever column names the source used
type RawRow map[string]any

// MatchID is either a numeric or an opaque text identifier
type MatchID struct {
	Num  float64
	Text string
}

// NumericID returns a numeric identifier
func NumericID(n float64) MatchID {
	return MatchID{Num: n}
}

// TextID returns an opaque text identifier
func TextID(s string) MatchID {
	return MatchID{Text: s}
}

// IsNumeric reports whether the identifier is numeric
func (id MatchID) IsNumeric() bool {
	return id.Text == ""
}

func (id MatchID) String() string {
	if id.IsNumeric() {
		return strconv.FormatFloat(id.Num, 'f', -1, 64)
	}
	return id.Text
}

// MarshalJSON emits a JSON number for numeric ids and a string otherwise
func (id MatchID) MarshalJSON() ([]byte, error) {
	if id.IsNumeric() {
		return []byte(id.String()), nil
	}
	return json.Marshal(id.Text)
}

// UnmarshalJSON accepts either a JSON number or a JSON string
func (id *MatchID) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = TextID(s)
		return nil
	}
	var n float64
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("match id: %w", err)
	}
	*id = NumericID(n)
	return nil
}

// Match is one played session in canonical form. Every field is always populated.
type Match struct {
	ID          MatchID   `json:"id"`
	Date        time.Time `json:"date"`
	Map         string    `json:"map"`
	Mode        string    `json:"mode"`
	Result      string    `json:"result"`
	Win         bool      `json:"win"`
	Score       float64   `json:"score"`
	Kills       float64   `json:"kills"`
	Deaths      float64   `json:"deaths"`
	Assists     float64   `json:"assists"`
	Impact      float64   `json:"impact"`
	Accuracy    float64   `json:"accuracy"`
	DurationMin float64   `json:"duration_min"`
	MVP         bool      `json:"mvp"`
}

// MarshalJSON writes Date in DateLayout
func (m Match) MarshalJSON() ([]byte, error) {
	type plain Match
	return json.Marshal(struct {
		plain
		Date string `json:"date"`
	}{plain(m), FormatDate(m.Date)})
}

// FormatDate renders t in DateLayout
func FormatDate(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

// AggregateSummary holds dataset-wide metrics. Rates are percentages.
type AggregateSummary struct {
	Total          int     `json:"total"`
	Wins           int     `json:"wins"`
	MVPs           int     `json:"mvps"`
	AvgKills       float64 `json:"avg_kills"`
	AvgDeaths      float64 `json:"avg_deaths"`
	AvgAssists     float64 `json:"avg_assists"`
	AvgScore       float64 `json:"avg_score"`
	AvgImpact      float64 `json:"avg_impact"`
	AvgAccuracy    float64 `json:"avg_accuracy"`
	AvgDurationMin float64 `json:"avg_duration_min"`
	KD             float64 `json:"kd"`
	WinRate        float64 `json:"win_rate"`
	MVPRate        float64 `json:"mvp_rate"`
}

// GroupBreakdown holds per-key metrics for one group of matches
type GroupBreakdown struct {
	Key      string  `json:"key"`
	Matches  int     `json:"matches"`
	Kills    float64 `json:"kills"`
	Wins     int     `json:"wins"`
	AvgKills float64 `json:"avg_kills"`
	WinRate  float64 `json:"win_rate"`
}
