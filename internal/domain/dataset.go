package domain

import "time"

// Dataset is one loaded, normalized collection of matches. It is never mutated
// after construction; a reload or upload produces a new Dataset.
type Dataset struct {
	ID       string    `json:"id"`
	Source   string    `json:"source"`
	Format   string    `json:"format"`
	LoadedAt time.Time `json:"loaded_at"`
	Matches  []Match   `json:"matches"`
}

// Trends holds the per-match chart series in input order
type Trends struct {
	Dates    []string  `json:"dates"`
	Kills    []float64 `json:"kills"`
	Accuracy []float64 `json:"accuracy"`
	Score    []float64 `json:"score"`
	Impact   []float64 `json:"impact"`
}

// Dashboard is everything the front end renders for one dataset
type Dashboard struct {
	DatasetID      string           `json:"dataset_id"`
	Source         string           `json:"source"`
	LoadedAt       time.Time        `json:"loaded_at"`
	Summary        AggregateSummary `json:"summary"`
	Maps           []GroupBreakdown `json:"maps"`
	Modes          []GroupBreakdown `json:"modes"`
	Timeline       []Match          `json:"timeline"`
	Trends         Trends           `json:"trends"`
	KDDistribution []float64        `json:"kd_distribution"`
}
