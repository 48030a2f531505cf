// Package sample generates plausible match rows for demos and tests.
package sample

import (
	"math"
	"math/rand/v2"
	"time"

	"github.com/VedaVachan/COD-Mobile-insights/internal/domain"
)

// MaxCount bounds how many rows a single request may generate
const MaxCount = 365

var (
	maps  = []string{"Altar", "Shipyard", "Bunker", "Factory"}
	modes = []string{"BR", "Multiplayer", "Duel", "S&D"}
)

// NewRand returns a deterministic generator for seed
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// Generate returns n rows, one day apart, the last dated now.
// Maps and modes rotate; every metric is drawn from rng.
func Generate(n int, now time.Time, rng *rand.Rand) []domain.RawRow {
	if n < 0 {
		n = 0
	}
	now = now.UTC()
	rows := make([]domain.RawRow, 0, n)
	for i := 0; i < n; i++ {
		result := "Loss"
		if rng.Float64() > 0.6 {
			result = "Win"
		}
		rows = append(rows, domain.RawRow{
			"id":           i + 1,
			"date":         now.AddDate(0, 0, -(n - 1 - i)).Format(time.RFC3339),
			"map":          maps[i%len(maps)],
			"mode":         modes[i%len(modes)],
			"result":       result,
			"kills":        between(rng, 0, 18),
			"deaths":       between(rng, 0, 12),
			"assists":      between(rng, 0, 6),
			"score":        between(rng, 200, 2500),
			"accuracy":     math.Round((20+rng.Float64()*50)*10) / 10,
			"impact":       between(rng, 0, 150),
			"duration_min": between(rng, 5, 30),
			"mvp":          rng.Float64() > 0.8,
		})
	}
	return rows
}

// between draws an int in [lo, hi]
func between(rng *rand.Rand, lo, hi int) int {
	return lo + rng.IntN(hi-lo+1)
}
