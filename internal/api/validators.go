package api

import (
	"fmt"
	"net/http"
	"regexp"
	"strconv"

	"github.com/VedaVachan/COD-Mobile-insights/internal/sample"
)

const (
	defaultSampleCount = 30
	defaultTimeline    = 50
	maxTimeline        = 500
)

var validExportFormats = map[string]bool{
	"csv": true,
}

// thumbnail file names written by the gallery builder
var weaponFilePattern = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*\.png$`)

// parseLimit parses and validates a limit parameter with default and max values
func parseLimit(r *http.Request, defaultLimit, maxLimit int) int {
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= maxLimit {
			return parsed
		}
	}
	return defaultLimit
}

// parseRefresh reports whether the caller asked to bypass the dataset cache
func parseRefresh(r *http.Request) bool {
	refresh, _ := strconv.ParseBool(r.URL.Query().Get("refresh"))
	return refresh
}

// parseCount parses the sample size, which must be within 1..sample.MaxCount
func parseCount(r *http.Request) (int, error) {
	c := r.URL.Query().Get("count")
	if c == "" {
		return defaultSampleCount, nil
	}
	n, err := strconv.Atoi(c)
	if err != nil || n < 1 || n > sample.MaxCount {
		return 0, fmt.Errorf("count must be between 1 and %d", sample.MaxCount)
	}
	return n, nil
}

// parseSeed returns the seed parameter, or ok=false when absent
func parseSeed(r *http.Request) (seed uint64, ok bool, err error) {
	s := r.URL.Query().Get("seed")
	if s == "" {
		return 0, false, nil
	}
	seed, err = strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("seed must be a non-negative integer")
	}
	return seed, true, nil
}

// validateExportFormat checks if an export format is supported over HTTP
func validateExportFormat(format string) bool {
	return validExportFormats[format]
}

// validateWeaponFile checks a thumbnail name before it touches the filesystem
func validateWeaponFile(name string) bool {
	return weaponFilePattern.MatchString(name)
}
