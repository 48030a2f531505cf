// Package export writes match collections back out as delimited text or SQLite snapshots.
package export

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/VedaVachan/COD-Mobile-insights/internal/domain"
)

// field is one named column of an exported record
type field struct {
	name  string
	value any
}

// record lists a match's columns in canonical order
func record(m domain.Match) []field {
	var id any = m.ID.Num
	if !m.ID.IsNumeric() {
		id = m.ID.Text
	}
	return []field{
		{"id", id},
		{"date", domain.FormatDate(m.Date)},
		{"map", m.Map},
		{"mode", m.Mode},
		{"result", m.Result},
		{"win", m.Win},
		{"score", m.Score},
		{"kills", m.Kills},
		{"deaths", m.Deaths},
		{"assists", m.Assists},
		{"impact", m.Impact},
		{"accuracy", m.Accuracy},
		{"duration_min", m.DurationMin},
		{"mvp", m.MVP},
	}
}

// cell renders one value. Only strings containing a comma are quoted, with
// inner quotes doubled; everything else is written verbatim.
func cell(v any) string {
	switch x := v.(type) {
	case string:
		if strings.Contains(x, ",") {
			return `"` + strings.ReplaceAll(x, `"`, `""`) + `"`
		}
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		return ""
	}
}

// WriteCSV writes matches as delimited text. The header comes from the first
// record's field names; nothing is written for an empty collection.
func WriteCSV(w io.Writer, matches []domain.Match) error {
	if len(matches) == 0 {
		return nil
	}

	bw := bufio.NewWriter(w)
	header := record(matches[0])
	names := make([]string, len(header))
	for i, f := range header {
		names[i] = f.name
	}
	bw.WriteString(strings.Join(names, ","))
	bw.WriteByte('\n')

	cells := make([]string, len(header))
	for _, m := range matches {
		for i, f := range record(m) {
			cells[i] = cell(f.value)
		}
		bw.WriteString(strings.Join(cells, ","))
		bw.WriteByte('\n')
	}
	return bw.Flush()
}
