package export

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"strconv"
	"time"

	_ "modernc.org/sqlite"

	"github.com/VedaVachan/COD-Mobile-insights/internal/aggregate"
	"github.com/VedaVachan/COD-Mobile-insights/internal/domain"
)

//go:embed schema.sql
var schema string

// DatasetInfo describes one dataset stored in a snapshot
type DatasetInfo struct {
	ID         string    `json:"id"`
	Source     string    `json:"source"`
	Format     string    `json:"format"`
	LoadedAt   time.Time `json:"loaded_at"`
	ExportedAt time.Time `json:"exported_at"`
	Matches    int       `json:"matches"`
}

// Snapshot is a standalone SQLite file holding exported datasets
type Snapshot struct {
	db *sql.DB
}

// OpenSnapshot opens or creates the snapshot file at path
func OpenSnapshot(path string) (*Snapshot, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening snapshot: %w", err)
	}

	// foreign keys are per connection, so keep exactly one
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON; PRAGMA busy_timeout = 5000;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting pragmas: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return &Snapshot{db: db}, nil
}

// Close closes the snapshot
func (s *Snapshot) Close() error {
	return s.db.Close()
}

// Write stores ds, replacing any earlier copy with the same id
func (s *Snapshot) Write(ctx context.Context, ds *domain.Dataset) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM datasets WHERE id = ?", ds.ID); err != nil {
		return fmt.Errorf("clearing dataset: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO datasets (id, source, format, loaded_at, exported_at)
		VALUES (?, ?, ?, ?, ?)
	`, ds.ID, ds.Source, ds.Format, domain.FormatDate(ds.LoadedAt), domain.FormatDate(time.Now())); err != nil {
		return fmt.Errorf("inserting dataset: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO matches (dataset_id, position, match_id, match_id_numeric, played_at, map, mode, result,
			win, score, kills, deaths, assists, impact, accuracy, duration_min, mvp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing match insert: %w", err)
	}
	defer stmt.Close()

	for i, m := range ds.Matches {
		if _, err := stmt.ExecContext(ctx, ds.ID, i, m.ID.String(), m.ID.IsNumeric(), domain.FormatDate(m.Date),
			m.Map, m.Mode, m.Result, m.Win, m.Score, m.Kills, m.Deaths, m.Assists, m.Impact,
			m.Accuracy, m.DurationMin, m.MVP); err != nil {
			return fmt.Errorf("inserting match %d: %w", i, err)
		}
	}

	for i, g := range aggregate.ByMap(ds.Matches) {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO map_breakdown (dataset_id, position, map, matches, kills, wins, avg_kills, win_rate)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, ds.ID, i, g.Key, g.Matches, g.Kills, g.Wins, g.AvgKills, g.WinRate); err != nil {
			return fmt.Errorf("inserting map breakdown: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing snapshot: %w", err)
	}
	return nil
}

// Datasets lists stored datasets, most recently exported first
func (s *Snapshot) Datasets(ctx context.Context) ([]DatasetInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT d.id, d.source, d.format, d.loaded_at, d.exported_at,
			(SELECT COUNT(*) FROM matches m WHERE m.dataset_id = d.id)
		FROM datasets d ORDER BY d.exported_at DESC, d.id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DatasetInfo
	for rows.Next() {
		var info DatasetInfo
		var loadedAt, exportedAt string
		if err := rows.Scan(&info.ID, &info.Source, &info.Format, &loadedAt, &exportedAt, &info.Matches); err != nil {
			return nil, err
		}
		info.LoadedAt = parseTimestamp(loadedAt)
		info.ExportedAt = parseTimestamp(exportedAt)
		out = append(out, info)
	}
	return out, rows.Err()
}

// Matches returns the matches of one dataset in their original order
func (s *Snapshot) Matches(ctx context.Context, datasetID string) ([]domain.Match, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT match_id, match_id_numeric, played_at, map, mode, result, win, score, kills, deaths,
			assists, impact, accuracy, duration_min, mvp
		FROM matches WHERE dataset_id = ? ORDER BY position
	`, datasetID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	matches := make([]domain.Match, 0)
	for rows.Next() {
		var m domain.Match
		var id, playedAt string
		var numeric bool
		if err := rows.Scan(&id, &numeric, &playedAt, &m.Map, &m.Mode, &m.Result, &m.Win, &m.Score,
			&m.Kills, &m.Deaths, &m.Assists, &m.Impact, &m.Accuracy, &m.DurationMin, &m.MVP); err != nil {
			return nil, err
		}
		m.ID = domain.TextID(id)
		if numeric {
			if n, err := strconv.ParseFloat(id, 64); err == nil {
				m.ID = domain.NumericID(n)
			}
		}
		m.Date = parseTimestamp(playedAt)
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

// WriteSQLite writes ds into the snapshot file at path
func WriteSQLite(ctx context.Context, path string, ds *domain.Dataset) error {
	snap, err := OpenSnapshot(path)
	if err != nil {
		return err
	}
	if err := snap.Write(ctx, ds); err != nil {
		snap.Close()
		return err
	}
	return snap.Close()
}

// parseTimestamp reads a stored timestamp; the driver may hand back either layout
func parseTimestamp(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}
