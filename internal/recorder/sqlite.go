package recorder

import (
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"BtcInsight/internal/model"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

// kpiColumns maps each indicator to its column in insight_runs.
var kpiColumns = []struct {
	kpi model.KPI
	col string
}{
	{model.KPIRSI, "rsi"},
	{model.KPIEMA7, "ema_7"},
	{model.KPIEMA30, "ema_30"},
	{model.KPIEMA60, "ema_60"},
	{model.KPIEMA200, "ema_200"},
}

// SQLiteRecorder persists refresh history to a SQLite database.
type SQLiteRecorder struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string) (*SQLiteRecorder, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL lets dashboards read while the watcher writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Info().Str("path", dbPath).Msg("sqlite recorder opened")
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS insight_runs (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp   INTEGER NOT NULL,
			asset       TEXT,
			price       REAL,
			rsi         REAL,
			ema_7       REAL,
			ema_30      REAL,
			ema_60      REAL,
			ema_200     REAL,
			insight     TEXT,
			diagnostics TEXT,
			duration_ms INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_ts ON insight_runs(timestamp)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

func (r *SQLiteRecorder) RecordRun(run *Run) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ts := run.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	args := []any{ts.Unix(), run.Asset, run.Price}
	for _, c := range kpiColumns {
		v, ok := run.Indicators[c.kpi]
		args = append(args, sql.NullFloat64{Float64: v, Valid: ok})
	}
	args = append(args, run.Insight, strings.Join(run.Diagnostics, "\n"), run.Duration.Milliseconds())

	res, err := r.db.Exec(`INSERT INTO insight_runs
		(timestamp, asset, price, rsi, ema_7, ema_30, ema_60, ema_200,
		 insight, diagnostics, duration_ms)
		VALUES (?,?,?,?,?,?,?,?,?,?,?)`, args...)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	if id, err := res.LastInsertId(); err == nil {
		run.ID = id
	}
	return nil
}

// Recent returns the newest n runs, newest first.
func (r *SQLiteRecorder) Recent(n int) ([]Run, error) {
	if n <= 0 {
		return nil, nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	rows, err := r.db.Query(`SELECT id, timestamp, asset, price, rsi, ema_7, ema_30, ema_60, ema_200,
		insight, diagnostics, duration_ms
		FROM insight_runs ORDER BY timestamp DESC, id DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var run Run
		var ts, durMs int64
		var asset, text, diags sql.NullString
		var price sql.NullFloat64
		vals := make([]sql.NullFloat64, len(kpiColumns))
		dest := []any{&run.ID, &ts, &asset, &price}
		for i := range vals {
			dest = append(dest, &vals[i])
		}
		dest = append(dest, &text, &diags, &durMs)
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		run.Timestamp = time.Unix(ts, 0)
		run.Asset = asset.String
		run.Price = price.Float64
		run.Indicators = make(map[model.KPI]float64)
		for i, c := range kpiColumns {
			if vals[i].Valid {
				run.Indicators[c.kpi] = vals[i].Float64
			}
		}
		run.Insight = text.String
		if diags.String != "" {
			run.Diagnostics = strings.Split(diags.String, "\n")
		}
		run.Duration = time.Duration(durMs) * time.Millisecond
		out = append(out, run)
	}
	return out, rows.Err()
}

func (r *SQLiteRecorder) Close() error {
	log.Info().Msg("closing sqlite recorder")
	return r.db.Close()
}
