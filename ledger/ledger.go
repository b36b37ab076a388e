package ledger

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const schema = `
CREATE TABLE IF NOT EXISTS fetch_outcomes (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    video_id TEXT NOT NULL DEFAULT '',
    outcome TEXT NOT NULL,
    attempts INTEGER NOT NULL DEFAULT 0,
    duration_ms INTEGER NOT NULL DEFAULT 0,
    summarized INTEGER NOT NULL DEFAULT 0,
    created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_fetch_outcomes_outcome ON fetch_outcomes(outcome);
`

// Entry is the metadata of one pipeline run. It never carries transcript or
// summary text.
type Entry struct {
	VideoID    string
	Outcome    string
	Attempts   int
	Duration   time.Duration
	Summarized bool
	CreatedAt  time.Time
}

// Ledger records pipeline outcomes in SQLite.
type Ledger struct {
	db *sql.DB
}

func Open(dbPath string) (*Ledger, error) {
	logrus.WithField("path", dbPath).Info("Opening outcome ledger")

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, pkgerrors.Wrap(err, "create ledger directory")
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "open ledger")
	}

	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(30 * time.Minute)

	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA busy_timeout=5000;"); err != nil {
		db.Close()
		return nil, pkgerrors.Wrap(err, "configure ledger")
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, pkgerrors.Wrap(err, "create ledger schema")
	}

	return &Ledger{db: db}, nil
}

func (l *Ledger) Record(ctx context.Context, e Entry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	_, err := l.db.ExecContext(ctx,
		`INSERT INTO fetch_outcomes (video_id, outcome, attempts, duration_ms, summarized, created_at)
         VALUES (?, ?, ?, ?, ?, ?)`,
		e.VideoID, e.Outcome, e.Attempts, e.Duration.Milliseconds(), e.Summarized, e.CreatedAt)
	if err != nil {
		return pkgerrors.Wrap(err, "insert outcome")
	}
	return nil
}

// Stats returns the number of recorded runs per outcome.
func (l *Ledger) Stats(ctx context.Context) (map[string]int64, error) {
	rows, err := l.db.QueryContext(ctx, "SELECT outcome, COUNT(*) FROM fetch_outcomes GROUP BY outcome")
	if err != nil {
		return nil, pkgerrors.Wrap(err, "query outcomes")
	}
	defer rows.Close()

	stats := make(map[string]int64)
	for rows.Next() {
		var outcome string
		var count int64
		if err := rows.Scan(&outcome, &count); err != nil {
			return nil, pkgerrors.Wrap(err, "scan outcome")
		}
		stats[outcome] = count
	}
	if err := rows.Err(); err != nil {
		return nil, pkgerrors.Wrap(err, "iterate outcomes")
	}
	return stats, nil
}

func (l *Ledger) Close() error {
	return l.db.Close()
}
