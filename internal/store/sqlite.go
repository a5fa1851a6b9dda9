package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/inspection-risk/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. Rows are kept as a
// JSON document per snapshot.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS snapshots (
	id           TEXT PRIMARY KEY,
	days         INTEGER NOT NULL,
	record_count INTEGER NOT NULL,
	rows         TEXT NOT NULL,
	fetched_at   DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_snapshots_days_fetched ON snapshots(days, fetched_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveSnapshot(ctx context.Context, days int, rows []model.Inspection) (*Snapshot, error) {
	if rows == nil {
		rows = []model.Inspection{}
	}
	rowsJSON, err := json.Marshal(rows)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal rows")
	}

	snap := &Snapshot{ID: uuid.New().String(), Days: days, FetchedAt: time.Now().UTC(), Inspections: rows}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO snapshots (id, days, record_count, rows, fetched_at) VALUES (?, ?, ?, ?, ?)`,
		snap.ID, days, len(rows), string(rowsJSON), snap.FetchedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert snapshot")
	}
	return snap, nil
}

func (s *SQLiteStore) LatestSnapshot(ctx context.Context, days int, maxAge time.Duration) (*Snapshot, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, days, rows, fetched_at FROM snapshots
		 WHERE days = ? AND fetched_at > ?
		 ORDER BY fetched_at DESC LIMIT 1`,
		days, cutoff(maxAge),
	)

	var snap Snapshot
	var rowsJSON string
	err := row.Scan(&snap.ID, &snap.Days, &rowsJSON, &snap.FetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get latest snapshot")
	}
	if err := json.Unmarshal([]byte(rowsJSON), &snap.Inspections); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal snapshot rows")
	}
	return &snap, nil
}

func (s *SQLiteStore) DeleteExpired(ctx context.Context, maxAge time.Duration) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM snapshots WHERE fetched_at <= ?`, cutoff(maxAge))
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: delete expired snapshots")
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "sqlite: rows affected")
}
