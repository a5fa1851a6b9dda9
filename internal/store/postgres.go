package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/inspection-risk/internal/db"
	"github.com/sells-group/inspection-risk/internal/model"
)

// PostgresStore implements Store using pgxpool. Snapshot rows are loaded with
// COPY into snapshot_rows, one table row per inspection row.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `mapstructure:"max_conns"`
	MinConns int32 `mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	pgxCfg.MaxConns = 4
	pgxCfg.MinConns = 1
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			pgxCfg.MaxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			pgxCfg.MinConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS snapshots (
	id           TEXT PRIMARY KEY,
	days         INTEGER NOT NULL,
	record_count INTEGER NOT NULL,
	fetched_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_snapshots_days_fetched ON snapshots(days, fetched_at DESC);

CREATE TABLE IF NOT EXISTS snapshot_rows (
	snapshot_id           TEXT NOT NULL REFERENCES snapshots(id) ON DELETE CASCADE,
	seq                   INTEGER NOT NULL,
	camis                 TEXT NOT NULL,
	dba                   TEXT NOT NULL DEFAULT '',
	boro                  TEXT NOT NULL DEFAULT '',
	building              TEXT NOT NULL DEFAULT '',
	street                TEXT NOT NULL DEFAULT '',
	zipcode               TEXT NOT NULL DEFAULT '',
	cuisine_description   TEXT NOT NULL DEFAULT '',
	inspection_date       TIMESTAMPTZ,
	action                TEXT NOT NULL DEFAULT '',
	violation_code        TEXT NOT NULL DEFAULT '',
	violation_description TEXT NOT NULL DEFAULT '',
	critical_flag         TEXT NOT NULL DEFAULT '',
	score                 DOUBLE PRECISION,
	grade                 TEXT NOT NULL DEFAULT '',
	grade_date            TIMESTAMPTZ,
	inspection_type       TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (snapshot_id, seq)
);
`

// rowColumns is the COPY and SELECT column order for snapshot_rows.
var rowColumns = []string{
	"snapshot_id", "seq", "camis", "dba", "boro", "building", "street", "zipcode",
	"cuisine_description", "inspection_date", "action", "violation_code",
	"violation_description", "critical_flag", "score", "grade", "grade_date",
	"inspection_type",
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func (s *PostgresStore) SaveSnapshot(ctx context.Context, days int, rows []model.Inspection) (*Snapshot, error) {
	snap := &Snapshot{ID: uuid.New().String(), Days: days, FetchedAt: time.Now().UTC(), Inspections: rows}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: begin snapshot")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx,
		`INSERT INTO snapshots (id, days, record_count, fetched_at) VALUES ($1, $2, $3, $4)`,
		snap.ID, days, len(rows), snap.FetchedAt,
	); err != nil {
		return nil, eris.Wrap(err, "postgres: insert snapshot")
	}

	copyRows := make([][]any, len(rows))
	for i, r := range rows {
		copyRows[i] = []any{
			snap.ID, i, r.Identifier, r.EstablishmentName, r.Borough, r.Building, r.Street, r.ZipCode,
			r.CuisineDescription, nullableTime(r.InspectionDate), r.Action, r.ViolationCode,
			r.ViolationDescription, r.CriticalFlag, r.Score, r.Grade, nullableTime(r.GradeDate),
			r.InspectionType,
		}
	}
	if _, err := db.CopyRows(ctx, tx, "snapshot_rows", rowColumns, copyRows); err != nil {
		return nil, eris.Wrap(err, "postgres: copy snapshot rows")
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, eris.Wrap(err, "postgres: commit snapshot")
	}
	return snap, nil
}

func (s *PostgresStore) LatestSnapshot(ctx context.Context, days int, maxAge time.Duration) (*Snapshot, error) {
	var snap Snapshot
	err := s.pool.QueryRow(ctx,
		`SELECT id, days, fetched_at FROM snapshots
		 WHERE days = $1 AND fetched_at > $2
		 ORDER BY fetched_at DESC LIMIT 1`,
		days, cutoff(maxAge),
	).Scan(&snap.ID, &snap.Days, &snap.FetchedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get latest snapshot for %d days", days)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT camis, dba, boro, building, street, zipcode, cuisine_description,
		        inspection_date, action, violation_code, violation_description,
		        critical_flag, score, grade, grade_date, inspection_type
		 FROM snapshot_rows WHERE snapshot_id = $1 ORDER BY seq`,
		snap.ID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: query snapshot rows %s", snap.ID)
	}
	defer rows.Close()

	snap.Inspections = []model.Inspection{}
	for rows.Next() {
		var r model.Inspection
		var inspected, graded *time.Time
		if err := rows.Scan(
			&r.Identifier, &r.EstablishmentName, &r.Borough, &r.Building, &r.Street, &r.ZipCode,
			&r.CuisineDescription, &inspected, &r.Action, &r.ViolationCode, &r.ViolationDescription,
			&r.CriticalFlag, &r.Score, &r.Grade, &graded, &r.InspectionType,
		); err != nil {
			return nil, eris.Wrap(err, "postgres: scan snapshot row")
		}
		if inspected != nil {
			r.InspectionDate = inspected.UTC()
		}
		if graded != nil {
			r.GradeDate = graded.UTC()
		}
		snap.Inspections = append(snap.Inspections, r)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate snapshot rows")
	}
	return &snap, nil
}

func (s *PostgresStore) DeleteExpired(ctx context.Context, maxAge time.Duration) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM snapshots WHERE fetched_at <= $1`, cutoff(maxAge))
	if err != nil {
		return 0, eris.Wrap(err, "postgres: delete expired snapshots")
	}
	return int(tag.RowsAffected()), nil
}
