// Package store persists fetched inspection snapshots so repeated runs over
// the same window can skip the registry.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/inspection-risk/internal/model"
)

// Snapshot is one fetch of the registry for a time window.
type Snapshot struct {
	ID          string
	Days        int
	FetchedAt   time.Time
	Inspections []model.Inspection
}

// Store persists snapshots.
type Store interface {
	// SaveSnapshot stores rows fetched now for the window.
	SaveSnapshot(ctx context.Context, days int, rows []model.Inspection) (*Snapshot, error)
	// LatestSnapshot returns the newest snapshot for the window fetched within
	// maxAge, or nil when there is none.
	LatestSnapshot(ctx context.Context, days int, maxAge time.Duration) (*Snapshot, error)
	// DeleteExpired removes snapshots older than maxAge and reports how many.
	DeleteExpired(ctx context.Context, maxAge time.Duration) (int, error)

	Migrate(ctx context.Context) error
	Close() error
}

// Drivers accepted by Open.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverNone     = "none"
)

// DefaultSQLitePath is used when the sqlite driver has no DSN.
const DefaultSQLitePath = "inspection-risk.db"

// Open connects to the configured driver and migrates it. The none driver
// returns a nil Store and no error.
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	var (
		s   Store
		err error
	)
	switch driver {
	case DriverNone, "":
		return nil, nil
	case DriverSQLite:
		if dsn == "" {
			dsn = DefaultSQLitePath
		}
		s, err = NewSQLite(dsn)
	case DriverPostgres:
		s, err = NewPostgres(ctx, dsn, nil)
	default:
		return nil, eris.Errorf("store: unsupported driver %q", driver)
	}
	if err != nil {
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

func cutoff(maxAge time.Duration) time.Time {
	return time.Now().UTC().Add(-maxAge)
}
