// Package store persists the optional run ledger: one row per run and one
// per stage attempt.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/data-agent/internal/config"
	"github.com/sells-group/data-agent/internal/model"
)

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = eris.New("run not found")

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status model.RunStatus `json:"status,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for the run ledger.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, runID, query string) (*model.Run, error)
	UpdateRunStage(ctx context.Context, runID string, stage model.Stage) error
	CompleteRun(ctx context.Context, runID string, result *model.Result) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Stage events
	RecordStageEvent(ctx context.Context, ev model.StageEvent) error
	ListStageEvents(ctx context.Context, runID string) ([]model.StageEvent, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Open opens and migrates the store named by cfg.Driver. An empty driver
// returns a nil Store: the ledger is disabled.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	var (
		st  Store
		err error
	)
	switch cfg.Driver {
	case "":
		return nil, nil
	case "sqlite":
		dsn := cfg.DatabaseURL
		if dsn == "" {
			dsn = "data-agent.db"
		}
		st, err = NewSQLite(dsn)
	case "postgres":
		st, err = NewPostgres(ctx, cfg.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}
	return st, nil
}

const listLimitDefault = 100

func limitOrDefault(n int) int {
	if n <= 0 {
		return listLimitDefault
	}
	return n
}
