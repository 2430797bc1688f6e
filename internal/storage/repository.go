package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"market-flight/internal/telemetry"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
	// ErrRunNotFound indicates the requested run id does not exist.
	ErrRunNotFound = errors.New("storage: run not found")
)

const (
	schemaSQL = `CREATE TABLE IF NOT EXISTS telemetry_runs (
        id            BIGSERIAL PRIMARY KEY,
        label         TEXT NOT NULL DEFAULT '',
        mode          TEXT NOT NULL,
        scenario_type TEXT NOT NULL DEFAULT '',
        seed          BIGINT NOT NULL,
        params        JSONB NOT NULL,
        frame_count   INTEGER NOT NULL,
        breached      BOOLEAN NOT NULL,
        first_breach  INTEGER,
        created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
    );
    CREATE TABLE IF NOT EXISTS telemetry_frames (
        run_id    BIGINT NOT NULL REFERENCES telemetry_runs(id) ON DELETE CASCADE,
        idx       INTEGER NOT NULL,
        ts        DOUBLE PRECISION NOT NULL,
        spot      DOUBLE PRECISION NOT NULL,
        iv        DOUBLE PRECISION NOT NULL,
        hv        DOUBLE PRECISION NOT NULL,
        x         DOUBLE PRECISION NOT NULL,
        y         DOUBLE PRECISION NOT NULL,
        z         DOUBLE PRECISION NOT NULL,
        regime    TEXT NOT NULL,
        flags     TEXT[] NOT NULL,
        PRIMARY KEY (run_id, idx)
    );`

	insertRunSQL = `INSERT INTO telemetry_runs (
        label,
        mode,
        scenario_type,
        seed,
        params,
        frame_count,
        breached,
        first_breach
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8
    )
    RETURNING id, created_at;`

	getRunSQL = `SELECT
        id,
        label,
        mode,
        scenario_type,
        seed,
        params,
        frame_count,
        breached,
        first_breach,
        created_at
    FROM telemetry_runs
    WHERE id = $1;`

	listRecentRunsSQL = `SELECT
        id,
        label,
        mode,
        scenario_type,
        seed,
        params,
        frame_count,
        breached,
        first_breach,
        created_at
    FROM telemetry_runs
    ORDER BY created_at DESC, id DESC
    LIMIT $1;`

	listFramesSQL = `SELECT
        ts,
        spot,
        iv,
        hv,
        x,
        y,
        z,
        regime,
        flags
    FROM telemetry_frames
    WHERE run_id = $1
    ORDER BY idx;`

	deleteRunsBeforeSQL = `DELETE FROM telemetry_runs WHERE created_at < $1;`
)

var frameColumns = []string{"run_id", "idx", "ts", "spot", "iv", "hv", "x", "y", "z", "regime", "flags"}

// RunStore defines persistence of generated sequences.
type RunStore interface {
	SaveRun(ctx context.Context, run Run, frames []telemetry.Frame) (Run, error)
	GetRun(ctx context.Context, id int64) (Run, error)
	ListRecentRuns(ctx context.Context, limit int) ([]Run, error)
	LoadFrames(ctx context.Context, runID int64) ([]telemetry.Frame, error)
	DeleteRunsBefore(ctx context.Context, olderThan time.Time) (int64, error)
}

// Store persists runs in PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// EnsureSchema creates the tables when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// SaveRun inserts the run header and bulk-copies its frames in one transaction.
func (s *Store) SaveRun(ctx context.Context, run Run, frames []telemetry.Frame) (Run, error) {
	pool, err := s.getPool()
	if err != nil {
		return Run{}, err
	}

	params := run.Params
	if len(params) == 0 {
		params = json.RawMessage("{}")
	}

	var firstBreach interface{}
	if run.FirstBreach != nil {
		firstBreach = *run.FirstBreach
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return Run{}, fmt.Errorf("begin save run: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := tx.QueryRow(ctx, insertRunSQL,
		run.Label,
		run.Mode,
		run.ScenarioType,
		int64(run.Seed),
		[]byte(params),
		len(frames),
		run.Breached,
		firstBreach,
	).Scan(&run.ID, &run.CreatedAt); err != nil {
		return Run{}, fmt.Errorf("insert run: %w", err)
	}

	rows := make([][]interface{}, len(frames))
	for i, f := range frames {
		rows[i] = []interface{}{
			run.ID, i, f.Timestamp, f.Spot, f.IV, f.HV, f.X, f.Y, f.Z,
			f.Regime.String(), f.FlagNames(),
		}
	}
	if _, err := tx.CopyFrom(ctx, pgx.Identifier{"telemetry_frames"}, frameColumns, pgx.CopyFromRows(rows)); err != nil {
		return Run{}, fmt.Errorf("copy frames: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Run{}, fmt.Errorf("commit save run: %w", err)
	}

	run.FrameCount = len(frames)
	run.Params = params
	return run, nil
}

// GetRun loads a single run header.
func (s *Store) GetRun(ctx context.Context, id int64) (Run, error) {
	pool, err := s.getPool()
	if err != nil {
		return Run{}, err
	}

	run, err := scanRun(pool.QueryRow(ctx, getRunSQL, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Run{}, ErrRunNotFound
	}
	if err != nil {
		return Run{}, fmt.Errorf("get run: %w", err)
	}
	return run, nil
}

// ListRecentRuns lists the newest runs first.
func (s *Store) ListRecentRuns(ctx context.Context, limit int) ([]Run, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentRunsSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent runs: %w", queryErr)
	}
	defer rows.Close()

	runs := make([]Run, 0, limit)
	for rows.Next() {
		run, scanErr := scanRun(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		runs = append(runs, run)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return runs, nil
}

// LoadFrames returns the frames of a run in index order.
func (s *Store) LoadFrames(ctx context.Context, runID int64) ([]telemetry.Frame, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listFramesSQL, runID)
	if queryErr != nil {
		return nil, fmt.Errorf("list frames: %w", queryErr)
	}
	defer rows.Close()

	frames := make([]telemetry.Frame, 0)
	for rows.Next() {
		frame, scanErr := scanFrame(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		frames = append(frames, frame)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return frames, nil
}

// DeleteRunsBefore prunes old runs; frames cascade.
func (s *Store) DeleteRunsBefore(ctx context.Context, olderThan time.Time) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	tag, execErr := pool.Exec(ctx, deleteRunsBeforeSQL, olderThan)
	if execErr != nil {
		return 0, fmt.Errorf("delete runs before: %w", execErr)
	}
	return tag.RowsAffected(), nil
}

func scanRun(row pgx.Row) (Run, error) {
	var (
		run         Run
		seed        int64
		params      []byte
		firstBreach sql.NullInt32
	)

	if err := row.Scan(
		&run.ID,
		&run.Label,
		&run.Mode,
		&run.ScenarioType,
		&seed,
		&params,
		&run.FrameCount,
		&run.Breached,
		&firstBreach,
		&run.CreatedAt,
	); err != nil {
		return Run{}, err
	}

	run.Seed = uint64(seed)
	run.Params = json.RawMessage(params)
	if firstBreach.Valid {
		idx := int(firstBreach.Int32)
		run.FirstBreach = &idx
	}
	return run, nil
}

func scanFrame(row pgx.Row) (telemetry.Frame, error) {
	var (
		frame     telemetry.Frame
		regimeStr string
		flagNames []string
	)

	if err := row.Scan(
		&frame.Timestamp,
		&frame.Spot,
		&frame.IV,
		&frame.HV,
		&frame.X,
		&frame.Y,
		&frame.Z,
		&regimeStr,
		&flagNames,
	); err != nil {
		return telemetry.Frame{}, err
	}

	regime, err := telemetry.ParseRegime(regimeStr)
	if err != nil {
		return telemetry.Frame{}, fmt.Errorf("parse stored regime: %w", err)
	}
	frame.Regime = regime

	frame.Flags = make([]telemetry.Flag, 0, len(flagNames))
	for _, name := range flagNames {
		flag, err := telemetry.ParseFlag(name)
		if err != nil {
			return telemetry.Frame{}, fmt.Errorf("parse stored flag: %w", err)
		}
		frame.Flags = append(frame.Flags, flag)
	}
	return frame, nil
}
