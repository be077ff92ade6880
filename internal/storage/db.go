package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // Register SQLite driver
	"github.com/rossigee/episode-catalog/pkg/types"
	"github.com/sirupsen/logrus"
)

var (
	// ErrTableNotFound is returned when an environment has no episode table
	ErrTableNotFound = errors.New("table not found")

	// ErrNotFound is returned when an environment has no task_info row
	ErrNotFound = errors.New("environment not found")
)

// MaxEpisodeLimit caps the number of episode rows returned by one query
const MaxEpisodeLimit = 1000

// SaveResult summarizes one environment write
type SaveResult struct {
	EnvID    string
	Table    string
	Episodes int
}

// Store provides SQLite-based catalog persistence
type Store struct {
	db     *sql.DB
	dbPath string
	mu     sync.RWMutex
}

// NewStore opens the catalog at dbPath and ensures the base schema exists
func NewStore(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		if dir := filepath.Dir(dbPath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.PingContext(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// A single connection keeps ":memory:" databases shared across queries
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(connMaxLifetime(dbPath))

	store := &Store{
		db:     db,
		dbPath: dbPath,
	}

	if err := store.EnsureSchema(context.Background()); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logrus.WithError(closeErr).Warn("Failed to close database connection after init error")
		}
		return nil, err
	}

	logrus.WithField("db_path", dbPath).Debug("Opened episode catalog")
	return store, nil
}

// EnsureSchema creates task_info and source_info if they are absent
func (s *Store) EnsureSchema(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, BaseSchema); err != nil {
		return fmt.Errorf("failed to create base schema: %w", err)
	}
	return nil
}

// EnsureEpisodeTable creates the episode table for envID if it is absent
// and returns its name
func (s *Store) EnsureEpisodeTable(ctx context.Context, envID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	table := EpisodeTableName(envID)
	if _, err := s.db.ExecContext(ctx, episodeTableSQL(table)); err != nil {
		return "", fmt.Errorf("failed to create episode table %s: %w", table, err)
	}
	return table, nil
}

// SaveEnvironment upserts the task and source rows of one environment and
// insert-or-replaces its episodes, all in a single transaction. The source
// row is always keyed by the task env_id.
func (s *Store) SaveEnvironment(ctx context.Context, task types.TaskInfo, source types.SourceInfo,
	episodes []types.EpisodeRecord) (*SaveResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			if rollbackErr := tx.Rollback(); rollbackErr != nil {
				logrus.WithError(rollbackErr).Warn("Failed to rollback transaction")
			}
		}
	}()

	envID := task.EnvID

	if _, err := tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO task_info (env_id, max_episode_steps, env_kwargs) VALUES (?, ?, ?)`,
		envID,
		int64PtrValue(task.MaxEpisodeSteps),
		task.EnvKwargs,
	); err != nil {
		return nil, fmt.Errorf("failed to upsert task info: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO source_info (env_id, source_type, source_desc) VALUES (?, ?, ?)`,
		envID,
		source.SourceType,
		source.SourceDesc,
	); err != nil {
		return nil, fmt.Errorf("failed to upsert source info: %w", err)
	}

	table := EpisodeTableName(envID)
	if _, err := tx.ExecContext(ctx, episodeTableSQL(table)); err != nil {
		return nil, fmt.Errorf("failed to create episode table %s: %w", table, err)
	}

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
		`INSERT OR REPLACE INTO %s
		 (episode_id, episode_seed, reset_kwargs, control_mode, elapsed_steps, success, fail)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		quoteIdent(table),
	))
	if err != nil {
		return nil, fmt.Errorf("failed to prepare episode insert: %w", err)
	}
	defer func() {
		_ = stmt.Close() // Close errors are not critical
	}()

	for _, ep := range episodes {
		if _, err := stmt.ExecContext(ctx,
			int64PtrValue(ep.EpisodeID),
			int64PtrValue(ep.EpisodeSeed),
			ep.ResetKwargs,
			ep.ControlMode,
			ep.ElapsedSteps,
			boolToInt(ep.Success),
			boolToInt(ep.Fail),
		); err != nil {
			return nil, fmt.Errorf("failed to insert episode into %s: %w", table, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	committed = true

	return &SaveResult{EnvID: envID, Table: table, Episodes: len(episodes)}, nil
}

// ListEnvIDs returns the distinct env ids of task_info in ascending order
func (s *Store) ListEnvIDs(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT DISTINCT env_id FROM task_info ORDER BY env_id")
	if err != nil {
		return nil, fmt.Errorf("failed to query environments: %w", err)
	}
	defer closeRows(rows)

	envIDs := []string{}
	for rows.Next() {
		var envID string
		if err := rows.Scan(&envID); err != nil {
			return nil, fmt.Errorf("failed to scan environment: %w", err)
		}
		envIDs = append(envIDs, envID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating environments: %w", err)
	}

	return envIDs, nil
}

// ListSources returns every source_info row ordered by env_id
func (s *Store) ListSources(ctx context.Context) ([]types.SourceInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT env_id, source_type, source_desc FROM source_info ORDER BY env_id")
	if err != nil {
		return nil, fmt.Errorf("failed to query sources: %w", err)
	}
	defer closeRows(rows)

	sources := []types.SourceInfo{}
	for rows.Next() {
		var (
			source     types.SourceInfo
			sourceType sql.NullString
			sourceDesc sql.NullString
		)
		if err := rows.Scan(&source.EnvID, &sourceType, &sourceDesc); err != nil {
			return nil, fmt.Errorf("failed to scan source: %w", err)
		}
		source.SourceType = sourceType.String
		source.SourceDesc = sourceDesc.String
		sources = append(sources, source)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sources: %w", err)
	}

	return sources, nil
}

// GetTaskInfo retrieves the task row of envID
func (s *Store) GetTaskInfo(ctx context.Context, envID string) (*types.TaskInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		task      types.TaskInfo
		maxSteps  sql.NullInt64
		envKwargs sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT env_id, max_episode_steps, env_kwargs FROM task_info WHERE env_id = ?",
		envID,
	).Scan(&task.EnvID, &maxSteps, &envKwargs)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, envID)
		}
		return nil, fmt.Errorf("failed to query task info: %w", err)
	}

	if maxSteps.Valid {
		steps := maxSteps.Int64
		task.MaxEpisodeSteps = &steps
	}
	task.EnvKwargs = envKwargs.String

	return &task, nil
}

// GetSourceInfo retrieves the source row of envID
func (s *Store) GetSourceInfo(ctx context.Context, envID string) (*types.SourceInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		source     types.SourceInfo
		sourceType sql.NullString
		sourceDesc sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT env_id, source_type, source_desc FROM source_info WHERE env_id = ?",
		envID,
	).Scan(&source.EnvID, &sourceType, &sourceDesc)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, envID)
		}
		return nil, fmt.Errorf("failed to query source info: %w", err)
	}
	source.SourceType = sourceType.String
	source.SourceDesc = sourceDesc.String

	return &source, nil
}

// connMaxLifetime is zero (never recycle) for in-memory databases, which
// live only as long as their single connection.
func connMaxLifetime(dbPath string) time.Duration {
	if dbPath == ":memory:" {
		return 0
	}
	return time.Hour
}

// EpisodeTableExists reports whether the episode table of envID exists
func (s *Store) EpisodeTableExists(ctx context.Context, envID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.tableExists(ctx, EpisodeTableName(envID))
}

func (s *Store) tableExists(ctx context.Context, table string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ? COLLATE NOCASE",
		table,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to look up table %s: %w", table, err)
	}
	return count > 0, nil
}

// CountEpisodes returns the number of episodes stored for envID
func (s *Store) CountEpisodes(ctx context.Context, envID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	table := EpisodeTableName(envID)
	exists, err := s.tableExists(ctx, table)
	if err != nil {
		return 0, err
	}
	if !exists {
		return 0, fmt.Errorf("%w: %s", ErrTableNotFound, table)
	}

	var count int64
	if err := s.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT COUNT(*) FROM %s", quoteIdent(table)),
	).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count episodes in %s: %w", table, err)
	}

	return count, nil
}

// ListEpisodes returns up to limit episodes of envID in table order
func (s *Store) ListEpisodes(ctx context.Context, envID string, limit int) ([]types.EpisodeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 10
	}
	if limit > MaxEpisodeLimit {
		limit = MaxEpisodeLimit
	}

	table := EpisodeTableName(envID)
	exists, err := s.tableExists(ctx, table)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrTableNotFound, table)
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(
		`SELECT episode_id, episode_seed, reset_kwargs, control_mode, elapsed_steps, success, fail
		 FROM %s LIMIT ?`, quoteIdent(table)), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query episodes in %s: %w", table, err)
	}
	defer closeRows(rows)

	episodes := []types.EpisodeRecord{}
	for rows.Next() {
		var (
			episodeID    sql.NullInt64
			episodeSeed  sql.NullInt64
			resetKwargs  sql.NullString
			controlMode  sql.NullString
			elapsedSteps sql.NullInt64
			success      sql.NullInt64
			fail         sql.NullInt64
		)
		if err := rows.Scan(&episodeID, &episodeSeed, &resetKwargs, &controlMode,
			&elapsedSteps, &success, &fail); err != nil {
			return nil, fmt.Errorf("failed to scan episode: %w", err)
		}

		episodes = append(episodes, types.EpisodeRecord{
			EpisodeID:    nullInt64Ptr(episodeID),
			EpisodeSeed:  nullInt64Ptr(episodeSeed),
			ResetKwargs:  resetKwargs.String,
			ControlMode:  controlMode.String,
			ElapsedSteps: elapsedSteps.Int64,
			Success:      success.Int64 != 0,
			Fail:         fail.Int64 != 0,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating episodes: %w", err)
	}

	return episodes, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}
	return nil
}

// Helper functions

func int64PtrValue(v *int64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func nullInt64Ptr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func closeRows(rows *sql.Rows) {
	if closeErr := rows.Close(); closeErr != nil {
		logrus.WithError(closeErr).Warn("Failed to close database rows")
	}
}
