package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"mediasort/internal/core"
	"mediasort/internal/database/migrations"
	"mediasort/internal/model"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteCatalog implements the core.Catalog interface using SQLite.
type SQLiteCatalog struct {
	db   *sql.DB
	path string
}

// NewSQLiteCatalog opens a catalog at the given path.
// path can be a file path or ":memory:" for an in-memory catalog.
func NewSQLiteCatalog(path string) (*SQLiteCatalog, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	return &SQLiteCatalog{db: db, path: path}, nil
}

// NewSQLiteCatalogFromDB wraps an existing database connection.
// The caller is responsible for ensuring the connection is properly configured.
func NewSQLiteCatalogFromDB(db *sql.DB) *SQLiteCatalog {
	return &SQLiteCatalog{db: db, path: ""}
}

// OpenConnection opens and configures a SQLite connection with the PRAGMAs
// the catalog relies on. Exported for tools and tests.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// An in-memory database exists per connection; cap the pool so every
	// caller sees the same one.
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, err)
		}
	}
	return db, nil
}

// Content operations

func (s *SQLiteCatalog) UpsertContentIfAbsent(ctx context.Context, key string, size int64) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO unique_content (content_hash, size_bytes, created_at) VALUES (?, ?, ?)`,
		key, size, time.Now().UTC(),
	)
	if err != nil {
		return false, fmt.Errorf("upserting content: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("upserting content: %w", err)
	}
	return n > 0, nil
}

func (s *SQLiteCatalog) SetContentMetadata(ctx context.Context, key string, meta model.ContentMetadata) error {
	var ts sql.NullTime
	if meta.BestTimestamp != nil {
		ts = sql.NullTime{Time: *meta.BestTimestamp, Valid: true}
	}
	var group sql.NullString
	if meta.TypeGroup != nil {
		group = sql.NullString{String: *meta.TypeGroup, Valid: true}
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE unique_content
		 SET best_timestamp = COALESCE(?, best_timestamp),
		     type_group     = COALESCE(?, type_group)
		 WHERE content_hash = ?`,
		ts, group, key,
	)
	if err != nil {
		return fmt.Errorf("setting content metadata: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("setting content metadata: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: metadata update references unknown content %s", core.ErrInvariant, key)
	}
	return nil
}

// Path instance operations

func (s *SQLiteCatalog) UpsertPathInstance(ctx context.Context, path, key string, size int64, mtime time.Time) (int64, bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, false, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM unique_content WHERE content_hash = ?`, key).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, fmt.Errorf("%w: path %s references unknown content %s", core.ErrInvariant, path, key)
	} else if err != nil {
		return 0, false, fmt.Errorf("checking content: %w", err)
	}

	id, isNew, err := upsertPathTx(ctx, tx, model.Discovery{
		ContentKey:   key,
		AbsolutePath: path,
		SizeBytes:    size,
		ModifiedAt:   mtime,
		DiscoveredAt: time.Now().UTC(),
	})
	if err != nil {
		return 0, false, err
	}
	if err := tx.Commit(); err != nil {
		return 0, false, fmt.Errorf("committing transaction: %w", err)
	}
	return id, isNew, nil
}

// upsertPathTx inserts or updates one path instance inside an open
// transaction. An update that changes the content key clears the primary
// flag, since the old resolution no longer applies to this path.
func upsertPathTx(ctx context.Context, tx *sql.Tx, d model.Discovery) (int64, bool, error) {
	var id int64
	var existingKey string
	err := tx.QueryRowContext(ctx,
		`SELECT instance_id, content_hash FROM path_instances WHERE absolute_path = ?`,
		d.AbsolutePath,
	).Scan(&id, &existingKey)

	if errors.Is(err, sql.ErrNoRows) {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO path_instances (content_hash, absolute_path, size_at_scan, modified_at_scan, discovered_at, is_primary)
			 VALUES (?, ?, ?, ?, ?, 0)`,
			d.ContentKey, d.AbsolutePath, d.SizeBytes, d.ModifiedAt, d.DiscoveredAt,
		)
		if err != nil {
			return 0, false, fmt.Errorf("inserting path instance: %w", err)
		}
		id, err = res.LastInsertId()
		if err != nil {
			return 0, false, fmt.Errorf("inserting path instance: %w", err)
		}
		return id, true, nil
	} else if err != nil {
		return 0, false, fmt.Errorf("finding path instance: %w", err)
	}

	if existingKey == d.ContentKey {
		_, err = tx.ExecContext(ctx,
			`UPDATE path_instances SET size_at_scan = ?, modified_at_scan = ? WHERE instance_id = ?`,
			d.SizeBytes, d.ModifiedAt, id,
		)
	} else {
		_, err = tx.ExecContext(ctx,
			`UPDATE path_instances SET content_hash = ?, size_at_scan = ?, modified_at_scan = ?, is_primary = 0 WHERE instance_id = ?`,
			d.ContentKey, d.SizeBytes, d.ModifiedAt, id,
		)
	}
	if err != nil {
		return 0, false, fmt.Errorf("updating path instance: %w", err)
	}
	return id, false, nil
}

// Batched stage writes

// CommitDiscoveries writes one scan batch atomically: content rows first,
// then the path rows that reference them, so the foreign-key invariant
// holds at the commit boundary.
func (s *SQLiteCatalog) CommitDiscoveries(ctx context.Context, batch []model.Discovery) (model.DiscoveryStats, error) {
	var stats model.DiscoveryStats
	if len(batch) == 0 {
		return stats, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return stats, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	contentStmt, err := tx.PrepareContext(ctx,
		`INSERT OR IGNORE INTO unique_content (content_hash, size_bytes, type_group, created_at) VALUES (?, ?, ?, ?)`,
	)
	if err != nil {
		return stats, fmt.Errorf("preparing content insert: %w", err)
	}
	defer contentStmt.Close()

	for _, d := range batch {
		res, err := contentStmt.ExecContext(ctx, d.ContentKey, d.SizeBytes, d.TypeGroup, d.DiscoveredAt)
		if err != nil {
			return stats, fmt.Errorf("inserting content %s: %w", d.ContentKey, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return stats, fmt.Errorf("inserting content %s: %w", d.ContentKey, err)
		}
		stats.NewContent += int(n)
	}

	for _, d := range batch {
		_, isNew, err := upsertPathTx(ctx, tx, d)
		if err != nil {
			return stats, err
		}
		if isNew {
			stats.NewPaths++
		}
	}

	if err := tx.Commit(); err != nil {
		return model.DiscoveryStats{}, fmt.Errorf("committing discovery batch: %w", err)
	}
	return stats, nil
}

// CommitResolutions marks primaries and writes final paths atomically.
// The final-path update is guarded by IS NULL: once set, a path is never
// overwritten, which keeps migration idempotent across re-runs.
func (s *SQLiteCatalog) CommitResolutions(ctx context.Context, batch []model.Resolution) error {
	if len(batch) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	for _, r := range batch {
		if _, err := tx.ExecContext(ctx,
			`UPDATE path_instances SET is_primary = 0 WHERE content_hash = ? AND is_primary = 1 AND instance_id <> ?`,
			r.ContentKey, r.InstanceID,
		); err != nil {
			return fmt.Errorf("clearing primaries for %s: %w", r.ContentKey, err)
		}

		res, err := tx.ExecContext(ctx,
			`UPDATE path_instances SET is_primary = 1 WHERE instance_id = ? AND content_hash = ?`,
			r.InstanceID, r.ContentKey,
		)
		if err != nil {
			return fmt.Errorf("marking primary for %s: %w", r.ContentKey, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("marking primary for %s: %w", r.ContentKey, err)
		}
		if n == 0 {
			return fmt.Errorf("%w: resolution references missing instance %d for content %s",
				core.ErrInvariant, r.InstanceID, r.ContentKey)
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE unique_content SET final_relative_path = ? WHERE content_hash = ? AND final_relative_path IS NULL`,
			r.FinalRelativePath, r.ContentKey,
		); err != nil {
			return fmt.Errorf("writing final path for %s: %w", r.ContentKey, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing resolution batch: %w", err)
	}
	return nil
}

// Decision-making reads

func (s *SQLiteCatalog) LoadScanCache(ctx context.Context) (map[string]model.CacheEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT absolute_path, size_at_scan, modified_at_scan, content_hash FROM path_instances`,
	)
	if err != nil {
		return nil, fmt.Errorf("loading scan cache: %w", err)
	}
	defer rows.Close()

	cache := make(map[string]model.CacheEntry)
	for rows.Next() {
		var path string
		var entry model.CacheEntry
		if err := rows.Scan(&path, &entry.Size, &entry.ModTime, &entry.ContentKey); err != nil {
			return nil, fmt.Errorf("scanning cache row: %w", err)
		}
		cache[path] = entry
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("loading scan cache: %w", err)
	}
	return cache, nil
}

// SelectUnresolvedGroups streams every content key without a final path,
// grouped with its instances, from a single ordered join — never one query
// per group.
func (s *SQLiteCatalog) SelectUnresolvedGroups(ctx context.Context, fn func(model.ContentGroup) error) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT c.content_hash, c.size_bytes, c.best_timestamp, c.type_group, c.created_at,
		        p.instance_id, p.absolute_path, p.size_at_scan, p.modified_at_scan, p.discovered_at, p.is_primary
		 FROM unique_content c
		 JOIN path_instances p ON p.content_hash = c.content_hash
		 WHERE c.final_relative_path IS NULL
		 ORDER BY c.content_hash, p.instance_id`,
	)
	if err != nil {
		return fmt.Errorf("selecting unresolved groups: %w", err)
	}
	defer rows.Close()

	var group model.ContentGroup
	for rows.Next() {
		var content model.UniqueContent
		var best sql.NullTime
		var typeGroup sql.NullString
		var inst model.PathInstance

		if err := rows.Scan(
			&content.ContentKey, &content.SizeBytes, &best, &typeGroup, &content.CreatedAt,
			&inst.InstanceID, &inst.AbsolutePath, &inst.SizeAtScan, &inst.ModifiedAtScan,
			&inst.DiscoveredAt, &inst.IsPrimary,
		); err != nil {
			return fmt.Errorf("scanning group row: %w", err)
		}
		if best.Valid {
			t := best.Time
			content.BestTimestamp = &t
		}
		content.TypeGroup = typeGroup.String
		inst.ContentKey = content.ContentKey

		if group.Content.ContentKey != content.ContentKey {
			if group.Content.ContentKey != "" {
				if err := fn(group); err != nil {
					return err
				}
			}
			group = model.ContentGroup{Content: content}
		}
		group.Instances = append(group.Instances, inst)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("selecting unresolved groups: %w", err)
	}
	if group.Content.ContentKey != "" {
		if err := fn(group); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteCatalog) IteratePrimaries(ctx context.Context, fn func(model.MigrationJob) error) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT c.content_hash, p.absolute_path, c.final_relative_path, c.size_bytes, c.best_timestamp, c.type_group
		 FROM unique_content c
		 JOIN path_instances p ON p.content_hash = c.content_hash AND p.is_primary = 1
		 WHERE c.final_relative_path IS NOT NULL`,
	)
	if err != nil {
		return fmt.Errorf("iterating primaries: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var job model.MigrationJob
		var best sql.NullTime
		var typeGroup sql.NullString
		if err := rows.Scan(&job.ContentKey, &job.AbsolutePath, &job.FinalRelativePath,
			&job.SizeBytes, &best, &typeGroup); err != nil {
			return fmt.Errorf("scanning primary row: %w", err)
		}
		if best.Valid {
			t := best.Time
			job.BestTimestamp = &t
		}
		job.TypeGroup = typeGroup.String
		if err := fn(job); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (s *SQLiteCatalog) ResolvedPaths(ctx context.Context) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT final_relative_path FROM unique_content WHERE final_relative_path IS NOT NULL`,
	)
	if err != nil {
		return nil, fmt.Errorf("loading resolved paths: %w", err)
	}
	defer rows.Close()

	paths := make(map[string]struct{})
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("scanning resolved path: %w", err)
		}
		paths[p] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("loading resolved paths: %w", err)
	}
	return paths, nil
}

func (s *SQLiteCatalog) Stats(ctx context.Context) (model.CatalogStats, error) {
	var stats model.CatalogStats
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM unique_content),
			(SELECT COUNT(*) FROM unique_content WHERE final_relative_path IS NOT NULL),
			(SELECT COUNT(*) FROM path_instances),
			(SELECT COUNT(*) FROM path_instances WHERE is_primary = 1),
			(SELECT COALESCE(SUM(size_bytes), 0) FROM unique_content)
	`).Scan(&stats.TotalContent, &stats.ResolvedContent, &stats.TotalPaths, &stats.PrimaryPaths, &stats.TotalBytes)
	if err != nil {
		return stats, fmt.Errorf("reading catalog stats: %w", err)
	}
	return stats, nil
}

// Run tracking

func (s *SQLiteCatalog) CreateRun(ctx context.Context, runID, operation, parameters string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO catalog_runs (run_id, operation, parameters, started_at, status) VALUES (?, ?, ?, ?, 'running')`,
		runID, operation, parameters, time.Now().UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("creating run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("creating run: %w", err)
	}
	return id, nil
}

func (s *SQLiteCatalog) FinishRun(ctx context.Context, id int64, status string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE catalog_runs SET finished_at = ?, status = ? WHERE id = ?`,
		time.Now().UTC(), status, id,
	)
	if err != nil {
		return fmt.Errorf("finishing run: %w", err)
	}
	return nil
}

func (s *SQLiteCatalog) ListRuns(ctx context.Context, limit int) ([]model.Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, run_id, operation, parameters, started_at, finished_at, status
		 FROM catalog_runs ORDER BY id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		var run model.Run
		var finished sql.NullTime
		if err := rows.Scan(&run.ID, &run.RunID, &run.Operation, &run.Parameters,
			&run.StartedAt, &finished, &run.Status); err != nil {
			return nil, fmt.Errorf("scanning run row: %w", err)
		}
		if finished.Valid {
			t := finished.Time
			run.FinishedAt = &t
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Path returns the catalog file path (or ":memory:").
func (s *SQLiteCatalog) Path() string {
	return s.path
}

// CheckMigrations verifies the catalog schema is up-to-date.
func (s *SQLiteCatalog) CheckMigrations() error {
	return migrations.CheckDBMigrationStatus(s.db)
}

// MigrateUp brings the catalog schema to the latest version.
func (s *SQLiteCatalog) MigrateUp() error {
	return migrations.MigrateUp(s.db)
}

// Close closes the database connection.
func (s *SQLiteCatalog) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Compile-time check that SQLiteCatalog implements core.Catalog
var _ core.Catalog = (*SQLiteCatalog)(nil)
