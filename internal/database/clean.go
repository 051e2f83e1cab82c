package database

import (
	"database/sql"
	"fmt"
	"os"
	"time"

	"mediasort/internal/core"
	"mediasort/internal/database/migrations"
	"mediasort/internal/model"
)

// CleanCatalogWriter projects migrated records into a fresh catalog file
// that describes only the organized layout. The clean catalog is a pure
// projection of the primary catalog, not a second source of truth, so an
// existing file is replaced outright.
type CleanCatalogWriter struct{}

// WriteCleanCatalog creates the clean catalog at path and fills it with the
// given records in one transaction. Every instance in the clean catalog
// points at a destination path and is marked primary.
func (CleanCatalogWriter) WriteCleanCatalog(path string, records []model.CleanRecord) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing stale clean catalog: %w", err)
	}

	db, err := OpenConnection(path)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := migrations.MigrateUp(db); err != nil {
		return fmt.Errorf("preparing clean catalog schema: %w", err)
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	contentStmt, err := tx.Prepare(
		`INSERT INTO unique_content (content_hash, size_bytes, best_timestamp, type_group, final_relative_path, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return fmt.Errorf("preparing content insert: %w", err)
	}
	defer contentStmt.Close()

	instanceStmt, err := tx.Prepare(
		`INSERT INTO path_instances (content_hash, absolute_path, size_at_scan, modified_at_scan, discovered_at, is_primary)
		 VALUES (?, ?, ?, ?, ?, 1)`,
	)
	if err != nil {
		return fmt.Errorf("preparing instance insert: %w", err)
	}
	defer instanceStmt.Close()

	now := time.Now().UTC()
	for _, rec := range records {
		var best sql.NullTime
		if rec.Content.BestTimestamp != nil {
			best = sql.NullTime{Time: *rec.Content.BestTimestamp, Valid: true}
		}
		if _, err := contentStmt.Exec(
			rec.Content.ContentKey, rec.Content.SizeBytes, best,
			rec.Content.TypeGroup, rec.Content.FinalRelativePath, now,
		); err != nil {
			return fmt.Errorf("inserting clean content %s: %w", rec.Content.ContentKey, err)
		}

		mtime := now
		if rec.Content.BestTimestamp != nil {
			mtime = *rec.Content.BestTimestamp
		}
		if _, err := instanceStmt.Exec(
			rec.Content.ContentKey, rec.AbsolutePath, rec.Content.SizeBytes, mtime, now,
		); err != nil {
			return fmt.Errorf("inserting clean instance %s: %w", rec.AbsolutePath, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing clean catalog: %w", err)
	}
	return nil
}

// Compile-time check that CleanCatalogWriter implements the core interface
var _ core.CleanCatalogWriter = CleanCatalogWriter{}
