package core

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"mediasort/internal/model"
)

// Migrator materializes the organized layout: every resolved primary is
// copied to its final path under the output root. Source files are never
// written, moved or deleted.
type Migrator struct {
	catalog     Catalog
	fsmgr       FilesystemManager
	logger      Logger
	cleanWriter CleanCatalogWriter
	outputRoot  string
	workers     int
	dryRun      bool
	force       bool
}

// CleanCatalogWriter projects migrated records into a secondary catalog.
// Implemented by the database package.
type CleanCatalogWriter interface {
	WriteCleanCatalog(path string, records []model.CleanRecord) error
}

// NewMigrator creates a migrator. In dry-run mode every decision is computed
// and logged but no directories are created and no bytes are copied.
// cleanWriter may be nil when no clean catalog will be requested.
func NewMigrator(catalog Catalog, fsmgr FilesystemManager, logger Logger, cleanWriter CleanCatalogWriter, outputRoot string, workers int, dryRun, force bool) *Migrator {
	return &Migrator{
		catalog:     catalog,
		fsmgr:       fsmgr,
		logger:      logger,
		cleanWriter: cleanWriter,
		outputRoot:  outputRoot,
		workers:     workers,
		dryRun:      dryRun,
		force:       force,
	}
}

type migrateOutcome struct {
	job     model.MigrationJob
	copied  bool
	skipped bool
	failure *model.PathError
}

// Migrate copies every resolved primary to the output root. Already-present
// destinations are skipped unless force is set, so re-invoking after a
// partial run resumes where it left off. When cleanCatalogPath is non-empty
// (and the run is live), a secondary catalog describing only the migrated
// layout is written there.
func (m *Migrator) Migrate(ctx context.Context, cleanCatalogPath string) (*model.MigrateReport, error) {
	m.logger.Info("migration started", "output_root", m.outputRoot, "dry_run", m.dryRun, "force", m.force)

	g, gctx := errgroup.WithContext(ctx)
	jobs := make(chan model.MigrationJob, m.workers*2)
	outcomes := make(chan migrateOutcome, m.workers*2)

	g.Go(func() error {
		defer close(jobs)
		return m.catalog.IteratePrimaries(gctx, func(job model.MigrationJob) error {
			select {
			case jobs <- job:
				return nil
			case <-gctx.Done():
				return gctx.Err()
			}
		})
	})

	for i := 0; i < m.workers; i++ {
		g.Go(func() error {
			for job := range jobs {
				out := m.migrateOne(job)
				select {
				case outcomes <- out:
				case <-gctx.Done():
					return gctx.Err()
				}
			}
			return nil
		})
	}

	go func() {
		_ = g.Wait() // error re-checked below; here only gates the close
		close(outcomes)
	}()

	report := &model.MigrateReport{DryRun: m.dryRun}
	var cleanRecords []model.CleanRecord

	for out := range outcomes {
		switch {
		case out.failure != nil:
			report.Failed++
			report.Failures = append(report.Failures, *out.failure)
			m.logger.Warn("copy failed", "path", out.failure.Path, "error", out.failure.Err)
		case out.skipped:
			report.SkippedExisting++
		case out.copied:
			report.Migrated++
			if cleanCatalogPath != "" && !m.dryRun {
				cleanRecords = append(cleanRecords, m.cleanRecord(out.job))
			}
		}
	}

	if err := g.Wait(); err != nil {
		return report, fmt.Errorf("migrating: %w", err)
	}

	if cleanCatalogPath != "" && !m.dryRun {
		if err := m.emitCleanCatalog(cleanCatalogPath, cleanRecords); err != nil {
			return report, err
		}
	}

	m.logger.Info("migration complete",
		"migrated", report.Migrated,
		"skipped_existing", report.SkippedExisting,
		"failed", report.Failed,
		"dry_run", m.dryRun,
	)
	return report, nil
}

// migrateOne handles a single content key. Every decision up to the actual
// I/O call is identical in dry-run and live mode, so dry-run output
// accurately predicts a live run.
func (m *Migrator) migrateOne(job model.MigrationJob) migrateOutcome {
	dest := filepath.Join(m.outputRoot, job.FinalRelativePath)

	if !m.force {
		if _, err := os.Stat(dest); err == nil {
			m.logger.Debug("already migrated", "dest", dest)
			return migrateOutcome{job: job, skipped: true}
		}
	}

	if m.dryRun {
		m.logger.Info("would copy", "source", job.AbsolutePath, "dest", dest)
		return migrateOutcome{job: job, copied: true}
	}

	if err := m.copyFile(job.AbsolutePath, dest); err != nil {
		return migrateOutcome{job: job, failure: &model.PathError{Path: job.AbsolutePath, Err: err}}
	}
	m.logger.Debug("copied", "source", job.AbsolutePath, "dest", dest)
	return migrateOutcome{job: job, copied: true}
}

// copyFile copies source bytes to dest via a temp file and atomic rename,
// preserving the source's modification time on the copy. MkdirAll is
// idempotent, so concurrent workers creating the same directory never error.
func (m *Migrator) copyFile(source, dest string) error {
	src, err := m.fsmgr.Open(source)
	if err != nil {
		return fmt.Errorf("opening source: %w", err)
	}
	defer src.Close()

	info, err := m.fsmgr.Stat(source)
	if err != nil {
		return fmt.Errorf("stat source: %w", err)
	}

	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating destination directory: %w", err)
	}

	// Temp file in the destination directory so the rename is atomic.
	tmpFile, err := os.CreateTemp(dir, ".mediasort-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	written, err := io.Copy(tmpFile, src)
	if err != nil {
		tmpFile.Close()
		return fmt.Errorf("copying data: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if written != info.Size() {
		return fmt.Errorf("size mismatch: expected %d bytes, copied %d", info.Size(), written)
	}

	if err := os.Rename(tmpPath, dest); err != nil {
		return fmt.Errorf("renaming temp file: %w", err)
	}
	success = true

	if err := os.Chtimes(dest, info.ModTime(), info.ModTime()); err != nil {
		return fmt.Errorf("preserving modification time: %w", err)
	}
	return nil
}

func (m *Migrator) cleanRecord(job model.MigrationJob) model.CleanRecord {
	return model.CleanRecord{
		Content: model.UniqueContent{
			ContentKey:        job.ContentKey,
			SizeBytes:         job.SizeBytes,
			BestTimestamp:     job.BestTimestamp,
			TypeGroup:         job.TypeGroup,
			FinalRelativePath: job.FinalRelativePath,
		},
		AbsolutePath: filepath.Join(m.outputRoot, job.FinalRelativePath),
	}
}

func (m *Migrator) emitCleanCatalog(path string, records []model.CleanRecord) error {
	if m.cleanWriter == nil {
		return fmt.Errorf("clean catalog requested but no writer configured")
	}
	if err := m.cleanWriter.WriteCleanCatalog(path, records); err != nil {
		return fmt.Errorf("writing clean catalog: %w", err)
	}
	m.logger.Info("clean catalog written", "path", path, "records", len(records))
	return nil
}
