package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"mediasort/internal/config"
	"mediasort/internal/core"
	"mediasort/internal/database"
	"mediasort/internal/fs"
	"mediasort/internal/model"
)

// App is the application layer between the CLI and the pipeline stages.
// It constructs all dependencies from config, exposes high-level operations,
// and manages the catalog lifecycle on Close.
type App struct {
	cfg     *config.Config
	catalog *database.SQLiteCatalog
	fsmgr   core.FilesystemManager
	logger  core.Logger
	clock   core.Clock
	run     *PipelineRun
	logFile *os.File
}

// NewApp creates a fully wired App from the given config.
// operation identifies the CLI command being run (e.g. "Scan", "Migrate").
// The caller must call Close when done.
func NewApp(cfg *config.Config, operation, parameters string) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	catalog, err := database.NewCatalogFromConfig(cfg.Catalog)
	if err != nil {
		return nil, fmt.Errorf("opening catalog: %w", err)
	}

	if err := catalog.CheckMigrations(); err != nil {
		catalog.Close()
		return nil, fmt.Errorf("catalog schema out of date (run 'mediasort catalog init'): %w", err)
	}

	runID := uuid.New().String()
	logger, logFile, err := newLogger(cfg.LogDir, runID, operation)
	if err != nil {
		catalog.Close()
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	return &App{
		cfg:     cfg,
		catalog: catalog,
		fsmgr:   fs.NewOSFilesystemManager(cfg.Scan.Ignore),
		logger:  &slogAdapter{l: logger},
		clock:   core.RealClock{},
		run:     NewPipelineRun(runID, operation, parameters),
		logFile: logFile,
	}, nil
}

// InitCatalog creates or upgrades the catalog schema. Used by the
// 'catalog init' command before NewApp's migration check can pass.
func InitCatalog(cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	catalog, err := database.NewCatalogFromConfig(cfg.Catalog)
	if err != nil {
		return fmt.Errorf("opening catalog: %w", err)
	}
	defer catalog.Close()

	if err := catalog.MigrateUp(); err != nil {
		return fmt.Errorf("migrating catalog: %w", err)
	}
	return nil
}

// persistRun saves the run to the catalog, giving it an auto-increment ID.
// Only called for catalog-affecting commands.
func (a *App) persistRun(ctx context.Context) error {
	if a.run.Persisted() {
		return nil
	}
	id, err := a.catalog.CreateRun(ctx, a.run.RunID, a.run.Operation, a.run.Parameters)
	if err != nil {
		return fmt.Errorf("persisting run: %w", err)
	}
	a.run.ID = id
	return nil
}

// Scan traverses the configured source root and records discoveries.
func (a *App) Scan(ctx context.Context) (*model.ScanReport, error) {
	if err := a.cfg.ValidateRoots(); err != nil {
		return nil, err
	}
	if err := a.persistRun(ctx); err != nil {
		return nil, err
	}

	root, err := a.fsmgr.ResolveDir(a.cfg.SourceRoot)
	if err != nil {
		return nil, fmt.Errorf("resolving source root: %w", err)
	}

	scanner := core.NewScanner(a.catalog, a.fsmgr, a.logger, a.clock,
		a.cfg.Scan.BlockSize, a.cfg.Scan.Workers, a.cfg.Scan.BatchSize)
	report, err := scanner.Scan(ctx, root)
	if err != nil {
		a.run.Status = "error"
	}
	return report, err
}

// Resolve selects primary instances and computes final paths.
func (a *App) Resolve(ctx context.Context) (*model.ResolveReport, error) {
	if err := a.persistRun(ctx); err != nil {
		return nil, err
	}

	resolver := core.NewResolver(a.catalog, a.logger,
		a.cfg.Resolve.BatchSize, a.cfg.Resolve.RenameOnCopy)
	report, err := resolver.Resolve(ctx)
	if err != nil {
		a.run.Status = "error"
	}
	return report, err
}

// Migrate copies resolved primaries into the output root. In dry-run mode
// nothing is written anywhere, including the run history.
func (a *App) Migrate(ctx context.Context, dryRun, force, cleanCatalog bool) (*model.MigrateReport, error) {
	if err := a.cfg.ValidateRoots(); err != nil {
		return nil, err
	}
	if !dryRun {
		if err := a.cfg.EnsureOutputRoot(); err != nil {
			return nil, err
		}
		if err := a.persistRun(ctx); err != nil {
			return nil, err
		}
	}

	cleanPath := ""
	if cleanCatalog {
		cleanPath = filepath.Join(a.cfg.OutputRoot, "clean_catalog.db")
	}

	migrator := core.NewMigrator(a.catalog, a.fsmgr, a.logger, database.CleanCatalogWriter{},
		a.cfg.OutputRoot, a.cfg.Migrate.Workers, dryRun, force)
	report, err := migrator.Migrate(ctx, cleanPath)
	if err != nil {
		a.run.Status = "error"
	}
	return report, err
}

// SetContentMetadata is the hook for the external metadata collaborator:
// it writes the best known timestamp and/or type group for a content key.
func (a *App) SetContentMetadata(ctx context.Context, key string, bestTimestamp *time.Time, typeGroup string) error {
	if err := a.persistRun(ctx); err != nil {
		return err
	}

	meta := model.ContentMetadata{BestTimestamp: bestTimestamp}
	if typeGroup != "" {
		if !core.ValidTypeGroup(typeGroup) {
			return fmt.Errorf("unknown type group: %s", typeGroup)
		}
		meta.TypeGroup = &typeGroup
	}
	if err := a.catalog.SetContentMetadata(ctx, key, meta); err != nil {
		a.run.Status = "error"
		return err
	}
	return nil
}

// Stats returns catalog-wide counts.
func (a *App) Stats(ctx context.Context) (model.CatalogStats, error) {
	return a.catalog.Stats(ctx)
}

// History returns the most recent catalog runs.
func (a *App) History(ctx context.Context, limit int) ([]model.Run, error) {
	return a.catalog.ListRuns(ctx, limit)
}

// Close finalizes the run record and closes all resources.
func (a *App) Close() error {
	var firstErr error

	if a.run.Persisted() {
		if err := a.catalog.FinishRun(context.Background(), a.run.ID, a.run.Status); err != nil {
			firstErr = fmt.Errorf("finishing run: %w", err)
		}
	}

	if err := a.catalog.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("closing catalog: %w", err)
	}

	if a.logFile != nil {
		a.logFile.Close()
	}
	return firstErr
}
