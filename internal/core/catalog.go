package core

import (
	"context"
	"time"

	"mediasort/internal/model"
)

// Catalog provides an interface for persistent catalog storage.
// All multi-row mutations are batched: a crash loses at most one
// uncommitted batch and never leaves a partially written record
// (a path instance is only ever committed together with its content row).
type Catalog interface {
	// Content operations

	// UpsertContentIfAbsent records a content key if it is not already known.
	// Returns true if a new row was created.
	UpsertContentIfAbsent(ctx context.Context, key string, size int64) (bool, error)

	// SetContentMetadata writes collaborator-supplied fields (best timestamp,
	// type group) into an existing content record. Referencing an unknown
	// key is an invariant violation.
	SetContentMetadata(ctx context.Context, key string, meta model.ContentMetadata) error

	// Path instance operations

	// UpsertPathInstance records a discovered path. Re-recording a known
	// path updates it in place; absolute paths are unique. Returns the
	// instance ID and whether a new row was created.
	UpsertPathInstance(ctx context.Context, path, key string, size int64, mtime time.Time) (int64, bool, error)

	// Batched stage writes

	// CommitDiscoveries writes one scan batch in a single transaction,
	// content rows before the path rows that reference them.
	CommitDiscoveries(ctx context.Context, batch []model.Discovery) (model.DiscoveryStats, error)

	// CommitResolutions marks primaries and writes final paths for one
	// resolver batch in a single transaction. A final path, once set,
	// is never overwritten.
	CommitResolutions(ctx context.Context, batch []model.Resolution) error

	// Decision-making reads (indexed, never full re-scans per item)

	// LoadScanCache returns the fast-skip mapping of every known path to
	// its last recorded size, mtime and content key.
	LoadScanCache(ctx context.Context) (map[string]model.CacheEntry, error)

	// SelectUnresolvedGroups streams every content key without a final
	// path, together with all of its instances, in one grouped query.
	SelectUnresolvedGroups(ctx context.Context, fn func(model.ContentGroup) error) error

	// IteratePrimaries streams every resolved primary ready for migration.
	IteratePrimaries(ctx context.Context, fn func(model.MigrationJob) error) error

	// ResolvedPaths returns the set of final relative paths already assigned.
	ResolvedPaths(ctx context.Context) (map[string]struct{}, error)

	// Stats returns catalog-wide counts for status reporting.
	Stats(ctx context.Context) (model.CatalogStats, error)

	// Run tracking

	CreateRun(ctx context.Context, runID, operation, parameters string) (int64, error)
	FinishRun(ctx context.Context, id int64, status string) error
	ListRuns(ctx context.Context, limit int) ([]model.Run, error)

	// Close closes the underlying store.
	Close() error
}
