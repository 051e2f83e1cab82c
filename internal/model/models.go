package model

import "time"

// UniqueContent represents one distinct piece of content, identified by the
// SHA-256 digest of its bytes. Many path instances may reference one record.
type UniqueContent struct {
	ContentKey        string     // SHA-256 hex digest (not a UUID)
	SizeBytes         int64      // Byte length, set at first discovery
	BestTimestamp     *time.Time // Supplied by the metadata collaborator; nil until known
	TypeGroup         string     // Coarse classification (image/video/audio/document/other)
	FinalRelativePath string     // Set once by the resolver; "" until resolved
	CreatedAt         time.Time  // When the content was first seen
}

// PathInstance represents one discovered filesystem path. AbsolutePath is
// unique: re-scanning the same path updates the record in place.
type PathInstance struct {
	InstanceID     int64
	ContentKey     string // Foreign key to UniqueContent
	AbsolutePath   string
	SizeAtScan     int64
	ModifiedAtScan time.Time
	DiscoveredAt   time.Time
	IsPrimary      bool // Exactly one true instance per content key, set by the resolver
}

// Discovery is one finished scan result, ready to be committed to the catalog.
type Discovery struct {
	ContentKey   string
	SizeBytes    int64
	TypeGroup    string
	AbsolutePath string
	ModifiedAt   time.Time
	DiscoveredAt time.Time
}

// CacheEntry is one row of the in-memory scan cache, keyed by absolute path.
// A path whose size and mtime are unchanged reuses ContentKey without rehashing.
type CacheEntry struct {
	Size       int64
	ModTime    time.Time
	ContentKey string
}

// ContentGroup is one unique content with all of its path instances,
// as streamed by the catalog during resolution.
type ContentGroup struct {
	Content   UniqueContent
	Instances []PathInstance
}

// Resolution records the resolver's decision for one content key.
type Resolution struct {
	ContentKey        string
	InstanceID        int64 // The chosen primary instance
	FinalRelativePath string
}

// MigrationJob is one resolved primary ready to be copied into the
// organized layout.
type MigrationJob struct {
	ContentKey        string
	AbsolutePath      string // Source: the primary instance's path
	FinalRelativePath string // Destination, relative to the output root
	SizeBytes         int64
	BestTimestamp     *time.Time
	TypeGroup         string
}

// ContentMetadata carries fields written by the external metadata
// collaborator. Nil fields are left untouched.
type ContentMetadata struct {
	BestTimestamp *time.Time
	TypeGroup     *string
}

// CleanRecord is one migrated content plus its rewritten instance path,
// used to project the clean catalog after migration.
type CleanRecord struct {
	Content      UniqueContent
	AbsolutePath string // Destination path under the output root
}

// DiscoveryStats reports the effect of committing one discovery batch.
type DiscoveryStats struct {
	NewContent int
	NewPaths   int
}

// CatalogStats summarizes catalog state for status reporting.
type CatalogStats struct {
	TotalContent    int64
	ResolvedContent int64
	TotalPaths      int64
	PrimaryPaths    int64
	TotalBytes      int64
}

// Run tracks one CLI operation that mutated the catalog.
type Run struct {
	ID         int64
	RunID      string // UUID
	Operation  string
	Parameters string
	StartedAt  time.Time
	FinishedAt *time.Time
	Status     string // "success" or "error"
}

// PathError records a per-file failure that did not abort its stage.
type PathError struct {
	Path string
	Err  error
}

func (e PathError) Error() string { return e.Path + ": " + e.Err.Error() }

// ScanReport is the traversal stage summary.
type ScanReport struct {
	Scanned    int // Paths processed: skipped, hashed or failed
	Skipped    int // Fast-skipped via the scan cache
	Hashed     int // Files actually hashed
	NewContent int // UniqueContent rows created
	NewPaths   int // PathInstance rows created
	Failed     int
	Failures   []PathError
}

// ResolveReport is the deduplication stage summary.
type ResolveReport struct {
	Groups             int   // Content keys resolved this run
	DuplicateInstances int   // Non-primary instances across resolved groups
	Assigned           int   // Final paths written
	AlreadyResolved    int64 // Content keys that already had a final path
}

// MigrateReport is the migration stage summary. In dry-run mode Migrated
// counts files that would be copied by an identical live run.
type MigrateReport struct {
	DryRun          bool
	Migrated        int
	SkippedExisting int
	Failed          int
	Failures        []PathError
}
