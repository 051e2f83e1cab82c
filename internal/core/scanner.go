package core

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"

	"golang.org/x/sync/errgroup"

	"mediasort/internal/model"
)

// Scanner walks a source tree, hashes changed or unknown files, and writes
// discovery records to the catalog in batches.
//
// The directory walker produces stat'ed candidates into a bounded queue and
// never blocks on hash completion. A pool of hash workers consumes the queue,
// each performing its own streaming read. A single writer drains finished
// records and commits them in batches, decoupling hashing from store latency.
type Scanner struct {
	catalog   Catalog
	fsmgr     FilesystemManager
	logger    Logger
	clock     Clock
	blockSize int
	workers   int
	batchSize int
}

// NewScanner creates a scanner. workers and batchSize must be positive;
// blockSize is the streaming read size in bytes.
func NewScanner(catalog Catalog, fsmgr FilesystemManager, logger Logger, clock Clock, blockSize, workers, batchSize int) *Scanner {
	return &Scanner{
		catalog:   catalog,
		fsmgr:     fsmgr,
		logger:    logger,
		clock:     clock,
		blockSize: blockSize,
		workers:   workers,
		batchSize: batchSize,
	}
}

// scanOutcome is one finished unit of work flowing from walker/hashers to
// the writer. Exactly one field is set.
type scanOutcome struct {
	discovery *model.Discovery
	skipped   bool
	failure   *model.PathError
}

// Scan traverses sourceRoot and records every regular file in the catalog.
// Unreadable files and directories are collected in the report; only an
// unreadable root, store commit failures and cancellation abort the scan.
func (s *Scanner) Scan(ctx context.Context, sourceRoot string) (*model.ScanReport, error) {
	cache, err := s.catalog.LoadScanCache(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading scan cache: %w", err)
	}
	s.logger.Info("scan started", "root", sourceRoot, "cached_paths", len(cache))

	// The writer owns this cancel: a commit failure has no erroring group
	// goroutine to tear the pipeline down, so it must be able to do so itself.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	entries := make(chan FileEntry, s.workers*2)
	outcomes := make(chan scanOutcome, s.workers*2)

	// Walker: stat every regular file, answer the fast-skip question from
	// the cache, and queue the rest for hashing. Unreadable subtrees come
	// back through the error callback as per-path failures.
	g.Go(func() error {
		defer close(entries)
		return s.fsmgr.Walk(gctx, sourceRoot, func(entry FileEntry) error {
			if hit, ok := cache[entry.Path]; ok && hit.Size == entry.Size && hit.ModTime.Equal(entry.ModTime) {
				select {
				case outcomes <- scanOutcome{skipped: true}:
				case <-gctx.Done():
					return gctx.Err()
				}
				return nil
			}
			select {
			case entries <- entry:
			case <-gctx.Done():
				return gctx.Err()
			}
			return nil
		}, func(path string, err error) {
			select {
			case outcomes <- scanOutcome{failure: &model.PathError{Path: path, Err: err}}:
			case <-gctx.Done():
			}
		})
	})

	// Hash workers: streaming SHA-256, one outcome per file.
	for i := 0; i < s.workers; i++ {
		g.Go(func() error {
			for entry := range entries {
				out := s.hashOne(entry)
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

	// Writer: the single catalog mutator for this stage. Accumulates
	// discoveries and commits them as atomic batches.
	report := &model.ScanReport{}
	batch := make([]model.Discovery, 0, s.batchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		stats, err := s.catalog.CommitDiscoveries(ctx, batch)
		if err != nil {
			return fmt.Errorf("committing discovery batch: %w", err)
		}
		report.NewContent += stats.NewContent
		report.NewPaths += stats.NewPaths
		batch = batch[:0]
		return nil
	}

	for out := range outcomes {
		report.Scanned++
		switch {
		case out.skipped:
			report.Skipped++
		case out.failure != nil:
			report.Failed++
			report.Failures = append(report.Failures, *out.failure)
			s.logger.Warn("file unreadable", "path", out.failure.Path, "error", out.failure.Err)
		default:
			report.Hashed++
			batch = append(batch, *out.discovery)
			if len(batch) >= s.batchSize {
				if err := flush(); err != nil {
					// Stop the producers and drain the channel so no
					// walker or hasher stays blocked on a send.
					cancel()
					for range outcomes {
					}
					_ = g.Wait()
					return report, err
				}
			}
		}
	}

	if err := g.Wait(); err != nil {
		return report, fmt.Errorf("scanning %s: %w", sourceRoot, err)
	}
	if err := flush(); err != nil {
		return report, err
	}

	s.logger.Info("scan complete",
		"scanned", report.Scanned,
		"skipped", report.Skipped,
		"hashed", report.Hashed,
		"new_content", report.NewContent,
		"new_paths", report.NewPaths,
		"failed", report.Failed,
	)
	return report, nil
}

// hashOne computes the streaming digest for a single file. Zero-byte files
// produce the well-defined empty digest. Files that vanish or become
// unreadable between stat and hash are reported as failures, not skipped.
func (s *Scanner) hashOne(entry FileEntry) scanOutcome {
	f, err := s.fsmgr.Open(entry.Path)
	if err != nil {
		return scanOutcome{failure: &model.PathError{Path: entry.Path, Err: err}}
	}
	defer f.Close()

	hasher := sha256.New()
	buf := make([]byte, s.blockSize)
	if _, err := io.CopyBuffer(hasher, f, buf); err != nil {
		return scanOutcome{failure: &model.PathError{Path: entry.Path, Err: err}}
	}

	return scanOutcome{discovery: &model.Discovery{
		ContentKey:   hex.EncodeToString(hasher.Sum(nil)),
		SizeBytes:    entry.Size,
		TypeGroup:    ClassifyPath(entry.Path),
		AbsolutePath: entry.Path,
		ModifiedAt:   entry.ModTime,
		DiscoveredAt: s.clock.Now(),
	}}
}
