package core

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"mediasort/internal/model"
)

// Resolver picks one primary instance per content key and derives the
// deterministic final path for the content. Re-running resolution on an
// already-resolved key is a no-op: final paths are write-once.
type Resolver struct {
	catalog      Catalog
	logger       Logger
	batchSize    int
	renameOnCopy bool
}

// NewResolver creates a resolver. When renameOnCopy is false the primary's
// original filename is preserved unless it collides with an already
// assigned path, in which case the hash-based name is used.
func NewResolver(catalog Catalog, logger Logger, batchSize int, renameOnCopy bool) *Resolver {
	return &Resolver{
		catalog:      catalog,
		logger:       logger,
		batchSize:    batchSize,
		renameOnCopy: renameOnCopy,
	}
}

// Resolve processes every unresolved content group, selecting primaries and
// writing final paths back in batches.
func (r *Resolver) Resolve(ctx context.Context) (*model.ResolveReport, error) {
	stats, err := r.catalog.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading catalog stats: %w", err)
	}

	// Paths already taken by earlier runs; extended as this run assigns
	// new ones so preserved filenames cannot collide.
	used, err := r.catalog.ResolvedPaths(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading resolved paths: %w", err)
	}

	report := &model.ResolveReport{AlreadyResolved: stats.ResolvedContent}
	r.logger.Info("resolution started", "already_resolved", report.AlreadyResolved)

	batch := make([]model.Resolution, 0, r.batchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := r.catalog.CommitResolutions(ctx, batch); err != nil {
			return fmt.Errorf("committing resolution batch: %w", err)
		}
		report.Assigned += len(batch)
		batch = batch[:0]
		return nil
	}

	err = r.catalog.SelectUnresolvedGroups(ctx, func(group model.ContentGroup) error {
		if len(group.Instances) == 0 {
			return fmt.Errorf("%w: content %s has no path instances", ErrInvariant, group.Content.ContentKey)
		}

		primary := SelectPrimary(group.Instances)
		finalPath := r.derivePath(group.Content, primary, used)
		used[finalPath] = struct{}{}

		report.Groups++
		report.DuplicateInstances += len(group.Instances) - 1

		batch = append(batch, model.Resolution{
			ContentKey:        group.Content.ContentKey,
			InstanceID:        primary.InstanceID,
			FinalRelativePath: finalPath,
		})
		if len(batch) >= r.batchSize {
			return flush()
		}
		return nil
	})
	if err != nil {
		return report, err
	}
	if err := flush(); err != nil {
		return report, err
	}

	r.logger.Info("resolution complete",
		"groups", report.Groups,
		"duplicates", report.DuplicateInstances,
		"assigned", report.Assigned,
	)
	return report, nil
}

// SelectPrimary applies the tie-break ordering to a content key's instances:
// earliest modification timestamp, then shortest absolute path, then lowest
// instance ID. The ordering is total, so the result is independent of input
// order and stable across re-runs.
func SelectPrimary(instances []model.PathInstance) model.PathInstance {
	candidates := make([]model.PathInstance, len(instances))
	copy(candidates, instances)

	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if !a.ModifiedAtScan.Equal(b.ModifiedAtScan) {
			return a.ModifiedAtScan.Before(b.ModifiedAtScan)
		}
		if len(a.AbsolutePath) != len(b.AbsolutePath) {
			return len(a.AbsolutePath) < len(b.AbsolutePath)
		}
		return a.InstanceID < b.InstanceID
	})
	return candidates[0]
}

// derivePath computes <year>/<month>/<hash8>_<instanceID><ext>. Year and
// month come from the content's best timestamp when known, else from the
// primary's recorded modification time. The current date is never used:
// re-running on the same catalog must reproduce the same path.
func (r *Resolver) derivePath(content model.UniqueContent, primary model.PathInstance, used map[string]struct{}) string {
	ts := primary.ModifiedAtScan
	if content.BestTimestamp != nil {
		ts = *content.BestTimestamp
	}
	dir := filepath.Join(fmt.Sprintf("%04d", ts.Year()), fmt.Sprintf("%02d", int(ts.Month())))

	if !r.renameOnCopy {
		candidate := filepath.Join(dir, filepath.Base(primary.AbsolutePath))
		if _, taken := used[candidate]; !taken {
			return candidate
		}
		// Name collision under the target directory: fall back to the
		// deterministic hash-based name.
	}

	return filepath.Join(dir, hashName(content.ContentKey, primary))
}

func hashName(key string, primary model.PathInstance) string {
	short := key
	if len(short) > 8 {
		short = short[:8]
	}
	ext := strings.ToLower(filepath.Ext(primary.AbsolutePath))
	return fmt.Sprintf("%s_%d%s", short, primary.InstanceID, ext)
}
