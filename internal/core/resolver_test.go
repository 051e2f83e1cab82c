package core_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"mediasort/internal/core"
	"mediasort/internal/model"
	"mediasort/internal/testutil"
)

func TestSelectPrimary(t *testing.T) {
	t.Parallel()
	jan := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	jun := time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		instances []model.PathInstance
		wantID    int64
	}{
		{
			name: "earliest modification time wins",
			instances: []model.PathInstance{
				{InstanceID: 1, AbsolutePath: "/src/b/cat_copy.jpg", ModifiedAtScan: jun},
				{InstanceID: 2, AbsolutePath: "/src/a/cat.jpg", ModifiedAtScan: jan},
			},
			wantID: 2,
		},
		{
			name: "equal times fall back to shortest path",
			instances: []model.PathInstance{
				{InstanceID: 1, AbsolutePath: "/src/archive/old/cat.jpg", ModifiedAtScan: jan},
				{InstanceID: 2, AbsolutePath: "/src/cat.jpg", ModifiedAtScan: jan},
			},
			wantID: 2,
		},
		{
			name: "equal times and lengths fall back to lowest ID",
			instances: []model.PathInstance{
				{InstanceID: 7, AbsolutePath: "/src/b.jpg", ModifiedAtScan: jan},
				{InstanceID: 3, AbsolutePath: "/src/a.jpg", ModifiedAtScan: jan},
			},
			wantID: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := core.SelectPrimary(tt.instances)
			if got.InstanceID != tt.wantID {
				t.Errorf("SelectPrimary() = instance %d, want %d", got.InstanceID, tt.wantID)
			}

			// Reversing the input must not change the choice.
			reversed := make([]model.PathInstance, 0, len(tt.instances))
			for i := len(tt.instances) - 1; i >= 0; i-- {
				reversed = append(reversed, tt.instances[i])
			}
			if got := core.SelectPrimary(reversed); got.InstanceID != tt.wantID {
				t.Errorf("SelectPrimary(reversed) = instance %d, want %d", got.InstanceID, tt.wantID)
			}
		})
	}
}

func seedGroup(t *testing.T, catalog core.Catalog, key string, paths []string, mtimes []time.Time) {
	t.Helper()
	batch := make([]model.Discovery, 0, len(paths))
	for i, p := range paths {
		batch = append(batch, model.Discovery{
			ContentKey:   key,
			SizeBytes:    100,
			TypeGroup:    core.GroupImage,
			AbsolutePath: p,
			ModifiedAt:   mtimes[i],
			DiscoveredAt: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		})
	}
	if _, err := catalog.CommitDiscoveries(context.Background(), batch); err != nil {
		t.Fatalf("CommitDiscoveries() error = %v", err)
	}
}

func primaryJobs(t *testing.T, catalog core.Catalog) map[string]model.MigrationJob {
	t.Helper()
	jobs := map[string]model.MigrationJob{}
	if err := catalog.IteratePrimaries(context.Background(), func(j model.MigrationJob) error {
		jobs[j.ContentKey] = j
		return nil
	}); err != nil {
		t.Fatalf("IteratePrimaries() error = %v", err)
	}
	return jobs
}

func TestResolveDerivesPathFromPrimaryModTime(t *testing.T) {
	catalog := testutil.NewTestCatalog(t)
	key := "aaaa1111bbbb2222"
	seedGroup(t, catalog, key,
		[]string{"/src/a/cat.jpg", "/src/b/cat_copy.jpg"},
		[]time.Time{
			time.Date(2023, 1, 15, 0, 0, 0, 0, time.UTC),
			time.Date(2023, 6, 15, 0, 0, 0, 0, time.UTC),
		})

	resolver := core.NewResolver(catalog, core.NewNopLogger(), 10, true)
	report, err := resolver.Resolve(context.Background())
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if report.Groups != 1 {
		t.Errorf("Groups = %d, want 1", report.Groups)
	}
	if report.DuplicateInstances != 1 {
		t.Errorf("DuplicateInstances = %d, want 1", report.DuplicateInstances)
	}

	job, ok := primaryJobs(t, catalog)[key]
	if !ok {
		t.Fatal("no primary recorded")
	}
	if job.AbsolutePath != "/src/a/cat.jpg" {
		t.Errorf("primary = %s, want the earlier-modified instance", job.AbsolutePath)
	}
	// January primary: the directory comes from its mtime, never from today.
	if !strings.HasPrefix(job.FinalRelativePath, "2023/01/") {
		t.Errorf("FinalRelativePath = %s, want 2023/01/ prefix", job.FinalRelativePath)
	}
	if !strings.HasPrefix(job.FinalRelativePath, "2023/01/aaaa1111_") {
		t.Errorf("FinalRelativePath = %s, want hash-based name", job.FinalRelativePath)
	}
	if !strings.HasSuffix(job.FinalRelativePath, ".jpg") {
		t.Errorf("FinalRelativePath = %s, want original extension", job.FinalRelativePath)
	}
}

func TestResolvePrefersBestTimestamp(t *testing.T) {
	catalog := testutil.NewTestCatalog(t)
	ctx := context.Background()
	key := "cccc3333dddd4444"
	seedGroup(t, catalog, key,
		[]string{"/src/photo.jpg"},
		[]time.Time{time.Date(2023, 1, 15, 0, 0, 0, 0, time.UTC)})

	// Metadata collaborator knows the capture date.
	best := time.Date(2019, 7, 4, 10, 30, 0, 0, time.UTC)
	if err := catalog.SetContentMetadata(ctx, key, model.ContentMetadata{BestTimestamp: &best}); err != nil {
		t.Fatalf("SetContentMetadata() error = %v", err)
	}

	resolver := core.NewResolver(catalog, core.NewNopLogger(), 10, true)
	if _, err := resolver.Resolve(ctx); err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	job := primaryJobs(t, catalog)[key]
	if !strings.HasPrefix(job.FinalRelativePath, "2019/07/") {
		t.Errorf("FinalRelativePath = %s, want 2019/07/ prefix from best timestamp", job.FinalRelativePath)
	}
}

func TestResolveRerunIsNoOp(t *testing.T) {
	catalog := testutil.NewTestCatalog(t)
	ctx := context.Background()
	seedGroup(t, catalog, "eeee5555ffff6666",
		[]string{"/src/a.jpg"},
		[]time.Time{time.Date(2023, 1, 15, 0, 0, 0, 0, time.UTC)})

	resolver := core.NewResolver(catalog, core.NewNopLogger(), 10, true)
	if _, err := resolver.Resolve(ctx); err != nil {
		t.Fatalf("first Resolve() error = %v", err)
	}
	before := primaryJobs(t, catalog)

	report, err := resolver.Resolve(ctx)
	if err != nil {
		t.Fatalf("second Resolve() error = %v", err)
	}
	if report.Groups != 0 {
		t.Errorf("Groups = %d, want 0 on re-run", report.Groups)
	}
	if report.AlreadyResolved != 1 {
		t.Errorf("AlreadyResolved = %d, want 1", report.AlreadyResolved)
	}

	after := primaryJobs(t, catalog)
	for key, job := range before {
		if after[key].FinalRelativePath != job.FinalRelativePath {
			t.Errorf("final path for %s changed on re-run: %s -> %s",
				key, job.FinalRelativePath, after[key].FinalRelativePath)
		}
	}
}

func TestResolvePreservesOriginalNames(t *testing.T) {
	catalog := testutil.NewTestCatalog(t)
	ctx := context.Background()
	mtime := time.Date(2023, 1, 15, 0, 0, 0, 0, time.UTC)

	// Two distinct contents whose primaries share a basename and a
	// target month.
	seedGroup(t, catalog, "1111aaaa2222bbbb", []string{"/src/a/cat.jpg"}, []time.Time{mtime})
	seedGroup(t, catalog, "3333cccc4444dddd", []string{"/src/b/cat.jpg"}, []time.Time{mtime})

	resolver := core.NewResolver(catalog, core.NewNopLogger(), 10, false)
	if _, err := resolver.Resolve(ctx); err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	var preserved, hashed int
	for _, job := range primaryJobs(t, catalog) {
		switch {
		case job.FinalRelativePath == "2023/01/cat.jpg":
			preserved++
		case strings.HasPrefix(job.FinalRelativePath, "2023/01/") && strings.Contains(job.FinalRelativePath, "_"):
			hashed++
		default:
			t.Errorf("unexpected final path %s", job.FinalRelativePath)
		}
	}
	if preserved != 1 {
		t.Errorf("preserved names = %d, want exactly 1", preserved)
	}
	if hashed != 1 {
		t.Errorf("hash-named fallbacks = %d, want exactly 1", hashed)
	}
}

func TestResolveEmptyCatalog(t *testing.T) {
	catalog := testutil.NewTestCatalog(t)

	resolver := core.NewResolver(catalog, core.NewNopLogger(), 10, true)
	report, err := resolver.Resolve(context.Background())
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if report.Groups != 0 || report.Assigned != 0 {
		t.Errorf("empty catalog produced work: %+v", report)
	}
}
