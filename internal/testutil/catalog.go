package testutil

import (
	"context"

	"mediasort/internal/core"
	"mediasort/internal/model"
)

// FailingCommitCatalog wraps a Catalog and fails every discovery commit,
// simulating a store that rejects writes (disk full, constraint violation).
type FailingCommitCatalog struct {
	core.Catalog
	Err error
}

func (c *FailingCommitCatalog) CommitDiscoveries(ctx context.Context, batch []model.Discovery) (model.DiscoveryStats, error) {
	return model.DiscoveryStats{}, c.Err
}

// Compile-time check that FailingCommitCatalog implements core.Catalog
var _ core.Catalog = (*FailingCommitCatalog)(nil)
