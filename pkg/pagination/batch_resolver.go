package pagination

import (
	"context"
	"fmt"
	"time"

	"github.com/Sternrassler/dex-client/pkg/catalog"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Config holds batch resolver configuration
type Config struct {
	// MaxConcurrency is the maximum number of parallel item resolves.
	// Default is one page, so a full page resolves in one round.
	MaxConcurrency int
	// Timeout per item resolve
	Timeout time.Duration
}

// DefaultConfig returns the default resolver configuration
func DefaultConfig() Config {
	return Config{
		MaxConcurrency: PageSize,
		Timeout:        15 * time.Second,
	}
}

// Resolver resolves one item id. *cache.Cache satisfies it.
type Resolver interface {
	Resolve(ctx context.Context, id int) (*catalog.Item, error)
}

// BatchResolver resolves a page of ids in parallel and returns the items in
// input order.
type BatchResolver struct {
	resolver Resolver
	config   Config
	logger   zerolog.Logger
}

// NewBatchResolver creates a new batch resolver
func NewBatchResolver(resolver Resolver, config Config) *BatchResolver {
	if resolver == nil {
		panic("resolver cannot be nil")
	}
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = PageSize
	}
	if config.Timeout <= 0 {
		config.Timeout = 15 * time.Second
	}

	return &BatchResolver{
		resolver: resolver,
		config:   config,
		logger:   log.With().Str("component", "batch-resolver").Logger(),
	}
}

// ResolveAll resolves every id. The result has the same length and order as
// ids, whatever order the resolves complete in. The first failure cancels the
// remaining resolves and fails the whole batch.
func (br *BatchResolver) ResolveAll(ctx context.Context, ids []int) ([]*catalog.Item, error) {
	if len(ids) == 0 {
		return []*catalog.Item{}, nil
	}

	start := time.Now()
	items := make([]*catalog.Item, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(br.config.MaxConcurrency)

	for i, id := range ids {
		g.Go(func() error {
			itemCtx, cancel := context.WithTimeout(gctx, br.config.Timeout)
			defer cancel()

			item, err := br.resolver.Resolve(itemCtx, id)
			if err != nil {
				br.logger.Warn().
					Err(err).
					Int("id", id).
					Msg("Item resolve failed")
				return fmt.Errorf("resolve item %d: %w", id, err)
			}
			items[i] = item
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	br.logger.Debug().
		Int("items", len(items)).
		Dur("duration", time.Since(start)).
		Msg("Batch resolved")

	return items, nil
}
