// Package loader implements the load controller: it picks the active
// pagination source for the current filter, resolves each page through the
// item cache, applies the search filter and hands the result to a Renderer.
//
// At most one load is in flight at a time. A load requested while another is
// running is dropped. A filter change while a load is running invalidates that
// load's result and schedules a fresh load once it finishes.
package loader

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Sternrassler/dex-client/pkg/cache"
	"github.com/Sternrassler/dex-client/pkg/catalog"
	"github.com/Sternrassler/dex-client/pkg/debounce"
	"github.com/Sternrassler/dex-client/pkg/filter"
	"github.com/Sternrassler/dex-client/pkg/pagination"
	"github.com/rs/zerolog"
)

// SearchDebounce is the default delay of SetSearchDebounced.
const SearchDebounce = 400 * time.Millisecond

// Renderer displays loaded items. Implementations must be safe for use from
// the goroutine running the load.
type Renderer interface {
	// RenderBatch appends items to the list, or replaces the list when
	// appendBatch is false.
	RenderBatch(items []*catalog.Item, appendBatch bool)
	SetStatus(msg string)
	SetBusy(busy bool)
}

// API is the catalog surface the controller needs. *catalog.API satisfies it.
type API interface {
	pagination.Lister
	pagination.MemberLister
	cache.Fetcher
	FirstPageURL(limit int) string
	Categories(ctx context.Context) ([]string, error)
}

// Config holds the controller configuration.
type Config struct {
	// PageSize is the number of ids per page.
	PageSize int

	// MaxConcurrency bounds parallel item fetches within a page.
	MaxConcurrency int

	// ItemTimeout bounds a single item resolve.
	ItemTimeout time.Duration

	// SearchDebounce delays SetSearchDebounced.
	SearchDebounce time.Duration
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		PageSize:       pagination.PageSize,
		MaxConcurrency: pagination.PageSize,
		ItemTimeout:    15 * time.Second,
		SearchDebounce: SearchDebounce,
	}
}

// Deps are the controller's collaborators.
type Deps struct {
	API      API
	Renderer Renderer
	Logger   zerolog.Logger
}

// Snapshot is a point-in-time view of the controller.
type Snapshot struct {
	Loading   bool
	Filter    filter.Snapshot
	Source    string
	Exhausted bool
	Rendered  int
	Cache     cache.Stats
	LastErr   error
}

// Controller is the load controller. It owns the session state: item cache,
// category memberships, filter state and the active pagination source.
type Controller struct {
	api      API
	renderer Renderer
	config   Config
	logger   zerolog.Logger

	cache     *cache.Cache
	members   *pagination.Memberships
	resolver  *pagination.BatchResolver
	debouncer *debounce.Debouncer

	// loading is the single-flight guard.
	loading atomic.Bool

	// mu guards everything below, the filter, and the renderer calls that
	// publish a load's result.
	mu           sync.Mutex
	filter       filter.State
	source       pagination.Source
	rendered     int
	pendingReset bool
	lastErr      error
}

// New creates a controller positioned at the start of the global feed.
func New(cfg Config, deps Deps) (*Controller, error) {
	if deps.API == nil {
		return nil, ErrNoAPI
	}
	if deps.Renderer == nil {
		return nil, ErrNoRenderer
	}
	if cfg.PageSize <= 0 {
		return nil, fmt.Errorf("page_size must be > 0 (got %d)", cfg.PageSize)
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = cfg.PageSize
	}
	if cfg.SearchDebounce <= 0 {
		cfg.SearchDebounce = SearchDebounce
	}

	logger := deps.Logger.With().Str("component", "load-controller").Logger()
	itemCache := cache.New(deps.API, deps.Logger)

	c := &Controller{
		api:       deps.API,
		renderer:  deps.Renderer,
		config:    cfg,
		logger:    logger,
		cache:     itemCache,
		members:   pagination.NewMemberships(deps.API, deps.Logger),
		debouncer: debounce.New(cfg.SearchDebounce),
		resolver: pagination.NewBatchResolver(itemCache, pagination.Config{
			MaxConcurrency: cfg.MaxConcurrency,
			Timeout:        cfg.ItemTimeout,
		}),
	}
	c.source = c.newSource("")

	return c, nil
}

// Start loads the category list and the first page. A category failure is
// reported as a start failure; a first-page failure is reported like any
// other load failure.
func (c *Controller) Start(ctx context.Context) ([]string, error) {
	categories, err := c.api.Categories(ctx)
	if err != nil {
		c.logger.Error().Err(err).Msg("Failed to start")
		c.renderer.SetStatus(StatusStartFailed)
		return nil, fmt.Errorf("start: %w", err)
	}
	c.RequestLoad(ctx)
	return categories, nil
}

// Categories returns the selectable categories, sorted.
func (c *Controller) Categories(ctx context.Context) ([]string, error) {
	return c.api.Categories(ctx)
}

// Cache returns the session item cache.
func (c *Controller) Cache() *cache.Cache {
	return c.cache
}

// RequestLoad loads the next page of the active source and blocks until it
// is rendered. It returns false without doing anything if a load is already
// in flight.
func (c *Controller) RequestLoad(ctx context.Context) bool {
	if !c.loading.CompareAndSwap(false, true) {
		loadsTotal.WithLabelValues(outcomeDropped).Inc()
		c.logger.Debug().Msg("Load already in flight, request dropped")
		return false
	}
	c.run(ctx)
	return true
}

// run executes loads while holding the single-flight guard, then replays any
// reset that arrived meanwhile.
func (c *Controller) run(ctx context.Context) {
	for {
		c.load(ctx)
		c.loading.Store(false)

		c.mu.Lock()
		pending := c.pendingReset
		c.mu.Unlock()

		// Whoever holds the guard next consumes the pending reset.
		if !pending || !c.loading.CompareAndSwap(false, true) {
			return
		}
	}
}

// load performs one load. The caller holds the single-flight guard.
func (c *Controller) load(ctx context.Context) {
	c.mu.Lock()
	reset := c.pendingReset
	c.pendingReset = false
	source := c.source
	snap := c.filter.Snapshot()
	rendered := c.rendered
	c.mu.Unlock()

	log := c.logger.With().
		Str("source", source.Kind()).
		Uint64("generation", snap.Generation).
		Bool("reset", reset).
		Logger()

	if source.Exhausted() {
		loadsTotal.WithLabelValues(outcomeExhausted).Inc()
		log.Debug().Msg("Source exhausted, nothing to load")
		if rendered == 0 {
			c.renderer.SetStatus(StatusNoResults)
		} else {
			c.renderer.SetStatus(fmt.Sprintf(StatusEndOfList, rendered))
		}
		return
	}

	start := time.Now()
	c.renderer.SetBusy(true)
	defer c.renderer.SetBusy(false)
	c.renderer.SetStatus(StatusLoading)

	page, err := source.FetchPage(ctx)
	var items []*catalog.Item
	if err == nil {
		items, err = c.resolver.ResolveAll(ctx, page.IDs)
	}
	loadDuration.WithLabelValues(source.Kind()).Observe(time.Since(start).Seconds())

	matched := filter.Apply(snap.Query(), items)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.filter.Generation() != snap.Generation {
		loadsTotal.WithLabelValues(outcomeStale).Inc()
		log.Debug().Err(err).Msg("Filter changed during load, result discarded")
		return
	}

	c.lastErr = err
	if err != nil {
		loadsTotal.WithLabelValues(outcomeError).Inc()
		log.Error().Err(err).Msg("Load failed")
		c.renderer.SetStatus(StatusFailed)
		return
	}

	source.Advance(page)
	if reset {
		c.rendered = len(matched)
	} else {
		c.rendered += len(matched)
	}
	c.renderer.RenderBatch(matched, !reset)
	itemsRendered.Add(float64(len(matched)))

	if len(matched) == 0 {
		loadsTotal.WithLabelValues(outcomeNoResults).Inc()
		c.renderer.SetStatus(StatusNoResults)
	} else {
		loadsTotal.WithLabelValues(outcomeOK).Inc()
		c.renderer.SetStatus(fmt.Sprintf(StatusShowing, c.rendered))
	}

	log.Info().
		Int("fetched", len(page.IDs)).
		Int("shown", len(matched)).
		Int("rendered", c.rendered).
		Dur("duration", time.Since(start)).
		Msg("Page loaded")
}

// SetSearch sets the search text. If the normalized text changed the list is
// reset and reloaded before SetSearch returns. A pending debounced search is
// cancelled.
func (c *Controller) SetSearch(ctx context.Context, text string) bool {
	c.debouncer.Cancel()

	c.mu.Lock()
	changed := c.filter.SetSearch(text)
	if changed {
		c.resetLocked("search")
	}
	c.mu.Unlock()

	if changed {
		c.startReset(ctx)
	}
	return changed
}

// SetSearchDebounced calls SetSearch after the configured debounce delay. A
// later call, or an immediate SetSearch, supersedes it.
func (c *Controller) SetSearchDebounced(ctx context.Context, text string) {
	c.debouncer.Schedule(func() {
		c.SetSearch(ctx, text)
	})
}

// SearchPending reports whether a debounced search is waiting.
func (c *Controller) SearchPending() bool {
	return c.debouncer.Pending()
}

// SetCategory selects a category ("" for the global feed). If it changed the
// list is reset and reloaded from the new source before SetCategory returns.
func (c *Controller) SetCategory(ctx context.Context, name string) bool {
	c.mu.Lock()
	changed := c.filter.SetCategory(name)
	if changed {
		c.resetLocked("category")
	}
	c.mu.Unlock()

	if changed {
		c.startReset(ctx)
	}
	return changed
}

// SetFilters sets search text and category together. A change to either
// resets the list once.
func (c *Controller) SetFilters(ctx context.Context, search, category string) bool {
	c.debouncer.Cancel()

	c.mu.Lock()
	searchChanged := c.filter.SetSearch(search)
	categoryChanged := c.filter.SetCategory(category)
	changed := searchChanged || categoryChanged
	if changed {
		c.resetLocked("filters")
	}
	c.mu.Unlock()

	if changed {
		c.startReset(ctx)
	}
	return changed
}

// Reset restarts the list from the first page with the current filters.
func (c *Controller) Reset(ctx context.Context) {
	c.mu.Lock()
	c.filter.Bump()
	c.resetLocked("refresh")
	c.mu.Unlock()

	c.startReset(ctx)
}

// resetLocked replaces the source, clears the list and marks a reset load as
// pending. c.mu must be held.
func (c *Controller) resetLocked(trigger string) {
	snap := c.filter.Snapshot()
	c.source = c.newSource(snap.Category)
	c.rendered = 0
	c.pendingReset = true
	c.lastErr = nil

	c.renderer.RenderBatch(nil, false)
	c.renderer.SetStatus(StatusUpdating)
	resetsTotal.WithLabelValues(trigger).Inc()

	c.logger.Info().
		Str("trigger", trigger).
		Str("search", snap.Query()).
		Str("category", snap.Category).
		Uint64("generation", snap.Generation).
		Msg("List reset")
}

// startReset runs the pending reset load now, or leaves it to the load in
// flight, which replays it when done.
func (c *Controller) startReset(ctx context.Context) {
	if c.loading.CompareAndSwap(false, true) {
		c.run(ctx)
		return
	}
	c.logger.Debug().Msg("Load in flight, reset deferred")
}

func (c *Controller) newSource(category string) pagination.Source {
	if category == "" {
		return pagination.NewGlobalFeed(c.api, c.api.FirstPageURL(c.config.PageSize))
	}
	return pagination.NewCategoryFeed(category, c.members, c.config.PageSize)
}

// Snapshot returns the current controller state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		Loading:   c.loading.Load(),
		Filter:    c.filter.Snapshot(),
		Source:    c.source.Kind(),
		Exhausted: c.source.Exhausted(),
		Rendered:  c.rendered,
		Cache:     c.cache.Stats(),
		LastErr:   c.lastErr,
	}
}

// Close cancels any pending debounced search.
func (c *Controller) Close() {
	c.debouncer.Cancel()
}
