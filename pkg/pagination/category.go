package pagination

import (
	"context"
	"fmt"
	"sync"

	"github.com/Sternrassler/dex-client/pkg/catalog"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// MemberLister fetches a category's full member list. *catalog.API
// satisfies it.
type MemberLister interface {
	CategoryMembers(ctx context.Context, category string) ([]catalog.NamedRef, error)
}

// Memberships memoizes category member ids for the session. Each distinct
// category is fetched at most once; failures are not memoized.
type Memberships struct {
	lister MemberLister
	logger zerolog.Logger

	mu    sync.RWMutex
	ids   map[string][]int
	group singleflight.Group
}

// NewMemberships creates an empty memo.
func NewMemberships(lister MemberLister, logger zerolog.Logger) *Memberships {
	if lister == nil {
		panic("member lister cannot be nil")
	}
	return &Memberships{
		lister: lister,
		logger: logger.With().Str("component", "memberships").Logger(),
		ids:    make(map[string][]int),
	}
}

// IDs returns the member ids of category in server order. The returned slice
// must not be modified.
func (m *Memberships) IDs(ctx context.Context, category string) ([]int, error) {
	if ids, ok := m.cached(category); ok {
		return ids, nil
	}

	v, err, _ := m.group.Do(category, func() (any, error) {
		if ids, ok := m.cached(category); ok {
			return ids, nil
		}

		refs, err := m.lister.CategoryMembers(ctx, category)
		if err != nil {
			return nil, err
		}
		ids, err := catalog.ParseIDs(refs)
		if err != nil {
			return nil, fmt.Errorf("category %s: %w", category, err)
		}

		m.mu.Lock()
		m.ids[category] = ids
		m.mu.Unlock()

		m.logger.Debug().
			Str("category", category).
			Int("members", len(ids)).
			Msg("Category members cached")

		return ids, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]int), nil
}

// Cached reports whether the category's members are already known.
func (m *Memberships) Cached(category string) bool {
	_, ok := m.cached(category)
	return ok
}

func (m *Memberships) cached(category string) ([]int, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids, ok := m.ids[category]
	return ids, ok
}

// CategoryFeed pages through one category's members by offset.
type CategoryFeed struct {
	category string
	members  *Memberships
	pageSize int

	mu      sync.Mutex
	offset  int
	hasMore bool
}

// NewCategoryFeed creates a feed at offset 0. A pageSize <= 0 selects
// PageSize.
func NewCategoryFeed(category string, members *Memberships, pageSize int) *CategoryFeed {
	if members == nil {
		panic("memberships cannot be nil")
	}
	if pageSize <= 0 {
		pageSize = PageSize
	}
	return &CategoryFeed{
		category: category,
		members:  members,
		pageSize: pageSize,
		hasMore:  true,
	}
}

// FetchPage returns the ids in [offset, offset+pageSize).
func (f *CategoryFeed) FetchPage(ctx context.Context) (Page, error) {
	offset, hasMore := f.Offset(), f.HasMore()
	if !hasMore {
		return Page{}, nil
	}

	ids, err := f.members.IDs(ctx, f.category)
	if err != nil {
		return Page{}, err
	}

	total := len(ids)
	start := min(offset, total)
	end := min(offset+f.pageSize, total)
	next := offset + f.pageSize

	return Page{
		IDs:     append([]int(nil), ids[start:end]...),
		Offset:  next,
		Total:   total,
		HasMore: next < total,
		fetched: true,
	}, nil
}

// Advance commits the page's offset. Once the category is exhausted the
// offset never moves again.
func (f *CategoryFeed) Advance(page Page) {
	if !page.fetched {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.hasMore {
		return
	}
	f.offset = page.Offset
	f.hasMore = page.HasMore
}

// Offset returns the offset of the next page.
func (f *CategoryFeed) Offset() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.offset
}

// HasMore reports whether another page may follow.
func (f *CategoryFeed) HasMore() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hasMore
}

// Exhausted implements Source.
func (f *CategoryFeed) Exhausted() bool {
	return !f.HasMore()
}

// Category returns the category being paged.
func (f *CategoryFeed) Category() string {
	return f.category
}

// Kind implements Source.
func (f *CategoryFeed) Kind() string {
	return "category"
}
