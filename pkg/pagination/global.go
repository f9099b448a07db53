package pagination

import (
	"context"
	"fmt"
	"sync"

	"github.com/Sternrassler/dex-client/pkg/catalog"
)

// Lister fetches one page of the global listing. *catalog.API satisfies it.
type Lister interface {
	ListPage(ctx context.Context, pageURL string) (*catalog.ListPage, error)
}

// GlobalFeed pages through the full catalog by following the server's next
// links.
type GlobalFeed struct {
	lister Lister

	mu     sync.Mutex
	cursor string
}

// NewGlobalFeed creates a feed starting at firstURL, normally
// API.FirstPageURL(PageSize).
func NewGlobalFeed(lister Lister, firstURL string) *GlobalFeed {
	if lister == nil {
		panic("pagination lister cannot be nil")
	}
	return &GlobalFeed{
		lister: lister,
		cursor: firstURL,
	}
}

// FetchPage requests the page at the cursor and parses its ids.
func (f *GlobalFeed) FetchPage(ctx context.Context) (Page, error) {
	cursor := f.Cursor()
	if cursor == "" {
		return Page{}, nil
	}

	list, err := f.lister.ListPage(ctx, cursor)
	if err != nil {
		return Page{}, err
	}

	ids, err := catalog.ParseIDs(list.Results)
	if err != nil {
		return Page{}, fmt.Errorf("global page: %w", err)
	}

	next := list.NextURL()
	return Page{
		IDs:     ids,
		Next:    next,
		Total:   list.Count,
		HasMore: next != "",
		fetched: true,
	}, nil
}

// Advance moves the cursor to the page's next link.
func (f *GlobalFeed) Advance(page Page) {
	if !page.fetched {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cursor == "" {
		return
	}
	f.cursor = page.Next
}

// Exhausted reports whether the server has signalled the last page.
func (f *GlobalFeed) Exhausted() bool {
	return f.Cursor() == ""
}

// Cursor returns the URL of the next page, or "" when exhausted.
func (f *GlobalFeed) Cursor() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cursor
}

// Kind implements Source.
func (f *GlobalFeed) Kind() string {
	return "global"
}
