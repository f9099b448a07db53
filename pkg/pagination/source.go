package pagination

import "context"

// PageSize is the number of ids per page for both sources.
const PageSize = 24

// Page is one page of item ids produced by Source.FetchPage.
type Page struct {
	// IDs in listing order.
	IDs []int

	// Next is the global feed cursor after this page ("" when done).
	Next string

	// Offset is the category feed offset after this page.
	Offset int

	// Total is the category member count.
	Total int

	// HasMore reports whether another page follows.
	HasMore bool

	fetched bool
}

// Empty reports whether the page carries no ids.
func (p Page) Empty() bool {
	return len(p.IDs) == 0
}

// Source is a pagination source.
type Source interface {
	// FetchPage reads the next page without moving the cursor. An exhausted
	// source returns an empty page and makes no request.
	FetchPage(ctx context.Context) (Page, error)

	// Advance commits a page returned by FetchPage. Pages not produced by
	// FetchPage, and any page once the source is exhausted, are ignored.
	Advance(page Page)

	// Exhausted reports whether the source has no further pages.
	Exhausted() bool

	// Kind names the source for logs ("global" or "category").
	Kind() string
}
