// Package pagination provides the two item sources the load controller pages
// through, and ordered parallel resolution of a page's ids.
//
// A Source yields pages of item ids in two steps: FetchPage reads the next
// page without moving the cursor, and Advance commits it. A caller that fails
// after FetchPage simply does not call Advance, so the cursor is never moved
// past items that were not delivered.
//
// Two sources exist:
//
//   - GlobalFeed follows the server's "next" links through GET /pokemon.
//   - CategoryFeed slices a category's full member list locally. The member
//     list is fetched once per category per session through Memberships.
//
// Example usage:
//
//	feed := pagination.NewGlobalFeed(api, api.FirstPageURL(pagination.PageSize))
//	resolver := pagination.NewBatchResolver(itemCache, pagination.DefaultConfig())
//
//	page, err := feed.FetchPage(ctx)
//	if err != nil {
//		return err
//	}
//	items, err := resolver.ResolveAll(ctx, page.IDs)
//	if err != nil {
//		return err // cursor unchanged
//	}
//	feed.Advance(page)
//
// An exhausted source returns an empty page without any request.
package pagination
