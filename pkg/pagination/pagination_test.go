package pagination_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/Sternrassler/dex-client/internal/testutil"
	"github.com/Sternrassler/dex-client/pkg/cache"
	"github.com/Sternrassler/dex-client/pkg/catalog"
	"github.com/Sternrassler/dex-client/pkg/client"
	"github.com/Sternrassler/dex-client/pkg/pagination"
	"github.com/rs/zerolog"
)

func newTestAPI(t *testing.T, mock *testutil.MockCatalog) *catalog.API {
	t.Helper()
	cfg := client.DefaultConfig("dex-test/1.0.0")
	c, err := client.New(cfg)
	if err != nil {
		t.Fatalf("client.New() error = %v", err)
	}
	return catalog.NewAPI(c, mock.URL())
}

func TestGlobalFeed_TwoLoads(t *testing.T) {
	mock := testutil.NewMockCatalog(60)
	defer mock.Close()

	api := newTestAPI(t, mock)
	itemCache := cache.New(api, zerolog.Nop())
	resolver := pagination.NewBatchResolver(itemCache, pagination.DefaultConfig())
	feed := pagination.NewGlobalFeed(api, api.FirstPageURL(pagination.PageSize))
	ctx := context.Background()

	seen := make(map[int]bool)
	for load := 1; load <= 2; load++ {
		page, err := feed.FetchPage(ctx)
		if err != nil {
			t.Fatalf("load %d: FetchPage() error = %v", load, err)
		}
		if len(page.IDs) != pagination.PageSize {
			t.Fatalf("load %d: len(IDs) = %d, want %d", load, len(page.IDs), pagination.PageSize)
		}
		if page.Next == "" {
			t.Errorf("load %d: Next is empty, want a cursor", load)
		}

		items, err := resolver.ResolveAll(ctx, page.IDs)
		if err != nil {
			t.Fatalf("load %d: ResolveAll() error = %v", load, err)
		}
		for _, item := range items {
			if seen[item.ID] {
				t.Errorf("load %d: id %d already delivered", load, item.ID)
			}
			seen[item.ID] = true
		}
		feed.Advance(page)
	}

	stats := itemCache.Stats()
	if stats.Hits != 0 {
		t.Errorf("cache hits = %d, want 0 across disjoint loads", stats.Hits)
	}
	if stats.Fetches != 48 {
		t.Errorf("cache fetches = %d, want 48", stats.Fetches)
	}
	if got := mock.TotalItemFetches(); got != 48 {
		t.Errorf("item requests = %d, want 48", got)
	}
}

func TestGlobalFeed_FailureLeavesCursor(t *testing.T) {
	mock := testutil.NewMockCatalog(30)
	defer mock.Close()
	mock.Script("/pokemon", testutil.NewServerErrorResponse())

	api := newTestAPI(t, mock)
	first := api.FirstPageURL(pagination.PageSize)
	feed := pagination.NewGlobalFeed(api, first)

	if _, err := feed.FetchPage(context.Background()); err == nil {
		t.Fatal("FetchPage() expected error on 500")
	}
	if feed.Cursor() != first {
		t.Errorf("Cursor() = %q, want unchanged %q", feed.Cursor(), first)
	}

	page, err := feed.FetchPage(context.Background())
	if err != nil {
		t.Fatalf("retry FetchPage() error = %v", err)
	}
	if page.IDs[0] != 1 {
		t.Errorf("retry first id = %d, want 1", page.IDs[0])
	}
}

func TestGlobalFeed_MalformedIdentifier(t *testing.T) {
	mock := testutil.NewMockCatalog(10)
	defer mock.Close()
	mock.BreakItemURL(3)

	api := newTestAPI(t, mock)
	first := api.FirstPageURL(pagination.PageSize)
	feed := pagination.NewGlobalFeed(api, first)

	_, err := feed.FetchPage(context.Background())
	if !errors.Is(err, catalog.ErrMalformedIdentifier) {
		t.Fatalf("FetchPage() error = %v, want ErrMalformedIdentifier", err)
	}
	if feed.Cursor() != first {
		t.Error("cursor moved after malformed page")
	}
}

func TestGlobalFeed_ExhaustedMakesNoRequests(t *testing.T) {
	mock := testutil.NewMockCatalog(10)
	defer mock.Close()

	api := newTestAPI(t, mock)
	feed := pagination.NewGlobalFeed(api, api.FirstPageURL(pagination.PageSize))
	ctx := context.Background()

	page, err := feed.FetchPage(ctx)
	if err != nil {
		t.Fatalf("FetchPage() error = %v", err)
	}
	if len(page.IDs) != 10 || page.HasMore {
		t.Fatalf("page = %+v, want 10 ids and no more", page)
	}
	feed.Advance(page)

	if !feed.Exhausted() {
		t.Fatal("Exhausted() = false after last page")
	}

	mock.Reset()
	for i := 0; i < 3; i++ {
		page, err := feed.FetchPage(ctx)
		if err != nil {
			t.Fatalf("exhausted FetchPage() error = %v", err)
		}
		if !page.Empty() {
			t.Errorf("exhausted FetchPage() returned %d ids", len(page.IDs))
		}
		feed.Advance(page)
	}
	if got := mock.TotalRequests(); got != 0 {
		t.Errorf("requests after exhaustion = %d, want 0", got)
	}
}

func TestGlobalFeed_AdvanceIgnoresForeignPage(t *testing.T) {
	mock := testutil.NewMockCatalog(30)
	defer mock.Close()

	api := newTestAPI(t, mock)
	first := api.FirstPageURL(pagination.PageSize)
	feed := pagination.NewGlobalFeed(api, first)

	feed.Advance(pagination.Page{})
	if feed.Cursor() != first || feed.Exhausted() {
		t.Error("Advance() with a zero page moved the cursor")
	}
}

func TestCategoryFeed_SinglePage(t *testing.T) {
	mock := testutil.NewMockCatalog(20)
	defer mock.Close()
	mock.SetCategory("fire", 4, 5, 6, 37, 38, 58, 59, 77, 78, 126, 136, 146)
	for _, id := range []int{37, 38, 58, 59, 77, 78, 126, 136, 146} {
		mock.AddItem(testutil.Fixture{ID: id, Name: fmt.Sprintf("fire-%d", id), Types: []string{"fire"}})
	}

	api := newTestAPI(t, mock)
	members := pagination.NewMemberships(api, zerolog.Nop())
	feed := pagination.NewCategoryFeed("fire", members, pagination.PageSize)
	ctx := context.Background()

	page, err := feed.FetchPage(ctx)
	if err != nil {
		t.Fatalf("FetchPage() error = %v", err)
	}
	if len(page.IDs) != 12 {
		t.Errorf("len(IDs) = %d, want 12", len(page.IDs))
	}
	if page.Total != 12 || page.HasMore {
		t.Errorf("page Total=%d HasMore=%v, want 12 false", page.Total, page.HasMore)
	}
	feed.Advance(page)

	if feed.HasMore() {
		t.Error("HasMore() = true after the only page")
	}

	mock.Reset()
	next, err := feed.FetchPage(ctx)
	if err != nil {
		t.Fatalf("exhausted FetchPage() error = %v", err)
	}
	if !next.Empty() {
		t.Errorf("exhausted FetchPage() returned %v", next.IDs)
	}
	if got := mock.TotalRequests(); got != 0 {
		t.Errorf("requests after exhaustion = %d, want 0", got)
	}
}

func TestCategoryFeed_OffsetProgression(t *testing.T) {
	const total = 50

	mock := testutil.NewMockCatalog(total)
	defer mock.Close()
	ids := make([]int, total)
	for i := range ids {
		ids[i] = total - i
	}
	mock.SetCategory("normal", ids...)

	api := newTestAPI(t, mock)
	feed := pagination.NewCategoryFeed("normal", pagination.NewMemberships(api, zerolog.Nop()), 0)
	ctx := context.Background()

	var delivered []int
	for n := 1; n <= 4; n++ {
		page, err := feed.FetchPage(ctx)
		if err != nil {
			t.Fatalf("load %d: FetchPage() error = %v", n, err)
		}
		delivered = append(delivered, page.IDs...)
		feed.Advance(page)

		wantOffset := min(n, 3) * pagination.PageSize
		if feed.Offset() != wantOffset {
			t.Errorf("load %d: Offset() = %d, want %d", n, feed.Offset(), wantOffset)
		}
		if feed.HasMore() != (feed.Offset() < total) {
			t.Errorf("load %d: HasMore() = %v with offset %d of %d", n, feed.HasMore(), feed.Offset(), total)
		}
	}

	if len(delivered) != total {
		t.Fatalf("delivered %d ids, want %d", len(delivered), total)
	}
	for i := range ids {
		if delivered[i] != ids[i] {
			t.Fatalf("delivered[%d] = %d, want %d (server order)", i, delivered[i], ids[i])
		}
	}
	if got := mock.Count("/type/normal"); got != 1 {
		t.Errorf("membership requests = %d, want 1", got)
	}
}

func TestCategoryFeed_FailureLeavesOffset(t *testing.T) {
	mock := testutil.NewMockCatalog(5)
	defer mock.Close()
	mock.SetCategory("water", 1, 2, 3)
	mock.Script("/type/water", testutil.NewServerErrorResponse())

	api := newTestAPI(t, mock)
	members := pagination.NewMemberships(api, zerolog.Nop())
	feed := pagination.NewCategoryFeed("water", members, 2)
	ctx := context.Background()

	if _, err := feed.FetchPage(ctx); err == nil {
		t.Fatal("FetchPage() expected error")
	}
	if feed.Offset() != 0 || !feed.HasMore() {
		t.Errorf("state after failure = (%d, %v), want (0, true)", feed.Offset(), feed.HasMore())
	}
	if members.Cached("water") {
		t.Error("failed membership fetch was memoized")
	}

	page, err := feed.FetchPage(ctx)
	if err != nil {
		t.Fatalf("retry FetchPage() error = %v", err)
	}
	if len(page.IDs) != 2 || !page.HasMore {
		t.Errorf("retry page = %+v, want 2 ids with more", page)
	}
}

func TestMemberships_OncePerCategory(t *testing.T) {
	mock := testutil.NewMockCatalog(5)
	defer mock.Close()
	mock.SetCategory("fire", 1, 2)
	mock.SetCategory("water", 3)

	api := newTestAPI(t, mock)
	members := pagination.NewMemberships(api, zerolog.Nop())
	ctx := context.Background()

	for _, category := range []string{"fire", "water", "fire", "water", "fire"} {
		feed := pagination.NewCategoryFeed(category, members, pagination.PageSize)
		if _, err := feed.FetchPage(ctx); err != nil {
			t.Fatalf("FetchPage(%s) error = %v", category, err)
		}
	}

	if got := mock.Count("/type/fire"); got != 1 {
		t.Errorf("/type/fire requests = %d, want 1", got)
	}
	if got := mock.Count("/type/water"); got != 1 {
		t.Errorf("/type/water requests = %d, want 1", got)
	}
}

func TestMemberships_MalformedIdentifier(t *testing.T) {
	mock := testutil.NewMockCatalog(5)
	defer mock.Close()
	mock.SetCategory("grass", 1, 2)
	mock.BreakItemURL(2)

	api := newTestAPI(t, mock)
	members := pagination.NewMemberships(api, zerolog.Nop())

	if _, err := members.IDs(context.Background(), "grass"); !errors.Is(err, catalog.ErrMalformedIdentifier) {
		t.Errorf("IDs() error = %v, want ErrMalformedIdentifier", err)
	}
}
