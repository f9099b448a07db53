package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/Sternrassler/dex-client/pkg/catalog"
	"github.com/rs/zerolog"
)

// countingFetcher serves items named "item-<id>" and counts fetches per ref.
type countingFetcher struct {
	mu     sync.Mutex
	calls  map[string]int
	delay  time.Duration
	failOn map[string]error
}

func newCountingFetcher() *countingFetcher {
	return &countingFetcher{
		calls:  make(map[string]int),
		failOn: make(map[string]error),
	}
}

func (f *countingFetcher) FetchItem(ctx context.Context, ref string) (*catalog.Item, error) {
	f.mu.Lock()
	f.calls[ref]++
	err := f.failOn[ref]
	delay := f.delay
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}

	id, convErr := strconv.Atoi(ref)
	if convErr != nil {
		// name refs are "item-<id>"
		if _, scanErr := fmt.Sscanf(ref, "item-%d", &id); scanErr != nil {
			return nil, fmt.Errorf("unknown ref %q", ref)
		}
	}
	return &catalog.Item{ID: id, Name: fmt.Sprintf("item-%d", id)}, nil
}

func (f *countingFetcher) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

func TestNew_NilFetcherPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("New(nil) did not panic")
		}
	}()
	New(nil, zerolog.Nop())
}

func TestCache_FetchCountEqualsDistinctIDs(t *testing.T) {
	fetcher := newCountingFetcher()
	c := New(fetcher, zerolog.Nop())
	ctx := context.Background()

	ids := []int{1, 2, 3, 2, 1, 4, 4, 4, 3}
	for _, id := range ids {
		item, err := c.Resolve(ctx, id)
		if err != nil {
			t.Fatalf("Resolve(%d) error = %v", id, err)
		}
		if item.ID != id {
			t.Errorf("Resolve(%d).ID = %d", id, item.ID)
		}
	}

	if got := fetcher.total(); got != 4 {
		t.Errorf("fetches = %d, want 4 (distinct ids)", got)
	}

	stats := c.Stats()
	if stats.Items != 4 || stats.Fetches != 4 || stats.Hits != 5 {
		t.Errorf("Stats() = %+v, want {Items:4 Hits:5 Fetches:4}", stats)
	}
}

func TestCache_NameHitAfterIDFetch(t *testing.T) {
	fetcher := newCountingFetcher()
	c := New(fetcher, zerolog.Nop())
	ctx := context.Background()

	byID, err := c.Resolve(ctx, 9)
	if err != nil {
		t.Fatalf("Resolve(9) error = %v", err)
	}

	byName, err := c.ResolveKey(ctx, NameKey("ITEM-9"))
	if err != nil {
		t.Fatalf("ResolveKey(name) error = %v", err)
	}
	if byName != byID {
		t.Error("name lookup returned a different item instance")
	}
	if got := fetcher.total(); got != 1 {
		t.Errorf("fetches = %d, want 1", got)
	}
}

func TestCache_IDHitAfterNameFetch(t *testing.T) {
	fetcher := newCountingFetcher()
	c := New(fetcher, zerolog.Nop())
	ctx := context.Background()

	if _, err := c.ResolveKey(ctx, ParseKey("item-12")); err != nil {
		t.Fatalf("ResolveKey(item-12) error = %v", err)
	}
	if _, err := c.Resolve(ctx, 12); err != nil {
		t.Fatalf("Resolve(12) error = %v", err)
	}
	if got := fetcher.total(); got != 1 {
		t.Errorf("fetches = %d, want 1", got)
	}
}

func TestCache_ConcurrentSameIDFetchesOnce(t *testing.T) {
	fetcher := newCountingFetcher()
	fetcher.delay = 50 * time.Millisecond
	c := New(fetcher, zerolog.Nop())

	var wg sync.WaitGroup
	items := make([]*catalog.Item, 10)
	for i := range items {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			item, err := c.Resolve(context.Background(), 5)
			if err != nil {
				t.Errorf("Resolve(5) error = %v", err)
				return
			}
			items[i] = item
		}(i)
	}
	wg.Wait()

	if got := fetcher.total(); got != 1 {
		t.Errorf("fetches = %d, want 1", got)
	}
	for i, item := range items {
		if item != items[0] {
			t.Errorf("items[%d] is a different instance", i)
		}
	}
}

func TestCache_ConcurrentDifferentIDsRunInParallel(t *testing.T) {
	fetcher := newCountingFetcher()
	fetcher.delay = 100 * time.Millisecond
	c := New(fetcher, zerolog.Nop())

	start := time.Now()
	var wg sync.WaitGroup
	for id := 1; id <= 8; id++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			if _, err := c.Resolve(context.Background(), id); err != nil {
				t.Errorf("Resolve(%d) error = %v", id, err)
			}
		}(id)
	}
	wg.Wait()

	if elapsed := time.Since(start); elapsed > 600*time.Millisecond {
		t.Errorf("8 parallel resolves took %v, expected well under serial time", elapsed)
	}
	if c.Len() != 8 {
		t.Errorf("Len() = %d, want 8", c.Len())
	}
}

func TestCache_FailedFetchNotCached(t *testing.T) {
	fetcher := newCountingFetcher()
	boom := errors.New("boom")
	fetcher.failOn["3"] = boom
	c := New(fetcher, zerolog.Nop())
	ctx := context.Background()

	if _, err := c.Resolve(ctx, 3); !errors.Is(err, boom) {
		t.Fatalf("Resolve(3) error = %v, want boom", err)
	}
	if _, ok := c.Lookup(IDKey(3)); ok {
		t.Error("failed item was cached")
	}

	fetcher.mu.Lock()
	delete(fetcher.failOn, "3")
	fetcher.mu.Unlock()

	if _, err := c.Resolve(ctx, 3); err != nil {
		t.Fatalf("retry Resolve(3) error = %v", err)
	}
	if got := fetcher.total(); got != 2 {
		t.Errorf("fetches = %d, want 2", got)
	}
}

func TestCache_InvalidKey(t *testing.T) {
	c := New(newCountingFetcher(), zerolog.Nop())

	if _, err := c.Resolve(context.Background(), 0); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("Resolve(0) error = %v, want ErrInvalidKey", err)
	}
	if _, err := c.ResolveKey(context.Background(), NameKey("")); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("ResolveKey(\"\") error = %v, want ErrInvalidKey", err)
	}
}

func TestCache_Put(t *testing.T) {
	c := New(newCountingFetcher(), zerolog.Nop())

	if err := c.Put(nil); !errors.Is(err, ErrNilItem) {
		t.Errorf("Put(nil) error = %v, want ErrNilItem", err)
	}

	first := &catalog.Item{ID: 1, Name: "Bulbasaur"}
	if err := c.Put(first); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if err := c.Put(&catalog.Item{ID: 1, Name: "bulbasaur"}); err != nil {
		t.Fatalf("second Put() error = %v", err)
	}

	got, ok := c.Lookup(NameKey("bulbasaur"))
	if !ok || got != first {
		t.Errorf("Lookup(bulbasaur) = (%v, %v), want the first stored item", got, ok)
	}
	if c.Len() != 1 {
		t.Errorf("Len() = %d, want 1", c.Len())
	}
}
