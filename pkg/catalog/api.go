package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// DefaultBaseURL is the public catalog API root.
const DefaultBaseURL = "https://pokeapi.co/api/v2"

// hiddenCategories are server-side categories with no real members.
var hiddenCategories = map[string]bool{
	"unknown": true,
	"shadow":  true,
}

// Getter fetches a URL and returns the raw JSON body. *client.Client
// satisfies it.
type Getter interface {
	Get(ctx context.Context, rawURL string) ([]byte, error)
}

// NamedRef is the {name, url} pair used throughout the listing payloads.
type NamedRef struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// ListPage is one page of GET /pokemon.
type ListPage struct {
	Count   int        `json:"count"`
	Next    *string    `json:"next"`
	Results []NamedRef `json:"results"`
}

// NextURL returns the next page reference, or "" when the listing is done.
func (p *ListPage) NextURL() string {
	if p.Next == nil {
		return ""
	}
	return *p.Next
}

type categoryList struct {
	Results []NamedRef `json:"results"`
}

type categoryDetail struct {
	Pokemon []struct {
		Slot    int      `json:"slot"`
		Pokemon NamedRef `json:"pokemon"`
	} `json:"pokemon"`
}

// API exposes the catalog endpoints on top of a Getter.
type API struct {
	getter  Getter
	baseURL string

	mu         sync.Mutex
	categories []string
}

// NewAPI creates an API rooted at baseURL. An empty baseURL selects
// DefaultBaseURL.
func NewAPI(getter Getter, baseURL string) *API {
	if getter == nil {
		panic("catalog getter cannot be nil")
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &API{
		getter:  getter,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// BaseURL returns the API root without a trailing slash.
func (a *API) BaseURL() string {
	return a.baseURL
}

// FirstPageURL returns the initial listing request for the given page size.
func (a *API) FirstPageURL(limit int) string {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	return a.baseURL + "/pokemon?" + q.Encode()
}

// ListPage fetches one page of the global listing.
func (a *API) ListPage(ctx context.Context, pageURL string) (*ListPage, error) {
	var page ListPage
	if err := a.getJSON(ctx, pageURL, &page); err != nil {
		return nil, fmt.Errorf("list page: %w", err)
	}
	return &page, nil
}

// FetchItem fetches one item by id or name.
func (a *API) FetchItem(ctx context.Context, ref string) (*Item, error) {
	if ref == "" {
		return nil, fmt.Errorf("fetch item: empty reference")
	}
	body, err := a.getter.Get(ctx, a.baseURL+"/pokemon/"+url.PathEscape(ref))
	if err != nil {
		return nil, fmt.Errorf("fetch item %s: %w", ref, err)
	}
	item, err := DecodeItem(body)
	if err != nil {
		return nil, fmt.Errorf("fetch item %s: %w", ref, err)
	}
	return item, nil
}

// Categories returns the selectable category names, sorted, without the
// placeholder categories. The list is fetched once per API.
func (a *API) Categories(ctx context.Context) ([]string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.categories != nil {
		return append([]string(nil), a.categories...), nil
	}

	var list categoryList
	if err := a.getJSON(ctx, a.baseURL+"/type", &list); err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}

	names := make([]string, 0, len(list.Results))
	for _, r := range list.Results {
		if hiddenCategories[r.Name] {
			continue
		}
		names = append(names, r.Name)
	}
	sort.Strings(names)
	a.categories = names

	return append([]string(nil), names...), nil
}

// CategoryMembers fetches the full, unpaginated member list of a category.
func (a *API) CategoryMembers(ctx context.Context, category string) ([]NamedRef, error) {
	if category == "" {
		return nil, fmt.Errorf("category members: empty category")
	}
	var detail categoryDetail
	if err := a.getJSON(ctx, a.baseURL+"/type/"+url.PathEscape(category), &detail); err != nil {
		return nil, fmt.Errorf("category %s members: %w", category, err)
	}
	refs := make([]NamedRef, 0, len(detail.Pokemon))
	for _, p := range detail.Pokemon {
		refs = append(refs, p.Pokemon)
	}
	return refs, nil
}

func (a *API) getJSON(ctx context.Context, rawURL string, v any) error {
	body, err := a.getter.Get(ctx, rawURL)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decode %s: %w", rawURL, err)
	}
	return nil
}
