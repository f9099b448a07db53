// Package catalog models the remote catalog API: the Item record, the listing
// payloads, and the typed endpoints the pagination layer pages through.
package catalog

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ArtworkBaseURL is where the official artwork for an item id is published.
const ArtworkBaseURL = "https://raw.githubusercontent.com/PokeAPI/sprites/master/sprites/pokemon/other/official-artwork"

// Item is one catalog entry. It is decoded once and shared by pointer; callers
// must treat it as read-only.
type Item struct {
	ID        int
	Name      string
	Types     []string
	Stats     map[string]int
	StatOrder []string
	Abilities []Ability
}

// Ability is a named ability of an item.
type Ability struct {
	Name   string
	Hidden bool
}

// Number returns the display number, zero-padded to four digits ("#0025").
func (i *Item) Number() string {
	return fmt.Sprintf("#%04d", i.ID)
}

// ArtworkURL returns the official artwork image URL for the item.
func (i *Item) ArtworkURL() string {
	return fmt.Sprintf("%s/%d.png", ArtworkBaseURL, i.ID)
}

// Stat returns a base stat by name and whether it is present.
func (i *Item) Stat(name string) (int, bool) {
	v, ok := i.Stats[name]
	return v, ok
}

// HasType reports whether the item carries the given type (case-insensitive).
func (i *Item) HasType(name string) bool {
	for _, t := range i.Types {
		if strings.EqualFold(t, name) {
			return true
		}
	}
	return false
}

// rawItem mirrors the detail payload of GET /pokemon/{id}.
type rawItem struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Types []struct {
		Slot int      `json:"slot"`
		Type NamedRef `json:"type"`
	} `json:"types"`
	Stats []struct {
		BaseStat int      `json:"base_stat"`
		Stat     NamedRef `json:"stat"`
	} `json:"stats"`
	Abilities []struct {
		Ability  NamedRef `json:"ability"`
		IsHidden bool     `json:"is_hidden"`
	} `json:"abilities"`
}

// DecodeItem decodes a detail payload into an Item.
func DecodeItem(data []byte) (*Item, error) {
	var raw rawItem
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode item: %w", err)
	}
	return raw.toItem()
}

// UnmarshalJSON lets an Item be decoded straight from the API payload.
func (i *Item) UnmarshalJSON(data []byte) error {
	item, err := DecodeItem(data)
	if err != nil {
		return err
	}
	*i = *item
	return nil
}

func (r rawItem) toItem() (*Item, error) {
	if r.ID <= 0 {
		return nil, fmt.Errorf("decode item: invalid id %d", r.ID)
	}
	if r.Name == "" {
		return nil, fmt.Errorf("decode item %d: missing name", r.ID)
	}

	item := &Item{
		ID:        r.ID,
		Name:      r.Name,
		Types:     make([]string, 0, len(r.Types)),
		Stats:     make(map[string]int, len(r.Stats)),
		StatOrder: make([]string, 0, len(r.Stats)),
		Abilities: make([]Ability, 0, len(r.Abilities)),
	}
	for _, t := range r.Types {
		item.Types = append(item.Types, t.Type.Name)
	}
	for _, s := range r.Stats {
		if _, dup := item.Stats[s.Stat.Name]; !dup {
			item.StatOrder = append(item.StatOrder, s.Stat.Name)
		}
		item.Stats[s.Stat.Name] = s.BaseStat
	}
	for _, a := range r.Abilities {
		item.Abilities = append(item.Abilities, Ability{Name: a.Ability.Name, Hidden: a.IsHidden})
	}
	return item, nil
}
