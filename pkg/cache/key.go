package cache

import (
	"strconv"
	"strings"
)

// KeyKind distinguishes the two ways an item can be addressed.
type KeyKind int

const (
	// KindID addresses an item by numeric id.
	KindID KeyKind = iota
	// KindName addresses an item by name.
	KindName
)

// String returns the metric label of the kind.
func (k KeyKind) String() string {
	if k == KindName {
		return "name"
	}
	return "id"
}

// Key identifies a cached item by id or by name.
type Key struct {
	Kind KeyKind
	ID   int
	Name string
}

// IDKey returns the key for a numeric id.
func IDKey(id int) Key {
	return Key{Kind: KindID, ID: id}
}

// NameKey returns the key for a name. Names are matched case-insensitively.
func NameKey(name string) Key {
	return Key{Kind: KindName, Name: strings.ToLower(strings.TrimSpace(name))}
}

// ParseKey classifies a raw reference: all digits is an id, anything else a
// name.
//
// Example:
//
//	ParseKey("25")      // IDKey(25)
//	ParseKey("Pikachu") // NameKey("pikachu")
func ParseKey(ref string) Key {
	ref = strings.TrimSpace(ref)
	if id, err := strconv.Atoi(ref); err == nil && id > 0 && isDigits(ref) {
		return IDKey(id)
	}
	return NameKey(ref)
}

// String returns the API path segment for the key.
func (k Key) String() string {
	if k.Kind == KindID {
		return strconv.Itoa(k.ID)
	}
	return k.Name
}

// Valid reports whether the key can address an item.
func (k Key) Valid() bool {
	if k.Kind == KindID {
		return k.ID > 0
	}
	return k.Name != ""
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
