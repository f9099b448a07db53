package catalog

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrMalformedIdentifier is returned when a resource URL does not end in a
// numeric identifier. It fails the batch being built, never the session.
var ErrMalformedIdentifier = errors.New("malformed identifier")

// ParseID extracts the numeric identifier from the last non-empty path
// segment of a resource URL, e.g. ".../pokemon/25/" -> 25.
func ParseID(rawURL string) (int, error) {
	segments := strings.Split(rawURL, "/")
	for i := len(segments) - 1; i >= 0; i-- {
		seg := segments[i]
		if seg == "" {
			continue
		}
		id, err := strconv.Atoi(seg)
		if err != nil || id <= 0 {
			return 0, fmt.Errorf("%w: %q", ErrMalformedIdentifier, rawURL)
		}
		return id, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrMalformedIdentifier, rawURL)
}

// ParseIDs parses every ref's URL in order. The first malformed URL fails the
// whole list.
func ParseIDs(refs []NamedRef) ([]int, error) {
	ids := make([]int, 0, len(refs))
	for _, ref := range refs {
		id, err := ParseID(ref.URL)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
