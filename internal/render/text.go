// Package render provides the line-oriented renderer used by the list
// command and by non-terminal output.
package render

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/Sternrassler/dex-client/pkg/catalog"
)

// Text writes one line per item. It satisfies loader.Renderer.
type Text struct {
	mu       sync.Mutex
	w        io.Writer
	statuses bool
	shown    int
}

// Option configures a Text renderer.
type Option func(*Text)

// WithStatus also prints status messages, prefixed with "-- ".
func WithStatus() Option {
	return func(t *Text) { t.statuses = true }
}

// NewText creates a renderer writing to w.
func NewText(w io.Writer, opts ...Option) *Text {
	t := &Text{w: w}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// RenderBatch prints items. A replacement prints a separator first when
// something was already shown.
func (t *Text) RenderBatch(items []*catalog.Item, appendBatch bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !appendBatch {
		if t.shown > 0 {
			_, _ = fmt.Fprintln(t.w, "----")
		}
		t.shown = 0
	}
	for _, item := range items {
		_, _ = fmt.Fprintln(t.w, Line(item))
	}
	t.shown += len(items)
}

// SetStatus prints msg when status output is enabled.
func (t *Text) SetStatus(msg string) {
	if !t.statuses {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	_, _ = fmt.Fprintf(t.w, "-- %s\n", msg)
}

// SetBusy is a no-op for text output.
func (t *Text) SetBusy(bool) {}

// Shown returns the number of items in the current list.
func (t *Text) Shown() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.shown
}

// Line formats an item as a single line:
//
//	#0001 bulbasaur [grass/poison] hp 45 · attack 49 | overgrow, chlorophyll (hidden)
func Line(item *catalog.Item) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s", item.Number(), item.Name)
	if len(item.Types) > 0 {
		fmt.Fprintf(&b, " [%s]", strings.Join(item.Types, "/"))
	}
	if stats := Stats(item); stats != "" {
		b.WriteString(" ")
		b.WriteString(stats)
	}
	if abilities := Abilities(item); abilities != "" {
		b.WriteString(" | ")
		b.WriteString(abilities)
	}
	return b.String()
}

// Stats formats base stats in payload order.
func Stats(item *catalog.Item) string {
	parts := make([]string, 0, len(item.StatOrder))
	for _, name := range item.StatOrder {
		parts = append(parts, fmt.Sprintf("%s %d", name, item.Stats[name]))
	}
	return strings.Join(parts, " · ")
}

// Abilities formats abilities, marking hidden ones.
func Abilities(item *catalog.Item) string {
	parts := make([]string, 0, len(item.Abilities))
	for _, a := range item.Abilities {
		if a.Hidden {
			parts = append(parts, a.Name+" (hidden)")
			continue
		}
		parts = append(parts, a.Name)
	}
	return strings.Join(parts, ", ")
}
