package testutil

import (
	"sync"

	"github.com/Sternrassler/dex-client/pkg/catalog"
)

// Batch is one recorded RenderBatch call.
type Batch struct {
	IDs    []int
	Append bool
}

// RecordingRenderer records every renderer call.
type RecordingRenderer struct {
	mu       sync.Mutex
	batches  []Batch
	statuses []string
	busy     []bool
	shown    []int
}

// NewRecordingRenderer creates an empty recorder.
func NewRecordingRenderer() *RecordingRenderer {
	return &RecordingRenderer{}
}

// RenderBatch records the ids of items and keeps the shown list in sync.
func (r *RecordingRenderer) RenderBatch(items []*catalog.Item, appendBatch bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]int, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ID)
	}
	r.batches = append(r.batches, Batch{IDs: ids, Append: appendBatch})
	if appendBatch {
		r.shown = append(r.shown, ids...)
	} else {
		r.shown = ids
	}
}

// SetStatus records a status message.
func (r *RecordingRenderer) SetStatus(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, msg)
}

// SetBusy records a busy indicator change.
func (r *RecordingRenderer) SetBusy(busy bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.busy = append(r.busy, busy)
}

// Batches returns the recorded batches.
func (r *RecordingRenderer) Batches() []Batch {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Batch(nil), r.batches...)
}

// LastBatch returns the most recent batch and whether there was one.
func (r *RecordingRenderer) LastBatch() (Batch, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.batches) == 0 {
		return Batch{}, false
	}
	return r.batches[len(r.batches)-1], true
}

// Statuses returns the recorded status messages.
func (r *RecordingRenderer) Statuses() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.statuses...)
}

// LastStatus returns the most recent status message.
func (r *RecordingRenderer) LastStatus() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.statuses) == 0 {
		return ""
	}
	return r.statuses[len(r.statuses)-1]
}

// Busy returns the recorded busy transitions.
func (r *RecordingRenderer) Busy() []bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]bool(nil), r.busy...)
}

// Shown returns the ids currently on screen.
func (r *RecordingRenderer) Shown() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.shown...)
}
