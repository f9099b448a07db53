package tui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Sternrassler/dex-client/pkg/catalog"
)

// BatchMsg carries a RenderBatch call into the program.
type BatchMsg struct {
	Items  []*catalog.Item
	Append bool
}

// StatusMsg carries a status message into the program.
type StatusMsg string

// BusyMsg carries the busy indicator into the program.
type BusyMsg bool

// Sender delivers messages to a running program. *tea.Program and
// teatest's TestModel satisfy it.
type Sender interface {
	Send(msg tea.Msg)
}

// ProgramRenderer forwards renderer calls to a Bubble Tea program as
// messages. Calls made before Attach are buffered and delivered in order on
// Attach.
type ProgramRenderer struct {
	mu      sync.Mutex
	sender  Sender
	pending []tea.Msg
}

// NewProgramRenderer creates a detached renderer.
func NewProgramRenderer() *ProgramRenderer {
	return &ProgramRenderer{}
}

// Attach connects the renderer to a program and flushes buffered messages.
func (r *ProgramRenderer) Attach(s Sender) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sender = s
	for _, msg := range r.pending {
		s.Send(msg)
	}
	r.pending = nil
}

func (r *ProgramRenderer) send(msg tea.Msg) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sender == nil {
		r.pending = append(r.pending, msg)
		return
	}
	r.sender.Send(msg)
}

// RenderBatch implements loader.Renderer.
func (r *ProgramRenderer) RenderBatch(items []*catalog.Item, appendBatch bool) {
	r.send(BatchMsg{Items: items, Append: appendBatch})
}

// SetStatus implements loader.Renderer.
func (r *ProgramRenderer) SetStatus(msg string) {
	r.send(StatusMsg(msg))
}

// SetBusy implements loader.Renderer.
func (r *ProgramRenderer) SetBusy(busy bool) {
	r.send(BusyMsg(busy))
}
