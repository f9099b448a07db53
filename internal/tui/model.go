// Package tui is the interactive terminal front end: it renders loaded items
// as a scrolling list and turns scrolling, search input and category
// selection into load controller calls.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Sternrassler/dex-client/pkg/catalog"
)

// Proximity is how many rows from the end of the list a scroll position
// must come before the next page is requested.
const Proximity = 6

// cardHeight is the number of rows the detail card takes, border included.
const cardHeight = 6

// Loader is the load controller surface the model drives.
// *loader.Controller satisfies it.
type Loader interface {
	Start(ctx context.Context) ([]string, error)
	RequestLoad(ctx context.Context) bool
	SetSearch(ctx context.Context, text string) bool
	SetSearchDebounced(ctx context.Context, text string)
	SetCategory(ctx context.Context, name string) bool
	Reset(ctx context.Context)
}

type categoriesMsg []string

type startFailedMsg struct {
	err error
}

// loadDoneMsg signals that a controller call returned.
type loadDoneMsg struct{}

// Model is the Bubble Tea model of the browser.
type Model struct {
	ctx    context.Context
	loader Loader

	items  []*catalog.Item
	status string
	busy   bool
	grew   bool
	err    error

	categories []string
	category   int // index into categories, -1 for all

	search     textinput.Model
	searching  bool
	spinner    spinner.Model
	help       help.Model
	browseKeys browseKeys
	searchKeys searchKeys

	cursor int
	offset int
	width  int
	height int
}

// NewModel creates a model driving l. Controller calls run with ctx.
func NewModel(ctx context.Context, l Loader) Model {
	ti := textinput.New()
	ti.Placeholder = "name or number"
	ti.Prompt = "/ "
	ti.CharLimit = 40

	s := spinner.New()
	s.Spinner = spinner.Dot

	return Model{
		ctx:        ctx,
		loader:     l,
		category:   -1,
		search:     ti,
		spinner:    s,
		help:       help.New(),
		browseKeys: BrowseKeyMap(),
		searchKeys: SearchKeyMap(),
	}
}

// Init starts the spinner and the controller.
func (m Model) Init() tea.Cmd {
	l, ctx := m.loader, m.ctx
	return tea.Batch(m.spinner.Tick, func() tea.Msg {
		categories, err := l.Start(ctx)
		if err != nil {
			return startFailedMsg{err: err}
		}
		return categoriesMsg(categories)
	})
}

// Update handles incoming messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.search.Width = max(msg.Width-20, 10)
		m.help.Width = msg.Width
		m.scrollToCursor()
		return m, nil

	case BatchMsg:
		if msg.Append {
			m.items = append(m.items, msg.Items...)
		} else {
			m.items = append([]*catalog.Item(nil), msg.Items...)
			m.cursor, m.offset = 0, 0
		}
		if len(msg.Items) > 0 {
			m.grew = true
		}
		return m, nil

	case StatusMsg:
		m.status = string(msg)
		return m, nil

	case BusyMsg:
		m.busy = bool(msg)
		return m, nil

	case categoriesMsg:
		m.categories = msg
		return m.afterLoad()

	case startFailedMsg:
		m.err = msg.err
		return m, nil

	case loadDoneMsg:
		return m.afterLoad()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if m.searching {
			return m.updateSearch(msg)
		}
		return m.updateBrowse(msg)
	}

	return m, nil
}

func (m Model) updateBrowse(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	k := m.browseKeys
	l, ctx := m.loader, m.ctx

	switch {
	case key.Matches(msg, k.Quit):
		return m, tea.Quit
	case key.Matches(msg, k.Search):
		m.searching = true
		m.search.Focus()
		return m, textinput.Blink
	case key.Matches(msg, k.Down):
		return m.move(1)
	case key.Matches(msg, k.Up):
		return m.move(-1)
	case key.Matches(msg, k.PageDown):
		return m.move(m.rows())
	case key.Matches(msg, k.PageUp):
		return m.move(-m.rows())
	case key.Matches(msg, k.Top):
		return m.move(-len(m.items))
	case key.Matches(msg, k.Bottom):
		return m.move(len(m.items))
	case key.Matches(msg, k.NextType):
		return m.cycleCategory(1)
	case key.Matches(msg, k.PrevType):
		return m.cycleCategory(-1)
	case key.Matches(msg, k.Refresh):
		return m, func() tea.Msg {
			l.Reset(ctx)
			return loadDoneMsg{}
		}
	case key.Matches(msg, k.More):
		return m, m.requestLoad()
	}
	return m, nil
}

func (m Model) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	k := m.searchKeys
	l, ctx := m.loader, m.ctx

	switch {
	case key.Matches(msg, k.Quit):
		return m, tea.Quit
	case key.Matches(msg, k.Apply):
		m.searching = false
		m.search.Blur()
		text := m.search.Value()
		return m, func() tea.Msg {
			l.SetSearch(ctx, text)
			return loadDoneMsg{}
		}
	case key.Matches(msg, k.Cancel):
		m.searching = false
		m.search.Blur()
		return m, nil
	}

	before := m.search.Value()
	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	if after := m.search.Value(); after != before {
		l.SetSearchDebounced(ctx, after)
	}
	return m, cmd
}

// move shifts the cursor and requests the next page when the visible window
// comes near the end of the list.
func (m Model) move(delta int) (tea.Model, tea.Cmd) {
	if len(m.items) == 0 {
		return m, nil
	}
	m.cursor = min(max(m.cursor+delta, 0), len(m.items)-1)
	m.scrollToCursor()

	if !m.busy && m.nearEnd() {
		return m, m.requestLoad()
	}
	return m, nil
}

// afterLoad keeps loading while the last page added rows and the list
// still does not reach past the visible window.
func (m Model) afterLoad() (tea.Model, tea.Cmd) {
	if m.grew && m.nearEnd() {
		m.grew = false
		return m, m.requestLoad()
	}
	return m, nil
}

func (m Model) cycleCategory(delta int) (tea.Model, tea.Cmd) {
	n := len(m.categories) + 1
	m.category = (m.category+1+delta%n+n)%n - 1

	name := m.categoryName()
	l, ctx := m.loader, m.ctx
	return m, func() tea.Msg {
		l.SetCategory(ctx, name)
		return loadDoneMsg{}
	}
}

func (m Model) requestLoad() tea.Cmd {
	l, ctx := m.loader, m.ctx
	return func() tea.Msg {
		l.RequestLoad(ctx)
		return loadDoneMsg{}
	}
}

func (m Model) categoryName() string {
	if m.category < 0 || m.category >= len(m.categories) {
		return ""
	}
	return m.categories[m.category]
}

// nearEnd reports whether the bottom of the visible window is within
// Proximity rows of the end of the list.
func (m Model) nearEnd() bool {
	return len(m.items)-(m.offset+m.rows()) <= Proximity
}

// rows is the height of the list area.
func (m Model) rows() int {
	if m.height <= 0 {
		return 10
	}
	return max(m.height-cardHeight-4, 1)
}

func (m *Model) scrollToCursor() {
	rows := m.rows()
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	if m.cursor >= m.offset+rows {
		m.offset = m.cursor - rows + 1
	}
	m.offset = max(m.offset, 0)
}

// View renders the header, list, detail card and status line.
func (m Model) View() string {
	var b strings.Builder

	category := m.categoryName()
	if category == "" {
		category = "all"
	}
	b.WriteString(titleStyle.Render("dex"))
	b.WriteString(labelStyle.Render("  type: "))
	b.WriteString(category)
	b.WriteString("  ")
	if m.searching || m.search.Value() != "" {
		b.WriteString(m.search.View())
	} else {
		b.WriteString(labelStyle.Render("/ search"))
	}
	b.WriteString("\n\n")

	end := min(m.offset+m.rows(), len(m.items))
	for i := m.offset; i < end; i++ {
		b.WriteString(row(m.items[i], i == m.cursor))
		b.WriteString("\n")
	}
	for i := end - m.offset; i < m.rows(); i++ {
		b.WriteString("\n")
	}

	if m.cursor < len(m.items) {
		b.WriteString(card(m.items[m.cursor], m.width))
		b.WriteString("\n")
	}

	status := m.status
	if m.busy {
		status = m.spinner.View() + " " + status
	}
	if m.err != nil {
		status = errorStyle.Render(fmt.Sprintf("%s (%v)", m.status, m.err))
	}
	b.WriteString(status)
	b.WriteString("\n")
	if m.searching {
		b.WriteString(m.help.View(m.searchKeys))
	} else {
		b.WriteString(m.help.View(m.browseKeys))
	}

	if m.width > 0 {
		return lipgloss.NewStyle().MaxWidth(m.width).Render(b.String())
	}
	return b.String()
}
