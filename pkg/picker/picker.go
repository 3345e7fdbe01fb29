// Package picker is the interactive history browser: fuzzy search over entry
// previews with a lazy full-content fallback, a syntax-highlighted preview
// pane, pinning, and delete with a single level of undo. Selecting an entry
// copies it back onto the clipboard.
package picker

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sahilm/fuzzy"

	"github.com/entrhq/clipvault/pkg/clipboard"
	"github.com/entrhq/clipvault/pkg/format"
	"github.com/entrhq/clipvault/pkg/storage"
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("229")).Background(lipgloss.Color("57"))
	pinStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	metaStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
	contentStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	statusStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	helpStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	borderStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240"))
)

// loadFunc fetches full entry content, injectable for tests.
type loadFunc func(id string) (string, error)

// match is one filtered row; FromContent marks entries found only by searching
// their full content rather than the preview.
type match struct {
	Entry       storage.Entry
	FromContent bool
}

type deletedEntry struct {
	entry   storage.Entry
	content string
}

// Model is the bubbletea model for the history picker.
type Model struct {
	store *storage.Storage
	load  loadFunc

	entries  []storage.Entry
	filtered []match
	cursor   int

	search    textinput.Model
	searching bool

	preview        viewport.Model
	previewFocused bool
	previewID      string

	pinnedFirst bool
	lastDeleted *deletedEntry

	status string
	choice *storage.Entry

	width  int
	height int
	ready  bool
}

// NewModel builds a picker over the store's current history.
func NewModel(store *storage.Storage) (Model, error) {
	idx, err := store.LoadIndex()
	if err != nil {
		return Model{}, fmt.Errorf("load history: %w", err)
	}

	search := textinput.New()
	search.Placeholder = "search"
	search.Prompt = "/"

	m := Model{
		store:   store,
		load:    store.LoadContent,
		entries: idx.Entries,
		search:  search,
		preview: viewport.New(0, 0),
	}
	m.refilter()
	return m, nil
}

func (m Model) Init() tea.Cmd {
	return nil
}

// Choice returns the entry selected with enter, or nil when the picker was
// dismissed.
func (m Model) Choice() *storage.Entry {
	return m.choice
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.preview.Width = msg.Width - 4
		m.preview.Height = m.previewHeight()
		m.ready = true
		m.syncPreview()
		return m, nil

	case tea.KeyMsg:
		if m.searching {
			return m.updateSearch(msg)
		}
		if m.previewFocused {
			return m.updatePreview(msg)
		}
		return m.updateList(msg)
	}
	return m, nil
}

func (m Model) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.searching = false
		m.search.SetValue("")
		m.search.Blur()
		m.refilter()
		return m, nil
	case "enter":
		m.searching = false
		m.search.Blur()
		return m, nil
	case "up", "ctrl+p":
		m.moveCursor(-1)
		return m, nil
	case "down", "ctrl+n":
		m.moveCursor(1)
		return m, nil
	case "ctrl+c":
		return m, tea.Quit
	}

	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	m.refilter()
	return m, cmd
}

func (m Model) updatePreview(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "tab", "esc", "q":
		m.previewFocused = false
		return m, nil
	case "ctrl+c":
		return m, tea.Quit
	}

	var cmd tea.Cmd
	m.preview, cmd = m.preview.Update(msg)
	return m, cmd
}

func (m Model) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "esc", "ctrl+c":
		return m, tea.Quit

	case "enter":
		if e := m.selected(); e != nil {
			entry := *e
			m.choice = &entry
			return m, tea.Quit
		}
		return m, nil

	case "j", "down":
		m.moveCursor(1)
	case "k", "up":
		m.moveCursor(-1)
	case "ctrl+d", "pgdown":
		m.moveCursor(10)
	case "ctrl+u", "pgup":
		m.moveCursor(-10)
	case "g", "home":
		m.cursor = 0
		m.syncPreview()
	case "G", "end":
		m.cursor = len(m.filtered) - 1
		m.clampCursor()
		m.syncPreview()

	case "/":
		m.searching = true
		m.search.Focus()
		return m, textinput.Blink

	case "tab":
		if m.selected() != nil {
			m.previewFocused = true
		}

	case "p":
		m.togglePin()
	case "d":
		m.deleteSelected()
	case "u":
		m.undoDelete()
	case "s":
		m.pinnedFirst = !m.pinnedFirst
		m.refilter()
	}
	return m, nil
}

func (m *Model) togglePin() {
	e := m.selected()
	if e == nil {
		return
	}
	pinned, err := m.store.TogglePin(e.ID)
	if err != nil {
		m.status = err.Error()
		return
	}
	if pinned {
		m.status = "pinned"
	} else {
		m.status = "unpinned"
	}
	m.reload()
}

func (m *Model) deleteSelected() {
	e := m.selected()
	if e == nil {
		return
	}
	content, err := m.load(e.ID)
	if err != nil {
		m.status = fmt.Sprintf("delete failed: %v", err)
		return
	}
	if err := m.store.DeleteEntry(e.ID); err != nil {
		m.status = fmt.Sprintf("delete failed: %v", err)
		return
	}
	m.lastDeleted = &deletedEntry{entry: *e, content: content}
	m.status = "deleted (u to undo)"
	m.reload()
}

func (m *Model) undoDelete() {
	if m.lastDeleted == nil {
		m.status = "nothing to undo"
		return
	}
	restored, err := m.store.SaveEntry(m.lastDeleted.content)
	if err != nil {
		m.status = fmt.Sprintf("undo failed: %v", err)
		return
	}
	if m.lastDeleted.entry.Pinned {
		if err := m.store.SetPinned(restored.ID, true); err != nil {
			m.status = fmt.Sprintf("restored unpinned: %v", err)
			m.lastDeleted = nil
			m.reload()
			return
		}
	}
	m.lastDeleted = nil
	m.status = "restored"
	m.reload()
}

// reload re-reads the index after a mutation, keeping the cursor in place.
func (m *Model) reload() {
	idx, err := m.store.LoadIndex()
	if err != nil {
		m.status = fmt.Sprintf("reload failed: %v", err)
		return
	}
	m.entries = idx.Entries
	m.refilter()
}

func (m *Model) refilter() {
	entries := m.entries
	if m.pinnedFirst {
		entries = append([]storage.Entry(nil), m.entries...)
		sort.SliceStable(entries, func(i, j int) bool {
			return entries[i].Pinned && !entries[j].Pinned
		})
	}
	m.filtered = filterEntries(entries, m.search.Value(), m.load)
	m.clampCursor()
	m.syncPreview()
}

func (m *Model) moveCursor(delta int) {
	m.cursor += delta
	m.clampCursor()
	m.syncPreview()
}

func (m *Model) clampCursor() {
	if m.cursor >= len(m.filtered) {
		m.cursor = len(m.filtered) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m *Model) selected() *storage.Entry {
	if len(m.filtered) == 0 {
		return nil
	}
	return &m.filtered[m.cursor].Entry
}

// syncPreview lazily loads the selected entry's content into the preview pane.
func (m *Model) syncPreview() {
	e := m.selected()
	if e == nil {
		m.previewID = ""
		m.preview.SetContent("")
		return
	}
	if e.ID == m.previewID {
		return
	}
	m.previewID = e.ID

	content, err := m.load(e.ID)
	if err != nil {
		m.preview.SetContent(fmt.Sprintf("failed to load content: %v", err))
		return
	}
	m.preview.SetContent(highlight(content))
	m.preview.GotoTop()
}

func (m Model) previewHeight() int {
	h := m.height/3 - 2
	if h < 3 {
		h = 3
	}
	return h
}

func (m Model) listHeight() int {
	h := m.height - m.previewHeight() - 6
	if h < 1 {
		h = 1
	}
	return h
}

func (m Model) View() string {
	if !m.ready {
		return "loading..."
	}

	var b strings.Builder

	title := titleStyle.Render("clipvault")
	counts := metaStyle.Render(fmt.Sprintf(" %d entries", len(m.filtered)))
	b.WriteString(title + counts + "\n")

	if m.searching || m.search.Value() != "" {
		b.WriteString(m.search.View() + "\n")
	}

	b.WriteString(m.renderList())
	b.WriteString(m.renderPreview())
	b.WriteString(m.renderFooter())
	return b.String()
}

func (m Model) renderList() string {
	var b strings.Builder

	height := m.listHeight()
	start := 0
	if m.cursor >= height {
		start = m.cursor - height + 1
	}
	end := start + height
	if end > len(m.filtered) {
		end = len(m.filtered)
	}

	for i := start; i < end; i++ {
		b.WriteString(m.renderRow(i) + "\n")
	}
	if len(m.filtered) == 0 {
		b.WriteString(metaStyle.Render("  history is empty") + "\n")
	}
	return b.String()
}

func (m Model) renderRow(i int) string {
	f := m.filtered[i]
	e := f.Entry

	pin := "  "
	if e.Pinned {
		pin = pinStyle.Render("★ ")
	}

	meta := metaStyle.Render(fmt.Sprintf("%8s %7s ",
		format.RelativeTime(e.Timestamp), "["+format.Size(e.Size)+"]"))

	preview := strings.ReplaceAll(e.Preview, "\n", " ")
	if len(preview) > 60 {
		preview = preview[:60]
	}
	if f.FromContent {
		preview += contentStyle.Render(" [content]")
	}

	row := pin + meta + preview
	if i == m.cursor {
		return selectedStyle.Render("> " + row)
	}
	return "  " + row
}

func (m Model) renderPreview() string {
	pane := borderStyle.Width(m.width - 2).Render(m.preview.View())
	if m.previewFocused {
		pane = borderStyle.BorderForeground(lipgloss.Color("205")).Width(m.width - 2).Render(m.preview.View())
	}
	return pane + "\n"
}

func (m Model) renderFooter() string {
	if m.status != "" {
		return statusStyle.Render(m.status)
	}
	return helpStyle.Render("enter copy · / search · p pin · d delete · u undo · s pinned-first · tab preview · q quit")
}

// previewSource adapts entries to the fuzzy matcher.
type previewSource []storage.Entry

func (s previewSource) String(i int) string { return s[i].Preview }
func (s previewSource) Len() int            { return len(s) }

// filterEntries matches query against previews with fuzzy matching, then falls
// back to a case-insensitive substring search over the full content of entries
// whose preview did not match. Content is only loaded once a query misses the
// preview, so browsing stays cheap.
func filterEntries(entries []storage.Entry, query string, load loadFunc) []match {
	if query == "" {
		out := make([]match, len(entries))
		for i, e := range entries {
			out[i] = match{Entry: e}
		}
		return out
	}

	matches := fuzzy.FindFrom(query, previewSource(entries))
	hit := make(map[int]bool, len(matches))
	for _, fm := range matches {
		hit[fm.Index] = true
	}

	var out []match
	for i, e := range entries {
		if hit[i] {
			out = append(out, match{Entry: e})
			continue
		}
		// The preview is only the first 100 runes; the match may be deeper.
		content, err := load(e.ID)
		if err != nil {
			continue
		}
		if strings.Contains(strings.ToLower(content), strings.ToLower(query)) {
			out = append(out, match{Entry: e, FromContent: true})
		}
	}
	return out
}

// Run shows the picker and copies the chosen entry back onto the clipboard,
// bumping it to the front of the history.
func Run(store *storage.Storage) error {
	m, err := NewModel(store)
	if err != nil {
		return err
	}

	p := tea.NewProgram(m, tea.WithAltScreen())
	final, err := p.Run()
	if err != nil {
		return fmt.Errorf("run picker: %w", err)
	}

	fm, ok := final.(Model)
	if !ok || fm.Choice() == nil {
		return nil
	}
	chosen := fm.Choice()

	content, err := store.LoadContent(chosen.ID)
	if err != nil {
		return fmt.Errorf("load chosen entry: %w", err)
	}
	if err := clipboard.Copy(content); err != nil {
		return err
	}
	if _, err := store.SaveEntry(content); err != nil {
		return fmt.Errorf("refresh chosen entry: %w", err)
	}

	fmt.Printf("Copied %s (%s)\n", format.Size(chosen.Size), format.RelativeTime(chosen.Timestamp))
	return nil
}
