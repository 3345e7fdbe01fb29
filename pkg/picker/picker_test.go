package picker

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/clipvault/pkg/storage"
)

func entryFixtures() ([]storage.Entry, loadFunc) {
	entries := []storage.Entry{
		{ID: "3", Preview: "hello world function", Timestamp: 3000},
		{ID: "2", Preview: "some shopping list", Timestamp: 2000},
		{ID: "1", Preview: "short preview", Timestamp: 1000},
	}
	contents := map[string]string{
		"3": "hello world function",
		"2": "some shopping list",
		"1": "short preview but the interesting needle is buried deep in the content",
	}
	return entries, func(id string) (string, error) {
		return contents[id], nil
	}
}

func TestFilterEmptyQueryKeepsOrder(t *testing.T) {
	entries, load := entryFixtures()

	got := filterEntries(entries, "", load)
	require.Len(t, got, 3)
	assert.Equal(t, "3", got[0].Entry.ID)
	assert.Equal(t, "1", got[2].Entry.ID)
	assert.False(t, got[0].FromContent)
}

func TestFilterFuzzyMatchesPreview(t *testing.T) {
	entries, load := entryFixtures()

	got := filterEntries(entries, "hwf", load)
	require.Len(t, got, 1)
	assert.Equal(t, "3", got[0].Entry.ID)
	assert.False(t, got[0].FromContent)
}

func TestFilterFallsBackToContent(t *testing.T) {
	entries, load := entryFixtures()

	got := filterEntries(entries, "needle", load)
	require.Len(t, got, 1)
	assert.Equal(t, "1", got[0].Entry.ID)
	assert.True(t, got[0].FromContent, "match came from content, not preview")
}

func TestFilterNoMatches(t *testing.T) {
	entries, load := entryFixtures()

	got := filterEntries(entries, "zzzzqqqq", load)
	assert.Empty(t, got)
}

func newTestModel(t *testing.T) (Model, *storage.Storage) {
	t.Helper()
	store, err := storage.New(t.TempDir(), storage.DefaultMaxEntries)
	require.NoError(t, err)

	_, err = store.SaveEntry("oldest entry")
	require.NoError(t, err)
	_, err = store.SaveEntry("newest entry")
	require.NoError(t, err)

	m, err := NewModel(store)
	require.NoError(t, err)
	return m, store
}

func key(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func press(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	updated, _ := m.Update(msg)
	next, ok := updated.(Model)
	require.True(t, ok)
	return next
}

func TestCursorMovementClamps(t *testing.T) {
	m, _ := newTestModel(t)

	assert.Equal(t, 0, m.cursor)
	m = press(t, m, key("k"))
	assert.Equal(t, 0, m.cursor, "cannot move above the first row")

	m = press(t, m, key("j"))
	assert.Equal(t, 1, m.cursor)
	m = press(t, m, key("j"))
	assert.Equal(t, 1, m.cursor, "cannot move past the last row")

	m = press(t, m, key("g"))
	assert.Equal(t, 0, m.cursor)
	m = press(t, m, key("G"))
	assert.Equal(t, 1, m.cursor)
}

func TestEnterRecordsChoice(t *testing.T) {
	m, _ := newTestModel(t)

	m = press(t, m, key("j"))
	m = press(t, m, tea.KeyMsg{Type: tea.KeyEnter})

	require.NotNil(t, m.Choice())
	assert.Equal(t, "oldest entry", m.Choice().Preview)
}

func TestDeleteAndUndoRestoresEntry(t *testing.T) {
	m, store := newTestModel(t)

	m = press(t, m, key("d"))
	idx, err := store.LoadIndex()
	require.NoError(t, err)
	require.Len(t, idx.Entries, 1)
	assert.Equal(t, "oldest entry", idx.Entries[0].Preview)

	m = press(t, m, key("u"))
	idx, err = store.LoadIndex()
	require.NoError(t, err)
	require.Len(t, idx.Entries, 2)
	assert.Equal(t, "newest entry", idx.Entries[0].Preview)
}

func TestUndoRestoresPinState(t *testing.T) {
	m, store := newTestModel(t)

	m = press(t, m, key("p"))
	m = press(t, m, key("d"))
	m = press(t, m, key("u"))

	idx, err := store.LoadIndex()
	require.NoError(t, err)
	require.Len(t, idx.Entries, 2)
	assert.True(t, idx.Entries[0].Pinned, "restored entry keeps its pin")
}

func TestUndoWithNothingDeleted(t *testing.T) {
	m, _ := newTestModel(t)

	m = press(t, m, key("u"))
	assert.Equal(t, "nothing to undo", m.status)
}

func TestTogglePinUpdatesStatus(t *testing.T) {
	m, store := newTestModel(t)

	m = press(t, m, key("p"))
	assert.Equal(t, "pinned", m.status)

	idx, err := store.LoadIndex()
	require.NoError(t, err)
	assert.True(t, idx.Entries[0].Pinned)

	m = press(t, m, key("p"))
	assert.Equal(t, "unpinned", m.status)
}

func TestPinnedFirstSortToggle(t *testing.T) {
	m, _ := newTestModel(t)

	// Pin the older entry, then toggle pinned-first ordering.
	m = press(t, m, key("j"))
	m = press(t, m, key("p"))
	m = press(t, m, key("s"))

	require.Len(t, m.filtered, 2)
	assert.Equal(t, "oldest entry", m.filtered[0].Entry.Preview)
	assert.True(t, m.filtered[0].Entry.Pinned)

	m = press(t, m, key("s"))
	assert.Equal(t, "newest entry", m.filtered[0].Entry.Preview)
}
