package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeContentFile(t *testing.T, dir, id, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, id+contentSuffix), []byte(content), 0644))
}

func TestRecoveryFromOrphanedFiles(t *testing.T) {
	dir := t.TempDir()
	writeContentFile(t, dir, "1000", "orphan content 1")
	writeContentFile(t, dir, "2000", "orphan content 2")

	empty, err := json.Marshal(&Index{MaxEntries: DefaultMaxEntries, Entries: []Entry{}})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, indexFile), empty, 0644))

	s, err := New(dir, DefaultMaxEntries)
	require.NoError(t, err)

	recovered, err := s.AttemptRecovery()
	require.NoError(t, err)
	assert.Equal(t, 2, recovered)

	idx, err := s.LoadIndex()
	require.NoError(t, err)
	require.Len(t, idx.Entries, 2)
	assert.Equal(t, int64(2000), idx.Entries[0].Timestamp)
	assert.Equal(t, int64(1000), idx.Entries[1].Timestamp)
	assert.Equal(t, "orphan content 2", idx.Entries[0].Preview)
}

func TestRecoveryWithCorruptedIndex(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir, DefaultMaxEntries)
	require.NoError(t, err)

	entry, err := s.SaveEntry("saved content")
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, indexFile), []byte("not valid json {{{"), 0644))

	recovered, err := s.AttemptRecovery()
	require.NoError(t, err)
	assert.Equal(t, 1, recovered)

	idx, err := s.readIndexFile()
	require.NoError(t, err, "recovered index must parse")
	require.Len(t, idx.Entries, 1)
	assert.Equal(t, entry.ID, idx.Entries[0].ID)
	assert.Equal(t, entry.Hash, idx.Entries[0].Hash)
}

func TestRecoveryWithMissingIndex(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 3; i++ {
		writeContentFile(t, dir, fmt.Sprintf("%d", 1000+i), fmt.Sprintf("content %d", i))
	}

	s, err := New(dir, DefaultMaxEntries)
	require.NoError(t, err)

	recovered, err := s.AttemptRecovery()
	require.NoError(t, err)
	assert.Equal(t, 3, recovered)

	idx, err := s.LoadIndex()
	require.NoError(t, err)
	assert.Len(t, idx.Entries, 3)
}

func TestRecoveryDeduplicatesByHashKeepingNewer(t *testing.T) {
	dir := t.TempDir()
	writeContentFile(t, dir, "1000", "duplicate content")
	writeContentFile(t, dir, "2000", "duplicate content")

	s, err := New(dir, DefaultMaxEntries)
	require.NoError(t, err)

	recovered, err := s.AttemptRecovery()
	require.NoError(t, err)
	assert.Equal(t, 1, recovered)

	idx, err := s.LoadIndex()
	require.NoError(t, err)
	require.Len(t, idx.Entries, 1)
	assert.Equal(t, int64(2000), idx.Entries[0].Timestamp)
}

func TestRecoveryPrefersPinnedOnHashConflict(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir, DefaultMaxEntries)
	require.NoError(t, err)

	entry, err := s.SaveEntry("shared content")
	require.NoError(t, err)
	_, err = s.TogglePin(entry.ID)
	require.NoError(t, err)

	// A newer orphan with the same bytes: the pinned index entry must win the
	// merge even though the orphan has a larger timestamp.
	writeContentFile(t, dir, fmt.Sprintf("%d", entry.Timestamp+5000), "shared content")

	recovered, err := s.AttemptRecovery()
	require.NoError(t, err)
	assert.Equal(t, 1, recovered)

	idx, err := s.LoadIndex()
	require.NoError(t, err)
	require.Len(t, idx.Entries, 1)
	assert.Equal(t, entry.ID, idx.Entries[0].ID)
	assert.True(t, idx.Entries[0].Pinned)
}

func TestRecoveryHandlesUnparsableIDs(t *testing.T) {
	dir := t.TempDir()
	writeContentFile(t, dir, "not-a-timestamp", "mystery clip")

	s, err := New(dir, DefaultMaxEntries)
	require.NoError(t, err)

	recovered, err := s.AttemptRecovery()
	require.NoError(t, err)
	assert.Equal(t, 1, recovered)

	idx, err := s.LoadIndex()
	require.NoError(t, err)
	require.Len(t, idx.Entries, 1)
	assert.Equal(t, "not-a-timestamp", idx.Entries[0].ID)
	assert.Zero(t, idx.Entries[0].Timestamp)
	assert.False(t, idx.Entries[0].Pinned)
}

func TestRecoveryDoesNotEvict(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 5; i++ {
		writeContentFile(t, dir, fmt.Sprintf("%d", 1000+i), fmt.Sprintf("content %d", i))
	}

	s, err := New(dir, 2)
	require.NoError(t, err)

	recovered, err := s.AttemptRecovery()
	require.NoError(t, err)
	assert.Equal(t, 5, recovered)

	// Recovery favors keeping data; the bound applies again on the next save.
	idx, err := s.LoadIndex()
	require.NoError(t, err)
	assert.Len(t, idx.Entries, 5)
	assert.Equal(t, 2, idx.MaxEntries)

	_, err = s.SaveEntry("fresh content")
	require.NoError(t, err)

	idx, err = s.LoadIndex()
	require.NoError(t, err)
	assert.Equal(t, 2, countUnpinned(idx.Entries))
}

func TestRecoveryRecomputesMetadataFromBytes(t *testing.T) {
	dir := t.TempDir()
	content := "line1\nline2 with some detail"
	writeContentFile(t, dir, "4200", content)

	s, err := New(dir, DefaultMaxEntries)
	require.NoError(t, err)

	_, err = s.AttemptRecovery()
	require.NoError(t, err)

	idx, err := s.LoadIndex()
	require.NoError(t, err)
	require.Len(t, idx.Entries, 1)

	e := idx.Entries[0]
	assert.Equal(t, int64(4200), e.Timestamp)
	assert.Equal(t, len(content), e.Size)
	assert.Equal(t, hashContent([]byte(content)), e.Hash)
	assert.Equal(t, makePreview(content), e.Preview)

	loaded, err := s.LoadContent(e.ID)
	require.NoError(t, err)
	assert.Equal(t, content, loaded)
}
