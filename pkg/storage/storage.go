// Package storage implements the durable clipboard history store: a JSON index
// of entry metadata plus one content file per entry, all written through an
// atomic write-temp-then-rename protocol so crashes and concurrent writers never
// leave a partially written file behind.
//
// There is deliberately no cross-call locking around the index read-modify-write
// cycle. Two processes saving at the same time may race and one index entry can
// transiently disappear; the content file stays on disk and AttemptRecovery
// reattaches it. The on-disk structures themselves can never be corrupted by the
// race because every file write is atomic.
package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/entrhq/clipvault/pkg/logging"
)

const (
	indexFile     = "index.json"
	contentSuffix = ".txt"
)

// Storage owns a history directory: the index file, the per-entry content files
// and the retention configuration.
type Storage struct {
	baseDir    string
	maxEntries int
	log        *logging.Logger
}

// New creates or opens a history store rooted at baseDir. maxEntries is clamped
// to [1, AbsoluteMaxEntries]. Leftover temp files from interrupted writes are
// removed, and a previously stored retention bound is synced to the configured
// one, pruning immediately if the bound was reduced.
func New(baseDir string, maxEntries int) (*Storage, error) {
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("create storage dir %s: %w", baseDir, err)
	}

	if maxEntries < 1 {
		maxEntries = 1
	}
	if maxEntries > AbsoluteMaxEntries {
		maxEntries = AbsoluteMaxEntries
	}

	logger, _ := logging.NewLogger("storage")

	s := &Storage{
		baseDir:    baseDir,
		maxEntries: maxEntries,
		log:        logger,
	}

	s.cleanupTempFiles()

	if err := s.syncMaxEntries(); err != nil {
		return nil, err
	}

	return s, nil
}

// DefaultDir returns the standard history location, honoring XDG_DATA_HOME.
func DefaultDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "clipvault")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "clipvault"
	}
	return filepath.Join(home, ".local", "share", "clipvault")
}

// BaseDir returns the storage directory.
func (s *Storage) BaseDir() string { return s.baseDir }

// MaxEntries returns the configured retention bound for unpinned entries.
func (s *Storage) MaxEntries() int { return s.maxEntries }

func (s *Storage) indexPath() string {
	return filepath.Join(s.baseDir, indexFile)
}

func (s *Storage) contentPath(id string) string {
	return filepath.Join(s.baseDir, id+contentSuffix)
}

// cleanupTempFiles removes orphaned temp files left by interrupted writes. They
// were never renamed into place, so deleting them cannot lose committed data.
func (s *Storage) cleanupTempFiles() {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), tempSuffix) {
			continue
		}
		s.log.Warnf("removing orphaned temp file: %s", e.Name())
		_ = os.Remove(filepath.Join(s.baseDir, e.Name()))
	}
}

// readIndexFile parses the index file strictly. Callers that can degrade (see
// LoadIndex) or rebuild (see AttemptRecovery) handle the error themselves.
func (s *Storage) readIndexFile() (*Index, error) {
	data, err := os.ReadFile(s.indexPath())
	if err != nil {
		return nil, err
	}
	var idx Index
	if err := json.Unmarshal(data, &idx); err != nil {
		return nil, fmt.Errorf("parse index: %w", err)
	}
	return &idx, nil
}

// LoadIndex returns the current index. A missing file is a first run and yields
// an empty index. An unreadable or corrupt file is logged and also yields an
// empty index rather than an error: some history now beats none, and
// AttemptRecovery can rebuild the rest from the content files.
func (s *Storage) LoadIndex() (*Index, error) {
	idx, err := s.readIndexFile()
	switch {
	case err == nil:
		return idx, nil
	case os.IsNotExist(err):
		return &Index{MaxEntries: s.maxEntries, Entries: []Entry{}}, nil
	default:
		s.log.Warnf("index unreadable (%v), returning empty history", err)
		s.log.Warnf("run 'clipvault recover' to rebuild the index from content files")
		return &Index{MaxEntries: s.maxEntries, Entries: []Entry{}}, nil
	}
}

// SaveIndex persists the index atomically.
func (s *Storage) SaveIndex(idx *Index) error {
	if idx.Entries == nil {
		idx.Entries = []Entry{}
	}
	data, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return fmt.Errorf("encode index: %w", err)
	}
	if err := AtomicWrite(s.indexPath(), data); err != nil {
		return fmt.Errorf("save index: %w", err)
	}
	return nil
}

// SaveEntry stores content in the history. Saving bytes that already exist moves
// the existing entry to the front without touching its content file or pin state.
// Otherwise a new entry is created, its payload written atomically, and the
// oldest unpinned entries are evicted until the retention bound holds again.
func (s *Storage) SaveEntry(content string) (Entry, error) {
	hash := hashContent([]byte(content))

	idx, err := s.LoadIndex()
	if err != nil {
		return Entry{}, err
	}

	for i, e := range idx.Entries {
		if e.Hash == hash {
			existing := e
			idx.Entries = append(idx.Entries[:i], idx.Entries[i+1:]...)
			idx.Entries = append([]Entry{existing}, idx.Entries...)
			if err := s.SaveIndex(idx); err != nil {
				return Entry{}, err
			}
			return existing, nil
		}
	}

	id, ts := s.newEntryID()
	entry := Entry{
		ID:        id,
		Timestamp: ts,
		Size:      len(content),
		Preview:   makePreview(content),
		Hash:      hash,
	}

	if err := AtomicWrite(s.contentPath(id), []byte(content)); err != nil {
		return Entry{}, fmt.Errorf("write content %s: %w", id, err)
	}

	idx.Entries = append([]Entry{entry}, idx.Entries...)
	s.evictUnpinned(idx)

	if err := s.SaveIndex(idx); err != nil {
		return Entry{}, err
	}
	return entry, nil
}

// newEntryID derives an id from the current millisecond timestamp. Rapid
// successive saves can land on the same millisecond, so the value is bumped
// until no content file claims it, keeping ids unique and creation-ordered.
func (s *Storage) newEntryID() (string, int64) {
	ts := time.Now().UnixMilli()
	for {
		id := strconv.FormatInt(ts, 10)
		if _, err := os.Stat(s.contentPath(id)); os.IsNotExist(err) {
			return id, ts
		}
		ts++
	}
}

// evictUnpinned removes oldest unpinned entries until the unpinned count fits
// the retention bound. Pinned entries are never evicted; if only pinned entries
// remain the loop stops.
func (s *Storage) evictUnpinned(idx *Index) {
	for countUnpinned(idx.Entries) > s.maxEntries {
		i := lastUnpinned(idx.Entries)
		if i < 0 {
			break
		}
		old := idx.Entries[i]
		idx.Entries = append(idx.Entries[:i], idx.Entries[i+1:]...)
		if err := os.Remove(s.contentPath(old.ID)); err != nil && !os.IsNotExist(err) {
			s.log.Warnf("evict %s: removing content failed: %v", old.ID, err)
		}
	}
}

// syncMaxEntries aligns a previously stored retention bound with the configured
// one. When the index is unreadable it does nothing; recovery handles that case.
func (s *Storage) syncMaxEntries() error {
	idx, err := s.readIndexFile()
	if err != nil {
		return nil
	}

	changed := false
	if idx.MaxEntries != s.maxEntries {
		idx.MaxEntries = s.maxEntries
		changed = true
	}

	before := len(idx.Entries)
	s.evictUnpinned(idx)
	if len(idx.Entries) != before {
		changed = true
	}

	if changed {
		return s.SaveIndex(idx)
	}
	return nil
}

// LoadContent returns the full payload for id.
func (s *Storage) LoadContent(id string) (string, error) {
	data, err := os.ReadFile(s.contentPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return "", fmt.Errorf("read content %s: %w", id, err)
	}
	return string(data), nil
}

// DeleteEntry removes an entry and its content file. An absent id or content
// file is not an error.
func (s *Storage) DeleteEntry(id string) error {
	idx, err := s.LoadIndex()
	if err != nil {
		return err
	}

	kept := idx.Entries[:0]
	for _, e := range idx.Entries {
		if e.ID != id {
			kept = append(kept, e)
		}
	}
	idx.Entries = kept

	if err := s.SaveIndex(idx); err != nil {
		return err
	}

	if err := os.Remove(s.contentPath(id)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove content %s: %w", id, err)
	}
	return nil
}

// TogglePin flips an entry's pin flag and returns the new state. Pinning past
// MaxPinned fails with ErrPinLimit and changes nothing; unpinning always works.
func (s *Storage) TogglePin(id string) (bool, error) {
	idx, err := s.LoadIndex()
	if err != nil {
		return false, err
	}

	pinned := countPinned(idx.Entries)
	for i := range idx.Entries {
		if idx.Entries[i].ID != id {
			continue
		}
		if !idx.Entries[i].Pinned && pinned >= MaxPinned {
			return false, ErrPinLimit
		}
		idx.Entries[i].Pinned = !idx.Entries[i].Pinned
		if err := s.SaveIndex(idx); err != nil {
			return false, err
		}
		return idx.Entries[i].Pinned, nil
	}

	return false, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// SetPinned sets an entry's pin flag explicitly, used to restore pin state after
// an undo. The MaxPinned cap applies only when transitioning unpinned to pinned.
// An unknown id is a no-op.
func (s *Storage) SetPinned(id string, pinned bool) error {
	idx, err := s.LoadIndex()
	if err != nil {
		return err
	}

	count := countPinned(idx.Entries)
	for i := range idx.Entries {
		if idx.Entries[i].ID != id {
			continue
		}
		if pinned && !idx.Entries[i].Pinned && count >= MaxPinned {
			return ErrPinLimit
		}
		idx.Entries[i].Pinned = pinned
		return s.SaveIndex(idx)
	}

	return nil
}

// PinnedCount returns the number of pinned entries.
func (s *Storage) PinnedCount() (int, error) {
	idx, err := s.LoadIndex()
	if err != nil {
		return 0, err
	}
	return countPinned(idx.Entries), nil
}

// Clear deletes every content file and persists an empty index. The configured
// retention bound survives the clear.
func (s *Storage) Clear() error {
	idx, err := s.LoadIndex()
	if err != nil {
		return err
	}

	for _, e := range idx.Entries {
		if err := os.Remove(s.contentPath(e.ID)); err != nil && !os.IsNotExist(err) {
			s.log.Warnf("clear: removing content %s failed: %v", e.ID, err)
		}
	}

	return s.SaveIndex(&Index{MaxEntries: s.maxEntries, Entries: []Entry{}})
}
