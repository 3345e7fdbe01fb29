package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// recoveryCandidate tags an entry with its origin so ties during the hash merge
// prefer entries the index already knew about over freshly scanned duplicates.
type recoveryCandidate struct {
	entry     Entry
	fromIndex bool
}

// AttemptRecovery rebuilds a trustworthy index from the content files on disk.
// Entries that still parse from the existing index are kept (pin state only
// survives through the index); content files the index does not reference are
// resynthesized from their bytes. Candidates sharing a hash are merged, keeping
// the pinned one if either is pinned, otherwise the newer one. The result is
// sorted newest first and persisted with the configured retention bound.
//
// Recovery does not evict: recovered history may exceed the bound until the
// next save. Losing data here would defeat the point.
func (s *Storage) AttemptRecovery() (int, error) {
	s.log.Infof("starting storage recovery in %s", s.baseDir)

	var candidates []recoveryCandidate
	known := make(map[string]bool)

	idx, err := s.readIndexFile()
	switch {
	case err == nil:
		s.log.Infof("loaded %d entries from existing index", len(idx.Entries))
		for _, e := range idx.Entries {
			candidates = append(candidates, recoveryCandidate{entry: e, fromIndex: true})
			known[e.ID] = true
		}
	case os.IsNotExist(err):
		s.log.Infof("no index file, rebuilding from content files")
	default:
		s.log.Warnf("index unreadable (%v), rebuilding from content files", err)
	}

	dirEntries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return 0, fmt.Errorf("scan storage dir: %w", err)
	}

	orphans := 0
	for _, de := range dirEntries {
		name := de.Name()
		if de.IsDir() || !strings.HasSuffix(name, contentSuffix) {
			continue
		}
		id := strings.TrimSuffix(name, contentSuffix)
		if known[id] {
			continue
		}

		data, err := os.ReadFile(filepath.Join(s.baseDir, name))
		if err != nil {
			s.log.Warnf("recovery: cannot read %s: %v", name, err)
			continue
		}

		// Ids are millisecond timestamps under normal operation; anything
		// else sorts to the end with timestamp 0.
		ts, _ := strconv.ParseInt(id, 10, 64)

		candidates = append(candidates, recoveryCandidate{entry: Entry{
			ID:        id,
			Timestamp: ts,
			Size:      len(data),
			Preview:   makePreview(string(data)),
			Hash:      hashContent(data),
		}})
		orphans++
	}
	s.log.Infof("found %d orphaned content files", orphans)

	// Newest first, pinned ahead of unpinned on equal timestamps. The stable
	// sort keeps index-sourced candidates ahead of scanned ones on full ties,
	// so the first occurrence of each hash below is the one to keep.
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i].entry, candidates[j].entry
		if a.Timestamp != b.Timestamp {
			return a.Timestamp > b.Timestamp
		}
		return a.Pinned && !b.Pinned
	})

	byHash := make(map[string]int)
	merged := make([]Entry, 0, len(candidates))
	for _, c := range candidates {
		if pos, ok := byHash[c.entry.Hash]; ok {
			if c.entry.Pinned && !merged[pos].Pinned {
				merged[pos] = c.entry
			}
			continue
		}
		byHash[c.entry.Hash] = len(merged)
		merged = append(merged, c.entry)
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Timestamp > merged[j].Timestamp
	})

	if err := s.SaveIndex(&Index{MaxEntries: s.maxEntries, Entries: merged}); err != nil {
		return 0, err
	}

	s.log.Infof("recovery complete: %d entries", len(merged))
	return len(merged), nil
}
