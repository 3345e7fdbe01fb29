package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"unicode"
)

const (
	// DefaultMaxEntries is the retention bound used when none is configured.
	DefaultMaxEntries = 100

	// AbsoluteMaxEntries is the hard ceiling for the configured retention bound.
	AbsoluteMaxEntries = 10000

	// MaxPinned caps how many entries may be pinned at once.
	MaxPinned = 25

	// MaxPreviewLen is the preview length in Unicode code points.
	MaxPreviewLen = 100
)

// Entry is the metadata record for one stored clip. The full payload lives in a
// separate content file addressed by ID.
type Entry struct {
	ID        string `json:"id"`
	Timestamp int64  `json:"timestamp"`
	Size      int    `json:"size"`
	Preview   string `json:"preview"`
	Hash      string `json:"hash"`
	Pinned    bool   `json:"pinned,omitempty"`
}

// Index is the ordered ledger of entries, most recently touched first, plus the
// configured retention bound for unpinned entries.
type Index struct {
	MaxEntries int     `json:"max_entries"`
	Entries    []Entry `json:"entries"`
}

// hashContent fingerprints raw payload bytes for dedup and recovery merging.
func hashContent(data []byte) string {
	sum := sha256.Sum256(data)
	return "sha256:" + hex.EncodeToString(sum[:])
}

// makePreview returns the first MaxPreviewLen code points of content with control
// characters replaced by spaces, so previews are safe to render on one line.
func makePreview(content string) string {
	preview := make([]rune, 0, MaxPreviewLen)
	for _, r := range content {
		if len(preview) == MaxPreviewLen {
			break
		}
		if unicode.IsControl(r) {
			r = ' '
		}
		preview = append(preview, r)
	}
	return string(preview)
}

func countUnpinned(entries []Entry) int {
	n := 0
	for _, e := range entries {
		if !e.Pinned {
			n++
		}
	}
	return n
}

func countPinned(entries []Entry) int {
	n := 0
	for _, e := range entries {
		if e.Pinned {
			n++
		}
	}
	return n
}

// lastUnpinned returns the position of the oldest unpinned entry, or -1 when
// every entry is pinned.
func lastUnpinned(entries []Entry) int {
	for i := len(entries) - 1; i >= 0; i-- {
		if !entries[i].Pinned {
			return i
		}
	}
	return -1
}
