package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"
)

// tempSuffix marks in-flight writes; anything carrying it at startup is stale.
const tempSuffix = ".tmp"

// tempSeq disambiguates temp names when two goroutines write the same target
// within the same nanosecond tick.
var tempSeq atomic.Uint64

// AtomicWrite writes data to path so that readers only ever observe the previous
// complete contents or the new complete contents, even if the process dies
// mid-write:
//
//  1. write to a uniquely named temp file in the same directory
//  2. fsync the temp file, then close it
//  3. rename the temp file onto path (atomic within one directory)
//  4. fsync the parent directory for crash durability of the rename
//
// Only the rename makes the new data visible, so a failure at any earlier step
// leaves path untouched.
func AtomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmpName := fmt.Sprintf("%s.%d_%d_%d%s",
		filepath.Base(path), os.Getpid(), time.Now().UnixNano(), tempSeq.Add(1), tempSuffix)
	tmpPath := filepath.Join(dir, tmpName)

	f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return fmt.Errorf("create temp file %s: %w", tmpPath, err)
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp file %s: %w", tmpPath, err)
	}

	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("sync temp file %s: %w", tmpPath, err)
	}

	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp file %s: %w", tmpPath, err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename %s to %s: %w", tmpPath, path, err)
	}

	// Rename durability requires the directory entry itself to reach disk. A
	// failure here is not reported: the data file is already complete and
	// visible, the rename just may not survive a crash on some filesystems.
	if d, err := os.Open(dir); err == nil {
		_ = d.Sync()
		_ = d.Close()
	}

	return nil
}
