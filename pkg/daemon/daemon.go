// Package daemon watches the system clipboard and records every change into
// the history store. Both the regular clipboard and the PRIMARY selection are
// sampled; change detection is a local content hash per source, so the store's
// dedup only sees genuinely new selections.
package daemon

import (
	"context"
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/gobwas/glob"

	"github.com/entrhq/clipvault/pkg/clipboard"
	"github.com/entrhq/clipvault/pkg/logging"
	"github.com/entrhq/clipvault/pkg/storage"
)

// PasteFunc samples one clipboard source.
type PasteFunc func() (string, error)

// Daemon polls clipboard sources on a fixed interval and saves changes.
type Daemon struct {
	store    *storage.Storage
	log      *logging.Logger
	interval time.Duration
	exclude  []glob.Glob

	pasteClipboard PasteFunc
	pastePrimary   PasteFunc

	lastSum map[string][sha256.Size]byte
}

// Option configures a Daemon.
type Option func(*Daemon)

// WithPasteFuncs replaces the clipboard sources, used by tests.
func WithPasteFuncs(clipboardSrc, primarySrc PasteFunc) Option {
	return func(d *Daemon) {
		d.pasteClipboard = clipboardSrc
		d.pastePrimary = primarySrc
	}
}

// WithInterval overrides the polling interval.
func WithInterval(interval time.Duration) Option {
	return func(d *Daemon) {
		d.interval = interval
	}
}

// New creates a daemon over the given store. Exclude patterns are glob
// expressions matched against full clipboard content; matching clips are
// dropped before they reach the store.
func New(store *storage.Storage, interval time.Duration, exclude []string, opts ...Option) (*Daemon, error) {
	logger, _ := logging.NewLogger("daemon")

	d := &Daemon{
		store:          store,
		log:            logger,
		interval:       interval,
		pasteClipboard: clipboard.Paste,
		pastePrimary:   clipboard.PastePrimary,
		lastSum:        make(map[string][sha256.Size]byte),
	}

	for _, pattern := range exclude {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid exclude pattern %q: %w", pattern, err)
		}
		d.exclude = append(d.exclude, g)
	}

	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Run polls until ctx is cancelled.
func (d *Daemon) Run(ctx context.Context) error {
	d.log.Infof("daemon started, watching clipboard + primary selection every %s", d.interval)

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.log.Infof("daemon stopped")
			return nil
		case <-ticker.C:
			d.poll("clipboard", d.pasteClipboard)
			d.poll("primary", d.pastePrimary)
		}
	}
}

// poll samples one source and saves its content when it changed since the last
// sample. Sampling errors are ignored: selections are frequently empty or owned
// by clients that refuse to serve them, and the next tick retries anyway.
func (d *Daemon) poll(source string, paste PasteFunc) {
	content, err := paste()
	if err != nil || content == "" {
		return
	}

	sum := sha256.Sum256([]byte(content))
	if d.lastSum[source] == sum {
		return
	}
	d.lastSum[source] = sum

	if d.excluded(content) {
		d.log.Debugf("[%s] skipping clip matching an exclude pattern", source)
		return
	}

	entry, err := d.store.SaveEntry(content)
	if err != nil {
		d.log.Errorf("[%s] save failed: %v", source, err)
		return
	}
	d.log.Infof("[%s] saved %d bytes: %.40s", source, entry.Size, entry.Preview)
}

func (d *Daemon) excluded(content string) bool {
	for _, g := range d.exclude {
		if g.Match(content) {
			return true
		}
	}
	return false
}
