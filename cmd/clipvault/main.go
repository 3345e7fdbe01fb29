// Package main provides the clipvault command line interface: a fast local
// clipboard history manager with a daemon that records clipboard changes, a
// terminal picker for browsing history, and a TCP listener for remote pastes.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/entrhq/clipvault/pkg/clipboard"
	"github.com/entrhq/clipvault/pkg/config"
	"github.com/entrhq/clipvault/pkg/daemon"
	"github.com/entrhq/clipvault/pkg/format"
	"github.com/entrhq/clipvault/pkg/picker"
	"github.com/entrhq/clipvault/pkg/server"
	"github.com/entrhq/clipvault/pkg/storage"
)

const version = "0.1.0"

// Options holds the global command line configuration.
type Options struct {
	StorageDir  string
	MaxEntries  int
	ConfigFile  string
	ShowVersion bool
}

func main() {
	opts, args := parseFlags()

	if opts.ShowVersion {
		fmt.Printf("clipvault v%s\n", version)
		return
	}

	if err := run(opts, args); err != nil {
		log.Fatalf("Error: %v", err)
	}
}

// parseFlags parses the global flags and returns the remaining arguments
// (subcommand plus its own flags).
func parseFlags() (*Options, []string) {
	opts := &Options{}

	flag.StringVar(&opts.StorageDir, "storage-dir", "", "Custom storage directory (default: XDG data dir)")
	flag.IntVar(&opts.MaxEntries, "max-entries", 0, "Maximum unpinned history entries (default: from config file)")
	flag.StringVar(&opts.ConfigFile, "config", "", "Path to configuration file (default: ~/.clipvault/config.yaml)")
	flag.BoolVar(&opts.ShowVersion, "version", false, "Show version and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "clipvault - Fast clipboard manager with lazy-loading history\n\n")
		fmt.Fprintf(os.Stderr, "Usage: clipvault [options] <command>\n\n")
		fmt.Fprintf(os.Stderr, "Commands:\n")
		fmt.Fprintf(os.Stderr, "  pick           Open picker UI to select from history (default)\n")
		fmt.Fprintf(os.Stderr, "  copy           Copy stdin to clipboard and history\n")
		fmt.Fprintf(os.Stderr, "  paste          Paste clipboard to stdout\n")
		fmt.Fprintf(os.Stderr, "  list [-n N]    List clipboard history\n")
		fmt.Fprintf(os.Stderr, "  pin <id>       Toggle an entry's pin\n")
		fmt.Fprintf(os.Stderr, "  delete <id>    Delete an entry\n")
		fmt.Fprintf(os.Stderr, "  clear          Clear clipboard history\n")
		fmt.Fprintf(os.Stderr, "  stats          Show storage statistics\n")
		fmt.Fprintf(os.Stderr, "  recover        Rebuild the index from content files\n")
		fmt.Fprintf(os.Stderr, "  daemon         Run the clipboard monitoring daemon\n")
		fmt.Fprintf(os.Stderr, "  serve [-port]  TCP server for remote clipboard (use with SSH reverse tunnel)\n")
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  clipvault                    # Open the picker\n")
		fmt.Fprintf(os.Stderr, "  echo hi | clipvault copy\n")
		fmt.Fprintf(os.Stderr, "  clipvault list -n 20\n")
		fmt.Fprintf(os.Stderr, "  clipvault daemon\n")
	}

	flag.Parse()
	return opts, flag.Args()
}

func run(opts *Options, args []string) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	storageDir := opts.StorageDir
	if storageDir == "" {
		storageDir = cfg.StorageDir
	}
	if storageDir == "" {
		storageDir = storage.DefaultDir()
	}

	maxEntries := opts.MaxEntries
	if maxEntries == 0 {
		maxEntries = cfg.MaxEntries
	}
	if maxEntries == 0 {
		maxEntries = storage.DefaultMaxEntries
	}

	store, err := storage.New(storageDir, maxEntries)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}

	command := "pick"
	if len(args) > 0 {
		command = args[0]
		args = args[1:]
	}

	switch command {
	case "pick":
		return picker.Run(store)
	case "copy":
		return runCopy(store)
	case "paste":
		return runPaste()
	case "list":
		return runList(store, args)
	case "pin":
		return runPin(store, args)
	case "delete":
		return runDelete(store, args)
	case "clear":
		return runClear(store)
	case "stats":
		return runStats(store)
	case "recover":
		return runRecover(store)
	case "daemon":
		return runDaemon(store, cfg)
	case "serve":
		return runServe(store, cfg, args)
	default:
		flag.Usage()
		return fmt.Errorf("unknown command %q", command)
	}
}

// loadConfig reads the config file, tolerating a missing one.
func loadConfig(opts *Options) (*config.Config, error) {
	path := opts.ConfigFile
	if path == "" {
		path = config.DefaultPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// signalContext returns a context cancelled by SIGINT/SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Fprintln(os.Stderr, "\nShutting down gracefully...")
		cancel()
	}()
	return ctx, cancel
}

func runCopy(store *storage.Storage) error {
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return fmt.Errorf("read stdin: %w", err)
	}
	content := string(data)

	if err := clipboard.Copy(content); err != nil {
		return err
	}
	if _, err := store.SaveEntry(content); err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "Copied %d bytes\n", len(content))
	return nil
}

func runPaste() error {
	content, err := clipboard.Paste()
	if err != nil {
		return err
	}
	_, err = os.Stdout.WriteString(content)
	return err
}

func runList(store *storage.Storage, args []string) error {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	count := fs.Int("n", 10, "Number of entries to show")
	if err := fs.Parse(args); err != nil {
		return err
	}

	idx, err := store.LoadIndex()
	if err != nil {
		return err
	}

	shown := 0
	for _, e := range idx.Entries {
		if shown >= *count {
			break
		}
		preview := strings.ReplaceAll(e.Preview, "\n", "↵")
		if len(preview) > 50 {
			preview = preview[:50]
		}
		pin := " "
		if e.Pinned {
			pin = "★"
		}
		fmt.Printf("%s %s %8s [%7s] %s\n",
			pin, e.ID, format.RelativeTime(e.Timestamp), format.Size(e.Size), preview)
		shown++
	}

	if len(idx.Entries) > *count {
		fmt.Printf("... and %d more\n", len(idx.Entries)-*count)
	}
	return nil
}

func runPin(store *storage.Storage, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: clipvault pin <id>")
	}
	pinned, err := store.TogglePin(args[0])
	if err != nil {
		return err
	}
	if pinned {
		fmt.Printf("Pinned %s\n", args[0])
	} else {
		fmt.Printf("Unpinned %s\n", args[0])
	}
	return nil
}

func runDelete(store *storage.Storage, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: clipvault delete <id>")
	}
	if err := store.DeleteEntry(args[0]); err != nil {
		return err
	}
	fmt.Printf("Deleted %s\n", args[0])
	return nil
}

func runClear(store *storage.Storage) error {
	if err := store.Clear(); err != nil {
		return err
	}
	fmt.Println("Clipboard history cleared")
	return nil
}

func runStats(store *storage.Storage) error {
	idx, err := store.LoadIndex()
	if err != nil {
		return err
	}

	totalSize := 0
	for _, e := range idx.Entries {
		totalSize += e.Size
	}
	pinned, err := store.PinnedCount()
	if err != nil {
		return err
	}

	fmt.Printf("Entries: %d\n", len(idx.Entries))
	fmt.Printf("Pinned: %d\n", pinned)
	fmt.Printf("Max entries: %d\n", idx.MaxEntries)
	fmt.Printf("Total size: %s\n", format.Size(totalSize))
	fmt.Printf("Storage dir: %s\n", store.BaseDir())

	if len(idx.Entries) > 0 {
		fmt.Printf("Oldest: %s\n", format.RelativeTime(idx.Entries[len(idx.Entries)-1].Timestamp))
		fmt.Printf("Newest: %s\n", format.RelativeTime(idx.Entries[0].Timestamp))
	}
	return nil
}

func runRecover(store *storage.Storage) error {
	recovered, err := store.AttemptRecovery()
	if err != nil {
		return fmt.Errorf("recovery failed: %w", err)
	}
	fmt.Printf("Recovered %d entries\n", recovered)
	return nil
}

func runDaemon(store *storage.Storage, cfg *config.Config) error {
	d, err := daemon.New(store, cfg.PollInterval(), cfg.Exclude)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	fmt.Fprintf(os.Stderr, "clipvault daemon watching clipboard (poll %s)\n", cfg.PollInterval())
	return d.Run(ctx)
}

func runServe(store *storage.Storage, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	port := fs.Int("port", cfg.ServePort, "Port to listen on")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	return server.New(store, *port).Run(ctx)
}
