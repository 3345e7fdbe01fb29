package server

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/clipvault/pkg/storage"
)

// startServer runs a server on an OS-assigned port and returns its address plus
// a stop function.
func startServer(t *testing.T, store *storage.Storage, copied chan<- string) (string, func()) {
	t.Helper()

	// Grab a free port, then hand it to the server.
	probe, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := probe.Addr().(*net.TCPAddr).Port
	require.NoError(t, probe.Close())

	srv := New(store, port, WithCopyFunc(func(content string) error {
		if copied != nil {
			copied <- content
		}
		return nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	// Wait for the listener to come up.
	addr := srv.Addr()
	require.Eventually(t, func() bool {
		conn, err := net.DialTimeout("tcp", addr, 50*time.Millisecond)
		if err != nil {
			return false
		}
		conn.Close()
		return true
	}, 2*time.Second, 10*time.Millisecond)

	return addr, func() {
		cancel()
		assert.NoError(t, <-done)
	}
}

func sendPaste(t *testing.T, addr, content string) {
	t.Helper()
	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	_, err = conn.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, conn.Close())
}

func TestServerSavesReceivedContent(t *testing.T) {
	store, err := storage.New(t.TempDir(), storage.DefaultMaxEntries)
	require.NoError(t, err)

	copied := make(chan string, 1)
	addr, stop := startServer(t, store, copied)
	defer stop()

	sendPaste(t, addr, "pasted from a remote machine")

	select {
	case got := <-copied:
		assert.Equal(t, "pasted from a remote machine", got)
	case <-time.After(2 * time.Second):
		t.Fatal("paste never reached the clipboard")
	}

	idx, err := store.LoadIndex()
	require.NoError(t, err)
	require.Len(t, idx.Entries, 1)
	assert.Equal(t, "pasted from a remote machine", idx.Entries[0].Preview)
}

func TestServerIgnoresEmptyConnections(t *testing.T) {
	store, err := storage.New(t.TempDir(), storage.DefaultMaxEntries)
	require.NoError(t, err)

	copied := make(chan string, 1)
	addr, stop := startServer(t, store, copied)
	defer stop()

	sendPaste(t, addr, "")
	sendPaste(t, addr, "real content")

	select {
	case got := <-copied:
		assert.Equal(t, "real content", got)
	case <-time.After(2 * time.Second):
		t.Fatal("paste never reached the clipboard")
	}

	idx, err := store.LoadIndex()
	require.NoError(t, err)
	assert.Len(t, idx.Entries, 1)
}

func TestServerStopsOnContextCancel(t *testing.T) {
	store, err := storage.New(t.TempDir(), storage.DefaultMaxEntries)
	require.NoError(t, err)

	addr, stop := startServer(t, store, nil)
	stop()

	_, err = net.DialTimeout("tcp", addr, 100*time.Millisecond)
	assert.Error(t, err, "listener should be closed after cancel")
}
