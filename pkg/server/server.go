// Package server accepts clipboard content over a local TCP socket. Each
// connection is one paste: the bytes up to EOF are saved into the history store
// and placed on the system clipboard. Pairs with an SSH reverse tunnel to paste
// from remote machines.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"

	"golang.org/x/net/netutil"

	"github.com/entrhq/clipvault/pkg/clipboard"
	"github.com/entrhq/clipvault/pkg/logging"
	"github.com/entrhq/clipvault/pkg/storage"
)

// DefaultPort is the default listen port.
const DefaultPort = 7779

// maxConns bounds concurrent connections; the server is strictly local and a
// handful is plenty.
const maxConns = 16

// CopyFunc places content on the system clipboard.
type CopyFunc func(string) error

// Server receives pasted content over TCP and records it.
type Server struct {
	store *storage.Storage
	log   *logging.Logger
	port  int
	copy  CopyFunc
}

// Option configures a Server.
type Option func(*Server)

// WithCopyFunc replaces the clipboard copy used for received content.
func WithCopyFunc(fn CopyFunc) Option {
	return func(s *Server) {
		s.copy = fn
	}
}

// New creates a server storing received pastes into store.
func New(store *storage.Storage, port int, opts ...Option) *Server {
	logger, _ := logging.NewLogger("server")

	s := &Server{
		store: store,
		log:   logger,
		port:  port,
		copy:  clipboard.Copy,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return fmt.Sprintf("127.0.0.1:%d", s.port)
}

// Run listens until ctx is cancelled. Per-connection failures are logged and
// the loop keeps serving.
func (s *Server) Run(ctx context.Context) error {
	inner, err := net.Listen("tcp", s.Addr())
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.Addr(), err)
	}
	ln := netutil.LimitListener(inner, maxConns)

	s.log.Infof("clipboard server listening on %s", s.Addr())
	fmt.Printf("Clipboard server listening on %s\n", s.Addr())
	fmt.Printf("SSH usage:    ssh -R %d:localhost:%d remote\n", s.port, s.port)
	fmt.Printf("Remote usage: cat file | nc localhost %d\n", s.port)

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				s.log.Infof("clipboard server stopped")
				return nil
			}
			s.log.Errorf("accept: %v", err)
			continue
		}
		s.handle(conn)
	}
}

func (s *Server) handle(conn net.Conn) {
	defer conn.Close()

	data, err := io.ReadAll(conn)
	if err != nil {
		s.log.Errorf("read from %s: %v", conn.RemoteAddr(), err)
		return
	}
	if len(data) == 0 {
		return
	}

	content := string(data)
	entry, err := s.store.SaveEntry(content)
	if err != nil {
		s.log.Errorf("save received paste: %v", err)
		return
	}

	if err := s.copy(content); err != nil {
		s.log.Warnf("received paste saved but not copied to clipboard: %v", err)
	}

	s.log.Infof("received %d bytes: %.40s", entry.Size, entry.Preview)
}
